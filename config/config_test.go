package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "subfolder", cfg.Layout)
	assert.Equal(t, 8, cfg.Concurrency)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("CKPT_BUCKET", "training-ckpts")
	t.Setenv("CKPT_PREFIX", "run42/ckpt-1000")
	t.Setenv("CKPT_OUTPUT_DIR", "/data/out")
	t.Setenv("CKPT_LAYOUT", "flatten")
	t.Setenv("CKPT_CONCURRENCY", "16")
	t.Setenv("HUB_TOKEN", "hf_secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "training-ckpts", cfg.Bucket)
	assert.Equal(t, "run42/ckpt-1000", cfg.Prefix)
	assert.Equal(t, "/data/out", cfg.OutputDir)
	assert.Equal(t, "flatten", cfg.Layout)
	assert.Equal(t, 16, cfg.Concurrency)
	assert.Equal(t, "hf_secret", cfg.HubToken)
}

func TestLoad_InvalidConcurrencyFallsBack(t *testing.T) {
	t.Setenv("CKPT_CONCURRENCY", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Concurrency)
}

func TestGetEnv(t *testing.T) {
	t.Setenv("CKPT_TEST_KEY", "value")

	assert.Equal(t, "value", getEnv("CKPT_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", getEnv("CKPT_TEST_MISSING", "fallback"))
}
