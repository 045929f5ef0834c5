// Package config loads runtime settings from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds the environment-driven settings for a sync run.
type Config struct {
	// Bucket is the S3 bucket holding checkpoints
	Bucket string

	// Repo is a model-hub repository identifier; when set it selects the
	// hub backend instead of S3
	Repo string

	// Revision is the hub revision to read from
	Revision string

	// Prefix is the default checkpoint prefix
	Prefix string

	// OutputDir is the default local directory for fetched checkpoints
	OutputDir string

	// AccessKey and SecretKey are explicit static AWS credentials
	AccessKey string
	SecretKey string

	// CredentialsFile is an explicit AWS shared-credentials file
	CredentialsFile string

	// Region is the AWS region
	Region string

	// Endpoint overrides the remote endpoint (S3-compatible store or hub mirror)
	Endpoint string

	// Layout is the layout policy name
	Layout string

	// Concurrency is the worker pool size
	Concurrency int

	// HubToken is the access token for gated or private hub repositories
	HubToken string
}

// Load reads configuration from the environment. A missing .env file is not
// an error; explicit environment variables always win over .env contents.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env file not found, using environment variables only")
	}

	config := &Config{
		Bucket:          getEnv("CKPT_BUCKET", ""),
		Repo:            getEnv("CKPT_REPO", ""),
		Revision:        getEnv("CKPT_REVISION", ""),
		Prefix:          getEnv("CKPT_PREFIX", ""),
		OutputDir:       getEnv("CKPT_OUTPUT_DIR", ""),
		AccessKey:       getEnv("CKPT_ACCESS_KEY", ""),
		SecretKey:       getEnv("CKPT_SECRET_KEY", ""),
		CredentialsFile: getEnv("CKPT_CREDENTIALS_FILE", ""),
		Region:          getEnv("CKPT_REGION", ""),
		Endpoint:        getEnv("CKPT_ENDPOINT", ""),
		Layout:          getEnv("CKPT_LAYOUT", "subfolder"),
		Concurrency:     getEnvInt("CKPT_CONCURRENCY", 8),
		HubToken:        getEnv("HUB_TOKEN", ""),
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("invalid integer in environment, using default")
		return defaultValue
	}
	return n
}
