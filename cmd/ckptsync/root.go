package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/parakeet-ml/ckptsync"
	"github.com/parakeet-ml/ckptsync/ckpttypes"
	"github.com/parakeet-ml/ckptsync/config"
	"github.com/parakeet-ml/ckptsync/store"
	"github.com/parakeet-ml/ckptsync/store/hubstore"
	"github.com/parakeet-ml/ckptsync/store/s3store"
)

// errIncomplete marks a run that finished with failures or cancellations.
var errIncomplete = errors.New("run finished with failed or cancelled items")

var (
	cfg    *config.Config
	logger zerolog.Logger

	flagBucket      string
	flagRepo        string
	flagRevision    string
	flagCredentials string
	flagRegion      string
	flagEndpoint    string
	flagToken       string
	flagLayout      string
	flagConcurrency int
	flagVerbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "ckptsync",
	Short: "Synchronize ML training checkpoints with remote storage",
	Long: `ckptsync moves training checkpoints between the local filesystem and a
remote store: an S3 (or S3-compatible) bucket, or a read-only model-hub
repository.

The backend is selected by flags: --repo targets a hub repository,
--bucket targets S3. Configuration can also come from the environment
(CKPT_BUCKET, CKPT_REPO, CKPT_PREFIX, ...) or a local .env file; flags
take precedence.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := zerolog.InfoLevel
		if flagVerbose {
			level = zerolog.DebugLevel
		}
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			Level(level).
			With().Timestamp().Logger()

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		applyFlagOverrides()
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagBucket, "bucket", "", "S3 bucket holding checkpoints")
	pf.StringVar(&flagRepo, "repo", "", "model-hub repository (selects the hub backend)")
	pf.StringVar(&flagRevision, "revision", "", "hub revision (branch, tag, or commit)")
	pf.StringVar(&flagCredentials, "credentials", "", "AWS shared-credentials file")
	pf.StringVar(&flagRegion, "region", "", "AWS region")
	pf.StringVar(&flagEndpoint, "endpoint", "", "remote endpoint override")
	pf.StringVar(&flagToken, "token", "", "hub access token")
	pf.StringVar(&flagLayout, "layout", "", "layout policy: full-mirror, strip-prefix, flatten, subfolder")
	pf.IntVar(&flagConcurrency, "concurrency", 0, "number of concurrent transfers")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
}

// applyFlagOverrides lets explicit flags win over environment configuration.
func applyFlagOverrides() {
	if flagBucket != "" {
		cfg.Bucket = flagBucket
	}
	if flagRepo != "" {
		cfg.Repo = flagRepo
	}
	if flagRevision != "" {
		cfg.Revision = flagRevision
	}
	if flagCredentials != "" {
		cfg.CredentialsFile = flagCredentials
	}
	if flagRegion != "" {
		cfg.Region = flagRegion
	}
	if flagEndpoint != "" {
		cfg.Endpoint = flagEndpoint
	}
	if flagToken != "" {
		cfg.HubToken = flagToken
	}
	if flagLayout != "" {
		cfg.Layout = flagLayout
	}
	if flagConcurrency > 0 {
		cfg.Concurrency = flagConcurrency
	}
}

// newStore builds the remote backend from configuration: a hub repository
// when one is configured, otherwise S3.
func newStore(ctx context.Context) (store.ObjectStore, error) {
	if cfg.Repo != "" {
		return hubstore.New(hubstore.Config{
			Repo:     cfg.Repo,
			Revision: cfg.Revision,
			Token:    cfg.HubToken,
			Endpoint: cfg.Endpoint,
		})
	}
	return s3store.New(ctx, s3store.Config{
		Bucket:          cfg.Bucket,
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		AccessKey:       cfg.AccessKey,
		SecretKey:       cfg.SecretKey,
		CredentialsFile: cfg.CredentialsFile,
		ForcePathStyle:  cfg.Endpoint != "",
	})
}

// newSyncer builds a Syncer over the configured backend.
func newSyncer(ctx context.Context) (*ckptsync.Syncer, error) {
	st, err := newStore(ctx)
	if err != nil {
		return nil, err
	}

	layout, err := ckpttypes.ParseLayoutPolicy(cfg.Layout)
	if err != nil {
		return nil, err
	}

	return ckptsync.New(st,
		ckptsync.WithConcurrency(cfg.Concurrency),
		ckptsync.WithLayout(layout),
		ckptsync.WithLogger(logger),
	), nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM, so an
// interrupted run still reports which items were cancelled.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// logReport prints the run summary and returns an error when any item
// failed or was cancelled, so the process exits non-zero.
func logReport(report *ckpttypes.Report, op string) error {
	for _, f := range report.Failures() {
		logger.Error().Str("key", f.Item.Key).Err(f.Err).Msg("item failed")
	}
	logger.Info().
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int("cancelled", report.Cancelled).
		Int64("bytes", report.Bytes).
		Dur("duration", report.Duration).
		Msgf("%s finished", op)

	if !report.Ok() {
		return errIncomplete
	}
	return nil
}
