package ckptsync

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/parakeet-ml/ckptsync/ckpttypes"
	syncerrors "github.com/parakeet-ml/ckptsync/errors"
	"github.com/parakeet-ml/ckptsync/internal/plan"
	"github.com/parakeet-ml/ckptsync/internal/transfer"
)

// Fetch downloads every object under the checkpoint prefix into outputDir,
// mapping keys to paths with the configured layout policy.
//
// The returned Report holds one outcome per listed non-marker object,
// including keys rejected at plan time. Partial failure is not an error:
// Fetch returns a non-nil error only when the run itself could not proceed
// (invalid input or a listing failure). Cancelling ctx stops dispatching new
// items; items never started are reported as cancelled.
func (s *Syncer) Fetch(ctx context.Context, prefix, outputDir string) (*ckpttypes.Report, error) {
	if outputDir == "" {
		return nil, syncerrors.NewError("fetch", syncerrors.ErrInvalidInput).
			WithMessage("output directory cannot be empty")
	}
	if !s.layout.Valid() {
		return nil, syncerrors.NewError("fetch", syncerrors.ErrInvalidInput).
			WithMessage("unknown layout policy " + string(s.layout))
	}

	start := time.Now()
	logger := s.logger.With().Str("op", "fetch").Str("prefix", prefix).Logger()
	logger.Info().Str("output_dir", outputDir).Str("layout", string(s.layout)).Msg("starting fetch")

	listing := s.store.List(ctx, prefix)
	items, rejected, err := plan.Fetch(listing, prefix, outputDir, s.layout)
	if err != nil {
		return nil, err
	}
	logger.Debug().Int("items", len(items)).Int("rejected", len(rejected)).Msg("plan built")

	outcomes := s.execute(ctx, items, transfer.Download(s.store, s.fs), logger)
	outcomes = append(outcomes, rejected...)

	report := ckpttypes.Aggregate(outcomes)
	report.Duration = time.Since(start)
	logger.Info().
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int("cancelled", report.Cancelled).
		Int64("bytes", report.Bytes).
		Dur("duration", report.Duration).
		Msg("fetch complete")
	return report, nil
}

// Push uploads every regular file under localDir to the remote store,
// keyed by the checkpoint prefix plus each file's path relative to localDir.
//
// Reporting and cancellation semantics match Fetch. Backends without write
// support fail every item with ErrNotSupported.
func (s *Syncer) Push(ctx context.Context, localDir, prefix string) (*ckpttypes.Report, error) {
	if localDir == "" {
		return nil, syncerrors.NewError("push", syncerrors.ErrInvalidInput).
			WithMessage("local directory cannot be empty")
	}

	start := time.Now()
	logger := s.logger.With().Str("op", "push").Str("prefix", prefix).Logger()
	logger.Info().Str("local_dir", localDir).Msg("starting push")

	items, err := plan.Push(s.fs, localDir, prefix)
	if err != nil {
		return nil, err
	}
	logger.Debug().Int("items", len(items)).Msg("plan built")

	outcomes := s.execute(ctx, items, transfer.Upload(s.store, s.fs), logger)

	report := ckpttypes.Aggregate(outcomes)
	report.Duration = time.Since(start)
	logger.Info().
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int("cancelled", report.Cancelled).
		Int64("bytes", report.Bytes).
		Dur("duration", report.Duration).
		Msg("push complete")
	return report, nil
}

// execute runs the work items through the pool and logs each failure.
func (s *Syncer) execute(
	ctx context.Context,
	items []ckpttypes.WorkItem,
	fn transfer.TransferFunc,
	logger zerolog.Logger,
) []ckpttypes.Outcome {
	exec := transfer.NewExecutor(s.concurrency)
	if s.tracker != nil {
		exec = exec.WithTracker(s.tracker)
	}

	outcomes := exec.Execute(ctx, items, fn)
	for _, o := range outcomes {
		if o.Status == ckpttypes.StatusFailure {
			logger.Warn().Str("key", o.Item.Key).Err(o.Err).Msg("transfer failed")
		}
	}
	return outcomes
}
