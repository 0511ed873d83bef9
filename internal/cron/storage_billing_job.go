package cron

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/goldvault-backend/internal/storagebilling"
	"github.com/angelmondragon/goldvault-backend/pkg/logger"
)

const storageBillingJobName = "storage-billing"

// StorageBillingJobParams configures the monthly storage billing job.
type StorageBillingJobParams struct {
	Logger *logger.Logger
	Runner storagebilling.Runner
}

// NewStorageBillingJob wraps a billing runner as a cron job. A run held by
// another process ends the job with ErrJobSkipped.
func NewStorageBillingJob(params StorageBillingJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Runner == nil {
		return nil, fmt.Errorf("billing runner required")
	}
	return &storageBillingJob{
		logg:   params.Logger,
		runner: params.Runner,
	}, nil
}

type storageBillingJob struct {
	logg   *logger.Logger
	runner storagebilling.Runner
}

func (j *storageBillingJob) Name() string { return storageBillingJobName }

func (j *storageBillingJob) Run(ctx context.Context) error {
	summary, err := j.runner.Run(ctx)
	if errors.Is(err, storagebilling.ErrRunInProgress) {
		return fmt.Errorf("%w: storage billing already running elsewhere", ErrJobSkipped)
	}
	if err != nil {
		return fmt.Errorf("storage billing: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"success": summary.Success,
		"failed":  summary.Failed,
		"skipped": summary.Skipped,
	})
	j.logg.Info(logCtx, "storage billing job finished")
	return nil
}
