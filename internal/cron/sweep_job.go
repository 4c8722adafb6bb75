package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/pitchpoint/pitchpoint-backend/pkg/config"
	"github.com/pitchpoint/pitchpoint-backend/pkg/logger"
)

// holdSweeper is the slice of the payments service the sweep job drives.
type holdSweeper interface {
	ExpireDueHolds(ctx context.Context, batchSize int) (int, error)
	ReapStaleCODOrders(ctx context.Context, graceWindow time.Duration, batchSize int) (int, error)
}

// SweepJobParams configure the reservation sweep job.
type SweepJobParams struct {
	Logger  *logger.Logger
	Sweeper holdSweeper
	Config  config.ReservationsConfig
}

// NewSweepJob builds the job that reaps expired holds and stale
// cash-on-arrival orders. Both loops are idempotent per row; a hold or order
// already settled by a concurrent webhook is skipped by the guarded
// transition.
func NewSweepJob(params SweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("sweeper required")
	}
	batchSize := params.Config.SweepBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	return &sweepJob{
		logg:      params.Logger,
		sweeper:   params.Sweeper,
		batchSize: batchSize,
		codGrace:  params.Config.CODGraceWindow,
	}, nil
}

type sweepJob struct {
	logg      *logger.Logger
	sweeper   holdSweeper
	batchSize int
	codGrace  time.Duration
}

func (j *sweepJob) Name() string { return "reservation-sweep" }

func (j *sweepJob) Run(ctx context.Context) error {
	var errs []error

	expired, err := j.sweeper.ExpireDueHolds(ctx, j.batchSize)
	if err != nil {
		errs = append(errs, fmt.Errorf("expire holds: %w", err))
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": expired})
	j.logg.Info(logCtx, "hold expiry loop complete")

	if j.codGrace > 0 {
		reaped, err := j.sweeper.ReapStaleCODOrders(ctx, j.codGrace, j.batchSize)
		if err != nil {
			errs = append(errs, fmt.Errorf("reap cod orders: %w", err))
		}
		logCtx = j.logg.WithFields(ctx, map[string]any{"count": reaped})
		j.logg.Info(logCtx, "cod order reap loop complete")
	}

	return multierr.Combine(errs...)
}
