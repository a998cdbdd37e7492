// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/FACorreiaa/poker-ledger/internal/domain/reclassify"
)

const sweepTimeout = 30 * time.Minute

// OwnerLister lists every owner with stored records.
type OwnerLister interface {
	ListOwners(ctx context.Context) ([]uuid.UUID, error)
}

// Reclassifier runs both backfill passes for one owner.
type Reclassifier interface {
	Run(ctx context.Context, owner uuid.UUID) (*reclassify.Result, error)
}

// SweepResult summarizes one reclassification sweep.
type SweepResult struct {
	Owners       int
	Failed       int
	TiersSet     int
	GameTypesSet int
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron         *cron.Cron
	schedule     string
	owners       OwnerLister
	reclassifier Reclassifier
	logger       *slog.Logger
}

// NewScheduler creates a scheduler that sweeps every owner's records through the
// reclassifier on schedule (standard 5-field cron format).
func NewScheduler(schedule string, owners OwnerLister, reclassifier Reclassifier, logger *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:         c,
		schedule:     schedule,
		owners:       owners,
		reclassifier: reclassifier,
		logger:       logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		_, _ = s.Sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid reclassify schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.String("schedule", s.schedule),
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// Sweep reclassifies the records of every owner. An owner whose pass fails is
// logged and skipped.
func (s *Scheduler) Sweep(ctx context.Context) (*SweepResult, error) {
	s.logger.Info("starting reclassification sweep")

	owners, err := s.owners.ListOwners(ctx)
	if err != nil {
		s.logger.Error("failed to list owners", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}

	res := &SweepResult{Owners: len(owners)}
	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		r, err := s.reclassifier.Run(ctx, owner)
		if err != nil {
			s.logger.Warn("failed to reclassify owner",
				slog.String("owner", owner.String()),
				slog.Any("error", err),
			)
			res.Failed++
			continue
		}
		res.TiersSet += r.Tiers.Updated
		res.GameTypesSet += r.GameTypes.Updated
	}

	s.logger.Info("reclassification sweep completed",
		slog.Int("owners", res.Owners),
		slog.Int("owners_failed", res.Failed),
		slog.Int("tiers_set", res.TiersSet),
		slog.Int("game_types_set", res.GameTypesSet),
	)
	return res, nil
}
