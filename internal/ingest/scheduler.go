package ingest

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/shieldsocial/commentsync/internal/platform"
	"github.com/shieldsocial/commentsync/pkg/config"
	"github.com/shieldsocial/commentsync/pkg/logging"
)

// UserLister lists the users that own at least one linked account
type UserLister interface {
	ListUserIDs(ctx context.Context) ([]string, error)
}

// Scheduler periodically runs "sync all" for every user
type Scheduler struct {
	coordinator *Coordinator
	users       UserLister
	interval    time.Duration
	maxUsers    int
	opts        platform.FetchOptions
	logger      *zap.Logger
}

// NewScheduler creates a scheduler from the ingestion configuration
func NewScheduler(cfg *config.IngestionConfig, coordinator *Coordinator, users UserLister) *Scheduler {
	maxUsers := cfg.MaxConcurrentUsers
	if maxUsers <= 0 {
		maxUsers = 1
	}
	interval := cfg.SyncInterval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Scheduler{
		coordinator: coordinator,
		users:       users,
		interval:    interval,
		maxUsers:    maxUsers,
		opts:        platform.FetchOptions{Limit: cfg.Limit, MaxPages: cfg.MaxPages},
		logger:      logging.WithComponent("scheduler"),
	}
}

// Run syncs immediately and then once per interval until ctx is cancelled
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Starting ingestion scheduler",
		zap.Duration("interval", s.interval),
		zap.Int("max_concurrent_users", s.maxUsers))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("Ingestion pass failed", zap.Error(err))
			}
			s.wait(ctx)
		}
	}
}

// RunOnce syncs every user once, at most maxUsers at a time. Only a failure
// to list the users is returned; per-user failures are logged.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	userIDs, err := s.users.ListUserIDs(ctx)
	if err != nil {
		return err
	}

	start := time.Now()
	p := pool.New().WithMaxGoroutines(s.maxUsers)
	for _, userID := range userIDs {
		p.Go(func() {
			s.syncUser(ctx, userID)
		})
	}
	p.Wait()

	s.logger.Info("Ingestion pass complete",
		zap.Int("users", len(userIDs)),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (s *Scheduler) syncUser(ctx context.Context, userID string) {
	report, err := s.coordinator.SyncAll(ctx, userID, s.opts)
	if err != nil {
		s.logger.Error("Failed to sync user", zap.String("user_id", userID), zap.Error(err))
		return
	}
	s.logger.Info("Synced user",
		zap.String("user_id", userID),
		zap.Int("accounts", len(report.Results)),
		zap.Int("found", report.Totals.Found),
		zap.Int("ingested", report.Totals.Ingested),
		zap.Int("duplicates", report.Totals.Duplicates),
		zap.Int("errors", report.Totals.Errors))
}

// wait waits for the interval or until the context is cancelled
func (s *Scheduler) wait(ctx context.Context) {
	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
