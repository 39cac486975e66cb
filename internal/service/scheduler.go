package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the periodic refresh-token sweep. The same sweep is also
// reachable through the admin cleanup endpoint; the scheduler only keeps
// the table from growing between manual runs.
type Scheduler struct {
	cron   *cron.Cron
	tokens *TokenAdminService
	log    *slog.Logger
}

// NewScheduler creates a scheduler that sweeps expired refresh tokens on
// the given interval. An interval of zero disables the schedule.
func NewScheduler(tokens *TokenAdminService, interval time.Duration, log *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(),
		tokens: tokens,
		log:    log.With("component", "scheduler"),
	}
	if interval <= 0 {
		return s, nil
	}

	spec := fmt.Sprintf("@every %s", interval)
	if _, err := s.cron.AddFunc(spec, func() {
		if _, err := s.tokens.Sweep(context.Background()); err != nil {
			s.log.Warn("token sweep failed", "error", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule token sweep: %w", err)
	}
	return s, nil
}

// Start begins the cron loop. Safe to call with no entries.
func (s *Scheduler) Start() {
	s.cron.Start()
	if len(s.cron.Entries()) > 0 {
		s.log.Info("token sweep scheduled")
	}
}

// Stop gracefully stops the cron loop.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.log.Info("scheduler stopped")
}
