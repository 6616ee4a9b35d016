// Package scheduler runs the cron-driven storage maintenance.
package scheduler

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curtail/internal/common"
)

// Service schedules badger value-log garbage collection. Badger never
// reclaims value-log space on its own; without this the data directory
// only grows.
type Service struct {
	db      *badger.DB
	cron    *cron.Cron
	logger  arbor.ILogger
	running bool
}

// NewService creates the maintenance scheduler.
func NewService(db *badger.DB, logger arbor.ILogger) *Service {
	return &Service{
		db:     db,
		cron:   cron.New(),
		logger: logger,
	}
}

// Start registers the GC job and starts the cron loop.
func (s *Service) Start(config common.MaintenanceConfig) error {
	if !config.Enabled {
		s.logger.Info().Msg("Storage maintenance disabled")
		return nil
	}
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	schedule := config.GCSchedule
	if schedule == "" {
		schedule = "*/10 * * * *"
	}

	if _, err := s.cron.AddFunc(schedule, s.runGC); err != nil {
		return fmt.Errorf("failed to add gc job: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info().Str("schedule", schedule).Msg("Storage maintenance started")
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Service) Stop() {
	if !s.running {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	s.logger.Info().Msg("Storage maintenance stopped")
}

// runGC runs value-log GC until badger reports nothing left to rewrite.
func (s *Service) runGC() {
	rewrites := 0
	for {
		err := s.db.RunValueLogGC(0.5)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) {
				break
			}
			s.logger.Warn().Err(err).Msg("Value log GC failed")
			return
		}
		rewrites++
	}
	if rewrites > 0 {
		s.logger.Info().Int("rewrites", rewrites).Msg("Value log GC complete")
	}
}
