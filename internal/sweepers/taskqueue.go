package sweepers

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Recoverer returns orphaned IN_PROGRESS tasks to PENDING.
type Recoverer interface {
	RecoverOrphaned(ctx context.Context, startedBefore time.Time) (int64, error)
}

// TaskQueueSweeper periodically recovers tasks whose node died mid-run.
type TaskQueueSweeper struct {
	queue         Recoverer
	logger        *zerolog.Logger
	interval      time.Duration
	orphanTimeout time.Duration
	stopChan      chan struct{}
	now           func() time.Time
}

// NewTaskQueueSweeper creates a sweeper. Tasks IN_PROGRESS for longer than
// orphanTimeout are considered orphaned.
func NewTaskQueueSweeper(queue Recoverer, logger *zerolog.Logger, interval, orphanTimeout time.Duration) *TaskQueueSweeper {
	return &TaskQueueSweeper{
		queue:         queue,
		logger:        logger,
		interval:      interval,
		orphanTimeout: orphanTimeout,
		stopChan:      make(chan struct{}),
		now:           time.Now,
	}
}

// Start runs the sweep until ctx is done or Stop is called.
func (s *TaskQueueSweeper) Start(ctx context.Context) {
	s.logger.Info().
		Dur("interval", s.interval).
		Dur("orphan_timeout", s.orphanTimeout).
		Msg("Starting task queue sweeper")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Task queue sweeper stopping (context cancelled)")
			return
		case <-s.stopChan:
			s.logger.Info().Msg("Task queue sweeper stopping (stop signal)")
			return
		case <-ticker.C:
			if _, err := s.RecoverOrphanedTasks(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Failed to recover orphaned tasks")
			}
		}
	}
}

// Stop signals the sweeper to stop
func (s *TaskQueueSweeper) Stop() {
	close(s.stopChan)
}

// RecoverOrphanedTasks runs one sweep and returns the number of recovered tasks.
func (s *TaskQueueSweeper) RecoverOrphanedTasks(ctx context.Context) (int64, error) {
	s.logger.Debug().Msg("Running orphaned task recovery")

	recovered, err := s.queue.RecoverOrphaned(ctx, s.now().Add(-s.orphanTimeout))
	if err != nil {
		return 0, fmt.Errorf("recover orphaned tasks: %w", err)
	}
	if recovered > 0 {
		s.logger.Warn().Int64("recovered", recovered).Msg("Recovered orphaned tasks")
	}
	return recovered, nil
}
