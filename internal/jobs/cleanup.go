// Package jobs holds the periodic retention jobs of the service.
package jobs

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kosarica/catalog-service/internal/database"
	"github.com/kosarica/catalog-service/internal/storage"
	"github.com/kosarica/catalog-service/internal/taskqueue"
	"github.com/rs/zerolog"
)

// CleanupConfig holds configuration for cleanup jobs
type CleanupConfig struct {
	Interval time.Duration // How often the jobs run
	// TaskRetentionDays keeps finished tasks this long. The newest task of
	// every catalog is always kept.
	TaskRetentionDays int
	// ArchiveRetention keeps archives of never activated catalogs this long.
	ArchiveRetention time.Duration
	Enabled          bool
}

// DefaultCleanupConfig returns the default cleanup configuration
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		Interval:          24 * time.Hour,
		TaskRetentionDays: 90,
		ArchiveRetention:  7 * 24 * time.Hour,
		Enabled:           true,
	}
}

// CleanupManager manages background cleanup jobs
type CleanupManager struct {
	pool    *pgxpool.Pool
	queue   *taskqueue.TaskQueue
	storage storage.Storage
	config  CleanupConfig
	logger  *zerolog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	now     func() time.Time
}

// NewCleanupManager creates a new cleanup manager. store may be nil, which
// disables archive pruning.
func NewCleanupManager(pool *pgxpool.Pool, queue *taskqueue.TaskQueue, store storage.Storage, config CleanupConfig, logger *zerolog.Logger) *CleanupManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &CleanupManager{
		pool:    pool,
		queue:   queue,
		storage: store,
		config:  config,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		now:     time.Now,
	}
}

// Start begins the background cleanup loop
func (cm *CleanupManager) Start() {
	if !cm.config.Enabled {
		cm.logger.Info().Msg("Cleanup jobs are disabled, not starting")
		close(cm.done)
		return
	}

	cm.logger.Info().
		Dur("interval", cm.config.Interval).
		Int("task_retention_days", cm.config.TaskRetentionDays).
		Dur("archive_retention", cm.config.ArchiveRetention).
		Msg("Starting cleanup manager")

	go cm.run()
}

// Stop gracefully stops all cleanup jobs
func (cm *CleanupManager) Stop() {
	cm.logger.Info().Msg("Stopping cleanup manager...")
	cm.cancel()

	select {
	case <-cm.done:
	case <-time.After(5 * time.Second):
		cm.logger.Warn().Msg("Cleanup job did not stop gracefully")
	}
	cm.logger.Info().Msg("Cleanup manager stopped")
}

func (cm *CleanupManager) run() {
	defer close(cm.done)

	ticker := time.NewTicker(cm.config.Interval)
	defer ticker.Stop()

	cm.RunOnce(cm.ctx)
	for {
		select {
		case <-cm.ctx.Done():
			return
		case <-ticker.C:
			cm.RunOnce(cm.ctx)
		}
	}
}

// RunOnce runs every cleanup job once. Failures are logged and do not stop
// the remaining jobs.
func (cm *CleanupManager) RunOnce(ctx context.Context) {
	start := time.Now()
	deleted, err := cm.CleanupTasks(ctx)
	if err != nil {
		cm.logger.Error().Err(err).Msg("Failed to cleanup old tasks")
	} else if deleted > 0 {
		cm.logger.Info().Int64("deleted", deleted).Dur("duration", time.Since(start)).Msg("Cleaned up old tasks")
	} else {
		cm.logger.Debug().Dur("duration", time.Since(start)).Msg("No old tasks to clean up")
	}

	if cm.storage == nil {
		return
	}
	start = time.Now()
	pruned, err := cm.PruneArchives(ctx)
	if err != nil {
		cm.logger.Error().Err(err).Msg("Failed to prune archives")
		return
	}
	if pruned > 0 {
		cm.logger.Info().Int("deleted", pruned).Dur("duration", time.Since(start)).Msg("Pruned stale archives")
	}
}

// CleanupTasks deletes finished tasks past retention.
func (cm *CleanupManager) CleanupTasks(ctx context.Context) (int64, error) {
	return cm.queue.CleanupOldTasks(ctx, cm.config.TaskRetentionDays)
}

// PruneArchives deletes stored archives of catalogs that were never
// activated, have no running task and are older than the retention. These
// are left behind by publishes that failed after the persist step.
func (cm *CleanupManager) PruneArchives(ctx context.Context) (int, error) {
	keys, err := cm.storage.List(ctx, "catalogs/")
	if err != nil {
		return 0, err
	}

	cutoff := cm.now().Add(-cm.config.ArchiveRetention)
	deleted := 0
	for _, key := range keys {
		info, err := cm.storage.GetInfo(ctx, key)
		if err != nil {
			cm.logger.Warn().Err(err).Str("key", key).Msg("Failed to stat archive")
			continue
		}
		if info.ModifiedAt.After(cutoff) {
			continue
		}

		code := strings.TrimSuffix(strings.TrimPrefix(key, "catalogs/"), ".zip")
		stale, err := cm.staleCatalog(ctx, code)
		if err != nil {
			return deleted, err
		}
		if !stale {
			continue
		}
		if err := cm.storage.Delete(ctx, key); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

func (cm *CleanupManager) staleCatalog(ctx context.Context, code string) (bool, error) {
	cat, err := database.GetCatalog(ctx, cm.pool, code)
	if errors.Is(err, database.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if cat.ActivatedAt != nil {
		return false, nil
	}
	tasks, err := cm.queue.ByCatalog(ctx, cm.pool, cat.ID)
	if err != nil {
		return false, err
	}
	for _, t := range tasks {
		if !t.Status.Finished() {
			return false, nil
		}
	}
	return true, nil
}

// Stats returns the number of tasks per status.
func Stats(ctx context.Context, queue *taskqueue.TaskQueue) (map[taskqueue.Status]int64, error) {
	return queue.CountByStatus(ctx)
}
