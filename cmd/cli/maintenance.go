package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kosarica/catalog-service/internal/jobs"
	"github.com/kosarica/catalog-service/internal/storage"
	"github.com/kosarica/catalog-service/internal/sweepers"
	"github.com/kosarica/catalog-service/internal/taskqueue"
	"github.com/spf13/cobra"
)

var (
	cleanupRetentionDays int
	cleanupArchives      bool
	recoverOrphanTimeout time.Duration
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete finished tasks past retention once",
	Long: `Run the retention job of the server once. Finished publish tasks older than the
retention are deleted, except the newest task of every catalog. With --archives the
stored archives of catalogs that were never activated are pruned too.`,
	Example: `  catalog-service cleanup --retention-days 30 --archives`,
	RunE:    runCleanup,
}

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Return orphaned IN_PROGRESS tasks to PENDING",
	Long: `Run one orphan sweep. Tasks IN_PROGRESS for longer than the orphan timeout are
assumed to belong to a dead node and become claimable again.`,
	Example: `  catalog-service recover --orphan-timeout 15m`,
	RunE:    runRecover,
}

var queueStatsCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show publish task counts by status",
	RunE:  runQueueStats,
}

func init() {
	rootCmd.AddCommand(cleanupCmd, recoverCmd, queueStatsCmd)

	cleanupCmd.Flags().IntVar(&cleanupRetentionDays, "retention-days", 0, "Keep finished tasks this many days (default from config)")
	cleanupCmd.Flags().BoolVar(&cleanupArchives, "archives", false, "Also prune archives of never activated catalogs")
	recoverCmd.Flags().DurationVar(&recoverOrphanTimeout, "orphan-timeout", 0, "Age of an orphaned task (default from config)")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	pool, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	conf := jobs.CleanupConfig{
		Interval:          cfg.Cleanup.Interval,
		TaskRetentionDays: cfg.Cleanup.TaskRetentionDays,
		ArchiveRetention:  cfg.Cleanup.ArchiveRetention,
		Enabled:           true,
	}
	if cleanupRetentionDays > 0 {
		conf.TaskRetentionDays = cleanupRetentionDays
	}

	var store storage.Storage
	if cleanupArchives {
		local, err := storage.NewLocalStorage(cfg.Storage.BasePath)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		store = local
	}

	manager := jobs.NewCleanupManager(pool, taskqueue.New(pool), store, conf, logger)
	manager.RunOnce(ctx)
	return nil
}

func runRecover(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	pool, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	timeout := cfg.Worker.OrphanTimeout
	if recoverOrphanTimeout > 0 {
		timeout = recoverOrphanTimeout
	}
	sweeper := sweepers.NewTaskQueueSweeper(taskqueue.New(pool), logger, cfg.Worker.SweepInterval, timeout)
	recovered, err := sweeper.RecoverOrphanedTasks(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Recovered %d tasks\n", recovered)
	return nil
}

func runQueueStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	pool, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	counts, err := jobs.Stats(ctx, taskqueue.New(pool))
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintf(w, "STATUS\tTASKS\n")
	for _, s := range []taskqueue.Status{taskqueue.StatusPending, taskqueue.StatusInProgress, taskqueue.StatusCompleted, taskqueue.StatusFailed} {
		fmt.Fprintf(w, "%s\t%d\n", s, counts[s])
	}
	return w.Flush()
}
