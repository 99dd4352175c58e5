// Package workers runs publish tasks claimed from the task queue.
package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kosarica/catalog-service/internal/pipeline"
	"github.com/kosarica/catalog-service/internal/taskqueue"
	"github.com/rs/zerolog"
)

// Runner drives one claimed task to a terminal state.
type Runner interface {
	Run(ctx context.Context, task *taskqueue.Task) (*pipeline.Result, error)
}

// Claimer hands out runnable tasks.
type Claimer interface {
	Claim(ctx context.Context, node string) (*taskqueue.Task, error)
}

type WorkerConfig struct {
	// NodeID is written to every claimed task.
	NodeID      string
	Concurrency int
	PollDelay   time.Duration
}

type Worker struct {
	queue    Claimer
	runner   Runner
	config   WorkerConfig
	logger   zerolog.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(queue Claimer, runner Runner, config WorkerConfig, logger zerolog.Logger) *Worker {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.PollDelay <= 0 {
		config.PollDelay = time.Second
	}
	return &Worker{
		queue:    queue,
		runner:   runner,
		config:   config,
		logger:   logger.With().Str("component", "worker").Str("node", config.NodeID).Logger(),
		stopChan: make(chan struct{}),
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.logger.Info().
		Int("concurrency", w.config.Concurrency).
		Dur("poll_delay", w.config.PollDelay).
		Msg("Starting worker")

	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// Stop stops claiming and waits for in-flight tasks. A task that was
// claimed always runs to the end.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.logger.Info().Msg("Worker stopping, waiting for in-flight tasks")
	w.wg.Wait()
	w.logger.Info().Msg("Worker stopped")
}

func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()
	log := w.logger.With().Str("worker_id", fmt.Sprintf("%s-%d", w.config.NodeID, workerNum)).Logger()
	log.Debug().Msg("Starting worker goroutine")

	ticker := time.NewTicker(w.config.PollDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("Worker shutting down")
			return
		case <-w.stopChan:
			log.Debug().Msg("Worker received stop signal")
			return
		case <-ticker.C:
			w.drain(ctx, log)
		}
	}
}

// drain runs tasks until nothing is runnable or the worker is stopped.
func (w *Worker) drain(ctx context.Context, log zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		default:
		}

		task, err := w.queue.Claim(ctx, w.config.NodeID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to claim task")
			return
		}
		if task == nil {
			return
		}
		w.process(ctx, log, task)
	}
}

func (w *Worker) process(ctx context.Context, log zerolog.Logger, task *taskqueue.Task) {
	log.Info().
		Str("publish_id", task.ID).
		Str("catalog_code", task.CatalogCode).
		Msg("Worker processing task")

	// Shutdown must not abandon a task mid-pipeline.
	result, err := w.runner.Run(context.WithoutCancel(ctx), task)
	if err != nil {
		log.Error().Err(err).Str("publish_id", task.ID).Msg("Failed to store task result")
		return
	}
	log.Info().
		Str("publish_id", task.ID).
		Str("status", string(result.Status)).
		Msg("Worker finished task")
}
