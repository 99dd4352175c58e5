// Package pipeline runs claimed publish tasks to COMPLETED or FAILED.
package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kosarica/catalog-service/internal/archive"
	"github.com/kosarica/catalog-service/internal/audit"
	"github.com/kosarica/catalog-service/internal/catalog"
	"github.com/kosarica/catalog-service/internal/clients"
	"github.com/kosarica/catalog-service/internal/database"
	"github.com/kosarica/catalog-service/internal/metrics"
	"github.com/kosarica/catalog-service/internal/storage"
	"github.com/kosarica/catalog-service/internal/taskqueue"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultFailureMaxLength bounds a stored failure string in runes.
const DefaultFailureMaxLength = 2048

// Fetcher downloads an archive.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Prodo is the product service hook pair.
type Prodo interface {
	Prepare(ctx context.Context, catalogCode string) error
	Activated(ctx context.Context, catalogCode string) error
}

// EventPusher sends the catalog event.
type EventPusher interface {
	PushCatalogPublished(ctx context.Context, event clients.CatalogPublished) error
}

// Notifier delivers tool status notifications.
type Notifier interface {
	Notify(ctx context.Context, tool string, note clients.StatusNotification) error
}

// Invalidator drops cached active catalog answers.
type Invalidator interface {
	Invalidate(ctx context.Context, titleCode string)
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Pool     *pgxpool.Pool
	Queue    *taskqueue.TaskQueue
	Fetcher  Fetcher
	Prodo    Prodo
	Franz    EventPusher
	Notifier Notifier
	Audit    *audit.Emitter
	Parser   *archive.Parser
	Storage  storage.Storage
	Resolver Invalidator
	Metrics  *metrics.Recorder
	Logger   zerolog.Logger
}

// Engine executes the publish pipeline for one task at a time per call.
type Engine struct {
	Deps
	tracer           trace.Tracer
	log              zerolog.Logger
	failureMaxLength atomic.Int64
	now              func() time.Time
}

// New creates an engine.
func New(deps Deps) *Engine {
	e := &Engine{
		Deps:   deps,
		tracer: otel.Tracer("catalog-service/pipeline"),
		log:    deps.Logger.With().Str("component", "pipeline").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	e.failureMaxLength.Store(DefaultFailureMaxLength)
	return e
}

// SetFailureMaxLength changes the failure truncation limit.
func (e *Engine) SetFailureMaxLength(n int) {
	if n > 0 {
		e.failureMaxLength.Store(int64(n))
	}
}

// Result is the outcome of one run.
type Result struct {
	Status  taskqueue.Status
	Failure string
	// Superseded is the catalog terminated by this activation, if any.
	Superseded *catalog.Catalog
}

// Run drives an IN_PROGRESS task to COMPLETED or FAILED. The returned error
// is set only when the final state could not be stored.
func (e *Engine) Run(ctx context.Context, task *taskqueue.Task) (*Result, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "publish", trace.WithAttributes(
		attribute.String("publish_id", task.ID),
		attribute.String("catalog_code", task.CatalogCode),
		attribute.String("tracking_id", task.TrackingID),
	))
	defer span.End()

	log := e.log.With().
		Str("publish_id", task.ID).
		Str("catalog_code", task.CatalogCode).
		Str("tracking_id", task.TrackingID).
		Logger()
	log.Info().Msg("Publishing catalog")

	cat, err := database.GetCatalogByID(ctx, e.Pool, task.CatalogID)
	if err != nil {
		return e.fail(ctx, log, task, internalError(fmt.Errorf("load catalog: %w", err)), start)
	}

	superseded, err := e.execute(ctx, log, task, cat)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return e.fail(ctx, log, task, err, start)
	}

	e.afterActivation(ctx, log, task, cat, superseded)
	e.recordPublishing(taskqueue.StatusCompleted, start)
	log.Info().Dur("duration", time.Since(start)).Msg("Catalog activated")
	return &Result{Status: taskqueue.StatusCompleted, Superseded: superseded}, nil
}

func (e *Engine) execute(ctx context.Context, log zerolog.Logger, task *taskqueue.Task, cat *catalog.Catalog) (*catalog.Catalog, error) {
	content, err := e.fetchPhase(ctx, task)
	if err != nil {
		return nil, err
	}

	if err := e.phase(ctx, "prepare", func(ctx context.Context) error {
		return e.Prodo.Prepare(ctx, cat.Code)
	}); err != nil {
		return nil, err
	}

	parsed, err := e.parsePhase(ctx, content)
	if err != nil {
		return nil, err
	}
	if err := e.phase(ctx, "validate", func(ctx context.Context) error {
		return e.validate(ctx, cat, parsed)
	}); err != nil {
		return nil, err
	}

	if err := e.persistPhase(ctx, task, cat, parsed, content); err != nil {
		return nil, err
	}

	if err := e.phase(ctx, "activated", func(ctx context.Context) error {
		return e.Prodo.Activated(ctx, cat.Code)
	}); err != nil {
		log.Warn().Err(err).Msg("Activated callback failed, continuing")
		if e.Metrics != nil {
			e.Metrics.RecordClientRequest("prodo_activated", "failed")
		}
	}

	now := e.now()
	if err := e.phase(ctx, "franz", func(ctx context.Context) error {
		return e.Franz.PushCatalogPublished(ctx, clients.CatalogPublished{
			CatalogCode: cat.Code,
			TitleCode:   cat.TitleCode,
			Header:      clients.EventHeader{EventID: uuid.NewString(), TrackingID: task.TrackingID, CreatedAt: now},
			PublishedAt: now,
		})
	}); err != nil {
		return nil, err
	}

	var superseded *catalog.Catalog
	err = e.phase(ctx, "activate", func(ctx context.Context) error {
		return database.WithTx(ctx, e.Pool, func(tx pgx.Tx) error {
			locked, err := database.GetCatalogForUpdate(ctx, tx, cat.Code)
			if err != nil {
				return fmt.Errorf("lock catalog: %w", err)
			}
			at := e.now()
			previous, err := database.Activate(ctx, tx, locked, at)
			if err != nil {
				return err
			}
			if err := e.Queue.Complete(ctx, tx, task.ID, at); err != nil {
				return err
			}
			superseded = previous
			*cat = *locked
			return nil
		})
	})
	if err != nil {
		return nil, internalError(err)
	}
	return superseded, nil
}

// phase runs fn inside a span named after the phase.
func (e *Engine) phase(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := e.tracer.Start(ctx, name)
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (e *Engine) fail(ctx context.Context, log zerolog.Logger, task *taskqueue.Task, cause error, start time.Time) (*Result, error) {
	failure := Truncate(FailureOf(cause), int(e.failureMaxLength.Load()))
	log.Warn().Err(cause).Str("failure", failure).Msg("Publish failed")

	if err := e.Queue.Fail(ctx, task.ID, failure); err != nil {
		log.Error().Err(err).Msg("Failed to store task failure")
		return nil, err
	}
	e.recordPublishing(taskqueue.StatusFailed, start)

	e.notify(ctx, log, task.Publisher, clients.StatusNotification{
		PublishID:   task.ID,
		TitleCode:   titleOf(task.CatalogCode),
		CatalogCode: task.CatalogCode,
		Status:      clients.NotifyFailed,
		Reason:      failure,
	})
	e.emit(ctx, task, audit.ActionPublish, task.CatalogCode, string(taskqueue.StatusFailed))
	return &Result{Status: taskqueue.StatusFailed, Failure: failure}, nil
}

func (e *Engine) afterActivation(ctx context.Context, log zerolog.Logger, task *taskqueue.Task, cat *catalog.Catalog, superseded *catalog.Catalog) {
	if e.Resolver != nil {
		e.Resolver.Invalidate(ctx, cat.TitleCode)
	}

	e.notify(ctx, log, task.Publisher, clients.StatusNotification{
		PublishID:   task.ID,
		TitleCode:   cat.TitleCode,
		CatalogCode: cat.Code,
		Status:      clients.NotifyActivated,
	})
	e.emit(ctx, task, audit.ActionPublish, cat.Code, clients.NotifyActivated)

	if superseded == nil {
		return
	}
	log.Info().Str("superseded", superseded.Code).Msg("Previous catalog terminated")
	e.emit(ctx, task, audit.ActionTerminate, superseded.Code, clients.NotifyTerminated)

	last, err := e.Queue.LastCompleted(ctx, e.Pool, superseded.ID)
	if err != nil {
		// Migrated catalogs have no task to notify.
		log.Debug().Err(err).Str("superseded", superseded.Code).Msg("No publish to notify about termination")
		return
	}
	e.notify(ctx, log, last.Publisher, clients.StatusNotification{
		PublishID:   last.ID,
		TitleCode:   superseded.TitleCode,
		CatalogCode: superseded.Code,
		Status:      clients.NotifyTerminated,
	})
}

func (e *Engine) notify(ctx context.Context, log zerolog.Logger, tool string, note clients.StatusNotification) {
	if e.Notifier == nil || tool == "" {
		return
	}
	if err := e.Notifier.Notify(ctx, tool, note); err != nil {
		log.Warn().Err(err).
			Str("tool", tool).
			Str("status", note.Status).
			Msg("Tool notification failed")
	}
}

func (e *Engine) emit(ctx context.Context, task *taskqueue.Task, action, catalogCode, status string) {
	if e.Audit == nil {
		return
	}
	entry := audit.NewEntry(action, catalogCode, status)
	entry.TrackingID = task.TrackingID
	entry.PublishID = task.ID
	if task.Node != nil {
		entry.Processor = *task.Node
	}
	if task.Requester != nil {
		entry.Requester = *task.Requester
	}
	e.Audit.Emit(ctx, entry)
}

func (e *Engine) recordPublishing(status taskqueue.Status, start time.Time) {
	if e.Metrics != nil {
		e.Metrics.RecordPublishing(string(status), time.Since(start))
	}
}

func titleOf(catalogCode string) string {
	code, err := catalog.ParseCode(catalogCode)
	if err != nil {
		return ""
	}
	return code.Title
}
