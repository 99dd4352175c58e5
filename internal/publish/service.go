// Package publish accepts publish, republish and migrate requests and turns
// them into catalog rows and PENDING tasks. The pipeline package runs the
// tasks.
package publish

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kosarica/catalog-service/internal/apperror"
	"github.com/kosarica/catalog-service/internal/audit"
	"github.com/kosarica/catalog-service/internal/catalog"
	"github.com/kosarica/catalog-service/internal/clients"
	"github.com/kosarica/catalog-service/internal/database"
	"github.com/kosarica/catalog-service/internal/taskqueue"
	"github.com/rs/zerolog"
)

// Origin identifies who sent a request.
type Origin struct {
	TrackingID string
	// Requester is the x-np-emitter-id of the caller, if any.
	Requester string
}

// Submission is a v1 publish request.
type Submission struct {
	Origin
	// Tool receives status notifications. Empty means catool.
	Tool        string
	URL         string
	CatalogCode string
	PublishID   string
}

// SubmissionV2 is a publish request whose version is chosen by the server.
type SubmissionV2 struct {
	Origin
	Tool        string
	URL         string
	TitleCode   string
	CatalogType string
	PublishID   string
}

// Republication asks to publish an existing catalog again from its stored url.
type Republication struct {
	Origin
	Tool        string
	CatalogCode string
	PublishID   string
}

// Accepted is the outcome of a successful submission.
type Accepted struct {
	PublishID   string
	CatalogCode string
	// Replay is set when the request repeated an accepted one and nothing changed.
	Replay bool
}

// Invalidator drops cached active catalog answers of a title.
type Invalidator interface {
	Invalidate(ctx context.Context, titleCode string)
}

// Notifier delivers tool status notifications.
type Notifier interface {
	Notify(ctx context.Context, tool string, note clients.StatusNotification) error
}

// Service validates and stores publish requests.
type Service struct {
	pool     *pgxpool.Pool
	queue    *taskqueue.TaskQueue
	audit    *audit.Emitter
	resolver Invalidator
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time
}

// NewService creates a publish service. audit, resolver and notifier may be nil.
func NewService(pool *pgxpool.Pool, queue *taskqueue.TaskQueue, emitter *audit.Emitter, resolver Invalidator, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{
		pool:     pool,
		queue:    queue,
		audit:    emitter,
		resolver: resolver,
		notifier: notifier,
		log:      log.With().Str("component", "publish").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func validateTool(tool string) (string, error) {
	if tool == "" {
		return clients.ToolCatool, nil
	}
	if !clients.KnownTool(tool) {
		return "", apperror.Validation(fmt.Sprintf("Unknown tool '%s'.", tool)).With("tool", tool)
	}
	return tool, nil
}

func validateURL(url string) error {
	if err := catalog.ValidateArchiveURL(url); err != nil {
		return apperror.Validation(err.Error()).With("field", "url")
	}
	return nil
}

func parseCatalogCode(code string) (catalog.Code, error) {
	parsed, err := catalog.ParseCode(code)
	if err != nil {
		return catalog.Code{}, apperror.Validation(err.Error()).With("field", "catalog_code")
	}
	return parsed, nil
}

func validatePublishID(id string) error {
	if err := catalog.ValidatePublishID(id); err != nil {
		return apperror.Validation(err.Error()).With("field", "publish_id")
	}
	return nil
}

// Submit accepts a v1 publish request. The title, catalog and task rows are
// written in one transaction.
func (s *Service) Submit(ctx context.Context, sub Submission) (*Accepted, error) {
	tool, err := validateTool(sub.Tool)
	if err != nil {
		return nil, err
	}
	if err := validateURL(sub.URL); err != nil {
		return nil, err
	}
	code, err := parseCatalogCode(sub.CatalogCode)
	if err != nil {
		return nil, err
	}
	if err := validatePublishID(sub.PublishID); err != nil {
		return nil, err
	}

	same := func(t *taskqueue.Task) bool { return t.CatalogCode == sub.CatalogCode }
	var accepted *Accepted
	err = database.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if replay, err := s.replay(ctx, tx, sub.PublishID, same); err != nil || replay != nil {
			accepted = replay
			return err
		}

		title, err := database.EnsureTitle(ctx, tx, code.Title)
		if err != nil {
			return err
		}
		if err := database.LockTitle(ctx, tx, title.ID); err != nil {
			return err
		}
		// The lock may have been held by a request with the same publish id.
		if replay, err := s.replay(ctx, tx, sub.PublishID, same); err != nil || replay != nil {
			accepted = replay
			return err
		}

		cat, err := database.GetCatalog(ctx, tx, sub.CatalogCode)
		switch {
		case errors.Is(err, database.ErrNotFound):
			cat = &catalog.Catalog{Code: sub.CatalogCode, TitleID: title.ID, Type: code.Type, Version: code.Version, URL: sub.URL}
			if err := database.CreateCatalog(ctx, tx, cat); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if err := s.checkPublishable(ctx, tx, cat, false); err != nil {
				return err
			}
			if err := database.UpdateCatalogURL(ctx, tx, cat.ID, sub.URL); err != nil {
				return err
			}
		}

		if err := s.createTask(ctx, tx, sub.PublishID, title.ID, cat, tool, sub.URL, sub.Origin); err != nil {
			return err
		}
		accepted = &Accepted{PublishID: sub.PublishID, CatalogCode: sub.CatalogCode}
		return nil
	})
	if err != nil {
		return nil, s.wrap(err)
	}

	s.afterAccept(ctx, audit.ActionPublish, accepted, sub.Origin)
	return accepted, nil
}

// SubmitV2 accepts a publish request for the next version of a (title, type).
func (s *Service) SubmitV2(ctx context.Context, sub SubmissionV2) (*Accepted, error) {
	tool, err := validateTool(sub.Tool)
	if err != nil {
		return nil, err
	}
	if err := validateURL(sub.URL); err != nil {
		return nil, err
	}
	if _, err := catalog.ParseCode(sub.TitleCode); err == nil || !catalog.ValidTitleCode(sub.TitleCode) {
		return nil, apperror.Validation(fmt.Sprintf("title_code '%s' is not a valid title code.", sub.TitleCode)).
			With("field", "title_code")
	}
	typ, ok := catalog.ParseType(sub.CatalogType)
	if !ok {
		return nil, apperror.Validation(catalog.TypeDescription).With("field", "catalog_type")
	}
	if err := validatePublishID(sub.PublishID); err != nil {
		return nil, err
	}

	same := func(t *taskqueue.Task) bool {
		code, err := catalog.ParseCode(t.CatalogCode)
		return err == nil && code.Title == sub.TitleCode && code.Type == typ
	}
	var accepted *Accepted
	err = database.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if replay, err := s.replay(ctx, tx, sub.PublishID, same); err != nil || replay != nil {
			accepted = replay
			return err
		}

		title, err := database.EnsureTitle(ctx, tx, sub.TitleCode)
		if err != nil {
			return err
		}
		if err := database.LockTitle(ctx, tx, title.ID); err != nil {
			return err
		}
		if replay, err := s.replay(ctx, tx, sub.PublishID, same); err != nil || replay != nil {
			accepted = replay
			return err
		}

		version, err := database.MaxVersion(ctx, tx, title.ID, typ)
		if err != nil {
			return err
		}
		code := catalog.FormatCode(sub.TitleCode, typ, version+1)
		if len(code) > catalog.MaxCodeLength {
			return apperror.Validation(fmt.Sprintf("catalog_code is longer than %d characters", catalog.MaxCodeLength)).
				With("field", "title_code")
		}

		cat := &catalog.Catalog{Code: code, TitleID: title.ID, Type: typ, Version: version + 1, URL: sub.URL}
		if err := database.CreateCatalog(ctx, tx, cat); err != nil {
			return err
		}
		if err := s.createTask(ctx, tx, sub.PublishID, title.ID, cat, tool, sub.URL, sub.Origin); err != nil {
			return err
		}
		accepted = &Accepted{PublishID: sub.PublishID, CatalogCode: code}
		return nil
	})
	if err != nil {
		return nil, s.wrap(err)
	}

	s.afterAccept(ctx, audit.ActionPublish, accepted, sub.Origin)
	return accepted, nil
}

// Republish creates a new task for an existing catalog from its stored url.
// A terminated catalog becomes active again when the task completes.
func (s *Service) Republish(ctx context.Context, rep Republication) (*Accepted, error) {
	if rep.Tool == "" {
		return nil, apperror.Validation("Field 'tool' is required.").With("field", "tool")
	}
	tool, err := validateTool(rep.Tool)
	if err != nil {
		return nil, err
	}
	if _, err := parseCatalogCode(rep.CatalogCode); err != nil {
		return nil, err
	}
	if err := validatePublishID(rep.PublishID); err != nil {
		return nil, err
	}

	same := func(t *taskqueue.Task) bool { return t.CatalogCode == rep.CatalogCode }
	var accepted *Accepted
	err = database.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if replay, err := s.replay(ctx, tx, rep.PublishID, same); err != nil || replay != nil {
			accepted = replay
			return err
		}

		cat, err := database.GetCatalog(ctx, tx, rep.CatalogCode)
		if errors.Is(err, database.ErrNotFound) {
			return apperror.CatalogNotFound(rep.CatalogCode).WithStatus(http.StatusNotFound)
		}
		if err != nil {
			return err
		}
		if err := database.LockTitle(ctx, tx, cat.TitleID); err != nil {
			return err
		}
		if replay, err := s.replay(ctx, tx, rep.PublishID, same); err != nil || replay != nil {
			accepted = replay
			return err
		}
		if err := s.checkPublishable(ctx, tx, cat, true); err != nil {
			return err
		}

		if err := s.createTask(ctx, tx, rep.PublishID, cat.TitleID, cat, tool, cat.URL, rep.Origin); err != nil {
			return err
		}
		accepted = &Accepted{PublishID: rep.PublishID, CatalogCode: cat.Code}
		return nil
	})
	if err != nil {
		return nil, s.wrap(err)
	}

	s.afterAccept(ctx, audit.ActionRepublish, accepted, rep.Origin)
	return accepted, nil
}

// replay looks up an existing task with the given publish id. It returns an
// Accepted replay when same reports the task belongs to this request, and a
// client error when the id is taken by another catalog.
func (s *Service) replay(ctx context.Context, tx pgx.Tx, publishID string, same func(*taskqueue.Task) bool) (*Accepted, error) {
	existing, err := s.queue.Get(ctx, tx, publishID)
	if errors.Is(err, taskqueue.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !same(existing) {
		return nil, apperror.Client("publish_id is already used for another catalog.").
			With("publish_id", publishID).
			With("catalog_code", existing.CatalogCode)
	}
	return &Accepted{PublishID: existing.ID, CatalogCode: existing.CatalogCode, Replay: true}, nil
}

// checkPublishable rejects a catalog that has a running task, or one that is
// already published unless this is a republish.
func (s *Service) checkPublishable(ctx context.Context, tx pgx.Tx, cat *catalog.Catalog, republish bool) error {
	tasks, err := s.queue.ByCatalog(ctx, tx, cat.ID)
	if err != nil {
		return err
	}
	completed := cat.ActivatedAt != nil
	for _, t := range tasks {
		switch t.Status {
		case taskqueue.StatusPending, taskqueue.StatusInProgress:
			return apperror.Client("Catalog is already being published.").
				With("catalog_code", cat.Code).
				With("publish_id", t.ID)
		case taskqueue.StatusCompleted:
			completed = true
		}
	}
	if completed && !republish {
		return apperror.Client("Catalog is already published.").With("catalog_code", cat.Code)
	}
	return nil
}

func (s *Service) createTask(ctx context.Context, tx pgx.Tx, publishID string, titleID int64, cat *catalog.Catalog, tool, url string, origin Origin) error {
	return s.queue.Create(ctx, tx, taskqueue.NewTask{
		ID:          publishID,
		TitleID:     titleID,
		CatalogID:   cat.ID,
		CatalogCode: cat.Code,
		Publisher:   tool,
		TrackingID:  origin.TrackingID,
		URL:         url,
		Requester:   origin.Requester,
	})
}

// wrap keeps domain errors and maps a lost insert race to a client error.
func (s *Service) wrap(err error) error {
	if _, ok := apperror.As(err); ok {
		return err
	}
	if database.IsUniqueViolation(err) {
		return apperror.Client("Catalog or publish_id is already being published.").WithCause(err)
	}
	return apperror.Internal(err)
}

func (s *Service) afterAccept(ctx context.Context, action string, a *Accepted, origin Origin) {
	log := s.log.With().
		Str("publish_id", a.PublishID).
		Str("catalog_code", a.CatalogCode).
		Str("tracking_id", origin.TrackingID).
		Logger()
	if a.Replay {
		log.Info().Msg("Publish request replayed")
		return
	}
	log.Info().Str("action", action).Msg("Publish request accepted")

	entry := audit.NewEntry(action, a.CatalogCode, string(taskqueue.StatusPending))
	entry.PublishID = a.PublishID
	s.emit(ctx, entry, origin)
}

func (s *Service) emit(ctx context.Context, entry audit.Entry, origin Origin) {
	if s.audit == nil {
		return
	}
	entry.TrackingID = origin.TrackingID
	entry.Requester = origin.Requester
	s.audit.Emit(ctx, entry)
}

func (s *Service) invalidate(ctx context.Context, title string) {
	if s.resolver != nil {
		s.resolver.Invalidate(ctx, title)
	}
}
