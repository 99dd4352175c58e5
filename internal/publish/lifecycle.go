package publish

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kosarica/catalog-service/internal/apperror"
	"github.com/kosarica/catalog-service/internal/audit"
	"github.com/kosarica/catalog-service/internal/catalog"
	"github.com/kosarica/catalog-service/internal/clients"
	"github.com/kosarica/catalog-service/internal/database"
	"github.com/kosarica/catalog-service/internal/taskqueue"
)

// Migrate outcomes, returned to the caller as plain text.
const (
	Migrated          = "Migrated"
	AlreadyMigrated   = "Already migrated"
	TerminatedDateSet = "Terminated date was set."
)

// Migration registers a historical catalog without running the pipeline.
type Migration struct {
	Origin
	URL          string
	CatalogCode  string
	ActivatedAt  time.Time
	TerminatedAt *time.Time
}

// Migrate stores a catalog with the given lifecycle dates. Repeating a
// migration changes nothing, except that a missing terminated_at is filled
// in when one is supplied.
func (s *Service) Migrate(ctx context.Context, m Migration) (string, error) {
	if err := validateURL(m.URL); err != nil {
		return "", err
	}
	code, err := parseCatalogCode(m.CatalogCode)
	if err != nil {
		return "", err
	}
	if m.ActivatedAt.IsZero() {
		return "", apperror.Validation("Field 'activated_at' is required.").With("field", "activated_at")
	}

	var outcome string
	var superseded *catalog.Catalog
	err = database.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		title, err := database.EnsureTitle(ctx, tx, code.Title)
		if err != nil {
			return err
		}
		if err := database.LockTitle(ctx, tx, title.ID); err != nil {
			return err
		}

		existing, err := database.GetCatalog(ctx, tx, m.CatalogCode)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return err
		}
		if existing != nil {
			if existing.TerminatedAt == nil && m.TerminatedAt != nil {
				outcome = TerminatedDateSet
				return database.TerminateCatalog(ctx, tx, existing.ID, *m.TerminatedAt)
			}
			outcome = AlreadyMigrated
			return nil
		}

		if m.TerminatedAt == nil {
			active, err := database.ActiveCatalogForUpdate(ctx, tx, title.ID, code.Type)
			switch {
			case errors.Is(err, database.ErrNotFound):
			case err != nil:
				return err
			default:
				if err := database.TerminateCatalog(ctx, tx, active.ID, m.ActivatedAt); err != nil {
					return err
				}
				superseded = active
			}
		}

		activated := m.ActivatedAt
		cat := &catalog.Catalog{
			Code:         m.CatalogCode,
			TitleID:      title.ID,
			Type:         code.Type,
			Version:      code.Version,
			URL:          m.URL,
			ActivatedAt:  &activated,
			TerminatedAt: m.TerminatedAt,
		}
		if err := database.CreateCatalog(ctx, tx, cat); err != nil {
			return err
		}
		outcome = Migrated
		return nil
	})
	if err != nil {
		return "", s.wrap(err)
	}

	s.log.Info().
		Str("catalog_code", m.CatalogCode).
		Str("tracking_id", m.TrackingID).
		Str("outcome", outcome).
		Msg("Catalog migrated")
	if outcome != AlreadyMigrated {
		s.invalidate(ctx, code.Title)
		s.emit(ctx, audit.NewEntry(audit.ActionMigrate, m.CatalogCode, outcome), m.Origin)
	}
	if superseded != nil {
		s.terminated(ctx, superseded, m.Origin)
	}
	return outcome, nil
}

// TerminateActive ends the active catalog of a (title, type). It returns the
// terminated catalog, or nil when none was active.
func (s *Service) TerminateActive(ctx context.Context, titleCode, catalogType string, origin Origin) (*catalog.Catalog, error) {
	typ, ok := catalog.ParseType(catalogType)
	if !ok {
		return nil, apperror.Client(catalog.TypeDescription).With("catalog_type", catalogType)
	}
	title, err := database.GetTitle(ctx, s.pool, titleCode)
	if errors.Is(err, database.ErrNotFound) || (err == nil && !title.Active) {
		return nil, apperror.TitleNotFound(titleCode)
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}

	var terminated *catalog.Catalog
	err = database.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		active, err := database.ActiveCatalogForUpdate(ctx, tx, title.ID, typ)
		if errors.Is(err, database.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		at := s.now()
		if err := database.TerminateCatalog(ctx, tx, active.ID, at); err != nil {
			return err
		}
		active.TerminatedAt = &at
		terminated = active
		return nil
	})
	if err != nil {
		return nil, s.wrap(err)
	}
	if terminated == nil {
		return nil, nil
	}

	s.log.Info().Str("catalog_code", terminated.Code).Str("tracking_id", origin.TrackingID).Msg("Active catalog terminated")
	s.invalidate(ctx, titleCode)
	s.terminated(ctx, terminated, origin)
	return terminated, nil
}

// terminated records the termination and tells the tool that published the
// catalog last.
func (s *Service) terminated(ctx context.Context, cat *catalog.Catalog, origin Origin) {
	entry := audit.NewEntry(audit.ActionTerminate, cat.Code, clients.NotifyTerminated)
	s.emit(ctx, entry, origin)

	if s.notifier == nil {
		return
	}
	last, err := s.queue.LastCompleted(ctx, s.pool, cat.ID)
	if err != nil {
		if !errors.Is(err, taskqueue.ErrNotFound) {
			s.log.Warn().Err(err).Str("catalog_code", cat.Code).Msg("Failed to load last publish")
		}
		return
	}
	err = s.notifier.Notify(ctx, last.Publisher, clients.StatusNotification{
		PublishID:   last.ID,
		TitleCode:   cat.TitleCode,
		CatalogCode: cat.Code,
		Status:      clients.NotifyTerminated,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("catalog_code", cat.Code).Msg("Tool notification failed")
	}
}
