package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/kosarica/catalog-service/internal/catalog"
)

func catalogSelect() sq.SelectBuilder {
	return Builder.
		Select("c.id", "c.code", "c.title_id", "t.code AS title_code", "c.ctype",
			"c.version", "c.url", "c.activated_at", "c.terminated_at").
		From("catalog c").
		Join("title t ON t.id = c.title_id")
}

func getCatalog(ctx context.Context, q Querier, b sq.SelectBuilder) (*catalog.Catalog, error) {
	sql, args, err := b.Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var c catalog.Catalog
	if err := pgxscan.Get(ctx, q, &c, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get catalog: %w", err)
	}
	return &c, nil
}

func selectCatalogs(ctx context.Context, q Querier, b sq.SelectBuilder) ([]catalog.Catalog, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	catalogs := make([]catalog.Catalog, 0)
	if err := pgxscan.Select(ctx, q, &catalogs, sql, args...); err != nil {
		return nil, fmt.Errorf("select catalogs: %w", err)
	}
	return catalogs, nil
}

// GetCatalog returns a catalog by code.
func GetCatalog(ctx context.Context, q Querier, code string) (*catalog.Catalog, error) {
	return getCatalog(ctx, q, catalogSelect().Where(sq.Eq{"c.code": code}))
}

// GetCatalogForUpdate returns a catalog by code and locks its row.
func GetCatalogForUpdate(ctx context.Context, tx pgx.Tx, code string) (*catalog.Catalog, error) {
	return getCatalog(ctx, tx, catalogSelect().Where(sq.Eq{"c.code": code}).Suffix("FOR UPDATE OF c"))
}

// GetCatalogByID returns a catalog by primary key.
func GetCatalogByID(ctx context.Context, q Querier, id int64) (*catalog.Catalog, error) {
	return getCatalog(ctx, q, catalogSelect().Where(sq.Eq{"c.id": id}))
}

// CreateCatalog inserts a catalog row and fills in its id.
func CreateCatalog(ctx context.Context, q Querier, c *catalog.Catalog) error {
	sql, args, err := Builder.Insert("catalog").
		Columns("code", "title_id", "ctype", "version", "url", "activated_at", "terminated_at").
		Values(c.Code, c.TitleID, int(c.Type), c.Version, c.URL, c.ActivatedAt, c.TerminatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if err := q.QueryRow(ctx, sql, args...).Scan(&c.ID); err != nil {
		return fmt.Errorf("create catalog: %w", err)
	}
	return nil
}

// UpdateCatalogURL stores the archive url a catalog was last published from.
func UpdateCatalogURL(ctx context.Context, q Querier, id int64, url string) error {
	sql, args, err := Builder.Update("catalog").Set("url", url).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	_, err = q.Exec(ctx, sql, args...)
	return err
}

// MaxVersion returns the highest version of a (title, type), or 0.
func MaxVersion(ctx context.Context, q Querier, titleID int64, typ catalog.Type) (int, error) {
	sql, args, err := Builder.Select("COALESCE(MAX(version), 0)").From("catalog").
		Where(sq.Eq{"title_id": titleID, "ctype": int(typ)}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	var v int
	if err := q.QueryRow(ctx, sql, args...).Scan(&v); err != nil {
		return 0, fmt.Errorf("max version: %w", err)
	}
	return v, nil
}

func activeCondition() sq.Sqlizer {
	return sq.And{sq.NotEq{"c.activated_at": nil}, sq.Eq{"c.terminated_at": nil}}
}

// ActiveCatalogs returns the active catalogs of a title for the given types,
// ordered by type.
func ActiveCatalogs(ctx context.Context, q Querier, titleID int64, types []catalog.Type) ([]catalog.Catalog, error) {
	ctypes := make([]int, len(types))
	for i, t := range types {
		ctypes[i] = int(t)
	}
	return selectCatalogs(ctx, q, catalogSelect().
		Where(sq.Eq{"c.title_id": titleID, "c.ctype": ctypes}).
		Where(activeCondition()).
		OrderBy("c.ctype"))
}

// ActiveCatalogsOfType returns the active catalog of one type for every
// active title, ordered by title code.
func ActiveCatalogsOfType(ctx context.Context, q Querier, typ catalog.Type) ([]catalog.Catalog, error) {
	return selectCatalogs(ctx, q, catalogSelect().
		Where(sq.Eq{"c.ctype": int(typ), "t.active": true}).
		Where(activeCondition()).
		OrderBy("t.code"))
}

// ActiveCatalogForUpdate locks and returns the active catalog of a
// (title, type). It returns ErrNotFound when none is active.
func ActiveCatalogForUpdate(ctx context.Context, tx pgx.Tx, titleID int64, typ catalog.Type) (*catalog.Catalog, error) {
	return getCatalog(ctx, tx, catalogSelect().
		Where(sq.Eq{"c.title_id": titleID, "c.ctype": int(typ)}).
		Where(activeCondition()).
		Suffix("FOR UPDATE OF c"))
}

// TerminateCatalog sets terminated_at on a catalog.
func TerminateCatalog(ctx context.Context, q Querier, id int64, at time.Time) error {
	sql, args, err := Builder.Update("catalog").Set("terminated_at", at).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("terminate catalog: %w", err)
	}
	return nil
}

// Activate makes a catalog the active one of its (title, type) inside tx.
// The previously active catalog, if any, is terminated at the same instant
// and returned. Activating the catalog that is already active is a no-op.
func Activate(ctx context.Context, tx pgx.Tx, c *catalog.Catalog, at time.Time) (*catalog.Catalog, error) {
	previous, err := ActiveCatalogForUpdate(ctx, tx, c.TitleID, c.Type)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if previous != nil {
		if previous.ID == c.ID {
			c.ActivatedAt = previous.ActivatedAt
			c.TerminatedAt = nil
			return nil, nil
		}
		if err := TerminateCatalog(ctx, tx, previous.ID, at); err != nil {
			return nil, err
		}
		previous.TerminatedAt = &at
	}

	if err := SetCatalogDates(ctx, tx, c.ID, &at, nil); err != nil {
		return nil, fmt.Errorf("activate catalog: %w", err)
	}
	c.ActivatedAt = &at
	c.TerminatedAt = nil
	return previous, nil
}

// SetCatalogDates overwrites both lifecycle timestamps of a catalog.
func SetCatalogDates(ctx context.Context, q Querier, id int64, activatedAt, terminatedAt *time.Time) error {
	sql, args, err := Builder.Update("catalog").
		Set("activated_at", activatedAt).
		Set("terminated_at", terminatedAt).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("set catalog dates: %w", err)
	}
	return nil
}
