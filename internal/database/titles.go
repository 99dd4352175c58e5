package database

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/kosarica/catalog-service/internal/catalog"
)

const titleColumns = "id, code, full_title_id, active"

// GetTitle returns the title with the given code, active or not.
func GetTitle(ctx context.Context, q Querier, code string) (*catalog.Title, error) {
	sql, args, err := Builder.Select(titleColumns).From("title").Where(sq.Eq{"code": code}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var t catalog.Title
	if err := pgxscan.Get(ctx, q, &t, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get title: %w", err)
	}
	return &t, nil
}

// EnsureTitle returns the title with the given code, creating an active one
// when it does not exist.
func EnsureTitle(ctx context.Context, q Querier, code string) (*catalog.Title, error) {
	var t catalog.Title
	err := pgxscan.Get(ctx, q, &t, `
		INSERT INTO title (code, full_title_id)
		VALUES ($1, $1)
		ON CONFLICT (code) DO UPDATE SET code = EXCLUDED.code
		RETURNING `+titleColumns, code)
	if err != nil {
		return nil, fmt.Errorf("ensure title: %w", err)
	}
	return &t, nil
}

// SetTitleActive flips the active flag of a title.
func SetTitleActive(ctx context.Context, q Querier, code string, active bool) error {
	sql, args, err := Builder.Update("title").Set("active", active).Where(sq.Eq{"code": code}).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("set title active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// LockTitle takes the transaction-scoped advisory lock of a title. Claims
// use the same key, so a title is never claimed while one of its
// submissions is being written.
func LockTitle(ctx context.Context, tx pgx.Tx, titleID int64) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, titleID); err != nil {
		return fmt.Errorf("lock title: %w", err)
	}
	return nil
}
