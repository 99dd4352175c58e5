package resolver

import (
	"context"
	"errors"

	"github.com/kosarica/catalog-service/internal/catalog"
	"github.com/kosarica/catalog-service/internal/database"
)

// DBStore reads the resolver inputs from Postgres.
type DBStore struct {
	db database.Querier
}

// NewDBStore creates a store over a pool.
func NewDBStore(db database.Querier) *DBStore {
	return &DBStore{db: db}
}

func (s *DBStore) Title(ctx context.Context, code string) (*catalog.Title, error) {
	t, err := database.GetTitle(ctx, s.db, code)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrTitleNotFound
	}
	return t, err
}

func (s *DBStore) ActiveCatalogs(ctx context.Context, titleID int64, types []catalog.Type) ([]catalog.Catalog, error) {
	return database.ActiveCatalogs(ctx, s.db, titleID, types)
}

func (s *DBStore) ActiveCatalogsOfType(ctx context.Context, typ catalog.Type) ([]catalog.Catalog, error) {
	return database.ActiveCatalogsOfType(ctx, s.db, typ)
}
