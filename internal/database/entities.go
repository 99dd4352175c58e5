package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"github.com/kosarica/catalog-service/internal/catalog"
)

// Fields are the free-form values of an entity. Numbers decode as
// json.Number so large integers keep their exact value.
type Fields map[string]any

// UnmarshalJSON implements json.Unmarshaler.
func (f *Fields) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := catalog.DecodeJSON(data, &m); err != nil {
		return err
	}
	*f = m
	return nil
}

// Entity is a stored entity, optionally scoped to the catalog it was read from.
type Entity struct {
	ID        string          `db:"id" json:"id"`
	Code      string          `db:"code" json:"code"`
	EType     int             `db:"etype" json:"-"`
	Fields    Fields          `db:"fields" json:"fields"`
	Metadata  json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"-"`
}

// NewEntity is an entity to attach to a catalog.
type NewEntity struct {
	ID       string
	Code     string
	EType    int
	Fields   map[string]any
	Metadata json.RawMessage
}

const entityColumns = "ed.id::text AS id, ce.code, ce.etype, ed.fields, ed.metadata, ed.created_at"

func selectEntities(ctx context.Context, q Querier, b sq.SelectBuilder) ([]Entity, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	entities := make([]Entity, 0)
	if err := pgxscan.Select(ctx, q, &entities, sql, args...); err != nil {
		return nil, fmt.Errorf("select entities: %w", err)
	}
	return entities, nil
}

func catalogEntitySelect() sq.SelectBuilder {
	return Builder.Select(entityColumns).
		From("catalog_entity ce").
		Join("entity_data ed ON ed.id = ce.entity_id")
}

// AttachEntities stores entities and links them to a catalog. Entity rows
// are immutable: an id that already exists keeps its stored values.
func AttachEntities(ctx context.Context, tx pgx.Tx, catalogID int64, entities []NewEntity) error {
	if len(entities) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range entities {
		fields := e.Fields
		if fields == nil {
			fields = map[string]any{}
		}
		batch.Queue(`
			INSERT INTO entity_data (id, code, etype, fields, metadata)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING`,
			e.ID, e.Code, e.EType, fields, e.Metadata)
		batch.Queue(`
			INSERT INTO catalog_entity (catalog_id, entity_id, etype, code)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (catalog_id, entity_id) DO NOTHING`,
			catalogID, e.ID, e.EType, e.Code)
	}

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("attach entity: %w", err)
		}
	}
	return results.Close()
}

// DetachEntities removes every entity link of a catalog.
func DetachEntities(ctx context.Context, tx pgx.Tx, catalogID int64) error {
	_, err := tx.Exec(ctx, `DELETE FROM catalog_entity WHERE catalog_id = $1`, catalogID)
	return err
}

// EntitiesByIDs returns stored entities by id, regardless of catalog.
func EntitiesByIDs(ctx context.Context, q Querier, ids []string) ([]Entity, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return selectEntities(ctx, q, Builder.
		Select("id::text AS id", "code", "etype", "fields", "metadata", "created_at").
		From("entity_data").
		Where("id = ANY(?::uuid[])", ids))
}

// CatalogEntitiesByCodes returns the entities of one type that the current
// publication of a catalog holds under the given codes.
func CatalogEntitiesByCodes(ctx context.Context, q Querier, catalogID int64, etype int, codes []string) ([]Entity, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	return selectEntities(ctx, q, catalogEntitySelect().
		Where(sq.Eq{"ce.catalog_id": catalogID, "ce.etype": etype}).
		Where("ce.code = ANY(?)", codes))
}

// CatalogEntities returns the entities of one type in a catalog ordered by id.
// afterID and limit page through the result; limit < 0 means unbounded.
func CatalogEntities(ctx context.Context, q Querier, catalogID int64, etype int, afterID string, limit int) ([]Entity, error) {
	b := catalogEntitySelect().
		Where(sq.Eq{"ce.catalog_id": catalogID, "ce.etype": etype}).
		OrderBy("ed.id::text")
	if afterID != "" {
		b = b.Where("ed.id::text > ?", afterID)
	}
	if limit >= 0 {
		b = b.Limit(uint64(limit))
	}
	return selectEntities(ctx, q, b)
}

// CatalogEntity returns one entity of a catalog by type and code.
func CatalogEntity(ctx context.Context, q Querier, catalogID int64, etype int, code string) (*Entity, error) {
	entities, err := selectEntities(ctx, q, catalogEntitySelect().
		Where(sq.Eq{"ce.catalog_id": catalogID, "ce.etype": etype, "ce.code": code}).
		Limit(1))
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, ErrNotFound
	}
	return &entities[0], nil
}

// GetEntity returns a stored entity by id.
func GetEntity(ctx context.Context, q Querier, id string) (*Entity, error) {
	entities, err := EntitiesByIDs(ctx, q, []string{id})
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, ErrNotFound
	}
	return &entities[0], nil
}

// CatalogCodesOfEntity lists the codes of catalogs containing an entity.
func CatalogCodesOfEntity(ctx context.Context, q Querier, id string) ([]string, error) {
	return selectStrings(ctx, q, Builder.Select("c.code").
		From("catalog_entity ce").
		Join("catalog c ON c.id = ce.catalog_id").
		Where("ce.entity_id = ?::uuid", id).
		OrderBy("c.code"))
}

// TitleCodesOfEntity lists the codes of titles whose catalogs contain an entity.
func TitleCodesOfEntity(ctx context.Context, q Querier, id string) ([]string, error) {
	return selectStrings(ctx, q, Builder.Select("t.code").
		Distinct().
		From("catalog_entity ce").
		Join("catalog c ON c.id = ce.catalog_id").
		Join("title t ON t.id = c.title_id").
		Where("ce.entity_id = ?::uuid", id).
		OrderBy("t.code"))
}

func selectStrings(ctx context.Context, q Querier, b sq.SelectBuilder) ([]string, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	out := make([]string, 0)
	if err := pgxscan.Select(ctx, q, &out, sql, args...); err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	return out, nil
}
