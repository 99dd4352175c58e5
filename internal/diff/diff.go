// Package diff computes the entity changes between two catalog snapshots.
package diff

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/kosarica/catalog-service/internal/apperror"
	"github.com/kosarica/catalog-service/internal/catalog"
	"github.com/kosarica/catalog-service/internal/database"
	"github.com/kosarica/catalog-service/internal/metrics"
)

// ChangeType is the kind of change of one entity.
type ChangeType string

const (
	Create ChangeType = "CREATE"
	Update ChangeType = "UPDATE"
	Delete ChangeType = "DELETE"
)

// Record is one entity change.
type Record struct {
	ID         string         `json:"id"`
	Code       string         `json:"code"`
	ChangeType ChangeType     `json:"change_type"`
	Fields     map[string]any `json:"fields"`
}

// Query is a diff request. Request-level parsing (page size, cursor format)
// happens at the transport edge; the engine checks the entity type and the
// catalog codes.
type Query struct {
	Destination string
	Source      string // empty for an initial diff
	EntityType  string
	// Fields restricts the compared and returned keys. nil means all.
	Fields []string
	LastID string
	// Limit < 0 means unbounded.
	Limit int
}

// ParseFields splits a comma-separated field filter.
func ParseFields(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Compute returns the changes from source to destination ordered by id.
// A nil source is an initial diff where everything is created. An entity id
// keeps its code across catalogs, so ids are unique among the records and
// the id alone is a complete page cursor.
func Compute(destination, source []database.Entity, fields []string) []Record {
	byCode := make(map[string]database.Entity, len(source))
	for _, e := range source {
		byCode[e.Code] = e
	}

	records := make([]Record, 0, len(destination))
	seen := make(map[string]struct{}, len(destination))
	for _, dst := range destination {
		seen[dst.Code] = struct{}{}
		src, existed := byCode[dst.Code]
		switch {
		case !existed:
			records = append(records, newRecord(dst, Create, fields))
		case changed(src.Fields, dst.Fields, fields):
			records = append(records, newRecord(dst, Update, fields))
		}
	}
	for _, src := range source {
		if _, ok := seen[src.Code]; !ok {
			records = append(records, newRecord(src, Delete, fields))
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		if a.ChangeType != b.ChangeType {
			return a.ChangeType < b.ChangeType
		}
		return a.Code < b.Code
	})
	return records
}

// Page returns the records strictly after lastID, at most limit of them.
func Page(records []Record, lastID string, limit int) []Record {
	start := 0
	if lastID != "" {
		start = sort.Search(len(records), func(i int) bool { return records[i].ID > lastID })
	}
	page := records[start:]
	if limit >= 0 && len(page) > limit {
		page = page[:limit]
	}
	return page
}

func newRecord(e database.Entity, ct ChangeType, fields []string) Record {
	return Record{ID: e.ID, Code: e.Code, ChangeType: ct, Fields: project(e.Fields, fields)}
}

// project keeps only the requested keys present on the entity.
func project(all map[string]any, fields []string) map[string]any {
	if fields == nil {
		if all == nil {
			return map[string]any{}
		}
		return all
	}
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := all[f]; ok {
			out[f] = v
		}
	}
	return out
}

func changed(before, after map[string]any, fields []string) bool {
	if fields == nil {
		return !catalog.EqualFields(before, after)
	}
	for _, f := range fields {
		b, bok := before[f]
		a, aok := after[f]
		if bok != aok || !catalog.EqualValues(b, a) {
			return true
		}
	}
	return false
}

// Store loads catalogs and their entities.
type Store interface {
	Catalog(ctx context.Context, code string) (*catalog.Catalog, error)
	Entities(ctx context.Context, catalogID int64, etype int) ([]database.Entity, error)
}

// DBStore reads diff inputs from Postgres.
type DBStore struct {
	db database.Querier
}

// NewDBStore creates a store over a pool.
func NewDBStore(db database.Querier) *DBStore {
	return &DBStore{db: db}
}

func (s *DBStore) Catalog(ctx context.Context, code string) (*catalog.Catalog, error) {
	return database.GetCatalog(ctx, s.db, code)
}

func (s *DBStore) Entities(ctx context.Context, catalogID int64, etype int) ([]database.Entity, error) {
	return database.CatalogEntities(ctx, s.db, catalogID, etype, "", -1)
}

// Engine serves diff requests.
type Engine struct {
	store   Store
	metrics *metrics.Recorder
}

// NewEngine creates a diff engine.
func NewEngine(store Store, m *metrics.Recorder) *Engine {
	return &Engine{store: store, metrics: m}
}

// Diff returns one page of changes for q.
func (e *Engine) Diff(ctx context.Context, q Query) ([]Record, error) {
	start := time.Now()
	et, ok := catalog.LookupEntityType(q.EntityType)
	if !ok {
		return nil, apperror.Client(catalog.EntityTypeDescription).With("entity_type", q.EntityType)
	}

	destination, err := e.entities(ctx, q.Destination, et)
	if err != nil {
		return nil, err
	}
	var source []database.Entity
	if q.Source != "" {
		if source, err = e.entities(ctx, q.Source, et); err != nil {
			return nil, err
		}
	}

	records := Page(Compute(destination, source, q.Fields), q.LastID, q.Limit)
	if e.metrics != nil {
		kind := "diff"
		if q.Source == "" {
			kind = "diff_initial"
		}
		e.metrics.RecordComposing(kind, time.Since(start))
	}
	return records, nil
}

func (e *Engine) entities(ctx context.Context, code string, et catalog.EntityType) ([]database.Entity, error) {
	c, err := e.store.Catalog(ctx, code)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, apperror.CatalogNotFound(code)
		}
		return nil, err
	}
	return e.store.Entities(ctx, c.ID, et.ID)
}
