package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/kosarica/catalog-service/internal/archive"
	"github.com/kosarica/catalog-service/internal/catalog"
	"github.com/kosarica/catalog-service/internal/database"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// parsePhase decodes and checks the archive content.
func (e *Engine) parsePhase(ctx context.Context, content []byte) (*archive.Parsed, error) {
	var parsed *archive.Parsed
	start := time.Now()
	err := e.phase(ctx, "parse", func(ctx context.Context) error {
		p, err := e.Parser.Parse(ctx, content)
		if err != nil {
			return err
		}
		trace.SpanFromContext(ctx).SetAttributes(attribute.Int("entities", p.Count()))
		parsed = p
		return nil
	})
	if e.Metrics != nil {
		e.Metrics.RecordParsing(time.Since(start))
	}
	return parsed, err
}

// validate checks the archive against stored entities and against the
// current publication of the same catalog. Stored entities are immutable:
// an id keeps its code and field values forever. Within one catalog a code
// keeps its id across republications; other catalogs of the title may carry
// the code under a new id.
func (e *Engine) validate(ctx context.Context, cat *catalog.Catalog, parsed *archive.Parsed) error {
	for _, et := range catalog.EntityTypes {
		entities := parsed.Of(et)
		if len(entities) == 0 {
			continue
		}

		ids := make([]string, len(entities))
		codes := make([]string, len(entities))
		for i, ent := range entities {
			ids[i] = ent.ID
			codes[i] = ent.Code
		}

		byID, err := database.EntitiesByIDs(ctx, e.Pool, ids)
		if err != nil {
			return internalError(fmt.Errorf("load entities: %w", err))
		}
		byCode, err := database.CatalogEntitiesByCodes(ctx, e.Pool, cat.ID, et.ID, codes)
		if err != nil {
			return internalError(fmt.Errorf("load entities: %w", err))
		}
		if err := checkImmutable(entities, byID, byCode); err != nil {
			return err
		}
	}
	return nil
}

func checkImmutable(entities []archive.Entity, byID, byCode []database.Entity) error {
	storedByID := make(map[string]database.Entity, len(byID))
	for _, s := range byID {
		storedByID[s.ID] = s
	}
	idsByCode := make(map[string][]string, len(byCode))
	for _, s := range byCode {
		idsByCode[s.Code] = append(idsByCode[s.Code], s.ID)
	}

	for _, ent := range entities {
		if stored, ok := storedByID[ent.ID]; ok {
			if stored.Code != ent.Code {
				return &ValidationError{Message: fmt.Sprintf("Entity with id '%s' has updated code '%s'.", ent.ID, ent.Code)}
			}
			if changed := catalog.ChangedFields(stored.Fields, ent.Fields); len(changed) > 0 {
				return &ValidationError{Message: fmt.Sprintf("Entity with id '%s' has updated field values '%s'.", ent.ID, updatedValues(changed, ent.Fields))}
			}
		}
		for _, id := range idsByCode[ent.Code] {
			if id != ent.ID {
				return &ValidationError{Message: fmt.Sprintf("Entity with id '%s' wasn't present in previous catalog with the same code.", ent.ID)}
			}
		}
	}
	return nil
}

// updatedValues renders the new values of the changed keys. A key the
// archive dropped renders as null.
func updatedValues(keys []string, fields map[string]any) string {
	values := make(map[string]any, len(keys))
	for _, k := range keys {
		values[k] = fields[k]
	}
	return catalog.FormatValue(values)
}
