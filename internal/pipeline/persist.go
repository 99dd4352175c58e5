package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kosarica/catalog-service/internal/archive"
	"github.com/kosarica/catalog-service/internal/catalog"
	"github.com/kosarica/catalog-service/internal/database"
	httpclient "github.com/kosarica/catalog-service/internal/http"
	"github.com/kosarica/catalog-service/internal/storage"
	"github.com/kosarica/catalog-service/internal/taskqueue"
)

// persistPhase links the parsed entities to the catalog and keeps a copy of
// the archive.
func (e *Engine) persistPhase(ctx context.Context, task *taskqueue.Task, cat *catalog.Catalog, parsed *archive.Parsed, content []byte) error {
	start := time.Now()
	defer func() {
		if e.Metrics != nil {
			e.Metrics.RecordSaving(time.Since(start))
		}
	}()

	return e.phase(ctx, "persist", func(ctx context.Context) error {
		entities := make([]database.NewEntity, 0, parsed.Count())
		for _, et := range catalog.EntityTypes {
			for _, ent := range parsed.Of(et) {
				entities = append(entities, database.NewEntity{
					ID:       ent.ID,
					Code:     ent.Code,
					EType:    et.ID,
					Fields:   ent.Fields,
					Metadata: ent.Metadata,
				})
			}
		}

		err := database.WithTx(ctx, e.Pool, func(tx pgx.Tx) error {
			if err := database.DetachEntities(ctx, tx, cat.ID); err != nil {
				return fmt.Errorf("detach entities: %w", err)
			}
			return database.AttachEntities(ctx, tx, cat.ID, entities)
		})
		if err != nil {
			return internalError(err)
		}

		if e.Storage == nil {
			return nil
		}
		err = e.Storage.Put(ctx, storage.ArchiveKey(cat.Code), content, &storage.Metadata{
			SourceURL:   task.URL,
			PublishID:   task.ID,
			CatalogCode: cat.Code,
			Checksum:    httpclient.ComputeSha256(content),
			StoredAt:    e.now(),
		})
		if err != nil {
			return internalError(fmt.Errorf("store archive: %w", err))
		}
		return nil
	})
}
