package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kosarica/catalog-service/internal/catalog"
	"github.com/kosarica/catalog-service/internal/database"
	"github.com/kosarica/catalog-service/internal/database/databasetest"
	"github.com/kosarica/catalog-service/internal/storage"
	"github.com/kosarica/catalog-service/internal/taskqueue"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCatalog(t *testing.T, pool *pgxpool.Pool, q *taskqueue.TaskQueue, version int, id string, activated bool) string {
	t.Helper()
	ctx := context.Background()
	title, err := database.EnsureTitle(ctx, pool, "ru.jobs")
	require.NoError(t, err)

	c := &catalog.Catalog{
		Code:    catalog.FormatCode("ru.jobs", catalog.TypeCoupon, version),
		TitleID: title.ID,
		Type:    catalog.TypeCoupon,
		Version: version,
		URL:     "http://catalogs.local/a.zip",
	}
	if activated {
		at := time.Now().Add(-time.Hour)
		end := time.Now()
		c.ActivatedAt, c.TerminatedAt = &at, &end
	}
	require.NoError(t, database.CreateCatalog(ctx, pool, c))
	if id != "" {
		require.NoError(t, q.Create(ctx, pool, taskqueue.NewTask{
			ID: id, TitleID: title.ID, CatalogID: c.ID, CatalogCode: c.Code, Publisher: "coupons", URL: c.URL,
		}))
	}
	return c.Code
}

func TestPruneArchives(t *testing.T) {
	pool := databasetest.Setup(t)
	ctx := context.Background()
	q := taskqueue.New(pool)

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	activated := seedCatalog(t, pool, q, 1, "", true)
	pending := seedCatalog(t, pool, q, 2, "01HZ0000000000000000000002", false)
	failed := seedCatalog(t, pool, q, 3, "01HZ0000000000000000000003", false)

	claimed, err := q.Claim(ctx, "node-1")
	require.NoError(t, err)
	require.Equal(t, "01HZ0000000000000000000002", claimed.ID)
	// Leave MAIN-2 running and fail MAIN-3 directly.
	_, err = pool.Exec(ctx, `UPDATE task SET status = 'FAILED', failure = 'franz:TIMEOUT' WHERE id = $1`, "01HZ0000000000000000000003")
	require.NoError(t, err)

	for _, code := range []string{activated, pending, failed, "ru.gone-MAIN-1"} {
		require.NoError(t, store.Put(ctx, storage.ArchiveKey(code), []byte("PK"), nil))
	}

	logger := zerolog.Nop()
	cfg := DefaultCleanupConfig()
	cm := NewCleanupManager(pool, q, store, cfg, &logger)

	n, err := cm.PruneArchives(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "fresh archives are kept")

	cm.now = func() time.Time { return time.Now().Add(cfg.ArchiveRetention + time.Hour) }
	n, err = cm.PruneArchives(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	keys, err := store.List(ctx, "catalogs/")
	require.NoError(t, err)
	assert.Equal(t, []string{storage.ArchiveKey(activated), storage.ArchiveKey(pending)}, keys)
}

func TestCleanupTasksKeepsLatestPerCatalog(t *testing.T) {
	pool := databasetest.Setup(t)
	ctx := context.Background()
	q := taskqueue.New(pool)

	code := seedCatalog(t, pool, q, 1, "01HZ0000000000000000000010", false)
	cat, err := database.GetCatalog(ctx, pool, code)
	require.NoError(t, err)
	require.NoError(t, q.Create(ctx, pool, taskqueue.NewTask{
		ID: "01HZ0000000000000000000011", TitleID: cat.TitleID, CatalogID: cat.ID, CatalogCode: code, Publisher: "coupons", URL: cat.URL,
	}))
	_, err = pool.Exec(ctx, `UPDATE task SET status = 'FAILED', finished_at = NOW() - INTERVAL '200 days'`)
	require.NoError(t, err)

	logger := zerolog.Nop()
	cm := NewCleanupManager(pool, q, nil, DefaultCleanupConfig(), &logger)
	deleted, err := cm.CleanupTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	stats, err := Stats(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats[taskqueue.StatusFailed])
}
