package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kosarica/catalog-service/internal/archive"
	"github.com/kosarica/catalog-service/internal/audit"
	"github.com/kosarica/catalog-service/internal/catalog"
	"github.com/kosarica/catalog-service/internal/clients"
	"github.com/kosarica/catalog-service/internal/database"
	"github.com/kosarica/catalog-service/internal/database/databasetest"
	"github.com/kosarica/catalog-service/internal/diff"
	httpclient "github.com/kosarica/catalog-service/internal/http"
	"github.com/kosarica/catalog-service/internal/http/retry"
	"github.com/kosarica/catalog-service/internal/storage"
	"github.com/kosarica/catalog-service/internal/taskqueue"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notification struct {
	PublishID   string
	CatalogCode string `json:"catalog_code"`
	Status      string `json:"status"`
	Reason      string `json:"reason"`
}

type recordingSink struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (s *recordingSink) Write(ctx context.Context, e audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *recordingSink) Close() error { return nil }

type recordingInvalidator struct {
	mu     sync.Mutex
	titles []string
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, title string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, title)
}

type harness struct {
	pool     *pgxpool.Pool
	queue    *taskqueue.TaskQueue
	engine   *Engine
	storage  *storage.LocalStorage
	sink     *recordingSink
	resolver *recordingInvalidator
	server   *httptest.Server

	mu       sync.Mutex
	archives map[string][]byte
	notes    []notification
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 4, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	pool := databasetest.Setup(t)
	h := &harness{
		pool:     pool,
		queue:    taskqueue.New(pool),
		sink:     &recordingSink{},
		resolver: &recordingInvalidator{},
		archives: make(map[string][]byte),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/archives/", func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		data, ok := h.archives[r.URL.Path]
		h.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(data)
	})
	mux.HandleFunc("/catalog/api/v1/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if strings.HasPrefix(body["catalog_code"], "fail.prodo") {
			w.Write([]byte(`{"success":false,"error":{"code":"CATALOG_LOCKED","message":["try","later"]}}`))
			return
		}
		w.Write([]byte(`{"success":true}`))
	})
	mux.HandleFunc("/streams/api/v1/pushEvent/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/api/v1/catalog_publish/", func(w http.ResponseWriter, r *http.Request) {
		var n notification
		json.NewDecoder(r.Body).Decode(&n)
		n.PublishID = strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/catalog_publish/"), "/")[0]
		h.mu.Lock()
		h.notes = append(h.notes, n)
		h.mu.Unlock()
	})
	h.server = httptest.NewServer(mux)
	t.Cleanup(h.server.Close)

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	h.storage = store

	fetchCfg := httpclient.DefaultConfig()
	fetchCfg.Retry = fastPolicy()
	fetchCfg.RequestsPerSecond = 0

	h.engine = New(Deps{
		Pool:    pool,
		Queue:   h.queue,
		Fetcher: httpclient.NewClient(fetchCfg),
		Prodo:   clients.NewProdo(clients.ProdoConfig{BaseURL: h.server.URL, Timeout: time.Second, Retry: fastPolicy()}, nil, zerolog.Nop()),
		Franz:   clients.NewFranz(clients.FranzConfig{BaseURL: h.server.URL, Realm: "wot", Timeout: time.Second, Retry: fastPolicy()}, nil, zerolog.Nop()),
		Notifier: clients.NewNotifier(clients.NotifierConfig{
			Tools:   map[string]clients.ToolConfig{clients.ToolCatool: {BaseURL: h.server.URL, Secret: "s"}},
			Timeout: time.Second,
			Retry:   fastPolicy(),
			Breaker: clients.DefaultBreakerConfig(),
		}, nil, zerolog.Nop()),
		Audit:    audit.NewEmitter(h.sink, "node-test", zerolog.Nop()),
		Parser:   archive.NewParser(archive.NewExpander(archive.DefaultExpandOptions(), zerolog.Nop())),
		Storage:  store,
		Resolver: h.resolver,
		Logger:   zerolog.Nop(),
	})
	return h
}

func (h *harness) serve(path string, data []byte) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.archives[path] = data
	return h.server.URL + path
}

func (h *harness) notifications() []notification {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]notification(nil), h.notes...)
}

// publish creates and claims a task, then runs it. An existing catalog with
// the same code is published again.
func (h *harness) publish(t *testing.T, title string, version int, publishID, url string) *Result {
	t.Helper()
	ctx := context.Background()

	tl, err := database.EnsureTitle(ctx, h.pool, title)
	require.NoError(t, err)
	code := catalog.FormatCode(title, catalog.TypeMain, version)
	c, err := database.GetCatalog(ctx, h.pool, code)
	if errors.Is(err, database.ErrNotFound) {
		c = &catalog.Catalog{
			Code:    code,
			TitleID: tl.ID,
			Type:    catalog.TypeMain,
			Version: version,
			URL:     url,
		}
		err = database.CreateCatalog(ctx, h.pool, c)
	}
	require.NoError(t, err)
	require.NoError(t, h.queue.Create(ctx, h.pool, taskqueue.NewTask{
		ID:          publishID,
		TitleID:     tl.ID,
		CatalogID:   c.ID,
		CatalogCode: c.Code,
		Publisher:   clients.ToolCatool,
		TrackingID:  "trk-" + publishID,
		URL:         url,
	}))

	task, err := h.queue.Claim(ctx, "node-test")
	require.NoError(t, err)
	require.NotNil(t, task)
	require.Equal(t, publishID, task.ID)

	result, err := h.engine.Run(ctx, task)
	require.NoError(t, err)
	return result
}

func product(id, code string, price float64) map[string]any {
	return map[string]any{"product_id": id, "code": code, "price": map[string]any{"gold": price}}
}

const (
	tankID   = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
	planeID  = "6ba7b811-9dad-11d1-80b4-00c04fd430c8"
	tankV2ID = "6ba7b812-9dad-11d1-80b4-00c04fd430c8"
	boatID   = "6ba7b813-9dad-11d1-80b4-00c04fd430c8"
	shipID   = "6ba7b814-9dad-11d1-80b4-00c04fd430c8"
)

func mustArchive(t *testing.T, products ...map[string]any) []byte {
	t.Helper()
	data, err := archive.Build(map[string]any{"products.json": products})
	require.NoError(t, err)
	return data
}

func TestRunActivatesAndTerminatesPrevious(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	url1 := h.serve("/archives/v1.zip", mustArchive(t, product(tankID, "tank", 100)))
	first := h.publish(t, "wot.eu", 1, "01HZ0000000000000000000001", url1)
	require.Equal(t, taskqueue.StatusCompleted, first.Status, first.Failure)
	assert.Nil(t, first.Superseded)

	url2 := h.serve("/archives/v2.zip", mustArchive(t, product(tankID, "tank", 100), product(planeID, "plane", 50)))
	second := h.publish(t, "wot.eu", 2, "01HZ0000000000000000000002", url2)
	require.Equal(t, taskqueue.StatusCompleted, second.Status, second.Failure)
	require.NotNil(t, second.Superseded)
	assert.Equal(t, "wot.eu-MAIN-1", second.Superseded.Code)

	v1, err := database.GetCatalog(ctx, h.pool, "wot.eu-MAIN-1")
	require.NoError(t, err)
	v2, err := database.GetCatalog(ctx, h.pool, "wot.eu-MAIN-2")
	require.NoError(t, err)
	require.NotNil(t, v1.TerminatedAt)
	require.NotNil(t, v2.ActivatedAt)
	assert.True(t, v1.TerminatedAt.Equal(*v2.ActivatedAt), "termination equals activation")
	assert.True(t, v2.Active())

	entities, err := database.CatalogEntities(ctx, h.pool, v2.ID, catalog.Product.ID, "", -1)
	require.NoError(t, err)
	assert.Len(t, entities, 2)

	task, err := h.queue.Get(ctx, h.pool, "01HZ0000000000000000000002")
	require.NoError(t, err)
	assert.Equal(t, taskqueue.StatusCompleted, task.Status)
	require.NotNil(t, task.FinishedAt)
	assert.True(t, task.FinishedAt.Equal(*v2.ActivatedAt))

	stored, err := h.storage.Exists(ctx, storage.ArchiveKey("wot.eu-MAIN-2"))
	require.NoError(t, err)
	assert.True(t, stored)

	assert.Equal(t, []notification{
		{PublishID: "01HZ0000000000000000000001", CatalogCode: "wot.eu-MAIN-1", Status: "ACTIVATED"},
		{PublishID: "01HZ0000000000000000000002", CatalogCode: "wot.eu-MAIN-2", Status: "ACTIVATED"},
		{PublishID: "01HZ0000000000000000000001", CatalogCode: "wot.eu-MAIN-1", Status: "TERMINATED"},
	}, h.notifications())

	assert.Equal(t, []string{"wot.eu", "wot.eu"}, h.resolver.titles)

	var actions []string
	for _, e := range h.sink.entries {
		actions = append(actions, e.Action+":"+e.Status)
		assert.Equal(t, "node-test", e.Processor)
	}
	assert.Equal(t, []string{"publish:ACTIVATED", "publish:ACTIVATED", "terminate:TERMINATED"}, actions)
}

func TestRunFailures(t *testing.T) {
	h := newHarness(t)

	// Seed an accepted catalog for the validation cases.
	base := h.serve("/archives/base.zip", mustArchive(t, product(tankID, "tank", 100)))
	require.Equal(t, taskqueue.StatusCompleted, h.publish(t, "wows.eu", 1, "01HZ0000000000000000000010", base).Status)

	tests := []struct {
		name    string
		title   string
		version int
		id      string
		path    string
		content []byte
		failure string
	}{
		{
			name:    "prodo rejects",
			title:   "fail.prodo",
			version: 1,
			id:      "01HZ0000000000000000000011",
			path:    "/archives/prodo.zip",
			content: mustArchive(t, product(planeID, "plane", 1)),
			failure: "prodo:CATALOG_LOCKED try later",
		},
		{
			name:    "not a zip",
			title:   "bad.zip",
			version: 1,
			id:      "01HZ0000000000000000000012",
			path:    "/archives/garbage.zip",
			content: []byte("garbage"),
			failure: "archive:invalid zip archive",
		},
		{
			name:    "missing archive",
			title:   "no.archive",
			version: 1,
			id:      "01HZ0000000000000000000013",
			failure: "fetch:404",
		},
		{
			name:    "changed fields",
			title:   "wows.eu",
			version: 2,
			id:      "01HZ0000000000000000000014",
			path:    "/archives/changed.zip",
			content: mustArchive(t, product(tankID, "tank", 90)),
			failure: "validation:Entity with id '" + tankID + "' has updated field values '{price={gold=90}}'.",
		},
		{
			name:    "dropped field",
			title:   "wows.eu",
			version: 2,
			id:      "01HZ0000000000000000000016",
			path:    "/archives/dropped.zip",
			content: mustArchive(t, map[string]any{"product_id": tankID, "code": "tank", "tier": 5}),
			failure: "validation:Entity with id '" + tankID + "' has updated field values '{price=null, tier=5}'.",
		},
		{
			name:    "republish with new id for a code",
			title:   "wows.eu",
			version: 1,
			id:      "01HZ0000000000000000000015",
			path:    "/archives/reused.zip",
			content: mustArchive(t, product(planeID, "tank", 100)),
			failure: "validation:Entity with id '" + planeID + "' wasn't present in previous catalog with the same code.",
		},
		{
			name:    "id under another code",
			title:   "wows.eu",
			version: 3,
			id:      "01HZ0000000000000000000017",
			path:    "/archives/renamed.zip",
			content: mustArchive(t, product(tankID, "heavy_tank", 100)),
			failure: "validation:Entity with id '" + tankID + "' has updated code 'heavy_tank'.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := h.server.URL + "/archives/missing.zip"
			if tt.content != nil {
				url = h.serve(tt.path, tt.content)
			}
			result := h.publish(t, tt.title, tt.version, tt.id, url)
			assert.Equal(t, taskqueue.StatusFailed, result.Status)
			assert.Equal(t, tt.failure, result.Failure)

			task, err := h.queue.Get(context.Background(), h.pool, tt.id)
			require.NoError(t, err)
			assert.Equal(t, taskqueue.StatusFailed, task.Status)
			require.NotNil(t, task.Failure)
			assert.Equal(t, tt.failure, *task.Failure)

			notes := h.notifications()
			last := notes[len(notes)-1]
			assert.Equal(t, notification{PublishID: tt.id, CatalogCode: catalog.FormatCode(tt.title, catalog.TypeMain, tt.version), Status: "FAILED", Reason: tt.failure}, last)
		})
	}

	active, err := database.GetCatalog(context.Background(), h.pool, "wows.eu-MAIN-1")
	require.NoError(t, err)
	assert.True(t, active.Active(), "failed publishes leave the active catalog alone")
}

func TestRunAllowsNewIDsForCodesInNextVersion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	url1 := h.serve("/archives/v1.zip", mustArchive(t,
		product(tankID, "tank", 100), product(planeID, "plane", 50), product(boatID, "boat", 10)))
	require.Equal(t, taskqueue.StatusCompleted, h.publish(t, "wot.na", 1, "01HZ0000000000000000000030", url1).Status)

	url2 := h.serve("/archives/v2.zip", mustArchive(t,
		product(tankV2ID, "tank", 90), product(planeID, "plane", 50), product(shipID, "ship", 70)))
	second := h.publish(t, "wot.na", 2, "01HZ0000000000000000000031", url2)
	require.Equal(t, taskqueue.StatusCompleted, second.Status, second.Failure)

	engine := diff.NewEngine(diff.NewDBStore(h.pool), nil)
	query := diff.Query{Destination: "wot.na-MAIN-2", Source: "wot.na-MAIN-1", EntityType: "product", Limit: -1}
	all, err := engine.Diff(ctx, query)
	require.NoError(t, err)

	got := make(map[string]diff.Record, len(all))
	for _, r := range all {
		got[r.Code] = r
	}
	require.Len(t, got, 3)
	assert.Equal(t, diff.Update, got["tank"].ChangeType)
	assert.Equal(t, tankV2ID, got["tank"].ID)
	assert.Equal(t, diff.Create, got["ship"].ChangeType)
	assert.Equal(t, diff.Delete, got["boat"].ChangeType)
	assert.Equal(t, boatID, got["boat"].ID)

	q := query
	q.Limit = 1
	var walked []diff.Record
	for i := 0; i <= len(all); i++ {
		page, err := engine.Diff(ctx, q)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		walked = append(walked, page...)
		q.LastID = page[len(page)-1].ID
	}
	assert.Equal(t, all, walked)
}

func TestRunRepublishSameContent(t *testing.T) {
	h := newHarness(t)

	url := h.serve("/archives/same.zip", mustArchive(t,
		product(tankID, "tank", 100),
		map[string]any{"product_id": planeID, "code": "plane", "price": map[string]any{"gold": int64(9007199254740993)}}))
	require.Equal(t, taskqueue.StatusCompleted, h.publish(t, "wot.sg", 1, "01HZ0000000000000000000040", url).Status)

	again := h.publish(t, "wot.sg", 1, "01HZ0000000000000000000041", url)
	assert.Equal(t, taskqueue.StatusCompleted, again.Status, again.Failure)
	assert.Nil(t, again.Superseded)

	changed := h.serve("/archives/changed-big.zip", mustArchive(t,
		product(tankID, "tank", 100),
		map[string]any{"product_id": planeID, "code": "plane", "price": map[string]any{"gold": int64(9007199254740992)}}))
	result := h.publish(t, "wot.sg", 1, "01HZ0000000000000000000042", changed)
	assert.Equal(t, taskqueue.StatusFailed, result.Status)
	assert.Equal(t, "validation:Entity with id '"+planeID+"' has updated field values '{price={gold=9007199254740992}}'.", result.Failure)
}

func TestRunTruncatesFailure(t *testing.T) {
	h := newHarness(t)
	h.engine.SetFailureMaxLength(20)

	url := h.serve("/archives/long.zip", []byte("garbage"))
	result := h.publish(t, "short.fail", 1, "01HZ0000000000000000000020", url)
	assert.Equal(t, "archive:invalid zip", result.Failure)
}
