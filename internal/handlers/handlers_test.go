package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kosarica/catalog-service/internal/catalog"
	"github.com/kosarica/catalog-service/internal/database"
	"github.com/kosarica/catalog-service/internal/database/databasetest"
	"github.com/kosarica/catalog-service/internal/diff"
	"github.com/kosarica/catalog-service/internal/middleware"
	"github.com/kosarica/catalog-service/internal/publish"
	"github.com/kosarica/catalog-service/internal/resolver"
	"github.com/kosarica/catalog-service/internal/storage"
	"github.com/kosarica/catalog-service/internal/taskqueue"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	productA = "00000000-0000-0000-0000-00000000000a"
	productB = "00000000-0000-0000-0000-00000000000b"
)

type server struct {
	router  *gin.Engine
	pool    *pgxpool.Pool
	storage *storage.LocalStorage
}

func newServer(t *testing.T, pool *pgxpool.Pool, opts RouterOptions) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	deps := Deps{Storage: store, Logger: zerolog.Nop()}
	if pool != nil {
		queue := taskqueue.New(pool)
		res := resolver.New(resolver.NewDBStore(pool), resolver.NewMemoryCache(), 5*time.Second, nil, zerolog.Nop())
		deps.Pool = pool
		deps.Queue = queue
		deps.Resolver = res
		deps.Publish = publish.NewService(pool, queue, nil, res, nil, zerolog.Nop())
		deps.Diff = diff.NewEngine(diff.NewDBStore(pool), nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return &server{router: NewRouter(ctx, New(deps), opts), pool: pool, storage: store}
}

func (s *server) do(t *testing.T, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *server) get(t *testing.T, path string) *httptest.ResponseRecorder {
	return s.do(t, http.MethodGet, path, "", nil)
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body.Error.Code
}

// seedActive stores an active catalog of title with the given entities.
func (s *server) seedActive(t *testing.T, code string, entities []database.NewEntity) *catalog.Catalog {
	t.Helper()
	ctx := context.Background()
	parsed, err := catalog.ParseCode(code)
	require.NoError(t, err)

	var cat *catalog.Catalog
	err = database.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		title, err := database.EnsureTitle(ctx, tx, parsed.Title)
		if err != nil {
			return err
		}
		cat = &catalog.Catalog{Code: code, TitleID: title.ID, TitleCode: title.Code, Type: parsed.Type, Version: parsed.Version, URL: "http://archives.local/a.zip"}
		if err := database.CreateCatalog(ctx, tx, cat); err != nil {
			return err
		}
		if err := database.AttachEntities(ctx, tx, cat.ID, entities); err != nil {
			return err
		}
		_, err = database.Activate(ctx, tx, cat, time.Now().UTC())
		return err
	})
	require.NoError(t, err)
	return cat
}

func products() []database.NewEntity {
	return []database.NewEntity{
		{
			ID: productA, Code: "tank", EType: catalog.Product.ID,
			Fields: map[string]any{"price": map[string]any{"gold": float64(100)}, "tags": []any{"premium", "test"}},
			Metadata: json.RawMessage(`{"name":{"@type":"LocString","data":{"en":"Tank","ru":"Танк"}}}`),
		},
		{
			ID: productB, Code: "plane", EType: catalog.Product.ID,
			Fields: map[string]any{"price": map[string]any{"gold": float64(50)}, "tags": []any{"battle_pass"}},
		},
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newServer(t, nil, RouterOptions{})

	w := s.get(t, "/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
	assert.NotEmpty(t, w.Header().Get(middleware.TrackingHeader))

	w = s.get(t, "/healthy")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", w.Body.String())

	w = s.get(t, "/swagger")
	assert.Equal(t, http.StatusMovedPermanently, w.Code)
	assert.Equal(t, "/swagger/index.html", w.Header().Get("Location"))

	w = s.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTrackingIDEchoed(t *testing.T) {
	s := newServer(t, nil, RouterOptions{})
	h := http.Header{}
	h.Set(middleware.TrackingHeader, "trk-42")

	w := s.do(t, http.MethodGet, "/ping", "", h)
	assert.Equal(t, "trk-42", w.Header().Get(middleware.TrackingHeader))
}

func TestPublishRequiresAPIKey(t *testing.T) {
	s := newServer(t, nil, RouterOptions{APIKey: "secret"})

	w := s.do(t, http.MethodPost, "/api/v1/catalog/publish", `{}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.TrackingHeader))
}

func TestPublishAndStatus(t *testing.T) {
	s := newServer(t, databasetest.Setup(t), RouterOptions{})
	body := `{"url":"http://archives.local/a.zip","catalog_code":"ru.nptst-MAIN-1","publish_id":"01HZ0000000000000000000001"}`

	w := s.do(t, http.MethodPost, "/api/v1/catalog/publish", body, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.JSONEq(t, `{}`, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/catalog/publish", body, nil)
	assert.Equal(t, http.StatusCreated, w.Code, "replay is accepted")

	w = s.get(t, "/api/v1/catalog/publish/01HZ0000000000000000000001/status")
	require.Equal(t, http.StatusOK, w.Code)
	var status []PublicationInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	require.Len(t, status, 1)
	assert.Equal(t, "PENDING", status[0].Status)
	assert.Equal(t, "ru.nptst-MAIN-1", status[0].CatalogCode)
	assert.Nil(t, status[0].FinishedAt)

	w = s.get(t, "/api/v1/catalog/publish/01HZ0000000000000000000009/status")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = s.get(t, "/api/v1/catalog/publish/not-a-ulid/status")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "common.v1.validation-error", errorCode(t, w))

	w = s.get(t, "/api/v1/titles/ru.nptst/catalog/publications")
	require.Equal(t, http.StatusOK, w.Code)
	var pubs []PublicationInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pubs))
	require.Len(t, pubs, 1)
	assert.NotEmpty(t, pubs[0].TrackingID)
}

func TestPublishValidation(t *testing.T) {
	s := newServer(t, databasetest.Setup(t), RouterOptions{})

	tests := []struct {
		name string
		path string
		body string
		code string
	}{
		{"missing url", "/api/v1/catalog/publish", `{"catalog_code":"ru.nptst-MAIN-1","publish_id":"01HZ0000000000000000000001"}`, "common.v1.validation-error"},
		{"number url", "/api/v1/catalog/publish", `{"url":1,"catalog_code":"ru.nptst-MAIN-1","publish_id":"01HZ0000000000000000000001"}`, "common.v1.client-error"},
		{"unknown tool", "/api/v1/nobody/catalog/publish", `{"url":"http://a/b.zip","catalog_code":"ru.nptst-MAIN-1","publish_id":"01HZ0000000000000000000001"}`, "common.v1.validation-error"},
		{"republish without tool", "/api/v2/catalog/republish", `{"catalog_code":"ru.nptst-MAIN-1","publish_id":"01HZ0000000000000000000001"}`, "common.v1.validation-error"},
		{"migrate date only", "/api/v1/catalog/migrate", `{"url":"http://a/b.zip","catalog_code":"ru.mig-MAIN-1","activated_at":"2020-03-04"}`, "common.v1.validation-error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, tt.path, tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body.Error
}

func TestBodyBinding(t *testing.T) {
	s := newServer(t, nil, RouterOptions{})

	tests := []struct {
		name        string
		path        string
		body        string
		code        string
		description string
		field       string
	}{
		{"not an object", "/api/v1/catalog/publish", `[1,2]`, "common.v1.client-error", "Request body must be a JSON object.", ""},
		{"not json", "/api/v1/catalog/publish", `{`, "common.v1.client-error", "Request body must be a JSON object.", ""},
		{"empty body", "/api/v1/catalog/publish", ``, "common.v1.client-error", "Request body must be a JSON object.", ""},
		{"number url", "/api/v1/catalog/publish", `{"url":123,"catalog_code":"ru.nptst-MAIN-1","publish_id":"01HZ0000000000000000000001"}`, "common.v1.client-error", "Field 'url' must be a string.", "url"},
		{"type error wins over missing", "/api/v1/catalog/publish", `{"catalog_code":["x"]}`, "common.v1.client-error", "Field 'catalog_code' must be a string.", "catalog_code"},
		{"object publish id", "/api/v1/catalog/publish", `{"url":"http://a","catalog_code":"c","publish_id":{}}`, "common.v1.client-error", "Field 'publish_id' must be a string.", "publish_id"},
		{"missing url", "/api/v1/catalog/publish", `{"catalog_code":"ru.nptst-MAIN-1","publish_id":"01HZ0000000000000000000001"}`, "common.v1.validation-error", "Field 'url' is required.", "url"},
		{"null code", "/api/v1/catalog/publish", `{"url":"http://a","catalog_code":null,"publish_id":"01HZ0000000000000000000001"}`, "common.v1.validation-error", "Field 'catalog_code' is required.", "catalog_code"},
		{"empty publish id", "/api/v1/catalog/publish", `{"url":"http://a","catalog_code":"c","publish_id":""}`, "common.v1.validation-error", "Field 'publish_id' is required.", "publish_id"},
		{"v2 missing type", "/api/v2/catool/catalog/publish", `{"url":"http://a","title_code":"ru.v2","publish_id":"01HZ0000000000000000000001"}`, "common.v1.validation-error", "Field 'catalog_type' is required.", "catalog_type"},
		{"republish number code", "/api/v2/catool/catalog/republish", `{"catalog_code":1,"publish_id":"01HZ0000000000000000000001"}`, "common.v1.client-error", "Field 'catalog_code' must be a string.", "catalog_code"},
		{"migrate date only", "/api/v1/catalog/migrate", `{"url":"http://a","catalog_code":"c","activated_at":"2020-03-04"}`, "common.v1.validation-error", "Field 'activated_at' must be an ISO-8601 datetime.", "activated_at"},
		{"migrate not a date", "/api/v1/catalog/migrate", `{"url":"http://a","catalog_code":"c","activated_at":"not_datetime"}`, "common.v1.validation-error", "Field 'activated_at' must be an ISO-8601 datetime.", "activated_at"},
		{"migrate bool date", "/api/v1/catalog/migrate", `{"url":"http://a","catalog_code":"c","activated_at":true}`, "common.v1.client-error", "Field 'activated_at' must be a string.", "activated_at"},
		{"migrate bad terminated", "/api/v1/catalog/migrate", `{"url":"http://a","catalog_code":"c","activated_at":"2020-03-04T11:15:09.333Z","terminated_at":"2020-03-04"}`, "common.v1.validation-error", "Field 'terminated_at' must be an ISO-8601 datetime.", "terminated_at"},
		{"migrate bool terminated", "/api/v1/catalog/migrate", `{"url":"http://a","catalog_code":"c","activated_at":"2020-03-04T11:15:09.333Z","terminated_at":false}`, "common.v1.client-error", "Field 'terminated_at' must be a string.", "terminated_at"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, tt.path, tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			body := errorBody(t, w)
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.description, body.Context["description"])
			if tt.field != "" {
				assert.Equal(t, tt.field, body.Context["field"])
			}
		})
	}
}

func TestQueryBinding(t *testing.T) {
	s := newServer(t, nil, RouterOptions{})
	diffPath := "/api/v1/catalogs/ru.nptst-MAIN-1/entities/product/diff/initial"

	tests := []struct {
		name        string
		path        string
		description string
		param       string
		value       string
	}{
		{"diff limit not a number", diffPath + "?limit=abc", "Parameter limit must be a non-negative integer", "limit", "abc"},
		{"diff limit negative", diffPath + "?limit=-1", "Parameter limit must be a non-negative integer", "limit", "-1"},
		{"diff limit fraction", diffPath + "?limit=1.5", "Parameter limit must be a non-negative integer", "limit", "1.5"},
		{"diff limit overflow", diffPath + "?limit=99999999999999999999", "Parameter limit must be a non-negative integer", "limit", "99999999999999999999"},
		{"diff last id", diffPath + "?last_id=not-a-uuid", "Parameter last_id must be a UUID", "last_id", "not-a-uuid"},
		{"publications limit", "/api/v1/titles/ru.nptst/catalog/publications?limit=test", "Parameter limit must be an integer.", "limit", "test"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.get(t, tt.path)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			body := errorBody(t, w)
			assert.Equal(t, "common.v1.client-error", body.Code)
			assert.Equal(t, tt.description, body.Context["description"])
			assert.Equal(t, tt.value, body.Context[tt.param])
		})
	}
}

func TestPublishV2AndMigrate(t *testing.T) {
	s := newServer(t, databasetest.Setup(t), RouterOptions{})

	w := s.do(t, http.MethodPost, "/api/v2/catool/catalog/publish",
		`{"url":"http://a/b.zip","title_code":"ru.v2","catalog_type":"MAIN","publish_id":"01HZ0000000000000000000001"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.JSONEq(t, `{"catalog_code":"ru.v2-MAIN-1"}`, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/catalog/migrate",
		`{"url":"http://a/b.zip","catalog_code":"ru.mig-MAIN-1","activated_at":"2020-03-04T11:15:09.333Z","terminated_at":null}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, publish.Migrated, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/catalog/migrate",
		`{"url":"http://a/b.zip","catalog_code":"ru.mig-MAIN-1","activated_at":"2020-03-04T11:15:09.333Z","terminated_at":null}`, nil)
	assert.Equal(t, publish.AlreadyMigrated, w.Body.String())

	w = s.get(t, "/api/v1/titles/ru.mig/active_catalogs/MAIN")
	require.Equal(t, http.StatusOK, w.Code)
	var info CatalogInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "ru.mig-MAIN-1", info.CatalogCode)
	assert.Equal(t, "MAIN", info.Type)
	assert.Equal(t, "ru.mig", info.TitleCode)
	assert.Equal(t, 1, info.Version)
}

func TestActiveCatalogCaching(t *testing.T) {
	s := newServer(t, databasetest.Setup(t), RouterOptions{})
	s.seedActive(t, "ru.nptst-MAIN-1", nil)

	w := s.get(t, "/api/v1/titles/ru.nptst/active_catalogs/MAIN")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	etag := w.Header().Get("ETag")
	assert.NotEmpty(t, etag)
	assert.Equal(t, "max-age=5", w.Header().Get("Cache-Control"))
	_, err := http.ParseTime(w.Header().Get("Expires"))
	assert.NoError(t, err)

	h := http.Header{}
	h.Set("If-None-Match", etag)
	w = s.do(t, http.MethodGet, "/api/v1/titles/ru.nptst/active_catalogs/MAIN", "", h)
	assert.Equal(t, http.StatusNotModified, w.Code)

	w = s.get(t, "/api/v1/titles/ru.nptst/active_catalogs")
	require.Equal(t, http.StatusOK, w.Code)
	var list []CatalogInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	w = s.get(t, "/api/v1/titles/active_catalogs")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "ru.nptst-MAIN-1", list[0].CatalogCode)
	assert.NotEmpty(t, w.Header().Get("ETag"))
}

func TestActiveCatalogNotFound(t *testing.T) {
	s := newServer(t, databasetest.Setup(t), RouterOptions{})
	s.seedActive(t, "ru.nptst-MAIN-1", nil)

	w := s.get(t, "/api/v1/titles/ru.unknown/active_catalogs/MAIN")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "catalogs.v1.title-not-found", errorCode(t, w))

	w = s.get(t, "/api/v1/titles/ru.nptst/active_catalogs/COUPON")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := errorBody(t, w)
	assert.Equal(t, "catalogs.v1.catalog-not-found", body.Code)
	assert.Equal(t, "ru.nptst", body.Context["title_code"])
	assert.Equal(t, "COUPON", body.Context["catalog_type"])

	w = s.get(t, "/api/v1/titles/ru.nptst/active_catalogs/GOLD")
	assert.Equal(t, "common.v1.client-error", errorCode(t, w))
}

func TestTerminateActiveCatalog(t *testing.T) {
	s := newServer(t, databasetest.Setup(t), RouterOptions{})
	s.seedActive(t, "ru.nptst-MAIN-1", nil)

	w := s.do(t, http.MethodDelete, "/api/v1/titles/ru.nptst/active_catalogs/MAIN", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"catalog_code":"ru.nptst-MAIN-1"}`, w.Body.String())

	w = s.do(t, http.MethodDelete, "/api/v1/titles/ru.nptst/active_catalogs/MAIN", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{}`, w.Body.String())

	w = s.get(t, "/api/v1/titles/ru.nptst/active_catalogs/MAIN")
	assert.Equal(t, "catalogs.v1.catalog-not-found", errorCode(t, w))

	w = s.get(t, "/api/v1/titles/ru.nptst/catalog/publications?limit=-1")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "common.v1.internal-server-error", errorCode(t, w))

	w = s.get(t, "/api/v1/titles/ru.nptst/catalog/publications?limit=test")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "common.v1.client-error", errorCode(t, w))

	w = s.get(t, "/api/v1/titles/ru.not_existing/catalog/publications")
	assert.Equal(t, "catalogs.v1.title-not-found", errorCode(t, w))
}

func TestCatalogEntities(t *testing.T) {
	s := newServer(t, databasetest.Setup(t), RouterOptions{})
	s.seedActive(t, "ru.nptst-MAIN-1", products())

	w := s.get(t, "/api/v1/catalogs/ru.nptst-MAIN-1/entities/product")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, productA, list[0]["product_id"])
	assert.Equal(t, "tank", list[0]["code"])
	assert.Contains(t, list[0], "metadata")
	assert.Contains(t, list[0], "price")

	w = s.get(t, "/api/v1/catalogs/ru.nptst-MAIN-1/entities/PRODUCT/tank?language=ru")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var one map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &one))
	data := one["metadata"].(map[string]any)["name"].(map[string]any)["data"].(map[string]any)
	assert.Equal(t, "Танк", data["value"])

	w = s.get(t, "/api/v1/catalogs/ru.nptst-MAIN-1/entities/product/missing")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "catalogs.v1.entity-not-found", errorCode(t, w))

	w = s.get(t, "/api/v1/catalogs/ru.nptst-MAIN-9/entities/product")
	assert.Equal(t, "catalogs.v1.catalog-not-found", errorCode(t, w))

	w = s.get(t, "/api/v1/catalogs/ru.nptst-MAIN-1/entities/gizmo")
	assert.Equal(t, "common.v1.client-error", errorCode(t, w))
}

func TestTitleEntities(t *testing.T) {
	s := newServer(t, databasetest.Setup(t), RouterOptions{})
	s.seedActive(t, "ru.nptst-MAIN-1", products())

	count := func(path string) int {
		w := s.get(t, path)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var list []map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
		return len(list)
	}
	assert.Equal(t, 2, count("/api/v1/titles/ru.nptst/entities/product"))
	assert.Equal(t, 1, count("/api/v1/titles/ru.nptst/entities/product?tags=premium"))
	assert.Equal(t, 2, count("/api/v1/titles/ru.nptst/entities/product?tags=premium,battle_pass"))
	assert.Equal(t, 0, count("/api/v1/titles/ru.nptst/entities/product?tags=Premium"))
	assert.Equal(t, 2, count("/api/v1/titles/ru.nptst/entities/product?tags="))

	w := s.get(t, "/api/v1/titles/ru.nptst/entities/product/plane")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), productB)

	w = s.get(t, "/api/v1/titles/ru.nobody/entities/product")
	assert.Equal(t, "catalogs.v1.title-not-found", errorCode(t, w))
}

func TestEntityLookups(t *testing.T) {
	s := newServer(t, databasetest.Setup(t), RouterOptions{})
	s.seedActive(t, "ru.nptst-MAIN-1", products())

	w := s.get(t, "/api/v1/entities/"+productA+"?language=de")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var e map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	assert.Equal(t, "tank", e["code"])
	data := e["metadata"].(map[string]any)["name"].(map[string]any)["data"].(map[string]any)
	assert.Equal(t, "Tank", data["value"])

	w = s.get(t, "/api/v1/entities/not_exist")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "catalogs.v1.entity-not-found", errorCode(t, w))

	w = s.get(t, "/api/v1/entities/"+productA+"/catalogs")
	assert.JSONEq(t, `[{"catalog_code":"ru.nptst-MAIN-1"}]`, w.Body.String())

	w = s.get(t, "/api/v1/entities/"+productA+"/titles")
	assert.JSONEq(t, `[{"code":"ru.nptst"}]`, w.Body.String())

	w = s.get(t, "/api/v1/entities/not_exist/titles")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestDiffEndpoint(t *testing.T) {
	s := newServer(t, databasetest.Setup(t), RouterOptions{})
	s.seedActive(t, "ru.nptst-MAIN-1", products())

	w := s.get(t, "/api/v1/catalogs/ru.nptst-MAIN-1/entities/product/diff/initial")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var records []diff.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, diff.Create, r.ChangeType)
	}

	w = s.get(t, "/api/v1/catalogs/ru.nptst-MAIN-1/entities/product/diff/initial?limit=0")
	assert.JSONEq(t, `[]`, w.Body.String())

	w = s.get(t, "/api/v1/catalogs/ru.nptst-MAIN-1/entities/product/diff/initial?limit=1&fields=tags")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, productA, records[0].ID)
	assert.Equal(t, map[string]any{"tags": []any{"premium", "test"}}, records[0].Fields)

	w = s.get(t, "/api/v1/catalogs/ru.nptst-MAIN-1/entities/product/diff/initial?last_id="+strings.ToUpper(productA))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, productB, records[0].ID)

	w = s.get(t, "/api/v1/catalogs/ru.nptst-MAIN-1/entities/gizmo/diff/initial")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, catalog.EntityTypeDescription, body.Error.Context["description"])

	w = s.get(t, "/api/v1/catalogs/ru.nptst-MAIN-1/entities/product/diff/ru.nptst-MAIN-7")
	assert.Equal(t, "catalogs.v1.catalog-not-found", errorCode(t, w))
}

func TestDownloadCatalog(t *testing.T) {
	s := newServer(t, databasetest.Setup(t), RouterOptions{})
	s.seedActive(t, "ru.nptst-MAIN-1", nil)
	require.NoError(t, s.storage.Put(context.Background(), storage.ArchiveKey("ru.nptst-MAIN-1"), []byte("PK-zip"), nil))

	w := s.get(t, "/api/v1/catalogs/ru.nptst-MAIN-1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="ru.nptst-MAIN-1.zip"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "PK-zip", w.Body.String())

	w = s.get(t, "/api/v1/catalogs/ru.nptst-MAIN-2")
	assert.Equal(t, "catalogs.v1.catalog-not-found", errorCode(t, w))
}
