// Package handlers serves the catalog HTTP API.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kosarica/catalog-service/internal/apperror"
	"github.com/kosarica/catalog-service/internal/diff"
	"github.com/kosarica/catalog-service/internal/metrics"
	"github.com/kosarica/catalog-service/internal/middleware"
	"github.com/kosarica/catalog-service/internal/publish"
	"github.com/kosarica/catalog-service/internal/resolver"
	"github.com/kosarica/catalog-service/internal/storage"
	"github.com/kosarica/catalog-service/internal/taskqueue"
	"github.com/rs/zerolog"
)

// Deps are the services the handlers call.
type Deps struct {
	Pool     *pgxpool.Pool
	Queue    *taskqueue.TaskQueue
	Publish  *publish.Service
	Resolver *resolver.Resolver
	Diff     *diff.Engine
	Storage  storage.Storage
	Metrics  *metrics.Recorder
	Logger   zerolog.Logger
}

// Handler serves the API endpoints.
type Handler struct {
	pool     *pgxpool.Pool
	queue    *taskqueue.TaskQueue
	publish  *publish.Service
	resolver *resolver.Resolver
	diff     *diff.Engine
	storage  storage.Storage
	metrics  *metrics.Recorder
	log      zerolog.Logger
}

// New creates a Handler.
func New(deps Deps) *Handler {
	return &Handler{
		pool:     deps.Pool,
		queue:    deps.Queue,
		publish:  deps.Publish,
		resolver: deps.Resolver,
		diff:     deps.Diff,
		storage:  deps.Storage,
		metrics:  deps.Metrics,
		log:      deps.Logger.With().Str("component", "api").Logger(),
	}
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the stable error code and its context.
type ErrorBody struct {
	Code    string         `json:"code" jsonschema:"required"`
	Context map[string]any `json:"context" jsonschema:"required"`
}

// respondError writes err as an error body. Errors outside the taxonomy are
// logged and reported as internal errors.
func (h *Handler) respondError(c *gin.Context, err error) {
	appErr, ok := apperror.As(err)
	if !ok {
		appErr = apperror.Internal(err)
	}
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		h.log.Error().
			Err(err).
			Str("tracking_id", middleware.TrackingID(c)).
			Str("path", c.Request.URL.Path).
			Msg("Request failed")
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.Body())
}

func origin(c *gin.Context) publish.Origin {
	return publish.Origin{
		TrackingID: middleware.TrackingID(c),
		Requester:  middleware.EmitterID(c),
	}
}
