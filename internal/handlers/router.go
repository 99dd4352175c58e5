package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kosarica/catalog-service/internal/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// RouterOptions configure the middleware of the API.
type RouterOptions struct {
	// APIKey guards the publish endpoints. Empty disables the check.
	APIKey string
	// RateLimit applies per IP to every /api route. A zero rate disables it.
	RateLimit middleware.RateLimiterConfig
	Logger    *zerolog.Logger
}

// NewRouter registers every endpoint of h. ctx bounds background work of the
// middleware.
func NewRouter(ctx context.Context, h *Handler, opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Tracking())
	if opts.Logger != nil {
		router.Use(middleware.RequestLogger(opts.Logger))
	}
	if h.metrics != nil {
		router.Use(middleware.Metrics(h.metrics))
	}

	router.GET("/ping", h.Ping)
	router.GET("/healthy", h.Healthy)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := router.Group("/api")
	if opts.RateLimit.RequestsPerSecond > 0 {
		api.Use(middleware.RateLimit(ctx, opts.RateLimit))
	}
	guard := middleware.InternalAuth(opts.APIKey)

	v1 := api.Group("/v1")
	{
		v1.POST("/catalog/publish", guard, h.Publish)
		v1.POST("/:tool/catalog/publish", guard, h.Publish)
		v1.POST("/catalog/migrate", guard, h.Migrate)
		v1.GET("/catalog/publish/:publish_id/status", h.PublishStatus)

		v1.GET("/titles/active_catalogs", h.AllActiveCatalogs)
		v1.GET("/titles/:title/active_catalogs", h.ActiveCatalogs)
		v1.GET("/titles/:title/active_catalogs/:type", h.ActiveCatalog)
		v1.DELETE("/titles/:title/active_catalogs/:type", guard, h.TerminateActiveCatalog)
		v1.GET("/titles/:title/catalog/publications", h.Publications)
		v1.GET("/titles/:title/entities/:type", h.TitleEntities)
		v1.GET("/titles/:title/entities/:type/:entity_code", h.TitleEntity)

		v1.GET("/catalogs/:code", h.DownloadCatalog)
		v1.GET("/catalogs/:code/entities/:type", h.CatalogEntities)
		v1.GET("/catalogs/:code/entities/:type/:entity_code", h.CatalogEntity)
		v1.GET("/catalogs/:code/entities/:type/diff/:source", h.Diff)

		v1.GET("/entities/:id", h.Entity)
		v1.GET("/entities/:id/catalogs", h.EntityCatalogs)
		v1.GET("/entities/:id/titles", h.EntityTitles)
	}

	v2 := api.Group("/v2")
	{
		v2.POST("/:tool/catalog/publish", guard, h.PublishV2)
		v2.POST("/:tool/catalog/republish", guard, h.Republish)
		v2.POST("/catalog/republish", guard, h.Republish)
	}

	return router
}
