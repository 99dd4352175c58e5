package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kosarica/catalog-service/internal/apperror"
	"github.com/kosarica/catalog-service/internal/catalog"
	"github.com/kosarica/catalog-service/internal/database"
	"github.com/kosarica/catalog-service/internal/resolver"
	"github.com/kosarica/catalog-service/internal/storage"
)

// CatalogInfo is a catalog as returned by the active catalog endpoints.
type CatalogInfo struct {
	CatalogCode  string     `json:"catalog_code" jsonschema:"required"`
	TitleCode    string     `json:"title_code" jsonschema:"required"`
	Type         string     `json:"type" jsonschema:"required,enum=MAIN,enum=COUPON"`
	Version      int        `json:"version" jsonschema:"required"`
	ActivatedAt  *time.Time `json:"activated_at"`
	TerminatedAt *time.Time `json:"terminated_at"`
}

func newCatalogInfo(c catalog.Catalog) CatalogInfo {
	return CatalogInfo{
		CatalogCode:  c.Code,
		TitleCode:    c.TitleCode,
		Type:         c.Type.String(),
		Version:      c.Version,
		ActivatedAt:  c.ActivatedAt,
		TerminatedAt: c.TerminatedAt,
	}
}

func catalogInfos(catalogs []catalog.Catalog) []CatalogInfo {
	out := make([]CatalogInfo, 0, len(catalogs))
	for _, c := range catalogs {
		out = append(out, newCatalogInfo(c))
	}
	return out
}

// cacheHeaders sets ETag and expiry headers of a snapshot. It reports true
// when the client copy is current and a 304 was written.
func (h *Handler) cacheHeaders(c *gin.Context, snap *resolver.Snapshot) bool {
	c.Header("ETag", snap.ETag)
	c.Header("Cache-Control", fmt.Sprintf("max-age=%d", int(h.resolver.TTL().Seconds())))
	c.Header("Expires", snap.ExpiresAt.UTC().Format(http.TimeFormat))

	for _, tag := range strings.Split(c.GetHeader("If-None-Match"), ",") {
		if strings.TrimSpace(tag) == snap.ETag {
			c.Status(http.StatusNotModified)
			return true
		}
	}
	return false
}

func titleParam(c *gin.Context) (string, error) {
	title := strings.TrimSpace(c.Param("title"))
	if title == "" {
		return "", apperror.Client("Parameter title_code must not be empty.")
	}
	return title, nil
}

// ActiveCatalog returns the active catalog of one type of a title
// @Summary Get the active catalog of a title
// @Tags catalogs
// @Produce json
// @Param title path string true "Title code"
// @Param type path string true "Catalog type" Enums(MAIN, COUPON)
// @Success 200 {object} CatalogInfo
// @Success 304
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/titles/{title}/active_catalogs/{type} [get]
func (h *Handler) ActiveCatalog(c *gin.Context) {
	title, err := titleParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	typ, ok := catalog.ParseType(c.Param("type"))
	if !ok {
		h.respondError(c, apperror.Client(catalog.TypeDescription).With("type", c.Param("type")))
		return
	}

	snap, err := h.resolver.GetActive(c.Request.Context(), title, resolver.ScopeOf(typ))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if h.cacheHeaders(c, snap) {
		return
	}
	c.JSON(http.StatusOK, newCatalogInfo(snap.Catalogs[0]))
}

// ActiveCatalogs returns the active catalogs of a title
// @Summary List the active catalogs of a title
// @Tags catalogs
// @Produce json
// @Param title path string true "Title code"
// @Param type query string false "Catalog type, all types when empty" Enums(MAIN, COUPON, ALL)
// @Success 200 {array} CatalogInfo
// @Success 304
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/titles/{title}/active_catalogs [get]
func (h *Handler) ActiveCatalogs(c *gin.Context) {
	title, err := titleParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	scope, err := resolver.ParseScope(c.Query("type"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	snap, err := h.resolver.GetActive(c.Request.Context(), title, scope)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if h.cacheHeaders(c, snap) {
		return
	}
	c.JSON(http.StatusOK, catalogInfos(snap.Catalogs))
}

// AllActiveCatalogs returns the active catalog of one type for every title
// @Summary List active catalogs of all titles
// @Tags catalogs
// @Produce json
// @Param type query string false "Catalog type" Enums(MAIN, COUPON) default(MAIN)
// @Success 200 {array} CatalogInfo
// @Success 304
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/titles/active_catalogs [get]
func (h *Handler) AllActiveCatalogs(c *gin.Context) {
	typ := catalog.TypeMain
	if raw := c.Query("type"); raw != "" {
		var ok bool
		if typ, ok = catalog.ParseType(raw); !ok {
			h.respondError(c, apperror.Client(catalog.TypeDescription).With("type", raw))
			return
		}
	}

	snap, err := h.resolver.ListAll(c.Request.Context(), typ)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if h.cacheHeaders(c, snap) {
		return
	}
	c.JSON(http.StatusOK, catalogInfos(snap.Catalogs))
}

// TerminateActiveCatalog ends the active catalog of one type of a title
// @Summary Terminate the active catalog of a title
// @Description Idempotent. Succeeds without a change when no catalog is active.
// @Tags catalogs
// @Produce json
// @Param title path string true "Title code"
// @Param type path string true "Catalog type" Enums(MAIN, COUPON)
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/titles/{title}/active_catalogs/{type} [delete]
func (h *Handler) TerminateActiveCatalog(c *gin.Context) {
	title, err := titleParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	terminated, err := h.publish.TerminateActive(c.Request.Context(), title, c.Param("type"), origin(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if terminated == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, gin.H{"catalog_code": terminated.Code})
}

// DownloadCatalog returns the stored archive of a catalog
// @Summary Download a catalog archive
// @Tags catalogs
// @Produce application/zip
// @Param code path string true "Catalog code"
// @Success 200 {file} file
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/catalogs/{code} [get]
func (h *Handler) DownloadCatalog(c *gin.Context) {
	code := c.Param("code")
	ctx := c.Request.Context()

	if _, err := database.GetCatalog(ctx, h.pool, code); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			err = apperror.CatalogNotFound(code)
		}
		h.respondError(c, err)
		return
	}
	content, err := h.storage.Get(ctx, storage.ArchiveKey(code))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = apperror.CatalogNotFound(code).With("description", "Catalog archive is not stored.")
		}
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.zip"`, code))
	c.Data(http.StatusOK, "application/zip", content)
}
