package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kosarica/catalog-service/internal/apperror"
	"github.com/kosarica/catalog-service/internal/catalog"
	"github.com/kosarica/catalog-service/internal/database"
	"github.com/kosarica/catalog-service/internal/diff"
	"github.com/kosarica/catalog-service/internal/resolver"
)

// EntityCatalog names a catalog containing an entity.
type EntityCatalog struct {
	CatalogCode string `json:"catalog_code" jsonschema:"required"`
}

// EntityTitle names a title whose catalogs contain an entity.
type EntityTitle struct {
	Code string `json:"code" jsonschema:"required"`
}

// entityView rebuilds the archive form of an entity: its fields plus the id,
// code and metadata keys. LocStrings are rendered when lang is set.
func entityView(et catalog.EntityType, e database.Entity, lang string) (map[string]any, error) {
	out := make(map[string]any, len(e.Fields)+3)
	for k, v := range e.Fields {
		out[k] = v
	}
	out[et.IDKey] = e.ID
	out[et.CodeKey] = e.Code
	if len(e.Metadata) > 0 && string(e.Metadata) != "null" {
		var md any
		if err := catalog.DecodeJSON(e.Metadata, &md); err != nil {
			return nil, fmt.Errorf("decode metadata of entity %s: %w", e.ID, err)
		}
		out["metadata"] = md
	}
	if lang == "" {
		return out, nil
	}
	return catalog.Localize(out, lang).(map[string]any), nil
}

func entityViews(et catalog.EntityType, entities []database.Entity, lang string) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(entities))
	for _, e := range entities {
		v, err := entityView(et, e, lang)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func entityTypeParam(c *gin.Context) (catalog.EntityType, error) {
	raw := c.Param("type")
	et, ok := catalog.LookupEntityType(strings.ToLower(raw))
	if !ok {
		return catalog.EntityType{}, apperror.Client(catalog.EntityTypeDescription).With("entity_type", raw)
	}
	return et, nil
}

// DiffQuery are the query parameters of a diff.
type DiffQuery struct {
	Fields string `form:"fields"`
	LastID string `form:"last_id" binding:"omitempty,entityid"`
	Limit  *int   `form:"limit" binding:"omitempty,min=0"`
}

var diffQueryErrors = map[string]string{
	"limit":   "Parameter limit must be a non-negative integer",
	"last_id": "Parameter last_id must be a UUID",
}

// parseTags splits the tags filter. nil means no filter.
func parseTags(c *gin.Context) []string {
	raw, ok := c.GetQuery("tags")
	if !ok {
		return nil
	}
	return diff.ParseFields(raw)
}

// hasAnyTag reports whether the entity carries one of tags.
func hasAnyTag(fields map[string]any, tags []string) bool {
	list, ok := fields["tags"].([]any)
	if !ok {
		return false
	}
	for _, v := range list {
		s, ok := v.(string)
		if !ok {
			continue
		}
		for _, t := range tags {
			if s == t {
				return true
			}
		}
	}
	return false
}

func (h *Handler) catalogByCode(c *gin.Context, code string) (*catalog.Catalog, error) {
	cat, err := database.GetCatalog(c.Request.Context(), h.pool, code)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperror.CatalogNotFound(code)
	}
	return cat, err
}

// activeMain resolves the catalog title endpoints read from.
func (h *Handler) activeMain(c *gin.Context) (*catalog.Catalog, error) {
	title, err := titleParam(c)
	if err != nil {
		return nil, err
	}
	snap, err := h.resolver.GetActive(c.Request.Context(), title, resolver.ScopeMain)
	if err != nil {
		return nil, err
	}
	return &snap.Catalogs[0], nil
}

func (h *Handler) listEntities(c *gin.Context, cat *catalog.Catalog, et catalog.EntityType, tags []string) {
	start := time.Now()
	entities, err := database.CatalogEntities(c.Request.Context(), h.pool, cat.ID, et.ID, "", -1)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if tags != nil {
		kept := entities[:0]
		for _, e := range entities {
			if hasAnyTag(e.Fields, tags) {
				kept = append(kept, e)
			}
		}
		entities = kept
	}
	views, err := entityViews(et, entities, c.Query("language"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordComposing("entities", time.Since(start))
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) oneEntity(c *gin.Context, cat *catalog.Catalog, et catalog.EntityType) {
	code := c.Param("entity_code")
	e, err := database.CatalogEntity(c.Request.Context(), h.pool, cat.ID, et.ID, code)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			err = apperror.EntityNotFound("entity_code", code)
		}
		h.respondError(c, err)
		return
	}
	view, err := entityView(et, *e, c.Query("language"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// CatalogEntities lists the entities of one type in a catalog
// @Summary List catalog entities
// @Tags entities
// @Produce json
// @Param code path string true "Catalog code"
// @Param type path string true "Entity type" Enums(currency, entitlement, product, storefront, override, promotion, coupon, filter_property)
// @Param language query string false "Render LocStrings for this language"
// @Success 200 {array} object
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/catalogs/{code}/entities/{type} [get]
func (h *Handler) CatalogEntities(c *gin.Context) {
	et, err := entityTypeParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	cat, err := h.catalogByCode(c, c.Param("code"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.listEntities(c, cat, et, nil)
}

// CatalogEntity returns one entity of a catalog by code
// @Summary Get a catalog entity
// @Tags entities
// @Produce json
// @Param code path string true "Catalog code"
// @Param type path string true "Entity type"
// @Param entity_code path string true "Entity code"
// @Param language query string false "Render LocStrings for this language"
// @Success 200 {object} object
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/catalogs/{code}/entities/{type}/{entity_code} [get]
func (h *Handler) CatalogEntity(c *gin.Context) {
	et, err := entityTypeParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	cat, err := h.catalogByCode(c, c.Param("code"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.oneEntity(c, cat, et)
}

// TitleEntities lists the entities of one type in the active MAIN catalog of a title
// @Summary List title entities
// @Tags entities
// @Produce json
// @Param title path string true "Title code"
// @Param type path string true "Entity type"
// @Param tags query string false "Comma-separated tags, an entity matches any of them"
// @Param language query string false "Render LocStrings for this language"
// @Success 200 {array} object
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/titles/{title}/entities/{type} [get]
func (h *Handler) TitleEntities(c *gin.Context) {
	et, err := entityTypeParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	cat, err := h.activeMain(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.listEntities(c, cat, et, parseTags(c))
}

// TitleEntity returns one entity of the active MAIN catalog of a title
// @Summary Get a title entity
// @Tags entities
// @Produce json
// @Param title path string true "Title code"
// @Param type path string true "Entity type"
// @Param entity_code path string true "Entity code"
// @Param language query string false "Render LocStrings for this language"
// @Success 200 {object} object
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/titles/{title}/entities/{type}/{entity_code} [get]
func (h *Handler) TitleEntity(c *gin.Context) {
	et, err := entityTypeParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	cat, err := h.activeMain(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.oneEntity(c, cat, et)
}

// Diff returns the changes of one entity type between two catalogs
// @Summary Diff two catalogs
// @Description With source "initial" every entity of the catalog is a CREATE.
// @Tags entities
// @Produce json
// @Param code path string true "Destination catalog code"
// @Param type path string true "Entity type"
// @Param source path string true "Source catalog code or initial"
// @Param fields query string false "Comma-separated fields to compare and return"
// @Param last_id query string false "Return records after this id"
// @Param limit query int false "Page size" minimum(0)
// @Success 200 {array} diff.Record
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/catalogs/{code}/entities/{type}/diff/{source} [get]
func (h *Handler) Diff(c *gin.Context) {
	var query DiffQuery
	if err := bindQuery(c, &query, diffQueryErrors); err != nil {
		h.respondError(c, err)
		return
	}
	source := c.Param("source")
	if source == "initial" {
		source = ""
	}
	q := diff.Query{
		Destination: c.Param("code"),
		Source:      source,
		EntityType:  strings.ToLower(c.Param("type")),
		Fields:      diff.ParseFields(query.Fields),
		Limit:       -1,
	}
	if query.LastID != "" {
		q.LastID = uuid.MustParse(query.LastID).String()
	}
	if query.Limit != nil {
		q.Limit = *query.Limit
	}

	records, err := h.diff.Diff(c.Request.Context(), q)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// Entity returns a stored entity by id
// @Summary Get an entity by id
// @Tags entities
// @Produce json
// @Param id path string true "Entity id (UUID)"
// @Param language query string false "Render LocStrings for this language"
// @Success 200 {object} object
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/entities/{id} [get]
func (h *Handler) Entity(c *gin.Context) {
	id := c.Param("id")
	if !catalog.ValidEntityID(id) {
		h.respondError(c, apperror.EntityNotFound("entity_id", id))
		return
	}
	e, err := database.GetEntity(c.Request.Context(), h.pool, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			err = apperror.EntityNotFound("entity_id", id)
		}
		h.respondError(c, err)
		return
	}
	et, ok := catalog.EntityTypeByID(e.EType)
	if !ok {
		h.respondError(c, fmt.Errorf("entity %s has unknown etype %d", id, e.EType))
		return
	}
	view, err := entityView(et, *e, c.Query("language"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// EntityCatalogs lists the catalogs containing an entity
// @Summary List catalogs of an entity
// @Tags entities
// @Produce json
// @Param id path string true "Entity id (UUID)"
// @Success 200 {array} EntityCatalog
// @Router /api/v1/entities/{id}/catalogs [get]
func (h *Handler) EntityCatalogs(c *gin.Context) {
	out := make([]EntityCatalog, 0)
	id := c.Param("id")
	if catalog.ValidEntityID(id) {
		codes, err := database.CatalogCodesOfEntity(c.Request.Context(), h.pool, id)
		if err != nil {
			h.respondError(c, err)
			return
		}
		for _, code := range codes {
			out = append(out, EntityCatalog{CatalogCode: code})
		}
	}
	c.JSON(http.StatusOK, out)
}

// EntityTitles lists the titles whose catalogs contain an entity
// @Summary List titles of an entity
// @Tags entities
// @Produce json
// @Param id path string true "Entity id (UUID)"
// @Success 200 {array} EntityTitle
// @Router /api/v1/entities/{id}/titles [get]
func (h *Handler) EntityTitles(c *gin.Context) {
	out := make([]EntityTitle, 0)
	id := c.Param("id")
	if catalog.ValidEntityID(id) {
		codes, err := database.TitleCodesOfEntity(c.Request.Context(), h.pool, id)
		if err != nil {
			h.respondError(c, err)
			return
		}
		for _, code := range codes {
			out = append(out, EntityTitle{Code: code})
		}
	}
	c.JSON(http.StatusOK, out)
}
