package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kosarica/catalog-service/internal/apperror"
	"github.com/kosarica/catalog-service/internal/catalog"
	"github.com/kosarica/catalog-service/internal/database"
	"github.com/kosarica/catalog-service/internal/publish"
	"github.com/kosarica/catalog-service/internal/taskqueue"
)

// DefaultPublicationsLimit is the page size of the publications list.
const DefaultPublicationsLimit = 50

// PublishRequest is the body of a v1 publish.
type PublishRequest struct {
	URL         string `json:"url" binding:"required" jsonschema:"required"`
	CatalogCode string `json:"catalog_code" binding:"required" jsonschema:"required"`
	PublishID   string `json:"publish_id" binding:"required" jsonschema:"required"`
}

// PublishV2Request is the body of a v2 publish. The version is chosen by the
// server.
type PublishV2Request struct {
	URL         string `json:"url" binding:"required" jsonschema:"required"`
	TitleCode   string `json:"title_code" binding:"required" jsonschema:"required"`
	CatalogType string `json:"catalog_type" binding:"required" jsonschema:"required,enum=MAIN,enum=COUPON"`
	PublishID   string `json:"publish_id" binding:"required" jsonschema:"required"`
}

// PublishV2Response names the catalog a v2 publish created.
type PublishV2Response struct {
	CatalogCode string `json:"catalog_code" jsonschema:"required"`
}

// RepublishRequest is the body of a republish.
type RepublishRequest struct {
	CatalogCode string `json:"catalog_code" binding:"required" jsonschema:"required"`
	PublishID   string `json:"publish_id" binding:"required" jsonschema:"required"`
}

// MigrateRequest is the body of a migrate. Dates are ISO-8601 with a zone.
type MigrateRequest struct {
	URL          string  `json:"url" binding:"required" jsonschema:"required"`
	CatalogCode  string  `json:"catalog_code" binding:"required" jsonschema:"required"`
	ActivatedAt  string  `json:"activated_at" binding:"required" jsonschema:"required,format=date-time"`
	TerminatedAt *string `json:"terminated_at" jsonschema:"format=date-time"`
}

// PublicationsQuery are the query parameters of the publications list.
type PublicationsQuery struct {
	Limit int `form:"limit,default=50"`
}

var publicationsQueryErrors = map[string]string{
	"limit": "Parameter limit must be an integer.",
}

// PublicationInfo is one publish task with the state of its catalog.
type PublicationInfo struct {
	Status       string     `json:"status" jsonschema:"required,enum=PENDING,enum=IN_PROGRESS,enum=FAILED,enum=ACTIVATED,enum=TERMINATED"`
	PublishID    string     `json:"publish_id" jsonschema:"required"`
	CatalogCode  string     `json:"catalog_code" jsonschema:"required"`
	TrackingID   string     `json:"tracking_id"`
	CreatedAt    time.Time  `json:"created_at" jsonschema:"required"`
	ActivatedAt  *time.Time `json:"activated_at"`
	TerminatedAt *time.Time `json:"terminated_at"`
	FinishedAt   *time.Time `json:"finished_at"`
	Failure      *string    `json:"failure"`
}

func newPublicationInfo(p taskqueue.Publication) PublicationInfo {
	return PublicationInfo{
		Status:       p.PublicStatus(),
		PublishID:    p.ID,
		CatalogCode:  p.CatalogCode,
		TrackingID:   p.TrackingID,
		CreatedAt:    p.CreatedAt,
		ActivatedAt:  p.ActivatedAt,
		TerminatedAt: p.TerminatedAt,
		FinishedAt:   p.FinishedAt,
		Failure:      p.Failure,
	}
}

// Publish accepts a catalog for publishing
// @Summary Publish a catalog
// @Description Accepts a catalog archive for asynchronous publishing. The optional tool receives status notifications.
// @Tags publish
// @Accept json
// @Produce json
// @Param tool path string false "Publishing tool" Enums(catool, coupons, manual)
// @Param request body PublishRequest true "Publish request"
// @Success 201 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/{tool}/catalog/publish [post]
func (h *Handler) Publish(c *gin.Context) {
	var req PublishRequest
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}
	sub := publish.Submission{
		Origin:      origin(c),
		Tool:        c.Param("tool"),
		URL:         req.URL,
		CatalogCode: req.CatalogCode,
		PublishID:   req.PublishID,
	}

	if _, err := h.publish.Submit(c.Request.Context(), sub); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{})
}

// PublishV2 accepts the next version of a (title, type) for publishing
// @Summary Publish the next catalog version
// @Tags publish
// @Accept json
// @Produce json
// @Param tool path string true "Publishing tool" Enums(catool, coupons, manual)
// @Param request body PublishV2Request true "Publish request"
// @Success 201 {object} PublishV2Response
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v2/{tool}/catalog/publish [post]
func (h *Handler) PublishV2(c *gin.Context) {
	var req PublishV2Request
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}
	sub := publish.SubmissionV2{
		Origin:      origin(c),
		Tool:        c.Param("tool"),
		URL:         req.URL,
		TitleCode:   req.TitleCode,
		CatalogType: req.CatalogType,
		PublishID:   req.PublishID,
	}

	accepted, err := h.publish.SubmitV2(c.Request.Context(), sub)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, PublishV2Response{CatalogCode: accepted.CatalogCode})
}

// Republish publishes an existing catalog again from its stored archive url
// @Summary Republish a catalog
// @Tags publish
// @Accept json
// @Produce json
// @Param tool path string true "Publishing tool" Enums(catool, coupons, manual)
// @Param request body RepublishRequest true "Republish request"
// @Success 201 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Router /api/v2/{tool}/catalog/republish [post]
// @Router /api/v2/catalog/republish [post]
func (h *Handler) Republish(c *gin.Context) {
	var req RepublishRequest
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}
	rep := publish.Republication{
		Origin:      origin(c),
		Tool:        c.Param("tool"),
		CatalogCode: req.CatalogCode,
		PublishID:   req.PublishID,
	}

	if _, err := h.publish.Republish(c.Request.Context(), rep); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{})
}

// Migrate registers a historical catalog without running the pipeline
// @Summary Migrate a catalog
// @Description Stores a catalog with the given lifecycle dates. Returns "Migrated", "Already migrated" or "Terminated date was set.".
// @Tags publish
// @Accept json
// @Produce plain
// @Param request body MigrateRequest true "Migrate request"
// @Success 200 {string} string
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/catalog/migrate [post]
func (h *Handler) Migrate(c *gin.Context) {
	var req MigrateRequest
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}
	m := publish.Migration{Origin: origin(c), URL: req.URL, CatalogCode: req.CatalogCode}
	activated, err := publish.ParseDateTime("activated_at", req.ActivatedAt)
	if err != nil {
		h.respondError(c, err)
		return
	}
	m.ActivatedAt = activated
	if req.TerminatedAt != nil && *req.TerminatedAt != "" {
		terminated, err := publish.ParseDateTime("terminated_at", *req.TerminatedAt)
		if err != nil {
			h.respondError(c, err)
			return
		}
		m.TerminatedAt = &terminated
	}

	outcome, err := h.publish.Migrate(c.Request.Context(), m)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.String(http.StatusOK, outcome)
}

// PublishStatus returns the state of a publish task
// @Summary Get publish status
// @Tags publish
// @Produce json
// @Param publish_id path string true "Publish id (ULID)"
// @Success 200 {array} PublicationInfo
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/catalog/publish/{publish_id}/status [get]
func (h *Handler) PublishStatus(c *gin.Context) {
	id := c.Param("publish_id")
	if id == "" {
		h.respondError(c, apperror.Client("Parameter publish_id is required.").With("field", "publish_id"))
		return
	}
	if err := catalog.ValidatePublishID(id); err != nil {
		h.respondError(c, apperror.Validation(err.Error()).With("field", "publish_id"))
		return
	}

	out := make([]PublicationInfo, 0, 1)
	p, err := h.queue.Publication(c.Request.Context(), id)
	switch {
	case errors.Is(err, taskqueue.ErrNotFound):
	case err != nil:
		h.respondError(c, err)
		return
	default:
		out = append(out, newPublicationInfo(*p))
	}
	c.JSON(http.StatusOK, out)
}

// Publications lists the publish tasks of a title, newest first
// @Summary List publications of a title
// @Tags publish
// @Produce json
// @Param title path string true "Title code"
// @Param limit query int false "Number of items to return" default(50) minimum(0)
// @Success 200 {array} PublicationInfo
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/titles/{title}/catalog/publications [get]
func (h *Handler) Publications(c *gin.Context) {
	query := PublicationsQuery{Limit: DefaultPublicationsLimit}
	if err := bindQuery(c, &query, publicationsQueryErrors); err != nil {
		h.respondError(c, err)
		return
	}
	if query.Limit < 0 {
		h.respondError(c, apperror.Internal(errors.New("negative publications limit")))
		return
	}

	ctx := c.Request.Context()
	titleCode := c.Param("title")
	title, err := database.GetTitle(ctx, h.pool, titleCode)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			err = apperror.TitleNotFound(titleCode)
		}
		h.respondError(c, err)
		return
	}

	pubs, err := h.queue.Publications(ctx, title.ID, query.Limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	out := make([]PublicationInfo, 0, len(pubs))
	for _, p := range pubs {
		out = append(out, newPublicationInfo(p))
	}
	c.JSON(http.StatusOK, out)
}
