package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studio-api/internal/middleware"
	"github.com/noah-isme/studio-api/internal/models"
	"github.com/noah-isme/studio-api/pkg/response"
)

type contentService interface {
	Kind() models.ContentType
	Create(ctx context.Context, ownerID string, input models.ContentInput) (*models.ContentItem, error)
	ListForOwner(ctx context.Context, ownerID string) ([]models.ContentItem, bool, error)
	Get(ctx context.Context, id string) (*models.ContentItem, error)
	Update(ctx context.Context, id, ownerID string, input models.ContentInput) (*models.ContentItem, error)
	Delete(ctx context.Context, id string) error
}

// ContentHandler serves one content collection (lessons or technics).
type ContentHandler struct {
	service contentService
}

// NewContentHandler creates a new handler.
func NewContentHandler(svc contentService) *ContentHandler {
	return &ContentHandler{service: svc}
}

// List godoc
// @Summary List the caller's content
// @Description Lists lessons or technics owned by the caller, newest first
// @Tags Content
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /lessons [get]
// @Router /technics [get]
func (h *ContentHandler) List(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	items, hit, err := h.service.ListForOwner(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	total := len(items)
	response.JSON(c, http.StatusOK, items, &models.Pagination{Page: 1, PageSize: total, TotalCount: total}, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get a content item
// @Tags Content
// @Produce json
// @Security BearerAuth
// @Param id path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /lessons/{id} [get]
// @Router /technics/{id} [get]
func (h *ContentHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Create godoc
// @Summary Create a content item
// @Tags Content
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.ContentInput true "Content payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /lessons [post]
// @Router /technics [post]
func (h *ContentHandler) Create(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var input models.ContentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, bindError(err, "invalid "+string(h.service.Kind())+" payload"))
		return
	}
	if input.UserEmail == "" {
		input.UserEmail = claims.Email
	}
	item, err := h.service.Create(c.Request.Context(), claims.UserID, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Replace a content item
// @Tags Content
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Item ID"
// @Param payload body models.ContentInput true "Content payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /lessons/{id} [put]
// @Router /technics/{id} [put]
func (h *ContentHandler) Update(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var input models.ContentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, bindError(err, "invalid "+string(h.service.Kind())+" payload"))
		return
	}
	if input.UserEmail == "" {
		input.UserEmail = claims.Email
	}
	item, err := h.service.Update(c.Request.Context(), c.Param("id"), claims.UserID, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete a content item
// @Tags Content
// @Security BearerAuth
// @Param id path string true "Item ID"
// @Success 204
// @Router /lessons/{id} [delete]
// @Router /technics/{id} [delete]
func (h *ContentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
