package handler

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studio-api/internal/models"
	"github.com/noah-isme/studio-api/pkg/response"
)

type mediaService interface {
	Upload(ctx context.Context, ownerID string, r io.Reader) (*models.MediaUpload, error)
	Sign(ownerID, uri string) (*models.SignedMediaURL, error)
	Open(token string) (*os.File, string, error)
}

// MediaHandler uploads and serves content attachments.
type MediaHandler struct {
	service mediaService
}

// NewMediaHandler creates a new handler.
func NewMediaHandler(svc mediaService) *MediaHandler {
	return &MediaHandler{service: svc}
}

// SignRequest asks for a fresh download link.
type SignRequest struct {
	URI string `json:"uri" binding:"required"`
}

// Upload godoc
// @Summary Upload an attachment
// @Description Stores an image, audio or video file and returns its media URI and a signed URL
// @Tags Media
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Attachment"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /media [post]
func (h *MediaHandler) Upload(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, bindError(err, "file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, bindError(err, "file could not be read"))
		return
	}
	defer file.Close()

	upload, err := h.service.Upload(c.Request.Context(), claims.UserID, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, upload)
}

// Sign godoc
// @Summary Refresh a download link
// @Tags Media
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body SignRequest true "Media URI"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /media/sign [post]
func (h *MediaHandler) Sign(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req SignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "uri is required"))
		return
	}
	signed, err := h.service.Sign(claims.UserID, req.URI)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, signed, nil)
}

// Download godoc
// @Summary Download an attachment by signed token
// @Tags Media
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /media/{token} [get]
func (h *MediaHandler) Download(c *gin.Context) {
	file, contentType, err := h.service.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}
