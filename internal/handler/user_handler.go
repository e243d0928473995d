package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studio-api/internal/models"
	"github.com/noah-isme/studio-api/pkg/response"
)

type directoryService interface {
	Snapshot(ctx context.Context) (models.DirectorySnapshot, error)
}

// UserHandler exposes the user directory.
type UserHandler struct {
	directory directoryService
}

// NewUserHandler creates a new handler.
func NewUserHandler(directory directoryService) *UserHandler {
	return &UserHandler{directory: directory}
}

// List godoc
// @Summary List all users
// @Description Returns a fresh directory snapshot
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	snapshot, err := h.directory.Snapshot(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	total := snapshot.Len()
	response.JSON(c, http.StatusOK, snapshot.Users, &models.Pagination{Page: 1, PageSize: total, TotalCount: total},
		map[string]interface{}{"taken_at": snapshot.TakenAt})
}
