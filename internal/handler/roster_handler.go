package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studio-api/internal/models"
	"github.com/noah-isme/studio-api/pkg/response"
)

type rosterService interface {
	Roster(ctx context.Context, teacherID, search string) (*models.RosterView, error)
	AddStudentByEmail(ctx context.Context, teacherID string, req models.AddStudentRequest) (*models.RosterView, error)
	RemoveStudent(ctx context.Context, teacherID, studentID string) (*models.RosterView, error)
	StudentDetail(ctx context.Context, teacherID, studentID string) (*models.User, error)
}

// RosterHandler manages the caller's roster.
type RosterHandler struct {
	service rosterService
}

// NewRosterHandler creates a new handler.
func NewRosterHandler(svc rosterService) *RosterHandler {
	return &RosterHandler{service: svc}
}

// Get godoc
// @Summary Resolved roster of the caller
// @Tags Roster
// @Produce json
// @Security BearerAuth
// @Param search query string false "Name or email substring"
// @Success 200 {object} response.Envelope
// @Router /roster [get]
func (h *RosterHandler) Get(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	view, err := h.service.Roster(c.Request.Context(), claims.UserID, c.Query("search"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Add godoc
// @Summary Add a student by email
// @Description Creates a student record when the email is unknown
// @Tags Roster
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.AddStudentRequest true "Student email"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /roster [post]
func (h *RosterHandler) Add(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req models.AddStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid roster payload"))
		return
	}
	view, err := h.service.AddStudentByEmail(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Remove godoc
// @Summary Remove a student from the roster
// @Tags Roster
// @Produce json
// @Security BearerAuth
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /roster/{studentId} [delete]
func (h *RosterHandler) Remove(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	view, err := h.service.RemoveStudent(c.Request.Context(), claims.UserID, c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Detail godoc
// @Summary Student on the caller's roster
// @Tags Roster
// @Produce json
// @Security BearerAuth
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /roster/{studentId} [get]
func (h *RosterHandler) Detail(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	student, err := h.service.StudentDetail(c.Request.Context(), claims.UserID, c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}
