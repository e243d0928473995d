package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studio-api/internal/models"
	"github.com/noah-isme/studio-api/pkg/export"
	"github.com/noah-isme/studio-api/pkg/response"
)

type assignmentService interface {
	Assign(ctx context.Context, req models.AssignRequest) (*models.Assignment, error)
	AssignMany(ctx context.Context, teacherID string, req models.BulkAssignRequest) (*models.BulkAssignResult, error)
	ListForStudent(ctx context.Context, studentID string) ([]models.Assignment, error)
	UpdateStatus(ctx context.Context, callerID, id string, req models.UpdateStatusRequest) (*models.Assignment, error)
	AssignedContent(ctx context.Context, studentID string, contentType models.ContentType) ([]models.AssignedContent, error)
	Report(ctx context.Context, studentID, format string) ([]byte, export.Format, error)
}

// AssignmentHandler exposes the assignment ledger.
type AssignmentHandler struct {
	service assignmentService
}

// NewAssignmentHandler creates a new handler.
func NewAssignmentHandler(svc assignmentService) *AssignmentHandler {
	return &AssignmentHandler{service: svc}
}

// AssignmentPayload assigns one item to studentId or to each of studentIds.
type AssignmentPayload struct {
	StudentID   string             `json:"studentId"`
	StudentIDs  []string           `json:"studentIds"`
	ContentID   string             `json:"contentId"`
	ContentType models.ContentType `json:"contentType"`
	DueDate     string             `json:"dueDate"`
}

// Create godoc
// @Summary Assign content to students
// @Description Assigns to studentId, or to every id in studentIds in order. A failure stops the batch and the response lists what was assigned.
// @Tags Assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body AssignmentPayload true "Assignment"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /assignments [post]
func (h *AssignmentHandler) Create(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req AssignmentPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid assignment payload"))
		return
	}

	if len(req.StudentIDs) == 0 {
		a, err := h.service.Assign(c.Request.Context(), models.AssignRequest{
			TeacherID:   claims.UserID,
			StudentID:   req.StudentID,
			ContentID:   req.ContentID,
			ContentType: req.ContentType,
			DueDate:     req.DueDate,
		})
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Created(c, a)
		return
	}

	res, err := h.service.AssignMany(c.Request.Context(), claims.UserID, models.BulkAssignRequest{
		ContentID:   req.ContentID,
		ContentType: req.ContentType,
		DueDate:     req.DueDate,
		StudentIDs:  req.StudentIDs,
	})
	if err != nil {
		if res != nil && len(res.Assigned) > 0 {
			_ = c.Error(err)
			response.JSON(c, http.StatusMultiStatus, res, nil, map[string]interface{}{"error": err.Error()})
			return
		}
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// UpdateStatus godoc
// @Summary Change an assignment's status
// @Tags Assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Param payload body models.UpdateStatusRequest true "Status"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assignments/{id}/status [patch]
func (h *AssignmentHandler) UpdateStatus(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req models.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid status payload"))
		return
	}
	a, err := h.service.UpdateStatus(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, a, nil)
}

// ListForStudent godoc
// @Summary List a student's assignments
// @Tags Assignments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/assignments [get]
func (h *AssignmentHandler) ListForStudent(c *gin.Context) {
	list, err := h.service.ListForStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	total := len(list)
	response.JSON(c, http.StatusOK, list, &models.Pagination{Page: 1, PageSize: total, TotalCount: total})
}

// Library godoc
// @Summary Pending content assigned to a student
// @Tags Assignments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param type query string false "lesson or technic" default(lesson)
// @Success 200 {object} response.Envelope
// @Router /students/{id}/library [get]
func (h *AssignmentHandler) Library(c *gin.Context) {
	contentType := models.ContentType(c.DefaultQuery("type", string(models.ContentLesson)))
	items, err := h.service.AssignedContent(c.Request.Context(), c.Param("id"), contentType)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Export godoc
// @Summary Export a student's assignments
// @Tags Assignments
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param format query string false "csv, pdf or xlsx" default(csv)
// @Success 200 {file} file
// @Router /students/{id}/assignments/export [get]
func (h *AssignmentHandler) Export(c *gin.Context) {
	studentID := c.Param("id")
	payload, format, err := h.service.Report(c.Request.Context(), studentID, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"assignments-%s.%s\"", studentID, format))
	c.Data(http.StatusOK, format.ContentType(), payload)
}
