package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/studio-api/internal/models"
	appErrors "github.com/noah-isme/studio-api/pkg/errors"
	"github.com/noah-isme/studio-api/pkg/export"
)

type assignmentRepository interface {
	Create(ctx context.Context, a *models.Assignment) error
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Assignment, error)
	UpdateStatus(ctx context.Context, id string, status models.AssignmentStatus) error
}

type contentLookup interface {
	FindByID(ctx context.Context, id string) (*models.ContentItem, error)
}

// AssignmentService records assignments and projects a student's pending content.
type AssignmentService struct {
	repo      assignmentRepository
	lessons   contentLookup
	technics  contentLookup
	renderer  *export.Renderer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssignmentService constructs an AssignmentService.
func NewAssignmentService(repo assignmentRepository, lessons, technics contentLookup, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AssignmentService{
		repo:      repo,
		lessons:   lessons,
		technics:  technics,
		renderer:  export.NewRenderer(),
		validator: validate,
		logger:    logger,
	}
}

// Assign creates a pending assignment. Duplicate assignments are allowed.
func (s *AssignmentService) Assign(ctx context.Context, req models.AssignRequest) (*models.Assignment, error) {
	req.Normalize()
	if req.TeacherID == "" || req.StudentID == "" || req.ContentID == "" {
		return nil, appErrors.Validation("teacher, student and content ids are required")
	}
	if !req.ContentType.Valid() {
		return nil, appErrors.Validation("content type must be lesson or technic")
	}

	a := &models.Assignment{
		TeacherID:   req.TeacherID,
		StudentID:   req.StudentID,
		ContentID:   req.ContentID,
		ContentType: req.ContentType,
		DueDate:     req.DueDate,
		Status:      models.AssignmentPending,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, remoteError(err, "failed to assign content")
	}
	s.logger.Info("content assigned",
		zap.String("assignment_id", a.ID),
		zap.String("teacher_id", a.TeacherID),
		zap.String("student_id", a.StudentID))
	return a, nil
}

// AssignMany assigns one item to several students in order, stopping at the first
// failure. Assignments made before the failure are kept and returned alongside it.
func (s *AssignmentService) AssignMany(ctx context.Context, teacherID string, req models.BulkAssignRequest) (*models.BulkAssignResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid assignment payload")
	}
	result := &models.BulkAssignResult{Assigned: make([]models.Assignment, 0, len(req.StudentIDs))}
	for _, studentID := range req.StudentIDs {
		a, err := s.Assign(ctx, models.AssignRequest{
			TeacherID:   teacherID,
			StudentID:   studentID,
			ContentID:   req.ContentID,
			ContentType: req.ContentType,
			DueDate:     req.DueDate,
		})
		if err != nil {
			result.FailedAt = studentID
			return result, err
		}
		result.Assigned = append(result.Assigned, *a)
	}
	return result, nil
}

// ListForStudent returns the student's assignments newest first.
func (s *AssignmentService) ListForStudent(ctx context.Context, studentID string) ([]models.Assignment, error) {
	if strings.TrimSpace(studentID) == "" {
		return nil, appErrors.Validation("student id is required")
	}
	list, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, remoteError(err, "failed to fetch assignments")
	}
	models.SortNewestFirst(list, func(a models.Assignment) *models.Timestamp { return a.CreatedAt })
	return list, nil
}

// UpdateStatus changes the status of an assignment and returns the stored record. Only
// the assigned student and the assigning teacher may change it.
func (s *AssignmentService) UpdateStatus(ctx context.Context, callerID, id string, req models.UpdateStatusRequest) (*models.Assignment, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Validation("assignment id is required")
	}
	req.Status = models.AssignmentStatus(strings.TrimSpace(string(req.Status)))
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid status payload")
	}
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, remoteError(err, "failed to load assignment")
	}
	if callerID == "" || (callerID != current.StudentID && callerID != current.TeacherID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a party to this assignment")
	}
	if err := s.repo.UpdateStatus(ctx, id, req.Status); err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, remoteError(err, "failed to update assignment")
	}
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, remoteError(err, "failed to reload assignment")
	}
	return a, nil
}

// AssignedContent fetches the student's assignments and the referenced items of
// contentType, then projects them.
func (s *AssignmentService) AssignedContent(ctx context.Context, studentID string, contentType models.ContentType) ([]models.AssignedContent, error) {
	if !contentType.Valid() {
		return nil, appErrors.Validation("content type must be lesson or technic")
	}
	assignments, err := s.ListForStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	lookup := s.lessons
	if contentType == models.ContentTechnic {
		lookup = s.technics
	}
	seen := make(map[string]struct{})
	items := make([]models.ContentItem, 0)
	for _, a := range assignments {
		if a.ContentType != contentType || a.Status != models.AssignmentPending {
			continue
		}
		if _, ok := seen[a.ContentID]; ok {
			continue
		}
		seen[a.ContentID] = struct{}{}
		item, err := lookup.FindByID(ctx, a.ContentID)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, remoteError(err, fmt.Sprintf("failed to fetch %s", contentType))
		}
		items = append(items, *item)
	}

	if contentType == models.ContentTechnic {
		return ProjectAssignedContent(contentType, assignments, nil, items), nil
	}
	return ProjectAssignedContent(contentType, assignments, items, nil), nil
}

// ProjectAssignedContent joins pending assignments of contentType with their content
// items. Assignments whose item is not in the matching list are dropped. Output follows
// the order of assignments.
func ProjectAssignedContent(contentType models.ContentType, assignments []models.Assignment, lessons, technics []models.ContentItem) []models.AssignedContent {
	source := lessons
	if contentType == models.ContentTechnic {
		source = technics
	}
	byID := make(map[string]models.ContentItem, len(source))
	for _, item := range source {
		byID[item.ID] = item
	}

	out := make([]models.AssignedContent, 0)
	for _, a := range assignments {
		if a.ContentType != contentType || a.Status != models.AssignmentPending {
			continue
		}
		item, ok := byID[a.ContentID]
		if !ok {
			continue
		}
		out = append(out, models.AssignedContent{
			ContentItem:  item,
			ContentType:  contentType,
			DueDate:      a.DueDate,
			AssignmentID: a.ID,
		})
	}
	return out
}

var reportHeaders = []string{"Title", "Type", "Status", "Due Date", "Assigned At", "Teacher"}

// Report renders the student's assignments in the requested format. Items whose
// content no longer exists are listed with an empty title.
func (s *AssignmentService) Report(ctx context.Context, studentID, rawFormat string) ([]byte, export.Format, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, "", appErrors.Validation(err.Error())
	}
	assignments, err := s.ListForStudent(ctx, studentID)
	if err != nil {
		return nil, "", err
	}

	titles := make(map[string]string)
	rows := make([]map[string]string, 0, len(assignments))
	for _, a := range assignments {
		title, ok := titles[a.ContentID]
		if !ok {
			title = s.contentTitle(ctx, a.ContentType, a.ContentID)
			titles[a.ContentID] = title
		}
		assignedAt := ""
		if a.CreatedAt != nil {
			assignedAt = a.CreatedAt.Time().Format("2006-01-02 15:04")
		}
		rows = append(rows, map[string]string{
			"Title":       title,
			"Type":        string(a.ContentType),
			"Status":      string(a.Status),
			"Due Date":    a.DueDate,
			"Assigned At": assignedAt,
			"Teacher":     a.TeacherID,
		})
	}

	payload, err := s.renderer.Render(format, export.Dataset{
		Title:   fmt.Sprintf("Assignments for %s", studentID),
		Headers: reportHeaders,
		Rows:    rows,
	})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}
	return payload, format, nil
}

func (s *AssignmentService) contentTitle(ctx context.Context, contentType models.ContentType, id string) string {
	lookup := s.lessons
	if contentType == models.ContentTechnic {
		lookup = s.technics
	}
	if lookup == nil {
		return ""
	}
	item, err := lookup.FindByID(ctx, id)
	if err != nil {
		if !isNotFound(err) {
			s.logger.Warn("report title lookup failed", zap.String("content_id", id), zap.Error(err))
		}
		return ""
	}
	return item.Title
}
