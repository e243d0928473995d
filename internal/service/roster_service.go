package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/studio-api/internal/models"
	appErrors "github.com/noah-isme/studio-api/pkg/errors"
)

type rosterUserRepository interface {
	NewID() string
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmailAndRole(ctx context.Context, email string, role models.UserRole) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	AddStudent(ctx context.Context, teacherID, studentID string) error
	RemoveStudent(ctx context.Context, teacherID, studentID string) error
}

type directorySource interface {
	Snapshot(ctx context.Context) (models.DirectorySnapshot, error)
}

// RosterService manages the students array of a teacher's user record.
//
// Every mutation writes first and then reads the directory and the teacher record
// again; the returned view reflects the store after the write, never a cached one.
type RosterService struct {
	users     rosterUserRepository
	directory directorySource
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRosterService constructs a RosterService.
func NewRosterService(users rosterUserRepository, directory directorySource, validate *validator.Validate, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &RosterService{users: users, directory: directory, validator: validate, logger: logger}
}

// Roster resolves the teacher's roster, optionally filtered by a name or email substring.
func (s *RosterService) Roster(ctx context.Context, teacherID, search string) (*models.RosterView, error) {
	view, err := s.refresh(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(search) == "" {
		return view, nil
	}
	filtered := make([]models.User, 0, len(view.Students))
	for _, u := range view.Students {
		if u.Matches(search) {
			filtered = append(filtered, u)
		}
	}
	view.Students = filtered
	return view, nil
}

// AddStudentByEmail adds the student registered under email to the teacher's roster,
// creating a student record when none exists. If the roster write fails after a new
// record was created, the returned error carries the new record's id.
func (s *RosterService) AddStudentByEmail(ctx context.Context, teacherID string, req models.AddStudentRequest) (*models.RosterView, error) {
	if strings.TrimSpace(teacherID) == "" {
		return nil, appErrors.ErrAuthRequired
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid student email")
	}

	teacher, err := s.users.FindByID(ctx, teacherID)
	if err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher record not found")
		}
		return nil, remoteError(err, "failed to load teacher")
	}

	created := false
	student, err := s.users.FindByEmailAndRole(ctx, req.Email, models.RoleStudent)
	switch {
	case err == nil:
	case isNotFound(err):
		student = &models.User{
			ID:       s.users.NewID(),
			Email:    req.Email,
			FullName: emailLocalPart(req.Email),
			Role:     models.RoleStudent,
		}
		if err := s.users.Create(ctx, student); err != nil {
			return nil, remoteError(err, "failed to create student")
		}
		created = true
		s.logger.Info("student record created", zap.String("student_id", student.ID), zap.String("teacher_id", teacherID))
	default:
		return nil, remoteError(err, "failed to look up student")
	}

	if teacher.HasStudent(student.ID) {
		return nil, appErrors.ErrAlreadyAssigned
	}

	if err := s.users.AddStudent(ctx, teacherID, student.ID); err != nil {
		e := appErrors.FromError(remoteError(err, "failed to add student to roster"))
		if created {
			e = appErrors.Clone(e, "")
			e.ResourceID = student.ID
		}
		return nil, e
	}
	return s.refresh(ctx, teacherID)
}

// RemoveStudent removes studentID from the teacher's roster. Removing an absent id
// succeeds.
func (s *RosterService) RemoveStudent(ctx context.Context, teacherID, studentID string) (*models.RosterView, error) {
	if strings.TrimSpace(teacherID) == "" {
		return nil, appErrors.ErrAuthRequired
	}
	if strings.TrimSpace(studentID) == "" {
		return nil, appErrors.Validation("student id is required")
	}
	if err := s.users.RemoveStudent(ctx, teacherID, studentID); err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher record not found")
		}
		return nil, remoteError(err, "failed to remove student from roster")
	}
	return s.refresh(ctx, teacherID)
}

// StudentDetail returns a student on the teacher's roster.
func (s *RosterService) StudentDetail(ctx context.Context, teacherID, studentID string) (*models.User, error) {
	if strings.TrimSpace(studentID) == "" {
		return nil, appErrors.Validation("student id is required")
	}
	view, err := s.refresh(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	for i := range view.Students {
		if view.Students[i].ID == studentID {
			return &view.Students[i], nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "student not on roster")
}

func (s *RosterService) refresh(ctx context.Context, teacherID string) (*models.RosterView, error) {
	if strings.TrimSpace(teacherID) == "" {
		return nil, appErrors.ErrAuthRequired
	}
	snapshot, err := s.directory.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	teacher, err := s.users.FindByID(ctx, teacherID)
	if err != nil {
		if isNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher record not found")
		}
		return nil, remoteError(err, "failed to load teacher")
	}

	ids := teacher.Students
	if ids == nil {
		ids = []string{}
	}
	return &models.RosterView{
		TeacherID:  teacherID,
		StudentIDs: ids,
		Students:   ResolveRoster(*teacher, snapshot),
		SnapshotAt: snapshot.TakenAt,
	}, nil
}

// ResolveRoster selects the student users of snapshot whose ids are on the teacher's
// students array, in snapshot order. Ids without a matching student are skipped.
func ResolveRoster(teacher models.User, snapshot models.DirectorySnapshot) []models.User {
	members := make(map[string]struct{}, len(teacher.Students))
	for _, id := range teacher.Students {
		members[id] = struct{}{}
	}
	out := make([]models.User, 0, len(members))
	for _, u := range snapshot.Users {
		if u.Role != models.RoleStudent {
			continue
		}
		if _, ok := members[u.ID]; ok {
			out = append(out, u)
		}
	}
	return out
}

func emailLocalPart(email string) string {
	if i := strings.Index(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}
