package repository

import (
	"context"
	"fmt"

	"github.com/noah-isme/studio-api/internal/models"
	"github.com/noah-isme/studio-api/pkg/docstore"
)

// AssignmentRepository reads and writes the assignments collection.
type AssignmentRepository struct {
	store docstore.Store
}

// NewAssignmentRepository creates a new instance of AssignmentRepository.
func NewAssignmentRepository(store docstore.Store) *AssignmentRepository {
	return &AssignmentRepository{store: store}
}

// Create writes a new assignment and reloads it with its timestamps.
func (r *AssignmentRepository) Create(ctx context.Context, a *models.Assignment) error {
	id := r.store.NewID()
	fields := docstore.Fields{
		"teacherId":   a.TeacherID,
		"studentId":   a.StudentID,
		"contentId":   a.ContentID,
		"contentType": string(a.ContentType),
		"dueDate":     a.DueDate,
		"status":      string(a.Status),
		"createdAt":   docstore.ServerTimestamp(),
		"updatedAt":   docstore.ServerTimestamp(),
	}
	if err := r.store.Set(ctx, models.CollectionAssignments, id, fields); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	stored, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	*a = *stored
	return nil
}

// FindByID returns a single assignment.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	doc, err := r.store.Get(ctx, models.CollectionAssignments, id)
	if err != nil {
		return nil, fmt.Errorf("find assignment: %w", err)
	}
	return decodeAssignment(doc)
}

// ListByStudent returns every assignment addressed to studentID.
func (r *AssignmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Assignment, error) {
	docs, err := r.store.Query(ctx, models.CollectionAssignments, docstore.Where("studentId", docstore.OpEqual, studentID))
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	out := make([]models.Assignment, 0, len(docs))
	for i := range docs {
		a, err := decodeAssignment(&docs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}

// UpdateStatus sets the status and bumps updatedAt.
func (r *AssignmentRepository) UpdateStatus(ctx context.Context, id string, status models.AssignmentStatus) error {
	err := r.store.Update(ctx, models.CollectionAssignments, id, docstore.Fields{
		"status":    string(status),
		"updatedAt": docstore.ServerTimestamp(),
	})
	if err != nil {
		return fmt.Errorf("update assignment status: %w", err)
	}
	return nil
}

func decodeAssignment(doc *docstore.Document) (*models.Assignment, error) {
	var a models.Assignment
	if err := doc.DataTo(&a); err != nil {
		return nil, err
	}
	a.ID = doc.ID
	return &a, nil
}
