package models

import "strings"

// AssignmentStatus tracks the workflow stage of an assignment.
type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "pending"
	AssignmentCompleted AssignmentStatus = "completed"
)

// Assignment directs a student to complete a content item by a due date.
type Assignment struct {
	ID          string           `json:"id"`
	TeacherID   string           `json:"teacherId"`
	StudentID   string           `json:"studentId"`
	ContentID   string           `json:"contentId"`
	ContentType ContentType      `json:"contentType"`
	DueDate     string           `json:"dueDate,omitempty"`
	Status      AssignmentStatus `json:"status"`
	CreatedAt   *Timestamp       `json:"createdAt,omitempty"`
	UpdatedAt   *Timestamp       `json:"updatedAt,omitempty"`
}

// AssignRequest creates a single assignment.
type AssignRequest struct {
	TeacherID   string      `json:"teacherId"`
	StudentID   string      `json:"studentId"`
	ContentID   string      `json:"contentId"`
	ContentType ContentType `json:"contentType"`
	DueDate     string      `json:"dueDate"`
}

// Normalize trims identifiers in place.
func (r *AssignRequest) Normalize() {
	r.TeacherID = strings.TrimSpace(r.TeacherID)
	r.StudentID = strings.TrimSpace(r.StudentID)
	r.ContentID = strings.TrimSpace(r.ContentID)
	r.DueDate = strings.TrimSpace(r.DueDate)
}

// BulkAssignRequest assigns one content item to several students.
type BulkAssignRequest struct {
	ContentID   string      `json:"contentId" validate:"required"`
	ContentType ContentType `json:"contentType" validate:"required,oneof=lesson technic"`
	DueDate     string      `json:"dueDate"`
	StudentIDs  []string    `json:"studentIds" validate:"required,min=1,dive,required"`
}

// BulkAssignResult lists the assignments created before any failure.
type BulkAssignResult struct {
	Assigned []Assignment `json:"assigned"`
	FailedAt string       `json:"failed_at,omitempty"`
}

// UpdateStatusRequest changes the status of an assignment.
type UpdateStatusRequest struct {
	Status AssignmentStatus `json:"status" validate:"required,max=32"`
}

// AssignedContent joins a pending assignment with its content item.
type AssignedContent struct {
	ContentItem
	ContentType  ContentType `json:"contentType"`
	DueDate      string      `json:"dueDate,omitempty"`
	AssignmentID string      `json:"assignmentId"`
}
