package models

import "time"

// AddStudentRequest adds a student to the caller's roster by email.
type AddStudentRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// RosterView is the resolved roster of a teacher at the time of a directory snapshot.
type RosterView struct {
	TeacherID  string    `json:"teacher_id"`
	StudentIDs []string  `json:"student_ids"`
	Students   []User    `json:"students"`
	SnapshotAt time.Time `json:"snapshot_at"`
}
