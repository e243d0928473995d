package models

import (
	"strings"
	"time"
)

// UserRole is the closed set of roles a user document can carry.
type UserRole string

const (
	RoleTeacher UserRole = "teacher"
	RoleStudent UserRole = "student"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	return r == RoleTeacher || r == RoleStudent
}

// User is a record of the users collection, keyed by identity id.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	FullName     string     `json:"fullName"`
	Role         UserRole   `json:"role,omitempty"`
	PhotoURL     string     `json:"photoUrl,omitempty"`
	Students     []string   `json:"students,omitempty"`
	GoogleSignIn bool       `json:"googleSignIn,omitempty"`
	CreatedAt    *Timestamp `json:"createdAt,omitempty"`
	UpdatedAt    *Timestamp `json:"updatedAt,omitempty"`
}

// HasStudent reports whether studentID is on the teacher's stored roster.
func (u User) HasStudent(studentID string) bool {
	for _, id := range u.Students {
		if id == studentID {
			return true
		}
	}
	return false
}

// Matches performs the case-insensitive name/email search used by roster listings.
func (u User) Matches(search string) bool {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(u.FullName), search) ||
		strings.Contains(strings.ToLower(u.Email), search)
}

// DirectorySnapshot is a point-in-time listing of all known users.
type DirectorySnapshot struct {
	Users   []User    `json:"users"`
	TakenAt time.Time `json:"taken_at"`

	byID map[string]User
}

// NewDirectorySnapshot indexes users by id.
func NewDirectorySnapshot(users []User, takenAt time.Time) DirectorySnapshot {
	byID := make(map[string]User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return DirectorySnapshot{Users: users, TakenAt: takenAt, byID: byID}
}

// Lookup returns the user with the given id.
func (d DirectorySnapshot) Lookup(id string) (User, bool) {
	if d.byID == nil {
		for _, u := range d.Users {
			if u.ID == id {
				return u, true
			}
		}
		return User{}, false
	}
	u, ok := d.byID[id]
	return u, ok
}

// Len returns the number of users in the snapshot.
func (d DirectorySnapshot) Len() int {
	return len(d.Users)
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
