package models

import "strings"

// ContentType distinguishes the two content collections.
type ContentType string

const (
	ContentLesson  ContentType = "lesson"
	ContentTechnic ContentType = "technic"
)

// Collection names used by the document store.
const (
	CollectionUsers       = "users"
	CollectionLessons     = "Lesson"
	CollectionTechnics    = "Technic"
	CollectionAssignments = "assignments"
)

// Valid reports whether t is a known content type.
func (t ContentType) Valid() bool {
	return t == ContentLesson || t == ContentTechnic
}

// Collection returns the document collection holding items of this type.
func (t ContentType) Collection() string {
	if t == ContentTechnic {
		return CollectionTechnics
	}
	return CollectionLessons
}

// ContentItem is a lesson or technique owned by the teacher in UserID.
type ContentItem struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	UserID      string     `json:"userId"`
	UserEmail   string     `json:"userEmail,omitempty"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	VideoURL    string     `json:"videoUrl,omitempty"`
	AudioURL    string     `json:"audioUrl,omitempty"`
	Difficulty  string     `json:"difficulty,omitempty"`
	Instrument  string     `json:"instrument,omitempty"`
	Level       string     `json:"level,omitempty"`
	CreatedAt   *Timestamp `json:"createdAt,omitempty"`
	UpdatedAt   *Timestamp `json:"updatedAt,omitempty"`
}

// MediaURIs lists the attachment references of the item.
func (c ContentItem) MediaURIs() []string {
	uris := make([]string, 0, 3)
	for _, uri := range []string{c.ImageURL, c.VideoURL, c.AudioURL} {
		if strings.TrimSpace(uri) != "" {
			uris = append(uris, uri)
		}
	}
	return uris
}

// ContentInput carries the mutable fields of a content item.
type ContentInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
	UserEmail   string `json:"userEmail" validate:"omitempty,email"`
	ImageURL    string `json:"imageUrl" validate:"max=2048"`
	VideoURL    string `json:"videoUrl" validate:"max=2048"`
	AudioURL    string `json:"audioUrl" validate:"max=2048"`
	Difficulty  string `json:"difficulty" validate:"max=64"`
	Instrument  string `json:"instrument" validate:"max=64"`
	Level       string `json:"level" validate:"max=64"`
}

// Normalize trims text fields in place.
func (in *ContentInput) Normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.UserEmail = strings.TrimSpace(in.UserEmail)
}
