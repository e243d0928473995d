package session

import (
	"context"
	"sync"

	"github.com/noah-isme/studio-api/internal/models"
	"github.com/noah-isme/studio-api/internal/service"
)

// AssignmentFeed holds the assignments addressed to one student.
type AssignmentFeed struct {
	studentID string
	backend   AssignmentBackend
	scope     *Scope
	tracker   *Tracker

	mu    sync.RWMutex
	items []models.Assignment
}

func newAssignmentFeed(studentID string, backend AssignmentBackend, scope *Scope, tracker *Tracker) *AssignmentFeed {
	return &AssignmentFeed{studentID: studentID, backend: backend, scope: scope, tracker: tracker}
}

// StudentID returns the student the feed belongs to.
func (f *AssignmentFeed) StudentID() string {
	return f.studentID
}

// Items returns the assignments, newest first.
func (f *AssignmentFeed) Items() []models.Assignment {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]models.Assignment, len(f.items))
	copy(out, f.items)
	return out
}

// Refresh reloads the feed.
func (f *AssignmentFeed) Refresh(ctx context.Context) error {
	return f.tracker.Track(ctx, func(ctx context.Context) error {
		items, err := f.backend.StudentAssignments(ctx, f.studentID)
		if err != nil {
			return err
		}
		return f.apply(func() {
			f.items = items
			f.sort()
		})
	})
}

// UpdateStatus changes the status of one assignment.
func (f *AssignmentFeed) UpdateStatus(ctx context.Context, id string, status models.AssignmentStatus) (*models.Assignment, error) {
	var updated *models.Assignment
	err := f.tracker.Track(ctx, func(ctx context.Context) error {
		a, err := f.backend.UpdateAssignmentStatus(ctx, id, status)
		if err != nil {
			return err
		}
		updated = a
		return f.apply(func() { f.merge(*a) })
	})
	return updated, err
}

// Project joins the pending assignments of kind with the given content lists.
func (f *AssignmentFeed) Project(kind models.ContentType, lessons, technics []models.ContentItem) []models.AssignedContent {
	return service.ProjectAssignedContent(kind, f.Items(), lessons, technics)
}

func (f *AssignmentFeed) add(assignments []models.Assignment) {
	_ = f.apply(func() {
		for _, a := range assignments {
			if a.StudentID == f.studentID {
				f.merge(a)
			}
		}
	})
}

// merge must be called with mu held.
func (f *AssignmentFeed) merge(a models.Assignment) {
	for i := range f.items {
		if f.items[i].ID == a.ID {
			f.items[i] = a
			return
		}
	}
	f.items = append(f.items, a)
	f.sort()
}

func (f *AssignmentFeed) sort() {
	models.SortNewestFirst(f.items, func(a models.Assignment) *models.Timestamp { return a.CreatedAt })
}

func (f *AssignmentFeed) apply(fn func()) error {
	applied := f.scope.Apply(func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		fn()
	})
	if !applied {
		return ErrStale
	}
	return nil
}

// AssignedLibrary is a student's pending content of one kind, as projected by the
// backend.
type AssignedLibrary struct {
	studentID string
	kind      models.ContentType
	backend   AssignmentBackend
	scope     *Scope
	tracker   *Tracker

	mu    sync.RWMutex
	items []models.AssignedContent
}

func newAssignedLibrary(studentID string, kind models.ContentType, backend AssignmentBackend, scope *Scope, tracker *Tracker) *AssignedLibrary {
	return &AssignedLibrary{studentID: studentID, kind: kind, backend: backend, scope: scope, tracker: tracker}
}

// Items returns the pending content.
func (l *AssignedLibrary) Items() []models.AssignedContent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.AssignedContent, len(l.items))
	copy(out, l.items)
	return out
}

// Refresh reloads the library.
func (l *AssignedLibrary) Refresh(ctx context.Context) error {
	return l.tracker.Track(ctx, func(ctx context.Context) error {
		items, err := l.backend.Library(ctx, l.studentID, l.kind)
		if err != nil {
			return err
		}
		applied := l.scope.Apply(func() {
			l.mu.Lock()
			l.items = items
			l.mu.Unlock()
		})
		if !applied {
			return ErrStale
		}
		return nil
	})
}

func (l *AssignedLibrary) drop(assignmentID string) {
	l.scope.Apply(func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, item := range l.items {
			if item.AssignmentID == assignmentID {
				l.items = append(l.items[:i:i], l.items[i+1:]...)
				return
			}
		}
	})
}
