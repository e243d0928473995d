package session

import (
	"context"
	"sync"
	"time"

	"github.com/noah-isme/studio-api/internal/models"
	"github.com/noah-isme/studio-api/internal/service"
)

// Roster is a teacher's local view of "my students". The id set is edited locally and
// idempotently; remote edits replace it with the roster the backend re-read after its
// write. Between the write and that re-read other readers may see the old roster.
type Roster struct {
	teacherID string
	backend   RosterBackend
	scope     *Scope
	tracker   *Tracker

	mu         sync.RWMutex
	ids        []string
	students   []models.User
	snapshotAt time.Time
}

func newRoster(teacherID string, backend RosterBackend, scope *Scope, tracker *Tracker) *Roster {
	return &Roster{teacherID: teacherID, backend: backend, scope: scope, tracker: tracker}
}

// AddStudent adds id to the local set. It reports false when id was already present.
func (r *Roster) AddStudent(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.ids {
		if existing == id {
			return false
		}
	}
	r.ids = append(r.ids, id)
	return true
}

// RemoveStudent drops id from the local set. It reports false when id was absent.
func (r *Roster) RemoveStudent(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.ids {
		if existing == id {
			r.ids = append(r.ids[:i:i], r.ids[i+1:]...)
			return true
		}
	}
	return false
}

// IDs returns the local student id set in insertion order.
func (r *Roster) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

// Students returns the resolved student records.
func (r *Roster) Students() []models.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.User, len(r.students))
	copy(out, r.students)
	return out
}

// Search filters the resolved students by name or email.
func (r *Roster) Search(term string) []models.User {
	var out []models.User
	for _, u := range r.Students() {
		if u.Matches(term) {
			out = append(out, u)
		}
	}
	return out
}

// SnapshotAt is the time of the directory snapshot the students were resolved from.
func (r *Roster) SnapshotAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotAt
}

// Refresh loads the stored roster.
func (r *Roster) Refresh(ctx context.Context) error {
	return r.tracker.Track(ctx, func(ctx context.Context) error {
		view, err := r.backend.Roster(ctx, "")
		if err != nil {
			return err
		}
		return r.applyView(view)
	})
}

// AddStudentByEmail adds a student, creating one when the email is unknown. The local
// roster changes only after the backend returns its refreshed view.
func (r *Roster) AddStudentByEmail(ctx context.Context, email string) error {
	return r.tracker.Track(ctx, func(ctx context.Context) error {
		view, err := r.backend.AddStudentByEmail(ctx, email)
		if err != nil {
			return err
		}
		return r.applyView(view)
	})
}

// RemoveStudentRemote removes a student from the stored roster.
func (r *Roster) RemoveStudentRemote(ctx context.Context, studentID string) error {
	return r.tracker.Track(ctx, func(ctx context.Context) error {
		view, err := r.backend.RemoveStudent(ctx, studentID)
		if err != nil {
			return err
		}
		return r.applyView(view)
	})
}

// Resolve re-derives the students from a fresh directory snapshot and the local id
// set. Each call takes its own snapshot.
func (r *Roster) Resolve(ctx context.Context, directory DirectorySource) error {
	return r.tracker.Track(ctx, func(ctx context.Context) error {
		snapshot, err := directory.Snapshot(ctx)
		if err != nil {
			return err
		}
		return r.apply(func() {
			teacher := models.User{ID: r.teacherID, Role: models.RoleTeacher, Students: r.ids}
			r.students = service.ResolveRoster(teacher, snapshot)
			r.snapshotAt = snapshot.TakenAt
		})
	})
}

func (r *Roster) applyView(view *models.RosterView) error {
	return r.apply(func() {
		r.ids = append([]string(nil), view.StudentIDs...)
		r.students = append([]models.User(nil), view.Students...)
		r.snapshotAt = view.SnapshotAt
	})
}

func (r *Roster) apply(fn func()) error {
	applied := r.scope.Apply(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		fn()
	})
	if !applied {
		return ErrStale
	}
	return nil
}
