package session

import (
	"context"
	"strings"
	"sync"

	"github.com/noah-isme/studio-api/internal/models"
	appErrors "github.com/noah-isme/studio-api/pkg/errors"
)

// Workspace is the role-scoped state opened at sign-in. It is either a
// *TeacherWorkspace or a *StudentWorkspace.
type Workspace interface {
	Role() models.UserRole
	User() models.UserInfo
	// Refresh loads every store of the workspace concurrently.
	Refresh(ctx context.Context) error
	// Pending reports whether any store has an operation in flight.
	Pending() bool
	// Err combines the failures of the current batch of operations.
	Err() error
	Close()

	sealed()
}

type workspaceBase struct {
	user    models.UserInfo
	scope   *Scope
	tracker *Tracker
}

func newWorkspaceBase(user models.UserInfo) workspaceBase {
	return workspaceBase{user: user, scope: NewScope(context.Background()), tracker: &Tracker{}}
}

func (w *workspaceBase) User() models.UserInfo { return w.user }
func (w *workspaceBase) Role() models.UserRole { return w.user.Role }
func (w *workspaceBase) Pending() bool         { return w.tracker.Pending() }
func (w *workspaceBase) Err() error            { return w.tracker.Err() }
func (w *workspaceBase) Close()                { w.scope.Close() }
func (w *workspaceBase) sealed()               {}

// Alive reports whether the workspace still accepts results.
func (w *workspaceBase) Alive() bool { return w.scope.Alive() }

// TeacherWorkspace holds a teacher's libraries, roster and the feeds of the students
// they look at.
type TeacherWorkspace struct {
	workspaceBase
	backend Backend

	Lessons  *Library
	Technics *Library
	Roster   *Roster

	mu    sync.Mutex
	feeds map[string]*AssignmentFeed
}

// NewTeacherWorkspace opens an empty teacher workspace.
func NewTeacherWorkspace(backend Backend, user models.UserInfo) *TeacherWorkspace {
	base := newWorkspaceBase(user)
	return &TeacherWorkspace{
		workspaceBase: base,
		backend:       backend,
		Lessons:       newLibrary(models.ContentLesson, backend, base.scope, base.tracker),
		Technics:      newLibrary(models.ContentTechnic, backend, base.scope, base.tracker),
		Roster:        newRoster(user.ID, backend, base.scope, base.tracker),
		feeds:         make(map[string]*AssignmentFeed),
	}
}

// Library returns the store for kind.
func (w *TeacherWorkspace) Library(kind models.ContentType) *Library {
	if kind == models.ContentTechnic {
		return w.Technics
	}
	return w.Lessons
}

// Refresh loads lessons, techniques and the roster together.
func (w *TeacherWorkspace) Refresh(ctx context.Context) error {
	return Join(ctx, w.Lessons.Refresh, w.Technics.Refresh, w.Roster.Refresh)
}

// Directory takes a fresh snapshot of all users. Snapshots are not kept.
func (w *TeacherWorkspace) Directory(ctx context.Context) (models.DirectorySnapshot, error) {
	var snapshot models.DirectorySnapshot
	err := w.tracker.Track(ctx, func(ctx context.Context) error {
		var err error
		snapshot, err = w.backend.Snapshot(ctx)
		return err
	})
	return snapshot, err
}

// Feed returns the assignment feed of a student, creating it on first use.
func (w *TeacherWorkspace) Feed(studentID string) *AssignmentFeed {
	w.mu.Lock()
	defer w.mu.Unlock()
	feed, ok := w.feeds[studentID]
	if !ok {
		feed = newAssignmentFeed(studentID, w.backend, w.scope, w.tracker)
		w.feeds[studentID] = feed
	}
	return feed
}

// Assign assigns one content item to each student in order. The batch stops at the
// first failure; the assignments created before it are still returned and merged into
// the open feeds.
func (w *TeacherWorkspace) Assign(ctx context.Context, kind models.ContentType, contentID, dueDate string, studentIDs ...string) ([]models.Assignment, error) {
	if len(studentIDs) == 0 || strings.TrimSpace(contentID) == "" {
		return nil, appErrors.Validation("studentId and contentId are required")
	}

	var assigned []models.Assignment
	err := w.tracker.Track(ctx, func(ctx context.Context) error {
		if len(studentIDs) == 1 {
			a, err := w.backend.Assign(ctx, models.AssignRequest{
				TeacherID:   w.user.ID,
				StudentID:   studentIDs[0],
				ContentID:   contentID,
				ContentType: kind,
				DueDate:     dueDate,
			})
			if err != nil {
				return err
			}
			assigned = []models.Assignment{*a}
			return nil
		}
		res, err := w.backend.AssignMany(ctx, models.BulkAssignRequest{
			ContentID:   contentID,
			ContentType: kind,
			DueDate:     dueDate,
			StudentIDs:  studentIDs,
		})
		if res != nil {
			assigned = res.Assigned
		}
		return err
	})

	if len(assigned) > 0 {
		w.mu.Lock()
		feeds := make([]*AssignmentFeed, 0, len(w.feeds))
		for _, feed := range w.feeds {
			feeds = append(feeds, feed)
		}
		w.mu.Unlock()
		for _, feed := range feeds {
			feed.add(assigned)
		}
	}
	return assigned, err
}

// Progress projects a student's pending assignments of kind against the teacher's
// libraries.
func (w *TeacherWorkspace) Progress(studentID string, kind models.ContentType) []models.AssignedContent {
	return w.Feed(studentID).Project(kind, w.Lessons.Items(), w.Technics.Items())
}

// StudentWorkspace holds a student's assignment feed and assigned content.
type StudentWorkspace struct {
	workspaceBase

	Assignments *AssignmentFeed
	Lessons     *AssignedLibrary
	Technics    *AssignedLibrary
}

// NewStudentWorkspace opens an empty student workspace.
func NewStudentWorkspace(backend Backend, user models.UserInfo) *StudentWorkspace {
	base := newWorkspaceBase(user)
	return &StudentWorkspace{
		workspaceBase: base,
		Assignments:   newAssignmentFeed(user.ID, backend, base.scope, base.tracker),
		Lessons:       newAssignedLibrary(user.ID, models.ContentLesson, backend, base.scope, base.tracker),
		Technics:      newAssignedLibrary(user.ID, models.ContentTechnic, backend, base.scope, base.tracker),
	}
}

// Library returns the assigned content of kind.
func (w *StudentWorkspace) Library(kind models.ContentType) *AssignedLibrary {
	if kind == models.ContentTechnic {
		return w.Technics
	}
	return w.Lessons
}

// Refresh loads the feed and both libraries together.
func (w *StudentWorkspace) Refresh(ctx context.Context) error {
	return Join(ctx, w.Assignments.Refresh, w.Lessons.Refresh, w.Technics.Refresh)
}

// Complete marks an assignment completed and removes it from the pending libraries.
func (w *StudentWorkspace) Complete(ctx context.Context, assignmentID string) error {
	if _, err := w.Assignments.UpdateStatus(ctx, assignmentID, models.AssignmentCompleted); err != nil {
		return err
	}
	w.Lessons.drop(assignmentID)
	w.Technics.drop(assignmentID)
	return nil
}
