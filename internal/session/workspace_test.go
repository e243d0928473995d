package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studio-api/internal/models"
	appErrors "github.com/noah-isme/studio-api/pkg/errors"
)

func newTeacher(t *testing.T) (*TeacherWorkspace, *fakeBackend) {
	t.Helper()
	backend := newFakeBackend()
	ws := NewTeacherWorkspace(backend, models.UserInfo{ID: "T1", Email: "t@x.com", Role: models.RoleTeacher})
	t.Cleanup(ws.Close)
	return ws, backend
}

func TestLibraryRefreshSortsNewestFirst(t *testing.T) {
	ws, backend := newTeacher(t)
	backend.content[models.ContentLesson] = []models.ContentItem{
		{ID: "old", CreatedAt: &models.Timestamp{Seconds: 10}},
		{ID: "none"},
		{ID: "new", CreatedAt: &models.Timestamp{Seconds: 30}},
	}

	require.NoError(t, ws.Lessons.Refresh(context.Background()))

	ids := []string{}
	for _, item := range ws.Lessons.Items() {
		ids = append(ids, item.ID)
	}
	assert.Equal(t, []string{"new", "old", "none"}, ids)
}

func TestLibraryMutationsMergeResults(t *testing.T) {
	ws, _ := newTeacher(t)
	ctx := context.Background()

	first, err := ws.Technics.Create(ctx, models.ContentInput{Title: "Legato"})
	require.NoError(t, err)
	second, err := ws.Technics.Create(ctx, models.ContentInput{Title: "Tremolo"})
	require.NoError(t, err)
	items := ws.Technics.Items()
	require.Len(t, items, 2)
	assert.Equal(t, second.ID, items[0].ID)

	_, err = ws.Technics.Update(ctx, first.ID, models.ContentInput{Title: "Legato II"})
	require.NoError(t, err)
	found, ok := ws.Technics.Find(first.ID)
	require.True(t, ok)
	assert.Equal(t, "Legato II", found.Title)
	assert.Len(t, ws.Technics.Items(), 2)

	require.NoError(t, ws.Technics.Delete(ctx, second.ID))
	assert.Len(t, ws.Technics.Items(), 1)
	assert.Empty(t, ws.Lessons.Items())
}

func TestLibraryFailedMutationLeavesListUnchanged(t *testing.T) {
	ws, backend := newTeacher(t)
	ctx := context.Background()
	item, err := ws.Lessons.Create(ctx, models.ContentInput{Title: "Scales"})
	require.NoError(t, err)
	before := ws.Lessons.Items()

	backend.fail("update", appErrors.Clone(appErrors.ErrRemoteOperation, "store down"))
	_, err = ws.Lessons.Update(ctx, item.ID, models.ContentInput{Title: "Arpeggios"})
	require.Error(t, err)

	backend.fail("delete", appErrors.Clone(appErrors.ErrRemoteOperation, "store down"))
	require.Error(t, ws.Lessons.Delete(ctx, item.ID))

	assert.Equal(t, before, ws.Lessons.Items())
	assert.Error(t, ws.Err())
}

func TestRosterLocalEditsAreIdempotent(t *testing.T) {
	ws, _ := newTeacher(t)

	assert.True(t, ws.Roster.AddStudent("S1"))
	assert.False(t, ws.Roster.AddStudent("S1"))
	assert.Equal(t, []string{"S1"}, ws.Roster.IDs())

	assert.False(t, ws.Roster.RemoveStudent("S2"))
	assert.Equal(t, []string{"S1"}, ws.Roster.IDs())

	assert.True(t, ws.Roster.RemoveStudent("S1"))
	assert.Empty(t, ws.Roster.IDs())
}

func TestRosterAddByEmailAppliesRefreshedView(t *testing.T) {
	ws, _ := newTeacher(t)
	ctx := context.Background()

	require.NoError(t, ws.Roster.AddStudentByEmail(ctx, "new@x.com"))
	students := ws.Roster.Students()
	require.Len(t, students, 1)
	assert.Equal(t, "new@x.com", students[0].Email)
	assert.Equal(t, []string{students[0].ID}, ws.Roster.IDs())

	err := ws.Roster.AddStudentByEmail(ctx, "new@x.com")
	assert.True(t, errors.Is(err, appErrors.ErrAlreadyAssigned))
	assert.Len(t, ws.Roster.Students(), 1)

	require.NoError(t, ws.Roster.RemoveStudentRemote(ctx, students[0].ID))
	assert.Empty(t, ws.Roster.Students())
	assert.Empty(t, ws.Roster.IDs())
}

func TestRosterResolveIsIdempotent(t *testing.T) {
	ws, backend := newTeacher(t)
	backend.directory = []models.User{
		{ID: "S1", Email: "ana@x.com", FullName: "Ana", Role: models.RoleStudent},
		{ID: "T2", Email: "other@x.com", Role: models.RoleTeacher},
		{ID: "S2", Email: "ben@x.com", FullName: "Ben", Role: models.RoleStudent},
	}
	ws.Roster.AddStudent("S2")
	ws.Roster.AddStudent("T2")
	ws.Roster.AddStudent("S1")

	require.NoError(t, ws.Roster.Resolve(context.Background(), backend))
	first := ws.Roster.Students()
	require.NoError(t, ws.Roster.Resolve(context.Background(), backend))

	assert.Equal(t, first, ws.Roster.Students())
	require.Len(t, first, 2)
	assert.Equal(t, "S1", first[0].ID)
	assert.Equal(t, "S2", first[1].ID)
	assert.Equal(t, []models.User{first[1]}, ws.Roster.Search("BEN"))
}

func TestTeacherRefreshAggregatesFailures(t *testing.T) {
	ws, backend := newTeacher(t)
	backend.content[models.ContentLesson] = []models.ContentItem{{ID: "L1"}}
	backend.fail("list:technic", appErrors.Clone(appErrors.ErrRemoteOperation, "technics unavailable"))
	backend.fail("roster", appErrors.Clone(appErrors.ErrRemoteOperation, "roster unavailable"))

	err := ws.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "technics unavailable")
	assert.Contains(t, err.Error(), "roster unavailable")
	assert.Len(t, ws.Lessons.Items(), 1)
	assert.False(t, ws.Pending())
}

func TestTeacherAssignMergesIntoFeedAndProjects(t *testing.T) {
	ws, _ := newTeacher(t)
	ctx := context.Background()
	lesson, err := ws.Lessons.Create(ctx, models.ContentInput{Title: "Scales"})
	require.NoError(t, err)

	feed := ws.Feed("S1")
	require.NoError(t, feed.Refresh(ctx))
	assert.Same(t, feed, ws.Feed("S1"))

	assigned, err := ws.Assign(ctx, models.ContentLesson, lesson.ID, "2024-06-01", "S1")
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, models.AssignmentPending, assigned[0].Status)

	items := feed.Items()
	require.Len(t, items, 1)
	assert.Equal(t, lesson.ID, items[0].ContentID)

	progress := ws.Progress("S1", models.ContentLesson)
	require.Len(t, progress, 1)
	assert.Equal(t, "Scales", progress[0].Title)
	assert.Equal(t, "2024-06-01", progress[0].DueDate)
	assert.Empty(t, ws.Progress("S1", models.ContentTechnic))
}

func TestTeacherAssignManyKeepsPartialResult(t *testing.T) {
	ws, backend := newTeacher(t)
	feed := ws.Feed("S1")
	backend.fail("assign_many", appErrors.Clone(appErrors.ErrRemoteOperation, "store down"))

	assigned, err := ws.Assign(context.Background(), models.ContentTechnic, "X1", "", "S1", "S2")
	require.Error(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, "S1", assigned[0].StudentID)
	assert.Len(t, feed.Items(), 1)
}

func TestTeacherAssignValidatesInput(t *testing.T) {
	ws, _ := newTeacher(t)
	_, err := ws.Assign(context.Background(), models.ContentLesson, "", "")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestTeacherDirectoryIsFreshPerCall(t *testing.T) {
	ws, backend := newTeacher(t)
	first, err := ws.Directory(context.Background())
	require.NoError(t, err)
	backend.directory = append(backend.directory, models.User{ID: "S9", Role: models.RoleStudent})
	second, err := ws.Directory(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, first.Len())
	assert.Equal(t, 1, second.Len())
	assert.True(t, second.TakenAt.After(first.TakenAt))
}

func TestStudentWorkspaceRefreshAndComplete(t *testing.T) {
	backend := newFakeBackend()
	ws := NewStudentWorkspace(backend, models.UserInfo{ID: "S1", Role: models.RoleStudent})
	defer ws.Close()
	ctx := context.Background()

	a, err := backend.Assign(ctx, models.AssignRequest{TeacherID: "T1", StudentID: "S1", ContentID: "L1", ContentType: models.ContentLesson})
	require.NoError(t, err)
	_, err = backend.Assign(ctx, models.AssignRequest{TeacherID: "T1", StudentID: "S2", ContentID: "L1", ContentType: models.ContentLesson})
	require.NoError(t, err)
	backend.library[models.ContentLesson] = []models.AssignedContent{{
		ContentItem:  models.ContentItem{ID: "L1", Title: "Scales"},
		ContentType:  models.ContentLesson,
		AssignmentID: a.ID,
	}}

	require.NoError(t, ws.Refresh(ctx))
	require.Len(t, ws.Assignments.Items(), 1)
	assert.Equal(t, "S1", ws.Assignments.Items()[0].StudentID)
	assert.Len(t, ws.Library(models.ContentLesson).Items(), 1)
	assert.Empty(t, ws.Library(models.ContentTechnic).Items())

	require.NoError(t, ws.Complete(ctx, a.ID))
	assert.Equal(t, models.AssignmentCompleted, ws.Assignments.Items()[0].Status)
	assert.Empty(t, ws.Lessons.Items())
}
