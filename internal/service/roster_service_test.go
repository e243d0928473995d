package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studio-api/internal/models"
	appErrors "github.com/noah-isme/studio-api/pkg/errors"
)

func newRosterFixture(t *testing.T) (*testBackend, *RosterService) {
	t.Helper()
	b := newTestBackend()
	b.seedUser(t, models.User{ID: "t1", Email: "teacher@studio.test", FullName: "Tess", Role: models.RoleTeacher})
	b.seedUser(t, models.User{ID: "s1", Email: "sam@studio.test", FullName: "Sam Reed", Role: models.RoleStudent})
	b.seedUser(t, models.User{ID: "s2", Email: "kim@studio.test", FullName: "Kim Lee", Role: models.RoleStudent})
	return b, NewRosterService(b.users, NewDirectoryService(b.users), nil, nil)
}

func TestResolveRoster(t *testing.T) {
	teacher := models.User{ID: "t1", Role: models.RoleTeacher, Students: []string{"s1", "t2", "ghost"}}
	snapshot := models.NewDirectorySnapshot([]models.User{
		{ID: "s1", Role: models.RoleStudent},
		{ID: "s2", Role: models.RoleStudent},
		{ID: "t2", Role: models.RoleTeacher},
	}, time.Now())

	got := ResolveRoster(teacher, snapshot)
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].ID)

	assert.Empty(t, ResolveRoster(models.User{ID: "t1"}, snapshot))
}

func TestRosterServiceAddExistingStudent(t *testing.T) {
	ctx := context.Background()
	_, svc := newRosterFixture(t)

	view, err := svc.AddStudentByEmail(ctx, "t1", models.AddStudentRequest{Email: "sam@studio.test"})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, view.StudentIDs)
	require.Len(t, view.Students, 1)
	assert.Equal(t, "Sam Reed", view.Students[0].FullName)

	_, err = svc.AddStudentByEmail(ctx, "t1", models.AddStudentRequest{Email: "sam@studio.test"})
	assert.ErrorIs(t, err, appErrors.ErrAlreadyAssigned)
}

func TestRosterServiceAddCreatesUnknownStudent(t *testing.T) {
	ctx := context.Background()
	b, svc := newRosterFixture(t)

	view, err := svc.AddStudentByEmail(ctx, "t1", models.AddStudentRequest{Email: "new.kid@studio.test"})
	require.NoError(t, err)
	require.Len(t, view.Students, 1)
	created := view.Students[0]
	assert.Equal(t, "new.kid", created.FullName)
	assert.Equal(t, models.RoleStudent, created.Role)

	stored, err := b.users.FindByEmailAndRole(ctx, "new.kid@studio.test", models.RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, created.ID, stored.ID)
}

func TestRosterServiceAddReportsCreatedIDWhenRosterWriteFails(t *testing.T) {
	ctx := context.Background()
	b, svc := newRosterFixture(t)

	b.store.FailNext("update", models.CollectionUsers, unavailableStore())
	_, err := svc.AddStudentByEmail(ctx, "t1", models.AddStudentRequest{Email: "late@studio.test"})
	require.ErrorIs(t, err, appErrors.ErrRemoteOperation)
	appErr := appErrors.FromError(err)
	require.NotEmpty(t, appErr.ResourceID)

	stored, err := b.users.FindByID(ctx, appErr.ResourceID)
	require.NoError(t, err)
	assert.Equal(t, "late@studio.test", stored.Email)

	teacher, err := b.users.FindByID(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, teacher.Students)
}

func TestRosterServiceAddValidation(t *testing.T) {
	_, svc := newRosterFixture(t)

	_, err := svc.AddStudentByEmail(context.Background(), "t1", models.AddStudentRequest{Email: "not-an-email"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.AddStudentByEmail(context.Background(), "", models.AddStudentRequest{Email: "sam@studio.test"})
	assert.ErrorIs(t, err, appErrors.ErrAuthRequired)
}

func TestRosterServiceRemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	_, svc := newRosterFixture(t)

	_, err := svc.AddStudentByEmail(ctx, "t1", models.AddStudentRequest{Email: "sam@studio.test"})
	require.NoError(t, err)

	view, err := svc.RemoveStudent(ctx, "t1", "s1")
	require.NoError(t, err)
	assert.Empty(t, view.Students)
	assert.Empty(t, view.StudentIDs)

	view, err = svc.RemoveStudent(ctx, "t1", "s1")
	require.NoError(t, err)
	assert.Empty(t, view.Students)
}

func TestRosterServiceSearchAndDetail(t *testing.T) {
	ctx := context.Background()
	_, svc := newRosterFixture(t)

	for _, email := range []string{"sam@studio.test", "kim@studio.test"} {
		_, err := svc.AddStudentByEmail(ctx, "t1", models.AddStudentRequest{Email: email})
		require.NoError(t, err)
	}

	view, err := svc.Roster(ctx, "t1", "")
	require.NoError(t, err)
	assert.Len(t, view.Students, 2)

	view, err = svc.Roster(ctx, "t1", "KIM")
	require.NoError(t, err)
	require.Len(t, view.Students, 1)
	assert.Equal(t, "s2", view.Students[0].ID)
	assert.Len(t, view.StudentIDs, 2)

	detail, err := svc.StudentDetail(ctx, "t1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "sam@studio.test", detail.Email)

	_, err = svc.StudentDetail(ctx, "t1", "t1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
