package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studio-api/internal/models"
	appErrors "github.com/noah-isme/studio-api/pkg/errors"
)

func newTestSession() (*Session, *fakeBackend) {
	backend := newFakeBackend()
	return New(backend, backend, nil), backend
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for backend call")
	}
}

func TestSignUpOpensTeacherWorkspace(t *testing.T) {
	sess, _ := newTestSession()

	ws, err := sess.SignUp(context.Background(), models.SignUpRequest{Email: "a@x.com", Password: "pw", Role: models.RoleTeacher, Name: "A"})
	require.NoError(t, err)

	status := sess.Status()
	assert.Equal(t, Authenticated, status.State)
	assert.Equal(t, models.RoleTeacher, status.User.Role)
	assert.NotEmpty(t, status.User.ID)
	assert.Equal(t, uint64(2), status.Epoch)

	teacher, ok := ws.(*TeacherWorkspace)
	require.True(t, ok)
	assert.Equal(t, "A", teacher.User().FullName)
	assert.Same(t, ws, sess.Workspace())
}

func TestProviderLoginOpensStudentWorkspace(t *testing.T) {
	sess, _ := newTestSession()

	ws, err := sess.LogInWithProvider(context.Background(), models.ProviderLoginRequest{Token: "s@x.com"})
	require.NoError(t, err)
	_, ok := ws.(*StudentWorkspace)
	assert.True(t, ok)
	assert.Equal(t, models.RoleStudent, ws.Role())
}

func TestFailedLoginReturnsToUnauthenticated(t *testing.T) {
	sess, _ := newTestSession()

	ws, err := sess.LogIn(context.Background(), models.LoginRequest{Email: "nobody@x.com", Password: "pw"})
	require.Error(t, err)
	assert.Nil(t, ws)

	status := sess.Status()
	assert.Equal(t, Unauthenticated, status.State)
	assert.True(t, errors.Is(status.Err, appErrors.ErrInvalidCredentials))
	assert.Nil(t, sess.Workspace())
}

func TestStateIsAuthenticatingWhileRequestInFlight(t *testing.T) {
	sess, backend := newTestSession()
	entered, release := backend.block("signup")

	done := make(chan error, 1)
	go func() {
		_, err := sess.SignUp(context.Background(), models.SignUpRequest{Email: "a@x.com", Password: "pw", Role: models.RoleStudent})
		done <- err
	}()
	waitFor(t, entered)
	assert.Equal(t, Authenticating, sess.Status().State)

	release()
	require.NoError(t, <-done)
	assert.Equal(t, Authenticated, sess.Status().State)
}

func TestLogOutDiscardsLateSignIn(t *testing.T) {
	sess, backend := newTestSession()
	_, err := sess.SignUp(context.Background(), models.SignUpRequest{Email: "a@x.com", Password: "pw", Role: models.RoleTeacher})
	require.NoError(t, err)
	sess.LogOut(context.Background())

	entered, release := backend.block("login")
	done := make(chan error, 1)
	go func() {
		_, err := sess.LogIn(context.Background(), models.LoginRequest{Email: "a@x.com", Password: "pw"})
		done <- err
	}()
	waitFor(t, entered)

	sess.LogOut(context.Background())
	release()

	err = <-done
	assert.True(t, errors.Is(err, ErrStale))
	assert.Equal(t, Unauthenticated, sess.Status().State)
	assert.Nil(t, sess.Workspace())
	assert.Empty(t, backend.installed())
	revoked := backend.revokedTokens()
	require.Len(t, revoked, 2)
	assert.NotEqual(t, revoked[0], revoked[1])
}

func TestOverlappingSignInsKeepNewestCredential(t *testing.T) {
	sess, backend := newTestSession()
	backend.users["a@x.com"] = models.UserInfo{ID: "user-a", Email: "a@x.com", Role: models.RoleStudent}
	backend.users["b@x.com"] = models.UserInfo{ID: "user-b", Email: "b@x.com", Role: models.RoleTeacher}

	entered, release := backend.block("login")
	done := make(chan error, 1)
	go func() {
		_, err := sess.LogIn(context.Background(), models.LoginRequest{Email: "a@x.com", Password: "secret"})
		done <- err
	}()
	waitFor(t, entered)

	ws, err := sess.LogIn(context.Background(), models.LoginRequest{Email: "b@x.com", Password: "secret"})
	require.NoError(t, err)
	release()

	assert.True(t, errors.Is(<-done, ErrStale))
	assert.Equal(t, "b@x.com", sess.Status().User.Email)
	assert.Same(t, ws, sess.Workspace())
	assert.Equal(t, "token-user-b-1", backend.installed())
	assert.Equal(t, []string{"token-user-a-2"}, backend.revokedTokens())
}

func TestSwitchingAccountsRevokesPreviousCredential(t *testing.T) {
	sess, backend := newTestSession()
	backend.users["a@x.com"] = models.UserInfo{ID: "user-a", Email: "a@x.com", Role: models.RoleStudent}
	backend.users["b@x.com"] = models.UserInfo{ID: "user-b", Email: "b@x.com", Role: models.RoleStudent}

	_, err := sess.LogIn(context.Background(), models.LoginRequest{Email: "a@x.com", Password: "secret"})
	require.NoError(t, err)
	_, err = sess.LogIn(context.Background(), models.LoginRequest{Email: "b@x.com", Password: "secret"})
	require.NoError(t, err)

	assert.Equal(t, "token-user-b-2", backend.installed())
	assert.Equal(t, []string{"token-user-a-1"}, backend.revokedTokens())
}

func TestLogOutDuringContentFetchDropsResult(t *testing.T) {
	sess, backend := newTestSession()
	ws, err := sess.SignUp(context.Background(), models.SignUpRequest{Email: "t@x.com", Password: "pw", Role: models.RoleTeacher})
	require.NoError(t, err)
	teacher := ws.(*TeacherWorkspace)

	backend.content[models.ContentLesson] = []models.ContentItem{{ID: "L1", Title: "Scales"}}
	entered, release := backend.block("list:lesson")

	done := make(chan error, 1)
	go func() { done <- teacher.Lessons.Refresh(context.Background()) }()
	waitFor(t, entered)
	assert.True(t, teacher.Pending())

	sess.LogOut(context.Background())
	assert.Equal(t, Unauthenticated, sess.Status().State)

	release()
	assert.True(t, errors.Is(<-done, ErrStale))
	assert.Empty(t, teacher.Lessons.Items())
	assert.Equal(t, Unauthenticated, sess.Status().State)
	assert.Empty(t, sess.Status().User.Role)
	assert.False(t, teacher.Pending())
}

func TestLogOutSucceedsLocallyWhenRemoteFails(t *testing.T) {
	sess, backend := newTestSession()
	_, err := sess.SignUp(context.Background(), models.SignUpRequest{Email: "a@x.com", Password: "pw", Role: models.RoleStudent})
	require.NoError(t, err)

	backend.fail("logout", appErrors.Clone(appErrors.ErrRemoteOperation, "network down"))
	sess.LogOut(context.Background())

	assert.Equal(t, Unauthenticated, sess.Status().State)
	assert.Nil(t, sess.Workspace())
}

func TestCompleteProfileResumesPartialSignup(t *testing.T) {
	sess, backend := newTestSession()
	backend.users["p@x.com"] = models.UserInfo{ID: "user-partial", Email: "p@x.com"}

	ws, err := sess.LogIn(context.Background(), models.LoginRequest{Email: "p@x.com", Password: "pw"})
	require.NoError(t, err)
	assert.Nil(t, ws)
	assert.True(t, sess.Status().NeedsProfile())

	ws, err = sess.CompleteProfile(context.Background(), models.CompleteProfileRequest{Role: models.RoleTeacher, Name: "P"})
	require.NoError(t, err)
	require.NotNil(t, ws)
	assert.Equal(t, models.RoleTeacher, ws.Role())
	assert.False(t, sess.Status().NeedsProfile())
	assert.Equal(t, "token-user-partial-2", backend.installed())
	assert.Equal(t, []string{"token-user-partial-1"}, backend.revokedTokens())
}

func TestLogOutDiscardsLateProfileCompletion(t *testing.T) {
	sess, backend := newTestSession()
	backend.users["p@x.com"] = models.UserInfo{ID: "user-partial", Email: "p@x.com"}
	_, err := sess.LogIn(context.Background(), models.LoginRequest{Email: "p@x.com", Password: "secret"})
	require.NoError(t, err)

	entered, release := backend.block("profile")
	done := make(chan error, 1)
	go func() {
		_, err := sess.CompleteProfile(context.Background(), models.CompleteProfileRequest{Role: models.RoleStudent})
		done <- err
	}()
	waitFor(t, entered)

	sess.LogOut(context.Background())
	release()

	assert.True(t, errors.Is(<-done, ErrStale))
	assert.Equal(t, Unauthenticated, sess.Status().State)
	assert.Empty(t, backend.installed())
	assert.Equal(t, []string{"token-user-partial-1", "token-user-partial-2"}, backend.revokedTokens())
}

func TestCompleteProfileFailureKeepsState(t *testing.T) {
	sess, backend := newTestSession()
	backend.users["p@x.com"] = models.UserInfo{ID: "user-partial", Email: "p@x.com"}
	_, err := sess.LogIn(context.Background(), models.LoginRequest{Email: "p@x.com", Password: "pw"})
	require.NoError(t, err)
	before := sess.Status()

	backend.fail("profile", appErrors.Clone(appErrors.ErrRemoteOperation, "store down"))
	_, err = sess.CompleteProfile(context.Background(), models.CompleteProfileRequest{Role: models.RoleTeacher})
	require.Error(t, err)
	assert.Equal(t, before, sess.Status())
}

func TestCompleteProfileRequiresSignIn(t *testing.T) {
	sess, _ := newTestSession()
	_, err := sess.CompleteProfile(context.Background(), models.CompleteProfileRequest{Role: models.RoleStudent})
	assert.True(t, errors.Is(err, appErrors.ErrAuthRequired))
}

func TestEveryTransitionBumpsEpoch(t *testing.T) {
	sess, _ := newTestSession()
	assert.Equal(t, uint64(0), sess.Status().Epoch)

	_, err := sess.SignUp(context.Background(), models.SignUpRequest{Email: "a@x.com", Password: "pw", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), sess.Status().Epoch)

	sess.LogOut(context.Background())
	assert.Equal(t, uint64(3), sess.Status().Epoch)
}
