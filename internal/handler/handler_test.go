package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studio-api/internal/middleware"
	"github.com/noah-isme/studio-api/internal/models"
	appErrors "github.com/noah-isme/studio-api/pkg/errors"
	"github.com/noah-isme/studio-api/pkg/export"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

type authServiceStub struct {
	signUpErr  error
	loggedOut  *models.JWTClaims
	lastSignUp models.SignUpRequest
}

func (s *authServiceStub) SignUp(_ context.Context, req models.SignUpRequest) (*models.AuthResult, error) {
	s.lastSignUp = req
	if s.signUpErr != nil {
		return nil, s.signUpErr
	}
	return &models.AuthResult{AccessToken: "tok", User: models.UserInfo{ID: "u1", Email: req.Email, Role: req.Role}}, nil
}

func (s *authServiceStub) LogIn(context.Context, models.LoginRequest) (*models.AuthResult, error) {
	return &models.AuthResult{AccessToken: "tok"}, nil
}

func (s *authServiceStub) LogInWithProvider(context.Context, models.ProviderLoginRequest) (*models.AuthResult, error) {
	return &models.AuthResult{AccessToken: "tok"}, nil
}

func (s *authServiceStub) CompleteProfile(_ context.Context, claims *models.JWTClaims, req models.CompleteProfileRequest) (*models.AuthResult, error) {
	return &models.AuthResult{AccessToken: "tok", User: models.UserInfo{ID: claims.UserID, Role: req.Role}}, nil
}

func (s *authServiceStub) LogOut(_ context.Context, claims *models.JWTClaims) error {
	s.loggedOut = claims
	return nil
}

func TestAuthHandlerSignUp(t *testing.T) {
	stub := &authServiceStub{}
	h := NewAuthHandler(stub)

	body, _ := json.Marshal(models.SignUpRequest{Email: "ana@studio.test", Password: "secret1", Role: models.RoleTeacher})
	c, w := newGinContext(http.MethodPost, "/auth/signup", body)
	h.SignUp(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "ana@studio.test", stub.lastSignUp.Email)

	c, w = newGinContext(http.MethodPost, "/auth/signup", []byte("{"))
	h.SignUp(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandlerPartialSignupExposesResourceID(t *testing.T) {
	partial := appErrors.Clone(appErrors.ErrPartialSignup, "")
	partial.ResourceID = "uid-7"
	partial.BackendCode = "unavailable"
	h := NewAuthHandler(&authServiceStub{signUpErr: partial})

	body, _ := json.Marshal(models.SignUpRequest{Email: "ana@studio.test", Password: "secret1", Role: models.RoleTeacher})
	c, w := newGinContext(http.MethodPost, "/auth/signup", body)
	h.SignUp(c)
	require.Equal(t, http.StatusFailedDependency, w.Code)

	env := decodeEnvelope(t, w)
	errBody := env["error"].(map[string]interface{})
	assert.Equal(t, "PARTIAL_SIGNUP", errBody["code"])
	assert.Equal(t, "uid-7", errBody["resource_id"])
}

func TestAuthHandlerLogoutAndMe(t *testing.T) {
	stub := &authServiceStub{}
	h := NewAuthHandler(stub)
	claims := &models.JWTClaims{UserID: "u1", Email: "ana@studio.test", Role: models.RoleTeacher}

	c, w := newGinContext(http.MethodPost, "/auth/logout", nil)
	h.Logout(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newGinContext(http.MethodPost, "/auth/logout", nil)
	c.Set(middleware.ContextUserKey, claims)
	h.Logout(c)
	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Same(t, claims, stub.loggedOut)

	c, w = newGinContext(http.MethodGet, "/auth/me", nil)
	c.Set(middleware.ContextUserKey, claims)
	h.Me(c)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "teacher", data["role"])
}

type contentServiceStub struct {
	items    []models.ContentItem
	hit      bool
	owner    string
	input    models.ContentInput
	deleteID string
}

func (s *contentServiceStub) Kind() models.ContentType { return models.ContentLesson }

func (s *contentServiceStub) Create(_ context.Context, ownerID string, input models.ContentInput) (*models.ContentItem, error) {
	s.owner, s.input = ownerID, input
	return &models.ContentItem{ID: "l1", Title: input.Title, UserID: ownerID}, nil
}

func (s *contentServiceStub) ListForOwner(_ context.Context, ownerID string) ([]models.ContentItem, bool, error) {
	s.owner = ownerID
	return s.items, s.hit, nil
}

func (s *contentServiceStub) Get(_ context.Context, id string) (*models.ContentItem, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
}

func (s *contentServiceStub) Update(_ context.Context, id, ownerID string, input models.ContentInput) (*models.ContentItem, error) {
	s.owner, s.input = ownerID, input
	return &models.ContentItem{ID: id, Title: input.Title}, nil
}

func (s *contentServiceStub) Delete(_ context.Context, id string) error {
	s.deleteID = id
	return nil
}

func TestContentHandlerListMarksCacheHits(t *testing.T) {
	stub := &contentServiceStub{items: []models.ContentItem{{ID: "l1"}, {ID: "l2"}}, hit: true}
	h := NewContentHandler(stub)

	c, w := newGinContext(http.MethodGet, "/lessons", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher})
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t1", stub.owner)
	assert.Equal(t, "true", w.Header().Get("X-Cache-Hit"))
	env := decodeEnvelope(t, w)
	assert.Len(t, env["data"], 2)
	assert.Equal(t, true, env["meta"].(map[string]interface{})["cache_hit"])
}

func TestContentHandlerCreateDefaultsOwnerEmail(t *testing.T) {
	stub := &contentServiceStub{}
	h := NewContentHandler(stub)

	body, _ := json.Marshal(models.ContentInput{Title: "Scales"})
	c, w := newGinContext(http.MethodPost, "/lessons", body)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "t1", Email: "tess@studio.test", Role: models.RoleTeacher})
	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "tess@studio.test", stub.input.UserEmail)
}

func TestContentHandlerGetAndDelete(t *testing.T) {
	stub := &contentServiceStub{}
	h := NewContentHandler(stub)

	c, w := newGinContext(http.MethodGet, "/lessons/x", nil)
	c.Params = gin.Params{{Key: "id", Value: "x"}}
	h.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)

	c, w = newGinContext(http.MethodDelete, "/lessons/x", nil)
	c.Params = gin.Params{{Key: "id", Value: "x"}}
	h.Delete(c)
	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Equal(t, "x", stub.deleteID)
}

type assignmentServiceStub struct {
	bulk      *models.BulkAssignResult
	bulkErr   error
	single    models.AssignRequest
	libraryOf models.ContentType
	caller    string
}

func (s *assignmentServiceStub) Assign(_ context.Context, req models.AssignRequest) (*models.Assignment, error) {
	s.single = req
	return &models.Assignment{ID: "a1", TeacherID: req.TeacherID, StudentID: req.StudentID}, nil
}

func (s *assignmentServiceStub) AssignMany(context.Context, string, models.BulkAssignRequest) (*models.BulkAssignResult, error) {
	return s.bulk, s.bulkErr
}

func (s *assignmentServiceStub) ListForStudent(context.Context, string) ([]models.Assignment, error) {
	return []models.Assignment{{ID: "a1"}}, nil
}

func (s *assignmentServiceStub) UpdateStatus(_ context.Context, callerID, id string, req models.UpdateStatusRequest) (*models.Assignment, error) {
	s.caller = callerID
	return &models.Assignment{ID: id, Status: req.Status}, nil
}

func (s *assignmentServiceStub) AssignedContent(_ context.Context, _ string, contentType models.ContentType) ([]models.AssignedContent, error) {
	s.libraryOf = contentType
	return []models.AssignedContent{}, nil
}

func (s *assignmentServiceStub) Report(context.Context, string, string) ([]byte, export.Format, error) {
	return []byte("Title\n"), export.FormatCSV, nil
}

func TestAssignmentHandlerCreateSingleUsesCaller(t *testing.T) {
	stub := &assignmentServiceStub{}
	h := NewAssignmentHandler(stub)

	body, _ := json.Marshal(AssignmentPayload{StudentID: "s1", ContentID: "l1", ContentType: models.ContentLesson})
	c, w := newGinContext(http.MethodPost, "/assignments", body)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher})
	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "t1", stub.single.TeacherID)
}

func TestAssignmentHandlerBulkPartialFailure(t *testing.T) {
	stub := &assignmentServiceStub{
		bulk:    &models.BulkAssignResult{Assigned: []models.Assignment{{ID: "a1", StudentID: "s1"}}, FailedAt: "s2"},
		bulkErr: appErrors.Remote(nil, "unavailable", "failed to assign content"),
	}
	h := NewAssignmentHandler(stub)

	body, _ := json.Marshal(AssignmentPayload{StudentIDs: []string{"s1", "s2"}, ContentID: "l1", ContentType: models.ContentLesson})
	c, w := newGinContext(http.MethodPost, "/assignments", body)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher})
	h.Create(c)

	require.Equal(t, http.StatusMultiStatus, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "s2", data["failed_at"])
	assert.Len(t, c.Errors, 1)
}

func TestAssignmentHandlerUpdateStatusPassesCaller(t *testing.T) {
	stub := &assignmentServiceStub{}
	h := NewAssignmentHandler(stub)

	body := []byte(`{"status":"completed"}`)
	c, w := newGinContext(http.MethodPatch, "/assignments/a1/status", body)
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	h.UpdateStatus(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, stub.caller)

	c, w = newGinContext(http.MethodPatch, "/assignments/a1/status", body)
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	h.UpdateStatus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s1", stub.caller)
}

func TestAssignmentHandlerLibraryAndExport(t *testing.T) {
	stub := &assignmentServiceStub{}
	h := NewAssignmentHandler(stub)

	c, w := newGinContext(http.MethodGet, "/students/s1/library?type=technic", nil)
	c.Params = gin.Params{{Key: "id", Value: "s1"}}
	h.Library(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ContentTechnic, stub.libraryOf)

	c, w = newGinContext(http.MethodGet, "/students/s1/assignments/export", nil)
	c.Params = gin.Params{{Key: "id", Value: "s1"}}
	h.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "assignments-s1.csv")
}

type rosterServiceStub struct {
	err error
}

func (s *rosterServiceStub) Roster(_ context.Context, teacherID, _ string) (*models.RosterView, error) {
	return &models.RosterView{TeacherID: teacherID}, nil
}

func (s *rosterServiceStub) AddStudentByEmail(_ context.Context, teacherID string, _ models.AddStudentRequest) (*models.RosterView, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.RosterView{TeacherID: teacherID}, nil
}

func (s *rosterServiceStub) RemoveStudent(_ context.Context, teacherID, _ string) (*models.RosterView, error) {
	return &models.RosterView{TeacherID: teacherID}, nil
}

func (s *rosterServiceStub) StudentDetail(_ context.Context, _, studentID string) (*models.User, error) {
	return &models.User{ID: studentID}, nil
}

func TestRosterHandlerAddAlreadyAssigned(t *testing.T) {
	h := NewRosterHandler(&rosterServiceStub{err: appErrors.ErrAlreadyAssigned})

	body, _ := json.Marshal(models.AddStudentRequest{Email: "sam@studio.test"})
	c, w := newGinContext(http.MethodPost, "/roster", body)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher})
	h.Add(c)

	require.Equal(t, http.StatusConflict, w.Code)
	errBody := decodeEnvelope(t, w)["error"].(map[string]interface{})
	assert.Equal(t, "ALREADY_ASSIGNED", errBody["code"])
}

func TestRosterHandlerDetail(t *testing.T) {
	h := NewRosterHandler(&rosterServiceStub{})

	c, w := newGinContext(http.MethodGet, "/roster/s1", nil)
	c.Params = gin.Params{{Key: "studentId", Value: "s1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher})
	h.Detail(c)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "s1", data["id"])
}

func TestMetricsHandlerReady(t *testing.T) {
	h := NewMetricsHandler(nil, map[string]ReadinessCheck{
		"store": func(context.Context) error { return nil },
	})
	c, w := newGinContext(http.MethodGet, "/ready", nil)
	h.Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)

	h = NewMetricsHandler(nil, map[string]ReadinessCheck{
		"redis": func(context.Context) error { return appErrors.ErrRemoteOperation },
	})
	c, w = newGinContext(http.MethodGet, "/ready", nil)
	h.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	c, w = newGinContext(http.MethodGet, "/metrics", nil)
	h.Prometheus(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
