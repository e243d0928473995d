package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/noah-isme/studio-api/internal/models"
	appErrors "github.com/noah-isme/studio-api/pkg/errors"
)

// fakeBackend is an in-memory backend. gate, when set for an operation name, blocks
// that operation until the channel is closed; entered is signalled first.
type fakeBackend struct {
	mu sync.Mutex

	users       map[string]models.UserInfo
	content     map[models.ContentType][]models.ContentItem
	assignments []models.Assignment
	library     map[models.ContentType][]models.AssignedContent
	roster      models.RosterView
	directory   []models.User
	nextID      int
	seconds     int64

	failures map[string]error
	gates    map[string]chan struct{}
	entered  map[string]chan struct{}
	issued   int
	token    string
	revoked  []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		users:    make(map[string]models.UserInfo),
		content:  make(map[models.ContentType][]models.ContentItem),
		library:  make(map[models.ContentType][]models.AssignedContent),
		failures: make(map[string]error),
		gates:    make(map[string]chan struct{}),
		entered:  make(map[string]chan struct{}),
	}
}

// block makes op wait until the returned release func runs. The entered channel is
// closed once op started.
func (f *fakeBackend) block(op string) (entered <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	in := make(chan struct{})
	f.gates[op] = gate
	f.entered[op] = in
	var once sync.Once
	return in, func() { once.Do(func() { close(gate) }) }
}

func (f *fakeBackend) fail(op string, err error) {
	f.mu.Lock()
	f.failures[op] = err
	f.mu.Unlock()
}

// enter waits on the op gate, ignoring context cancellation so late results still
// arrive, then returns any configured failure.
func (f *fakeBackend) enter(op string) error {
	f.mu.Lock()
	gate, in := f.gates[op], f.entered[op]
	delete(f.gates, op)
	delete(f.entered, op)
	f.mu.Unlock()
	if gate != nil {
		close(in)
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	err := f.failures[op]
	delete(f.failures, op)
	return err
}

func (f *fakeBackend) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeBackend) now() *models.Timestamp {
	f.seconds++
	return models.NewTimestamp(time.Unix(f.seconds, 0))
}

func (f *fakeBackend) result(user models.UserInfo) *models.AuthResult {
	f.issued++
	return &models.AuthResult{AccessToken: fmt.Sprintf("token-%s-%d", user.ID, f.issued), User: user}
}

func (f *fakeBackend) SignUp(_ context.Context, req models.SignUpRequest) (*models.AuthResult, error) {
	if err := f.enter("signup"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	user := models.UserInfo{ID: f.id("user"), Email: req.Email, FullName: req.Name, Role: req.Role}
	f.users[req.Email] = user
	return f.result(user), nil
}

func (f *fakeBackend) LogIn(_ context.Context, req models.LoginRequest) (*models.AuthResult, error) {
	if err := f.enter("login"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[req.Email]
	if !ok {
		return nil, appErrors.ErrInvalidCredentials
	}
	return f.result(user), nil
}

func (f *fakeBackend) LogInWithProvider(_ context.Context, req models.ProviderLoginRequest) (*models.AuthResult, error) {
	if err := f.enter("provider"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[req.Token]
	if !ok {
		user = models.UserInfo{ID: f.id("user"), Email: req.Token, Role: models.RoleStudent}
		f.users[req.Token] = user
	}
	return f.result(user), nil
}

func (f *fakeBackend) CompleteProfile(_ context.Context, req models.CompleteProfileRequest) (*models.AuthResult, error) {
	if err := f.enter("profile"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for email, user := range f.users {
		if user.Role == "" {
			user.Role = req.Role
			user.FullName = req.Name
			f.users[email] = user
			return f.result(user), nil
		}
	}
	return nil, appErrors.ErrNotFound
}

func (f *fakeBackend) SetToken(token string) {
	f.mu.Lock()
	f.token = token
	f.mu.Unlock()
}

func (f *fakeBackend) Revoke(_ context.Context, token string) error {
	f.mu.Lock()
	f.revoked = append(f.revoked, token)
	f.mu.Unlock()
	return f.enter("logout")
}

func (f *fakeBackend) installed() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeBackend) revokedTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.revoked...)
}

func (f *fakeBackend) ListContent(_ context.Context, kind models.ContentType) ([]models.ContentItem, error) {
	if err := f.enter("list:" + string(kind)); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ContentItem(nil), f.content[kind]...), nil
}

func (f *fakeBackend) CreateContent(_ context.Context, kind models.ContentType, input models.ContentInput) (*models.ContentItem, error) {
	if err := f.enter("create"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	item := models.ContentItem{ID: f.id(string(kind)), Title: input.Title, Description: input.Description, CreatedAt: f.now()}
	f.content[kind] = append(f.content[kind], item)
	return &item, nil
}

func (f *fakeBackend) UpdateContent(_ context.Context, kind models.ContentType, id string, input models.ContentInput) (*models.ContentItem, error) {
	if err := f.enter("update"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, item := range f.content[kind] {
		if item.ID == id {
			item.Title = input.Title
			item.Description = input.Description
			item.UpdatedAt = f.now()
			f.content[kind][i] = item
			return &item, nil
		}
	}
	return nil, appErrors.ErrNotFound
}

func (f *fakeBackend) DeleteContent(_ context.Context, kind models.ContentType, id string) error {
	if err := f.enter("delete"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	items := f.content[kind][:0]
	for _, item := range f.content[kind] {
		if item.ID != id {
			items = append(items, item)
		}
	}
	f.content[kind] = items
	return nil
}

func (f *fakeBackend) newAssignment(req models.AssignRequest) models.Assignment {
	a := models.Assignment{
		ID:          f.id("assignment"),
		TeacherID:   req.TeacherID,
		StudentID:   req.StudentID,
		ContentID:   req.ContentID,
		ContentType: req.ContentType,
		DueDate:     req.DueDate,
		Status:      models.AssignmentPending,
		CreatedAt:   f.now(),
	}
	f.assignments = append(f.assignments, a)
	return a
}

func (f *fakeBackend) Assign(_ context.Context, req models.AssignRequest) (*models.Assignment, error) {
	if err := f.enter("assign"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.newAssignment(req)
	return &a, nil
}

func (f *fakeBackend) AssignMany(_ context.Context, req models.BulkAssignRequest) (*models.BulkAssignResult, error) {
	failErr := f.enter("assign_many")
	f.mu.Lock()
	defer f.mu.Unlock()
	res := &models.BulkAssignResult{}
	for i, studentID := range req.StudentIDs {
		if failErr != nil && i == len(req.StudentIDs)-1 {
			res.FailedAt = studentID
			return res, failErr
		}
		res.Assigned = append(res.Assigned, f.newAssignment(models.AssignRequest{
			StudentID: studentID, ContentID: req.ContentID, ContentType: req.ContentType, DueDate: req.DueDate,
		}))
	}
	return res, nil
}

func (f *fakeBackend) StudentAssignments(_ context.Context, studentID string) ([]models.Assignment, error) {
	if err := f.enter("assignments"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Assignment
	for _, a := range f.assignments {
		if a.StudentID == studentID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeBackend) UpdateAssignmentStatus(_ context.Context, id string, status models.AssignmentStatus) (*models.Assignment, error) {
	if err := f.enter("status"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.assignments {
		if f.assignments[i].ID == id {
			f.assignments[i].Status = status
			a := f.assignments[i]
			return &a, nil
		}
	}
	return nil, appErrors.ErrNotFound
}

func (f *fakeBackend) Library(_ context.Context, _ string, kind models.ContentType) ([]models.AssignedContent, error) {
	if err := f.enter("library:" + string(kind)); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.AssignedContent(nil), f.library[kind]...), nil
}

func (f *fakeBackend) rosterView() *models.RosterView {
	view := f.roster
	view.StudentIDs = append([]string{}, f.roster.StudentIDs...)
	view.Students = append([]models.User(nil), f.roster.Students...)
	return &view
}

func (f *fakeBackend) Roster(context.Context, string) (*models.RosterView, error) {
	if err := f.enter("roster"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rosterView(), nil
}

func (f *fakeBackend) AddStudentByEmail(_ context.Context, email string) (*models.RosterView, error) {
	if err := f.enter("roster_add"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.roster.Students {
		if s.Email == email {
			return nil, appErrors.ErrAlreadyAssigned
		}
	}
	student := models.User{ID: f.id("student"), Email: email, Role: models.RoleStudent}
	f.directory = append(f.directory, student)
	f.roster.StudentIDs = append(f.roster.StudentIDs, student.ID)
	f.roster.Students = append(f.roster.Students, student)
	return f.rosterView(), nil
}

func (f *fakeBackend) RemoveStudent(_ context.Context, studentID string) (*models.RosterView, error) {
	if err := f.enter("roster_remove"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := []string{}
	for _, id := range f.roster.StudentIDs {
		if id != studentID {
			ids = append(ids, id)
		}
	}
	var students []models.User
	for _, s := range f.roster.Students {
		if s.ID != studentID {
			students = append(students, s)
		}
	}
	f.roster.StudentIDs, f.roster.Students = ids, students
	return f.rosterView(), nil
}

func (f *fakeBackend) Snapshot(context.Context) (models.DirectorySnapshot, error) {
	if err := f.enter("snapshot"); err != nil {
		return models.DirectorySnapshot{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seconds++
	return models.NewDirectorySnapshot(append([]models.User(nil), f.directory...), time.Unix(f.seconds, 0).UTC()), nil
}
