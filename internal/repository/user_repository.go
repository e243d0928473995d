package repository

import (
	"context"
	"fmt"

	"github.com/noah-isme/studio-api/internal/models"
	"github.com/noah-isme/studio-api/pkg/docstore"
)

// UserRepository reads and writes the users collection.
type UserRepository struct {
	store docstore.Store
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(store docstore.Store) *UserRepository {
	return &UserRepository{store: store}
}

// FindByID returns the user record keyed by identity id.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	doc, err := r.store.Get(ctx, models.CollectionUsers, id)
	if err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return decodeUser(doc)
}

// FindByEmailAndRole returns the first user matching both email and role.
func (r *UserRepository) FindByEmailAndRole(ctx context.Context, email string, role models.UserRole) (*models.User, error) {
	docs, err := r.store.Query(ctx, models.CollectionUsers,
		docstore.Where("email", docstore.OpEqual, email),
		docstore.Where("role", docstore.OpEqual, string(role)))
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("find user by email: %w", docstore.ErrNotFound)
	}
	return decodeUser(&docs[0])
}

// List returns every user record.
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	docs, err := r.store.Query(ctx, models.CollectionUsers)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]models.User, 0, len(docs))
	for i := range docs {
		user, err := decodeUser(&docs[i])
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, nil
}

// Create writes a new user record under user.ID with a server creation time.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	fields := docstore.Fields{
		"email":     user.Email,
		"fullName":  user.FullName,
		"createdAt": docstore.ServerTimestamp(),
	}
	optional(fields, "role", string(user.Role))
	optional(fields, "photoUrl", user.PhotoURL)
	if user.GoogleSignIn {
		fields["googleSignIn"] = true
	}
	if err := r.store.Set(ctx, models.CollectionUsers, user.ID, fields); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// AddStudent unions studentID into the teacher's students array.
func (r *UserRepository) AddStudent(ctx context.Context, teacherID, studentID string) error {
	err := r.store.Update(ctx, models.CollectionUsers, teacherID, docstore.Fields{
		"students":  docstore.ArrayUnion(studentID),
		"updatedAt": docstore.ServerTimestamp(),
	})
	if err != nil {
		return fmt.Errorf("add student to roster: %w", err)
	}
	return nil
}

// RemoveStudent removes studentID from the teacher's students array.
func (r *UserRepository) RemoveStudent(ctx context.Context, teacherID, studentID string) error {
	err := r.store.Update(ctx, models.CollectionUsers, teacherID, docstore.Fields{
		"students":  docstore.ArrayRemove(studentID),
		"updatedAt": docstore.ServerTimestamp(),
	})
	if err != nil {
		return fmt.Errorf("remove student from roster: %w", err)
	}
	return nil
}

func decodeUser(doc *docstore.Document) (*models.User, error) {
	var user models.User
	if err := doc.DataTo(&user); err != nil {
		return nil, err
	}
	user.ID = doc.ID
	return &user, nil
}

// NewID allocates an id for a user record that has no identity yet.
func (r *UserRepository) NewID() string {
	return r.store.NewID()
}
