package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryIdentity struct {
	Identity
	passwordHash string
	subject      string
}

// MemoryProvider keeps identities in process.
type MemoryProvider struct {
	mu        sync.Mutex
	byID      map[string]*memoryIdentity
	byEmail   map[string]string
	bySubject map[string]string
	failures  map[string]error
}

// NewMemoryProvider returns an empty provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		byID:      make(map[string]*memoryIdentity),
		byEmail:   make(map[string]string),
		bySubject: make(map[string]string),
		failures:  make(map[string]error),
	}
}

// FailNext makes the next call of op ("create", "authenticate", "credential",
// "update_profile", "lookup") return err.
func (p *MemoryProvider) FailNext(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[op] = err
}

func (p *MemoryProvider) take(op string) error {
	if err, ok := p.failures[op]; ok {
		delete(p.failures, op)
		return err
	}
	return nil
}

func (p *MemoryProvider) Create(_ context.Context, email, password string) (*Identity, error) {
	email = normalizeEmail(email)
	if err := validateNew(email, password); err != nil {
		return nil, err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.take("create"); err != nil {
		return nil, err
	}
	if _, exists := p.byEmail[email]; exists {
		return nil, newError(CodeEmailInUse)
	}
	rec := &memoryIdentity{
		Identity:     Identity{UID: uuid.NewString(), Email: email, Provider: PasswordProvider, CreatedAt: time.Now().UTC()},
		passwordHash: hash,
	}
	p.byID[rec.UID] = rec
	p.byEmail[email] = rec.UID
	out := rec.Identity
	return &out, nil
}

func (p *MemoryProvider) Authenticate(_ context.Context, email, password string) (*Identity, error) {
	email = normalizeEmail(email)
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.take("authenticate"); err != nil {
		return nil, err
	}
	uid, ok := p.byEmail[email]
	if !ok {
		return nil, newError(CodeUserNotFound)
	}
	rec := p.byID[uid]
	if err := checkPassword(rec.passwordHash, password); err != nil {
		return nil, err
	}
	out := rec.Identity
	return &out, nil
}

func (p *MemoryProvider) AuthenticateCredential(_ context.Context, cred Credential) (*Identity, bool, error) {
	if cred.Provider == "" || cred.Subject == "" {
		return nil, false, newError(CodeInvalidCredential)
	}
	key := cred.Provider + ":" + cred.Subject

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.take("credential"); err != nil {
		return nil, false, err
	}
	if uid, ok := p.bySubject[key]; ok {
		out := p.byID[uid].Identity
		return &out, false, nil
	}
	rec := &memoryIdentity{
		Identity: Identity{
			UID:         uuid.NewString(),
			Email:       normalizeEmail(cred.Email),
			DisplayName: cred.DisplayName,
			PhotoURL:    cred.PhotoURL,
			Provider:    cred.Provider,
			CreatedAt:   time.Now().UTC(),
		},
		subject: cred.Subject,
	}
	p.byID[rec.UID] = rec
	p.bySubject[key] = rec.UID
	out := rec.Identity
	return &out, true, nil
}

func (p *MemoryProvider) UpdateProfile(_ context.Context, uid, displayName string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.take("update_profile"); err != nil {
		return err
	}
	rec, ok := p.byID[uid]
	if !ok {
		return newError(CodeUserNotFound)
	}
	rec.DisplayName = displayName
	return nil
}

func (p *MemoryProvider) Lookup(_ context.Context, uid string) (*Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.take("lookup"); err != nil {
		return nil, err
	}
	rec, ok := p.byID[uid]
	if !ok {
		return nil, newError(CodeUserNotFound)
	}
	out := rec.Identity
	return &out, nil
}
