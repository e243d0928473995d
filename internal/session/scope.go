package session

import (
	"context"
	"sync"
)

// Scope ties state updates to the lifetime of a consumer such as a screen. Results that
// arrive after Close are dropped instead of applied.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewScope derives a scope from parent. Closing the parent context does not close the
// scope; only Close does.
func NewScope(parent context.Context) *Scope {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Scope{ctx: ctx, cancel: cancel}
}

// Context is cancelled when the scope closes.
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Alive reports whether the scope still accepts results.
func (s *Scope) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// Apply runs fn if the scope is alive and reports whether it ran. Close waits for a
// running fn, so no update lands after Close returns.
func (s *Scope) Apply(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	fn()
	return true
}

// Close stops accepting results and cancels the scope context. It is safe to call
// more than once.
func (s *Scope) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}
