package authclient

import (
	"context"
	"sync"

	"github.com/authkit/session-auth/internal/api/dto"
	"github.com/authkit/session-auth/internal/domain"
)

// Status is the state of the authoritative verify call.
type Status int

const (
	StatusPending Status = iota
	StatusResolved
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusResolved:
		return "resolved"
	case StatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

// AuthAPI is the server surface the context depends on; *Client implements it.
type AuthAPI interface {
	Register(ctx context.Context, req dto.RegisterRequest) (*domain.PublicUser, error)
	Login(ctx context.Context, req dto.LoginRequest) (*domain.PublicUser, error)
	Verify(ctx context.Context) (*domain.PublicUser, error)
	Logout(ctx context.Context) error
}

// AuthContext holds the client's view of who is signed in. The mirror seeds the
// local user at start-up; Load replaces it with the server's answer.
type AuthContext struct {
	api    AuthAPI
	mirror Mirror

	mu     sync.RWMutex
	user   *domain.PublicUser
	status Status
	err    error
	done   chan struct{}
}

// NewAuthContext builds a context in the pending state. mirror may be nil.
func NewAuthContext(api AuthAPI, mirror Mirror) *AuthContext {
	a := &AuthContext{api: api, mirror: mirror, done: make(chan struct{})}
	if mirror != nil {
		if cached, err := mirror.Load(); err == nil {
			a.user = cached
		}
	}
	return a
}

// Load verifies the session in the background. The returned channel closes once the
// verify call settles. Calling Load again starts a fresh verification.
func (a *AuthContext) Load(ctx context.Context) <-chan struct{} {
	a.mu.Lock()
	a.status = StatusPending
	a.err = nil
	done := make(chan struct{})
	a.done = done
	a.mu.Unlock()

	go func() {
		defer close(done)
		user, err := a.api.Verify(ctx)

		a.mu.Lock()
		defer a.mu.Unlock()
		if a.done != done {
			return
		}
		switch {
		case err == nil:
			a.setLocked(user)
			a.status = StatusResolved
		case IsUnauthorized(err):
			a.setLocked(nil)
			a.status = StatusResolved
		default:
			a.setLocked(nil)
			a.status = StatusFailed
			a.err = err
		}
	}()
	return done
}

// Wait blocks until the latest Load settles or ctx ends.
func (a *AuthContext) Wait(ctx context.Context) error {
	a.mu.RLock()
	done := a.done
	a.mu.RUnlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CurrentUser returns the local user and the verify status.
func (a *AuthContext) CurrentUser() (*domain.PublicUser, Status) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.user, a.status
}

// Err returns the failure of the last verify call, if any.
func (a *AuthContext) Err() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.err
}

// SetCurrentUser replaces the local user and resyncs the mirror.
func (a *AuthContext) SetCurrentUser(user *domain.PublicUser) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setLocked(user)
}

// IsAuthenticated reports whether a user is held locally.
func (a *AuthContext) IsAuthenticated() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.user != nil
}

// Register signs up and records the new user locally.
func (a *AuthContext) Register(ctx context.Context, req dto.RegisterRequest) (*domain.PublicUser, error) {
	user, err := a.api.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	a.signedIn(user)
	return user, nil
}

// Login signs in and records the user locally.
func (a *AuthContext) Login(ctx context.Context, req dto.LoginRequest) (*domain.PublicUser, error) {
	user, err := a.api.Login(ctx, req)
	if err != nil {
		return nil, err
	}
	a.signedIn(user)
	return user, nil
}

// Logout ends the session and clears the local user once the server confirms.
func (a *AuthContext) Logout(ctx context.Context) error {
	if err := a.api.Logout(ctx); err != nil {
		return err
	}
	a.signedIn(nil)
	return nil
}

func (a *AuthContext) signedIn(user *domain.PublicUser) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setLocked(user)
	a.status = StatusResolved
	a.err = nil
}

func (a *AuthContext) setLocked(user *domain.PublicUser) {
	if user != nil {
		cp := *user
		user = &cp
	}
	a.user = user
	if a.mirror != nil {
		_ = a.mirror.Store(user)
	}
}
