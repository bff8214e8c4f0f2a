package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/authkit/session-auth/internal/domain"
	apperrors "github.com/authkit/session-auth/pkg/util"
)

type memoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*domain.User
	byEmail map[string]string
}

// NewMemoryUserRepository returns a process-local credential store. Email uniqueness
// is enforced under the write lock, mirroring the database constraint.
func NewMemoryUserRepository() UserRepository {
	return &memoryUserRepository{
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]string),
	}
}

func (r *memoryUserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var issues []apperrors.Issue
	if user.FirstName == "" {
		issues = append(issues, apperrors.NewIssue("firstName", "First name is required"))
	}
	if user.LastName == "" {
		issues = append(issues, apperrors.NewIssue("lastName", "Last name is required"))
	}
	if user.Email == "" {
		issues = append(issues, apperrors.NewIssue("email", "Email is required"))
	}
	if user.PasswordHash == "" {
		issues = append(issues, apperrors.NewIssue("password", "Password is required"))
	}
	if len(issues) > 0 {
		return &apperrors.RecordValidationError{Issues: issues}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[user.Email]; taken {
		return apperrors.NewConflict("email", nil)
	}

	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := *user
	r.byID[stored.ID] = &stored
	r.byEmail[stored.Email] = stored.ID
	return nil
}

func (r *memoryUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewInvalidID("id", id)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (r *memoryUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *r.byID[id]
	return &cp, nil
}
