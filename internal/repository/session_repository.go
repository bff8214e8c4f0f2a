package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/authkit/session-auth/internal/domain"
)

const sessionKeyPrefix = "session:"

// SessionRepository is the narrow key-value contract for server-side sessions.
type SessionRepository interface {
	// Get returns domain.ErrSessionNotFound for unknown, expired or unreadable ids.
	Get(ctx context.Context, id string) (*domain.Session, error)
	Set(ctx context.Context, session *domain.Session, ttl time.Duration) error
	// Destroy is idempotent.
	Destroy(ctx context.Context, id string) error
}

type sessionRepository struct {
	client redis.Cmdable
	now    func() time.Time
}

// NewSessionRepository returns a Redis-backed session store.
func NewSessionRepository(client redis.Cmdable) SessionRepository {
	return &sessionRepository{client: client, now: time.Now}
}

func (r *sessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	if id == "" {
		return nil, domain.ErrSessionNotFound
	}

	raw, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		// an unreadable payload can never authenticate anyone
		if err := r.Destroy(ctx, id); err != nil {
			return nil, err
		}
		return nil, domain.ErrSessionNotFound
	}
	session.ID = id

	if session.Expired(r.now()) {
		if err := r.Destroy(ctx, id); err != nil {
			return nil, err
		}
		return nil, domain.ErrSessionNotFound
	}
	return &session, nil
}

func (r *sessionRepository) Set(ctx context.Context, session *domain.Session, ttl time.Duration) error {
	if session == nil || session.ID == "" {
		return errors.New("set session: missing id")
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(session.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

func (r *sessionRepository) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := r.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}
