package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/authkit/session-auth/internal/auth"
	"github.com/authkit/session-auth/internal/config"
	"github.com/authkit/session-auth/internal/domain"
	"github.com/authkit/session-auth/internal/events"
	"github.com/authkit/session-auth/internal/repository"
	"github.com/authkit/session-auth/internal/validation"
	apperrors "github.com/authkit/session-auth/pkg/util"
)

// Client-visible auth messages.
const (
	MsgUnknownEmail  = "User with this email does not exist"
	MsgWrongPassword = "Wrong password for this email"
	MsgUserNotFound  = "User not found"
	MsgLogoutFailed  = "Could not log out, please try again"
)

// AuthService drives the anonymous/authenticated transitions: register, login,
// verify and logout.
type AuthService struct {
	users      repository.UserRepository
	sessions   repository.SessionRepository
	hasher     auth.PasswordHasher
	validator  *validation.Validator
	dispatcher events.Dispatcher
	logger     *zap.Logger
	ttl        time.Duration
	now        func() time.Time
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo    repository.UserRepository
	SessionRepo repository.SessionRepository
	Hasher      auth.PasswordHasher
	Validator   *validation.Validator
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	s := &AuthService{
		users:      deps.UserRepo,
		sessions:   deps.SessionRepo,
		hasher:     deps.Hasher,
		validator:  deps.Validator,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		ttl:        cfg.Session.TTL(),
		now:        time.Now,
	}
	if s.hasher == nil {
		s.hasher = auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	}
	if s.validator == nil {
		s.validator = validation.New()
	}
	if s.dispatcher == nil {
		s.dispatcher = events.NewInMemoryDispatcher()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.ttl <= 0 {
		s.ttl = 24 * time.Hour
	}
	return s
}

// Register creates the user and opens a session for it. The email lookup only gives
// early feedback; the store's uniqueness constraint decides concurrent duplicates.
func (s *AuthService) Register(ctx context.Context, in validation.RegisterInput) (*domain.User, *domain.Session, error) {
	if err := s.validator.Register(&in); err != nil {
		return nil, nil, err
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, nil, apperrors.NewConflict("email", nil)
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, nil, err
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, nil, err
	}

	user := &domain.User{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, nil, err
	}

	session, err := s.openSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	s.publish(ctx, events.EventUserRegistered, user.ID, events.UserRegisteredPayload{Email: user.Email})
	return user, session, nil
}

// Login checks the credentials and opens a fresh session. A session id the caller
// already held is destroyed so it cannot be reused after authentication.
func (s *AuthService) Login(ctx context.Context, in validation.LoginInput, previousSessionID string) (*domain.User, *domain.Session, error) {
	if err := s.validator.Login(&in); err != nil {
		return nil, nil, err
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.publish(ctx, events.EventLoginFailed, "", events.LoginFailedPayload{Email: in.Email, Reason: events.ReasonUnknownEmail})
			return nil, nil, apperrors.NewDomainError("UNAUTHORIZED", MsgUnknownEmail, http.StatusUnauthorized).WithField("email")
		}
		return nil, nil, err
	}

	ok, err := s.hasher.Compare(user.PasswordHash, in.Password)
	if err != nil {
		return nil, nil, apperrors.NewInternalError("", err)
	}
	if !ok {
		s.publish(ctx, events.EventLoginFailed, user.ID, events.LoginFailedPayload{Email: in.Email, Reason: events.ReasonWrongPassword})
		return nil, nil, apperrors.NewDomainError("UNAUTHORIZED", MsgWrongPassword, http.StatusUnauthorized).WithField("password")
	}

	if previousSessionID != "" {
		if err := s.sessions.Destroy(ctx, previousSessionID); err != nil {
			s.logger.Warn("failed to destroy previous session", zap.Error(err))
		}
	}

	session, err := s.openSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	s.publish(ctx, events.EventUserLoggedIn, user.ID, nil)
	return user, session, nil
}

// Verify resolves a session into its user. A session pointing at a user that no
// longer exists is destroyed and reported as unauthenticated.
func (s *AuthService) Verify(ctx context.Context, sessionID string) (*domain.User, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, apperrors.NewUnauthorized(auth.MsgNotAuthenticated)
		}
		return nil, err
	}
	if !session.Authenticated() || session.Expired(s.now()) {
		return nil, apperrors.NewUnauthorized(auth.MsgNotAuthenticated)
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		var idErr *apperrors.InvalidIDError
		if errors.Is(err, domain.ErrUserNotFound) || errors.As(err, &idErr) {
			if destroyErr := s.sessions.Destroy(ctx, sessionID); destroyErr != nil {
				s.logger.Warn("failed to destroy orphaned session", zap.Error(destroyErr))
			}
			return nil, apperrors.NewUnauthorized(MsgUserNotFound)
		}
		return nil, err
	}
	return user, nil
}

// Logout destroys the session. An absent or empty session id is not an error.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	userID := ""
	if session, err := s.sessions.Get(ctx, sessionID); err == nil {
		userID = session.UserID
	}

	if err := s.sessions.Destroy(ctx, sessionID); err != nil {
		// The cause is logged here so the client sees the logout message rather
		// than the store classification.
		s.logger.Error("failed to destroy session", zap.Error(err))
		return apperrors.NewDomainError("LOGOUT_FAILED", MsgLogoutFailed, http.StatusInternalServerError)
	}

	if userID != "" {
		s.publish(ctx, events.EventUserLoggedOut, userID, nil)
	}
	return nil
}

// SessionTTL returns the lifetime given to new sessions.
func (s *AuthService) SessionTTL() time.Duration {
	return s.ttl
}

func (s *AuthService) hashPassword(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return "", &apperrors.ValidationError{Issues: []apperrors.Issue{
				apperrors.NewIssue("password", "Password must be at most 72 bytes long"),
			}}
		}
		return "", apperrors.NewInternalError("", err)
	}
	return hash, nil
}

func (s *AuthService) openSession(ctx context.Context, userID string) (*domain.Session, error) {
	now := s.now().UTC()
	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Set(ctx, session, s.ttl); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, userID string, payload interface{}) {
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Timestamp: s.now().UTC(),
		Payload:   payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}
