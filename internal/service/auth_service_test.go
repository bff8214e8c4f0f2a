package service_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/authkit/session-auth/internal/auth"
	"github.com/authkit/session-auth/internal/config"
	"github.com/authkit/session-auth/internal/domain"
	"github.com/authkit/session-auth/internal/events"
	"github.com/authkit/session-auth/internal/repository"
	"github.com/authkit/session-auth/internal/service"
	"github.com/authkit/session-auth/internal/validation"
	apperrors "github.com/authkit/session-auth/pkg/util"
)

type fixture struct {
	svc        *service.AuthService
	users      repository.UserRepository
	sessions   repository.SessionRepository
	redis      *miniredis.Miniredis
	dispatcher events.Dispatcher
}

func testConfig() config.Config {
	return config.Config{
		Session: config.SessionConfig{TTLHours: 24},
		Auth:    config.AuthConfig{BcryptCost: bcrypt.MinCost},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{
		users:      repository.NewMemoryUserRepository(),
		sessions:   repository.NewSessionRepository(client),
		redis:      srv,
		dispatcher: events.NewInMemoryDispatcher(),
	}
	f.svc = service.NewAuthService(testConfig(), service.AuthDependencies{
		UserRepo:    f.users,
		SessionRepo: f.sessions,
		Dispatcher:  f.dispatcher,
		Logger:      zap.NewNop(),
	})
	return f
}

func validRegister() validation.RegisterInput {
	return validation.RegisterInput{FirstName: "A", LastName: "B", Email: "a@b.com", Password: "secret1"}
}

func requireDomainError(t *testing.T, err error, status int, message string) *apperrors.DomainError {
	t.Helper()
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, status, domainErr.HTTPStatus)
	assert.Equal(t, message, domainErr.Message)
	return domainErr
}

func TestRegister_ThenVerify(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	user, session, err := f.svc.Register(ctx, validRegister())
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", user.Email)
	assert.NotEqual(t, "secret1", user.PasswordHash)
	assert.Equal(t, user.ID, session.UserID)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), session.ExpiresAt, time.Minute)
	assert.Equal(t, 24*time.Hour, f.redis.TTL("session:"+session.ID))

	verified, err := f.svc.Verify(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Public(), verified.Public())
}

func TestRegister_TrimsInput(t *testing.T) {
	f := newFixture(t)

	in := validRegister()
	in.FirstName = "  Ada  "
	in.Email = " a@b.com "
	user, _, err := f.svc.Register(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.FirstName)
	assert.Equal(t, "a@b.com", user.Email)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, _, err := f.svc.Register(ctx, validRegister())
	require.NoError(t, err)

	_, _, err = f.svc.Register(ctx, validRegister())
	normalized := apperrors.Normalize(err)
	assert.Equal(t, http.StatusBadRequest, normalized.Status)
	require.Len(t, normalized.Body.Errors, 1)
	assert.Equal(t, "email", normalized.Body.Errors[0].FieldName())
}

func TestRegister_ValidationCollectsAll(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.Register(context.Background(), validation.RegisterInput{Email: "nope", Password: "abc"})

	var validationErr *apperrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Len(t, validationErr.Issues, 4)
}

func TestRegister_ConcurrentDuplicates(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, results[i] = f.svc.Register(context.Background(), validRegister())
		}(i)
	}
	wg.Wait()

	succeeded, conflicts := 0, 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		if apperrors.Normalize(err).Category == apperrors.CategoryConflict {
			conflicts++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicts)
}

func TestRegister_PasswordTooLong(t *testing.T) {
	f := newFixture(t)

	in := validRegister()
	in.Password = strings.Repeat("a", 80)

	_, _, err := f.svc.Register(context.Background(), in)
	var validationErr *apperrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "password", validationErr.Issues[0].FieldName())
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	registered, _, err := f.svc.Register(ctx, validRegister())
	require.NoError(t, err)

	t.Run("unknown email", func(t *testing.T) {
		_, _, err := f.svc.Login(ctx, validation.LoginInput{Email: "ghost@b.com", Password: "secret1"}, "")
		domainErr := requireDomainError(t, err, http.StatusUnauthorized, service.MsgUnknownEmail)
		assert.Equal(t, "email", domainErr.Field)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := f.svc.Login(ctx, validation.LoginInput{Email: "a@b.com", Password: "secret2"}, "")
		domainErr := requireDomainError(t, err, http.StatusUnauthorized, service.MsgWrongPassword)
		assert.Equal(t, "password", domainErr.Field)
	})

	t.Run("success", func(t *testing.T) {
		user, session, err := f.svc.Login(ctx, validation.LoginInput{Email: " a@b.com", Password: "secret1"}, "")
		require.NoError(t, err)
		assert.Equal(t, registered.ID, user.ID)
		assert.Equal(t, registered.ID, session.UserID)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, _, err := f.svc.Login(ctx, validation.LoginInput{Email: "a@b.com", Password: "123"}, "")
		var validationErr *apperrors.ValidationError
		require.ErrorAs(t, err, &validationErr)
	})
}

func TestLogin_ReplacesPreviousSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, first, err := f.svc.Register(ctx, validRegister())
	require.NoError(t, err)

	_, second, err := f.svc.Login(ctx, validation.LoginInput{Email: "a@b.com", Password: "secret1"}, first.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	_, err = f.svc.Verify(ctx, first.ID)
	requireDomainError(t, err, http.StatusUnauthorized, auth.MsgNotAuthenticated)

	_, err = f.svc.Verify(ctx, second.ID)
	assert.NoError(t, err)
}

func TestVerify_Failures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Verify(ctx, "")
	requireDomainError(t, err, http.StatusUnauthorized, auth.MsgNotAuthenticated)

	_, err = f.svc.Verify(ctx, "unknown")
	requireDomainError(t, err, http.StatusUnauthorized, auth.MsgNotAuthenticated)

	_, session, err := f.svc.Register(ctx, validRegister())
	require.NoError(t, err)
	f.redis.FastForward(24*time.Hour + time.Second)
	_, err = f.svc.Verify(ctx, session.ID)
	requireDomainError(t, err, http.StatusUnauthorized, auth.MsgNotAuthenticated)
}

func TestVerify_OrphanedSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	orphan := &domain.Session{ID: "orphan", UserID: uuid.NewString(), ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, f.sessions.Set(ctx, orphan, time.Hour))

	_, err := f.svc.Verify(ctx, "orphan")
	requireDomainError(t, err, http.StatusUnauthorized, service.MsgUserNotFound)
	assert.False(t, f.redis.Exists("session:orphan"), "orphaned sessions are destroyed")
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, session, err := f.svc.Register(ctx, validRegister())
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, session.ID))
	require.NoError(t, f.svc.Logout(ctx, session.ID), "logout is idempotent")
	require.NoError(t, f.svc.Logout(ctx, ""))

	_, err = f.svc.Verify(ctx, session.ID)
	requireDomainError(t, err, http.StatusUnauthorized, auth.MsgNotAuthenticated)
}

type sessionRepoMock struct {
	mock.Mock
}

func (m *sessionRepoMock) Get(ctx context.Context, id string) (*domain.Session, error) {
	args := m.Called(ctx, id)
	session, _ := args.Get(0).(*domain.Session)
	return session, args.Error(1)
}

func (m *sessionRepoMock) Set(ctx context.Context, session *domain.Session, ttl time.Duration) error {
	return m.Called(ctx, session, ttl).Error(0)
}

func (m *sessionRepoMock) Destroy(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func TestLogout_StoreFailure(t *testing.T) {
	sessions := &sessionRepoMock{}
	sessions.On("Get", mock.Anything, "sid-1").Return(nil, domain.ErrSessionNotFound)
	sessions.On("Destroy", mock.Anything, "sid-1").Return(errors.New("dial tcp: connection refused"))

	svc := service.NewAuthService(testConfig(), service.AuthDependencies{
		UserRepo:    repository.NewMemoryUserRepository(),
		SessionRepo: sessions,
	})

	err := svc.Logout(context.Background(), "sid-1")
	normalized := apperrors.Normalize(err)
	assert.Equal(t, http.StatusInternalServerError, normalized.Status)
	assert.Equal(t, service.MsgLogoutFailed, normalized.Body.Errors[0].Message)
	sessions.AssertExpectations(t)
}

func TestRegister_SessionStoreFailure(t *testing.T) {
	sessions := &sessionRepoMock{}
	sessions.On("Set", mock.Anything, mock.Anything, 24*time.Hour).Return(apperrors.NewStoreUnavailable("redis", errors.New("down")))

	svc := service.NewAuthService(testConfig(), service.AuthDependencies{
		UserRepo:    repository.NewMemoryUserRepository(),
		SessionRepo: sessions,
	})

	_, _, err := svc.Register(context.Background(), validRegister())
	normalized := apperrors.Normalize(err)
	assert.Equal(t, apperrors.CategoryStoreUnavailable, normalized.Category)
	assert.Equal(t, apperrors.MsgDatabaseConnection, normalized.Body.Errors[0].Message)
}

func TestAuthEventsArePublished(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var mu sync.Mutex
	var seen []events.EventType
	record := func(_ context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e.Type)
		return nil
	}
	for _, eventType := range []events.EventType{
		events.EventUserRegistered, events.EventUserLoggedIn, events.EventLoginFailed, events.EventUserLoggedOut,
	} {
		f.dispatcher.Subscribe(eventType, record)
	}

	_, session, err := f.svc.Register(ctx, validRegister())
	require.NoError(t, err)
	_, _, _ = f.svc.Login(ctx, validation.LoginInput{Email: "a@b.com", Password: "wrong12"}, "")
	_, session, err = f.svc.Login(ctx, validation.LoginInput{Email: "a@b.com", Password: "secret1"}, session.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.Logout(ctx, session.ID))

	assert.Equal(t, []events.EventType{
		events.EventUserRegistered, events.EventLoginFailed, events.EventUserLoggedIn, events.EventUserLoggedOut,
	}, seen)
}
