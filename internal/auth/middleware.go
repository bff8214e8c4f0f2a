package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/authkit/session-auth/internal/domain"
	apperrors "github.com/authkit/session-auth/pkg/util"
)

// MsgNotAuthenticated is returned when the request carries no usable session.
const MsgNotAuthenticated = "Not authenticated"

type identityKey struct{}

// Identity is the authenticated caller resolved from the session cookie.
type Identity struct {
	SessionID string
	User      *domain.User
}

// SessionVerifier resolves a session id into its user.
type SessionVerifier interface {
	Verify(ctx context.Context, sessionID string) (*domain.User, error)
}

// SessionMiddleware guards routes that require an authenticated session.
type SessionMiddleware struct {
	cookies  *CookieManager
	verifier SessionVerifier
}

// NewSessionMiddleware constructs middleware.
func NewSessionMiddleware(cookies *CookieManager, verifier SessionVerifier) *SessionMiddleware {
	return &SessionMiddleware{cookies: cookies, verifier: verifier}
}

// Handle resolves the session and attaches the identity to the request context.
func (m *SessionMiddleware) Handle(c *fiber.Ctx) error {
	sessionID, ok := m.cookies.SessionID(c)
	if !ok {
		return apperrors.NewUnauthorized(MsgNotAuthenticated)
	}

	user, err := m.verifier.Verify(c.UserContext(), sessionID)
	if err != nil {
		return err
	}

	c.SetUserContext(WithIdentity(c.UserContext(), &Identity{SessionID: sessionID, User: user}))
	return c.Next()
}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext retrieves the authenticated caller.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(*Identity)
	return identity, ok && identity != nil
}
