package handlers

import (
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/authkit/session-auth/internal/api/dto"
	"github.com/authkit/session-auth/internal/auth"
	"github.com/authkit/session-auth/internal/service"
	apperrors "github.com/authkit/session-auth/pkg/util"
)

// AuthHandler exposes the register, login, verify and logout endpoints.
type AuthHandler struct {
	auth    *service.AuthService
	cookies *auth.CookieManager
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, cookies *auth.CookieManager) *AuthHandler {
	return &AuthHandler{auth: authService, cookies: cookies}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := decodeJSON(c, &req); err != nil {
		return err
	}

	user, session, err := h.auth.Register(c.UserContext(), req.Input())
	if err != nil {
		return err
	}
	if err := h.cookies.Issue(c, session.ID, session.ExpiresAt); err != nil {
		return apperrors.NewInternalError("", err)
	}

	return c.Status(http.StatusCreated).JSON(dto.AuthResponse{
		Message: "User registered successfully",
		User:    user.Public(),
	})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := decodeJSON(c, &req); err != nil {
		return err
	}

	previous, _ := h.cookies.SessionID(c)
	user, session, err := h.auth.Login(c.UserContext(), req.Input(), previous)
	if err != nil {
		return err
	}
	if err := h.cookies.Issue(c, session.ID, session.ExpiresAt); err != nil {
		return apperrors.NewInternalError("", err)
	}

	return c.JSON(dto.AuthResponse{
		Message: "Login successful",
		User:    user.Public(),
	})
}

// Verify handles GET /api/auth/verify. The session middleware has already resolved
// the caller.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c.UserContext())
	if !ok {
		return apperrors.NewUnauthorized(auth.MsgNotAuthenticated)
	}
	return c.JSON(dto.UserResponse{User: identity.User.Public()})
}

// Logout handles POST /api/auth/logout. It succeeds without a session.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	sessionID, _ := h.cookies.SessionID(c)
	if err := h.auth.Logout(c.UserContext(), sessionID); err != nil {
		return err
	}
	h.cookies.Clear(c)
	return c.JSON(dto.MessageResponse{Message: "Logout successful"})
}

// decodeJSON parses the body into out. An empty body decodes to the zero value so
// the validator reports the missing fields; any body that is not JSON counts as a
// malformed payload.
func decodeJSON(c *fiber.Ctx, out interface{}) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if !c.Is("json") {
		return apperrors.NewMalformedPayload(fmt.Errorf("unsupported content type %q", c.Get(fiber.HeaderContentType)))
	}
	if err := c.App().Config().JSONDecoder(c.Body(), out); err != nil {
		return apperrors.NewMalformedPayload(err)
	}
	return nil
}
