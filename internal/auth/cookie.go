package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// CookieConfig describes the session cookie attributes.
type CookieConfig struct {
	Name       string
	MaxAge     time.Duration
	Production bool
}

// CookieManager writes, reads and clears the signed session cookie.
type CookieManager struct {
	cfg    CookieConfig
	tokens *TokenManager
}

// NewCookieManager builds a manager that signs values with tokens.
func NewCookieManager(cfg CookieConfig, tokens *TokenManager) *CookieManager {
	if cfg.Name == "" {
		cfg.Name = "sid"
	}
	return &CookieManager{cfg: cfg, tokens: tokens}
}

// Name returns the cookie name.
func (m *CookieManager) Name() string {
	return m.cfg.Name
}

// Issue sets the cookie for sessionID.
func (m *CookieManager) Issue(c *fiber.Ctx, sessionID string, expiresAt time.Time) error {
	value, err := m.tokens.Sign(sessionID, expiresAt)
	if err != nil {
		return err
	}
	cookie := m.base()
	cookie.Value = value
	cookie.MaxAge = int(m.cfg.MaxAge / time.Second)
	cookie.Expires = expiresAt
	c.Cookie(cookie)
	return nil
}

// SessionID returns the session id carried by a valid cookie. A missing, forged or
// expired cookie yields ok=false.
func (m *CookieManager) SessionID(c *fiber.Ctx) (string, bool) {
	raw := c.Cookies(m.cfg.Name)
	if raw == "" {
		return "", false
	}
	id, err := m.tokens.Parse(raw)
	if err != nil {
		return "", false
	}
	return id, true
}

// Clear expires the cookie on the client.
func (m *CookieManager) Clear(c *fiber.Ctx) {
	cookie := m.base()
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0)
	c.Cookie(cookie)
}

func (m *CookieManager) base() *fiber.Cookie {
	cookie := &fiber.Cookie{
		Name:     m.cfg.Name,
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	}
	if m.cfg.Production {
		cookie.Secure = true
		cookie.SameSite = fiber.CookieSameSiteNoneMode
	}
	return cookie
}
