package ratelimit

import (
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/authkit/session-auth/pkg/util"
)

// MsgTooManyAttempts is the client-visible message for throttled requests.
const MsgTooManyAttempts = "Too many authentication attempts, please try again later."

const (
	HeaderLimit     = "RateLimit-Limit"
	HeaderRemaining = "RateLimit-Remaining"
	HeaderReset     = "RateLimit-Reset"
)

// Config controls the limiter middleware.
type Config struct {
	Counter   Counter
	Max       int
	Window    time.Duration
	KeyPrefix string
	// KeyFunc identifies the client; defaults to the remote IP.
	KeyFunc func(*fiber.Ctx) string
	Logger  *zap.Logger
}

// New returns a fixed-window limiter. Every request counts, successful or not. A
// failing counter lets the request through so a Redis outage does not lock users out.
func New(cfg Config) fiber.Handler {
	if cfg.Max <= 0 {
		cfg.Max = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "ratelimit:"
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(c *fiber.Ctx) string { return c.IP() }
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Counter == nil {
		cfg.Counter = NewMemoryCounter()
	}

	return func(c *fiber.Ctx) error {
		key := cfg.KeyPrefix + cfg.KeyFunc(c)
		count, resetIn, err := cfg.Counter.Hit(c.UserContext(), key, cfg.Window)
		if err != nil {
			cfg.Logger.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
			return c.Next()
		}

		remaining := int64(cfg.Max) - count
		if remaining < 0 {
			remaining = 0
		}
		resetSeconds := strconv.Itoa(int(math.Ceil(resetIn.Seconds())))

		c.Set(HeaderLimit, strconv.Itoa(cfg.Max))
		c.Set(HeaderRemaining, strconv.FormatInt(remaining, 10))
		c.Set(HeaderReset, resetSeconds)

		if count > int64(cfg.Max) {
			c.Set(fiber.HeaderRetryAfter, resetSeconds)
			return apperrors.NewTooManyRequests(MsgTooManyAttempts)
		}
		return c.Next()
	}
}
