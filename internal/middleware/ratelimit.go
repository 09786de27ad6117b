package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"breaksphere/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// ErrLimiterUnavailable is returned when an enabled limiter has no Redis.
var ErrLimiterUnavailable = errors.New("rate limit store unavailable")

// Limit is one named fixed-window budget, such as toggle_like at 60/min.
type Limit struct {
	Name   string
	Max    int
	Window time.Duration
	// FailClosed answers 503 instead of letting the request through when Redis is down.
	FailClosed bool
}

// Decision is the outcome of counting one hit.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

// INCR then arm the expiry on the first hit, atomically.
var fixedWindow = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {n, redis.call('PTTL', KEYS[1])}
`)

// Limiter counts hits per caller in Redis windows shared by every instance.
type Limiter struct {
	rdb     *redis.Client
	enabled bool
}

// NewLimiter returns a Limiter. Limits are not enforced in test or development.
func NewLimiter(rdb *redis.Client, env string) *Limiter {
	return &Limiter{rdb: rdb, enabled: env != "test" && env != "development" && env != ""}
}

// Allow counts one hit by id against lim.
func (l *Limiter) Allow(ctx context.Context, lim Limit, id string) (Decision, error) {
	if !l.enabled {
		return Decision{Allowed: true, Remaining: lim.Max}, nil
	}
	if l.rdb == nil {
		return Decision{}, ErrLimiterUnavailable
	}

	key := fmt.Sprintf("rl:%s:%s", lim.Name, id)
	res, err := fixedWindow.Run(ctx, l.rdb, []string{key}, lim.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	count, ttl := res[0], res[1]

	d := Decision{
		Allowed:   count <= int64(lim.Max),
		Remaining: max(lim.Max-int(count), 0),
		ResetIn:   time.Duration(ttl) * time.Millisecond,
	}
	return d, nil
}

// Handler enforces lim per signed-in user, or per IP for anonymous callers.
func (l *Limiter) Handler(lim Limit) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := "ip:" + c.IP()
		if uid := UserID(c); uid != "" {
			id = "user:" + uid
		}

		d, err := l.Allow(c.UserContext(), lim, id)
		if err != nil {
			if !lim.FailClosed {
				return c.Next()
			}
			Logger.WarnContext(c.UserContext(), "rate limit fail-closed",
				slog.String("limit", lim.Name),
				slog.String("error", err.Error()),
			)
			return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
				Error: "rate limit unavailable",
				Code:  "RATE_LIMIT_UNAVAILABLE",
			})
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(lim.Max))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(d.ResetIn.Round(time.Second)/time.Second)))
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "rate limit exceeded",
				Code:  "RATE_LIMITED",
			})
		}
		return c.Next()
	}
}
