package server

import (
	"context"
	"time"

	"breaksphere/internal/bootstrap"

	"github.com/gofiber/fiber/v2"
)

// Probe states reported per dependency and overall.
const (
	stateHealthy     = "healthy"
	stateUnhealthy   = "unhealthy"
	stateDegraded    = "degraded"
	stateUnavailable = "unavailable"
)

// HealthResponse is the body of both probes.
type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
	Time    time.Time         `json:"time"`
}

// LivenessCheck answers as long as the process serves HTTP.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{Status: "up", Time: time.Now().UTC()})
}

// ReadinessCheck pings the database and Redis. Only a database failure makes
// the instance unready; without Redis the feed still works, so that is
// reported as degraded.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	checks := map[string]string{
		"database": s.pingDatabase(ctx),
		"redis":    s.pingRedis(ctx),
	}

	resp := HealthResponse{Status: stateHealthy, Service: bootstrap.ServiceName, Checks: checks, Time: time.Now().UTC()}
	code := fiber.StatusOK
	switch {
	case checks["database"] != stateHealthy:
		resp.Status, code = stateUnhealthy, fiber.StatusServiceUnavailable
	case checks["redis"] != stateHealthy:
		resp.Status = stateDegraded
	}
	return c.Status(code).JSON(resp)
}

func (s *Server) pingDatabase(ctx context.Context) string {
	sqlDB, err := s.db.DB()
	if err != nil || sqlDB.PingContext(ctx) != nil {
		return stateUnhealthy
	}
	return stateHealthy
}

func (s *Server) pingRedis(ctx context.Context) string {
	if s.redis == nil {
		return stateUnavailable
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return stateUnhealthy
	}
	return stateHealthy
}
