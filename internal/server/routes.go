package server

import (
	"strings"
	"time"

	"breaksphere/internal/middleware"
	"breaksphere/internal/models"
	"breaksphere/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

const defaultOrigins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"

// Per-route budgets on top of the global per-IP limiter.
var (
	createPostLimit   = middleware.Limit{Name: "create_post", Max: 10, Window: time.Minute}
	toggleLikeLimit   = middleware.Limit{Name: "toggle_like", Max: 60, Window: time.Minute}
	toggleFollowLimit = middleware.Limit{Name: "toggle_follow", Max: 60, Window: time.Minute}
	avatarUploadLimit = middleware.Limit{Name: "avatar_upload", Max: 5, Window: time.Minute, FailClosed: true}
)

// SetupMiddleware installs the global chain. Order matters: ids first so
// every later layer can log them, and CORS before the limiter so 429s still
// carry CORS headers.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(
		recover.New(),
		requestid.New(),
		middleware.TracingMiddleware(),
		middleware.ContextMiddleware(),
	)
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Avatars are embedded by other origins.
	app.Use(helmet.New(helmet.Config{CrossOriginResourcePolicy: "cross-origin"}))
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = defaultOrigins
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		ExposeHeaders:    "X-Trace-ID, X-RateLimit-Limit, X-RateLimit-Remaining, Retry-After",
		MaxAge:           int((24 * time.Hour).Seconds()),
	}))

	perMinute := s.config.GlobalRateLimit
	if perMinute <= 0 {
		perMinute = 100
	}
	app.Use(limiter.New(limiter.Config{
		Max:          perMinute,
		Expiration:   time.Minute,
		Next:         func(c *fiber.Ctx) bool { return c.Method() == fiber.MethodOptions },
		KeyGenerator: func(c *fiber.Ctx) string { return c.IP() },
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
				Code:  "RATE_LIMITED",
			})
		},
	}))
}

// SetupRoutes registers probes, metrics, avatar files and the /api surface.
// Every /api route sees the caller's identity when a valid token is sent;
// mutations additionally require one.
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	app.Static(strings.TrimSuffix(service.AvatarURLPrefix, "/"), avatarDir(s.config), fiber.Static{
		MaxAge: 86400,
	})

	api := app.Group("/api", s.auth.Optional())
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{Title: "BreakSphere API Metrics"}))
	signedIn := s.auth.Required()

	api.Get("/feed", s.GetFeed)

	posts := api.Group("/posts")
	posts.Post("/", signedIn, s.limiter.Handler(createPostLimit), s.CreatePost)
	posts.Get("/:id", s.GetPost)
	posts.Delete("/:id", signedIn, s.DeletePost)
	posts.Post("/:id/like/toggle", signedIn, s.limiter.Handler(toggleLikeLimit), s.ToggleLike)

	// /me first so "me" is never taken as an id; /:id/posts before /:id/:kind.
	users := api.Group("/users")
	users.Put("/me", signedIn, s.UpdateMyProfile)
	users.Post("/me/avatar", signedIn, s.limiter.Handler(avatarUploadLimit), s.UploadAvatar)
	users.Post("/:id/follow/toggle", signedIn, s.limiter.Handler(toggleFollowLimit), s.ToggleFollow)
	users.Get("/:id/posts", s.GetUserPosts)
	users.Get("/:id/:kind", s.GetFollowList)
	users.Get("/:id", s.GetUserProfile)

	// Anonymous readers may listen too.
	api.Get("/ws", s.hintsEnabled, s.upgradeOnly, s.HintsWebsocketHandler())
}
