// Package server exposes the feed API over fiber and the invalidation hint socket.
package server

import (
	"context"

	"breaksphere/internal/bootstrap"
	"breaksphere/internal/config"
	"breaksphere/internal/featureflags"
	"breaksphere/internal/middleware"
	"breaksphere/internal/models"
	"breaksphere/internal/notifications"
	"breaksphere/internal/repository"
	"breaksphere/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server owns the runtime dependencies behind every handler.
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	auth           *middleware.Authenticator
	limiter        *middleware.Limiter
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	hints          *notifications.HintPublisher
	featureFlags   *featureflags.Manager
	feedService    *service.FeedService
	postService    *service.PostService
	edgeService    *service.EdgeService
	profileService *service.ProfileService
	avatarService  *service.AvatarService
}

// NewServer connects the database and Redis and builds a Server on them.
func NewServer(cfg *config.Config) (*Server, error) {
	db, rdb, err := bootstrap.InitRuntime(cfg, bootstrap.Options{})
	if err != nil {
		return nil, err
	}

	return NewServerWithDeps(cfg, db, rdb)
}

// NewServerWithDeps builds a Server on an open database. redisClient may be
// nil; caching, token revocation and cross-instance hints are then skipped.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	edgeRepo := repository.NewEdgeRepository(db)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics(bootstrap.ServiceName),
		auth:           middleware.NewAuthenticator(cfg.JWTSecret, redisClient),
		limiter:        middleware.NewLimiter(redisClient, cfg.Env),
		notifier:       notifications.NewNotifier(redisClient),
		hub:            notifications.NewHub(),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}
	if len(server.featureFlags.Invalid) > 0 {
		middleware.Logger.Warn("ignoring malformed FEATURE_FLAGS entries", "entries", server.featureFlags.Invalid)
	}
	server.hints = notifications.NewHintPublisher(server.notifier, server.hub)

	server.feedService = service.NewFeedService(postRepo, cfg)
	server.postService = service.NewPostService(postRepo, userRepo, server.hints)
	server.edgeService = service.NewEdgeService(edgeRepo, postRepo, userRepo, server.hints)
	server.profileService = service.NewProfileService(userRepo, server.featureFlags, cfg, server.hints)
	server.avatarService = service.NewAvatarService(userRepo,
		service.NewDiskStore(avatarDir(cfg)), cfg, server.hints)

	return server, nil
}

func avatarDir(cfg *config.Config) string {
	if cfg.AvatarUploadDir != "" {
		return cfg.AvatarUploadDir
	}
	return service.DefaultAvatarUploadDir
}

// App builds the fiber application with middleware and routes. The first call
// also starts hint wiring so handlers and hubs share the server's lifetime.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := fiber.New(fiber.Config{
		AppName:      "BreakSphere API",
		BodyLimit:    (s.avatarLimitMB() + 1) * 1024 * 1024,
		ErrorHandler: s.errorHandler,
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	// Hints from other instances arrive through Redis pub/sub.
	if s.redis != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				middleware.Logger.Error("failed to start hint wiring", "hub", s.hub.Name(), "error", err)
			}
		}()
	}
	return app
}

func (s *Server) avatarLimitMB() int {
	if s.config.AvatarMaxUploadSizeMB > 0 {
		return s.config.AvatarMaxUploadSizeMB
	}
	return service.DefaultAvatarMaxUploadSizeMB
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	if fe, ok := err.(*fiber.Error); ok {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled request error", "error", err)
	return models.RespondWithError(c, fiber.StatusInternalServerError,
		models.NewInternalError(err))
}

// Start serves on the configured port until Shutdown.
func (s *Server) Start() error {
	app := s.App()
	middleware.Logger.Info("server starting", "port", s.config.Port, "env", s.config.Env)
	return app.Listen(":" + s.config.Port)
}

// Shutdown stops accepting requests, drops hint sockets, then closes the stores.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", "error", err)
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down hub", "hub", s.hub.Name(), "error", err)
	}

	// In-flight hint fan-outs must finish before the notifier closes.
	s.hints.Wait()

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", "error", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", "error", rerr)
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
