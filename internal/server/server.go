// Package server contains the HTTP handlers for the application's API endpoints.
package server

import (
	"context"
	"time"

	"whisperchain/internal/bootstrap"
	"whisperchain/internal/clock"
	"whisperchain/internal/config"
	"whisperchain/internal/crypto"
	"whisperchain/internal/featureflags"
	"whisperchain/internal/middleware"
	"whisperchain/internal/repository"
	"whisperchain/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	promMiddleware *fiberprometheus.FiberPrometheus
	flags          *featureflags.Manager
	userRepo       repository.UserRepository
	tokenService   *service.TokenService
	modService     *service.ModerationService
	msgService     *service.MessageService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, redisClient, err := bootstrap.InitRuntime(cfg)
	if err != nil {
		return nil, err
	}

	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Tests use this with an in-memory store and no Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	middleware.InitMiddleware(cfg)

	rounds := clock.NewRoundClock(clock.System(), time.Duration(cfg.RoundLengthSeconds)*time.Second)
	codec := crypto.NewIDCodec(cfg.TokenEncryptionSecret)
	lifetime := time.Duration(cfg.TokenLifetimeHours) * time.Hour

	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	banRepo := repository.NewBanRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	tokenService := service.NewTokenService(tokenRepo, messageRepo, auditRepo, rounds, codec, lifetime)
	modService := service.NewModerationService(banRepo, tokenRepo, auditRepo, messageRepo, tokenService, rounds)
	msgService := service.NewMessageService(db, userRepo, messageRepo, tokenService, modService)

	return &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("whisperchain-api"),
		flags:          featureflags.NewManager(cfg.FeatureFlags),
		userRepo:       userRepo,
		tokenService:   tokenService,
		modService:     modService,
		msgService:     msgService,
	}, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Distributed tracing
	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS before middlewares that can short-circuit, so browser clients
	// still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "WhisperChain Metrics Dashboard",
	}))

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", middleware.RateLimit(
		s.redis, "register", 3, 10*time.Minute), s.Register)
	auth.Post("/login", middleware.RateLimit(
		s.redis, "login", 10, 5*time.Minute), s.Login)

	// Round info is public; it leaks nothing but the clock.
	api.Get("/rounds/current", s.GetCurrentRound)

	// Protected routes
	protected := api.Group("", middleware.AuthRequired)
	protected.Get("/me", s.GetMyProfile)

	// Sender routes
	protected.Get("/tokens/me", s.GetMyToken)
	protected.Post("/messages", middleware.RateLimit(
		s.redis, "send_message", 10, time.Minute), s.SendMessage)
	protected.Get("/recipients", s.GetRecipients)

	// Receiver routes
	messages := protected.Group("/messages")
	messages.Get("/", s.GetInbox)
	messages.Post("/:id/read", s.MarkMessageRead)
	messages.Post("/:id/flag", s.FlagMessage)
	messages.Post("/:id/decrypt", s.DecryptMessage)

	// Moderator routes
	mod := protected.Group("/moderation", middleware.ModeratorRequired)
	mod.Get("/messages/flagged", s.GetFlaggedMessages)
	mod.Get("/audit-log", s.GetAuditLog)
	mod.Get("/tokens/:hash", s.GetTokenStatus)
	mod.Get("/tokens/:hash/audit-log", s.GetTokenAuditLog)
	mod.Post("/tokens/:hash/freeze", s.FreezeToken)
	mod.Post("/tokens/:hash/unfreeze", s.UnfreezeToken)
	mod.Post("/tokens/:hash/unmask", s.UnmaskToken)
	mod.Post("/bans", s.BanUser)
	mod.Delete("/bans/:userId", s.UnbanUser)
	mod.Get("/bans/:userId/history", s.GetBanHistory)
	mod.Get("/users/pending", s.GetPendingUsers)
	mod.Post("/users/:id/approve", s.ApproveUser)
	mod.Post("/users/:id/reject", s.RejectUser)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status":  overallStatus,
		"version": "1.0.0",
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Shutdown releases server-held resources. The Fiber app itself is shut
// down by the caller before this runs.
func (s *Server) Shutdown(ctx context.Context) error {
	var firstErr error

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			firstErr = err
		}
	}

	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}
