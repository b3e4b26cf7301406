// Package server contains the HTTP handlers for the fixmystuff API.
package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	_ "fixmystuff/docs" // swagger docs
	"fixmystuff/internal/auth"
	"fixmystuff/internal/bootstrap"
	"fixmystuff/internal/config"
	"fixmystuff/internal/database"
	"fixmystuff/internal/featureflags"
	"fixmystuff/internal/middleware"
	"fixmystuff/internal/models"
	"fixmystuff/internal/observability"
	"fixmystuff/internal/repository"
	"fixmystuff/internal/service"
	"fixmystuff/internal/solution"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// uploadBodySlackMB leaves room for multipart framing above the image limit.
const uploadBodySlackMB = 2

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	promMiddleware *fiberprometheus.FiberPrometheus

	tokens       *auth.TokenManager
	revoker      *auth.Revoker
	featureFlags *featureflags.Manager
	solutions    *solution.Selector

	userRepo  repository.UserRepository
	fixRepo   repository.FixRequestRepository
	imageRepo repository.ImageRepository

	authService  *service.AuthService
	userService  *service.UserService
	imageService *service.ImageService
	fixService   *service.FixService

	appOnce      sync.Once
	app          *fiber.App
	workerCancel context.CancelFunc
}

// NewServer connects to the database and Redis and builds a Server.
func NewServer(cfg *config.Config) (*Server, error) {
	db, rdb, err := bootstrap.InitRuntime(cfg, bootstrap.Options{})
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, rdb)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; caching, revocation and per-route rate limits are
// then disabled.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	fallback, gemini, err := newGenerators(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	flags := featureflags.NewManager(cfg.FeatureFlags)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics(observability.ServiceName),
		tokens:         auth.NewTokenManager(cfg.JWTSecret),
		revoker:        auth.NewRevoker(redisClient),
		featureFlags:   flags,
		solutions:      solution.NewSelector(fallback, gemini, flags, cfg.SolutionDelay),
		userRepo:       repository.NewUserRepository(db),
		fixRepo:        repository.NewFixRequestRepository(db),
		imageRepo:      repository.NewImageRepository(db),
	}

	s.authService = service.NewAuthService(s.userRepo, s.tokens, s.revoker)
	s.userService = service.NewUserService(s.userRepo, cfg.UsernameChangeCooldown)
	s.imageService = service.NewImageService(s.imageRepo, cfg)
	s.fixService = service.NewFixService(s.fixRepo, s.imageService, s.solutions)

	return s, nil
}

// newGenerators builds the configured provider plus, when an API key is set,
// a Gemini generator for users in the gemini_solutions rollout.
func newGenerators(ctx context.Context, cfg *config.Config) (fallback, gemini solution.Generator, err error) {
	fallback, err = solution.New(ctx, cfg.SolutionProvider, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, nil, fmt.Errorf("solution provider: %w", err)
	}

	switch {
	case fallback.Name() == solution.ProviderGemini:
		gemini = fallback
	case cfg.GeminiAPIKey != "":
		if gemini, err = solution.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel); err != nil {
			return nil, nil, fmt.Errorf("gemini generator: %w", err)
		}
	}
	return fallback, gemini, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	// Propagate request ID and user ID into the request context.
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New(helmet.Config{
		// Media is embedded by the web client from another origin.
		CrossOriginResourcePolicy: "cross-origin",
	}))
	app.Use(middleware.StructuredLogger())

	// CORS must run before the limiter so error responses still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:8080,http://127.0.0.1:5173"
	}
	app.Use(func(c *fiber.Ctx) error {
		if isFunctionPath(c.Path()) {
			setFunctionCORS(c)
		}
		return c.Next()
	})
	app.Use(cors.New(cors.Config{
		Next: func(c *fiber.Ctx) bool {
			// The serverless-style function endpoint sets its own wildcard CORS.
			return isFunctionPath(c.Path())
		},
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

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
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	requireAuth := middleware.AuthRequired(s.tokens, s.revoker)
	optionalAuth := middleware.OptionalAuth(s.tokens, s.revoker)

	fn := app.Group(functionsPrefix)
	fn.Options("/generate-solution", s.GenerateSolutionPreflight)
	fn.Post("/generate-solution", optionalAuth, s.GenerateSolution)

	app.Get("/media/i/:hash/:file", s.ServeMedia)

	api := app.Group("/api")
	api.Get("/", s.ReadinessCheck)
	api.Get("/features", optionalAuth, s.GetFeatureFlags)
	api.Get("/swagger/*", swagger.HandlerDefault)
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "fixmystuff API Metrics",
	}))

	authGroup := api.Group("/auth")
	authGroup.Post("/signup", middleware.RateLimit(s.redis, 5, 10*time.Minute, "signup"), s.Signup)
	authGroup.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	authGroup.Post("/refresh", s.Refresh)
	authGroup.Post("/logout", requireAuth, s.Logout)
	authGroup.Get("/session", requireAuth, s.Session)

	users := api.Group("/users")
	users.Get("/me", requireAuth, s.GetMyProfile)
	users.Put("/me", requireAuth, s.UpdateMyProfile)
	users.Get("/check-username", requireAuth, s.CheckUsername)
	users.Post("/me/avatar", requireAuth, middleware.RateLimit(s.redis, 10, 10*time.Minute, "avatar"), s.UploadAvatar)
	users.Put("/me/preferences", requireAuth, s.UpdatePreferences)
	users.Get("/:id", s.GetUserProfile)

	images := api.Group("/images")
	images.Post("/", requireAuth, middleware.RateLimit(s.redis, 30, 10*time.Minute, "image_upload"), s.UploadImage)
	images.Get("/:hash/status", s.GetImageStatus)

	fixes := api.Group("/fixes")
	// Public feed before the authenticated /:id routes.
	fixes.Get("/recent", s.RecentFixes)
	// Anonymous submissions reach the handler so the UI gets the sign-in prompt.
	fixes.Post("/", optionalAuth, middleware.RateLimit(s.redis, 10, 10*time.Minute, "submit_fix"), s.SubmitFix)
	fixes.Get("/", requireAuth, s.ListFixes)
	fixes.Get("/:id", requireAuth, s.GetFix)
	fixes.Delete("/:id", requireAuth, s.DeleteFix)
}

// App returns the configured Fiber app, building it on first use.
func (s *Server) App() *fiber.App {
	s.appOnce.Do(func() {
		maxMB := s.config.ImageMaxUploadSizeMB
		if maxMB <= 0 {
			maxMB = service.DefaultImageMaxUploadSizeMB
		}
		s.app = fiber.New(fiber.Config{
			AppName:   "fixmystuff API",
			BodyLimit: (maxMB + uploadBodySlackMB) * 1024 * 1024,
			ErrorHandler: func(c *fiber.Ctx, err error) error {
				if fe, ok := err.(*fiber.Error); ok {
					return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
				}
				middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err, "path", c.Path())
				return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
			},
		})
		s.SetupMiddleware(s.app)
		s.SetupRoutes(s.app)
	})
	return s.app
}

// StartWorker runs the image variant worker until Shutdown.
func (s *Server) StartWorker() {
	ctx, cancel := context.WithCancel(context.Background())
	s.workerCancel = cancel
	s.imageService.StartBackgroundWorker(ctx)
}

// Start starts the image worker and listens on the configured port.
func (s *Server) Start() error {
	s.StartWorker()
	middleware.Logger.Info("server starting", "port", s.config.Port, "env", s.config.Env)
	return s.App().Listen(":" + s.config.Port)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports database and Redis health. Redis is optional: a
// server running without it is degraded but ready.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	switch {
	case dbStatus != "healthy":
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	case redisStatus != "healthy":
		overall = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"service": observability.ServiceName,
		"status":  overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Shutdown stops the HTTP server and the image worker, then closes the
// database and Redis.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", "error", err)
		}
	}

	if s.workerCancel != nil {
		s.workerCancel()
		done := make(chan struct{})
		go func() {
			s.imageService.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			middleware.Logger.Warn("image worker did not stop before shutdown deadline")
		}
	}

	if err := database.Close(s.db); err != nil {
		middleware.Logger.Error("error closing database", "error", err)
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			middleware.Logger.Error("error closing redis", "error", err)
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
