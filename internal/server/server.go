// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "campusconnect/docs" // swagger docs
	"campusconnect/internal/auth"
	"campusconnect/internal/cache"
	"campusconnect/internal/config"
	"campusconnect/internal/database"
	"campusconnect/internal/featureflags"
	"campusconnect/internal/middleware"
	"campusconnect/internal/models"
	"campusconnect/internal/notifications"
	"campusconnect/internal/repository"
	"campusconnect/internal/search"
	"campusconnect/internal/service"
	"campusconnect/internal/storage"

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

const wsTicketPrefix = "ws_ticket:"

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	tokens    *auth.TokenIssuer
	refresh   *auth.RefreshStore
	blacklist *auth.Blacklist
	store     storage.Store
	meili     *search.Meili

	profileRepo repository.ProfileRepository
	noticeRepo  repository.NoticeRepository
	eventRepo   repository.EventRepository
	forumRepo   repository.ForumRepository
	messageRepo repository.MessageRepository

	notifier     *notifications.Notifier
	hub          *notifications.Hub
	featureFlags *featureflags.Manager
	search       *search.Service

	sessionService   *service.SessionService
	profileService   *service.ProfileService
	avatarService    *service.AvatarService
	noticeService    *service.NoticeService
	eventService     *service.EventService
	forumService     *service.ForumService
	messageService   *service.MessageService
	dashboardService *service.DashboardService
}

// Option customises optional server dependencies.
type Option func(*Server)

// WithStorage sets the object store used for attachments and avatars.
func WithStorage(store storage.Store) Option {
	return func(s *Server) { s.store = store }
}

// WithMeili enables Meilisearch as the primary search backend.
func WithMeili(m *search.Meili) Option {
	return func(s *Server) { s.meili = m }
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Redis may be nil if unreachable; the API degrades to local-only realtime.
	cache.InitRedis(cfg.RedisURL)

	var opts []Option
	store, err := storage.NewMinio(context.Background(), cfg)
	switch {
	case err == nil:
		opts = append(opts, WithStorage(store))
	case errors.Is(err, storage.ErrNotConfigured):
		middleware.Logger.Warn("object storage not configured, uploads disabled")
	default:
		middleware.Logger.Error("object storage unavailable, uploads disabled", "error", err)
	}
	if cfg.MeiliURL != "" {
		opts = append(opts, WithMeili(search.NewMeili(cfg.MeiliURL, cfg.MeiliAPIKey)))
	}

	return NewServerWithDeps(cfg, db, cache.GetClient(), opts...)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, opts ...Option) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("config and database are required")
	}

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("campus-connect-api"),
		tokens:         auth.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL()),
		refresh:        auth.NewRefreshStore(redisClient, cfg.RefreshTokenTTL()),
		blacklist:      auth.NewBlacklist(redisClient),
		profileRepo:    repository.NewProfileRepository(db),
		noticeRepo:     repository.NewNoticeRepository(db),
		eventRepo:      repository.NewEventRepository(db),
		forumRepo:      repository.NewForumRepository(db),
		messageRepo:    repository.NewMessageRepository(db),
		notifier:       notifications.NewNotifier(redisClient),
		hub:            notifications.NewHub(redisClient),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.search = search.NewService(s.meili, search.NewDatabase(s.noticeRepo, s.eventRepo, s.forumRepo))
	s.sessionService = service.NewSessionService(s.profileRepo, s.tokens, s.refresh, s.blacklist, service.SessionConfig{
		ProfileTimeout:  cfg.ProfileFetchTimeout(),
		RefreshInterval: cfg.SessionRefreshInterval(),
		AdminEmail:      s.bootstrapAdminEmail(),
	})
	s.profileService = service.NewProfileService(s.profileRepo)
	s.avatarService = service.NewAvatarService(s.profileRepo, s.store, cfg.UploadMaxMB)
	s.noticeService = service.NewNoticeService(s.noticeRepo, s.store, cfg.UploadMaxMB)
	s.eventService = service.NewEventService(s.eventRepo)
	s.forumService = service.NewForumService(s.forumRepo)
	s.messageService = service.NewMessageService(s.messageRepo, s.profileRepo)
	s.dashboardService = service.NewDashboardService(s.noticeRepo, s.eventRepo, s.forumRepo, s.profileRepo)

	s.hub.Presence().SetCallbacks(
		func(userID uint) { s.publishPresence(userID, notifications.UserOnline) },
		func(userID uint) { s.publishPresence(userID, notifications.UserOffline) },
	)

	return s, nil
}

// bootstrapAdminEmail is the address that signs up as admin in development.
func (s *Server) bootstrapAdminEmail() string {
	if s.config.IsProduction() || !s.config.DevBootstrapAdmin {
		return ""
	}
	return s.config.DevAdminEmail
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	// Propagates request and user IDs into the logging context.
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit so error responses
	// still carry the headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
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
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
				Code:  "RATE_LIMITED",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)
	api.Get("/", s.HealthCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Campus Connect Metrics",
	}))
	api.Get("/swagger/*", swagger.HandlerDefault)

	authGroup := api.Group("/auth")
	authGroup.Post("/signup", middleware.RateLimit(s.redis, middleware.LimitSignup), s.Signup)
	authGroup.Post("/login", middleware.RateLimit(s.redis, middleware.LimitLogin), s.Login)
	authGroup.Post("/refresh", middleware.RateLimit(s.redis, middleware.LimitRefresh), s.Refresh)
	authGroup.Post("/logout", s.Logout)
	authGroup.Get("/session", s.AuthRequired(), s.GetSession)

	// Avatars are fetched by <img> tags without credentials.
	api.Get("/profiles/:id/avatar", s.GetAvatar)

	protected := api.Group("", s.AuthRequired())
	protected.Post("/ws/ticket", s.IssueWSTicket)

	profiles := protected.Group("/profiles")
	profiles.Get("/me", s.GetMyProfile)
	profiles.Patch("/me", s.UpdateMyProfile)
	profiles.Post("/me/avatar", middleware.RateLimit(s.redis, middleware.LimitAvatar), s.UploadAvatar)
	profiles.Get("/", s.ListProfiles)
	profiles.Patch("/:id/role", s.requirePermission(auth.ActionManageRoles), s.SetProfileRole)
	profiles.Get("/:id", s.GetProfile)

	students := protected.Group("/students", s.requirePermission(auth.ActionViewStudents))
	students.Get("/", s.ListStudents)
	students.Post("/", s.requirePermission(auth.ActionManageStudents), s.CreateStudent)
	students.Get("/:id", s.GetStudent)
	students.Patch("/:id", s.requirePermission(auth.ActionManageStudents), s.UpdateStudent)
	students.Delete("/:id", s.requirePermission(auth.ActionManageStudents), s.DeleteStudent)

	notices := protected.Group("/notices")
	notices.Get("/", s.ListNotices)
	notices.Post("/", s.requirePermission(auth.ActionManageNotices), s.CreateNotice)
	notices.Post("/:id/attachment", s.requirePermission(auth.ActionManageNotices), s.UploadNoticeAttachment)
	notices.Get("/:id", s.GetNotice)
	notices.Patch("/:id", s.UpdateNotice)
	notices.Delete("/:id", s.DeleteNotice)

	events := protected.Group("/events")
	events.Get("/", s.ListEvents)
	events.Post("/", s.requirePermission(auth.ActionManageEvents), s.CreateEvent)
	events.Post("/:id/register", s.RegisterForEvent)
	events.Delete("/:id/register", s.CancelEventRegistration)
	events.Get("/:id/attendees", s.ListEventAttendees)
	events.Post("/:id/attendees/:userId/attendance", s.MarkEventAttendance)
	events.Get("/:id", s.GetEvent)
	events.Patch("/:id", s.UpdateEvent)
	events.Delete("/:id", s.DeleteEvent)

	forum := protected.Group("/forum", s.FeatureRequired(featureflags.Forum))
	forum.Get("/posts", s.ListForumPosts)
	forum.Post("/posts", middleware.RateLimit(s.redis, middleware.LimitForumPost), s.CreateForumPost)
	forum.Post("/posts/:id/upvote", s.ToggleForumUpvote)
	forum.Get("/posts/:id/comments", s.ListForumComments)
	forum.Post("/posts/:id/comments", middleware.RateLimit(s.redis, middleware.LimitForumComment), s.CreateForumComment)
	forum.Delete("/posts/:id/comments/:commentId", s.DeleteForumComment)
	forum.Get("/posts/:id", s.GetForumPost)
	forum.Patch("/posts/:id", s.UpdateForumPost)
	forum.Delete("/posts/:id", s.DeleteForumPost)

	conversations := protected.Group("/conversations", s.FeatureRequired(featureflags.Messaging))
	conversations.Post("/", s.StartConversation)
	conversations.Get("/", s.ListConversations)
	conversations.Get("/:id/messages", s.ListMessages)
	conversations.Post("/:id/messages", middleware.RateLimit(s.redis, middleware.LimitMessage), s.SendMessage)
	conversations.Get("/:id", s.GetConversation)

	protected.Get("/features", s.GetFeatures)
	protected.Get("/dashboard", s.GetDashboard)
	protected.Get("/search", s.FeatureRequired(featureflags.Search),
		middleware.RateLimit(s.redis, middleware.LimitSearch), s.Search)

	ws := api.Group("/ws", s.AuthRequired())
	ws.Get("/", s.WebsocketHandler())

	admin := protected.Group("/admin", s.AdminRequired())
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Post("/search/reindex", s.ReindexSearch)
}

// HealthCheck is a legacy/simple alias for ReadinessCheck
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return s.ReadinessCheck(c)
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
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
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
		// Sessions and realtime fan-out need Redis.
		redisStatus = "unavailable"
	}

	searchStatus := "database"
	if s.meili != nil && s.meili.Healthy() {
		searchStatus = "meilisearch"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"service": "campus-connect",
		"status":  overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
			"search":   searchStatus,
		},
		"time": time.Now(),
	})
}

// AuthRequired returns the authentication middleware. WebSocket routes
// authenticate with a single-use ticket; everything else uses a bearer token.
func (s *Server) AuthRequired() fiber.Handler {
	bearer := middleware.RequireAuth(middleware.AuthOptions{
		Verifier:    s.tokens,
		Revocations: s.blacklist,
	})

	return func(c *fiber.Ctx) error {
		// Nested groups run this more than once; tickets are single-use.
		if userID(c) != 0 {
			return c.Next()
		}
		if strings.TrimSuffix(c.Path(), "/") != "/api/ws" || c.Query("ticket") == "" {
			return bearer(c)
		}

		userID, role, ok := s.consumeWSTicket(c.UserContext(), c.Query("ticket"))
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
		}
		middleware.SetUser(c, userID, nil)
		c.Locals("role", role)
		return c.Next()
	}
}

// ticketValue is stored under a WS ticket: "<user id>:<role>".
func ticketValue(actor service.Actor) string {
	return formatID(actor.ID) + ":" + string(actor.Role)
}

// consumeWSTicket atomically reads and deletes a ticket. A ticket without a
// role connects as a student.
func (s *Server) consumeWSTicket(ctx context.Context, ticket string) (uint, models.Role, bool) {
	if s.redis == nil {
		return 0, "", false
	}
	raw, err := s.redis.GetDel(ctx, wsTicketPrefix+ticket).Result()
	if err != nil {
		return 0, "", false
	}
	rawID, rawRole, _ := strings.Cut(raw, ":")
	id, err := strconv.ParseUint(rawID, 10, 32)
	if err != nil || id == 0 {
		return 0, "", false
	}
	return uint(id), auth.Normalize(rawRole), true
}

// requirePermission rejects callers whose role does not grant action.
// Must be placed after AuthRequired.
func (s *Server) requirePermission(action auth.Action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !actorFrom(c).Can(action) {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("You do not have permission to perform this action"))
		}
		return c.Next()
	}
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that claims are available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if actorFrom(c).Role != models.RoleAdmin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

// FeatureRequired hides a module behind its feature flag. Disabled modules
// answer 404 so clients cannot tell them apart from missing routes.
func (s *Server) FeatureRequired(module string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !s.featureFlags.ModuleEnabled(module, actorFrom(c).ID) {
			return models.RespondWithError(c, fiber.StatusNotFound, &models.AppError{
				Code:    models.CodeFeatureDisabled,
				Message: fmt.Sprintf("The %s module is disabled", module),
			})
		}
		return c.Next()
	}
}

// App builds the Fiber application with middleware and routes.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "Campus Connect API",
		BodyLimit: s.bodyLimit(),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

func (s *Server) bodyLimit() int {
	mb := s.config.UploadMaxMB
	if mb <= 0 {
		mb = 10
	}
	// Multipart framing on top of the largest accepted upload.
	return (mb + 1) * 1024 * 1024
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.App()

	if s.redis != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				middleware.Logger.Error("failed to start hub wiring", "hub", s.hub.Name(), "error", err)
			}
		}()
	}
	if s.meili != nil {
		go func() {
			if err := s.search.ReindexAll(s.shutdownCtx); err != nil {
				middleware.Logger.Warn("initial search reindex failed", "error", err)
			}
		}()
	}

	middleware.Logger.Info("server starting", "port", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
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
	s.hub.Presence().Stop()

	if s.meili != nil {
		s.meili.Close()
	}

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
