// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer: it connects storage, services,
// handlers, middleware and routes. It decides:
//   - Which URL patterns map to which handler functions
//   - Which routes need a logged-in user
//   - Which backends (SQLite or Redis sessions, local or MinIO images) are used
//   - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → New():
//	  sqlite.DB ─┬─ AuthService, AccountService, FeedService, ... → handlers
//	  storage    ┘
//	  SessionStore (sqlite or redis) → SessionManager → LoadSession middleware
//	  realtime.Hub → FeedService (broadcasts) and /ws
//
// This is the "composition root" pattern: every dependency is built in one
// place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/bird-dropper/internal/auth"
	"github.com/sakif/bird-dropper/internal/config"
	"github.com/sakif/bird-dropper/internal/handler"
	"github.com/sakif/bird-dropper/internal/middleware"
	"github.com/sakif/bird-dropper/internal/realtime"
	"github.com/sakif/bird-dropper/internal/repository"
	redisRepo "github.com/sakif/bird-dropper/internal/repository/redis"
	sqliteRepo "github.com/sakif/bird-dropper/internal/repository/sqlite"
	"github.com/sakif/bird-dropper/internal/service"
	"github.com/sakif/bird-dropper/internal/species"
	"github.com/sakif/bird-dropper/internal/storage"
	"github.com/sakif/bird-dropper/web"
)

// sessionPurgeInterval is how often expired SQLite sessions are removed.
// Redis expires its keys by itself.
const sessionPurgeInterval = time.Hour

// newPasswordService builds the bcrypt service. Tests swap in a cheap cost.
var newPasswordService = auth.NewPasswordService

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database, the optional Redis client and the
// background goroutines (websocket hub, session purge). Close releases all
// of them; Start calls it after a graceful shutdown.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger

	db       *sqliteRepo.DB
	redis    *redisRepo.SessionStore // nil unless REDIS_URL is set
	store    storage.Store
	uploads  *storage.Local // nil with the MinIO backend
	sessions *auth.SessionManager
	hub      *realtime.Hub
	github   *auth.GitHubProvider // nil unless GitHub sign-in is configured
	species  handler.SpeciesLookup

	cancel    context.CancelFunc
	bg        sync.WaitGroup
	closeOnce sync.Once
}

// New builds every dependency from cfg and registers the routes.
// The websocket hub and the session purge start running immediately;
// call Close (or Start, which closes on exit) to stop them.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	// === DATABASE ===
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		cancel: cancel,
	}

	if err := s.build(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// build creates everything after the database. On error the caller closes
// whatever was opened.
func (s *Server) build(ctx context.Context) error {
	cfg := s.config

	// === SESSIONS ===
	var sessionStore repository.SessionStore = s.db
	if cfg.RedisURL != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		rs, err := redisRepo.New(pingCtx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		s.redis = rs
		sessionStore = rs
	}

	tokens, err := auth.NewTokenService(cfg.SessionSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	s.sessions = auth.NewSessionManager(sessionStore, tokens, auth.SessionOptions{
		TTL:          cfg.SessionTTL,
		SecureCookie: cfg.CookieSecure,
	}, s.logger)

	// === IMAGE STORAGE ===
	switch cfg.StorageBackend {
	case config.StorageMinIO:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		m, err := storage.NewMinIO(connectCtx, storage.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
			PublicURL: cfg.MinIOPublicURL,
		})
		if err != nil {
			return fmt.Errorf("connecting to minio: %w", err)
		}
		s.store = m
	default:
		local, err := storage.NewLocal(cfg.UploadDir, cfg.UploadBaseURL)
		if err != nil {
			return fmt.Errorf("creating upload directory: %w", err)
		}
		s.store = local
		s.uploads = local
	}

	// === OPTIONAL INTEGRATIONS ===
	if cfg.GitHubEnabled() {
		s.github = auth.NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubCallbackURL)
	}
	s.species = species.NewClient(cfg.WikiBaseURL, s.logger)

	// === BACKGROUND WORK ===
	s.hub = realtime.NewHub(s.logger)
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		s.hub.Run(ctx)
	}()

	if s.redis == nil {
		s.bg.Add(1)
		go func() {
			defer s.bg.Done()
			s.purgeSessions(ctx)
		}()
	}

	if err := s.setupRoutes(ctx); err != nil {
		return fmt.Errorf("setting up routes: %w", err)
	}
	return nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	Public
//	GET        /                        → landing page (or redirect to /profile)
//	GET        /welcome                 → liveness JSON
//	GET|POST   /login, /register        → forms
//	GET|POST   /logout
//	GET        /auth/github/login       → only when GitHub is configured
//	GET        /auth/github/callback
//	GET        /species, /species/search
//	GET        /static/*, /uploads/*
//
//	Pages (anonymous → 303 /login)
//	GET        /profile, /feed, /following, /collections
//
//	AJAX (anonymous → 401 JSON)
//	POST       /profile/bio, /profile/image, /settings/user, /settings/website
//	POST       /posts                   DELETE /posts/{id}
//	POST       /posts/{id}/like         POST   /posts/{id}/comments
//	DELETE     /comments/{id}
//	POST       /follow/{id}             DELETE /follow/{id}
//	POST       /collections             DELETE /collections/{id}
//	PUT        /collections/{id}/description
//	POST       /collections/{id}/like
//	GET        /api/feed, /api/users/search, /api/connections,
//	           /api/collections, /api/notifications
//	GET        /ws                      → websocket upgrade
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns unique ID to each request (for tracing)
// 2. RealIP: extracts real client IP from proxy headers
// 3. Recoverer: catches panics and returns 500 instead of crashing
// 4. Logger: logs each request with timing info and the request ID
// 5. LoadSession: attaches the session (if any) to the context
func (s *Server) setupRoutes(ctx context.Context) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(auth.LoadSession(s.sessions))

	// === Static Files ===
	// Assets are embedded in the binary (see package web).
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(web.Static()))))

	// Locally stored images are served from the upload directory.
	if s.uploads != nil && strings.HasPrefix(s.config.UploadBaseURL, "/") {
		prefix := strings.TrimRight(s.config.UploadBaseURL, "/") + "/"
		s.router.Handle(prefix+"*", http.StripPrefix(prefix, http.FileServer(http.Dir(s.uploads.Root()))))
	}

	// === Services ===
	passwords := newPasswordService()
	authService := service.NewAuthService(s.db, passwords, s.logger)
	accountService := service.NewAccountService(s.db, s.db, s.store, s.logger)
	feedService := service.NewFeedService(s.db, s.store, s.hub, s.logger)
	followService := service.NewFollowService(s.db, s.logger)
	collectionService := service.NewCollectionService(s.db, s.store, s.hub, s.logger)
	notificationService := service.NewNotificationService(s.db, s.logger)

	if s.config.AdminEmail != "" {
		err := authService.EnsureAdmin(ctx, s.config.AdminEmail, s.config.AdminPassword, s.config.AdminUsername)
		if err != nil {
			return fmt.Errorf("creating admin account: %w", err)
		}
	}

	// === Handlers ===
	renderer, err := handler.NewRenderer(web.Templates(), s.db, s.logger)
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}
	authHandler := handler.NewAuthHandler(authService, s.sessions, s.github, renderer, s.logger)
	accountHandler := handler.NewAccountHandler(accountService, authService, feedService, s.sessions, renderer, s.logger)
	feedHandler := handler.NewFeedHandler(feedService, renderer, s.logger)
	followHandler := handler.NewFollowHandler(followService, renderer, s.logger)
	collectionHandler := handler.NewCollectionHandler(collectionService, renderer, s.logger)
	notificationHandler := handler.NewNotificationHandler(notificationService, s.hub, s.logger)
	speciesHandler := handler.NewSpeciesHandler(s.species, renderer, s.logger)

	// === Public Routes ===
	s.router.Get("/", authHandler.HandleHome)
	s.router.Get("/welcome", handler.HandleWelcome)
	s.router.Get("/login", authHandler.HandleLoginPage)
	s.router.Post("/login", authHandler.HandleLogin)
	s.router.Get("/register", authHandler.HandleRegisterPage)
	s.router.Post("/register", authHandler.HandleRegister)
	s.router.Get("/logout", authHandler.HandleLogout)
	s.router.Post("/logout", authHandler.HandleLogout)
	s.router.Get("/species", speciesHandler.HandlePage)
	s.router.Get("/species/search", speciesHandler.HandleSearch)

	// OAuth routes only exist when GitHub is configured.
	if s.github != nil {
		s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
		s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
	}

	// === Pages: login required ===
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)

		r.Get("/profile", accountHandler.HandleProfile)
		r.Get("/feed", feedHandler.HandleFeedPage)
		r.Get("/following", followHandler.HandleFollowingPage)
		r.Get("/collections", collectionHandler.HandlePage)
	})

	// === AJAX: login required ===
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireUserJSON)

		r.Post("/profile/bio", accountHandler.HandleUpdateBio)
		r.Post("/profile/image", accountHandler.HandleUpdateProfileImage)
		r.Post("/settings/user", accountHandler.HandleUpdateUserSettings)
		r.Post("/settings/website", accountHandler.HandleUpdateWebsiteSettings)

		r.Post("/posts", feedHandler.HandleCreatePost)
		r.Delete("/posts/{id}", feedHandler.HandleDeletePost)
		r.Post("/posts/{id}/like", feedHandler.HandleToggleLike)
		r.Post("/posts/{id}/comments", feedHandler.HandleAddComment)
		r.Delete("/comments/{id}", feedHandler.HandleDeleteComment)

		r.Post("/follow/{id}", followHandler.HandleFollow)
		r.Delete("/follow/{id}", followHandler.HandleUnfollow)

		r.Post("/collections", collectionHandler.HandleUpload)
		r.Delete("/collections/{id}", collectionHandler.HandleDelete)
		r.Put("/collections/{id}/description", collectionHandler.HandleUpdateDescription)
		r.Post("/collections/{id}/like", collectionHandler.HandleToggleLike)

		r.Get("/ws", notificationHandler.HandleSocket)

		r.Route("/api", func(r chi.Router) {
			r.Get("/feed", feedHandler.HandleFeed)
			r.Get("/users/search", followHandler.HandleSearch)
			r.Get("/connections", followHandler.HandleConnections)
			r.Get("/collections", collectionHandler.HandleList)
			r.Get("/notifications", notificationHandler.HandleList)
		})
	})

	return nil
}

// purgeSessions deletes expired SQLite sessions until ctx is cancelled.
func (s *Server) purgeSessions(ctx context.Context) {
	ticker := time.NewTicker(sessionPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.db.PurgeExpiredSessions(ctx)
			if err != nil {
				s.logger.Error("purging expired sessions", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				s.logger.Info("purged expired sessions", slog.Int64("count", n))
			}
		}
	}
}

// Handler returns the router, for tests and for embedding in another server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close stops the background goroutines and releases the database and the
// Redis client. It is safe to call more than once.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		s.bg.Wait()

		if s.redis != nil {
			err = errors.Join(err, s.redis.Close())
		}
		err = errors.Join(err, s.db.Close())
	})
	return err
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close: stop the hub (disconnecting websockets) and the purge loop,
//    then close Redis and the database (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer func() {
		if err := s.Close(); err != nil {
			s.logger.Error("closing resources", slog.String("error", err.Error()))
		}
	}()

	// Create the HTTP server with sensible timeouts.
	// The write timeout leaves room for a full batch of image uploads.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Channel to receive OS signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.String("storage", s.config.StorageBackend),
			slog.Bool("redis_sessions", s.redis != nil),
			slog.Bool("github_login", s.github != nil),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	// Block until we receive a signal or server error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give in-flight requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
