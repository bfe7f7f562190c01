// Package server wires handlers, middleware, and routes, and owns the
// HTTP server lifecycle.
//
// This is the composition root: every dependency — database, object
// store, OAuth provider, realtime hub, services, handlers — is assembled
// in New, so the rest of the codebase stays free of construction logic.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/runclub/internal/auth"
	"github.com/sakif/runclub/internal/config"
	"github.com/sakif/runclub/internal/handler"
	"github.com/sakif/runclub/internal/metrics"
	"github.com/sakif/runclub/internal/middleware"
	"github.com/sakif/runclub/internal/realtime"
	sqliteRepo "github.com/sakif/runclub/internal/repository/sqlite"
	"github.com/sakif/runclub/internal/service"
	"github.com/sakif/runclub/internal/sheets"
	"github.com/sakif/runclub/internal/storage"
)

// Server owns the router and the resources that must be released on
// shutdown: the database connection and the presence sweeper.
type Server struct {
	router   *chi.Mux
	config   config.Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	presence *service.PresenceService
}

// New assembles the full dependency chain.
//
// Layering: sqlite.DB implements every repository interface; services
// receive the interfaces plus the realtime hub as their event publisher;
// handlers receive services. Handlers never touch the database, services
// never touch HTTP.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := db.SeedAdmins(context.Background(), cfg.AdminUIDs); err != nil {
		db.Close()
		return nil, fmt.Errorf("seeding admins: %w", err)
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(metrics.Middleware())

	// Auth plumbing.
	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	facebook := auth.NewFacebookProvider(
		s.config.FacebookClientID,
		s.config.FacebookClientSecret,
		s.config.FacebookCallbackURL,
	)
	gate, err := auth.NewSecretGate(s.config.AdminSecret)
	if err != nil {
		return fmt.Errorf("creating secret gate: %w", err)
	}

	// Uploaded photos live on disk and are served back under /media/.
	store, err := storage.NewDiskStore(s.config.MediaDir)
	if err != nil {
		return fmt.Errorf("creating media store: %w", err)
	}

	// The realtime hub doubles as the services' event publisher.
	hub := realtime.NewHub(s.logger)

	// The race calendar works without credentials; its endpoints then
	// serve whatever is cached and report the feature as unconfigured.
	var fetcher sheets.RowFetcher
	if s.config.RaceCalendarEnabled() {
		client, err := sheets.New(context.Background(), s.config.GoogleAPIKey, s.config.SpreadsheetID)
		if err != nil {
			return fmt.Errorf("creating sheets client: %w", err)
		}
		fetcher = client
	} else {
		s.logger.Warn("race calendar disabled: GOOGLE_API_KEY or RACE_SPREADSHEET_ID not set")
	}

	authSvc := service.NewAuthService(s.db, s.db, s.logger)
	orderSvc := service.NewOrderService(s.db, gate, hub, s.logger)
	photoSvc := service.NewPhotoService(s.db, store, hub, s.logger)
	stageSvc := service.NewStageService(s.db, s.db, hub, s.logger)
	todoSvc := service.NewTodoService(s.db, s.db, hub, s.logger)
	raceSvc := service.NewRaceService(s.db, fetcher, hub, s.logger)
	feedbackSvc := service.NewFeedbackService(s.db, s.db, s.logger)

	s.presence = service.NewPresenceService(s.db, hub, s.logger)
	// Closing the tab clears the member from "currently viewing"
	// immediately; the TTL sweeper is only the fallback.
	hub.OnDisconnect(s.presence.Disconnect)

	authHandler := handler.NewAuthHandler(facebook, tokens, authSvc, s.logger)
	orderHandler := handler.NewOrderHandler(orderSvc, authSvc, s.logger)
	presenceHandler := handler.NewPresenceHandler(s.presence, authSvc, s.logger)
	photoHandler := handler.NewPhotoHandler(photoSvc, authSvc, s.logger)
	stageHandler := handler.NewStageHandler(stageSvc, authSvc, s.logger)
	todoHandler := handler.NewTodoHandler(todoSvc, authSvc, s.logger)
	raceHandler := handler.NewRaceHandler(raceSvc, authSvc, s.logger)
	feedbackHandler := handler.NewFeedbackHandler(feedbackSvc, authSvc, s.logger)

	// OAuth flow — must stay outside the auth middleware.
	s.router.Get("/auth/facebook/login", authHandler.HandleLogin)
	s.router.Get("/auth/facebook/callback", authHandler.HandleCallback)
	s.router.Post("/auth/logout", authHandler.HandleLogout)

	// Uploaded photos.
	fileServer := http.FileServer(http.Dir(store.Dir()))
	s.router.Handle("/media/*", http.StripPrefix("/media/", fileServer))

	s.router.Handle("/metrics", metrics.Handler())

	// One socket per client; OptionalAuth so anonymous viewers can still
	// watch public topics while members get their disconnect hooks.
	s.router.With(auth.OptionalAuth(tokens)).Get("/ws", hub.ServeHTTP)

	s.router.Route("/api", func(r chi.Router) {
		// Public reads: the photo feed and race calendar render for
		// visitors who haven't signed in. Feedback is public too; a
		// signed-out visitor submits under the name they type in.
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(tokens))
			r.Get("/photos", photoHandler.HandleFeed)
			r.Get("/races", raceHandler.HandleList)
			r.Get("/orders/menu", orderHandler.HandleMenu)
			r.Post("/feedback", feedbackHandler.HandleSubmit)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/me", authHandler.HandleMe)

			r.Get("/orders", orderHandler.HandleList)
			r.Post("/orders", orderHandler.HandleSubmit)
			r.Delete("/orders/{id}", orderHandler.HandleRemove)
			r.Post("/orders/clear", orderHandler.HandleClearAll)
			r.Get("/orders/export", orderHandler.HandleExport)

			r.Get("/presence", presenceHandler.HandleList)
			r.Post("/presence/heartbeat", presenceHandler.HandleHeartbeat)

			r.Post("/photos", photoHandler.HandleUpload)
			r.Post("/photos/{id}/like", photoHandler.HandleToggleLike)
			r.Post("/photos/{id}/comments", photoHandler.HandleComment)
			r.Delete("/photos/{id}", photoHandler.HandleDelete)

			r.Get("/stages", stageHandler.HandleList)
			r.Get("/stages/assignees", stageHandler.HandleAssignees)
			r.Post("/stages/{number}/signups", stageHandler.HandleSignUp)
			r.Post("/stages/{number}/guests", stageHandler.HandleGuestSignUp)
			r.Delete("/stages/{number}/signups/{id}", stageHandler.HandleRemoveSignup)
			r.Post("/stages/{number}/signups/{id}/verify", stageHandler.HandleVerifyGuest)
			r.Post("/stages/{number}/signups/{id}/lock", stageHandler.HandleLockIn)
			r.Post("/stages/{number}/unlock", stageHandler.HandleUnlock)
			r.Post("/stages/{number}/payment", stageHandler.HandleTogglePayment)

			r.Get("/todos", todoHandler.HandleList)
			r.Post("/todos", todoHandler.HandleAdd)
			r.Post("/todos/{id}/toggle", todoHandler.HandleToggleComplete)
			r.Put("/todos/{id}/assignee", todoHandler.HandleAssign)
			r.Delete("/todos/{id}", todoHandler.HandleDelete)

			r.Post("/races/{index}/excited", raceHandler.HandleToggleExcited)
			r.Post("/races/{index}/comments", raceHandler.HandleComment)

			r.Get("/feedback", feedbackHandler.HandleList)
		})
	})

	return nil
}

// Start runs the server until SIGINT/SIGTERM, then shuts down gracefully:
// stop accepting connections, drain in-flight requests, stop the presence
// sweeper, close the database.
func (s *Server) Start() error {
	defer s.db.Close()

	s.presence.Start()
	defer s.presence.Stop()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", s.config.PublicBaseURL),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
