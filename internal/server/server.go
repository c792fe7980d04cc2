// Package server wires the handlers, middleware and storage into one HTTP
// server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tabsync/tabsync/internal/clock"
	"github.com/tabsync/tabsync/internal/server/handlers"
	"github.com/tabsync/tabsync/internal/server/middleware"
	"github.com/tabsync/tabsync/internal/server/storage"
)

// Config holds the server settings.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
	// Password is the shared secret clients must present as a Bearer token.
	// Empty disables authentication (open server).
	Password string
}

// Storage is the full storage surface the server needs.
type Storage interface {
	storage.SyncStorage
	storage.ReadStorage
	storage.NotificationStorage
}

// Server is the sync server.
type Server struct {
	logger     *slog.Logger
	httpServer *http.Server
}

// New assembles the routes and middleware chain.
func New(logger *slog.Logger, store Storage, clk clock.Clock, cfg Config) *Server {
	syncHandler := handlers.NewSyncHandler(logger, store)
	listsHandler := handlers.NewListsHandler(logger, store)
	healthHandler := handlers.NewHealthHandler(logger, clk)
	notificationsHandler := handlers.NewNotificationsHandler(logger, store)
	wsHandler := handlers.NewWSHandler(logger, store, cfg.Password)

	requireAuth := middleware.AuthMiddleware(logger, cfg.Password)

	mux := http.NewServeMux()

	// Health stays unauthenticated: clients probe connectivity before
	// validating the password.
	mux.HandleFunc("GET /health", healthHandler.Health)

	mux.Handle("POST /api/sync", requireAuth(http.HandlerFunc(syncHandler.HandleSync)))
	mux.Handle("GET /api/lists", requireAuth(http.HandlerFunc(listsHandler.GetLists)))
	mux.Handle("GET /api/lists/{id}", requireAuth(http.HandlerFunc(listsHandler.GetList)))
	mux.Handle("GET /api/lists/{id}/fields", requireAuth(http.HandlerFunc(listsHandler.GetListFields)))
	mux.Handle("GET /api/lists/{id}/items", requireAuth(http.HandlerFunc(listsHandler.GetListItems)))
	mux.Handle("GET /api/items/{id}/values", requireAuth(http.HandlerFunc(listsHandler.GetItemValues)))
	mux.Handle("GET /api/notifications/poll", requireAuth(http.HandlerFunc(notificationsHandler.Poll)))

	// The websocket endpoint authenticates inside the handler so a wrong
	// password surfaces as close code 1008 instead of an HTTP status.
	mux.HandleFunc("GET /ws", wsHandler.HandleWS)

	var handler http.Handler = mux
	handler = middleware.LoggingWithSkip(logger, []string{"/health", "/api/notifications/poll"})(handler)
	handler = middleware.RecoveryMiddleware(logger)(handler)

	return &Server{
		logger: logger,
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  2 * time.Minute,
		},
	}
}

// Handler exposes the assembled handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("Server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("Shutting down server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
