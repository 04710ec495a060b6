package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/jameshartig/autopreset/pkg/log"
	"github.com/jameshartig/autopreset/pkg/preset"
	"github.com/jameshartig/autopreset/pkg/types"
	"github.com/levenlabs/go-lflag"
	"google.golang.org/api/idtoken"
)

// PresetHandler applies a single preset per invocation.
type PresetHandler interface {
	Handle(ctx context.Context) preset.Response
	Preset() types.Preset
}

// Server exposes the preset handlers over HTTP so an external scheduler (like
// Cloud Scheduler) can trigger them.
type Server struct {
	handlers map[string]PresetHandler

	listenAddr string
	httpServer *http.Server

	schedulerAudience string
	schedulerEmail    string
	adminEmails       []string
	tokenValidator    TokenValidator
	bypassAuth        bool
	serverName        string
}

// Configured initializes the Server with the given handlers.
// It uses lflag to register command-line flags for configuration.
func Configured(handlers ...PresetHandler) *Server {
	srv := New(handlers...)
	srv.tokenValidator = idtoken.Validate

	revision := os.Getenv("K_REVISION")
	if revision != "" {
		srv.serverName = revision
	}

	// get the port from PORT when running in cloud run
	port := os.Getenv("PORT")
	if port == "" {
		// otherwise default to 8080
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	schedulerAudience := lflag.String("scheduler-audience", "", "audience to validate scheduler id tokens against")
	schedulerEmail := lflag.String("scheduler-email", "", "service account email allowed to trigger presets")
	adminEmails := lflag.String("admin-emails", "", "comma-delimited list of email addresses allowed to trigger presets")
	bypassAuth := lflag.Bool("bypass-auth", false, "Allow unauthenticated preset triggers (local development only)")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		srv.schedulerAudience = *schedulerAudience
		srv.schedulerEmail = *schedulerEmail
		if *adminEmails != "" {
			srv.adminEmails = strings.Split(*adminEmails, ",")
			for i, email := range srv.adminEmails {
				srv.adminEmails[i] = strings.TrimSpace(email)
			}
		}
		srv.bypassAuth = *bypassAuth
	})

	return srv
}

// New returns a Server for the given handlers without registering any flags.
func New(handlers ...PresetHandler) *Server {
	srv := &Server{
		handlers:   make(map[string]PresetHandler, len(handlers)),
		listenAddr: ":8080",
		serverName: "autopreset",
	}
	for _, h := range handlers {
		srv.handlers[h.Preset().Name] = h
	}
	return srv
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("POST /api/preset/{name}", s.handlePreset)

	mux := http.NewServeMux()
	mux.Handle("/api/", s.schedulerAuthMiddleware(apiMux))
	mux.HandleFunc("/healthz", s.handleHealthz)
	return s.revisionMiddleware(gziphandler.GzipHandler(s.securityHeadersMiddleware(mux)))
}

// Run starts the HTTP server and blocks until the context is canceled or an error occurs.
// It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	// use a channel to capturing server errors
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// Context canceled, shut down gracefully
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSON(w http.ResponseWriter, v any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, struct {
		Error string `json:"error"`
	}{Error: msg}, code)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) revisionMiddleware(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}
