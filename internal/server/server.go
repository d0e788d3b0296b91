// Package server provides the HTTP REST API for the deliverable pipeline.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonathan/deliverable-builder/internal/config"
	"github.com/jonathan/deliverable-builder/internal/observability"
	"github.com/jonathan/deliverable-builder/internal/pipeline"
	"github.com/jonathan/deliverable-builder/internal/server/middleware"
	"github.com/jonathan/deliverable-builder/internal/server/ratelimit"
	"github.com/jonathan/deliverable-builder/internal/types"
)

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	pipeline    *pipeline.Pipeline
	app         *config.Config
	rateLimiter *ratelimit.Limiter
	jwtService  *JWTService
	authHandler *AuthHandler
	logger      *observability.Logger
	now         func() time.Time
}

// Config holds server configuration
type Config struct {
	Port     int
	Pipeline *pipeline.Pipeline
	// App supplies API clients, the JWT secret and the signed URL TTL
	App *config.Config
	// RateLimit defaults to ratelimit.DefaultConfig
	RateLimit *ratelimit.Config
	// Secrets defaults to bcrypt at config.DefaultBcryptCost without a pepper
	Secrets *config.SecretConfig
	Logger  *observability.Logger
}

// New creates a new server instance
func New(cfg Config) (*Server, error) {
	if cfg.Pipeline == nil || cfg.Pipeline.Store == nil || cfg.Pipeline.Objects == nil {
		return nil, fmt.Errorf("server requires a pipeline with a record store and object store")
	}
	app := cfg.App
	if app == nil {
		defaults := config.Defaults()
		app = &defaults
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	s := &Server{
		pipeline:    cfg.Pipeline,
		app:         app,
		rateLimiter: ratelimit.NewLimiter(cfg.RateLimit),
		logger:      logger,
		now:         time.Now,
	}

	jwtConfig, err := app.JWT()
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT config: %w", err)
	}
	if jwtConfig != nil {
		secrets := cfg.Secrets
		if secrets == nil {
			if secrets, err = config.NewSecretConfig(0, ""); err != nil {
				return nil, fmt.Errorf("failed to create secret config: %w", err)
			}
		}
		s.jwtService = NewJWTService(jwtConfig)
		s.authHandler = NewAuthHandler(app, secrets, s.jwtService)
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // Long timeout for pipeline runs
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the routed handler with CORS, logging and rate limiting applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /download/{token}", s.handleDownload)
	if s.authHandler != nil {
		mux.HandleFunc("POST /auth/token", s.authHandler.IssueToken)
	}

	// Pipeline endpoints
	mux.Handle("POST /runs", s.protect(s.handleRun))
	mux.Handle("POST /runs/stream", s.protect(s.handleRunStream))
	mux.Handle("GET /jobs/{id}/logs", s.protect(s.handleJobLogs))

	// Artifact endpoints
	mux.Handle("GET /artifacts/{id}", s.protect(s.handleGetArtifact))
	mux.Handle("POST /artifacts/{id}/signed-url", s.protect(s.handleSignedURL))
	mux.Handle("POST /artifacts/{id}/revalidate", s.protect(s.handleRevalidate))
	mux.Handle("GET /assignments/{id}/artifacts", s.protect(s.handleAssignmentArtifacts))

	return s.withRateLimit(s.withLogging(s.withCORS(mux)))
}

// protect requires a bearer token when authentication is configured.
func (s *Server) protect(h http.HandlerFunc) http.Handler {
	if s.jwtService == nil {
		return h
	}
	return middleware.AuthMiddleware(s.jwtService.AsTokenValidator())(h)
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", s.httpServer.Addr, "auth", s.jwtService != nil)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.rateLimiter.Stop()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.rateLimiter.Stop()
	s.logger.Info("server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)
		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)

		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, r, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status while keeping streaming support.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// withLogging adds request logging. The route pattern is logged instead of the
// raw path so download tokens never reach the log.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = r.Method + " (unmatched)"
		}
		s.logger.Info("request completed",
			"route", route,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote", s.extractClientID(r),
		)
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func errorBody(message, code string) types.ErrorResponse {
	return types.ErrorResponse{Error: message, Code: code}
}

// writeError writes an error JSON response
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, errorBody(message, code))
}

// failure maps err to a status and writes it with the pipeline code, if any.
func (s *Server) failure(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "route", r.Pattern, "status", status, "error", err)
	}
	writeError(w, status, err.Error(), string(types.CodeOf(err)))
}

// extractClientID extracts the client identifier from the request.
// This uses the IP address from RemoteAddr; forwarded headers are not trusted.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, info ratelimit.Info) {
	response := map[string]interface{}{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.Format(time.RFC3339)
	}

	if info.RetryAfter > 0 {
		seconds := max(1, int(info.RetryAfter.Seconds()))
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
	}

	s.logger.Warn("rate limit exceeded",
		"method", r.Method,
		"remote", s.extractClientID(r),
		"limit", info.Limit,
	)

	writeJSON(w, http.StatusTooManyRequests, response)
}
