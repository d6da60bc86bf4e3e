// Package demo is a small local HTTP server producing every kind of outcome
// the monitor distinguishes: JSON and text bodies, client and server errors,
// slow responses and dropped connections.
package demo

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Server serves the demo endpoints.
type Server struct {
	latency    time.Duration
	slow       time.Duration
	corsOrigin string
	log        *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLatency delays every response.
func WithLatency(d time.Duration) Option {
	return func(s *Server) { s.latency = d }
}

// WithSlowDelay sets how long /slow waits before answering.
func WithSlowDelay(d time.Duration) Option {
	return func(s *Server) { s.slow = d }
}

// WithCORSOrigin sets the Access-Control-Allow-Origin value. Empty disables
// CORS headers.
func WithCORSOrigin(origin string) Option {
	return func(s *Server) { s.corsOrigin = origin }
}

// WithLogger sets the server logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.log = l }
}

// New creates a demo server.
func New(opts ...Option) *Server {
	s := &Server{slow: 2 * time.Second, corsOrigin: "*", log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Paths lists the endpoints served, for building targets.
var Paths = []string{"/json", "/text", "/missing", "/error", "/slow", "/drop"}

// Handler returns the demo handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/json", s.handleJSON)
	mux.HandleFunc("/text", s.handleText)
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
	mux.HandleFunc("/error", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	})
	mux.HandleFunc("/slow", s.handleSlow)
	mux.HandleFunc("/drop", s.handleDrop)
	return s.middleware(mux)
}

func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.corsOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "*")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if s.latency > 0 {
			select {
			case <-time.After(s.latency):
			case <-r.Context().Done():
				return
			}
		}
		s.log.Debug("demo request", zap.String("method", r.Method), zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"id":        uuid.NewString(),
		"method":    r.Method,
		"timestamp": time.Now().Unix(),
		"users": []map[string]any{
			{"id": 1, "name": "Alice"},
			{"id": 2, "name": "Bob"},
		},
	})
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(strings.Repeat("netwatch demo line\n", 8)))
}

func (s *Server) handleSlow(w http.ResponseWriter, r *http.Request) {
	select {
	case <-time.After(s.slow):
	case <-r.Context().Done():
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "eventually"})
}

// handleDrop closes the connection without answering, which clients see as
// a network error.
func (s *Server) handleDrop(w http.ResponseWriter, r *http.Request) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "hijacking not supported", http.StatusInternalServerError)
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		s.log.Warn("hijack failed", zap.Error(err))
		return
	}
	conn.Close()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Start listens on addr and serves in the background. It returns the base
// URL; the server stops when ctx is done.
func (s *Server) Start(ctx context.Context, addr string) (string, error) {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("demo server stopped", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	base := "http://" + ln.Addr().String()
	s.log.Info("demo server listening", zap.String("url", base))
	return base, nil
}
