// Package feed serves the record store to remote presenters: a JSON snapshot
// over HTTP and a live change stream over websocket.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/sadopc/netwatch/internal/record"
	"github.com/sadopc/netwatch/internal/store"
)

// Event is one message on the feed. The first message on every connection
// is a snapshot carrying all records; later messages mirror store changes.
type Event struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Record  *record.Record  `json:"record,omitempty"`
	Records []record.Record `json:"records,omitempty"`
}

// EventSnapshot is the type of the first event on a connection.
const EventSnapshot = "snapshot"

// Server exposes a store at /records and /feed.
type Server struct {
	store        *store.Store
	log          *zap.Logger
	buffer       int
	writeTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithBuffer sets the per-connection change buffer.
func WithBuffer(n int) Option {
	return func(s *Server) { s.buffer = n }
}

// NewServer creates a feed server for st.
func NewServer(st *store.Store, opts ...Option) *Server {
	s := &Server{store: st, log: zap.NewNop(), buffer: 256, writeTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler serving both endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /records", s.handleRecords)
	mux.HandleFunc("GET /feed", s.handleFeed)
	return mux
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("feed listening", zap.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	records := s.store.List()
	if records == nil {
		records = []record.Record{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(records); err != nil {
		s.log.Warn("writing records", zap.Error(err))
	}
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("feed upgrade failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	// Subscribe before the snapshot so no change falls between them.
	changes, unsubscribe := s.store.Subscribe(s.buffer)
	defer unsubscribe()

	// Clients only listen; CloseRead handles their close frames.
	ctx := conn.CloseRead(r.Context())

	log := s.log.With(zap.String("remote", r.RemoteAddr))
	log.Debug("feed client connected")

	if err := s.write(ctx, conn, Event{Type: EventSnapshot, Records: s.store.List()}); err != nil {
		log.Debug("feed write failed", zap.Error(err))
		return
	}
	for {
		select {
		case <-ctx.Done():
			log.Debug("feed client gone")
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			ev := Event{Type: c.Kind.String(), ID: c.ID}
			if c.Kind != store.ChangeClear {
				rec := c.Record
				ev.Record = &rec
			}
			if err := s.write(ctx, conn, ev); err != nil {
				log.Debug("feed write failed", zap.Error(err))
				return
			}
		}
	}
}

func (s *Server) write(ctx context.Context, conn *websocket.Conn, ev Event) error {
	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}
