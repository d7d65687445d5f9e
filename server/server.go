// Package server accepts WebSocket clients and serves the operational
// endpoints next to them.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/LocoMH/wwtbam-server/domain"
	"github.com/LocoMH/wwtbam-server/hub"
	"github.com/LocoMH/wwtbam-server/metrics"
	ws "github.com/LocoMH/wwtbam-server/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Config struct {
	Addr            string
	Path            string
	ShutdownTimeout time.Duration
	Conn            ws.Options
}

type Server struct {
	cfg     Config
	hub     *hub.Hub
	handler domain.MessageHandler
	metrics *metrics.Relay
	http    *http.Server

	// sessions holds every upgraded connection until its read pump exits,
	// authenticated or not. The registry only knows Active sessions.
	mu       sync.Mutex
	sessions map[*ws.Conn]struct{}
	closing  bool
}

// New wires the relay endpoint at cfg.Path plus /health, /stats and, when reg
// is non-nil, /metrics.
func New(cfg Config, h *hub.Hub, handler domain.MessageHandler, m *metrics.Relay, reg *prometheus.Registry) *Server {
	s := &Server{
		cfg:      cfg,
		hub:      h,
		handler:  handler,
		metrics:  m,
		sessions: make(map[*ws.Conn]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/stats", s.statsHandler)
	if reg != nil {
		mux.Handle("/metrics", metrics.Handler(reg))
	}
	mux.HandleFunc(cfg.Path, s.wsHandler)

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server starting", "addr", ln.Addr().String(), "path", s.cfg.Path)
		if err := s.http.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("server shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return s.closeSessions(shutdownCtx)
	})

	return g.Wait()
}

func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("upgrade error", "error", err)
		return
	}

	wsConn := ws.NewConn(uuid.New().String(), conn, s.hub, s.handler, s.cfg.Conn, s.metrics)
	wsConn.Start()
	s.track(wsConn)
}

func (s *Server) track(c *ws.Conn) {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		c.Close()
		return
	}
	s.sessions[c] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-c.Disconnected()
		s.mu.Lock()
		delete(s.sessions, c)
		s.mu.Unlock()
	}()
}

// closeSessions closes every live connection and waits for each read pump to
// exit, so no socket outlives Serve.
func (s *Server) closeSessions(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	sessions := make([]*ws.Conn, 0, len(s.sessions))
	for c := range s.sessions {
		sessions = append(sessions, c)
	}
	s.mu.Unlock()

	slog.Info("closing sessions", "count", len(sessions))
	for _, c := range sessions {
		c.Close()
	}
	for _, c := range sessions {
		select {
		case <-c.Disconnected():
		case <-ctx.Done():
			return fmt.Errorf("close sessions: %w", ctx.Err())
		}
	}
	return nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	stats := s.hub.Stats()
	body := make(map[string]int, len(stats)+1)
	total := 0
	for role, n := range stats {
		body[string(role)] = n
		total += n
	}
	body["clients"] = total

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}
