// internal/hub/server.go
package hub

import (
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Server admits websocket connections into the hub, capping concurrency
// with a weighted semaphore.
type Server struct {
	hub      *Hub
	upgrader websocket.Upgrader
	sem      *semaphore.Weighted
}

// NewServer builds the HTTP-facing side of the hub.
func NewServer(h *Hub) *Server {
	maxConns := h.cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = 64
	}
	return &Server{
		hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(h.cfg.AllowedOrigins),
		},
		sem: semaphore.NewWeighted(maxConns),
	}
}

// ServeWS upgrades the request and runs the connection until it drops.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	if !s.sem.TryAcquire(1) {
		http.Error(w, "server full", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.sem.Release(1)
		s.hub.log.Warn().Err(err).Msg("upgrade failed")
		return
	}

	id := uuid.New().String()
	hz := s.hub.cfg.UpdateRateHz
	if hz <= 0 {
		hz = 30
	}
	client := &Client{
		id:      id,
		hub:     s.hub,
		conn:    conn,
		send:    make(chan []byte, sendChSize),
		limiter: rate.NewLimiter(rate.Limit(hz), hz),
		log:     s.hub.log.With().Str("player", id).Logger(),
	}

	s.hub.cfg.Registry.Add(id)
	s.hub.register <- client

	go client.writePump()
	go func() {
		client.readPump()
		s.sem.Release(1)
	}()
}

// originChecker allows the configured origins, with "*" admitting any.
// Requests without an Origin header (non-browser clients) are allowed.
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		for _, a := range allowed {
			if a == "*" || a == origin || a == u.Host {
				return true
			}
		}
		return false
	}
}
