package eventstream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/vitaliisemenov/cachecore/pkg/cachecore"
)

// StatsSource supplies the admin surface's GET /stats payload.
type StatsSource func() cachecore.Snapshot

// Server is the admin HTTP surface over a cache's Bus: a GET /stats JSON
// endpoint and a GET /events WebSocket stream, rate-limited against
// registration storms the way the teacher guards its own public endpoints.
type Server struct {
	bus     *Bus
	stats   StatsSource
	logger  *slog.Logger
	limiter *rate.Limiter

	router *mux.Router

	mu       sync.Mutex
	upgrader websocket.Upgrader
}

// NewServer wires a gorilla/mux router exposing the cache's event stream
// and statistics snapshot. registrationsPerSecond/burst bound how quickly
// new WebSocket connections may be accepted.
func NewServer(bus *Bus, stats StatsSource, logger *slog.Logger, registrationsPerSecond float64, burst int) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if registrationsPerSecond <= 0 {
		registrationsPerSecond = 10
	}
	if burst <= 0 {
		burst = 20
	}
	s := &Server{
		bus:     bus,
		stats:   stats,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(registrationsPerSecond), burst),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.router = mux.NewRouter()
	s.router.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	s.router.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	return s
}

// Router returns the underlying mux.Router for embedding in a larger
// http.Server.
func (s *Server) Router() *mux.Router { return s.router }

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.stats()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Hits              uint64  `json:"hits"`
		Misses            uint64  `json:"misses"`
		Puts              uint64  `json:"puts"`
		Removals          uint64  `json:"removals"`
		Evictions         uint64  `json:"evictions"`
		Expirations       uint64  `json:"expirations"`
		HitPercentage     float64 `json:"hit_percentage"`
		ActiveSubscribers int     `json:"active_subscribers"`
	}{
		Hits: snap.Hits, Misses: snap.Misses, Puts: snap.Puts,
		Removals: snap.Removals, Evictions: snap.Evictions, Expirations: snap.Expirations,
		HitPercentage:     snap.CacheHitPercentage(),
		ActiveSubscribers: s.bus.ActiveSubscribers(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		http.Error(w, "too many connection attempts, slow down", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("eventstream: websocket upgrade failed", "error", err)
		return
	}

	sub := newWSSubscriber(conn)
	s.bus.Subscribe(sub)
	s.logger.Info("eventstream: subscriber connected", "subscriber_id", sub.ID())
	go sub.watchClientClose()

	<-sub.Context().Done()
	s.bus.Unsubscribe(sub.ID())
	s.logger.Info("eventstream: subscriber disconnected", "subscriber_id", sub.ID())
}

// Serve runs an http.Server bound to addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	httpSrv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	}
}
