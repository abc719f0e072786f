package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jpalmerr/regionpulse/internal/aggregate"
	"github.com/jpalmerr/regionpulse/internal/store"
)

const (
	// defaultTitle is used when no custom title is configured.
	defaultTitle = "RegionPulse"

	// placeholders in the dashboard HTML replaced at serve time.
	titlePlaceholder    = "{{.Title}}"
	intervalPlaceholder = "{{.IntervalSeconds}}"

	shutdownTimeout = 5 * time.Second
)

// TriggerFunc requests an immediate polling cycle on behalf of source
// ("ws" or "http"). It reports whether a cycle was queued; false means the
// request was coalesced into one already pending.
type TriggerFunc func(source string) bool

// Instrumentation exposes metrics for scraping and wraps routes to count
// requests. Implemented by the metrics package.
type Instrumentation interface {
	Handler() http.Handler
	Middleware(route string, next http.Handler) http.Handler
}

// Config holds the HTTP-facing settings of a [Server].
type Config struct {
	Port int

	// Title is shown in the dashboard header and browser tab.
	Title string

	// Interval is the polling interval, used by the dashboard countdown.
	Interval time.Duration

	// Assets is the embedded dashboard filesystem; nil disables "/".
	Assets fs.FS

	// Metrics, when set, is served at /metrics and counts API requests.
	Metrics Instrumentation
}

// Server handles HTTP requests for the RegionPulse dashboard and API.
//
// Routes:
//   - GET /: embedded dashboard HTML
//   - GET /api/status: latest snapshot plus summary as JSON
//   - POST /api/check: request an immediate cycle
//   - GET /api/sse: Server-Sent Events stream of snapshots
//   - GET /ws: WebSocket stream of snapshots, accepts forceCheck messages
//   - GET /metrics: Prometheus metrics, when configured
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	store   store.Store
	trigger TriggerFunc
	cfg     Config
	logger  *slog.Logger

	httpServer *http.Server
	addrMu     sync.Mutex
	addr       net.Addr
}

// NewServer creates a new HTTP [Server]. trigger may be nil, in which case
// manual checks are rejected.
//
// The server is not started until [Server.Start] is called.
func NewServer(st store.Store, trigger TriggerFunc, cfg Config, logger *slog.Logger) *Server {
	if cfg.Title == "" {
		cfg.Title = defaultTitle
	}
	return &Server{
		store:   st,
		trigger: trigger,
		cfg:     cfg,
		logger:  logger,
	}
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.route(mux, "/api/status", s.handleStatus)
	s.route(mux, "/api/check", s.handleCheck)
	s.route(mux, "/api/sse", s.handleSSE)
	s.route(mux, "/ws", s.handleWS)

	if s.cfg.Metrics != nil {
		mux.Handle("/metrics", s.cfg.Metrics.Handler())
	}
	if s.cfg.Assets != nil {
		s.route(mux, "/", s.handleDashboard)
	}
	return mux
}

func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	if s.cfg.Metrics != nil {
		mux.Handle(pattern, s.cfg.Metrics.Middleware(pattern, h))
		return
	}
	mux.HandleFunc(pattern, h)
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.cfg.Port, err)
	}

	s.addrMu.Lock()
	s.addr = ln.Addr()
	s.addrMu.Unlock()

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// enabling graceful shutdown of long-running handlers like SSE and
		// hijacked WebSocket connections.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	// shutdown on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	s.logger.Info("http server listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.addrMu.Lock()
	defer s.addrMu.Unlock()
	return s.addr
}

// statusPayload is the JSON shape shared by /api/status, SSE and WebSocket.
type statusPayload struct {
	aggregate.Snapshot
	Summary aggregate.Summary `json:"summary"`
}

func newPayload(snap aggregate.Snapshot) statusPayload {
	return statusPayload{Snapshot: snap, Summary: snap.Summary()}
}

// handleDashboard serves the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	content, err := fs.ReadFile(s.cfg.Assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	// HTML escaping prevents XSS through the configured title
	rendered := strings.NewReplacer(
		titlePlaceholder, html.EscapeString(s.cfg.Title),
		intervalPlaceholder, strconv.Itoa(intervalSeconds(s.cfg.Interval)),
	).Replace(string(content))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

func intervalSeconds(d time.Duration) int {
	secs := int(d.Round(time.Second) / time.Second)
	if secs < 1 {
		return 10
	}
	return secs
}

// handleStatus returns the latest snapshot as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(newPayload(s.store.Latest())); err != nil {
		s.logger.Error("failed to encode status response", "error", err)
	}
}

// handleCheck requests an immediate polling cycle.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.trigger == nil {
		http.Error(w, "Manual checks unavailable", http.StatusServiceUnavailable)
		return
	}

	queued := s.trigger("http")
	s.logger.Debug("manual check requested", "source", "http", "queued", queued)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]bool{"queued": queued}); err != nil {
		s.logger.Error("failed to encode check response", "error", err)
	}
}
