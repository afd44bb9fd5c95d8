// Package api implements the minimal read-only dashboard/query surface:
// current aggregates, recent signals, and a websocket feed of newly
// emitted signals. Grounded on the teacher's internal/api package
// (gorilla/mux routing, gorilla/websocket hub, golang-jwt auth,
// x/time/rate IP limiter) but scoped down to SolFlow's own data model.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"solflow/internal/eventbus"
	"solflow/internal/logging"
	"solflow/internal/models"
)

// Reader is the subset of the store the API needs; kept narrow so the
// handlers don't depend on the store's write methods.
type Reader interface {
	ListAggregates(ctx context.Context, limit int) ([]models.AggregateSnapshot, error)
	ListRecentSignals(ctx context.Context, mint string, limit int) ([]models.Signal, error)
}

// Server wires the HTTP router, the store reader and the signal event
// bus together.
type Server struct {
	reader  Reader
	bus     *eventbus.Bus
	auth    *Authenticator
	router  *mux.Router
	hub     *wsHub
	log     *logging.Logger
	statsFn func() map[string]interface{}
}

// SetStatsSource wires an optional `/stats` route (spec section 3's
// IngestionStats) to a snapshot function. Left unset, `/stats` reports an
// empty object rather than failing, since the pipeline can be disabled
// (config.PipelineEnabled=false) while the API keeps serving stored data.
func (s *Server) SetStatsSource(fn func() map[string]interface{}) {
	s.statsFn = fn
}

func NewServer(reader Reader, bus *eventbus.Bus, auth *Authenticator) *Server {
	s := &Server{
		reader: reader,
		bus:    bus,
		auth:   auth,
		router: mux.NewRouter(),
		hub:    newWSHub(),
		log:    logging.New("API"),
	}
	s.registerRoutes()
	s.bridgeEventBus()
	return s
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/aggregates", s.handleListAggregates).Methods("GET")
	s.router.HandleFunc("/signals", s.handleListSignals).Methods("GET")
	s.router.HandleFunc("/stats", s.handleStats).Methods("GET")
	s.router.HandleFunc("/ws", s.handleWebSocket).Methods("GET")

	authed := s.router.PathPrefix("/admin").Subrouter()
	authed.Use(s.auth.Middleware)
	authed.HandleFunc("/whoami", s.handleWhoAmI).Methods("GET")
}

// Handler returns the fully wired http.Handler, with the IP rate limiter
// as the outermost middleware (matching the teacher's rateLimitMiddleware
// wrapping the whole router).
func (s *Server) Handler() http.Handler {
	return rateLimitMiddleware(s.router)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleListAggregates(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	rows, err := s.reader.ListAggregates(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, rows)
}

func (s *Server) handleListSignals(w http.ResponseWriter, r *http.Request) {
	mint := r.URL.Query().Get("mint")
	limit := queryInt(r, "limit", 100)
	rows, err := s.reader.ListRecentSignals(r.Context(), mint, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, rows)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.statsFn == nil {
		writeJSON(w, map[string]interface{}{})
		return
	}
	writeJSON(w, s.statsFn())
}

func (s *Server) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	writeJSON(w, claims)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// Serve runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
