package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/vistoria/vistoria/internal/engine"
	"github.com/vistoria/vistoria/internal/notify"
	"github.com/vistoria/vistoria/internal/store"
)

// Server is the vistoria HTTP API server.
type Server struct {
	db       *store.DB
	engine   *engine.Engine
	notices  *notify.Feed
	hub      *Hub
	router   http.Handler
	version  string
	pageSize int
	started  time.Time
}

// New creates a new Server. The notification feed may be nil when the
// activity log is disabled.
func New(db *store.DB, eng *engine.Engine, notices *notify.Feed, version string) *Server {
	s := &Server{
		db:       db,
		engine:   eng,
		notices:  notices,
		hub:      NewHub(),
		version:  version,
		pageSize: defaultPageSize,
		started:  time.Now(),
	}
	if notices != nil {
		notices.OnPush = s.hub.BroadcastNotification
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// WSHub returns the websocket hub, for shutdown.
func (s *Server) WSHub() *Hub {
	return s.hub
}

// SetPageSize overrides the default fetch batch size.
func (s *Server) SetPageSize(n int) {
	if n > 0 {
		s.pageSize = n
	}
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Feed retrieval and view state
		r.Get("/feed", s.handleGetFeed)
		r.Put("/view", s.handleSetView)
		r.Put("/query", s.handleSetQuery)
		r.Post("/search", s.handleSearch)
		r.Post("/feed/more", s.handleLoadMore)
		r.Post("/tags/toggle", s.handleToggleTag)

		// Pin lifecycle
		r.Post("/pins", s.handleCreatePin)
		r.Get("/pins/{pinID}", s.handleGetPin)
		r.Patch("/pins/{pinID}", s.handleUpdatePin)
		r.Post("/pins/{pinID}/trash", s.handleTrashPin)
		r.Post("/pins/{pinID}/restore", s.handleRestorePin)
		r.Delete("/pins/{pinID}", s.handlePurgePin)
		r.Get("/trash", s.handleGetTrash)

		// Focused pin
		r.Put("/selection", s.handleSelect)
		r.Delete("/selection", s.handleClearSelection)

		// Activity log
		r.Get("/notifications", s.handleGetNotifications)
		r.Post("/notifications/read", s.handleReadNotifications)
		r.Delete("/notifications", s.handleClearNotifications)

		// Session identity and geolocation bias
		r.Put("/user", s.handleSetUser)
		r.Delete("/user", s.handleClearUser)
		r.Put("/location", s.handleSetLocation)
		r.Delete("/location", s.handleClearLocation)

		// Preferences
		r.Get("/prefs/theme", s.handleGetTheme)
		r.Put("/prefs/theme", s.handleSetTheme)

		r.Get("/ws", s.handleWS)
	})

	r.Handle("/metrics", promhttp.Handler())

	s.router = cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
