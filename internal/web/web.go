// Package web is the plain HTTP application served for "http" connections.
package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"github.com/luciancaetano/ecochat/internal/logging"
)

// Banner is the body served on "/".
const Banner = "EcoChat Socket Server is running"

var ErrNoPresence = errors.New("web app needs a presence source")

// PresenceSource is the read side of chat presence.
type PresenceSource interface {
	OnlineUsers() []string
	GroupMembers(groupID string) []string
}

// ConnectionCounter reports open websocket connections.
type ConnectionCounter interface {
	ClientCount() int
}

type Config struct {
	Presence       PresenceSource
	Connections    ConnectionCounter
	AllowedOrigins []string
	Logger         *slog.Logger
}

type app struct {
	presence    PresenceSource
	connections ConnectionCounter
	logger      *slog.Logger
	started     time.Time
}

// New builds the HTTP application.
func New(cfg Config) (http.Handler, error) {
	if cfg.Presence == nil {
		return nil, ErrNoPresence
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	a := &app{
		presence:    cfg.Presence,
		connections: cfg.Connections,
		logger:      logger.With("component", "web"),
		started:     time.Now(),
	}

	r := chi.NewRouter()
	r.Get("/", a.handleIndex)
	r.Get("/healthz", a.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/online-users", a.handleOnlineUsers)
		r.Get("/groups/{groupID}/members", a.handleGroupMembers)
	})

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	})
	return c.Handler(r), nil
}

func (a *app) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(Banner))
}

type health struct {
	Status      string `json:"status"`
	Uptime      string `json:"uptime"`
	Connections int    `json:"connections"`
	OnlineUsers int    `json:"onlineUsers"`
}

func (a *app) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := health{
		Status:      "ok",
		Uptime:      time.Since(a.started).Round(time.Second).String(),
		OnlineUsers: len(a.presence.OnlineUsers()),
	}
	if a.connections != nil {
		h.Connections = a.connections.ClientCount()
	}
	a.writeJSON(w, http.StatusOK, h)
}

func (a *app) handleOnlineUsers(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string][]string{"users": a.presence.OnlineUsers()})
}

func (a *app) handleGroupMembers(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	a.writeJSON(w, http.StatusOK, map[string]any{
		"groupId": groupID,
		"members": a.presence.GroupMembers(groupID),
	})
}

func (a *app) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("write response", "error", err)
	}
}
