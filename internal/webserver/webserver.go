// Package webserver implements the inbound-webhook and metrics HTTP surface
// of spec.md §6 ("webserver that receives third-party vote webhooks and
// serves metrics"), routed with chi exactly as the teacher's cmd/server/
// main.go wires its own router: RequestID, RealIP, Logger, Recoverer and a
// Heartbeat probe ahead of the route table.
package webserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/jacherr/assystbot/internal/middleware"
)

// MetricsSource serves the current Prometheus text exposition, satisfied
// by internal/metrics.Registry.
type MetricsSource interface {
	Handler() http.Handler
}

// VoteLogger is the narrow slice of the logger façade (spec.md §4.M) the
// vote webhooks need.
type VoteLogger interface {
	Vote(ctx context.Context, format string, args ...any)
}

// voteBody is the trivial JSON payload both vote providers send (spec.md
// §6: "payload schemas are trivial JSON objects").
type voteBody struct {
	User string `json:"user"`
}

// Server holds the webhook secrets and dependencies the route handlers need.
type Server struct {
	DBLSecret   string
	TopGGSecret string
	LandingPage string
	Metrics     MetricsSource
	Logger      VoteLogger
	AccessLog   *slog.Logger
}

func (s *Server) logger() *slog.Logger {
	if s.AccessLog == nil {
		return slog.Default()
	}
	return s.AccessLog
}

// Router builds the chi router serving /dbl, /topgg, /metrics and /.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))

	r.Post("/dbl", s.handleVote("dbl", s.DBLSecret))
	r.Post("/topgg", s.handleVote("topgg", s.TopGGSecret))
	r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())
	r.Get("/", s.handleLanding)
	return r
}

// handleVote authenticates an inbound vote webhook by a shared secret in
// the Authorization header, then relays the voter id to the vote log
// category (spec.md §4.M).
func (s *Server) handleVote(provider, secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if secret == "" || r.Header.Get("Authorization") != secret {
			Error(w, http.StatusUnauthorized, "invalid authorization")
			return
		}

		var body voteBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.logger().Warn("webserver: malformed vote payload", "provider", provider, "error", err)
			Error(w, http.StatusBadRequest, "malformed vote payload")
			return
		}

		s.Logger.Vote(r.Context(), "%s vote from user %s", provider, body.User)
		JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	target := s.LandingPage
	if target == "" {
		target = "https://assyst.example"
	}
	http.Redirect(w, r, target, http.StatusFound)
}
