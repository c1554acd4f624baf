// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	service "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ScoreDependencies
	StageDependencies
	LeaderboardDependencies
	CeremonyDependencies
	DisplayDependencies
	StatsProvider
	Pinger
}

// Subscriber upgrades a request into a live subscription on a channel.
type Subscriber interface {
	Serve(w http.ResponseWriter, r *http.Request, channel string) error
}

const (
	defaultMaxLeaderboardLimit = 1000
	defaultCeremonyLimit       = 3
	maxBodyBytes               = 1 << 20
)

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	scoresHandler      *ScoresHandler
	stagesHandler      *StagesHandler
	leaderboardHandler *LeaderboardHandler
	ceremonyHandler    *CeremonyHandler
	displayHandler     *DisplayHandler
	streamHandler      *StreamHandler

	actors  *ActorResolver
	limiter *RateLimiter
	logger  logger.Logger

	jwtSecret     []byte
	rateLimit     float64
	rateBurst     int
	maxLimit      int
	ceremonyLimit int
}

// Option configures a Server.
type Option func(*Server)

// WithJWTSecret enables HS256 bearer tokens for actor identification.
func WithJWTSecret(secret string) Option {
	return func(s *Server) {
		if secret != "" {
			s.jwtSecret = []byte(secret)
		}
	}
}

// WithRateLimit limits mutating routes to rps requests per second with burst.
// rps <= 0 disables the limiter.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		s.rateLimit = rps
		s.rateBurst = burst
	}
}

// WithMaxLeaderboardLimit caps the limit query parameter of the leaderboard.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithDefaultCeremonyLimit sets the winner count used when a start request omits it.
func WithDefaultCeremonyLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.ceremonyLimit = n
		}
	}
}

// WithLogger sets the logger used for request failures.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, subscriber Subscriber, opts ...Option) *Server {
	s := &Server{
		maxLimit:      defaultMaxLeaderboardLimit,
		ceremonyLimit: defaultCeremonyLimit,
		logger:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler(deps)
	s.statsHandler = NewStatsHandler(deps)
	s.scoresHandler = NewScoresHandler(deps)
	s.stagesHandler = NewStagesHandler(deps)
	s.leaderboardHandler = NewLeaderboardHandler(deps, s.maxLimit)
	s.ceremonyHandler = NewCeremonyHandler(deps, s.ceremonyLimit)
	s.displayHandler = NewDisplayHandler(deps)
	s.streamHandler = NewStreamHandler(subscriber, s.logger)
	s.actors = NewActorResolver(s.jwtSecret)
	s.limiter = NewRateLimiter(s.rateLimit, s.rateBurst)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /stages/{stage}/teams/{team}/scores", s.mutating(s.scoresHandler.HandleSubmit, "scores"))
	mux.HandleFunc("POST /stages/{stage}/teams/{team}/scan", s.mutating(s.scoresHandler.HandleScan, "scan"))
	mux.HandleFunc("GET /stages/{stage}/teams/{team}/progress", MetricsMiddleware(s.scoresHandler.HandleProgress, "progress"))

	mux.HandleFunc("GET /stages/{stage}", MetricsMiddleware(s.stagesHandler.HandleGet, "stage"))
	mux.HandleFunc("POST /stages/{stage}/pause", s.mutating(s.stagesHandler.HandlePause, "stage_pause"))
	mux.HandleFunc("POST /stages/{stage}/resume", s.mutating(s.stagesHandler.HandleResume, "stage_resume"))
	mux.HandleFunc("POST /stages/{stage}/extend", s.mutating(s.stagesHandler.HandleExtend, "stage_extend"))
	mux.HandleFunc("POST /stages/{stage}/deadline", s.mutating(s.stagesHandler.HandleDeadline, "stage_deadline"))

	mux.HandleFunc("GET /events/{event}/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))

	mux.HandleFunc("POST /events/{event}/ceremony/start", s.mutating(s.ceremonyHandler.HandleStart, "ceremony_start"))
	mux.HandleFunc("POST /events/{event}/ceremony/reveal", s.mutating(s.ceremonyHandler.HandleReveal, "ceremony_reveal"))
	mux.HandleFunc("POST /events/{event}/ceremony/stop", s.mutating(s.ceremonyHandler.HandleStop, "ceremony_stop"))
	mux.HandleFunc("GET /events/{event}/ceremony", MetricsMiddleware(s.ceremonyHandler.HandleGet, "ceremony"))

	mux.HandleFunc("POST /events/{event}/display/freeze", s.mutating(s.displayHandler.HandleFreeze, "display_freeze"))
	mux.HandleFunc("POST /events/{event}/display/unfreeze", s.mutating(s.displayHandler.HandleUnfreeze, "display_unfreeze"))
	mux.HandleFunc("POST /events/{event}/display/scene", s.mutating(s.displayHandler.HandleScene, "display_scene"))
	mux.HandleFunc("GET /events/{event}/display", MetricsMiddleware(s.displayHandler.HandleGet, "display"))

	mux.HandleFunc("GET /ws/events/{event}", s.streamHandler.channel(model.EventChannel))
	mux.HandleFunc("GET /ws/displays/{event}", s.streamHandler.channel(model.DisplayChannel))
}

// mutating applies metrics, rate limiting and actor identification, outermost first.
func (s *Server) mutating(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return MetricsMiddleware(s.limiter.Middleware(s.actors.Middleware(next)), endpoint)
}

type errorResponse struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	resp := errorResponse{Code: code, Message: http.StatusText(status)}
	if err != nil {
		resp.Message = err.Error()
		var ve *service.ValidationError
		if errors.As(err, &ve) {
			resp.Details = ve.Errors
		}
	}
	writeJSON(w, status, resp)
}

// fail writes err with the status derived from its kind.
func fail(w http.ResponseWriter, err error) {
	status, code := statusOf(err)
	writeError(w, status, code, err)
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}
