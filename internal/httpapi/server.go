// Package httpapi exposes the game engine over HTTP. Every endpoint is a
// thin translation layer: decode, call the scheduler, map domain errors to
// status codes. The engine owns all game semantics.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/moonhollow/moonhollow/internal/engine"
	"github.com/moonhollow/moonhollow/internal/tier"
	"github.com/moonhollow/moonhollow/pkg/domain"
)

// Server wires the scheduler into chi routes.
type Server struct {
	scheduler *engine.Scheduler
	logger    *slog.Logger
	registry  *prometheus.Registry
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics mounts a /metrics endpoint serving the registry.
func WithMetrics(reg *prometheus.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// NewHandler builds the HTTP handler.
func NewHandler(scheduler *engine.Scheduler, opts ...Option) http.Handler {
	s := &Server{scheduler: scheduler, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/health", s.health)
	r.Route("/games", func(r chi.Router) {
		r.Post("/", s.createGame)
		r.Route("/{gameID}", func(r chi.Router) {
			r.Get("/", s.getGame)
			r.Post("/step", s.step)
			r.Post("/human", s.human)
			r.Post("/reset", s.reset)
		})
	})
	if s.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CreateGameRequest is the POST /games body.
type CreateGameRequest struct {
	Tier       domain.Tier            `json:"tier"`
	HumanName  string                 `json:"humanName"`
	HumanRole  domain.Role            `json:"humanRole,omitempty"`
	BotNames   []string               `json:"botNames"`
	BotModels  []domain.ModelSelector `json:"botModels"`
	GameMaster domain.ModelSelector   `json:"gameMaster"`
	Seed       int64                  `json:"seed,omitempty"`
}

// GameResponse pairs the game document with its transcript.
type GameResponse struct {
	Game     *domain.Game         `json:"game"`
	Messages []domain.GameMessage `json:"messages,omitempty"`
	// AwaitingHuman is set when automated advance is parked on the human
	// participant's input.
	AwaitingHuman bool `json:"awaitingHuman,omitempty"`
}

func (s *Server) createGame(w http.ResponseWriter, r *http.Request) {
	var body CreateGameRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("createGame: invalid request body", "err", err)
		return
	}

	game, err := s.scheduler.CreateGame(r.Context(), engine.Setup{
		Tier:       body.Tier,
		HumanName:  body.HumanName,
		HumanRole:  body.HumanRole,
		BotNames:   body.BotNames,
		BotModels:  body.BotModels,
		GameMaster: body.GameMaster,
		Seed:       body.Seed,
	})
	if err != nil {
		s.fail(w, "createGame", err)
		return
	}
	s.respond(w, http.StatusCreated, GameResponse{Game: game})
}

func (s *Server) getGame(w http.ResponseWriter, r *http.Request) {
	game, messages, err := s.scheduler.Game(r.Context(), chi.URLParam(r, "gameID"), reqTier(r))
	if err != nil {
		s.fail(w, "getGame", err)
		return
	}
	s.respond(w, http.StatusOK, GameResponse{Game: game, Messages: messages})
}

func (s *Server) step(w http.ResponseWriter, r *http.Request) {
	game, err := s.scheduler.Step(r.Context(), chi.URLParam(r, "gameID"), reqTier(r))
	if errors.Is(err, domain.ErrHumanTurn) {
		s.respond(w, http.StatusOK, GameResponse{Game: game, AwaitingHuman: true})
		return
	}
	if err != nil {
		s.fail(w, "step", err)
		return
	}
	s.respond(w, http.StatusOK, GameResponse{Game: game})
}

// HumanRequest is the POST /games/{id}/human body. Input is free text during
// discussion and a target name during votes and night actions.
type HumanRequest struct {
	Input string `json:"input"`
}

func (s *Server) human(w http.ResponseWriter, r *http.Request) {
	var body HumanRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.Input == "" {
		http.Error(w, "input is required", http.StatusBadRequest)
		return
	}

	game, err := s.scheduler.SubmitHuman(r.Context(), chi.URLParam(r, "gameID"), reqTier(r), body.Input)
	if err != nil {
		s.fail(w, "human", err)
		return
	}
	s.respond(w, http.StatusOK, GameResponse{Game: game})
}

// ResetRequest is the POST /games/{id}/reset body.
type ResetRequest struct {
	MessageID string `json:"messageId"`
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	var body ResetRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.MessageID == "" {
		http.Error(w, "messageId is required", http.StatusBadRequest)
		return
	}

	game, err := s.scheduler.Reset(r.Context(), chi.URLParam(r, "gameID"), reqTier(r), body.MessageID)
	if err != nil {
		s.fail(w, "reset", err)
		return
	}
	s.respond(w, http.StatusOK, GameResponse{Game: game})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

// reqTier reads the caller's tier from the X-Tier header, defaulting to free.
// There is no authentication layer here; the header is trusted upstream.
func reqTier(r *http.Request) domain.Tier {
	if t := r.Header.Get("X-Tier"); t != "" {
		return domain.Tier(t)
	}
	return domain.TierFree
}

func (s *Server) respond(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	var capErr *tier.CapError
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrGameNotFound), errors.Is(err, domain.ErrMessageNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrVersionConflict):
		status = http.StatusConflict
	case errors.Is(err, tier.ErrTierMismatch):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrResetLimit):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrGameEnded), errors.As(err, &capErr),
		errors.Is(err, tier.ErrUnresolvedRandom):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Error(fmt.Sprintf("%s failed", op), "err", err)
	} else {
		s.logger.Warn(fmt.Sprintf("%s rejected", op), "err", err, "status", status)
	}
	http.Error(w, err.Error(), status)
}
