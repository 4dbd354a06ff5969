// Package moonhollow is the high-level entry point for the Moon Hollow
// game orchestrator. It wires the configured stores, providers and limiter
// into a ready scheduler so the CLI and server share one composition root.
package moonhollow

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/moonhollow/moonhollow/internal/config"
	"github.com/moonhollow/moonhollow/internal/engine"
	"github.com/moonhollow/moonhollow/internal/logging"
	"github.com/moonhollow/moonhollow/internal/metrics"
	"github.com/moonhollow/moonhollow/internal/tier"
	"github.com/moonhollow/moonhollow/pkg/adapters/memory"
	redisadapter "github.com/moonhollow/moonhollow/pkg/adapters/redis"
	"github.com/moonhollow/moonhollow/pkg/agent"
	"github.com/moonhollow/moonhollow/pkg/agent/anthropic"
	"github.com/moonhollow/moonhollow/pkg/agent/gemini"
	"github.com/moonhollow/moonhollow/pkg/agent/openai"
	"github.com/moonhollow/moonhollow/pkg/persistence/middleware"
	"github.com/moonhollow/moonhollow/pkg/ports"
	"github.com/moonhollow/moonhollow/pkg/registry"
	backend "github.com/redis/go-redis/v9"
)

// Version is the current release.
const Version = "0.3.0"

// Orchestrator bundles the scheduler with the infrastructure it was wired
// over, so callers can serve it, drive it from a terminal, or tear it down.
type Orchestrator struct {
	Scheduler *engine.Scheduler
	Limiter   *tier.Limiter
	Metrics   *prometheus.Registry

	games  ports.GameStore
	msgs   ports.MessageStore
	client *backend.Client
}

type settings struct {
	logger     *slog.Logger
	inMemory   bool
	providers  []agent.Provider
	middleware []middleware.Middleware
	tuning     *engine.Tuning
}

// Option configures the Orchestrator.
type Option func(*settings)

// WithLogger sets the structured logger used across all components.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithInMemoryStore swaps Redis for the in-process store. Games do not
// survive the process; intended for tests and offline play.
func WithInMemoryStore() Option {
	return func(s *settings) { s.inMemory = true }
}

// WithProvider registers an additional provider adapter, overriding a
// configured one of the same name. This is how tests inject fakes.
func WithProvider(p agent.Provider) Option {
	return func(s *settings) { s.providers = append(s.providers, p) }
}

// WithTranscriptMiddleware wraps the message store, innermost first.
func WithTranscriptMiddleware(mw ...middleware.Middleware) Option {
	return func(s *settings) { s.middleware = append(s.middleware, mw...) }
}

// WithTuning overrides the scheduler pacing knobs.
func WithTuning(t engine.Tuning) Option {
	return func(s *settings) { s.tuning = &t }
}

// New composes an orchestrator from configuration.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Orchestrator, error) {
	s := &settings{logger: logging.New(slog.LevelInfo)}
	for _, opt := range opts {
		opt(s)
	}

	o := &Orchestrator{Metrics: prometheus.NewRegistry()}

	// Stores and locking.
	var locker ports.Locker
	if s.inMemory {
		store := memory.NewStore()
		o.games, o.msgs = store, store
		locker = memory.NewLocker()
	} else {
		o.client = backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store := redisadapter.NewFromClient(o.client)
		o.games, o.msgs = store, store
		locker = redisadapter.NewLocker(o.client, "moonhollow:lock:")
	}
	transcriptMW, err := transcriptMiddleware(cfg.Transcript)
	if err != nil {
		return nil, err
	}
	for _, mw := range append(transcriptMW, s.middleware...) {
		o.msgs = mw(o.msgs)
	}

	// Providers from config, then explicit overrides.
	reg := registry.New(
		agent.WithPricing(agent.TablePricing(cfg.PriceTable())),
		agent.WithLogger(s.logger),
	)
	for name, pc := range cfg.Providers {
		p, err := buildProvider(ctx, name, pc)
		if err != nil {
			return nil, err
		}
		reg.Register(p)
	}
	for _, p := range s.providers {
		reg.Register(p)
	}

	o.Limiter = tier.New(cfg.Catalog(), tierOptions(cfg)...)

	engineOpts := []engine.Option{
		engine.WithLogger(s.logger),
		engine.WithMetrics(metrics.New(o.Metrics)),
	}
	if s.tuning != nil {
		engineOpts = append(engineOpts, engine.WithTuning(*s.tuning))
	} else if t, ok := configTuning(cfg); ok {
		engineOpts = append(engineOpts, engine.WithTuning(t))
	}
	if cfg.Tuning.LockTTL > 0 {
		engineOpts = append(engineOpts, engine.WithLockTTL(cfg.Tuning.LockTTL))
	}

	o.Scheduler = engine.NewScheduler(o.games, o.msgs, locker, reg.Agent, o.Limiter, engineOpts...)
	return o, nil
}

// Close releases infrastructure handles.
func (o *Orchestrator) Close() error {
	if o.client != nil {
		return o.client.Close()
	}
	return nil
}

func buildProvider(ctx context.Context, name string, pc config.Provider) (agent.Provider, error) {
	switch name {
	case "anthropic":
		var opts []anthropic.Option
		if pc.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(pc.BaseURL))
		}
		return anthropic.New(pc.APIKey(), opts...), nil
	case "gemini":
		return gemini.New(ctx, pc.APIKey())
	default:
		// Everything else is treated as an OpenAI-compatible endpoint,
		// which covers openai itself plus local gateways.
		opts := []openai.Option{openai.WithName(name)}
		if pc.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(pc.BaseURL))
		}
		return openai.New(pc.APIKey(), opts...), nil
	}
}

// transcriptMiddleware builds the configured at-rest protection layers.
// Redaction runs innermost so encrypted bodies are already redacted.
func transcriptMiddleware(tc config.Transcript) ([]middleware.Middleware, error) {
	var out []middleware.Middleware
	if len(tc.RedactPatterns) > 0 {
		out = append(out, middleware.NewRedactionMiddleware(tc.RedactPatterns))
	}
	if tc.EncryptionKeyEnv != "" {
		key, err := readKey(tc.EncryptionKeyEnv)
		if err != nil {
			return nil, err
		}
		var fallbacks [][]byte
		for _, env := range tc.FallbackKeyEnvs {
			fk, err := readKey(env)
			if err != nil {
				return nil, err
			}
			fallbacks = append(fallbacks, fk)
		}
		out = append(out, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    key,
			FallbackKeys: fallbacks,
		}))
	}
	return out, nil
}

func readKey(env string) ([]byte, error) {
	raw := os.Getenv(env)
	if raw == "" {
		return nil, fmt.Errorf("transcript key variable %s is not set", env)
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("transcript key %s is not valid base64: %w", env, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("transcript key %s must decode to 32 bytes, got %d", env, len(key))
	}
	return key, nil
}

func tierOptions(cfg *config.Config) []tier.Option {
	var opts []tier.Option
	if cfg.Tuning.ResetsPerDay > 0 {
		opts = append(opts, tier.WithResetsPerDay(cfg.Tuning.ResetsPerDay))
	}
	return opts
}

func configTuning(cfg *config.Config) (engine.Tuning, bool) {
	t := engine.DefaultTuning()
	set := false
	if cfg.Tuning.MinResponders > 0 {
		t.MinResponders = cfg.Tuning.MinResponders
		set = true
	}
	if cfg.Tuning.MaxResponders > 0 {
		t.MaxResponders = cfg.Tuning.MaxResponders
		set = true
	}
	if cfg.Tuning.RoundsPerDay > 0 {
		t.RoundsPerDay = cfg.Tuning.RoundsPerDay
		set = true
	}
	return t, set
}

// Must panics on error. Intended for main functions.
func Must(o *Orchestrator, err error) *Orchestrator {
	if err != nil {
		panic(fmt.Sprintf("moonhollow: %v", err))
	}
	return o
}
