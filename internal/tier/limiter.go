// Package tier gates which provider/model identifiers may back a game's
// bots, based on the owning user's service tier. Caps are enforced before a
// game is created; an already-running game never re-validates mid-play.
package tier

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/moonhollow/moonhollow/pkg/domain"
)

// CapUnlimited is the per-game cap sentinel for "no cap".
const CapUnlimited = -1

// ErrUnresolvedRandom is returned when a "random" selector reaches
// validation. Random must be disambiguated to a concrete model first.
var ErrUnresolvedRandom = errors.New(`unresolved "random" model selector`)

// ErrTierMismatch is returned when a persisted game's tier does not match
// the requesting user's current tier. Access fails closed, since the tier
// determined which model pool built the game.
var ErrTierMismatch = errors.New("game tier does not match user tier")

// ModelConfig describes one catalog entry.
type ModelConfig struct {
	Provider string `yaml:"provider"`
	// Tiers lists the tiers the model is visible to. Empty means all.
	Tiers []domain.Tier `yaml:"tiers,omitempty"`
	// PerGameCap bounds selections per game on restricted tiers:
	// 0 forbids the model, a positive value caps it, CapUnlimited lifts it.
	PerGameCap int `yaml:"perGameCap"`
}

// Available reports whether the model is visible to the tier.
func (m ModelConfig) Available(t domain.Tier) bool {
	if len(m.Tiers) == 0 {
		return true
	}
	for _, allowed := range m.Tiers {
		if allowed == t {
			return true
		}
	}
	return false
}

// Catalog maps model identifiers to their configuration.
type Catalog map[string]ModelConfig

// CapError reports a selection that exceeds a model's per-game cap.
type CapError struct {
	Model string
	Cap   int
}

func (e *CapError) Error() string {
	switch e.Cap {
	case 0:
		return fmt.Sprintf("model %q is not available on this tier", e.Model)
	case 1:
		return fmt.Sprintf("model %q can only be used once per game", e.Model)
	default:
		return fmt.Sprintf("model %q can only be used %d times per game", e.Model, e.Cap)
	}
}

// Limiter validates model selections against the catalog.
type Limiter struct {
	catalog Catalog
	// resetsPerDay bounds chat resets per game-day for restricted tiers.
	resetsPerDay int
}

// Option configures the Limiter.
type Option func(*Limiter)

// WithResetsPerDay sets the restricted-tier reset allowance. Default 3.
func WithResetsPerDay(n int) Option {
	return func(l *Limiter) { l.resetsPerDay = n }
}

// New creates a Limiter over the catalog.
func New(catalog Catalog, opts ...Option) *Limiter {
	l := &Limiter{catalog: catalog, resetsPerDay: 3}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CandidateModels returns the model identifiers selectable on the tier, in
// stable sorted order.
func (l *Limiter) CandidateModels(t domain.Tier) []string {
	var out []string
	for id, cfg := range l.catalog {
		if !cfg.Available(t) {
			continue
		}
		if !t.Unrestricted() && cfg.PerGameCap == 0 {
			continue
		}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ResolveRandom disambiguates the "random" selector to a concrete candidate
// using the given seeded source. Concrete selectors pass through unchanged.
func (l *Limiter) ResolveRandom(t domain.Tier, selector domain.ModelSelector, rng *rand.Rand) (domain.ModelSelector, error) {
	if selector.Model != domain.SelectorRandom {
		return selector, nil
	}
	candidates := l.CandidateModels(t)
	if len(candidates) == 0 {
		return domain.ModelSelector{}, fmt.Errorf("no models available on tier %q", t)
	}
	id := candidates[rng.Intn(len(candidates))]
	return domain.ModelSelector{Provider: l.catalog[id].Provider, Model: id}, nil
}

// Validate checks the full selection for a game-to-be: the game master model
// plus every bot model. Each occurrence consumes one unit of its model's
// cap, duplicates included. Unrestricted tiers bypass all caps. It must be
// called before the game is created; there is no partial consumption.
func (l *Limiter) Validate(t domain.Tier, gameMaster domain.ModelSelector, bots []domain.ModelSelector) error {
	selections := append([]domain.ModelSelector{gameMaster}, bots...)

	for _, sel := range selections {
		if sel.Model == domain.SelectorRandom {
			return ErrUnresolvedRandom
		}
	}

	if t.Unrestricted() {
		return nil
	}

	used := make(map[string]int)
	for _, sel := range selections {
		cfg, known := l.catalog[sel.Model]
		if !known || !cfg.Available(t) || cfg.PerGameCap == 0 {
			return &CapError{Model: sel.Model, Cap: 0}
		}
		if cfg.PerGameCap == CapUnlimited {
			continue
		}
		used[sel.Model]++
		if used[sel.Model] > cfg.PerGameCap {
			return &CapError{Model: sel.Model, Cap: cfg.PerGameCap}
		}
	}
	return nil
}

// CheckAccess verifies that the requesting user's tier still matches the
// tier the game was built with.
func (l *Limiter) CheckAccess(gameTier, userTier domain.Tier) error {
	if gameTier != userTier {
		return ErrTierMismatch
	}
	return nil
}

// ResetAllowance returns how many resets a game-day permits on the tier.
// Unrestricted tiers have no bound.
func (l *Limiter) ResetAllowance(t domain.Tier) int {
	if t.Unrestricted() {
		return CapUnlimited
	}
	return l.resetsPerDay
}
