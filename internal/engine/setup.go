package engine

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/moonhollow/moonhollow/pkg/domain"
)

// Setup describes a game to be created. Bot models may use the "random"
// selector; it is resolved to a concrete model before tier validation.
type Setup struct {
	Tier       domain.Tier
	HumanName  string
	HumanRole  domain.Role // empty means the human draws from the pool
	BotNames   []string
	BotModels  []domain.ModelSelector
	GameMaster domain.ModelSelector
	Seed       int64
}

// rolePool builds the role composition for n participants: one doctor, one
// detective, a maniac from six players up, wolves scaling with table size,
// villagers for the rest.
func rolePool(n int) []domain.Role {
	wolves := n / 4
	if wolves < 1 {
		wolves = 1
	}
	pool := make([]domain.Role, 0, n)
	for i := 0; i < wolves; i++ {
		pool = append(pool, domain.RoleWerewolf)
	}
	pool = append(pool, domain.RoleDoctor, domain.RoleDetective)
	if n >= 6 {
		pool = append(pool, domain.RoleManiac)
	}
	for len(pool) < n {
		pool = append(pool, domain.RoleVillager)
	}
	return pool[:n]
}

// CreateGame validates the model selection against the tier, assigns roles
// and persists the initial game. Validation failures surface before
// anything is created.
func (s *Scheduler) CreateGame(ctx context.Context, setup Setup) (*domain.Game, error) {
	if len(setup.BotNames) != len(setup.BotModels) {
		return nil, fmt.Errorf("bot names (%d) and models (%d) must pair up", len(setup.BotNames), len(setup.BotModels))
	}
	if len(setup.BotNames) < 3 {
		return nil, fmt.Errorf("a game needs at least 3 bots, got %d", len(setup.BotNames))
	}
	if setup.HumanName == "" {
		return nil, fmt.Errorf("human participant name is required")
	}
	if err := validateNames(setup.HumanName, setup.BotNames); err != nil {
		return nil, err
	}

	seed := setup.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	// Disambiguate "random" selectors before validation; an unresolved
	// selector must never reach the limiter.
	gm, err := s.limiter.ResolveRandom(setup.Tier, setup.GameMaster, rng)
	if err != nil {
		return nil, err
	}
	bots := make([]domain.ModelSelector, len(setup.BotModels))
	for i, sel := range setup.BotModels {
		if bots[i], err = s.limiter.ResolveRandom(setup.Tier, sel, rng); err != nil {
			return nil, err
		}
	}

	if err := s.limiter.Validate(setup.Tier, gm, bots); err != nil {
		return nil, err
	}

	n := len(setup.BotNames) + 1
	pool := rolePool(n)
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	humanRole := setup.HumanRole
	if humanRole == "" {
		humanRole, pool = pool[0], pool[1:]
	} else {
		// Honor the requested role by removing one matching slot, falling
		// back to swapping out a villager slot.
		pool = removeRole(pool, humanRole)
	}

	game := &domain.Game{
		ID:         uuid.NewString(),
		Tier:       setup.Tier,
		HumanName:  setup.HumanName,
		GameMaster: gm,
		Seed:       seed,
		Day:        0,
		CreatedAt:  time.Now().UTC(),
	}
	game.Participants = append(game.Participants, &domain.Participant{
		Name:    setup.HumanName,
		Role:    humanRole,
		Human:   true,
		IsAlive: true,
	})
	for i, name := range setup.BotNames {
		game.Participants = append(game.Participants, &domain.Participant{
			Name:    name,
			Role:    pool[i],
			IsAlive: true,
			Model:   bots[i],
		})
	}

	s.enterPhase(game, domain.PhaseWelcome)

	if err := s.games.Create(ctx, game); err != nil {
		return nil, err
	}
	if err := s.narrate(ctx, game, fmt.Sprintf(
		"Welcome to Moonhollow. %d players take their seats. Night will fall soon; trust no one.", n)); err != nil {
		return nil, err
	}

	s.logger.Info("game created", "game", game.ID, "players", n, "tier", game.Tier)
	return game, nil
}

// validateNames rejects setups where two participants would share a name.
// Names are identities: votes, night targets and message visibility all key
// on them, and the narrator's author name is reserved.
func validateNames(humanName string, botNames []string) error {
	seen := map[string]struct{}{humanName: {}}
	if humanName == domain.GameMaster {
		return fmt.Errorf("participant name %q is reserved", domain.GameMaster)
	}
	for _, name := range botNames {
		if name == "" {
			return fmt.Errorf("bot names must not be empty")
		}
		if name == domain.GameMaster {
			return fmt.Errorf("participant name %q is reserved", domain.GameMaster)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("participant name %q is used more than once", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// removeRole drops one slot of the given role from the pool, preferring an
// exact match and otherwise sacrificing a villager slot.
func removeRole(pool []domain.Role, role domain.Role) []domain.Role {
	for i, r := range pool {
		if r == role {
			return append(pool[:i], pool[i+1:]...)
		}
	}
	for i, r := range pool {
		if r == domain.RoleVillager {
			return append(pool[:i], pool[i+1:]...)
		}
	}
	return pool[:len(pool)-1]
}
