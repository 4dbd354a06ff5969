package domain

import "time"

// Tier is a user's access class. It determines which models may back the
// bots and how many resets a game-day allows.
type Tier string

const (
	TierFree      Tier = "free"
	TierUnlimited Tier = "unlimited"
)

// Unrestricted reports whether the tier bypasses model caps and rate limits.
func (t Tier) Unrestricted() bool {
	return t == TierUnlimited
}

// GameError is a structured failure persisted on the game record instead of
// thrown past the API boundary, so a client can always read current state.
type GameError struct {
	Error       string    `json:"error"`
	Details     string    `json:"details,omitempty"`
	Context     string    `json:"context,omitempty"`
	Recoverable bool      `json:"recoverable"`
	Timestamp   time.Time `json:"timestamp"`
}

// VoteRecord is one cast vote in the day's lynch election.
type VoteRecord struct {
	Day    int    `json:"day"`
	Voter  string `json:"voter"`
	Target string `json:"target"`
}

// Game is the persisted game document. It is mutated exclusively by the
// engine under the single-writer-per-game discipline and written back with
// an optimistic version check.
type Game struct {
	ID      string `json:"id"`
	Version int64  `json:"version"`
	Tier    Tier   `json:"tier"`

	Phase Phase `json:"phase"`
	Day   int   `json:"day"`
	// Round counts discussion rounds within the current day, feeding the
	// responder-selection fairness rule.
	Round int `json:"round"`

	Steps  StepQueue  `json:"steps"`
	Actors ActorQueue `json:"actors"`

	Participants []*Participant `json:"participants"`
	HumanName    string         `json:"humanName"`
	GameMaster   ModelSelector  `json:"gameMaster"`

	VotingHistory   []VoteRecord        `json:"votingHistory,omitempty"`
	NightChoices    NightChoices        `json:"nightChoices"`
	NightRecords    []NightActionRecord `json:"nightRecords,omitempty"`
	NightNarratives []string            `json:"nightNarratives,omitempty"`

	ErrorState *GameError `json:"errorState,omitempty"`

	// LastSpoke maps participant name to the last discussion round in which
	// they spoke, for the fairness force-include rule.
	LastSpoke map[string]int `json:"lastSpoke,omitempty"`
	// ResetCounts maps day to resets consumed that day.
	ResetCounts map[int]int `json:"resetCounts,omitempty"`

	// Seed drives every random decision so a step is reproducible given the
	// same persisted state.
	Seed int64 `json:"seed"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Participant returns the named participant, or nil.
func (g *Game) Participant(name string) *Participant {
	for _, p := range g.Participants {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Living returns all living participants in seating order.
func (g *Game) Living() []*Participant {
	var out []*Participant
	for _, p := range g.Participants {
		if p.IsAlive {
			out = append(out, p)
		}
	}
	return out
}

// LivingWithRole returns the first living holder of the role, or nil.
// Setup guarantees at most one doctor, detective and maniac per game.
func (g *Game) LivingWithRole(role Role) *Participant {
	for _, p := range g.Participants {
		if p.IsAlive && p.Role == role {
			return p
		}
	}
	return nil
}

// LivingCounts returns the number of living werewolves and living
// non-werewolves.
func (g *Game) LivingCounts() (wolves, others int) {
	for _, p := range g.Participants {
		if !p.IsAlive {
			continue
		}
		if p.Role == RoleWerewolf {
			wolves++
		} else {
			others++
		}
	}
	return wolves, others
}

// Human returns the human participant, or nil.
func (g *Game) Human() *Participant {
	return g.Participant(g.HumanName)
}

// Eliminate marks the participant dead, stamping the current day so a
// same-day reset can roll the elimination back.
func (g *Game) Eliminate(name string) {
	p := g.Participant(name)
	if p == nil || !p.IsAlive {
		return
	}
	day := g.Day
	p.IsAlive = false
	p.EliminationDay = &day
}

// RestoreSameDay revives every participant eliminated on the given day,
// preserving their accumulated usage counters. Returns the restored names.
func (g *Game) RestoreSameDay(day int) []string {
	var restored []string
	for _, p := range g.Participants {
		if !p.IsAlive && p.EliminationDay != nil && *p.EliminationDay == day {
			p.IsAlive = true
			p.EliminationDay = nil
			restored = append(restored, p.Name)
		}
	}
	return restored
}

// RecordSpoke notes that the participant spoke in the current round.
func (g *Game) RecordSpoke(name string) {
	if g.LastSpoke == nil {
		g.LastSpoke = make(map[string]int)
	}
	g.LastSpoke[name] = g.Round
}

// SetError persists a structured failure on the game. Queues are left
// untouched so the failed item is retried on the next invocation.
func (g *Game) SetError(err error, context string, recoverable bool) {
	g.ErrorState = &GameError{
		Error:       err.Error(),
		Context:     context,
		Recoverable: recoverable,
		Timestamp:   time.Now().UTC(),
	}
}

// ClearError removes the persisted failure before a retry.
func (g *Game) ClearError() {
	g.ErrorState = nil
}
