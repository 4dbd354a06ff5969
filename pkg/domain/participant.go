package domain

// Role is a participant's secret affiliation.
type Role string

const (
	RoleVillager  Role = "villager"
	RoleWerewolf  Role = "werewolf"
	RoleDoctor    Role = "doctor"
	RoleDetective Role = "detective"
	RoleManiac    Role = "maniac"
)

// Evil reports whether a detective investigation of this role returns an
// evil verdict. Only werewolves read as evil; the maniac passes as innocent.
func (r Role) Evil() bool {
	return r == RoleWerewolf
}

// ModelSelector identifies the provider and model backing a bot.
type ModelSelector struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// SelectorRandom is the placeholder a user may pick instead of a concrete
// model. It must be resolved to a real model before tier validation.
const SelectorRandom = "random"

// Investigation is one detective result, kept in the detective's private
// knowledge and replayed into their prompts.
type Investigation struct {
	Night  int    `json:"night"`
	Target string `json:"target"`
	Evil   bool   `json:"evil"`
}

// Protection is one doctor action, kept to enforce the no-consecutive-target
// rule.
type Protection struct {
	Night  int    `json:"night"`
	Target string `json:"target"`
}

// RoleKnowledge is role-scoped private memory. Fields are only populated for
// the role that owns them; the zero value is valid for every role.
type RoleKnowledge struct {
	Investigations []Investigation `json:"investigations,omitempty"`
	Protections    []Protection    `json:"protections,omitempty"`
}

// Investigated reports whether the detective has ever investigated name.
func (k *RoleKnowledge) Investigated(name string) bool {
	for _, inv := range k.Investigations {
		if inv.Target == name {
			return true
		}
	}
	return false
}

// LastProtected returns the doctor's target on the given night, or "".
func (k *RoleKnowledge) LastProtected(night int) string {
	for _, p := range k.Protections {
		if p.Night == night {
			return p.Target
		}
	}
	return ""
}

// Participant is a player in a game, bot or human. Participants are never
// deleted; elimination flips IsAlive so history stays attributable.
type Participant struct {
	Name  string `json:"name"`
	Role  Role   `json:"role"`
	Human bool   `json:"human,omitempty"`

	IsAlive bool `json:"isAlive"`
	// EliminationDay is set only on the day the participant was eliminated
	// and cleared again if the elimination is rolled back by a reset.
	EliminationDay *int `json:"eliminationDay,omitempty"`

	Model     ModelSelector `json:"model"`
	Knowledge RoleKnowledge `json:"knowledge"`
	Usage     TokenUsage    `json:"usage"`
}
