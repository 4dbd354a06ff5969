package domain

// Phase is a named stage of the game's turn protocol.
type Phase string

const (
	PhaseWelcome        Phase = "welcome"
	PhaseDayDiscussion  Phase = "day_discussion"
	PhaseVote           Phase = "vote"
	PhaseNightWerewolf  Phase = "night_werewolf"
	PhaseNightDoctor    Phase = "night_doctor"
	PhaseNightDetective Phase = "night_detective"
	PhaseNightManiac    Phase = "night_maniac"
	PhaseNightResults   Phase = "night_results"
	PhaseGameEnded      Phase = "game_ended"
	PhaseAfterGame      Phase = "after_game_discussion"
)

// nightOrder is the fixed sequence of role phases within a night.
var nightOrder = []Phase{
	PhaseNightWerewolf,
	PhaseNightDoctor,
	PhaseNightDetective,
	PhaseNightManiac,
}

// Terminal reports whether the phase ends automated play. The after-game
// discussion still accepts turns but never re-enters the protocol.
func (p Phase) Terminal() bool {
	return p == PhaseGameEnded || p == PhaseAfterGame
}

// Night reports whether the phase is one of the per-role night phases.
func (p Phase) Night() bool {
	for _, n := range nightOrder {
		if p == n {
			return true
		}
	}
	return false
}

// NightRole returns the role that acts during a night phase.
func (p Phase) NightRole() (Role, bool) {
	switch p {
	case PhaseNightWerewolf:
		return RoleWerewolf, true
	case PhaseNightDoctor:
		return RoleDoctor, true
	case PhaseNightDetective:
		return RoleDetective, true
	case PhaseNightManiac:
		return RoleManiac, true
	}
	return "", false
}

// NextNight returns the night phase following p, or PhaseNightResults when
// the per-role sequence is exhausted.
func (p Phase) NextNight() Phase {
	for i, n := range nightOrder {
		if p == n && i+1 < len(nightOrder) {
			return nightOrder[i+1]
		}
	}
	return PhaseNightResults
}
