package domain

// NightOutcome records whether a role action took effect.
type NightOutcome string

const (
	OutcomeSuccess NightOutcome = "success"
	OutcomeBlocked NightOutcome = "blocked"
)

// NightActionRecord is one resolved role action. Records feed the
// per-role-holder targeting constraints and the narrative output.
type NightActionRecord struct {
	Role    Role         `json:"role"`
	Actor   string       `json:"actor"`
	Target  string       `json:"target"`
	Night   int          `json:"night"`
	Outcome NightOutcome `json:"outcome"`
	// LinkedTo names another victim whose death the same night is causally
	// linked to this action. The linkage is internal bookkeeping only and is
	// never surfaced in any externally visible record.
	LinkedTo string `json:"linkedTo,omitempty"`
}

// DeathCause is the externally reported cause of a night death.
type DeathCause string

const (
	CauseWerewolfAttack   DeathCause = "werewolf-attack"
	CauseDoctorKill       DeathCause = "doctor-kill"
	CauseManiacCollateral DeathCause = "maniac-collateral"
)

// DetectiveVerdict summarizes the detective's night.
type DetectiveVerdict string

const (
	DetectiveFoundEvil     DetectiveVerdict = "FOUND_EVIL"
	DetectiveFoundInnocent DetectiveVerdict = "FOUND_INNOCENT"
	DetectiveBlocked       DetectiveVerdict = "BLOCKED"
	DetectiveInactive      DetectiveVerdict = "INACTIVE"
)

// NightChoices holds the targets picked during the per-role night phases,
// pending resolution at night results. Empty string means the role did not
// act (dead, absent, or abstained).
type NightChoices struct {
	WerewolfTarget  string `json:"werewolfTarget,omitempty"`
	DoctorTarget    string `json:"doctorTarget,omitempty"`
	DetectiveTarget string `json:"detectiveTarget,omitempty"`
	ManiacTarget    string `json:"maniacTarget,omitempty"`
}

// Reset clears all pending targets for a new night.
func (c *NightChoices) Reset() {
	*c = NightChoices{}
}
