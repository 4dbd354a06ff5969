package graph

import (
	"fmt"
	"strings"

	"github.com/moonhollow/moonhollow/pkg/domain"
)

// Overlay contains dynamic state data to visualize on the phase diagram.
type Overlay struct {
	VisitedPhases []domain.Phase
	CurrentPhase  domain.Phase
}

// edge is one transition of the phase machine.
type edge struct {
	from, to domain.Phase
	label    string
}

var phaseEdges = []edge{
	{domain.PhaseWelcome, domain.PhaseDayDiscussion, ""},
	{domain.PhaseDayDiscussion, domain.PhaseVote, ""},
	{domain.PhaseVote, domain.PhaseNightWerewolf, ""},
	{domain.PhaseNightWerewolf, domain.PhaseNightDoctor, ""},
	{domain.PhaseNightDoctor, domain.PhaseNightDetective, ""},
	{domain.PhaseNightDetective, domain.PhaseNightManiac, ""},
	{domain.PhaseNightManiac, domain.PhaseNightResults, ""},
	{domain.PhaseNightResults, domain.PhaseDayDiscussion, "no winner"},
	{domain.PhaseVote, domain.PhaseGameEnded, "winner"},
	{domain.PhaseNightResults, domain.PhaseGameEnded, "winner"},
	{domain.PhaseGameEnded, domain.PhaseAfterGame, ""},
}

// GenerateMermaid produces a Mermaid flowchart of the game's phase machine.
// Shapes carry meaning:
// - Welcome: ((Circle))
// - Night phases: [[Subroutine]]
// - Phases that accept human input: [/Parallelogram/]
// - Default: [Rectangle]
// An overlay marks phases the game has passed through and the current one.
func GenerateMermaid(overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	phases := []domain.Phase{
		domain.PhaseWelcome,
		domain.PhaseDayDiscussion,
		domain.PhaseVote,
		domain.PhaseNightWerewolf,
		domain.PhaseNightDoctor,
		domain.PhaseNightDetective,
		domain.PhaseNightManiac,
		domain.PhaseNightResults,
		domain.PhaseGameEnded,
		domain.PhaseAfterGame,
	}

	for _, phase := range phases {
		safeID := sanitizeMermaidID(string(phase))

		opener, closer := "[", "]"
		switch {
		case phase == domain.PhaseWelcome:
			opener, closer = "((", "))"
		case phase.Night() || phase == domain.PhaseNightResults:
			opener, closer = "[[", "]]"
		case phase == domain.PhaseDayDiscussion || phase == domain.PhaseVote ||
			phase == domain.PhaseAfterGame:
			opener, closer = "[/", "/]"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, phase, closer))
	}

	for _, e := range phaseEdges {
		arrow := "-->"
		if e.label != "" {
			arrow = fmt.Sprintf("-- \"%s\" -->", e.label)
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n",
			sanitizeMermaidID(string(e.from)), arrow, sanitizeMermaidID(string(e.to))))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text for contrast regardless of theme.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, phase := range overlay.VisitedPhases {
			safeID := sanitizeMermaidID(string(phase))
			if !visitedSet[safeID] && safeID != "" {
				visitedSet[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s visited;\n", safeID))
			}
		}
		if overlay.CurrentPhase != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n",
				sanitizeMermaidID(string(overlay.CurrentPhase))))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	return s
}
