package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/moonhollow/moonhollow/pkg/domain"
)

// Outcome names the terminal result of a game.
type Outcome string

const (
	OutcomeHumanEliminated Outcome = "human_eliminated"
	OutcomeVillageWins     Outcome = "village_wins"
	OutcomeWerewolvesWin   Outcome = "werewolves_win"
)

// RoleReveal is one row of the end-of-game reveal.
type RoleReveal struct {
	Name  string      `json:"name"`
	Role  domain.Role `json:"role"`
	Alive bool        `json:"alive"`
}

// Verdict is a matched win condition plus its narrative material.
type Verdict struct {
	Outcome   Outcome
	Narrative string
	Reveal    []RoleReveal
}

// winChecker is one condition in the priority list. It returns nil when the
// condition does not hold.
type winChecker func(g *domain.Game) *Verdict

// winCheckers is evaluated top to bottom; the first match terminates the
// game. Order matters: a dead human ends the game regardless of the numeric
// balance, so a board with the human dead and zero werewolves still reports
// the human's loss, never a village win.
var winCheckers = []winChecker{
	checkHumanEliminated,
	checkVillageWins,
	checkWerewolvesWin,
}

// Evaluate runs the priority-ordered win checkers. It reports the first
// matching verdict, or false while the game goes on.
//
// Werewolf victory uses the strict-majority policy: living werewolves
// greater than or equal to living non-werewolves wins, with no separate
// tie outcome.
func Evaluate(g *domain.Game) (*Verdict, bool) {
	for _, check := range winCheckers {
		if v := check(g); v != nil {
			v.Reveal = reveal(g)
			return v, true
		}
	}
	return nil, false
}

func checkHumanEliminated(g *domain.Game) *Verdict {
	human := g.Human()
	if human == nil || human.IsAlive {
		return nil
	}
	return &Verdict{
		Outcome:   OutcomeHumanEliminated,
		Narrative: fmt.Sprintf("%s has been eliminated. The game is over.", human.Name),
	}
}

func checkVillageWins(g *domain.Game) *Verdict {
	wolves, others := g.LivingCounts()
	if wolves == 0 && others > 0 {
		return &Verdict{
			Outcome:   OutcomeVillageWins,
			Narrative: "The last werewolf has fallen. The village wins.",
		}
	}
	return nil
}

func checkWerewolvesWin(g *domain.Game) *Verdict {
	wolves, others := g.LivingCounts()
	if wolves > 0 && wolves >= others {
		return &Verdict{
			Outcome:   OutcomeWerewolvesWin,
			Narrative: "The werewolves now hold the village. The werewolves win.",
		}
	}
	return nil
}

// reveal summarizes every participant's role and status for the ending
// narrative.
func reveal(g *domain.Game) []RoleReveal {
	out := make([]RoleReveal, 0, len(g.Participants))
	for _, p := range g.Participants {
		out = append(out, RoleReveal{Name: p.Name, Role: p.Role, Alive: p.IsAlive})
	}
	return out
}

// endGame moves the game into its terminal phase, queuing the ending
// announcement.
func (s *Scheduler) endGame(ctx context.Context, g *domain.Game, verdict *Verdict) error {
	if err := s.narrate(ctx, g, verdict.Narrative); err != nil {
		return err
	}
	g.NightChoices.Reset()
	s.enterPhase(g, domain.PhaseGameEnded)
	return nil
}

// runAnnounceEnding publishes the full role reveal and opens the after-game
// discussion.
func (s *Scheduler) runAnnounceEnding(ctx context.Context, g *domain.Game) error {
	var b strings.Builder
	b.WriteString("The roles are revealed:")
	for _, row := range reveal(g) {
		status := "survived"
		if !row.Alive {
			status = "eliminated"
		}
		fmt.Fprintf(&b, " %s was a %s (%s).", row.Name, row.Role, status)
	}
	if err := s.narrate(ctx, g, b.String()); err != nil {
		return err
	}

	s.enterPhase(g, domain.PhaseAfterGame)
	return nil
}
