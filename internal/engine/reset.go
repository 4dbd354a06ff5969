package engine

import (
	"context"
	"fmt"

	"github.com/moonhollow/moonhollow/internal/tier"
	"github.com/moonhollow/moonhollow/pkg/domain"
)

// Reset rewinds the game to the moment just after the named message.
// Everything that happened later is discarded: later transcript entries,
// same-day eliminations, same-day votes and night records. Token usage
// accrued by the discarded turns is deliberately kept, so cost only ever
// grows. Resets are rationed per game-day on limited tiers. A game whose
// rewound board still meets a win condition stays finished and lands in
// after-game discussion.
func (s *Scheduler) Reset(ctx context.Context, gameID string, userTier domain.Tier, messageID string) (*domain.Game, error) {
	var game *domain.Game
	err := s.withLock(ctx, gameID, func(ctx context.Context) error {
		g, err := s.load(ctx, gameID, userTier)
		if err != nil {
			return err
		}
		game = g

		if allowance := s.limiter.ResetAllowance(g.Tier); allowance != tier.CapUnlimited {
			if g.ResetCounts[g.Day] >= allowance {
				return domain.ErrResetLimit
			}
		}

		anchor, err := s.findMessage(ctx, g.ID, messageID)
		if err != nil {
			return err
		}
		if anchor.Day < g.Day {
			return fmt.Errorf("cannot rewind past day %d into day %d", g.Day, anchor.Day)
		}

		removed, err := s.msgs.DeleteAfter(ctx, g.ID, messageID)
		if err != nil {
			return err
		}

		wasAfterGame := g.Phase == domain.PhaseAfterGame
		day := g.Day
		revived := g.RestoreSameDay(day)
		g.VotingHistory = pruneVotes(g.VotingHistory, day)
		g.NightRecords = pruneNightRecords(g.NightRecords, day)
		prunePlayerHistory(g, day)
		g.NightChoices.Reset()
		g.Steps = domain.StepQueue{}
		g.Actors.Clear()
		g.ClearError()

		g.Round = 0
		// A finished game never reopens. The rewind resumes day discussion
		// only when the revived board no longer satisfies a win condition
		// and the table had not already moved on to after-game banter.
		if _, over := Evaluate(g); over || wasAfterGame {
			s.enterPhase(g, domain.PhaseAfterGame)
		} else {
			s.enterPhase(g, domain.PhaseDayDiscussion)
		}
		if g.ResetCounts == nil {
			g.ResetCounts = map[int]int{}
		}
		g.ResetCounts[day]++

		s.logger.Info("game rewound",
			"game", g.ID, "day", day, "anchor", messageID,
			"messagesRemoved", removed, "revived", revived)
		return s.games.Save(ctx, g)
	})
	return game, err
}

func (s *Scheduler) findMessage(ctx context.Context, gameID, messageID string) (*domain.GameMessage, error) {
	transcript, err := s.msgs.Messages(ctx, gameID)
	if err != nil {
		return nil, err
	}
	for i := range transcript {
		if transcript[i].ID == messageID {
			return &transcript[i], nil
		}
	}
	return nil, domain.ErrMessageNotFound
}

func pruneVotes(records []domain.VoteRecord, day int) []domain.VoteRecord {
	kept := records[:0]
	for _, rec := range records {
		if rec.Day < day {
			kept = append(kept, rec)
		}
	}
	return kept
}

func pruneNightRecords(records []domain.NightActionRecord, day int) []domain.NightActionRecord {
	kept := records[:0]
	for _, rec := range records {
		if rec.Night < day {
			kept = append(kept, rec)
		}
	}
	return kept
}

// prunePlayerHistory drops per-participant knowledge gathered during the
// rewound day so a replay cannot leak discarded information.
func prunePlayerHistory(g *domain.Game, day int) {
	for _, p := range g.Participants {
		inv := p.Knowledge.Investigations[:0]
		for _, rec := range p.Knowledge.Investigations {
			if rec.Night < day {
				inv = append(inv, rec)
			}
		}
		p.Knowledge.Investigations = inv

		prot := p.Knowledge.Protections[:0]
		for _, rec := range p.Knowledge.Protections {
			if rec.Night < day {
				prot = append(prot, rec)
			}
		}
		p.Knowledge.Protections = prot
	}
}
