package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/moonhollow/moonhollow/pkg/domain"
	"github.com/moonhollow/moonhollow/pkg/schema"
)

// voteBallot is the decoded shape of a structured vote reply.
type voteBallot struct {
	Target    string `mapstructure:"target"`
	Reasoning string `mapstructure:"reasoning"`
}

// applyVote records one validated ballot: a transcript entry plus the
// voting history row.
func (s *Scheduler) applyVote(ctx context.Context, g *domain.Game, p *domain.Participant, fields map[string]any) error {
	var ballot voteBallot
	if err := schema.Decode(fields, &ballot); err != nil {
		return err
	}

	target := canonicalName(g, ballot.Target)
	if target == "" {
		return fmt.Errorf("vote by %s: unknown target %q", p.Name, ballot.Target)
	}

	g.VotingHistory = append(g.VotingHistory, domain.VoteRecord{
		Day:    g.Day,
		Voter:  p.Name,
		Target: target,
	})

	return s.append(ctx, g, &domain.GameMessage{
		Author:    p.Name,
		Recipient: domain.RecipientEveryone,
		Body:      fmt.Sprintf("I vote to eliminate %s. %s", target, ballot.Reasoning),
		Type:      domain.MessageVote,
		Day:       g.Day,
	})
}

// runTally counts the day's ballots and eliminates the plurality target.
// An exact tie between leaders spares everyone for the day. After an
// elimination the win conditions are evaluated before night falls.
func (s *Scheduler) runTally(ctx context.Context, g *domain.Game) error {
	eliminated, counts := tallyVotes(g)

	if eliminated == "" {
		if err := s.narrate(ctx, g, "The vote is deadlocked. Nobody is eliminated today."); err != nil {
			return err
		}
		s.advanceStep(g)
		return nil
	}

	victim := g.Participant(eliminated)
	g.Eliminate(eliminated)
	if err := s.narrate(ctx, g, fmt.Sprintf(
		"The village has spoken: %s is eliminated with %d votes. %s was a %s.",
		eliminated, counts[eliminated], eliminated, victim.Role)); err != nil {
		return err
	}

	if verdict, ended := Evaluate(g); ended {
		return s.endGame(ctx, g, verdict)
	}

	s.advanceStep(g)
	return nil
}

// tallyVotes returns the plurality target of today's ballots, or "" on a
// tie or an empty ballot box. Counting is deterministic: ties are detected
// over sorted names.
func tallyVotes(g *domain.Game) (string, map[string]int) {
	counts := make(map[string]int)
	for _, rec := range g.VotingHistory {
		if rec.Day == g.Day {
			counts[rec.Target]++
		}
	}
	if len(counts) == 0 {
		return "", counts
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	leader, best, tied := "", 0, false
	for _, name := range names {
		switch {
		case counts[name] > best:
			leader, best, tied = name, counts[name], false
		case counts[name] == best:
			tied = true
		}
	}
	if tied {
		return "", counts
	}
	return leader, counts
}
