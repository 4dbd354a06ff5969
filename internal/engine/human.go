package engine

import (
	"context"
	"fmt"

	"github.com/moonhollow/moonhollow/pkg/domain"
)

// SubmitHuman feeds the human participant's input into the game. The
// meaning of the input depends on the phase: free text during discussion,
// a target name during the vote or the human's own night phase. Automated
// advance never consumes the human's queue item; this is the only path
// that does.
func (s *Scheduler) SubmitHuman(ctx context.Context, gameID string, userTier domain.Tier, input string) (*domain.Game, error) {
	input, err := SanitizeInput(input)
	if err != nil {
		return nil, err
	}

	var game *domain.Game
	err = s.withLock(ctx, gameID, func(ctx context.Context) error {
		g, err := s.load(ctx, gameID, userTier)
		if err != nil {
			return err
		}
		game = g

		human := g.Human()
		if human == nil {
			return fmt.Errorf("game has no human participant")
		}
		if !human.IsAlive && g.Phase != domain.PhaseAfterGame {
			return fmt.Errorf("%s is eliminated and can no longer act", human.Name)
		}

		switch g.Phase {
		case domain.PhaseWelcome, domain.PhaseDayDiscussion, domain.PhaseAfterGame:
			g.RecordSpoke(human.Name)
			if err := s.append(ctx, g, &domain.GameMessage{
				Author:    human.Name,
				Recipient: domain.RecipientEveryone,
				Body:      input,
				Type:      domain.MessageAnswer,
				Day:       g.Day,
			}); err != nil {
				return err
			}
			return s.games.Save(ctx, g)

		case domain.PhaseVote:
			return s.submitHumanVote(ctx, g, human, input)

		case domain.PhaseNightWerewolf, domain.PhaseNightDoctor,
			domain.PhaseNightDetective, domain.PhaseNightManiac:
			return s.submitHumanNightAction(ctx, g, human, input)

		case domain.PhaseGameEnded:
			return domain.ErrGameEnded

		default:
			return fmt.Errorf("no human input accepted during %s", g.Phase)
		}
	})
	return game, err
}

func (s *Scheduler) submitHumanVote(ctx context.Context, g *domain.Game, human *domain.Participant, input string) error {
	step, ok := g.Steps.Current()
	if !ok || step != domain.StepCollectVotes || g.Actors.Done(human.Name) {
		return fmt.Errorf("no vote is pending for %s", human.Name)
	}

	target := canonicalName(g, input)
	if target == "" || target == human.Name {
		return fmt.Errorf("invalid vote target %q", input)
	}
	if tp := g.Participant(target); tp == nil || !tp.IsAlive {
		return fmt.Errorf("cannot vote for %s", input)
	}

	g.VotingHistory = append(g.VotingHistory, domain.VoteRecord{
		Day: g.Day, Voter: human.Name, Target: target,
	})
	if err := s.append(ctx, g, &domain.GameMessage{
		Author:    human.Name,
		Recipient: domain.RecipientEveryone,
		Body:      fmt.Sprintf("I vote to eliminate %s.", target),
		Type:      domain.MessageVote,
		Day:       g.Day,
	}); err != nil {
		return err
	}

	g.Actors.MarkDone(human.Name)
	if g.Actors.Empty() {
		s.advanceStep(g)
	}
	return s.games.Save(ctx, g)
}

func (s *Scheduler) submitHumanNightAction(ctx context.Context, g *domain.Game, human *domain.Participant, input string) error {
	role, _ := g.Phase.NightRole()
	if human.Role != role {
		return fmt.Errorf("%s has no action during %s", human.Name, g.Phase)
	}
	step, ok := g.Steps.Current()
	if !ok || step != domain.StepCollectAction || g.Actors.Done(human.Name) {
		return fmt.Errorf("no action is pending for %s", human.Name)
	}

	target := canonicalName(g, input)
	if target == "" {
		return fmt.Errorf("invalid target %q", input)
	}
	legal := false
	for _, candidate := range nightTargets(g, human) {
		if candidate == target {
			legal = true
			break
		}
	}
	if !legal {
		return fmt.Errorf("%s is not a legal target tonight", target)
	}

	if err := setNightChoice(g, human, target); err != nil {
		return err
	}
	if err := s.append(ctx, g, &domain.GameMessage{
		Author:    human.Name,
		Recipient: human.Name,
		Body:      fmt.Sprintf("Night %d: I choose %s.", g.Day, target),
		Type:      domain.MessageCommand,
		Day:       g.Day,
	}); err != nil {
		return err
	}

	g.Actors.MarkDone(human.Name)
	if g.Actors.Empty() {
		s.advanceStep(g)
	}
	return s.games.Save(ctx, g)
}
