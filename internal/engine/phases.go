package engine

import (
	"math/rand"

	"github.com/moonhollow/moonhollow/pkg/domain"
)

// enterPhase positions the game at the start of a phase: its step queue is
// rebuilt and the actor queue is populated for the head step.
func (s *Scheduler) enterPhase(g *domain.Game, phase domain.Phase) {
	g.Phase = phase
	g.Actors.Clear()

	switch phase {
	case domain.PhaseWelcome:
		g.Steps = domain.NewStepQueue(domain.StepIntroductions)

	case domain.PhaseDayDiscussion:
		var steps []domain.Step
		for i := 0; i < s.tuning.RoundsPerDay; i++ {
			steps = append(steps, domain.StepSelectResponders, domain.StepCollectReplies)
		}
		g.Steps = domain.NewStepQueue(steps...)

	case domain.PhaseVote:
		g.Steps = domain.NewStepQueue(domain.StepCollectVotes, domain.StepTallyVotes)

	case domain.PhaseNightWerewolf, domain.PhaseNightDoctor,
		domain.PhaseNightDetective, domain.PhaseNightManiac:
		g.Steps = domain.NewStepQueue(domain.StepCollectAction)

	case domain.PhaseNightResults:
		g.Steps = domain.NewStepQueue(domain.StepResolveNight)

	case domain.PhaseGameEnded:
		g.Steps = domain.NewStepQueue(domain.StepAnnounceEnding)

	case domain.PhaseAfterGame:
		// Idle until a step request starts a social round.
		g.Steps = domain.NewStepQueue()
	}

	s.populateActors(g)
}

// enterAfterGameRound refills the after-game queues for one more social
// round. Dead bots participate; the game itself never re-enters play.
func (s *Scheduler) enterAfterGameRound(g *domain.Game) {
	g.Steps = domain.NewStepQueue(domain.StepSelectResponders, domain.StepCollectReplies)
	g.Actors.Clear()
}

// populateActors fills the actor queue for the current head step. Only
// living participants enter the queue (after-game excepted); the human is
// included only where the protocol owes them a turn.
func (s *Scheduler) populateActors(g *domain.Game) {
	step, ok := g.Steps.Current()
	if !ok {
		g.Actors.Clear()
		return
	}

	switch step {
	case domain.StepIntroductions:
		var names []string
		for _, p := range g.Participants {
			if p.IsAlive && !p.Human {
				names = append(names, p.Name)
			}
		}
		g.Actors = domain.NewActorQueue(names...)

	case domain.StepCollectVotes:
		var names []string
		for _, p := range g.Living() {
			names = append(names, p.Name)
		}
		g.Actors = domain.NewActorQueue(names...)

	case domain.StepCollectAction:
		role, ok := g.Phase.NightRole()
		if !ok {
			g.Actors.Clear()
			return
		}
		if holder := g.LivingWithRole(role); holder != nil {
			g.Actors = domain.NewActorQueue(holder.Name)
		} else {
			g.Actors.Clear()
		}

	default:
		// select_responders populates collect_replies itself; local steps
		// carry no actors.
		g.Actors.Clear()
	}
}

// advanceStep marks the current macro-step complete and prepares the next
// one, transitioning phases when the step queue is exhausted.
func (s *Scheduler) advanceStep(g *domain.Game) {
	g.Steps.Advance()
	if g.Steps.Empty() {
		s.transition(g)
		return
	}
	s.populateActors(g)
}

// transition moves the game to the phase following the current one. Night
// phases whose role has no living holder are skipped entirely.
func (s *Scheduler) transition(g *domain.Game) {
	switch g.Phase {
	case domain.PhaseWelcome:
		g.Day = 1
		g.Round = 0
		s.enterPhase(g, domain.PhaseDayDiscussion)

	case domain.PhaseDayDiscussion:
		s.enterPhase(g, domain.PhaseVote)

	case domain.PhaseVote:
		// Tally already ran as a local step; it transitions on a win.
		s.enterNight(g, domain.PhaseNightWerewolf)

	case domain.PhaseNightWerewolf, domain.PhaseNightDoctor,
		domain.PhaseNightDetective, domain.PhaseNightManiac:
		s.enterNight(g, g.Phase.NextNight())

	case domain.PhaseNightResults:
		// runNightResults owns this transition; reaching here means the
		// resolve step was consumed without resolution, which the resolve
		// step prevents.
		g.NightChoices.Reset()
		g.Day++
		g.Round = 0
		s.enterPhase(g, domain.PhaseDayDiscussion)

	case domain.PhaseGameEnded:
		s.enterPhase(g, domain.PhaseAfterGame)

	case domain.PhaseAfterGame:
		// Round complete; idle until the next request.
		g.Steps = domain.NewStepQueue()
		g.Actors.Clear()
	}
}

// enterNight enters the first night phase from the candidate onward whose
// role has a living holder, falling through to night results when none act.
func (s *Scheduler) enterNight(g *domain.Game, candidate domain.Phase) {
	for candidate != domain.PhaseNightResults {
		role, _ := candidate.NightRole()
		if g.LivingWithRole(role) != nil {
			s.enterPhase(g, candidate)
			return
		}
		candidate = candidate.NextNight()
	}
	s.enterPhase(g, domain.PhaseNightResults)
}

// runSelectResponders executes the delegated selection step: a bounded,
// deterministic subset of eligible speakers for the next discussion round.
func (s *Scheduler) runSelectResponders(g *domain.Game) {
	g.Round++
	speakers := selectResponders(g, s.tuning)
	g.Actors = domain.NewActorQueue(speakers...)
	g.Steps.Advance() // onto collect_replies
}

// selectResponders nominates 2-5 eligible bot speakers. Bots silent for
// FairnessRounds rounds are force-included. The choice is deterministic
// given the same game state and seed.
func selectResponders(g *domain.Game, tuning Tuning) []string {
	var eligible []string
	for _, p := range g.Participants {
		if p.Human {
			continue
		}
		if p.IsAlive || g.Phase == domain.PhaseAfterGame {
			eligible = append(eligible, p.Name)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	target := tuning.MaxResponders
	if len(eligible) < target {
		target = len(eligible)
	}
	if target < tuning.MinResponders && len(eligible) >= tuning.MinResponders {
		target = tuning.MinResponders
	}

	// Forced speakers first: anyone silent for FairnessRounds rounds.
	var forced, rest []string
	for _, name := range eligible {
		last, spoke := g.LastSpoke[name]
		if !spoke || g.Round-last > tuning.FairnessRounds {
			forced = append(forced, name)
		} else {
			rest = append(rest, name)
		}
	}

	selected := forced
	if len(selected) > target {
		selected = selected[:target]
	}

	rng := rand.New(rand.NewSource(g.Seed + int64(g.Day)*1009 + int64(g.Round)))
	rng.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
	for _, name := range rest {
		if len(selected) >= target {
			break
		}
		selected = append(selected, name)
	}
	return selected
}
