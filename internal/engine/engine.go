// Package engine drives games through the Werewolf turn protocol. Each
// scheduler step is short-lived and stateless: it reads the game fresh from
// the store, processes exactly one macro-step (or the dispatchable remainder
// of one), and writes the game back under an optimistic version check.
//
// Provider I/O never happens while the per-game lock is held. A step that
// needs agent calls plans them under the lock, releases it for the calls,
// then re-acquires it and verifies the queue state before applying results.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/moonhollow/moonhollow/internal/logging"
	"github.com/moonhollow/moonhollow/internal/metrics"
	"github.com/moonhollow/moonhollow/internal/tier"
	"github.com/moonhollow/moonhollow/pkg/agent"
	"github.com/moonhollow/moonhollow/pkg/domain"
	"github.com/moonhollow/moonhollow/pkg/ports"
	"github.com/moonhollow/moonhollow/pkg/schema"
)

// AgentFactory builds an agent for a resolved provider+model selector.
type AgentFactory func(sel domain.ModelSelector) (agent.Agent, error)

// Tuning holds the responder-selection and pacing knobs.
type Tuning struct {
	// MinResponders and MaxResponders bound the speaker subset per
	// discussion round.
	MinResponders int
	MaxResponders int
	// FairnessRounds force-includes a bot that has not spoken for this
	// many rounds.
	FairnessRounds int
	// RoundsPerDay is how many discussion rounds precede the vote.
	RoundsPerDay int
}

// DefaultTuning mirrors the production policy: 2-5 speakers, force-include
// after 2 silent rounds, 2 rounds per day.
func DefaultTuning() Tuning {
	return Tuning{MinResponders: 2, MaxResponders: 5, FairnessRounds: 2, RoundsPerDay: 2}
}

// Scheduler advances games. It is safe for concurrent use; per-game
// serialization comes from the locker plus the store's version check.
type Scheduler struct {
	games   ports.GameStore
	msgs    ports.MessageStore
	locker  ports.Locker
	agents  AgentFactory
	limiter *tier.Limiter
	metrics *metrics.Metrics
	logger  *slog.Logger
	tuning  Tuning
	lockTTL time.Duration
}

// Option configures the Scheduler.
type Option func(*Scheduler)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithTuning overrides the pacing knobs.
func WithTuning(t Tuning) Option {
	return func(s *Scheduler) { s.tuning = t }
}

// WithLockTTL overrides the per-game lock TTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(s *Scheduler) { s.lockTTL = ttl }
}

// NewScheduler wires a scheduler over its collaborators.
func NewScheduler(games ports.GameStore, msgs ports.MessageStore, locker ports.Locker,
	agents AgentFactory, limiter *tier.Limiter, opts ...Option) *Scheduler {
	s := &Scheduler{
		games:   games,
		msgs:    msgs,
		locker:  locker,
		agents:  agents,
		limiter: limiter,
		logger:  logging.NewNop(),
		tuning:  DefaultTuning(),
		lockTTL: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// turnCall is one planned agent invocation.
type turnCall struct {
	actor    string
	selector domain.ModelSelector
	history  []agent.Message
	schema   schema.Schema // nil means free-form
}

// turnResult pairs a call with its outcome, in paramQueue order.
type turnResult struct {
	actor  string
	reply  *agent.Reply
	fields map[string]any
	err    error
}

// stepPlan captures everything needed to dispatch outside the lock and to
// verify nothing moved underneath us before applying results.
type stepPlan struct {
	gameID string
	phase  domain.Phase
	step   domain.Step
	calls  []turnCall
}

// Step advances the game by one macro-step (or the dispatchable remainder
// of one). It returns the resulting game state. domain.ErrHumanTurn means
// automated advance is parked on the human participant.
func (s *Scheduler) Step(ctx context.Context, gameID string, userTier domain.Tier) (*domain.Game, error) {
	plan, game, err := s.plan(ctx, gameID, userTier)
	if err != nil || plan == nil {
		return game, err
	}

	results := s.dispatch(ctx, plan)

	return s.commit(ctx, plan, results, userTier)
}

// withLock runs fn while holding the per-game lock.
func (s *Scheduler) withLock(ctx context.Context, gameID string, fn func(context.Context) error) error {
	unlock, err := s.locker.Lock(ctx, gameID, s.lockTTL)
	if err != nil {
		return err
	}
	defer func() {
		if uerr := unlock(ctx); uerr != nil {
			s.logger.Warn("failed to release game lock (will expire via TTL)",
				"game", gameID, "err", uerr)
		}
	}()
	return fn(ctx)
}

// load fetches the game and verifies the caller's tier still matches.
func (s *Scheduler) load(ctx context.Context, gameID string, userTier domain.Tier) (*domain.Game, error) {
	game, err := s.games.Load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if err := s.limiter.CheckAccess(game.Tier, userTier); err != nil {
		return nil, err
	}
	return game, nil
}

// plan processes local steps to completion, or builds a dispatch plan for
// steps that need provider calls. A nil plan with nil error means the step
// completed (or halted) under the lock.
func (s *Scheduler) plan(ctx context.Context, gameID string, userTier domain.Tier) (*stepPlan, *domain.Game, error) {
	var (
		plan *stepPlan
		game *domain.Game
	)

	err := s.withLock(ctx, gameID, func(ctx context.Context) error {
		g, err := s.load(ctx, gameID, userTier)
		if err != nil {
			return err
		}
		game = g

		if g.ErrorState != nil {
			if !g.ErrorState.Recoverable {
				// Halted: the client reads the error and decides. The
				// failed item is still at the head of its queue.
				return nil
			}
			g.ClearError()
		}

		// After-game idles with empty queues; a step request starts a new
		// social round.
		if g.Phase == domain.PhaseAfterGame && g.Steps.Empty() {
			s.enterAfterGameRound(g)
		}

		step, ok := g.Steps.Current()
		if !ok {
			s.transition(g)
			s.metrics.Step(string(g.Phase))
			return s.games.Save(ctx, g)
		}

		switch step {
		case domain.StepSelectResponders:
			s.runSelectResponders(g)
			s.metrics.Step(string(g.Phase))
			return s.games.Save(ctx, g)

		case domain.StepTallyVotes:
			if err := s.runTally(ctx, g); err != nil {
				return err
			}
			s.metrics.Step(string(g.Phase))
			return s.games.Save(ctx, g)

		case domain.StepResolveNight:
			if err := s.runNightResults(ctx, g); err != nil {
				return err
			}
			s.metrics.Step(string(g.Phase))
			return s.games.Save(ctx, g)

		case domain.StepAnnounceEnding:
			if err := s.runAnnounceEnding(ctx, g); err != nil {
				return err
			}
			s.metrics.Step(string(g.Phase))
			return s.games.Save(ctx, g)

		default:
			// Dispatch steps: introductions, collect_replies,
			// collect_votes, collect_action.
			p, err := s.planDispatch(ctx, g, step)
			if err != nil {
				return err
			}
			if p == nil {
				// Nothing dispatchable was pending; the queue advanced
				// (or we park on the human).
				if human, ok := g.Actors.Current(); ok && human == g.HumanName {
					return domain.ErrHumanTurn
				}
				return s.games.Save(ctx, g)
			}
			plan = p
			return nil
		}
	})
	return plan, game, err
}

// planDispatch builds calls for every pending bot in the current step. It
// returns nil when no bot is pending: either the queue is exhausted (the
// step advances) or only the human remains (the caller parks).
func (s *Scheduler) planDispatch(ctx context.Context, g *domain.Game, step domain.Step) (*stepPlan, error) {
	pending := g.Actors.Pending()
	if len(pending) == 0 {
		s.advanceStep(g)
		return nil, nil
	}

	transcript, err := s.msgs.Messages(ctx, g.ID)
	if err != nil {
		return nil, err
	}

	plan := &stepPlan{gameID: g.ID, phase: g.Phase, step: step}
	for _, name := range pending {
		if name == g.HumanName {
			continue
		}
		p := g.Participant(name)
		if p == nil || !p.IsAlive && g.Phase != domain.PhaseAfterGame {
			// Dead participants are silently excluded.
			g.Actors.MarkDone(name)
			continue
		}

		if step == domain.StepCollectAction && len(nightTargets(g, p)) == 0 {
			// No legal target; the role sits the night out.
			g.Actors.MarkDone(name)
			continue
		}

		call := turnCall{actor: name, selector: p.Model}
		call.schema = stepSchema(g, step, p)
		call.history = buildHistory(g, transcript, p, stepInstruction(g, step, p))
		plan.calls = append(plan.calls, call)
	}

	if len(plan.calls) == 0 {
		if g.Actors.Empty() {
			s.advanceStep(g)
		}
		return nil, nil
	}
	return plan, nil
}

// dispatch runs all planned calls concurrently. Results keep plan order so
// the commit appends history deterministically by actor position, not by
// completion time.
func (s *Scheduler) dispatch(ctx context.Context, plan *stepPlan) []turnResult {
	results := make([]turnResult, len(plan.calls))

	grp, ctx := errgroup.WithContext(ctx)
	for i, call := range plan.calls {
		grp.Go(func() error {
			results[i] = s.call(ctx, plan, call)
			return nil
		})
	}
	_ = grp.Wait()

	return results
}

func (s *Scheduler) call(ctx context.Context, plan *stepPlan, call turnCall) turnResult {
	res := turnResult{actor: call.actor}

	bot, err := s.agents(call.selector)
	if err != nil {
		res.err = err
		return res
	}

	start := time.Now()
	if call.schema != nil {
		res.reply, res.fields, res.err = bot.AskWithSchema(ctx, call.schema, call.history)
	} else {
		res.reply, res.err = bot.Ask(ctx, call.history)
	}

	outcome := "ok"
	if res.err != nil {
		outcome = string(agent.KindOf(res.err))
		if outcome == "" {
			outcome = "error"
		}
	}
	var in, out int64
	if res.reply != nil {
		in, out = res.reply.Usage.InputTokens, res.reply.Usage.OutputTokens
	}
	s.metrics.Call(call.selector.Provider, call.selector.Model, outcome,
		time.Since(start).Seconds(), in, out)

	s.logger.Debug("agent turn",
		"game", plan.gameID, "phase", plan.phase, "step", plan.step,
		"actor", call.actor, "model", call.selector.Model, "outcome", outcome)
	return res
}

// commit re-acquires the lock, verifies the queue state is the one the plan
// was built against, and applies results in plan order. The first failed
// turn records the persisted error state and halts; its queue item stays
// put for retry.
func (s *Scheduler) commit(ctx context.Context, plan *stepPlan, results []turnResult, userTier domain.Tier) (*domain.Game, error) {
	var game *domain.Game
	err := s.withLock(ctx, plan.gameID, func(ctx context.Context) error {
		g, err := s.load(ctx, plan.gameID, userTier)
		if err != nil {
			return err
		}
		game = g

		step, ok := g.Steps.Current()
		if g.Phase != plan.phase || !ok || step != plan.step {
			// The game moved underneath us (reset, concurrent step).
			// Discard our results rather than corrupt the new state.
			return fmt.Errorf("game %s: %w", g.ID, domain.ErrVersionConflict)
		}

		for _, res := range results {
			if g.Actors.Done(res.actor) {
				continue
			}
			if res.err != nil {
				s.recordFailure(g, res)
				break
			}
			if err := s.applyTurn(ctx, g, plan.step, res); err != nil {
				return err
			}
			g.Actors.MarkDone(res.actor)
		}

		if g.ErrorState == nil && g.Actors.Empty() {
			s.advanceStep(g)
		}
		s.metrics.Step(string(g.Phase))
		return s.games.Save(ctx, g)
	})
	if err != nil {
		return game, err
	}

	// Park explicitly when only the human's turn remains.
	if game.ErrorState == nil {
		if head, ok := game.Actors.Current(); ok && head == game.HumanName {
			return game, domain.ErrHumanTurn
		}
	}
	return game, nil
}

func (s *Scheduler) recordFailure(g *domain.Game, res turnResult) {
	kind := agent.KindOf(res.err)
	recoverable := agent.Retryable(res.err) || kind == agent.KindSchemaValidation
	g.SetError(res.err, fmt.Sprintf("phase=%s actor=%s", g.Phase, res.actor), recoverable)
	s.metrics.StepError(string(kind))
	s.logger.Error("turn failed, halting auto-advance",
		"game", g.ID, "actor", res.actor, "recoverable", recoverable, "err", res.err)
}

// applyTurn folds one successful reply into the game: transcript append,
// usage accounting, and step-specific state.
func (s *Scheduler) applyTurn(ctx context.Context, g *domain.Game, step domain.Step, res turnResult) error {
	p := g.Participant(res.actor)
	if p == nil {
		return fmt.Errorf("unknown actor %q", res.actor)
	}
	if res.reply != nil {
		p.Usage.Add(res.reply.Usage)
	}

	switch step {
	case domain.StepIntroductions, domain.StepCollectReplies:
		if res.reply == nil {
			// The provider returned no content; an empty turn is allowed
			// in free-form discussion.
			return nil
		}
		g.RecordSpoke(p.Name)
		return s.append(ctx, g, &domain.GameMessage{
			Author:    p.Name,
			Recipient: domain.RecipientEveryone,
			Body:      res.reply.Text,
			Type:      domain.MessageAnswer,
			Day:       g.Day,
		})

	case domain.StepCollectVotes:
		return s.applyVote(ctx, g, p, res.fields)

	case domain.StepCollectAction:
		return s.applyNightAction(ctx, g, p, res.fields)
	}
	return nil
}

// append stores a transcript message; the store stamps seq and ID.
func (s *Scheduler) append(ctx context.Context, g *domain.Game, msg *domain.GameMessage) error {
	if msg.Day == 0 {
		msg.Day = g.Day
	}
	return s.msgs.Append(ctx, g.ID, msg)
}

// narrate appends a broadcast narrator message.
func (s *Scheduler) narrate(ctx context.Context, g *domain.Game, body string) error {
	return s.append(ctx, g, &domain.GameMessage{
		Author:    domain.GameMaster,
		Recipient: domain.RecipientEveryone,
		Body:      body,
		Type:      domain.MessageNarrative,
		Day:       g.Day,
	})
}

// canonicalName resolves a model-provided participant name to its canonical
// casing, or "" when no participant matches.
func canonicalName(g *domain.Game, raw string) string {
	trimmed := strings.TrimSpace(raw)
	for _, p := range g.Participants {
		if strings.EqualFold(p.Name, trimmed) {
			return p.Name
		}
	}
	return ""
}

// Game returns the current game state and transcript without advancing.
func (s *Scheduler) Game(ctx context.Context, gameID string, userTier domain.Tier) (*domain.Game, []domain.GameMessage, error) {
	game, err := s.load(ctx, gameID, userTier)
	if err != nil {
		return nil, nil, err
	}
	transcript, err := s.msgs.Messages(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	return game, transcript, nil
}
