package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/moonhollow/moonhollow/internal/testutils"
	"github.com/moonhollow/moonhollow/internal/tier"
	"github.com/moonhollow/moonhollow/pkg/adapters/memory"
	"github.com/moonhollow/moonhollow/pkg/agent"
	"github.com/moonhollow/moonhollow/pkg/domain"
)

func testLimiter(opts ...tier.Option) *tier.Limiter {
	return tier.New(tier.Catalog{
		"fake-model": {Provider: "fake", PerGameCap: tier.CapUnlimited},
	}, opts...)
}

func newTestScheduler(t *testing.T, provider agent.Provider, opts ...Option) (*Scheduler, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	s := NewScheduler(store, store, memory.NewLocker(),
		testutils.Factory(provider), testLimiter(), opts...)
	return s, store
}

func fakeModel() domain.ModelSelector {
	return domain.ModelSelector{Provider: "fake", Model: "fake-model"}
}

func bot(name string, role domain.Role) *domain.Participant {
	return &domain.Participant{Name: name, Role: role, IsAlive: true, Model: fakeModel()}
}

// fixedGame seeds a game with a known table, bypassing role shuffling.
func fixedGame(t *testing.T, s *Scheduler, store *memory.Store, humanRole domain.Role, bots ...*domain.Participant) *domain.Game {
	t.Helper()
	g := &domain.Game{
		ID:        "game-1",
		Tier:      domain.TierFree,
		HumanName: "Ava",
		Seed:      7,
		CreatedAt: time.Now().UTC(),
	}
	g.Participants = append(g.Participants, &domain.Participant{
		Name: "Ava", Role: humanRole, Human: true, IsAlive: true,
	})
	g.Participants = append(g.Participants, bots...)
	s.enterPhase(g, domain.PhaseWelcome)
	if err := store.Create(context.Background(), g); err != nil {
		t.Fatal(err)
	}
	return g
}

// speakerName recovers the acting participant from the system briefing.
func speakerName(history []agent.Message) string {
	const prefix = "You are "
	head := history[0].Content
	if !strings.HasPrefix(head, prefix) {
		return ""
	}
	rest := head[len(prefix):]
	if i := strings.Index(rest, ","); i > 0 {
		return rest[:i]
	}
	return rest
}

// script drives the bots through a deterministic match.
type script struct {
	mu        sync.Mutex
	votes     map[string]string
	wolfKill  string
	protect   string
	sleuth    string
	abduct    string
}

func (sc *script) setVotes(votes map[string]string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.votes = votes
}

func (sc *script) handle(_ string, history []agent.Message) (*agent.Reply, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	actor := speakerName(history)
	last := history[len(history)-1].Content
	switch {
	case strings.Contains(last, "Introduce yourself"):
		return testutils.TextReply("Greetings, I am " + actor + "."), nil
	case strings.Contains(last, "Voting is open"):
		return testutils.TargetReply(sc.votes[actor], "my suspicion"), nil
	case strings.Contains(last, "victim"):
		return testutils.TargetReply(sc.wolfKill, "the biggest threat"), nil
	case strings.Contains(last, "protect"):
		return testutils.TargetReply(sc.protect, "a likely target"), nil
	case strings.Contains(last, "investigate"):
		return testutils.TargetReply(sc.sleuth, "acting oddly"), nil
	case strings.Contains(last, "abduct"):
		return testutils.TargetReply(sc.abduct, "tonight's guest"), nil
	default:
		return testutils.TextReply(actor + " watches the others carefully."), nil
	}
}

// stepUntil advances the game until it reaches the wanted phase, answering
// human turns through the callback.
func stepUntil(t *testing.T, s *Scheduler, gameID string, want domain.Phase, human func(g *domain.Game) string) *domain.Game {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		g, err := s.Step(ctx, gameID, domain.TierFree)
		if errors.Is(err, domain.ErrHumanTurn) {
			if human == nil {
				t.Fatal("human turn reached without a scripted answer")
			}
			if _, err := s.SubmitHuman(ctx, gameID, domain.TierFree, human(g)); err != nil {
				t.Fatalf("submit human: %v", err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("step: %v", err)
		}
		if g.ErrorState != nil {
			t.Fatalf("game halted: %+v", g.ErrorState)
		}
		if g.Phase == want {
			return g
		}
	}
	t.Fatalf("game never reached phase %s", want)
	return nil
}

func transcript(t *testing.T, store *memory.Store, gameID string) []domain.GameMessage {
	t.Helper()
	msgs, err := store.Messages(context.Background(), gameID)
	if err != nil {
		t.Fatal(err)
	}
	return msgs
}

func findMessage(msgs []domain.GameMessage, substr string) *domain.GameMessage {
	for i := range msgs {
		if strings.Contains(msgs[i].Body, substr) {
			return &msgs[i]
		}
	}
	return nil
}

func TestScheduler_FullMatch(t *testing.T) {
	sc := &script{
		wolfKill: "Dmitri",
		protect:  "Dmitri",
		sleuth:   "Bruno",
	}
	provider := testutils.NewFakeProvider("fake", sc.handle)
	s, store := newTestScheduler(t, provider)

	g := fixedGame(t, s, store, domain.RoleVillager,
		bot("Bruno", domain.RoleWerewolf),
		bot("Clara", domain.RoleDoctor),
		bot("Dmitri", domain.RoleDetective),
		bot("Elena", domain.RoleVillager),
	)
	ctx := context.Background()

	// Welcome resolves in a single step: every bot introduces itself and
	// day one begins.
	g, err := s.Step(ctx, g.ID, domain.TierFree)
	if err != nil {
		t.Fatalf("welcome step: %v", err)
	}
	if g.Phase != domain.PhaseDayDiscussion || g.Day != 1 {
		t.Fatalf("after welcome: phase=%s day=%d", g.Phase, g.Day)
	}
	msgs := transcript(t, store, g.ID)
	if findMessage(msgs, "Greetings, I am Bruno.") == nil {
		t.Fatal("missing introduction")
	}

	// Day one: discussion, then the vote turns on Elena.
	sc.setVotes(map[string]string{
		"Bruno": "Elena", "Clara": "Elena", "Dmitri": "Elena", "Elena": "Bruno",
	})
	g = stepUntil(t, s, g.ID, domain.PhaseNightWerewolf, func(*domain.Game) string {
		return "Elena"
	})
	if elena := g.Participant("Elena"); elena.IsAlive {
		t.Fatal("Elena survived a 4-vote plurality")
	}
	msgs = transcript(t, store, g.ID)
	if findMessage(msgs, "Elena is eliminated with 4 votes") == nil {
		t.Fatal("missing elimination narrative")
	}

	// Night one: the doctor guesses right and the detective unmasks the
	// wolf. No maniac is seated, so that phase is skipped entirely.
	g = stepUntil(t, s, g.ID, domain.PhaseDayDiscussion, nil)
	if g.Day != 2 {
		t.Fatalf("day after first night = %d, want 2", g.Day)
	}
	if dmitri := g.Participant("Dmitri"); !dmitri.IsAlive {
		t.Fatal("protected victim died")
	}
	msgs = transcript(t, store, g.ID)
	quiet := findMessage(msgs, "A quiet night: everyone wakes unharmed.")
	if quiet == nil {
		t.Fatal("missing quiet-night narrative")
	}
	verdict := findMessage(msgs, "Your investigation: Bruno is a werewolf.")
	if verdict == nil {
		t.Fatal("missing detective result")
	}
	if verdict.Recipient != "Dmitri" {
		t.Fatalf("investigation leaked to %q", verdict.Recipient)
	}
	detective := g.Participant("Dmitri")
	if len(detective.Knowledge.Investigations) != 1 || !detective.Knowledge.Investigations[0].Evil {
		t.Fatalf("detective knowledge = %+v", detective.Knowledge)
	}

	// Day two: the village lynches the wolf and wins.
	sc.setVotes(map[string]string{
		"Bruno": "Clara", "Clara": "Bruno", "Dmitri": "Bruno",
	})
	g = stepUntil(t, s, g.ID, domain.PhaseGameEnded, func(*domain.Game) string {
		return "Bruno"
	})
	msgs = transcript(t, store, g.ID)
	if findMessage(msgs, "The last werewolf has fallen. The village wins.") == nil {
		t.Fatal("missing victory narrative")
	}

	// The ending announcement reveals every role and opens the after-game.
	g, err = s.Step(ctx, g.ID, domain.TierFree)
	if err != nil {
		t.Fatalf("announce step: %v", err)
	}
	if g.Phase != domain.PhaseAfterGame {
		t.Fatalf("after announcement: %s", g.Phase)
	}
	msgs = transcript(t, store, g.ID)
	reveal := findMessage(msgs, "The roles are revealed:")
	if reveal == nil {
		t.Fatal("missing role reveal")
	}
	if !strings.Contains(reveal.Body, "Bruno was a werewolf (eliminated)") {
		t.Fatalf("reveal body: %s", reveal.Body)
	}

	// Bot usage accumulated across the match.
	for _, name := range []string{"Bruno", "Clara", "Dmitri"} {
		if g.Participant(name).Usage.TotalTokens == 0 {
			t.Fatalf("%s has no usage on the books", name)
		}
	}
	if g.Human().Usage.TotalTokens != 0 {
		t.Fatal("human accrued token usage")
	}
}

func TestScheduler_AfterGameBanter(t *testing.T) {
	provider := testutils.NewFakeProvider("fake", nil)
	s, store := newTestScheduler(t, provider)
	g := fixedGame(t, s, store, domain.RoleVillager,
		bot("Bruno", domain.RoleWerewolf),
		bot("Clara", domain.RoleVillager),
		bot("Dmitri", domain.RoleVillager),
	)
	ctx := context.Background()

	loaded, _ := store.Load(ctx, g.ID)
	loaded.Eliminate("Bruno")
	s.enterPhase(loaded, domain.PhaseAfterGame)
	if err := store.Save(ctx, loaded); err != nil {
		t.Fatal(err)
	}

	before := len(transcript(t, store, g.ID))

	// One step opens a social round, the next collects the replies. Dead
	// bots speak here too.
	if _, err := s.Step(ctx, g.ID, domain.TierFree); err != nil {
		t.Fatalf("round open: %v", err)
	}
	after, err := s.Step(ctx, g.ID, domain.TierFree)
	if err != nil {
		t.Fatalf("round replies: %v", err)
	}
	if after.Phase != domain.PhaseAfterGame {
		t.Fatalf("phase = %s", after.Phase)
	}
	if got := len(transcript(t, store, g.ID)); got <= before {
		t.Fatal("after-game round produced no messages")
	}
}

func TestScheduler_HumanTurnIsIdempotent(t *testing.T) {
	sc := &script{}
	sc.setVotes(map[string]string{"Bruno": "Clara", "Clara": "Bruno", "Dmitri": "Bruno"})
	provider := testutils.NewFakeProvider("fake", sc.handle)
	s, store := newTestScheduler(t, provider)
	g := fixedGame(t, s, store, domain.RoleVillager,
		bot("Bruno", domain.RoleWerewolf),
		bot("Clara", domain.RoleVillager),
		bot("Dmitri", domain.RoleVillager),
	)
	ctx := context.Background()

	loaded, _ := store.Load(ctx, g.ID)
	loaded.Day = 1
	s.enterPhase(loaded, domain.PhaseVote)
	if err := store.Save(ctx, loaded); err != nil {
		t.Fatal(err)
	}

	// The bots vote; the step parks on the human.
	_, err := s.Step(ctx, g.ID, domain.TierFree)
	if !errors.Is(err, domain.ErrHumanTurn) {
		t.Fatalf("err = %v, want ErrHumanTurn", err)
	}

	// Stepping again must not re-dispatch the finished bots.
	_, err = s.Step(ctx, g.ID, domain.TierFree)
	if !errors.Is(err, domain.ErrHumanTurn) {
		t.Fatalf("second step err = %v, want ErrHumanTurn", err)
	}
	current, _ := store.Load(ctx, g.ID)
	if got := len(current.VotingHistory); got != 3 {
		t.Fatalf("bot ballots = %d, want 3", got)
	}
}

func TestScheduler_NonRecoverableFailureHalts(t *testing.T) {
	provider := testutils.NewFakeProvider("fake", func(string, []agent.Message) (*agent.Reply, error) {
		return nil, agent.NewError(agent.KindAuthentication, "fake", "fake-model", "bad key", nil)
	})
	s, store := newTestScheduler(t, provider)
	g := fixedGame(t, s, store, domain.RoleVillager,
		bot("Bruno", domain.RoleWerewolf),
		bot("Clara", domain.RoleVillager),
		bot("Dmitri", domain.RoleVillager),
	)
	ctx := context.Background()

	stepped, err := s.Step(ctx, g.ID, domain.TierFree)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if stepped.ErrorState == nil || stepped.ErrorState.Recoverable {
		t.Fatalf("error state = %+v, want non-recoverable", stepped.ErrorState)
	}

	// A halted game does not advance; the failed item stays queued.
	again, err := s.Step(ctx, g.ID, domain.TierFree)
	if err != nil {
		t.Fatalf("halted step: %v", err)
	}
	if again.ErrorState == nil {
		t.Fatal("halt cleared without intervention")
	}
	if again.Phase != domain.PhaseWelcome {
		t.Fatalf("halted game advanced to %s", again.Phase)
	}
	if len(provider.Calls()) != 3 {
		t.Fatalf("provider calls = %d, want 3 (no retry while halted)", len(provider.Calls()))
	}
}

func TestScheduler_RecoverableFailureRetries(t *testing.T) {
	failed := false
	var mu sync.Mutex
	provider := testutils.NewFakeProvider("fake", func(_ string, history []agent.Message) (*agent.Reply, error) {
		mu.Lock()
		defer mu.Unlock()
		if !failed {
			failed = true
			return nil, agent.NewError(agent.KindRateLimit, "fake", "fake-model", "slow down", nil)
		}
		return testutils.TextReply("I am " + speakerName(history) + "."), nil
	})
	s, store := newTestScheduler(t, provider)
	g := fixedGame(t, s, store, domain.RoleVillager,
		bot("Bruno", domain.RoleWerewolf),
		bot("Clara", domain.RoleVillager),
		bot("Dmitri", domain.RoleVillager),
	)
	ctx := context.Background()

	stepped, err := s.Step(ctx, g.ID, domain.TierFree)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if stepped.ErrorState == nil || !stepped.ErrorState.Recoverable {
		t.Fatalf("error state = %+v, want recoverable", stepped.ErrorState)
	}

	// The next step clears the error and retries the failed turn.
	retried, err := s.Step(ctx, g.ID, domain.TierFree)
	if err != nil {
		t.Fatalf("retry step: %v", err)
	}
	if retried.ErrorState != nil {
		t.Fatalf("error persisted after retry: %+v", retried.ErrorState)
	}
	if retried.Phase != domain.PhaseDayDiscussion {
		t.Fatalf("phase after retry = %s", retried.Phase)
	}

	// Each bot spoke exactly once despite the partial first attempt.
	msgs := transcript(t, store, g.ID)
	for _, name := range []string{"Bruno", "Clara", "Dmitri"} {
		count := 0
		for _, m := range msgs {
			if m.Author == name {
				count++
			}
		}
		if count != 1 {
			t.Fatalf("%s spoke %d times, want 1", name, count)
		}
	}
}

func TestScheduler_CommitRejectsMovedGame(t *testing.T) {
	provider := testutils.NewFakeProvider("fake", nil)
	s, store := newTestScheduler(t, provider)
	g := fixedGame(t, s, store, domain.RoleVillager,
		bot("Bruno", domain.RoleWerewolf),
		bot("Clara", domain.RoleVillager),
		bot("Dmitri", domain.RoleVillager),
	)
	ctx := context.Background()

	// A plan built against the welcome phase, applied after the game moved
	// on, must be rejected wholesale.
	plan := &stepPlan{
		gameID: g.ID,
		phase:  domain.PhaseWelcome,
		step:   domain.StepIntroductions,
		calls:  []turnCall{{actor: "Bruno", selector: fakeModel()}},
	}
	results := []turnResult{{actor: "Bruno", reply: testutils.TextReply("late")}}

	moved, _ := store.Load(ctx, g.ID)
	moved.Day = 1
	s.enterPhase(moved, domain.PhaseVote)
	if err := store.Save(ctx, moved); err != nil {
		t.Fatal(err)
	}

	_, err := s.commit(ctx, plan, results, domain.TierFree)
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("err = %v, want version conflict", err)
	}
	if m := findMessage(transcript(t, store, g.ID), "late"); m != nil {
		t.Fatal("stale result reached the transcript")
	}
}

func TestScheduler_TierMismatchFailsClosed(t *testing.T) {
	provider := testutils.NewFakeProvider("fake", nil)
	s, store := newTestScheduler(t, provider)
	g := fixedGame(t, s, store, domain.RoleVillager,
		bot("Bruno", domain.RoleWerewolf),
		bot("Clara", domain.RoleVillager),
		bot("Dmitri", domain.RoleVillager),
	)

	_, err := s.Step(context.Background(), g.ID, domain.TierUnlimited)
	if !errors.Is(err, tier.ErrTierMismatch) {
		t.Fatalf("err = %v, want tier mismatch", err)
	}
}
