package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/moonhollow/moonhollow/internal/testutils"
	"github.com/moonhollow/moonhollow/pkg/domain"
)

func TestSubmitHuman_Discussion(t *testing.T) {
	s, store := newTestScheduler(t, testutils.NewFakeProvider("fake", nil))
	g := fixedGame(t, s, store, domain.RoleVillager,
		bot("Bruno", domain.RoleWerewolf),
		bot("Clara", domain.RoleVillager),
		bot("Dmitri", domain.RoleVillager),
	)
	ctx := context.Background()

	loaded, _ := store.Load(ctx, g.ID)
	loaded.Day = 1
	s.enterPhase(loaded, domain.PhaseDayDiscussion)
	if err := store.Save(ctx, loaded); err != nil {
		t.Fatal(err)
	}

	updated, err := s.SubmitHuman(ctx, g.ID, domain.TierFree, "I think Bruno is hiding something.")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	msgs := transcript(t, store, g.ID)
	spoken := findMessage(msgs, "Bruno is hiding something")
	if spoken == nil {
		t.Fatal("human line missing from transcript")
	}
	if spoken.Author != "Ava" || spoken.Recipient != domain.RecipientEveryone {
		t.Fatalf("message = %+v", spoken)
	}
	if updated.LastSpoke["Ava"] != updated.Round {
		t.Fatal("fairness tracking skipped the human")
	}
}

func TestSubmitHuman_StripsControlCharacters(t *testing.T) {
	s, store := newTestScheduler(t, testutils.NewFakeProvider("fake", nil))
	g := fixedGame(t, s, store, domain.RoleVillager,
		bot("Bruno", domain.RoleWerewolf),
		bot("Clara", domain.RoleVillager),
		bot("Dmitri", domain.RoleVillager),
	)
	ctx := context.Background()

	loaded, _ := store.Load(ctx, g.ID)
	loaded.Day = 1
	s.enterPhase(loaded, domain.PhaseDayDiscussion)
	if err := store.Save(ctx, loaded); err != nil {
		t.Fatal(err)
	}

	if _, err := s.SubmitHuman(ctx, g.ID, domain.TierFree, "hello\x00\x07world"); err != nil {
		t.Fatal(err)
	}
	msgs := transcript(t, store, g.ID)
	if findMessage(msgs, "helloworld") == nil {
		t.Fatalf("control characters survived: %v", msgs)
	}
}

func TestSubmitHuman_Vote(t *testing.T) {
	s, store := newTestScheduler(t, testutils.NewFakeProvider("fake", nil))
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

	t.Run("self vote rejected", func(t *testing.T) {
		if _, err := s.SubmitHuman(ctx, g.ID, domain.TierFree, "Ava"); err == nil {
			t.Fatal("self vote accepted")
		}
	})
	t.Run("unknown target rejected", func(t *testing.T) {
		if _, err := s.SubmitHuman(ctx, g.ID, domain.TierFree, "Zelda"); err == nil {
			t.Fatal("unknown target accepted")
		}
	})
	t.Run("case-insensitive target", func(t *testing.T) {
		updated, err := s.SubmitHuman(ctx, g.ID, domain.TierFree, "  bruno ")
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		if len(updated.VotingHistory) != 1 {
			t.Fatalf("history = %v", updated.VotingHistory)
		}
		rec := updated.VotingHistory[0]
		if rec.Voter != "Ava" || rec.Target != "Bruno" || rec.Day != 1 {
			t.Fatalf("record = %+v", rec)
		}
	})
	t.Run("double vote rejected", func(t *testing.T) {
		if _, err := s.SubmitHuman(ctx, g.ID, domain.TierFree, "Clara"); err == nil {
			t.Fatal("second ballot accepted")
		}
	})
}

func TestSubmitHuman_DeadTargetRejected(t *testing.T) {
	s, store := newTestScheduler(t, testutils.NewFakeProvider("fake", nil))
	g := fixedGame(t, s, store, domain.RoleVillager,
		bot("Bruno", domain.RoleWerewolf),
		bot("Clara", domain.RoleVillager),
		bot("Dmitri", domain.RoleVillager),
	)
	ctx := context.Background()

	loaded, _ := store.Load(ctx, g.ID)
	loaded.Day = 2
	loaded.Eliminate("Clara")
	s.enterPhase(loaded, domain.PhaseVote)
	if err := store.Save(ctx, loaded); err != nil {
		t.Fatal(err)
	}

	if _, err := s.SubmitHuman(ctx, g.ID, domain.TierFree, "Clara"); err == nil {
		t.Fatal("vote for the dead accepted")
	}
}

func TestSubmitHuman_NightAction(t *testing.T) {
	s, store := newTestScheduler(t, testutils.NewFakeProvider("fake", nil))
	g := fixedGame(t, s, store, domain.RoleDoctor,
		bot("Bruno", domain.RoleWerewolf),
		bot("Clara", domain.RoleVillager),
		bot("Dmitri", domain.RoleVillager),
	)
	ctx := context.Background()

	loaded, _ := store.Load(ctx, g.ID)
	loaded.Day = 2
	human := loaded.Human()
	human.Knowledge.Protections = []domain.Protection{{Night: 1, Target: "Clara"}}
	s.enterPhase(loaded, domain.PhaseNightDoctor)
	if err := store.Save(ctx, loaded); err != nil {
		t.Fatal(err)
	}

	t.Run("consecutive protection rejected", func(t *testing.T) {
		if _, err := s.SubmitHuman(ctx, g.ID, domain.TierFree, "Clara"); err == nil {
			t.Fatal("repeat protection accepted")
		}
	})
	t.Run("legal protection recorded", func(t *testing.T) {
		updated, err := s.SubmitHuman(ctx, g.ID, domain.TierFree, "Dmitri")
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		if updated.NightChoices.DoctorTarget != "Dmitri" {
			t.Fatalf("choices = %+v", updated.NightChoices)
		}

		// The choice is logged privately, never broadcast.
		msgs := transcript(t, store, g.ID)
		choice := findMessage(msgs, "I choose Dmitri")
		if choice == nil {
			t.Fatal("night choice not logged")
		}
		if choice.Recipient != "Ava" || choice.Type != domain.MessageCommand {
			t.Fatalf("choice message = %+v", choice)
		}
	})
}

func TestSubmitHuman_WrongNightPhase(t *testing.T) {
	s, store := newTestScheduler(t, testutils.NewFakeProvider("fake", nil))
	g := fixedGame(t, s, store, domain.RoleVillager,
		bot("Bruno", domain.RoleWerewolf),
		bot("Clara", domain.RoleDoctor),
		bot("Dmitri", domain.RoleVillager),
	)
	ctx := context.Background()

	loaded, _ := store.Load(ctx, g.ID)
	loaded.Day = 1
	s.enterPhase(loaded, domain.PhaseNightWerewolf)
	if err := store.Save(ctx, loaded); err != nil {
		t.Fatal(err)
	}

	_, err := s.SubmitHuman(ctx, g.ID, domain.TierFree, "Clara")
	if err == nil || !strings.Contains(err.Error(), "no action") {
		t.Fatalf("err = %v, want role rejection", err)
	}
}

func TestSubmitHuman_GameEnded(t *testing.T) {
	s, store := newTestScheduler(t, testutils.NewFakeProvider("fake", nil))
	g := fixedGame(t, s, store, domain.RoleVillager,
		bot("Bruno", domain.RoleWerewolf),
		bot("Clara", domain.RoleVillager),
		bot("Dmitri", domain.RoleVillager),
	)
	ctx := context.Background()

	loaded, _ := store.Load(ctx, g.ID)
	s.enterPhase(loaded, domain.PhaseGameEnded)
	if err := store.Save(ctx, loaded); err != nil {
		t.Fatal(err)
	}

	_, err := s.SubmitHuman(ctx, g.ID, domain.TierFree, "hello?")
	if !errors.Is(err, domain.ErrGameEnded) {
		t.Fatalf("err = %v, want ErrGameEnded", err)
	}
}

func TestSubmitHuman_EliminatedHuman(t *testing.T) {
	s, store := newTestScheduler(t, testutils.NewFakeProvider("fake", nil))
	g := fixedGame(t, s, store, domain.RoleVillager,
		bot("Bruno", domain.RoleWerewolf),
		bot("Clara", domain.RoleVillager),
		bot("Dmitri", domain.RoleVillager),
	)
	ctx := context.Background()

	loaded, _ := store.Load(ctx, g.ID)
	loaded.Day = 1
	loaded.Eliminate("Ava")
	s.enterPhase(loaded, domain.PhaseDayDiscussion)
	if err := store.Save(ctx, loaded); err != nil {
		t.Fatal(err)
	}

	if _, err := s.SubmitHuman(ctx, g.ID, domain.TierFree, "boo"); err == nil {
		t.Fatal("dead human spoke during play")
	}

	// The after-game lounge is open to the dead.
	halted, _ := store.Load(ctx, g.ID)
	s.enterPhase(halted, domain.PhaseAfterGame)
	if err := store.Save(ctx, halted); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SubmitHuman(ctx, g.ID, domain.TierFree, "well played"); err != nil {
		t.Fatalf("after-game input rejected: %v", err)
	}
}
