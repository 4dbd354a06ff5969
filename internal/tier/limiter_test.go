package tier

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/moonhollow/moonhollow/pkg/domain"
)

func testCatalog() Catalog {
	return Catalog{
		"swift-1":   {Provider: "acme", PerGameCap: CapUnlimited},
		"deep-1":    {Provider: "acme", PerGameCap: 1},
		"deep-2":    {Provider: "acme", PerGameCap: 2},
		"closed-1":  {Provider: "acme", PerGameCap: 0},
		"premium-1": {Provider: "acme", Tiers: []domain.Tier{domain.TierUnlimited}, PerGameCap: CapUnlimited},
	}
}

func sel(model string) domain.ModelSelector {
	return domain.ModelSelector{Provider: "acme", Model: model}
}

func TestValidate_Caps(t *testing.T) {
	l := New(testCatalog())

	tests := []struct {
		name    string
		gm      domain.ModelSelector
		bots    []domain.ModelSelector
		wantCap int // -2 means no error expected
	}{
		{"all unlimited", sel("swift-1"), []domain.ModelSelector{sel("swift-1"), sel("swift-1")}, -2},
		{"cap honored", sel("swift-1"), []domain.ModelSelector{sel("deep-2"), sel("deep-2")}, -2},
		{"cap exceeded", sel("swift-1"), []domain.ModelSelector{sel("deep-2"), sel("deep-2"), sel("deep-2")}, 2},
		{"single-use duplicated", sel("deep-1"), []domain.ModelSelector{sel("deep-1")}, 1},
		{"forbidden model", sel("swift-1"), []domain.ModelSelector{sel("closed-1")}, 0},
		{"unknown model", sel("swift-1"), []domain.ModelSelector{sel("mystery")}, 0},
		{"tier gated", sel("swift-1"), []domain.ModelSelector{sel("premium-1")}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := l.Validate(domain.TierFree, tc.gm, tc.bots)
			if tc.wantCap == -2 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var capErr *CapError
			if !errors.As(err, &capErr) {
				t.Fatalf("expected CapError, got %v", err)
			}
			if capErr.Cap != tc.wantCap {
				t.Fatalf("cap = %d, want %d", capErr.Cap, tc.wantCap)
			}
		})
	}
}

func TestValidate_UnlimitedTierBypassesCaps(t *testing.T) {
	l := New(testCatalog())
	bots := []domain.ModelSelector{sel("deep-1"), sel("deep-1"), sel("closed-1"), sel("premium-1")}
	if err := l.Validate(domain.TierUnlimited, sel("deep-1"), bots); err != nil {
		t.Fatalf("unlimited tier hit a cap: %v", err)
	}
}

func TestValidate_RejectsUnresolvedRandom(t *testing.T) {
	l := New(testCatalog())
	err := l.Validate(domain.TierUnlimited, sel(domain.SelectorRandom), nil)
	if !errors.Is(err, ErrUnresolvedRandom) {
		t.Fatalf("expected ErrUnresolvedRandom, got %v", err)
	}
}

func TestCapError_Messages(t *testing.T) {
	tests := []struct {
		cap  int
		want string
	}{
		{0, `model "m" is not available on this tier`},
		{1, `model "m" can only be used once per game`},
		{3, `model "m" can only be used 3 times per game`},
	}
	for _, tc := range tests {
		err := &CapError{Model: "m", Cap: tc.cap}
		if err.Error() != tc.want {
			t.Errorf("cap %d message = %q, want %q", tc.cap, err.Error(), tc.want)
		}
	}
}

func TestCandidateModels(t *testing.T) {
	l := New(testCatalog())

	free := l.CandidateModels(domain.TierFree)
	want := []string{"deep-1", "deep-2", "swift-1"}
	if len(free) != len(want) {
		t.Fatalf("free candidates = %v, want %v", free, want)
	}
	for i := range want {
		if free[i] != want[i] {
			t.Fatalf("free candidates = %v, want %v", free, want)
		}
	}

	// The unlimited tier also sees forbidden and gated models.
	all := l.CandidateModels(domain.TierUnlimited)
	if len(all) != 5 {
		t.Fatalf("unlimited candidates = %v", all)
	}
}

func TestResolveRandom(t *testing.T) {
	l := New(testCatalog())

	concrete, err := l.ResolveRandom(domain.TierFree, sel("swift-1"), rand.New(rand.NewSource(1)))
	if err != nil || concrete.Model != "swift-1" {
		t.Fatalf("concrete selector changed: %v %v", concrete, err)
	}

	// The same seed resolves to the same candidate.
	first, err := l.ResolveRandom(domain.TierFree, sel(domain.SelectorRandom), rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatal(err)
	}
	second, err := l.ResolveRandom(domain.TierFree, sel(domain.SelectorRandom), rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("resolution not deterministic: %v vs %v", first, second)
	}
	if first.Model == "closed-1" || first.Model == "premium-1" {
		t.Fatalf("random picked a model the tier cannot use: %v", first)
	}
	if first.Provider != "acme" {
		t.Fatalf("resolved provider = %q", first.Provider)
	}
}

func TestResolveRandom_EmptyPool(t *testing.T) {
	l := New(Catalog{"closed-1": {Provider: "acme", PerGameCap: 0}})
	_, err := l.ResolveRandom(domain.TierFree, sel(domain.SelectorRandom), rand.New(rand.NewSource(1)))
	if err == nil {
		t.Fatal("expected an error with no candidates")
	}
}

func TestCheckAccess(t *testing.T) {
	l := New(testCatalog())
	if err := l.CheckAccess(domain.TierFree, domain.TierFree); err != nil {
		t.Fatalf("matching tiers rejected: %v", err)
	}
	if err := l.CheckAccess(domain.TierFree, domain.TierUnlimited); !errors.Is(err, ErrTierMismatch) {
		t.Fatalf("expected ErrTierMismatch, got %v", err)
	}
}

func TestResetAllowance(t *testing.T) {
	l := New(testCatalog())
	if got := l.ResetAllowance(domain.TierFree); got != 3 {
		t.Fatalf("default allowance = %d, want 3", got)
	}
	if got := l.ResetAllowance(domain.TierUnlimited); got != CapUnlimited {
		t.Fatalf("unlimited allowance = %d", got)
	}

	l = New(testCatalog(), WithResetsPerDay(1))
	if got := l.ResetAllowance(domain.TierFree); got != 1 {
		t.Fatalf("configured allowance = %d, want 1", got)
	}
}
