package graph_test

import (
	"strings"
	"testing"

	"github.com/moonhollow/moonhollow/internal/presentation/graph"
	"github.com/moonhollow/moonhollow/pkg/domain"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		overlay  *graph.Overlay
		contains []string
	}{
		{
			name: "Phase Shapes",
			contains: []string{
				"welcome((\"welcome\"))",
				"night_werewolf[[\"night_werewolf\"]]",
				"day_discussion[/\"day_discussion\"/]",
				"game_ended[\"game_ended\"]",
			},
		},
		{
			name: "Labelled Transitions",
			contains: []string{
				`night_results -- "no winner" --> day_discussion`,
				`night_results -- "winner" --> game_ended`,
			},
		},
		{
			name: "Overlay Styles",
			overlay: &graph.Overlay{
				VisitedPhases: []domain.Phase{domain.PhaseWelcome, domain.PhaseWelcome},
				CurrentPhase:  domain.PhaseVote,
			},
			contains: []string{
				"class welcome visited;",
				"class vote current;",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.overlay)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("GenerateMermaid() = \n%v\nWant substring: %v", got, want)
				}
			}
		})
	}
}

func TestGenerateMermaidDeduplicatesVisited(t *testing.T) {
	got := graph.GenerateMermaid(&graph.Overlay{
		VisitedPhases: []domain.Phase{domain.PhaseVote, domain.PhaseVote},
	})
	if strings.Count(got, "class vote visited;") != 1 {
		t.Errorf("visited phases not deduplicated:\n%v", got)
	}
}
