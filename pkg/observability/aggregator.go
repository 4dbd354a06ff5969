package observability

import (
	"sort"

	"github.com/moonhollow/moonhollow/pkg/domain"
)

// ParticipantUsage is one row of the usage report.
type ParticipantUsage struct {
	Name  string            `json:"name"`
	Model string            `json:"model"`
	Usage domain.TokenUsage `json:"usage"`
}

// Report is the aggregated consumption view of one game.
type Report struct {
	GameID       string                       `json:"gameId"`
	Participants []ParticipantUsage           `json:"participants"`
	ByModel      map[string]domain.TokenUsage `json:"byModel"`
	Total        domain.TokenUsage            `json:"total"`
}

// Aggregate builds the usage report for a game. Participants are listed in
// seating order; the human, who consumes no tokens, is skipped.
func Aggregate(g *domain.Game) *Report {
	report := &Report{
		GameID:  g.ID,
		ByModel: make(map[string]domain.TokenUsage),
	}
	for _, p := range g.Participants {
		if p.Human {
			continue
		}
		report.Participants = append(report.Participants, ParticipantUsage{
			Name:  p.Name,
			Model: p.Model.Model,
			Usage: p.Usage,
		})
		byModel := report.ByModel[p.Model.Model]
		byModel.Add(p.Usage)
		report.ByModel[p.Model.Model] = byModel
		report.Total.Add(p.Usage)
	}
	return report
}

// Models returns the model identifiers present in the report, sorted for
// stable display.
func (r *Report) Models() []string {
	out := make([]string, 0, len(r.ByModel))
	for model := range r.ByModel {
		out = append(out, model)
	}
	sort.Strings(out)
	return out
}
