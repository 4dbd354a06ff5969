package engine

import (
	"fmt"
	"strings"

	"github.com/moonhollow/moonhollow/pkg/agent"
	"github.com/moonhollow/moonhollow/pkg/domain"
	"github.com/moonhollow/moonhollow/pkg/schema"
)

// buildHistory converts the transcript into role-tagged messages from the
// participant's point of view: their own lines become assistant turns,
// everything else folds into user turns. The final user turn carries the
// step instruction.
func buildHistory(g *domain.Game, transcript []domain.GameMessage, p *domain.Participant, instruction string) []agent.Message {
	history := []agent.Message{{
		Role:    agent.RoleSystem,
		Content: systemBriefing(g, p),
	}}

	var pending []string
	flush := func() {
		if len(pending) > 0 {
			history = append(history, agent.Message{
				Role:    agent.RoleUser,
				Content: strings.Join(pending, "\n"),
			})
			pending = nil
		}
	}

	for _, msg := range transcript {
		if !msg.VisibleTo(p.Name) {
			continue
		}
		if msg.Author == p.Name {
			flush()
			history = append(history, agent.Message{
				Role:    agent.RoleAssistant,
				Content: msg.Body,
			})
			continue
		}
		pending = append(pending, fmt.Sprintf("[Day %d] %s: %s", msg.Day, msg.Author, msg.Body))
	}

	pending = append(pending, instruction)
	flush()
	return history
}

// systemBriefing describes the game, the participant's identity and their
// private role knowledge.
func systemBriefing(g *domain.Game, p *domain.Participant) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a player in a game of Werewolf.\n", p.Name)
	fmt.Fprintf(&b, "Your secret role: %s.\n", p.Role)

	b.WriteString("Players: ")
	var names []string
	for _, other := range g.Participants {
		status := ""
		if !other.IsAlive {
			status = " (eliminated)"
		}
		names = append(names, other.Name+status)
	}
	b.WriteString(strings.Join(names, ", "))
	b.WriteString(".\n")

	if p.Role == domain.RoleWerewolf {
		var packmates []string
		for _, other := range g.Participants {
			if other.Role == domain.RoleWerewolf && other.Name != p.Name {
				packmates = append(packmates, other.Name)
			}
		}
		if len(packmates) > 0 {
			fmt.Fprintf(&b, "Your fellow werewolves: %s.\n", strings.Join(packmates, ", "))
		}
	}

	for _, inv := range p.Knowledge.Investigations {
		verdict := "not a werewolf"
		if inv.Evil {
			verdict = "a werewolf"
		}
		fmt.Fprintf(&b, "Night %d investigation: %s is %s.\n", inv.Night, inv.Target, verdict)
	}
	for _, prot := range p.Knowledge.Protections {
		fmt.Fprintf(&b, "Night %d: you protected %s.\n", prot.Night, prot.Target)
	}

	b.WriteString("Never reveal your role unless it wins you the game. Stay in character.")
	return b.String()
}

// stepInstruction is the final prompt turn for a dispatch step.
func stepInstruction(g *domain.Game, step domain.Step, p *domain.Participant) string {
	switch step {
	case domain.StepIntroductions:
		return "Introduce yourself to the village in one or two sentences."
	case domain.StepCollectReplies:
		if g.Phase == domain.PhaseAfterGame {
			return "The game is over and all roles are revealed. Share your thoughts on how it played out."
		}
		return fmt.Sprintf("It is day %d. Join the discussion: react to what was said and share suspicions.", g.Day)
	case domain.StepCollectVotes:
		return "Voting is open. Choose one player to eliminate."
	case domain.StepCollectAction:
		switch p.Role {
		case domain.RoleWerewolf:
			return "Night has fallen. Choose tonight's victim."
		case domain.RoleDoctor:
			return "Night has fallen. Choose a player to protect tonight."
		case domain.RoleDetective:
			return "Night has fallen. Choose a player to investigate."
		case domain.RoleManiac:
			return "Night has fallen. Choose a player to abduct until morning."
		}
	}
	return ""
}

// stepSchema returns the structured-reply schema for a step, or nil for
// free-form turns.
func stepSchema(g *domain.Game, step domain.Step, p *domain.Participant) schema.Schema {
	switch step {
	case domain.StepCollectVotes:
		return schema.Schema{
			"target":    schema.Enum(voteTargets(g, p)...),
			"reasoning": schema.String(),
		}
	case domain.StepCollectAction:
		targets := nightTargets(g, p)
		if len(targets) == 0 {
			return nil
		}
		return schema.Schema{
			"target":    schema.Enum(targets...),
			"reasoning": schema.String(),
		}
	}
	return nil
}

// voteTargets lists everyone the participant may vote against: the living,
// minus themselves.
func voteTargets(g *domain.Game, p *domain.Participant) []string {
	var out []string
	for _, other := range g.Living() {
		if other.Name != p.Name {
			out = append(out, other.Name)
		}
	}
	return out
}

// nightTargets lists the legal targets for a night role, honoring the
// per-role-holder constraints: the doctor may not repeat the previous
// night's target, the detective never repeats a target at all.
func nightTargets(g *domain.Game, p *domain.Participant) []string {
	var out []string
	for _, other := range g.Living() {
		switch p.Role {
		case domain.RoleWerewolf:
			if other.Role == domain.RoleWerewolf {
				continue
			}
		case domain.RoleDoctor:
			// Self-protection is allowed, repeating last night is not.
			if other.Name == p.Knowledge.LastProtected(g.Day-1) {
				continue
			}
		case domain.RoleDetective:
			if other.Name == p.Name || p.Knowledge.Investigated(other.Name) {
				continue
			}
		case domain.RoleManiac:
			if other.Name == p.Name {
				continue
			}
		default:
			return nil
		}
		out = append(out, other.Name)
	}
	return out
}
