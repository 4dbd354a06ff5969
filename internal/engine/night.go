package engine

import (
	"context"
	"fmt"

	"github.com/moonhollow/moonhollow/pkg/domain"
	"github.com/moonhollow/moonhollow/pkg/schema"
)

// nightAction is the decoded shape of a structured night reply.
type nightAction struct {
	Target    string `mapstructure:"target"`
	Reasoning string `mapstructure:"reasoning"`
}

// applyNightAction records a role's chosen target for resolution at night
// results. The choice itself is appended as a private transcript entry so
// prompts can replay it; nothing is broadcast.
func (s *Scheduler) applyNightAction(ctx context.Context, g *domain.Game, p *domain.Participant, fields map[string]any) error {
	var action nightAction
	if err := schema.Decode(fields, &action); err != nil {
		return err
	}

	target := canonicalName(g, action.Target)
	if target == "" {
		return fmt.Errorf("night action by %s: unknown target %q", p.Name, action.Target)
	}

	if err := setNightChoice(g, p, target); err != nil {
		return err
	}

	return s.append(ctx, g, &domain.GameMessage{
		Author:    p.Name,
		Recipient: p.Name,
		Body:      fmt.Sprintf("Night %d: I choose %s.", g.Day, target),
		Type:      domain.MessageCommand,
		Day:       g.Day,
	})
}

// setNightChoice stores the target and does the role's bookkeeping.
func setNightChoice(g *domain.Game, p *domain.Participant, target string) error {
	switch p.Role {
	case domain.RoleWerewolf:
		g.NightChoices.WerewolfTarget = target
	case domain.RoleDoctor:
		if p.Knowledge.LastProtected(g.Day-1) == target {
			return fmt.Errorf("doctor may not protect %s on consecutive nights", target)
		}
		g.NightChoices.DoctorTarget = target
		p.Knowledge.Protections = append(p.Knowledge.Protections, domain.Protection{
			Night:  g.Day,
			Target: target,
		})
	case domain.RoleDetective:
		if p.Knowledge.Investigated(target) {
			return fmt.Errorf("detective already investigated %s", target)
		}
		g.NightChoices.DetectiveTarget = target
	case domain.RoleManiac:
		g.NightChoices.ManiacTarget = target
	default:
		return fmt.Errorf("role %s has no night action", p.Role)
	}
	return nil
}

// NightResolution is the outcome of one night, produced before any
// elimination is applied.
type NightResolution struct {
	Records []domain.NightActionRecord
	// Deaths maps victim name to the reported cause.
	Deaths map[string]domain.DeathCause
	// Detective summarizes the investigation attempt.
	Detective       domain.DetectiveVerdict
	DetectiveTarget string
	DetectiveEvil   bool
	// KillPrevented is true when the doctor's protection cancelled the
	// werewolf kill.
	KillPrevented bool
}

// ResolveNight applies the night's collected choices in fixed execution
// order: the maniac's abduction first (it silently blocks the target's own
// action), then the werewolf kill, then doctor protection, then the
// detective's investigation against the pre-elimination role map.
//
// The function is pure with respect to the game: it reads choices and the
// role map but applies no elimination.
func ResolveNight(g *domain.Game) *NightResolution {
	res := &NightResolution{
		Deaths:    make(map[string]domain.DeathCause),
		Detective: domain.DetectiveInactive,
	}
	night := g.Day
	choices := g.NightChoices

	actorOf := func(role domain.Role) string {
		if p := g.LivingWithRole(role); p != nil {
			return p.Name
		}
		return ""
	}

	// 1. Abduction. Applied first: it decides which other actions are
	// blocked tonight. Never disclosed anywhere.
	abducted := ""
	maniac := actorOf(domain.RoleManiac)
	if maniac != "" && choices.ManiacTarget != "" {
		abducted = choices.ManiacTarget
		res.Records = append(res.Records, domain.NightActionRecord{
			Role: domain.RoleManiac, Actor: maniac, Target: abducted,
			Night: night, Outcome: domain.OutcomeSuccess,
		})
	}

	// 2. Werewolf kill. Blocked when the acting wolf was abducted.
	killTarget := ""
	wolf := actorOf(domain.RoleWerewolf)
	if wolf != "" && choices.WerewolfTarget != "" {
		if wolf == abducted {
			res.Records = append(res.Records, domain.NightActionRecord{
				Role: domain.RoleWerewolf, Actor: wolf, Target: choices.WerewolfTarget,
				Night: night, Outcome: domain.OutcomeBlocked,
			})
		} else {
			killTarget = choices.WerewolfTarget
		}
	}

	// 3. Doctor protection. Cancels a matching kill; being abducted
	// silently cancels the protection instead.
	protected := ""
	doctor := actorOf(domain.RoleDoctor)
	if doctor != "" && choices.DoctorTarget != "" {
		if doctor == abducted {
			res.Records = append(res.Records, domain.NightActionRecord{
				Role: domain.RoleDoctor, Actor: doctor, Target: choices.DoctorTarget,
				Night: night, Outcome: domain.OutcomeBlocked,
			})
		} else {
			protected = choices.DoctorTarget
			res.Records = append(res.Records, domain.NightActionRecord{
				Role: domain.RoleDoctor, Actor: doctor, Target: protected,
				Night: night, Outcome: domain.OutcomeSuccess,
			})
		}
	}

	if killTarget != "" {
		if killTarget == protected {
			res.KillPrevented = true
			res.Records = append(res.Records, domain.NightActionRecord{
				Role: domain.RoleWerewolf, Actor: wolf, Target: killTarget,
				Night: night, Outcome: domain.OutcomeBlocked,
			})
		} else {
			res.Deaths[killTarget] = domain.CauseWerewolfAttack
			res.Records = append(res.Records, domain.NightActionRecord{
				Role: domain.RoleWerewolf, Actor: wolf, Target: killTarget,
				Night: night, Outcome: domain.OutcomeSuccess,
			})
		}
	}

	// 4. Detective investigation, against the current (pre-elimination)
	// role map. An abducted detective learns nothing and no record reaches
	// their knowledge.
	detective := actorOf(domain.RoleDetective)
	if detective != "" && choices.DetectiveTarget != "" {
		if detective == abducted {
			res.Detective = domain.DetectiveBlocked
			res.Records = append(res.Records, domain.NightActionRecord{
				Role: domain.RoleDetective, Actor: detective, Target: choices.DetectiveTarget,
				Night: night, Outcome: domain.OutcomeBlocked,
			})
		} else {
			target := g.Participant(choices.DetectiveTarget)
			res.DetectiveTarget = choices.DetectiveTarget
			res.DetectiveEvil = target != nil && target.Role.Evil()
			if res.DetectiveEvil {
				res.Detective = domain.DetectiveFoundEvil
			} else {
				res.Detective = domain.DetectiveFoundInnocent
			}
			res.Records = append(res.Records, domain.NightActionRecord{
				Role: domain.RoleDetective, Actor: detective, Target: choices.DetectiveTarget,
				Night: night, Outcome: domain.OutcomeSuccess,
			})
		}
	}

	// Maniac self-collateral: if the maniac died tonight, their abductee
	// dies with them. The deaths are linked in the records, but the
	// victim's death is reported with an independent cause and the
	// abduction stays undisclosed.
	if maniac != "" && abducted != "" {
		if _, maniacDied := res.Deaths[maniac]; maniacDied {
			if _, alreadyDead := res.Deaths[abducted]; !alreadyDead {
				res.Deaths[abducted] = domain.CauseManiacCollateral
				for i := range res.Records {
					if res.Records[i].Role == domain.RoleManiac && res.Records[i].Night == night {
						res.Records[i].LinkedTo = abducted
					}
				}
			}
		}
	}

	return res
}

// runNightResults resolves the night, applies eliminations, publishes the
// narrative, delivers the detective's private result, and either ends the
// game or starts the next day.
func (s *Scheduler) runNightResults(ctx context.Context, g *domain.Game) error {
	res := ResolveNight(g)
	g.NightRecords = append(g.NightRecords, res.Records...)

	// Eliminations happen after resolution so every check above saw the
	// pre-elimination state.
	for victim := range res.Deaths {
		g.Eliminate(victim)
	}

	narrative := nightNarrative(g, res)
	g.NightNarratives = append(g.NightNarratives, narrative)
	if err := s.narrate(ctx, g, narrative); err != nil {
		return err
	}

	// Private detective result. Blocked investigations record nothing.
	if res.Detective == domain.DetectiveFoundEvil || res.Detective == domain.DetectiveFoundInnocent {
		if detective := g.LivingWithRole(domain.RoleDetective); detective != nil {
			detective.Knowledge.Investigations = append(detective.Knowledge.Investigations, domain.Investigation{
				Night:  g.Day,
				Target: res.DetectiveTarget,
				Evil:   res.DetectiveEvil,
			})
			verdict := "is not a werewolf"
			if res.DetectiveEvil {
				verdict = "is a werewolf"
			}
			if err := s.append(ctx, g, &domain.GameMessage{
				Author:    domain.GameMaster,
				Recipient: detective.Name,
				Body:      fmt.Sprintf("Your investigation: %s %s.", res.DetectiveTarget, verdict),
				Type:      domain.MessageNarrative,
				Day:       g.Day,
			}); err != nil {
				return err
			}
		}
	}

	if verdict, ended := Evaluate(g); ended {
		return s.endGame(ctx, g, verdict)
	}

	g.NightChoices.Reset()
	g.Day++
	g.Round = 0
	s.enterPhase(g, domain.PhaseDayDiscussion)
	return nil
}

// nightNarrative renders the morning announcement. Deaths are reported as
// independent events; neither protection saves nor abductions are ever
// named explicitly.
func nightNarrative(g *domain.Game, res *NightResolution) string {
	if len(res.Deaths) == 0 {
		if res.KillPrevented {
			return fmt.Sprintf("Morning of day %d. A quiet night: everyone wakes unharmed.", g.Day+1)
		}
		return fmt.Sprintf("Morning of day %d. The night passed without incident.", g.Day+1)
	}

	body := fmt.Sprintf("Morning of day %d.", g.Day+1)
	// Report in seating order for a stable transcript.
	for _, p := range g.Participants {
		cause, died := res.Deaths[p.Name]
		if !died {
			continue
		}
		switch cause {
		case domain.CauseWerewolfAttack:
			body += fmt.Sprintf(" %s was killed in the night. They were a %s.", p.Name, p.Role)
		default:
			body += fmt.Sprintf(" %s was found dead. They were a %s.", p.Name, p.Role)
		}
	}
	return body
}
