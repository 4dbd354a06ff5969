package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/moonhollow/moonhollow"
	"github.com/moonhollow/moonhollow/internal/presentation/tui"
	"github.com/moonhollow/moonhollow/pkg/domain"
)

// RunPlay drives a game interactively from the terminal. Bots advance when
// the engine is stepped; the loop pauses for input whenever it is the
// human's turn, and after the game ends it keeps the table open for banter
// until the player quits.
func RunPlay(ctx context.Context, o *moonhollow.Orchestrator, gameID string, userTier domain.Tier) error {
	render := tui.NewRenderer()
	reader := bufio.NewReader(os.Stdin)
	seen := 0

	printNew := func() error {
		g, messages, err := o.Scheduler.Game(ctx, gameID, userTier)
		if err != nil {
			return err
		}
		if seen < len(messages) {
			out, err := render(tui.TranscriptMarkdown(messages[seen:], g.HumanName))
			if err != nil {
				// Rendering trouble should never hide the transcript.
				out = tui.TranscriptMarkdown(messages[seen:], g.HumanName)
			}
			fmt.Print(out)
			seen = len(messages)
		}
		return nil
	}

	prompt := func() (string, error) {
		fmt.Print("> ")
		text, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(text), nil
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		game, err := o.Scheduler.Step(ctx, gameID, userTier)
		if perr := printNew(); perr != nil {
			return perr
		}

		switch {
		case errors.Is(err, domain.ErrHumanTurn):
			input, rerr := prompt()
			if rerr != nil {
				return nil
			}
			if isQuit(input) {
				printSystemMessage("Leaving the table.")
				return nil
			}
			if _, serr := o.Scheduler.SubmitHuman(ctx, gameID, userTier, input); serr != nil {
				printSystemMessage("Rejected: %v", serr)
				continue
			}
			if perr := printNew(); perr != nil {
				return perr
			}

		case err != nil:
			return err

		case game.ErrorState != nil && !game.ErrorState.Recoverable:
			printSystemMessage("Game halted: %s", game.ErrorState.Error)
			return nil

		case game.Phase == domain.PhaseAfterGame:
			// The verdict is out; every further step is optional banter.
			printSystemMessage("Game over. Chat with the table, press enter to let the bots talk, or 'quit'.")
			input, rerr := prompt()
			if rerr != nil || isQuit(input) {
				return nil
			}
			if input != "" {
				if _, serr := o.Scheduler.SubmitHuman(ctx, gameID, userTier, input); serr != nil {
					printSystemMessage("Rejected: %v", serr)
				}
				if perr := printNew(); perr != nil {
					return perr
				}
			}
		}
	}
}

func isQuit(input string) bool {
	switch strings.ToLower(input) {
	case "quit", "exit", "/quit", "/exit":
		return true
	}
	return false
}
