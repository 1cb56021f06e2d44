package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/AlecAivazis/survey/v2/terminal"

	"github.com/finsightlab/finsight/internal/config"
	"github.com/finsightlab/finsight/internal/display"
	"github.com/finsightlab/finsight/internal/models"
)

// runInteractive drives the compare-then-chat session.
func runInteractive(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer app.Close()

	fmt.Println(bannerStyle.Render(fmt.Sprintf("FinSight v%s - AI Stock Comparison", version)))
	fmt.Println(infoStyle.Render("Pick two stocks to compare, then ask follow-up questions."))
	fmt.Println()

	for {
		done, err := runComparisonRound(ctx, app)
		if err != nil {
			if isInterrupt(err) {
				return nil
			}
			fmt.Println(display.Error(err))
			continue
		}
		if done {
			return nil
		}
	}
}

// runComparisonRound compares one pair and loops on chat until the user
// asks for a new pair or exits. Returns true when the session is over.
func runComparisonRound(ctx context.Context, app *app) (bool, error) {
	symbolA, err := PromptForSymbol("first")
	if err != nil {
		return false, err
	}
	symbolB, err := PromptForSymbol("second")
	if err != nil {
		return false, err
	}

	fmt.Println(progressStyle.Render(fmt.Sprintf("Fetching data and generating analysis for %s vs %s...", symbolA, symbolB)))
	cmp, err := app.svc.Compare(ctx, symbolA, symbolB)
	if err != nil {
		return false, err
	}
	fmt.Println(display.Comparison(cmp))

	for {
		question, newPair, quit, err := PromptForQuestion()
		if err != nil {
			return false, err
		}
		if quit {
			return true, nil
		}
		if newPair {
			return false, nil
		}

		fmt.Println(progressStyle.Render("Thinking..."))
		_, reply, err := app.svc.Chat(ctx, 0, question)
		if err != nil {
			if isInterrupt(err) {
				return true, nil
			}
			fmt.Println(display.Error(err))
			continue
		}
		fmt.Println()
		fmt.Println(display.ChatMessage(models.ChatMessage{Role: models.RoleAssistant, Content: reply}))
	}
}

func isInterrupt(err error) bool {
	return errors.Is(err, terminal.InterruptErr) || errors.Is(err, context.Canceled)
}
