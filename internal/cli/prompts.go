package cli

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AlecAivazis/survey/v2"
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9.-]+$`)

// quickPrompts are the canned follow-up questions offered in chat.
var quickPrompts = []string{
	"Compare growth potential",
	"Which has better valuation?",
	"Analyze risk factors",
	"Compare dividend policies",
	"Technical analysis outlook",
}

const (
	choiceAskOwn  = "Ask your own question"
	choiceNewPair = "Compare two other stocks"
	choiceExit    = "Exit"
)

// PromptForSymbol asks for one ticker symbol.
func PromptForSymbol(label string) (string, error) {
	var symbol string
	prompt := &survey.Input{
		Message: fmt.Sprintf("Enter the %s stock symbol (e.g., AAPL, MSFT):", label),
	}

	err := survey.AskOne(prompt, &symbol, survey.WithValidator(func(val interface{}) error {
		str := strings.TrimSpace(strings.ToUpper(val.(string)))
		if str == "" {
			return fmt.Errorf("symbol cannot be empty")
		}
		if len(str) > 10 {
			return fmt.Errorf("symbol too long (max 10 characters)")
		}
		if !symbolPattern.MatchString(str) {
			return fmt.Errorf("invalid symbol (use letters, numbers, dots, and hyphens)")
		}
		return nil
	}))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.ToUpper(symbol)), nil
}

// PromptForQuestion offers the quick prompts plus a free-form option.
// The second return value reports that the user wants a new pair, the
// third that they want to quit.
func PromptForQuestion() (string, bool, bool, error) {
	options := append(append([]string{}, quickPrompts...), choiceAskOwn, choiceNewPair, choiceExit)

	var choice string
	prompt := &survey.Select{
		Message:  "Ask about this comparison:",
		Options:  options,
		PageSize: len(options),
	}
	if err := survey.AskOne(prompt, &choice); err != nil {
		return "", false, false, err
	}

	switch choice {
	case choiceExit:
		return "", false, true, nil
	case choiceNewPair:
		return "", true, false, nil
	case choiceAskOwn:
		var question string
		input := &survey.Input{Message: "Your question:"}
		err := survey.AskOne(input, &question, survey.WithValidator(survey.Required))
		if err != nil {
			return "", false, false, err
		}
		return strings.TrimSpace(question), false, false, nil
	default:
		return choice, false, false, nil
	}
}
