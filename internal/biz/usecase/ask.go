package usecase

import (
	"context"
	"strings"

	"github.com/botdeck/botdeck/internal/biz/domain"
)

// Completer answers a prompt with a language model
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

const askSystemPrompt = "You are a helpful chat bot. Answer briefly in plain text, without markdown."

// NewAskCommand returns the ask command backed by c
func NewAskCommand(c Completer) CommandHandler {
	return HandlerFunc{
		M: domain.CommandMeta{
			Name:        "ask",
			Description: "Ask the AI assistant a question",
			Category:    "ai",
			Usage:       "/ask [question]",
			Cooldown:    10,
		},
		Fn: func(ctx context.Context, cc *CommandContext) error {
			question := cc.Text()
			if question == "" {
				return cc.Reply(ctx, "Please provide a question.")
			}
			answer, err := c.Complete(ctx, askSystemPrompt, question)
			if err != nil {
				return err
			}
			answer = strings.TrimSpace(answer)
			if answer == "" {
				answer = "No answer."
			}
			return cc.Reply(ctx, answer)
		},
	}
}
