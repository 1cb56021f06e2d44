package analyst

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/finsightlab/finsight/internal/config"
	"github.com/finsightlab/finsight/internal/models"
)

// Analyst generates comparative commentary and answers follow-up
// questions about a stock pair.
type Analyst struct {
	chatModel model.BaseChatModel
}

// New creates an analyst backed by the configured chat model.
func New(ctx context.Context, cfg *config.Config) (*Analyst, error) {
	chatModel, err := NewChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Analyst{chatModel: chatModel}, nil
}

// NewWithModel wires an explicit chat model, mainly for tests.
func NewWithModel(chatModel model.BaseChatModel) *Analyst {
	return &Analyst{chatModel: chatModel}
}

// Compare produces the full comparative analysis for two snapshots.
func (a *Analyst) Compare(ctx context.Context, snapA, snapB *models.StockSnapshot) (string, error) {
	tpl := prompt.FromMessages(schema.FString,
		schema.SystemMessage(comparisonSystemTpl),
		schema.UserMessage(comparisonUserTpl),
	)

	messages, err := tpl.Format(ctx, map[string]any{
		"stock_a_block": MetricBlock(snapA),
		"stock_b_block": MetricBlock(snapB),
	})
	if err != nil {
		return "", fmt.Errorf("format comparison prompt: %w", err)
	}

	resp, err := a.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate comparison for %s vs %s: %w", snapA.Symbol, snapB.Symbol, err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("no analysis available for %s vs %s", snapA.Symbol, snapB.Symbol)
	}
	return resp.Content, nil
}

// ChatReply answers a follow-up question using the comparison's metric
// context and prior chat turns.
func (a *Analyst) ChatReply(ctx context.Context, cmp *models.Comparison, question string) (string, error) {
	if cmp.SnapshotA == nil || cmp.SnapshotB == nil {
		return "", fmt.Errorf("comparison has no snapshots")
	}
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("question cannot be empty")
	}

	tpl := prompt.FromMessages(schema.FString,
		schema.SystemMessage(chatSystemTpl),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{question}"),
	)

	messages, err := tpl.Format(ctx, map[string]any{
		"symbol_a":      cmp.SnapshotA.Symbol,
		"symbol_b":      cmp.SnapshotB.Symbol,
		"context_block": ContextBlock(cmp.SnapshotA, cmp.SnapshotB),
		"history":       historyMessages(cmp.Messages),
		"question":      question,
	})
	if err != nil {
		return "", fmt.Errorf("format chat prompt: %w", err)
	}

	resp, err := a.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate chat reply: %w", err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("couldn't generate response")
	}
	return resp.Content, nil
}

func historyMessages(history []models.ChatMessage) []*schema.Message {
	out := make([]*schema.Message, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case models.RoleAssistant:
			out = append(out, schema.AssistantMessage(msg.Content, nil))
		default:
			out = append(out, schema.UserMessage(msg.Content))
		}
	}
	return out
}
