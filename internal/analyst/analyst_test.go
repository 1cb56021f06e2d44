package analyst

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/shopspring/decimal"

	"github.com/finsightlab/finsight/internal/models"
)

type stubModel struct {
	reply string
	seen  []*schema.Message
}

func (s *stubModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	s.seen = input
	return schema.AssistantMessage(s.reply, nil), nil
}

func (s *stubModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	sr, sw := schema.Pipe[*schema.Message](1)
	sw.Send(schema.AssistantMessage(s.reply, nil), nil)
	sw.Close()
	return sr, nil
}

func nd(f float64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromFloat(f))
}

func snapshotFixture(symbol, name string) *models.StockSnapshot {
	return &models.StockSnapshot{
		Symbol:        symbol,
		Name:          name,
		Sector:        "Semiconductors",
		MarketCap:     nd(1500000500000),
		CurrentPrice:  nd(880.25),
		TrailingPE:    nd(72.5),
		High52Week:    nd(974),
		Low52Week:     nd(373.5),
		DividendYield: nd(0.0003),
		Beta:          nd(1.7),
		FetchedAt:     time.Now(),
	}
}

func TestMetricBlockRendersNA(t *testing.T) {
	snap := &models.StockSnapshot{Symbol: "XYZ"}
	block := MetricBlock(snap)

	if !strings.Contains(block, "XYZ:") {
		t.Fatalf("block missing symbol header:\n%s", block)
	}
	if !strings.Contains(block, "P/E: N/A | Forward P/E: N/A") {
		t.Fatalf("missing metrics should render as N/A:\n%s", block)
	}
	if !strings.Contains(block, "Sector: N/A") {
		t.Fatalf("empty sector should render as N/A:\n%s", block)
	}
}

func TestMetricBlockRendersValues(t *testing.T) {
	block := MetricBlock(snapshotFixture("NVDA", "NVIDIA Corp"))

	for _, want := range []string{
		"- Sector: Semiconductors",
		"- P/E: 72.50",
		"(52W: 373.50-974.00)",
		"- Beta: 1.70",
		"Dividend Yield: 0.03%",
	} {
		if !strings.Contains(block, want) {
			t.Fatalf("block missing %q:\n%s", want, block)
		}
	}
}

func TestComparePromptContainsBothStocks(t *testing.T) {
	stub := &stubModel{reply: "detailed analysis"}
	a := NewWithModel(stub)

	got, err := a.Compare(context.Background(),
		snapshotFixture("NVDA", "NVIDIA Corp"),
		snapshotFixture("MSFT", "Microsoft Corp"))
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if got != "detailed analysis" {
		t.Fatalf("unexpected analysis: %q", got)
	}

	var userPrompt string
	for _, msg := range stub.seen {
		if msg.Role == schema.User {
			userPrompt = msg.Content
		}
	}
	for _, want := range []string{"NVDA:", "MSFT:", "Valuation comparison", "Investment recommendation"} {
		if !strings.Contains(userPrompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, userPrompt)
		}
	}
}

func TestChatReplyIncludesHistoryAndContext(t *testing.T) {
	stub := &stubModel{reply: "sure"}
	a := NewWithModel(stub)

	cmp := &models.Comparison{
		SnapshotA: snapshotFixture("NVDA", "NVIDIA Corp"),
		SnapshotB: snapshotFixture("MSFT", "Microsoft Corp"),
		Messages: []models.ChatMessage{
			{Role: models.RoleUser, Content: "Compare growth potential"},
			{Role: models.RoleAssistant, Content: "Both grow."},
		},
	}

	got, err := a.ChatReply(context.Background(), cmp, "Which has better valuation?")
	if err != nil {
		t.Fatalf("ChatReply: %v", err)
	}
	if got != "sure" {
		t.Fatalf("unexpected reply: %q", got)
	}

	// system + 2 history turns + question
	if len(stub.seen) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(stub.seen))
	}
	if stub.seen[0].Role != schema.System || !strings.Contains(stub.seen[0].Content, "NVDA") {
		t.Fatalf("system message missing context: %+v", stub.seen[0])
	}
	if stub.seen[1].Content != "Compare growth potential" {
		t.Fatalf("history not threaded: %+v", stub.seen[1])
	}
	if stub.seen[3].Content != "Which has better valuation?" {
		t.Fatalf("question not last: %+v", stub.seen[3])
	}
}

func TestChatReplyRejectsEmptyQuestion(t *testing.T) {
	a := NewWithModel(&stubModel{reply: "x"})
	cmp := &models.Comparison{
		SnapshotA: snapshotFixture("NVDA", ""),
		SnapshotB: snapshotFixture("MSFT", ""),
	}
	if _, err := a.ChatReply(context.Background(), cmp, "  "); err == nil {
		t.Fatal("expected error for empty question")
	}
}
