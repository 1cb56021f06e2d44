package models

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn in a comparison chat.
type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Comparison holds the state of a two-stock analysis: both snapshots,
// the generated commentary, and any follow-up chat.
type Comparison struct {
	ID        int64          `json:"id"`
	SnapshotA *StockSnapshot `json:"snapshot_a"`
	SnapshotB *StockSnapshot `json:"snapshot_b"`
	Analysis  string         `json:"analysis"`
	Messages  []ChatMessage  `json:"messages,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func (c *Comparison) Symbols() (string, string) {
	var a, b string
	if c.SnapshotA != nil {
		a = c.SnapshotA.Symbol
	}
	if c.SnapshotB != nil {
		b = c.SnapshotB.Symbol
	}
	return a, b
}
