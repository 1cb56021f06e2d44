package display

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/finsightlab/finsight/internal/models"
)

var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED")).
		Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#3B82F6"))

	analysisStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#3B82F6")).
		Padding(1, 2).
		Width(80)

	labelStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280")).
		Width(16)

	userStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#F59E0B"))

	assistantStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981"))

	dimStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280"))
)

// metricRows lists the snapshot fields shown in tables, in display order.
func metricRows(s *models.StockSnapshot) [][2]string {
	return [][2]string{
		{"Sector", orDash(s.Sector)},
		{"Market Cap", models.Metric(s.MarketCap)},
		{"Price", models.MetricFixed(s.CurrentPrice, 2)},
		{"P/E (TTM)", models.MetricFixed(s.TrailingPE, 2)},
		{"Forward P/E", models.MetricFixed(s.ForwardPE, 2)},
		{"52W High", models.MetricFixed(s.High52Week, 2)},
		{"52W Low", models.MetricFixed(s.Low52Week, 2)},
		{"Dividend Yield", yieldPercent(s.DividendYield)},
		{"Beta", models.MetricFixed(s.Beta, 2)},
	}
}

// Snapshot renders one stock's consolidated view.
func Snapshot(s *models.StockSnapshot) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s  %s", s.Symbol, s.Name)))
	b.WriteString("\n")
	for _, row := range metricRows(s) {
		b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render(row[0]), row[1]))
	}
	return b.String()
}

// MetricTable renders both snapshots side by side.
func MetricTable(a, b *models.StockSnapshot) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-16s %20s %20s\n", "", a.Symbol, b.Symbol))
	sb.WriteString(strings.Repeat("-", 58) + "\n")
	rowsA, rowsB := metricRows(a), metricRows(b)
	for i := range rowsA {
		sb.WriteString(fmt.Sprintf("%-16s %20s %20s\n", rowsA[i][0], rowsA[i][1], rowsB[i][1]))
	}
	return sb.String()
}

// Comparison renders the full comparison: metric table, analysis, and
// any chat history.
func Comparison(cmp *models.Comparison) string {
	a, b := cmp.SnapshotA, cmp.SnapshotB

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("%s vs %s", a.Symbol, b.Symbol)))
	sb.WriteString("\n\n")
	sb.WriteString(MetricTable(a, b))
	sb.WriteString("\n")
	sb.WriteString(headerStyle.Render("AI ANALYSIS"))
	sb.WriteString("\n")
	sb.WriteString(analysisStyle.Render(cmp.Analysis))
	sb.WriteString("\n")

	if len(cmp.Messages) > 0 {
		sb.WriteString("\n")
		sb.WriteString(headerStyle.Render("CONVERSATION"))
		sb.WriteString("\n")
		for _, msg := range cmp.Messages {
			sb.WriteString(ChatMessage(msg))
		}
	}
	return sb.String()
}

// ChatMessage renders a single chat turn.
func ChatMessage(msg models.ChatMessage) string {
	if msg.Role == models.RoleUser {
		return userStyle.Render("You: ") + msg.Content + "\n"
	}
	return assistantStyle.Render("Analyst: ") + msg.Content + "\n"
}

// News renders a list of articles, most recent first as fetched.
func News(articles []*models.NewsArticle) string {
	if len(articles) == 0 {
		return dimStyle.Render("No recent news.") + "\n"
	}
	var sb strings.Builder
	for i, a := range articles {
		sb.WriteString(headerStyle.Render(fmt.Sprintf("%d. %s", i+1, a.Title)))
		sb.WriteString("\n")
		meta := a.PublishedAt.Format("2006-01-02")
		if a.Source != "" {
			meta += "  " + a.Source
		}
		sb.WriteString(dimStyle.Render(meta) + "\n")
		if a.Content != "" {
			sb.WriteString(truncate(a.Content, 300) + "\n")
		}
		if a.URL != "" {
			sb.WriteString(dimStyle.Render(a.URL) + "\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// CandleSummary renders the latest bar and the range of a series.
func CandleSummary(series *models.CandleSeries) string {
	if series.Empty() {
		return dimStyle.Render("No price history available.") + "\n"
	}
	latest := series.Latest()
	first := series.Candles[0]
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("%s price history (%s)", series.Symbol, series.Source)))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("%s %d bars, %s to %s\n",
		labelStyle.Render("Range"), len(series.Candles),
		first.Date.Format("2006-01-02"), latest.Date.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("%s O %s  H %s  L %s  C %s  Vol %d\n",
		labelStyle.Render("Latest"),
		latest.Open.StringFixed(2), latest.High.StringFixed(2),
		latest.Low.StringFixed(2), latest.Close.StringFixed(2), latest.Volume))
	return sb.String()
}

// Error renders an error message for the terminal.
func Error(err error) string {
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444")).Render("Error: ") + err.Error()
}

func yieldPercent(d decimal.NullDecimal) string {
	if !d.Valid {
		return "N/A"
	}
	return d.Decimal.Mul(decimal.NewFromInt(100)).Round(2).StringFixed(2) + "%"
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
