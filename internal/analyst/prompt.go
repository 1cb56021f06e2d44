package analyst

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/finsightlab/finsight/internal/models"
)

const comparisonSystemTpl = `You are a professional financial analyst comparing two publicly traded stocks.
Use a professional tone with clear section headers.`

const comparisonUserTpl = `Analyze these two stocks:

{stock_a_block}

{stock_b_block}

Provide detailed analysis covering:
1. Valuation comparison
2. Growth potential
3. Risk assessment
4. Sector outlook
5. Investment recommendation
`

const chatSystemTpl = `You are a financial expert discussing {symbol_a} vs {symbol_b}.

{context_block}

Guidelines:
- Be specific to these companies
- Compare key metrics
- Highlight risks and opportunities
- Maintain professional tone
- Use bullet points when appropriate`

// MetricBlock renders a snapshot's metrics the way they appear in the
// comparison prompt.
func MetricBlock(s *models.StockSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n", s.Symbol)
	fmt.Fprintf(&b, "- Sector: %s\n", orNA(s.Sector))
	fmt.Fprintf(&b, "- Market Cap: $%s\n", models.Metric(s.MarketCap))
	fmt.Fprintf(&b, "- P/E: %s | Forward P/E: %s\n",
		models.MetricFixed(s.TrailingPE, 2), models.MetricFixed(s.ForwardPE, 2))
	fmt.Fprintf(&b, "- Price: $%s (52W: %s-%s)\n",
		models.MetricFixed(s.CurrentPrice, 2),
		models.MetricFixed(s.Low52Week, 2), models.MetricFixed(s.High52Week, 2))
	fmt.Fprintf(&b, "- Beta: %s | Dividend Yield: %s%%",
		models.MetricFixed(s.Beta, 2), yieldPercent(s.DividendYield))
	return b.String()
}

// ContextBlock renders the condensed metric context used for chat turns.
func ContextBlock(a, b *models.StockSnapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Analyzing %s (%s) vs %s (%s).\n\n", a.Symbol, orNA(a.Name), b.Symbol, orNA(b.Name))
	sb.WriteString("Key Metrics:\n")
	for _, s := range []*models.StockSnapshot{a, b} {
		fmt.Fprintf(&sb, "- %s: P/E %s, Market Cap $%s, Beta %s\n",
			s.Symbol,
			models.MetricFixed(s.TrailingPE, 2),
			models.Metric(s.MarketCap),
			models.MetricFixed(s.Beta, 2))
	}
	return sb.String()
}

// yieldPercent renders a fractional dividend yield as a percentage.
func yieldPercent(d decimal.NullDecimal) string {
	if !d.Valid {
		return "N/A"
	}
	return d.Decimal.Mul(decimal.NewFromInt(100)).Round(2).StringFixed(2)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
