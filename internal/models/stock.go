package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle represents one daily price bar.
type Candle struct {
	Date   time.Time       `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// CandleSeries is a symbol's daily history, oldest first.
type CandleSeries struct {
	Symbol  string   `json:"symbol"`
	Source  string   `json:"source"`
	Candles []Candle `json:"candles"`
}

func (cs *CandleSeries) Empty() bool {
	return cs == nil || len(cs.Candles) == 0
}

// Latest returns the most recent candle, or nil for an empty series.
func (cs *CandleSeries) Latest() *Candle {
	if cs.Empty() {
		return nil
	}
	return &cs.Candles[len(cs.Candles)-1]
}

// StockSnapshot is the consolidated per-symbol view used for comparison.
// Optional metrics use NullDecimal: providers routinely omit fields like
// forward P/E or beta, and a missing metric must not fail the snapshot.
type StockSnapshot struct {
	Symbol        string              `json:"symbol"`
	Name          string              `json:"name"`
	Sector        string              `json:"sector"`
	MarketCap     decimal.NullDecimal `json:"market_cap"`
	CurrentPrice  decimal.NullDecimal `json:"current_price"`
	TrailingPE    decimal.NullDecimal `json:"trailing_pe"`
	ForwardPE     decimal.NullDecimal `json:"forward_pe"`
	High52Week    decimal.NullDecimal `json:"high_52_week"`
	Low52Week     decimal.NullDecimal `json:"low_52_week"`
	DividendYield decimal.NullDecimal `json:"dividend_yield"`
	Beta          decimal.NullDecimal `json:"beta"`
	FetchedAt     time.Time           `json:"fetched_at"`
}

// Metric formats an optional metric for prompts and display, with "N/A"
// for absent values.
func Metric(d decimal.NullDecimal) string {
	if !d.Valid {
		return "N/A"
	}
	return d.Decimal.String()
}

// MetricFixed is Metric rounded to the given number of decimal places.
func MetricFixed(d decimal.NullDecimal, places int32) string {
	if !d.Valid {
		return "N/A"
	}
	return d.Decimal.Round(places).StringFixed(places)
}
