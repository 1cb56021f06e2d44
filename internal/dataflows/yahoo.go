package dataflows

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"

	"github.com/finsightlab/finsight/internal/models"
)

// YahooFinanceClient is the secondary market-data source, used when
// Finnhub has no candle data for a symbol.
type YahooFinanceClient struct {
	cache *CacheManager
}

// NewYahooFinanceClient creates a new Yahoo Finance client
func NewYahooFinanceClient(config *Config) *YahooFinanceClient {
	cacheDir := filepath.Join(config.DataCacheDir, "yahoo_finance")
	cache := NewCacheManager(cacheDir, 24*time.Hour, config.CacheEnabled) // 24 hour cache

	return &YahooFinanceClient{
		cache: cache,
	}
}

// GetHistoricalData gets daily historical candles for a symbol.
func (yf *YahooFinanceClient) GetHistoricalData(symbol string, start, end time.Time) (*models.CandleSeries, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}

	symbol = NormalizeSymbol(symbol)

	cacheKey := map[string]interface{}{
		"symbol": symbol,
		"start":  start.Format("2006-01-02"),
		"end":    end.Format("2006-01-02"),
	}

	var cached models.CandleSeries
	if yf.cache.Get("yahoo", "historical", cacheKey, &cached) {
		return &cached, nil
	}

	series := &models.CandleSeries{Symbol: symbol, Source: "yahoo"}
	err := WithRetry(DefaultRetryConfig(), func() error {
		params := &chart.Params{
			Symbol:   symbol,
			Start:    datetime.New(&start),
			End:      datetime.New(&end),
			Interval: datetime.OneDay,
		}

		iter := chart.Get(params)

		series.Candles = series.Candles[:0]
		for iter.Next() {
			bar := iter.Bar()
			series.Candles = append(series.Candles, models.Candle{
				Date:   time.Unix(int64(bar.Timestamp), 0),
				Open:   bar.Open,
				High:   bar.High,
				Low:    bar.Low,
				Close:  bar.Close,
				Volume: int64(bar.Volume),
			})
		}

		if err := iter.Err(); err != nil {
			return fmt.Errorf("failed to get historical data for %s: %w", symbol, err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	yf.cache.Set("yahoo", "historical", cacheKey, series)
	return series, nil
}

// GetQuotePrice gets the current regular-market price for a symbol.
func (yf *YahooFinanceClient) GetQuotePrice(symbol string) (decimal.Decimal, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return decimal.Zero, err
	}

	symbol = NormalizeSymbol(symbol)

	var price decimal.Decimal
	err := WithRetry(DefaultRetryConfig(), func() error {
		q, err := quote.Get(symbol)
		if err != nil {
			return fmt.Errorf("failed to get quote for %s: %w", symbol, err)
		}
		price = decimal.NewFromFloat(q.RegularMarketPrice)
		return nil
	})

	return price, err
}
