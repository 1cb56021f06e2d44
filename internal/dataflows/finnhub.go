package dataflows

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/finsightlab/finsight/internal/models"
)

// FinnhubClient handles Finnhub API operations
type FinnhubClient struct {
	client  *resty.Client
	cache   *CacheManager
	limiter *rate.Limiter
	apiKey  string
}

// NewFinnhubClient creates a new Finnhub client
func NewFinnhubClient(config *Config) *FinnhubClient {
	cacheDir := filepath.Join(config.DataCacheDir, "finnhub")
	cache := NewCacheManager(cacheDir, 6*time.Hour, config.CacheEnabled) // 6 hour cache for news

	client := resty.New()
	client.SetBaseURL("https://finnhub.io/api/v1")
	client.SetTimeout(30 * time.Second)

	limiter := rate.NewLimiter(rate.Inf, 1)
	if pacing := config.FinnhubPacing(); pacing > 0 {
		limiter = rate.NewLimiter(rate.Every(pacing), 1)
	}

	return &FinnhubClient{
		client:  client,
		cache:   cache,
		limiter: limiter,
		apiKey:  config.FinnhubAPIKey,
	}
}

// WithBaseURL overrides the API endpoint, mainly for tests.
func (fc *FinnhubClient) WithBaseURL(url string) *FinnhubClient {
	fc.client.SetBaseURL(url)
	return fc
}

func (fc *FinnhubClient) get(ctx context.Context, path string, params map[string]string, out interface{}) error {
	if fc.apiKey == "" {
		return fmt.Errorf("Finnhub API key not configured")
	}

	params["token"] = fc.apiKey
	return WithRetry(DefaultRetryConfig(), func() error {
		// Pace every attempt, not just the first one.
		if err := fc.limiter.Wait(ctx); err != nil {
			return &permanentError{err}
		}

		resp, err := fc.client.R().
			SetContext(ctx).
			SetQueryParams(params).
			Get(path)

		if err != nil {
			return fmt.Errorf("failed to fetch %s: %w", path, err)
		}

		if code := resp.StatusCode(); code != http.StatusOK {
			apiErr := fmt.Errorf("API error %d: %s", code, resp.String())
			if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
				return &permanentError{apiErr}
			}
			return apiErr
		}

		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("failed to parse %s response: %w", path, err)
		}
		return nil
	})
}

// FinnhubProfile represents company profile data from /stock/profile2
type FinnhubProfile struct {
	Name string `json:"name"`
	// Market capitalization in millions of the listing currency.
	MarketCapitalization float64 `json:"marketCapitalization"`
	FinnhubIndustry      string  `json:"finnhubIndustry"`
	Ticker               string  `json:"ticker"`
	Exchange             string  `json:"exchange"`
	Currency             string  `json:"currency"`
	IPO                  string  `json:"ipo"`
	WebURL               string  `json:"weburl"`
}

// GetCompanyProfile gets the company profile for a symbol
func (fc *FinnhubClient) GetCompanyProfile(ctx context.Context, symbol string) (*FinnhubProfile, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)

	var cached FinnhubProfile
	if fc.cache.Get("finnhub", "profile", symbol, &cached) {
		return &cached, nil
	}

	var profile FinnhubProfile
	if err := fc.get(ctx, "/stock/profile2", map[string]string{"symbol": symbol}, &profile); err != nil {
		return nil, err
	}
	if profile.Name == "" && profile.Ticker == "" {
		return nil, fmt.Errorf("no company profile data found for symbol: %s", symbol)
	}

	fc.cache.Set("finnhub", "profile", symbol, &profile)
	return &profile, nil
}

// FinnhubQuote represents realtime quote data from /quote
type FinnhubQuote struct {
	Current       float64 `json:"c"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

// GetQuote gets the latest quote for a symbol. Quotes are not cached;
// they go stale within seconds.
func (fc *FinnhubClient) GetQuote(ctx context.Context, symbol string) (*FinnhubQuote, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)

	var quote FinnhubQuote
	if err := fc.get(ctx, "/quote", map[string]string{"symbol": symbol}, &quote); err != nil {
		return nil, err
	}
	if quote.Timestamp == 0 && quote.Current == 0 {
		return nil, fmt.Errorf("no quote data found for symbol: %s", symbol)
	}
	return &quote, nil
}

// FinnhubMetrics represents the subset of /stock/metric fields the
// snapshot uses. Finnhub omits metrics it has no data for, hence the
// pointers.
type FinnhubMetrics struct {
	Metric struct {
		PETrailing    *float64 `json:"peBasicExclExtraTTM"`
		PEForward     *float64 `json:"peNormalizedAnnual"`
		DividendYield *float64 `json:"dividendYieldIndicatedAnnual"`
		Beta          *float64 `json:"beta"`
		High52Week    *float64 `json:"52WeekHigh"`
		Low52Week     *float64 `json:"52WeekLow"`
	} `json:"metric"`
}

// GetBasicFinancials gets fundamental metrics for a symbol
func (fc *FinnhubClient) GetBasicFinancials(ctx context.Context, symbol string) (*FinnhubMetrics, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)

	var cached FinnhubMetrics
	if fc.cache.Get("finnhub", "metrics", symbol, &cached) {
		return &cached, nil
	}

	var metrics FinnhubMetrics
	err := fc.get(ctx, "/stock/metric", map[string]string{
		"symbol": symbol,
		"metric": "all",
	}, &metrics)
	if err != nil {
		return nil, err
	}

	fc.cache.Set("finnhub", "metrics", symbol, &metrics)
	return &metrics, nil
}

// FinnhubCandles represents candle data from /stock/candle
type FinnhubCandles struct {
	Open      []float64 `json:"o"`
	High      []float64 `json:"h"`
	Low       []float64 `json:"l"`
	Close     []float64 `json:"c"`
	Volume    []int64   `json:"v"`
	Timestamp []int64   `json:"t"`
	Status    string    `json:"s"`
}

// GetCandles gets daily candles for a symbol over the given window.
// A "no_data" status yields an empty series rather than an error so
// callers can fall back to another source.
func (fc *FinnhubClient) GetCandles(ctx context.Context, symbol string, from, to time.Time) (*models.CandleSeries, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)

	cacheKey := map[string]interface{}{
		"symbol": symbol,
		"from":   from.Format("2006-01-02"),
		"to":     to.Format("2006-01-02"),
	}

	var cached models.CandleSeries
	if fc.cache.Get("finnhub", "candles", cacheKey, &cached) {
		return &cached, nil
	}

	var raw FinnhubCandles
	err := fc.get(ctx, "/stock/candle", map[string]string{
		"symbol":     symbol,
		"resolution": "D",
		"from":       strconv.FormatInt(from.Unix(), 10),
		"to":         strconv.FormatInt(to.Unix(), 10),
	}, &raw)
	if err != nil {
		return nil, err
	}

	series := &models.CandleSeries{Symbol: symbol, Source: "finnhub"}
	if raw.Status != "ok" {
		return series, nil
	}

	n := len(raw.Timestamp)
	series.Candles = make([]models.Candle, 0, n)
	for i := 0; i < n; i++ {
		if i >= len(raw.Open) || i >= len(raw.High) || i >= len(raw.Low) || i >= len(raw.Close) {
			break
		}
		candle := models.Candle{
			Date:  time.Unix(raw.Timestamp[i], 0),
			Open:  decimal.NewFromFloat(raw.Open[i]),
			High:  decimal.NewFromFloat(raw.High[i]),
			Low:   decimal.NewFromFloat(raw.Low[i]),
			Close: decimal.NewFromFloat(raw.Close[i]),
		}
		if i < len(raw.Volume) {
			candle.Volume = raw.Volume[i]
		}
		series.Candles = append(series.Candles, candle)
	}

	fc.cache.Set("finnhub", "candles", cacheKey, series)
	return series, nil
}

// FinnhubNews represents news from Finnhub API
type FinnhubNews struct {
	Category string `json:"category"`
	DateTime int64  `json:"datetime"`
	Headline string `json:"headline"`
	ID       int64  `json:"id"`
	Image    string `json:"image"`
	Related  string `json:"related"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// GetCompanyNews gets recent news articles for a company, capped at limit.
func (fc *FinnhubClient) GetCompanyNews(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.NewsArticle, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)

	cacheKey := map[string]interface{}{
		"symbol": symbol,
		"from":   from.Format("2006-01-02"),
		"to":     to.Format("2006-01-02"),
		"limit":  limit,
	}

	var cached []*models.NewsArticle
	if fc.cache.Get("finnhub", "company_news", cacheKey, &cached) {
		return cached, nil
	}

	var finnhubNews []FinnhubNews
	err := fc.get(ctx, "/company-news", map[string]string{
		"symbol": symbol,
		"from":   from.Format("2006-01-02"),
		"to":     to.Format("2006-01-02"),
	}, &finnhubNews)
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(finnhubNews) > limit {
		finnhubNews = finnhubNews[:limit]
	}

	result := make([]*models.NewsArticle, 0, len(finnhubNews))
	for _, news := range finnhubNews {
		article := &models.NewsArticle{
			Title:       news.Headline,
			Content:     news.Summary,
			URL:         news.URL,
			Source:      news.Source,
			PublishedAt: time.Unix(news.DateTime, 0),
			Keywords:    []string{symbol},
			Metadata: map[string]string{
				"category": news.Category,
				"image":    news.Image,
				"related":  news.Related,
				"id":       strconv.FormatInt(news.ID, 10),
			},
		}
		result = append(result, article)
	}

	fc.cache.Set("finnhub", "company_news", cacheKey, result)
	return result, nil
}
