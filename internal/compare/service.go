package compare

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsightlab/finsight/internal/config"
	"github.com/finsightlab/finsight/internal/dataflows"
	"github.com/finsightlab/finsight/internal/models"
)

// MarketSource provides per-symbol company data. Implemented by
// dataflows.FinnhubClient.
type MarketSource interface {
	GetCompanyProfile(ctx context.Context, symbol string) (*dataflows.FinnhubProfile, error)
	GetQuote(ctx context.Context, symbol string) (*dataflows.FinnhubQuote, error)
	GetBasicFinancials(ctx context.Context, symbol string) (*dataflows.FinnhubMetrics, error)
	GetCandles(ctx context.Context, symbol string, from, to time.Time) (*models.CandleSeries, error)
	GetCompanyNews(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.NewsArticle, error)
}

// SecondarySource fills gaps the primary provider leaves: daily
// candles when it returns none, and a quote price when its quote comes
// back empty. Implemented by dataflows.YahooFinanceClient.
type SecondarySource interface {
	GetHistoricalData(symbol string, start, end time.Time) (*models.CandleSeries, error)
	GetQuotePrice(symbol string) (decimal.Decimal, error)
}

// Commentator generates analysis text. Implemented by analyst.Analyst.
type Commentator interface {
	Compare(ctx context.Context, snapA, snapB *models.StockSnapshot) (string, error)
	ChatReply(ctx context.Context, cmp *models.Comparison, question string) (string, error)
}

// Repository persists comparisons. Implemented by sqlite.Store.
type Repository interface {
	SaveComparison(cmp *models.Comparison) (int64, error)
	GetComparison(id int64) (*models.Comparison, error)
	AppendMessage(comparisonID int64, msg models.ChatMessage) error
	ListComparisons(limit int) ([]*models.Comparison, error)
}

// Enricher expands news articles with full page text. Implemented by
// dataflows.ArticleScraper.
type Enricher interface {
	Enrich(articles []*models.NewsArticle)
}

// Service orchestrates snapshot fetching, analysis generation, and
// follow-up chat for a stock pair.
type Service struct {
	cfg      *config.Config
	market   MarketSource
	fallback SecondarySource
	analyst  Commentator
	repo     Repository
	enricher Enricher

	mu      sync.RWMutex
	current *models.Comparison
}

func NewService(cfg *config.Config, market MarketSource, fallback SecondarySource, commentator Commentator, repo Repository, enricher Enricher) *Service {
	return &Service{
		cfg:      cfg,
		market:   market,
		fallback: fallback,
		analyst:  commentator,
		repo:     repo,
		enricher: enricher,
	}
}

// Snapshot fetches and consolidates profile, quote, and fundamentals
// for one symbol. Profile, quote, and metrics are fetched concurrently.
func (s *Service) Snapshot(ctx context.Context, symbol string) (*models.StockSnapshot, error) {
	if err := dataflows.ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = dataflows.NormalizeSymbol(symbol)

	var (
		wg      sync.WaitGroup
		profile *dataflows.FinnhubProfile
		quote   *dataflows.FinnhubQuote
		metrics *dataflows.FinnhubMetrics
		errs    [3]error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		profile, errs[0] = s.market.GetCompanyProfile(ctx, symbol)
	}()
	go func() {
		defer wg.Done()
		quote, errs[1] = s.market.GetQuote(ctx, symbol)
	}()
	go func() {
		defer wg.Done()
		metrics, errs[2] = s.market.GetBasicFinancials(ctx, symbol)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("fetch data for %s: %w", symbol, err)
		}
	}

	snap := buildSnapshot(symbol, profile, quote, metrics)

	// The free Finnhub tier occasionally returns an empty quote; the
	// secondary source still knows the last price.
	if !snap.CurrentPrice.Valid && s.fallback != nil {
		price, err := s.fallback.GetQuotePrice(symbol)
		switch {
		case err != nil:
			log.Printf("fallback quote for %s: %v", symbol, err)
		case price.IsPositive():
			snap.CurrentPrice = decimal.NewNullDecimal(price)
		}
	}

	return snap, nil
}

func buildSnapshot(symbol string, profile *dataflows.FinnhubProfile, quote *dataflows.FinnhubQuote, metrics *dataflows.FinnhubMetrics) *models.StockSnapshot {
	snap := &models.StockSnapshot{
		Symbol:    symbol,
		Name:      profile.Name,
		Sector:    profile.FinnhubIndustry,
		FetchedAt: time.Now(),
	}

	// Finnhub reports market cap in millions.
	if profile.MarketCapitalization > 0 {
		snap.MarketCap = decimal.NewNullDecimal(
			decimal.NewFromFloat(profile.MarketCapitalization).Mul(decimal.NewFromInt(1_000_000)))
	}
	if quote.Current > 0 {
		snap.CurrentPrice = decimal.NewNullDecimal(decimal.NewFromFloat(quote.Current))
	}

	m := metrics.Metric
	snap.TrailingPE = nullDec(m.PETrailing)
	snap.ForwardPE = nullDec(m.PEForward)
	snap.Beta = nullDec(m.Beta)
	snap.High52Week = nullDec(m.High52Week)
	snap.Low52Week = nullDec(m.Low52Week)

	// Finnhub reports the indicated annual yield in percent.
	if m.DividendYield != nil {
		snap.DividendYield = decimal.NewNullDecimal(
			decimal.NewFromFloat(*m.DividendYield).Div(decimal.NewFromInt(100)))
	}

	// Fall back to the quote's day range when the metric endpoint has
	// no 52-week figures.
	if !snap.High52Week.Valid && quote.High > 0 {
		snap.High52Week = decimal.NewNullDecimal(decimal.NewFromFloat(quote.High))
	}
	if !snap.Low52Week.Valid && quote.Low > 0 {
		snap.Low52Week = decimal.NewNullDecimal(decimal.NewFromFloat(quote.Low))
	}

	return snap
}

func nullDec(f *float64) decimal.NullDecimal {
	if f == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(*f))
}

// ApplyConfig swaps the runtime tunables, typically after a config
// file reload.
func (s *Service) ApplyConfig(cfg *config.Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *Service) config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Candles returns the daily history for the configured window, falling
// back to the secondary source when the primary has no data.
func (s *Service) Candles(ctx context.Context, symbol string) (*models.CandleSeries, error) {
	to := time.Now()
	from := to.AddDate(0, 0, -s.config().CandleWindowDays)

	series, err := s.market.GetCandles(ctx, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch candles for %s: %w", symbol, err)
	}
	if !series.Empty() {
		return series, nil
	}

	if s.fallback == nil {
		return series, nil
	}
	log.Printf("no primary candle data for %s (%s), falling back to secondary source",
		symbol, dataflows.FormatDateRange(from, to))
	fallbackSeries, err := s.fallback.GetHistoricalData(symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("fallback candles for %s: %w", symbol, err)
	}
	return fallbackSeries, nil
}

// News returns recent articles for a symbol. With enrich set, article
// bodies are scraped from their source pages.
func (s *Service) News(ctx context.Context, symbol string, enrich bool) ([]*models.NewsArticle, error) {
	cfg := s.config()
	to := time.Now()
	from := to.AddDate(0, 0, -cfg.NewsWindowDays)

	news, err := s.market.GetCompanyNews(ctx, symbol, from, to, cfg.NewsLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch news for %s: %w", symbol, err)
	}
	if enrich && s.enricher != nil {
		s.enricher.Enrich(news)
	}
	return news, nil
}

// Compare fetches both snapshots, generates the analysis, persists the
// result, and makes it the current comparison. Starting a new pair
// resets the chat history.
func (s *Service) Compare(ctx context.Context, symbolA, symbolB string) (*models.Comparison, error) {
	if dataflows.NormalizeSymbol(symbolA) == dataflows.NormalizeSymbol(symbolB) {
		return nil, fmt.Errorf("cannot compare %s with itself", dataflows.NormalizeSymbol(symbolA))
	}

	var (
		wg    sync.WaitGroup
		snaps [2]*models.StockSnapshot
		errs  [2]error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		snaps[0], errs[0] = s.Snapshot(ctx, symbolA)
	}()
	go func() {
		defer wg.Done()
		snaps[1], errs[1] = s.Snapshot(ctx, symbolB)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	analysis, err := s.analyst.Compare(ctx, snaps[0], snaps[1])
	if err != nil {
		return nil, err
	}

	cmp := &models.Comparison{
		SnapshotA: snaps[0],
		SnapshotB: snaps[1],
		Analysis:  analysis,
		CreatedAt: time.Now(),
	}

	if s.repo != nil {
		if _, err := s.repo.SaveComparison(cmp); err != nil {
			return nil, fmt.Errorf("persist comparison: %w", err)
		}
	}

	// Keep a JSON export of every analysis in the results directory.
	if dir := s.config().ResultsDir; dir != "" {
		name := fmt.Sprintf("comparison_%s_%s_%s.json",
			cmp.SnapshotA.Symbol, cmp.SnapshotB.Symbol, cmp.CreatedAt.Format("20060102_150405"))
		if err := dataflows.SaveDataToFile(cmp, filepath.Join(dir, name)); err != nil {
			log.Printf("save comparison result: %v", err)
		}
	}

	s.mu.Lock()
	s.current = cmp
	s.mu.Unlock()

	return cmp, nil
}

// Current returns the active comparison, or nil before the first
// Compare call.
func (s *Service) Current() *models.Comparison {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Chat answers a follow-up question against a stored comparison. An id
// of zero targets the current comparison.
func (s *Service) Chat(ctx context.Context, id int64, question string) (*models.Comparison, string, error) {
	cmp, err := s.resolve(id)
	if err != nil {
		return nil, "", err
	}

	// The analyst iterates the history while concurrent chats append to
	// it, so it gets a copy taken under the lock.
	reply, err := s.analyst.ChatReply(ctx, s.historyView(cmp), question)
	if err != nil {
		return nil, "", err
	}

	now := time.Now()
	userMsg := models.ChatMessage{Role: models.RoleUser, Content: question, CreatedAt: now}
	assistantMsg := models.ChatMessage{Role: models.RoleAssistant, Content: reply, CreatedAt: now}

	s.mu.Lock()
	cmp.Messages = append(cmp.Messages, userMsg, assistantMsg)
	s.mu.Unlock()

	if s.repo != nil && cmp.ID != 0 {
		if err := s.repo.AppendMessage(cmp.ID, userMsg); err != nil {
			log.Printf("persist chat message: %v", err)
		}
		if err := s.repo.AppendMessage(cmp.ID, assistantMsg); err != nil {
			log.Printf("persist chat message: %v", err)
		}
	}

	return cmp, reply, nil
}

// historyView copies a comparison together with its message slice so
// readers never observe an append happening under s.mu.
func (s *Service) historyView(cmp *models.Comparison) *models.Comparison {
	s.mu.RLock()
	defer s.mu.RUnlock()
	view := *cmp
	view.Messages = append([]models.ChatMessage(nil), cmp.Messages...)
	return &view
}

func (s *Service) resolve(id int64) (*models.Comparison, error) {
	if id == 0 {
		s.mu.RLock()
		cmp := s.current
		s.mu.RUnlock()
		if cmp == nil {
			return nil, fmt.Errorf("no active comparison; run a compare first")
		}
		return cmp, nil
	}

	s.mu.RLock()
	cmp := s.current
	s.mu.RUnlock()
	if cmp != nil && cmp.ID == id {
		return cmp, nil
	}

	if s.repo == nil {
		return nil, fmt.Errorf("comparison %d not available", id)
	}
	return s.repo.GetComparison(id)
}

// Get returns a comparison by id, preferring the in-memory current
// one. The result owns its message slice, so callers can read it while
// chats continue.
func (s *Service) Get(id int64) (*models.Comparison, error) {
	cmp, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	return s.historyView(cmp), nil
}

// Recent lists the latest stored comparisons.
func (s *Service) Recent(limit int) ([]*models.Comparison, error) {
	if s.repo == nil {
		return nil, nil
	}
	return s.repo.ListComparisons(limit)
}
