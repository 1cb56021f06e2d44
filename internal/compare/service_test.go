package compare

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsightlab/finsight/internal/config"
	"github.com/finsightlab/finsight/internal/dataflows"
	"github.com/finsightlab/finsight/internal/models"
)

type stubMarket struct {
	failSymbol string
	candles    map[string]*models.CandleSeries
	quote      *dataflows.FinnhubQuote

	mu            sync.Mutex
	lastNewsLimit int
}

func (m *stubMarket) GetCompanyProfile(ctx context.Context, symbol string) (*dataflows.FinnhubProfile, error) {
	if symbol == m.failSymbol {
		return nil, errors.New("provider down")
	}
	return &dataflows.FinnhubProfile{
		Name:                 symbol + " Inc",
		Ticker:               symbol,
		MarketCapitalization: 1000, // millions
		FinnhubIndustry:      "Technology",
	}, nil
}

func (m *stubMarket) GetQuote(ctx context.Context, symbol string) (*dataflows.FinnhubQuote, error) {
	if m.quote != nil {
		return m.quote, nil
	}
	return &dataflows.FinnhubQuote{Current: 100.5, High: 110, Low: 90, Timestamp: time.Now().Unix()}, nil
}

func (m *stubMarket) GetBasicFinancials(ctx context.Context, symbol string) (*dataflows.FinnhubMetrics, error) {
	var metrics dataflows.FinnhubMetrics
	pe := 25.0
	yield := 1.5 // percent
	metrics.Metric.PETrailing = &pe
	metrics.Metric.DividendYield = &yield
	return &metrics, nil
}

func (m *stubMarket) GetCandles(ctx context.Context, symbol string, from, to time.Time) (*models.CandleSeries, error) {
	if series, ok := m.candles[symbol]; ok {
		return series, nil
	}
	return &models.CandleSeries{Symbol: symbol, Source: "finnhub"}, nil
}

func (m *stubMarket) GetCompanyNews(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.NewsArticle, error) {
	m.mu.Lock()
	m.lastNewsLimit = limit
	m.mu.Unlock()
	return []*models.NewsArticle{{Title: symbol + " rallies", Content: "short summary"}}, nil
}

type stubFallback struct {
	called      bool
	quoteCalled bool
	quotePrice  decimal.Decimal
}

func (f *stubFallback) GetHistoricalData(symbol string, start, end time.Time) (*models.CandleSeries, error) {
	f.called = true
	return &models.CandleSeries{
		Symbol:  symbol,
		Source:  "yahoo",
		Candles: []models.Candle{{Date: start}},
	}, nil
}

func (f *stubFallback) GetQuotePrice(symbol string) (decimal.Decimal, error) {
	f.quoteCalled = true
	return f.quotePrice, nil
}

type stubCommentator struct {
	compareCalls int
}

func (c *stubCommentator) Compare(ctx context.Context, snapA, snapB *models.StockSnapshot) (string, error) {
	c.compareCalls++
	return fmt.Sprintf("analysis of %s vs %s", snapA.Symbol, snapB.Symbol), nil
}

func (c *stubCommentator) ChatReply(ctx context.Context, cmp *models.Comparison, question string) (string, error) {
	// Walk the history the way the real analyst does when threading
	// prior turns into the prompt.
	for _, msg := range cmp.Messages {
		if msg.Role != models.RoleUser && msg.Role != models.RoleAssistant {
			return "", fmt.Errorf("unexpected role %q", msg.Role)
		}
	}
	return "reply: " + question, nil
}

type memRepo struct {
	mu          sync.Mutex
	comparisons map[int64]*models.Comparison
	nextID      int64
	messages    map[int64][]models.ChatMessage
}

func newMemRepo() *memRepo {
	return &memRepo{comparisons: map[int64]*models.Comparison{}, messages: map[int64][]models.ChatMessage{}, nextID: 1}
}

func (r *memRepo) SaveComparison(cmp *models.Comparison) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cmp.ID = r.nextID
	r.nextID++
	r.comparisons[cmp.ID] = cmp
	return cmp.ID, nil
}

func (r *memRepo) GetComparison(id int64) (*models.Comparison, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cmp, ok := r.comparisons[id]
	if !ok {
		return nil, errors.New("comparison not found")
	}
	return cmp, nil
}

func (r *memRepo) AppendMessage(comparisonID int64, msg models.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[comparisonID] = append(r.messages[comparisonID], msg)
	return nil
}

func (r *memRepo) ListComparisons(limit int) ([]*models.Comparison, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Comparison
	for _, cmp := range r.comparisons {
		out = append(out, cmp)
	}
	return out, nil
}

func (r *memRepo) messageCount(comparisonID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages[comparisonID])
}

func newTestService(t *testing.T, market *stubMarket, fallback *stubFallback) (*Service, *memRepo) {
	t.Helper()
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	repo := newMemRepo()
	var secondary SecondarySource
	if fallback != nil {
		secondary = fallback
	}
	svc := NewService(cfg, market, secondary, &stubCommentator{}, repo, nil)
	return svc, repo
}

func TestSnapshotAssembly(t *testing.T) {
	svc, _ := newTestService(t, &stubMarket{}, nil)

	snap, err := svc.Snapshot(context.Background(), "nvda")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Symbol != "NVDA" {
		t.Fatalf("symbol not normalized: %q", snap.Symbol)
	}
	// 1000 million scaled to absolute dollars.
	if !snap.MarketCap.Valid || snap.MarketCap.Decimal.String() != "1000000000" {
		t.Fatalf("market cap not scaled: %v", snap.MarketCap)
	}
	// 1.5 percent stored as fraction.
	if !snap.DividendYield.Valid || snap.DividendYield.Decimal.String() != "0.015" {
		t.Fatalf("dividend yield not converted: %v", snap.DividendYield)
	}
	// Metric endpoint had no 52-week range; quote day range fills in.
	if !snap.High52Week.Valid || snap.High52Week.Decimal.String() != "110" {
		t.Fatalf("52w high fallback missing: %v", snap.High52Week)
	}
	if snap.ForwardPE.Valid {
		t.Fatal("forward P/E should be absent")
	}
}

func TestCompareCreatesAndPersists(t *testing.T) {
	svc, repo := newTestService(t, &stubMarket{}, nil)

	cmp, err := svc.Compare(context.Background(), "NVDA", "MSFT")
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if cmp.ID == 0 {
		t.Fatal("comparison not persisted")
	}
	if cmp.Analysis != "analysis of NVDA vs MSFT" {
		t.Fatalf("unexpected analysis: %q", cmp.Analysis)
	}
	if svc.Current() != cmp {
		t.Fatal("compare should set current comparison")
	}
	if len(repo.comparisons) != 1 {
		t.Fatalf("expected 1 stored comparison, got %d", len(repo.comparisons))
	}
}

func TestCompareRejectsSamePair(t *testing.T) {
	svc, _ := newTestService(t, &stubMarket{}, nil)

	if _, err := svc.Compare(context.Background(), "nvda", "NVDA"); err == nil {
		t.Fatal("expected error comparing a symbol with itself")
	}
}

func TestCompareNamesFailedSymbol(t *testing.T) {
	svc, _ := newTestService(t, &stubMarket{failSymbol: "MSFT"}, nil)

	_, err := svc.Compare(context.Background(), "NVDA", "MSFT")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "MSFT") {
		t.Fatalf("error should name the failed symbol: %v", err)
	}
}

func TestChatAppendsHistoryAndResetsOnNewPair(t *testing.T) {
	svc, repo := newTestService(t, &stubMarket{}, nil)

	if _, _, err := svc.Chat(context.Background(), 0, "hello"); err == nil {
		t.Fatal("chat before compare should fail")
	}

	cmp, err := svc.Compare(context.Background(), "NVDA", "MSFT")
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}

	_, reply, err := svc.Chat(context.Background(), 0, "Which has better valuation?")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply != "reply: Which has better valuation?" {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if len(cmp.Messages) != 2 {
		t.Fatalf("expected user+assistant turns, got %d", len(cmp.Messages))
	}
	if got := repo.messageCount(cmp.ID); got != 2 {
		t.Fatalf("messages not persisted: %d", got)
	}

	// A new pair starts a fresh chat.
	next, err := svc.Compare(context.Background(), "AAPL", "GOOG")
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if len(next.Messages) != 0 {
		t.Fatal("new comparison should start with empty chat")
	}
	if svc.Current() != next {
		t.Fatal("current comparison not replaced")
	}
}

func TestChatConcurrentOnSameComparison(t *testing.T) {
	svc, repo := newTestService(t, &stubMarket{}, nil)

	if _, err := svc.Compare(context.Background(), "NVDA", "MSFT"); err != nil {
		t.Fatalf("Compare: %v", err)
	}

	const workers, rounds = 8, 25
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				if _, _, err := svc.Chat(context.Background(), 0, "still bullish?"); err != nil {
					t.Errorf("Chat: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	want := 2 * workers * rounds
	if got := len(svc.Current().Messages); got != want {
		t.Fatalf("expected %d chat turns, got %d", want, got)
	}
	if got := repo.messageCount(svc.Current().ID); got != want {
		t.Fatalf("expected %d persisted turns, got %d", want, got)
	}
}

func TestSnapshotQuoteFallback(t *testing.T) {
	market := &stubMarket{quote: &dataflows.FinnhubQuote{}}
	fallback := &stubFallback{quotePrice: decimal.RequireFromString("123.45")}
	svc, _ := newTestService(t, market, fallback)

	snap, err := svc.Snapshot(context.Background(), "NVDA")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if !fallback.quoteCalled {
		t.Fatal("expected secondary quote lookup for empty primary quote")
	}
	if !snap.CurrentPrice.Valid || snap.CurrentPrice.Decimal.String() != "123.45" {
		t.Fatalf("fallback price not applied: %v", snap.CurrentPrice)
	}
}

func TestApplyConfigAdjustsNewsLimit(t *testing.T) {
	market := &stubMarket{}
	svc, _ := newTestService(t, market, nil)

	if _, err := svc.News(context.Background(), "NVDA", false); err != nil {
		t.Fatalf("News: %v", err)
	}
	if market.lastNewsLimit != 5 {
		t.Fatalf("default news limit not applied: %d", market.lastNewsLimit)
	}

	next := config.DefaultConfigWithRoot(t.TempDir())
	next.NewsLimit = 2
	svc.ApplyConfig(next)

	if _, err := svc.News(context.Background(), "NVDA", false); err != nil {
		t.Fatalf("News: %v", err)
	}
	if market.lastNewsLimit != 2 {
		t.Fatalf("reloaded news limit not applied: %d", market.lastNewsLimit)
	}
}

func TestCompareExportsResultFile(t *testing.T) {
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	svc := NewService(cfg, &stubMarket{}, nil, &stubCommentator{}, newMemRepo(), nil)

	if _, err := svc.Compare(context.Background(), "NVDA", "MSFT"); err != nil {
		t.Fatalf("Compare: %v", err)
	}

	entries, err := os.ReadDir(cfg.ResultsDir)
	if err != nil {
		t.Fatalf("read results dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one exported comparison, got %d", len(entries))
	}

	var exported models.Comparison
	if err := dataflows.LoadDataFromFile(filepath.Join(cfg.ResultsDir, entries[0].Name()), &exported); err != nil {
		t.Fatalf("load export: %v", err)
	}
	if exported.Analysis != "analysis of NVDA vs MSFT" {
		t.Fatalf("unexpected exported analysis: %q", exported.Analysis)
	}
}

func TestCandlesFallsBack(t *testing.T) {
	fallback := &stubFallback{}
	svc, _ := newTestService(t, &stubMarket{}, fallback)

	series, err := svc.Candles(context.Background(), "NVDA")
	if err != nil {
		t.Fatalf("Candles: %v", err)
	}
	if !fallback.called {
		t.Fatal("expected fallback to be used for empty primary series")
	}
	if series.Source != "yahoo" {
		t.Fatalf("unexpected source: %q", series.Source)
	}
}

func TestCandlesPrimaryWins(t *testing.T) {
	market := &stubMarket{candles: map[string]*models.CandleSeries{
		"NVDA": {Symbol: "NVDA", Source: "finnhub", Candles: []models.Candle{{}}},
	}}
	fallback := &stubFallback{}
	svc, _ := newTestService(t, market, fallback)

	series, err := svc.Candles(context.Background(), "NVDA")
	if err != nil {
		t.Fatalf("Candles: %v", err)
	}
	if fallback.called {
		t.Fatal("fallback should not run when primary has data")
	}
	if series.Source != "finnhub" {
		t.Fatalf("unexpected source: %q", series.Source)
	}
}
