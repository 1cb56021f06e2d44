package dataflows

import (
	"errors"
	"testing"
	"time"
)

func TestValidateSymbol(t *testing.T) {
	if err := ValidateSymbol("aapl"); err != nil {
		t.Fatalf("lowercase symbol should validate: %v", err)
	}
	if err := ValidateSymbol("  MSFT "); err != nil {
		t.Fatalf("padded symbol should validate: %v", err)
	}
	if err := ValidateSymbol(""); err == nil {
		t.Fatal("empty symbol should fail")
	}
	if err := ValidateSymbol("TOOLONGSYMBOL"); err == nil {
		t.Fatal("overlong symbol should fail")
	}
}

func TestNormalizeSymbol(t *testing.T) {
	if got := NormalizeSymbol(" nvda "); got != "NVDA" {
		t.Fatalf("expected NVDA, got %q", got)
	}
}

func TestParseDateString(t *testing.T) {
	got, err := ParseDateString("2024-03-15")
	if err != nil {
		t.Fatalf("ParseDateString: %v", err)
	}
	if got.Year() != 2024 || got.Month() != time.March || got.Day() != 15 {
		t.Fatalf("unexpected date: %v", got)
	}

	if _, err := ParseDateString("not a date"); err == nil {
		t.Fatal("expected error for garbage input")
	}
}

func TestCacheRoundTrip(t *testing.T) {
	cache := NewCacheManager(t.TempDir(), time.Hour, true)

	params := map[string]string{"symbol": "AAPL"}
	in := []string{"a", "b"}
	if err := cache.Set("test", "roundtrip", params, in); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var out []string
	if !cache.Get("test", "roundtrip", params, &out) {
		t.Fatal("expected cache hit")
	}
	if len(out) != 2 || out[0] != "a" {
		t.Fatalf("unexpected cached value: %v", out)
	}

	// Different params must miss.
	if cache.Get("test", "roundtrip", map[string]string{"symbol": "MSFT"}, &out) {
		t.Fatal("expected cache miss for different params")
	}
}

func TestCacheExpiry(t *testing.T) {
	cache := NewCacheManager(t.TempDir(), time.Nanosecond, true)

	if err := cache.Set("test", "expiry", "k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	var out string
	if cache.Get("test", "expiry", "k", &out) {
		t.Fatal("expected expired entry to miss")
	}
}

func TestCacheDisabled(t *testing.T) {
	cache := NewCacheManager(t.TempDir(), time.Hour, false)

	if err := cache.Set("test", "disabled", "k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var out string
	if cache.Get("test", "disabled", "k", &out) {
		t.Fatal("disabled cache should never hit")
	}
}

func TestWithRetryGivesUp(t *testing.T) {
	cfg := &RetryConfig{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   time.Millisecond,
		Multiplier: 1.0,
	}

	calls := 0
	sentinel := errors.New("boom")
	err := WithRetry(cfg, func() error {
		calls++
		return sentinel
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped sentinel, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	cfg := &RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   time.Millisecond,
		Multiplier: 1.0,
	}

	calls := 0
	sentinel := errors.New("bad credentials")
	err := WithRetry(cfg, func() error {
		calls++
		return &permanentError{sentinel}
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected the underlying error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("permanent errors must not be retried, got %d attempts", calls)
	}
}

func TestFormatDateRange(t *testing.T) {
	start := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	end := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)
	if got := FormatDateRange(start, end); got != "2025-01-02 to 2025-02-03" {
		t.Fatalf("unexpected range: %q", got)
	}
}

func TestWithRetryRecovers(t *testing.T) {
	cfg := &RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   time.Millisecond,
		Multiplier: 1.0,
	}

	calls := 0
	err := WithRetry(cfg, func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retry: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}
