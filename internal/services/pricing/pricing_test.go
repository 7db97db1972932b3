package pricing

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/papertrade.space/internal/platform/money"
)

func TestAlphaVantageQuote(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("function"); got != "GLOBAL_QUOTE" {
			t.Errorf("function = %q, want GLOBAL_QUOTE", got)
		}
		if got := r.URL.Query().Get("symbol"); got != "GOOG" {
			t.Errorf("symbol = %q, want GOOG", got)
		}
		if got := r.URL.Query().Get("apikey"); got != "test-key" {
			t.Errorf("apikey = %q, want test-key", got)
		}
		fmt.Fprint(w, `{"Global Quote": {"01. symbol": "GOOG", "05. price": "123.4500"}}`)
	}))
	defer server.Close()

	client := NewAlphaVantageWithBaseURL("test-key", server.URL)
	price, err := client.Quote(context.Background(), "GOOG")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if price.Cents() != 12345 {
		t.Fatalf("price = %d cents, want 12345", price.Cents())
	}
}

func TestAlphaVantageQuoteUnknownSymbol(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Global Quote": {}}`)
	}))
	defer server.Close()

	client := NewAlphaVantageWithBaseURL("test-key", server.URL)
	if _, err := client.Quote(context.Background(), "NOPE"); err == nil {
		t.Fatal("expected error for empty quote payload")
	}
}

func TestAlphaVantageQuoteUpstreamFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewAlphaVantageWithBaseURL("test-key", server.URL)
	if _, err := client.Quote(context.Background(), "GOOG"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

type countingQuoter struct {
	mu     sync.Mutex
	calls  int
	prices map[string]money.Amount
}

func (q *countingQuoter) Quote(ctx context.Context, name string) (money.Amount, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls++
	price, ok := q.prices[name]
	if !ok {
		return 0, fmt.Errorf("no quote for %s", name)
	}
	return price, nil
}

func (q *countingQuoter) Quotes(ctx context.Context, names []string) (map[string]money.Amount, error) {
	quotes := make(map[string]money.Amount, len(names))
	for _, name := range names {
		price, err := q.Quote(ctx, name)
		if err != nil {
			return nil, err
		}
		quotes[name] = price
	}
	return quotes, nil
}

func (q *countingQuoter) callCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls
}

func TestCacheAvoidsRepeatLookups(t *testing.T) {
	t.Parallel()

	upstream := &countingQuoter{prices: map[string]money.Amount{"GOOG": money.FromCents(10000)}}
	cache := NewCache(upstream, 16, time.Minute)

	for range 3 {
		price, err := cache.Quote(context.Background(), "GOOG")
		if err != nil {
			t.Fatalf("quote: %v", err)
		}
		if price.Cents() != 10000 {
			t.Fatalf("price = %d cents, want 10000", price.Cents())
		}
	}
	if got := upstream.callCount(); got != 1 {
		t.Fatalf("upstream calls = %d, want 1", got)
	}
}

func TestCacheQuotesFetchesOnlyMissing(t *testing.T) {
	t.Parallel()

	upstream := &countingQuoter{prices: map[string]money.Amount{
		"GOOG": money.FromCents(10000),
		"AMZN": money.FromCents(9000),
	}}
	cache := NewCache(upstream, 16, time.Minute)

	if _, err := cache.Quote(context.Background(), "GOOG"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	quotes, err := cache.Quotes(context.Background(), []string{"GOOG", "AMZN"})
	if err != nil {
		t.Fatalf("quotes: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("quotes = %v, want both symbols", quotes)
	}
	if got := upstream.callCount(); got != 2 {
		t.Fatalf("upstream calls = %d, want 2", got)
	}
}

type memoryHistory struct {
	mu    sync.Mutex
	ticks []string
}

func (h *memoryHistory) RecordSecurityPrice(ctx context.Context, name string, price money.Amount) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ticks = append(h.ticks, fmt.Sprintf("%s=%d", name, price.Cents()))
	return nil
}

func TestRecorderAppendsTicks(t *testing.T) {
	t.Parallel()

	upstream := &countingQuoter{prices: map[string]money.Amount{"GOOG": money.FromCents(10000)}}
	history := &memoryHistory{}
	recorder := NewRecorder(upstream, history)

	if _, err := recorder.Quote(context.Background(), "GOOG"); err != nil {
		t.Fatalf("quote: %v", err)
	}
	if len(history.ticks) != 1 || history.ticks[0] != "GOOG=10000" {
		t.Fatalf("ticks = %v, want [GOOG=10000]", history.ticks)
	}
}

func TestCacheOverRecorderSkipsDuplicateTicks(t *testing.T) {
	t.Parallel()

	upstream := &countingQuoter{prices: map[string]money.Amount{"GOOG": money.FromCents(10000)}}
	history := &memoryHistory{}
	cache := NewCache(NewRecorder(upstream, history), 16, time.Minute)

	for range 3 {
		if _, err := cache.Quote(context.Background(), "GOOG"); err != nil {
			t.Fatalf("quote: %v", err)
		}
	}
	if len(history.ticks) != 1 {
		t.Fatalf("ticks = %v, want a single tick for cached quotes", history.ticks)
	}
}
