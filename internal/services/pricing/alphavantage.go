package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/louisbranch/papertrade.space/internal/platform/money"
	"github.com/louisbranch/papertrade.space/internal/platform/timeouts"
)

const defaultAlphaVantageBaseURL = "https://www.alphavantage.co"

// AlphaVantage quotes securities through the GLOBAL_QUOTE endpoint.
type AlphaVantage struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewAlphaVantage creates a client against the public Alpha Vantage API.
func NewAlphaVantage(apiKey string) *AlphaVantage {
	return &AlphaVantage{
		apiKey:     apiKey,
		baseURL:    defaultAlphaVantageBaseURL,
		httpClient: &http.Client{Timeout: timeouts.QuoteRequest},
	}
}

// NewAlphaVantageWithBaseURL creates a client against a custom endpoint.
func NewAlphaVantageWithBaseURL(apiKey, baseURL string) *AlphaVantage {
	client := NewAlphaVantage(apiKey)
	client.baseURL = strings.TrimRight(baseURL, "/")
	return client
}

// globalQuoteResponse mirrors the GLOBAL_QUOTE payload; field names are the
// API's numbered keys.
type globalQuoteResponse struct {
	GlobalQuote struct {
		Symbol string `json:"01. symbol"`
		Price  string `json:"05. price"`
	} `json:"Global Quote"`
}

// Quote returns the latest traded price of one security.
func (c *AlphaVantage) Quote(ctx context.Context, name string) (money.Amount, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("security name is required")
	}

	query := url.Values{}
	query.Set("function", "GLOBAL_QUOTE")
	query.Set("symbol", name)
	query.Set("apikey", c.apiKey)
	endpoint := c.baseURL + "/query?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("build quote request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch quote for %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetch quote for %s: status %d", name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("read quote response: %w", err)
	}

	var payload globalQuoteResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("decode quote response: %w", err)
	}
	// Unknown symbols come back as an empty Global Quote object.
	if strings.TrimSpace(payload.GlobalQuote.Price) == "" {
		return 0, fmt.Errorf("no quote available for %s", name)
	}

	price, err := money.ParsePrice(payload.GlobalQuote.Price)
	if err != nil {
		return 0, fmt.Errorf("quote for %s: %w", name, err)
	}
	return price, nil
}

// Quotes resolves prices for several securities sequentially.
func (c *AlphaVantage) Quotes(ctx context.Context, names []string) (map[string]money.Amount, error) {
	quotes := make(map[string]money.Amount, len(names))
	for _, name := range names {
		if _, ok := quotes[name]; ok {
			continue
		}
		price, err := c.Quote(ctx, name)
		if err != nil {
			return nil, err
		}
		quotes[name] = price
	}
	return quotes, nil
}

var _ Quoter = (*AlphaVantage)(nil)
