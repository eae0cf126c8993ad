// Package datasource fetches market data from multiple public providers and
// merges it into a single aggregated record per ticker. Each data section has
// its own narrow source interface so the aggregator can be assembled from any
// mix of live clients and test doubles.
package datasource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/marketbrief/marketbrief/pkg/models"
)

// Per-section source interfaces. A provider implements whichever sections it
// can serve; the aggregator treats every section except the quote as optional.

// QuoteSource supplies a live quote for a ticker.
type QuoteSource interface {
	Name() string
	GetQuote(ctx context.Context, ticker string) (*models.Quote, error)
}

// FundamentalsSource supplies company fundamentals.
type FundamentalsSource interface {
	GetFundamentals(ctx context.Context, ticker string) (*models.Fundamentals, error)
}

// NewsSource supplies recent headlines for a ticker.
type NewsSource interface {
	GetNews(ctx context.Context, ticker string, limit int) ([]models.NewsItem, error)
}

// SocialSource supplies retail sentiment for a ticker.
type SocialSource interface {
	GetSocial(ctx context.Context, ticker string) (*models.SocialSentiment, error)
}

// InsiderSource supplies recent insider filing activity.
type InsiderSource interface {
	GetInsiderActivity(ctx context.Context, ticker string) (*models.InsiderActivity, error)
}

// RatingsSource supplies the analyst recommendation distribution.
type RatingsSource interface {
	GetRatings(ctx context.Context, ticker string) (*models.AnalystRatings, error)
}

// BarsSource supplies daily OHLCV history.
type BarsSource interface {
	GetDailyBars(ctx context.Context, ticker string, from, to time.Time) ([]models.PriceBar, error)
}

// --- Sentinel errors ---

// ErrTickerNotFound is returned when a ticker cannot be resolved.
var ErrTickerNotFound = fmt.Errorf("ticker not found")

// ErrNoData is returned when a provider responds but carries no usable data.
var ErrNoData = fmt.Errorf("no data returned")

// ErrRateLimited is returned when a source rate-limits the request.
var ErrRateLimited = fmt.Errorf("rate limited by data source")

// ErrHTTP wraps an HTTP error with status code.
type ErrHTTP struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, e.Body)
}

// --- Shared HTTP client helpers ---

// DefaultUserAgent is the user agent string used for HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// HTTPClient is a pre-configured HTTP client with reasonable timeouts.
var HTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}

// doGet performs a GET request with the given URL and headers, returning the
// response body. The caller is responsible for closing the returned ReadCloser.
func doGet(ctx context.Context, url string, headers map[string]string) (io.ReadCloser, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "application/json, text/html, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := HTTPClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("HTTP GET %s: %w", url, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		resp.Body.Close()
		return nil, resp.StatusCode, ErrRateLimited
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, resp.StatusCode, &ErrHTTP{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	return resp.Body, resp.StatusCode, nil
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
