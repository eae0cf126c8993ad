package datasource

import (
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/marketbrief/marketbrief/internal/infra"
	"github.com/marketbrief/marketbrief/pkg/models"
	"github.com/marketbrief/marketbrief/pkg/utils"
)

// StooqSource fetches quotes from Stooq's CSV endpoint. It serves as the
// independent second source the aggregator uses to verify prices, so it
// deliberately shares no infrastructure with YahooSource.
type StooqSource struct {
	baseURL string
	cache   *infra.Cache
	limiter *infra.Limiter
}

// NewStooqSource creates a Stooq data source.
func NewStooqSource() *StooqSource {
	return &StooqSource{
		baseURL: "https://stooq.com",
		cache:   infra.NewCache(5 * time.Minute),
		limiter: infra.NewLimiter(2), // Stooq is strict about scraping
	}
}

// NewStooqSourceWithBaseURL creates a Stooq source pointed at a custom host.
func NewStooqSourceWithBaseURL(base string) *StooqSource {
	s := NewStooqSource()
	s.baseURL = base
	return s
}

// Name returns the data source name.
func (s *StooqSource) Name() string { return "stooq" }

// GetQuote returns the latest quote from Stooq. US tickers carry a ".us"
// suffix on Stooq, lowercased.
func (s *StooqSource) GetQuote(ctx context.Context, ticker string) (*models.Quote, error) {
	symbol := utils.NormalizeTicker(ticker)

	cacheKey := "quote:" + symbol
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.(*models.Quote), nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	stooqSymbol := strings.ToLower(symbol) + ".us"
	u := fmt.Sprintf("%s/q/l/?s=%s&f=sd2t2ohlcv&h&e=csv", s.baseURL, stooqSymbol)
	body, _, err := doGet(ctx, u, map[string]string{"Accept": "text/csv"})
	if err != nil {
		return nil, fmt.Errorf("stooq quote %s: %w", symbol, err)
	}
	defer body.Close()

	records, err := csv.NewReader(body).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse stooq csv: %w", err)
	}
	// Header plus one data row: Symbol,Date,Time,Open,High,Low,Close,Volume
	if len(records) < 2 || len(records[1]) < 8 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}

	row := records[1]
	// Stooq returns "N/D" in every field for unknown tickers.
	if row[6] == "N/D" {
		return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, symbol)
	}

	closePrice, err := strconv.ParseFloat(row[6], 64)
	if err != nil || closePrice <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}
	openPrice, _ := strconv.ParseFloat(row[3], 64)
	high, _ := strconv.ParseFloat(row[4], 64)
	low, _ := strconv.ParseFloat(row[5], 64)
	volume, _ := strconv.ParseInt(row[7], 10, 64)

	ts := time.Now()
	if t, err := time.Parse("2006-01-02", row[1]); err == nil {
		ts = t
	}

	quote := &models.Quote{
		Ticker:    symbol,
		Price:     closePrice,
		Change:    closePrice - openPrice,
		Volume:    volume,
		DayLow:    low,
		DayHigh:   high,
		Source:    s.Name(),
		Timestamp: ts,
	}
	if openPrice != 0 {
		quote.ChangePct = (closePrice - openPrice) / openPrice * 100
	}

	s.cache.SetWithTTL(cacheKey, quote, time.Minute)
	return quote, nil
}
