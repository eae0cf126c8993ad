package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/marketbrief/marketbrief/internal/infra"
	"github.com/marketbrief/marketbrief/pkg/models"
	"github.com/marketbrief/marketbrief/pkg/utils"
)

// YahooSource fetches quotes, fundamentals, analyst ratings, and daily bars
// from Yahoo Finance's public JSON endpoints.
type YahooSource struct {
	baseURL string
	cache   *infra.Cache
	limiter *infra.Limiter
}

// NewYahooSource creates a Yahoo Finance data source.
func NewYahooSource() *YahooSource {
	return &YahooSource{
		baseURL: "https://query1.finance.yahoo.com",
		cache:   infra.NewCache(5 * time.Minute),
		limiter: infra.NewLimiter(5), // 5 req/s
	}
}

// NewYahooSourceWithBaseURL creates a Yahoo source pointed at a custom host.
func NewYahooSourceWithBaseURL(base string) *YahooSource {
	s := NewYahooSource()
	s.baseURL = base
	return s
}

// Name returns the data source name.
func (y *YahooSource) Name() string { return "yahoo" }

// --- Yahoo Finance API types ---

type yhChartResponse struct {
	Chart struct {
		Result []yhChartResult `json:"result"`
		Error  *yhError        `json:"error"`
	} `json:"chart"`
}

type yhChartResult struct {
	Meta       yhChartMeta  `json:"meta"`
	Timestamp  []int64      `json:"timestamp"`
	Indicators yhIndicators `json:"indicators"`
}

type yhChartMeta struct {
	Symbol               string  `json:"symbol"`
	Currency             string  `json:"currency"`
	RegularMarketPrice   float64 `json:"regularMarketPrice"`
	RegularMarketVolume  int64   `json:"regularMarketVolume"`
	RegularMarketDayLow  float64 `json:"regularMarketDayLow"`
	RegularMarketDayHigh float64 `json:"regularMarketDayHigh"`
	FiftyTwoWeekLow      float64 `json:"fiftyTwoWeekLow"`
	FiftyTwoWeekHigh     float64 `json:"fiftyTwoWeekHigh"`
	ChartPreviousClose   float64 `json:"chartPreviousClose"`
	PreviousClose        float64 `json:"previousClose"`
	LongName             string  `json:"longName"`
	ShortName            string  `json:"shortName"`
	RegularMarketTime    int64   `json:"regularMarketTime"`
}

type yhIndicators struct {
	Quote []yhOHLCV `json:"quote"`
}

type yhOHLCV struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

type yhQuoteSummaryResponse struct {
	QuoteSummary struct {
		Result []yhQuoteSummaryResult `json:"result"`
		Error  *yhError               `json:"error"`
	} `json:"quoteSummary"`
}

type yhQuoteSummaryResult struct {
	SummaryProfile *struct {
		Sector   string `json:"sector"`
		Industry string `json:"industry"`
	} `json:"summaryProfile"`
	DefaultKeyStatistics *struct {
		TrailingEps yhFmtVal `json:"trailingEps"`
		Beta        yhFmtVal `json:"beta"`
	} `json:"defaultKeyStatistics"`
	SummaryDetail *struct {
		MarketCap     yhFmtVal `json:"marketCap"`
		TrailingPE    yhFmtVal `json:"trailingPE"`
		DividendYield yhFmtVal `json:"dividendYield"`
		AvgVolume     yhFmtVal `json:"averageVolume"`
	} `json:"summaryDetail"`
	FinancialData *struct {
		TotalRevenue  yhFmtVal `json:"totalRevenue"`
		ProfitMargins yhFmtVal `json:"profitMargins"`
	} `json:"financialData"`
	RecommendationTrend *struct {
		Trend []yhRecTrend `json:"trend"`
	} `json:"recommendationTrend"`
}

type yhRecTrend struct {
	Period     string `json:"period"` // "0m" is the current month
	StrongBuy  int    `json:"strongBuy"`
	Buy        int    `json:"buy"`
	Hold       int    `json:"hold"`
	Sell       int    `json:"sell"`
	StrongSell int    `json:"strongSell"`
}

type yhFmtVal struct {
	Raw float64 `json:"raw"`
	Fmt string  `json:"fmt"`
}

type yhError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// --- Public methods ---

// GetQuote returns a live quote from the chart API meta block.
func (y *YahooSource) GetQuote(ctx context.Context, ticker string) (*models.Quote, error) {
	symbol := utils.NormalizeTicker(ticker)

	cacheKey := "quote:" + symbol
	if cached, ok := y.cache.Get(cacheKey); ok {
		return cached.(*models.Quote), nil
	}

	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=1d", y.baseURL, url.PathEscape(symbol))
	result, err := y.fetchChart(ctx, u, symbol)
	if err != nil {
		return nil, err
	}

	meta := result.Meta
	prevClose := meta.PreviousClose
	if prevClose == 0 {
		prevClose = meta.ChartPreviousClose
	}
	change := meta.RegularMarketPrice - prevClose
	changePct := 0.0
	if prevClose != 0 {
		changePct = change / prevClose * 100
	}

	quote := &models.Quote{
		Ticker:     symbol,
		Name:       coalesce(meta.LongName, meta.ShortName),
		Price:      meta.RegularMarketPrice,
		Change:     change,
		ChangePct:  changePct,
		Volume:     meta.RegularMarketVolume,
		DayLow:     meta.RegularMarketDayLow,
		DayHigh:    meta.RegularMarketDayHigh,
		Week52Low:  meta.FiftyTwoWeekLow,
		Week52High: meta.FiftyTwoWeekHigh,
		Source:     y.Name(),
		Timestamp:  time.Unix(meta.RegularMarketTime, 0),
	}
	if quote.Price <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}

	y.cache.SetWithTTL(cacheKey, quote, time.Minute)
	return quote, nil
}

// GetFundamentals returns company facts from the quoteSummary API.
func (y *YahooSource) GetFundamentals(ctx context.Context, ticker string) (*models.Fundamentals, error) {
	result, err := y.quoteSummary(ctx, ticker,
		"summaryProfile,summaryDetail,defaultKeyStatistics,financialData")
	if err != nil {
		return nil, err
	}

	f := &models.Fundamentals{}
	if sp := result.SummaryProfile; sp != nil {
		f.Sector = sp.Sector
		f.Industry = sp.Industry
	}
	if sd := result.SummaryDetail; sd != nil {
		f.MarketCap = sd.MarketCap.Raw
		f.PE = sd.TrailingPE.Raw
		f.DividendYield = sd.DividendYield.Raw * 100
		f.AvgVolume = int64(sd.AvgVolume.Raw)
	}
	if ks := result.DefaultKeyStatistics; ks != nil {
		f.EPS = ks.TrailingEps.Raw
		f.Beta = ks.Beta.Raw
	}
	if fd := result.FinancialData; fd != nil {
		f.Revenue = fd.TotalRevenue.Raw
		f.ProfitMargin = fd.ProfitMargins.Raw * 100
	}
	return f, nil
}

// GetRatings returns the current-month analyst recommendation distribution.
func (y *YahooSource) GetRatings(ctx context.Context, ticker string) (*models.AnalystRatings, error) {
	result, err := y.quoteSummary(ctx, ticker, "recommendationTrend")
	if err != nil {
		return nil, err
	}
	if result.RecommendationTrend == nil || len(result.RecommendationTrend.Trend) == 0 {
		return nil, fmt.Errorf("%w: no recommendation trend for %s", ErrNoData, ticker)
	}

	var current *yhRecTrend
	for i := range result.RecommendationTrend.Trend {
		if result.RecommendationTrend.Trend[i].Period == "0m" {
			current = &result.RecommendationTrend.Trend[i]
			break
		}
	}
	if current == nil {
		current = &result.RecommendationTrend.Trend[0]
	}

	r := &models.AnalystRatings{
		StrongBuy:  current.StrongBuy,
		Buy:        current.Buy,
		Hold:       current.Hold,
		Sell:       current.Sell,
		StrongSell: current.StrongSell,
	}
	r.Consensus = consensusLabel(r)
	return r, nil
}

// GetDailyBars returns daily OHLCV bars in ascending date order.
func (y *YahooSource) GetDailyBars(ctx context.Context, ticker string, from, to time.Time) ([]models.PriceBar, error) {
	symbol := utils.NormalizeTicker(ticker)

	cacheKey := fmt.Sprintf("bars:%s:%d:%d", symbol, from.Unix(), to.Unix())
	if cached, ok := y.cache.Get(cacheKey); ok {
		return cached.([]models.PriceBar), nil
	}

	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&period1=%d&period2=%d",
		y.baseURL, url.PathEscape(symbol), from.Unix(), to.Unix())
	result, err := y.fetchChart(ctx, u, symbol)
	if err != nil {
		return nil, err
	}
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: no bars for %s", ErrNoData, symbol)
	}

	ohlcv := result.Indicators.Quote[0]
	bars := make([]models.PriceBar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		// Yahoo returns nulls for holidays and half-days; skip those rows.
		if i >= len(ohlcv.Close) || ohlcv.Close[i] == nil {
			continue
		}
		bar := models.PriceBar{
			Date:  time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
			Close: *ohlcv.Close[i],
		}
		if i < len(ohlcv.Open) && ohlcv.Open[i] != nil {
			bar.Open = *ohlcv.Open[i]
		}
		if i < len(ohlcv.High) && ohlcv.High[i] != nil {
			bar.High = *ohlcv.High[i]
		}
		if i < len(ohlcv.Low) && ohlcv.Low[i] != nil {
			bar.Low = *ohlcv.Low[i]
		}
		if i < len(ohlcv.Volume) && ohlcv.Volume[i] != nil {
			bar.Volume = *ohlcv.Volume[i]
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no bars for %s", ErrNoData, symbol)
	}

	y.cache.Set(cacheKey, bars)
	return bars, nil
}

// --- Internal helpers ---

func (y *YahooSource) fetchChart(ctx context.Context, u, symbol string) (*yhChartResult, error) {
	body, _, err := doGet(ctx, u, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}
	defer body.Close()

	var resp yhChartResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("parse yahoo chart: %w", err)
	}
	if resp.Chart.Error != nil {
		if resp.Chart.Error.Code == "Not Found" {
			return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, symbol)
		}
		return nil, fmt.Errorf("yahoo API error: %s", resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, symbol)
	}
	return &resp.Chart.Result[0], nil
}

func (y *YahooSource) quoteSummary(ctx context.Context, ticker, modules string) (*yhQuoteSummaryResult, error) {
	symbol := utils.NormalizeTicker(ticker)

	cacheKey := "summary:" + symbol + ":" + modules
	if cached, ok := y.cache.Get(cacheKey); ok {
		return cached.(*yhQuoteSummaryResult), nil
	}

	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=%s",
		y.baseURL, url.PathEscape(symbol), url.QueryEscape(modules))
	body, _, err := doGet(ctx, u, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, fmt.Errorf("yahoo summary %s: %w", symbol, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp yhQuoteSummaryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse yahoo summary: %w", err)
	}
	if resp.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("yahoo API error: %s", resp.QuoteSummary.Error.Description)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, symbol)
	}

	result := &resp.QuoteSummary.Result[0]
	y.cache.Set(cacheKey, result)
	return result, nil
}

func consensusLabel(r *models.AnalystRatings) string {
	total := r.Total()
	if total == 0 {
		return ""
	}
	bullish := r.StrongBuy + r.Buy
	bearish := r.Sell + r.StrongSell
	switch {
	case bullish > total/2:
		return "Buy"
	case bearish > total/2:
		return "Sell"
	default:
		return "Hold"
	}
}
