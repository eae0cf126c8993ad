package datasource

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/marketbrief/marketbrief/pkg/models"
	"github.com/marketbrief/marketbrief/pkg/utils"
)

// Data quality score weights. The score is strictly additive so the same
// inputs always produce the same number.
const (
	scorePriceVerified        = 30
	scoreFundamentalsComplete = 30
	scoreNewsAvailable        = 20
	scoreSocialAvailable      = 20
)

// priceAgreementTolerance is the maximum relative disagreement between two
// independent quote sources for the price to count as verified.
const priceAgreementTolerance = 0.02

// defaultNewsLimit caps headlines per ticker.
const defaultNewsLimit = 10

// Aggregator fans out to every configured source concurrently and merges the
// results into one record per ticker. The quote is the only mandatory
// section; every other section degrades to a warning when its source fails.
type Aggregator struct {
	primary   QuoteSource
	secondary QuoteSource // independent source used only for price verification
	funds     FundamentalsSource
	news      NewsSource
	social    SocialSource
	insider   InsiderSource
	ratings   RatingsSource
	bars      BarsSource
	log       *zap.Logger
}

// AggregatorOption configures the aggregator.
type AggregatorOption func(*Aggregator)

// WithSecondaryQuotes sets the quote source used for price verification.
func WithSecondaryQuotes(s QuoteSource) AggregatorOption {
	return func(a *Aggregator) { a.secondary = s }
}

// WithFundamentals sets the fundamentals source.
func WithFundamentals(s FundamentalsSource) AggregatorOption {
	return func(a *Aggregator) { a.funds = s }
}

// WithNews sets the news source.
func WithNews(s NewsSource) AggregatorOption {
	return func(a *Aggregator) { a.news = s }
}

// WithSocial sets the social sentiment source.
func WithSocial(s SocialSource) AggregatorOption {
	return func(a *Aggregator) { a.social = s }
}

// WithInsider sets the insider activity source.
func WithInsider(s InsiderSource) AggregatorOption {
	return func(a *Aggregator) { a.insider = s }
}

// WithRatings sets the analyst ratings source.
func WithRatings(s RatingsSource) AggregatorOption {
	return func(a *Aggregator) { a.ratings = s }
}

// WithBars sets the daily bar source.
func WithBars(s BarsSource) AggregatorOption {
	return func(a *Aggregator) { a.bars = s }
}

// WithAggregatorLogger sets the logger.
func WithAggregatorLogger(log *zap.Logger) AggregatorOption {
	return func(a *Aggregator) { a.log = log }
}

// NewAggregator creates an aggregator with the given primary quote source.
func NewAggregator(primary QuoteSource, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		primary: primary,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewDefaultAggregator wires the aggregator with all live sources.
func NewDefaultAggregator(log *zap.Logger) *Aggregator {
	yahoo := NewYahooSource()
	return NewAggregator(yahoo,
		WithSecondaryQuotes(NewStooqSource()),
		WithFundamentals(yahoo),
		WithNews(NewRSSNewsSource()),
		WithSocial(NewStocktwitsSource()),
		WithInsider(NewOpenInsiderSource()),
		WithRatings(yahoo),
		WithBars(yahoo),
		WithAggregatorLogger(log),
	)
}

// FetchStockData fetches every section for one ticker concurrently and
// returns the merged record. It fails only when no quote can be obtained;
// every other missing section becomes a warning and lowers the quality score.
func (a *Aggregator) FetchStockData(ctx context.Context, ticker string) (*models.AggregatedStockData, error) {
	symbol := utils.NormalizeTicker(ticker)
	if !utils.ValidTicker(symbol) {
		return nil, fmt.Errorf("invalid ticker %q", ticker)
	}

	data := &models.AggregatedStockData{
		Ticker:    symbol,
		FetchedAt: time.Now(),
	}

	var (
		mu             sync.Mutex
		secondaryQuote *models.Quote
	)
	warn := func(format string, args ...any) {
		mu.Lock()
		data.Quality.Warnings = append(data.Quality.Warnings, fmt.Sprintf(format, args...))
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)

	// The primary quote is the only fetch allowed to fail the aggregation.
	g.Go(func() error {
		quote, err := a.primary.GetQuote(gctx, symbol)
		if err != nil {
			return fmt.Errorf("quote %s via %s: %w", symbol, a.primary.Name(), err)
		}
		mu.Lock()
		data.Quote = *quote
		data.CompanyName = quote.Name
		mu.Unlock()
		return nil
	})

	if a.secondary != nil {
		g.Go(func() error {
			quote, err := a.secondary.GetQuote(gctx, symbol)
			if err != nil {
				warn("price verification unavailable: %v", err)
				return nil
			}
			mu.Lock()
			secondaryQuote = quote
			mu.Unlock()
			return nil
		})
	} else {
		warn("no secondary quote source configured")
	}

	if a.funds != nil {
		g.Go(func() error {
			funds, err := a.funds.GetFundamentals(gctx, symbol)
			if err != nil {
				warn("fundamentals unavailable: %v", err)
				return nil
			}
			mu.Lock()
			data.Fundamentals = funds
			mu.Unlock()
			return nil
		})
	} else {
		warn("no fundamentals source configured")
	}

	if a.news != nil {
		g.Go(func() error {
			news, err := a.news.GetNews(gctx, symbol, defaultNewsLimit)
			if err != nil {
				warn("news unavailable: %v", err)
				return nil
			}
			mu.Lock()
			data.News = news
			mu.Unlock()
			return nil
		})
	} else {
		warn("no news source configured")
	}

	if a.social != nil {
		g.Go(func() error {
			social, err := a.social.GetSocial(gctx, symbol)
			if err != nil {
				warn("social sentiment unavailable: %v", err)
				return nil
			}
			mu.Lock()
			data.Social = social
			mu.Unlock()
			return nil
		})
	} else {
		warn("no social source configured")
	}

	if a.insider != nil {
		g.Go(func() error {
			insider, err := a.insider.GetInsiderActivity(gctx, symbol)
			if err != nil {
				warn("insider activity unavailable: %v", err)
				return nil
			}
			mu.Lock()
			data.Insider = insider
			mu.Unlock()
			return nil
		})
	}

	if a.ratings != nil {
		g.Go(func() error {
			ratings, err := a.ratings.GetRatings(gctx, symbol)
			if err != nil {
				warn("analyst ratings unavailable: %v", err)
				return nil
			}
			mu.Lock()
			data.Ratings = ratings
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Price verification: an independent source must agree within tolerance.
	if secondaryQuote != nil && data.Quote.Price > 0 {
		diff := math.Abs(secondaryQuote.Price-data.Quote.Price) / data.Quote.Price
		if diff <= priceAgreementTolerance {
			data.Quote.Verified = true
		} else {
			warn("price disagreement: %s=%.2f vs %s=%.2f",
				a.primary.Name(), data.Quote.Price, secondaryQuote.Source, secondaryQuote.Price)
		}
	}

	data.Quality = a.assessQuality(data)

	a.log.Debug("aggregated stock data",
		zap.String("ticker", symbol),
		zap.Int("quality", data.Quality.OverallScore),
		zap.Bool("price_verified", data.Quote.Verified),
		zap.Int("news", len(data.News)))

	return data, nil
}

// FetchBatch fetches multiple tickers with bounded concurrency. Failed
// tickers are skipped; the error reports how many failed.
func (a *Aggregator) FetchBatch(ctx context.Context, tickers []string, concurrency int) ([]*models.AggregatedStockData, error) {
	if concurrency <= 0 {
		concurrency = 4
	}

	var mu sync.Mutex
	results := make([]*models.AggregatedStockData, 0, len(tickers))
	failed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, ticker := range tickers {
		ticker := ticker
		g.Go(func() error {
			data, err := a.FetchStockData(gctx, ticker)
			if err != nil {
				a.log.Warn("skipping ticker", zap.String("ticker", ticker), zap.Error(err))
				mu.Lock()
				failed++
				mu.Unlock()
				if gctx.Err() != nil {
					return gctx.Err()
				}
				return nil
			}
			mu.Lock()
			results = append(results, data)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	if len(results) == 0 && failed > 0 {
		return nil, fmt.Errorf("all %d tickers failed to aggregate", failed)
	}
	return results, nil
}

// HistoricalBars returns daily bars for the ticker in ascending date order.
func (a *Aggregator) HistoricalBars(ctx context.Context, ticker string, from, to time.Time) ([]models.PriceBar, error) {
	if a.bars == nil {
		return nil, fmt.Errorf("no bar source configured")
	}
	return a.bars.GetDailyBars(ctx, utils.NormalizeTicker(ticker), from, to)
}

// assessQuality scores the record with the additive rubric: price verified 30,
// fundamentals complete 30, news present 20, social present 20.
func (a *Aggregator) assessQuality(data *models.AggregatedStockData) models.DataQualityAssessment {
	q := models.DataQualityAssessment{
		PriceVerified:        data.Quote.Verified,
		FundamentalsComplete: data.Fundamentals.Complete(),
		NewsAvailable:        len(data.News) > 0,
		SocialAvailable:      data.Social != nil && data.Social.TotalMentions > 0,
		Warnings:             data.Quality.Warnings,
	}
	if q.PriceVerified {
		q.OverallScore += scorePriceVerified
	}
	if q.FundamentalsComplete {
		q.OverallScore += scoreFundamentalsComplete
	}
	if q.NewsAvailable {
		q.OverallScore += scoreNewsAvailable
	}
	if q.SocialAvailable {
		q.OverallScore += scoreSocialAvailable
	}
	return q
}
