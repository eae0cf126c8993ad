// Package pipeline orchestrates one daily cycle: aggregate market data for
// the watchlist, generate AI analyses, validate them against ground truth,
// persist the survivors, and hand the finished brief to the publisher.
//
// Per-ticker failures never abort the cycle. Each ticker ends in exactly one
// status, so a monitoring reader can tell "bad AI output correctly caught"
// apart from "system broken".
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/marketbrief/marketbrief/internal/config"
	"github.com/marketbrief/marketbrief/internal/datasource"
	"github.com/marketbrief/marketbrief/internal/publish"
	"github.com/marketbrief/marketbrief/internal/tracker"
	"github.com/marketbrief/marketbrief/internal/validate"
	"github.com/marketbrief/marketbrief/pkg/models"
	"github.com/marketbrief/marketbrief/pkg/utils"
)

// trendLookback is how much daily history feeds the trend symbol.
const trendLookback = 90 * 24 * time.Hour

// tickerConcurrency bounds parallel per-ticker work. The LLM call dominates
// each ticker, so a small fan-out is enough.
const tickerConcurrency = 2

// DataFetcher is the slice of the aggregator the pipeline needs.
type DataFetcher interface {
	FetchStockData(ctx context.Context, ticker string) (*models.AggregatedStockData, error)
	HistoricalBars(ctx context.Context, ticker string, from, to time.Time) ([]models.PriceBar, error)
}

// StockAnalyzer generates a raw analysis for an aggregated record.
type StockAnalyzer interface {
	AnalyzeStock(ctx context.Context, data *models.AggregatedStockData, recentPicks []string) (*models.RawAnalysis, error)
}

// PickValidator gates raw analyses.
type PickValidator interface {
	Validate(analysis *models.RawAnalysis, truth *models.AggregatedStockData) (*models.ValidatedStock, error)
}

// PickStore is the slice of the store the pipeline needs.
type PickStore interface {
	SavePick(pick *models.ValidatedStock) error
	OpenPosition(pos *models.Position) error
	ListPicks(limit int) ([]models.ValidatedStock, error)
	ListPositions(outcome models.Outcome) ([]models.Position, error)
}

// Pipeline wires the stages together.
type Pipeline struct {
	fetcher   DataFetcher
	analyzer  StockAnalyzer
	validator PickValidator
	store     PickStore
	publisher publish.Publisher
	cfg       config.BriefConfig
	log       *zap.Logger
}

// RunReport is the outcome of one pipeline cycle.
type RunReport struct {
	Date    time.Time               `json:"date"`
	Results []models.PipelineResult `json:"results"`
	Brief   *models.BriefData       `json:"brief,omitempty"`
}

// Published counts tickers that made it into the brief.
func (r *RunReport) Published() int {
	n := 0
	for _, res := range r.Results {
		if res.Status == models.StatusPublished {
			n++
		}
	}
	return n
}

// New creates a pipeline.
func New(fetcher DataFetcher, analyzer StockAnalyzer, validator PickValidator,
	st PickStore, publisher publish.Publisher, cfg config.BriefConfig, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		fetcher:   fetcher,
		analyzer:  analyzer,
		validator: validator,
		store:     st,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
}

// candidate pairs a validated pick with the data it was validated against.
type candidate struct {
	pick  *models.ValidatedStock
	truth *models.AggregatedStockData
}

// Run executes one full cycle over the configured watchlist.
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{Date: utils.NowEastern()}
	if len(p.cfg.Watchlist) == 0 {
		return report, fmt.Errorf("watchlist is empty")
	}

	recent := p.recentTickers()

	var (
		mu         sync.Mutex
		candidates []candidate
	)
	record := func(ticker string, status models.PipelineStatus, err error) {
		result := models.PipelineResult{Ticker: ticker, Status: status}
		if err != nil {
			result.Err = err.Error()
		}
		mu.Lock()
		report.Results = append(report.Results, result)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(tickerConcurrency)

	for _, raw := range p.cfg.Watchlist {
		ticker := utils.NormalizeTicker(raw)
		g.Go(func() error {
			cand, status, err := p.processTicker(gctx, ticker, recent)
			if err != nil {
				record(ticker, status, err)
				if gctx.Err() != nil {
					return gctx.Err()
				}
				return nil
			}
			mu.Lock()
			candidates = append(candidates, *cand)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	selected, skipped := p.rank(candidates)
	for _, cand := range skipped {
		record(cand.pick.Ticker, models.StatusSkipped,
			fmt.Errorf("ranked below max_picks cut of %d", p.cfg.MaxPicks))
	}

	var picks []models.ValidatedStock
	for _, cand := range selected {
		if err := p.persist(cand.pick); err != nil {
			record(cand.pick.Ticker, models.StatusPersistFailed, err)
			continue
		}
		picks = append(picks, *cand.pick)
		record(cand.pick.Ticker, models.StatusPublished, nil)
	}

	brief, err := p.buildBrief(report.Date, picks)
	if err != nil {
		return report, err
	}
	report.Brief = brief

	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, brief); err != nil {
			return report, fmt.Errorf("publish brief: %w", err)
		}
	}

	p.log.Info("pipeline cycle finished",
		zap.Int("watchlist", len(p.cfg.Watchlist)),
		zap.Int("published", report.Published()),
		zap.Int("results", len(report.Results)))

	return report, nil
}

// recentTickers returns the tickers featured in the most recent briefs, used
// to tell the model about repeat appearances. Best effort: an archive read
// failure just means no history is mentioned.
func (p *Pipeline) recentTickers() []string {
	limit := 2 * p.cfg.MaxPicks
	if limit < 6 {
		limit = 6
	}
	picks, err := p.store.ListPicks(limit)
	if err != nil {
		p.log.Debug("recent picks unavailable", zap.Error(err))
		return nil
	}
	seen := make(map[string]bool, len(picks))
	var tickers []string
	for _, pick := range picks {
		if !seen[pick.Ticker] {
			seen[pick.Ticker] = true
			tickers = append(tickers, pick.Ticker)
		}
	}
	return tickers
}

// processTicker runs one ticker through aggregate, analyze, validate, and
// trend stages. The returned status classifies any failure.
func (p *Pipeline) processTicker(ctx context.Context, ticker string, recent []string) (*candidate, models.PipelineStatus, error) {
	data, err := p.fetcher.FetchStockData(ctx, ticker)
	if err != nil {
		return nil, models.StatusAggregationFailed, err
	}

	analysis, err := p.analyzer.AnalyzeStock(ctx, data, recent)
	if err != nil {
		return nil, models.StatusGenerationFailed, err
	}

	pick, err := p.validator.Validate(analysis, data)
	if err != nil {
		if errors.Is(err, validate.ErrRejected) {
			return nil, models.StatusRejected, err
		}
		return nil, models.StatusGenerationFailed, err
	}

	pick.TrendSymbol = p.trendSymbol(ctx, ticker)

	return &candidate{pick: pick, truth: data}, models.StatusPublished, nil
}

// trendSymbol derives the direction arrow from recent history. Trend is
// decoration, not a gate: on any error the symbol is simply omitted.
func (p *Pipeline) trendSymbol(ctx context.Context, ticker string) string {
	now := time.Now()
	bars, err := p.fetcher.HistoricalBars(ctx, ticker, now.Add(-trendLookback), now)
	if err != nil {
		p.log.Debug("trend unavailable", zap.String("ticker", ticker), zap.Error(err))
		return ""
	}
	return datasource.TrendFromBars(bars)
}

// rank orders candidates by confidence (quality score breaking ties) and
// splits them at the picks cap.
func (p *Pipeline) rank(candidates []candidate) (selected, skipped []candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].pick, candidates[j].pick
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.DataQualityScore > b.DataQualityScore
	})
	if p.cfg.MaxPicks > 0 && len(candidates) > p.cfg.MaxPicks {
		return candidates[:p.cfg.MaxPicks], candidates[p.cfg.MaxPicks:]
	}
	return candidates, nil
}

// persist saves the pick and opens its tracking position as a unit. A pick
// without a position would be untrackable, so a position failure fails the
// pick.
func (p *Pipeline) persist(pick *models.ValidatedStock) error {
	if err := p.store.SavePick(pick); err != nil {
		return err
	}
	pos := &models.Position{
		ID:           uuid.NewString(),
		StockID:      pick.ID,
		Ticker:       pick.Ticker,
		EntryDate:    pick.PublishedAt,
		EntryPrice:   pick.LastPrice,
		StopLoss:     pick.StopLoss,
		ProfitTarget: pick.ProfitTarget,
		Outcome:      models.OutcomeOpen,
	}
	if err := p.store.OpenPosition(pos); err != nil {
		return fmt.Errorf("open position for %s: %w", pick.Ticker, err)
	}
	return nil
}

// buildBrief assembles the publishable projection: today's picks, the track
// record, and positions that closed today.
func (p *Pipeline) buildBrief(date time.Time, picks []models.ValidatedStock) (*models.BriefData, error) {
	all, err := p.store.ListPositions("")
	if err != nil {
		return nil, fmt.Errorf("load positions for brief: %w", err)
	}

	brief := &models.BriefData{
		Date:        date,
		Picks:       picks,
		Performance: tracker.Summarize(all),
	}

	// Exit dates carry the provider's bar stamp, often midnight UTC, so
	// the comparison keeps each timestamp's own calendar date rather than
	// shifting it into Eastern and losing same-day closures.
	today := utils.CalendarDate(utils.MarketDate(date))
	for _, pos := range all {
		if pos.ExitDate != nil && utils.CalendarDate(*pos.ExitDate).Equal(today) {
			brief.ClosedToday = append(brief.ClosedToday, pos)
		}
	}
	return brief, nil
}
