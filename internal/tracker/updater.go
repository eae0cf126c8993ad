package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/marketbrief/marketbrief/internal/config"
	"github.com/marketbrief/marketbrief/internal/infra"
	"github.com/marketbrief/marketbrief/internal/store"
	"github.com/marketbrief/marketbrief/pkg/models"
)

// PositionStore is the slice of the store the updater needs.
type PositionStore interface {
	OpenPositions() ([]models.Position, error)
	ClosePosition(id string, exit models.ExitReason, exitDate time.Time, exitPrice, returnPct float64) (*models.Position, error)
	ListPositions(outcome models.Outcome) ([]models.Position, error)
}

// BarProvider supplies daily bars for a ticker.
type BarProvider interface {
	HistoricalBars(ctx context.Context, ticker string, from, to time.Time) ([]models.PriceBar, error)
}

// Updater walks every open position, fetches the bars since entry, and
// closes positions whose exit rules have triggered. Requests are spaced out
// by a rate limiter so a large batch does not hammer the upstream provider.
type Updater struct {
	store   PositionStore
	bars    BarProvider
	limiter *infra.Limiter
	maxDays int
	log     *zap.Logger
}

// UpdateResult summarizes one updater run.
type UpdateResult struct {
	Checked int
	Closed  int
	Errors  int
}

// NewUpdater creates a position updater.
func NewUpdater(st PositionStore, bars BarProvider, cfg config.TrackerConfig, log *zap.Logger) *Updater {
	if log == nil {
		log = zap.NewNop()
	}
	// A non-positive interval disables spacing (rate.Every treats it as Inf).
	interval := time.Duration(cfg.BatchIntervalSec) * time.Second
	maxDays := cfg.MaxHoldingDays
	if maxDays <= 0 {
		maxDays = 30
	}
	return &Updater{
		store:   st,
		bars:    bars,
		limiter: infra.NewIntervalLimiter(interval),
		maxDays: maxDays,
		log:     log,
	}
}

// UpdateAll checks every open position once. Individual position failures are
// logged and counted, never fatal: the rest of the batch still runs.
func (u *Updater) UpdateAll(ctx context.Context) (*UpdateResult, error) {
	positions, err := u.store.OpenPositions()
	if err != nil {
		return nil, fmt.Errorf("load open positions: %w", err)
	}

	result := &UpdateResult{}
	for i := range positions {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := u.limiter.Wait(ctx); err != nil {
			return result, err
		}

		closed, err := u.updateOne(ctx, &positions[i])
		result.Checked++
		if err != nil {
			result.Errors++
			u.log.Warn("position update failed",
				zap.String("id", positions[i].ID),
				zap.String("ticker", positions[i].Ticker),
				zap.Error(err))
			continue
		}
		if closed {
			result.Closed++
		}
	}

	u.log.Info("position update run finished",
		zap.Int("checked", result.Checked),
		zap.Int("closed", result.Closed),
		zap.Int("errors", result.Errors))

	return result, nil
}

// updateOne replays bars since entry for a single position. Returns true if
// the position was closed by this run.
func (u *Updater) updateOne(ctx context.Context, pos *models.Position) (bool, error) {
	from := pos.EntryDate
	to := time.Now()
	bars, err := u.bars.HistoricalBars(ctx, pos.Ticker, from, to)
	if err != nil {
		return false, fmt.Errorf("bars for %s: %w", pos.Ticker, err)
	}

	exit := ScanBars(pos, bars, u.maxDays)
	if exit == nil {
		return false, nil
	}

	_, err = u.store.ClosePosition(pos.ID, exit.Reason, exit.Date, exit.Price, exit.ReturnPercent)
	if errors.Is(err, store.ErrAlreadyClosed) {
		// Another run got there first; the terminal state stands.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Summary builds the performance summary across all positions.
func (u *Updater) Summary() (models.PerformanceSummary, error) {
	positions, err := u.store.ListPositions("")
	if err != nil {
		return models.PerformanceSummary{}, fmt.Errorf("load positions: %w", err)
	}
	return Summarize(positions), nil
}
