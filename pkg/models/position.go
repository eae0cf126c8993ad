package models

import (
	"math"
	"time"

	"github.com/marketbrief/marketbrief/pkg/utils"
)

// ExitReason records why a position closed.
type ExitReason string

const (
	ExitStopLoss     ExitReason = "stop_loss"
	ExitProfitTarget ExitReason = "profit_target"
	ExitTimeLimit    ExitReason = "time_limit"
)

// Outcome classifies a position's state and, once closed, its result.
type Outcome string

const (
	OutcomeOpen Outcome = "open"
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
)

// Position tracks the paper-trading outcome of a published pick. The entry
// price, stop-loss and profit-target are copied from the pick at creation so
// later edits to the stock record can never change the exit rules in flight.
// A position transitions from open to exactly one terminal outcome; terminal
// states are final.
type Position struct {
	ID      string `json:"id"       badgerhold:"key"`
	StockID string `json:"stock_id" badgerhold:"unique"`
	Ticker  string `json:"ticker"   badgerhold:"index"`

	EntryDate    time.Time `json:"entry_date"`
	EntryPrice   float64   `json:"entry_price"`
	StopLoss     float64   `json:"stop_loss"`
	ProfitTarget float64   `json:"profit_target"`

	Outcome       Outcome    `json:"outcome" badgerhold:"index"`
	ExitDate      *time.Time `json:"exit_date,omitempty"`
	ExitPrice     float64    `json:"exit_price,omitempty"`
	ExitReason    ExitReason `json:"exit_reason,omitempty"`
	ReturnPercent float64    `json:"return_percent,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Open reports whether the position has not yet reached a terminal state.
func (p *Position) Open() bool { return p.Outcome == OutcomeOpen }

// HoldingDays returns whole calendar days between the entry date and the
// given date. Both ends are truncated to their calendar date first, so an
// intraday entry still counts full days against bars stamped at midnight.
func (p *Position) HoldingDays(asOf time.Time) int {
	entry := utils.CalendarDate(p.EntryDate)
	return int(math.Round(utils.CalendarDate(asOf).Sub(entry).Hours() / 24))
}

// PerformanceSummary aggregates closed-position statistics for the archive's
// track-record display.
type PerformanceSummary struct {
	TotalPicks    int     `json:"total_picks"`
	OpenPositions int     `json:"open_positions"`
	ClosedWins    int     `json:"closed_wins"`
	ClosedLosses  int     `json:"closed_losses"`
	WinRate       float64 `json:"win_rate"`   // percent of closed positions that won
	AvgReturn     float64 `json:"avg_return"` // mean return_percent across closed
	AvgWin        float64 `json:"avg_win"`    // mean positive return
	AvgLoss       float64 `json:"avg_loss"`   // mean negative return (negative number)
	BestReturn    float64 `json:"best_return"`
	WorstReturn   float64 `json:"worst_return"`
	BestTicker    string  `json:"best_ticker,omitempty"`
	WorstTicker   string  `json:"worst_ticker,omitempty"`
}
