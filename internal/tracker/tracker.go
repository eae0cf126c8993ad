// Package tracker resolves the outcomes of published picks by replaying
// daily price bars against each open position's exit rules. The same rules
// run whether a position is checked one new bar at a time or across weeks of
// missed history, so a tracker that was offline converges to identical
// outcomes once it catches up.
package tracker

import (
	"time"

	"github.com/marketbrief/marketbrief/pkg/models"
	"github.com/marketbrief/marketbrief/pkg/utils"
)

// Exit describes a resolved exit event for a position.
type Exit struct {
	Reason        models.ExitReason
	Date          time.Time
	Price         float64
	ReturnPercent float64
}

// CheckBar evaluates one daily bar against a position's exit rules and
// returns the exit it triggers, or nil. Rule priority within a single bar is
// fixed: the stop loss fires before the profit target, because intraday
// ordering is unknowable from a daily bar and the conservative reading loses
// first. The time limit is checked last.
func CheckBar(pos *models.Position, bar models.PriceBar, maxHoldingDays int) *Exit {
	if !pos.Open() {
		return nil
	}

	// Providers occasionally return a bar with a usable close but a null
	// high or low, which decodes as zero. A zero low would read as a stop
	// breach at a price the market never traded, so the price rules skip
	// whichever side is missing.
	if bar.Low > 0 && bar.Low <= pos.StopLoss {
		return newExit(pos, models.ExitStopLoss, bar.Date, pos.StopLoss)
	}
	if bar.High > 0 && bar.High >= pos.ProfitTarget {
		return newExit(pos, models.ExitProfitTarget, bar.Date, pos.ProfitTarget)
	}
	if pos.HoldingDays(bar.Date) >= maxHoldingDays {
		return newExit(pos, models.ExitTimeLimit, bar.Date, bar.Close)
	}
	return nil
}

// ScanBars replays bars in ascending date order and returns the first exit
// triggered, or nil if the position remains open through all of them. Bars
// dated on or before the entry's calendar date are skipped: the entry bar
// cannot exit the position it opened.
func ScanBars(pos *models.Position, bars []models.PriceBar, maxHoldingDays int) *Exit {
	entry := utils.CalendarDate(pos.EntryDate)
	for _, bar := range bars {
		if !utils.CalendarDate(bar.Date).After(entry) {
			continue
		}
		if exit := CheckBar(pos, bar, maxHoldingDays); exit != nil {
			return exit
		}
	}
	return nil
}

// ReturnPercent computes the percentage return for an exit at the given price.
func ReturnPercent(entryPrice, exitPrice float64) float64 {
	if entryPrice == 0 {
		return 0
	}
	return (exitPrice - entryPrice) / entryPrice * 100
}

func newExit(pos *models.Position, reason models.ExitReason, date time.Time, price float64) *Exit {
	return &Exit{
		Reason:        reason,
		Date:          date,
		Price:         price,
		ReturnPercent: ReturnPercent(pos.EntryPrice, price),
	}
}

// Summarize aggregates closed-position statistics for the track record.
func Summarize(positions []models.Position) models.PerformanceSummary {
	s := models.PerformanceSummary{TotalPicks: len(positions)}

	var closedSum, winSum, lossSum float64
	var wins, losses int
	first := true

	for _, pos := range positions {
		if pos.Open() {
			s.OpenPositions++
			continue
		}

		ret := pos.ReturnPercent
		closedSum += ret
		if pos.Outcome == models.OutcomeWin {
			wins++
			winSum += ret
		} else {
			losses++
			lossSum += ret
		}

		if first || ret > s.BestReturn {
			s.BestReturn = ret
			s.BestTicker = pos.Ticker
		}
		if first || ret < s.WorstReturn {
			s.WorstReturn = ret
			s.WorstTicker = pos.Ticker
		}
		first = false
	}

	s.ClosedWins = wins
	s.ClosedLosses = losses
	closed := wins + losses
	if closed > 0 {
		s.WinRate = float64(wins) / float64(closed) * 100
		s.AvgReturn = closedSum / float64(closed)
	}
	if wins > 0 {
		s.AvgWin = winSum / float64(wins)
	}
	if losses > 0 {
		s.AvgLoss = lossSum / float64(losses)
	}
	return s
}
