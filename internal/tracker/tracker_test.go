package tracker

import (
	"math"
	"testing"
	"time"

	"github.com/marketbrief/marketbrief/pkg/models"
)

var entryDate = time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)

func openPosition() *models.Position {
	return &models.Position{
		ID:           "pos-1",
		StockID:      "pick-1",
		Ticker:       "TST",
		EntryDate:    entryDate,
		EntryPrice:   100,
		StopLoss:     92,
		ProfitTarget: 120,
		Outcome:      models.OutcomeOpen,
	}
}

func bar(day int, open, high, low, close float64) models.PriceBar {
	return models.PriceBar{
		Date: entryDate.AddDate(0, 0, day),
		Open: open, High: high, Low: low, Close: close,
	}
}

// quietBars returns n bars after entry that trigger nothing.
func quietBars(n int) []models.PriceBar {
	bars := make([]models.PriceBar, n)
	for i := range bars {
		bars[i] = bar(i+1, 100, 105, 95, 100)
	}
	return bars
}

func TestCheckBarStopLossPriority(t *testing.T) {
	// Both thresholds breached in one bar: the stop loss wins because
	// intraday ordering is unknowable and the conservative reading loses.
	pos := openPosition()
	exit := CheckBar(pos, bar(5, 100, 121, 90, 110), 30)
	if exit == nil {
		t.Fatal("expected an exit")
	}
	if exit.Reason != models.ExitStopLoss {
		t.Errorf("Reason = %q, want stop_loss", exit.Reason)
	}
	if exit.Price != 92 {
		t.Errorf("Price = %v, want the stop price 92", exit.Price)
	}
	if math.Abs(exit.ReturnPercent-(-8.0)) > 1e-9 {
		t.Errorf("ReturnPercent = %v, want -8.0", exit.ReturnPercent)
	}
}

func TestCheckBarProfitTarget(t *testing.T) {
	pos := openPosition()
	exit := CheckBar(pos, bar(3, 110, 121, 108, 119), 30)
	if exit == nil {
		t.Fatal("expected an exit")
	}
	if exit.Reason != models.ExitProfitTarget {
		t.Errorf("Reason = %q, want profit_target", exit.Reason)
	}
	if exit.Price != 120 {
		t.Errorf("Price = %v, want the target price 120", exit.Price)
	}
	if exit.ReturnPercent != 20 {
		t.Errorf("ReturnPercent = %v, want 20", exit.ReturnPercent)
	}
}

func TestCheckBarTimeLimit(t *testing.T) {
	pos := openPosition()

	// Day 29: no trigger yet.
	if exit := CheckBar(pos, bar(29, 104, 106, 103, 105), 30); exit != nil {
		t.Errorf("day 29 exit = %+v, want open", exit)
	}

	// Day 30 closes at 105: time limit, +5%, a win.
	exit := CheckBar(pos, bar(30, 104, 106, 103, 105), 30)
	if exit == nil {
		t.Fatal("expected time limit exit on day 30")
	}
	if exit.Reason != models.ExitTimeLimit {
		t.Errorf("Reason = %q, want time_limit", exit.Reason)
	}
	if exit.Price != 105 {
		t.Errorf("Price = %v, want the close 105", exit.Price)
	}
	if exit.ReturnPercent != 5 {
		t.Errorf("ReturnPercent = %v, want +5.0", exit.ReturnPercent)
	}
}

func TestCheckBarTimeLimitIntradayEntry(t *testing.T) {
	// Positions enter at publish time, mid-session, while bars carry
	// midnight stamps. Day counting goes by calendar date, so the limit
	// still fires on the bar thirty days after the entry date.
	pos := openPosition()
	pos.EntryDate = time.Date(2025, 1, 2, 14, 30, 0, 0, time.UTC)

	day29 := models.PriceBar{
		Date: time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
		Open: 104, High: 106, Low: 103, Close: 105,
	}
	if exit := CheckBar(pos, day29, 30); exit != nil {
		t.Errorf("day 29 exit = %+v, want open", exit)
	}

	day30 := models.PriceBar{
		Date: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		Open: 104, High: 106, Low: 103, Close: 105,
	}
	exit := CheckBar(pos, day30, 30)
	if exit == nil {
		t.Fatal("expected time limit exit on calendar day 30")
	}
	if exit.Reason != models.ExitTimeLimit {
		t.Errorf("Reason = %q, want time_limit", exit.Reason)
	}
	if exit.Price != 105 {
		t.Errorf("Price = %v, want the day-30 close 105", exit.Price)
	}
}

func TestCheckBarSkipsMissingHighLow(t *testing.T) {
	// A provider can return a bar with a real close but a null high or
	// low, which decodes as zero. The price rules must not read that as a
	// level the market traded.
	pos := openPosition()

	zeroLow := bar(5, 100, 106, 0, 105)
	if exit := CheckBar(pos, zeroLow, 30); exit != nil {
		t.Errorf("zero-low bar exit = %+v, want open", exit)
	}

	pos = openPosition()
	pos.ProfitTarget = -1 // any non-positive high would satisfy >= otherwise
	zeroHigh := bar(5, 100, 0, 98, 99)
	if exit := CheckBar(pos, zeroHigh, 30); exit != nil && exit.Reason == models.ExitProfitTarget {
		t.Errorf("zero-high bar triggered profit_target: %+v", exit)
	}

	// A genuine low that touches the stop still fires.
	pos = openPosition()
	if exit := CheckBar(pos, bar(5, 100, 106, 91, 105), 30); exit == nil || exit.Reason != models.ExitStopLoss {
		t.Errorf("real low breach exit = %+v, want stop_loss", exit)
	}
}

func TestCheckBarPriceBeatsTimeLimit(t *testing.T) {
	// A stop breach on day 30 is recorded as stop_loss, not time_limit.
	pos := openPosition()
	exit := CheckBar(pos, bar(30, 95, 96, 90, 91), 30)
	if exit == nil {
		t.Fatal("expected an exit")
	}
	if exit.Reason != models.ExitStopLoss {
		t.Errorf("Reason = %q, want stop_loss over time_limit", exit.Reason)
	}
}

func TestCheckBarTerminalPositionIgnored(t *testing.T) {
	pos := openPosition()
	pos.Outcome = models.OutcomeWin
	if exit := CheckBar(pos, bar(5, 50, 50, 50, 50), 30); exit != nil {
		t.Errorf("terminal position produced exit %+v", exit)
	}
}

func TestScanBarsFirstExitWins(t *testing.T) {
	pos := openPosition()
	bars := []models.PriceBar{
		bar(1, 100, 104, 98, 103),
		bar(2, 103, 121, 101, 119), // target hit here
		bar(3, 119, 125, 90, 95),   // stop would hit later, must not matter
	}
	exit := ScanBars(pos, bars, 30)
	if exit == nil || exit.Reason != models.ExitProfitTarget {
		t.Fatalf("exit = %+v, want first trigger (profit_target)", exit)
	}
	if !exit.Date.Equal(entryDate.AddDate(0, 0, 2)) {
		t.Errorf("Date = %v, want day 2", exit.Date)
	}
}

func TestScanBarsSkipsEntryDayAndEarlier(t *testing.T) {
	pos := openPosition()
	bars := []models.PriceBar{
		bar(-1, 80, 85, 75, 80), // history before the pick
		bar(0, 100, 125, 88, 110), // entry day itself
		bar(1, 100, 104, 98, 103),
	}
	if exit := ScanBars(pos, bars, 30); exit != nil {
		t.Errorf("exit = %+v, bars on or before entry must not trigger", exit)
	}
}

func TestScanBarsRemainsOpen(t *testing.T) {
	pos := openPosition()
	if exit := ScanBars(pos, quietBars(20), 30); exit != nil {
		t.Errorf("exit = %+v, want still open before day 30", exit)
	}
}

func TestScanBarsIncrementalMatchesHistorical(t *testing.T) {
	// A tracker that was offline and replays all bars at once must reach the
	// same outcome as one that saw each bar the day it printed.
	bars := []models.PriceBar{
		bar(1, 100, 106, 97, 102),
		bar(2, 102, 107, 99, 104),
		bar(3, 104, 110, 91, 93), // stop hits
		bar(4, 93, 122, 92, 121), // target would hit later
	}

	historical := ScanBars(openPosition(), bars, 30)

	var incremental *Exit
	pos := openPosition()
	for _, b := range bars {
		if incremental = CheckBar(pos, b, 30); incremental != nil {
			break
		}
	}

	if historical == nil || incremental == nil {
		t.Fatalf("historical = %+v, incremental = %+v", historical, incremental)
	}
	if historical.Reason != incremental.Reason ||
		historical.Price != incremental.Price ||
		!historical.Date.Equal(incremental.Date) {
		t.Errorf("historical %+v != incremental %+v", historical, incremental)
	}
}

func TestReturnPercent(t *testing.T) {
	if got := ReturnPercent(100, 92); got != -8 {
		t.Errorf("ReturnPercent(100, 92) = %v", got)
	}
	if got := ReturnPercent(100, 120); got != 20 {
		t.Errorf("ReturnPercent(100, 120) = %v", got)
	}
	if got := ReturnPercent(0, 50); got != 0 {
		t.Errorf("ReturnPercent with zero entry = %v, want 0", got)
	}
}

func TestSummarize(t *testing.T) {
	exitAt := entryDate.AddDate(0, 0, 10)
	closedPos := func(ticker string, outcome models.Outcome, ret float64) models.Position {
		return models.Position{
			Ticker: ticker, Outcome: outcome,
			ExitDate: &exitAt, ReturnPercent: ret,
		}
	}
	positions := []models.Position{
		{Ticker: "OPN", Outcome: models.OutcomeOpen},
		closedPos("WIN1", models.OutcomeWin, 20),
		closedPos("WIN2", models.OutcomeWin, 10),
		closedPos("LOS1", models.OutcomeLoss, -8),
		closedPos("FLAT", models.OutcomeLoss, 0),
	}

	s := Summarize(positions)
	if s.TotalPicks != 5 || s.OpenPositions != 1 {
		t.Errorf("totals = %d/%d", s.TotalPicks, s.OpenPositions)
	}
	if s.ClosedWins != 2 || s.ClosedLosses != 2 {
		t.Errorf("wins/losses = %d/%d", s.ClosedWins, s.ClosedLosses)
	}
	if s.WinRate != 50 {
		t.Errorf("WinRate = %v, want 50", s.WinRate)
	}
	if s.AvgReturn != 5.5 {
		t.Errorf("AvgReturn = %v, want 5.5", s.AvgReturn)
	}
	if s.AvgWin != 15 {
		t.Errorf("AvgWin = %v, want 15", s.AvgWin)
	}
	if s.AvgLoss != -4 {
		t.Errorf("AvgLoss = %v, want -4", s.AvgLoss)
	}
	if s.BestTicker != "WIN1" || s.WorstTicker != "LOS1" {
		t.Errorf("best/worst = %s/%s", s.BestTicker, s.WorstTicker)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	if s.TotalPicks != 0 || s.WinRate != 0 {
		t.Errorf("empty summary = %+v", s)
	}
}
