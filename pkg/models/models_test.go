package models

import (
	"testing"
	"time"
)

func TestRiskLevelValid(t *testing.T) {
	valid := []RiskLevel{RiskLow, RiskMedium, RiskHigh}
	for _, r := range valid {
		if !r.Valid() {
			t.Errorf("expected %q to be valid", r)
		}
	}
	for _, r := range []RiskLevel{"", "low", "EXTREME"} {
		if r.Valid() {
			t.Errorf("expected %q to be invalid", r)
		}
	}
}

func TestFundamentalsComplete(t *testing.T) {
	var nilF *Fundamentals
	if nilF.Complete() {
		t.Error("nil fundamentals should not be complete")
	}
	if (&Fundamentals{MarketCap: 1e9}).Complete() {
		t.Error("missing sector should not be complete")
	}
	if !(&Fundamentals{MarketCap: 1e9, Sector: "Technology"}).Complete() {
		t.Error("market cap + sector should be complete")
	}
}

func TestAnalystRatingsTotal(t *testing.T) {
	var nilR *AnalystRatings
	if nilR.Total() != 0 {
		t.Error("nil ratings total should be 0")
	}
	r := &AnalystRatings{StrongBuy: 3, Buy: 5, Hold: 2, Sell: 1, StrongSell: 1}
	if got := r.Total(); got != 12 {
		t.Errorf("expected total 12, got %d", got)
	}
}

func TestPositionHoldingDays(t *testing.T) {
	entry := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	p := &Position{EntryDate: entry, Outcome: OutcomeOpen}

	if !p.Open() {
		t.Error("expected position to be open")
	}
	if got := p.HoldingDays(entry.AddDate(0, 0, 30)); got != 30 {
		t.Errorf("expected 30 holding days, got %d", got)
	}
	if got := p.HoldingDays(entry); got != 0 {
		t.Errorf("expected 0 holding days, got %d", got)
	}

	// An intraday entry counts whole calendar days against midnight-stamped
	// dates; the fraction of the entry day does not shave a day off.
	p.EntryDate = time.Date(2025, 1, 2, 14, 30, 0, 0, time.UTC)
	asOf := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	if got := p.HoldingDays(asOf); got != 30 {
		t.Errorf("expected 30 holding days from intraday entry, got %d", got)
	}
}

func TestValidatedStockHasFlag(t *testing.T) {
	v := &ValidatedStock{ValidationFlags: []string{FlagPriceCorrected}}
	if !v.HasFlag(FlagPriceCorrected) {
		t.Error("expected price_corrected flag")
	}
	if v.HasFlag(FlagInsiderSelling) {
		t.Error("unexpected insider_selling flag")
	}
}
