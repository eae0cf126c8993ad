package validate

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/marketbrief/marketbrief/internal/config"
	"github.com/marketbrief/marketbrief/pkg/models"
)

func testValidator() *Validator {
	return New(config.ValidationConfig{
		PriceTolerance: 0.02,
		QualityFloor:   70,
		ConfidenceCap:  75,
	}, zap.NewNop())
}

func goodAnalysis() *models.RawAnalysis {
	return &models.RawAnalysis{
		Ticker:       "AAPL",
		LastPrice:    100,
		AvgVolume:    50_000_000,
		Sector:       "Technology",
		Confidence:   85,
		RiskLevel:    models.RiskMedium,
		StopLoss:     92,
		ProfitTarget: 120,
		WhyTrust:     "Earnings momentum is broad.",
		CautionNotes: "Watch the upcoming product cycle.",
	}
}

func goodTruth() *models.AggregatedStockData {
	return &models.AggregatedStockData{
		Ticker: "AAPL",
		Quote:  models.Quote{Ticker: "AAPL", Price: 100, Verified: true},
		Fundamentals: &models.Fundamentals{
			MarketCap: 3e12, Sector: "Technology", AvgVolume: 50_000_000,
		},
		Quality: models.DataQualityAssessment{OverallScore: 80},
	}
}

func TestValidateCleanPass(t *testing.T) {
	result, err := testValidator().Validate(goodAnalysis(), goodTruth())
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if result.ID == "" {
		t.Error("ID not assigned")
	}
	if result.DataQualityScore != 80 {
		t.Errorf("DataQualityScore = %d, want 80", result.DataQualityScore)
	}
	if result.Confidence != 85 {
		t.Errorf("Confidence = %v, want untouched 85", result.Confidence)
	}
	for _, flag := range []string{models.FlagPriceCorrected, models.FlagConfidenceCapped,
		models.FlagVolumeCorrected, models.FlagSectorCorrected} {
		if result.HasFlag(flag) {
			t.Errorf("unexpected flag %q on clean pass", flag)
		}
	}
}

func TestValidatePriceWithinToleranceKept(t *testing.T) {
	analysis := goodAnalysis()
	analysis.LastPrice = 101.5 // 1.5% off, inside the 2% tolerance

	result, err := testValidator().Validate(analysis, goodTruth())
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if result.LastPrice != 101.5 {
		t.Errorf("LastPrice = %v, want model's 101.5 kept", result.LastPrice)
	}
	if result.HasFlag(models.FlagPriceCorrected) {
		t.Error("price inside tolerance must not be flagged")
	}
}

func TestValidatePriceCorrected(t *testing.T) {
	analysis := goodAnalysis()
	analysis.LastPrice = 110 // 10% hallucination

	result, err := testValidator().Validate(analysis, goodTruth())
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if result.LastPrice != 100 {
		t.Errorf("LastPrice = %v, want verified 100", result.LastPrice)
	}
	if !result.HasFlag(models.FlagPriceCorrected) {
		t.Error("missing price_corrected flag")
	}
	// Stop and target rescale by 100/110 so the geometry survives.
	if result.StopLoss >= result.LastPrice {
		t.Errorf("rescaled StopLoss %v not below corrected price", result.StopLoss)
	}
	if result.ProfitTarget <= result.LastPrice {
		t.Errorf("rescaled ProfitTarget %v not above corrected price", result.ProfitTarget)
	}
}

func TestValidateConfidenceCappedOnLowQuality(t *testing.T) {
	truth := goodTruth()
	truth.Quality.OverallScore = 50

	result, err := testValidator().Validate(goodAnalysis(), truth)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if result.Confidence != 75 {
		t.Errorf("Confidence = %v, want capped at 75", result.Confidence)
	}
	if !result.HasFlag(models.FlagConfidenceCapped) {
		t.Error("missing confidence_capped flag")
	}
}

func TestValidateConfidenceBelowCapUntouched(t *testing.T) {
	analysis := goodAnalysis()
	analysis.Confidence = 60
	truth := goodTruth()
	truth.Quality.OverallScore = 50

	result, err := testValidator().Validate(analysis, truth)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if result.Confidence != 60 {
		t.Errorf("Confidence = %v, want 60 untouched", result.Confidence)
	}
	if result.HasFlag(models.FlagConfidenceCapped) {
		t.Error("confidence below the cap must not be flagged")
	}
}

func TestValidateVolumeAndSectorOverwrite(t *testing.T) {
	analysis := goodAnalysis()
	analysis.AvgVolume = 1_000_000
	analysis.Sector = "Consumer Cyclical"

	result, err := testValidator().Validate(analysis, goodTruth())
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if result.AvgVolume != 50_000_000 {
		t.Errorf("AvgVolume = %d, want overwritten", result.AvgVolume)
	}
	if result.Sector != "Technology" {
		t.Errorf("Sector = %q, want overwritten", result.Sector)
	}
	if !result.HasFlag(models.FlagVolumeCorrected) || !result.HasFlag(models.FlagSectorCorrected) {
		t.Errorf("flags = %v, want volume_corrected and sector_corrected", result.ValidationFlags)
	}
}

func TestValidateAnnotationsAdditive(t *testing.T) {
	truth := goodTruth()
	truth.Insider = &models.InsiderActivity{RecentBuys: 1, RecentSells: 8, NetActivity: "selling"}

	result, err := testValidator().Validate(goodAnalysis(), truth)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !strings.Contains(result.WhyTrust, "Earnings momentum") {
		t.Error("original trust prose must survive")
	}
	if !strings.Contains(result.WhyTrust, "verified against two independent sources") {
		t.Error("missing trust annotation for verified price")
	}
	if !strings.Contains(result.CautionNotes, "Watch the upcoming product cycle") {
		t.Error("original caution prose must survive")
	}
	if !strings.Contains(result.CautionNotes, "net sellers") {
		t.Error("missing insider selling caution")
	}
	if !result.HasFlag(models.FlagInsiderSelling) {
		t.Error("missing insider_selling flag")
	}
}

func TestValidateSentimentCoverageNote(t *testing.T) {
	tests := []struct {
		name    string
		social  *models.SocialSentiment
		ratings *models.AnalystRatings
		want    []string
		absent  string
	}{
		{
			name:    "both sources",
			social:  &models.SocialSentiment{Trend: "bullish", Score: 0.6, TotalMentions: 120},
			ratings: &models.AnalystRatings{StrongBuy: 10, Buy: 15, Hold: 5, Consensus: "Buy"},
			want:    []string{"bullish social sentiment (120 mentions)", "Buy analyst consensus across 30 analysts"},
		},
		{
			name:   "social only",
			social: &models.SocialSentiment{Trend: "bearish", TotalMentions: 40},
			want:   []string{"bearish social sentiment (40 mentions)"},
			absent: "analyst consensus",
		},
		{
			name:    "ratings only",
			ratings: &models.AnalystRatings{Hold: 12, Consensus: "Hold"},
			want:    []string{"Hold analyst consensus across 12 analysts"},
			absent:  "social sentiment",
		},
		{
			name:   "neither source",
			absent: "Backed by",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			truth := goodTruth()
			truth.Social = tt.social
			truth.Ratings = tt.ratings

			result, err := testValidator().Validate(goodAnalysis(), truth)
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if !strings.Contains(result.WhyTrust, "Earnings momentum") {
				t.Error("original trust prose must survive")
			}
			for _, want := range tt.want {
				if !strings.Contains(result.WhyTrust, want) {
					t.Errorf("WhyTrust = %q, missing %q", result.WhyTrust, want)
				}
			}
			if tt.absent != "" && strings.Contains(result.WhyTrust, tt.absent) {
				t.Errorf("WhyTrust = %q, unexpected %q", result.WhyTrust, tt.absent)
			}
		})
	}
}

func TestValidateHardRejection(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.RawAnalysis)
	}{
		{"stop loss above price", func(a *models.RawAnalysis) { a.StopLoss = 105 }},
		{"stop loss equals price", func(a *models.RawAnalysis) { a.StopLoss = 100 }},
		{"profit target below price", func(a *models.RawAnalysis) { a.ProfitTarget = 95 }},
		{"profit target equals price", func(a *models.RawAnalysis) { a.ProfitTarget = 100 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := goodAnalysis()
			tt.mutate(analysis)
			_, err := testValidator().Validate(analysis, goodTruth())
			if !errors.Is(err, ErrRejected) {
				t.Errorf("error = %v, want ErrRejected", err)
			}
		})
	}
}

func TestValidateStructuralRejection(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.RawAnalysis)
	}{
		{"missing ticker", func(a *models.RawAnalysis) { a.Ticker = "" }},
		{"zero price", func(a *models.RawAnalysis) { a.LastPrice = 0 }},
		{"negative stop", func(a *models.RawAnalysis) { a.StopLoss = -5 }},
		{"confidence above 100", func(a *models.RawAnalysis) { a.Confidence = 130 }},
		{"unknown risk level", func(a *models.RawAnalysis) { a.RiskLevel = "Extreme" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := goodAnalysis()
			tt.mutate(analysis)
			_, err := testValidator().Validate(analysis, goodTruth())
			if !errors.Is(err, ErrRejected) {
				t.Errorf("error = %v, want ErrRejected", err)
			}
		})
	}
}

func TestValidateRejectionUsesCorrectedPrice(t *testing.T) {
	// The model prices the stock at 200 with a stop at 150; the verified price
	// is 100. After correction and rescaling the stop is 75, still below the
	// corrected price, so the pick survives.
	analysis := goodAnalysis()
	analysis.LastPrice = 200
	analysis.StopLoss = 150
	analysis.ProfitTarget = 260

	result, err := testValidator().Validate(analysis, goodTruth())
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if result.LastPrice != 100 {
		t.Errorf("LastPrice = %v", result.LastPrice)
	}
	if result.StopLoss != 75 {
		t.Errorf("StopLoss = %v, want rescaled 75", result.StopLoss)
	}
}

func TestValidateDegradedMode(t *testing.T) {
	result, err := testValidator().Validate(goodAnalysis(), nil)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !result.HasFlag(models.FlagNoGroundTruth) {
		t.Error("missing no_ground_truth flag")
	}
	if result.DataQualityScore != 0 {
		t.Errorf("DataQualityScore = %d, want 0 without ground truth", result.DataQualityScore)
	}
	// Corrections need ground truth; only structural rules apply.
	if result.Confidence != 85 {
		t.Errorf("Confidence = %v, want untouched in degraded mode", result.Confidence)
	}
}

func TestValidateDegradedModeStillRejects(t *testing.T) {
	analysis := goodAnalysis()
	analysis.StopLoss = 120
	_, err := testValidator().Validate(analysis, nil)
	if !errors.Is(err, ErrRejected) {
		t.Errorf("error = %v, want ErrRejected even without ground truth", err)
	}
}
