package models

import "time"

// RiskLevel classifies a pick's risk as stated by the model.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// Valid reports whether the risk level is one of the known values.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// Validation flags recorded when the validator alters or annotates a field.
const (
	FlagPriceCorrected   = "price_corrected"
	FlagConfidenceCapped = "confidence_capped"
	FlagVolumeCorrected  = "volume_corrected"
	FlagSectorCorrected  = "sector_corrected"
	FlagInsiderSelling   = "insider_selling"
	FlagNoGroundTruth    = "no_ground_truth"
)

// RawAnalysis is the structured analysis produced by the AI model for one
// ticker. It is immutable input to the validator; the analyzer never applies
// correction logic itself.
type RawAnalysis struct {
	Ticker     string    `json:"ticker"      validate:"required"`
	LastPrice  float64   `json:"last_price"  validate:"required,gt=0"`
	AvgVolume  int64     `json:"avg_volume"`
	Sector     string    `json:"sector"`
	Confidence float64   `json:"confidence"  validate:"gte=0,lte=100"`
	RiskLevel  RiskLevel `json:"risk_level"`

	StopLoss     float64 `json:"stop_loss"     validate:"required,gt=0"`
	ProfitTarget float64 `json:"profit_target" validate:"required,gt=0"`

	Summary             string `json:"summary"`
	WhyMatters          string `json:"why_matters"`
	MomentumCheck       string `json:"momentum_check"`
	ActionableInsight   string `json:"actionable_insight"`
	SuggestedAllocation string `json:"suggested_allocation"`
	WhyTrust            string `json:"why_trust"`
	CautionNotes        string `json:"caution_notes"`
	IdealEntryZone      string `json:"ideal_entry_zone"`
	MiniLearningMoment  string `json:"mini_learning_moment"`
}

// ValidatedStock is a RawAnalysis that passed the validation gate, with
// corrected facts, recalibrated confidence, and provenance annotations.
// Once published it is the immutable pick record; outcome tracking happens
// on a separate linked Position.
type ValidatedStock struct {
	RawAnalysis

	ID               string    `json:"id"`
	DataQualityScore int       `json:"data_quality_score"`
	ValidationFlags  []string  `json:"validation_flags,omitempty"`
	TrendSymbol      string    `json:"trend_symbol,omitempty"` // "▲", "▼", "▶"
	PublishedAt      time.Time `json:"published_at"`
}

// HasFlag reports whether the given validation flag was recorded.
func (v *ValidatedStock) HasFlag(flag string) bool {
	for _, f := range v.ValidationFlags {
		if f == flag {
			return true
		}
	}
	return false
}
