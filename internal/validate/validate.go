// Package validate is the gate between AI-generated analysis and anything a
// reader sees. It reconciles model output against independently aggregated
// market data, corrects objective facts, recalibrates confidence, and rejects
// picks whose risk parameters are structurally incoherent.
package validate

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marketbrief/marketbrief/internal/config"
	"github.com/marketbrief/marketbrief/pkg/models"
)

// ErrRejected is returned when an analysis fails a hard rule and must not be
// published. Rejection is final for the run; there is no repair path.
var ErrRejected = errors.New("validate: analysis rejected")

// Validator applies the correction and rejection rules to raw analyses.
type Validator struct {
	cfg      config.ValidationConfig
	validate *validator.Validate
	log      *zap.Logger
}

// New creates a validator with the given policy.
func New(cfg config.ValidationConfig, log *zap.Logger) *Validator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Validator{
		cfg:      cfg,
		validate: validator.New(),
		log:      log,
	}
}

// Validate checks one analysis against the aggregated ground truth and
// returns the publishable record. truth may be nil, in which case the
// validator degrades to structural checks only and flags the result.
//
// Rules run in a fixed order: structural checks, price reconciliation,
// confidence recalibration, factual overwrites, annotations, and finally the
// hard risk-parameter rejection against the corrected price.
func (v *Validator) Validate(analysis *models.RawAnalysis, truth *models.AggregatedStockData) (*models.ValidatedStock, error) {
	if analysis == nil {
		return nil, fmt.Errorf("%w: nil analysis", ErrRejected)
	}

	if err := v.structural(analysis); err != nil {
		return nil, err
	}

	result := &models.ValidatedStock{
		RawAnalysis: *analysis,
		ID:          uuid.NewString(),
		PublishedAt: time.Now(),
	}

	if truth == nil {
		result.ValidationFlags = append(result.ValidationFlags, models.FlagNoGroundTruth)
		if err := v.riskParameters(result); err != nil {
			return nil, err
		}
		v.log.Warn("validated without ground truth", zap.String("ticker", result.Ticker))
		return result, nil
	}

	result.DataQualityScore = truth.Quality.OverallScore

	v.reconcilePrice(result, truth)
	v.recalibrateConfidence(result)
	v.overwriteFacts(result, truth)
	v.annotate(result, truth)

	// The rejection rule runs last so it judges the corrected price, not the
	// model's hallucinated one.
	if err := v.riskParameters(result); err != nil {
		return nil, err
	}

	v.log.Info("analysis validated",
		zap.String("ticker", result.Ticker),
		zap.Int("quality", result.DataQualityScore),
		zap.Float64("confidence", result.Confidence),
		zap.Strings("flags", result.ValidationFlags))

	return result, nil
}

// structural rejects analyses that are not even well-formed: missing ticker,
// non-positive prices, confidence outside 0-100, unknown risk level.
func (v *Validator) structural(analysis *models.RawAnalysis) error {
	if err := v.validate.Struct(analysis); err != nil {
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	if analysis.RiskLevel != "" && !analysis.RiskLevel.Valid() {
		return fmt.Errorf("%w: unknown risk level %q", ErrRejected, analysis.RiskLevel)
	}
	return nil
}

// reconcilePrice replaces the model's last price with the verified quote when
// they disagree beyond the configured tolerance. Stop loss and profit target
// are rescaled by the same ratio so the model's intended risk geometry
// survives the correction.
func (v *Validator) reconcilePrice(result *models.ValidatedStock, truth *models.AggregatedStockData) {
	verified := truth.Quote.Price
	if verified <= 0 {
		return
	}

	diff := math.Abs(result.LastPrice-verified) / verified
	if diff <= v.cfg.PriceTolerance {
		return
	}

	ratio := verified / result.LastPrice
	v.log.Warn("price corrected",
		zap.String("ticker", result.Ticker),
		zap.Float64("model_price", result.LastPrice),
		zap.Float64("verified_price", verified))

	result.LastPrice = verified
	result.StopLoss = round2(result.StopLoss * ratio)
	result.ProfitTarget = round2(result.ProfitTarget * ratio)
	result.ValidationFlags = append(result.ValidationFlags, models.FlagPriceCorrected)
}

// recalibrateConfidence caps stated confidence when the underlying data is
// thin. A model cannot be more sure than its evidence.
func (v *Validator) recalibrateConfidence(result *models.ValidatedStock) {
	if result.DataQualityScore >= v.cfg.QualityFloor {
		return
	}
	if result.Confidence <= v.cfg.ConfidenceCap {
		return
	}
	result.Confidence = v.cfg.ConfidenceCap
	result.ValidationFlags = append(result.ValidationFlags, models.FlagConfidenceCapped)
}

// overwriteFacts replaces objective fields the model got wrong. These are
// silent factual fixes, flagged for provenance but never fatal.
func (v *Validator) overwriteFacts(result *models.ValidatedStock, truth *models.AggregatedStockData) {
	f := truth.Fundamentals
	if f == nil {
		return
	}
	if f.AvgVolume > 0 && result.AvgVolume != f.AvgVolume {
		result.AvgVolume = f.AvgVolume
		result.ValidationFlags = append(result.ValidationFlags, models.FlagVolumeCorrected)
	}
	if f.Sector != "" && result.Sector != f.Sector {
		result.Sector = f.Sector
		result.ValidationFlags = append(result.ValidationFlags, models.FlagSectorCorrected)
	}
}

// annotate appends provenance notes to the trust and caution fields. The
// model's own prose is kept; the validator only ever adds.
func (v *Validator) annotate(result *models.ValidatedStock, truth *models.AggregatedStockData) {
	if truth.Quote.Verified {
		result.WhyTrust = appendNote(result.WhyTrust,
			"Price verified against two independent sources.")
	}
	if note := coverageNote(truth.Social, truth.Ratings); note != "" {
		result.WhyTrust = appendNote(result.WhyTrust, note)
	}
	if truth.Quality.OverallScore < v.cfg.QualityFloor {
		result.CautionNotes = appendNote(result.CautionNotes,
			fmt.Sprintf("Data quality is limited (%d/100); treat projections with extra care.", truth.Quality.OverallScore))
	}
	if ins := truth.Insider; ins != nil && ins.NetActivity == "selling" {
		result.CautionNotes = appendNote(result.CautionNotes,
			fmt.Sprintf("Insiders were net sellers recently (%d sells vs %d buys).", ins.RecentSells, ins.RecentBuys))
		result.ValidationFlags = append(result.ValidationFlags, models.FlagInsiderSelling)
	}
}

// riskParameters enforces the hard gate: a stop loss at or above the entry
// price, or a profit target at or below it, makes the pick untradeable.
func (v *Validator) riskParameters(result *models.ValidatedStock) error {
	if result.StopLoss >= result.LastPrice {
		return fmt.Errorf("%w: %s stop loss %.2f >= last price %.2f",
			ErrRejected, result.Ticker, result.StopLoss, result.LastPrice)
	}
	if result.ProfitTarget <= result.LastPrice {
		return fmt.Errorf("%w: %s profit target %.2f <= last price %.2f",
			ErrRejected, result.Ticker, result.ProfitTarget, result.LastPrice)
	}
	return nil
}

// coverageNote describes which independent sentiment sources backed the
// pick. Returns "" when neither source reported.
func coverageNote(social *models.SocialSentiment, ratings *models.AnalystRatings) string {
	switch {
	case social != nil && ratings.Total() > 0:
		return fmt.Sprintf("Backed by %s social sentiment (%d mentions) and a %s analyst consensus across %d analysts.",
			social.Trend, social.TotalMentions, ratings.Consensus, ratings.Total())
	case social != nil:
		return fmt.Sprintf("Backed by %s social sentiment (%d mentions).",
			social.Trend, social.TotalMentions)
	case ratings.Total() > 0:
		return fmt.Sprintf("Backed by a %s analyst consensus across %d analysts.",
			ratings.Consensus, ratings.Total())
	default:
		return ""
	}
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + " " + note
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
