// Package sentiment provides a deterministic keyword-based sentiment scorer
// for news headlines. It needs no model call, so the aggregator can tag every
// headline without burning AI quota, and the output is reproducible.
package sentiment

import (
	"math"
	"strings"
)

// Labels assigned to scored headlines.
const (
	LabelPositive = "positive"
	LabelNegative = "negative"
	LabelNeutral  = "neutral"
)

// bullish / bearish keyword dictionaries (lowercase).
var bullishWords = map[string]float64{
	"beats": 0.6, "beat": 0.5, "surge": 0.7, "rally": 0.6, "soars": 0.7,
	"upgrade": 0.6, "outperform": 0.6, "record high": 0.7, "all-time high": 0.7,
	"strong": 0.4, "growth": 0.4, "profit": 0.3, "buyback": 0.5,
	"raises guidance": 0.7, "dividend increase": 0.5, "breakout": 0.6,
	"tops estimates": 0.6, "expansion": 0.4, "bullish": 0.7, "recovery": 0.5,
}

var bearishWords = map[string]float64{
	"misses": 0.6, "miss": 0.5, "plunge": 0.7, "slump": 0.6, "tumbles": 0.7,
	"downgrade": 0.6, "underperform": 0.6, "layoffs": 0.5, "lawsuit": 0.5,
	"investigation": 0.5, "recall": 0.5, "weak": 0.4, "decline": 0.5,
	"cuts guidance": 0.7, "selloff": 0.7, "bankruptcy": 0.9, "fraud": 0.8,
	"warning": 0.5, "probe": 0.5, "bearish": 0.7, "loss": 0.4,
}

// ScoreHeadline returns a sentiment score for a single headline.
// Score ranges from -1.0 (very bearish) to +1.0 (very bullish).
func ScoreHeadline(headline string) (score float64, confidence float64) {
	lower := strings.ToLower(headline)

	bullScore := 0.0
	bearScore := 0.0
	matches := 0

	for word, weight := range bullishWords {
		if strings.Contains(lower, word) {
			bullScore += weight
			matches++
		}
	}
	for word, weight := range bearishWords {
		if strings.Contains(lower, word) {
			bearScore += weight
			matches++
		}
	}

	if matches == 0 {
		return 0, 0.1 // no signal
	}

	total := bullScore + bearScore
	if total == 0 {
		return 0, 0.1
	}

	score = (bullScore - bearScore) / total
	confidence = math.Min(float64(matches)*0.15+0.2, 0.85)
	return score, confidence
}

// Label converts a score into the three-way label stored on NewsItem.
func Label(score float64) string {
	switch {
	case score > 0.15:
		return LabelPositive
	case score < -0.15:
		return LabelNegative
	default:
		return LabelNeutral
	}
}

// LabelHeadline scores and labels a headline in one step.
func LabelHeadline(headline string) string {
	score, _ := ScoreHeadline(headline)
	return Label(score)
}
