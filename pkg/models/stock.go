// Package models defines the core data structures used throughout MarketBrief.
package models

import "time"

// Quote represents a verified live quote for a ticker.
type Quote struct {
	Ticker     string    `json:"ticker"`
	Name       string    `json:"name"`
	Price      float64   `json:"price"`
	Change     float64   `json:"change"`
	ChangePct  float64   `json:"change_pct"`
	Volume     int64     `json:"volume"`
	DayLow     float64   `json:"day_low"`
	DayHigh    float64   `json:"day_high"`
	Week52Low  float64   `json:"week_52_low"`
	Week52High float64   `json:"week_52_high"`
	Verified   bool      `json:"verified"` // true when cross-checked against a second source
	Source     string    `json:"source"`   // provider that supplied the price
	Timestamp  time.Time `json:"timestamp"`
}

// Fundamentals holds the objective company facts the validator treats as
// ground truth.
type Fundamentals struct {
	MarketCap     float64 `json:"market_cap"`
	PE            float64 `json:"pe"`
	EPS           float64 `json:"eps"`
	Revenue       float64 `json:"revenue"`
	ProfitMargin  float64 `json:"profit_margin"`
	DividendYield float64 `json:"dividend_yield"`
	Beta          float64 `json:"beta"`
	AvgVolume     int64   `json:"avg_volume"`
	Sector        string  `json:"sector"`
	Industry      string  `json:"industry"`
}

// Complete reports whether the fundamentals carry enough substance to count
// toward the data quality score.
func (f *Fundamentals) Complete() bool {
	if f == nil {
		return false
	}
	return f.MarketCap > 0 && f.Sector != ""
}

// NewsItem is a single headline attributed to a source, scored for sentiment.
type NewsItem struct {
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	URL         string    `json:"url,omitempty"`
	Sentiment   string    `json:"sentiment"` // "positive", "negative", "neutral"
	PublishedAt time.Time `json:"published_at"`
}

// SocialSentiment summarizes retail chatter for a ticker.
type SocialSentiment struct {
	Score         float64 `json:"score"` // -1.0 bearish .. +1.0 bullish
	Trend         string  `json:"trend"` // "bullish", "bearish", "neutral"
	TotalMentions int     `json:"total_mentions"`
	Summary       string  `json:"summary"`
}

// InsiderActivity aggregates recent insider filings.
type InsiderActivity struct {
	RecentBuys  int    `json:"recent_buys"`
	RecentSells int    `json:"recent_sells"`
	NetActivity string `json:"net_activity"` // "buying", "selling", "neutral"
}

// AnalystRatings holds the current analyst recommendation distribution.
type AnalystRatings struct {
	StrongBuy  int    `json:"strong_buy"`
	Buy        int    `json:"buy"`
	Hold       int    `json:"hold"`
	Sell       int    `json:"sell"`
	StrongSell int    `json:"strong_sell"`
	Consensus  string `json:"consensus"` // e.g. "Buy", "Hold"
}

// Total returns the number of analysts covering the ticker.
func (r *AnalystRatings) Total() int {
	if r == nil {
		return 0
	}
	return r.StrongBuy + r.Buy + r.Hold + r.Sell + r.StrongSell
}

// DataQualityAssessment scores how much independent evidence backs an
// aggregated record. The score is a deterministic additive rubric: the same
// inputs always produce the same score.
type DataQualityAssessment struct {
	OverallScore         int      `json:"overall_score"` // 0-100
	PriceVerified        bool     `json:"price_verified"`
	FundamentalsComplete bool     `json:"fundamentals_complete"`
	NewsAvailable        bool     `json:"news_available"`
	SocialAvailable      bool     `json:"social_available"`
	Warnings             []string `json:"warnings,omitempty"`
}

// AggregatedStockData merges every available data section for one ticker.
// It is constructed fresh per request, never mutated after return, and never
// persisted: it exists only as the cross-check oracle for the validator.
type AggregatedStockData struct {
	Ticker       string                `json:"ticker"`
	CompanyName  string                `json:"company_name"`
	Quote        Quote                 `json:"quote"`
	Fundamentals *Fundamentals         `json:"fundamentals,omitempty"`
	News         []NewsItem            `json:"news,omitempty"`
	Social       *SocialSentiment      `json:"social,omitempty"`
	Insider      *InsiderActivity      `json:"insider,omitempty"`
	Ratings      *AnalystRatings       `json:"ratings,omitempty"`
	Quality      DataQualityAssessment `json:"quality"`
	FetchedAt    time.Time             `json:"fetched_at"`
}

// PriceBar represents a single daily OHLCV bar.
type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}
