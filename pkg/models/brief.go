package models

import "time"

// BriefData is the read-only projection handed to the external publisher
// (email sender, social poster, web archive). The core never renders HTML or
// subject lines; it only supplies the structured data.
type BriefData struct {
	Date        time.Time          `json:"date"`
	Picks       []ValidatedStock   `json:"picks"`
	Performance PerformanceSummary `json:"performance"`
	ClosedToday []Position         `json:"closed_today,omitempty"`
}

// PipelineResult records the per-ticker outcome of one pipeline cycle so
// monitoring can distinguish "bad AI output correctly caught" from "system
// broken".
type PipelineResult struct {
	Ticker string         `json:"ticker"`
	Status PipelineStatus `json:"status"`
	Err    string         `json:"error,omitempty"`
}

// PipelineStatus classifies a per-ticker pipeline outcome.
type PipelineStatus string

const (
	StatusPublished         PipelineStatus = "published"
	StatusAggregationFailed PipelineStatus = "aggregation_failed"
	StatusGenerationFailed  PipelineStatus = "generation_failed"
	StatusRejected          PipelineStatus = "rejected"
	StatusPersistFailed     PipelineStatus = "persist_failed"
	StatusSkipped           PipelineStatus = "skipped" // validated but ranked below the picks cap
)
