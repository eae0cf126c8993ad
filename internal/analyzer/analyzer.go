// Package analyzer turns aggregated market data into structured stock
// analyses using an AI model behind the llm router. The analyzer only
// generates; it never corrects its own output. Fact checking belongs to the
// validate package.
package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/marketbrief/marketbrief/internal/config"
	"github.com/marketbrief/marketbrief/internal/llm"
	"github.com/marketbrief/marketbrief/pkg/models"
	"github.com/marketbrief/marketbrief/pkg/utils"
)

// ErrMalformedResponse is returned when the model's reply cannot be parsed
// into a structured analysis. The caller treats this like any provider
// failure: the ticker is skipped, never guessed at.
var ErrMalformedResponse = errors.New("analyzer: malformed model response")

// ChatCompleter is the slice of the llm surface the analyzer needs. The
// router satisfies it; tests supply fakes.
type ChatCompleter interface {
	Chat(ctx context.Context, messages []llm.Message, opts *llm.ChatOptions) (*llm.Response, error)
}

// Analyzer generates structured analyses for aggregated stock records.
type Analyzer struct {
	llm  ChatCompleter
	opts llm.ChatOptions
	log  *zap.Logger
}

// New creates an analyzer on top of a chat backend.
func New(backend ChatCompleter, cfg config.LLMConfig, log *zap.Logger) *Analyzer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyzer{
		llm: backend,
		opts: llm.ChatOptions{
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		},
		log: log,
	}
}

// AnalyzeStock produces a structured analysis for one aggregated record.
// The verified facts from the record are embedded in the prompt as ground
// truth; the model fills in judgement, not numbers it can get from the data.
// recentPicks lists tickers featured in recent briefs so the model can flag
// repeat appearances; nil is fine.
func (a *Analyzer) AnalyzeStock(ctx context.Context, data *models.AggregatedStockData, recentPicks []string) (*models.RawAnalysis, error) {
	messages := []llm.Message{
		llm.SystemMessage(systemPrompt),
		llm.UserMessage(buildPrompt(data, recentPicks)),
	}

	resp, err := a.llm.Chat(ctx, messages, &a.opts)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", data.Ticker, err)
	}

	analysis, err := parseAnalysis(resp.Content)
	if err != nil {
		a.log.Warn("unparseable model output",
			zap.String("ticker", data.Ticker),
			zap.String("provider", resp.Provider),
			zap.Error(err))
		return nil, fmt.Errorf("analyze %s: %w", data.Ticker, err)
	}

	// The model sometimes echoes a different casing or adds a suffix.
	analysis.Ticker = utils.NormalizeTicker(analysis.Ticker)
	if analysis.Ticker == "" {
		analysis.Ticker = data.Ticker
	}

	a.log.Info("stock analyzed",
		zap.String("ticker", analysis.Ticker),
		zap.String("provider", resp.Provider),
		zap.Float64("confidence", analysis.Confidence))

	return analysis, nil
}

// parseAnalysis extracts the JSON object from the model's reply. Models wrap
// JSON in code fences or prose more often than not, so the parser slices from
// the first '{' to the last '}' before unmarshalling.
func parseAnalysis(content string) (*models.RawAnalysis, error) {
	cleaned := strings.TrimSpace(content)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object found", ErrMalformedResponse)
	}

	var analysis models.RawAnalysis
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &analysis); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &analysis, nil
}
