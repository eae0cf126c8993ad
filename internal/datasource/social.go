package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/marketbrief/marketbrief/internal/infra"
	"github.com/marketbrief/marketbrief/internal/sentiment"
	"github.com/marketbrief/marketbrief/pkg/models"
	"github.com/marketbrief/marketbrief/pkg/utils"
)

// StocktwitsSource fetches retail sentiment from the Stocktwits symbol stream.
// Messages carry an explicit bullish/bearish tag from the poster; untagged
// messages fall back to keyword scoring of the message body.
type StocktwitsSource struct {
	baseURL string
	cache   *infra.Cache
	limiter *infra.Limiter
}

// NewStocktwitsSource creates a Stocktwits data source.
func NewStocktwitsSource() *StocktwitsSource {
	return &StocktwitsSource{
		baseURL: "https://api.stocktwits.com/api/2",
		cache:   infra.NewCache(10 * time.Minute),
		limiter: infra.NewLimiter(2),
	}
}

// NewStocktwitsSourceWithBaseURL creates a source pointed at a custom host.
func NewStocktwitsSourceWithBaseURL(base string) *StocktwitsSource {
	s := NewStocktwitsSource()
	s.baseURL = base
	return s
}

type stocktwitsResponse struct {
	Symbol struct {
		Symbol string `json:"symbol"`
		Title  string `json:"title"`
	} `json:"symbol"`
	Messages []stocktwitsMessage `json:"messages"`
}

type stocktwitsMessage struct {
	Body     string `json:"body"`
	Entities struct {
		Sentiment *struct {
			Basic string `json:"basic"` // "Bullish" or "Bearish"
		} `json:"sentiment"`
	} `json:"entities"`
}

// GetSocial returns aggregated retail sentiment for the ticker.
func (s *StocktwitsSource) GetSocial(ctx context.Context, ticker string) (*models.SocialSentiment, error) {
	symbol := utils.NormalizeTicker(ticker)

	cacheKey := "social:" + symbol
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.(*models.SocialSentiment), nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/streams/symbol/%s.json", s.baseURL, symbol)
	body, _, err := doGet(ctx, u, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, fmt.Errorf("stocktwits %s: %w", symbol, err)
	}
	defer body.Close()

	var resp stocktwitsResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("parse stocktwits: %w", err)
	}
	if len(resp.Messages) == 0 {
		return nil, fmt.Errorf("%w: no messages for %s", ErrNoData, symbol)
	}

	bullish, bearish := 0, 0
	for _, msg := range resp.Messages {
		if msg.Entities.Sentiment != nil {
			switch msg.Entities.Sentiment.Basic {
			case "Bullish":
				bullish++
			case "Bearish":
				bearish++
			}
			continue
		}
		switch sentiment.LabelHeadline(msg.Body) {
		case sentiment.LabelPositive:
			bullish++
		case sentiment.LabelNegative:
			bearish++
		}
	}

	total := len(resp.Messages)
	tagged := bullish + bearish
	score := 0.0
	if tagged > 0 {
		score = float64(bullish-bearish) / float64(tagged)
	}

	result := &models.SocialSentiment{
		Score:         score,
		Trend:         trendLabel(score),
		TotalMentions: total,
		Summary: fmt.Sprintf("%d recent messages: %d bullish, %d bearish, %d untagged",
			total, bullish, bearish, total-tagged),
	}

	s.cache.Set(cacheKey, result)
	return result, nil
}

func trendLabel(score float64) string {
	switch {
	case score > 0.2:
		return "bullish"
	case score < -0.2:
		return "bearish"
	default:
		return "neutral"
	}
}
