package datasource

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/marketbrief/marketbrief/internal/infra"
	"github.com/marketbrief/marketbrief/internal/sentiment"
	"github.com/marketbrief/marketbrief/pkg/models"
	"github.com/marketbrief/marketbrief/pkg/utils"
)

// RSSNewsSource fetches per-ticker headlines from RSS feeds and tags each one
// with keyword sentiment.
type RSSNewsSource struct {
	feedURL string // format string with one %s for the ticker
	parser  *gofeed.Parser
	cache   *infra.Cache
	limiter *infra.Limiter
}

// NewRSSNewsSource creates a news source backed by Yahoo Finance's headline feed.
func NewRSSNewsSource() *RSSNewsSource {
	parser := gofeed.NewParser()
	parser.UserAgent = DefaultUserAgent
	return &RSSNewsSource{
		feedURL: "https://feeds.finance.yahoo.com/rss/2.0/headline?s=%s&region=US&lang=en-US",
		parser:  parser,
		cache:   infra.NewCache(15 * time.Minute),
		limiter: infra.NewLimiter(2),
	}
}

// NewRSSNewsSourceWithFeed creates a news source with a custom feed URL template.
func NewRSSNewsSourceWithFeed(feedURL string) *RSSNewsSource {
	s := NewRSSNewsSource()
	s.feedURL = feedURL
	return s
}

// GetNews returns up to limit recent headlines, newest first, each tagged
// with keyword sentiment.
func (s *RSSNewsSource) GetNews(ctx context.Context, ticker string, limit int) ([]models.NewsItem, error) {
	symbol := utils.NormalizeTicker(ticker)
	if limit <= 0 {
		limit = 10
	}

	cacheKey := fmt.Sprintf("news:%s:%d", symbol, limit)
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.([]models.NewsItem), nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	feed, err := s.parser.ParseURLWithContext(fmt.Sprintf(s.feedURL, symbol), ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch news feed %s: %w", symbol, err)
	}
	if len(feed.Items) == 0 {
		return nil, fmt.Errorf("%w: no headlines for %s", ErrNoData, symbol)
	}

	items := make([]models.NewsItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if entry.Title == "" {
			continue
		}
		item := models.NewsItem{
			Title:     entry.Title,
			Source:    coalesce(feed.Title, "rss"),
			URL:       entry.Link,
			Sentiment: sentiment.LabelHeadline(entry.Title),
		}
		if entry.PublishedParsed != nil {
			item.PublishedAt = *entry.PublishedParsed
		}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}

	s.cache.Set(cacheKey, items)
	return items, nil
}
