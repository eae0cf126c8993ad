package datasource

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/marketbrief/marketbrief/internal/infra"
	"github.com/marketbrief/marketbrief/pkg/models"
	"github.com/marketbrief/marketbrief/pkg/utils"
)

// OpenInsiderSource scrapes recent insider filings from openinsider.com's
// screener table.
type OpenInsiderSource struct {
	baseURL string
	cache   *infra.Cache
	limiter *infra.Limiter
}

// NewOpenInsiderSource creates an insider filing data source.
func NewOpenInsiderSource() *OpenInsiderSource {
	return &OpenInsiderSource{
		baseURL: "http://openinsider.com",
		cache:   infra.NewCache(time.Hour), // filings move slowly
		limiter: infra.NewIntervalLimiter(2 * time.Second),
	}
}

// NewOpenInsiderSourceWithBaseURL creates a source pointed at a custom host.
func NewOpenInsiderSourceWithBaseURL(base string) *OpenInsiderSource {
	s := NewOpenInsiderSource()
	s.baseURL = base
	return s
}

// GetInsiderActivity returns buy/sell counts from the last 90 days of filings.
func (s *OpenInsiderSource) GetInsiderActivity(ctx context.Context, ticker string) (*models.InsiderActivity, error) {
	symbol := utils.NormalizeTicker(ticker)

	cacheKey := "insider:" + symbol
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.(*models.InsiderActivity), nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/screener?s=%s&td=90&cnt=40", s.baseURL, symbol)
	body, _, err := doGet(ctx, u, map[string]string{"Accept": "text/html"})
	if err != nil {
		return nil, fmt.Errorf("openinsider %s: %w", symbol, err)
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse openinsider page: %w", err)
	}

	buys, sells := 0, 0
	doc.Find("table.tinytable tbody tr").Each(func(_ int, row *goquery.Selection) {
		// Trade type column reads "P - Purchase" or "S - Sale".
		tradeType := strings.TrimSpace(row.Find("td").Eq(6).Text())
		switch {
		case strings.HasPrefix(tradeType, "P"):
			buys++
		case strings.HasPrefix(tradeType, "S"):
			sells++
		}
	})

	activity := &models.InsiderActivity{
		RecentBuys:  buys,
		RecentSells: sells,
		NetActivity: netActivityLabel(buys, sells),
	}

	s.cache.Set(cacheKey, activity)
	return activity, nil
}

func netActivityLabel(buys, sells int) string {
	switch {
	case buys > sells:
		return "buying"
	case sells > buys:
		return "selling"
	default:
		return "neutral"
	}
}
