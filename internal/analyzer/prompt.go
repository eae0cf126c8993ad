package analyzer

import (
	"fmt"
	"strings"

	"github.com/marketbrief/marketbrief/pkg/models"
	"github.com/marketbrief/marketbrief/pkg/utils"
)

const systemPrompt = `You are a senior equity analyst writing for a daily retail
investing newsletter. You are given verified market data for one stock and
must produce a single JSON object with your analysis.

Rules:
- Use the provided data as ground truth. Never invent prices, volumes, or
  sector labels; copy them from the data you were given.
- stop_loss must be strictly below last_price, profit_target strictly above.
- confidence is 0-100 and should reflect how well the evidence supports the
  thesis, not enthusiasm.
- Respond with ONLY the JSON object, no surrounding prose.

JSON schema:
{
  "ticker": string,
  "last_price": number,
  "avg_volume": number,
  "sector": string,
  "confidence": number,
  "risk_level": "Low" | "Medium" | "High",
  "stop_loss": number,
  "profit_target": number,
  "summary": string,
  "why_matters": string,
  "momentum_check": string,
  "actionable_insight": string,
  "suggested_allocation": string,
  "why_trust": string,
  "caution_notes": string,
  "ideal_entry_zone": string,
  "mini_learning_moment": string
}`

// buildPrompt renders the aggregated record as a ground-truth block for the
// model, plus the recently featured tickers so the model keeps the brief
// fresh. Sections that were not fetched are omitted rather than left blank,
// so the model cannot anchor on empty placeholders.
func buildPrompt(data *models.AggregatedStockData, recentPicks []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Analyze %s", data.Ticker)
	if data.CompanyName != "" {
		fmt.Fprintf(&b, " (%s)", data.CompanyName)
	}
	b.WriteString(".\n\n== VERIFIED MARKET DATA ==\n")

	fmt.Fprintf(&b, "Last price: $%.2f", data.Quote.Price)
	if data.Quote.Verified {
		b.WriteString(" (verified across two sources)")
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Day change: %s\n", utils.FormatPercent(data.Quote.ChangePct))
	fmt.Fprintf(&b, "Volume: %s\n", utils.FormatAbbrev(float64(data.Quote.Volume)))
	if data.Quote.Week52Low > 0 {
		fmt.Fprintf(&b, "52-week range: $%.2f - $%.2f\n", data.Quote.Week52Low, data.Quote.Week52High)
	}

	if f := data.Fundamentals; f != nil {
		b.WriteString("\n== FUNDAMENTALS ==\n")
		if f.Sector != "" {
			fmt.Fprintf(&b, "Sector: %s / %s\n", f.Sector, f.Industry)
		}
		if f.MarketCap > 0 {
			fmt.Fprintf(&b, "Market cap: %s\n", utils.FormatAbbrev(f.MarketCap))
		}
		if f.PE > 0 {
			fmt.Fprintf(&b, "P/E: %.1f\n", f.PE)
		}
		if f.EPS != 0 {
			fmt.Fprintf(&b, "EPS: %.2f\n", f.EPS)
		}
		if f.Revenue > 0 {
			fmt.Fprintf(&b, "Revenue: %s\n", utils.FormatAbbrev(f.Revenue))
		}
		if f.ProfitMargin != 0 {
			fmt.Fprintf(&b, "Profit margin: %.1f%%\n", f.ProfitMargin)
		}
		if f.AvgVolume > 0 {
			fmt.Fprintf(&b, "Average volume: %s\n", utils.FormatAbbrev(float64(f.AvgVolume)))
		}
	}

	if len(data.News) > 0 {
		b.WriteString("\n== RECENT HEADLINES ==\n")
		for _, item := range data.News {
			fmt.Fprintf(&b, "- [%s] %s\n", item.Sentiment, item.Title)
		}
	}

	if s := data.Social; s != nil {
		b.WriteString("\n== RETAIL SENTIMENT ==\n")
		fmt.Fprintf(&b, "Trend: %s (score %.2f, %d mentions)\n", s.Trend, s.Score, s.TotalMentions)
	}

	if ins := data.Insider; ins != nil {
		b.WriteString("\n== INSIDER ACTIVITY (90d) ==\n")
		fmt.Fprintf(&b, "%d buys, %d sells (net %s)\n", ins.RecentBuys, ins.RecentSells, ins.NetActivity)
	}

	if r := data.Ratings; r != nil && r.Total() > 0 {
		b.WriteString("\n== ANALYST RATINGS ==\n")
		fmt.Fprintf(&b, "Strong buy %d / Buy %d / Hold %d / Sell %d / Strong sell %d (consensus: %s)\n",
			r.StrongBuy, r.Buy, r.Hold, r.Sell, r.StrongSell, r.Consensus)
	}

	if len(recentPicks) > 0 {
		b.WriteString("\n== RECENTLY FEATURED ==\n")
		fmt.Fprintf(&b, "These tickers appeared in recent briefs: %s.\n", strings.Join(recentPicks, ", "))
		b.WriteString("Note in the summary if this is a repeat appearance and what changed since.\n")
	}

	fmt.Fprintf(&b, "\nData quality score: %d/100\n", data.Quality.OverallScore)
	if len(data.Quality.Warnings) > 0 {
		b.WriteString("Data warnings:\n")
		for _, w := range data.Quality.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	return b.String()
}
