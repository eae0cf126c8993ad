package datasource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func timeUnix(sec int64) time.Time { return time.Unix(sec, 0) }

const yahooChartBody = `{
  "chart": {
    "result": [{
      "meta": {
        "symbol": "AAPL",
        "currency": "USD",
        "regularMarketPrice": 231.5,
        "regularMarketVolume": 48000000,
        "regularMarketDayLow": 229.1,
        "regularMarketDayHigh": 233.0,
        "fiftyTwoWeekLow": 164.0,
        "fiftyTwoWeekHigh": 237.5,
        "previousClose": 230.0,
        "longName": "Apple Inc.",
        "regularMarketTime": 1756742400
      },
      "timestamp": [1756656000, 1756742400],
      "indicators": {
        "quote": [{
          "open":   [230.1, 231.0],
          "high":   [232.0, 233.0],
          "low":    [229.0, 229.1],
          "close":  [230.0, 231.5],
          "volume": [45000000, 48000000]
        }]
      }
    }],
    "error": null
  }
}`

func TestYahooSourceGetQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(yahooChartBody))
	}))
	defer srv.Close()

	src := NewYahooSourceWithBaseURL(srv.URL)
	quote, err := src.GetQuote(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("GetQuote() error = %v", err)
	}
	if quote.Ticker != "AAPL" {
		t.Errorf("Ticker = %q, want AAPL", quote.Ticker)
	}
	if quote.Price != 231.5 {
		t.Errorf("Price = %v, want 231.5", quote.Price)
	}
	if quote.Name != "Apple Inc." {
		t.Errorf("Name = %q", quote.Name)
	}
	if quote.Source != "yahoo" {
		t.Errorf("Source = %q, want yahoo", quote.Source)
	}
}

func TestYahooSourceGetDailyBarsSkipsNulls(t *testing.T) {
	body := `{
	  "chart": {
	    "result": [{
	      "meta": {"symbol": "TEST"},
	      "timestamp": [1756656000, 1756742400, 1756828800],
	      "indicators": {
	        "quote": [{
	          "open":   [10.0, null, 12.0],
	          "high":   [11.0, null, 13.0],
	          "low":    [9.0,  null, 11.0],
	          "close":  [10.5, null, 12.5],
	          "volume": [1000, null, 2000]
	        }]
	      }
	    }],
	    "error": null
	  }
	}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	src := NewYahooSourceWithBaseURL(srv.URL)
	bars, err := src.GetDailyBars(context.Background(), "TEST", timeUnix(1756656000), timeUnix(1756828800))
	if err != nil {
		t.Fatalf("GetDailyBars() error = %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("len(bars) = %d, want 2 (null row dropped)", len(bars))
	}
	if bars[0].Close != 10.5 || bars[1].Close != 12.5 {
		t.Errorf("closes = %v, %v", bars[0].Close, bars[1].Close)
	}
	if !bars[0].Date.Before(bars[1].Date) {
		t.Error("bars must be in ascending date order")
	}
}

func TestYahooSourceNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
	}))
	defer srv.Close()

	src := NewYahooSourceWithBaseURL(srv.URL)
	if _, err := src.GetQuote(context.Background(), "NOPE"); err == nil {
		t.Error("expected error for unknown ticker")
	}
}

func TestStooqSourceGetQuote(t *testing.T) {
	csv := "Symbol,Date,Time,Open,High,Low,Close,Volume\n" +
		"AAPL.US,2026-09-01,22:00:08,230.1,233.0,229.0,231.8,48123456\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(csv))
	}))
	defer srv.Close()

	src := NewStooqSourceWithBaseURL(srv.URL)
	quote, err := src.GetQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GetQuote() error = %v", err)
	}
	if quote.Price != 231.8 {
		t.Errorf("Price = %v, want 231.8", quote.Price)
	}
	if quote.Volume != 48123456 {
		t.Errorf("Volume = %v", quote.Volume)
	}
	if quote.Source != "stooq" {
		t.Errorf("Source = %q, want stooq", quote.Source)
	}
}

func TestStooqSourceUnknownTicker(t *testing.T) {
	csv := "Symbol,Date,Time,Open,High,Low,Close,Volume\n" +
		"ZZZZZ.US,N/D,N/D,N/D,N/D,N/D,N/D,N/D\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(csv))
	}))
	defer srv.Close()

	src := NewStooqSourceWithBaseURL(srv.URL)
	_, err := src.GetQuote(context.Background(), "ZZZZZ")
	if !errors.Is(err, ErrTickerNotFound) {
		t.Errorf("error = %v, want ErrTickerNotFound", err)
	}
}

func TestStocktwitsSourceGetSocial(t *testing.T) {
	body := `{
	  "symbol": {"symbol": "AAPL", "title": "Apple Inc."},
	  "messages": [
	    {"body": "to the moon", "entities": {"sentiment": {"basic": "Bullish"}}},
	    {"body": "overvalued",  "entities": {"sentiment": {"basic": "Bearish"}}},
	    {"body": "strong growth and record high ahead", "entities": {"sentiment": null}},
	    {"body": "watching", "entities": {"sentiment": null}}
	  ]
	}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	src := NewStocktwitsSourceWithBaseURL(srv.URL)
	social, err := src.GetSocial(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GetSocial() error = %v", err)
	}
	if social.TotalMentions != 4 {
		t.Errorf("TotalMentions = %d, want 4", social.TotalMentions)
	}
	// 2 bullish (1 tagged + 1 keyword) vs 1 bearish.
	if social.Score <= 0 {
		t.Errorf("Score = %v, want net bullish", social.Score)
	}
	if social.Trend != "bullish" {
		t.Errorf("Trend = %q, want bullish", social.Trend)
	}
}

func TestOpenInsiderSourceParsesTable(t *testing.T) {
	html := `<html><body><table class="tinytable"><tbody>
	  <tr><td>1</td><td>x</td><td>2026-08-20</td><td>AAPL</td><td>Doe J</td><td>CEO</td><td>P - Purchase</td></tr>
	  <tr><td>2</td><td>x</td><td>2026-08-18</td><td>AAPL</td><td>Roe A</td><td>CFO</td><td>S - Sale</td></tr>
	  <tr><td>3</td><td>x</td><td>2026-08-12</td><td>AAPL</td><td>Poe B</td><td>Dir</td><td>S - Sale</td></tr>
	</tbody></table></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(html))
	}))
	defer srv.Close()

	src := NewOpenInsiderSourceWithBaseURL(srv.URL)
	activity, err := src.GetInsiderActivity(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GetInsiderActivity() error = %v", err)
	}
	if activity.RecentBuys != 1 || activity.RecentSells != 2 {
		t.Errorf("buys/sells = %d/%d, want 1/2", activity.RecentBuys, activity.RecentSells)
	}
	if activity.NetActivity != "selling" {
		t.Errorf("NetActivity = %q, want selling", activity.NetActivity)
	}
}
