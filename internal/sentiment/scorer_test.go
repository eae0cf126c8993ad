package sentiment

import "testing"

func TestScoreHeadline(t *testing.T) {
	tests := []struct {
		name     string
		headline string
		wantSign int // -1, 0, +1
	}{
		{"bullish earnings", "Apple beats estimates, shares surge on strong growth", 1},
		{"bearish guidance", "Retailer misses on revenue, cuts guidance amid weak demand", -1},
		{"neutral", "Company schedules annual shareholder meeting for June", 0},
		{"mixed leans bearish", "Stock rallies despite fraud investigation and lawsuit", -1},
		{"upgrade", "Analyst upgrade lifts shares to record high", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, conf := ScoreHeadline(tt.headline)
			sign := 0
			if score > 0.15 {
				sign = 1
			} else if score < -0.15 {
				sign = -1
			}
			if sign != tt.wantSign {
				t.Errorf("ScoreHeadline(%q) score = %v, want sign %d", tt.headline, score, tt.wantSign)
			}
			if conf < 0 || conf > 1 {
				t.Errorf("confidence %v out of range", conf)
			}
		})
	}
}

func TestLabel(t *testing.T) {
	if got := Label(0.5); got != LabelPositive {
		t.Errorf("Label(0.5) = %q, want positive", got)
	}
	if got := Label(-0.5); got != LabelNegative {
		t.Errorf("Label(-0.5) = %q, want negative", got)
	}
	if got := Label(0.0); got != LabelNeutral {
		t.Errorf("Label(0.0) = %q, want neutral", got)
	}
}

func TestLabelHeadline(t *testing.T) {
	if got := LabelHeadline("Shares soar after company tops estimates"); got != LabelPositive {
		t.Errorf("bullish headline labeled %q", got)
	}
	if got := LabelHeadline("Board announces quarterly meeting date"); got != LabelNeutral {
		t.Errorf("neutral headline labeled %q", got)
	}
}
