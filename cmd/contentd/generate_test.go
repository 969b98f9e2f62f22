package main

import (
	"testing"
	"time"

	"github.com/pd-triglav/contentd/internal/content"
	"github.com/pd-triglav/contentd/internal/store"
)

func TestParseDateRangeSpansDays(t *testing.T) {
	from, to, err := parseDateRange("2026-08-28", "2026-08-30")
	if err != nil {
		t.Fatalf("parseDateRange: %v", err)
	}
	var keys []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		keys = append(keys, content.DateKeyFor(store.TypeDailyDigest, d))
	}
	want := []string{"2026-08-28", "2026-08-29", "2026-08-30"}
	if len(keys) != len(want) {
		t.Fatalf("got %d keys, want %d", len(keys), len(want))
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("key %d = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestParseDateRangeDefaultsToToday(t *testing.T) {
	from, to, err := parseDateRange("", "")
	if err != nil {
		t.Fatalf("parseDateRange: %v", err)
	}
	today := time.Now().Format("2006-01-02")
	if from.Format("2006-01-02") != today || to.Format("2006-01-02") != today {
		t.Errorf("got %v..%v, want today", from, to)
	}
}

func TestParseDateRangeRejectsBadInput(t *testing.T) {
	cases := []struct {
		name, from, to string
	}{
		{"from without to", "2026-08-28", ""},
		{"to without from", "", "2026-08-30"},
		{"malformed from", "28-08-2026", "2026-08-30"},
		{"reversed range", "2026-08-30", "2026-08-28"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := parseDateRange(tc.from, tc.to); err == nil {
				t.Fatalf("parseDateRange(%q, %q) succeeded, want error", tc.from, tc.to)
			}
		})
	}
}
