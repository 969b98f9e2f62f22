package content

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pd-triglav/contentd/internal/feed"
	"github.com/pd-triglav/contentd/internal/store"
)

func TestParseEvent(t *testing.T) {
	data := json.RawMessage(`{
		"title":"First ascent of Everest",
		"year":1953,
		"description":"Hillary and Norgay reach the summit.",
		"category":"first_ascent",
		"people":["Edmund Hillary","Tenzing Norgay"],
		"confidence":"high"
	}`)
	payload, confidence, err := ParseEvent(data)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if confidence != store.ConfidenceHigh {
		t.Fatalf("confidence = %s", confidence)
	}
	if payload.Category != "first_ascent" || payload.Year != 1953 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestParseEventCoercesUnknownCategory(t *testing.T) {
	data := json.RawMessage(`{"title":"t","year":1900,"description":"d","category":"heroics","confidence":"medium"}`)
	payload, _, err := ParseEvent(data)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if payload.Category != "achievement" {
		t.Fatalf("category = %s, want achievement", payload.Category)
	}
}

func TestParseEventMissingFields(t *testing.T) {
	cases := []string{
		`{"year":1900,"description":"d"}`,
		`{"title":"t","description":"d"}`,
		`{"title":"t","year":1900}`,
		`not json`,
	}
	for _, in := range cases {
		if _, _, err := ParseEvent(json.RawMessage(in)); err == nil {
			t.Fatalf("expected error for %s", in)
		}
	}
}

func TestParseEventUnstatedConfidenceIsLow(t *testing.T) {
	data := json.RawMessage(`{"title":"t","year":1900,"description":"d"}`)
	_, confidence, err := ParseEvent(data)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if confidence != store.ConfidenceLow {
		t.Fatalf("confidence = %s, want low", confidence)
	}
}

func TestParseDigest(t *testing.T) {
	data := json.RawMessage(`{
		"items":[
			{"title":"Avalanche warning","summary":"s","category":"safety","relevance":0.9},
			{"title":"New crampons","summary":"s","category":"unboxing","relevance":1.7},
			{"title":"","summary":"dropped"},
			{"title":"Negative","summary":"s","category":"gear","relevance":-0.2}
		],
		"confidence":"medium"
	}`)
	payload, confidence, err := ParseDigest(data, "2026-03-10")
	if err != nil {
		t.Fatalf("ParseDigest: %v", err)
	}
	if confidence != store.ConfidenceMedium {
		t.Fatalf("confidence = %s", confidence)
	}
	if payload.Date != "2026-03-10" {
		t.Fatalf("date = %s", payload.Date)
	}
	if len(payload.Items) != 3 {
		t.Fatalf("expected 3 items (untitled dropped), got %d", len(payload.Items))
	}
	if payload.Items[1].Category != "events" {
		t.Fatalf("unknown category should coerce to events, got %s", payload.Items[1].Category)
	}
	if payload.Items[1].Relevance != 1 {
		t.Fatalf("relevance should clamp to 1, got %f", payload.Items[1].Relevance)
	}
	if payload.Items[2].Relevance != 0 {
		t.Fatalf("relevance should clamp to 0, got %f", payload.Items[2].Relevance)
	}
}

func TestFallbackEventIsDeterministic(t *testing.T) {
	a, b := FallbackEvent(), FallbackEvent()
	aj, _ := json.Marshal(a)
	bj, _ := json.Marshal(b)
	if string(aj) != string(bj) {
		t.Fatalf("fallback event not deterministic")
	}
	if a.Year != 1953 || a.Category != "first_ascent" {
		t.Fatalf("unexpected fallback event: %+v", a)
	}
}

func TestDigestFromCandidatesClampsScores(t *testing.T) {
	payload := DigestFromCandidates("2026-03-10", []feed.Candidate{
		{Title: "a", Score: 1.4, URL: "https://x/1", SourceID: "rss"},
		{Title: "b", Score: -0.1},
	})
	if payload.Items[0].Relevance != 1 || payload.Items[1].Relevance != 0 {
		t.Fatalf("scores not clamped: %+v", payload.Items)
	}
	if payload.Confidence != string(store.ConfidenceLow) {
		t.Fatalf("candidate digest should be low confidence")
	}
}

func TestDateKeyFor(t *testing.T) {
	at := time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)
	if got := DateKeyFor(store.TypeEventOfDay, at); got != "03-10" {
		t.Fatalf("event key = %s", got)
	}
	if got := DateKeyFor(store.TypeDailyDigest, at); got != "2026-03-10" {
		t.Fatalf("digest key = %s", got)
	}
}
