package content

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pd-triglav/contentd/internal/feed"
	"github.com/pd-triglav/contentd/internal/store"
)

// EventPayload is the historical event document served for one calendar
// day (recurring annually).
type EventPayload struct {
	Title        string   `json:"title"`
	Year         int      `json:"year"`
	Description  string   `json:"description"`
	Category     string   `json:"category"`
	Location     string   `json:"location,omitempty"`
	People       []string `json:"people,omitempty"`
	URL          string   `json:"url,omitempty"`
	SecondaryURL string   `json:"secondary_url,omitempty"`
	Confidence   string   `json:"confidence,omitempty"`
}

// DigestItem is one story in the daily digest.
type DigestItem struct {
	Title     string  `json:"title"`
	Summary   string  `json:"summary"`
	Category  string  `json:"category"`
	URL       string  `json:"url,omitempty"`
	Source    string  `json:"source,omitempty"`
	Relevance float64 `json:"relevance"`
}

// DigestPayload is the daily news digest document.
type DigestPayload struct {
	Date       string       `json:"date"`
	Items      []DigestItem `json:"items"`
	Confidence string       `json:"confidence,omitempty"`
}

var eventCategories = map[string]struct{}{
	"first_ascent": {},
	"tragedy":      {},
	"discovery":    {},
	"achievement":  {},
	"expedition":   {},
}

var digestCategories = map[string]struct{}{
	"safety":       {},
	"conditions":   {},
	"achievements": {},
	"gear":         {},
	"events":       {},
}

// ParseEvent validates a model-produced event document. Unknown categories
// are coerced to achievement rather than rejected; a missing title,
// description or year is a hard error.
func ParseEvent(data json.RawMessage) (EventPayload, store.Confidence, error) {
	var payload EventPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return EventPayload{}, "", fmt.Errorf("event payload: %w", err)
	}
	payload.Title = strings.TrimSpace(payload.Title)
	payload.Description = strings.TrimSpace(payload.Description)
	if payload.Title == "" {
		return EventPayload{}, "", fmt.Errorf("event payload: missing title")
	}
	if payload.Description == "" {
		return EventPayload{}, "", fmt.Errorf("event payload: missing description")
	}
	if payload.Year <= 0 {
		return EventPayload{}, "", fmt.Errorf("event payload: missing year")
	}
	payload.Category = normalizeCategory(payload.Category, eventCategories, "achievement")
	confidence := parseConfidence(payload.Confidence)
	payload.Confidence = string(confidence)
	return payload, confidence, nil
}

// ParseDigest validates a model-produced digest document. Item categories
// are coerced to events when unknown and relevance scores clamped to [0,1].
func ParseDigest(data json.RawMessage, dateKey string) (DigestPayload, store.Confidence, error) {
	var payload DigestPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return DigestPayload{}, "", fmt.Errorf("digest payload: %w", err)
	}
	payload.Date = dateKey
	items := payload.Items[:0]
	for _, item := range payload.Items {
		item.Title = strings.TrimSpace(item.Title)
		item.Summary = strings.TrimSpace(item.Summary)
		if item.Title == "" {
			continue
		}
		item.Category = normalizeCategory(item.Category, digestCategories, "events")
		if item.Relevance < 0 {
			item.Relevance = 0
		}
		if item.Relevance > 1 {
			item.Relevance = 1
		}
		items = append(items, item)
	}
	payload.Items = items
	confidence := parseConfidence(payload.Confidence)
	payload.Confidence = string(confidence)
	return payload, confidence, nil
}

func normalizeCategory(category string, allowed map[string]struct{}, fallback string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	if _, ok := allowed[category]; ok {
		return category
	}
	return fallback
}

// parseConfidence maps the model's self-reported confidence onto the three
// stored levels. Anything unrecognised counts as low: an answer that can't
// say how sure it is isn't servable.
func parseConfidence(s string) store.Confidence {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return store.ConfidenceHigh
	case "medium":
		return store.ConfidenceMedium
	case "low":
		return store.ConfidenceLow
	default:
		return store.ConfidenceLow
	}
}

// FallbackEvent is the deterministic stand-in persisted when no usable
// event could be generated for a date.
func FallbackEvent() EventPayload {
	return EventPayload{
		Title:       "First ascent of Mount Everest",
		Year:        1953,
		Description: "On 29 May 1953 Edmund Hillary and Tenzing Norgay became the first climbers confirmed to have reached the summit of Mount Everest, as part of the ninth British expedition led by John Hunt.",
		Category:    "first_ascent",
		Location:    "Mount Everest, Nepal",
		People:      []string{"Edmund Hillary", "Tenzing Norgay"},
		Confidence:  string(store.ConfidenceLow),
	}
}

// FallbackDigest is the deterministic empty digest persisted when no usable
// digest could be produced for a day.
func FallbackDigest(dateKey string) DigestPayload {
	return DigestPayload{
		Date:       dateKey,
		Items:      []DigestItem{},
		Confidence: string(store.ConfidenceLow),
	}
}

// DigestFromCandidates builds a digest directly from ranked candidates,
// used when the providers are exhausted but the feeds delivered stories.
func DigestFromCandidates(dateKey string, candidates []feed.Candidate) DigestPayload {
	items := make([]DigestItem, 0, len(candidates))
	for _, c := range candidates {
		relevance := c.Score
		if relevance < 0 {
			relevance = 0
		}
		if relevance > 1 {
			relevance = 1
		}
		items = append(items, DigestItem{
			Title:     c.Title,
			Summary:   c.Summary,
			Category:  "events",
			URL:       c.URL,
			Source:    c.SourceID,
			Relevance: relevance,
		})
	}
	return DigestPayload{Date: dateKey, Items: items, Confidence: string(store.ConfidenceLow)}
}

// DateKeyFor derives the storage key for a content type: events recur
// annually (MM-DD), digests are tied to the full date.
func DateKeyFor(contentType store.ContentType, t time.Time) string {
	if contentType == store.TypeEventOfDay {
		return t.Format("01-02")
	}
	return t.Format("2006-01-02")
}
