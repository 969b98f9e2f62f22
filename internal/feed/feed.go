package feed

import (
	"context"
	"time"
)

// Candidate is one article surfaced by a collector, before scoring and
// selection.
type Candidate struct {
	SourceID     string    `json:"source_id"`
	URL          string    `json:"url"`
	CanonicalURL string    `json:"canonical_url"`
	Title        string    `json:"title"`
	Summary      string    `json:"summary"`
	Locale       string    `json:"locale"`
	PublishedAt  time.Time `json:"published_at"`
	Trust        float64   `json:"trust"`
	Score        float64   `json:"score"`
}

// Collector pulls candidates from one upstream source. Collect returns the
// candidates it could fetch; a failing source returns a *SourceError and
// contributes nothing.
type Collector interface {
	ID() string
	Collect(ctx context.Context) ([]Candidate, error)
}

// SourceError identifies which upstream source a collection failure came
// from.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return e.Source + ": " + e.Err.Error()
}

func (e *SourceError) Unwrap() error { return e.Err }
