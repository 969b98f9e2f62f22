package feed

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pd-triglav/contentd/config"
	"github.com/pd-triglav/contentd/internal/telemetry"
)

// Aggregator fans out across all collectors, deduplicates what they return
// and picks the top candidates by weighted score.
type Aggregator struct {
	collectors []Collector
	cfg        config.AggregationConfig
	logger     *log.Logger
	now        func() time.Time
}

// NewAggregator wires the collectors to the scoring configuration.
func NewAggregator(collectors []Collector, cfg config.AggregationConfig) *Aggregator {
	return &Aggregator{
		collectors: collectors,
		cfg:        cfg,
		logger:     log.New(log.Writer(), "[FEEDS] ", log.LstdFlags),
		now:        time.Now,
	}
}

// Collect runs every collector concurrently and merges their output. A
// failing collector is logged and skipped; when every collector fails the
// result is an empty slice, not an error, so digest generation can still
// complete with an empty day.
func (a *Aggregator) Collect(ctx context.Context) []Candidate {
	var (
		mu  sync.Mutex
		all []Candidate
		wg  sync.WaitGroup
	)
	for _, collector := range a.collectors {
		wg.Add(1)
		go func(c Collector) {
			defer wg.Done()
			items, err := c.Collect(ctx)
			if err != nil {
				telemetry.CollectorFailures.WithLabelValues(c.ID()).Inc()
				a.logger.Printf("collector failed: %v", &SourceError{Source: c.ID(), Err: err})
				return
			}
			mu.Lock()
			all = append(all, items...)
			mu.Unlock()
		}(collector)
	}
	wg.Wait()
	return all
}

// Select scores, deduplicates and ranks candidates, returning at most
// cfg.TopN of them.
func (a *Aggregator) Select(candidates []Candidate) []Candidate {
	scored := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		c.Score = a.score(c)
		scored = append(scored, c)
	}

	deduped := dedupe(scored)
	telemetry.CandidatesCollected.Observe(float64(len(deduped)))

	sort.SliceStable(deduped, func(i, j int) bool {
		if deduped[i].Score != deduped[j].Score {
			return deduped[i].Score > deduped[j].Score
		}
		return deduped[i].PublishedAt.After(deduped[j].PublishedAt)
	})

	return a.capped(deduped)
}

// Run is Collect followed by Select.
func (a *Aggregator) Run(ctx context.Context) []Candidate {
	return a.Select(a.Collect(ctx))
}

// score combines source trust, recency and keyword hits, plus the locale
// boost for the home locale.
func (a *Aggregator) score(c Candidate) float64 {
	score := c.Trust

	if !c.PublishedAt.IsZero() && a.cfg.RecencyWindow > 0 {
		age := a.now().Sub(c.PublishedAt)
		if age < 0 {
			age = 0
		}
		if age < a.cfg.RecencyWindow {
			score += 0.5 * (1 - float64(age)/float64(a.cfg.RecencyWindow))
		}
	}

	text := strings.ToLower(c.Title + " " + c.Summary)
	for keyword, weight := range a.cfg.Keywords {
		if strings.Contains(text, strings.ToLower(keyword)) {
			score += weight
		}
	}

	if a.cfg.BoostLocale != "" && c.Locale == a.cfg.BoostLocale {
		score += a.cfg.LocaleBoost
	}
	return score
}

// dedupe collapses candidates sharing a canonical URL or a normalised
// title, keeping the higher-scoring one.
func dedupe(candidates []Candidate) []Candidate {
	byKey := make(map[string]int)
	var out []Candidate

	keep := func(key string, c Candidate) {
		if idx, ok := byKey[key]; ok {
			if c.Score > out[idx].Score {
				out[idx] = c
			}
			return
		}
		byKey[key] = len(out)
		out = append(out, c)
	}

	for _, c := range candidates {
		key := c.CanonicalURL
		if key == "" {
			key = "title:" + normalizeTitle(c.Title)
		}
		keep(key, c)
	}

	// Second pass collapses distinct URLs carrying the same headline.
	byTitle := make(map[string]int)
	var final []Candidate
	for _, c := range out {
		title := normalizeTitle(c.Title)
		if title == "" {
			final = append(final, c)
			continue
		}
		if idx, ok := byTitle[title]; ok {
			if c.Score > final[idx].Score {
				final[idx] = c
			}
			continue
		}
		byTitle[title] = len(final)
		final = append(final, c)
	}
	return final
}

func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// capped applies TopN and the per-locale cap for the boosted locale, so one
// local source cannot fill the whole digest.
func (a *Aggregator) capped(ranked []Candidate) []Candidate {
	top := make([]Candidate, 0, a.cfg.TopN)
	localeCount := 0
	var overflow []Candidate

	for _, c := range ranked {
		if len(top) >= a.cfg.TopN {
			break
		}
		if a.cfg.MaxPerLocale > 0 && a.cfg.BoostLocale != "" && c.Locale == a.cfg.BoostLocale {
			if localeCount >= a.cfg.MaxPerLocale {
				overflow = append(overflow, c)
				continue
			}
			localeCount++
		}
		top = append(top, c)
	}

	// Backfill with skipped locale candidates only when nothing else is
	// left, so a thin news day still produces a digest.
	for _, c := range overflow {
		if len(top) >= a.cfg.TopN {
			break
		}
		top = append(top, c)
	}
	return top
}
