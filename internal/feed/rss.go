package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/pd-triglav/contentd/config"
	"github.com/pd-triglav/contentd/internal/helpers"
)

// RSSCollector reads one RSS or Atom feed.
type RSSCollector struct {
	cfg    config.RSSFeedConfig
	parser *gofeed.Parser
}

// NewRSS builds a collector for a single configured feed.
func NewRSS(cfg config.RSSFeedConfig) *RSSCollector {
	return &RSSCollector{cfg: cfg, parser: gofeed.NewParser()}
}

func (c *RSSCollector) ID() string { return c.cfg.ID }

// Collect fetches and parses the feed. Items without a usable link are
// silently skipped; an empty feed yields a non-nil empty slice.
func (c *RSSCollector) Collect(ctx context.Context) ([]Candidate, error) {
	parsed, err := c.parser.ParseURLWithContext(c.cfg.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", c.cfg.ID, err)
	}

	items := make([]Candidate, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		link := entryLink(entry)
		if link == "" {
			continue
		}
		canonical, err := helpers.CanonicalURL(link)
		if err != nil {
			continue
		}
		published := time.Time{}
		if entry.PublishedParsed != nil {
			published = *entry.PublishedParsed
		} else if entry.UpdatedParsed != nil {
			published = *entry.UpdatedParsed
		}
		items = append(items, Candidate{
			SourceID:     c.cfg.ID,
			URL:          link,
			CanonicalURL: canonical,
			Title:        strings.TrimSpace(entry.Title),
			Summary:      strings.TrimSpace(entry.Description),
			Locale:       c.cfg.Locale,
			PublishedAt:  published,
			Trust:        c.cfg.Trust,
		})
	}
	return items, nil
}

// entryLink returns the best available URL from a feed entry, preferring the
// explicit link and falling back to a GUID that looks like an HTTP URL.
func entryLink(entry *gofeed.Item) string {
	if link := strings.TrimSpace(entry.Link); link != "" {
		return link
	}
	if guid := strings.TrimSpace(entry.GUID); strings.HasPrefix(guid, "http") {
		return guid
	}
	return ""
}
