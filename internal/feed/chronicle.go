package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/pd-triglav/contentd/config"
	"github.com/pd-triglav/contentd/internal/helpers"
)

// maxChronicleArticles bounds how many article pages one run will fetch.
const maxChronicleArticles = 10

// ChronicleCollector scrapes the expedition chronicle site: it reads the
// listing page for article links, then extracts each article body with
// readability.
type ChronicleCollector struct {
	cfg    config.ChronicleConfig
	client *http.Client
}

// NewChronicle builds the scraper collector.
func NewChronicle(cfg config.ChronicleConfig, timeout time.Duration) *ChronicleCollector {
	return &ChronicleCollector{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

func (c *ChronicleCollector) ID() string { return "chronicle" }

// Collect scrapes the listing page and the first few linked articles.
func (c *ChronicleCollector) Collect(ctx context.Context) ([]Candidate, error) {
	doc, err := c.fetchDocument(ctx, c.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("chronicle listing: %w", err)
	}

	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("chronicle base url: %w", err)
	}

	links := c.articleLinks(doc, base)
	candidates := make([]Candidate, 0, len(links))
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return candidates, err
		}
		cand, err := c.fetchArticle(ctx, link)
		if err != nil {
			// One unreadable article should not sink the whole source.
			continue
		}
		candidates = append(candidates, cand)
	}
	return candidates, nil
}

func (c *ChronicleCollector) fetchDocument(ctx context.Context, target string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %s", resp.Status)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

// articleLinks pulls distinct article URLs out of the listing page,
// resolving relative hrefs against the base URL.
func (c *ChronicleCollector) articleLinks(doc *goquery.Document, base *url.URL) []string {
	seen := make(map[string]struct{})
	var links []string
	doc.Find("article a[href], .post a[href], h2 a[href]").Each(func(_ int, sel *goquery.Selection) {
		if len(links) >= maxChronicleArticles {
			return
		}
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)
		if resolved.Host != base.Host {
			return
		}
		canonical, err := helpers.CanonicalURL(resolved.String())
		if err != nil {
			return
		}
		if _, dup := seen[canonical]; dup {
			return
		}
		seen[canonical] = struct{}{}
		links = append(links, resolved.String())
	})
	return links
}

func (c *ChronicleCollector) fetchArticle(ctx context.Context, target string) (Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", target, nil)
	if err != nil {
		return Candidate{}, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return Candidate{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Candidate{}, fmt.Errorf("status %s", resp.Status)
	}

	parsedURL, err := url.Parse(target)
	if err != nil {
		return Candidate{}, err
	}
	article, err := readability.FromReader(resp.Body, parsedURL)
	if err != nil {
		return Candidate{}, fmt.Errorf("extract content: %w", err)
	}

	canonical, err := helpers.CanonicalURL(target)
	if err != nil {
		return Candidate{}, err
	}

	summary := strings.TrimSpace(article.Excerpt)
	if summary == "" {
		summary = snippet(article.TextContent, 400)
	}
	published := time.Time{}
	if article.PublishedTime != nil {
		published = *article.PublishedTime
	}
	return Candidate{
		SourceID:     "chronicle",
		URL:          target,
		CanonicalURL: canonical,
		Title:        strings.TrimSpace(article.Title),
		Summary:      summary,
		Locale:       c.cfg.Locale,
		PublishedAt:  published,
		Trust:        c.cfg.Trust,
	}, nil
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	cut := strings.LastIndexByte(s[:n], ' ')
	if cut <= 0 {
		cut = n
	}
	return s[:cut] + "…"
}
