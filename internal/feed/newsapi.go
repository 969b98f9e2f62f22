package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pd-triglav/contentd/config"
	"github.com/pd-triglav/contentd/internal/helpers"
)

// NewsAPICollector queries the NewsAPI "everything" endpoint for the
// configured search terms.
type NewsAPICollector struct {
	cfg    config.NewsAPIConfig
	client *http.Client
	now    func() time.Time
}

// NewNewsAPI builds the collector. The HTTP client timeout is the feeds
// timeout so one slow upstream cannot stall a whole aggregation run.
func NewNewsAPI(cfg config.NewsAPIConfig, timeout time.Duration) *NewsAPICollector {
	return &NewsAPICollector{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

func (c *NewsAPICollector) ID() string { return "newsapi" }

type newsAPIArticle struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"publishedAt"`
}

type newsAPIResponse struct {
	Status   string           `json:"status"`
	Message  string           `json:"message"`
	Articles []newsAPIArticle `json:"articles"`
}

// Collect runs one search across all configured terms, OR-joined the way
// the everything endpoint expects, scoped to the configured time window.
func (c *NewsAPICollector) Collect(ctx context.Context) ([]Candidate, error) {
	if c.cfg.APIKey == "" {
		return nil, fmt.Errorf("newsapi: api key not configured")
	}

	terms := make([]string, 0, len(c.cfg.Terms))
	for _, t := range c.cfg.Terms {
		t = strings.TrimSpace(t)
		if t != "" {
			terms = append(terms, fmt.Sprintf("%q", t))
		}
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("newsapi: no search terms configured")
	}

	params := url.Values{}
	params.Add("q", strings.Join(terms, " OR "))
	params.Add("from", c.now().Add(-c.cfg.Window).UTC().Format("2006-01-02T15:04:05"))
	params.Add("sortBy", "publishedAt")
	params.Add("pageSize", fmt.Sprintf("%d", c.cfg.MaxResults))
	params.Add("apiKey", c.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s?%s", c.cfg.Endpoint, params.Encode()), nil)
	if err != nil {
		return nil, fmt.Errorf("newsapi request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("newsapi error: %s", resp.Status)
	}

	var result newsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Status != "ok" {
		return nil, fmt.Errorf("newsapi error: %s", result.Message)
	}

	candidates := make([]Candidate, 0, len(result.Articles))
	for _, article := range result.Articles {
		canonical, err := helpers.CanonicalURL(article.URL)
		if err != nil {
			continue
		}
		candidates = append(candidates, Candidate{
			SourceID:     "newsapi:" + article.Source.Name,
			URL:          article.URL,
			CanonicalURL: canonical,
			Title:        strings.TrimSpace(article.Title),
			Summary:      strings.TrimSpace(article.Description),
			PublishedAt:  article.PublishedAt,
			Trust:        c.cfg.Trust,
		})
	}
	return candidates, nil
}
