package content

import (
	"fmt"
	"strings"
	"time"

	"github.com/pd-triglav/contentd/internal/feed"
)

const eventSystemPrompt = `You are a mountaineering historian for a Slovenian alpine club.
Answer with a single JSON object and nothing else, using this schema:
{"title": string, "year": number, "description": string (2-4 sentences),
"category": one of "first_ascent"|"tragedy"|"discovery"|"achievement"|"expedition",
"location": string, "people": [string], "url": string,
"confidence": "high"|"medium"|"low"}.
Only report events you are certain happened on the given day. If you are not
sure, set confidence to "low".`

func eventUserPrompt(date time.Time) string {
	return fmt.Sprintf(
		"What significant event in the history of mountaineering, alpinism or climbing happened on %s (in any year)? Prefer events involving Slovenian alpinists when one qualifies.",
		date.Format("January 2"))
}

const digestSystemPrompt = `You are the news editor of a mountaineering daily digest.
From the candidate articles, pick the most relevant stories, summarise each in
one or two sentences, and answer with a single JSON object and nothing else:
{"items": [{"title": string, "summary": string,
"category": one of "safety"|"conditions"|"achievements"|"gear"|"events",
"url": string, "source": string, "relevance": number between 0 and 1}],
"confidence": "high"|"medium"|"low"}.
Keep the original article URLs. Summaries are written in English.`

func digestUserPrompt(dateKey string, candidates []feed.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Candidate articles for %s:\n", dateKey)
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. %s\n   url: %s\n   source: %s\n", i+1, c.Title, c.URL, c.SourceID)
		if c.Summary != "" {
			fmt.Fprintf(&b, "   summary: %s\n", c.Summary)
		}
	}
	b.WriteString("\nSelect and summarise the stories worth a club member's attention today.")
	return b.String()
}
