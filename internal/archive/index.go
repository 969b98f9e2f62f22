package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/blevesearch/bleve"

	"github.com/pd-triglav/contentd/internal/store"
)

// eventDoc is what gets indexed per historical event record.
type eventDoc struct {
	DateKey     string `json:"date_key"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Location    string `json:"location"`
	People      string `json:"people"`
	Year        int    `json:"year"`
}

// Hit is one search result from the event archive.
type Hit struct {
	RecordID int64   `json:"record_id"`
	DateKey  string  `json:"date_key"`
	Title    string  `json:"title"`
	Year     int     `json:"year"`
	Score    float64 `json:"score"`
}

// Index is a BM25 search index over historical event payloads. It lives in
// memory and is rebuilt from the store on startup.
type Index struct {
	mu    sync.RWMutex
	bleve bleve.Index
	meta  map[string]eventDoc
}

// NewIndex builds an empty in-memory index.
func NewIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Index{bleve: idx, meta: make(map[string]eventDoc)}, nil
}

// IndexRecord adds or replaces one event record. Payloads that do not
// parse as an event are skipped without error so an odd historical row
// cannot wedge a rebuild.
func (i *Index) IndexRecord(rec store.ContentRecord) error {
	if rec.ContentType != store.TypeEventOfDay {
		return nil
	}
	var payload struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Category    string   `json:"category"`
		Location    string   `json:"location"`
		People      []string `json:"people"`
		Year        int      `json:"year"`
	}
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		return nil
	}
	doc := eventDoc{
		DateKey:     rec.DateKey,
		Title:       payload.Title,
		Description: payload.Description,
		Category:    payload.Category,
		Location:    payload.Location,
		Year:        payload.Year,
	}
	for idx, p := range payload.People {
		if idx > 0 {
			doc.People += ", "
		}
		doc.People += p
	}

	id := strconv.FormatInt(rec.ID, 10)
	i.mu.Lock()
	defer i.mu.Unlock()
	i.meta[id] = doc
	return i.bleve.Index(id, doc)
}

// Rebuild drops nothing but re-indexes every event record in the store;
// ids are stable so stale entries get overwritten.
func (i *Index) Rebuild(ctx context.Context, s *store.Store) (int, error) {
	records, err := s.ListByType(ctx, store.TypeEventOfDay)
	if err != nil {
		return 0, fmt.Errorf("list events: %w", err)
	}
	count := 0
	for _, rec := range records {
		if err := i.IndexRecord(rec); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// Search runs a query-string search and returns up to k hits.
func (i *Index) Search(q string, k int) ([]Hit, error) {
	if k <= 0 {
		k = 10
	}
	query := bleve.NewQueryStringQuery(q)
	searchReq := bleve.NewSearchRequestOptions(query, k, 0, false)

	i.mu.RLock()
	defer i.mu.RUnlock()
	res, err := i.bleve.Search(searchReq)
	if err != nil {
		return nil, err
	}
	var out []Hit
	for _, hit := range res.Hits {
		doc, ok := i.meta[hit.ID]
		if !ok {
			continue
		}
		recordID, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, Hit{
			RecordID: recordID,
			DateKey:  doc.DateKey,
			Title:    doc.Title,
			Year:     doc.Year,
			Score:    hit.Score,
		})
	}
	return out, nil
}
