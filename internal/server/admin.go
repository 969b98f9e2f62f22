package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pd-triglav/contentd/internal/content"
	"github.com/pd-triglav/contentd/internal/store"
)

// CuratedImporter persists operator-supplied records.
type CuratedImporter interface {
	ImportCurated(ctx context.Context, records []store.ContentRecord) (imported, skipped int, err error)
}

type AdminHandler struct {
	Store    CuratedImporter
	Resolver Resolver
}

func (h *AdminHandler) Register(g *echo.Group, secret []byte) {
	g.Use(withAuth(secret))
	g.POST("/content/:type/regenerate", h.regenerate)
	g.POST("/content/import", h.importCurated)
}

// regenerate forces a fresh generation task. An optional date_key query
// parameter targets a specific day; the default is today. The existing
// record keeps serving until the new one lands.
func (h *AdminHandler) regenerate(c echo.Context) error {
	contentType, err := contentTypeParam(c)
	if err != nil {
		return err
	}
	dateKey := c.QueryParam("date_key")
	if dateKey != "" {
		if _, err := time.Parse(dateKeyLayout(contentType), dateKey); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("bad date key %q for %s", dateKey, contentType))
		}
	}
	res, err := h.Resolver.Regenerate(contentType, dateKey)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := map[string]string{"status": string(res.State)}
	if res.Task != nil {
		resp["task_id"] = res.Task.ID
	}
	return c.JSON(http.StatusAccepted, resp)
}

// ImportItem is one curated record in an import batch.
type ImportItem struct {
	ContentType string          `json:"content_type"`
	DateKey     string          `json:"date_key"`
	Payload     json.RawMessage `json:"payload"`
	Confidence  string          `json:"confidence"`
}

type importRequest struct {
	Records []ImportItem `json:"records"`
}

// importCurated accepts a batch of curated records. Keys already holding a
// curated record are skipped, never overwritten.
func (h *AdminHandler) importCurated(c echo.Context) error {
	var req importRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.Records) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "records is empty")
	}

	records, err := CuratedRecords(req.Records)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	imported, skipped, err := h.Store.ImportCurated(c.Request().Context(), records)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int{"imported": imported, "skipped": skipped})
}

// CuratedRecords validates and normalises an import batch. Payloads go
// through the same parsing as generated content so malformed documents are
// rejected before they reach the database.
func CuratedRecords(items []ImportItem) ([]store.ContentRecord, error) {
	records := make([]store.ContentRecord, 0, len(items))
	for i, item := range items {
		rec, err := curatedRecord(item)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// dateKeyLayout is the time.Parse layout a content type's date keys use.
func dateKeyLayout(contentType store.ContentType) string {
	if contentType == store.TypeEventOfDay {
		return "01-02"
	}
	return "2006-01-02"
}

func curatedRecord(item ImportItem) (store.ContentRecord, error) {
	contentType := store.ContentType(item.ContentType)
	if !contentType.Valid() {
		return store.ContentRecord{}, fmt.Errorf("unknown content type: %s", item.ContentType)
	}

	if _, err := time.Parse(dateKeyLayout(contentType), item.DateKey); err != nil {
		return store.ContentRecord{}, fmt.Errorf("bad date key %q for %s", item.DateKey, contentType)
	}

	var payload json.RawMessage
	switch contentType {
	case store.TypeEventOfDay:
		parsed, _, err := content.ParseEvent(item.Payload)
		if err != nil {
			return store.ContentRecord{}, err
		}
		data, err := json.Marshal(parsed)
		if err != nil {
			return store.ContentRecord{}, err
		}
		payload = data
	default:
		parsed, _, err := content.ParseDigest(item.Payload, item.DateKey)
		if err != nil {
			return store.ContentRecord{}, err
		}
		data, err := json.Marshal(parsed)
		if err != nil {
			return store.ContentRecord{}, err
		}
		payload = data
	}

	confidence := store.Confidence(item.Confidence)
	switch confidence {
	case store.ConfidenceHigh, store.ConfidenceMedium, store.ConfidenceLow:
	case "":
		confidence = store.ConfidenceHigh
	default:
		return store.ContentRecord{}, fmt.Errorf("bad confidence: %s", item.Confidence)
	}

	return store.ContentRecord{
		ContentType: contentType,
		DateKey:     item.DateKey,
		Origin:      store.OriginCurated,
		Payload:     payload,
		Confidence:  confidence,
	}, nil
}
