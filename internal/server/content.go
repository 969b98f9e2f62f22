package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pd-triglav/contentd/internal/archive"
	"github.com/pd-triglav/contentd/internal/content"
	"github.com/pd-triglav/contentd/internal/store"
	"github.com/pd-triglav/contentd/internal/task"
)

// Resolver is the slice of the orchestrator the read path needs.
type Resolver interface {
	EnsureContent(ctx context.Context, contentType store.ContentType) (content.Resolution, error)
	Status(contentType store.ContentType) (task.Task, bool)
	Regenerate(contentType store.ContentType, dateKey string) (content.Resolution, error)
}

// EventSearcher answers archive queries over past events.
type EventSearcher interface {
	Search(q string, k int) ([]archive.Hit, error)
}

type ContentHandler struct {
	Resolver Resolver
	Index    EventSearcher
}

func (h *ContentHandler) Register(g *echo.Group) {
	g.GET("/events/search", h.search)
	g.GET("/:type", h.get)
	g.GET("/:type/status", h.status)
}

type contentResponse struct {
	Status      string          `json:"status"`
	ID          int64           `json:"id,omitempty"`
	ContentType string          `json:"content_type,omitempty"`
	DateKey     string          `json:"date_key,omitempty"`
	Origin      string          `json:"origin,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Confidence  string          `json:"confidence,omitempty"`
	Fallback    bool            `json:"fallback,omitempty"`
	Provider    string          `json:"provider,omitempty"`
	Model       string          `json:"model,omitempty"`
	CreatedAt   time.Time       `json:"created_at,omitempty"`
	TaskID      string          `json:"task_id,omitempty"`
}

func contentTypeParam(c echo.Context) (store.ContentType, error) {
	t := store.ContentType(c.Param("type"))
	if !t.Valid() {
		return "", echo.NewHTTPError(http.StatusBadRequest, "unknown content type: "+c.Param("type"))
	}
	return t, nil
}

// get serves today's record when one exists and otherwise reports the
// pending generation task. It never blocks on generation.
func (h *ContentHandler) get(c echo.Context) error {
	contentType, err := contentTypeParam(c)
	if err != nil {
		return err
	}
	res, err := h.Resolver.EnsureContent(c.Request().Context(), contentType)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	switch res.State {
	case content.StateReady:
		rec := res.Record
		return c.JSON(http.StatusOK, contentResponse{
			Status:      string(content.StateReady),
			ID:          rec.ID,
			ContentType: string(rec.ContentType),
			DateKey:     rec.DateKey,
			Origin:      string(rec.Origin),
			Payload:     rec.Payload,
			Confidence:  string(rec.Confidence),
			Fallback:    rec.Fallback,
			Provider:    rec.Provider,
			Model:       rec.Model,
			CreatedAt:   rec.CreatedAt,
		})
	case content.StatePending:
		resp := contentResponse{Status: string(content.StatePending)}
		if res.Task != nil {
			resp.TaskID = res.Task.ID
		}
		return c.JSON(http.StatusOK, resp)
	default:
		return c.JSON(http.StatusOK, contentResponse{Status: string(content.StateUnavailable)})
	}
}

type statusResponse struct {
	State      string `json:"state"`
	TaskID     string `json:"task_id,omitempty"`
	Error      string `json:"error,omitempty"`
	RecordID   int64  `json:"record_id,omitempty"`
	StartedAt  string `json:"started_at,omitempty"`
	FinishedAt string `json:"finished_at,omitempty"`
}

// status reports the generation task for today's key, for polling clients.
func (h *ContentHandler) status(c echo.Context) error {
	contentType, err := contentTypeParam(c)
	if err != nil {
		return err
	}
	t, ok := h.Resolver.Status(contentType)
	if !ok {
		return c.JSON(http.StatusOK, statusResponse{State: "idle"})
	}
	resp := statusResponse{
		State:    string(t.Status),
		TaskID:   t.ID,
		Error:    t.Error,
		RecordID: t.RecordID,
	}
	if !t.StartedAt.IsZero() {
		resp.StartedAt = t.StartedAt.UTC().Format(time.RFC3339)
	}
	if !t.FinishedAt.IsZero() {
		resp.FinishedAt = t.FinishedAt.UTC().Format(time.RFC3339)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ContentHandler) search(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	k := 10
	if raw := c.QueryParam("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 100 {
			return echo.NewHTTPError(http.StatusBadRequest, "k must be between 1 and 100")
		}
		k = parsed
	}
	hits, err := h.Index.Search(q, k)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if hits == nil {
		hits = []archive.Hit{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"query": q, "hits": hits})
}
