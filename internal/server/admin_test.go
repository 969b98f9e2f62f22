package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pd-triglav/contentd/internal/content"
	"github.com/pd-triglav/contentd/internal/store"
	"github.com/pd-triglav/contentd/internal/task"
)

type fakeImporter struct {
	records  []store.ContentRecord
	imported int
	skipped  int
	err      error
}

func (f *fakeImporter) ImportCurated(_ context.Context, records []store.ContentRecord) (int, int, error) {
	f.records = records
	return f.imported, f.skipped, f.err
}

func TestRegenerateAccepted(t *testing.T) {
	e := echo.New()
	resolver := &fakeResolver{resolution: content.Resolution{
		State: content.StatePending,
		Task:  &task.Task{ID: "task-2", Status: task.StatusPending},
	}}
	handler := &AdminHandler{Resolver: resolver}

	req := httptest.NewRequest(http.MethodPost, "/api/admin/content/event_of_day/regenerate", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("type")
	ctx.SetParamValues("event_of_day")

	if err := handler.regenerate(ctx); err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status 202 got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "pending" || resp["task_id"] != "task-2" {
		t.Fatalf("unexpected response: %v", resp)
	}
	if len(resolver.regenerated) != 1 || resolver.regenerated[0] != store.TypeEventOfDay {
		t.Fatalf("unexpected regenerate calls: %v", resolver.regenerated)
	}
	if resolver.regeneratedKeys[0] != "" {
		t.Fatalf("no date_key given, expected empty key, got %q", resolver.regeneratedKeys[0])
	}
}

func TestRegenerateWithDateKey(t *testing.T) {
	e := echo.New()
	resolver := &fakeResolver{resolution: content.Resolution{
		State: content.StatePending,
		Task:  &task.Task{ID: "task-3", Status: task.StatusPending},
	}}
	handler := &AdminHandler{Resolver: resolver}

	req := httptest.NewRequest(http.MethodPost, "/api/admin/content/daily_digest/regenerate?date_key=2026-08-30", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("type")
	ctx.SetParamValues("daily_digest")

	if err := handler.regenerate(ctx); err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status 202 got %d", rec.Code)
	}
	if len(resolver.regeneratedKeys) != 1 || resolver.regeneratedKeys[0] != "2026-08-30" {
		t.Fatalf("expected date key to pass through, got %v", resolver.regeneratedKeys)
	}
}

func TestRegenerateRejectsBadDateKey(t *testing.T) {
	e := echo.New()
	resolver := &fakeResolver{}
	handler := &AdminHandler{Resolver: resolver}

	// digest keys are full dates, an annual key must be rejected
	req := httptest.NewRequest(http.MethodPost, "/api/admin/content/daily_digest/regenerate?date_key=08-30", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("type")
	ctx.SetParamValues("daily_digest")

	err := handler.regenerate(ctx)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 error, got %v", err)
	}
	if len(resolver.regenerated) != 0 {
		t.Fatalf("invalid key must not reach the orchestrator")
	}
}

func TestImportCurated(t *testing.T) {
	e := echo.New()
	importer := &fakeImporter{imported: 1, skipped: 1}
	handler := &AdminHandler{Store: importer}

	body := `{"records":[
		{"content_type":"event_of_day","date_key":"05-29","payload":{"title":"Everest summited","year":1953,"description":"Hillary and Norgay reach the top.","category":"first_ascent"},"confidence":"high"},
		{"content_type":"daily_digest","date_key":"2026-09-01","payload":{"items":[{"title":"New route on Jalovec","summary":"A winter line.","category":"achievements"}]}}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/content/import", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if err := handler.importCurated(ctx); err != nil {
		t.Fatalf("importCurated: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var resp map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["imported"] != 1 || resp["skipped"] != 1 {
		t.Fatalf("unexpected counts: %v", resp)
	}

	if len(importer.records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(importer.records))
	}
	for _, rec := range importer.records {
		if rec.Origin != store.OriginCurated {
			t.Fatalf("expected curated origin, got %s", rec.Origin)
		}
	}
	if importer.records[1].Confidence != store.ConfidenceHigh {
		t.Fatalf("expected default high confidence, got %s", importer.records[1].Confidence)
	}
}

func TestImportCuratedRejectsBadDateKey(t *testing.T) {
	e := echo.New()
	handler := &AdminHandler{Store: &fakeImporter{}}

	body := `{"records":[{"content_type":"event_of_day","date_key":"2026-05-29","payload":{"title":"x","year":1953,"description":"y"}}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/content/import", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	err := handler.importCurated(ctx)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 error, got %v", err)
	}
}

func TestImportCuratedRejectsBadPayload(t *testing.T) {
	e := echo.New()
	handler := &AdminHandler{Store: &fakeImporter{}}

	body := `{"records":[{"content_type":"event_of_day","date_key":"05-29","payload":{"year":1953}}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/content/import", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	err := handler.importCurated(ctx)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 error, got %v", err)
	}
}

func TestImportCuratedRejectsEmptyBatch(t *testing.T) {
	e := echo.New()
	handler := &AdminHandler{Store: &fakeImporter{}}

	req := httptest.NewRequest(http.MethodPost, "/api/admin/content/import", strings.NewReader(`{"records":[]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	err := handler.importCurated(ctx)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 error, got %v", err)
	}
}

func TestWithAuth(t *testing.T) {
	e := echo.New()
	secret := []byte("test-secret")
	next := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	protected := withAuth(secret)(next)

	// missing token
	req := httptest.NewRequest(http.MethodPost, "/api/admin/content/import", nil)
	rec := httptest.NewRecorder()
	err := protected(e.NewContext(req, rec))
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing token, got %v", err)
	}

	// garbage token
	req = httptest.NewRequest(http.MethodPost, "/api/admin/content/import", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	err = protected(e.NewContext(req, rec))
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %v", err)
	}

	// valid token
	tok, err := SignToken("ops", secret, time.Hour)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	req = httptest.NewRequest(http.MethodPost, "/api/admin/content/import", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	if err := protected(ctx); err != nil {
		t.Fatalf("expected auth to pass: %v", err)
	}
	if got, _ := ctx.Get("user_id").(string); got != "ops" {
		t.Fatalf("expected user_id ops, got %q", got)
	}

	// wrong key
	other, err := SignToken("ops", []byte("other-secret"), time.Hour)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	req = httptest.NewRequest(http.MethodPost, "/api/admin/content/import", nil)
	req.Header.Set("Authorization", "Bearer "+other)
	rec = httptest.NewRecorder()
	err = protected(e.NewContext(req, rec))
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong key, got %v", err)
	}
}
