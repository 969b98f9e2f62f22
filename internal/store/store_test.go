package store

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Store{DB: db}, mock
}

func recordRows(rec ContentRecord) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "content_type", "date_key", "origin", "payload",
		"confidence", "fallback", "provider", "model", "created_at",
	}).AddRow(rec.ID, string(rec.ContentType), rec.DateKey, string(rec.Origin), []byte(rec.Payload),
		string(rec.Confidence), rec.Fallback, rec.Provider, rec.Model, rec.CreatedAt)
}

func TestInsertRecord(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO content_records")).
		WithArgs("event_of_day", "03-10", "generated", []byte(`{"title":"x"}`),
			sqlmock.AnyArg(), false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	id, err := s.InsertRecord(context.Background(), ContentRecord{
		ContentType: TypeEventOfDay,
		DateKey:     "03-10",
		Origin:      OriginGenerated,
		Payload:     json.RawMessage(`{"title":"x"}`),
		Confidence:  ConfidenceHigh,
		Provider:    "moonshot",
		Model:       "kimi",
	})
	if err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}
	if id != 7 {
		t.Fatalf("id = %d, want 7", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestServableRecordPrefersCurated(t *testing.T) {
	s, mock := newMockStore(t)

	curated := ContentRecord{
		ID:          3,
		ContentType: TypeEventOfDay,
		DateKey:     "03-10",
		Origin:      OriginCurated,
		Payload:     json.RawMessage(`{"title":"curated"}`),
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY (origin='curated') DESC, created_at DESC")).
		WithArgs("event_of_day", "03-10").
		WillReturnRows(recordRows(curated))

	rec, err := s.ServableRecord(context.Background(), TypeEventOfDay, "03-10")
	if err != nil {
		t.Fatalf("ServableRecord: %v", err)
	}
	if rec.Origin != OriginCurated || rec.ID != 3 {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestServableRecordNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT .* FROM content_records").
		WithArgs("daily_digest", "2026-03-10").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.ServableRecord(context.Background(), TypeDailyDigest, "2026-03-10")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestImportCuratedCountsSkips(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (content_type, date_key) WHERE origin='curated' DO NOTHING")).
		WithArgs("event_of_day", "03-10", []byte(`{"title":"a"}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (content_type, date_key) WHERE origin='curated' DO NOTHING")).
		WithArgs("event_of_day", "03-11", []byte(`{"title":"b"}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	imported, skipped, err := s.ImportCurated(context.Background(), []ContentRecord{
		{ContentType: TypeEventOfDay, DateKey: "03-10", Payload: json.RawMessage(`{"title":"a"}`)},
		{ContentType: TypeEventOfDay, DateKey: "03-11", Payload: json.RawMessage(`{"title":"b"}`)},
	})
	if err != nil {
		t.Fatalf("ImportCurated: %v", err)
	}
	if imported != 1 || skipped != 1 {
		t.Fatalf("imported=%d skipped=%d, want 1/1", imported, skipped)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteDigestsBefore(t *testing.T) {
	s, mock := newMockStore(t)

	cutoff := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM content_records")).
		WithArgs("daily_digest", cutoff).
		WillReturnResult(sqlmock.NewResult(0, 12))

	n, err := s.DeleteDigestsBefore(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("DeleteDigestsBefore: %v", err)
	}
	if n != 12 {
		t.Fatalf("deleted = %d, want 12", n)
	}
}
