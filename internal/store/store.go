package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/lib/pq"
)

// ErrNotFound is returned when no record matches a lookup.
var ErrNotFound = errors.New("record not found")

// ContentType selects the content pipeline a record belongs to.
type ContentType string

const (
	TypeEventOfDay  ContentType = "event_of_day"
	TypeDailyDigest ContentType = "daily_digest"
)

// Valid reports whether t is a known content type.
func (t ContentType) Valid() bool {
	return t == TypeEventOfDay || t == TypeDailyDigest
}

// Origin records where a payload came from. Curated rows always win over
// generated ones when both exist for a key.
type Origin string

const (
	OriginCurated   Origin = "curated"
	OriginGenerated Origin = "generated"
)

// Confidence is the model's self-reported confidence, normalised to three
// levels.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ContentRecord is one persisted content payload. DateKey is MM-DD for
// events (the year recurs) and YYYY-MM-DD for digests.
type ContentRecord struct {
	ID          int64           `json:"id"`
	ContentType ContentType     `json:"content_type"`
	DateKey     string          `json:"date_key"`
	Origin      Origin          `json:"origin"`
	Payload     json.RawMessage `json:"payload"`
	Confidence  Confidence      `json:"confidence,omitempty"`
	Fallback    bool            `json:"fallback"`
	Provider    string          `json:"provider,omitempty"`
	Model       string          `json:"model,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type Store struct {
	DB *sql.DB
}

// NewWithDSN opens a Postgres connection and verifies it.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

const recordColumns = `id, content_type, date_key, origin, payload, confidence, fallback, provider, model, created_at`

func scanRecord(row *sql.Row) (*ContentRecord, error) {
	var rec ContentRecord
	var confidence, provider, model sql.NullString
	err := row.Scan(&rec.ID, &rec.ContentType, &rec.DateKey, &rec.Origin, &rec.Payload,
		&confidence, &rec.Fallback, &provider, &model, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.Confidence = Confidence(confidence.String)
	rec.Provider = provider.String
	rec.Model = model.String
	return &rec, nil
}

// InsertRecord persists a record and returns its id.
func (s *Store) InsertRecord(ctx context.Context, rec ContentRecord) (int64, error) {
	var id int64
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO content_records (content_type, date_key, origin, payload, confidence, fallback, provider, model)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		rec.ContentType, rec.DateKey, rec.Origin, rec.Payload,
		nullable(string(rec.Confidence)), rec.Fallback, nullable(rec.Provider), nullable(rec.Model),
	).Scan(&id)
	return id, err
}

// ServableRecord returns the record to serve for a key: the curated row if
// one exists, otherwise the newest generated row.
func (s *Store) ServableRecord(ctx context.Context, contentType ContentType, dateKey string) (*ContentRecord, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM content_records
		WHERE content_type=$1 AND date_key=$2
		ORDER BY (origin='curated') DESC, created_at DESC
		LIMIT 1`, contentType, dateKey)
	return scanRecord(row)
}

// CuratedRecord returns the curated row for a key, if any.
func (s *Store) CuratedRecord(ctx context.Context, contentType ContentType, dateKey string) (*ContentRecord, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM content_records
		WHERE content_type=$1 AND date_key=$2 AND origin='curated'
		LIMIT 1`, contentType, dateKey)
	return scanRecord(row)
}

// GetRecord returns a record by id.
func (s *Store) GetRecord(ctx context.Context, id int64) (*ContentRecord, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM content_records WHERE id=$1`, id)
	return scanRecord(row)
}

// ImportCurated inserts curated records, skipping keys that already carry a
// curated row. Existing curated content is never overwritten.
func (s *Store) ImportCurated(ctx context.Context, records []ContentRecord) (imported, skipped int, err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	for _, rec := range records {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO content_records (content_type, date_key, origin, payload, confidence, fallback, provider, model)
			VALUES ($1,$2,'curated',$3,$4,false,NULL,NULL)
			ON CONFLICT (content_type, date_key) WHERE origin='curated' DO NOTHING`,
			rec.ContentType, rec.DateKey, rec.Payload, nullable(string(rec.Confidence)))
		if err != nil {
			return 0, 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, 0, err
		}
		if n == 0 {
			skipped++
		} else {
			imported++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return imported, skipped, nil
}

// ListByType returns all records of a content type, newest first. The
// search index rebuild walks events through this.
func (s *Store) ListByType(ctx context.Context, contentType ContentType) ([]ContentRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM content_records
		WHERE content_type=$1
		ORDER BY created_at DESC`, contentType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ContentRecord
	for rows.Next() {
		var rec ContentRecord
		var confidence, provider, model sql.NullString
		if err := rows.Scan(&rec.ID, &rec.ContentType, &rec.DateKey, &rec.Origin, &rec.Payload,
			&confidence, &rec.Fallback, &provider, &model, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Confidence = Confidence(confidence.String)
		rec.Provider = provider.String
		rec.Model = model.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteDigestsBefore removes generated digests older than cutoff and
// returns how many rows went away. Curated rows are never cleaned up.
func (s *Store) DeleteDigestsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `
		DELETE FROM content_records
		WHERE content_type=$1 AND origin='generated' AND created_at < $2`,
		TypeDailyDigest, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
