package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// Store implements the pipeline's persistence interfaces over database/sql.
// Production runs Postgres (lib/pq, dollar placeholders); tests run the same
// code against sqlite with question placeholders.
type Store struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

// New creates a store around an open database handle.
func New(db *sql.DB, placeholder sq.PlaceholderFormat) *Store {
	return &Store{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholder),
	}
}

// NewPostgres creates a store with Postgres placeholders.
func NewPostgres(db *sql.DB) *Store {
	return New(db, sq.Dollar)
}

// Schema is the DDL both drivers accept. Times are stored as RFC3339 text and
// repeated fields as JSON text, which keeps the schema portable between
// Postgres and the sqlite test driver.
const Schema = `
CREATE TABLE IF NOT EXISTS clients (
    case_number          TEXT PRIMARY KEY,
    domain               TEXT NOT NULL,
    name                 TEXT NOT NULL DEFAULT '',
    email                TEXT NOT NULL DEFAULT '',
    cell                 TEXT NOT NULL DEFAULT '',
    create_date          TEXT NOT NULL,
    sale_date            TEXT,
    second_payment_date  TEXT,
    stage                TEXT NOT NULL,
    status               TEXT NOT NULL,
    stages_received      TEXT NOT NULL DEFAULT '[]',
    stage_pieces         TEXT NOT NULL DEFAULT '[]',
    contacted_this_period BOOLEAN NOT NULL DEFAULT FALSE,
    last_contact_date    TEXT,
    invoice_count        INTEGER,
    last_invoice_amount  REAL,
    initial_payment      REAL,
    total_payment        REAL,
    last_invoice_date    TEXT,
    since_date           TEXT,
    delinquent_amount    REAL,
    delinquent_date      TEXT,
    token                TEXT NOT NULL DEFAULT '',
    token_expires_at     TEXT,
    review_messages      TEXT NOT NULL DEFAULT '[]',
    review_dates         TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS daily_schedules (
    date        TEXT PRIMARY KEY,
    email_queue TEXT NOT NULL DEFAULT '[]',
    text_queue  TEXT NOT NULL DEFAULT '[]',
    pace        INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS period_contacts (
    id                     INTEGER PRIMARY KEY,
    create_date_stage      TEXT NOT NULL,
    period_start_date      TEXT NOT NULL,
    create_date_client_ids TEXT NOT NULL DEFAULT '[]',
    contacted_client_ids   TEXT NOT NULL DEFAULT '[]',
    created_at             TEXT NOT NULL
);
`

// Migrate applies the schema.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

const dateLayout = "2006-01-02"

// Times persist at whole-second precision so the encoded strings order
// lexicographically in range queries; a fractional second would sort before
// its whole-second equivalent.
func encodeTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

func encodeTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: encodeTime(*t), Valid: true}
}

func decodeTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse time %q: %w", s, err)
	}
	return t, nil
}

func decodeTimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := decodeTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func encodeJSON(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal: %w", err)
	}
	return string(raw), nil
}

func decodeJSON(raw string, out interface{}) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("failed to unmarshal: %w", err)
	}
	return nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	i := int(ni.Int64)
	return &i
}
