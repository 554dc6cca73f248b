// Package store persists visibility reports in Postgres.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/saturnRangs/ObservingSatellites/internal/visibility"
)

// ErrNotFound is returned when a run id does not exist.
var ErrNotFound = errors.New("report not found")

const (
	defaultRunsTable    = "visibility_runs"
	defaultSamplesTable = "visibility_samples"
)

// RunSummary is a stored run without its samples.
type RunSummary struct {
	ID          int64               `json:"id"`
	GeneratedAt time.Time           `json:"generated_at"`
	Location    visibility.Location `json:"location"`
	Start       time.Time           `json:"start"`
	Objects     int                 `json:"object_count"`
	Samples     int                 `json:"samples"`
	Max         int                 `json:"max"`
}

// ReportStore is a Postgres-backed report archive.
type ReportStore struct {
	db      *sql.DB
	runs    string
	samples string
}

// Option configures a ReportStore.
type Option func(*ReportStore)

// WithTablePrefix prefixes both table names, for side-by-side test schemas.
func WithTablePrefix(prefix string) Option {
	return func(s *ReportStore) {
		if prefix != "" {
			s.runs = prefix + defaultRunsTable
			s.samples = prefix + defaultSamplesTable
		}
	}
}

// Open connects to dsn through the pgx database/sql driver and pings it.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// New creates a ReportStore over db.
func New(db *sql.DB, opts ...Option) *ReportStore {
	s := &ReportStore{db: db, runs: defaultRunsTable, samples: defaultSamplesTable}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureSchema creates the tables when missing.
func (s *ReportStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	generated_at TIMESTAMPTZ NOT NULL,
	latitude DOUBLE PRECISION NOT NULL,
	longitude DOUBLE PRECISION NOT NULL,
	altitude_m DOUBLE PRECISION NOT NULL,
	start_at TIMESTAMPTZ NOT NULL,
	object_count INTEGER NOT NULL,
	max_count INTEGER NOT NULL,
	report JSONB NOT NULL
)`, s.runs),
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id BIGINT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
	sample_at TIMESTAMPTZ NOT NULL,
	sun_altitude_deg DOUBLE PRECISION NOT NULL,
	visible_count INTEGER NOT NULL,
	PRIMARY KEY (run_id, sample_at)
)`, s.samples, s.runs),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Save stores r and its samples in one transaction and returns the run id.
func (s *ReportStore) Save(ctx context.Context, r *visibility.Report) (int64, error) {
	if r == nil {
		return 0, errors.New("save: nil report")
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return 0, fmt.Errorf("save: encode report: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("save: begin: %w", err)
	}
	defer tx.Rollback()

	var id int64
	insertRun := fmt.Sprintf(`
INSERT INTO %s (generated_at, latitude, longitude, altitude_m, start_at, object_count, max_count, report)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id`, s.runs)
	err = tx.QueryRowContext(ctx, insertRun,
		r.GeneratedAt.UTC(), r.Location.LatDeg, r.Location.LonDeg, r.Location.AltM,
		r.Start.UTC(), r.ObjectCount, r.Max, string(payload),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save: insert run: %w", err)
	}

	if len(r.Entries) > 0 {
		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
			`INSERT INTO %s (run_id, sample_at, sun_altitude_deg, visible_count) VALUES ($1, $2, $3, $4)`, s.samples))
		if err != nil {
			return 0, fmt.Errorf("save: prepare samples: %w", err)
		}
		defer stmt.Close()
		for _, e := range r.Entries {
			if _, err := stmt.ExecContext(ctx, id, e.Time.UTC(), e.SunAltDeg, e.Count); err != nil {
				return 0, fmt.Errorf("save: insert sample: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("save: commit: %w", err)
	}
	return id, nil
}

// Get loads the full report of run id.
func (s *ReportStore) Get(ctx context.Context, id int64) (*visibility.Report, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT report FROM %s WHERE id = $1`, s.runs), id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get report %d: %w", id, err)
	}

	var r visibility.Report
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("get report %d: decode: %w", id, err)
	}
	return &r, nil
}

// List returns the most recent run summaries, newest first.
func (s *ReportStore) List(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
SELECT
	r.id,
	r.generated_at,
	r.latitude,
	r.longitude,
	r.altitude_m,
	r.start_at,
	r.object_count,
	r.max_count,
	(SELECT COUNT(*) FROM %s s WHERE s.run_id = r.id)
FROM %s r
ORDER BY r.generated_at DESC, r.id DESC
LIMIT $1`, s.samples, s.runs)

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	out := make([]RunSummary, 0, limit)
	for rows.Next() {
		var rs RunSummary
		if err := rows.Scan(
			&rs.ID, &rs.GeneratedAt, &rs.Location.LatDeg, &rs.Location.LonDeg, &rs.Location.AltM,
			&rs.Start, &rs.Objects, &rs.Max, &rs.Samples,
		); err != nil {
			return nil, fmt.Errorf("list reports: scan: %w", err)
		}
		rs.GeneratedAt = rs.GeneratedAt.UTC()
		rs.Start = rs.Start.UTC()
		out = append(out, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return out, nil
}
