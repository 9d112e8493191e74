package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/leadflow/leadflow-server/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	keywords   TEXT NOT NULL,
	locations  TEXT NOT NULL,
	lead_count INTEGER NOT NULL DEFAULT 0,
	leads      TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_user_id ON runs(user_id);
CREATE INDEX IF NOT EXISTS idx_runs_user_created ON runs(user_id, created_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, userID string, run *model.Run) (string, error) {
	id := uuid.New().String()
	date := run.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	leadsJSON, err := json.Marshal(run.Leads)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal leads")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, user_id, keywords, locations, lead_count, leads, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, userID, run.Keywords, run.Locations, len(run.Leads), string(leadsJSON), date,
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert run")
	}
	return id, nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, userID, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, keywords, locations, lead_count, leads, created_at FROM runs WHERE id = ? AND user_id = ?`,
		runID, userID,
	)

	var run model.Run
	var leadsJSON string
	if err := row.Scan(&run.ID, &run.UserID, &run.Keywords, &run.Locations, &run.LeadCount, &leadsJSON, &run.Date); err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	if err := json.Unmarshal([]byte(leadsJSON), &run.Leads); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal leads for run %s", runID)
	}
	return &run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, userID string, filter RunFilter) ([]model.RunSummary, error) {
	query := `SELECT id, keywords, locations, lead_count, created_at FROM runs WHERE user_id = ?`
	args := []any{userID}

	if filter.Keywords != "" {
		query += ` AND keywords = ?`
		args = append(args, filter.Keywords)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var out []model.RunSummary
	for rows.Next() {
		var rs model.RunSummary
		if err := rows.Scan(&rs.ID, &rs.Keywords, &rs.Locations, &rs.LeadCount, &rs.Date); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run summary")
		}
		out = append(out, rs)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}
