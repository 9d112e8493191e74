package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/leadflow/leadflow-server/internal/model"
)

// Pool is the subset of pgxpool.Pool the store needs. Satisfied by pgxmock
// for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using a pgx connection pool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	keywords   TEXT NOT NULL,
	locations  TEXT NOT NULL,
	lead_count INTEGER NOT NULL DEFAULT 0,
	leads      JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_user_id ON runs(user_id);
CREATE INDEX IF NOT EXISTS idx_runs_user_created ON runs(user_id, created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, userID string, run *model.Run) (string, error) {
	id := uuid.New().String()
	date := run.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	leadsJSON, err := json.Marshal(run.Leads)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal leads")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, user_id, keywords, locations, lead_count, leads, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, userID, run.Keywords, run.Locations, len(run.Leads), leadsJSON, date,
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: insert run")
	}
	return id, nil
}

func (s *PostgresStore) GetRun(ctx context.Context, userID, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, user_id, keywords, locations, lead_count, leads, created_at FROM runs WHERE id = $1 AND user_id = $2`,
		runID, userID,
	)

	var run model.Run
	var leadsJSON []byte
	if err := row.Scan(&run.ID, &run.UserID, &run.Keywords, &run.Locations, &run.LeadCount, &leadsJSON, &run.Date); err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	if err := json.Unmarshal(leadsJSON, &run.Leads); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal leads for run %s", runID)
	}
	return &run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, userID string, filter RunFilter) ([]model.RunSummary, error) {
	query := `SELECT id, keywords, locations, lead_count, created_at FROM runs WHERE user_id = $1`
	args := []any{userID}

	if filter.Keywords != "" {
		args = append(args, filter.Keywords)
		query += ` AND keywords = $2`
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var out []model.RunSummary
	for rows.Next() {
		var rs model.RunSummary
		if err := rows.Scan(&rs.ID, &rs.Keywords, &rs.Locations, &rs.LeadCount, &rs.Date); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run summary")
		}
		out = append(out, rs)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
