package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

var ErrNotFound = errors.New("run not found")

// Run is one stored network analysis. Input and Result are the JSON
// documents exchanged with the API.
type Run struct {
	ID         uuid.UUID       `json:"id"`
	Method     string          `json:"method"`
	Status     string          `json:"status"`
	Iterations int             `json:"iterations"`
	Converged  bool            `json:"converged"`
	Input      json.RawMessage `json:"input"`
	Result     json.RawMessage `json:"result"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Summary is a Run without its payloads.
type Summary struct {
	ID         uuid.UUID `json:"id"`
	Method     string    `json:"method"`
	Status     string    `json:"status"`
	Iterations int       `json:"iterations"`
	Converged  bool      `json:"converged"`
	CreatedAt  time.Time `json:"created_at"`
}

type Repository interface {
	SaveRun(ctx context.Context, run Run) (uuid.UUID, error)
	GetRun(ctx context.Context, id uuid.UUID) (Run, error)
	ListRuns(ctx context.Context, limit int) ([]Summary, error)
}

type PostgresRunRepository struct {
	db *sql.DB
}

func NewPostgresRunDB(db *sql.DB) *PostgresRunRepository {
	return &PostgresRunRepository{db: db}
}

const schema = `CREATE TABLE IF NOT EXISTS network_runs (
	id          UUID PRIMARY KEY,
	method      TEXT NOT NULL,
	status      TEXT NOT NULL,
	iterations  INTEGER NOT NULL,
	converged   BOOLEAN NOT NULL,
	input       JSONB NOT NULL,
	result      JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

func (r *PostgresRunRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create network_runs: %w", err)
	}
	return nil
}

func (r *PostgresRunRepository) SaveRun(ctx context.Context, run Run) (uuid.UUID, error) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if !json.Valid(run.Input) || !json.Valid(run.Result) {
		return uuid.Nil, errors.New("run input and result must be JSON documents")
	}
	query := `INSERT INTO network_runs (id, method, status, iterations, converged, input, result, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, query, run.ID.String(), run.Method, run.Status,
		run.Iterations, run.Converged, []byte(run.Input), []byte(run.Result), run.CreatedAt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert run: %w", err)
	}
	return run.ID, nil
}

func (r *PostgresRunRepository) GetRun(ctx context.Context, id uuid.UUID) (Run, error) {
	var (
		run           Run
		rawID         string
		input, result []byte
	)
	query := `SELECT id, method, status, iterations, converged, input, result, created_at
		FROM network_runs WHERE id=$1`
	err := r.db.QueryRowContext(ctx, query, id.String()).Scan(&rawID, &run.Method, &run.Status,
		&run.Iterations, &run.Converged, &input, &result, &run.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrNotFound
		}
		return Run{}, err
	}
	if run.ID, err = uuid.Parse(rawID); err != nil {
		return Run{}, fmt.Errorf("stored run id: %w", err)
	}
	run.Input = json.RawMessage(input)
	run.Result = json.RawMessage(result)
	return run, nil
}

func (r *PostgresRunRepository) ListRuns(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query := `SELECT id, method, status, iterations, converged, created_at
		FROM network_runs ORDER BY created_at DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Summary, 0, limit)
	for rows.Next() {
		var (
			s     Summary
			rawID string
		)
		if err := rows.Scan(&rawID, &s.Method, &s.Status, &s.Iterations, &s.Converged, &s.CreatedAt); err != nil {
			return nil, err
		}
		if s.ID, err = uuid.Parse(rawID); err != nil {
			return nil, fmt.Errorf("stored run id: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
