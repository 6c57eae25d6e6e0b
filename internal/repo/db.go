package repo

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// OpenPostgres opens and pings a lib/pq connection. TLS is required unless
// the connection string sets sslmode itself.
func OpenPostgres(ctx context.Context, connStr string) (*sql.DB, error) {
	if !strings.Contains(connStr, "sslmode=") {
		if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
			sep := "?"
			if strings.Contains(connStr, "?") {
				sep = "&"
			}
			connStr = connStr + sep + "sslmode=require"
		} else {
			connStr = connStr + " sslmode=require"
		}
	}
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// MemoryRunRepository keeps runs in process memory. It is used when no
// database is configured.
type MemoryRunRepository struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]Run
}

func NewMemoryRunDB() *MemoryRunRepository {
	return &MemoryRunRepository{runs: make(map[uuid.UUID]Run)}
}

func (m *MemoryRunRepository) SaveRun(_ context.Context, run Run) (uuid.UUID, error) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return run.ID, nil
}

func (m *MemoryRunRepository) GetRun(_ context.Context, id uuid.UUID) (Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return Run{}, ErrNotFound
	}
	return run, nil
}

func (m *MemoryRunRepository) ListRuns(_ context.Context, limit int) ([]Summary, error) {
	m.mu.RLock()
	out := make([]Summary, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, Summary{
			ID:         r.ID,
			Method:     r.Method,
			Status:     r.Status,
			Iterations: r.Iterations,
			Converged:  r.Converged,
			CreatedAt:  r.CreatedAt,
		})
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
