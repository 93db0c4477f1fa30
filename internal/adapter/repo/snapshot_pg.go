package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JasonHongGG/TravelPlanner/internal/domain"
	"github.com/JasonHongGG/TravelPlanner/internal/infra"
)

const (
	qCreateGenerationJobs = `--sql 3c1f9a2e-7b44-4d0a-9e61-52a8f0c7d913
CREATE TABLE IF NOT EXISTS generation_jobs (
    job_id     TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL,
    status     TEXT NOT NULL,
    document   JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

	qSelectGenerationJobs = `--sql 8e2b6d40-15c9-4a7f-b3d2-0f94e6a1c558
SELECT document FROM generation_jobs ORDER BY created_at, job_id;`

	qClearGenerationJobs = `--sql a57d0c19-6e3b-4f82-8d1a-c9b04e72f3a6
DELETE FROM generation_jobs;`
)

var generationJobColumns = []string{"job_id", "user_id", "status", "document", "created_at", "updated_at"}

// JobSnapshotPG implements domain.JobSnapshotRepository on PostgreSQL. Each
// job is one row holding its full JSON document.
type JobSnapshotPG struct {
	pool   *pgxpool.Pool
	sql    *infra.SQLRunner
	logger infra.Logger
}

// NewJobSnapshotPG creates a snapshot repository backed by PostgreSQL.
func NewJobSnapshotPG(pool *pgxpool.Pool, logger infra.Logger) *JobSnapshotPG {
	return &JobSnapshotPG{pool: pool, sql: infra.NewSQLRunner(pool, logger), logger: logger}
}

// EnsureSchema creates the snapshot table when missing.
func (r *JobSnapshotPG) EnsureSchema(ctx context.Context) error {
	if _, err := r.sql.Exec(ctx, qCreateGenerationJobs); err != nil {
		return fmt.Errorf("ensure generation_jobs table: %w", err)
	}
	return nil
}

// Load returns every stored job ordered by creation time.
func (r *JobSnapshotPG) Load(ctx context.Context) ([]domain.GenerationJob, error) {
	rows, err := r.sql.Query(ctx, qSelectGenerationJobs)
	if err != nil {
		return nil, fmt.Errorf("query generation_jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.GenerationJob
	for rows.Next() {
		var document []byte
		if err := rows.Scan(&document); err != nil {
			return nil, fmt.Errorf("scan generation job: %w", err)
		}
		var job domain.GenerationJob
		if err := json.Unmarshal(document, &job); err != nil {
			return nil, fmt.Errorf("decode generation job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate generation_jobs: %w", err)
	}
	return jobs, nil
}

// Save replaces the table contents with jobs in a single transaction.
func (r *JobSnapshotPG) Save(ctx context.Context, jobs []domain.GenerationJob) error {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(jobs))
	for i := range jobs {
		document, err := json.Marshal(jobs[i])
		if err != nil {
			return fmt.Errorf("encode generation job %s: %w", jobs[i].JobID, err)
		}
		rows = append(rows, []any{
			jobs[i].JobID,
			jobs[i].UserID,
			string(jobs[i].Status),
			string(document),
			jobs[i].CreatedAt,
			now,
		})
	}

	return r.withTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := infra.NewSQLRunner(tx, r.logger).Exec(ctx, qClearGenerationJobs); err != nil {
			return fmt.Errorf("clear generation_jobs: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"generation_jobs"}, generationJobColumns, pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("copy generation_jobs: %w", err)
		}
		return nil
	})
}

func (r *JobSnapshotPG) withTransaction(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
