package job

import (
	"context"
	"database/sql"
	"encoding/json"
)

type Repository interface {
	Save(ctx context.Context, job *Job) error
	List(ctx context.Context, stage string) ([]Job, error)
	Get(ctx context.Context, id string) (*Job, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Save(ctx context.Context, job *Job) error {
	query := `INSERT INTO failed_runs (run_id, stage, payload, error, retries) VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, query, job.RunID, job.Stage, []byte(job.Payload), job.Error, job.Retries).Scan(&job.ID, &job.CreatedAt)
}

const runColumns = `id, run_id, stage, payload, error, retries, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Job, error) {
	var j Job
	var payload []byte
	if err := row.Scan(&j.ID, &j.RunID, &j.Stage, &payload, &j.Error, &j.Retries, &j.CreatedAt); err != nil {
		return Job{}, err
	}
	j.Payload = json.RawMessage(payload)
	return j, nil
}

// List returns failed runs newest first. A non-empty stage keeps only runs
// that failed in that stage.
func (r *PostgresRepo) List(ctx context.Context, stage string) ([]Job, error) {
	query := `SELECT ` + runColumns + ` FROM failed_runs WHERE ($1::text = '' OR stage = $1) ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, stage)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Job
	for rows.Next() {
		j, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, j)
	}
	return runs, rows.Err()
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Job, error) {
	query := `SELECT ` + runColumns + ` FROM failed_runs WHERE id = $1`
	j, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM failed_runs WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM failed_runs`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}
