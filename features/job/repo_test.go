package job_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dutchsloot84/AgentOps-Mock/features/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jobColumns = []string{"id", "run_id", "stage", "payload", "error", "retries", "created_at"}

func TestPostgresRepo_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := job.NewPostgresRepo(db)
	now := time.Now()

	j := &job.Job{
		RunID:   "run-1",
		Stage:   "embed",
		Payload: json.RawMessage(`{"docs_dir":"docs"}`),
		Error:   "embedding service error",
	}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO failed_runs (run_id, stage, payload, error, retries) VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at")).
		WithArgs("run-1", "embed", []byte(`{"docs_dir":"docs"}`), "embedding service error", 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("job-1", now))

	require.NoError(t, repo.Save(context.Background(), j))
	assert.Equal(t, "job-1", j.ID)
	assert.Equal(t, now, j.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := job.NewPostgresRepo(db)

	rows := sqlmock.NewRows(jobColumns).
		AddRow("job-2", "run-2", "upsert", []byte(`{}`), "boom", 1, time.Now()).
		AddRow("job-1", "run-1", "embed", []byte(`{"docs_dir":"docs"}`), "bang", 0, time.Now().Add(-time.Minute))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, run_id, stage, payload, error, retries, created_at FROM failed_runs WHERE ($1::text = '' OR stage = $1) ORDER BY created_at DESC")).
		WithArgs("").
		WillReturnRows(rows)

	jobs, err := repo.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "job-2", jobs[0].ID)
	assert.Equal(t, "upsert", jobs[0].Stage)
	assert.JSONEq(t, `{"docs_dir":"docs"}`, string(jobs[1].Payload))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := job.NewPostgresRepo(db)
	query := regexp.QuoteMeta("SELECT id, run_id, stage, payload, error, retries, created_at FROM failed_runs WHERE id = $1")

	t.Run("Found", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs("job-1").
			WillReturnRows(sqlmock.NewRows(jobColumns).AddRow("job-1", "run-1", "deploy", []byte(`{}`), "conflict", 2, time.Now()))

		j, err := repo.Get(context.Background(), "job-1")
		require.NoError(t, err)
		assert.Equal(t, "run-1", j.RunID)
		assert.Equal(t, 2, j.Retries)
	})

	t.Run("Missing", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs("nope").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.Get(context.Background(), "nope")
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_DeleteAndCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := job.NewPostgresRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM failed_runs WHERE id = $1")).
		WithArgs("job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM failed_runs")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	require.NoError(t, repo.Delete(context.Background(), "job-1"))
	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
