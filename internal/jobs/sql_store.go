package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLStore keeps jobs in a dedicated SQLite file.
type SQLStore struct {
	mu  sync.Mutex
	db  *sql.DB
	now func() time.Time
}

func NewSQLStore(path string) (*SQLStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("job store path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureJobSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLStore{db: db, now: time.Now}, nil
}

func (s *SQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func ensureJobSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			status TEXT NOT NULL,
			request_json TEXT,
			result_json TEXT,
			error TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			completed_at INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_created ON jobs(created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) Create(ctx context.Context, job Job) error {
	if job.ID == "" {
		return fmt.Errorf("job id is required")
	}
	stamp(&job, s.now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, kind, status, request_json, result_json, error, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Kind, string(job.Status), bytesOrNil(job.Request), bytesOrNil(job.Result),
		job.Error, job.CreatedAt.UnixMilli(), job.UpdatedAt.UnixMilli(), nullableTime(job.CompletedAt))
	return err
}

func (s *SQLStore) Update(ctx context.Context, job Job) error {
	stamp(&job, s.now())
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status=?, result_json=?, error=?, updated_at=?,
		    completed_at=CASE WHEN ? IS NULL THEN completed_at ELSE ? END
		WHERE id=?`,
		string(job.Status), bytesOrNil(job.Result), job.Error, job.UpdatedAt.UnixMilli(),
		nullableTime(job.CompletedAt), nullableTime(job.CompletedAt), job.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, status, request_json, result_json, error, created_at, updated_at, completed_at
		FROM jobs WHERE id=?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	return job, err
}

func (s *SQLStore) List(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, status, request_json, result_json, error, created_at, updated_at, completed_at
		FROM jobs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(sc scanner) (Job, error) {
	var (
		job              Job
		status           string
		request, result  sql.NullString
		errText          sql.NullString
		created, updated int64
		completed        sql.NullInt64
	)
	if err := sc.Scan(&job.ID, &job.Kind, &status, &request, &result, &errText, &created, &updated, &completed); err != nil {
		return Job{}, err
	}
	job.Status = Status(status)
	if request.Valid {
		job.Request = []byte(request.String)
	}
	if result.Valid {
		job.Result = []byte(result.String)
	}
	job.Error = errText.String
	job.CreatedAt = time.UnixMilli(created)
	job.UpdatedAt = time.UnixMilli(updated)
	if completed.Valid {
		t := time.UnixMilli(completed.Int64)
		job.CompletedAt = &t
	}
	return job, nil
}

func bytesOrNil(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func nullableTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}
