// Package jobs tracks asynchronous council and trade runs.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var ErrNotFound = errors.New("job not found")

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

func (s Status) Terminal() bool { return s == StatusDone || s == StatusFailed }

type Job struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	Status      Status          `json:"status"`
	Request     json.RawMessage `json:"request,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Store persists jobs. It is owned by the service layer, never by the
// orchestration core.
type Store interface {
	Create(ctx context.Context, job Job) error
	// Update replaces status, result and error of an existing job.
	Update(ctx context.Context, job Job) error
	Get(ctx context.Context, id string) (Job, error)
	// List returns the newest jobs first.
	List(ctx context.Context, limit int) ([]Job, error)
}

func stamp(job *Job, now time.Time) {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = StatusPending
	}
	if job.Status.Terminal() && job.CompletedAt == nil {
		t := now
		job.CompletedAt = &t
	}
}
