package events

import (
	"context"
	"time"
)

type Type string

const (
	OrderPlaced            Type = "order_placed"
	OrderFailed            Type = "order_failed"
	OrderRetried           Type = "order_retried"
	BaselineAccountSkipped Type = "baseline_account_skipped"
	AccountValidationError Type = "account_validation_error"
)

// Event is one append-only audit entry.
type Event struct {
	ID         string         `json:"id"`
	Type       Type           `json:"type"`
	RunID      string         `json:"run_id,omitempty"`
	Account    string         `json:"account"`
	WeekID     string         `json:"week_id"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Filter narrows List; zero fields match everything.
type Filter struct {
	WeekID  string
	Account string
	RunID   string
	Limit   int
}

// Recorder is the event sink. Record must be safe for concurrent callers and
// returns the stored event id.
type Recorder interface {
	Record(ctx context.Context, evt Event) (string, error)
}

// Lister is implemented by recorders that can read their log back.
type Lister interface {
	List(ctx context.Context, f Filter) ([]Event, error)
}

func (f Filter) match(evt Event) bool {
	if f.WeekID != "" && evt.WeekID != f.WeekID {
		return false
	}
	if f.Account != "" && evt.Account != normalizeAccount(f.Account) {
		return false
	}
	if f.RunID != "" && evt.RunID != f.RunID {
		return false
	}
	return true
}
