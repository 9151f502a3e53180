package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"council/internal/store/gormstore"
)

// EventLog is the persisted log behind StoreRecorder.
type EventLog interface {
	AppendEvent(ctx context.Context, evt gormstore.EventRecord) error
	QueryEvents(ctx context.Context, f gormstore.EventFilter) ([]gormstore.EventRecord, error)
}

// StoreRecorder writes events to the SQLite event_log table.
type StoreRecorder struct {
	log EventLog
	now func() time.Time
}

func NewStoreRecorder(log EventLog) *StoreRecorder {
	return &StoreRecorder{log: log, now: time.Now}
}

func (s *StoreRecorder) Record(ctx context.Context, evt Event) (string, error) {
	if s.log == nil {
		return "", fmt.Errorf("store recorder: event log is nil")
	}
	evt = prepare(evt, s.now)
	var payload []byte
	if len(evt.Payload) > 0 {
		var err error
		if payload, err = json.Marshal(evt.Payload); err != nil {
			return "", fmt.Errorf("failed to marshal event payload: %w", err)
		}
	}
	rec := gormstore.EventRecord{
		ID:         evt.ID,
		Type:       string(evt.Type),
		RunID:      evt.RunID,
		Account:    evt.Account,
		WeekID:     evt.WeekID,
		Payload:    payload,
		OccurredAt: evt.OccurredAt,
	}
	if err := s.log.AppendEvent(ctx, rec); err != nil {
		return "", err
	}
	return evt.ID, nil
}

func (s *StoreRecorder) List(ctx context.Context, f Filter) ([]Event, error) {
	if s.log == nil {
		return nil, fmt.Errorf("store recorder: event log is nil")
	}
	recs, err := s.log.QueryEvents(ctx, gormstore.EventFilter{
		WeekID:  f.WeekID,
		Account: f.Account,
		RunID:   f.RunID,
		Limit:   f.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	out := make([]Event, 0, len(recs))
	for _, r := range recs {
		evt := Event{
			ID:         r.ID,
			Type:       Type(r.Type),
			RunID:      r.RunID,
			Account:    r.Account,
			WeekID:     r.WeekID,
			OccurredAt: r.OccurredAt,
		}
		if len(r.Payload) > 0 && string(r.Payload) != "null" {
			if err := json.Unmarshal(r.Payload, &evt.Payload); err != nil {
				return nil, fmt.Errorf("decode payload of %s: %w", r.ID, err)
			}
		}
		out = append(out, evt)
	}
	return out, nil
}
