package events

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// prepare fills in id and timestamp and normalizes the account.
func prepare(evt Event, now func() time.Time) Event {
	if strings.TrimSpace(evt.ID) == "" {
		evt.ID = uuid.NewString()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = now()
	}
	evt.Account = normalizeAccount(evt.Account)
	return evt
}

func normalizeAccount(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// MemoryRecorder keeps events in process.
type MemoryRecorder struct {
	mu     sync.Mutex
	events []Event
	now    func() time.Time
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{now: time.Now}
}

func (m *MemoryRecorder) Record(_ context.Context, evt Event) (string, error) {
	evt = prepare(evt, m.now)
	m.mu.Lock()
	m.events = append(m.events, evt)
	m.mu.Unlock()
	return evt.ID, nil
}

func (m *MemoryRecorder) List(_ context.Context, f Filter) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, 0, len(m.events))
	for _, evt := range m.events {
		if f.match(evt) {
			out = append(out, evt)
		}
	}
	return limit(out, f.Limit), nil
}

// Events returns a copy of everything recorded.
func (m *MemoryRecorder) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// FileRecorder appends one JSON object per line.
type FileRecorder struct {
	path string
	file *os.File
	mu   sync.Mutex
	now  func() time.Time
}

func NewFileRecorder(path string) (*FileRecorder, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create event log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log file: %w", err)
	}
	return &FileRecorder{path: path, file: f, now: time.Now}, nil
}

func (s *FileRecorder) Record(_ context.Context, evt Event) (string, error) {
	evt = prepare(evt, s.now)
	data, err := json.Marshal(evt)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event: %w", err)
	}
	data = append(data, '\n')
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.file.Write(data); err != nil {
		return "", fmt.Errorf("failed to write event to file: %w", err)
	}
	return evt.ID, nil
}

func (s *FileRecorder) List(_ context.Context, f Filter) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.file.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("failed to seek to start: %w", err)
	}
	defer s.file.Seek(0, 2)

	var out []Event
	scanner := bufio.NewScanner(s.file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var evt Event
		if err := json.Unmarshal(line, &evt); err != nil {
			return nil, fmt.Errorf("failed to unmarshal line %d: %w", lineNum, err)
		}
		if f.match(evt) {
			out = append(out, evt)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner error: %w", err)
	}
	return limit(out, f.Limit), nil
}

func (s *FileRecorder) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// Tee records to every sink. The first error wins but every sink is tried;
// the id comes from the first sink.
type Tee []Recorder

func (t Tee) Record(ctx context.Context, evt Event) (string, error) {
	if len(t) == 0 {
		return "", fmt.Errorf("events: no recorders")
	}
	evt = prepare(evt, time.Now)
	var firstErr error
	for _, r := range t {
		if _, err := r.Record(ctx, evt); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return evt.ID, firstErr
}

// List reads from the first sink that can list.
func (t Tee) List(ctx context.Context, f Filter) ([]Event, error) {
	for _, r := range t {
		if l, ok := r.(Lister); ok {
			return l.List(ctx, f)
		}
	}
	return nil, fmt.Errorf("events: no listable recorder")
}

func limit(evts []Event, n int) []Event {
	if n > 0 && len(evts) > n {
		return evts[len(evts)-n:]
	}
	return evts
}
