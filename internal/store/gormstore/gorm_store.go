package gormstore

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

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrRunNotFound is returned by GetRun for unknown run ids.
var ErrRunNotFound = errors.New("council run not found")

// EventRecord is one row of the append-only event log.
type EventRecord struct {
	ID         string
	Type       string
	RunID      string
	Account    string
	WeekID     string
	Payload    []byte
	OccurredAt time.Time
}

// EventFilter narrows QueryEvents; zero fields match everything.
type EventFilter struct {
	WeekID  string
	Account string
	RunID   string
	Since   time.Time
	Limit   int
}

// RunRecord is a persisted council run.
type RunRecord struct {
	ID             string
	Query          string
	Mode           string
	LabelToModel   []byte
	Aggregate      []byte
	Stage1         []byte
	Stage2         []byte
	ChairmanModel  string
	FinalResponse  string
	Degraded       bool
	DegradedDetail []byte
	CreatedAt      time.Time
}

// GormStore persists the event log and council runs in SQLite.
type GormStore struct {
	db *gorm.DB
	// shared-cache SQLite reports table locks instead of waiting on
	// busy_timeout, so access is serialized here.
	mu sync.RWMutex
}

func NewGormStore(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: database path is required")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&eventLogModel{}, &councilRunModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: a little read parallelism for the HTTP surface while the
	// coordinator appends.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &GormStore{db: db}, nil
}

func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SQLDB exposes the underlying *sql.DB for shared connections.
func (s *GormStore) SQLDB() (*sql.DB, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	return s.db.DB()
}

// --------------------- Event log ----------------------

// AppendEvent inserts evt. Rows are never updated or deleted.
func (s *GormStore) AppendEvent(ctx context.Context, evt EventRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if strings.TrimSpace(evt.ID) == "" {
		return fmt.Errorf("gorm store: event id is required")
	}
	model := eventLogModel{
		EventID:        evt.ID,
		Type:           evt.Type,
		RunID:          evt.RunID,
		Account:        strings.ToUpper(strings.TrimSpace(evt.Account)),
		WeekID:         evt.WeekID,
		Payload:        datatypes.JSON(mustJSONBytes(evt.Payload)),
		OccurredAtUnix: evt.OccurredAt.UnixMilli(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.WithContext(ctx).Create(&model).Error
}

// QueryEvents returns the latest Limit matching events, oldest first.
func (s *GormStore) QueryEvents(ctx context.Context, f EventFilter) ([]EventRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	if f.Limit <= 0 {
		f.Limit = 1000
	}
	query := s.db.WithContext(ctx).Order("occurred_at DESC").Order("id DESC").Limit(f.Limit)
	if f.WeekID != "" {
		query = query.Where("week_id = ?", f.WeekID)
	}
	if acct := strings.ToUpper(strings.TrimSpace(f.Account)); acct != "" {
		query = query.Where("account = ?", acct)
	}
	if f.RunID != "" {
		query = query.Where("run_id = ?", f.RunID)
	}
	if !f.Since.IsZero() {
		query = query.Where("occurred_at > ?", f.Since.UnixMilli())
	}
	var models []eventLogModel
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]EventRecord, 0, len(models))
	for i := len(models) - 1; i >= 0; i-- {
		m := models[i]
		out = append(out, EventRecord{
			ID:         m.EventID,
			Type:       m.Type,
			RunID:      m.RunID,
			Account:    m.Account,
			WeekID:     m.WeekID,
			Payload:    []byte(m.Payload),
			OccurredAt: time.UnixMilli(m.OccurredAtUnix),
		})
	}
	return out, nil
}

// --------------------- Council runs ----------------------

func (s *GormStore) SaveRun(ctx context.Context, rec RunRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	model := councilRunModel{
		RunID:          rec.ID,
		Query:          rec.Query,
		Mode:           rec.Mode,
		LabelToModel:   datatypes.JSON(mustJSONBytes(rec.LabelToModel)),
		Aggregate:      datatypes.JSON(mustJSONArray(rec.Aggregate)),
		Stage1:         datatypes.JSON(mustJSONArray(rec.Stage1)),
		Stage2:         datatypes.JSON(mustJSONArray(rec.Stage2)),
		ChairmanModel:  rec.ChairmanModel,
		FinalResponse:  rec.FinalResponse,
		Degraded:       rec.Degraded,
		DegradedDetail: datatypes.JSON(mustJSONBytes(rec.DegradedDetail)),
		CreatedAtUnix:  rec.CreatedAt.UnixMilli(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.WithContext(ctx).Create(&model).Error
}

func (s *GormStore) GetRun(ctx context.Context, id string) (RunRecord, error) {
	if s == nil || s.db == nil {
		return RunRecord{}, fmt.Errorf("gorm store not initialized")
	}
	var m councilRunModel
	s.mu.RLock()
	defer s.mu.RUnlock()
	err := s.db.WithContext(ctx).Where("run_uuid = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return RunRecord{}, ErrRunNotFound
	}
	if err != nil {
		return RunRecord{}, err
	}
	return m.toRecord(), nil
}

// ListRuns returns the newest runs first.
func (s *GormStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	if limit <= 0 {
		limit = 50
	}
	var models []councilRunModel
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]RunRecord, 0, len(models))
	for _, m := range models {
		out = append(out, m.toRecord())
	}
	return out, nil
}

// --------------------------- Model Helpers ------------------------------

type eventLogModel struct {
	ID             int64          `gorm:"column:id;primaryKey"`
	EventID        string         `gorm:"column:event_uuid;uniqueIndex"`
	Type           string         `gorm:"column:type;index"`
	RunID          string         `gorm:"column:run_id;index"`
	Account        string         `gorm:"column:account;index"`
	WeekID         string         `gorm:"column:week_id;index"`
	Payload        datatypes.JSON `gorm:"column:payload"`
	OccurredAtUnix int64          `gorm:"column:occurred_at;index"`
}

func (eventLogModel) TableName() string { return "event_log" }

type councilRunModel struct {
	ID             int64          `gorm:"column:id;primaryKey"`
	RunID          string         `gorm:"column:run_uuid;uniqueIndex"`
	Query          string         `gorm:"column:query"`
	Mode           string         `gorm:"column:mode"`
	LabelToModel   datatypes.JSON `gorm:"column:label_to_model"`
	Aggregate      datatypes.JSON `gorm:"column:aggregate_rankings"`
	Stage1         datatypes.JSON `gorm:"column:stage1"`
	Stage2         datatypes.JSON `gorm:"column:stage2"`
	ChairmanModel  string         `gorm:"column:chairman_model"`
	FinalResponse  string         `gorm:"column:final_response"`
	Degraded       bool           `gorm:"column:degraded"`
	DegradedDetail datatypes.JSON `gorm:"column:degraded_detail"`
	CreatedAtUnix  int64          `gorm:"column:created_at;index"`
}

func (councilRunModel) TableName() string { return "council_runs" }

func (m councilRunModel) toRecord() RunRecord {
	return RunRecord{
		ID:             m.RunID,
		Query:          m.Query,
		Mode:           m.Mode,
		LabelToModel:   []byte(m.LabelToModel),
		Aggregate:      []byte(m.Aggregate),
		Stage1:         []byte(m.Stage1),
		Stage2:         []byte(m.Stage2),
		ChairmanModel:  m.ChairmanModel,
		FinalResponse:  m.FinalResponse,
		Degraded:       m.Degraded,
		DegradedDetail: []byte(m.DegradedDetail),
		CreatedAt:      time.UnixMilli(m.CreatedAtUnix),
	}
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func mustJSONBytes(raw []byte) []byte {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return []byte("{}")
	}
	return raw
}

func mustJSONArray(raw []byte) []byte {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return []byte("[]")
	}
	return raw
}
