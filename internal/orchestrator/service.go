// Package orchestrator ties the council, the trade coordinator and the job
// store into the operations the HTTP surface exposes.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"council/internal/council"
	"council/internal/execution"
	"council/internal/jobs"
	"council/internal/logger"
	"council/internal/pkg/symbol"
	"council/internal/store/gormstore"
	"council/internal/types"

	"github.com/google/uuid"
)

var (
	ErrEmptyQuery  = errors.New("query is required")
	ErrNoAccounts  = errors.New("at least one account is required")
	ErrUnknownKind = errors.New("unknown job kind")
	ErrClosed      = errors.New("service is shutting down")
)

// ErrInvalidDecision wraps a caller-supplied decision that cannot be read.
var ErrInvalidDecision = errors.New("invalid decision")

// Deliberator runs the three-stage council; *council.Council satisfies it.
type Deliberator interface {
	Run(ctx context.Context, query string, mode council.Mode) (council.Result, error)
}

// Executor places a decision on accounts; *execution.Coordinator satisfies it.
type Executor interface {
	ExecuteAll(ctx context.Context, decision types.TradeDecision, accounts []string, info execution.RunInfo) execution.Report
}

// RunStore persists finished council runs.
type RunStore interface {
	SaveRun(ctx context.Context, rec gormstore.RunRecord) error
}

type Config struct {
	Council  Deliberator
	Executor Executor
	Runs     RunStore
	Jobs     jobs.Store
	// DefaultAccounts is used when a trade request names none.
	DefaultAccounts []string
	MaxConcurrent   int
}

type Service struct {
	council  Deliberator
	executor Executor
	runs     RunStore
	jobs     jobs.Store
	accounts []string

	sem     chan struct{}
	wg      sync.WaitGroup
	baseCtx context.Context
	newID   func() string
	now     func() time.Time
}

func NewService(cfg Config) (*Service, error) {
	if cfg.Council == nil {
		return nil, fmt.Errorf("orchestrator: council is required")
	}
	if cfg.Jobs == nil {
		cfg.Jobs = jobs.NewMemoryStore()
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	return &Service{
		council:  cfg.Council,
		executor: cfg.Executor,
		runs:     cfg.Runs,
		jobs:     cfg.Jobs,
		accounts: append([]string(nil), cfg.DefaultAccounts...),
		sem:      make(chan struct{}, maxConcurrent),
		baseCtx:  context.Background(),
		newID:    uuid.NewString,
		now:      time.Now,
	}, nil
}

// SetContext bounds background jobs by the host context.
func (s *Service) SetContext(ctx context.Context) {
	if ctx != nil {
		s.baseCtx = ctx
	}
}

// Wait blocks until every submitted job has finished.
func (s *Service) Wait() { s.wg.Wait() }

// Deliberation is the answer-mode outcome of one council run.
type Deliberation struct {
	RunID  string         `json:"run_id"`
	Result council.Result `json:"result"`
}

func (s *Service) Deliberate(ctx context.Context, query string) (Deliberation, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Deliberation{}, ErrEmptyQuery
	}
	runID := s.newID()
	res, err := s.council.Run(ctx, query, council.ModeAnswer)
	if err != nil {
		return Deliberation{}, fmt.Errorf("council run: %w", err)
	}
	s.saveRun(ctx, runID, query, res)
	return Deliberation{RunID: runID, Result: res}, nil
}

// TradeRequest asks for a trade either from a fresh council run (Query) or
// from an explicit decision.
type TradeRequest struct {
	Query    string               `json:"query,omitempty"`
	Decision *types.TradeDecision `json:"decision,omitempty"`
	Accounts []string             `json:"accounts,omitempty"`
	WeekID   string               `json:"week_id,omitempty"`
}

type TradeResult struct {
	RunID         string              `json:"run_id"`
	Council       *council.Result     `json:"council,omitempty"`
	Decision      types.TradeDecision `json:"decision"`
	DecisionError string              `json:"decision_error,omitempty"`
	Report        execution.Report    `json:"report"`
}

// Trade runs the council in trading mode, unless req carries a decision,
// and executes the outcome across the requested accounts. An unreadable
// chairman answer becomes a FLAT decision.
func (s *Service) Trade(ctx context.Context, req TradeRequest) (TradeResult, error) {
	if s.executor == nil {
		return TradeResult{}, fmt.Errorf("orchestrator: trade execution is not configured")
	}
	accounts := req.Accounts
	if len(accounts) == 0 {
		accounts = s.accounts
	}
	if len(accounts) == 0 {
		return TradeResult{}, ErrNoAccounts
	}
	out := TradeResult{RunID: s.newID()}
	if req.Decision != nil {
		d, err := normalizeDecision(*req.Decision)
		if err != nil {
			return TradeResult{}, err
		}
		out.Decision = d
	} else {
		query := strings.TrimSpace(req.Query)
		if query == "" {
			return TradeResult{}, ErrEmptyQuery
		}
		res, err := s.council.Run(ctx, query, council.ModeTrading)
		if err != nil {
			return TradeResult{}, fmt.Errorf("council run: %w", err)
		}
		s.saveRun(ctx, out.RunID, query, res)
		out.Council = &res
		out.Decision, out.DecisionError = decide(res)
	}
	logger.Infof("orchestrator: run %s decision %s", out.RunID, out.Decision)
	out.Report = s.executor.ExecuteAll(ctx, out.Decision, accounts, execution.RunInfo{RunID: out.RunID, WeekID: req.WeekID})
	for _, o := range out.Report.Outcomes {
		logger.Infof("orchestrator: run %s account %s state=%s attempts=%d", out.RunID, o.Account, o.State, o.Attempts)
	}
	return out, nil
}

func decide(res council.Result) (types.TradeDecision, string) {
	if res.Degraded.SynthesisFailed {
		return types.Flat("", "synthesis unavailable"), "synthesis unavailable"
	}
	d, err := council.ParseTradeDecision(res.Stage3.Response)
	if err != nil {
		logger.Warnf("orchestrator: chairman %s decision unreadable: %v", res.Stage3.Model, err)
		return types.Flat("", "unreadable decision"), err.Error()
	}
	return d, ""
}

func normalizeDecision(d types.TradeDecision) (types.TradeDecision, error) {
	dir, err := types.ParseDirection(string(d.Direction))
	if err != nil {
		return d, fmt.Errorf("%w: %v", ErrInvalidDecision, err)
	}
	d.Direction = dir
	instrument := symbol.Normalize(d.Instrument)
	if instrument == "" && dir != types.DirectionFlat {
		return d, fmt.Errorf("%w: unreadable instrument %q", ErrInvalidDecision, d.Instrument)
	}
	d.Instrument = instrument
	switch {
	case d.Conviction < 0:
		d.Conviction = 0
	case d.Conviction > 1:
		d.Conviction = 1
	}
	return d, nil
}

// Job kinds accepted by Submit.
const (
	KindCouncil = "council"
	KindTrade   = "trade"
)

// Submit records a pending job and runs it in the background. payload is
// the query string for KindCouncil and a TradeRequest for KindTrade.
func (s *Service) Submit(ctx context.Context, kind string, payload any) (jobs.Job, error) {
	var (
		run     func(context.Context) (any, error)
		request any
	)
	switch kind {
	case KindCouncil:
		query, _ := payload.(string)
		if strings.TrimSpace(query) == "" {
			return jobs.Job{}, ErrEmptyQuery
		}
		request = map[string]string{"query": query}
		run = func(ctx context.Context) (any, error) { return s.Deliberate(ctx, query) }
	case KindTrade:
		req, ok := payload.(TradeRequest)
		if !ok {
			return jobs.Job{}, fmt.Errorf("trade job needs a TradeRequest, got %T", payload)
		}
		request = req
		run = func(ctx context.Context) (any, error) { return s.Trade(ctx, req) }
	default:
		return jobs.Job{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err := s.baseCtx.Err(); err != nil {
		return jobs.Job{}, ErrClosed
	}
	raw, err := json.Marshal(request)
	if err != nil {
		return jobs.Job{}, fmt.Errorf("encode job request: %w", err)
	}
	job := jobs.Job{ID: s.newID(), Kind: kind, Status: jobs.StatusPending, Request: raw}
	if err := s.jobs.Create(ctx, job); err != nil {
		return jobs.Job{}, fmt.Errorf("create job: %w", err)
	}
	logger.Infof("orchestrator: job %s submitted kind=%s", job.ID, kind)
	s.wg.Add(1)
	go s.runJob(job, run)
	return s.jobs.Get(ctx, job.ID)
}

func (s *Service) runJob(job jobs.Job, run func(context.Context) (any, error)) {
	defer s.wg.Done()
	ctx := s.baseCtx
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		s.finishJob(job, nil, ErrClosed)
		return
	}
	defer func() { <-s.sem }()

	job.Status = jobs.StatusRunning
	if err := s.jobs.Update(context.WithoutCancel(ctx), job); err != nil {
		logger.Warnf("orchestrator: job %s mark running: %v", job.ID, err)
	}
	var (
		result any
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("internal error: %v", r)
			}
		}()
		result, err = run(ctx)
	}()
	s.finishJob(job, result, err)
}

func (s *Service) finishJob(job jobs.Job, result any, runErr error) {
	job.Status = jobs.StatusDone
	job.Error = ""
	if runErr != nil {
		job.Status = jobs.StatusFailed
		job.Error = runErr.Error()
	} else if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			job.Status = jobs.StatusFailed
			job.Error = fmt.Sprintf("encode result: %v", err)
		} else {
			job.Result = raw
		}
	}
	if err := s.jobs.Update(context.Background(), job); err != nil {
		logger.Errorf("orchestrator: job %s finish: %v", job.ID, err)
		return
	}
	logger.Infof("orchestrator: job %s %s", job.ID, job.Status)
}

func (s *Service) Job(ctx context.Context, id string) (jobs.Job, error) {
	return s.jobs.Get(ctx, id)
}

func (s *Service) Jobs(ctx context.Context, limit int) ([]jobs.Job, error) {
	return s.jobs.List(ctx, limit)
}

func (s *Service) saveRun(ctx context.Context, runID, query string, res council.Result) {
	if s.runs == nil {
		return
	}
	rec, err := runRecord(runID, query, res, s.now())
	if err == nil {
		err = s.runs.SaveRun(context.WithoutCancel(ctx), rec)
	}
	if err != nil {
		logger.Warnf("orchestrator: persist run %s: %v", runID, err)
	}
}

func runRecord(runID, query string, res council.Result, at time.Time) (gormstore.RunRecord, error) {
	rec := gormstore.RunRecord{
		ID:            runID,
		Query:         query,
		Mode:          string(res.Mode),
		ChairmanModel: res.Stage3.Model,
		FinalResponse: res.Stage3.Response,
		Degraded:      res.Degraded.Any(),
		CreatedAt:     at,
	}
	fields := []struct {
		dst *[]byte
		v   any
	}{
		{&rec.LabelToModel, res.Metadata.LabelToModel},
		{&rec.Aggregate, res.Metadata.AggregateRankings},
		{&rec.Stage1, res.Stage1},
		{&rec.Stage2, res.Stage2},
		{&rec.DegradedDetail, res.Degraded},
	}
	for _, f := range fields {
		raw, err := json.Marshal(f.v)
		if err != nil {
			return gormstore.RunRecord{}, err
		}
		*f.dst = raw
	}
	return rec, nil
}
