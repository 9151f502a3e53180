package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"council/internal/council"
	"council/internal/events"
	"council/internal/execution"
	"council/internal/gateway/broker"
	"council/internal/jobs"
	"council/internal/store/gormstore"
	"council/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCouncil struct {
	mock.Mock
}

func (m *mockCouncil) Run(ctx context.Context, query string, mode council.Mode) (council.Result, error) {
	args := m.Called(query, mode)
	res, _ := args.Get(0).(council.Result)
	return res, args.Error(1)
}

type memRuns struct {
	mu   sync.Mutex
	recs []gormstore.RunRecord
	err  error
}

func (m *memRuns) SaveRun(_ context.Context, rec gormstore.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.recs = append(m.recs, rec)
	return nil
}

func answered(text string, mode council.Mode) council.Result {
	return council.Result{
		Mode:   mode,
		Stage1: []council.ModelResponse{{Model: "m1", Response: "a"}},
		Stage2: []council.RankingSubmission{{Model: "m1", Ranking: "FINAL RANKING:\n1. Response A", ParsedRanking: []string{"Response A"}}},
		Stage3: council.Synthesis{Model: "chair", Response: text},
		Metadata: council.Metadata{
			LabelToModel:      map[string]string{"Response A": "m1"},
			AggregateRankings: []council.AggregateRanking{{Model: "m1", AverageRank: 1, RankingsCount: 1}},
		},
	}
}

type harness struct {
	svc      *Service
	council  *mockCouncil
	runs     *memRuns
	paper    *broker.PaperBroker
	recorder *events.MemoryRecorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	reg, err := execution.NewRegistry([]execution.Account{
		{Name: "alpha", BaseQuantity: decimal.NewFromInt(10)},
		{Name: "control", Baseline: true},
	})
	require.NoError(t, err)
	paper := broker.NewPaperBroker()
	rec := events.NewMemoryRecorder()
	coord := execution.NewCoordinator(reg, paper, rec,
		execution.WithSleeper(func(context.Context, time.Duration) error { return nil }))
	h := &harness{council: &mockCouncil{}, runs: &memRuns{}, paper: paper, recorder: rec}
	h.svc, err = NewService(Config{
		Council:         h.council,
		Executor:        coord,
		Runs:            h.runs,
		Jobs:            jobs.NewMemoryStore(),
		DefaultAccounts: reg.Names(),
	})
	require.NoError(t, err)
	return h
}

func TestDeliberatePersistsRun(t *testing.T) {
	h := newHarness(t)
	h.council.On("Run", "why?", council.ModeAnswer).Return(answered("because", council.ModeAnswer), nil)

	out, err := h.svc.Deliberate(context.Background(), "  why?  ")
	require.NoError(t, err)
	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, "because", out.Result.Stage3.Response)

	require.Len(t, h.runs.recs, 1)
	rec := h.runs.recs[0]
	assert.Equal(t, out.RunID, rec.ID)
	assert.Equal(t, "why?", rec.Query)
	assert.Equal(t, "chair", rec.ChairmanModel)
	assert.False(t, rec.Degraded)
	assert.JSONEq(t, `{"Response A":"m1"}`, string(rec.LabelToModel))
}

func TestDeliberateSurvivesPersistFailure(t *testing.T) {
	h := newHarness(t)
	h.runs.err = errors.New("locked")
	h.council.On("Run", "q", council.ModeAnswer).Return(answered("ok", council.ModeAnswer), nil)

	out, err := h.svc.Deliberate(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Result.Stage3.Response)
}

func TestDeliberateRejectsEmptyQuery(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Deliberate(context.Background(), " ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
	h.council.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestTradeFromCouncil(t *testing.T) {
	h := newHarness(t)
	text := "Decision:\n```json\n{\"instrument\":\"spy\",\"direction\":\"buy\",\"conviction\":0.8,\"horizon\":\"1w\",\"rationale\":\"trend\"}\n```"
	h.council.On("Run", "trade?", council.ModeTrading).Return(answered(text, council.ModeTrading), nil)

	out, err := h.svc.Trade(context.Background(), TradeRequest{Query: "trade?"})
	require.NoError(t, err)
	assert.Equal(t, types.DirectionLong, out.Decision.Direction)
	assert.Equal(t, "SPY", out.Decision.Instrument)
	assert.Empty(t, out.DecisionError)
	require.NotNil(t, out.Council)
	assert.Equal(t, out.RunID, out.Report.RunID)

	require.Len(t, out.Report.Outcomes, 2)
	assert.Equal(t, execution.StateSuccess, out.Report.Outcomes[0].State)
	assert.Equal(t, execution.StateSkippedBaseline, out.Report.Outcomes[1].State)
	require.Len(t, h.paper.Orders(), 1)
	assert.Len(t, h.runs.recs, 1)
}

func TestTradeFailsClosedToFlat(t *testing.T) {
	h := newHarness(t)
	h.council.On("Run", "trade?", council.ModeTrading).Return(answered("I am not sure.", council.ModeTrading), nil)

	out, err := h.svc.Trade(context.Background(), TradeRequest{Query: "trade?", Accounts: []string{"alpha"}})
	require.NoError(t, err)
	assert.Equal(t, types.DirectionFlat, out.Decision.Direction)
	assert.NotEmpty(t, out.DecisionError)
	require.Len(t, out.Report.Outcomes, 1)
	assert.Equal(t, execution.StateSkippedFlat, out.Report.Outcomes[0].State)
	assert.Empty(t, h.paper.Orders())
}

func TestTradeFlatWhenSynthesisFailed(t *testing.T) {
	h := newHarness(t)
	res := answered("Error: Unable to generate final synthesis.", council.ModeTrading)
	res.Degraded.SynthesisFailed = true
	h.council.On("Run", "q", council.ModeTrading).Return(res, nil)

	out, err := h.svc.Trade(context.Background(), TradeRequest{Query: "q", Accounts: []string{"alpha"}})
	require.NoError(t, err)
	assert.Equal(t, types.DirectionFlat, out.Decision.Direction)
	assert.Equal(t, "synthesis unavailable", out.DecisionError)
}

func TestTradeExplicitDecisionSkipsCouncil(t *testing.T) {
	h := newHarness(t)
	d := types.TradeDecision{Instrument: "QQQ", Direction: types.DirectionShort, Conviction: 1}

	out, err := h.svc.Trade(context.Background(), TradeRequest{Decision: &d, Accounts: []string{"alpha", "ghost"}, WeekID: "2026-W02"})
	require.NoError(t, err)
	assert.Nil(t, out.Council)
	assert.Equal(t, "2026-W02", out.Report.WeekID)
	require.Len(t, out.Report.Outcomes, 2)
	assert.Equal(t, execution.StateSuccess, out.Report.Outcomes[0].State)
	assert.Equal(t, execution.StateRejectedInvalid, out.Report.Outcomes[1].State)
	h.council.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)

	orders := h.paper.Orders()
	require.Len(t, orders, 1)
}

func TestTradeValidation(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Trade(context.Background(), TradeRequest{Accounts: []string{"alpha"}})
	assert.ErrorIs(t, err, ErrEmptyQuery)

	svc, err := NewService(Config{Council: h.council, Executor: h.svc.executor})
	require.NoError(t, err)
	_, err = svc.Trade(context.Background(), TradeRequest{Query: "q"})
	assert.ErrorIs(t, err, ErrNoAccounts)
}

func TestSubmitCouncilJob(t *testing.T) {
	h := newHarness(t)
	h.council.On("Run", "async", council.ModeAnswer).Return(answered("later", council.ModeAnswer), nil)

	job, err := h.svc.Submit(context.Background(), KindCouncil, "async")
	require.NoError(t, err)
	assert.Equal(t, KindCouncil, job.Kind)
	assert.JSONEq(t, `{"query":"async"}`, string(job.Request))

	h.svc.Wait()
	done, err := h.svc.Job(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusDone, done.Status)

	var out Deliberation
	require.NoError(t, json.Unmarshal(done.Result, &out))
	assert.Equal(t, "later", out.Result.Stage3.Response)
}

func TestSubmitFailedJob(t *testing.T) {
	h := newHarness(t)
	h.council.On("Run", "boom", council.ModeAnswer).Return(council.Result{}, errors.New("template broken"))

	job, err := h.svc.Submit(context.Background(), KindCouncil, "boom")
	require.NoError(t, err)
	h.svc.Wait()

	got, err := h.svc.Job(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, got.Status)
	assert.Contains(t, got.Error, "template broken")
}

func TestSubmitTradeJob(t *testing.T) {
	h := newHarness(t)
	d := types.TradeDecision{Instrument: "SPY", Direction: types.DirectionLong, Conviction: 0.5}

	job, err := h.svc.Submit(context.Background(), KindTrade, TradeRequest{Decision: &d})
	require.NoError(t, err)
	h.svc.Wait()

	got, err := h.svc.Job(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusDone, got.Status)
	var out TradeResult
	require.NoError(t, json.Unmarshal(got.Result, &out))
	require.Len(t, out.Report.Outcomes, 2)

	list, err := h.svc.Jobs(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSubmitRejects(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Submit(context.Background(), "backfill", nil)
	assert.ErrorIs(t, err, ErrUnknownKind)
	_, err = h.svc.Submit(context.Background(), KindCouncil, "")
	assert.ErrorIs(t, err, ErrEmptyQuery)
	_, err = h.svc.Submit(context.Background(), KindTrade, "not a request")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.svc.SetContext(ctx)
	_, err = h.svc.Submit(context.Background(), KindCouncil, "q")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNewServiceRequiresCouncil(t *testing.T) {
	_, err := NewService(Config{})
	assert.Error(t, err)
}

func TestTradeNormalizesExplicitDecision(t *testing.T) {
	h := newHarness(t)
	d := types.TradeDecision{Instrument: " spy ", Direction: "buy", Conviction: 3}
	out, err := h.svc.Trade(context.Background(), TradeRequest{Decision: &d, Accounts: []string{"alpha"}})
	require.NoError(t, err)
	assert.Equal(t, types.DirectionLong, out.Decision.Direction)
	assert.Equal(t, "SPY", out.Decision.Instrument)
	assert.Equal(t, 1.0, out.Decision.Conviction)

	bad := types.TradeDecision{Instrument: "SPY", Direction: "sideways"}
	_, err = h.svc.Trade(context.Background(), TradeRequest{Decision: &bad, Accounts: []string{"alpha"}})
	assert.ErrorIs(t, err, ErrInvalidDecision)
}
