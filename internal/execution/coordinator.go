package execution

import (
	"context"
	"fmt"
	"strings"
	"time"

	"council/internal/config"
	"council/internal/events"
	"council/internal/gateway/broker"
	"council/internal/logger"
	"council/internal/pkg/trading"
	"council/internal/types"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultRetryDelay is the wait before the single retry of a transient failure.
const DefaultRetryDelay = 5 * time.Second

type State string

const (
	StatePending          State = "PENDING"
	StateRejectedInvalid  State = "REJECTED_INVALID_ACCOUNT"
	StateSkippedBaseline  State = "SKIPPED_BASELINE"
	StateSkippedFlat      State = "SKIPPED_FLAT"
	StateSuccess          State = "SUCCESS"
	// StateFailed ends a non-retryable first failure, an order that could not
	// be built, a retry wait cut short by cancellation, or a broker panic.
	StateFailed           State = "FAILED"
	StateFailedAfterRetry State = "FAILED_AFTER_RETRY"
)

// Intent asks for decision to be executed on one account.
type Intent struct {
	Account  string
	Decision types.TradeDecision
}

// RunInfo identifies one execution run; empty fields are generated.
type RunInfo struct {
	RunID  string
	WeekID string
}

// Outcome is the terminal result for one intent.
type Outcome struct {
	Account     string   `json:"account"`
	State       State    `json:"state"`
	Instrument  string   `json:"instrument,omitempty"`
	Side        string   `json:"side,omitempty"`
	Qty         string   `json:"qty,omitempty"`
	Attempts    int      `json:"attempts"`
	OrderID     string   `json:"order_id,omitempty"`
	Error       string   `json:"error,omitempty"`
	Retryable   bool     `json:"retryable,omitempty"`
	EventIDs    []string `json:"event_ids,omitempty"`
	EventErrors []string `json:"event_errors,omitempty"`
}

// Report holds one outcome per intent, in intent order.
type Report struct {
	RunID      string    `json:"run_id"`
	WeekID     string    `json:"week_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Outcomes   []Outcome `json:"outcomes"`
}

func (r Report) Counts() map[State]int {
	out := make(map[State]int)
	for _, o := range r.Outcomes {
		out[o.State]++
	}
	return out
}

// Sleeper waits d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Coordinator fans a decision out to accounts. It keeps no state between
// runs; the recorder is the only shared sink.
type Coordinator struct {
	registry   *Registry
	broker     broker.Broker
	recorder   events.Recorder
	retryDelay time.Duration
	sleep      Sleeper
	now        func() time.Time
}

type Option func(*Coordinator)

func WithRetryDelay(d time.Duration) Option {
	return func(c *Coordinator) {
		if d >= 0 {
			c.retryDelay = d
		}
	}
}

func WithSleeper(s Sleeper) Option {
	return func(c *Coordinator) {
		if s != nil {
			c.sleep = s
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCoordinator(registry *Registry, b broker.Broker, recorder events.Recorder, opts ...Option) *Coordinator {
	c := &Coordinator{
		registry:   registry,
		broker:     b,
		recorder:   recorder,
		retryDelay: DefaultRetryDelay,
		sleep:      sleepCtx,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) Registry() *Registry { return c.registry }

// ExecuteAll runs one decision against every named account.
func (c *Coordinator) ExecuteAll(ctx context.Context, decision types.TradeDecision, accounts []string, info RunInfo) Report {
	intents := make([]Intent, len(accounts))
	for i, a := range accounts {
		intents[i] = Intent{Account: a, Decision: decision}
	}
	return c.Execute(ctx, intents, info)
}

// Execute runs every intent concurrently. It always returns exactly one
// terminal outcome per distinct account, in first-seen order; later intents
// for an account already targeted in this run are dropped.
func (c *Coordinator) Execute(ctx context.Context, intents []Intent, info RunInfo) Report {
	if ctx == nil {
		ctx = context.Background()
	}
	intents = dedupeIntents(intents)
	started := c.now()
	if info.RunID == "" {
		info.RunID = uuid.NewString()
	}
	if info.WeekID == "" {
		info.WeekID = WeekID(started)
	}
	outcomes := make([]Outcome, len(intents))
	var eg errgroup.Group
	for i, intent := range intents {
		i, intent := i, intent
		eg.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("execution: account %s panic: %v", intent.Account, r)
					outcomes[i] = Outcome{
						Account: config.NormalizeAccountName(intent.Account),
						State:   StateFailed,
						Error:   fmt.Sprintf("internal error: %v", r),
					}
				}
			}()
			outcomes[i] = c.run(ctx, intent, info)
			return nil
		})
	}
	_ = eg.Wait()
	return Report{
		RunID:      info.RunID,
		WeekID:     info.WeekID,
		StartedAt:  started,
		FinishedAt: c.now(),
		Outcomes:   outcomes,
	}
}

func (c *Coordinator) run(ctx context.Context, intent Intent, info RunInfo) Outcome {
	name := config.NormalizeAccountName(intent.Account)
	d := intent.Decision
	out := Outcome{Account: name, State: StatePending, Instrument: d.Instrument}

	acct, ok := c.registry.Lookup(name)
	if !ok {
		out.State = StateRejectedInvalid
		out.Error = fmt.Sprintf("%v: %q", ErrUnknownAccount, intent.Account)
		c.emit(ctx, &out, info, events.AccountValidationError, map[string]any{
			"reason":     out.Error,
			"instrument": d.Instrument,
		})
		return c.finish(out)
	}
	if acct.Baseline {
		out.State = StateSkippedBaseline
		c.emit(ctx, &out, info, events.BaselineAccountSkipped, map[string]any{
			"instrument": d.Instrument,
			"direction":  string(d.Direction),
			"conviction": d.Conviction,
		})
		return c.finish(out)
	}
	// FLAT is a no-trade decision, not an order attempt, so it records no event.
	if d.Direction == types.DirectionFlat {
		out.State = StateSkippedFlat
		return c.finish(out)
	}

	req, err := buildOrder(acct, d, info)
	if err != nil {
		out.State = StateFailed
		out.Error = err.Error()
		c.emit(ctx, &out, info, events.OrderFailed, map[string]any{
			"instrument": d.Instrument,
			"error":      out.Error,
			"attempt":    0,
			"retryable":  false,
		})
		return c.finish(out)
	}
	out.Side = req.Side
	out.Qty = req.Qty.String()

	res, err := c.place(ctx, acct, req, &out)
	if err == nil {
		return c.succeed(ctx, out, info, req, res)
	}
	out.Error = err.Error()
	out.Retryable = IsRetryable(err)
	if !out.Retryable {
		out.State = StateFailed
		c.emitFailure(ctx, &out, info, req)
		return c.finish(out)
	}

	if werr := c.sleep(ctx, c.retryDelay); werr != nil {
		out.State = StateFailed
		out.Error = fmt.Sprintf("retry aborted: %v (first error: %s)", werr, out.Error)
		c.emitFailure(ctx, &out, info, req)
		return c.finish(out)
	}
	c.emit(ctx, &out, info, events.OrderRetried, map[string]any{
		"instrument": req.Symbol,
		"side":       req.Side,
		"qty":        out.Qty,
		"error":      out.Error,
		"attempt":    2,
		"delay_ms":   c.retryDelay.Milliseconds(),
	})
	res, err = c.place(ctx, acct, req, &out)
	if err == nil {
		out.Error = ""
		out.Retryable = false
		return c.succeed(ctx, out, info, req, res)
	}
	out.State = StateFailedAfterRetry
	out.Error = err.Error()
	out.Retryable = IsRetryable(err)
	c.emitFailure(ctx, &out, info, req)
	return c.finish(out)
}

func (c *Coordinator) succeed(ctx context.Context, out Outcome, info RunInfo, req broker.OrderRequest, res *broker.OrderResult) Outcome {
	out.State = StateSuccess
	out.OrderID = res.OrderID
	c.emit(ctx, &out, info, events.OrderPlaced, map[string]any{
		"order_id":   res.OrderID,
		"status":     res.Status,
		"instrument": req.Symbol,
		"side":       req.Side,
		"qty":        req.Qty.String(),
		"order_type": req.OrderType,
		"attempt":    out.Attempts,
	})
	return c.finish(out)
}

func (c *Coordinator) emitFailure(ctx context.Context, out *Outcome, info RunInfo, req broker.OrderRequest) {
	c.emit(ctx, out, info, events.OrderFailed, map[string]any{
		"instrument": req.Symbol,
		"side":       req.Side,
		"qty":        req.Qty.String(),
		"error":      out.Error,
		"attempt":    out.Attempts,
		"retryable":  out.Retryable,
	})
}

// place makes one attempt; a panicking broker counts as a terminal failure.
func (c *Coordinator) place(ctx context.Context, acct Account, req broker.OrderRequest, out *Outcome) (res *broker.OrderResult, err error) {
	out.Attempts++
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, &panicError{value: r}
		}
	}()
	res, err = c.broker.PlaceOrder(ctx, acct.Credentials, req)
	if err == nil && res == nil {
		err = fmt.Errorf("broker returned no result")
	}
	return res, err
}

// emit records evt; sink failures are kept on the outcome and never change
// its state.
func (c *Coordinator) emit(ctx context.Context, out *Outcome, info RunInfo, typ events.Type, payload map[string]any) {
	if c.recorder == nil {
		return
	}
	evt := events.Event{
		Type:       typ,
		RunID:      info.RunID,
		Account:    out.Account,
		WeekID:     info.WeekID,
		Payload:    payload,
		OccurredAt: c.now(),
	}
	id, err := c.recorder.Record(context.WithoutCancel(ctx), evt)
	if err != nil {
		logger.Errorf("execution: record %s for %s failed: %v", typ, out.Account, err)
		out.EventErrors = append(out.EventErrors, err.Error())
		return
	}
	out.EventIDs = append(out.EventIDs, id)
}

func (c *Coordinator) finish(out Outcome) Outcome {
	switch out.State {
	case StateSuccess:
		logger.Infof("execution: %s %s %s %s order=%s attempts=%d", out.Account, out.State, out.Side, out.Qty, out.OrderID, out.Attempts)
	case StateFailed, StateFailedAfterRetry, StateRejectedInvalid:
		logger.Warnf("execution: %s %s attempts=%d err=%s", out.Account, out.State, out.Attempts, out.Error)
	default:
		logger.Infof("execution: %s %s", out.Account, out.State)
	}
	return out
}

func dedupeIntents(intents []Intent) []Intent {
	seen := make(map[string]struct{}, len(intents))
	out := make([]Intent, 0, len(intents))
	for _, in := range intents {
		name := config.NormalizeAccountName(in.Account)
		if _, dup := seen[name]; dup {
			logger.Warnf("execution: duplicate intent for account %s dropped", name)
			continue
		}
		seen[name] = struct{}{}
		out = append(out, in)
	}
	return out
}

func buildOrder(acct Account, d types.TradeDecision, info RunInfo) (broker.OrderRequest, error) {
	symbol := strings.ToUpper(strings.TrimSpace(d.Instrument))
	if symbol == "" {
		return broker.OrderRequest{}, fmt.Errorf("invalid symbol: decision has no instrument")
	}
	side := d.Direction.Side()
	if side == "" {
		return broker.OrderRequest{}, fmt.Errorf("invalid direction %q", d.Direction)
	}
	qty := trading.SizeOrder(acct.BaseQuantity, acct.QuantityStep, d.Conviction, acct.ScaleByConviction)
	if !qty.IsPositive() {
		return broker.OrderRequest{}, fmt.Errorf("invalid qty for account %s", acct.Name)
	}
	return broker.OrderRequest{
		Symbol:      symbol,
		Side:        side,
		Qty:         qty,
		OrderType:   acct.OrderType,
		TimeInForce: acct.TimeInForce,
		ClientID:    clientOrderID(info.RunID, acct.Name),
	}, nil
}

// clientOrderID is stable across the retry so the broker can dedupe.
func clientOrderID(runID, account string) string {
	id := strings.ReplaceAll(runID, "-", "")
	if len(id) > 12 {
		id = id[:12]
	}
	out := strings.ToLower(fmt.Sprintf("council-%s-%s", id, account))
	if len(out) > 48 {
		out = out[:48]
	}
	return out
}

// WeekID is the ISO week of t, e.g. 2026-W42.
func WeekID(t time.Time) string {
	y, w := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", y, w)
}

type panicError struct {
	value any
}

func (e *panicError) Error() string { return fmt.Sprintf("broker panic: %v", e.value) }

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
