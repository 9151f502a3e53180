package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"council/internal/logger"
	"council/internal/pkg/circuit"
)

// Response is a successful model reply.
type Response struct {
	ModelID string
	Content string
	Latency time.Duration
}

// Pool routes queries by model id and resolves every API-level failure to
// a nil response, so callers only see "answered" or "did not answer".
type Pool struct {
	providers map[string]ModelProvider
	breakers  map[string]*circuit.Breaker
	timeout   time.Duration
}

type PoolOption func(*Pool)

// WithTimeout bounds each individual model call.
func WithTimeout(d time.Duration) PoolOption {
	return func(p *Pool) { p.timeout = d }
}

// WithBreakers guards each provider with its own circuit breaker.
func WithBreakers(threshold int, cooldown time.Duration) PoolOption {
	return func(p *Pool) {
		for id := range p.providers {
			p.breakers[id] = circuit.New("model:"+id, threshold, cooldown)
		}
	}
}

func NewPool(providers []ModelProvider, opts ...PoolOption) *Pool {
	p := &Pool{
		providers: make(map[string]ModelProvider, len(providers)),
		breakers:  make(map[string]*circuit.Breaker),
	}
	for _, mp := range providers {
		if mp == nil || !mp.Enabled() {
			continue
		}
		p.providers[mp.ID()] = mp
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pool) Has(modelID string) bool {
	_, ok := p.providers[modelID]
	return ok
}

// Query asks one model. API failures return (nil, nil); an error means the
// call itself was malformed.
func (p *Pool) Query(ctx context.Context, modelID string, messages []Message) (*Response, error) {
	if len(messages) == 0 {
		return nil, errors.New("provider: query without messages")
	}
	mp, ok := p.providers[modelID]
	if !ok {
		logger.Warnf("model %s is not configured or disabled", modelID)
		return nil, nil
	}
	stage := StageFrom(ctx)
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	logger.LogModelRequest(stage, modelID, roles(messages), contents(messages), "")

	start := time.Now()
	var content string
	err := p.breakers[modelID].Do(func() error {
		var callErr error
		content, callErr = mp.Call(ctx, messages)
		return callErr
	})
	logger.LogModelResponse(stage, modelID, content, err)
	if err != nil {
		logger.Warnf("model %s unavailable (%s): %v", modelID, stageLabel(stage), err)
		return nil, nil
	}
	return &Response{ModelID: modelID, Content: content, Latency: time.Since(start)}, nil
}

func stageLabel(stage string) string {
	if strings.TrimSpace(stage) == "" {
		return "query"
	}
	return stage
}

func roles(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Role
	}
	return out
}

func contents(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func (r *Response) String() string {
	if r == nil {
		return "<no response>"
	}
	return fmt.Sprintf("%s (%d chars, %s)", r.ModelID, len(r.Content), r.Latency.Round(time.Millisecond))
}
