package council

import (
	"context"
	"fmt"
	"strings"

	"council/internal/gateway/provider"
	"council/internal/logger"
	"council/internal/prompt"
	textutil "council/internal/pkg/text"

	"golang.org/x/sync/errgroup"
)

const (
	synthesisFallback = "Error: Unable to generate final synthesis."
	noResponsesText   = "All models failed to respond. Please try again."
)

// Querier is the model-query collaborator. A nil response means the model
// did not answer.
type Querier interface {
	Query(ctx context.Context, modelID string, messages []provider.Message) (*provider.Response, error)
}

// Prompts renders named templates; *prompt.Registry satisfies it.
type Prompts interface {
	Render(id string, data any) (system, user string, err error)
}

// Council runs the three-stage protocol. It holds no per-run state and is
// safe for concurrent use.
type Council struct {
	querier  Querier
	prompts  Prompts
	members  []string
	chairman string
	maxChars int
}

type Option func(*Council)

// WithMaxResponseChars truncates Stage 1 answers before they are reviewed.
func WithMaxResponseChars(n int) Option {
	return func(c *Council) { c.maxChars = n }
}

func New(q Querier, prompts Prompts, members []string, chairman string, opts ...Option) (*Council, error) {
	if q == nil || prompts == nil {
		return nil, fmt.Errorf("council: querier and prompts are required")
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("council: at least one member is required")
	}
	if len(members) > 26 {
		return nil, ErrTooManyResponses
	}
	if strings.TrimSpace(chairman) == "" {
		return nil, fmt.Errorf("council: chairman is required")
	}
	c := &Council{
		querier:  q,
		prompts:  prompts,
		members:  append([]string(nil), members...),
		chairman: chairman,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Council) Members() []string { return append([]string(nil), c.members...) }
func (c *Council) Chairman() string  { return c.chairman }

// Run executes all three stages for query. It always returns a Result; the
// error is reserved for prompt rendering failures.
func (c *Council) Run(ctx context.Context, query string, mode Mode) (Result, error) {
	if mode == "" {
		mode = ModeAnswer
	}
	res := Result{Mode: mode, Metadata: Metadata{LabelToModel: map[string]string{}}}

	res.Stage1 = c.CollectResponses(ctx, query)
	if len(res.Stage1) == 0 {
		logger.Warnf("council: no stage1 responses from %d members", len(c.members))
		res.Stage2 = []RankingSubmission{}
		res.Metadata.AggregateRankings = []AggregateRanking{}
		res.Stage3 = Synthesis{Model: "error", Response: noResponsesText}
		res.Degraded = Degraded{NoResponses: true, NoRankings: true, SynthesisFailed: true}
		return res, nil
	}

	subs, labels, err := c.CollectRankings(ctx, query, res.Stage1)
	if err != nil {
		return res, err
	}
	res.Stage2 = subs
	res.Metadata.LabelToModel = labels.Map()
	res.Metadata.AggregateRankings = AggregateRankings(subs, labels)
	res.Degraded.NoRankings = len(subs) == 0

	syn, ok, err := c.Synthesize(ctx, query, mode, res.Stage1, subs, res.Metadata.AggregateRankings)
	if err != nil {
		return res, err
	}
	res.Stage3 = syn
	res.Degraded.SynthesisFailed = !ok
	return res, nil
}

// CollectResponses is Stage 1: every member is asked concurrently and the
// answers are returned in roster order.
func (c *Council) CollectResponses(ctx context.Context, query string) []ModelResponse {
	ctx = provider.WithStage(ctx, "stage1")
	msgs := []provider.Message{provider.UserMessage(query)}
	replies := c.fanOut(ctx, c.members, msgs)
	out := make([]ModelResponse, 0, len(replies))
	for i, r := range replies {
		if r == nil {
			continue
		}
		text := r.Content
		if c.maxChars > 0 {
			text = textutil.Truncate(text, c.maxChars)
		}
		out = append(out, ModelResponse{Model: c.members[i], Response: text})
	}
	return out
}

// CollectRankings is Stage 2: every roster member reviews the anonymized
// Stage 1 answers. Reviewers that fail are absent from the output.
func (c *Council) CollectRankings(ctx context.Context, query string, responses []ModelResponse) ([]RankingSubmission, LabelMap, error) {
	labels, err := NewLabelMap(responses)
	if err != nil {
		return nil, LabelMap{}, err
	}
	if len(responses) == 0 {
		return []RankingSubmission{}, labels, nil
	}
	data := prompt.RankingData{Query: query, Responses: make([]prompt.LabeledResponse, len(responses))}
	for i, r := range responses {
		data.Responses[i] = prompt.LabeledResponse{Label: Label(i), Text: r.Response}
	}
	system, user, err := c.prompts.Render(prompt.Ranking, data)
	if err != nil {
		return nil, labels, err
	}
	ctx = provider.WithStage(ctx, "stage2")
	replies := c.fanOut(ctx, c.members, buildMessages(system, user))
	out := make([]RankingSubmission, 0, len(replies))
	for i, r := range replies {
		if r == nil {
			continue
		}
		parsed, fallback := parseRanking(r.Content)
		if fallback {
			logger.Infof("council: %s ranking has no numbered %q section, used fallback (%d labels)", c.members[i], rankingMarker, len(parsed))
		}
		out = append(out, RankingSubmission{Model: c.members[i], Ranking: r.Content, ParsedRanking: parsed})
	}
	return out, labels, nil
}

// Synthesize is Stage 3. ok is false when the chairman did not answer and
// the fallback payload was returned instead.
func (c *Council) Synthesize(ctx context.Context, query string, mode Mode, responses []ModelResponse, rankings []RankingSubmission, aggregate []AggregateRanking) (Synthesis, bool, error) {
	data := prompt.SynthesisData{Query: query}
	for _, r := range responses {
		data.Responses = append(data.Responses, prompt.ModelText{Model: r.Model, Text: r.Response})
	}
	for _, r := range rankings {
		data.Rankings = append(data.Rankings, prompt.ModelText{Model: r.Model, Text: r.Ranking})
	}
	for _, a := range aggregate {
		data.Aggregate = append(data.Aggregate, prompt.AggregateLine{Model: a.Model, AverageRank: a.AverageRank, Count: a.RankingsCount})
	}
	tpl := prompt.Synthesis
	if mode == ModeTrading {
		tpl = prompt.Trading
	}
	system, user, err := c.prompts.Render(tpl, data)
	if err != nil {
		return Synthesis{}, false, err
	}
	ctx = provider.WithStage(ctx, "stage3")
	reply := c.fanOut(ctx, []string{c.chairman}, buildMessages(system, user))[0]
	if reply == nil {
		logger.Warnf("council: chairman %s failed, returning fallback", c.chairman)
		return Synthesis{Model: c.chairman, Response: synthesisFallback}, false, nil
	}
	return Synthesis{Model: c.chairman, Response: reply.Content}, true, nil
}

// fanOut queries models concurrently. Slot i holds models[i]'s reply or nil;
// errors and panics in one call never affect the others.
func (c *Council) fanOut(ctx context.Context, models []string, msgs []provider.Message) []*provider.Response {
	results := make([]*provider.Response, len(models))
	if ctx == nil {
		ctx = context.Background()
	}
	eg, egCtx := errgroup.WithContext(ctx)
	for i, model := range models {
		i, model := i, model
		eg.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("council: query %s panic: %v", model, r)
					results[i] = nil
				}
			}()
			resp, err := c.querier.Query(egCtx, model, msgs)
			if err != nil {
				logger.Errorf("council: query %s failed: %v", model, err)
				return nil
			}
			results[i] = resp
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

func buildMessages(system, user string) []provider.Message {
	msgs := make([]provider.Message, 0, 2)
	if strings.TrimSpace(system) != "" {
		msgs = append(msgs, provider.SystemMessage(system))
	}
	return append(msgs, provider.UserMessage(user))
}
