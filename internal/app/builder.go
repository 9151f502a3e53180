package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"council/internal/config"
	"council/internal/council"
	"council/internal/events"
	"council/internal/execution"
	"council/internal/gateway/broker"
	"council/internal/gateway/provider"
	"council/internal/jobs"
	"council/internal/logger"
	"council/internal/orchestrator"
	"council/internal/prompt"
	"council/internal/store/gormstore"
	"council/internal/transport/http/api"
)

// AppBuilder assembles the service graph from config. Each constructor can
// be swapped through an option, which is how tests avoid the network and
// the filesystem.
type AppBuilder struct {
	cfg *config.Config

	providersFn func(config.ModelsConfig, *http.Client) []provider.ModelProvider
	promptsFn   func(string) (*prompt.Registry, error)
	eventsDBFn  func(string) (*gormstore.GormStore, error)
	jobStoreFn  func(string) (jobs.Store, func() error, error)
	brokerFn    func(config.ExecutionConfig) (broker.Broker, error)
	apiFn       func(api.ServerConfig) (*api.Server, error)
}

type AppBuilderOption func(*AppBuilder)

func WithProviders(fn func(config.ModelsConfig, *http.Client) []provider.ModelProvider) AppBuilderOption {
	return func(b *AppBuilder) { b.providersFn = fn }
}

func WithBroker(fn func(config.ExecutionConfig) (broker.Broker, error)) AppBuilderOption {
	return func(b *AppBuilder) { b.brokerFn = fn }
}

func WithJobStore(fn func(string) (jobs.Store, func() error, error)) AppBuilderOption {
	return func(b *AppBuilder) { b.jobStoreFn = fn }
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:         cfg,
		providersFn: buildModelProviders,
		promptsFn:   prompt.NewRegistry,
		eventsDBFn:  gormstore.NewGormStore,
		jobStoreFn:  openJobStore,
		brokerFn:    buildBroker,
		apiFn:       api.NewServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func buildModelProviders(cfg config.ModelsConfig, httpc *http.Client) []provider.ModelProvider {
	return provider.BuildProvidersFromConfig(cfg.ResolveModels(), cfg.MaxRetries, httpc)
}

func openJobStore(path string) (jobs.Store, func() error, error) {
	if strings.TrimSpace(path) == "" {
		return jobs.NewMemoryStore(), nil, nil
	}
	s, err := jobs.NewSQLStore(path)
	if err != nil {
		return nil, nil, err
	}
	return s, s.Close, nil
}

func buildBroker(cfg config.ExecutionConfig) (broker.Broker, error) {
	switch strings.ToLower(cfg.Broker) {
	case "", "paper":
		return broker.NewPaperBroker(), nil
	case "rest":
		return broker.NewRESTBroker(time.Duration(cfg.TimeoutSeconds) * time.Second), nil
	default:
		return nil, fmt.Errorf("unknown broker mode %q", cfg.Broker)
	}
}

func (b *AppBuilder) Build(ctx context.Context) (app *App, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	a := &App{cfg: cfg}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	prompts, err := b.promptsFn(cfg.Council.PromptsPath)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	prompts.OnChange(func(s prompt.Snapshot) {
		logger.Infof("prompts reloaded: version=%d templates=%d", s.Version, len(s.Templates))
	})

	providers := b.providersFn(cfg.Models, provider.NewHTTPClient())
	pool := provider.NewPool(providers,
		provider.WithTimeout(time.Duration(cfg.Council.TimeoutSeconds)*time.Second),
		provider.WithBreakers(cfg.Models.BreakerThreshold, time.Duration(cfg.Models.BreakerCooldownSeconds)*time.Second),
	)
	for _, id := range append(cfg.Council.Members, cfg.Council.Chairman) {
		if !pool.Has(id) {
			logger.Warnf("model %s has no provider; it will never answer", id)
		}
	}
	var councilOpts []council.Option
	if cfg.Council.MaxResponseChars > 0 {
		councilOpts = append(councilOpts, council.WithMaxResponseChars(cfg.Council.MaxResponseChars))
	}
	cncl, err := council.New(pool, prompts, cfg.Council.Members, cfg.Council.Chairman, councilOpts...)
	if err != nil {
		return nil, err
	}

	db, err := b.eventsDBFn(cfg.Store.EventsDB)
	if err != nil {
		return nil, fmt.Errorf("open event store: %w", err)
	}
	a.closers = append(a.closers, db.Close)

	recorders := events.Tee{events.NewStoreRecorder(db)}
	if path := strings.TrimSpace(cfg.Store.EventLogPath); path != "" {
		fileRec, err := events.NewFileRecorder(path)
		if err != nil {
			return nil, fmt.Errorf("open event log: %w", err)
		}
		a.closers = append(a.closers, fileRec.Close)
		recorders = append(recorders, fileRec)
	}

	registry, err := execution.RegistryFromConfig(cfg.Accounts)
	if err != nil {
		return nil, err
	}
	brk, err := b.brokerFn(cfg.Execution)
	if err != nil {
		return nil, err
	}
	retryDelay := time.Duration(cfg.Execution.RetryDelaySeconds * float64(time.Second))
	coord := execution.NewCoordinator(registry, brk, recorders, execution.WithRetryDelay(retryDelay))

	jobStore, closeJobs, err := b.jobStoreFn(cfg.Store.JobsDB)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	if closeJobs != nil {
		a.closers = append(a.closers, closeJobs)
	}

	svc, err := orchestrator.NewService(orchestrator.Config{
		Council:         cncl,
		Executor:        coord,
		Runs:            db,
		Jobs:            jobStore,
		DefaultAccounts: registry.Names(),
	})
	if err != nil {
		return nil, err
	}
	server, err := b.apiFn(api.ServerConfig{
		Addr:     cfg.App.HTTPAddr,
		Service:  svc,
		Events:   recorders,
		Accounts: registry,
	})
	if err != nil {
		return nil, err
	}

	a.service = svc
	a.server = server
	a.Summary = newSummary(cfg, len(providers), registry)
	return a, nil
}
