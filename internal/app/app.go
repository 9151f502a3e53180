package app

import (
	"context"
	"fmt"

	"council/internal/config"
	"council/internal/logger"
	"council/internal/orchestrator"
	"council/internal/transport/http/api"

	"golang.org/x/sync/errgroup"
)

// App owns the running service graph.
type App struct {
	cfg     *config.Config
	service *orchestrator.Service
	server  *api.Server
	closers []func() error
	Summary *StartupSummary
}

func NewApp(ctx context.Context, cfg *config.Config, opts ...AppBuilderOption) (*App, error) {
	return NewAppBuilder(cfg, opts...).Build(ctx)
}

// Run serves HTTP until ctx is cancelled, then drains background jobs and
// closes the stores.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.service == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.close()
	if a.Summary != nil {
		a.Summary.Print()
	}
	group, ctx := errgroup.WithContext(ctx)
	a.service.SetContext(ctx)

	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("api server error: %w", err)
		}
		return nil
	})
	err := group.Wait()
	a.service.Wait()
	return err
}

// Service exposes the orchestrator for embedding and tests.
func (a *App) Service() *orchestrator.Service {
	if a == nil {
		return nil
	}
	return a.service
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warnf("app: close: %v", err)
		}
	}
	a.closers = nil
}
