// Package lifecycle owns the process's background services. main creates
// one Group, registers services on it and passes it to whoever needs to
// know whether they are running.
package lifecycle

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Service is a background loop with the Start/Stop shape used by the
// scheduler and backup manager. Stop must wait for the loop to exit.
type Service interface {
	Start(ctx context.Context)
	Stop()
}

type named struct {
	name string
	svc  Service
}

type Group struct {
	mu       sync.Mutex
	services []named
	running  bool
	logger   *slog.Logger
}

func New(logger *slog.Logger) *Group {
	if logger == nil {
		logger = slog.Default()
	}
	return &Group{logger: logger.With("component", "lifecycle")}
}

// Add registers a service. Services added while the group is running are
// started immediately.
func (g *Group) Add(ctx context.Context, name string, svc Service) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.services = append(g.services, named{name: name, svc: svc})
	if g.running {
		svc.Start(ctx)
		g.logger.Info("service started", "service", name)
	}
}

// Start starts every registered service in order.
func (g *Group) Start(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return
	}
	for _, s := range g.services {
		s.svc.Start(ctx)
		g.logger.Info("service started", "service", s.name)
	}
	g.running = true
}

// Stop stops services in reverse order of registration.
func (g *Group) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.running {
		return
	}
	for _, s := range slices.Backward(g.services) {
		s.svc.Stop()
		g.logger.Info("service stopped", "service", s.name)
	}
	g.running = false
}

func (g *Group) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// Run starts the group, runs each blocking fn until one fails or ctx is
// done, then stops the group. It returns the first error.
func (g *Group) Run(ctx context.Context, fns ...func(ctx context.Context) error) error {
	eg, ctx := errgroup.WithContext(ctx)
	g.Start(ctx)
	defer g.Stop()
	for _, fn := range fns {
		eg.Go(func() error { return fn(ctx) })
	}
	return eg.Wait()
}
