package lifecycle

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Component is a long-running part of the bot: the cooldown gate, ledger
// store connections, the restriction sweeper, the metrics server.
type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Runtime starts components in registration order and stops them in reverse.
type Runtime struct {
	components []Component
}

func NewRuntime(components ...Component) *Runtime {
	r := &Runtime{}
	for _, component := range components {
		r.Register(component)
	}
	return r
}

func (r *Runtime) getLogEntry() *log.Entry {
	return log.WithField("object", "Runtime")
}

// Register appends a component. Nil components are ignored, so optional
// parts can be passed without checks.
func (r *Runtime) Register(component Component) {
	if component == nil {
		return
	}
	r.components = append(r.components, component)
}

// Start starts every component. On failure the already started ones are
// stopped and the error is returned.
func (r *Runtime) Start(ctx context.Context) error {
	started := make([]Component, 0, len(r.components))
	for _, component := range r.components {
		if err := ctx.Err(); err != nil {
			_ = stopComponents(ctx, started)
			return fmt.Errorf("start aborted: %w", err)
		}
		if err := component.Start(ctx); err != nil {
			_ = stopComponents(ctx, started)
			return fmt.Errorf("start %T: %w", component, err)
		}
		r.getLogEntry().WithField("component", fmt.Sprintf("%T", component)).Debug("started")
		started = append(started, component)
	}
	return nil
}

func (r *Runtime) Stop(ctx context.Context) error {
	return stopComponents(ctx, r.components)
}

func stopComponents(ctx context.Context, components []Component) error {
	var stopErr error
	for i := len(components) - 1; i >= 0; i-- {
		if err := components[i].Stop(ctx); err != nil {
			stopErr = errors.Join(stopErr, fmt.Errorf("stop %T: %w", components[i], err))
		}
	}
	return stopErr
}
