// Package sync reconciles the field client's local queues with the server.
package sync

import (
	"context"
	gosync "sync"

	"github.com/matheus3301/sightings/internal/bus"
	"github.com/matheus3301/sightings/internal/status"
	"go.uber.org/zap"
)

// Engine runs the reconciler whenever the client becomes online, and on
// explicit triggers such as store readiness. Triggers that arrive while a
// pass is running collapse into one follow-up pass.
type Engine struct {
	rec    *Reconciler
	bus    *bus.Bus
	logger *zap.Logger

	trigger chan struct{}
	cancel  context.CancelFunc
	wg      gosync.WaitGroup

	mu        gosync.Mutex
	onOutcome func(Outcome, error)
}

// NewEngine creates a new sync engine.
func NewEngine(rec *Reconciler, b *bus.Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		rec:     rec,
		bus:     b,
		logger:  logger,
		trigger: make(chan struct{}, 1),
	}
}

// OnOutcome registers a callback invoked after every pass.
func (e *Engine) OnOutcome(fn func(Outcome, error)) {
	e.mu.Lock()
	e.onOutcome = fn
	e.mu.Unlock()
}

// Start subscribes to connectivity changes on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe(status.KindChanged, 16)

	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		defer unsub()
		for {
			select {
			case evt := <-ch:
				if c, ok := evt.Payload.(status.Change); ok && c.To == status.Online {
					e.Trigger()
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		defer e.wg.Done()
		for {
			select {
			case <-e.trigger:
				e.runOnce(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Trigger requests a pass without blocking.
func (e *Engine) Trigger() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// Stop stops the engine and waits for a running pass to finish.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

func (e *Engine) runOnce(ctx context.Context) {
	out, err := e.rec.Run(ctx)
	if err != nil {
		e.logger.Error("reconciliation failed", zap.Error(err))
	} else {
		e.logger.Info("reconciliation finished",
			zap.String("mode", string(out.Mode)),
			zap.Int("view", len(out.View)),
			zap.Int("flushed_messages", out.FlushedMessages),
			zap.Int("flushed_sightings", out.FlushedSightings),
			zap.Bool("fallback", out.Fallback),
		)
	}

	e.mu.Lock()
	fn := e.onOutcome
	e.mu.Unlock()
	if fn != nil {
		fn(out, err)
	}
}
