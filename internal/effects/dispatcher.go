// Package effects turns controller events into side effects.
//
// The Dispatcher implements alarm.Notifier. It gives every collaborator its
// own queue and worker goroutine, so a slow player process or an
// unreachable webhook never holds up the controller or another
// collaborator. Collaborator errors are logged and dropped.
package effects

import (
	"context"
	"sync"

	"securitysystem/internal/alarm"

	"go.uber.org/zap"
)

// queueSize is the number of pending jobs per collaborator before new
// ones are dropped
const queueSize = 64

// Collaborator performs the side effects for controller events
type Collaborator interface {
	Name() string
	Handle(ctx context.Context, ev alarm.Event) error
}

// WarningCanceller is implemented by collaborators that run something for
// the pre-trigger warning that has to be stopped when the trigger is aborted
type WarningCanceller interface {
	CancelWarning(origin alarm.Origin)
}

// SignalHandler is implemented by collaborators that mirror momentary
// signals such as the siren pulse
type SignalHandler interface {
	HandleSignal(ctx context.Context, name string, on bool) error
}

type worker struct {
	collab Collaborator
	queue  chan func(ctx context.Context)
}

// Dispatcher fans controller effects out to collaborators
type Dispatcher struct {
	logger  *zap.Logger
	workers []*worker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts one worker per collaborator
func NewDispatcher(logger *zap.Logger, collaborators ...Collaborator) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		logger: logger.Named("effects"),
		ctx:    ctx,
		cancel: cancel,
	}

	for _, c := range collaborators {
		w := &worker{
			collab: c,
			queue:  make(chan func(ctx context.Context), queueSize),
		}
		d.workers = append(d.workers, w)
		d.wg.Add(1)
		go d.run(w)
	}

	d.logger.Info("Effect dispatcher started", zap.Int("collaborators", len(d.workers)))
	return d
}

func (d *Dispatcher) run(w *worker) {
	defer d.wg.Done()
	for job := range w.queue {
		job(d.ctx)
	}
}

// enqueue hands job to w without blocking
func (d *Dispatcher) enqueue(w *worker, kind string, job func(ctx context.Context)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	select {
	case w.queue <- job:
	default:
		d.logger.Warn("Collaborator queue full, dropping effect",
			zap.String("collaborator", w.collab.Name()),
			zap.String("kind", kind))
	}
}

// Notify implements alarm.Notifier
func (d *Dispatcher) Notify(ev alarm.Event) {
	for _, w := range d.workers {
		c := w.collab
		d.enqueue(w, string(ev.Type), func(ctx context.Context) {
			if err := c.Handle(ctx, ev); err != nil {
				d.logger.Error("Effect failed",
					zap.String("collaborator", c.Name()),
					zap.String("type", string(ev.Type)),
					zap.String("mode", ev.Mode.String()),
					zap.Error(err))
			}
		})
	}
}

// CancelWarning implements alarm.Notifier
func (d *Dispatcher) CancelWarning(origin alarm.Origin) {
	for _, w := range d.workers {
		wc, ok := w.collab.(WarningCanceller)
		if !ok {
			continue
		}
		d.enqueue(w, "cancel_warning", func(context.Context) {
			wc.CancelWarning(origin)
		})
	}
}

// Signal implements alarm.Notifier
func (d *Dispatcher) Signal(name string, on bool) {
	for _, w := range d.workers {
		sh, ok := w.collab.(SignalHandler)
		if !ok {
			continue
		}
		collabName := w.collab.Name()
		d.enqueue(w, "signal", func(ctx context.Context) {
			if err := sh.HandleSignal(ctx, name, on); err != nil {
				d.logger.Error("Signal failed",
					zap.String("collaborator", collabName),
					zap.String("signal", name),
					zap.Error(err))
			}
		})
	}
}

// Close stops accepting effects and waits for the queued ones to finish
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, w := range d.workers {
		close(w.queue)
	}
	d.mu.Unlock()

	d.wg.Wait()
	d.cancel()
	d.logger.Info("Effect dispatcher stopped")
}
