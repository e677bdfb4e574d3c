// Package sensor turns local input lines into trigger sensor activations.
package sensor

import (
	"fmt"
	"sync"
	"time"

	"securitysystem/internal/alarm"
	"securitysystem/internal/clock"
	"securitysystem/internal/config"

	"go.uber.org/zap"
)

// Target receives sensor activations
type Target interface {
	TriggerSensor(active bool, origin alarm.Origin, delay *bool) (alarm.Result, error)
	TriggerSensorForMode(mode alarm.Mode, active bool, origin alarm.Origin) (alarm.Result, error)
}

type input struct {
	cfg       config.InputConfig
	mode      alarm.Mode
	perMode   bool
	debouncer *Debouncer
	settle    clock.Timer
}

// Router debounces raw input levels and forwards accepted changes to the
// controller with local origin. Inputs bound to a mode drive that mode's
// siren switch, the rest drive the main trigger sensor.
type Router struct {
	target Target
	clock  clock.Clock
	logger *zap.Logger

	mu     sync.Mutex
	inputs map[string]*input
}

// NewRouter validates the input list and creates a router for it
func NewRouter(cfg config.GPIOConfig, target Target, clk clock.Clock, logger *zap.Logger) (*Router, error) {
	if clk == nil {
		clk = clock.NewRealClock()
	}

	r := &Router{
		target: target,
		clock:  clk,
		logger: logger.Named("sensor"),
		inputs: make(map[string]*input, len(cfg.Inputs)),
	}

	window := cfg.Debounce()
	for _, ic := range cfg.Inputs {
		if _, dup := r.inputs[ic.Name]; dup {
			return nil, fmt.Errorf("input %q defined twice", ic.Name)
		}
		in := &input{cfg: ic, debouncer: NewDebouncer(window)}
		if ic.Mode != "" {
			mode, err := alarm.ParseMode(ic.Mode)
			if err != nil {
				return nil, fmt.Errorf("input %q: %w", ic.Name, err)
			}
			if !mode.IsArmed() {
				return nil, fmt.Errorf("input %q: mode %s is not an armed mode", ic.Name, mode)
			}
			in.mode = mode
			in.perMode = true
		}
		r.inputs[ic.Name] = in
	}

	return r, nil
}

// Level reports a physical line level for the named input. high is the raw
// electrical level, inversion is applied here.
func (r *Router) Level(name string, high bool) {
	r.mu.Lock()
	in, ok := r.inputs[name]
	if !ok {
		r.mu.Unlock()
		r.logger.Warn("Event for unknown input", zap.String("input", name))
		return
	}
	active := high != in.cfg.Inverted
	now := r.clock.Now()
	accepted := in.debouncer.Accept(now, active)
	if !accepted {
		r.scheduleSettle(name, in, now)
	}
	r.mu.Unlock()

	if accepted {
		r.forward(name, in, active)
	}
}

// scheduleSettle re-checks a held-back level once the debounce window has
// passed. Must be called with r.mu held.
func (r *Router) scheduleSettle(name string, in *input, now time.Time) {
	wait := in.debouncer.Pending(now)
	if wait <= 0 || in.settle != nil {
		return
	}
	in.settle = r.clock.AfterFunc(wait, func() {
		r.mu.Lock()
		in.settle = nil
		accepted := in.debouncer.Settle(r.clock.Now())
		active := in.debouncer.Stable()
		r.mu.Unlock()

		if accepted {
			r.forward(name, in, active)
		}
	})
}

// Close stops pending debounce checks
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, in := range r.inputs {
		if in.settle != nil {
			in.settle.Stop()
			in.settle = nil
		}
	}
}

func (r *Router) forward(name string, in *input, active bool) {
	r.logger.Info("Input changed",
		zap.String("input", name),
		zap.Bool("active", active))

	var (
		res alarm.Result
		err error
	)
	if in.perMode {
		res, err = r.target.TriggerSensorForMode(in.mode, active, alarm.OriginLocal)
	} else {
		res, err = r.target.TriggerSensor(active, alarm.OriginLocal, nil)
	}
	if err != nil && !res.Acknowledged() {
		r.logger.Debug("Sensor change not applied",
			zap.String("input", name),
			zap.String("result", string(res)),
			zap.Error(err))
	}
}
