package alarm

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"securitysystem/internal/clock"
	"securitysystem/internal/config"

	"go.uber.org/zap"
)

// signalPulseWidth is how long a pulsed signal stays asserted
const signalPulseWidth = 750 * time.Millisecond

// LockGlobal is the arming lock scope that covers every armed mode
const LockGlobal = "global"

// state is only read and written on the control goroutine
type state struct {
	current     Mode
	target      Mode
	arming      bool
	armingDelay bool
	paused      bool
	pausedMode  Mode

	changedDuringTrigger bool
	sensorTriggered      bool
	audio                bool

	locks   map[string]bool
	signals map[string]bool
}

// Controller is the security system state machine.
//
// Thread Safety:
//   - All exported methods are safe for concurrent use. Each one runs on
//     the control goroutine and blocks until it has finished.
//   - The Notifier and Persister are called from the control goroutine.
type Controller struct {
	cfg       config.AlarmConfig
	enabled   map[Mode]bool
	knock     map[Mode]bool
	notifier  Notifier
	persister Persister
	logger    *zap.Logger

	loop     *loop
	timers   *TimerSet
	switches *Switches
	st       state
}

// NewController creates a controller in the configured default mode.
// notifier and persister may be nil.
func NewController(cfg config.AlarmConfig, notifier Notifier, persister Persister, clk clock.Clock, logger *zap.Logger) (*Controller, error) {
	defaultMode, err := ParseMode(cfg.DefaultMode)
	if err != nil || !defaultMode.IsTarget() {
		return nil, fmt.Errorf("invalid default mode %q: %w", cfg.DefaultMode, ErrInvalidMode)
	}

	enabled := map[Mode]bool{ModeHome: true, ModeAway: true, ModeNight: true, ModeOff: true}
	for _, name := range cfg.DisabledModes {
		m, err := ParseMode(name)
		if err != nil {
			return nil, fmt.Errorf("invalid disabled mode: %w", err)
		}
		if m != ModeOff {
			enabled[m] = false
		}
	}
	if !enabled[defaultMode] {
		return nil, fmt.Errorf("default mode %s is disabled: %w", defaultMode, ErrDisabled)
	}

	knock := make(map[Mode]bool)
	if cfg.DoubleKnock.Enabled {
		if len(cfg.DoubleKnock.Modes) == 0 {
			knock[ModeHome], knock[ModeAway], knock[ModeNight] = true, true, true
		}
		for _, name := range cfg.DoubleKnock.Modes {
			if m, err := ParseMode(name); err == nil && m.IsArmed() {
				knock[m] = true
			}
		}
	}

	if notifier == nil {
		notifier = NopNotifier{}
	}
	if clk == nil {
		clk = clock.NewRealClock()
	}

	c := &Controller{
		cfg:       cfg,
		enabled:   enabled,
		knock:     knock,
		notifier:  notifier,
		persister: persister,
		logger:    logger.Named("alarm"),
		loop:      newLoop(),
		switches:  NewSwitches(),
		st: state{
			current:     defaultMode,
			target:      defaultMode,
			armingDelay: cfg.ArmingDelay,
			audio:       true,
			locks:       make(map[string]bool),
			signals:     make(map[string]bool),
		},
	}
	c.timers = NewTimerSet(clk, c.loop.post)
	c.switches.SetActiveMode(defaultMode)

	c.logger.Info("Controller created",
		zap.String("default_mode", defaultMode.String()),
		zap.Duration("arm_delay", cfg.ArmDelay()),
		zap.Duration("trigger_delay", cfg.TriggerDelay()))

	return c, nil
}

// exec runs op on the control goroutine and logs rejected operations
func (c *Controller) exec(name string, op func() (Result, error)) (Result, error) {
	var res Result
	var err error
	if e := c.loop.do(func() { res, err = op() }); e != nil {
		return ResultClosed, e
	}

	var se *StateError
	if errors.As(err, &se) {
		c.logger.Warn("Operation not applied",
			zap.String("operation", name),
			zap.String("result", string(res)),
			zap.String("reason", se.Message))
	}
	return res, err
}

// SetTargetMode requests a new mode. Arming is delayed by the configured
// arm delay unless delay says otherwise; disarming is always immediate.
func (c *Controller) SetTargetMode(mode Mode, origin Origin, delay *bool) (Result, error) {
	return c.exec("set_target_mode", func() (Result, error) {
		return c.setTargetMode(mode, origin, delay)
	})
}

func (c *Controller) setTargetMode(mode Mode, origin Origin, delay *bool) (Result, error) {
	s := &c.st

	if !mode.IsTarget() {
		return ResultInvalidMode, newStateError(ResultInvalidMode, mode, "not a target mode")
	}
	if s.target == mode && s.current != ModeTriggered {
		if s.current == mode {
			return ResultAlreadySet, newStateError(ResultAlreadySet, mode, "mode is already current")
		}
		return ResultAlreadyArming, newStateError(ResultAlreadyArming, mode, "already arming to this mode")
	}
	if !c.enabled[mode] {
		return ResultDisabled, newStateError(ResultDisabled, mode, "mode is disabled")
	}
	if mode != ModeOff && c.armingLocked(mode) {
		return ResultArmingLocked, newStateError(ResultArmingLocked, mode, "arming is locked")
	}

	triggerPending := c.timers.Pending(TimerTrigger)
	if s.current == ModeTriggered || triggerPending {
		s.changedDuringTrigger = true
	}
	c.timers.CancelAll()
	c.clearSignals()
	if triggerPending {
		c.notifier.CancelWarning(origin)
	}

	s.target = mode
	s.arming = false
	s.paused = false
	s.pausedMode = ""
	c.switches.SetActiveMode(mode)
	c.switches.ClearSirens()

	c.logger.Info("Target mode changed",
		zap.String("mode", mode.String()),
		zap.String("current", s.current.String()),
		zap.String("origin", string(origin)))

	if s.current == mode {
		c.notify(EventTarget, mode, origin, false)
		return ResultAlreadySet, newStateError(ResultAlreadySet, mode, "mode is already current")
	}

	d := c.armDelay(mode, delay)
	s.arming = d > 0 && mode != ModeOff
	c.notify(EventTarget, mode, origin, false)

	if d == 0 {
		c.finalize(mode, origin)
		return ResultAccepted, nil
	}

	c.timers.Schedule(TimerArm, d, func() {
		c.st.arming = false
		c.finalize(mode, origin)
	})
	return ResultAccepted, nil
}

// armDelay returns how long to wait before mode becomes current
func (c *Controller) armDelay(mode Mode, override *bool) time.Duration {
	if c.st.current == ModeTriggered || mode == ModeOff {
		return 0
	}
	enabled := c.st.armingDelay
	if override != nil {
		enabled = *override
	}
	if !enabled {
		return 0
	}
	return c.cfg.ArmDelay()
}

func (c *Controller) armingLocked(mode Mode) bool {
	return c.st.locks[LockGlobal] || c.st.locks[string(mode)]
}

// finalize makes mode current and announces it
func (c *Controller) finalize(mode Mode, origin Origin) {
	c.transition(mode, origin, true)
}

// transition makes mode current. Effects are only dispatched when announce
// is set; the new state is persisted either way.
func (c *Controller) transition(mode Mode, origin Origin, announce bool) {
	s := &c.st
	if s.current == mode {
		return
	}

	previous := s.current
	s.current = mode

	if previous == ModeTriggered {
		c.stopSiren()
		c.timers.Cancel(TimerReset)
		s.sensorTriggered = false
	}
	if mode == ModeTriggered {
		s.changedDuringTrigger = false
		c.startSiren()
		c.scheduleReset()
	}

	c.logger.Info("Current mode changed",
		zap.String("from", previous.String()),
		zap.String("to", mode.String()),
		zap.String("origin", string(origin)),
		zap.Bool("announced", announce))

	if announce {
		c.notify(EventCurrent, mode, origin, false)
	}
	c.persist()
}

func (c *Controller) notify(t EventType, mode Mode, origin Origin, replay bool) {
	c.notifier.Notify(Event{
		Type:   t,
		Mode:   mode,
		Origin: origin,
		State:  c.snapshot(),
		Replay: replay,
	})
}

func (c *Controller) persist() {
	if c.persister == nil {
		return
	}
	c.persister.Persist(PersistedState{
		CurrentState: c.st.current,
		TargetState:  c.st.target,
		ArmingDelay:  c.st.armingDelay,
	})
}

// signal sets a momentary output, skipping redundant updates
func (c *Controller) signal(name string, on bool) {
	if c.st.signals[name] == on {
		return
	}
	c.st.signals[name] = on
	c.notifier.Signal(name, on)
}

// clearSignals drops every asserted signal. Used after CancelAll, which
// also cancels the timers that would have cleared them.
func (c *Controller) clearSignals() {
	for _, name := range []string{SignalSirenDetected, SignalReset} {
		c.signal(name, false)
	}
}

// pulse asserts a signal and schedules it to clear
func (c *Controller) pulse(name string, clearTimer Category) {
	c.signal(name, true)
	c.timers.Schedule(clearTimer, signalPulseWidth, func() {
		c.signal(name, false)
	})
}

// SetArmingDelayEnabled sets whether future arming requests wait for the
// arm delay when the request does not say
func (c *Controller) SetArmingDelayEnabled(enabled bool) {
	_ = c.loop.do(func() {
		if c.st.armingDelay == enabled {
			return
		}
		c.st.armingDelay = enabled
		c.logger.Info("Arming delay changed", zap.Bool("enabled", enabled))
		c.persist()
	})
}

// SetArmingLock locks or unlocks arming for a mode, or for every mode when
// scope is LockGlobal. Disarming is never locked.
func (c *Controller) SetArmingLock(scope string, locked bool) error {
	scope = strings.ToLower(strings.TrimSpace(scope))
	if scope != LockGlobal {
		m, err := ParseMode(scope)
		if err != nil || !m.IsArmed() {
			return fmt.Errorf("arming lock scope %q: %w", scope, ErrInvalidMode)
		}
	}

	return c.loop.do(func() {
		if c.st.locks[scope] == locked {
			return
		}
		c.st.locks[scope] = locked
		c.logger.Info("Arming lock changed",
			zap.String("scope", scope),
			zap.Bool("locked", locked))
	})
}

// SetAudioEnabled turns audio effects on or off. The flag travels with
// every event; the audio collaborator honours it.
func (c *Controller) SetAudioEnabled(enabled bool) {
	_ = c.loop.do(func() {
		c.st.audio = enabled
	})
}

// Snapshot returns a copy of the controller state
func (c *Controller) Snapshot() Snapshot {
	var snap Snapshot
	_ = c.loop.do(func() { snap = c.snapshot() })
	return snap
}

func (c *Controller) snapshot() Snapshot {
	s := &c.st
	locks := make(map[string]bool, len(s.locks))
	for k, v := range s.locks {
		locks[k] = v
	}
	return Snapshot{
		CurrentMode:               s.current,
		TargetMode:                s.target,
		Tripped:                   s.sensorTriggered,
		Arming:                    s.arming,
		Paused:                    s.paused,
		ArmingDelay:               s.armingDelay,
		AudioEnabled:              s.audio,
		ModeSwitches:              c.switches.ModeSwitches(),
		SirenSwitches:             c.switches.SirenSwitches(),
		ArmingLocks:               locks,
		StateChangedDuringTrigger: s.changedDuringTrigger,
		PausedMode:                s.pausedMode,
	}
}

// Restore loads a persisted state. It is meant to be called once at
// startup, before any command is accepted. A triggered state keeps its
// stored target and restarts the siren and auto-reset timers; an
// interrupted arming is resumed with the arm delay.
func (c *Controller) Restore(ps PersistedState) error {
	current, err := ParseMode(string(ps.CurrentState))
	if err != nil || (!current.IsTarget() && current != ModeTriggered) {
		return fmt.Errorf("restoring current state %q: %w", ps.CurrentState, ErrInvalidMode)
	}
	target, err := ParseMode(string(ps.TargetState))
	if err != nil || !target.IsTarget() {
		return fmt.Errorf("restoring target state %q: %w", ps.TargetState, ErrInvalidMode)
	}

	return c.loop.do(func() {
		s := &c.st
		c.timers.CancelAll()

		if !c.enabled[target] {
			c.logger.Warn("Stored target mode is disabled, falling back to off",
				zap.String("mode", target.String()))
			target = ModeOff
		}

		s.current = current
		s.target = target
		s.armingDelay = ps.ArmingDelay
		s.arming = false
		c.switches.SetActiveMode(target)
		c.switches.ClearSirens()

		switch {
		case current == ModeTriggered:
			c.startSiren()
			c.scheduleReset()
		case current != target:
			if d := c.armDelay(target, nil); d > 0 {
				s.arming = true
				c.timers.Schedule(TimerArm, d, func() {
					c.st.arming = false
					c.finalize(target, OriginLocal)
				})
			} else {
				c.finalize(target, OriginLocal)
			}
		}

		c.logger.Info("State restored",
			zap.String("current", s.current.String()),
			zap.String("target", s.target.String()),
			zap.Bool("arming_delay", s.armingDelay))
	})
}

// Close cancels every pending timer and stops the control goroutine.
// Operations called after Close return ErrClosed.
func (c *Controller) Close() {
	_ = c.loop.do(func() {
		c.timers.CancelAll()
		c.clearSignals()
	})
	c.loop.stop()
	c.logger.Info("Controller stopped")
}
