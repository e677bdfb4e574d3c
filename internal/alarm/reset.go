package alarm

import "go.uber.org/zap"

// startSiren begins the periodic siren-detected pulse
func (c *Controller) startSiren() {
	interval := c.cfg.SirenPulseInterval()
	if interval <= 0 {
		return
	}
	c.timers.Every(TimerSirenPulse, interval, func() {
		c.pulse(SignalSirenDetected, TimerSirenClear)
	})
}

// stopSiren cancels the siren pulse and clears the signal if asserted
func (c *Controller) stopSiren() {
	c.timers.Cancel(TimerSirenPulse)
	c.timers.Cancel(TimerSirenClear)
	c.signal(SignalSirenDetected, false)
}

// scheduleReset arms the auto-reset timer. A zero reset duration leaves the
// alarm triggered until someone acknowledges it.
func (c *Controller) scheduleReset() {
	d := c.cfg.ResetDuration()
	if d <= 0 {
		return
	}
	c.timers.Schedule(TimerReset, d, c.autoReset)
}

// autoReset leaves the triggered state for the requested target mode
func (c *Controller) autoReset() {
	s := &c.st
	if s.current != ModeTriggered {
		return
	}

	c.timers.CancelAll()
	c.stopSiren()
	s.changedDuringTrigger = false
	s.arming = false
	c.switches.SetActiveMode(s.target)
	c.switches.ClearSirens()
	c.pulse(SignalReset, TimerResetClear)

	target := s.target
	c.logger.Info("Auto-reset after trigger",
		zap.String("target", target.String()),
		zap.Bool("through_off", c.cfg.ResetThroughOff))

	if c.cfg.ResetThroughOff && target != ModeOff {
		c.transition(ModeOff, OriginLocal, c.cfg.ResetObserveOff)
		c.finalize(target, OriginLocal)
		return
	}
	c.finalize(target, OriginLocal)
}
