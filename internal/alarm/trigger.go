package alarm

import (
	"time"

	"go.uber.org/zap"
)

// TriggerSensor reports a sensor activation or release.
//
// An activation starts the trigger delay, during which warning effects
// play, and then makes the alarm current. A release acknowledges a
// triggered alarm by disarming, or aborts a pending trigger.
func (c *Controller) TriggerSensor(active bool, origin Origin, delay *bool) (Result, error) {
	return c.exec("trigger_sensor", func() (Result, error) {
		return c.triggerSensor(active, origin, delay)
	})
}

// TriggerSensorForMode is TriggerSensor for a sensor that only guards one
// armed mode. Activations are ignored unless mode is current.
func (c *Controller) TriggerSensorForMode(mode Mode, active bool, origin Origin) (Result, error) {
	return c.exec("trigger_sensor_for_mode", func() (Result, error) {
		if !mode.IsArmed() {
			return ResultInvalidMode, newStateError(ResultInvalidMode, mode, "not an armed mode")
		}
		if active && c.st.current != mode {
			return ResultNotArmed, newStateError(ResultNotArmed, mode, "mode is not current")
		}

		res, err := c.triggerSensor(active, origin, nil)
		if active && err == nil {
			c.switches.SetSiren(mode, true)
		} else if !active {
			c.switches.SetSiren(mode, false)
		}
		return res, err
	})
}

func (c *Controller) triggerSensor(active bool, origin Origin, delay *bool) (Result, error) {
	if !active {
		return c.releaseSensor(origin)
	}

	s := &c.st
	if s.current == ModeOff && !c.cfg.OverrideOff {
		return ResultNotArmed, newStateError(ResultNotArmed, s.current, "system is disarmed")
	}
	if s.arming {
		return ResultStillArming, newStateError(ResultStillArming, s.target, "system is still arming")
	}
	if s.current == ModeTriggered {
		return ResultAlreadyTriggered, newStateError(ResultAlreadyTriggered, s.current, "alarm is already triggered")
	}

	if c.timers.Pending(TimerTrigger) {
		return ResultAccepted, nil
	}

	if origin == OriginLocal && c.knock[s.current] && !c.timers.Pending(TimerKnock) {
		c.logger.Info("First knock, waiting for a second activation",
			zap.Duration("window", c.cfg.KnockWindow()))
		c.timers.Schedule(TimerKnock, c.cfg.KnockWindow(), func() {
			c.logger.Debug("Knock window expired")
		})
		return ResultAccepted, nil
	}
	c.timers.Cancel(TimerKnock)

	s.sensorTriggered = true
	d := c.triggerDelay(delay)

	c.logger.Info("Sensor triggered",
		zap.String("mode", s.current.String()),
		zap.String("origin", string(origin)),
		zap.Duration("delay", d))

	if d == 0 {
		c.finalize(ModeTriggered, origin)
		return ResultAccepted, nil
	}

	c.notify(EventCurrent, ModeWarning, origin, false)
	c.timers.Schedule(TimerTrigger, d, func() {
		c.finalize(ModeTriggered, origin)
	})
	return ResultAccepted, nil
}

func (c *Controller) triggerDelay(override *bool) time.Duration {
	if override != nil && !*override {
		return 0
	}
	return c.cfg.TriggerDelay()
}

func (c *Controller) releaseSensor(origin Origin) (Result, error) {
	s := &c.st
	s.sensorTriggered = false
	c.notifier.CancelWarning(origin)

	if s.current == ModeTriggered {
		if !s.changedDuringTrigger {
			c.logger.Info("Sensor released, disarming")
			return c.setTargetMode(ModeOff, origin, nil)
		}
		// the mode was changed while triggered; the release is still
		// acknowledged, it just no longer disarms
		return ResultAccepted, nil
	}

	c.timers.Cancel(TimerTrigger)
	c.timers.Cancel(TimerKnock)
	c.switches.ClearSirens()
	c.notify(EventCurrent, s.current, origin, true)
	return ResultAccepted, nil
}
