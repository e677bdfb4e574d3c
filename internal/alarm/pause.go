package alarm

import "go.uber.org/zap"

// SetPause disarms temporarily and remembers the armed mode. The mode is
// re-armed when the pause is disabled or the pause timer fires.
func (c *Controller) SetPause(enable bool, origin Origin) (Result, error) {
	return c.exec("set_pause", func() (Result, error) {
		if enable {
			return c.pause(origin)
		}
		if !c.st.paused {
			return ResultNotArmed, newStateError(ResultNotArmed, c.st.current, "system is not paused")
		}
		return c.resume(origin)
	})
}

func (c *Controller) pause(origin Origin) (Result, error) {
	s := &c.st
	switch {
	case s.current == ModeTriggered:
		return ResultTriggered, newStateError(ResultTriggered, s.current, "cannot pause a triggered alarm")
	case s.paused:
		return ResultAlreadySet, newStateError(ResultAlreadySet, s.pausedMode, "already paused")
	case s.current == ModeOff:
		return ResultNotArmed, newStateError(ResultNotArmed, s.current, "system is disarmed")
	}

	original := s.current
	noDelay := false
	if res, err := c.setTargetMode(ModeOff, origin, &noDelay); err != nil && !res.Acknowledged() {
		return res, err
	}

	s.paused = true
	s.pausedMode = original

	d := c.cfg.PauseDuration()
	if d > 0 {
		c.timers.Schedule(TimerPause, d, func() {
			c.resume(OriginLocal)
		})
	}

	c.logger.Info("Paused",
		zap.String("mode", original.String()),
		zap.Duration("duration", d))
	return ResultAccepted, nil
}

func (c *Controller) resume(origin Origin) (Result, error) {
	s := &c.st
	mode := s.pausedMode
	c.timers.Cancel(TimerPause)
	s.paused = false
	s.pausedMode = ""

	c.logger.Info("Resuming after pause", zap.String("mode", mode.String()))
	res, err := c.setTargetMode(mode, origin, nil)
	if err != nil && !res.Acknowledged() {
		c.logger.Warn("Could not re-arm after pause",
			zap.String("mode", mode.String()),
			zap.Error(err))
	}
	return res, err
}
