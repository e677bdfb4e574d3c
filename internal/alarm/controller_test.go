package alarm

import (
	"testing"
	"time"

	"securitysystem/internal/clock"
	"securitysystem/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewController_InvalidConfig(t *testing.T) {
	cfg := config.Default().Alarm
	cfg.DefaultMode = "triggered"
	_, err := NewController(cfg, nil, nil, clock.NewMockClock(epoch), zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidMode)

	cfg = config.Default().Alarm
	cfg.DefaultMode = "night"
	cfg.DisabledModes = []string{"night"}
	_, err = NewController(cfg, nil, nil, clock.NewMockClock(epoch), zap.NewNop())
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestController_InitialState(t *testing.T) {
	h := newHarness(t, func(a *config.AlarmConfig) { a.DefaultMode = "home" })

	snap := h.ctrl.Snapshot()
	assert.Equal(t, ModeHome, snap.CurrentMode)
	assert.Equal(t, ModeHome, snap.TargetMode)
	assert.False(t, snap.Arming)
	assert.True(t, snap.ArmingDelay)
	assert.True(t, snap.ModeSwitches[ModeHome])
	assert.False(t, snap.ModeSwitches[ModeAway])
	assert.Empty(t, h.rec.modes(EventCurrent), "startup announces nothing")
}

// Off with a 5s arm delay, arm away, and the mode becomes current after 5s
func TestSetTargetMode_ArmWithDelay(t *testing.T) {
	h := newHarness(t, func(a *config.AlarmConfig) { a.ArmSeconds = 5 })

	res, err := h.ctrl.SetTargetMode(ModeAway, OriginLocal, nil)
	require.NoError(t, err)
	assert.Equal(t, ResultAccepted, res)

	snap := h.ctrl.Snapshot()
	assert.True(t, snap.Arming)
	assert.Equal(t, ModeAway, snap.TargetMode)
	assert.Equal(t, ModeOff, snap.CurrentMode)
	assert.Equal(t, []Category{TimerArm}, h.pending())
	assert.Equal(t, []Mode{ModeAway}, h.rec.modes(EventTarget))
	assert.True(t, h.rec.last().State.Arming, "target event carries the arming flag")

	h.clock.Advance(4 * time.Second)
	assert.Equal(t, ModeOff, h.ctrl.Snapshot().CurrentMode)

	h.clock.Advance(time.Second)
	snap = h.ctrl.Snapshot()
	assert.Equal(t, ModeAway, snap.CurrentMode)
	assert.False(t, snap.Arming)
	assert.Empty(t, h.pending())
	assert.Equal(t, []Mode{ModeAway}, h.rec.modes(EventCurrent))

	ps, ok := h.persister.last()
	require.True(t, ok)
	assert.Equal(t, PersistedState{CurrentState: ModeAway, TargetState: ModeAway, ArmingDelay: true}, ps)
}

func TestSetTargetMode_Idempotent(t *testing.T) {
	h := newHarness(t, func(a *config.AlarmConfig) { a.ArmSeconds = 5 })

	_, err := h.ctrl.SetTargetMode(ModeAway, OriginLocal, nil)
	require.NoError(t, err)

	h.clock.Advance(3 * time.Second)

	res, err := h.ctrl.SetTargetMode(ModeAway, OriginLocal, nil)
	assert.Equal(t, ResultAlreadyArming, res)
	assert.ErrorIs(t, err, ErrAlreadyArming)
	assert.Equal(t, []Category{TimerArm}, h.pending())
	assert.Len(t, h.rec.modes(EventTarget), 1, "no second target event")

	// the original timer still fires on schedule
	h.clock.Advance(2 * time.Second)
	assert.Equal(t, ModeAway, h.ctrl.Snapshot().CurrentMode)

	res, err = h.ctrl.SetTargetMode(ModeAway, OriginLocal, nil)
	assert.Equal(t, ResultAlreadySet, res)
	assert.ErrorIs(t, err, ErrAlreadySet)
	assert.Empty(t, h.pending())
}

func TestSetTargetMode_DisabledMode(t *testing.T) {
	h := newHarness(t, func(a *config.AlarmConfig) {
		a.DefaultMode = "home"
		a.DisabledModes = []string{"night", "away"}
	})

	for _, mode := range []Mode{ModeNight, ModeAway} {
		res, err := h.ctrl.SetTargetMode(mode, OriginRemote, nil)
		assert.Equal(t, ResultDisabled, res)
		assert.ErrorIs(t, err, ErrDisabled)

		snap := h.ctrl.Snapshot()
		assert.Equal(t, ModeHome, snap.CurrentMode)
		assert.Equal(t, ModeHome, snap.TargetMode)
	}
	assert.Empty(t, h.rec.modes(EventTarget))

	// off can never be disabled
	res, err := h.ctrl.SetTargetMode(ModeOff, OriginRemote, nil)
	require.NoError(t, err)
	assert.Equal(t, ResultAccepted, res)
}

func TestSetTargetMode_InvalidMode(t *testing.T) {
	h := newHarness(t, nil)

	for _, mode := range []Mode{ModeTriggered, ModeWarning, Mode("vacation")} {
		res, err := h.ctrl.SetTargetMode(mode, OriginLocal, nil)
		assert.Equal(t, ResultInvalidMode, res)
		assert.ErrorIs(t, err, ErrInvalidMode)
	}
}

func TestSetTargetMode_SupersededArmingIsCancelled(t *testing.T) {
	h := newHarness(t, func(a *config.AlarmConfig) { a.ArmSeconds = 5 })

	_, err := h.ctrl.SetTargetMode(ModeAway, OriginLocal, nil)
	require.NoError(t, err)
	h.clock.Advance(4 * time.Second)

	res, err := h.ctrl.SetTargetMode(ModeNight, OriginLocal, nil)
	require.NoError(t, err)
	assert.Equal(t, ResultAccepted, res)
	assert.Equal(t, []Category{TimerArm}, h.pending())

	// the away timer would have fired here
	h.clock.Advance(time.Second)
	assert.Equal(t, ModeOff, h.ctrl.Snapshot().CurrentMode)

	h.clock.Advance(4 * time.Second)
	assert.Equal(t, ModeNight, h.ctrl.Snapshot().CurrentMode)
	assert.Equal(t, []Mode{ModeNight}, h.rec.modes(EventCurrent))
}

func TestSetTargetMode_DisarmWhileArming(t *testing.T) {
	h := newHarness(t, func(a *config.AlarmConfig) { a.ArmSeconds = 5 })

	_, err := h.ctrl.SetTargetMode(ModeAway, OriginLocal, nil)
	require.NoError(t, err)

	res, err := h.ctrl.SetTargetMode(ModeOff, OriginLocal, nil)
	assert.Equal(t, ResultAlreadySet, res)
	assert.ErrorIs(t, err, ErrAlreadySet)

	snap := h.ctrl.Snapshot()
	assert.False(t, snap.Arming)
	assert.Equal(t, ModeOff, snap.TargetMode)
	assert.Empty(t, h.pending())

	h.clock.Advance(time.Minute)
	assert.Equal(t, ModeOff, h.ctrl.Snapshot().CurrentMode)
	assert.Equal(t, []Mode{ModeAway, ModeOff}, h.rec.modes(EventTarget))
}

func TestSetTargetMode_DisarmIsImmediate(t *testing.T) {
	h := newHarness(t, func(a *config.AlarmConfig) {
		a.DefaultMode = "away"
		a.ArmSeconds = 30
	})

	res, err := h.ctrl.SetTargetMode(ModeOff, OriginRemote, boolPtr(true))
	require.NoError(t, err)
	assert.Equal(t, ResultAccepted, res)
	assert.Equal(t, ModeOff, h.ctrl.Snapshot().CurrentMode)
	assert.Empty(t, h.pending())
}

func TestSetTargetMode_DelayOverride(t *testing.T) {
	tests := []struct {
		name        string
		armingDelay bool
		override    *bool
		wantArming  bool
	}{
		{name: "config delay", armingDelay: true, override: nil, wantArming: true},
		{name: "config no delay", armingDelay: false, override: nil, wantArming: false},
		{name: "override off", armingDelay: true, override: boolPtr(false), wantArming: false},
		{name: "override on", armingDelay: false, override: boolPtr(true), wantArming: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(a *config.AlarmConfig) {
				a.ArmSeconds = 10
				a.ArmingDelay = tt.armingDelay
			})

			_, err := h.ctrl.SetTargetMode(ModeHome, OriginRemote, tt.override)
			require.NoError(t, err)

			snap := h.ctrl.Snapshot()
			assert.Equal(t, tt.wantArming, snap.Arming)
			if tt.wantArming {
				assert.Equal(t, ModeOff, snap.CurrentMode)
			} else {
				assert.Equal(t, ModeHome, snap.CurrentMode)
			}
		})
	}
}

func TestSetArmingDelayEnabled(t *testing.T) {
	h := newHarness(t, func(a *config.AlarmConfig) { a.ArmSeconds = 10 })

	h.ctrl.SetArmingDelayEnabled(false)
	assert.False(t, h.ctrl.Snapshot().ArmingDelay)

	ps, ok := h.persister.last()
	require.True(t, ok)
	assert.False(t, ps.ArmingDelay)

	_, err := h.ctrl.SetTargetMode(ModeAway, OriginLocal, nil)
	require.NoError(t, err)
	assert.Equal(t, ModeAway, h.ctrl.Snapshot().CurrentMode)
}

func TestSetArmingLock(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.ctrl.SetArmingLock("away", true))

	res, err := h.ctrl.SetTargetMode(ModeAway, OriginRemote, nil)
	assert.Equal(t, ResultArmingLocked, res)
	assert.ErrorIs(t, err, ErrArmingLocked)

	res, err = h.ctrl.SetTargetMode(ModeHome, OriginRemote, nil)
	require.NoError(t, err)
	assert.Equal(t, ResultAccepted, res)

	require.NoError(t, h.ctrl.SetArmingLock(LockGlobal, true))
	res, _ = h.ctrl.SetTargetMode(ModeNight, OriginRemote, nil)
	assert.Equal(t, ResultArmingLocked, res)

	// disarming is never locked
	res, err = h.ctrl.SetTargetMode(ModeOff, OriginRemote, nil)
	require.NoError(t, err)
	assert.Equal(t, ResultAccepted, res)

	snap := h.ctrl.Snapshot()
	assert.True(t, snap.ArmingLocks[LockGlobal])
	assert.True(t, snap.ArmingLocks["away"])

	require.NoError(t, h.ctrl.SetArmingLock(LockGlobal, false))
	require.NoError(t, h.ctrl.SetArmingLock("away", false))
	res, err = h.ctrl.SetTargetMode(ModeAway, OriginRemote, nil)
	require.NoError(t, err)
	assert.Equal(t, ResultAccepted, res)

	assert.ErrorIs(t, h.ctrl.SetArmingLock("off", true), ErrInvalidMode)
	assert.ErrorIs(t, h.ctrl.SetArmingLock("garage", true), ErrInvalidMode)
}

func TestSetAudioEnabled(t *testing.T) {
	h := newHarness(t, nil)

	h.ctrl.SetAudioEnabled(false)
	_, err := h.ctrl.SetTargetMode(ModeHome, OriginLocal, nil)
	require.NoError(t, err)

	assert.False(t, h.rec.last().State.AudioEnabled)
}

func TestRestore_RoundTrip(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.ctrl.SetTargetMode(ModeAway, OriginLocal, boolPtr(false))
	require.NoError(t, err)
	h.ctrl.SetArmingDelayEnabled(false)

	saved, ok := h.persister.last()
	require.True(t, ok)
	assert.Equal(t, PersistedState{CurrentState: ModeAway, TargetState: ModeAway, ArmingDelay: false}, saved)

	fresh := newHarness(t, nil)
	require.NoError(t, fresh.ctrl.Restore(saved))

	snap := fresh.ctrl.Snapshot()
	assert.Equal(t, ModeAway, snap.CurrentMode)
	assert.Equal(t, ModeAway, snap.TargetMode)
	assert.False(t, snap.ArmingDelay)
	assert.Empty(t, fresh.pending())
}

func TestRestore_TriggeredKeepsTarget(t *testing.T) {
	h := newHarness(t, nil)

	err := h.ctrl.Restore(PersistedState{CurrentState: ModeTriggered, TargetState: ModeNight, ArmingDelay: true})
	require.NoError(t, err)

	snap := h.ctrl.Snapshot()
	assert.Equal(t, ModeTriggered, snap.CurrentMode)
	assert.Equal(t, ModeNight, snap.TargetMode)
	assert.Equal(t, []Category{TimerReset, TimerSirenPulse}, h.pending())

	h.clock.Advance(10 * time.Minute)
	assert.Equal(t, ModeNight, h.ctrl.Snapshot().CurrentMode)
}

func TestRestore_ResumesInterruptedArming(t *testing.T) {
	h := newHarness(t, func(a *config.AlarmConfig) { a.ArmSeconds = 5 })

	err := h.ctrl.Restore(PersistedState{CurrentState: ModeOff, TargetState: ModeAway, ArmingDelay: true})
	require.NoError(t, err)
	assert.True(t, h.ctrl.Snapshot().Arming)

	h.clock.Advance(5 * time.Second)
	assert.Equal(t, ModeAway, h.ctrl.Snapshot().CurrentMode)
}

func TestRestore_Invalid(t *testing.T) {
	h := newHarness(t, nil)

	assert.ErrorIs(t, h.ctrl.Restore(PersistedState{CurrentState: "bogus", TargetState: ModeOff}), ErrInvalidMode)
	assert.ErrorIs(t, h.ctrl.Restore(PersistedState{CurrentState: ModeOff, TargetState: ModeTriggered}), ErrInvalidMode)
}

func TestController_Close(t *testing.T) {
	h := newHarness(t, func(a *config.AlarmConfig) { a.ArmSeconds = 5 })

	_, err := h.ctrl.SetTargetMode(ModeAway, OriginLocal, nil)
	require.NoError(t, err)

	h.ctrl.Close()

	res, err := h.ctrl.SetTargetMode(ModeHome, OriginLocal, nil)
	assert.Equal(t, ResultClosed, res)
	assert.ErrorIs(t, err, ErrClosed)

	// pending timers were stopped and late callbacks are dropped
	h.clock.Advance(time.Minute)
	assert.Empty(t, h.rec.modes(EventCurrent))
}

func TestExecute(t *testing.T) {
	h := newHarness(t, nil)

	res, err := h.ctrl.Execute(Command{Kind: CommandArmNight, Origin: OriginRemote})
	require.NoError(t, err)
	assert.Equal(t, ResultAccepted, res)
	assert.Equal(t, ModeNight, h.ctrl.Snapshot().CurrentMode)

	res, err = h.ctrl.Execute(Command{Kind: CommandTrigger, Origin: OriginRemote, Value: true, Delay: boolPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, ResultAccepted, res)
	assert.Equal(t, ModeTriggered, h.ctrl.Snapshot().CurrentMode)

	res, err = h.ctrl.Execute(Command{Kind: CommandDisarm, Origin: OriginRemote})
	require.NoError(t, err)
	assert.Equal(t, ResultAccepted, res)
	assert.Equal(t, ModeOff, h.ctrl.Snapshot().CurrentMode)

	_, err = h.ctrl.Execute(Command{Kind: CommandSetArmingDelay, Value: false})
	require.NoError(t, err)
	assert.False(t, h.ctrl.Snapshot().ArmingDelay)

	_, err = h.ctrl.Execute(Command{Kind: "self_destruct"})
	assert.ErrorIs(t, err, ErrInvalidMode)
}
