package sensor

import (
	"testing"
	"time"

	"securitysystem/internal/alarm"
	"securitysystem/internal/clock"
	"securitysystem/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type call struct {
	mode    alarm.Mode
	active  bool
	origin  alarm.Origin
	perMode bool
}

type fakeTarget struct {
	calls []call
}

func (f *fakeTarget) TriggerSensor(active bool, origin alarm.Origin, _ *bool) (alarm.Result, error) {
	f.calls = append(f.calls, call{active: active, origin: origin})
	return alarm.ResultAccepted, nil
}

func (f *fakeTarget) TriggerSensorForMode(mode alarm.Mode, active bool, origin alarm.Origin) (alarm.Result, error) {
	f.calls = append(f.calls, call{mode: mode, active: active, origin: origin, perMode: true})
	return alarm.ResultAccepted, nil
}

func TestDebouncer(t *testing.T) {
	d := NewDebouncer(100 * time.Millisecond)

	assert.False(t, d.Accept(epoch, false), "initial inactive is not a change")
	assert.True(t, d.Accept(epoch, true))
	assert.True(t, d.Stable())

	assert.False(t, d.Accept(epoch.Add(10*time.Millisecond), true), "same level")
	assert.False(t, d.Accept(epoch.Add(50*time.Millisecond), false), "bounce inside window")
	assert.True(t, d.Stable())

	assert.True(t, d.Accept(epoch.Add(150*time.Millisecond), false))
	assert.False(t, d.Stable())
}

func TestDebouncer_SettleHeldBackLevel(t *testing.T) {
	d := NewDebouncer(100 * time.Millisecond)

	require.True(t, d.Accept(epoch, true))
	assert.False(t, d.Accept(epoch.Add(30*time.Millisecond), false))
	assert.Equal(t, 70*time.Millisecond, d.Pending(epoch.Add(30*time.Millisecond)))

	assert.False(t, d.Settle(epoch.Add(60*time.Millisecond)), "still inside the window")
	assert.True(t, d.Settle(epoch.Add(100*time.Millisecond)))
	assert.False(t, d.Stable())
	assert.Zero(t, d.Pending(epoch.Add(100*time.Millisecond)))
}

func TestDebouncer_BounceBackIsNotPending(t *testing.T) {
	d := NewDebouncer(100 * time.Millisecond)

	require.True(t, d.Accept(epoch, true))
	d.Accept(epoch.Add(10*time.Millisecond), false)
	d.Accept(epoch.Add(20*time.Millisecond), true)

	assert.Zero(t, d.Pending(epoch.Add(20*time.Millisecond)))
	assert.False(t, d.Settle(epoch.Add(time.Second)))
	assert.True(t, d.Stable())
}

func TestDebouncer_ZeroWindow(t *testing.T) {
	d := NewDebouncer(0)

	assert.True(t, d.Accept(epoch, true))
	assert.True(t, d.Accept(epoch, false))
	assert.True(t, d.Accept(epoch, true))
}

func newRouter(t *testing.T, inputs ...config.InputConfig) (*Router, *fakeTarget, *clock.MockClock) {
	t.Helper()
	target := &fakeTarget{}
	clk := clock.NewMockClock(epoch)
	r, err := NewRouter(config.GPIOConfig{DebounceMillis: 100, Inputs: inputs}, target, clk, zap.NewNop())
	require.NoError(t, err)
	return r, target, clk
}

func TestRouter_MainSensor(t *testing.T) {
	r, target, clk := newRouter(t, config.InputConfig{Name: "door", Line: 4})

	r.Level("door", true)
	r.Level("door", true)
	clk.Advance(200 * time.Millisecond)
	r.Level("door", false)
	r.Level("door", false)

	require.Len(t, target.calls, 2)
	assert.Equal(t, call{active: true, origin: alarm.OriginLocal}, target.calls[0])
	assert.Equal(t, call{active: false, origin: alarm.OriginLocal}, target.calls[1])
}

func TestRouter_ShortReleaseIsNotLost(t *testing.T) {
	r, target, clk := newRouter(t, config.InputConfig{Name: "door", Line: 4})
	t.Cleanup(r.Close)

	// open, then close again inside the debounce window
	r.Level("door", true)
	clk.Advance(50 * time.Millisecond)
	r.Level("door", false)
	require.Len(t, target.calls, 1)

	// the release is delivered once the window has passed
	clk.Advance(50 * time.Millisecond)
	require.Len(t, target.calls, 2)
	assert.False(t, target.calls[1].active)

	// so the next opening reaches the controller
	clk.Advance(200 * time.Millisecond)
	r.Level("door", true)
	require.Len(t, target.calls, 3)
	assert.True(t, target.calls[2].active)
}

func TestRouter_BounceInsideWindowIsDropped(t *testing.T) {
	r, target, clk := newRouter(t, config.InputConfig{Name: "door", Line: 4})

	r.Level("door", true)
	r.Level("door", false)
	r.Level("door", true)
	clk.Advance(time.Second)

	require.Len(t, target.calls, 1)
	assert.True(t, target.calls[0].active)
}

func TestRouter_CloseStopsPendingSettle(t *testing.T) {
	r, target, clk := newRouter(t, config.InputConfig{Name: "door", Line: 4})

	r.Level("door", true)
	r.Level("door", false)
	r.Close()
	clk.Advance(time.Second)

	assert.Len(t, target.calls, 1)
}

func TestRouter_InvertedInput(t *testing.T) {
	r, target, _ := newRouter(t, config.InputConfig{Name: "window", Line: 5, Inverted: true})

	r.Level("window", true)
	assert.Empty(t, target.calls, "high on an inverted line is inactive")

	r.Level("window", false)
	require.Len(t, target.calls, 1)
	assert.True(t, target.calls[0].active)
}

func TestRouter_PerModeInput(t *testing.T) {
	r, target, _ := newRouter(t, config.InputConfig{Name: "siren-away", Line: 6, Mode: "away"})

	r.Level("siren-away", true)

	require.Len(t, target.calls, 1)
	assert.True(t, target.calls[0].perMode)
	assert.Equal(t, alarm.ModeAway, target.calls[0].mode)
}

func TestRouter_UnknownInputIgnored(t *testing.T) {
	r, target, _ := newRouter(t, config.InputConfig{Name: "door", Line: 4})

	r.Level("garage", true)
	assert.Empty(t, target.calls)
}

func TestNewRouter_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		inputs []config.InputConfig
	}{
		{"duplicate", []config.InputConfig{{Name: "a", Line: 1}, {Name: "a", Line: 2}}},
		{"unknown mode", []config.InputConfig{{Name: "a", Line: 1, Mode: "vacation"}}},
		{"unarmed mode", []config.InputConfig{{Name: "a", Line: 1, Mode: "off"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRouter(config.GPIOConfig{Inputs: tt.inputs}, &fakeTarget{}, nil, zap.NewNop())
			assert.Error(t, err)
		})
	}
}
