package alarm

import (
	"sync"
	"testing"
	"time"

	"securitysystem/internal/clock"
	"securitysystem/internal/config"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type signalCall struct {
	name string
	on   bool
}

// recorder is a Notifier that keeps every call
type recorder struct {
	mu      sync.Mutex
	events  []Event
	cancels []Origin
	signals []signalCall
}

func (r *recorder) Notify(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) CancelWarning(origin Origin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels = append(r.cancels, origin)
}

func (r *recorder) Signal(name string, on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, signalCall{name: name, on: on})
}

// modes returns the modes of recorded events of the given type
func (r *recorder) modes(t EventType) []Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Mode
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev.Mode)
		}
	}
	return out
}

func (r *recorder) last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return Event{}
	}
	return r.events[len(r.events)-1]
}

func (r *recorder) cancelCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cancels)
}

func (r *recorder) signalCalls(name string) []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []bool
	for _, s := range r.signals {
		if s.name == name {
			out = append(out, s.on)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
	r.cancels = nil
	r.signals = nil
}

// memPersister keeps every persisted state in memory
type memPersister struct {
	mu     sync.Mutex
	states []PersistedState
}

func (m *memPersister) Persist(ps PersistedState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, ps)
}

func (m *memPersister) last() (PersistedState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.states) == 0 {
		return PersistedState{}, false
	}
	return m.states[len(m.states)-1], true
}

func (m *memPersister) currents() []Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Mode
	for _, s := range m.states {
		out = append(out, s.CurrentState)
	}
	return out
}

type harness struct {
	ctrl      *Controller
	rec       *recorder
	persister *memPersister
	clock     *clock.MockClock
}

func newHarness(t *testing.T, mutate func(a *config.AlarmConfig)) *harness {
	t.Helper()

	cfg := config.Default().Alarm
	if mutate != nil {
		mutate(&cfg)
	}

	h := &harness{
		rec:       &recorder{},
		persister: &memPersister{},
		clock:     clock.NewMockClock(epoch),
	}
	ctrl, err := NewController(cfg, h.rec, h.persister, h.clock, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(ctrl.Close)
	h.ctrl = ctrl
	return h
}

// pending returns the categories with a pending timer
func (h *harness) pending() []Category {
	var cats []Category
	_ = h.ctrl.loop.do(func() { cats = h.ctrl.timers.Categories() })
	return cats
}

func boolPtr(b bool) *bool {
	return &b
}
