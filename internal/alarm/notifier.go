package alarm

// EventType distinguishes a change of the requested mode from a change of
// the actual mode
type EventType string

const (
	EventTarget  EventType = "target"
	EventCurrent EventType = "current"
)

// Signal names for momentary outputs pulsed by the controller
const (
	SignalSirenDetected = "siren_detected"
	SignalReset         = "reset"
)

// Snapshot is a read-only copy of the controller state
type Snapshot struct {
	CurrentMode   Mode            `json:"current_mode"`
	TargetMode    Mode            `json:"target_mode"`
	Tripped       bool            `json:"tripped"`
	Arming        bool            `json:"arming"`
	Paused        bool            `json:"paused"`
	ArmingDelay   bool            `json:"arming_delay"`
	AudioEnabled  bool            `json:"audio_enabled"`
	ModeSwitches  map[Mode]bool   `json:"mode_switches"`
	SirenSwitches map[Mode]bool   `json:"siren_switches"`
	ArmingLocks   map[string]bool `json:"arming_locks"`

	StateChangedDuringTrigger bool `json:"-"`
	PausedMode                Mode `json:"-"`
}

// Event is handed to the Notifier after every mode change.
// Replay is set when the current mode is re-announced without a change,
// for example when a trigger sensor is released before the alarm went off.
type Event struct {
	Type   EventType
	Mode   Mode
	Origin Origin
	State  Snapshot
	Replay bool
}

// Notifier receives the controller's effects. Implementations must return
// quickly and must not call back into the Controller synchronously.
type Notifier interface {
	// Notify reports a target or current mode change
	Notify(ev Event)

	// CancelWarning stops any effect started for a ModeWarning event
	CancelWarning(origin Origin)

	// Signal sets a momentary output on or off
	Signal(name string, on bool)
}

// NopNotifier discards every effect
type NopNotifier struct{}

func (NopNotifier) Notify(Event)                {}
func (NopNotifier) CancelWarning(Origin)        {}
func (NopNotifier) Signal(name string, on bool) {}

// PersistedState is the part of the controller state that survives a restart
type PersistedState struct {
	CurrentState Mode `json:"currentState"`
	TargetState  Mode `json:"targetState"`
	ArmingDelay  bool `json:"armingDelay"`
}

// Persister stores the controller state. Persist must not block.
type Persister interface {
	Persist(ps PersistedState)
}
