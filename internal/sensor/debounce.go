package sensor

import "time"

// Debouncer filters contact bounce on a single input. A level change is
// accepted only when it differs from the last stable level and the last
// stable change is at least window old. A change that arrives too early is
// remembered and can be accepted later through Settle, so a contact that
// opens and closes inside the window is not lost.
type Debouncer struct {
	window     time.Duration
	stable     bool
	raw        bool
	lastStable time.Time
}

// NewDebouncer creates a debouncer that starts out inactive
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window}
}

// Accept records active as the current raw level and reports whether it is
// a real state change, recording it as the new stable level if so
func (d *Debouncer) Accept(now time.Time, active bool) bool {
	d.raw = active
	return d.Settle(now)
}

// Settle re-evaluates the last raw level
func (d *Debouncer) Settle(now time.Time) bool {
	if d.raw == d.stable {
		return false
	}
	if !d.lastStable.IsZero() && now.Sub(d.lastStable) < d.window {
		return false
	}
	d.stable = d.raw
	d.lastStable = now
	return true
}

// Pending returns how long until a held-back raw level may be settled, or
// zero when the raw level matches the stable one
func (d *Debouncer) Pending(now time.Time) time.Duration {
	if d.raw == d.stable {
		return 0
	}
	wait := d.window - now.Sub(d.lastStable)
	if wait < 0 {
		return 0
	}
	return wait
}

// Stable returns the last accepted level
func (d *Debouncer) Stable() bool {
	return d.stable
}
