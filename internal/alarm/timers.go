package alarm

import (
	"sort"
	"time"

	"securitysystem/internal/clock"
)

// Category names a timer slot. A TimerSet holds at most one pending timer
// per category.
type Category string

const (
	TimerArm        Category = "arm"
	TimerTrigger    Category = "trigger"
	TimerPause      Category = "pause"
	TimerReset      Category = "reset"
	TimerSirenPulse Category = "sirenPulse"
	TimerKnock      Category = "knock"
	TimerSirenClear Category = "sirenClear"
	TimerResetClear Category = "resetClear"
)

type timerSlot struct {
	timer clock.Timer
	gen   uint64
}

// TimerSet owns every pending delayed or periodic action of the controller.
// Callbacks are handed to post, which runs them on the control goroutine.
// Each slot carries a generation number; a callback whose slot has been
// cancelled or replaced in the meantime is dropped.
//
// A TimerSet is not safe for concurrent use. All methods must be called on
// the control goroutine.
type TimerSet struct {
	clock clock.Clock
	post  func(func())
	slots map[Category]timerSlot
	gen   uint64
}

// NewTimerSet creates an empty TimerSet
func NewTimerSet(c clock.Clock, post func(func())) *TimerSet {
	return &TimerSet{
		clock: c,
		post:  post,
		slots: make(map[Category]timerSlot),
	}
}

// Schedule runs fn once after d, replacing any pending timer of the category
func (ts *TimerSet) Schedule(cat Category, d time.Duration, fn func()) {
	ts.Cancel(cat)

	ts.gen++
	gen := ts.gen
	t := ts.clock.AfterFunc(d, func() {
		ts.post(func() {
			slot, ok := ts.slots[cat]
			if !ok || slot.gen != gen {
				return
			}
			delete(ts.slots, cat)
			fn()
		})
	})
	ts.slots[cat] = timerSlot{timer: t, gen: gen}
}

// Every runs fn each interval until the category is cancelled
func (ts *TimerSet) Every(cat Category, interval time.Duration, fn func()) {
	var tick func()
	tick = func() {
		ts.Schedule(cat, interval, tick)
		fn()
	}
	ts.Schedule(cat, interval, tick)
}

// Cancel stops the pending timer of the category, if any
func (ts *TimerSet) Cancel(cat Category) {
	if slot, ok := ts.slots[cat]; ok {
		slot.timer.Stop()
		delete(ts.slots, cat)
	}
}

// CancelAll stops every pending timer
func (ts *TimerSet) CancelAll() {
	for cat := range ts.slots {
		ts.Cancel(cat)
	}
}

// Pending reports whether the category has a pending timer
func (ts *TimerSet) Pending(cat Category) bool {
	_, ok := ts.slots[cat]
	return ok
}

// Categories returns the categories with a pending timer, sorted by name
func (ts *TimerSet) Categories() []Category {
	cats := make([]Category, 0, len(ts.slots))
	for cat := range ts.slots {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	return cats
}
