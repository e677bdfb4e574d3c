// Package alarm implements the security system state machine.
//
// A Controller tracks the requested (target) and actual (current) mode of a
// virtual security system. Arming, triggering, pausing and auto-reset are
// driven by timers owned by a TimerSet. Every operation and every timer
// callback runs on a single control goroutine, so controller state is never
// shared between goroutines.
package alarm

import (
	"fmt"
	"strings"
)

// Mode is a security system mode
type Mode string

const (
	ModeHome      Mode = "home"
	ModeAway      Mode = "away"
	ModeNight     Mode = "night"
	ModeOff       Mode = "off"
	ModeTriggered Mode = "triggered"

	// ModeWarning is never a current or target mode. It names the
	// pre-trigger alert window for effects.
	ModeWarning Mode = "warning"
)

// TargetModes lists the modes that may be requested, in display order
var TargetModes = []Mode{ModeHome, ModeAway, ModeNight, ModeOff}

// ParseMode converts a wire name into a Mode. Names are case-insensitive.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case ModeHome, ModeAway, ModeNight, ModeOff, ModeTriggered, ModeWarning:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// IsTarget reports whether m may be requested as a target mode
func (m Mode) IsTarget() bool {
	switch m {
	case ModeHome, ModeAway, ModeNight, ModeOff:
		return true
	}
	return false
}

// IsArmed reports whether m is one of the armed modes
func (m Mode) IsArmed() bool {
	return m == ModeHome || m == ModeAway || m == ModeNight
}

func (m Mode) String() string {
	return string(m)
}

// Origin tags where a command came from. Collaborators use it to suppress
// effects that the remote side already performs itself.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)
