// Package auth gates the remote control surface behind a numeric access code.
package auth

import (
	"strconv"
	"strings"
	"sync"
)

// MaxFailedAttempts is the number of consecutive invalid codes tolerated
// before every further attempt is blocked.
const MaxFailedAttempts = 25

// Result is the outcome of a code check
type Result int

const (
	// Valid means the request may proceed
	Valid Result = iota
	// Required means a code is configured but none was supplied
	Required
	// Invalid means the supplied code did not match
	Invalid
	// Blocked means too many consecutive invalid codes were supplied
	Blocked
)

// String returns the message reported to remote callers
func (r Result) String() string {
	switch r {
	case Valid:
		return "Code valid"
	case Required:
		return "Code required"
	case Invalid:
		return "Code invalid"
	case Blocked:
		return "Code blocked"
	default:
		return "unknown"
	}
}

// Guard validates access codes. The failure counter lives for the whole
// process and is only reset by a successful check.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Guard struct {
	code     int
	parsed   bool
	required bool

	mu       sync.Mutex
	failures int
}

// NewGuard creates a guard for the given code. An empty code disables
// authentication. The code must already be validated as numeric.
func NewGuard(code string) *Guard {
	g := &Guard{}
	code = strings.TrimSpace(code)
	if code == "" {
		return g
	}
	g.required = true
	// config validation rejects non-numeric codes; if one slips through
	// nothing can match it
	if n, err := strconv.Atoi(code); err == nil {
		g.code = n
		g.parsed = true
	}
	return g
}

// Enabled reports whether a code is configured
func (g *Guard) Enabled() bool {
	return g.required
}

// Check validates a supplied code
func (g *Guard) Check(supplied string) Result {
	if !g.required {
		return Valid
	}

	supplied = strings.TrimSpace(supplied)
	if supplied == "" {
		return Required
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failures > MaxFailedAttempts {
		return Blocked
	}

	n, err := strconv.Atoi(supplied)
	if err != nil || !g.parsed || n != g.code {
		g.failures++
		if g.failures > MaxFailedAttempts {
			return Blocked
		}
		return Invalid
	}

	g.failures = 0
	return Valid
}

// Failures returns the current consecutive failure count
func (g *Guard) Failures() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failures
}
