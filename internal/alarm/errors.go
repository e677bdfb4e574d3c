package alarm

import (
	"errors"
	"fmt"
)

// Result is the outcome of a controller operation
type Result string

const (
	ResultAccepted         Result = "accepted"
	ResultAlreadySet       Result = "already_set"
	ResultAlreadyArming    Result = "already_arming"
	ResultDisabled         Result = "disabled"
	ResultArmingLocked     Result = "arming_locked"
	ResultNotArmed         Result = "not_armed"
	ResultStillArming      Result = "still_arming"
	ResultAlreadyTriggered Result = "already_triggered"
	ResultTriggered        Result = "triggered"
	ResultInvalidMode      Result = "invalid_mode"
	ResultClosed           Result = "closed"
)

// Acknowledged reports whether a remote caller should treat r as success
func (r Result) Acknowledged() bool {
	switch r {
	case ResultAccepted, ResultAlreadySet, ResultAlreadyArming:
		return true
	}
	return false
}

var (
	ErrDisabled         = errors.New("mode disabled")
	ErrAlreadySet       = errors.New("mode already set")
	ErrAlreadyArming    = errors.New("already arming")
	ErrNotArmed         = errors.New("not armed")
	ErrStillArming      = errors.New("still arming")
	ErrAlreadyTriggered = errors.New("already triggered")
	ErrTriggered        = errors.New("alarm triggered")
	ErrArmingLocked     = errors.New("arming locked")
	ErrInvalidMode      = errors.New("invalid mode")
	ErrClosed           = errors.New("controller closed")
)

var resultErrors = map[Result]error{
	ResultAlreadySet:       ErrAlreadySet,
	ResultAlreadyArming:    ErrAlreadyArming,
	ResultDisabled:         ErrDisabled,
	ResultArmingLocked:     ErrArmingLocked,
	ResultNotArmed:         ErrNotArmed,
	ResultStillArming:      ErrStillArming,
	ResultAlreadyTriggered: ErrAlreadyTriggered,
	ResultTriggered:        ErrTriggered,
	ResultInvalidMode:      ErrInvalidMode,
	ResultClosed:           ErrClosed,
}

// StateError reports an operation that was rejected, or had nothing to do,
// because of the current controller state.
type StateError struct {
	Result  Result
	Mode    Mode
	Message string
}

func (e *StateError) Error() string {
	if e.Mode == "" {
		return fmt.Sprintf("state error [%s]: %s", e.Result, e.Message)
	}
	return fmt.Sprintf("state error [%s] %s: %s", e.Result, e.Mode, e.Message)
}

// Unwrap returns the sentinel error for the result so callers can use errors.Is
func (e *StateError) Unwrap() error {
	return resultErrors[e.Result]
}

func newStateError(r Result, mode Mode, format string, args ...any) *StateError {
	return &StateError{
		Result:  r,
		Mode:    mode,
		Message: fmt.Sprintf(format, args...),
	}
}
