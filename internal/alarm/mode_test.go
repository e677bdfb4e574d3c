package alarm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{in: "home", want: ModeHome},
		{in: "AWAY", want: ModeAway},
		{in: " Night ", want: ModeNight},
		{in: "off", want: ModeOff},
		{in: "triggered", want: ModeTriggered},
		{in: "vacation", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMode_Predicates(t *testing.T) {
	assert.True(t, ModeOff.IsTarget())
	assert.False(t, ModeOff.IsArmed())
	assert.True(t, ModeNight.IsArmed())
	assert.False(t, ModeTriggered.IsTarget())
	assert.False(t, ModeWarning.IsTarget())
}

func TestStateError(t *testing.T) {
	err := fmt.Errorf("arming: %w", newStateError(ResultDisabled, ModeNight, "mode is disabled"))

	assert.ErrorIs(t, err, ErrDisabled)
	assert.False(t, errors.Is(err, ErrNotArmed))

	var se *StateError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, ResultDisabled, se.Result)
	assert.Contains(t, err.Error(), "night")
}

func TestResult_Acknowledged(t *testing.T) {
	assert.True(t, ResultAccepted.Acknowledged())
	assert.True(t, ResultAlreadySet.Acknowledged())
	assert.True(t, ResultAlreadyArming.Acknowledged())
	assert.False(t, ResultDisabled.Acknowledged())
	assert.False(t, ResultNotArmed.Acknowledged())
}
