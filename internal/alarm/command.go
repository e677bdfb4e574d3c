package alarm

import "fmt"

// CommandKind identifies a controller operation
type CommandKind string

const (
	CommandArmHome        CommandKind = "arm_home"
	CommandArmAway        CommandKind = "arm_away"
	CommandArmNight       CommandKind = "arm_night"
	CommandDisarm         CommandKind = "disarm"
	CommandTrigger        CommandKind = "trigger"
	CommandSetPause       CommandKind = "set_pause"
	CommandSetArmingDelay CommandKind = "set_arming_delay"
)

// Command is an origin-tagged request from any input source.
// Value is the sensor state for CommandTrigger and the flag for
// CommandSetPause and CommandSetArmingDelay.
type Command struct {
	Kind   CommandKind
	Origin Origin
	Delay  *bool
	Value  bool
}

var armCommands = map[CommandKind]Mode{
	CommandArmHome:  ModeHome,
	CommandArmAway:  ModeAway,
	CommandArmNight: ModeNight,
	CommandDisarm:   ModeOff,
}

// Execute maps a command onto the matching operation
func (c *Controller) Execute(cmd Command) (Result, error) {
	if mode, ok := armCommands[cmd.Kind]; ok {
		return c.SetTargetMode(mode, cmd.Origin, cmd.Delay)
	}

	switch cmd.Kind {
	case CommandTrigger:
		return c.TriggerSensor(cmd.Value, cmd.Origin, cmd.Delay)
	case CommandSetPause:
		return c.SetPause(cmd.Value, cmd.Origin)
	case CommandSetArmingDelay:
		c.SetArmingDelayEnabled(cmd.Value)
		return ResultAccepted, nil
	}
	return ResultInvalidMode, fmt.Errorf("unknown command %q: %w", cmd.Kind, ErrInvalidMode)
}
