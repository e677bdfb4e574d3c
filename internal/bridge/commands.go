package bridge

import (
	"errors"
	"strings"

	"securitysystem/internal/alarm"

	"go.uber.org/zap"
)

// Payloads accepted on the set topic
const (
	CommandArmHome  = "ARM_HOME"
	CommandArmAway  = "ARM_AWAY"
	CommandArmNight = "ARM_NIGHT"
	CommandDisarm   = "DISARM"
	CommandTrigger  = "TRIGGER"
	CommandPause    = "PAUSE"
	CommandResume   = "RESUME"
)

// ParseCommand converts a set-topic payload into a controller command.
// Every bridge command has remote origin.
func ParseCommand(payload string) (alarm.Command, bool) {
	cmd := alarm.Command{Origin: alarm.OriginRemote}

	switch strings.ToUpper(strings.TrimSpace(payload)) {
	case CommandArmHome:
		cmd.Kind = alarm.CommandArmHome
	case CommandArmAway:
		cmd.Kind = alarm.CommandArmAway
	case CommandArmNight:
		cmd.Kind = alarm.CommandArmNight
	case CommandDisarm:
		cmd.Kind = alarm.CommandDisarm
	case CommandTrigger:
		cmd.Kind = alarm.CommandTrigger
		cmd.Value = true
	case CommandPause:
		cmd.Kind = alarm.CommandSetPause
		cmd.Value = true
	case CommandResume:
		cmd.Kind = alarm.CommandSetPause
		cmd.Value = false
	default:
		return cmd, false
	}
	return cmd, true
}

func (b *Bridge) handleCommand(topic string, payload []byte) {
	cmd, ok := ParseCommand(string(payload))
	if !ok {
		b.logger.Warn("Unknown command",
			zap.String("topic", topic),
			zap.String("payload", string(payload)))
		return
	}

	b.mu.Lock()
	exec := b.exec
	b.mu.Unlock()
	if exec == nil {
		return
	}

	res, err := exec.Execute(cmd)
	if err != nil && !res.Acknowledged() {
		var se *alarm.StateError
		if errors.As(err, &se) {
			b.logger.Info("Command rejected",
				zap.String("command", string(cmd.Kind)),
				zap.String("result", string(res)))
		} else {
			b.logger.Error("Command failed",
				zap.String("command", string(cmd.Kind)),
				zap.Error(err))
		}

		// republish so the panel reverts any optimistic state
		b.mu.Lock()
		last := b.last
		b.mu.Unlock()
		if last != nil {
			if err := b.publishState(*last); err != nil {
				b.logger.Error("Failed to republish state", zap.Error(err))
			}
		}
		return
	}

	b.logger.Info("Command executed",
		zap.String("command", string(cmd.Kind)),
		zap.String("result", string(res)))
}
