// Package bridge mirrors the security system to a host automation system
// over MQTT. It publishes a Home Assistant alarm_control_panel discovery
// document, mirrors every state change and turns commands received on the
// set topic into controller commands.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"securitysystem/internal/alarm"
	"securitysystem/internal/config"

	"go.uber.org/zap"
)

// Home Assistant alarm_control_panel states
const (
	StateDisarmed   = "disarmed"
	StateArmedHome  = "armed_home"
	StateArmedAway  = "armed_away"
	StateArmedNight = "armed_night"
	StateArming     = "arming"
	StatePending    = "pending"
	StateTriggered  = "triggered"
)

// Executor runs a controller command
type Executor interface {
	Execute(cmd alarm.Command) (alarm.Result, error)
}

type topics struct {
	state        string
	current      string
	target       string
	set          string
	availability string
	signalPrefix string
	discovery    string
}

func newTopics(cfg config.MQTTConfig) topics {
	p := strings.TrimRight(cfg.TopicPrefix, "/")
	return topics{
		state:        p + "/state",
		current:      p + "/current",
		target:       p + "/target",
		set:          p + "/set",
		availability: p + "/availability",
		signalPrefix: p + "/signal/",
		discovery:    fmt.Sprintf("%s/alarm_control_panel/%s/config", cfg.DiscoveryPrefix, cfg.ClientID),
	}
}

// Bridge is the MQTT collaborator. It implements effects.Collaborator and
// effects.SignalHandler.
type Bridge struct {
	cfg    config.MQTTConfig
	topics topics
	logger *zap.Logger
	conn   Conn

	mu   sync.Mutex
	exec Executor
	last *alarm.Snapshot
}

func newBridge(cfg config.MQTTConfig, logger *zap.Logger) *Bridge {
	return &Bridge{
		cfg:    cfg,
		topics: newTopics(cfg),
		logger: logger.Named("mqtt"),
	}
}

// New creates a bridge on an existing connection
func New(cfg config.MQTTConfig, conn Conn, logger *zap.Logger) *Bridge {
	b := newBridge(cfg, logger)
	b.conn = conn
	return b
}

func (b *Bridge) qos() byte {
	return byte(b.cfg.QoS)
}

// Attach routes commands from the set topic to exec and announces the
// bridge. initial is published as the first state.
func (b *Bridge) Attach(exec Executor, initial alarm.Snapshot) error {
	b.mu.Lock()
	b.exec = exec
	b.last = &initial
	b.mu.Unlock()

	if !b.conn.IsConnected() {
		// onConnect announces once the connection comes up
		return nil
	}
	return b.announce()
}

func (b *Bridge) onConnect() {
	b.mu.Lock()
	attached := b.exec != nil
	b.mu.Unlock()
	if !attached {
		return
	}
	if err := b.announce(); err != nil {
		b.logger.Error("Failed to announce bridge", zap.Error(err))
	}
}

// announce publishes availability, discovery and the last known state and
// subscribes to the set topic
func (b *Bridge) announce() error {
	if err := b.conn.Subscribe(b.topics.set, b.qos(), b.handleCommand); err != nil {
		return fmt.Errorf("subscribing to %s: %w", b.topics.set, err)
	}
	if err := b.PublishDiscovery(); err != nil {
		return err
	}
	if err := b.conn.Publish(b.topics.availability, b.qos(), true, []byte(payloadOnline)); err != nil {
		return fmt.Errorf("publishing availability: %w", err)
	}

	b.mu.Lock()
	last := b.last
	b.mu.Unlock()
	if last != nil {
		return b.publishState(*last)
	}
	return nil
}

// PublishDiscovery publishes the Home Assistant discovery document
func (b *Bridge) PublishDiscovery() error {
	payload := map[string]interface{}{
		"name":                  "Security System",
		"unique_id":             b.cfg.ClientID + "_alarm",
		"state_topic":           b.topics.current,
		"command_topic":         b.topics.set,
		"availability_topic":    b.topics.availability,
		"json_attributes_topic": b.topics.state,
		"code_arm_required":     false,
		"code_disarm_required":  false,
		"code_trigger_required": false,
		"supported_features":    []string{"arm_home", "arm_away", "arm_night", "trigger"},
		"payload_arm_home":      CommandArmHome,
		"payload_arm_away":      CommandArmAway,
		"payload_arm_night":     CommandArmNight,
		"payload_disarm":        CommandDisarm,
		"payload_trigger":       CommandTrigger,
		"device": map[string]interface{}{
			"identifiers":  []string{b.cfg.ClientID},
			"name":         "Security System",
			"manufacturer": "securitysystem",
			"model":        "Virtual Security System",
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal discovery payload: %w", err)
	}
	if err := b.conn.Publish(b.topics.discovery, b.qos(), true, data); err != nil {
		return fmt.Errorf("publishing discovery: %w", err)
	}
	return nil
}

func (b *Bridge) Name() string { return "mqtt" }

// Handle implements effects.Collaborator
func (b *Bridge) Handle(_ context.Context, ev alarm.Event) error {
	b.mu.Lock()
	snap := ev.State
	b.last = &snap
	b.mu.Unlock()

	return b.publishState(ev.State)
}

// HandleSignal implements effects.SignalHandler
func (b *Bridge) HandleSignal(_ context.Context, name string, on bool) error {
	payload := "OFF"
	if on {
		payload = "ON"
	}
	if err := b.conn.Publish(b.topics.signalPrefix+name, b.qos(), false, []byte(payload)); err != nil {
		return fmt.Errorf("publishing signal %s: %w", name, err)
	}
	return nil
}

func (b *Bridge) publishState(snap alarm.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := b.conn.Publish(b.topics.state, b.qos(), true, data); err != nil {
		return fmt.Errorf("publishing state: %w", err)
	}
	if err := b.conn.Publish(b.topics.current, b.qos(), true, []byte(CurrentState(snap))); err != nil {
		return fmt.Errorf("publishing current state: %w", err)
	}
	if err := b.conn.Publish(b.topics.target, b.qos(), true, []byte(modeState(snap.TargetMode))); err != nil {
		return fmt.Errorf("publishing target state: %w", err)
	}
	return nil
}

// CurrentState maps a snapshot onto the Home Assistant alarm panel state
func CurrentState(snap alarm.Snapshot) string {
	switch {
	case snap.CurrentMode == alarm.ModeTriggered:
		return StateTriggered
	case snap.Tripped:
		return StatePending
	case snap.Arming:
		return StateArming
	}
	return modeState(snap.CurrentMode)
}

func modeState(m alarm.Mode) string {
	switch m {
	case alarm.ModeHome:
		return StateArmedHome
	case alarm.ModeAway:
		return StateArmedAway
	case alarm.ModeNight:
		return StateArmedNight
	case alarm.ModeTriggered:
		return StateTriggered
	}
	return StateDisarmed
}

// Close marks the bridge offline and disconnects
func (b *Bridge) Close() {
	if b.conn.IsConnected() {
		if err := b.conn.Publish(b.topics.availability, b.qos(), true, []byte(payloadOffline)); err != nil {
			b.logger.Warn("Failed to publish offline status", zap.Error(err))
		}
	}
	b.conn.Disconnect()
	b.logger.Info("MQTT bridge stopped")
}
