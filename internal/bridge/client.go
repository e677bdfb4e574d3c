package bridge

import (
	"fmt"
	"time"

	"securitysystem/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	connectTimeout    = 10 * time.Second
	disconnectQuiesce = 250 // milliseconds

	payloadOnline  = "online"
	payloadOffline = "offline"
)

// Conn is the subset of an MQTT client the bridge uses
type Conn interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
	IsConnected() bool
	Disconnect()
}

// pahoConn adapts a paho client to Conn
type pahoConn struct {
	client mqtt.Client
}

func (p *pahoConn) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	return token.Error()
}

func (p *pahoConn) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	token := p.client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("subscribe to %s timed out", topic)
	}
	return token.Error()
}

func (p *pahoConn) IsConnected() bool {
	return p.client.IsConnected()
}

func (p *pahoConn) Disconnect() {
	p.client.Disconnect(disconnectQuiesce)
}

// Connect dials the broker and returns a bridge bound to it. The broker
// marks the bridge offline through the last will when the connection drops.
// On every (re)connect the bridge announces itself, republishes discovery
// and restores its subscription.
func Connect(cfg config.MQTTConfig, logger *zap.Logger) (*Bridge, error) {
	b := newBridge(cfg, logger)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	// handlers publish and wait, which deadlocks with ordered delivery
	opts.SetOrderMatters(false)
	opts.SetWill(b.topics.availability, payloadOffline, byte(cfg.QoS), true)

	opts.SetOnConnectHandler(func(mqtt.Client) {
		b.logger.Info("Connected to MQTT broker", zap.String("broker", cfg.Broker))
		go b.onConnect()
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		b.logger.Warn("MQTT connection lost", zap.Error(err))
	})

	client := mqtt.NewClient(opts)
	b.conn = &pahoConn{client: client}

	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connecting to %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.Broker, err)
	}

	return b, nil
}
