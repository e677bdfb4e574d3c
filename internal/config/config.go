// Package config loads the security system configuration from YAML.
//
// Loading follows a fixed order: built-in defaults, then the YAML file, then
// SECURITYSYSTEM_* environment overrides, then validation. The resulting
// Config is treated as read-only by every component that receives it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure
type Config struct {
	Alarm       AlarmConfig       `yaml:"alarm"`
	Server      ServerConfig      `yaml:"server"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Audio       AudioConfig       `yaml:"audio"`
	Commands    CommandsConfig    `yaml:"commands"`
	Webhooks    WebhooksConfig    `yaml:"webhooks"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	GPIO        GPIOConfig        `yaml:"gpio"`
	Logging     LoggingConfig     `yaml:"logging"`

	// ProxyMode suppresses command and webhook effects for remote-origin
	// changes, so an external system driving the API does not get its own
	// actions echoed back.
	ProxyMode bool `yaml:"proxy_mode"`
}

// AlarmConfig holds the state machine settings
type AlarmConfig struct {
	DefaultMode       string            `yaml:"default_mode"`
	DisabledModes     []string          `yaml:"disabled_modes"`
	ArmSeconds        int               `yaml:"arm_seconds"`
	TriggerSeconds    int               `yaml:"trigger_seconds"`
	PauseMinutes      int               `yaml:"pause_minutes"` // 0 = unlimited
	ResetMinutes      int               `yaml:"reset_minutes"` // 0 = never auto-reset
	SirenPulseSeconds int               `yaml:"siren_pulse_seconds"`
	ArmingDelay       bool              `yaml:"arming_delay"`
	OverrideOff       bool              `yaml:"override_off"`
	ResetThroughOff   bool              `yaml:"reset_through_off"`
	ResetObserveOff   bool              `yaml:"reset_observe_off"`
	DoubleKnock       DoubleKnockConfig `yaml:"double_knock"`
}

// DoubleKnockConfig requires two sensor activations within a window before a
// trigger starts.
type DoubleKnockConfig struct {
	Enabled bool     `yaml:"enabled"`
	Seconds int      `yaml:"seconds"`
	Modes   []string `yaml:"modes"` // empty = every armed mode
}

// ServerConfig contains the HTTP control API settings
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	// Code is the numeric access code; empty disables authentication.
	Code string `yaml:"code"`
}

// PersistenceConfig contains the state store settings
type PersistenceConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// AudioConfig contains audio playback settings
type AudioConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Player       string   `yaml:"player"`
	PlayerArgs   []string `yaml:"player_args"`
	SoundsDir    string   `yaml:"sounds_dir"`
	Language     string   `yaml:"language"`
	Volume       int      `yaml:"volume"`
	ArmingLooped bool     `yaml:"arming_looped"`
	AlertLooped  bool     `yaml:"alert_looped"`
}

// CommandsConfig maps events to shell commands. Keys of Target are target
// modes; keys of Current are current modes plus "warning".
type CommandsConfig struct {
	TimeoutSeconds int               `yaml:"timeout_seconds"`
	Target         map[string]string `yaml:"target"`
	Current        map[string]string `yaml:"current"`
}

// WebhooksConfig maps events to URL paths appended to BaseURL
type WebhooksConfig struct {
	BaseURL        string            `yaml:"base_url"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
	Target         map[string]string `yaml:"target"`
	Current        map[string]string `yaml:"current"`
}

// MQTTConfig contains the host automation bridge settings
type MQTTConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Broker          string `yaml:"broker"`
	ClientID        string `yaml:"client_id"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	TopicPrefix     string `yaml:"topic_prefix"`
	DiscoveryPrefix string `yaml:"discovery_prefix"`
	QoS             int    `yaml:"qos"`
}

// InfluxDBConfig contains transition history settings
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// GPIOConfig maps local input lines to sensor activations
type GPIOConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Chip           string        `yaml:"chip"`
	DebounceMillis int           `yaml:"debounce_millis"`
	Inputs         []InputConfig `yaml:"inputs"`
}

// InputConfig describes one GPIO input line
type InputConfig struct {
	Name     string `yaml:"name"`
	Line     int    `yaml:"line"`
	PullUp   bool   `yaml:"pullup"`
	Inverted bool   `yaml:"inverted"`
	// Mode restricts the input to a single armed mode (siren switch
	// semantics). Empty means the input is the main trigger sensor.
	Mode string `yaml:"mode"`
}

// LoggingConfig contains logger settings
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Load reads the configuration file at path.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with defaults applied
func Default() *Config {
	return &Config{
		Alarm: AlarmConfig{
			DefaultMode:       "off",
			ArmSeconds:        0,
			TriggerSeconds:    0,
			PauseMinutes:      0,
			ResetMinutes:      10,
			SirenPulseSeconds: 5,
			ArmingDelay:       true,
			DoubleKnock: DoubleKnockConfig{
				Seconds: 90,
			},
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Persistence: PersistenceConfig{
			Path: "./data/securitysystem.db",
		},
		Audio: AudioConfig{
			Player:     "ffplay",
			PlayerArgs: []string{"-loglevel", "error", "-nodisp", "-autoexit"},
			SoundsDir:  "./sounds",
			Language:   "en-US",
			Volume:     100,
		},
		Commands: CommandsConfig{
			TimeoutSeconds: 30,
		},
		Webhooks: WebhooksConfig{
			TimeoutSeconds: 10,
		},
		MQTT: MQTTConfig{
			Broker:          "tcp://localhost:1883",
			ClientID:        "securitysystem",
			TopicPrefix:     "securitysystem",
			DiscoveryPrefix: "homeassistant",
			QoS:             1,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		GPIO: GPIOConfig{
			Chip:           "gpiochip0",
			DebounceMillis: 100,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// applyEnvOverrides applies SECURITYSYSTEM_SECTION_KEY overrides
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SECURITYSYSTEM_SERVER_CODE"); v != "" {
		cfg.Server.Code = v
	}
	if v := os.Getenv("SECURITYSYSTEM_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SECURITYSYSTEM_PERSISTENCE_PATH"); v != "" {
		cfg.Persistence.Path = v
	}
	if v := os.Getenv("SECURITYSYSTEM_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
	if v := os.Getenv("SECURITYSYSTEM_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("SECURITYSYSTEM_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
	if v := os.Getenv("SECURITYSYSTEM_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("SECURITYSYSTEM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

var (
	targetModes = map[string]bool{"home": true, "away": true, "night": true, "off": true}
	armedModes  = map[string]bool{"home": true, "away": true, "night": true}
)

// Validate checks the configuration and returns every problem found
func (c *Config) Validate() error {
	var errs []string

	a := c.Alarm
	if !targetModes[strings.ToLower(a.DefaultMode)] {
		errs = append(errs, fmt.Sprintf("alarm.default_mode %q must be one of home, away, night, off", a.DefaultMode))
	}
	for _, m := range a.DisabledModes {
		if !armedModes[strings.ToLower(m)] {
			errs = append(errs, fmt.Sprintf("alarm.disabled_modes: %q cannot be disabled", m))
		}
		if strings.EqualFold(m, a.DefaultMode) {
			errs = append(errs, fmt.Sprintf("alarm.default_mode %q is disabled", m))
		}
	}
	if a.ArmSeconds < 0 || a.TriggerSeconds < 0 || a.PauseMinutes < 0 || a.ResetMinutes < 0 || a.SirenPulseSeconds < 0 {
		errs = append(errs, "alarm delays must not be negative")
	}
	if a.DoubleKnock.Enabled {
		if a.DoubleKnock.Seconds <= 0 {
			errs = append(errs, "alarm.double_knock.seconds must be positive")
		}
		for _, m := range a.DoubleKnock.Modes {
			if !armedModes[strings.ToLower(m)] {
				errs = append(errs, fmt.Sprintf("alarm.double_knock.modes: unknown mode %q", m))
			}
		}
	}

	if c.Server.Enabled {
		if c.Server.Port < 1 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be between 1 and 65535")
		}
		if c.Server.Code != "" {
			if _, err := strconv.Atoi(c.Server.Code); err != nil {
				errs = append(errs, "server.code must be numeric")
			}
		}
	}

	if c.Persistence.Enabled && c.Persistence.Path == "" {
		errs = append(errs, "persistence.path is required")
	}

	if c.Audio.Enabled && c.Audio.Player == "" {
		errs = append(errs, "audio.player is required")
	}

	for key := range c.Commands.Target {
		if !targetModes[key] {
			errs = append(errs, fmt.Sprintf("commands.target: unknown mode %q", key))
		}
	}
	for key := range c.Commands.Current {
		if !targetModes[key] && key != "triggered" && key != "warning" {
			errs = append(errs, fmt.Sprintf("commands.current: unknown mode %q", key))
		}
	}
	if c.Commands.TimeoutSeconds <= 0 {
		errs = append(errs, "commands.timeout_seconds must be positive")
	}
	if c.Webhooks.TimeoutSeconds <= 0 {
		errs = append(errs, "webhooks.timeout_seconds must be positive")
	}
	if len(c.Webhooks.Target)+len(c.Webhooks.Current) > 0 && c.Webhooks.BaseURL == "" {
		errs = append(errs, "webhooks.base_url is required when webhooks are configured")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			errs = append(errs, "mqtt.broker is required")
		}
		if c.MQTT.TopicPrefix == "" {
			errs = append(errs, "mqtt.topic_prefix is required")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required")
	}

	if c.GPIO.Enabled {
		seen := make(map[int]bool)
		for _, in := range c.GPIO.Inputs {
			if in.Name == "" {
				errs = append(errs, "gpio.inputs: name is required")
			}
			if seen[in.Line] {
				errs = append(errs, fmt.Sprintf("gpio.inputs: line %d used twice", in.Line))
			}
			seen[in.Line] = true
			if in.Mode != "" && !armedModes[strings.ToLower(in.Mode)] {
				errs = append(errs, fmt.Sprintf("gpio.inputs: %s has unknown mode %q", in.Name, in.Mode))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ArmDelay returns the configured arm delay
func (a AlarmConfig) ArmDelay() time.Duration {
	return time.Duration(a.ArmSeconds) * time.Second
}

// TriggerDelay returns the configured trigger delay
func (a AlarmConfig) TriggerDelay() time.Duration {
	return time.Duration(a.TriggerSeconds) * time.Second
}

// PauseDuration returns the pause length; zero means unlimited
func (a AlarmConfig) PauseDuration() time.Duration {
	return time.Duration(a.PauseMinutes) * time.Minute
}

// ResetDuration returns the auto-reset timeout; zero disables auto-reset
func (a AlarmConfig) ResetDuration() time.Duration {
	return time.Duration(a.ResetMinutes) * time.Minute
}

// SirenPulseInterval returns the siren pulse period
func (a AlarmConfig) SirenPulseInterval() time.Duration {
	return time.Duration(a.SirenPulseSeconds) * time.Second
}

// KnockWindow returns the double knock window
func (a AlarmConfig) KnockWindow() time.Duration {
	return time.Duration(a.DoubleKnock.Seconds) * time.Second
}

// Timeout returns the command timeout
func (c CommandsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Timeout returns the webhook request timeout
func (c WebhooksConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Debounce returns the input debounce window
func (c GPIOConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMillis) * time.Millisecond
}
