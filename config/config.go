package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/alusync/errors"
	"github.com/c360/alusync/pins"
)

// Bridge backends
const (
	BackendEmulator = "emulator"
	BackendGPIO     = "gpio"
)

// Config is the complete configuration shared by the hub, bridge and panel
// binaries. Each binary reads only the sections it needs.
type Config struct {
	Hub     HubConfig     `json:"hub" yaml:"hub"`
	Client  ClientConfig  `json:"client" yaml:"client"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
	Mirror  MirrorConfig  `json:"mirror" yaml:"mirror"`
	Bridge  BridgeConfig  `json:"bridge" yaml:"bridge"`
}

// HubConfig configures the WebSocket hub
type HubConfig struct {
	Listen           string `json:"listen" yaml:"listen"`
	Path             string `json:"path" yaml:"path"`
	EventLogCapacity int    `json:"event_log_capacity" yaml:"event_log_capacity"`
	SendQueueSize    int    `json:"send_queue_size" yaml:"send_queue_size"`
	// InboundRate limits frames per second per connection, 0 disables.
	InboundRate  float64 `json:"inbound_rate" yaml:"inbound_rate"`
	InboundBurst int     `json:"inbound_burst" yaml:"inbound_burst"`
}

// ClientConfig configures a hub client (bridge or panel)
type ClientConfig struct {
	HubURL               string   `json:"hub_url" yaml:"hub_url"`
	ReconnectDelay       Duration `json:"reconnect_delay" yaml:"reconnect_delay"`
	MaxReconnectAttempts int      `json:"max_reconnect_attempts" yaml:"max_reconnect_attempts"`
	RequestTimeout       Duration `json:"request_timeout" yaml:"request_timeout"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Port    int    `json:"port" yaml:"port"`
	Path    string `json:"path" yaml:"path"`
}

// MirrorConfig configures the optional NATS event mirror
type MirrorConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	NATSURL   string `json:"nats_url" yaml:"nats_url"`
	Subject   string `json:"subject" yaml:"subject"`
	QueueSize int    `json:"queue_size" yaml:"queue_size"`
	Token     string `json:"token,omitempty" yaml:"token,omitempty"`
}

// BridgeConfig selects and configures the hardware backend
type BridgeConfig struct {
	Backend string     `json:"backend" yaml:"backend"`
	GPIO    GPIOConfig `json:"gpio" yaml:"gpio"`
}

// GPIOConfig maps pin names to BCM line numbers. Inputs are ALU inputs driven
// by the bridge; outputs are ALU outputs read back.
type GPIOConfig struct {
	Inputs  map[string]int `json:"inputs" yaml:"inputs"`
	Outputs map[string]int `json:"outputs" yaml:"outputs"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Hub: HubConfig{
			Listen:           ":5080",
			Path:             "/ws",
			EventLogCapacity: 1000,
			SendQueueSize:    64,
			InboundRate:      200,
			InboundBurst:     100,
		},
		Client: ClientConfig{
			HubURL:         "ws://localhost:5080/ws",
			ReconnectDelay: Duration(5 * time.Second),
			RequestTimeout: Duration(5 * time.Second),
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Mirror: MirrorConfig{
			NATSURL:   "nats://localhost:4222",
			Subject:   "alusync.events",
			QueueSize: 1024,
		},
		Bridge: BridgeConfig{
			Backend: BackendEmulator,
			GPIO:    DefaultGPIO(),
		},
	}
}

// DefaultGPIO returns a wiring for a Raspberry Pi 40-pin header.
func DefaultGPIO() GPIOConfig {
	return GPIOConfig{
		Inputs: map[string]int{
			"A0": 2, "A1": 3, "A2": 4, "A3": 17,
			"B0": 27, "B1": 22, "B2": 10, "B3": 9,
			"S0": 11, "S1": 5, "S2": 6, "S3": 13,
			"CN": 19, "M": 26,
		},
		Outputs: map[string]int{
			"F0": 14, "F1": 15, "F2": 18, "F3": 23,
			"P": 24, "G": 25, "AEqualsB": 8, "CN4": 7,
		},
	}
}

// Validate checks the configuration. Errors wrap errors.ErrInvalidConfig.
func (c *Config) Validate() error {
	var problems []string

	if c.Hub.Listen == "" {
		problems = append(problems, "hub.listen is required")
	}
	if !strings.HasPrefix(c.Hub.Path, "/") {
		problems = append(problems, "hub.path must start with /")
	}
	if c.Hub.EventLogCapacity < 1 {
		problems = append(problems, "hub.event_log_capacity must be at least 1")
	}
	if c.Hub.SendQueueSize < 1 {
		problems = append(problems, "hub.send_queue_size must be at least 1")
	}
	if c.Hub.InboundRate < 0 {
		problems = append(problems, "hub.inbound_rate cannot be negative")
	}
	if c.Hub.InboundRate > 0 && c.Hub.InboundBurst < 1 {
		problems = append(problems, "hub.inbound_burst must be at least 1 when inbound_rate is set")
	}

	if u, err := url.Parse(c.Client.HubURL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		problems = append(problems, "client.hub_url must be a ws:// or wss:// URL")
	}
	if c.Client.ReconnectDelay.Duration() <= 0 {
		problems = append(problems, "client.reconnect_delay must be positive")
	}
	if c.Client.MaxReconnectAttempts < 0 {
		problems = append(problems, "client.max_reconnect_attempts cannot be negative")
	}
	if c.Client.RequestTimeout.Duration() <= 0 {
		problems = append(problems, "client.request_timeout must be positive")
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		problems = append(problems, "metrics.port must be between 1 and 65535")
	}

	if c.Mirror.Enabled {
		if !strings.HasPrefix(c.Mirror.NATSURL, "nats://") && !strings.HasPrefix(c.Mirror.NATSURL, "tls://") {
			problems = append(problems, "mirror.nats_url must be a nats:// or tls:// URL")
		}
		if c.Mirror.Subject == "" || strings.ContainsAny(c.Mirror.Subject, " \t*>") {
			problems = append(problems, "mirror.subject must be a literal NATS subject")
		}
	}

	switch c.Bridge.Backend {
	case BackendEmulator:
	case BackendGPIO:
		problems = append(problems, c.Bridge.GPIO.validate()...)
	default:
		problems = append(problems, fmt.Sprintf("bridge.backend %q is not one of emulator, gpio", c.Bridge.Backend))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", errors.ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func (g GPIOConfig) validate() []string {
	var problems []string
	used := make(map[int]string)
	check := func(kind, name string, line int) {
		if line < 0 || line > 27 {
			problems = append(problems, fmt.Sprintf("bridge.gpio.%s.%s: BCM line %d out of range", kind, name, line))
			return
		}
		if other, dup := used[line]; dup {
			problems = append(problems, fmt.Sprintf("bridge.gpio.%s.%s: BCM line %d already used by %s", kind, name, line, other))
			return
		}
		used[line] = name
	}

	for _, name := range pins.InputPins {
		line, ok := g.Inputs[name]
		if !ok {
			problems = append(problems, fmt.Sprintf("bridge.gpio.inputs.%s is not mapped", name))
			continue
		}
		check("inputs", name, line)
	}
	for _, name := range pins.OutputPins {
		line, ok := g.Outputs[name]
		if !ok {
			problems = append(problems, fmt.Sprintf("bridge.gpio.outputs.%s is not mapped", name))
			continue
		}
		check("outputs", name, line)
	}
	return problems
}

// String returns an indented JSON representation of the config
func (c *Config) String() string {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

// Duration is a time.Duration that reads and writes as a Go duration string
// ("5s", "250ms") in both JSON and YAML. JSON numbers are taken as nanoseconds.
type Duration time.Duration

// Duration returns the value as a time.Duration
func (d Duration) Duration() time.Duration { return time.Duration(d) }

// MarshalJSON implements json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		*d = Duration(parsed)
		return nil
	default:
		return fmt.Errorf("invalid duration %s", string(data))
	}
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q at line %d: %w", node.Value, node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}
