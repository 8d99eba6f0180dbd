package avalon

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"stargo/pkg/stargo"
)

type MQTTConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Host      string `json:"host" yaml:"host"` // broker URL, e.g. tcp://localhost:1883
	Username  string `json:"username" yaml:"username"`
	Password  string `json:"password" yaml:"password"`
	TopicRoot string `json:"topic_root" yaml:"topic_root"`
}

// Config is the persisted driver configuration. It is applied on connect.
type Config struct {
	SerialPort   string  `json:"serial_port" yaml:"serial_port"`
	BaudRate     int     `json:"baud_rate" yaml:"baud_rate"`
	Simulate     bool    `json:"simulate" yaml:"simulate"`
	RequestDelay int     `json:"request_delay" yaml:"request_delay"` // milliseconds
	PollInterval int     `json:"poll_interval" yaml:"poll_interval"` // milliseconds
	PulseGuiding bool    `json:"pulse_guiding" yaml:"pulse_guiding"`
	SyncLocation bool    `json:"sync_location" yaml:"sync_location"` // push the site below on connect
	Latitude     float64 `json:"latitude" yaml:"latitude"`
	Longitude    float64 `json:"longitude" yaml:"longitude"` // east positive

	MQTT MQTTConfig `json:"mqtt" yaml:"mqtt"`
}

const minPollInterval = 100

var defaultConfig = Config{
	SerialPort:   "/dev/ttyUSB0",
	BaudRate:     9600,
	RequestDelay: int(stargo.DefaultRequestDelay / time.Millisecond),
	PollInterval: 1000,
	MQTT: MQTTConfig{
		Host:      "tcp://localhost:1883",
		TopicRoot: "stargo",
	},
}

// DefaultConfig returns the configuration written on first start.
func DefaultConfig() Config {
	return defaultConfig
}

func (c Config) requestDelay() time.Duration {
	return time.Duration(c.RequestDelay) * time.Millisecond
}

func (c Config) pollInterval() time.Duration {
	return time.Duration(c.PollInterval) * time.Millisecond
}

// Validate checks the configuration for values the driver cannot use.
func (c Config) Validate() error {
	if !c.Simulate && c.SerialPort == "" {
		return fmt.Errorf("serial port cannot be empty")
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate: %d", c.BaudRate)
	}
	if c.requestDelay() < 0 || c.requestDelay() > stargo.MaxRequestDelay {
		return fmt.Errorf("request delay %d ms outside [0, %d]", c.RequestDelay, stargo.MaxRequestDelay.Milliseconds())
	}
	if c.PollInterval < minPollInterval {
		return fmt.Errorf("poll interval must be at least %d ms", minPollInterval)
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("invalid latitude: %v", c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("invalid longitude: %v", c.Longitude)
	}
	if c.MQTT.Enabled && c.MQTT.Host == "" {
		return fmt.Errorf("MQTT host cannot be empty")
	}
	return nil
}

// LoadConfigFile reads a YAML seed file. Keys missing from the file keep
// their default values.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config in %s: %w", path, err)
	}
	return cfg, nil
}
