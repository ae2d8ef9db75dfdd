// Package config loads flowd's YAML configuration, grounded on the
// teacher's internal/config.go: a plain yaml-tagged struct populated by
// gopkg.in/yaml.v3 with a LoadConfig function that fills in defaults for
// anything left zero.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config is flowd's top-level configuration.
type Config struct {
	Listen  ListenConfig  `yaml:"listen"`
	Limits  LimitsConfig  `yaml:"limits"`
	Wire    WireConfig    `yaml:"wire"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ListenConfig names the address flowd binds for inbound connections.
type ListenConfig struct {
	Addr string `yaml:"addr"`
}

// LimitsConfig holds override fields for the admission-control constants
// of §5. They are parsed but not applied: flowd's listener and connections
// always use flow.MaxConnections and flow.MaxRequests, whatever these
// fields hold.
type LimitsConfig struct {
	MaxConnections int64 `yaml:"max_connections"`
	MaxRequests    int64 `yaml:"max_requests"`
}

// WireConfig controls handshake feature negotiation and frame limits.
type WireConfig struct {
	EnableChecksum bool   `yaml:"enable_checksum"`
	MaxPayload     uint32 `yaml:"max_payload"`
}

// MetricsConfig controls the optional /metrics HTTP endpoint.
type MetricsConfig struct {
	Enable bool   `yaml:"enable"`
	Addr   string `yaml:"addr"`
}

// LoadConfig reads and parses the YAML file at path, applying defaults for
// any field left unset.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	applyDefaults(&c)
	return &c, nil
}

func applyDefaults(c *Config) {
	if c.Listen.Addr == "" {
		c.Listen.Addr = "127.0.0.1:4500"
	}
	if c.Wire.MaxPayload == 0 {
		c.Wire.MaxPayload = 64 << 20
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = "127.0.0.1:9500"
	}
}
