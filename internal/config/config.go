// Package config loads the stack configuration from YAML using viper.
package config

import (
	"fmt"
	"net"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"firestige.xyz/ipstack/internal/header"
	"firestige.xyz/ipstack/internal/log"
)

// Config is the top-level configuration.
type Config struct {
	Interface string        `mapstructure:"interface" yaml:"interface"`
	Capture   CaptureConfig `mapstructure:"capture" yaml:"capture"`
	Addresses AddressConfig `mapstructure:"addresses" yaml:"addresses"`
	Log       log.Config    `mapstructure:"log" yaml:"log"`
	Metrics   MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// CaptureConfig selects and tunes the capture driver. Driver-specific
// settings live in Options and are decoded by the driver itself.
type CaptureConfig struct {
	Driver      string                 `mapstructure:"driver" yaml:"driver"`
	SnapLen     int                    `mapstructure:"snap_len" yaml:"snap_len"`
	Promiscuous bool                   `mapstructure:"promiscuous" yaml:"promiscuous"`
	TimeoutMs   int                    `mapstructure:"timeout_ms" yaml:"timeout_ms"`
	BPFFilter   string                 `mapstructure:"bpf_filter" yaml:"bpf_filter"`
	Options     map[string]interface{} `mapstructure:"options" yaml:"options,omitempty"`
}

// AddressConfig carries the host's protocol addresses. The MAC is read from
// the interface unless overridden; the IPv6 link-local address is always
// derived from the MAC.
type AddressConfig struct {
	IPv4 string `mapstructure:"ipv4" yaml:"ipv4"`
	MAC  string `mapstructure:"mac" yaml:"mac,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// Load reads the configuration file at path. Missing keys fall back to
// defaults; a missing file is an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("capture.driver", "pcap")
	v.SetDefault("capture.snap_len", 65535)
	v.SetDefault("capture.promiscuous", true)
	v.SetDefault("capture.timeout_ms", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pattern", "%time [%level] %field %msg\n")
	v.SetDefault("log.time", "2006-01-02 15:04:05")
	v.SetDefault("metrics.listen", "127.0.0.1:9345")
	v.SetDefault("metrics.path", "/metrics")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Interface == "" {
		return fmt.Errorf("interface must be set")
	}
	if _, err := c.HostIPv4(); err != nil {
		return err
	}
	if c.Addresses.MAC != "" {
		if _, err := net.ParseMAC(c.Addresses.MAC); err != nil {
			return fmt.Errorf("invalid mac %q: %w", c.Addresses.MAC, err)
		}
	}
	return nil
}

// HostIPv4 parses the configured IPv4 address.
func (c *Config) HostIPv4() (header.IPv4Address, error) {
	ip := net.ParseIP(c.Addresses.IPv4)
	if ip == nil || ip.To4() == nil {
		return header.IPv4Address{}, fmt.Errorf("invalid ipv4 address %q", c.Addresses.IPv4)
	}
	return header.IPv4AddressFrom(ip.To4()), nil
}

// HostMAC returns the configured MAC override, or false if the interface MAC
// should be used.
func (c *Config) HostMAC() (header.MACAddress, bool) {
	if c.Addresses.MAC == "" {
		return header.MACAddress{}, false
	}
	hw, err := net.ParseMAC(c.Addresses.MAC)
	if err != nil || len(hw) != 6 {
		return header.MACAddress{}, false
	}
	var mac header.MACAddress
	copy(mac[:], hw)
	return mac, true
}

// Dump renders the effective configuration for startup logging.
func (c *Config) Dump() string {
	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("<unprintable config: %v>", err)
	}
	return string(out)
}
