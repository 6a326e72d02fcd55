package config

import "time"

// Config holds client configuration values.
type Config struct {
	StreamURL  string `mapstructure:"stream_url" yaml:"stream_url"`
	APIBaseURL string `mapstructure:"api_base_url" yaml:"api_base_url"`
	StateDir   string `mapstructure:"state_dir" yaml:"state_dir"`
	LogLevel   string `mapstructure:"log_level" yaml:"log_level"`

	ReconnectBaseDelay time.Duration `mapstructure:"reconnect_base_delay" yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `mapstructure:"reconnect_max_delay" yaml:"reconnect_max_delay"`
	HeartbeatInterval  time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		StreamURL:          "ws://localhost:8080/ws",
		APIBaseURL:         "http://localhost:8080/api",
		StateDir:           ".wirechat",
		LogLevel:           "info",
		ReconnectBaseDelay: time.Second,
		ReconnectMaxDelay:  30 * time.Second,
		HeartbeatInterval:  30 * time.Second,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.StreamURL != "" {
		c.StreamURL = other.StreamURL
	}
	if other.APIBaseURL != "" {
		c.APIBaseURL = other.APIBaseURL
	}
	if other.StateDir != "" {
		c.StateDir = other.StateDir
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.ReconnectBaseDelay != 0 {
		c.ReconnectBaseDelay = other.ReconnectBaseDelay
	}
	if other.ReconnectMaxDelay != 0 {
		c.ReconnectMaxDelay = other.ReconnectMaxDelay
	}
	if other.HeartbeatInterval != 0 {
		c.HeartbeatInterval = other.HeartbeatInterval
	}
}
