package config

import "time"

// Config holds the application configuration.
type Config struct {
	Theme   string        `yaml:"theme"`
	Network NetworkConfig `yaml:"network"`
	Log     LogConfig     `yaml:"log"`
}

// NetworkConfig controls interception and the xhr client.
type NetworkConfig struct {
	// InterceptTransport enables the http.DefaultTransport interceptor.
	InterceptTransport bool          `yaml:"intercept_transport"`
	MaxBodyBytes       int64         `yaml:"max_body_bytes"`
	Timeout            time.Duration `yaml:"timeout"`
	Proxy              string        `yaml:"proxy"`
	NoProxy            string        `yaml:"no_proxy"`
	TLS                TLSConfig     `yaml:"tls"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Theme: "catppuccin-mocha",
		Network: NetworkConfig{
			InterceptTransport: true,
			MaxBodyBytes:       1 << 20,
			Timeout:            30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
