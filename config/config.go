package config

import (
	"fmt"
	"gopkg.in/yaml.v3"
	"os"
	"strings"
)

// Default venue endpoints. The venue runs separate mainnet and testnet
// clusters with the same API surface.
const (
	MainnetAPIURL = "https://api.hyperliquid.xyz"
	TestnetAPIURL = "https://api.hyperliquid-testnet.xyz"
	MainnetWsURL  = "wss://api.hyperliquid.xyz/ws"
	TestnetWsURL  = "wss://api.hyperliquid-testnet.xyz/ws"
)

type Config struct {
	Hyperflow HyperflowConfig `yaml:"hyperflow"`
	Venue     VenueConfig     `yaml:"venue"`
	Account   AccountConfig   `yaml:"account"`
	Transport TransportConfig `yaml:"transport"`
	Stream    StreamConfig    `yaml:"stream"`
	Channels  ChannelsConfig  `yaml:"channels"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type HyperflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// VenueConfig selects the venue cluster. Explicit URLs win over the
// network shorthand.
type VenueConfig struct {
	Network string `yaml:"network"` // "mainnet" or "testnet"
	APIURL  string `yaml:"api_url"`
	WsURL   string `yaml:"ws_url"`
}

// AccountConfig carries the trading account identity. The signing key is
// never read from YAML; it comes from the environment variable named in
// PrivateKeyEnv (default HYPERFLOW_PRIVATE_KEY).
type AccountConfig struct {
	Address       string `yaml:"address"`
	PrivateKeyEnv string `yaml:"private_key_env"`
}

type TransportConfig struct {
	TimeoutMs int             `yaml:"timeout_ms"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type StreamConfig struct {
	ReconnectDelayMs int `yaml:"reconnect_delay_ms"`
	PingIntervalMs   int `yaml:"ping_interval_ms"`
	WriteTimeoutMs   int `yaml:"write_timeout_ms"`
}

type ChannelsConfig struct {
	SubscriberBuffer int `yaml:"subscriber_buffer"`
}

type LoggingConfig struct {
	Level         string                 `yaml:"level"`
	Format        string                 `yaml:"format"`
	Output        string                 `yaml:"output"`
	MaxAge        int                    `yaml:"max_age"`
	Fields        map[string]interface{} `yaml:"fields"`
	DashboardName string                 `yaml:"dashboard_name"`
}

type MetricsConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Region           string `yaml:"region"`
	Namespace        string `yaml:"namespace"`
	ReportIntervalMs int    `yaml:"report_interval_ms"`
}

func LoadConfig(path string) (*Config, error) {
	// Read configuration file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Account: AccountConfig{
			PrivateKeyEnv: "HYPERFLOW_PRIVATE_KEY",
		},
		Transport: TransportConfig{
			TimeoutMs: 10000,
			RateLimit: RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5},
		},
		Stream: StreamConfig{
			ReconnectDelayMs: 5000,
			PingIntervalMs:   50000,
			WriteTimeoutMs:   5000,
		},
		Channels: ChannelsConfig{SubscriberBuffer: 64},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override venue settings from environment variables if available
	if v := os.Getenv("HYPERFLOW_API_URL"); v != "" {
		config.Venue.APIURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("HYPERFLOW_WS_URL"); v != "" {
		config.Venue.WsURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("HYPERFLOW_ACCOUNT"); v != "" {
		config.Account.Address = strings.TrimSpace(v)
	}

	applyNetworkDefaults(&config.Venue)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// applyNetworkDefaults fills in cluster URLs from the network shorthand when
// they were not set explicitly.
func applyNetworkDefaults(v *VenueConfig) {
	network := strings.ToLower(strings.TrimSpace(v.Network))
	if network == "" {
		network = "mainnet"
	}
	v.Network = network
	if v.APIURL == "" {
		if network == "testnet" {
			v.APIURL = TestnetAPIURL
		} else {
			v.APIURL = MainnetAPIURL
		}
	}
	if v.WsURL == "" {
		if network == "testnet" {
			v.WsURL = TestnetWsURL
		} else {
			v.WsURL = MainnetWsURL
		}
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Hyperflow.Name == "" {
		return fmt.Errorf("hyperflow.name is required")
	}

	if cfg.Hyperflow.Version == "" {
		return fmt.Errorf("hyperflow.version is required")
	}

	switch cfg.Venue.Network {
	case "mainnet", "testnet":
	default:
		return fmt.Errorf("venue.network '%s' is invalid", cfg.Venue.Network)
	}

	if !strings.HasPrefix(cfg.Venue.APIURL, "http") {
		return fmt.Errorf("venue.api_url '%s' is invalid", cfg.Venue.APIURL)
	}
	if !strings.HasPrefix(cfg.Venue.WsURL, "ws") {
		return fmt.Errorf("venue.ws_url '%s' is invalid", cfg.Venue.WsURL)
	}

	if cfg.Transport.TimeoutMs <= 0 {
		return fmt.Errorf("transport.timeout_ms must be greater than 0")
	}
	if cfg.Transport.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("transport.rate_limit.requests_per_second must be greater than 0")
	}

	if cfg.Stream.ReconnectDelayMs <= 0 {
		return fmt.Errorf("stream.reconnect_delay_ms must be greater than 0")
	}
	if cfg.Stream.PingIntervalMs <= 0 {
		return fmt.Errorf("stream.ping_interval_ms must be greater than 0")
	}

	if cfg.Channels.SubscriberBuffer < 0 {
		return fmt.Errorf("channels.subscriber_buffer must not be negative")
	}

	return nil
}

// PrivateKey reads the signing key from the configured environment variable.
func (c *AccountConfig) PrivateKey() string {
	env := c.PrivateKeyEnv
	if env == "" {
		env = "HYPERFLOW_PRIVATE_KEY"
	}
	return strings.TrimSpace(os.Getenv(env))
}
