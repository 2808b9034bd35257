package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

var (
	ErrInvalidWatermarks = errors.New("device low water must be below high water")
	ErrUnknownTransport  = errors.New("unknown transport kind")
	ErrUnknownInhibitor  = errors.New("unknown inhibitor kind")
	ErrMissingPeerURL    = errors.New("websocket transport requires TRANSPORT_PEER_URL")
)

// Config holds all application configuration.
type Config struct {
	Bridge    BridgeConfig
	Transport TransportConfig
	Inhibit   InhibitConfig
	Device    DeviceConfig
	Admin     AdminConfig
	Logging   LogConfig
}

// BridgeConfig holds the channel bridge settings.
type BridgeConfig struct {
	MaxChannels   int           `envconfig:"BRIDGE_MAX_CHANNELS" default:"32"`
	BufferSize    int           `envconfig:"BRIDGE_BUFFER_SIZE" default:"16384"`
	Workers       int           `envconfig:"BRIDGE_WORKERS" default:"1"`
	InhibitWindow time.Duration `envconfig:"BRIDGE_INHIBIT_WINDOW" default:"500ms"`
	KeepOpen      bool          `envconfig:"BRIDGE_KEEP_OPEN" default:"false"`
	ChannelsFile  string        `envconfig:"BRIDGE_CHANNELS_FILE" default:""`
	OpenFailures  uint32        `envconfig:"BRIDGE_OPEN_FAILURES" default:"5"`
	OpenCooldown  time.Duration `envconfig:"BRIDGE_OPEN_COOLDOWN" default:"30s"`
	FaultLogRate  float64       `envconfig:"BRIDGE_FAULT_LOG_RATE" default:"1"`
}

// TransportConfig selects and configures the channel transport.
type TransportConfig struct {
	Kind        string        `envconfig:"TRANSPORT_KIND" default:"loopback"`
	PeerURL     string        `envconfig:"TRANSPORT_PEER_URL" default:""`
	DialTimeout time.Duration `envconfig:"TRANSPORT_DIAL_TIMEOUT" default:"5s"`
	Window      int           `envconfig:"TRANSPORT_WINDOW" default:"16384"`
}

// InhibitConfig selects the suspend-inhibit backend.
type InhibitConfig struct {
	Kind      string `envconfig:"INHIBIT_KIND" default:"memory"`
	SysfsRoot string `envconfig:"INHIBIT_SYSFS_ROOT" default:"/sys/power"`
}

// DeviceConfig holds pseudo-terminal device settings.
type DeviceConfig struct {
	Dir       string `envconfig:"DEVICE_DIR" default:"/tmp/chanbridge"`
	Prefix    string `envconfig:"DEVICE_PREFIX" default:"smd"`
	HighWater int    `envconfig:"DEVICE_HIGH_WATER" default:"65536"`
	LowWater  int    `envconfig:"DEVICE_LOW_WATER" default:"16384"`
	// Enabled turns pty devices off for headless runs.
	Enabled bool          `envconfig:"DEVICE_ENABLED" default:"true"`
	Retry   time.Duration `envconfig:"DEVICE_RETRY" default:"50ms"`
}

// AdminConfig holds admin HTTP server configuration.
type AdminConfig struct {
	Enabled bool   `envconfig:"ADMIN_ENABLED" default:"true"`
	Host    string `envconfig:"ADMIN_HOST" default:"127.0.0.1"`
	Port    string `envconfig:"ADMIN_PORT" default:"8090"`
	RPS     int    `envconfig:"ADMIN_RPS" default:"50"`
	Burst   int    `envconfig:"ADMIN_BURST" default:"100"`
	CORS    bool   `envconfig:"ADMIN_CORS" default:"false"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Bridge: BridgeConfig{
			MaxChannels:   32,
			BufferSize:    16 * 1024,
			Workers:       1,
			InhibitWindow: 500 * time.Millisecond,
			OpenFailures:  5,
			OpenCooldown:  30 * time.Second,
			FaultLogRate:  1,
		},
		Transport: TransportConfig{
			Kind:        "loopback",
			DialTimeout: 5 * time.Second,
			Window:      16 * 1024,
		},
		Inhibit: InhibitConfig{
			Kind:      "memory",
			SysfsRoot: "/sys/power",
		},
		Device: DeviceConfig{
			Dir:       "/tmp/chanbridge",
			Prefix:    "smd",
			HighWater: 64 * 1024,
			LowWater:  16 * 1024,
			Enabled:   true,
			Retry:     50 * time.Millisecond,
		},
		Admin: AdminConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    "8090",
			RPS:     50,
			Burst:   100,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	if c.Bridge.MaxChannels <= 0 {
		return fmt.Errorf("BRIDGE_MAX_CHANNELS must be positive, got %d", c.Bridge.MaxChannels)
	}
	if c.Bridge.BufferSize <= 0 {
		return fmt.Errorf("BRIDGE_BUFFER_SIZE must be positive, got %d", c.Bridge.BufferSize)
	}
	if c.Device.LowWater >= c.Device.HighWater {
		return ErrInvalidWatermarks
	}

	switch c.Transport.Kind {
	case "loopback":
	case "websocket":
		if c.Transport.PeerURL == "" {
			return ErrMissingPeerURL
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTransport, c.Transport.Kind)
	}

	switch c.Inhibit.Kind {
	case "memory", "sysfs", "none":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownInhibitor, c.Inhibit.Kind)
	}

	return nil
}

// AdminAddr returns the admin listen address.
func (c *Config) AdminAddr() string {
	return c.Admin.Host + ":" + c.Admin.Port
}
