// Package config loads application configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix is stripped from override variables, so FACILITY_SERVER_PORT
// becomes server.port.
const envPrefix = "FACILITY_"

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Log           LogConfig           `koanf:"log"`
	Database      DatabaseConfig      `koanf:"database"`
	CORS          CORSConfig          `koanf:"cors"`
	JWT           JWTConfig           `koanf:"jwt"`
	Actuator      ActuatorConfig      `koanf:"actuator"`
	Occupancy     OccupancyConfig     `koanf:"occupancy"`
	Notifications NotificationsConfig `koanf:"notifications"`
	Response      ResponseConfig      `koanf:"response"`
	Readiness     ReadinessConfig     `koanf:"readiness"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// DatabaseConfig holds PostgreSQL settings for the audit log and archive.
// When disabled, both fall back to in-memory stores.
type DatabaseConfig struct {
	Enabled         bool          `koanf:"enabled"`
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// JWTConfig holds token settings.
type JWTConfig struct {
	SecretKey     string        `koanf:"secret_key"`
	TokenDuration time.Duration `koanf:"token_duration"`
}

// ActuatorConfig selects and configures the security actuator backend.
type ActuatorConfig struct {
	// Mode is "http" for the building security gateway or "log" for a
	// logging stub.
	Mode    string        `koanf:"mode"`
	BaseURL string        `koanf:"base_url"`
	Token   string        `koanf:"token"`
	Timeout time.Duration `koanf:"timeout"`
}

// OccupancyConfig configures the occupancy data source.
type OccupancyConfig struct {
	Mode    string        `koanf:"mode"`
	BaseURL string        `koanf:"base_url"`
	Token   string        `koanf:"token"`
	Timeout time.Duration `koanf:"timeout"`
	// StaticCount is returned by the static occupancy source.
	StaticCount int `koanf:"static_count"`
}

// NotificationsConfig configures the outbound channels.
type NotificationsConfig struct {
	Email EmailConfig `koanf:"email"`
	SMS   SMSConfig   `koanf:"sms"`
	Push  PushConfig  `koanf:"push"`
	PA    PAConfig    `koanf:"pa"`
}

// EmailConfig holds SMTP settings.
type EmailConfig struct {
	Enabled      bool   `koanf:"enabled"`
	SMTPHost     string `koanf:"smtp_host"`
	SMTPPort     int    `koanf:"smtp_port"`
	SMTPUser     string `koanf:"smtp_user"`
	SMTPPassword string `koanf:"smtp_password"`
	FromAddress  string `koanf:"from_address"`
	BatchSize    int    `koanf:"batch_size"`
}

// SMSConfig holds SMS gateway settings.
type SMSConfig struct {
	Enabled    bool    `koanf:"enabled"`
	GatewayURL string  `koanf:"gateway_url"`
	APIKey     string  `koanf:"api_key"`
	SenderID   string  `koanf:"sender_id"`
	RateLimit  float64 `koanf:"rate_limit"`
}

// PushConfig holds push broadcast settings.
type PushConfig struct {
	Enabled    bool   `koanf:"enabled"`
	GatewayURL string `koanf:"gateway_url"`
	APIKey     string `koanf:"api_key"`
}

// PAConfig holds public address controller settings.
type PAConfig struct {
	Enabled bool   `koanf:"enabled"`
	BaseURL string `koanf:"base_url"`
	Token   string `koanf:"token"`
}

// ResponseConfig tunes the response orchestrator.
type ResponseConfig struct {
	DefaultEvacuationZones []string      `koanf:"default_evacuation_zones"`
	ActionTimeout          time.Duration `koanf:"action_timeout"`
	ProgressInterval       time.Duration `koanf:"progress_interval"`
	ProgressDeadline       time.Duration `koanf:"progress_deadline"`
	EmergencyChannels      []string      `koanf:"emergency_channels"`
	StaffRecipients        []string      `koanf:"staff_recipients"`
	ManagementRecipients   []string      `koanf:"management_recipients"`
	EmergencyContacts      []string      `koanf:"emergency_contacts"`
	SelftestLive           bool          `koanf:"selftest_live"`
}

// ReadinessConfig tunes the readiness monitor.
type ReadinessConfig struct {
	Interval     time.Duration `koanf:"interval"`
	ProbeTimeout time.Duration `koanf:"probe_timeout"`
}

// Load reads the YAML file at path (optional) and applies FACILITY_*
// environment overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 5,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		JWT: JWTConfig{
			TokenDuration: 12 * time.Hour,
		},
		Actuator: ActuatorConfig{
			Mode:    "log",
			Timeout: 10 * time.Second,
		},
		Occupancy: OccupancyConfig{
			Mode:    "static",
			Timeout: 5 * time.Second,
		},
		Response: ResponseConfig{
			DefaultEvacuationZones: []string{"ground_floor", "first_floor"},
			ActionTimeout:          10 * time.Second,
			ProgressInterval:       30 * time.Second,
			ProgressDeadline:       2 * time.Hour,
			EmergencyChannels:      []string{"push", "sms", "email"},
		},
		Readiness: ReadinessConfig{
			Interval:     time.Minute,
			ProbeTimeout: 5 * time.Second,
		},
	}
}

func (c *Config) validate() error {
	if c.JWT.SecretKey == "" {
		return fmt.Errorf("jwt.secret_key is required")
	}
	if c.Database.Enabled && c.Database.URL == "" {
		return fmt.Errorf("database.url is required when database is enabled")
	}
	if c.Actuator.Mode == "http" && c.Actuator.BaseURL == "" {
		return fmt.Errorf("actuator.base_url is required in http mode")
	}
	if c.Occupancy.Mode == "http" && c.Occupancy.BaseURL == "" {
		return fmt.Errorf("occupancy.base_url is required in http mode")
	}
	return nil
}
