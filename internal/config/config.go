// Package config loads the shiftdesk TOML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"

	"github.com/example/shiftdesk/internal/core/fee"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Config is the complete shiftdesk configuration.
type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Server    ServerConfig    `toml:"server"`
	Events    EventsConfig    `toml:"events"`
	Fees      FeesConfig      `toml:"fees"`
	Linkage   LinkageConfig   `toml:"linkage"`
	Handover  HandoverConfig  `toml:"handover"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

type DatabaseConfig struct {
	Driver string `toml:"driver"` // sqlite3 or postgres
	Path   string `toml:"path"`   // sqlite file
	DSN    string `toml:"dsn"`    // postgres connection string
}

type ServerConfig struct {
	Addr         string   `toml:"addr"`
	Metrics      bool     `toml:"metrics"`
	JWTSecret    string   `toml:"jwt_secret"` // empty disables auth
	ReadTimeout  Duration `toml:"read_timeout"`
	WriteTimeout Duration `toml:"write_timeout"`
}

type EventsConfig struct {
	Websocket   bool   `toml:"websocket"`
	RabbitMQURL string `toml:"rabbitmq_url"`
	Exchange    string `toml:"exchange"`
}

type FeesConfig struct {
	Rates             map[string]decimal.Decimal `toml:"rates"`
	FallbackRate      decimal.Decimal            `toml:"fallback_rate"`
	OverstayHours     float64                    `toml:"overstay_hours"`
	PenaltyMultiplier decimal.Decimal            `toml:"penalty_multiplier"`
}

type LinkageConfig struct {
	ExitStatsFlushInterval Duration `toml:"exit_stats_flush_interval"`
	ExitStatsBatch         int      `toml:"exit_stats_batch"`
}

type HandoverConfig struct {
	RecoveryAttempts    uint     `toml:"recovery_attempts"`
	RecoveryMaxInterval Duration `toml:"recovery_max_interval"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `toml:"otlp_endpoint"`
	OTLPInsecure bool   `toml:"otlp_insecure"`
	ServiceName  string `toml:"service_name"`
}

// Duration is a time.Duration written as "1.5s" in TOML.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// DefaultConfig returns a configuration with every value set.
func DefaultConfig() *Config {
	rates := make(map[string]decimal.Decimal, len(fee.DefaultRates))
	for k, v := range fee.DefaultRates {
		rates[k] = v
	}
	path, err := DefaultDataPath("shiftdesk.db")
	if err != nil {
		path = "shiftdesk.db"
	}
	return &Config{
		Database: DatabaseConfig{Driver: DriverSQLite, Path: path},
		Server: ServerConfig{
			Addr:         ":8080",
			Metrics:      true,
			ReadTimeout:  Duration{15 * time.Second},
			WriteTimeout: Duration{15 * time.Second},
		},
		Events: EventsConfig{Websocket: true, Exchange: "shiftdesk.events"},
		Fees: FeesConfig{
			Rates:             rates,
			FallbackRate:      fee.DefaultFallbackRate,
			OverstayHours:     fee.DefaultOverstayHours,
			PenaltyMultiplier: fee.DefaultPenaltyMultiplier,
		},
		Linkage: LinkageConfig{
			ExitStatsFlushInterval: Duration{2 * time.Second},
			ExitStatsBatch:         100,
		},
		Handover: HandoverConfig{
			RecoveryAttempts:    5,
			RecoveryMaxInterval: Duration{2 * time.Second},
		},
		Telemetry: TelemetryConfig{ServiceName: "shiftdesk"},
	}
}

// DefaultDataPath returns a path under ~/.shiftdesk.
func DefaultDataPath(name string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".shiftdesk", name), nil
}

// DefaultPath returns ~/.shiftdesk/config.toml.
func DefaultPath() (string, error) {
	return DefaultDataPath("config.toml")
}

// LoadConfig reads the file at path over the defaults and applies the
// environment overrides. A missing file yields the defaults. Unknown keys are
// rejected so typos do not silently fall back.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to parse config: %w", err)
	default:
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
		}
	}

	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides secrets and endpoints from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("SHIFTDESK_DB_DSN"); v != "" {
		c.Database.DSN = v
		c.Database.Driver = DriverPostgres
	}
	if v := getenv("SHIFTDESK_JWT_SECRET"); v != "" {
		c.Server.JWTSecret = v
	}
	if v := getenv("SHIFTDESK_RABBITMQ_URL"); v != "" {
		c.Events.RabbitMQURL = v
	}
	if v := getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.OTLPEndpoint = v
	}
}

// Validate checks values the defaults cannot repair.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite3")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	if c.Handover.RecoveryAttempts == 0 {
		return fmt.Errorf("handover.recovery_attempts must be at least 1")
	}
	if c.Fees.OverstayHours <= 0 {
		return fmt.Errorf("fees.overstay_hours must be positive")
	}
	if c.Fees.PenaltyMultiplier.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("fees.penalty_multiplier must be at least 1")
	}
	for vehicle, rate := range c.Fees.Rates {
		if rate.IsNegative() {
			return fmt.Errorf("fees.rates.%s must not be negative", vehicle)
		}
	}
	return nil
}

// SaveConfig writes cfg to path, creating the directory.
func SaveConfig(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// FeeCalculator builds the fee calculator for the configured tariff.
func (c *Config) FeeCalculator() *fee.Calculator {
	calc := fee.NewCalculator()
	for k, v := range c.Fees.Rates {
		calc.Rates[k] = v
	}
	calc.FallbackRate = c.Fees.FallbackRate
	calc.OverstayHours = c.Fees.OverstayHours
	calc.PenaltyMultiplier = c.Fees.PenaltyMultiplier
	return calc
}
