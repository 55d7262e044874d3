package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        string `yaml:"port"`
	Environment string `yaml:"env"`
	LogLevel    string `yaml:"log_level"`

	// GameServerSecret guards /api/roblox/*. Empty denies every request.
	GameServerSecret string   `yaml:"game_server_secret"`
	AllowedOrigins   []string `yaml:"allowed_origins"`

	AuditCapacity     int `yaml:"audit_capacity"`
	TelemetryCapacity int `yaml:"telemetry_capacity"`
	OutboxSize        int `yaml:"outbox_size"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func Default() Config {
	return Config{
		Port:              "4000",
		Environment:       "development",
		LogLevel:          "info",
		AllowedOrigins:    []string{"*"},
		AuditCapacity:     200,
		TelemetryCapacity: 500,
		OutboxSize:        64,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      3 * time.Second,
		ShutdownTimeout:   10 * time.Second,
	}
}

func (c Config) IsProduction() bool { return c.Environment == "production" }

func (c Config) Addr() string { return ":" + c.Port }

// Load layers defaults, the YAML file named by CONFIG_FILE, a .env file in
// the working directory and finally the process environment.
func Load() (Config, error) {
	cfg := Default()

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return cfg, fmt.Errorf("load .env: %w", err)
		}
	}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("PORT", &c.Port)
	str("ENV", &c.Environment)
	str("LOG_LEVEL", &c.LogLevel)
	str("GAME_SERVER_SECRET", &c.GameServerSecret)
	if v, ok := lookup("ALLOWED_ORIGINS"); ok && v != "" {
		c.AllowedOrigins = splitList(v)
	}
	num("AUDIT_CAPACITY", &c.AuditCapacity)
	num("TELEMETRY_CAPACITY", &c.TelemetryCapacity)
	num("OUTBOX_SIZE", &c.OutboxSize)
	dur("READ_TIMEOUT", &c.ReadTimeout)
	dur("WRITE_TIMEOUT", &c.WriteTimeout)
	dur("SHUTDOWN_TIMEOUT", &c.ShutdownTimeout)
	return errs
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c Config) Validate() error {
	var errs error
	if c.Port == "" {
		errs = multierr.Append(errs, errors.New("port is required"))
	}
	for name, v := range map[string]int{
		"audit_capacity":     c.AuditCapacity,
		"telemetry_capacity": c.TelemetryCapacity,
		"outbox_size":        c.OutboxSize,
	} {
		if v <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	for name, v := range map[string]time.Duration{
		"read_timeout":     c.ReadTimeout,
		"write_timeout":    c.WriteTimeout,
		"shutdown_timeout": c.ShutdownTimeout,
	} {
		if v <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("%s must be positive, got %s", name, v))
		}
	}
	return errs
}
