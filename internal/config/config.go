// Package config loads the service configuration from a YAML file and
// applies environment overrides on top of it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all libadmin configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Booking   BookingConfig   `yaml:"booking"`
	Numbering NumberingConfig `yaml:"numbering"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	// ShutdownTimeout bounds graceful shutdown after SIGINT/SIGTERM.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`

	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`

	// ConnectAttempts is how many times NewPool retries while the
	// database container is still starting.
	ConnectAttempts int           `yaml:"connect_attempts"`
	ConnectBackoff  time.Duration `yaml:"connect_backoff"`
}

// DSN builds a libpq-compatible connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// BookingConfig describes the half-hour grid offered for space rentals.
type BookingConfig struct {
	Open        string `yaml:"open"`  // HH:MM
	Close       string `yaml:"close"` // HH:MM
	StepMinutes int    `yaml:"step_minutes"`
}

// NumberingConfig tunes the identifier allocator.
type NumberingConfig struct {
	CandidateLimit int `yaml:"candidate_limit"`
	// AllocateAttempts bounds the retries after a concurrent allocation
	// moved the range version underneath us.
	AllocateAttempts int `yaml:"allocate_attempts"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			Password:        "postgres",
			Name:            "libadmin",
			SSLMode:         "disable",
			MaxConns:        20,
			MinConns:        2,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			ConnectAttempts: 5,
			ConnectBackoff:  2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Booking: BookingConfig{
			Open:        "08:00",
			Close:       "20:00",
			StepMinutes: 30,
		},
		Numbering: NumberingConfig{
			CandidateLimit:   10,
			AllocateAttempts: 3,
		},
	}
}

// Load reads the YAML file at path on top of the defaults, then applies
// environment overrides. An empty path or a missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets deployment environments override the file.
func (c *Config) applyEnvOverrides() {
	setString(&c.Server.Port, "PORT")
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.Port, "DB_PORT")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Name, "DB_NAME")
	setString(&c.Database.SSLMode, "DB_SSLMODE")
	setString(&c.Logging.Level, "LOG_LEVEL")

	if v := os.Getenv("DB_MAX_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Database.MaxConns = int32(n)
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks the settings that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if c.Database.MaxConns <= 0 {
		return errors.New("database.max_conns must be positive")
	}
	if c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
		return errors.New("database.min_conns must be between 0 and max_conns")
	}
	if c.Database.ConnectAttempts < 1 {
		return errors.New("database.connect_attempts must be at least 1")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}

	open, err := minutesOf(c.Booking.Open)
	if err != nil {
		return fmt.Errorf("booking.open: %w", err)
	}
	closing, err := minutesOf(c.Booking.Close)
	if err != nil {
		return fmt.Errorf("booking.close: %w", err)
	}
	if closing <= open {
		return errors.New("booking.close must be after booking.open")
	}
	if c.Booking.StepMinutes <= 0 || (closing-open)%c.Booking.StepMinutes != 0 {
		return errors.New("booking.step_minutes must divide the opening hours")
	}

	if c.Numbering.CandidateLimit <= 0 {
		return errors.New("numbering.candidate_limit must be positive")
	}
	if c.Numbering.AllocateAttempts < 1 {
		return errors.New("numbering.allocate_attempts must be at least 1")
	}
	return nil
}

func minutesOf(label string) (int, error) {
	t, err := time.Parse("15:04", label)
	if err != nil || len(label) != 5 {
		return 0, fmt.Errorf("%q is not a zero-padded HH:MM time", label)
	}
	return t.Hour()*60 + t.Minute(), nil
}
