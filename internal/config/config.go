package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/jbweber/homelab/parkingcontrol/internal/datastore"
)

// Environment variables read by LoadEnv
const (
	EnvDBPath           = "PARKING_DB_PATH"
	EnvPort             = "PARKING_PORT"
	EnvStrictUniqueness = "PARKING_STRICT_UNIQUENESS"
	EnvReadTimeout      = "PARKING_READ_TIMEOUT"
	EnvWriteTimeout     = "PARKING_WRITE_TIMEOUT"
)

// DefaultEnvFile is loaded by LoadEnv when no path is given, if it exists
const DefaultEnvFile = ".env"

// Config holds all configuration for the parking control service
type Config struct {
	DBPath           string
	Port             string
	StrictUniqueness bool
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		DBPath:       "~/parkingcontrol/data/parkingcontrol.db",
		Port:         "8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
}

// LoadEnv loads variables from an env file into the process environment and
// then applies any PARKING_* overrides to c. An empty path loads .env from the
// working directory when present; an explicit path must exist. Variables
// already set in the environment win over the file.
func (c *Config) LoadEnv(path string) error {
	if path == "" {
		if err := godotenv.Load(DefaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", DefaultEnvFile, err)
		}
	} else if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}

	c.DBPath = getEnv(EnvDBPath, c.DBPath)
	c.Port = getEnv(EnvPort, c.Port)

	var err error
	if c.StrictUniqueness, err = getEnvBool(EnvStrictUniqueness, c.StrictUniqueness); err != nil {
		return err
	}
	if c.ReadTimeout, err = getEnvDuration(EnvReadTimeout, c.ReadTimeout); err != nil {
		return err
	}
	if c.WriteTimeout, err = getEnvDuration(EnvWriteTimeout, c.WriteTimeout); err != nil {
		return err
	}
	return nil
}

// Addr returns the listen address for the HTTP server
func (c *Config) Addr() string {
	return ":" + c.Port
}

// InitializeDatabase creates and configures the database
func (c *Config) InitializeDatabase() (*datastore.Datastore, error) {
	dbPath := c.expandPath(c.DBPath)

	// Ensure database directory exists
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	ds, err := datastore.New(dbPath, datastore.WithStrictUniqueness(c.StrictUniqueness))
	if err != nil {
		return nil, err
	}

	OptimizeDatabaseConnection(ds.DB)

	if err := ApplyPragmaOptimizations(ds.DB); err != nil {
		ds.Close()
		return nil, fmt.Errorf("failed to apply performance optimizations: %w", err)
	}

	return ds, nil
}

// expandPath expands ~ to home directory
func (c *Config) expandPath(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Return original path if we can't get home dir
		return path
	}

	return filepath.Join(homeDir, path[2:])
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) (bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}
