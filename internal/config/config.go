package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"relief-route-viewer/internal/database"
	"relief-route-viewer/internal/logging"
	"relief-route-viewer/internal/overlay"
	"relief-route-viewer/internal/resolve"
)

// Environment keys
const (
	EnvServerAddr        = "SERVER_ADDR"
	EnvDBPath            = "DB_PATH"
	EnvLogLevel          = "LOG_LEVEL"
	EnvStyleFile         = "STYLE_FILE"
	EnvMatchToleranceKm  = "MATCH_TOLERANCE_KM"
	EnvHoverEventsPerSec = "HOVER_EVENTS_PER_SEC"
)

const (
	DefaultAddr              = "127.0.0.1:8080"
	DefaultLogLevel          = "info"
	DefaultHoverEventsPerSec = 30.0
)

// Config holds application configuration
type Config struct {
	Addr              string
	DBPath            string
	LogLevel          string
	StyleFile         string
	ToleranceKm       float64
	HoverEventsPerSec float64
	Style             overlay.Style
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; variables already set win.
func Load() (*Config, error) {
	return LoadFrom(".env")
}

// LoadFrom is Load with an explicit .env path
func LoadFrom(envFile string) (*Config, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	cfg := &Config{
		Addr:      getEnv(EnvServerAddr, DefaultAddr),
		DBPath:    os.Getenv(EnvDBPath),
		LogLevel:  getEnv(EnvLogLevel, DefaultLogLevel),
		StyleFile: os.Getenv(EnvStyleFile),
		Style:     overlay.DefaultStyle(),
	}

	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}

	var err error
	if cfg.ToleranceKm, err = getFloat(EnvMatchToleranceKm, resolve.DefaultToleranceKm); err != nil {
		return nil, err
	}
	if cfg.ToleranceKm <= 0 {
		return nil, fmt.Errorf("%s must be positive", EnvMatchToleranceKm)
	}
	if cfg.HoverEventsPerSec, err = getFloat(EnvHoverEventsPerSec, DefaultHoverEventsPerSec); err != nil {
		return nil, err
	}
	if cfg.HoverEventsPerSec <= 0 {
		return nil, fmt.Errorf("%s must be positive", EnvHoverEventsPerSec)
	}

	if cfg.DBPath == "" {
		if cfg.DBPath, err = database.GetDefaultDBPath(); err != nil {
			return nil, err
		}
	}

	if cfg.StyleFile != "" {
		if cfg.Style, err = LoadStyle(cfg.StyleFile); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// LoadStyle reads an overlay style from a YAML file. Fields left out keep
// their default values.
func LoadStyle(path string) (overlay.Style, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return overlay.Style{}, fmt.Errorf("failed to read style file: %w", err)
	}

	var style overlay.Style
	if err := yaml.Unmarshal(data, &style); err != nil {
		return overlay.Style{}, fmt.Errorf("failed to parse style file %s: %w", path, err)
	}
	return style.WithDefaults(), nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return f, nil
}
