package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/example/campus-booking/internal/logging"
)

// DefaultEnvFile is the dotenv file campusd reads unless told otherwise.
const DefaultEnvFile = ".env"

const envPrefix = "CAMPUS"

// Config captures environment driven configuration values for the reservation service.
type Config struct {
	HTTPPort          int
	SQLiteDSN         string
	ExportDir         string
	LogLevel          string
	LogFormat         string
	SeedDefaults      bool
	SnapshotRetention int
	Autosave          bool
}

// rawConfig receives the variables as text so that every unparsable value is
// reported together with the out-of-range ones.
type rawConfig struct {
	HTTPPort          string `envconfig:"HTTP_PORT" default:"8080"`
	SQLiteDSN         string `envconfig:"SQLITE_DSN" default:"campus.db"`
	ExportDir         string `envconfig:"EXPORT_DIR" default:"exports"`
	LogLevel          string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat         string `envconfig:"LOG_FORMAT" default:"json"`
	SeedDefaults      string `envconfig:"SEED_DEFAULTS" default:"true"`
	SnapshotRetention string `envconfig:"SNAPSHOT_RETENTION" default:"10"`
	Autosave          string `envconfig:"AUTOSAVE" default:"true"`
}

// LoadFile reads the dotenv file at path when present and then parses the
// process environment. A missing file is not an error; variables already set
// in the environment take precedence over it.
func LoadFile(path string) (Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var raw rawConfig
	if err := envconfig.Process(envPrefix, &raw); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	invalid := make([]string, 0, 4)
	check := func(key string, ok bool) {
		if !ok {
			invalid = append(invalid, envPrefix+"_"+key)
		}
	}

	cfg := Config{
		SQLiteDSN: strings.TrimSpace(raw.SQLiteDSN),
		ExportDir: strings.TrimSpace(raw.ExportDir),
		LogLevel:  strings.TrimSpace(raw.LogLevel),
		LogFormat: strings.TrimSpace(raw.LogFormat),
	}
	var err error

	cfg.HTTPPort, err = strconv.Atoi(strings.TrimSpace(raw.HTTPPort))
	check("HTTP_PORT", err == nil && cfg.HTTPPort > 0 && cfg.HTTPPort <= 65535)
	check("SQLITE_DSN", cfg.SQLiteDSN != "")
	check("EXPORT_DIR", cfg.ExportDir != "")
	_, err = logging.ParseLevel(cfg.LogLevel)
	check("LOG_LEVEL", err == nil)
	switch strings.ToLower(cfg.LogFormat) {
	case "json", "text":
	default:
		check("LOG_FORMAT", false)
	}
	cfg.SeedDefaults, err = strconv.ParseBool(strings.TrimSpace(raw.SeedDefaults))
	check("SEED_DEFAULTS", err == nil)
	cfg.SnapshotRetention, err = strconv.Atoi(strings.TrimSpace(raw.SnapshotRetention))
	check("SNAPSHOT_RETENTION", err == nil && cfg.SnapshotRetention >= 0)
	cfg.Autosave, err = strconv.ParseBool(strings.TrimSpace(raw.Autosave))
	check("AUTOSAVE", err == nil)

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment values: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}
