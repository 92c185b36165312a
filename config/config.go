// Package config loads box-office settings.
//
// Values are layered in this order, later layers winning:
//   - built-in defaults
//   - the YAML file named by --config or BILHETERIA_CONFIG
//   - a .env file in the working directory
//   - BILHETERIA_* environment variables
//
// Command-line flags are applied by the caller on top of the result.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"bilheteria-cli/auth"
	"bilheteria-cli/keystore"
	"bilheteria-cli/store"
	"bilheteria-cli/vault"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "BILHETERIA_"

	// DotEnvFile is read from the working directory when present.
	DotEnvFile = ".env"

	DefaultRooms        = 5
	DefaultInitialSeats = 50
)

type Config struct {
	// DataDir holds the state blob, keys, replay record and issued tickets.
	DataDir string `yaml:"data_dir"`

	// Rooms is the number of rooms created by init and reset.
	Rooms int `yaml:"rooms"`

	// InitialSeats is the seat inventory of a newly scheduled screening.
	InitialSeats int `yaml:"initial_seats"`

	KDFIterations int `yaml:"kdf_iterations"`
	KeyBits       int `yaml:"key_bits"`
	KeyWorkFactor int `yaml:"key_work_factor"`
	BcryptCost    int `yaml:"bcrypt_cost"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when nothing overrides it. DataDir
// is left empty and resolved by Load.
func Default() *Config {
	return &Config{
		Rooms:         DefaultRooms,
		InitialSeats:  DefaultInitialSeats,
		KDFIterations: vault.DefaultIterations,
		KeyBits:       keystore.MinKeyBits,
		KeyWorkFactor: keystore.DefaultWorkFactor,
		BcryptCost:    auth.DefaultCost,
		LogLevel:      "info",
	}
}

// Load builds the configuration. configPath may be empty.
func Load(configPath string) (*Config, error) {
	return load(configPath, DotEnvFile)
}

func load(configPath, dotEnvPath string) (*Config, error) {
	env, err := newEnvironment(dotEnvPath)
	if err != nil {
		return nil, err
	}

	cfg := Default()

	if configPath == "" {
		configPath, _ = env.lookup("CONFIG")
	}
	if configPath != "" {
		if err := cfg.loadFile(configPath); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", configPath, err)
		}
	}

	if err := cfg.applyEnvironment(env); err != nil {
		return nil, err
	}

	cfg.DataDir = os.ExpandEnv(cfg.DataDir)
	if cfg.DataDir == "" {
		dir, err := store.DefaultDataDir()
		if err != nil {
			return nil, fmt.Errorf("config: resolving data dir: %w", err)
		}
		cfg.DataDir = dir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// environment resolves BILHETERIA_* keys from the process first and the
// .env file second. The process environment is never modified.
type environment struct {
	dotenv map[string]string
}

func newEnvironment(dotEnvPath string) (environment, error) {
	env := environment{dotenv: map[string]string{}}
	if dotEnvPath == "" || !store.Exists(dotEnvPath) {
		return env, nil
	}
	values, err := godotenv.Read(dotEnvPath)
	if err != nil {
		return env, fmt.Errorf("config: reading %s: %w", dotEnvPath, err)
	}
	env.dotenv = values
	return env, nil
}

func (e environment) lookup(name string) (string, bool) {
	key := EnvPrefix + name
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v, true
	}
	v, ok := e.dotenv[key]
	return v, ok && v != ""
}

func (c *Config) applyEnvironment(env environment) error {
	if v, ok := env.lookup("DATA_DIR"); ok {
		c.DataDir = v
	}
	if v, ok := env.lookup("LOG_LEVEL"); ok {
		c.LogLevel = v
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"ROOMS", &c.Rooms},
		{"INITIAL_SEATS", &c.InitialSeats},
		{"KDF_ITERATIONS", &c.KDFIterations},
		{"KEY_BITS", &c.KeyBits},
		{"KEY_WORK_FACTOR", &c.KeyWorkFactor},
		{"BCRYPT_COST", &c.BcryptCost},
	}
	for _, field := range ints {
		v, ok := env.lookup(field.name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid int for %s%s: %q", EnvPrefix, field.name, v)
		}
		*field.dst = n
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if c.Rooms < 1 {
		errs = append(errs, fmt.Errorf("rooms must be at least 1, got %d", c.Rooms))
	}
	if c.InitialSeats < 1 {
		errs = append(errs, fmt.Errorf("initial_seats must be at least 1, got %d", c.InitialSeats))
	}
	if c.KDFIterations < vault.MinIterations || c.KDFIterations > vault.MaxIterations {
		errs = append(errs, fmt.Errorf("kdf_iterations must be between %d and %d, got %d", vault.MinIterations, vault.MaxIterations, c.KDFIterations))
	}
	if c.KeyBits < keystore.MinKeyBits {
		errs = append(errs, fmt.Errorf("key_bits must be at least %d, got %d", keystore.MinKeyBits, c.KeyBits))
	}
	if c.KeyWorkFactor < 1 || c.KeyWorkFactor > 30 {
		errs = append(errs, fmt.Errorf("key_work_factor must be between 1 and 30, got %d", c.KeyWorkFactor))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("bcrypt_cost must be between 4 and 31, got %d", c.BcryptCost))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Paths returns the artifact layout under DataDir.
func (c *Config) Paths() store.Paths {
	return store.Paths{Root: c.DataDir}
}

// SlogLevel returns LogLevel as a slog.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log_level %q is not one of debug, info, warn, error", s)
}
