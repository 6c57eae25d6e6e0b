// Package config reads the server settings from the environment (optionally
// seeded from a .env file) and the solver defaults from an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	network "Waternet/internal/calc/network"
)

type Config struct {
	Addr          string `validate:"required"`
	TLSCert       string `validate:"required_with=TLSKey"`
	TLSKey        string `validate:"required_with=TLSCert"`
	DatabaseURL   string
	TokenKey      string `validate:"required,min=16"`
	AccessKeyHash string
	RateLimit     float64 `validate:"gt=0"`
	RateBurst     int     `validate:"min=1"`
	BatchLimit    int     `validate:"min=0"`
	LogLevel      string  `validate:"oneof=debug info warn error"`
	SolverConfig  string

	Solver network.Config `validate:"-"`
}

var validate = validator.New()

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds the config from getenv. Unset values take their defaults.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Addr:          or(getenv("ADDR"), ":8080"),
		TLSCert:       getenv("TLS_CERT"),
		TLSKey:        getenv("TLS_KEY"),
		DatabaseURL:   getenv("DATABASE_URL"),
		TokenKey:      getenv("TOKEN_KEY"),
		AccessKeyHash: getenv("ACCESS_KEY_HASH"),
		LogLevel:      strings.ToLower(or(getenv("LOG_LEVEL"), "info")),
		SolverConfig:  getenv("SOLVER_CONFIG"),
		RateLimit:     1,
		RateBurst:     3,
	}

	var err error
	if s := getenv("RATE_LIMIT"); s != "" {
		if cfg.RateLimit, err = strconv.ParseFloat(s, 64); err != nil {
			return Config{}, fmt.Errorf("RATE_LIMIT: %w", err)
		}
	}
	if s := getenv("RATE_BURST"); s != "" {
		if cfg.RateBurst, err = strconv.Atoi(s); err != nil {
			return Config{}, fmt.Errorf("RATE_BURST: %w", err)
		}
	}
	if s := getenv("BATCH_LIMIT"); s != "" {
		if cfg.BatchLimit, err = strconv.Atoi(s); err != nil {
			return Config{}, fmt.Errorf("BATCH_LIMIT: %w", err)
		}
	}

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	cfg.Solver = network.DefaultConfig()
	if cfg.SolverConfig != "" {
		if cfg.Solver, err = LoadSolver(cfg.SolverConfig); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// LoadSolver reads solver defaults from a YAML file. Keys left out keep the
// built-in defaults.
func LoadSolver(path string) (network.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return network.Config{}, fmt.Errorf("read solver config: %w", err)
	}
	cfg := network.DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return network.Config{}, fmt.Errorf("parse solver config: %w", err)
	}
	if err := network.ValidateConfig(cfg); err != nil {
		return network.Config{}, fmt.Errorf("solver config %s: %w", path, err)
	}
	return cfg, nil
}

// TLS reports whether the server should listen with TLS.
func (c Config) TLS() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

// Level maps LogLevel onto slog.
func (c Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func or(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
