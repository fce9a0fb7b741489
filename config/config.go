// Package config loads the process configuration of the command line
// tool from the environment and optional .env files
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the process configuration
type Config struct {
	DBPath          string   // SQLite price and run history, empty for none
	Assets          []string // Assets to trade, empty for every stored asset
	Window          int
	Episodes        int
	Iterations      int
	Seed            uint64
	Commission      float64
	AgentConfig     string // JSON agent configuration file, optional
	HistoryFile     string // Episode history output file, optional
	MetricsAddr     string // Address of the /metrics endpoint, empty to disable
	SyntheticAssets int    // Used when the store holds no prices
	SyntheticPeriod int
	LogLevel        string
	LogPretty       bool
}

// Load reads the configuration from the environment after loading the
// argument .env files (or ".env" if none are given) when they exist
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load: %w", err)
		}
	}

	cfg := &Config{
		DBPath:          getEnv("DDPG_DB_PATH", ""),
		Assets:          getEnvAsList("DDPG_ASSETS"),
		Window:          getEnvAsInt("DDPG_WINDOW", 50),
		Episodes:        getEnvAsInt("DDPG_EPISODES", 100),
		Iterations:      getEnvAsInt("DDPG_ITERATIONS", 100),
		Seed:            uint64(getEnvAsInt("DDPG_SEED", 1)),
		Commission:      getEnvAsFloat("DDPG_COMMISSION", 0.0025),
		AgentConfig:     getEnv("DDPG_AGENT_CONFIG", ""),
		HistoryFile:     getEnv("DDPG_HISTORY_FILE", ""),
		MetricsAddr:     getEnv("DDPG_METRICS_ADDR", ""),
		SyntheticAssets: getEnvAsInt("DDPG_SYNTHETIC_ASSETS", 3),
		SyntheticPeriod: getEnvAsInt("DDPG_SYNTHETIC_PERIODS", 2000),
		LogLevel:        getEnv("DDPG_LOG_LEVEL", "info"),
		LogPretty:       getEnvAsBool("DDPG_LOG_PRETTY", false),
	}
	return cfg, cfg.Validate()
}

// Validate returns an error if the configuration is invalid
func (c *Config) Validate() error {
	if c.Window < 2 {
		return fmt.Errorf("validate: window must be at least 2 (%d)",
			c.Window)
	}
	if c.Episodes < 1 || c.Iterations < 1 {
		return fmt.Errorf("validate: episodes (%d) and iterations (%d) "+
			"must be positive", c.Episodes, c.Iterations)
	}
	if c.Commission < 0 || c.Commission >= 1 {
		return fmt.Errorf("validate: commission must be in [0, 1) (%v)",
			c.Commission)
	}
	if c.SyntheticAssets < 1 {
		return fmt.Errorf("validate: synthetic assets must be positive "+
			"(%d)", c.SyntheticAssets)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
