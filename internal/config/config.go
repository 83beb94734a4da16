// Package config loads runtime configuration from environment
// variables, with defaults and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all runtime configuration for the clearing engine.
type Config struct {
	// Seed feeds the single shared random stream. Identical seeds
	// reproduce identical trade sequences.
	Seed int64

	// Cycles is the number of discrete simulation cycles to run.
	Cycles int

	// HistoryWindow bounds each instrument's trade history.
	HistoryWindow int

	// LoanAggregationCeiling caps a running loan contract's principal
	// before a fresh contract is opened.
	LoanAggregationCeiling float64

	// MatchEpsilon is the volume below which a match is treated as
	// numerical noise.
	MatchEpsilon float64

	LogLevel string

	// Inspect enables the read-only HTTP inspection API on Port.
	Inspect bool
	Port    int
}

// Load reads configuration from environment variables, applies
// defaults, and validates values. It returns an error for any
// invalid value.
func Load() (*Config, error) {
	seed, err := getInt64("SEED", 1)
	if err != nil {
		return nil, fmt.Errorf("invalid SEED: %w", err)
	}

	cycles, err := getInt("CYCLES", 100)
	if err != nil {
		return nil, fmt.Errorf("invalid CYCLES: %w", err)
	}
	if cycles < 1 {
		return nil, fmt.Errorf("invalid CYCLES: must be >= 1, got %d", cycles)
	}

	historyWindow, err := getInt("HISTORY_WINDOW", 50)
	if err != nil {
		return nil, fmt.Errorf("invalid HISTORY_WINDOW: %w", err)
	}
	if historyWindow < 1 {
		return nil, fmt.Errorf("invalid HISTORY_WINDOW: must be >= 1, got %d", historyWindow)
	}

	ceiling, err := getFloat("LOAN_AGGREGATION_CEILING", 1e6)
	if err != nil {
		return nil, fmt.Errorf("invalid LOAN_AGGREGATION_CEILING: %w", err)
	}

	epsilon, err := getFloat("MATCH_EPSILON", 1e-10)
	if err != nil {
		return nil, fmt.Errorf("invalid MATCH_EPSILON: %w", err)
	}
	if epsilon <= 0 {
		return nil, fmt.Errorf("invalid MATCH_EPSILON: must be > 0, got %g", epsilon)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	inspect, err := getBool("INSPECT", false)
	if err != nil {
		return nil, fmt.Errorf("invalid INSPECT: %w", err)
	}

	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	return &Config{
		Seed:                   seed,
		Cycles:                 cycles,
		HistoryWindow:          historyWindow,
		LoanAggregationCeiling: ceiling,
		MatchEpsilon:           epsilon,
		LogLevel:               logLevel,
		Inspect:                inspect,
		Port:                   port,
	}, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getInt64(key string, defaultVal int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

func getFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseBool(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
