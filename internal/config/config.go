// Package config loads pipeline configuration from yaml and environment.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Derivation holds the interval scan tuning knobs.
type Derivation struct {
	Workers          int     `yaml:"workers"`
	MaxGapHours      float64 `yaml:"max_gap_hours"`
	AnomalyThreshold int64   `yaml:"anomaly_threshold"`
	MaxStaleFraction float64 `yaml:"max_stale_fraction"`
}

// Aggregation holds the rollup calendar knobs.
type Aggregation struct {
	DayOffsetHours int   `yaml:"day_offset_hours"`
	MorningHours   []int `yaml:"morning_hours"`
	EveningHours   []int `yaml:"evening_hours"`
	MinMonthDays   int   `yaml:"min_month_days"`
}

// Config defines pipeline configuration.
type Config struct {
	HTTPAddr    string      `yaml:"http_addr"`
	DatabaseURL string      `yaml:"database_url"`
	ArchivePath string      `yaml:"archive_path"`
	JWTSecret   string      `yaml:"jwt_secret"`
	Derivation  Derivation  `yaml:"derivation"`
	Aggregation Aggregation `yaml:"aggregation"`
}

// Load loads config from yaml (RIDERSHIP_CONFIG) with env overrides.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:    getenvDefault("HTTP_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		ArchivePath: getenvDefault("RIDERSHIP_ARCHIVE_PATH", "var/archive/observations.db"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		Derivation: Derivation{
			Workers:          getenvIntDefault("RIDERSHIP_WORKERS", 4),
			MaxGapHours:      getenvFloatDefault("RIDERSHIP_MAX_GAP_HOURS", 24),
			AnomalyThreshold: int64(getenvIntDefault("RIDERSHIP_ANOMALY_THRESHOLD", 10000)),
			MaxStaleFraction: getenvFloatDefault("RIDERSHIP_MAX_STALE_FRACTION", 0.70),
		},
		Aggregation: Aggregation{
			DayOffsetHours: getenvIntDefault("RIDERSHIP_DAY_OFFSET_HOURS", 2),
			MorningHours:   splitCSVInts(os.Getenv("RIDERSHIP_MORNING_HOURS")),
			EveningHours:   splitCSVInts(os.Getenv("RIDERSHIP_EVENING_HOURS")),
			MinMonthDays:   getenvIntDefault("RIDERSHIP_MIN_MONTH_DAYS", 10),
		},
	}

	if path := os.Getenv("RIDERSHIP_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.HTTPAddr == "" {
		return cfg, errors.New("config: http addr required")
	}
	if cfg.Derivation.MaxGapHours <= 0 {
		return cfg, errors.New("config: max gap hours must be positive")
	}
	if cfg.Derivation.MaxStaleFraction <= 0 || cfg.Derivation.MaxStaleFraction > 1 {
		return cfg, errors.New("config: max stale fraction must be in (0, 1]")
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSVInts(value string) []int {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []int
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		parsed, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		result = append(result, parsed)
	}
	return result
}
