// Package config loads ClawBuds process configuration (spec §6.4) from a
// YAML file with environment variable overrides, in the shape of the
// teacher's internal/config/config.go.
package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
)

// Config holds every recognized process configuration key from spec §6.4.
type Config struct {
	Reflex       ReflexConfig       `yaml:"reflex"`
	Layer1       Layer1Config       `yaml:"layer1"`
	Staleness    StalenessConfig    `yaml:"staleness"`
	Trust        TrustConfig        `yaml:"trust"`
	Relationship RelationshipConfig `yaml:"relationship"`
	Host         HostConfig         `yaml:"host"`
}

// ReflexConfig controls the reflex engine's hard constraints.
type ReflexConfig struct {
	HardMaxMessagesPerHour int `yaml:"hard_max_messages_per_hour"`
}

// Layer1Config controls the Layer-1 batch processor.
type Layer1Config struct {
	BatchSize int `yaml:"batch_size"`
	MaxWaitMs int `yaml:"max_wait_ms"`
}

// StalenessConfig controls the pattern staleness detector.
type StalenessConfig struct {
	CarapaceStaleDays        int     `yaml:"carapace_stale_days"`
	MonotonyThreshold        float64 `yaml:"monotony_threshold"`
	GroomRepetitionThreshold float64 `yaml:"groom_repetition_threshold"`
}

// TrustConfig controls the trust service's decay cadence.
type TrustConfig struct {
	MonthlyDecay float64 `yaml:"monthly_decay"`
}

// RelationshipConfig controls the relationship strength model.
type RelationshipConfig struct {
	HalflifeDays float64 `yaml:"halflife_days"`
}

// HostConfig selects the external notifier implementation.
type HostConfig struct {
	Type string `yaml:"type"` // "noop" | "openclaw"
}

// Default returns the configuration with every spec §6.4 default applied.
func Default() *Config {
	return &Config{
		Reflex: ReflexConfig{HardMaxMessagesPerHour: 20},
		Layer1: Layer1Config{BatchSize: 10, MaxWaitMs: 600_000},
		Staleness: StalenessConfig{
			CarapaceStaleDays:        60,
			MonotonyThreshold:        0.90,
			GroomRepetitionThreshold: 0.85,
		},
		Trust:        TrustConfig{MonthlyDecay: 0.99},
		Relationship: RelationshipConfig{HalflifeDays: 7},
		Host:         HostConfig{Type: "noop"},
	}
}

// Load reads path (if present) over the defaults, then applies environment
// overrides. A missing file is not an error — defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err == nil {
			defer f.Close()
			if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := getEnvInt("HARD_MAX_MESSAGES_PER_HOUR", 0); v > 0 {
		c.Reflex.HardMaxMessagesPerHour = v
	}
	if v := getEnvInt("L1_BATCH_SIZE", 0); v > 0 {
		c.Layer1.BatchSize = v
	}
	if v := getEnvInt("L1_MAX_WAIT_MS", 0); v > 0 {
		c.Layer1.MaxWaitMs = v
	}
	if v := getEnvInt("CARAPACE_STALE_DAYS", 0); v > 0 {
		c.Staleness.CarapaceStaleDays = v
	}
	if v := getEnvFloat("MONOTONY_THRESHOLD", 0); v > 0 {
		c.Staleness.MonotonyThreshold = v
	}
	if v := getEnvFloat("GROOM_REPETITION_THRESHOLD", 0); v > 0 {
		c.Staleness.GroomRepetitionThreshold = v
	}
	if v := getEnvFloat("TRUST_MONTHLY_DECAY", 0); v > 0 {
		c.Trust.MonthlyDecay = v
	}
	if v := getEnvFloat("RELATIONSHIP_HALFLIFE_DAYS", 0); v > 0 {
		c.Relationship.HalflifeDays = v
	}
	if v := os.Getenv("HOST_TYPE"); v != "" {
		c.Host.Type = v
	}
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return fallback
}
