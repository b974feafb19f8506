package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		LockTTL  string `yaml:"lock_ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Game struct {
		AnswerWindow     string `yaml:"answer_window"`
		ResultsDelay     string `yaml:"results_delay"`
		FinalDelay       string `yaml:"final_delay"`
		WinThreshold     int    `yaml:"win_threshold"`
		HeartbeatTimeout string `yaml:"heartbeat_timeout"`
		SweepInterval    string `yaml:"sweep_interval"`
		StaleProcessing  string `yaml:"stale_processing"`
		RecoveryGrace    string `yaml:"recovery_grace"`
	} `yaml:"game"`
	Retry struct {
		Attempts int    `yaml:"attempts"`
		Initial  string `yaml:"initial"`
		Max      string `yaml:"max"`
	} `yaml:"retry"`
	Questions struct {
		TTL string `yaml:"ttl"`
	} `yaml:"questions"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// IntOr returns v, or fallback when v is not positive.
func IntOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
