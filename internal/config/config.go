package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	DefaultBaudRate       = 9600
	DefaultReadTimeoutMS  = 50
	DefaultWriteTimeoutMS = 250
	DefaultSettleMS       = 200
	DefaultPollMS         = 50
	DefaultDrainLimit     = 50
	DefaultSampleCapacity = 320
	DefaultLogLevel       = "info"
	DefaultLogFile        = ".dct/dct.log"
)

// Config holds all dct configuration.
type Config struct {
	SerialPort     string `json:"serial_port,omitempty"`
	SerialBaudRate int    `json:"serial_baud_rate,omitempty"`
	ReadTimeoutMS  int    `json:"read_timeout_ms,omitempty"`
	WriteTimeoutMS int    `json:"write_timeout_ms,omitempty"`
	SettleMS       int    `json:"settle_ms,omitempty"`
	PollMS         int    `json:"poll_ms,omitempty"`
	DrainLimit     int    `json:"drain_limit,omitempty"`
	SampleCapacity int    `json:"sample_capacity,omitempty"`
	LogLevel       string `json:"log_level,omitempty"`
	LogFile        string `json:"log_file,omitempty"`
	MetricsAddr    string `json:"metrics_addr,omitempty"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		SerialBaudRate: DefaultBaudRate,
		ReadTimeoutMS:  DefaultReadTimeoutMS,
		WriteTimeoutMS: DefaultWriteTimeoutMS,
		SettleMS:       DefaultSettleMS,
		PollMS:         DefaultPollMS,
		DrainLimit:     DefaultDrainLimit,
		SampleCapacity: DefaultSampleCapacity,
		LogLevel:       DefaultLogLevel,
		LogFile:        DefaultLogFile,
	}
}

func (c Config) ReadTimeout() time.Duration  { return ms(c.ReadTimeoutMS) }
func (c Config) WriteTimeout() time.Duration { return ms(c.WriteTimeoutMS) }
func (c Config) Settle() time.Duration       { return ms(c.SettleMS) }
func (c Config) PollInterval() time.Duration { return ms(c.PollMS) }

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// Load reads and merges global and working-directory configs, then applies
// environment overrides.
// Order: defaults → global (~/.config/dct/config.json) → local (.dct/config.json) → DCT_* env.
func Load(root string) Config {
	cfg := Defaults()

	if home, err := os.UserHomeDir(); err == nil {
		mergeFromFile(&cfg, filepath.Join(home, ".config", "dct", "config.json"))
	}

	if root != "" {
		mergeFromFile(&cfg, filepath.Join(root, ".dct", "config.json"))
	}

	applyEnv(&cfg)
	return cfg
}

// Save writes the config to .dct/config.json under root by default,
// or to the global config if global is true.
func Save(cfg Config, root string, global bool) error {
	var dir string
	if global {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		dir = filepath.Join(home, ".config", "dct")
	} else {
		dir = filepath.Join(root, ".dct")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0o644)
}

func mergeFromFile(cfg *Config, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	var fileCfg Config
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		return
	}
	merge(cfg, fileCfg)
}

func merge(cfg *Config, over Config) {
	setString(&cfg.SerialPort, over.SerialPort)
	setInt(&cfg.SerialBaudRate, over.SerialBaudRate)
	setInt(&cfg.ReadTimeoutMS, over.ReadTimeoutMS)
	setInt(&cfg.WriteTimeoutMS, over.WriteTimeoutMS)
	setInt(&cfg.SettleMS, over.SettleMS)
	setInt(&cfg.PollMS, over.PollMS)
	setInt(&cfg.DrainLimit, over.DrainLimit)
	setInt(&cfg.SampleCapacity, over.SampleCapacity)
	setString(&cfg.LogLevel, over.LogLevel)
	setString(&cfg.LogFile, over.LogFile)
	setString(&cfg.MetricsAddr, over.MetricsAddr)
}

func applyEnv(cfg *Config) {
	cfg.SerialPort = getEnv("DCT_PORT", cfg.SerialPort)
	cfg.SerialBaudRate = getEnvAsInt("DCT_BAUD", cfg.SerialBaudRate)
	cfg.LogLevel = getEnv("DCT_LOG_LEVEL", cfg.LogLevel)
	cfg.MetricsAddr = getEnv("DCT_METRICS_ADDR", cfg.MetricsAddr)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
