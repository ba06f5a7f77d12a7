package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Benedict-Hyland/weather-modelling/internal/domain"
)

// Decoder backend names accepted by DECODER.
const (
	DecoderWgrib2 = "wgrib2"
	DecoderNative = "native"
)

// Output format names accepted by OUTPUT_FORMAT.
const (
	FormatZarr   = "zarr"
	FormatNetCDF = "netcdf"
	FormatBoth   = "both"
)

// Config holds all settings, populated from environment variables. Command
// line flags may override individual fields after Load.
type Config struct {
	DataDirs  []string // search roots for archive files
	OutputDir string
	WorkDir   string // scratch space for decoder interchange files

	Decoder    string
	Wgrib2Path string
	LevelMode  domain.LevelMode
	Format     string
	KeepWork   bool // retain interchange files for debugging

	// CleanupInputs removes consumed archive files after a successful write.
	CleanupInputs bool

	LogLevel    string
	LogFormat   string
	MetricsAddr string // empty disables the metrics listener

	// Optional completion notifications.
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	levels, err := strconv.Atoi(EnvOrDefault("LEVELS", "13"))
	if err != nil {
		return nil, fmt.Errorf("LEVELS: %w", err)
	}
	mode, err := domain.ParseLevelMode(levels)
	if err != nil {
		return nil, fmt.Errorf("LEVELS: %w", err)
	}

	cfg := &Config{
		DataDirs:  splitPathList(EnvOrDefault("DATA_DIR", "./extraction_data")),
		OutputDir: EnvOrDefault("OUTPUT_DIR", "./output"),
		WorkDir:   EnvOrDefault("WORK_DIR", filepath.Join(os.TempDir(), "gdas-prep")),

		Decoder:    EnvOrDefault("DECODER", DecoderWgrib2),
		Wgrib2Path: EnvOrDefault("WGRIB2_PATH", "wgrib2"),
		LevelMode:  mode,
		Format:     EnvOrDefault("OUTPUT_FORMAT", FormatZarr),
		KeepWork:   os.Getenv("KEEP_WORK") == "true",

		CleanupInputs: os.Getenv("CLEANUP_INPUTS") == "true",

		LogLevel:    EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:   EnvOrDefault("LOG_FORMAT", "json"),
		MetricsAddr: os.Getenv("METRICS_ADDR"),

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   EnvOrDefault("KAFKA_TOPIC", "gdas-artifacts"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the config after env loading and any flag overrides.
func (c *Config) Validate() error {
	if len(c.DataDirs) == 0 {
		return errors.New("DATA_DIR is required")
	}
	if c.OutputDir == "" {
		return errors.New("OUTPUT_DIR is required")
	}
	switch c.Decoder {
	case DecoderWgrib2, DecoderNative:
	default:
		return fmt.Errorf("DECODER must be %q or %q, got %q", DecoderWgrib2, DecoderNative, c.Decoder)
	}
	switch c.Format {
	case FormatZarr, FormatNetCDF, FormatBoth:
	default:
		return fmt.Errorf("OUTPUT_FORMAT must be %q, %q, or %q, got %q", FormatZarr, FormatNetCDF, FormatBoth, c.Format)
	}
	if c.Decoder == DecoderWgrib2 && c.Wgrib2Path == "" {
		return errors.New("WGRIB2_PATH is required with the wgrib2 decoder")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return errors.New("KAFKA_BROKERS is set but KAFKA_TOPIC is empty")
	}
	return nil
}

// NotifyEnabled reports whether completion events should be published.
func (c *Config) NotifyEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// EnvOrDefault returns the value of the environment variable or the default
// when unset or empty.
func EnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// splitList splits a comma-separated list, trimming whitespace and dropping
// empty entries.
func splitList(s string) []string {
	return splitOn(s, func(r rune) bool { return r == ',' })
}

// splitPathList additionally accepts the PATH-style colon separator. Only
// directory lists may use it: broker addresses carry a colon before the port.
func splitPathList(s string) []string {
	return splitOn(s, func(r rune) bool { return r == ',' || r == ':' })
}

func splitOn(s string, sep func(rune) bool) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, sep) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
