// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrInvalidPort is returned when PORT is outside 1-65535.
	ErrInvalidPort = errors.New("config: PORT must be between 1 and 65535")
	// ErrInvalidLimit is returned when a size or concurrency limit is not positive.
	ErrInvalidLimit = errors.New("config: limits must be positive")
	// ErrS3RegionRequired is returned when S3_BUCKET is set without S3_REGION.
	ErrS3RegionRequired = errors.New("config: S3_REGION is required when S3_BUCKET is set")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port           int    `env:"PORT, default=8000" json:"port"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS, default=*" json:"allowed_origins"`
	OutputFilename string `env:"OUTPUT_FILENAME, default=output.mp4" json:"output_filename"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/beatloop" json:"temp_dir"`

	// Encoder settings
	FFmpegPath  string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`

	// Processing limits
	MaxUploadBytes       int64 `env:"MAX_UPLOAD_BYTES, default=52428800" json:"max_upload_bytes"`
	MaxConcurrentRenders int   `env:"MAX_CONCURRENT_RENDERS, default=2" json:"max_concurrent_renders"`
	MaxFrames            int   `env:"MAX_FRAMES, default=2000" json:"max_frames"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig
// and validates it.
func Load() (*Config, error) {
	return load(envconfig.OsLookuper())
}

func load(lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the limits are usable.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("%w: MAX_UPLOAD_BYTES=%d", ErrInvalidLimit, c.MaxUploadBytes)
	}
	if c.MaxConcurrentRenders <= 0 {
		return fmt.Errorf("%w: MAX_CONCURRENT_RENDERS=%d", ErrInvalidLimit, c.MaxConcurrentRenders)
	}
	if c.MaxFrames <= 0 {
		return fmt.Errorf("%w: MAX_FRAMES=%d", ErrInvalidLimit, c.MaxFrames)
	}
	if c.S3Bucket != "" && c.S3Region == "" {
		return ErrS3RegionRequired
	}
	return nil
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c *Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stdout)
}

// NewLoggerTo is NewLogger writing to w.
func (c *Config) NewLoggerTo(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(c.LogLevel),
	}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, TempDir: %s, FFmpegPath: %s, MaxUploadBytes: %d, MaxConcurrentRenders: %d, MaxFrames: %d, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.TempDir,
		c.FFmpegPath,
		c.MaxUploadBytes,
		c.MaxConcurrentRenders,
		c.MaxFrames,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
