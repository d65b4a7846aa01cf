package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration.
type Config struct {
	Telegram struct {
		Token              string `yaml:"token"`
		PollTimeoutSeconds int    `yaml:"poll_timeout_seconds"`
	} `yaml:"telegram"`
	Detector struct {
		UseOCR            bool   `yaml:"use_ocr"`
		OCRLanguage       string `yaml:"ocr_language"`
		OCRErrorsNonFatal bool   `yaml:"ocr_errors_non_fatal"`
	} `yaml:"detector"`
	Moderation struct {
		BanDurationSeconds int64 `yaml:"ban_duration_seconds"`
	} `yaml:"moderation"`
	Database struct {
		URL            string `yaml:"url"`
		MigrationsPath string `yaml:"migrations_path"`
	} `yaml:"database"`
	Server struct {
		Enabled           bool   `yaml:"enabled"`
		Port              string `yaml:"port"`
		JWTSecret         string `yaml:"jwt_secret"`
		AdminUsername     string `yaml:"admin_username"`
		AdminPasswordHash string `yaml:"admin_password_hash"`
	} `yaml:"server"`
	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file overrides a value.
func Default() *Config {
	cfg := &Config{}
	cfg.Telegram.PollTimeoutSeconds = 60
	cfg.Detector.OCRLanguage = "eng"
	cfg.Moderation.BanDurationSeconds = 24 * 60 * 60
	cfg.Database.MigrationsPath = "migrations"
	cfg.Server.Port = ":8080"
	cfg.Server.AdminUsername = "admin"
	cfg.Log.Level = "info"
	return cfg
}

// LoadConfig reads configuration from the specified YAML file on top of the
// defaults, then applies environment overrides. A missing file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	config := Default()

	if configPath != "" {
		file, err := os.Open(configPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to open config file: %w", err)
		default:
			defer file.Close()
			decoder := yaml.NewDecoder(file)
			if err := decoder.Decode(config); err != nil {
				return nil, fmt.Errorf("failed to decode config file: %w", err)
			}
		}
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv("USE_OCR"); ok {
		c.Detector.UseOCR = parseFlag(v)
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Server.JWTSecret = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Telegram treats an until_date closer than 30 seconds or further than 366
// days as a permanent restriction.
const (
	MinBanDurationSeconds = 30
	MaxBanDurationSeconds = 366 * 24 * 60 * 60
)

// Validate checks values that would otherwise fail deep inside the wiring.
func (c *Config) Validate() error {
	if d := c.Moderation.BanDurationSeconds; d < MinBanDurationSeconds || d > MaxBanDurationSeconds {
		return fmt.Errorf("moderation.ban_duration_seconds must be between %d and %d, got %d",
			MinBanDurationSeconds, MaxBanDurationSeconds, d)
	}
	if c.Telegram.PollTimeoutSeconds < 0 {
		return fmt.Errorf("telegram.poll_timeout_seconds must not be negative")
	}
	if c.Server.Enabled && c.Server.JWTSecret == "" {
		return fmt.Errorf("server.jwt_secret is required when the admin API is enabled")
	}
	return nil
}

func parseFlag(v string) bool {
	v = strings.TrimSpace(v)
	return v == "1" || strings.EqualFold(v, "true")
}
