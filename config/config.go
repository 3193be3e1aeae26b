// Package config loads the pipeline's JSON/YAML configuration file and
// merges in environment-variable overrides, the way the CLI's root
// command wires viper together with cobra flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix is the environment-variable prefix viper uses for overrides,
// e.g. NEWSARCHIVE_OCR_MAX_WORKERS overrides ocr.max_workers.
const EnvPrefix = "NEWSARCHIVE"

// OCR holds the ocr.* configuration keys.
type OCR struct {
	Language   string `mapstructure:"language"`
	Engine     string `mapstructure:"engine"`
	MaxWorkers int    `mapstructure:"max_workers"`
}

// Downloader holds the downloader.* configuration keys.
type Downloader struct {
	RateLimit     float64 `mapstructure:"rate_limit"`
	MaxWorkers    int     `mapstructure:"max_workers"`
	RetryAttempts int     `mapstructure:"retry_attempts"`
}

// Queue holds the queue.* configuration keys.
type Queue struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	BatchSize     int           `mapstructure:"batch_size"`
}

// Retention holds the retention.* configuration keys.
type Retention struct {
	ArchiveDays int `mapstructure:"archive_days"`
}

// Log controls the structured logger. Not named in the external
// configuration surface but carried alongside it, since every component
// needs a logger regardless of which features are in scope.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the fully-resolved configuration: file values overridden by
// environment variables under EnvPrefix.
type Config struct {
	RepositoryPath   string `mapstructure:"repository_path"`
	DatabasePath     string `mapstructure:"database_path"`
	SearchIndexPath  string `mapstructure:"search_index_path"`
	MainDatabasePath string `mapstructure:"main_database_path"`

	// EventsRedisURL is not in the enumerated configuration surface; it
	// is an optional ambient addition that, when set, lets the pipeline
	// service publish task-completion events to a Redis pub/sub channel.
	// Empty disables event publishing entirely.
	EventsRedisURL string `mapstructure:"events_redis_url"`

	OCR        OCR        `mapstructure:"ocr"`
	Downloader Downloader `mapstructure:"downloader"`
	Queue      Queue      `mapstructure:"queue"`
	Retention  Retention  `mapstructure:"retention"`
	Log        Log        `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.engine", "tesseract")
	v.SetDefault("ocr.max_workers", 2)
	v.SetDefault("downloader.rate_limit", 2.0)
	v.SetDefault("downloader.max_workers", 4)
	v.SetDefault("downloader.retry_attempts", 5)
	v.SetDefault("queue.poll_interval", "5s")
	v.SetDefault("queue.max_concurrent", 2)
	v.SetDefault("queue.batch_size", 1)
	v.SetDefault("retention.archive_days", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("events_redis_url", "")
}

// DefaultPath returns the config file path used when the caller does not
// pass --config: ~/.newsarchive/config.yaml.
func DefaultPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home directory: %w", err)
	}
	return home + "/.newsarchive/config.yaml", nil
}

// Load reads the config file at path (JSON or YAML, detected by
// extension), applies NEWSARCHIVE_* environment overrides, and validates
// the result. A missing file is not an error; defaults and environment
// variables still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate applies the same require/range checks the ambient stack uses
// elsewhere: required fields and bounded integers, collected into a
// single error rather than failing on the first violation.
func validate(cfg *Config) error {
	v := newValidator()

	v.requireString("repository_path", cfg.RepositoryPath)
	v.requireString("database_path", cfg.DatabasePath)
	v.requirePositiveInt("ocr.max_workers", cfg.OCR.MaxWorkers)
	v.requirePositiveInt("downloader.max_workers", cfg.Downloader.MaxWorkers)
	v.requirePositiveInt("downloader.retry_attempts", cfg.Downloader.RetryAttempts)
	v.requirePositiveInt("queue.max_concurrent", cfg.Queue.MaxConcurrent)
	v.requirePositiveInt("queue.batch_size", cfg.Queue.BatchSize)
	v.requireOneOf("log.level", cfg.Log.Level, []string{"debug", "info", "warn", "error"})
	v.requireOneOf("log.format", cfg.Log.Format, []string{"text", "json"})

	return v.err()
}

type validator struct {
	errors []string
}

func newValidator() *validator { return &validator{} }

func (v *validator) requireString(field, value string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
	}
}

func (v *validator) requirePositiveInt(field string, value int) {
	if value <= 0 {
		v.errors = append(v.errors, fmt.Sprintf("%s must be positive", field))
	}
}

func (v *validator) requireOneOf(field, value string, allowed []string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.errors = append(v.errors, fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", ")))
}

func (v *validator) err() error {
	if len(v.errors) == 0 {
		return nil
	}
	return fmt.Errorf("configuration validation failed: %s", strings.Join(v.errors, "; "))
}
