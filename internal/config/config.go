// Package config loads vocabdrill settings. Values are resolved from, in
// order of precedence:
//  1. Command-line flags bound with BindFlags
//  2. Environment variables (VOCABDRILL_*, also read from a .env file)
//  3. The YAML config file given with --config
//  4. Defaults
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. VOCABDRILL_LOG_LEVEL.
const EnvPrefix = "VOCABDRILL"

// Storage drivers.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// Config holds all settings.
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Log      LogConfig      `mapstructure:"log"`
	Scoring  ScoringConfig  `mapstructure:"scoring"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
}

// StorageConfig selects the backend.
type StorageConfig struct {
	// Driver is "json" or "sqlite".
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
}

// ScoringConfig tunes the ranker.
type ScoringConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	InlineThreshold int           `mapstructure:"inline_threshold"`
	Workers         int           `mapstructure:"workers"`
}

// ScheduleConfig holds the default session sizes.
type ScheduleConfig struct {
	FlashcardLimit int `mapstructure:"flashcard_limit"`
	QuizLimit      int `mapstructure:"quiz_limit"`
	ReviewLimit    int `mapstructure:"review_limit"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Storage:  StorageConfig{Driver: DriverJSON, Path: "./vocabdrill.json"},
		Log:      LogConfig{Level: "info", Format: "console"},
		Scoring:  ScoringConfig{Timeout: 30 * time.Second, InlineThreshold: 10, Workers: runtime.NumCPU()},
		Schedule: ScheduleConfig{FlashcardLimit: 50, QuizLimit: 30, ReviewLimit: 50},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("scoring.timeout", d.Scoring.Timeout)
	v.SetDefault("scoring.inline_threshold", d.Scoring.InlineThreshold)
	v.SetDefault("scoring.workers", d.Scoring.Workers)
	v.SetDefault("schedule.flashcard_limit", d.Schedule.FlashcardLimit)
	v.SetDefault("schedule.quiz_limit", d.Schedule.QuizLimit)
	v.SetDefault("schedule.review_limit", d.Schedule.ReviewLimit)
}

// Loader reads configuration. The zero value is not usable; use NewLoader.
type Loader struct {
	v *viper.Viper
	// DotEnv is the .env file read before the environment. Empty skips it.
	DotEnv string
}

// NewLoader returns a Loader with defaults and environment binding set up.
func NewLoader() *Loader {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v, DotEnv: ".env"}
}

// BindFlags makes flag values override the matching keys, e.g. the
// "log-level" flag overrides log.level.
func (l *Loader) BindFlags(flags *pflag.FlagSet, keys map[string]string) error {
	for key, name := range keys {
		f := flags.Lookup(name)
		if f == nil {
			return fmt.Errorf("unknown flag %q for key %s", name, key)
		}
		if err := l.v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %q: %w", name, err)
		}
	}
	return nil
}

// Load resolves the configuration. configFile may be empty.
func (l *Loader) Load(configFile string) (Config, error) {
	if l.DotEnv != "" {
		// godotenv never overrides variables that are already set
		if err := godotenv.Load(l.DotEnv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", l.DotEnv, err)
		}
	}

	if configFile != "" {
		l.v.SetConfigFile(configFile)
		if err := l.v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load is a shorthand for NewLoader().Load(configFile).
func Load(configFile string) (Config, error) {
	return NewLoader().Load(configFile)
}

// Validate rejects settings the rest of the program cannot work with.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case DriverJSON, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be %q or %q, got %q", DriverJSON, DriverSQLite, c.Storage.Driver))
	}
	if c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path must not be empty"))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}
	if c.Scoring.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("scoring.timeout must be positive, got %s", c.Scoring.Timeout))
	}
	if c.Scoring.InlineThreshold < 1 {
		errs = append(errs, fmt.Errorf("scoring.inline_threshold must be at least 1, got %d", c.Scoring.InlineThreshold))
	}
	if c.Scoring.Workers < 0 {
		errs = append(errs, fmt.Errorf("scoring.workers must not be negative, got %d", c.Scoring.Workers))
	}
	if c.Schedule.FlashcardLimit < 0 || c.Schedule.QuizLimit < 0 || c.Schedule.ReviewLimit < 0 {
		errs = append(errs, errors.New("schedule limits must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
