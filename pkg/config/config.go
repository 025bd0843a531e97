// Package config loads allocgo settings.
//
// Sources, later ones winning:
//  1. built-in defaults
//  2. a YAML file named by Options.ConfigPath or ALLOCGO_CONFIG
//  3. a .env file (variables already set in the environment are kept)
//  4. ALLOCGO_* environment variables
//
// Command line flags are applied on top by the CLI.
package config

import (
	"bytes"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/allocgo/pkg/errors"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ALLOCGO_"

// Config holds the runtime settings.
type Config struct {
	ArtifactPath   string        `yaml:"artifact_path" validate:"required"`
	BaseScore      *float64      `yaml:"base_score"`
	LogLevel       string        `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat      string        `yaml:"log_format" validate:"oneof=json console"`
	Watch          bool          `yaml:"watch"`
	WatchDebounce  time.Duration `yaml:"watch_debounce" validate:"gt=0"`
	BatchThreshold int           `yaml:"batch_threshold" validate:"gte=0"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		LogLevel:       "info",
		LogFormat:      "json",
		WatchDebounce:  250 * time.Millisecond,
		BatchThreshold: 64,
	}
}

// Options selects the files Load reads.
type Options struct {
	// ConfigPath is the YAML file. Empty falls back to $ALLOCGO_CONFIG;
	// with neither set only defaults and the environment apply.
	ConfigPath string

	// EnvFile is the dotenv file, ".env" when empty. A missing file is
	// not an error.
	EnvFile string
}

var validate = validator.New()

// Load builds the configuration and validates every field except
// artifact_path, which only some commands need; see Validate.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrapf(err, "load env file %s", envFile)
	}

	cfg := Default()

	path := opts.ConfigPath
	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
		if err := decodeYAML(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config file %s", path)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.check(validate.StructExcept(cfg, "ArtifactPath")); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// Validate checks every field, including artifact_path.
func (c *Config) Validate() error {
	return c.check(validate.Struct(c))
}

func (c *Config) check(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "validate config")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := yamlName(fe.StructField()) + ": failed '" + fe.Tag() + "'"
		if fe.Param() != "" {
			msg += " (" + fe.Param() + ")"
		}
		msgs = append(msgs, msg)
	}
	return errors.Newf("invalid configuration: %s", strings.Join(msgs, "; "))
}

var yamlNames = map[string]string{
	"ArtifactPath":   "artifact_path",
	"BaseScore":      "base_score",
	"LogLevel":       "log_level",
	"LogFormat":      "log_format",
	"Watch":          "watch",
	"WatchDebounce":  "watch_debounce",
	"BatchThreshold": "batch_threshold",
}

func yamlName(field string) string {
	if n, ok := yamlNames[field]; ok {
		return n
	}
	return field
}

// applyEnv applies ALLOCGO_* overrides. Malformed values are errors rather
// than silently ignored.
func (c *Config) applyEnv() error {
	if v, ok := lookup("ARTIFACT_PATH"); ok {
		c.ArtifactPath = v
	}
	if v, ok := lookup("BASE_SCORE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return envError("BASE_SCORE", v, err)
		}
		c.BaseScore = &f
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		c.LogLevel = strings.ToLower(v)
	}
	if v, ok := lookup("LOG_FORMAT"); ok {
		c.LogFormat = strings.ToLower(v)
	}
	if v, ok := lookup("WATCH"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return envError("WATCH", v, err)
		}
		c.Watch = b
	}
	if v, ok := lookup("WATCH_DEBOUNCE"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return envError("WATCH_DEBOUNCE", v, err)
		}
		c.WatchDebounce = d
	}
	if v, ok := lookup("BATCH_THRESHOLD"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError("BATCH_THRESHOLD", v, err)
		}
		c.BatchThreshold = n
	}
	return nil
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func envError(name, value string, err error) error {
	return errors.Wrapf(err, "invalid %s%s=%q", EnvPrefix, name, value)
}
