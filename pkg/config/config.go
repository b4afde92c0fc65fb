// Package config loads service settings from defaults, an optional TOML file
// and environment variables, in that order of precedence.
package config

import (
	"encoding"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type ServerConfig struct {
	Host            string   `toml:"host" env:"SERVER_HOST" default:"0.0.0.0"`
	Port            int      `toml:"port" env:"SERVER_PORT" default:"5000"`
	ReadTimeout     Duration `toml:"read_timeout" env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    Duration `toml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" default:"90s"`
	ShutdownTimeout Duration `toml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	// RequestTimeout must exceed the stabilization ceiling plus one interval and one fetch.
	RequestTimeout Duration `toml:"request_timeout" env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
	// Comma separated in the environment; "*" allows any origin.
	AllowedOrigins []string `toml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" default:"*"`
}

type GoogleConfig struct {
	// Service account key. Privileged reads are used only when the file exists.
	ServiceAccountFile string `toml:"service_account_file" env:"GOOGLE_SERVICE_ACCOUNT_FILE"`
}

type StabilizeConfig struct {
	Interval     Duration `toml:"interval" env:"STABILIZE_INTERVAL" default:"1s"`
	Ceiling      Duration `toml:"ceiling" env:"STABILIZE_CEILING" default:"30s"`
	FetchTimeout Duration `toml:"fetch_timeout" env:"FETCH_TIMEOUT" default:"10s"`
}

type RateLimitConfig struct {
	Enabled           bool `toml:"enabled" env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `toml:"requests_per_minute" env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"60"`
}

type LoggingConfig struct {
	Level  string `toml:"level" env:"LOG_LEVEL" default:"info"`
	Format string `toml:"format" env:"LOG_FORMAT" default:"text"`
}

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Google    GoogleConfig    `toml:"google"`
	Stabilize StabilizeConfig `toml:"stabilize"`
	Rate      RateLimitConfig `toml:"rate_limit"`
	Logging   LoggingConfig   `toml:"logging"`
}

// Default returns the configuration built from the default tags alone.
func Default() *Config {
	c := &Config{}
	// Default tags are constants; a failure here is a programming error.
	if err := applyTags(reflect.ValueOf(c).Elem(), defaultTag); err != nil {
		panic(err)
	}
	return c
}

// Load reads defaults, then the TOML file at path (skipped when path is empty
// or the file does not exist), then environment overrides, and validates.
func Load(path string) (*Config, error) {
	c := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(b, c); err != nil {
				return nil, fmt.Errorf("config file %s: %w", path, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	if err := applyTags(reflect.ValueOf(c).Elem(), envTag); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return c, nil
}

// Save writes the configuration as TOML.
func (c *Config) Save(path string) error {
	b, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// worstCase is the longest a public export read can take: the ceiling is
// checked after a comparison, so one more interval and fetch may follow it.
func (c *StabilizeConfig) worstCase() time.Duration {
	return c.Ceiling.Duration + c.Interval.Duration + c.FetchTimeout.Duration
}

// Addr returns the listen address in host:port form.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// PrivilegedCredentials returns the service account file when it is set and
// present on disk.
func (c *GoogleConfig) PrivilegedCredentials() (string, bool) {
	if c.ServiceAccountFile == "" {
		return "", false
	}
	if _, err := os.Stat(c.ServiceAccountFile); err != nil {
		return "", false
	}
	return c.ServiceAccountFile, true
}

func defaultTag(f reflect.StructField) string {
	return f.Tag.Get("default")
}

func envTag(f reflect.StructField) string {
	if name := f.Tag.Get("env"); name != "" {
		return os.Getenv(name)
	}
	return ""
}

// applyTags walks v recursively and sets every field for which valueFor
// returns a non-empty string.
func applyTags(v reflect.Value, valueFor func(reflect.StructField) string) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)
		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && !isTextField(fieldVal) {
			if err := applyTags(fieldVal, valueFor); err != nil {
				return err
			}
			continue
		}

		value := valueFor(field)
		if value == "" {
			continue
		}
		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", field.Tag.Get("env"), value, err)
		}
	}
	return nil
}

// Duration is a time.Duration written as "1s", "500ms" in TOML files.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func isTextField(field reflect.Value) bool {
	_, ok := field.Addr().Interface().(encoding.TextUnmarshaler)
	return ok
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	if u, ok := field.Addr().Interface().(encoding.TextUnmarshaler); ok {
		return u.UnmarshalText([]byte(value))
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(i)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type())
		}
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		field.Set(reflect.ValueOf(items))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}
	return nil
}

// Validate checks that the configuration is usable and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout.Duration < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout.Duration <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if worst := c.Stabilize.worstCase(); c.Server.RequestTimeout.Duration <= worst {
		errs = append(errs, fmt.Sprintf("SERVER_REQUEST_TIMEOUT (%s) must exceed STABILIZE_CEILING + STABILIZE_INTERVAL + FETCH_TIMEOUT (%s)",
			c.Server.RequestTimeout, worst))
	}
	if len(c.Server.AllowedOrigins) == 0 {
		errs = append(errs, "CORS_ALLOWED_ORIGINS must list at least one origin")
	}

	if c.Stabilize.Interval.Duration <= 0 {
		errs = append(errs, "STABILIZE_INTERVAL must be positive")
	}
	if c.Stabilize.Ceiling.Duration < c.Stabilize.Interval.Duration {
		errs = append(errs, "STABILIZE_CEILING must be at least STABILIZE_INTERVAL")
	}
	if c.Stabilize.FetchTimeout.Duration <= 0 {
		errs = append(errs, "FETCH_TIMEOUT must be positive")
	}

	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
