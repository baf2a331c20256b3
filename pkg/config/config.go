// Package config loads the planner configuration from
// ~/.config/planner/config.yaml, PLANNER_* environment variables and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	appName    = "planner"
	configFile = "config.yaml"
	envPrefix  = "PLANNER"
)

// ErrExists is returned by WriteDefault when the file is already there.
var ErrExists = errors.New("config file already exists")

// Config is the planner's configuration, read from config.yaml and
// PLANNER_* environment variables.
type Config struct {
	Storage       StorageConfig  `yaml:"storage" mapstructure:"storage"`
	Calendar      CalendarConfig `yaml:"calendar" mapstructure:"calendar"`
	Log           LogConfig      `yaml:"log" mapstructure:"log"`
	Serve         ServeConfig    `yaml:"serve" mapstructure:"serve"`
	CategoryOrder []string       `yaml:"category_order,omitempty" mapstructure:"category_order"`
}

// StorageConfig selects where the planner snapshot lives.
type StorageConfig struct {
	Backend string `yaml:"backend" mapstructure:"backend"` // file, sqlite or memory
	Dir     string `yaml:"dir" mapstructure:"dir"`
	Key     string `yaml:"key" mapstructure:"key"`
}

// CalendarConfig controls mirroring to Google Calendar. TimeZone is the
// IANA zone timed events are scheduled in; empty means the local zone.
type CalendarConfig struct {
	ID              string `yaml:"id" mapstructure:"id"`
	TimeZone        string `yaml:"time_zone" mapstructure:"time_zone"`
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`
	TokenFile       string `yaml:"token_file" mapstructure:"token_file"`
	Concurrency     int    `yaml:"concurrency" mapstructure:"concurrency"`
	// Colors overrides the event color id per category.
	Colors map[string]string `yaml:"colors,omitempty" mapstructure:"colors"`
}

// LogConfig sets the slog level and handler format (text or json).
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServeConfig configures the HTTP API.
type ServeConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// Dir is the planner's configuration directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName), nil
}

// Path is the default config file location.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

func dataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", appName)
}

// Default returns the built-in configuration.
func Default() *Config {
	dir, err := Dir()
	if err != nil {
		dir = "."
	}
	return &Config{
		Storage: StorageConfig{
			Backend: "file",
			Dir:     dataDir(),
			Key:     "plannerData",
		},
		Calendar: CalendarConfig{
			ID:              "primary",
			CredentialsFile: filepath.Join(dir, "credentials.json"),
			TokenFile:       filepath.Join(dir, "token.json"),
			Concurrency:     4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Serve: ServeConfig{
			Addr: "127.0.0.1:8080",
		},
	}
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("storage.backend", cfg.Storage.Backend)
	v.SetDefault("storage.dir", cfg.Storage.Dir)
	v.SetDefault("storage.key", cfg.Storage.Key)
	v.SetDefault("calendar.id", cfg.Calendar.ID)
	v.SetDefault("calendar.time_zone", cfg.Calendar.TimeZone)
	v.SetDefault("calendar.credentials_file", cfg.Calendar.CredentialsFile)
	v.SetDefault("calendar.token_file", cfg.Calendar.TokenFile)
	v.SetDefault("calendar.concurrency", cfg.Calendar.Concurrency)
	v.SetDefault("calendar.colors", map[string]string{})
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("serve.addr", cfg.Serve.Addr)
	v.SetDefault("category_order", []string{})
}

// LoadDotEnv loads variables from the given .env files (default ".env")
// into the environment. Missing files are ignored; variables already set
// win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the config file at path on top of the defaults and applies
// PLANNER_* overrides, e.g. PLANNER_CALENDAR_ID. An empty path means
// Path(); a missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := Path()
		if err != nil {
			return nil, err
		}
		path = p
	}

	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the planner cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "file", "sqlite", "memory":
	default:
		return fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend)
	}
	if c.Storage.Key == "" {
		return errors.New("storage.key must not be empty")
	}
	if c.Calendar.Concurrency < 1 {
		return fmt.Errorf("calendar.concurrency must be at least 1, got %d", c.Calendar.Concurrency)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	return nil
}

// Save writes cfg to path as YAML, creating the directory if needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// WriteDefault writes the default configuration to path. It refuses to
// overwrite an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s: %w", path, ErrExists)
	}
	return Save(path, Default())
}

// SetCalendar stores the calendar id in the config file at path, keeping
// the rest of the file.
func SetCalendar(path, calendarID string) error {
	cfg, err := readFile(path)
	if err != nil {
		return err
	}
	cfg.Calendar.ID = calendarID
	return Save(path, cfg)
}

// readFile decodes the file alone, without env overrides, so Save does not
// persist values that came from the environment.
func readFile(path string) (*Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	return cfg, nil
}
