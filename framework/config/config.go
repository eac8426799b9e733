package config

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/mohae/deepcopy"
	"github.com/pkg/errors"
)

// Config is the central typed configuration struct. Values come from the
// environment (optionally seeded from a .env file) and may be overridden by
// a JSON config file via LoadFile.
type Config struct {
	App  AppConfig
	Log  LogConfig
	DB   DBConfig
	Tags map[string]string // free-form labels passed through to services
}

type AppConfig struct {
	Name  string
	Env   string // local | production | testing
	Debug bool
	URL   string
	Port  string
	Key   string
}

type LogConfig struct {
	// Level is the default log4g level name for the process.
	Level string
	// ConfigFile points at a log4g properties file; empty uses defaults.
	ConfigFile string
}

type DBConfig struct {
	Driver   string
	Host     string
	Port     string
	Database string
	Username string
	Password string
}

// Load reads .env (if present) and populates a Config from environment
// variables. Call once at bootstrap: cfg := config.Load()
func Load(envFiles ...string) *Config {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	// Non-fatal: .env may not exist in production
	_ = godotenv.Load(files...)

	return &Config{
		App: AppConfig{
			Name:  env("APP_NAME", "Loom"),
			Env:   env("APP_ENV", "local"),
			Debug: envBool("APP_DEBUG", true),
			URL:   env("APP_URL", "http://localhost"),
			Port:  env("APP_PORT", "8000"),
			Key:   env("APP_KEY", ""),
		},
		Log: LogConfig{
			Level:      env("LOG_LEVEL", "INFO"),
			ConfigFile: env("LOG_CONFIG_FILE", ""),
		},
		DB: DBConfig{
			Driver:   env("DB_DRIVER", "mysql"),
			Host:     env("DB_HOST", "127.0.0.1"),
			Port:     env("DB_PORT", "3306"),
			Database: env("DB_DATABASE", ""),
			Username: env("DB_USERNAME", "root"),
			Password: env("DB_PASSWORD", ""),
		},
	}
}

// LoadFile reads a JSON config file and decodes it into a Config. It
// returns nil without error if filename is empty or the file does not
// exist, so a missing optional file is not a failure.
func LoadFile(filename string) (*Config, error) {
	if filename == "" {
		return nil, nil
	}
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read config file %s", filename)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(err, "invalid JSON in config file %s", filename)
	}

	cfg := &Config{}
	if err := mapstructure.Decode(raw, cfg); err != nil {
		return nil, errors.Wrapf(err, "unable to decode config file %s", filename)
	}
	return cfg, nil
}

// Apply overrides c's properties by non-default values from other.
func (c *Config) Apply(other *Config) {
	if other == nil {
		return
	}
	applyString(&c.App.Name, other.App.Name)
	applyString(&c.App.Env, other.App.Env)
	applyString(&c.App.URL, other.App.URL)
	applyString(&c.App.Port, other.App.Port)
	applyString(&c.App.Key, other.App.Key)
	if other.App.Debug {
		c.App.Debug = true
	}
	applyString(&c.Log.Level, other.Log.Level)
	applyString(&c.Log.ConfigFile, other.Log.ConfigFile)
	applyString(&c.DB.Driver, other.DB.Driver)
	applyString(&c.DB.Host, other.DB.Host)
	applyString(&c.DB.Port, other.DB.Port)
	applyString(&c.DB.Database, other.DB.Database)
	applyString(&c.DB.Username, other.DB.Username)
	applyString(&c.DB.Password, other.DB.Password)
	if len(other.Tags) != 0 {
		c.Tags = deepcopy.Copy(other.Tags).(map[string]string)
	}
}

// Copy returns a deep copy of the config, safe to hand to services that
// mutate their view of it.
func (c *Config) Copy() *Config {
	return deepcopy.Copy(c).(*Config)
}

// Get returns a raw env value, falling back to defaultVal.
func Get(key, defaultVal string) string {
	return env(key, defaultVal)
}

// GetInt returns an int env value.
func GetInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

// GetBool returns a bool env value.
func GetBool(key string, defaultVal bool) bool {
	return envBool(key, defaultVal)
}

// ── helpers ─────────────────────────────────────────────────────────────────

func applyString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
