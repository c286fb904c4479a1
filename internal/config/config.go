// Package config loads routine quest settings from defaults, an optional
// YAML file and ROUTINEQUEST_* environment variables, in that order of
// precedence.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// ROUTINEQUEST_AUTH_SECRET for auth.secret.
const EnvPrefix = "ROUTINEQUEST"

// Config represents the complete routine quest configuration
type Config struct {
	Environment string     `mapstructure:"environment"`
	DataDir     string     `mapstructure:"data_dir"`
	HTTP        HTTPConfig `mapstructure:"http"`
	Auth        AuthConfig `mapstructure:"auth"`
	Log         LogConfig  `mapstructure:"log"`
}

// HTTPConfig controls the REST API server
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
	// CORSOrigins lists the browser origins allowed to call the API
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig controls access tokens
type AuthConfig struct {
	// Secret signs and verifies tokens. Required by every command that
	// touches tokens.
	Secret string `mapstructure:"secret"`
	// Token identifies the user the MCP server acts for
	Token    string        `mapstructure:"token"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Level string `mapstructure:"level"`
	// File, when set, receives logs instead of stderr. Relative paths are
	// resolved against DataDir.
	File string `mapstructure:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		Environment: "development",
		DataDir:     filepath.Join(home, ".routinequest"),
		HTTP: HTTPConfig{
			Addr:            ":8000",
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:8080"},
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			TokenTTL: 8 * 24 * time.Hour,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// SetDefaults registers every key with v so that environment overrides
// and Unmarshal see the full key set.
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("environment", defaults.Environment)
	v.SetDefault("data_dir", defaults.DataDir)

	v.SetDefault("http.addr", defaults.HTTP.Addr)
	v.SetDefault("http.cors_origins", defaults.HTTP.CORSOrigins)
	v.SetDefault("http.shutdown_timeout", defaults.HTTP.ShutdownTimeout)

	v.SetDefault("auth.secret", defaults.Auth.Secret)
	v.SetDefault("auth.token", defaults.Auth.Token)
	v.SetDefault("auth.token_ttl", defaults.Auth.TokenTTL)

	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.file", defaults.Log.File)
}

// Init prepares v: defaults, environment binding and the config file.
// An explicit file must exist; the default file is optional.
func Init(v *viper.Viper, file string) error {
	SetDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(ConfigDir())
	}

	v.SetEnvPrefix(EnvPrefix)
	// ROUTINEQUEST_HTTP_ADDR for http.addr
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file == "" && errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

// Load reads the configuration from v into a Config struct and validates it
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// LogFile returns the absolute log file path, or "" for stderr.
func (c *Config) LogFile() string {
	if c.Log.File == "" || filepath.IsAbs(c.Log.File) {
		return c.Log.File
	}
	return filepath.Join(c.DataDir, c.Log.File)
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "routinequest")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".routinequest"
	}
	return filepath.Join(home, ".config", "routinequest")
}

// ConfigFile returns the path to the default config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
