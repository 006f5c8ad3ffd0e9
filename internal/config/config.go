// Package config loads linked settings from a TOML or YAML file and
// LINKED_* environment variables.
package config

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/roach88/linked/internal/generator"
	"github.com/roach88/linked/internal/logger"
	"github.com/roach88/linked/internal/mutation"
	"github.com/roach88/linked/internal/namespace"
)

// EnvPrefix prefixes environment overrides: LINKED_DATABASE_PATH etc.
const EnvPrefix = "LINKED"

// Defaults.
const (
	DefaultDatabasePath = "linked.db"
	DefaultAnonBase     = "http://linked.backbone.org/models/anon#"
	DefaultLogLevel     = "info"
)

// Config is the complete configuration.
type Config struct {
	Database   DatabaseConfig    `mapstructure:"database"`
	Binding    BindingConfig     `mapstructure:"binding"`
	Namespaces map[string]string `mapstructure:"namespaces"`
	Log        LogConfig         `mapstructure:"log"`
}

// DatabaseConfig locates the SQLite store.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// BindingConfig tunes entity and view behavior.
type BindingConfig struct {
	AnonBase   string `mapstructure:"anon_base"`
	ModifyMode string `mapstructure:"modify_mode"`
	IDVariable string `mapstructure:"id_variable"`
}

// LogConfig selects the logger.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Defaults registers default values on v.
func Defaults(v *viper.Viper) {
	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("binding.anon_base", DefaultAnonBase)
	v.SetDefault("binding.modify_mode", string(mutation.Atomic))
	v.SetDefault("binding.id_variable", generator.DefaultIDVariable)
	v.SetDefault("namespaces", map[string]string{})
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.development", false)
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	Defaults(v)
	return v
}

// Load reads path (when not empty) on top of the defaults, applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates the settings held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail later.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database.path must not be empty")
	}
	if _, err := mutation.ParseModifyMode(c.Binding.ModifyMode); err != nil {
		return errors.Wrap(err, "binding.modify_mode")
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}
	if c.Binding.AnonBase != "" && !namespace.IsAbsolute(c.Binding.AnonBase) {
		return errors.Newf("binding.anon_base %q is not an absolute URI", c.Binding.AnonBase)
	}
	for prefix, uri := range c.Namespaces {
		if !namespace.IsAbsolute(uri) {
			return errors.Newf("namespaces.%s: %q is not an absolute URI", prefix, uri)
		}
	}
	return nil
}

// ModifyMode returns the parsed modify mode. Call after Validate.
func (c *Config) ModifyMode() mutation.ModifyMode {
	m, err := mutation.ParseModifyMode(c.Binding.ModifyMode)
	if err != nil {
		return mutation.Atomic
	}
	return m
}

// Register adds the configured namespaces to r.
func (c *Config) Register(r *namespace.Resolver) {
	for prefix, uri := range c.Namespaces {
		r.Register(uri, prefix)
	}
}

// Logger builds the configured logger. verbosity raises the level the way
// repeated -v flags do.
func (c *Config) Logger(verbosity int) (*zap.SugaredLogger, error) {
	lvl, err := logger.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	return logger.New(logger.VerbosityToLevel(verbosity, lvl), c.Log.Development)
}
