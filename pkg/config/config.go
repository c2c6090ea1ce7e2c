// Package config loads docdiag project configuration.
//
// Configuration comes from, in increasing priority: built-in defaults, a
// docdiag.toml file in the project directory, DOCDIAG_* environment
// variables and command-line flags. Extensions register their own flat
// config values (e.g. blockdiag_antialias) with [Config.SetDefault] and read
// them back with [Config.Get].
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	derrors "github.com/matzehuels/docdiag/pkg/errors"
)

// FileName is the configuration file looked up in the project directory.
const FileName = "docdiag.toml"

// Builder names.
const (
	BuilderHTML  = "html"
	BuilderLaTeX = "latex"
	BuilderText  = "text"
)

// Config is the project configuration.
type Config struct {
	Source     string        `mapstructure:"source"`
	Output     string        `mapstructure:"output"`
	Builder    string        `mapstructure:"builder"`
	Extensions []string      `mapstructure:"extensions"`
	Project    ProjectConfig `mapstructure:"project"`
	Cache      CacheConfig   `mapstructure:"cache"`
	Server     ServerConfig  `mapstructure:"server"`

	v *viper.Viper
}

// ProjectConfig holds document metadata used by the page templates.
type ProjectConfig struct {
	Title  string `mapstructure:"title"`
	Author string `mapstructure:"author"`
}

// CacheConfig selects the artifact index backend.
type CacheConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
	URL     string `mapstructure:"url"`
	Scope   string `mapstructure:"scope"`
	Verify  bool   `mapstructure:"verify"`
}

// ServerConfig configures the preview server.
type ServerConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// File is an explicit config file. When empty, docdiag.toml is looked up
	// in Dir and a missing file is not an error.
	File string
	// Dir is the project directory (default ".").
	Dir string
	// Flags are bound to their config keys when set.
	Flags *pflag.FlagSet
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"source":        "source",
	"out":           "output",
	"builder":       "builder",
	"cache-backend": "cache.backend",
	"cache-url":     "cache.url",
	"host":          "server.host",
	"port":          "server.port",
}

// Load reads the configuration.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		dir := opts.Dir
		if dir == "" {
			dir = "."
		}
		v.AddConfigPath(dir)
		v.SetConfigName(strings.TrimSuffix(FileName, ".toml"))
		v.SetConfigType("toml")
	}

	v.SetEnvPrefix("DOCDIAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, derrors.Wrap(derrors.ErrCodeInvalidConfig, err, "read config")
		}
	}

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, derrors.Wrap(derrors.ErrCodeInvalidConfig, err, "bind flag %s", name)
				}
			}
		}
	}

	return fromViper(v)
}

// Default returns the built-in configuration without reading any file.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, _ := fromViper(v)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source", ".")
	v.SetDefault("output", "_build")
	v.SetDefault("builder", BuilderHTML)
	v.SetDefault("extensions", []string{"blockdiag"})
	v.SetDefault("project.title", "Documentation")
	v.SetDefault("cache.backend", "file")
	v.SetDefault("cache.verify", true)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.debounce", 300*time.Millisecond)
}

func fromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, derrors.Wrap(derrors.ErrCodeInvalidConfig, err, "decode config")
	}
	cfg.Builder = strings.ToLower(cfg.Builder)
	cfg.Cache.Backend = strings.ToLower(cfg.Cache.Backend)
	cfg.v = v

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	switch c.Builder {
	case BuilderHTML, BuilderLaTeX, BuilderText:
	default:
		return derrors.New(derrors.ErrCodeInvalidConfig, "unknown builder: %s (use html, latex or text)", c.Builder)
	}
	switch c.Cache.Backend {
	case "file", "redis", "none":
	default:
		return derrors.New(derrors.ErrCodeInvalidConfig, "unknown cache backend: %s", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Cache.URL == "" {
		return derrors.New(derrors.ErrCodeInvalidConfig, "cache.url is required for the redis backend")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return derrors.New(derrors.ErrCodeInvalidConfig, "invalid server port: %d", c.Server.Port)
	}
	if c.Source == "" || c.Output == "" {
		return derrors.New(derrors.ErrCodeInvalidConfig, "source and output directories are required")
	}
	return nil
}

// SetDefault registers an extension config value and its default.
func (c *Config) SetDefault(key string, value any) {
	c.viper().SetDefault(key, value)
}

// Set overrides a config value.
func (c *Config) Set(key string, value any) {
	c.viper().Set(key, value)
}

// Get returns a config value, or nil if neither set nor registered.
func (c *Config) Get(key string) any {
	return c.viper().Get(key)
}

// GetBool returns a config value as bool.
func (c *Config) GetBool(key string) bool {
	return c.viper().GetBool(key)
}

// GetString returns a config value as string.
func (c *Config) GetString(key string) string {
	return c.viper().GetString(key)
}

// File returns the config file in use, or "".
func (c *Config) File() string {
	return c.viper().ConfigFileUsed()
}

func (c *Config) viper() *viper.Viper {
	if c.v == nil {
		c.v = viper.New()
	}
	return c.v
}
