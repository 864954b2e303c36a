// Package config loads the server configuration from a YAML, TOML or JSON
// file with JSHANDLER_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/cryguy/jshandler"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. JSHANDLER_WORKERS=8 or
// JSHANDLER_ENGINE_BACKEND=goja.
const EnvPrefix = "JSHANDLER"

// KnownBackends are the engine names the configuration accepts. Whether
// one is compiled in is checked when the handler is built.
var KnownBackends = []string{"quickjs", "goja", "v8"}

// Config is the complete server configuration.
type Config struct {
	Listen          string        `mapstructure:"listen" yaml:"listen"`
	Workers         int           `mapstructure:"workers" yaml:"workers"`
	MaxConnections  int           `mapstructure:"max_connections" yaml:"max_connections"`
	H2C             bool          `mapstructure:"h2c" yaml:"h2c"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	Engine      EngineConfig      `mapstructure:"engine" yaml:"engine"`
	Compression CompressionConfig `mapstructure:"compression" yaml:"compression"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
	Routes      []Route           `mapstructure:"routes" yaml:"routes"`
}

// EngineConfig selects and limits the script engine.
type EngineConfig struct {
	Backend         string `mapstructure:"backend" yaml:"backend"`
	MemoryLimitMB   int    `mapstructure:"memory_limit_mb" yaml:"memory_limit_mb"`
	MaxScriptSizeKB int    `mapstructure:"max_script_size_kb" yaml:"max_script_size_kb"`
}

// CompressionConfig controls response compression.
type CompressionConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	MinSize int  `mapstructure:"min_size" yaml:"min_size"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Route binds a URL path prefix to an entry script.
type Route struct {
	Path   string `mapstructure:"path" yaml:"path"`
	Script string `mapstructure:"script" yaml:"script"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":8080")
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("max_connections", 0)
	v.SetDefault("h2c", true)
	v.SetDefault("shutdown_timeout", 10*time.Second)

	def := jshandler.DefaultEngineConfig()
	v.SetDefault("engine.backend", def.Backend)
	v.SetDefault("engine.memory_limit_mb", def.MemoryLimitMB)
	v.SetDefault("engine.max_script_size_kb", def.MaxScriptSizeKB)

	v.SetDefault("compression.enabled", true)
	v.SetDefault("compression.min_size", 256)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the file at path, applies environment overrides and defaults,
// and validates the result. An empty path uses defaults and environment
// only. Relative script paths are resolved against the file's directory.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if path != "" {
		base := filepath.Dir(path)
		for i, r := range cfg.Routes {
			if r.Script != "" && !filepath.IsAbs(r.Script) {
				cfg.Routes[i].Script = filepath.Join(base, r.Script)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.MaxConnections < 0 {
		errs = append(errs, fmt.Errorf("max_connections must not be negative, got %d", c.MaxConnections))
	}
	if !slices.Contains(KnownBackends, c.Engine.Backend) {
		errs = append(errs, fmt.Errorf("engine.backend %q is not one of %v", c.Engine.Backend, KnownBackends))
	}
	seen := make(map[string]bool, len(c.Routes))
	for i, r := range c.Routes {
		switch {
		case r.Path == "":
			errs = append(errs, fmt.Errorf("routes[%d]: path is empty", i))
		case !strings.HasPrefix(r.Path, "/"):
			errs = append(errs, fmt.Errorf("routes[%d]: path %q must start with /", i, r.Path))
		case seen[r.Path]:
			errs = append(errs, fmt.Errorf("routes[%d]: path %q is configured twice", i, r.Path))
		}
		seen[r.Path] = true
		if r.Script == "" {
			errs = append(errs, fmt.Errorf("routes[%d]: script is empty", i))
		}
	}
	return errors.Join(errs...)
}

// EngineConfig converts the engine section for jshandler.NewHandler.
func (c *Config) EngineConfig() jshandler.EngineConfig {
	return jshandler.EngineConfig{
		Backend:         c.Engine.Backend,
		MemoryLimitMB:   c.Engine.MemoryLimitMB,
		MaxScriptSizeKB: c.Engine.MaxScriptSizeKB,
	}
}
