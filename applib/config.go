package applib

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	DefaultTarget     = "sqlite:////var/lib/opecstate/states.db"
	DefaultPort       = 8080
	DefaultConfigFile = "opecstate.yaml"
	EnvPrefix         = "OPECSTATE_"
)

type Config struct {
	// Target is the connection target, e.g. sqlite:////var/lib/opecstate/states.db.
	Target string `koanf:"target"`

	// Models names the entity tables that must be registered before InitDB
	// runs.
	Models []string `koanf:"models"`

	MaxOpenConns      int           `koanf:"max_open_conns"`
	Port              int           `koanf:"port"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	EnableCrossOrigin bool          `koanf:"enable_cross_origin"`
	LogLevel          string        `koanf:"log_level"`
	LogFormat         string        `koanf:"log_format"`
}

// LoadConfig loads configuration from defaults, the YAML config file,
// OPECSTATE_* environment variables and flags, each overriding the one
// before. When cfgFile is empty, opecstate.yaml in the working directory is
// used if it exists.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"target":              DefaultTarget,
		"models":              []string{"state", "user"},
		"max_open_conns":      0,
		"port":                DefaultPort,
		"shutdown_timeout":    "10s",
		"enable_cross_origin": false,
		"log_level":           "info",
		"log_format":          "json",
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if cfgFile == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			cfgFile = DefaultConfigFile
		}
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	// OPECSTATE_LOG_LEVEL -> log_level
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Target) == "" {
		return fmt.Errorf("invalid config: target must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid config: port %d out of range", c.Port)
	}
	if c.MaxOpenConns < 0 {
		return fmt.Errorf("invalid config: max_open_conns must not be negative")
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("invalid config: shutdown_timeout must not be negative")
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("invalid config: log_format must be json or text, got %q", c.LogFormat)
	}
	return nil
}
