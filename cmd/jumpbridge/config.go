package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/richinsley/jumpbridge"
)

// Config is the server configuration. Values are layered: defaults, then
// the optional HCL file, then JUMPBRIDGE_* environment variables, then
// explicitly given flags.
type Config struct {
	Transport  string `env:"JUMPBRIDGE_TRANSPORT"`
	Address    string `env:"JUMPBRIDGE_ADDRESS"`
	Serializer string `env:"JUMPBRIDGE_SERIALIZER"`
	LogLevel   string `env:"JUMPBRIDGE_LOG_LEVEL"`
	LogFormat  string `env:"JUMPBRIDGE_LOG_FORMAT"`

	LuaPaths  []string `env:"JUMPBRIDGE_LUA_PATHS"`
	RocksTree string   `env:"JUMPBRIDGE_ROCKS_TREE"`

	InstallEnabled  bool          `env:"JUMPBRIDGE_INSTALL_ENABLED"`
	InstallCommand  []string      `env:"JUMPBRIDGE_INSTALL_COMMAND" envSeparator:" "`
	InstallFallback []string      `env:"JUMPBRIDGE_INSTALL_FALLBACK" envSeparator:" "`
	InstallTimeout  time.Duration `env:"JUMPBRIDGE_INSTALL_TIMEOUT"`
	AsyncTimeout    time.Duration `env:"JUMPBRIDGE_ASYNC_TIMEOUT"`

	Preload      []string `env:"JUMPBRIDGE_PRELOAD"`
	OTelEndpoint string   `env:"JUMPBRIDGE_OTEL_ENDPOINT"`
}

// fileConfig mirrors Config in HCL. Absent attributes leave the current value alone.
type fileConfig struct {
	Transport       *string   `hcl:"transport,optional"`
	Address         *string   `hcl:"address,optional"`
	Serializer      *string   `hcl:"serializer,optional"`
	LogLevel        *string   `hcl:"log_level,optional"`
	LogFormat       *string   `hcl:"log_format,optional"`
	LuaPaths        *[]string `hcl:"lua_paths,optional"`
	RocksTree       *string   `hcl:"rocks_tree,optional"`
	InstallEnabled  *bool     `hcl:"install_enabled,optional"`
	InstallCommand  *[]string `hcl:"install_command,optional"`
	InstallFallback *[]string `hcl:"install_fallback,optional"`
	InstallTimeout  *string   `hcl:"install_timeout,optional"`
	AsyncTimeout    *string   `hcl:"async_timeout,optional"`
	Preload         *[]string `hcl:"preload,optional"`
	OTelEndpoint    *string   `hcl:"otel_endpoint,optional"`
}

func defaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Transport:      "unix",
		Serializer:     "msgpack",
		LogLevel:       "info",
		LogFormat:      "text",
		RocksTree:      filepath.Join(home, ".jumpbridge", "rocks"),
		InstallEnabled: true,
		InstallTimeout: jumpbridge.DefaultInstallTimeout,
		AsyncTimeout:   jumpbridge.DefaultAsyncTimeout,
	}
}

// loadConfig builds the configuration from defaults, the file at path (if
// any) and the environment.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path != "" {
		var fc fileConfig
		if err := hclsimple.DecodeFile(path, nil, &fc); err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
		if err := fc.apply(&cfg); err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (fc *fileConfig) apply(cfg *Config) error {
	setString(&cfg.Transport, fc.Transport)
	setString(&cfg.Address, fc.Address)
	setString(&cfg.Serializer, fc.Serializer)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFormat, fc.LogFormat)
	setString(&cfg.RocksTree, fc.RocksTree)
	setString(&cfg.OTelEndpoint, fc.OTelEndpoint)
	if fc.LuaPaths != nil {
		cfg.LuaPaths = *fc.LuaPaths
	}
	if fc.InstallEnabled != nil {
		cfg.InstallEnabled = *fc.InstallEnabled
	}
	if fc.InstallCommand != nil {
		cfg.InstallCommand = *fc.InstallCommand
	}
	if fc.InstallFallback != nil {
		cfg.InstallFallback = *fc.InstallFallback
	}
	if fc.Preload != nil {
		cfg.Preload = *fc.Preload
	}
	if err := setDuration(&cfg.InstallTimeout, fc.InstallTimeout); err != nil {
		return fmt.Errorf("install_timeout: %w", err)
	}
	if err := setDuration(&cfg.AsyncTimeout, fc.AsyncTimeout); err != nil {
		return fmt.Errorf("async_timeout: %w", err)
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

// validate checks enumerated values and fills in transport-dependent defaults.
func (c *Config) validate() error {
	c.Transport = strings.ToLower(c.Transport)
	switch c.Transport {
	case "unix":
		if c.Address == "" {
			c.Address = filepath.Join(os.TempDir(), "jumpbridge.sock")
		}
	case "tcp":
		if c.Address == "" {
			c.Address = "127.0.0.1:7725"
		}
	case "stdio":
	default:
		return fmt.Errorf("invalid transport %q: must be 'unix', 'tcp' or 'stdio'", c.Transport)
	}
	if _, err := jumpbridge.NewSerializer(c.Serializer); err != nil {
		return err
	}
	if _, err := c.level(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q: must be 'text' or 'json'", c.LogFormat)
	}
	if len(c.InstallCommand) == 0 {
		c.InstallCommand = []string{"luarocks", "install", "--tree", c.RocksTree}
		if len(c.InstallFallback) == 0 {
			c.InstallFallback = []string{"luarocks", "install", "--local"}
		}
	}
	return nil
}

func (c *Config) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: must be 'debug', 'info', 'warn' or 'error'", c.LogLevel)
	}
	return level, nil
}
