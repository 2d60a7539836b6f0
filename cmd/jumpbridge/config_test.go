package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jumpbridge.hcl")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "unix", cfg.Transport)
	assert.Equal(t, "msgpack", cfg.Serializer)
	assert.True(t, cfg.InstallEnabled)
	assert.Empty(t, cfg.Address)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
transport     = "tcp"
address       = "127.0.0.1:9000"
serializer    = "json"
lua_paths     = ["/opt/lua/?.lua"]
install_enabled = false
async_timeout = "90s"
preload       = ["math", "stats"]
`)
	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "tcp", cfg.Transport)
	assert.Equal(t, "127.0.0.1:9000", cfg.Address)
	assert.Equal(t, "json", cfg.Serializer)
	assert.Equal(t, []string{"/opt/lua/?.lua"}, cfg.LuaPaths)
	assert.False(t, cfg.InstallEnabled)
	assert.Equal(t, 90*time.Second, cfg.AsyncTimeout)
	assert.Equal(t, []string{"math", "stats"}, cfg.Preload)
	// Untouched attributes keep their defaults.
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.hcl"))
	assert.Error(t, err)

	_, err = loadConfig(writeConfig(t, `transport = `))
	assert.Error(t, err)

	_, err = loadConfig(writeConfig(t, `async_timeout = "soon"`))
	assert.ErrorContains(t, err, "async_timeout")
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `serializer = "json"`)
	t.Setenv("JUMPBRIDGE_SERIALIZER", "protobuf")
	t.Setenv("JUMPBRIDGE_PRELOAD", "math,os")
	t.Setenv("JUMPBRIDGE_INSTALL_COMMAND", "luarocks install --tree /srv/rocks")
	t.Setenv("JUMPBRIDGE_INSTALL_TIMEOUT", "2m")

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "protobuf", cfg.Serializer)
	assert.Equal(t, []string{"math", "os"}, cfg.Preload)
	assert.Equal(t, []string{"luarocks", "install", "--tree", "/srv/rocks"}, cfg.InstallCommand)
	assert.Equal(t, 2*time.Minute, cfg.InstallTimeout)
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.validate())
	assert.Equal(t, filepath.Join(os.TempDir(), "jumpbridge.sock"), cfg.Address)
	assert.Equal(t, []string{"luarocks", "install", "--tree", cfg.RocksTree}, cfg.InstallCommand)
	assert.Equal(t, []string{"luarocks", "install", "--local"}, cfg.InstallFallback)

	cfg = defaultConfig()
	cfg.Transport = "TCP"
	require.NoError(t, cfg.validate())
	assert.Equal(t, "tcp", cfg.Transport)
	assert.Equal(t, "127.0.0.1:7725", cfg.Address)

	cfg = defaultConfig()
	cfg.InstallCommand = []string{"my-installer"}
	require.NoError(t, cfg.validate())
	assert.Equal(t, []string{"my-installer"}, cfg.InstallCommand)
	assert.Empty(t, cfg.InstallFallback)

	for name, mutate := range map[string]func(*Config){
		"transport":  func(c *Config) { c.Transport = "carrier-pigeon" },
		"serializer": func(c *Config) { c.Serializer = "xml" },
		"log level":  func(c *Config) { c.LogLevel = "chatty" },
		"log format": func(c *Config) { c.LogFormat = "yaml" },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := defaultConfig()
			mutate(&cfg)
			assert.Error(t, cfg.validate())
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"math", "os.path"}, splitList(" math, ,os.path,"))
	assert.Nil(t, splitList(""))
}
