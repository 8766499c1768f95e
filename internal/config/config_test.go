package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "weemirror.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
[relay]
host = "relay.example.net"
port = 9090
tls = true
password = "hunter2"
lines = 250
ping = 30
autoconnect = true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "relay.example.net", cfg.Relay.Host)
	assert.Equal(t, 9090, cfg.Relay.Port)
	assert.True(t, cfg.Relay.TLS)
	assert.Equal(t, "hunter2", cfg.Relay.Password)
	assert.Equal(t, 250, cfg.Relay.Lines)
	assert.True(t, cfg.Relay.Autoconnect)

	sc := cfg.Session()
	assert.Equal(t, "relay.example.net", sc.Host)
	assert.Equal(t, 30*time.Second, sc.PingInterval)
	assert.Equal(t, 250, sc.Lines)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
[relay]
host = "localhost"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Relay.Port)
	assert.Equal(t, 100, cfg.Relay.Lines)
	assert.Equal(t, 60, cfg.Relay.Ping)
	assert.False(t, cfg.Relay.TLS)
	assert.False(t, cfg.Relay.Autoconnect)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[relay]
host = "from-file"
port = 9001
`)
	t.Setenv("WEEMIRROR_RELAY_HOST", "from-env")
	t.Setenv("WEEMIRROR_RELAY_PORT", "9443")
	t.Setenv("WEEMIRROR_RELAY_TLS", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Relay.Host)
	assert.Equal(t, 9443, cfg.Relay.Port)
	assert.True(t, cfg.Relay.TLS)
}

func TestLoadMissingFileUsesEnvironment(t *testing.T) {
	t.Setenv("WEEMIRROR_RELAY_HOST", "env-only")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "env-only", cfg.Relay.Host)
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfig(t, `[relay`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	var cfg Config
	cfg = cfg.WithDefaults()
	require.True(t, errors.Is(cfg.Validate(), ErrRelayHostRequired))

	cfg.Relay.Host = "localhost"
	cfg.Relay.Port = 70000
	require.Error(t, cfg.Validate())

	cfg.Relay.Port = 9001
	require.NoError(t, cfg.Validate())
}
