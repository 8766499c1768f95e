package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/stormglass/weemirror/internal/relay/session"
)

var ErrRelayHostRequired = errors.New("config: relay host required")

// Relay holds the connection parameters for one relay endpoint.
// Environment variables override file values.
type Relay struct {
	Host        string `toml:"host" env:"HOST"`
	Port        int    `toml:"port" env:"PORT"`
	TLS         bool   `toml:"tls" env:"TLS"`
	Password    string `toml:"password" env:"PASSWORD"`
	Lines       int    `toml:"lines" env:"LINES"`
	Ping        int    `toml:"ping" env:"PING"`
	Autoconnect bool   `toml:"autoconnect" env:"AUTOCONNECT"`
}

// Config is the full application configuration.
type Config struct {
	Relay Relay `toml:"relay" envPrefix:"WEEMIRROR_RELAY_"`
}

// Load reads the TOML file when present, applies environment overrides,
// then fills defaults. A missing file is not an error: the environment
// alone can configure a connection.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: environment: %w", err)
	}
	cfg = cfg.WithDefaults()
	return cfg, nil
}

// WithDefaults fills unset values.
func (c Config) WithDefaults() Config {
	if c.Relay.Port == 0 {
		c.Relay.Port = 9001
	}
	if c.Relay.Lines <= 0 {
		c.Relay.Lines = session.DefaultLines
	}
	if c.Relay.Ping <= 0 {
		c.Relay.Ping = int(session.DefaultPingInterval / time.Second)
	}
	return c
}

// Validate checks that the configuration can open a connection.
func (c Config) Validate() error {
	if c.Relay.Host == "" {
		return ErrRelayHostRequired
	}
	if c.Relay.Port <= 0 || c.Relay.Port > 65535 {
		return fmt.Errorf("config: invalid relay port %d", c.Relay.Port)
	}
	return nil
}

// Session converts the relay settings into session parameters.
func (c Config) Session() session.Config {
	return session.Config{
		Host:         c.Relay.Host,
		Port:         c.Relay.Port,
		UseTLS:       c.Relay.TLS,
		Password:     c.Relay.Password,
		Lines:        c.Relay.Lines,
		PingInterval: time.Duration(c.Relay.Ping) * time.Second,
		Autoconnect:  c.Relay.Autoconnect,
	}
}
