package session

import (
	"errors"
	"fmt"
	"time"
)

var ErrHostRequired = errors.New("session: host required")

const (
	// DefaultLines is the line-history depth requested per buffer.
	DefaultLines = 100
	// DefaultPingInterval drives the keepalive watchdog.
	DefaultPingInterval = 60 * time.Second
)

// Config are the relay connection parameters. The session remembers
// them across reconnects; nothing here is persisted.
type Config struct {
	Host         string
	Port         int
	UseTLS       bool
	Password     string
	Lines        int
	PingInterval time.Duration
	Autoconnect  bool
	DialTimeout  time.Duration
	QuitTimeout  time.Duration
}

// WithDefaults fills unset values.
func (c Config) WithDefaults() Config {
	if c.Lines <= 0 {
		c.Lines = DefaultLines
	}
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	return c
}

// Validate checks the dial parameters.
func (c Config) Validate() error {
	if c.Host == "" {
		return ErrHostRequired
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("session: invalid port %d", c.Port)
	}
	return nil
}
