package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/LocoMH/wwtbam-server/domain"
)

var reservedPaths = []string{"/health", "/stats", "/metrics"}

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return errors.New("listen is required")
	}
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("path must start with '/', got %q", c.Path)
	}
	for _, reserved := range reservedPaths {
		if c.Path == reserved {
			return fmt.Errorf("path %q is reserved", c.Path)
		}
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown_timeout must be > 0")
	}

	if err := c.Auth.validate(); err != nil {
		return err
	}
	if err := c.WebSocket.validate(); err != nil {
		return err
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

func (a *AuthConfig) validate() error {
	for name := range a.Tokens {
		if _, ok := domain.ParseRole(name); !ok {
			return fmt.Errorf("auth.tokens: unknown role %q", name)
		}
	}
	for _, role := range domain.Roles() {
		if a.Tokens[string(role)] == "" {
			return fmt.Errorf("auth.tokens.%s is required", role)
		}
	}
	return nil
}

func (w *WebSocketConfig) validate() error {
	if w.ReadLimit < 1 {
		return errors.New("websocket.read_limit must be >= 1")
	}
	if w.SendBuffer < 1 {
		return errors.New("websocket.send_buffer must be >= 1")
	}
	if w.WriteWait <= 0 {
		return errors.New("websocket.write_wait must be > 0")
	}
	if w.PingPeriod <= 0 || w.PingPeriod >= w.PongWait {
		return fmt.Errorf("websocket.ping_period (%s) must be > 0 and below pong_wait (%s)", w.PingPeriod, w.PongWait)
	}
	return nil
}
