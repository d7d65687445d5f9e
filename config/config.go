package config

import (
	"time"

	"github.com/LocoMH/wwtbam-server/domain"
)

type Config struct {
	Listen          string          `yaml:"listen"`
	Path            string          `yaml:"path"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	Auth            AuthConfig      `yaml:"auth"`
	WebSocket       WebSocketConfig `yaml:"websocket"`
	Log             LogConfig       `yaml:"log"`
}

type AuthConfig struct {
	// CloseOnFailure is a pointer so an explicit false survives defaults.
	CloseOnFailure *bool             `yaml:"close_on_failure"`
	Tokens         map[string]string `yaml:"tokens"`
}

type WebSocketConfig struct {
	ReadLimit  int64         `yaml:"read_limit"`
	SendBuffer int           `yaml:"send_buffer"`
	WriteWait  time.Duration `yaml:"write_wait"`
	PongWait   time.Duration `yaml:"pong_wait"`
	PingPeriod time.Duration `yaml:"ping_period"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TokenTable returns the role → secret table for the authenticator.
func (c *Config) TokenTable() map[domain.Role]string {
	table := make(map[domain.Role]string, len(c.Auth.Tokens))
	for name, token := range c.Auth.Tokens {
		if role, ok := domain.ParseRole(name); ok {
			table[role] = token
		}
	}
	return table
}

func (c *Config) CloseOnAuthFailure() bool {
	return c.Auth.CloseOnFailure == nil || *c.Auth.CloseOnFailure
}

// DefaultTokenRoles lists the roles whose token is still the public
// development default.
func (c *Config) DefaultTokenRoles() []domain.Role {
	var roles []domain.Role
	for _, role := range domain.Roles() {
		if token, ok := c.Auth.Tokens[string(role)]; ok && token == DefaultTokens[string(role)] {
			roles = append(roles, role)
		}
	}
	return roles
}
