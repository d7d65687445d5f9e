package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultListen          = "localhost:6789"
	DefaultPath            = "/"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultReadLimit       = 64 << 10
	DefaultSendBuffer      = 256
	DefaultWriteWait       = 10 * time.Second
	DefaultPongWait        = 60 * time.Second
	DefaultPingPeriod      = (DefaultPongWait * 9) / 10
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
)

// DefaultTokens is used only when no token is configured at all.
var DefaultTokens = map[string]string{
	"controller": "ctrl123",
	"contestant": "cont123",
	"host":       "host123",
	"tvscreen":   "tv123",
	"audience":   "aud123",
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}

	if len(c.Auth.Tokens) == 0 {
		c.Auth.Tokens = make(map[string]string, len(DefaultTokens))
		for role, token := range DefaultTokens {
			c.Auth.Tokens[role] = token
		}
	}
	if c.Auth.CloseOnFailure == nil {
		closeOnFailure := true
		c.Auth.CloseOnFailure = &closeOnFailure
	}

	if c.WebSocket.ReadLimit == 0 {
		c.WebSocket.ReadLimit = DefaultReadLimit
	}
	if c.WebSocket.SendBuffer == 0 {
		c.WebSocket.SendBuffer = DefaultSendBuffer
	}
	if c.WebSocket.WriteWait == 0 {
		c.WebSocket.WriteWait = DefaultWriteWait
	}
	if c.WebSocket.PongWait == 0 {
		c.WebSocket.PongWait = DefaultPongWait
	}
	if c.WebSocket.PingPeriod == 0 {
		c.WebSocket.PingPeriod = (c.WebSocket.PongWait * 9) / 10
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}
