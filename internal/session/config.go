package session

import (
	"strings"
	"time"
)

// BackoffConfig defines reconnect backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// AutoReply answers one inbound keyword, compared case-insensitively against
// the whole message text. "{identity}" in Reply is replaced with the session
// identity.
type AutoReply struct {
	Keyword string
	Reply   string
}

// Enabled reports whether a keyword is configured.
func (a AutoReply) Enabled() bool {
	return strings.TrimSpace(a.Keyword) != ""
}

// Config defines registry lifecycle defaults.
type Config struct {
	// ConnectTimeout bounds one Connector.Connect call made by the reconnect
	// scheduler. Start uses the caller's context.
	ConnectTimeout time.Duration
	// PairingTimeout closes a session still pairing after this window.
	// Zero disables the window.
	PairingTimeout time.Duration
	// MaxReconnectAttempts bounds consecutive automatic reconnects.
	// Zero means unlimited.
	MaxReconnectAttempts int
	// OperationTimeout bounds background delegations such as auto-replies.
	OperationTimeout time.Duration
	Backoff          BackoffConfig
	AutoReply        AutoReply
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout:       30 * time.Second,
		PairingTimeout:       3 * time.Minute,
		MaxReconnectAttempts: 10,
		OperationTimeout:     15 * time.Second,
		Backoff: BackoffConfig{
			InitialDelay: 500 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     30 * time.Second,
			Jitter:       true,
		},
		AutoReply: AutoReply{
			Keyword: "halo",
			Reply:   "Halo juga dari ZahraBot-{identity} 👋",
		},
	}
}

// WithDefaults fills zero-valued durations from DefaultConfig. PairingTimeout
// and MaxReconnectAttempts keep zero as a meaningful value.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = def.OperationTimeout
	}
	if c.PairingTimeout < 0 {
		c.PairingTimeout = 0
	}
	if c.MaxReconnectAttempts < 0 {
		c.MaxReconnectAttempts = 0
	}
	if c.Backoff.InitialDelay <= 0 && c.Backoff.MaxDelay <= 0 && c.Backoff.Multiplier == 0 {
		c.Backoff = def.Backoff
	}
	return c
}
