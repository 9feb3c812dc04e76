package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// File is the on-disk TOML schema for wabridge. Durations are Go duration
// strings such as "30s" or "3m".
type File struct {
	NodeID            string   `toml:"node_id"`
	ListenAddr        string   `toml:"listen_addr"`
	AuthDir           string   `toml:"auth_dir"`
	DefaultIdentity   string   `toml:"default_identity"`
	Autostart         []string `toml:"autostart"`
	APIToken          string   `toml:"api_token"`
	CorsOrigins       []string `toml:"cors_origins"`
	HeartbeatInterval string   `toml:"heartbeat_interval"`
	ShutdownTimeout   string   `toml:"shutdown_timeout"`
	ObserverBuffer    int      `toml:"observer_buffer"`
	MaxUploadBytes    int64    `toml:"max_upload_bytes"`
	Session           Session  `toml:"session"`
}

type Session struct {
	ConnectTimeout       string    `toml:"connect_timeout"`
	PairingTimeout       string    `toml:"pairing_timeout"`
	MaxReconnectAttempts int       `toml:"max_reconnect_attempts"`
	OperationTimeout     string    `toml:"operation_timeout"`
	Backoff              Backoff   `toml:"backoff"`
	AutoReply            AutoReply `toml:"auto_reply"`
}

type Backoff struct {
	InitialDelay string  `toml:"initial_delay"`
	Multiplier   float64 `toml:"multiplier"`
	MaxDelay     string  `toml:"max_delay"`
	Jitter       bool    `toml:"jitter"`
}

type AutoReply struct {
	Keyword string `toml:"keyword"`
	Reply   string `toml:"reply"`
}

// Load strictly decodes path; unknown keys are rejected.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	var cfg File
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return File{}, fmt.Errorf("config parse failed (%s): unknown keys:\n%s", path, strict.String())
		}
		return File{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return File{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that can be judged without defaults applied.
func Validate(cfg File) error {
	durations := []struct {
		key   string
		value string
	}{
		{"heartbeat_interval", cfg.HeartbeatInterval},
		{"shutdown_timeout", cfg.ShutdownTimeout},
		{"session.connect_timeout", cfg.Session.ConnectTimeout},
		{"session.pairing_timeout", cfg.Session.PairingTimeout},
		{"session.operation_timeout", cfg.Session.OperationTimeout},
		{"session.backoff.initial_delay", cfg.Session.Backoff.InitialDelay},
		{"session.backoff.max_delay", cfg.Session.Backoff.MaxDelay},
	}
	for _, d := range durations {
		if _, err := ParseDuration(d.value); err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
	}
	if cfg.Session.MaxReconnectAttempts < 0 {
		return fmt.Errorf("session.max_reconnect_attempts must be >= 0")
	}
	if cfg.Session.Backoff.Multiplier < 0 {
		return fmt.Errorf("session.backoff.multiplier must be >= 0")
	}
	if cfg.ObserverBuffer < 0 {
		return fmt.Errorf("observer_buffer must be >= 0")
	}
	if cfg.MaxUploadBytes < 0 {
		return fmt.Errorf("max_upload_bytes must be >= 0")
	}
	for i, identity := range cfg.Autostart {
		if strings.TrimSpace(identity) == "" {
			return fmt.Errorf("autostart[%d] is empty", i)
		}
	}
	return nil
}

// ParseDuration parses a non-negative duration. Empty means zero.
func ParseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", raw)
	}
	return d, nil
}
