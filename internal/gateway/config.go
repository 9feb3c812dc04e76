package gateway

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/danmuck/wabridge/internal/fanout"
	"github.com/danmuck/wabridge/internal/session"
)

var (
	ErrInvalidHeartbeatInterval = errors.New("gateway: invalid heartbeat interval")
	ErrMissingListenAddr        = errors.New("gateway: listen address required")
	ErrMissingDefaultIdentity   = errors.New("gateway: default identity required")
)

// ServiceConfig configures the gateway process.
type ServiceConfig struct {
	NodeID            string
	ListenAddr        string
	AuthDir           string
	DefaultIdentity   string
	Autostart         []string
	APIToken          string
	CorsOrigins       []string
	HeartbeatInterval time.Duration
	ShutdownTimeout   time.Duration
	ObserverBuffer    int
	MaxUploadBytes    int64
	Session           session.Config
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		NodeID:            "wabridge",
		ListenAddr:        ":5000",
		AuthDir:           filepath.Join("local", "auth"),
		DefaultIdentity:   "default",
		Autostart:         []string{},
		CorsOrigins:       []string{"http://localhost:5000"},
		HeartbeatInterval: 30 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		ObserverBuffer:    fanout.DefaultBuffer,
		MaxUploadBytes:    16 << 20,
		Session:           session.DefaultConfig(),
	}
}

// Validate reports the first unusable setting.
func (c ServiceConfig) Validate() error {
	if c.HeartbeatInterval <= 0 {
		return ErrInvalidHeartbeatInterval
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		return ErrMissingListenAddr
	}
	if strings.TrimSpace(c.DefaultIdentity) == "" {
		return ErrMissingDefaultIdentity
	}
	return nil
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		if v := strings.TrimSpace(origin); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost:5000"}
	}
	return out
}
