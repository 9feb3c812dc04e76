package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/wabridge/internal/gateway"
	"github.com/danmuck/wabridge/internal/testutil/testlog"
)

func TestLoadServiceConfigDefaultsAndOverrides(t *testing.T) {
	testlog.Start(t)
	cfg, err := loadServiceConfig("ex.config.toml")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	def := gateway.DefaultServiceConfig()

	if cfg.NodeID != "wabridge.local" || cfg.ListenAddr != "127.0.0.1:5050" {
		t.Fatalf("unexpected node/listen: %q %q", cfg.NodeID, cfg.ListenAddr)
	}
	if cfg.DefaultIdentity != "zahra" {
		t.Fatalf("unexpected default identity: %q", cfg.DefaultIdentity)
	}
	if len(cfg.Autostart) != 2 || cfg.Autostart[0] != "zahra" || cfg.Autostart[1] != "ops" {
		t.Fatalf("unexpected autostart: %+v", cfg.Autostart)
	}
	if cfg.HeartbeatInterval != 15*time.Second {
		t.Fatalf("unexpected heartbeat: %v", cfg.HeartbeatInterval)
	}
	if cfg.ShutdownTimeout != def.ShutdownTimeout || cfg.MaxUploadBytes != def.MaxUploadBytes {
		t.Fatalf("undefined keys should keep defaults: %+v", cfg)
	}
	if cfg.Session.PairingTimeout != 2*time.Minute {
		t.Fatalf("unexpected pairing timeout: %v", cfg.Session.PairingTimeout)
	}
	if cfg.Session.MaxReconnectAttempts != 0 {
		t.Fatalf("explicit zero attempts should be kept: %d", cfg.Session.MaxReconnectAttempts)
	}
	if cfg.Session.ConnectTimeout != def.Session.ConnectTimeout {
		t.Fatalf("unexpected connect timeout: %v", cfg.Session.ConnectTimeout)
	}
	if cfg.Session.Backoff.InitialDelay != time.Second || cfg.Session.Backoff.Jitter {
		t.Fatalf("unexpected backoff: %+v", cfg.Session.Backoff)
	}
	if cfg.Session.Backoff.MaxDelay != def.Session.Backoff.MaxDelay {
		t.Fatalf("max delay should keep default: %v", cfg.Session.Backoff.MaxDelay)
	}
	if cfg.Session.AutoReply.Keyword != "halo" || cfg.Session.AutoReply.Reply != "Halo dari {identity}!" {
		t.Fatalf("unexpected auto reply: %+v", cfg.Session.AutoReply)
	}
}

func TestLoadServiceConfigRejectsUnknownKeys(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("listen = \":1\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := loadServiceConfig(path)
	if err == nil || !strings.Contains(err.Error(), "unknown keys listen") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoadServiceConfigRejectsBadDuration(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("heartbeat_interval = \"often\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loadServiceConfig(path); err == nil {
		t.Fatalf("expected duration error")
	}
}
