package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/wabridge/internal/testutil/testlog"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestTemplateLoads(t *testing.T) {
	testlog.Start(t)
	tmpl, err := Template("wabridge")
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	cfg, err := Load(writeFile(t, tmpl))
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	if cfg.ListenAddr != ":5000" || cfg.DefaultIdentity != "default" {
		t.Fatalf("unexpected template values: %+v", cfg)
	}
	if cfg.Session.MaxReconnectAttempts != 10 || cfg.Session.Backoff.Multiplier != 2.0 {
		t.Fatalf("unexpected session values: %+v", cfg.Session)
	}
	if cfg.Session.AutoReply.Keyword != "halo" || !strings.Contains(cfg.Session.AutoReply.Reply, "{identity}") {
		t.Fatalf("unexpected auto reply: %+v", cfg.Session.AutoReply)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	testlog.Start(t)
	path := writeFile(t, "listen_addr = \":5000\"\nlisten_port = 5000\n")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "unknown keys") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoadRejectsBadDurations(t *testing.T) {
	testlog.Start(t)
	path := writeFile(t, "[session]\npairing_timeout = \"soon\"\n")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "session.pairing_timeout") {
		t.Fatalf("expected pairing timeout error, got %v", err)
	}
	if err := Validate(File{Autostart: []string{"alice", " "}}); err == nil {
		t.Fatalf("expected empty autostart entry error")
	}
	if err := Validate(File{Session: Session{MaxReconnectAttempts: -1}}); err == nil {
		t.Fatalf("expected negative attempts error")
	}
}

func TestParseDuration(t *testing.T) {
	testlog.Start(t)
	if d, err := ParseDuration(""); err != nil || d != 0 {
		t.Fatalf("empty duration d=%v err=%v", d, err)
	}
	if d, err := ParseDuration(" 3m "); err != nil || d != 3*time.Minute {
		t.Fatalf("3m duration d=%v err=%v", d, err)
	}
	if _, err := ParseDuration("-1s"); err == nil {
		t.Fatalf("negative duration accepted")
	}
}

func TestWriteTemplateRefusesOverwrite(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "wabridge.toml")
	if err := WriteTemplate(path, "wabridge", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, "wabridge", false); err == nil {
		t.Fatalf("expected overwrite refusal")
	}
	if err := WriteTemplate(path, "wabridge", true); err != nil {
		t.Fatalf("forced overwrite: %v", err)
	}
	if _, err := Template("mirage"); err == nil {
		t.Fatalf("unknown kind accepted")
	}
}
