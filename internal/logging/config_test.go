package logging

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		raw  string
		want zerolog.Level
		ok   bool
	}{
		{raw: "debug", want: zerolog.DebugLevel, ok: true},
		{raw: " WARNING ", want: zerolog.WarnLevel, ok: true},
		{raw: "diagnostics", want: zerolog.TraceLevel, ok: true},
		{raw: "off", want: zerolog.Disabled, ok: true},
		{raw: "", want: zerolog.InfoLevel, ok: false},
		{raw: "loud", want: zerolog.InfoLevel, ok: false},
	}
	for _, tc := range cases {
		got, ok := ParseLevel(tc.raw)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseLevel(%q) got=(%v,%v) want=(%v,%v)", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogTimestamp, "false")
	t.Setenv(EnvLogNoColor, "true")

	cfg := defaultConfig(ProfileRuntime)
	applyEnvOverrides(&cfg)
	if cfg.Level != zerolog.ErrorLevel {
		t.Fatalf("unexpected level: %v", cfg.Level)
	}
	if cfg.Timestamp {
		t.Fatalf("expected timestamp disabled")
	}
	if !cfg.NoColor {
		t.Fatalf("expected no color")
	}
}

func TestDefaultConfigProfiles(t *testing.T) {
	if cfg := defaultConfig(ProfileTest); cfg.Level != zerolog.DebugLevel || cfg.Timestamp {
		t.Fatalf("unexpected test profile: %+v", cfg)
	}
	if cfg := defaultConfig(ProfileRuntime); cfg.Level != zerolog.InfoLevel || !cfg.Timestamp {
		t.Fatalf("unexpected runtime profile: %+v", cfg)
	}
}
