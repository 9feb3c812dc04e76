package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/wabridge/internal/config"
	"github.com/danmuck/wabridge/internal/gateway"
)

// loadServiceConfig overlays keys present in path onto the gateway defaults.
func loadServiceConfig(path string) (gateway.ServiceConfig, error) {
	cfg := gateway.DefaultServiceConfig()

	var raw config.File
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return gateway.ServiceConfig{}, fmt.Errorf("load wabridge config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return gateway.ServiceConfig{}, fmt.Errorf("load wabridge config: unknown keys %s", strings.Join(keys, ", "))
	}
	if err := config.Validate(raw); err != nil {
		return gateway.ServiceConfig{}, fmt.Errorf("load wabridge config: %w", err)
	}

	if meta.IsDefined("node_id") {
		if id := strings.TrimSpace(raw.NodeID); id != "" {
			cfg.NodeID = id
		}
	}
	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("auth_dir") {
		cfg.AuthDir = strings.TrimSpace(raw.AuthDir)
	}
	if meta.IsDefined("default_identity") {
		cfg.DefaultIdentity = strings.TrimSpace(raw.DefaultIdentity)
	}
	if meta.IsDefined("autostart") {
		cfg.Autostart = normalizeList(raw.Autostart)
	}
	if meta.IsDefined("api_token") {
		cfg.APIToken = strings.TrimSpace(raw.APIToken)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}
	if meta.IsDefined("heartbeat_interval") {
		d, _ := config.ParseDuration(raw.HeartbeatInterval)
		cfg.HeartbeatInterval = d
	}
	if meta.IsDefined("shutdown_timeout") {
		d, _ := config.ParseDuration(raw.ShutdownTimeout)
		cfg.ShutdownTimeout = d
	}
	if meta.IsDefined("observer_buffer") {
		cfg.ObserverBuffer = raw.ObserverBuffer
	}
	if meta.IsDefined("max_upload_bytes") {
		cfg.MaxUploadBytes = raw.MaxUploadBytes
	}

	sess := raw.Session
	setDuration := func(key, value string, dst *time.Duration) {
		if meta.IsDefined(strings.Split(key, ".")...) {
			d, _ := config.ParseDuration(value)
			*dst = d
		}
	}
	setDuration("session.connect_timeout", sess.ConnectTimeout, &cfg.Session.ConnectTimeout)
	setDuration("session.pairing_timeout", sess.PairingTimeout, &cfg.Session.PairingTimeout)
	setDuration("session.operation_timeout", sess.OperationTimeout, &cfg.Session.OperationTimeout)
	setDuration("session.backoff.initial_delay", sess.Backoff.InitialDelay, &cfg.Session.Backoff.InitialDelay)
	setDuration("session.backoff.max_delay", sess.Backoff.MaxDelay, &cfg.Session.Backoff.MaxDelay)

	if meta.IsDefined("session", "max_reconnect_attempts") {
		cfg.Session.MaxReconnectAttempts = sess.MaxReconnectAttempts
	}
	if meta.IsDefined("session", "backoff", "multiplier") {
		cfg.Session.Backoff.Multiplier = sess.Backoff.Multiplier
	}
	if meta.IsDefined("session", "backoff", "jitter") {
		cfg.Session.Backoff.Jitter = sess.Backoff.Jitter
	}
	if meta.IsDefined("session", "auto_reply", "keyword") {
		cfg.Session.AutoReply.Keyword = strings.TrimSpace(sess.AutoReply.Keyword)
	}
	if meta.IsDefined("session", "auto_reply", "reply") {
		cfg.Session.AutoReply.Reply = sess.AutoReply.Reply
	}

	return cfg, nil
}

func normalizeList(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(in))
	for _, item := range in {
		v := strings.TrimSpace(item)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
