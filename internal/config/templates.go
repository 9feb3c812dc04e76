package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "wabridge":
		return wabridgeTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const wabridgeTemplate = `node_id = "wabridge"
listen_addr = ":5000"
auth_dir = "local/auth"
default_identity = "default"
autostart = []
api_token = ""
cors_origins = ["http://localhost:5000"]
heartbeat_interval = "30s"
shutdown_timeout = "10s"
observer_buffer = 64
max_upload_bytes = 16777216

[session]
connect_timeout = "30s"
pairing_timeout = "3m"
max_reconnect_attempts = 10
operation_timeout = "15s"

[session.backoff]
initial_delay = "500ms"
multiplier = 2.0
max_delay = "30s"
jitter = true

[session.auto_reply]
keyword = "halo"
reply = "Halo juga dari ZahraBot-{identity} 👋"
`
