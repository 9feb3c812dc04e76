package whatsapp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/danmuck/wabridge/internal/protocol"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"

	_ "github.com/mattn/go-sqlite3"
)

var identityPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// Connector opens whatsmeow clients backed by <AuthDir>/<identity>.db.
type Connector struct {
	AuthDir string
	Logger  zerolog.Logger
}

var _ protocol.Connector = (*Connector)(nil)

func NewConnector(authDir string) *Connector {
	return &Connector{AuthDir: authDir, Logger: log.Logger}
}

// StorePath returns the credential database path for identity.
func (c *Connector) StorePath(identity string) (string, error) {
	if !identityPattern.MatchString(identity) {
		return "", fmt.Errorf("%w: %q", protocol.ErrInvalidIdentity, identity)
	}
	return filepath.Join(c.AuthDir, identity+".db"), nil
}

// Connect restores or creates the identity's device and starts the client.
// Unpaired devices emit PairingCodeIssued until scanned.
func (c *Connector) Connect(ctx context.Context, identity string, sink protocol.EventSink) (protocol.Handle, error) {
	path, err := c.StorePath(identity)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(c.AuthDir, 0o700); err != nil {
		return nil, fmt.Errorf("create auth dir: %w", err)
	}

	dsn := "file:" + path + "?_foreign_keys=on"
	container, err := sqlstore.New(ctx, "sqlite3", dsn, newLogger(c.Logger, identity, "store"))
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("load device %s: %w", path, err)
	}

	client := whatsmeow.NewClient(device, newLogger(c.Logger, identity, "client"))
	client.EnableAutoReconnect = false

	qrCtx, cancel := context.WithCancel(context.Background())
	h := &handle{
		identity:  identity,
		client:    client,
		container: container,
		sink:      sink,
		cancel:    cancel,
	}
	client.AddEventHandler(h.dispatch)

	if client.Store.ID == nil {
		items, err := client.GetQRChannel(qrCtx)
		if err != nil {
			cancel()
			_ = container.Close()
			return nil, fmt.Errorf("qr channel: %w", err)
		}
		go h.pumpQR(qrCtx, items)
		log.Info().Str("identity", identity).Msg("whatsapp_pairing_required")
	}

	if err := client.Connect(); err != nil {
		cancel()
		_ = container.Close()
		return nil, fmt.Errorf("connect: %w", err)
	}
	log.Info().Str("identity", identity).Str("store", path).Msg("whatsapp_client_started")
	return h, nil
}
