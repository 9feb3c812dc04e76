package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/danmuck/wabridge/internal/protocol"
	"github.com/rs/zerolog/log"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"google.golang.org/protobuf/proto"
)

const deleteTimeout = 10 * time.Second

// handle owns one whatsmeow client and its credential store.
type handle struct {
	identity  string
	client    *whatsmeow.Client
	container *sqlstore.Container
	sink      protocol.EventSink
	cancel    context.CancelFunc

	mu      sync.Mutex
	closed  bool
	revoked bool
}

var _ protocol.Handle = (*handle)(nil)

func (h *handle) dispatch(evt any) {
	ev, ok := translate(evt)
	if !ok {
		return
	}
	if revokesDevice(evt) {
		h.mu.Lock()
		h.revoked = true
		h.mu.Unlock()
	}
	h.emit(ev)
}

func (h *handle) emit(ev protocol.Event) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return
	}
	h.sink.HandleEvent(ev)
}

func (h *handle) pumpQR(ctx context.Context, items <-chan whatsmeow.QRChannelItem) {
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-items:
			if !ok {
				return
			}
			log.Debug().Str("identity", h.identity).Str("event", item.Event).Msg("whatsapp_qr_item")
			if ev, ok := translateQR(item); ok {
				h.emit(ev)
			}
		}
	}
}

func (h *handle) live() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return protocol.ErrHandleClosed
	}
	if h.client.Store.ID == nil {
		return protocol.ErrNotPaired
	}
	return nil
}

func (h *handle) SendText(ctx context.Context, jid, text string) error {
	if err := h.live(); err != nil {
		return err
	}
	to, err := parseJID(jid, protocol.DefaultUserServer)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", protocol.ErrInvalidJID, jid, err)
	}
	_, err = h.client.SendMessage(ctx, to, &waE2E.Message{
		Conversation: proto.String(text),
	})
	return err
}

func (h *handle) SendImage(ctx context.Context, jid string, img protocol.Image) error {
	if err := h.live(); err != nil {
		return err
	}
	if len(img.Data) == 0 {
		return protocol.ErrEmptyImage
	}
	to, err := parseJID(jid, protocol.DefaultUserServer)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", protocol.ErrInvalidJID, jid, err)
	}
	mime := img.MimeType
	if mime == "" {
		mime = http.DetectContentType(img.Data)
	}

	uploaded, err := h.client.Upload(ctx, img.Data, whatsmeow.MediaImage)
	if err != nil {
		return fmt.Errorf("upload image: %w", err)
	}
	_, err = h.client.SendMessage(ctx, to, &waE2E.Message{
		ImageMessage: &waE2E.ImageMessage{
			Caption:       proto.String(img.Caption),
			Mimetype:      proto.String(mime),
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
		},
	})
	return err
}

func (h *handle) JoinedGroups(ctx context.Context) ([]protocol.Group, error) {
	if err := h.live(); err != nil {
		return nil, err
	}
	joined, err := h.client.GetJoinedGroups(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]protocol.Group, 0, len(joined))
	for _, g := range joined {
		if g == nil {
			continue
		}
		out = append(out, protocol.Group{ID: g.JID.String(), Name: g.Name})
	}
	return out, nil
}

func (h *handle) GroupInfo(ctx context.Context, groupID string) (protocol.GroupInfo, error) {
	if err := h.live(); err != nil {
		return protocol.GroupInfo{}, err
	}
	jid, err := parseJID(groupID, protocol.GroupServer)
	if err != nil {
		return protocol.GroupInfo{}, fmt.Errorf("%w: %q: %v", protocol.ErrInvalidJID, groupID, err)
	}
	info, err := h.client.GetGroupInfo(ctx, jid)
	if err != nil {
		return protocol.GroupInfo{}, err
	}
	if info == nil {
		return protocol.GroupInfo{}, protocol.ErrGroupNotFound
	}
	return protocol.GroupInfo{
		ID:           info.JID.String(),
		Name:         info.Name,
		Participants: participants(info),
	}, nil
}

// Close disconnects the client and releases the credential store. A revoked
// device is deleted before the store closes so the next Connect pairs fresh.
// Later events from the client are dropped.
func (h *handle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	revoked := h.revoked
	h.mu.Unlock()

	h.cancel()
	h.client.Disconnect()
	if revoked {
		h.forgetDevice()
	}
	log.Debug().Str("identity", h.identity).Bool("revoked", revoked).Msg("whatsapp_handle_closed")
	return h.container.Close()
}

func (h *handle) forgetDevice() {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
	defer cancel()
	err := h.client.Store.Delete(ctx)
	if err != nil && !errors.Is(err, sqlstore.ErrDeviceIDMustBeSet) {
		log.Warn().Str("identity", h.identity).Err(err).Msg("whatsapp_device_delete_failed")
		return
	}
	log.Info().Str("identity", h.identity).Msg("whatsapp_device_deleted")
}
