package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/wabridge/internal/observability"
	"github.com/danmuck/wabridge/internal/protocol"
	"github.com/rs/zerolog/log"
)

// DefaultImageCaption is used by SendImage when the caller gives no caption.
const DefaultImageCaption = "📸 Gambar terkirim"

// live returns the connected handle for identity. Unknown identities match
// both ErrNotConnected and ErrUnknownIdentity.
func (r *Registry) live(identity string) (protocol.Handle, error) {
	rec, ok := r.lookup(identity)
	if !ok {
		return nil, fmt.Errorf("%w: %w %q", ErrNotConnected, ErrUnknownIdentity, identity)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.state != StateConnected || rec.handle == nil {
		return nil, fmt.Errorf("%w: identity=%q state=%s", ErrNotConnected, rec.identity, rec.state)
	}
	return rec.handle, nil
}

func target(jid string) (string, error) {
	normalized := protocol.NormalizeJID(jid)
	if normalized == "" {
		return "", fmt.Errorf("%w: empty target", protocol.ErrInvalidJID)
	}
	return normalized, nil
}

// SendText delivers text to jid through identity's connected handle.
func (r *Registry) SendText(ctx context.Context, identity, jid, text string) error {
	h, err := r.live(identity)
	if err != nil {
		return err
	}
	to, err := target(jid)
	if err != nil {
		return err
	}

	start := time.Now()
	err = h.SendText(ctx, to, text)
	observability.RecordSessionOp("send_text", time.Since(start), err == nil)
	if err != nil {
		log.Warn().Str("identity", identity).Str("to", to).Err(err).Msg("session_send_text_failed")
		return &OpError{Kind: DeliveryFailed, Op: "send_text", Identity: identity, Err: err}
	}
	log.Debug().Str("identity", identity).Str("to", to).Msg("session_send_text")
	return nil
}

// SendImage delivers img to jid. An empty caption becomes DefaultImageCaption.
func (r *Registry) SendImage(ctx context.Context, identity, jid string, img protocol.Image) error {
	h, err := r.live(identity)
	if err != nil {
		return err
	}
	to, err := target(jid)
	if err != nil {
		return err
	}
	if len(img.Data) == 0 {
		return protocol.ErrEmptyImage
	}
	if strings.TrimSpace(img.Caption) == "" {
		img.Caption = DefaultImageCaption
	}

	start := time.Now()
	err = h.SendImage(ctx, to, img)
	observability.RecordSessionOp("send_image", time.Since(start), err == nil)
	if err != nil {
		log.Warn().Str("identity", identity).Str("to", to).Err(err).Msg("session_send_image_failed")
		return &OpError{Kind: DeliveryFailed, Op: "send_image", Identity: identity, Err: err}
	}
	log.Debug().Str("identity", identity).Str("to", to).Int("bytes", len(img.Data)).Msg("session_send_image")
	return nil
}

// Groups lists the groups identity has joined.
func (r *Registry) Groups(ctx context.Context, identity string) ([]protocol.Group, error) {
	h, err := r.live(identity)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	groups, err := h.JoinedGroups(ctx)
	observability.RecordSessionOp("groups", time.Since(start), err == nil)
	if err != nil {
		return nil, &OpError{Kind: QueryFailed, Op: "groups", Identity: identity, Err: err}
	}
	if groups == nil {
		groups = []protocol.Group{}
	}
	return groups, nil
}

// GroupMembers returns the metadata of groupID with each participant's role.
func (r *Registry) GroupMembers(ctx context.Context, identity, groupID string) (protocol.GroupInfo, error) {
	h, err := r.live(identity)
	if err != nil {
		return protocol.GroupInfo{}, err
	}
	groupID = protocol.NormalizeGroupJID(groupID)
	if groupID == "" {
		return protocol.GroupInfo{}, fmt.Errorf("%w: empty group id", protocol.ErrInvalidJID)
	}
	if !protocol.IsGroupJID(groupID) {
		return protocol.GroupInfo{}, fmt.Errorf("%w: %q is not a group", protocol.ErrInvalidJID, groupID)
	}

	start := time.Now()
	info, err := h.GroupInfo(ctx, groupID)
	observability.RecordSessionOp("group_members", time.Since(start), err == nil)
	if err != nil {
		return protocol.GroupInfo{}, &OpError{Kind: QueryFailed, Op: "group_members", Identity: identity, Err: err}
	}
	if info.Participants == nil {
		info.Participants = []protocol.Participant{}
	}
	return info, nil
}
