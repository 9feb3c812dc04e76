// Package fakeproto provides an in-memory protocol.Connector for tests.
package fakeproto

import (
	"context"
	"errors"
	"sync"

	"github.com/danmuck/wabridge/internal/protocol"
)

var ErrNoHandle = errors.New("fakeproto: no handle for identity")

// SentText records one SendText delegation.
type SentText struct {
	JID  string
	Text string
}

// SentImage records one SendImage delegation.
type SentImage struct {
	JID   string
	Image protocol.Image
}

// Connector hands out Handles and keeps every one it created.
type Connector struct {
	mu      sync.Mutex
	handles map[string][]*Handle

	// ConnectErr, when set, fails every Connect call.
	ConnectErr error
	// OnConnect runs synchronously inside Connect, before it returns.
	OnConnect func(identity string, h *Handle)
}

func NewConnector() *Connector {
	return &Connector{handles: make(map[string][]*Handle)}
}

func (c *Connector) Connect(ctx context.Context, identity string, sink protocol.EventSink) (protocol.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	err := c.ConnectErr
	hook := c.OnConnect
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	h := &Handle{identity: identity, sink: sink, groups: make(map[string]protocol.GroupInfo)}
	c.mu.Lock()
	c.handles[identity] = append(c.handles[identity], h)
	c.mu.Unlock()
	if hook != nil {
		hook(identity, h)
	}
	return h, nil
}

// SetConnectErr changes the Connect failure under lock.
func (c *Connector) SetConnectErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ConnectErr = err
}

// ConnectCount returns how many handles were created for identity.
func (c *Connector) ConnectCount(identity string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handles[identity])
}

// Latest returns the most recent handle created for identity.
func (c *Connector) Latest(identity string) (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.handles[identity]
	if len(list) == 0 {
		return nil, ErrNoHandle
	}
	return list[len(list)-1], nil
}

// Handles returns every handle created for identity in creation order.
func (c *Connector) Handles(identity string) []*Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Handle, len(c.handles[identity]))
	copy(out, c.handles[identity])
	return out
}

// Handle is a scriptable protocol.Handle.
type Handle struct {
	identity string
	sink     protocol.EventSink

	mu       sync.Mutex
	closed   bool
	texts    []SentText
	images   []SentImage
	groups   map[string]protocol.GroupInfo
	order    []string
	sendErr  error
	queryErr error
}

var _ protocol.Handle = (*Handle)(nil)

// Emit delivers ev to the registered sink as the library would.
func (h *Handle) Emit(ev protocol.Event) {
	h.sink.HandleEvent(ev)
}

func (h *Handle) EmitQR(code string) { h.Emit(protocol.PairingCodeIssued{Code: code}) }
func (h *Handle) EmitOpen()          { h.Emit(protocol.Connected{}) }
func (h *Handle) EmitClose(reason string, loggedOut bool) {
	h.Emit(protocol.Disconnected{Reason: reason, LoggedOut: loggedOut})
}

func (h *Handle) Identity() string { return h.identity }

func (h *Handle) SetSendErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sendErr = err
}

func (h *Handle) SetQueryErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queryErr = err
}

// AddGroup registers group metadata returned by JoinedGroups and GroupInfo.
func (h *Handle) AddGroup(info protocol.GroupInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.groups[info.ID]; !ok {
		h.order = append(h.order, info.ID)
	}
	h.groups[info.ID] = info
}

func (h *Handle) Texts() []SentText {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]SentText, len(h.texts))
	copy(out, h.texts)
	return out
}

func (h *Handle) Images() []SentImage {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]SentImage, len(h.images))
	copy(out, h.images)
	return out
}

func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *Handle) SendText(ctx context.Context, jid, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return protocol.ErrHandleClosed
	}
	if h.sendErr != nil {
		return h.sendErr
	}
	h.texts = append(h.texts, SentText{JID: jid, Text: text})
	return nil
}

func (h *Handle) SendImage(ctx context.Context, jid string, image protocol.Image) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return protocol.ErrHandleClosed
	}
	if h.sendErr != nil {
		return h.sendErr
	}
	h.images = append(h.images, SentImage{JID: jid, Image: image})
	return nil
}

func (h *Handle) JoinedGroups(ctx context.Context) ([]protocol.Group, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.queryErr != nil {
		return nil, h.queryErr
	}
	out := make([]protocol.Group, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, protocol.Group{ID: id, Name: h.groups[id].Name})
	}
	return out, nil
}

func (h *Handle) GroupInfo(ctx context.Context, groupID string) (protocol.GroupInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.queryErr != nil {
		return protocol.GroupInfo{}, h.queryErr
	}
	info, ok := h.groups[groupID]
	if !ok {
		return protocol.GroupInfo{}, protocol.ErrGroupNotFound
	}
	return info, nil
}

func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}
