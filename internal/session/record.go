package session

import (
	"sync"
	"time"

	"github.com/danmuck/wabridge/internal/protocol"
)

// State is one node of the per-identity lifecycle state machine.
type State string

const (
	StatePairing      State = "pairing"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateDisconnected State = "disconnected"
	StateLoggedOut    State = "logged_out"
)

// Status is the coarse connectivity view exposed to API callers.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusUnknown      Status = "unknown"
)

// Snapshot is a read-only copy of one session record.
type Snapshot struct {
	Identity       string    `json:"identity"`
	State          State     `json:"state"`
	Status         Status    `json:"status"`
	PendingQR      string    `json:"-"`
	HasPendingQR   bool      `json:"hasPendingQR"`
	QRIssuedAt     time.Time `json:"qrIssuedAt"`
	Generation     uint64    `json:"generation"`
	Attempts       int       `json:"reconnectAttempts"`
	LastDisconnect string    `json:"lastDisconnect,omitempty"`
	StartedAt      time.Time `json:"startedAt"`
	ConnectedAt    time.Time `json:"connectedAt"`
}

func (s Snapshot) Connected() bool {
	return s.State == StateConnected
}

type record struct {
	mu sync.Mutex

	identity       string
	handle         protocol.Handle
	state          State
	pendingQR      string
	qrIssuedAt     time.Time
	generation     uint64
	attempts       int
	lastDisconnect string
	startedAt      time.Time
	connectedAt    time.Time

	retryTimer *time.Timer
	pairTimer  *time.Timer
}

func (r *record) stopTimersLocked() {
	if r.retryTimer != nil {
		r.retryTimer.Stop()
		r.retryTimer = nil
	}
	if r.pairTimer != nil {
		r.pairTimer.Stop()
		r.pairTimer = nil
	}
}

// detachLocked removes the live handle and invalidates its event sink.
func (r *record) detachLocked() protocol.Handle {
	h := r.handle
	r.handle = nil
	r.generation++
	return h
}

func (r *record) snapshotLocked() Snapshot {
	return Snapshot{
		Identity:       r.identity,
		State:          r.state,
		Status:         statusOf(r.state),
		PendingQR:      r.pendingQR,
		HasPendingQR:   r.pendingQR != "",
		QRIssuedAt:     r.qrIssuedAt,
		Generation:     r.generation,
		Attempts:       r.attempts,
		LastDisconnect: r.lastDisconnect,
		StartedAt:      r.startedAt,
		ConnectedAt:    r.connectedAt,
	}
}

func statusOf(state State) Status {
	if state == StateConnected {
		return StatusConnected
	}
	return StatusDisconnected
}

// startable reports whether Start may open a new handle for the record.
func startable(state State) bool {
	switch state {
	case "", StateDisconnected, StateLoggedOut:
		return true
	default:
		return false
	}
}

// closable reports whether a retryable close still has a live session to end.
// A record already reconnecting has consumed the close that put it there.
func closable(state State) bool {
	return state == StatePairing || state == StateConnected
}
