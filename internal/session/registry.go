package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/wabridge/internal/observability"
	"github.com/danmuck/wabridge/internal/protocol"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Fan-out notice names published per identity topic.
const (
	NoticeQR           = "qr"
	NoticeConnected    = "connected"
	NoticeDisconnected = "disconnected"
)

// Publisher receives lifecycle notices keyed by identity. Publish must not
// block and must not call back into the Registry.
type Publisher interface {
	Publish(topic, event, data string) int
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, string, string) int { return 0 }

// Option configures a Registry.
type Option func(*Registry)

func WithPublisher(p Publisher) Option {
	return func(r *Registry) {
		if p != nil {
			r.publisher = p
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

func WithRand(rng *rand.Rand) Option {
	return func(r *Registry) { r.rng = rng }
}

// Registry owns the identity -> record mapping. It is the single writer of
// every record; callers only see Snapshots.
type Registry struct {
	cfg       Config
	connector protocol.Connector
	publisher Publisher
	now       func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	mu      sync.RWMutex
	records map[string]*record

	starts singleflight.Group
	closed atomic.Bool
}

// NewRegistry creates an empty registry opening sessions through connector.
func NewRegistry(connector protocol.Connector, cfg Config, opts ...Option) *Registry {
	r := &Registry{
		cfg:       cfg.WithDefaults(),
		connector: connector,
		publisher: nopPublisher{},
		now:       time.Now,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		records:   make(map[string]*record),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Config() Config {
	return r.cfg
}

// Start opens a session for identity unless one is already connected or in
// progress, in which case the existing record is returned unchanged.
// Concurrent calls for one identity share a single Connect.
func (r *Registry) Start(ctx context.Context, identity string) (Snapshot, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return Snapshot{}, ErrInvalidIdentity
	}
	v, err, shared := r.starts.Do(identity, func() (any, error) {
		return r.start(ctx, identity)
	})
	snap, _ := v.(Snapshot)
	if shared {
		log.Debug().Str("identity", identity).Msg("session_start_shared")
	}
	return snap, err
}

func (r *Registry) start(ctx context.Context, identity string) (Snapshot, error) {
	rec, err := r.ensureRecord(identity)
	if err != nil {
		return Snapshot{}, err
	}

	snap, old, ok := r.reserve(rec, true, func(rec *record) bool {
		return startable(rec.state)
	})
	if !ok {
		log.Debug().
			Str("identity", identity).
			Str("state", string(snap.State)).
			Msg("session_start_noop")
		return snap, nil
	}
	if old != nil {
		_ = old.Close()
	}
	log.Info().Str("identity", identity).Uint64("generation", snap.Generation).Msg("session_starting")
	snap, err = r.connect(ctx, rec, snap.Generation)
	if errors.Is(err, protocol.ErrInvalidIdentity) {
		r.forget(rec)
	}
	return snap, err
}

func (r *Registry) ensureRecord(identity string) (*record, error) {
	if r.closed.Load() {
		return nil, ErrRegistryClosed
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[identity]
	if !ok {
		rec = &record{identity: identity}
		r.records[identity] = rec
	}
	return rec, nil
}

// forget drops a record the connector refused to open, so a rejected
// identity never shows up as a known session.
func (r *Registry) forget(rec *record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.records[rec.identity] == rec {
		delete(r.records, rec.identity)
	}
	log.Debug().Str("identity", rec.identity).Msg("session_record_dropped")
}

func (r *Registry) lookup(identity string) (*record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[strings.TrimSpace(identity)]
	return rec, ok
}

// reserve moves rec into pairing under a fresh generation when allow accepts
// it. The previous handle, if any, is returned for the caller to close.
func (r *Registry) reserve(rec *record, manual bool, allow func(*record) bool) (Snapshot, protocol.Handle, bool) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !allow(rec) {
		return rec.snapshotLocked(), nil, false
	}
	rec.stopTimersLocked()
	old := rec.detachLocked()
	rec.state = StatePairing
	rec.pendingQR = ""
	rec.startedAt = r.now()
	if manual {
		rec.attempts = 0
		rec.lastDisconnect = ""
	}
	return rec.snapshotLocked(), old, true
}

// connect opens a handle for a reserved generation and installs it unless
// the record moved on while Connect was in flight.
func (r *Registry) connect(ctx context.Context, rec *record, gen uint64) (Snapshot, error) {
	h, err := r.connector.Connect(ctx, rec.identity, r.sinkFor(rec, gen))

	rec.mu.Lock()
	if rec.generation != gen {
		snap := rec.snapshotLocked()
		rec.mu.Unlock()
		if h != nil {
			_ = h.Close()
		}
		if r.closed.Load() {
			return snap, ErrRegistryClosed
		}
		return snap, nil
	}
	if err != nil {
		rec.state = StateDisconnected
		rec.lastDisconnect = err.Error()
		snap := rec.snapshotLocked()
		rec.mu.Unlock()
		log.Error().Str("identity", rec.identity).Err(err).Msg("session_connect_failed")
		return snap, fmt.Errorf("%w: identity=%q: %w", ErrConnectFailed, rec.identity, err)
	}
	rec.handle = h
	if rec.state == StatePairing && r.cfg.PairingTimeout > 0 {
		rec.pairTimer = time.AfterFunc(r.cfg.PairingTimeout, func() {
			r.abandonPairing(rec, gen)
		})
	}
	snap := rec.snapshotLocked()
	rec.mu.Unlock()
	return snap, nil
}

// scheduleRetryLocked moves rec to reconnecting with a backoff timer, or to
// disconnected once the attempt ceiling is reached. A handle returned here
// must be closed by the caller after releasing rec.mu.
func (r *Registry) scheduleRetryLocked(rec *record) protocol.Handle {
	if r.closed.Load() {
		rec.state = StateDisconnected
		return rec.detachLocked()
	}
	limit := r.cfg.MaxReconnectAttempts
	if limit > 0 && rec.attempts >= limit {
		rec.state = StateDisconnected
		log.Warn().
			Str("identity", rec.identity).
			Int("attempts", rec.attempts).
			Msg("session_reconnect_exhausted")
		observability.RecordReconnect("exhausted")
		return rec.detachLocked()
	}
	rec.attempts++
	rec.state = StateReconnecting
	delay := r.nextDelay(rec.attempts)
	gen := rec.generation
	rec.retryTimer = time.AfterFunc(delay, func() {
		r.reconnect(rec, gen)
	})
	log.Info().
		Str("identity", rec.identity).
		Int("attempt", rec.attempts).
		Dur("delay", delay).
		Msg("session_reconnect_scheduled")
	observability.RecordReconnect("scheduled")
	return nil
}

func (r *Registry) nextDelay(attempt int) time.Duration {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	return NextBackoffDelay(r.cfg.Backoff, attempt, r.rng)
}

// reconnect is the scheduler callback re-invoking Connect under the same
// identity after a retryable close.
func (r *Registry) reconnect(rec *record, gen uint64) {
	if r.closed.Load() {
		return
	}
	snap, old, ok := r.reserve(rec, false, func(rec *record) bool {
		return rec.generation == gen && rec.state == StateReconnecting
	})
	if !ok {
		return
	}
	if old != nil {
		_ = old.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.ConnectTimeout)
	defer cancel()
	_, err := r.connect(ctx, rec, snap.Generation)
	if err == nil {
		observability.RecordReconnect("dialed")
		return
	}
	log.Warn().
		Str("identity", rec.identity).
		Int("attempt", snap.Attempts).
		Err(err).
		Msg("session_reconnect_failed")
	observability.RecordReconnect("failed")

	rec.mu.Lock()
	var stale protocol.Handle
	if rec.generation == snap.Generation && rec.state == StateDisconnected {
		stale = r.scheduleRetryLocked(rec)
	}
	rec.mu.Unlock()
	if stale != nil {
		_ = stale.Close()
	}
}

func (r *Registry) abandonPairing(rec *record, gen uint64) {
	rec.mu.Lock()
	if rec.generation != gen || rec.state != StatePairing {
		rec.mu.Unlock()
		return
	}
	rec.pairTimer = nil
	h := rec.detachLocked()
	rec.state = StateDisconnected
	rec.pendingQR = ""
	rec.lastDisconnect = ErrPairingAbandoned.Error()
	r.publish(rec.identity, NoticeDisconnected, ErrPairingAbandoned.Error())
	rec.mu.Unlock()

	if h != nil {
		_ = h.Close()
	}
	log.Warn().Str("identity", rec.identity).Dur("window", r.cfg.PairingTimeout).Msg("session_pairing_abandoned")
	observability.RecordSessionEvent("pairing_abandoned")
}

func (r *Registry) publish(identity, event, data string) {
	delivered := r.publisher.Publish(identity, event, data)
	log.Debug().
		Str("identity", identity).
		Str("event", event).
		Int("observers", delivered).
		Msg("session_notice")
}

// Status reports connectivity for identity; unknown if never started.
func (r *Registry) Status(identity string) Status {
	rec, ok := r.lookup(identity)
	if !ok {
		return StatusUnknown
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return statusOf(rec.state)
}

// Snapshot returns the full record view for identity.
func (r *Registry) Snapshot(identity string) (Snapshot, error) {
	rec, ok := r.lookup(identity)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownIdentity, identity)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.snapshotLocked(), nil
}

// QR returns the pending pairing payload, empty once connected.
func (r *Registry) QR(identity string) (string, time.Time, error) {
	snap, err := r.Snapshot(identity)
	if err != nil {
		return "", time.Time{}, err
	}
	return snap.PendingQR, snap.QRIssuedAt, nil
}

// List returns every record sorted by identity.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	recs := make([]*record, 0, len(r.records))
	for _, rec := range r.records {
		recs = append(recs, rec)
	}
	r.mu.RUnlock()

	out := make([]Snapshot, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		out = append(out, rec.snapshotLocked())
		rec.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Identity < out[j].Identity
	})
	return out
}

// Counts returns the number of records per state.
func (r *Registry) Counts() map[State]int {
	counts := make(map[State]int)
	for _, snap := range r.List() {
		counts[snap.State]++
	}
	return counts
}

// Close stops all timers and closes every live handle. Records remain
// readable; Start fails afterwards.
func (r *Registry) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.mu.RLock()
	recs := make([]*record, 0, len(r.records))
	for _, rec := range r.records {
		recs = append(recs, rec)
	}
	r.mu.RUnlock()

	var errs error
	for _, rec := range recs {
		rec.mu.Lock()
		rec.stopTimersLocked()
		h := rec.detachLocked()
		if rec.state != StateLoggedOut {
			rec.state = StateDisconnected
		}
		rec.pendingQR = ""
		rec.mu.Unlock()
		if h != nil {
			errs = errors.Join(errs, h.Close())
		}
	}
	log.Info().Int("sessions", len(recs)).Msg("session_registry_closed")
	return errs
}
