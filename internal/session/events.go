package session

import (
	"context"
	"strings"

	"github.com/danmuck/wabridge/internal/observability"
	"github.com/danmuck/wabridge/internal/protocol"
	"github.com/rs/zerolog/log"
)

// sinkFor binds a handle's events to the record generation that opened it.
func (r *Registry) sinkFor(rec *record, gen uint64) protocol.EventSink {
	return protocol.SinkFunc(func(ev protocol.Event) {
		r.apply(rec, gen, ev)
	})
}

// apply runs the state machine for one protocol event. Notices are published
// while rec.mu is held so observers see them in transition order.
func (r *Registry) apply(rec *record, gen uint64, ev protocol.Event) {
	name := protocol.EventName(ev)
	if name == "" {
		return
	}

	var (
		stale protocol.Handle
		reply func()
	)
	rec.mu.Lock()
	if rec.generation != gen {
		rec.mu.Unlock()
		log.Debug().
			Str("identity", rec.identity).
			Str("event", name).
			Uint64("generation", gen).
			Msg("session_event_stale")
		return
	}
	observability.RecordSessionEvent(name)

	switch e := ev.(type) {
	case protocol.PairingCodeIssued:
		if rec.state != StatePairing || e.Code == "" {
			break
		}
		rec.pendingQR = e.Code
		rec.qrIssuedAt = r.now()
		r.publish(rec.identity, NoticeQR, e.Code)

	case protocol.Connected:
		rec.stopTimersLocked()
		rec.state = StateConnected
		rec.pendingQR = ""
		rec.attempts = 0
		rec.lastDisconnect = ""
		rec.connectedAt = r.now()
		r.publish(rec.identity, NoticeConnected, "")
		log.Info().Str("identity", rec.identity).Uint64("generation", gen).Msg("session_connected")

	case protocol.Disconnected:
		if !e.LoggedOut && !closable(rec.state) {
			log.Debug().
				Str("identity", rec.identity).
				Str("state", string(rec.state)).
				Str("reason", e.Reason).
				Msg("session_close_ignored")
			break
		}
		rec.stopTimersLocked()
		rec.pendingQR = ""
		rec.lastDisconnect = e.Reason
		if e.LoggedOut {
			rec.state = StateLoggedOut
			stale = rec.detachLocked()
			log.Warn().Str("identity", rec.identity).Str("reason", e.Reason).Msg("session_logged_out")
		} else {
			log.Warn().Str("identity", rec.identity).Str("reason", e.Reason).Msg("session_closed")
			stale = r.scheduleRetryLocked(rec)
		}
		r.publish(rec.identity, NoticeDisconnected, e.Reason)

	case protocol.MessageReceived:
		reply = r.autoReplyLocked(rec, e)
	}
	rec.mu.Unlock()

	if stale != nil {
		_ = stale.Close()
	}
	if reply != nil {
		go reply()
	}
}

// autoReplyLocked returns the delegation answering a configured keyword, or
// nil when the message does not qualify.
func (r *Registry) autoReplyLocked(rec *record, msg protocol.MessageReceived) func() {
	ar := r.cfg.AutoReply
	if !ar.Enabled() || msg.FromMe || rec.state != StateConnected || rec.handle == nil {
		return nil
	}
	if strings.ToLower(msg.Text) != strings.ToLower(ar.Keyword) {
		return nil
	}
	chat := protocol.NormalizeJID(msg.Chat)
	if chat == "" {
		return nil
	}
	h := rec.handle
	identity := rec.identity
	text := strings.ReplaceAll(ar.Reply, "{identity}", identity)
	timeout := r.cfg.OperationTimeout
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := h.SendText(ctx, chat, text); err != nil {
			log.Warn().Str("identity", identity).Str("chat", chat).Err(err).Msg("session_auto_reply_failed")
			return
		}
		log.Info().Str("identity", identity).Str("chat", chat).Msg("session_auto_reply_sent")
	}
}
