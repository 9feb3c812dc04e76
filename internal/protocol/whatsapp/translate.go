package whatsapp

import (
	"strings"

	"github.com/danmuck/wabridge/internal/protocol"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

// translate maps a whatsmeow event onto the protocol event vocabulary.
// Events with no lifecycle meaning report false.
func translate(evt any) (protocol.Event, bool) {
	switch e := evt.(type) {
	case *events.Connected:
		return protocol.Connected{}, true
	case *events.LoggedOut:
		return protocol.Disconnected{Reason: "logged out: " + e.Reason.String(), LoggedOut: true}, true
	case *events.ConnectFailure:
		reason := e.Reason.String()
		if e.Message != "" {
			reason += ": " + e.Message
		}
		return protocol.Disconnected{Reason: reason, LoggedOut: e.Reason.IsLoggedOut()}, true
	case *events.TemporaryBan:
		return protocol.Disconnected{Reason: e.String(), LoggedOut: true}, true
	case *events.ClientOutdated:
		return protocol.Disconnected{Reason: "client outdated", LoggedOut: true}, true
	case *events.CATRefreshError:
		reason := "cat refresh failed"
		if e.Error != nil {
			reason += ": " + e.Error.Error()
		}
		return protocol.Disconnected{Reason: reason}, true
	case *events.StreamReplaced:
		return protocol.Disconnected{Reason: "stream replaced"}, true
	case *events.Disconnected:
		return protocol.Disconnected{Reason: "connection closed"}, true
	case *events.Message:
		text := messageText(e.Message)
		if text == "" {
			return nil, false
		}
		return protocol.MessageReceived{
			Chat:   e.Info.Chat.String(),
			Sender: e.Info.Sender.String(),
			Text:   text,
			FromMe: e.Info.IsFromMe,
		}, true
	default:
		return nil, false
	}
}

// revokesDevice reports whether evt means the server dropped the paired
// device, so its stored credentials must not be reused.
func revokesDevice(evt any) bool {
	switch e := evt.(type) {
	case *events.LoggedOut:
		return true
	case *events.ConnectFailure:
		return e.Reason.IsLoggedOut()
	default:
		return false
	}
}

func messageText(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if text := msg.GetConversation(); text != "" {
		return text
	}
	return msg.GetExtendedTextMessage().GetText()
}

// translateQR maps one pairing channel item. Success is reported through the
// regular Connected event after whatsmeow reconnects with fresh credentials.
func translateQR(item whatsmeow.QRChannelItem) (protocol.Event, bool) {
	switch item.Event {
	case whatsmeow.QRChannelEventCode:
		return protocol.PairingCodeIssued{Code: item.Code}, true
	case whatsmeow.QRChannelTimeout.Event:
		return protocol.Disconnected{Reason: "pairing qr timeout"}, true
	case whatsmeow.QRChannelEventError:
		reason := "pairing failed"
		if item.Error != nil {
			reason += ": " + item.Error.Error()
		}
		return protocol.Disconnected{Reason: reason}, true
	default:
		return nil, false
	}
}

func roleTag(p types.GroupParticipant) string {
	switch {
	case p.IsSuperAdmin:
		return protocol.SuperAdminTag
	case p.IsAdmin:
		return protocol.AdminTag
	default:
		return ""
	}
}

func participants(info *types.GroupInfo) []protocol.Participant {
	out := make([]protocol.Participant, 0, len(info.Participants))
	for _, p := range info.Participants {
		out = append(out, protocol.Participant{
			ID:   p.JID.String(),
			Role: protocol.ParseRole(roleTag(p)),
		})
	}
	return out
}

// parseJID accepts a full JID or a bare user part on defaultServer.
func parseJID(raw, defaultServer string) (types.JID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return types.JID{}, protocol.ErrInvalidJID
	}
	if !strings.Contains(raw, "@") {
		raw += "@" + defaultServer
	}
	jid, err := types.ParseJID(raw)
	if err != nil {
		return types.JID{}, err
	}
	return jid, nil
}
