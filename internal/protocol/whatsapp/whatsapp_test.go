package whatsapp

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/wabridge/internal/protocol"
	"github.com/danmuck/wabridge/internal/testutil/testlog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

func TestTranslateLifecycleEvents(t *testing.T) {
	testlog.Start(t)
	if ev, ok := translate(&events.Connected{}); !ok || protocol.EventName(ev) != "open" {
		t.Fatalf("connected translated to %v ok=%v", ev, ok)
	}

	ev, ok := translate(&events.LoggedOut{})
	if !ok {
		t.Fatalf("logged out not translated")
	}
	closed, isClose := ev.(protocol.Disconnected)
	if !isClose || !closed.LoggedOut {
		t.Fatalf("logged out should be terminal close: %#v", ev)
	}

	ev, ok = translate(&events.Disconnected{})
	closed, isClose = ev.(protocol.Disconnected)
	if !ok || !isClose || closed.LoggedOut {
		t.Fatalf("disconnected should be retryable close: %#v", ev)
	}

	ev, ok = translate(&events.StreamReplaced{})
	closed, isClose = ev.(protocol.Disconnected)
	if !ok || !isClose || closed.LoggedOut {
		t.Fatalf("stream replaced should be retryable close: %#v", ev)
	}

	if _, ok := translate(&events.PairSuccess{}); ok {
		t.Fatalf("unrelated event translated")
	}
}

func TestTranslateExpectedDisconnects(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name     string
		evt      any
		terminal bool
		reason   string
	}{
		{name: "temporary ban", evt: &events.TemporaryBan{Code: events.TempBanSentToTooManyPeople}, terminal: true, reason: "temporarily banned"},
		{name: "client outdated", evt: &events.ClientOutdated{}, terminal: true, reason: "client outdated"},
		{name: "cat refresh", evt: &events.CATRefreshError{Error: errors.New("token rejected")}, terminal: false, reason: "token rejected"},
	}
	for _, tc := range cases {
		ev, ok := translate(tc.evt)
		closed, isClose := ev.(protocol.Disconnected)
		if !ok || !isClose {
			t.Fatalf("%s: expected close, got %#v ok=%v", tc.name, ev, ok)
		}
		if closed.LoggedOut != tc.terminal {
			t.Fatalf("%s: terminal=%v want %v", tc.name, closed.LoggedOut, tc.terminal)
		}
		if !strings.Contains(closed.Reason, tc.reason) {
			t.Fatalf("%s: reason %q missing %q", tc.name, closed.Reason, tc.reason)
		}
	}
}

func TestRevokesDevice(t *testing.T) {
	testlog.Start(t)
	if !revokesDevice(&events.LoggedOut{Reason: events.ConnectFailureLoggedOut}) {
		t.Fatalf("logout should revoke the device")
	}
	if !revokesDevice(&events.ConnectFailure{Reason: events.ConnectFailureLoggedOut}) {
		t.Fatalf("logged-out connect failure should revoke the device")
	}
	if revokesDevice(&events.TemporaryBan{}) || revokesDevice(&events.Disconnected{}) {
		t.Fatalf("ban and network drop must keep credentials")
	}
}

func TestTranslateMessage(t *testing.T) {
	testlog.Start(t)
	chat := types.NewJID("628123", types.DefaultUserServer)
	msg := &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{Chat: chat, Sender: chat, IsFromMe: false},
		},
		Message: &waE2E.Message{Conversation: proto.String("halo")},
	}
	ev, ok := translate(msg)
	if !ok {
		t.Fatalf("message not translated")
	}
	got := ev.(protocol.MessageReceived)
	if got.Chat != "628123@s.whatsapp.net" || got.Text != "halo" || got.FromMe {
		t.Fatalf("unexpected message: %+v", got)
	}

	msg.Message = &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("quoted")}}
	ev, _ = translate(msg)
	if ev.(protocol.MessageReceived).Text != "quoted" {
		t.Fatalf("extended text not extracted")
	}

	msg.Message = &waE2E.Message{}
	if _, ok := translate(msg); ok {
		t.Fatalf("empty message should be ignored")
	}
}

func TestTranslateQR(t *testing.T) {
	testlog.Start(t)
	ev, ok := translateQR(whatsmeow.QRChannelItem{Event: whatsmeow.QRChannelEventCode, Code: "2@abc"})
	if !ok || ev.(protocol.PairingCodeIssued).Code != "2@abc" {
		t.Fatalf("code item translated to %#v", ev)
	}
	ev, ok = translateQR(whatsmeow.QRChannelTimeout)
	if !ok || ev.(protocol.Disconnected).LoggedOut {
		t.Fatalf("timeout should be a retryable close: %#v", ev)
	}
	ev, ok = translateQR(whatsmeow.QRChannelItem{Event: whatsmeow.QRChannelEventError, Error: errors.New("boom")})
	if !ok || ev.(protocol.Disconnected).Reason != "pairing failed: boom" {
		t.Fatalf("error item translated to %#v", ev)
	}
	if _, ok := translateQR(whatsmeow.QRChannelSuccess); ok {
		t.Fatalf("success item should be ignored")
	}
}

func TestParticipantsRoles(t *testing.T) {
	testlog.Start(t)
	info := &types.GroupInfo{
		Participants: []types.GroupParticipant{
			{JID: types.NewJID("1", types.DefaultUserServer), IsAdmin: true, IsSuperAdmin: true},
			{JID: types.NewJID("2", types.DefaultUserServer), IsAdmin: true},
			{JID: types.NewJID("3", types.DefaultUserServer)},
		},
	}
	got := participants(info)
	want := []protocol.Role{protocol.RoleSuperAdmin, protocol.RoleAdmin, protocol.RoleMember}
	if len(got) != len(want) {
		t.Fatalf("expected %d participants, got %d", len(want), len(got))
	}
	for i, p := range got {
		if p.Role != want[i] {
			t.Fatalf("participant %d role=%s want=%s", i, p.Role, want[i])
		}
	}
	if got[0].ID != "1@s.whatsapp.net" {
		t.Fatalf("unexpected id: %s", got[0].ID)
	}
}

func TestParseJID(t *testing.T) {
	testlog.Start(t)
	jid, err := parseJID("628123", types.DefaultUserServer)
	if err != nil || jid.String() != "628123@s.whatsapp.net" {
		t.Fatalf("bare user: jid=%s err=%v", jid, err)
	}
	jid, err = parseJID("120363", types.GroupServer)
	if err != nil || jid.String() != "120363@g.us" {
		t.Fatalf("bare group: jid=%s err=%v", jid, err)
	}
	if _, err := parseJID(" ", types.DefaultUserServer); !errors.Is(err, protocol.ErrInvalidJID) {
		t.Fatalf("expected invalid jid, got %v", err)
	}
}

func TestStorePathRejectsTraversal(t *testing.T) {
	testlog.Start(t)
	c := NewConnector("auth")
	path, err := c.StorePath("alice")
	if err != nil || path != filepath.Join("auth", "alice.db") {
		t.Fatalf("path=%s err=%v", path, err)
	}
	for _, bad := range []string{"../etc", "a/b", "", ".hidden"} {
		if _, err := c.StorePath(bad); !errors.Is(err, protocol.ErrInvalidIdentity) {
			t.Fatalf("identity %q accepted", bad)
		}
	}
}
