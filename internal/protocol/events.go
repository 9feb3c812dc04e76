package protocol

// Event is one lifecycle or message event emitted by a protocol session.
type Event interface {
	eventName() string
}

// EventSink consumes events for exactly one Handle.
type EventSink interface {
	HandleEvent(Event)
}

// SinkFunc adapts a function into an EventSink.
type SinkFunc func(Event)

func (f SinkFunc) HandleEvent(ev Event) {
	f(ev)
}

// PairingCodeIssued carries a fresh QR pairing payload.
type PairingCodeIssued struct {
	Code string
}

// Connected signals the session is open and authenticated.
type Connected struct{}

// Disconnected signals the session closed. LoggedOut marks a terminal
// unpairing after which no automatic reconnect may be attempted.
type Disconnected struct {
	Reason    string
	LoggedOut bool
}

// MessageReceived is an inbound text message.
type MessageReceived struct {
	Chat   string
	Sender string
	Text   string
	FromMe bool
}

func (PairingCodeIssued) eventName() string { return "qr" }
func (Connected) eventName() string         { return "open" }
func (Disconnected) eventName() string      { return "close" }
func (MessageReceived) eventName() string   { return "message" }

// EventName returns the lifecycle name of ev: qr, open, close or message.
func EventName(ev Event) string {
	if ev == nil {
		return ""
	}
	return ev.eventName()
}
