package protocol

import "context"

// Connector opens one protocol session for an identity. Lifecycle events for
// the returned Handle are delivered to sink in the order the library emits them.
type Connector interface {
	Connect(ctx context.Context, identity string, sink EventSink) (Handle, error)
}

// Handle is one live protocol session, exclusively owned by its caller.
type Handle interface {
	SendText(ctx context.Context, jid, text string) error
	SendImage(ctx context.Context, jid string, image Image) error
	JoinedGroups(ctx context.Context) ([]Group, error)
	GroupInfo(ctx context.Context, groupID string) (GroupInfo, error)
	Close() error
}

// Image is an in-memory image attachment.
type Image struct {
	Data     []byte
	MimeType string
	Caption  string
}

// Group is the summary shape of one joined group.
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GroupInfo is the metadata of one group including its participants.
type GroupInfo struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Participants []Participant `json:"participants"`
}

// Participant is one group member with its classified role.
type Participant struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}
