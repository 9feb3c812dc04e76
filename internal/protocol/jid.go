package protocol

import "strings"

const (
	DefaultUserServer = "s.whatsapp.net"
	GroupServer       = "g.us"
)

// NormalizeJID appends the default user server to a bare number. Values that
// already carry a server part are returned unchanged.
func NormalizeJID(target string) string {
	target = strings.TrimSpace(target)
	if target == "" || strings.Contains(target, "@") {
		return target
	}
	return target + "@" + DefaultUserServer
}

// IsGroupJID reports whether jid addresses a group.
func IsGroupJID(jid string) bool {
	return strings.HasSuffix(strings.TrimSpace(jid), "@"+GroupServer)
}

// NormalizeGroupJID appends the group server to a bare group id.
func NormalizeGroupJID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || strings.Contains(id, "@") {
		return id
	}
	return id + "@" + GroupServer
}
