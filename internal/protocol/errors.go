package protocol

import "errors"

var (
	ErrHandleClosed  = errors.New("protocol: handle closed")
	ErrInvalidJID    = errors.New("protocol: invalid jid")
	ErrEmptyImage    = errors.New("protocol: empty image payload")
	ErrNotPaired     = errors.New("protocol: device not paired")
	ErrGroupNotFound = errors.New("protocol: group not found")

	// ErrInvalidIdentity is returned by connectors for identities they cannot
	// map onto credential storage.
	ErrInvalidIdentity = errors.New("protocol: invalid identity")
)
