package session

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidIdentity  = errors.New("session: invalid identity")
	ErrUnknownIdentity  = errors.New("session: unknown identity")
	ErrNotConnected     = errors.New("session: not connected")
	ErrConnectFailed    = errors.New("session: connect failed")
	ErrPairingAbandoned = errors.New("session: pairing abandoned")
	ErrRegistryClosed   = errors.New("session: registry closed")
	ErrDeliveryFailed   = errors.New("session: delivery failed")
	ErrQueryFailed      = errors.New("session: query failed")
)

// OpKind classifies a failed delegated operation.
type OpKind string

const (
	DeliveryFailed OpKind = "delivery_failed"
	QueryFailed    OpKind = "query_failed"
)

// OpError carries the protocol library failure behind a delegated operation.
type OpError struct {
	Kind     OpKind
	Op       string
	Identity string
	Err      error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("session: %s %s identity=%q: %v", e.Op, e.Kind, e.Identity, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Is matches ErrDeliveryFailed and ErrQueryFailed by kind.
func (e *OpError) Is(target error) bool {
	switch target {
	case ErrDeliveryFailed:
		return e.Kind == DeliveryFailed
	case ErrQueryFailed:
		return e.Kind == QueryFailed
	}
	return false
}
