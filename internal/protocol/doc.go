// Package protocol owns the contract between the gateway and the messaging
// protocol library.
//
// Ownership boundary:
// - Connector/Handle session surface
// - typed lifecycle events delivered to an EventSink
// - recipient address (JID) normalization
// - group participant role classification
//
// The protocol itself (pairing handshake, encryption, framing) lives behind
// Connector implementations such as protocol/whatsapp.
package protocol
