// Package session owns per-identity protocol session lifecycle.
//
// Ownership boundary:
// - identity -> record registry and creation serialization
//
// - lifecycle state machine driven by protocol events
//
// - reconnect scheduling and pairing window enforcement
//
// - connectivity preconditions for delegated operations
//
// Lifecycle order:
// - pairing -> connected -> reconnecting -> pairing
//
// - logged_out and disconnected are resting states left only by Start.
//
// Records are never evicted. Observers are notified through a Publisher;
// the registry never reads back from it.
package session
