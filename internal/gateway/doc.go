// Package gateway exposes the session registry over HTTP and WebSocket and
// owns the process lifecycle around it.
package gateway
