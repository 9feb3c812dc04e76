// Package fanout routes per-identity lifecycle notices to observers that
// joined the identity's topic. Delivery is best effort and at most once;
// observers joining late receive only later notices.
package fanout
