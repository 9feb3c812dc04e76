// Package whatsapp implements protocol.Connector on top of whatsmeow. Each
// identity gets its own sqlite credential store under the auth directory.
package whatsapp
