// Package session owns the relay connection lifecycle.
//
// Ownership boundary:
// - connect/disconnect state machine and remembered dial parameters
// - the init/sync/ping command sequences
// - the keepalive watchdog and automatic reconnect
// - the serialized event loop every inbound frame flows through
package session
