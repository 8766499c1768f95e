// Package transport owns the relay socket and frame reassembly.
//
// Ownership boundary:
// - TCP/TLS connect and disconnect lifecycle
// - length-prefixed frame reassembly from the byte stream
// - the ordered event stream consumed by the session
//
// Writes are safe from any goroutine; all reads happen on the
// transport's own reader goroutine.
package transport
