// Package mirror owns the local replica of the relay's buffer list.
//
// Ownership boundary:
// - buffer records, identity and number indexes
// - number-bucket membership and active-member selection
// - nicklist state per buffer
// - hotlist reconciliation
//
// All mutation is expected to arrive on one goroutine (the session's
// event loop); the package holds no locks of its own.
package mirror
