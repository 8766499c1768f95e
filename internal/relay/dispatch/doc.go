// Package dispatch routes decoded relay messages into the mirror.
//
// Ownership boundary:
// - message-kind routing table
// - hdata item to mirror record/line/nicklist conversion
// - referential-error absorption (unknown pointers drop one event)
package dispatch
