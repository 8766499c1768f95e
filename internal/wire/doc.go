// Package wire owns decoding of relay binary messages.
//
// Ownership boundary:
// - message envelope (compression flag, message id)
// - typed object decoding (chr int lon str buf ptr tim htb hda inf inl arr)
// - hdata item access helpers
//
// A frame's 4-byte length prefix is stripped by the transport before a
// payload reaches this package.
package wire
