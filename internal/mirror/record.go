package mirror

import (
	"strings"
	"time"
)

// Pointer is the relay's stable handle for one buffer. It never changes
// for the lifetime of the buffer.
type Pointer string

// NilPointer is the relay's "no buffer" sentinel, used by insertion
// events meaning "append at end of list".
const NilPointer Pointer = "0x0"

// IsNil reports whether the pointer is empty or the relay nil sentinel.
func (p Pointer) IsNil() bool {
	return p == "" || p == NilPointer
}

// Line is one chat line of a buffer's history.
type Line struct {
	Date      time.Time
	Prefix    string
	Message   string
	Highlight bool
	Tags      []string
}

// HasTag reports whether the line carries the given relay tag.
func (l Line) HasTag(tag string) bool {
	for _, t := range l.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// HotlistEntry is one row of a relay hotlist snapshot.
type HotlistEntry struct {
	Buffer Pointer
	Count  int
}

// BufferRecord is the local replica of one relay buffer. Number and all
// attributes are rewritten in place as events arrive; Pointer is fixed.
type BufferRecord struct {
	Pointer        Pointer
	Number         int
	FullName       string
	ShortName      string
	Type           int
	Title          string
	LocalVariables map[string]string
	Notify         int
	Hidden         bool

	// Activity state, derived from lines and hotlist snapshots.
	Hot       int
	Highlight bool

	Nicklist Nicklist

	lines []Line
}

// Name returns the short name when set, the full name otherwise.
func (r *BufferRecord) Name() string {
	if strings.TrimSpace(r.ShortName) != "" {
		return r.ShortName
	}
	return r.FullName
}

// Nick returns the local nick for the buffer, from local variables.
func (r *BufferRecord) Nick() string {
	return r.LocalVariables["nick"]
}

// Lines returns the retained line history, oldest first.
func (r *BufferRecord) Lines() []Line {
	return r.lines
}
