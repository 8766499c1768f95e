package mirror

import (
	"errors"

	"github.com/rs/zerolog"
)

var (
	ErrUnknownBuffer   = errors.New("mirror: unknown buffer pointer")
	ErrDuplicateBuffer = errors.New("mirror: duplicate buffer pointer")
)

// DefaultMaxLines bounds the retained line history per buffer.
const DefaultMaxLines = 100

// Mirror is the ordered collection of buffer records. The sequence
// order is the relay's reported order, not numeric order; display
// numbers are tracked separately through number buckets.
type Mirror struct {
	order    []*BufferRecord
	byPtr    map[Pointer]*BufferRecord
	buckets  map[int]*Bucket
	hot      map[Pointer]bool
	maxLines int
	listener Listener
	log      zerolog.Logger
}

// Option configures a Mirror.
type Option func(*Mirror)

// WithListener registers the change notification sink.
func WithListener(l Listener) Option {
	return func(m *Mirror) {
		if l != nil {
			m.listener = l
		}
	}
}

// WithMaxLines bounds per-buffer line history. Zero or negative keeps
// the default.
func WithMaxLines(n int) Option {
	return func(m *Mirror) {
		if n > 0 {
			m.maxLines = n
		}
	}
}

// WithLogger sets the mirror's diagnostic logger.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Mirror) {
		m.log = log
	}
}

func New(opts ...Option) *Mirror {
	m := &Mirror{
		byPtr:    make(map[Pointer]*BufferRecord),
		buckets:  make(map[int]*Bucket),
		hot:      make(map[Pointer]bool),
		maxLines: DefaultMaxLines,
		listener: nopListener{},
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Len returns the number of open buffers.
func (m *Mirror) Len() int {
	return len(m.order)
}

// Get returns the record for a pointer.
func (m *Mirror) Get(ptr Pointer) (*BufferRecord, bool) {
	rec, ok := m.byPtr[ptr]
	return rec, ok
}

// Ordered returns the records in relay sequence order.
func (m *Mirror) Ordered() []*BufferRecord {
	out := make([]*BufferRecord, len(m.order))
	copy(out, m.order)
	return out
}

// HotBuffers returns the pointers currently carrying unread activity.
func (m *Mirror) HotBuffers() []Pointer {
	out := make([]Pointer, 0, len(m.hot))
	for _, rec := range m.order {
		if m.hot[rec.Pointer] {
			out = append(out, rec.Pointer)
		}
	}
	return out
}

// Reset replaces the whole mirror from a full buffer list sync. Records
// are inserted in relay order, then one renumber pass runs. Active
// bucket members survive by identity, so applying the same payload
// twice is idempotent.
func (m *Mirror) Reset(records []BufferRecord) {
	m.order = m.order[:0]
	m.byPtr = make(map[Pointer]*BufferRecord, len(records))
	m.hot = make(map[Pointer]bool)
	for i := range records {
		rec := records[i]
		if _, dup := m.byPtr[rec.Pointer]; dup {
			m.log.Warn().Str("pointer", string(rec.Pointer)).Msg("duplicate buffer in full sync, dropped")
			continue
		}
		m.order = append(m.order, &rec)
		m.byPtr[rec.Pointer] = &rec
	}
	m.renumber()
	m.listener.BuffersReordered()
}

// Open creates a new buffer record and inserts it before the buffer
// named by nextBuffer (end of list for the nil sentinel or an unknown
// pointer). Existing buffers at or above the new number shift up.
func (m *Mirror) Open(rec BufferRecord, nextBuffer Pointer) error {
	if _, dup := m.byPtr[rec.Pointer]; dup {
		return ErrDuplicateBuffer
	}
	for _, r := range m.order {
		if r.Number >= rec.Number {
			r.Number++
		}
	}
	idx := m.insertIndex(nextBuffer)
	r := &rec
	m.order = append(m.order, nil)
	copy(m.order[idx+1:], m.order[idx:])
	m.order[idx] = r
	m.byPtr[rec.Pointer] = r
	m.renumber()
	m.listener.BufferInserted(r, idx)
	return nil
}

// Close removes a buffer. When the buffer was the sole member of its
// number bucket, buffers above it shift down to close the gap; closing
// one member of a merged bucket leaves the other numbers untouched.
func (m *Mirror) Close(ptr Pointer) error {
	rec, ok := m.byPtr[ptr]
	if !ok {
		return ErrUnknownBuffer
	}
	if m.soleOccupant(rec) {
		for _, r := range m.order {
			if r != rec && r.Number > rec.Number {
				r.Number--
			}
		}
	}
	m.removeFromOrder(rec)
	delete(m.byPtr, ptr)
	delete(m.hot, ptr)
	m.renumber()
	m.listener.BufferRemoved(ptr)
	return nil
}

// Move assigns a buffer its relay-reported new number and sequence
// position. Buffers at or above the old number shift down and buffers
// at or above the new number shift up, except buffers already holding
// the new number: a mover arriving exactly at another buffer's number
// merges with it instead of displacing it.
func (m *Mirror) Move(ptr Pointer, newNumber int, nextBuffer Pointer) error {
	return m.restructure(ptr, nextBuffer, func(rec *BufferRecord) {
		old := rec.Number
		for _, r := range m.order {
			if r == rec || r.Number == newNumber {
				continue
			}
			n := r.Number
			if n >= old {
				r.Number--
			}
			if n >= newNumber {
				r.Number++
			}
		}
		rec.Number = newNumber
	})
}

// Merge moves a buffer into another buffer's number bucket. When the
// merging buffer leaves its slot empty, buffers above it shift down.
// newNumber is the relay-reported final number of the merged bucket.
func (m *Mirror) Merge(ptr Pointer, newNumber int, nextBuffer Pointer) error {
	return m.restructure(ptr, nextBuffer, func(rec *BufferRecord) {
		if m.soleOccupant(rec) {
			for _, r := range m.order {
				if r != rec && r.Number > rec.Number {
					r.Number--
				}
			}
		}
		rec.Number = newNumber
	})
}

// Unmerge detaches a buffer from its bucket into its own number slot.
// Buffers at or above the target number shift up to make room.
func (m *Mirror) Unmerge(ptr Pointer, newNumber int, nextBuffer Pointer) error {
	return m.restructure(ptr, nextBuffer, func(rec *BufferRecord) {
		for _, r := range m.order {
			if r != rec && r.Number >= newNumber {
				r.Number++
			}
		}
		rec.Number = newNumber
	})
}

// restructure applies a number delta, then removes and reinserts the
// record at the relay-designated position, then renumbers.
func (m *Mirror) restructure(ptr Pointer, nextBuffer Pointer, delta func(*BufferRecord)) error {
	rec, ok := m.byPtr[ptr]
	if !ok {
		return ErrUnknownBuffer
	}
	delta(rec)
	m.removeFromOrder(rec)
	idx := m.insertIndex(nextBuffer)
	m.order = append(m.order, nil)
	copy(m.order[idx+1:], m.order[idx:])
	m.order[idx] = rec
	m.renumber()
	m.listener.BuffersReordered()
	return nil
}

// soleOccupant reports whether no other open buffer shares the record's
// number.
func (m *Mirror) soleOccupant(rec *BufferRecord) bool {
	for _, r := range m.order {
		if r != rec && r.Number == rec.Number {
			return false
		}
	}
	return true
}

func (m *Mirror) removeFromOrder(rec *BufferRecord) {
	for i, r := range m.order {
		if r == rec {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

// insertIndex resolves a "next buffer" pointer to a sequence index.
// The nil sentinel and unknown pointers resolve to end of list.
func (m *Mirror) insertIndex(nextBuffer Pointer) int {
	if nextBuffer.IsNil() {
		return len(m.order)
	}
	for i, r := range m.order {
		if r.Pointer == nextBuffer {
			return i
		}
	}
	m.log.Warn().Str("next_buffer", string(nextBuffer)).Msg("insertion position not found, appending at end")
	return len(m.order)
}

// Rename rewrites a buffer's full and short names.
func (m *Mirror) Rename(ptr Pointer, fullName, shortName string) error {
	return m.mutate(ptr, func(rec *BufferRecord) {
		rec.FullName = fullName
		rec.ShortName = shortName
	})
}

// SetTitle rewrites a buffer's title.
func (m *Mirror) SetTitle(ptr Pointer, title string) error {
	return m.mutate(ptr, func(rec *BufferRecord) {
		rec.Title = title
	})
}

// SetType rewrites a buffer's type.
func (m *Mirror) SetType(ptr Pointer, bufferType int) error {
	return m.mutate(ptr, func(rec *BufferRecord) {
		rec.Type = bufferType
	})
}

// SetLocalVariables replaces a buffer's local variable map.
func (m *Mirror) SetLocalVariables(ptr Pointer, vars map[string]string) error {
	return m.mutate(ptr, func(rec *BufferRecord) {
		rec.LocalVariables = vars
	})
}

// ClearLines drops a buffer's retained line history.
func (m *Mirror) ClearLines(ptr Pointer) error {
	return m.mutate(ptr, func(rec *BufferRecord) {
		rec.lines = nil
	})
}

func (m *Mirror) mutate(ptr Pointer, fn func(*BufferRecord)) error {
	rec, ok := m.byPtr[ptr]
	if !ok {
		return ErrUnknownBuffer
	}
	fn(rec)
	m.listener.AttrsChanged(rec)
	return nil
}

// AppendLines adds chat lines to a buffer in chronological order. Lines
// flagged as highlights mark the buffer highlighted; private-message
// lines without the "no_notify" tag bump the unread count. History is
// trimmed to the configured depth, oldest first.
func (m *Mirror) AppendLines(ptr Pointer, lines []Line) error {
	rec, ok := m.byPtr[ptr]
	if !ok {
		return ErrUnknownBuffer
	}
	hotBefore, highlightBefore := rec.Hot, rec.Highlight
	for _, line := range lines {
		if line.Highlight {
			rec.Highlight = true
		}
		if !line.HasTag("no_notify") && line.HasTag("irc_privmsg") {
			rec.Hot++
			m.hot[rec.Pointer] = true
		}
	}
	rec.lines = append(rec.lines, lines...)
	if len(rec.lines) > m.maxLines {
		rec.lines = rec.lines[len(rec.lines)-m.maxLines:]
	}
	m.listener.LinesAppended(rec, lines)
	if rec.Hot != hotBefore || rec.Highlight != highlightBefore {
		m.listener.HotChanged(rec)
	}
	return nil
}

// ApplyHotlist reconciles the unread counts from a hotlist snapshot:
// every buffer is zeroed, then each reported entry sets its buffer's
// count. Entries naming unknown buffers are dropped.
func (m *Mirror) ApplyHotlist(entries []HotlistEntry) {
	counts := make(map[Pointer]int, len(entries))
	for _, e := range entries {
		if _, ok := m.byPtr[e.Buffer]; !ok {
			m.log.Debug().Str("pointer", string(e.Buffer)).Msg("hotlist entry for unknown buffer, dropped")
			continue
		}
		counts[e.Buffer] += e.Count
	}
	m.hot = make(map[Pointer]bool, len(counts))
	for _, rec := range m.order {
		want := counts[rec.Pointer]
		if want > 0 {
			m.hot[rec.Pointer] = true
		}
		if rec.Hot != want {
			rec.Hot = want
			m.listener.HotChanged(rec)
		}
	}
}

// ClearHot marks a buffer as read: unread count and highlight are
// dropped together with its hot-set membership.
func (m *Mirror) ClearHot(ptr Pointer) error {
	rec, ok := m.byPtr[ptr]
	if !ok {
		return ErrUnknownBuffer
	}
	if rec.Hot == 0 && !rec.Highlight && !m.hot[ptr] {
		return nil
	}
	rec.Hot = 0
	rec.Highlight = false
	delete(m.hot, ptr)
	m.listener.HotChanged(rec)
	return nil
}

// ReplaceNicklist rebuilds a buffer's nicklist from a full sync. Group
// rows open a new group and set the context for the nick rows after
// them.
func (m *Mirror) ReplaceNicklist(ptr Pointer, items []NicklistItem) error {
	rec, ok := m.byPtr[ptr]
	if !ok {
		return ErrUnknownBuffer
	}
	rec.Nicklist.Clear()
	group := "__root"
	for _, item := range items {
		if item.IsGroup {
			group = item.Name
			rec.Nicklist.AddGroup(item.Name, item.Visible)
			continue
		}
		rec.Nicklist.AddNick(group, item.Prefix, item.Name, item.Visible)
	}
	m.listener.NicklistChanged(rec)
	return nil
}

// ApplyNicklistDiff applies incremental nicklist edits. The '^' opcode
// sets the group context for the rows after it; add, remove and update
// operate on either a group or a nick in the current context.
func (m *Mirror) ApplyNicklistDiff(ptr Pointer, items []NicklistItem) error {
	rec, ok := m.byPtr[ptr]
	if !ok {
		return ErrUnknownBuffer
	}
	group := "__root"
	for _, item := range items {
		switch item.Diff {
		case NicklistDiffGroup:
			group = item.Name
		case NicklistDiffAdd:
			if item.IsGroup {
				rec.Nicklist.AddGroup(item.Name, item.Visible)
			} else {
				rec.Nicklist.AddNick(group, item.Prefix, item.Name, item.Visible)
			}
		case NicklistDiffRemove:
			if item.IsGroup {
				rec.Nicklist.RemoveGroup(item.Name)
			} else {
				rec.Nicklist.RemoveNick(group, item.Name)
			}
		case NicklistDiffUpdate:
			if item.IsGroup {
				rec.Nicklist.AddGroup(item.Name, item.Visible)
			} else {
				rec.Nicklist.UpdateNick(group, item.Prefix, item.Name, item.Visible)
			}
		default:
			m.log.Debug().Str("opcode", string(item.Diff)).Msg("unknown nicklist diff opcode, dropped")
		}
	}
	m.listener.NicklistChanged(rec)
	return nil
}
