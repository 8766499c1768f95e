package mirror

// Listener receives change notifications from the mirror, one call per
// mutation, after the mirror state has been updated. Implementations
// must not mutate the mirror from inside a callback.
type Listener interface {
	BufferInserted(rec *BufferRecord, index int)
	BufferRemoved(ptr Pointer)
	BuffersReordered()
	AttrsChanged(rec *BufferRecord)
	LinesAppended(rec *BufferRecord, lines []Line)
	NicklistChanged(rec *BufferRecord)
	HotChanged(rec *BufferRecord)
}

// nopListener backs a nil listener so the mirror never nil-checks at
// call sites.
type nopListener struct{}

func (nopListener) BufferInserted(*BufferRecord, int)   {}
func (nopListener) BufferRemoved(Pointer)               {}
func (nopListener) BuffersReordered()                   {}
func (nopListener) AttrsChanged(*BufferRecord)          {}
func (nopListener) LinesAppended(*BufferRecord, []Line) {}
func (nopListener) NicklistChanged(*BufferRecord)       {}
func (nopListener) HotChanged(*BufferRecord)            {}
