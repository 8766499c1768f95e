package mirror

import "sort"

// Bucket is the set of buffers currently sharing one display number.
// Two or more members means the buffers are merged. Members keep the
// mirror's sequence order; Active is the member shown when the bucket
// is collapsed, remembered across renumber passes by identity.
type Bucket struct {
	Number  int
	Members []Pointer
	Active  Pointer
}

// renumber recomputes the number-to-bucket mapping from the current
// records. Distinct numbers are compacted to 1..K preserving their
// relative order, so no gaps survive a pass. Each surviving bucket
// keeps its previously active member when that pointer is still a
// member; otherwise the first member becomes active.
func (m *Mirror) renumber() {
	wasActive := make(map[Pointer]bool, len(m.buckets))
	for _, b := range m.buckets {
		if !b.Active.IsNil() {
			wasActive[b.Active] = true
		}
	}

	// Compact distinct numbers to 1..K.
	seen := make(map[int]bool)
	numbers := make([]int, 0, len(m.order))
	for _, rec := range m.order {
		if !seen[rec.Number] {
			seen[rec.Number] = true
			numbers = append(numbers, rec.Number)
		}
	}
	sort.Ints(numbers)
	compact := make(map[int]int, len(numbers))
	for i, n := range numbers {
		compact[n] = i + 1
	}
	for _, rec := range m.order {
		rec.Number = compact[rec.Number]
	}

	buckets := make(map[int]*Bucket, len(numbers))
	for _, rec := range m.order {
		b := buckets[rec.Number]
		if b == nil {
			b = &Bucket{Number: rec.Number}
			buckets[rec.Number] = b
		}
		b.Members = append(b.Members, rec.Pointer)
	}
	for _, b := range buckets {
		for _, ptr := range b.Members {
			if wasActive[ptr] {
				b.Active = ptr
				break
			}
		}
		if b.Active.IsNil() {
			b.Active = b.Members[0]
		}
	}
	m.buckets = buckets
}

// Bucket returns the bucket for a display number, or nil when no buffer
// holds that number.
func (m *Mirror) Bucket(number int) *Bucket {
	return m.buckets[number]
}

// Buckets returns all buckets ordered by number.
func (m *Mirror) Buckets() []*Bucket {
	out := make([]*Bucket, 0, len(m.buckets))
	for _, b := range m.buckets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// ActivateNext selects the next member of a merged bucket as its active
// buffer, wrapping at the end. Single-member buckets are unchanged.
func (m *Mirror) ActivateNext(number int) *BufferRecord {
	return m.activateStep(number, 1)
}

// ActivatePrev selects the previous member of a merged bucket as its
// active buffer, wrapping at the start.
func (m *Mirror) ActivatePrev(number int) *BufferRecord {
	return m.activateStep(number, -1)
}

func (m *Mirror) activateStep(number, step int) *BufferRecord {
	b := m.buckets[number]
	if b == nil || len(b.Members) == 0 {
		return nil
	}
	idx := 0
	for i, ptr := range b.Members {
		if ptr == b.Active {
			idx = i
			break
		}
	}
	idx = (idx + step + len(b.Members)) % len(b.Members)
	b.Active = b.Members[idx]
	return m.byPtr[b.Active]
}
