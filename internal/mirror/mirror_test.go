package mirror

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buf(ptr Pointer, number int, fullName string) BufferRecord {
	return BufferRecord{Pointer: ptr, Number: number, FullName: fullName}
}

func numbersByPtr(m *Mirror) map[Pointer]int {
	out := make(map[Pointer]int)
	for _, rec := range m.Ordered() {
		out[rec.Pointer] = rec.Number
	}
	return out
}

func TestResetOrdersRecords(t *testing.T) {
	m := New()
	m.Reset([]BufferRecord{
		buf("0xa", 1, "core.weechat"),
		buf("0xb", 2, "irc.server.libera"),
		buf("0xc", 3, "irc.libera.#go-nuts"),
	})

	require.Equal(t, 3, m.Len())
	ordered := m.Ordered()
	require.Equal(t, Pointer("0xa"), ordered[0].Pointer)
	require.Equal(t, Pointer("0xc"), ordered[2].Pointer)

	rec, ok := m.Get("0xb")
	require.True(t, ok)
	assert.Equal(t, "irc.server.libera", rec.FullName)
	assert.Equal(t, 2, rec.Number)
}

func TestResetCompactsNumberGaps(t *testing.T) {
	m := New()
	m.Reset([]BufferRecord{
		buf("0xa", 5, "a"),
		buf("0xb", 9, "b"),
		buf("0xc", 9, "c"),
	})

	nums := numbersByPtr(m)
	assert.Equal(t, 1, nums["0xa"])
	assert.Equal(t, 2, nums["0xb"])
	assert.Equal(t, 2, nums["0xc"])

	b := m.Bucket(2)
	require.NotNil(t, b)
	assert.Equal(t, []Pointer{"0xb", "0xc"}, b.Members)
}

func TestResetDropsDuplicatePointers(t *testing.T) {
	m := New()
	m.Reset([]BufferRecord{
		buf("0xa", 1, "first"),
		buf("0xa", 2, "second"),
	})
	require.Equal(t, 1, m.Len())
	rec, _ := m.Get("0xa")
	assert.Equal(t, "first", rec.FullName)
}

func TestResetIsIdempotentForActiveMembers(t *testing.T) {
	records := []BufferRecord{
		buf("0xa", 1, "a"),
		buf("0xb", 2, "b"),
		buf("0xc", 2, "c"),
	}
	m := New()
	m.Reset(records)

	// Make the non-default member active, then replay the same sync.
	got := m.ActivateNext(2)
	require.NotNil(t, got)
	require.Equal(t, Pointer("0xc"), m.Bucket(2).Active)

	m.Reset(records)
	require.Equal(t, Pointer("0xc"), m.Bucket(2).Active)
}

func TestOpenShiftsNumbersUp(t *testing.T) {
	m := New()
	m.Reset([]BufferRecord{
		buf("0xa", 1, "a"),
		buf("0xb", 2, "b"),
	})

	// New buffer takes number 2, inserted before 0xb in sequence.
	require.NoError(t, m.Open(buf("0xn", 2, "n"), "0xb"))

	nums := numbersByPtr(m)
	assert.Equal(t, 1, nums["0xa"])
	assert.Equal(t, 2, nums["0xn"])
	assert.Equal(t, 3, nums["0xb"])

	ordered := m.Ordered()
	require.Equal(t, Pointer("0xn"), ordered[1].Pointer)
}

func TestOpenNilSentinelAppends(t *testing.T) {
	m := New()
	m.Reset([]BufferRecord{buf("0xa", 1, "a")})

	require.NoError(t, m.Open(buf("0xn", 2, "n"), NilPointer))
	ordered := m.Ordered()
	require.Equal(t, Pointer("0xn"), ordered[len(ordered)-1].Pointer)

	require.ErrorIs(t, m.Open(buf("0xn", 3, "dup"), NilPointer), ErrDuplicateBuffer)
}

func TestOpenUnknownNextBufferAppends(t *testing.T) {
	m := New()
	m.Reset([]BufferRecord{buf("0xa", 1, "a"), buf("0xb", 2, "b")})

	require.NoError(t, m.Open(buf("0xn", 3, "n"), "0xdeadbeef"))
	ordered := m.Ordered()
	assert.Equal(t, Pointer("0xn"), ordered[len(ordered)-1].Pointer)
}

func TestCloseSoleOccupantShiftsDown(t *testing.T) {
	m := New()
	m.Reset([]BufferRecord{
		buf("0xa", 1, "a"),
		buf("0xb", 2, "b"),
		buf("0xc", 3, "c"),
	})

	require.NoError(t, m.Close("0xb"))
	nums := numbersByPtr(m)
	assert.Equal(t, 1, nums["0xa"])
	assert.Equal(t, 2, nums["0xc"])

	_, ok := m.Get("0xb")
	assert.False(t, ok)
	require.ErrorIs(t, m.Close("0xb"), ErrUnknownBuffer)
}

func TestCloseMergedMemberKeepsOtherNumbers(t *testing.T) {
	m := New()
	m.Reset([]BufferRecord{
		buf("0xa", 1, "a"),
		buf("0xb", 2, "b"),
		buf("0xc", 2, "c"),
		buf("0xd", 3, "d"),
	})

	require.NoError(t, m.Close("0xb"))
	nums := numbersByPtr(m)
	assert.Equal(t, 1, nums["0xa"])
	assert.Equal(t, 2, nums["0xc"])
	assert.Equal(t, 3, nums["0xd"])
}

func TestMoveDownOntoOccupiedNumberMerges(t *testing.T) {
	m := New()
	m.Reset([]BufferRecord{
		buf("0xa", 1, "a"),
		buf("0xb", 2, "b"),
		buf("0xc", 3, "c"),
	})

	// Moving the last buffer onto number 1 lands exactly on 0xa, so the
	// two share the slot and 0xb compacts down behind them.
	require.NoError(t, m.Move("0xc", 1, "0xa"))
	nums := numbersByPtr(m)
	assert.Equal(t, 1, nums["0xa"])
	assert.Equal(t, 1, nums["0xc"])
	assert.Equal(t, 2, nums["0xb"])

	b := m.Bucket(1)
	require.NotNil(t, b)
	assert.ElementsMatch(t, []Pointer{"0xa", "0xc"}, b.Members)
	assert.Equal(t, Pointer("0xa"), b.Active)
	assert.Nil(t, m.Bucket(3))
}

func TestMoveToEndDisplaces(t *testing.T) {
	m := New()
	m.Reset([]BufferRecord{
		buf("0xa", 1, "a"),
		buf("0xb", 2, "b"),
		buf("0xc", 3, "c"),
	})

	// Number 4 is vacant, so the move displaces rather than merges.
	require.NoError(t, m.Move("0xa", 4, NilPointer))
	nums := numbersByPtr(m)
	assert.Equal(t, 1, nums["0xb"])
	assert.Equal(t, 2, nums["0xc"])
	assert.Equal(t, 3, nums["0xa"])
}

func TestMoveUpwardMergesAtTarget(t *testing.T) {
	m := New()
	m.Reset([]BufferRecord{
		buf("0xa", 1, "a"),
		buf("0xb", 2, "b"),
		buf("0xc", 3, "c"),
	})

	// Moving up vacates slot 1 and lands on 0xc's number exactly, so
	// the two buffers end up sharing it.
	require.NoError(t, m.Move("0xa", 3, NilPointer))
	nums := numbersByPtr(m)
	assert.Equal(t, 1, nums["0xb"])
	assert.Equal(t, 2, nums["0xc"])
	assert.Equal(t, 2, nums["0xa"])

	b := m.Bucket(2)
	require.NotNil(t, b)
	assert.Len(t, b.Members, 2)
}

func TestMergeJoinsBucketAndCompacts(t *testing.T) {
	m := New()
	m.Reset([]BufferRecord{
		buf("0xa", 1, "a"),
		buf("0xb", 2, "b"),
		buf("0xc", 3, "c"),
	})

	require.NoError(t, m.Merge("0xc", 1, "0xb"))

	nums := numbersByPtr(m)
	assert.Equal(t, 1, nums["0xa"])
	assert.Equal(t, 1, nums["0xc"])
	assert.Equal(t, 2, nums["0xb"])

	b := m.Bucket(1)
	require.NotNil(t, b)
	assert.Equal(t, []Pointer{"0xa", "0xc"}, b.Members)
	assert.Equal(t, Pointer("0xa"), b.Active)
}

func TestMergeMemberOfSharedBucketKeepsOthers(t *testing.T) {
	m := New()
	m.Reset([]BufferRecord{
		buf("0xa", 1, "a"),
		buf("0xb", 2, "b"),
		buf("0xc", 2, "c"),
		buf("0xd", 3, "d"),
	})

	// 0xb leaves a still-occupied bucket; no downshift of 0xd.
	require.NoError(t, m.Merge("0xb", 1, "0xa"))
	nums := numbersByPtr(m)
	assert.Equal(t, 1, nums["0xa"])
	assert.Equal(t, 1, nums["0xb"])
	assert.Equal(t, 2, nums["0xc"])
	assert.Equal(t, 3, nums["0xd"])
}

func TestUnmergeDetachesIntoOwnSlot(t *testing.T) {
	m := New()
	m.Reset([]BufferRecord{
		buf("0xa", 1, "a"),
		buf("0xb", 1, "b"),
		buf("0xc", 2, "c"),
	})

	require.NoError(t, m.Unmerge("0xb", 2, "0xc"))
	nums := numbersByPtr(m)
	assert.Equal(t, 1, nums["0xa"])
	assert.Equal(t, 2, nums["0xb"])
	assert.Equal(t, 3, nums["0xc"])
	assert.Len(t, m.Bucket(1).Members, 1)
}

func TestAttributeMutations(t *testing.T) {
	m := New()
	m.Reset([]BufferRecord{buf("0xa", 1, "irc.libera.#go-nuts")})

	require.NoError(t, m.Rename("0xa", "irc.libera.#golang", "#golang"))
	require.NoError(t, m.SetTitle("0xa", "Go talk"))
	require.NoError(t, m.SetType("0xa", 1))
	require.NoError(t, m.SetLocalVariables("0xa", map[string]string{"nick": "gopher"}))

	rec, _ := m.Get("0xa")
	assert.Equal(t, "#golang", rec.Name())
	assert.Equal(t, "Go talk", rec.Title)
	assert.Equal(t, 1, rec.Type)
	assert.Equal(t, "gopher", rec.Nick())

	require.ErrorIs(t, m.Rename("0xzz", "x", "x"), ErrUnknownBuffer)
}

func TestAppendLinesActivityAndTrim(t *testing.T) {
	m := New(WithMaxLines(3))
	m.Reset([]BufferRecord{buf("0xa", 1, "a")})

	lines := []Line{
		{Date: time.Unix(100, 0), Message: "plain", Tags: []string{"irc_join"}},
		{Date: time.Unix(101, 0), Message: "msg", Tags: []string{"irc_privmsg"}},
		{Date: time.Unix(102, 0), Message: "quiet", Tags: []string{"irc_privmsg", "no_notify"}},
		{Date: time.Unix(103, 0), Message: "ping", Tags: []string{"irc_privmsg"}, Highlight: true},
	}
	require.NoError(t, m.AppendLines("0xa", lines))

	rec, _ := m.Get("0xa")
	assert.Equal(t, 2, rec.Hot, "only privmsg without no_notify counts")
	assert.True(t, rec.Highlight)
	assert.Equal(t, []Pointer{"0xa"}, m.HotBuffers())

	// Trimmed to the three newest lines.
	got := rec.Lines()
	require.Len(t, got, 3)
	assert.Equal(t, "msg", got[0].Message)
	assert.Equal(t, "ping", got[2].Message)

	// Highlight is sticky until the buffer is marked read.
	require.NoError(t, m.AppendLines("0xa", []Line{{Message: "later"}}))
	rec, _ = m.Get("0xa")
	assert.True(t, rec.Highlight)

	require.NoError(t, m.ClearLines("0xa"))
	rec, _ = m.Get("0xa")
	assert.Empty(t, rec.Lines())
	require.ErrorIs(t, m.AppendLines("0xzz", nil), ErrUnknownBuffer)
}

func TestApplyHotlistReconciles(t *testing.T) {
	m := New()
	m.Reset([]BufferRecord{
		buf("0xa", 1, "a"),
		buf("0xb", 2, "b"),
		buf("0xc", 3, "c"),
	})
	require.NoError(t, m.AppendLines("0xc", []Line{{Tags: []string{"irc_privmsg"}}}))

	m.ApplyHotlist([]HotlistEntry{
		{Buffer: "0xa", Count: 2},
		{Buffer: "0xb", Count: 1},
		{Buffer: "0xdead", Count: 9}, // unknown, dropped
	})

	recA, _ := m.Get("0xa")
	recB, _ := m.Get("0xb")
	recC, _ := m.Get("0xc")
	assert.Equal(t, 2, recA.Hot)
	assert.Equal(t, 1, recB.Hot)
	assert.Equal(t, 0, recC.Hot, "snapshot zeroes buffers it does not name")
	assert.Equal(t, []Pointer{"0xa", "0xb"}, m.HotBuffers())

	// Empty snapshot clears everything.
	m.ApplyHotlist(nil)
	recA, _ = m.Get("0xa")
	assert.Equal(t, 0, recA.Hot)
	assert.Empty(t, m.HotBuffers())
}

func TestApplyHotlistSumsRepeatedEntries(t *testing.T) {
	m := New()
	m.Reset([]BufferRecord{buf("0xa", 1, "a")})

	// One buffer can appear once per activity priority.
	m.ApplyHotlist([]HotlistEntry{
		{Buffer: "0xa", Count: 2},
		{Buffer: "0xa", Count: 3},
	})
	rec, _ := m.Get("0xa")
	assert.Equal(t, 5, rec.Hot)
}

func TestClearHot(t *testing.T) {
	m := New()
	m.Reset([]BufferRecord{buf("0xa", 1, "a")})
	require.NoError(t, m.AppendLines("0xa", []Line{{Tags: []string{"irc_privmsg"}}, {Highlight: true}}))

	require.NoError(t, m.ClearHot("0xa"))
	rec, _ := m.Get("0xa")
	assert.Equal(t, 0, rec.Hot)
	assert.False(t, rec.Highlight)
	assert.Empty(t, m.HotBuffers())

	require.ErrorIs(t, m.ClearHot("0xzz"), ErrUnknownBuffer)
}

func TestActivateNextPrevWraps(t *testing.T) {
	m := New()
	m.Reset([]BufferRecord{
		buf("0xa", 1, "a"),
		buf("0xb", 1, "b"),
		buf("0xc", 1, "c"),
	})

	b := m.Bucket(1)
	require.Equal(t, Pointer("0xa"), b.Active)

	assert.Equal(t, Pointer("0xb"), m.ActivateNext(1).Pointer)
	assert.Equal(t, Pointer("0xc"), m.ActivateNext(1).Pointer)
	assert.Equal(t, Pointer("0xa"), m.ActivateNext(1).Pointer, "wraps at end")
	assert.Equal(t, Pointer("0xc"), m.ActivatePrev(1).Pointer, "wraps at start")

	assert.Nil(t, m.ActivateNext(99))
}

func TestBucketsOrderedByNumber(t *testing.T) {
	m := New()
	m.Reset([]BufferRecord{
		buf("0xc", 3, "c"),
		buf("0xa", 1, "a"),
		buf("0xb", 2, "b"),
	})

	buckets := m.Buckets()
	require.Len(t, buckets, 3)
	for i, b := range buckets {
		assert.Equal(t, i+1, b.Number, fmt.Sprintf("bucket %d", i))
	}
}
