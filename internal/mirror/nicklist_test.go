package mirror

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceNicklistGroupsRows(t *testing.T) {
	m := New()
	m.Reset([]BufferRecord{buf("0xa", 1, "irc.libera.#go-nuts")})

	items := []NicklistItem{
		{IsGroup: true, Name: "000|o", Visible: false},
		{Name: "alice", Prefix: "@", Visible: true},
		{Name: "bob", Prefix: "@", Visible: true},
		{IsGroup: true, Name: "999|...", Visible: false},
		{Name: "carol", Prefix: " ", Visible: true},
	}
	require.NoError(t, m.ReplaceNicklist("0xa", items))

	rec, _ := m.Get("0xa")
	groups := rec.Nicklist.Groups()
	require.Len(t, groups, 2)
	assert.Equal(t, "000|o", groups[0].Name)
	require.Len(t, groups[0].Entries(), 2)
	assert.Equal(t, "alice", groups[0].Entries()[0].Name)
	require.Len(t, groups[1].Entries(), 1)
	assert.Equal(t, "carol", groups[1].Entries()[0].Name)

	// Full sync replaces, never merges.
	require.NoError(t, m.ReplaceNicklist("0xa", []NicklistItem{
		{IsGroup: true, Name: "999|...", Visible: false},
		{Name: "dave", Visible: true},
	}))
	rec, _ = m.Get("0xa")
	groups = rec.Nicklist.Groups()
	require.Len(t, groups, 1)
	assert.Equal(t, "dave", groups[0].Entries()[0].Name)

	require.ErrorIs(t, m.ReplaceNicklist("0xzz", nil), ErrUnknownBuffer)
}

func TestReplaceNicklistLeadingNicksUseRootGroup(t *testing.T) {
	m := New()
	m.Reset([]BufferRecord{buf("0xa", 1, "a")})

	require.NoError(t, m.ReplaceNicklist("0xa", []NicklistItem{
		{Name: "orphan", Visible: true},
	}))
	rec, _ := m.Get("0xa")
	g := rec.Nicklist.Group("__root")
	require.NotNil(t, g)
	assert.Equal(t, "orphan", g.Entries()[0].Name)
}

func TestApplyNicklistDiffSequence(t *testing.T) {
	m := New()
	m.Reset([]BufferRecord{buf("0xa", 1, "a")})

	diff := []NicklistItem{
		{Diff: NicklistDiffGroup, IsGroup: true, Name: "ops"},
		{Diff: NicklistDiffAdd, Name: "alice", Prefix: "@", Visible: true},
		{Diff: NicklistDiffAdd, Name: "bob", Prefix: "", Visible: true},
		{Diff: NicklistDiffUpdate, Name: "bob", Prefix: "+", Visible: true},
		{Diff: NicklistDiffRemove, Name: "alice"},
	}
	require.NoError(t, m.ApplyNicklistDiff("0xa", diff))

	rec, _ := m.Get("0xa")
	g := rec.Nicklist.Group("ops")
	require.NotNil(t, g)
	entries := g.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "bob", entries[0].Name)
	assert.Equal(t, "+", entries[0].Prefix)
}

func TestApplyNicklistDiffGroupOps(t *testing.T) {
	m := New()
	m.Reset([]BufferRecord{buf("0xa", 1, "a")})

	require.NoError(t, m.ApplyNicklistDiff("0xa", []NicklistItem{
		{Diff: NicklistDiffAdd, IsGroup: true, Name: "voice", Visible: true},
		{Diff: NicklistDiffGroup, IsGroup: true, Name: "voice"},
		{Diff: NicklistDiffAdd, Name: "vern", Prefix: "+", Visible: true},
	}))
	rec, _ := m.Get("0xa")
	require.NotNil(t, rec.Nicklist.Group("voice"))

	require.NoError(t, m.ApplyNicklistDiff("0xa", []NicklistItem{
		{Diff: NicklistDiffRemove, IsGroup: true, Name: "voice"},
	}))
	rec, _ = m.Get("0xa")
	assert.Nil(t, rec.Nicklist.Group("voice"))

	// Unknown opcode rows are dropped without failing the batch.
	require.NoError(t, m.ApplyNicklistDiff("0xa", []NicklistItem{
		{Diff: '?', Name: "ghost"},
	}))

	require.ErrorIs(t, m.ApplyNicklistDiff("0xzz", nil), ErrUnknownBuffer)
}

func TestNicklistAddNickRewritesInPlace(t *testing.T) {
	var n Nicklist
	n.AddNick("ops", "@", "alice", true)
	n.AddNick("ops", "", "bob", true)
	n.AddNick("ops", "+", "alice", false)

	g := n.Group("ops")
	require.NotNil(t, g)
	entries := g.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "alice", entries[0].Name, "rewrite keeps position")
	assert.Equal(t, "+", entries[0].Prefix)
	assert.False(t, entries[0].Visible)
}

func TestNicklistRemoveMissingIsNoop(t *testing.T) {
	var n Nicklist
	n.RemoveNick("nowhere", "nobody")
	n.RemoveGroup("nowhere")
	n.UpdateNick("nowhere", "@", "nobody", true)
	assert.Equal(t, 0, n.Len())
}
