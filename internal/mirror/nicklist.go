package mirror

// NickEntry is one participant inside a nicklist group.
type NickEntry struct {
	Prefix  string
	Name    string
	Visible bool
}

// NickGroup is one named group of a buffer's nicklist. Entries keep
// insertion order and are unique by name.
type NickGroup struct {
	Name    string
	Visible bool
	entries []NickEntry
}

// Entries returns the group's entries in insertion order.
func (g *NickGroup) Entries() []NickEntry {
	return g.entries
}

// Nicklist is the set of participants of one buffer, organized into
// named groups. Groups keep insertion order.
type Nicklist struct {
	order  []string
	groups map[string]*NickGroup
}

// Len returns the number of groups.
func (n *Nicklist) Len() int {
	return len(n.order)
}

// Groups returns the groups in insertion order.
func (n *Nicklist) Groups() []*NickGroup {
	out := make([]*NickGroup, 0, len(n.order))
	for _, name := range n.order {
		out = append(out, n.groups[name])
	}
	return out
}

// Group returns the named group, or nil when absent.
func (n *Nicklist) Group(name string) *NickGroup {
	if n.groups == nil {
		return nil
	}
	return n.groups[name]
}

// Clear drops all groups and entries.
func (n *Nicklist) Clear() {
	n.order = nil
	n.groups = nil
}

// AddGroup creates the named group, or rewrites its visibility when it
// already exists.
func (n *Nicklist) AddGroup(name string, visible bool) {
	if n.groups == nil {
		n.groups = make(map[string]*NickGroup)
	}
	if g, ok := n.groups[name]; ok {
		g.Visible = visible
		return
	}
	n.groups[name] = &NickGroup{Name: name, Visible: visible}
	n.order = append(n.order, name)
}

// RemoveGroup drops the named group and all of its entries.
func (n *Nicklist) RemoveGroup(name string) {
	if n.groups == nil {
		return
	}
	if _, ok := n.groups[name]; !ok {
		return
	}
	delete(n.groups, name)
	for i, gname := range n.order {
		if gname == name {
			n.order = append(n.order[:i], n.order[i+1:]...)
			break
		}
	}
}

// AddNick adds an entry to the named group, creating the group when it
// does not exist yet. An entry with the same name is rewritten in place.
func (n *Nicklist) AddNick(group, prefix, name string, visible bool) {
	if n.Group(group) == nil {
		n.AddGroup(group, true)
	}
	g := n.groups[group]
	for i := range g.entries {
		if g.entries[i].Name == name {
			g.entries[i].Prefix = prefix
			g.entries[i].Visible = visible
			return
		}
	}
	g.entries = append(g.entries, NickEntry{Prefix: prefix, Name: name, Visible: visible})
}

// RemoveNick drops the named entry from the group. Unknown group or
// entry is a no-op.
func (n *Nicklist) RemoveNick(group, name string) {
	g := n.Group(group)
	if g == nil {
		return
	}
	for i := range g.entries {
		if g.entries[i].Name == name {
			g.entries = append(g.entries[:i], g.entries[i+1:]...)
			return
		}
	}
}

// UpdateNick rewrites the prefix and visibility of the named entry.
// Unknown group or entry is a no-op.
func (n *Nicklist) UpdateNick(group, prefix, name string, visible bool) {
	g := n.Group(group)
	if g == nil {
		return
	}
	for i := range g.entries {
		if g.entries[i].Name == name {
			g.entries[i].Prefix = prefix
			g.entries[i].Visible = visible
			return
		}
	}
}

// Diff opcodes carried by incremental nicklist events.
const (
	NicklistDiffGroup  = '^'
	NicklistDiffAdd    = '+'
	NicklistDiffRemove = '-'
	NicklistDiffUpdate = '*'
)

// NicklistItem is one row of a full nicklist sync or a nicklist diff.
// Group rows carry IsGroup and set the group context for the nick rows
// that follow them; diff rows additionally carry the opcode.
type NicklistItem struct {
	Diff    byte
	IsGroup bool
	Prefix  string
	Name    string
	Visible bool
}
