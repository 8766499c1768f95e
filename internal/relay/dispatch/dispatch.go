package dispatch

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stormglass/weemirror/internal/mirror"
	"github.com/stormglass/weemirror/internal/observability"
	"github.com/stormglass/weemirror/internal/wire"
)

// Control is what the dispatcher needs from the session: pausing and
// resuming push updates around a server upgrade, and recording the
// server version for feature gating.
type Control interface {
	Desync()
	Resync()
	SetServerVersion(v float64)
}

// Dispatcher decodes frames and routes each message by its kind tag
// into the buffer mirror. Unrecognized kinds are ignored without error;
// events referencing unknown buffers are dropped individually.
type Dispatcher struct {
	mirror  *mirror.Mirror
	control Control
	log     zerolog.Logger

	// lastKind backs the pre-1.6 workaround: servers that old do not
	// send an empty "hotlist" before "_pong", so the pong itself
	// triggers hotlist reconciliation.
	lastKind string
}

func New(m *mirror.Mirror, control Control, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		mirror:  m,
		control: control,
		log:     log.With().Str("component", "dispatch").Logger(),
	}
}

// HandleFrame decodes one frame and dispatches the message. A decode
// error is returned to the session, which treats it as fatal to the
// connection.
func (d *Dispatcher) HandleFrame(frame []byte) error {
	msg, err := wire.Decode(frame)
	if err != nil {
		return err
	}
	d.Dispatch(msg)
	return nil
}

// Dispatch routes one decoded message.
func (d *Dispatcher) Dispatch(msg wire.Message) {
	observability.CountDispatch(metricKind(msg.ID))
	switch {
	case msg.ID == "listbuffers":
		d.listBuffers(msg)
	case msg.ID == "listlines":
		d.lines(msg, true)
	case msg.ID == "_buffer_line_added":
		d.lines(msg, false)
	case msg.ID == "nicklist" || msg.ID == "_nicklist":
		d.nicklist(msg)
	case msg.ID == "_nicklist_diff":
		d.nicklistDiff(msg)
	case msg.ID == "_buffer_opened":
		d.bufferOpened(msg)
	case strings.HasPrefix(msg.ID, "_buffer_"):
		d.bufferEvent(msg)
	case msg.ID == "_upgrade":
		d.control.Desync()
	case msg.ID == "_upgrade_ended":
		d.control.Resync()
	case msg.ID == "hotlist":
		d.hotlist(msg)
	case msg.ID == "_pong":
		if d.lastKind != "hotlist" {
			d.hotlist(msg)
		}
	case msg.ID == "id":
		d.serverInfo(msg)
	default:
		d.log.Debug().Str("kind", msg.ID).Msg("unrecognized message kind, ignored")
	}
	d.lastKind = msg.ID
}

// listBuffers performs the full resync: the mirror is cleared and
// rebuilt in server order, then renumbered once.
func (d *Dispatcher) listBuffers(msg wire.Message) {
	for _, obj := range msg.Objects {
		h := obj.Hdata()
		if h == nil || h.PathTail() != "buffer" {
			continue
		}
		records := make([]mirror.BufferRecord, 0, len(h.Items))
		for _, item := range h.Items {
			records = append(records, bufferRecordFromItem(item))
		}
		d.mirror.Reset(records)
		d.log.Info().Int("buffers", len(records)).Msg("full buffer sync applied")
	}
}

func (d *Dispatcher) lines(msg wire.Message, historical bool) {
	for _, obj := range msg.Objects {
		h := obj.Hdata()
		if h == nil || h.PathTail() != "line_data" {
			continue
		}
		type bufferLine struct {
			ptr  mirror.Pointer
			line mirror.Line
		}
		batch := make([]bufferLine, 0, len(h.Items))
		for _, item := range h.Items {
			ptr := mirror.Pointer(item.PathHead())
			if !historical {
				ptr = mirror.Pointer(item.Ptr("buffer"))
			}
			batch = append(batch, bufferLine{
				ptr: ptr,
				line: mirror.Line{
					Date:      item.Time("date"),
					Prefix:    item.Str("prefix"),
					Message:   item.Str("message"),
					Highlight: item.Char("highlight") > 0,
					Tags:      item.StrArray("tags_array"),
				},
			})
		}
		// History arrives newest-first; live appends are already
		// chronological.
		if historical {
			for i, j := 0, len(batch)-1; i < j; i, j = i+1, j-1 {
				batch[i], batch[j] = batch[j], batch[i]
			}
		}
		for _, bl := range batch {
			if err := d.mirror.AppendLines(bl.ptr, []mirror.Line{bl.line}); err != nil {
				d.dropEvent(bl.ptr, "line")
			}
		}
	}
}

func (d *Dispatcher) nicklist(msg wire.Message) {
	for _, obj := range msg.Objects {
		h := obj.Hdata()
		if h == nil || h.PathTail() != "nicklist_item" {
			continue
		}
		for ptr, items := range groupNicklistItems(h, false) {
			if err := d.mirror.ReplaceNicklist(ptr, items); err != nil {
				d.dropEvent(ptr, "nicklist")
			}
		}
	}
}

func (d *Dispatcher) nicklistDiff(msg wire.Message) {
	for _, obj := range msg.Objects {
		h := obj.Hdata()
		if h == nil || h.PathTail() != "nicklist_item" {
			continue
		}
		for ptr, items := range groupNicklistItems(h, true) {
			if err := d.mirror.ApplyNicklistDiff(ptr, items); err != nil {
				d.dropEvent(ptr, "nicklist diff")
			}
		}
	}
}

func (d *Dispatcher) bufferOpened(msg wire.Message) {
	for _, obj := range msg.Objects {
		h := obj.Hdata()
		if h == nil || h.PathTail() != "buffer" {
			continue
		}
		for _, item := range h.Items {
			rec := bufferRecordFromItem(item)
			next := mirror.Pointer(item.Ptr("next_buffer"))
			if err := d.mirror.Open(rec, next); err != nil {
				d.log.Warn().Err(err).Str("pointer", string(rec.Pointer)).Msg("buffer open dropped")
			}
		}
	}
}

func (d *Dispatcher) bufferEvent(msg wire.Message) {
	for _, obj := range msg.Objects {
		h := obj.Hdata()
		if h == nil || h.PathTail() != "buffer" {
			continue
		}
		for _, item := range h.Items {
			ptr := mirror.Pointer(item.PathHead())
			var err error
			switch {
			case msg.ID == "_buffer_moved":
				err = d.mirror.Move(ptr, item.Int("number"), mirror.Pointer(item.Ptr("next_buffer")))
			case msg.ID == "_buffer_merged":
				err = d.mirror.Merge(ptr, item.Int("number"), mirror.Pointer(item.Ptr("next_buffer")))
			case msg.ID == "_buffer_unmerged":
				err = d.mirror.Unmerge(ptr, item.Int("number"), mirror.Pointer(item.Ptr("next_buffer")))
			case msg.ID == "_buffer_closing":
				err = d.mirror.Close(ptr)
			case msg.ID == "_buffer_renamed":
				err = d.mirror.Rename(ptr, item.Str("full_name"), item.Str("short_name"))
			case msg.ID == "_buffer_title_changed":
				err = d.mirror.SetTitle(ptr, item.Str("title"))
			case msg.ID == "_buffer_cleared":
				err = d.mirror.ClearLines(ptr)
			case msg.ID == "_buffer_type_changed":
				err = d.mirror.SetType(ptr, item.Int("type"))
			case strings.HasPrefix(msg.ID, "_buffer_localvar_"):
				err = d.mirror.SetLocalVariables(ptr, item.StrMap("local_variables"))
			default:
				d.log.Debug().Str("kind", msg.ID).Msg("unrecognized buffer event, ignored")
				continue
			}
			if err != nil {
				d.dropEvent(ptr, msg.ID)
			}
		}
	}
}

// metricKind clamps a message kind to the fixed routing vocabulary so
// wire-supplied ids cannot grow the dispatch counter's label space.
func metricKind(id string) string {
	switch id {
	case "listbuffers", "listlines", "nicklist", "hotlist", "id",
		"_nicklist", "_nicklist_diff", "_pong", "_upgrade", "_upgrade_ended",
		"_buffer_line_added", "_buffer_opened", "_buffer_moved",
		"_buffer_merged", "_buffer_unmerged", "_buffer_closing",
		"_buffer_renamed", "_buffer_title_changed", "_buffer_cleared",
		"_buffer_type_changed":
		return id
	}
	if strings.HasPrefix(id, "_buffer_localvar_") {
		return "_buffer_localvar"
	}
	return "other"
}

// hotlist reconciles unread counts from a snapshot; it is the single
// source of truth and runs over every open buffer.
func (d *Dispatcher) hotlist(msg wire.Message) {
	entries := make([]mirror.HotlistEntry, 0, 8)
	for _, obj := range msg.Objects {
		h := obj.Hdata()
		if h == nil || h.PathTail() != "hotlist" {
			continue
		}
		for _, item := range h.Items {
			entries = append(entries, mirror.HotlistEntry{
				Buffer: mirror.Pointer(item.Ptr("buffer")),
				Count:  hotCount(item),
			})
		}
	}
	d.mirror.ApplyHotlist(entries)
}

func (d *Dispatcher) serverInfo(msg wire.Message) {
	for _, obj := range msg.Objects {
		info, ok := obj.Info()
		if !ok || info.Name != "version" {
			continue
		}
		v := parseVersion(info.Value)
		d.control.SetServerVersion(v)
		d.log.Info().Str("version", info.Value).Msg("server identified")
	}
}

func (d *Dispatcher) dropEvent(ptr mirror.Pointer, what string) {
	observability.CountDroppedEvent()
	d.log.Debug().Str("pointer", string(ptr)).Str("event", what).Msg("event for unknown buffer, dropped")
}

func bufferRecordFromItem(item wire.HdataItem) mirror.BufferRecord {
	return mirror.BufferRecord{
		Pointer:        mirror.Pointer(item.PathHead()),
		Number:         item.Int("number"),
		FullName:       item.Str("full_name"),
		ShortName:      item.Str("short_name"),
		Type:           item.Int("type"),
		Title:          item.Str("title"),
		LocalVariables: item.StrMap("local_variables"),
		Notify:         item.Int("notify"),
		Hidden:         item.Int("hidden") != 0,
	}
}

// groupNicklistItems splits an hdata's nicklist rows by owning buffer,
// keeping row order within each buffer.
func groupNicklistItems(h *wire.Hdata, diff bool) map[mirror.Pointer][]mirror.NicklistItem {
	out := make(map[mirror.Pointer][]mirror.NicklistItem)
	for _, item := range h.Items {
		ptr := mirror.Pointer(item.PathHead())
		ni := mirror.NicklistItem{
			IsGroup: item.Char("group") != 0,
			Prefix:  item.Str("prefix"),
			Name:    item.Str("name"),
			Visible: item.Char("visible") != 0,
		}
		if diff {
			ni.Diff = item.Char("_diff")
		}
		out[ptr] = append(out[ptr], ni)
	}
	return out
}

// hotCount reads a hotlist entry's count, which newer servers report as
// an array of per-priority counts and older ones as a single integer.
func hotCount(item wire.HdataItem) int {
	if raw, ok := item.Values["count"].([]any); ok {
		total := 0
		for _, v := range raw {
			if n, ok := v.(int32); ok {
				total += int(n)
			}
		}
		return total
	}
	if n := item.Int("count"); n > 0 {
		return n
	}
	return 1
}

// parseVersion reads a dotted version string leniently: "1.6" parses
// whole, "4.0.2" parses as 4.0.
func parseVersion(s string) float64 {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	parts := strings.SplitN(s, ".", 3)
	if len(parts) >= 2 {
		if v, err := strconv.ParseFloat(parts[0]+"."+parts[1], 64); err == nil {
			return v
		}
	}
	if v, err := strconv.ParseFloat(parts[0], 64); err == nil {
		return v
	}
	return 0
}
