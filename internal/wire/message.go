package wire

import (
	"strings"
	"time"
)

// Object type tags as they appear on the wire.
const (
	TypeChar      = "chr"
	TypeInt       = "int"
	TypeLong      = "lon"
	TypeString    = "str"
	TypeBuffer    = "buf"
	TypePointer   = "ptr"
	TypeTime      = "tim"
	TypeHashtable = "htb"
	TypeHdata     = "hda"
	TypeInfo      = "inf"
	TypeInfolist  = "inl"
	TypeArray     = "arr"
)

// Message is one decoded relay message: an id tag (the routing kind,
// e.g. "listbuffers" or "_buffer_opened") and a sequence of typed
// objects.
type Message struct {
	ID      string
	Objects []Object
}

// Object is one typed value of a message.
type Object struct {
	Type  string
	Value any
}

// Hdata returns the object's value as an *Hdata, or nil when the
// object is of another type.
func (o Object) Hdata() *Hdata {
	h, _ := o.Value.(*Hdata)
	return h
}

// Info returns the object's value as an Info pair.
func (o Object) Info() (Info, bool) {
	i, ok := o.Value.(Info)
	return i, ok
}

// Info is a single name/value informational pair.
type Info struct {
	Name  string
	Value string
}

// Infolist is a named list of variable maps.
type Infolist struct {
	Name  string
	Items []map[string]any
}

// Hdata is a decoded hdata object: a path spec, ordered keys, and a
// list of items. Each item carries the pointer path that locates it
// plus one value per key.
type Hdata struct {
	HPath string
	Keys  []string
	Items []HdataItem
}

// PathTail returns the last element of the h-path, which names the kind
// of object the items describe (e.g. "buffer", "line_data").
func (h *Hdata) PathTail() string {
	if h == nil || h.HPath == "" {
		return ""
	}
	parts := strings.Split(h.HPath, "/")
	return parts[len(parts)-1]
}

// HdataItem is one row of an hdata.
type HdataItem struct {
	Path   []string
	Values map[string]any
}

// PathHead returns the first pointer of the item's path, the root
// object the item belongs to.
func (it HdataItem) PathHead() string {
	if len(it.Path) == 0 {
		return ""
	}
	return it.Path[0]
}

// Str returns a string value for the key; nil strings decode as "".
func (it HdataItem) Str(key string) string {
	switch v := it.Values[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return ""
}

// Int returns an integer value for the key, accepting the relay's int,
// long and char encodings.
func (it HdataItem) Int(key string) int {
	switch v := it.Values[key].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case byte:
		return int(v)
	}
	return 0
}

// Char returns a char value for the key.
func (it HdataItem) Char(key string) byte {
	if v, ok := it.Values[key].(byte); ok {
		return v
	}
	return 0
}

// Ptr returns a pointer value for the key.
func (it HdataItem) Ptr(key string) string {
	if v, ok := it.Values[key].(string); ok {
		return v
	}
	return ""
}

// Time returns a time value for the key.
func (it HdataItem) Time(key string) time.Time {
	if v, ok := it.Values[key].(time.Time); ok {
		return v
	}
	return time.Time{}
}

// StrMap returns a hashtable value for the key with both sides coerced
// to strings; non-string pairs are dropped.
func (it HdataItem) StrMap(key string) map[string]string {
	raw, ok := it.Values[key].(map[any]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		ks, kok := k.(string)
		vs, vok := v.(string)
		if kok && vok {
			out[ks] = vs
		}
	}
	return out
}

// StrArray returns an array value for the key as strings; nil and
// non-string members are dropped.
func (it HdataItem) StrArray(key string) []string {
	raw, ok := it.Values[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
