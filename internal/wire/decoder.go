package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zlib"
)

var (
	ErrMalformed              = errors.New("wire: malformed message")
	ErrUnsupportedCompression = errors.New("wire: unsupported compression flag")
	ErrUnknownObjectType      = errors.New("wire: unknown object type")
)

const (
	compressionOff  = 0x00
	compressionZlib = 0x01

	// nilLength marks a nil string/buffer on the wire.
	nilLength = 0xFFFFFFFF
)

// Decode parses one relay message from a frame payload (length prefix
// already stripped by the transport). Any decode failure is reported
// distinctly from a successful-but-empty message; callers treat it as
// fatal to the connection.
func Decode(frame []byte) (Message, error) {
	if len(frame) < 1 {
		return Message{}, fmt.Errorf("%w: empty frame", ErrMalformed)
	}
	body := frame[1:]
	switch frame[0] {
	case compressionOff:
	case compressionZlib:
		zr, err := zlib.NewReader(bytes.NewReader(body))
		if err != nil {
			return Message{}, fmt.Errorf("%w: zlib: %v", ErrMalformed, err)
		}
		defer zr.Close()
		body, err = io.ReadAll(zr)
		if err != nil {
			return Message{}, fmt.Errorf("%w: zlib: %v", ErrMalformed, err)
		}
	default:
		return Message{}, fmt.Errorf("%w: 0x%02x", ErrUnsupportedCompression, frame[0])
	}

	d := &decoder{buf: body}
	id, err := d.readString()
	if err != nil {
		return Message{}, fmt.Errorf("message id: %w", err)
	}
	msg := Message{ID: id}
	for d.remaining() > 0 {
		objType, err := d.readType()
		if err != nil {
			return Message{}, err
		}
		value, err := d.readValue(objType)
		if err != nil {
			return Message{}, fmt.Errorf("object %q: %w", objType, err)
		}
		msg.Objects = append(msg.Objects, Object{Type: objType, Value: value})
	}
	return msg, nil
}

type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) remaining() int {
	return len(d.buf) - d.pos
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || d.remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrMalformed, n, d.remaining())
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) readType() (string, error) {
	b, err := d.take(3)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *decoder) readChar() (byte, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *decoder) readInt() (int32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

// readCount reads an element count for a container object. Every
// element occupies at least one byte, so a count that is negative or
// exceeds the remaining payload cannot be satisfied and is rejected
// before any allocation sized by it.
func (d *decoder) readCount() (int32, error) {
	n, err := d.readInt()
	if err != nil {
		return 0, err
	}
	if n < 0 || int(n) > d.remaining() {
		return 0, fmt.Errorf("%w: count %d with %d bytes left", ErrMalformed, n, d.remaining())
	}
	return n, nil
}

// readLong reads the 1-byte-length ASCII decimal encoding shared by
// long integers and times.
func (d *decoder) readLong() (int64, error) {
	n, err := d.readChar()
	if err != nil {
		return 0, err
	}
	b, err := d.take(int(n))
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: long %q", ErrMalformed, string(b))
	}
	return v, nil
}

// readBuffer reads a length-prefixed byte slice; nil is distinct from
// empty on the wire and decodes to a nil slice.
func (d *decoder) readBuffer() ([]byte, error) {
	b, err := d.take(4)
	if err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(b)
	if length == nilLength {
		return nil, nil
	}
	return d.take(int(length))
}

func (d *decoder) readString() (string, error) {
	b, err := d.readBuffer()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// readPointer reads the 1-byte-length hex pointer encoding. The relay
// sends "0" for a null pointer; both forms normalize to a 0x-prefixed
// string so pointer equality is byte equality.
func (d *decoder) readPointer() (string, error) {
	n, err := d.readChar()
	if err != nil {
		return "", err
	}
	b, err := d.take(int(n))
	if err != nil {
		return "", err
	}
	if len(b) == 1 && b[0] == '0' {
		return "0x0", nil
	}
	return "0x" + string(b), nil
}

func (d *decoder) readTime() (time.Time, error) {
	v, err := d.readLong()
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(v, 0), nil
}

func (d *decoder) readHashtable() (map[any]any, error) {
	keyType, err := d.readType()
	if err != nil {
		return nil, err
	}
	// Keys must decode to comparable values to serve as map keys, so
	// container key types are rejected and buffer keys flatten to
	// strings below.
	switch keyType {
	case TypeChar, TypeInt, TypeLong, TypeString, TypeBuffer, TypePointer, TypeTime:
	default:
		return nil, fmt.Errorf("%w: hashtable key type %q", ErrMalformed, keyType)
	}
	valueType, err := d.readType()
	if err != nil {
		return nil, err
	}
	count, err := d.readCount()
	if err != nil {
		return nil, err
	}
	table := make(map[any]any, count)
	for i := int32(0); i < count; i++ {
		k, err := d.readValue(keyType)
		if err != nil {
			return nil, err
		}
		if b, ok := k.([]byte); ok {
			k = string(b)
		}
		v, err := d.readValue(valueType)
		if err != nil {
			return nil, err
		}
		table[k] = v
	}
	return table, nil
}

func (d *decoder) readHdata() (*Hdata, error) {
	hpath, err := d.readString()
	if err != nil {
		return nil, err
	}
	keysSpec, err := d.readString()
	if err != nil {
		return nil, err
	}
	count, err := d.readCount()
	if err != nil {
		return nil, err
	}

	pathDepth := len(strings.Split(hpath, "/"))
	type keyType struct {
		name string
		typ  string
	}
	var keys []keyType
	if keysSpec != "" {
		for _, spec := range strings.Split(keysSpec, ",") {
			name, typ, ok := strings.Cut(spec, ":")
			if !ok {
				return nil, fmt.Errorf("%w: hdata key spec %q", ErrMalformed, spec)
			}
			keys = append(keys, keyType{name: name, typ: typ})
		}
	}

	h := &Hdata{HPath: hpath}
	for _, k := range keys {
		h.Keys = append(h.Keys, k.name)
	}
	for i := int32(0); i < count; i++ {
		item := HdataItem{Values: make(map[string]any, len(keys))}
		for p := 0; p < pathDepth; p++ {
			ptr, err := d.readPointer()
			if err != nil {
				return nil, err
			}
			item.Path = append(item.Path, ptr)
		}
		for _, k := range keys {
			v, err := d.readValue(k.typ)
			if err != nil {
				return nil, fmt.Errorf("hdata key %q: %w", k.name, err)
			}
			item.Values[k.name] = v
		}
		h.Items = append(h.Items, item)
	}
	return h, nil
}

func (d *decoder) readInfo() (Info, error) {
	name, err := d.readString()
	if err != nil {
		return Info{}, err
	}
	value, err := d.readString()
	if err != nil {
		return Info{}, err
	}
	return Info{Name: name, Value: value}, nil
}

func (d *decoder) readInfolist() (Infolist, error) {
	name, err := d.readString()
	if err != nil {
		return Infolist{}, err
	}
	count, err := d.readCount()
	if err != nil {
		return Infolist{}, err
	}
	list := Infolist{Name: name}
	for i := int32(0); i < count; i++ {
		varCount, err := d.readCount()
		if err != nil {
			return Infolist{}, err
		}
		item := make(map[string]any, varCount)
		for v := int32(0); v < varCount; v++ {
			varName, err := d.readString()
			if err != nil {
				return Infolist{}, err
			}
			varType, err := d.readType()
			if err != nil {
				return Infolist{}, err
			}
			value, err := d.readValue(varType)
			if err != nil {
				return Infolist{}, err
			}
			item[varName] = value
		}
		list.Items = append(list.Items, item)
	}
	return list, nil
}

func (d *decoder) readArray() ([]any, error) {
	elemType, err := d.readType()
	if err != nil {
		return nil, err
	}
	count, err := d.readCount()
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, count)
	for i := int32(0); i < count; i++ {
		v, err := d.readValue(elemType)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (d *decoder) readValue(objType string) (any, error) {
	switch objType {
	case TypeChar:
		return d.readChar()
	case TypeInt:
		return d.readInt()
	case TypeLong:
		return d.readLong()
	case TypeString:
		return d.readString()
	case TypeBuffer:
		return d.readBuffer()
	case TypePointer:
		return d.readPointer()
	case TypeTime:
		return d.readTime()
	case TypeHashtable:
		return d.readHashtable()
	case TypeHdata:
		return d.readHdata()
	case TypeInfo:
		return d.readInfo()
	case TypeInfolist:
		return d.readInfolist()
	case TypeArray:
		return d.readArray()
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownObjectType, objType)
}
