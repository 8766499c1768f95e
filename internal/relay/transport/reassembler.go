package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrBadFrameLength = errors.New("transport: bad frame length")

// maxFrameBytes bounds a single frame so a corrupt length prefix cannot
// make the reassembler buffer unbounded input.
const maxFrameBytes = 64 * 1024 * 1024

// reassembler turns an arbitrarily chunked byte stream into complete
// frames. Each frame on the wire is a 4-byte big-endian length (the
// length includes the prefix itself) followed by the payload; the
// returned frames carry the payload only.
type reassembler struct {
	buf []byte
}

// push appends a chunk and returns every frame completed by it, in
// order. Partial input is retained for the next push.
func (r *reassembler) push(chunk []byte) ([][]byte, error) {
	r.buf = append(r.buf, chunk...)
	var frames [][]byte
	for len(r.buf) >= 4 {
		length := int(binary.BigEndian.Uint32(r.buf[:4]))
		if length < 4 || length > maxFrameBytes {
			return frames, fmt.Errorf("%w: %d", ErrBadFrameLength, length)
		}
		if len(r.buf) < length {
			break
		}
		frame := make([]byte, length-4)
		copy(frame, r.buf[4:length])
		r.buf = r.buf[length:]
		frames = append(frames, frame)
	}
	return frames, nil
}

// pending returns the number of buffered bytes awaiting a full frame.
func (r *reassembler) pending() int {
	return len(r.buf)
}
