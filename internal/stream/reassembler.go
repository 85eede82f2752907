// Package stream turns a TCP byte stream into a sequence of complete
// GB/T 43229-2023 frames, tolerant of fragmentation, concatenation, and
// inter-frame noise.
package stream

import (
	"bytes"

	"github.com/acocosum/traffic-protocol/internal/wire"
)

// MinCapacity is the smallest receive-buffer capacity a Reassembler will
// actually use, large enough to hold two maximum-size unescaped frames.
const MinCapacity = 4096

// Frame is one extraction result: either a successfully decoded table or
// a decode error, paired with the raw bytes that produced it (useful for
// hex-dump logging on CRC failures).
type Frame struct {
	Table wire.DataTable
	Raw   []byte
	Err   error
}

// Reassembler is the per-connection buffered extractor. It is not safe
// for concurrent use — each connection's goroutine owns one exclusively.
type Reassembler struct {
	buf []byte
	cap int
}

// New creates a Reassembler with the given capacity, raised to MinCapacity
// if smaller.
func New(capacity int) *Reassembler {
	if capacity < MinCapacity {
		capacity = MinCapacity
	}
	return &Reassembler{buf: make([]byte, 0, capacity), cap: capacity}
}

// Feed appends b to the internal buffer and extracts every complete frame
// it can find, invoking yield for each one in arrival order. yield is
// called synchronously; Feed returns once the buffer holds no further
// complete frame.
func (r *Reassembler) Feed(b []byte, yield func(Frame)) {
	if len(r.buf)+len(b) > r.cap {
		// Oversize: the in-progress frame (if any) cannot be completed
		// within budget. Drop everything and resynchronize on new data.
		// This bounds memory, not correctness: a later valid frame
		// decodes normally once the noise passes.
		r.buf = r.buf[:0]
		if len(b) > r.cap {
			b = b[len(b)-r.cap:]
		}
	}
	r.buf = append(r.buf, b...)

	for {
		start := bytes.IndexByte(r.buf, wire.FrameDelimiter)
		if start < 0 {
			// Pure noise: no delimiter anywhere in the buffer.
			r.buf = r.buf[:0]
			return
		}
		end := -1
		if start+1 < len(r.buf) {
			if rel := bytes.IndexByte(r.buf[start+1:], wire.FrameDelimiter); rel >= 0 {
				end = start + 1 + rel
			}
		}
		if end < 0 {
			// Incomplete: compact so the partial frame starts at offset 0
			// and wait for more data.
			r.buf = append(r.buf[:0], r.buf[start:]...)
			return
		}

		candidate := r.buf[start : end+1]
		table, err := wire.Decode(candidate)
		raw := append([]byte(nil), candidate...) // owned copy, candidate aliases r.buf
		r.buf = append(r.buf[:0], r.buf[end+1:]...)

		yield(Frame{Table: table, Raw: raw, Err: err})
	}
}

// Reset discards any buffered, possibly partial, frame data.
func (r *Reassembler) Reset() {
	r.buf = r.buf[:0]
}

// Len reports how many unconsumed bytes are currently buffered.
func (r *Reassembler) Len() int {
	return len(r.buf)
}
