// Copyright 2026 The kestrel Authors
// SPDX-License-Identifier: BSD-3-Clause

package hal

import (
	"encoding/binary"
	"math"
)

// streamAlignment is the alignment applied before any raw data blob in a
// command stream (locked buffer contents, aligned arrays). The reader must
// perform the identical rounding before reading; there is no stream marker
// indicating alignment occurred.
const streamAlignment = 16

// CommandStream is a growable byte buffer with independent, alignment-aware
// read and write cursors. It is specialized for the pattern of writing
// opcode-coded command data in one context and replaying it in a VM-style
// switch loop in another.
//
// The encoding is positional and untyped: every fixed-layout write must be
// paired with an identical-shape read. All multi-byte values are
// little-endian.
type CommandStream struct {
	buf  []byte
	read int
}

// Reset clears the stream for reuse without deallocating memory.
func (s *CommandStream) Reset() {
	s.buf = s.buf[:0]
	s.read = 0
}

// IsEmpty returns true if the stream contains no data.
func (s *CommandStream) IsEmpty() bool { return len(s.buf) == 0 }

// Len returns the number of bytes written.
func (s *CommandStream) Len() int { return len(s.buf) }

// ReadOffset returns the current read cursor.
func (s *CommandStream) ReadOffset() int { return s.read }

// SeekRead positions the read cursor. Offsets past the written length are
// clamped.
func (s *CommandStream) SeekRead(off int) {
	if off > len(s.buf) {
		off = len(s.buf)
	}
	s.read = off
}

// HasUnread returns true if the read cursor has not consumed all data.
func (s *CommandStream) HasUnread() bool { return s.read < len(s.buf) }

// AlignWrite pads the write cursor up to the stream alignment with zero
// bytes. Call before appending any raw data blob.
func (s *CommandStream) AlignWrite() {
	aligned := alignUp(len(s.buf), streamAlignment)
	for len(s.buf) < aligned {
		s.buf = append(s.buf, 0)
	}
}

// AlignRead advances the read cursor to the stream alignment. Must mirror
// exactly an AlignWrite performed during encoding.
func (s *CommandStream) AlignRead() {
	s.SeekRead(alignUp(s.read, streamAlignment))
}

func alignUp(v, alignment int) int {
	return (v + alignment - 1) &^ (alignment - 1)
}

// WriteBool appends a bool as a single byte.
func (s *CommandStream) WriteBool(b bool) {
	if b {
		s.buf = append(s.buf, 1)
	} else {
		s.buf = append(s.buf, 0)
	}
}

// WriteUint8 appends a single byte.
func (s *CommandStream) WriteUint8(v uint8) {
	s.buf = append(s.buf, v)
}

// WriteUint32 appends a little-endian uint32.
func (s *CommandStream) WriteUint32(v uint32) {
	s.buf = binary.LittleEndian.AppendUint32(s.buf, v)
}

// WriteInt32 appends a little-endian int32.
func (s *CommandStream) WriteInt32(v int32) {
	s.WriteUint32(uint32(v))
}

// WriteUint64 appends a little-endian uint64.
func (s *CommandStream) WriteUint64(v uint64) {
	s.buf = binary.LittleEndian.AppendUint64(s.buf, v)
}

// WriteFloat32 appends a float32 as its IEEE 754 bits.
func (s *CommandStream) WriteFloat32(v float32) {
	s.WriteUint32(math.Float32bits(v))
}

// WriteBytes appends raw bytes with no length prefix. The caller is
// responsible for alignment and for reading back the same count.
func (s *CommandStream) WriteBytes(p []byte) {
	s.buf = append(s.buf, p...)
}

// WriteString appends a uint32 length prefix followed by the string bytes.
func (s *CommandStream) WriteString(v string) {
	s.WriteUint32(uint32(len(v)))
	s.buf = append(s.buf, v...)
}

// Reserve appends n zero bytes and returns the reserved region as a slice
// into the stream's backing buffer. The slice is only valid until the next
// write to the stream reallocates the buffer; callers must fully populate
// it before recording further commands.
func (s *CommandStream) Reserve(n int) []byte {
	off := len(s.buf)
	for cap(s.buf) < off+n {
		s.buf = append(s.buf[:cap(s.buf)], 0)
	}
	s.buf = s.buf[:off+n]
	region := s.buf[off : off+n]
	clear(region)
	return region
}

// ReadBool reads a bool written with WriteBool.
func (s *CommandStream) ReadBool() (bool, bool) {
	v, ok := s.ReadUint8()
	return v != 0, ok
}

// ReadUint8 reads a single byte.
func (s *CommandStream) ReadUint8() (uint8, bool) {
	if s.read+1 > len(s.buf) {
		return 0, false
	}
	v := s.buf[s.read]
	s.read++
	return v, true
}

// ReadUint32 reads a little-endian uint32.
func (s *CommandStream) ReadUint32() (uint32, bool) {
	if s.read+4 > len(s.buf) {
		return 0, false
	}
	v := binary.LittleEndian.Uint32(s.buf[s.read:])
	s.read += 4
	return v, true
}

// ReadInt32 reads a little-endian int32.
func (s *CommandStream) ReadInt32() (int32, bool) {
	v, ok := s.ReadUint32()
	return int32(v), ok
}

// ReadUint64 reads a little-endian uint64.
func (s *CommandStream) ReadUint64() (uint64, bool) {
	if s.read+8 > len(s.buf) {
		return 0, false
	}
	v := binary.LittleEndian.Uint64(s.buf[s.read:])
	s.read += 8
	return v, true
}

// ReadFloat32 reads a float32 written with WriteFloat32.
func (s *CommandStream) ReadFloat32() (float32, bool) {
	v, ok := s.ReadUint32()
	return math.Float32frombits(v), ok
}

// ReadBytes reads n raw bytes, returning a subslice of the backing buffer.
// The slice is valid until the stream is reset or written to.
func (s *CommandStream) ReadBytes(n int) ([]byte, bool) {
	if n < 0 || s.read+n > len(s.buf) {
		return nil, false
	}
	p := s.buf[s.read : s.read+n]
	s.read += n
	return p, true
}

// ReadString reads a string written with WriteString.
func (s *CommandStream) ReadString() (string, bool) {
	n, ok := s.ReadUint32()
	if !ok {
		return "", false
	}
	p, ok := s.ReadBytes(int(n))
	if !ok {
		return "", false
	}
	return string(p), true
}
