// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package video

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// Common errors for buffer operations.
var (
	// ErrInvalidInfo is returned when a format descriptor is unusable.
	ErrInvalidInfo = errors.New("video: invalid buffer info")

	// ErrInvalidDimensions is returned when width or height is unusable.
	ErrInvalidDimensions = errors.New("video: invalid dimensions")

	// ErrInvalidStride is returned when a plane stride is shorter than a row.
	ErrInvalidStride = errors.New("video: stride too small for width")

	// ErrDataTooSmall is returned when provided data is smaller than required.
	ErrDataTooSmall = errors.New("video: data buffer too small")
)

// Buffer is a reference counted video frame.
//
// A Buffer is shared between its pool and every holder. The creator gets
// the first reference; Retain adds one and Release drops one. When the last
// reference is dropped a pooled buffer goes back to its pool and a
// standalone buffer is left to the garbage collector.
//
// Buffers are always handled by pointer and must not be copied.
//
// Thread safety: reference counting is safe for concurrent use. Pixel data
// access requires external synchronization between writers.
type Buffer struct {
	_    noCopy
	info Info
	data []byte
	refs atomic.Int32
	pool *Pool
}

// NewBuffer allocates a standalone buffer for info with one reference.
func NewBuffer(info Info) (*Buffer, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}
	b := &Buffer{info: info, data: make([]byte, info.Size)}
	b.refs.Store(1)
	return b, nil
}

// FromBytes wraps existing data without copying. The caller must not use
// data afterwards except through the buffer.
func FromBytes(info Info, data []byte) (*Buffer, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}
	if len(data) < info.Size {
		return nil, fmt.Errorf("%w: %d < %d", ErrDataTooSmall, len(data), info.Size)
	}
	b := &Buffer{info: info, data: data[:info.Size]}
	b.refs.Store(1)
	return b, nil
}

// Info returns the buffer layout.
func (b *Buffer) Info() Info {
	return b.info
}

// Data returns all bytes of the buffer, every plane included.
func (b *Buffer) Data() []byte {
	return b.data
}

// Plane returns the bytes of plane i, from its offset to the end of its
// last row. Returns nil for planes the format does not have.
func (b *Buffer) Plane(i int) []byte {
	plane := b.info.Plane(i)
	if plane.Height == 0 {
		return nil
	}
	start := b.info.Offsets[i]
	return b.data[start : start+b.info.Strides[i]*plane.Height]
}

// Row returns the visible bytes of row y in plane i, excluding stride
// padding. Returns nil if out of range.
func (b *Buffer) Row(i, y int) []byte {
	plane := b.info.Plane(i)
	if y < 0 || y >= plane.Height {
		return nil
	}
	start := b.info.Offsets[i] + y*b.info.Strides[i]
	return b.data[start : start+plane.Width*plane.PixelBytes]
}

// Retain adds a reference and returns b for chaining.
func (b *Buffer) Retain() *Buffer {
	if b.refs.Add(1) <= 1 {
		panic("video: Retain on released buffer")
	}
	return b
}

// Release drops a reference. The last release recycles the buffer into
// its pool. Releasing more often than retaining panics.
func (b *Buffer) Release() {
	n := b.refs.Add(-1)
	switch {
	case n > 0:
		return
	case n < 0:
		panic("video: buffer released too many times")
	}
	if b.pool != nil {
		b.pool.recycle(b)
	}
}

// Refs returns the current reference count.
func (b *Buffer) Refs() int {
	return int(b.refs.Load())
}

// Pooled reports whether the buffer belongs to a pool.
func (b *Buffer) Pooled() bool {
	return b.pool != nil
}

// Clone returns a standalone deep copy with one reference.
func (b *Buffer) Clone() *Buffer {
	data := make([]byte, len(b.data))
	copy(data, b.data)
	c := &Buffer{info: b.info, data: data}
	c.refs.Store(1)
	return c
}

// CopyFrom copies the visible rows of every plane from src. Both buffers
// must share format and dimensions; strides may differ.
func (b *Buffer) CopyFrom(src *Buffer) error {
	if src.info.Format != b.info.Format || src.info.Width != b.info.Width || src.info.Height != b.info.Height {
		return fmt.Errorf("%w: copy %v into %v", ErrInvalidInfo, src.info, b.info)
	}
	for p := 0; p < b.info.Format.Planes(); p++ {
		for y := 0; y < b.info.Plane(p).Height; y++ {
			copy(b.Row(p, y), src.Row(p, y))
		}
	}
	return nil
}

// Clear sets every byte to zero.
func (b *Buffer) Clear() {
	clear(b.data)
}

// String implements fmt.Stringer.
func (b *Buffer) String() string {
	return fmt.Sprintf("Buffer(%v, refs=%d)", b.info, b.Refs())
}

// noCopy may be embedded into structs which must not be copied after first
// use. See https://golang.org/issues/8005#issuecomment-190753527.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
