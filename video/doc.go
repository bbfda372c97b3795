// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package video provides the frame buffers that flow through xstage
// pipelines.
//
// An Info describes a frame layout (format, dimensions, per-plane strides
// and offsets). A Buffer is a reference counted block of memory laid out by
// an Info. A Pool is a fixed-capacity Allocator: it reserves a set of
// buffers once and recycles each buffer when its last reference is
// released.
//
// Acquire never blocks. An exhausted pool reports ErrPoolExhausted so that
// callers can decide whether to drop the frame or wait with AcquireWait.
package video
