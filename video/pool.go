// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package video

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Pool errors.
var (
	// ErrPoolExhausted is returned by Acquire when every reserved buffer is
	// checked out.
	ErrPoolExhausted = errors.New("video: buffer pool exhausted")

	// ErrPoolClosed is returned after Close.
	ErrPoolClosed = errors.New("video: buffer pool closed")

	// ErrPoolNotReserved is returned by Acquire before Reserve.
	ErrPoolNotReserved = errors.New("video: buffer pool not reserved")

	// ErrPoolReserved is returned by a second Reserve.
	ErrPoolReserved = errors.New("video: buffer pool already reserved")
)

// Allocator supplies and recycles buffers of one fixed layout. Capacity is
// fixed at Reserve. Recycling happens when a buffer's last reference is
// released.
type Allocator interface {
	// Reserve allocates count buffers laid out as info.
	Reserve(info Info, count int) error

	// Acquire returns a free buffer with one reference, or an error wrapping
	// ErrPoolExhausted when none is free. Acquire does not block.
	Acquire() (*Buffer, error)

	// Close drops the free list. Buffers still checked out are discarded
	// when released.
	Close()
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithClear makes Acquire zero buffers before handing them out.
func WithClear() PoolOption {
	return func(p *Pool) {
		p.clear = true
	}
}

// Pool is a fixed-capacity Allocator.
//
// Unlike a sync.Pool the set of buffers is allocated once and never grows,
// which keeps memory bounded and makes exhaustion observable.
//
// Thread safety: All methods are safe for concurrent use.
type Pool struct {
	mu       sync.Mutex
	info     Info
	capacity int
	free     chan *Buffer
	done     chan struct{}
	reserved bool
	closed   bool
	clear    bool
}

// NewPool creates an empty pool. Call Reserve before Acquire.
func NewPool(opts ...PoolOption) *Pool {
	p := &Pool{done: make(chan struct{})}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Reserve allocates count buffers laid out as info.
func (p *Pool) Reserve(info Info, count int) error {
	if count <= 0 {
		return fmt.Errorf("%w: count %d", ErrInvalidInfo, count)
	}
	if err := info.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	if p.reserved {
		return ErrPoolReserved
	}

	p.free = make(chan *Buffer, count)
	for range count {
		p.free <- &Buffer{info: info, data: make([]byte, info.Size), pool: p}
	}
	p.info = info
	p.capacity = count
	p.reserved = true
	return nil
}

// Acquire returns a free buffer without blocking.
func (p *Pool) Acquire() (*Buffer, error) {
	free, err := p.freeList()
	if err != nil {
		return nil, err
	}
	select {
	case b := <-free:
		return p.checkout(b), nil
	default:
		return nil, fmt.Errorf("%w: all %d buffers in use", ErrPoolExhausted, p.capacity)
	}
}

// AcquireWait returns a free buffer, blocking until one is released, the
// pool is closed, or ctx is done.
func (p *Pool) AcquireWait(ctx context.Context) (*Buffer, error) {
	free, err := p.freeList()
	if err != nil {
		return nil, err
	}
	select {
	case b := <-free:
		return p.checkout(b), nil
	case <-p.done:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool) freeList() (chan *Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.closed:
		return nil, ErrPoolClosed
	case !p.reserved:
		return nil, ErrPoolNotReserved
	}
	return p.free, nil
}

func (p *Pool) checkout(b *Buffer) *Buffer {
	if p.clear {
		b.Clear()
	}
	b.refs.Store(1)
	return b
}

// recycle is called by Buffer.Release when the last reference drops.
func (p *Pool) recycle(b *Buffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	// The channel is sized to capacity, so this never blocks.
	p.free <- b
}

// Close drops the free list and wakes AcquireWait callers. Close is
// idempotent.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.done)
	if p.free == nil {
		return
	}
	for {
		select {
		case <-p.free:
		default:
			return
		}
	}
}

// Info returns the reserved layout.
func (p *Pool) Info() Info {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.info
}

// Capacity returns the number of reserved buffers.
func (p *Pool) Capacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capacity
}

// Available returns the number of buffers currently free.
func (p *Pool) Available() int {
	free, err := p.freeList()
	if err != nil {
		return 0
	}
	return len(free)
}

// Ensure Pool implements Allocator.
var _ Allocator = (*Pool)(nil)
