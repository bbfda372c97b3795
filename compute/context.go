// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compute

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// ErrContextClosed is returned by operations on a closed Context.
var ErrContextClosed = errors.New("compute: context closed")

// Context is the compute environment shared by the stages of a process.
//
// A Context is created once at startup and handed to every stage that
// needs it. It owns the command queue that asynchronous stage work is
// submitted to, and optionally borrows a GPU device from the host
// application through a gpucontext.DeviceProvider.
//
// Key principle: the Context RECEIVES the device from the host, it does
// NOT create one. Without a provider the Context runs every program on its
// CPU reference routine.
//
// Thread safety: All methods are safe for concurrent use.
type Context struct {
	provider gpucontext.DeviceProvider
	queue    *Queue
	closed   atomic.Bool

	mu       sync.RWMutex
	programs map[string]*Program
}

// Option configures a Context.
type Option func(*contextOptions)

type contextOptions struct {
	provider gpucontext.DeviceProvider
	workers  int
}

// WithDeviceProvider binds the Context to a host GPU device.
func WithDeviceProvider(p gpucontext.DeviceProvider) Option {
	return func(o *contextOptions) {
		o.provider = p
	}
}

// WithWorkers sets the number of queue workers. The default of one keeps
// completions in submission order.
func WithWorkers(n int) Option {
	return func(o *contextOptions) {
		o.workers = n
	}
}

// NewContext creates a Context and starts its command queue.
func NewContext(opts ...Option) *Context {
	o := contextOptions{workers: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.provider == nil {
		o.provider = NullDevice{}
	}

	c := &Context{
		provider: o.provider,
		queue:    NewQueue(o.workers),
		programs: make(map[string]*Program),
	}
	slogger().Debug("compute: context created", "device", c.HasDevice())
	return c
}

// Queue returns the command queue.
func (c *Context) Queue() *Queue {
	return c.queue
}

// DeviceProvider returns the bound provider; NullDevice when none was given.
func (c *Context) DeviceProvider() gpucontext.DeviceProvider {
	return c.provider
}

// HasDevice reports whether a real GPU device is bound.
func (c *Context) HasDevice() bool {
	return c.provider.Device() != nil
}

// SurfaceFormat returns the host's preferred texture format.
func (c *Context) SurfaceFormat() gputypes.TextureFormat {
	return c.provider.SurfaceFormat()
}

// Submit queues a task on the context's queue.
func (c *Context) Submit(t Task) error {
	if c.closed.Load() {
		return ErrContextClosed
	}
	return c.queue.Submit(t)
}

// poller is implemented by devices that can block until submitted GPU
// work is done.
type poller interface {
	Poll(wait bool)
}

// Wait blocks until all submitted work has completed and, when the bound
// device can be polled, until the device is idle.
func (c *Context) Wait() {
	c.queue.Wait()
	if d, ok := c.provider.Device().(poller); ok {
		d.Poll(true)
	}
}

// AdapterInfo returns the host adapter metadata.
func (c *Context) AdapterInfo() gpucontext.AdapterInfo {
	return c.provider.AdapterInfo()
}

// Program returns the compiled program for wgsl, compiling it on first use.
// Programs are cached by label and source.
func (c *Context) Program(label, wgsl string) (*Program, error) {
	if c.closed.Load() {
		return nil, ErrContextClosed
	}
	key := label + "\x00" + wgsl

	c.mu.RLock()
	p, ok := c.programs[key]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.programs[key]; ok {
		return p, nil
	}
	p, err := Compile(label, wgsl)
	if err != nil {
		return nil, err
	}
	c.programs[key] = p
	return p, nil
}

// Closed reports whether Close has been called.
func (c *Context) Closed() bool {
	return c.closed.Load()
}

// Close drains the queue and drops cached programs. The borrowed device is
// not destroyed; it belongs to the host. Close is idempotent.
func (c *Context) Close() {
	if c.closed.Swap(true) {
		return
	}
	c.queue.Close()
	c.mu.Lock()
	c.programs = make(map[string]*Program)
	c.mu.Unlock()
	slogger().Debug("compute: context closed")
}

// NullDevice is a DeviceProvider with no GPU behind it.
// Used for CPU-only execution.
type NullDevice struct{}

// Device returns nil for the null device.
func (NullDevice) Device() gpucontext.Device { return nil }

// Queue returns nil for the null device.
func (NullDevice) Queue() gpucontext.Queue { return nil }

// Adapter returns nil for the null device.
func (NullDevice) Adapter() gpucontext.Adapter { return nil }

// AdapterInfo reports an unknown adapter for the null device.
func (NullDevice) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Type: gpucontext.AdapterTypeUnknown}
}

// SurfaceFormat returns undefined format for the null device.
func (NullDevice) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

// Ensure NullDevice implements gpucontext.DeviceProvider.
var _ gpucontext.DeviceProvider = NullDevice{}
