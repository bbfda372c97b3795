package xstage

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/xstage/video"
)

// DefaultBufferCapacity is the private allocator capacity used when none
// is given.
const DefaultBufferCapacity = 4

// Stage is one processing unit of a pipeline. It owns the lifecycle state,
// the output format descriptor, an optional private allocator and the
// completion callback, and delegates the transformation itself to a
// Handler.
//
// A Stage is driven by a single producer goroutine. Completions of
// asynchronous work may arrive from any goroutine. A Stage must not be
// copied after first use.
//
// Concrete stages usually embed *Stage and pass themselves as the Handler:
//
//	type Invert struct {
//	    *xstage.Stage
//	    xstage.PoolAllocator
//	}
//
//	func NewInvert() *Invert {
//	    v := &Invert{}
//	    v.Stage = xstage.New("invert", v, xstage.WithAllocator(4))
//	    return v
//	}
type Stage struct {
	name    string
	handler Handler

	mu           sync.Mutex
	idle         *sync.Cond // signaled when pending drops to zero
	state        State
	outInfo      video.Info
	selfAllocate bool
	capacity     int
	allocator    video.Allocator
	callback     Callback
	maxAttempts  int
	failures     int
	lastErr      error
	pending      int
}

// New creates an unconfigured Stage named name that delegates to h.
// It panics if h is nil.
func New(name string, h Handler, opts ...Option) *Stage {
	if h == nil {
		panic("xstage: New with nil handler")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.name != "" {
		name = o.name
	}
	s := &Stage{
		name:         name,
		handler:      h,
		outInfo:      o.outInfo,
		selfAllocate: o.selfAllocate,
		capacity:     o.capacity,
		callback:     o.callback,
		maxAttempts:  o.configureAttempts,
	}
	s.idle = sync.NewCond(&s.mu)
	return s
}

// Name returns the stage name.
func (s *Stage) Name() string {
	return s.name
}

// State returns the current lifecycle state.
func (s *Stage) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetOutputInfo sets the output format descriptor used to size the private
// allocator. It may be called from ConfigureResource. Once the stage is
// configured the new value is recorded but the built allocator keeps the
// layout it was reserved with.
func (s *Stage) SetOutputInfo(info video.Info) error {
	if err := info.Validate(); err != nil {
		return fmt.Errorf("stage %q: output info: %w: %w", s.name, ErrInvalidParam, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outInfo = info
	return nil
}

// OutputInfo returns the output format descriptor.
func (s *Stage) OutputInfo() video.Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outInfo
}

// EnableAllocator turns self-allocation on or off. A capacity <= 0 selects
// DefaultBufferCapacity. The setting is read when the stage configures, so
// calling it on a configured stage only affects whether Process acquires
// from the allocator already built.
func (s *Stage) EnableAllocator(enable bool, capacity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selfAllocate = enable
	s.capacity = normalizeCapacity(capacity)
}

// Allocator returns the private allocator of the current epoch, or nil.
func (s *Stage) Allocator() video.Allocator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allocator
}

// SetCallback registers cb, replacing any earlier callback. A nil cb
// removes it. Invocations already running keep the callback they started
// with.
func (s *Stage) SetCallback(cb Callback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = cb
}

// Callback returns the registered callback, or nil.
func (s *Stage) Callback() Callback {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callback
}

// Pending returns the number of invocations whose work has started but not
// completed.
func (s *Stage) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Process runs one invocation. It configures the stage on first use,
// acquires an output buffer from the private allocator when self-allocation
// is enabled and p has none, and hands p to the Handler.
//
// With synchronous set, Process returns only after the work has completed
// and its status is the final status of the invocation. Otherwise
// asynchronous work may still be running when Process returns nil, and
// the final status reaches the callback later. Work that completed before
// StartWork returned makes Process return its status.
//
// When a callback is registered it is called exactly once per Process
// call with the final status, whether the invocation failed early,
// completed synchronously or completed asynchronously.
func (s *Stage) Process(p *Params, synchronous bool) error {
	cb := s.Callback()
	queued, err := s.process(p, synchronous, cb)
	if queued {
		return err
	}
	if cb != nil {
		cb.OnComplete(s, p, err)
	}
	return err
}

// process returns the final status, or queued = true when the status is
// delivered by the Done of asynchronous work. A queued result carries the
// status when that Done already ran.
func (s *Stage) process(p *Params, synchronous bool, cb Callback) (queued bool, err error) {
	if s.State() == Terminated {
		return false, fmt.Errorf("stage %q: process after terminate: %w", s.name, ErrInvalidState)
	}
	if p == nil || p.In() == nil {
		return false, fmt.Errorf("stage %q: %w: params without input buffer", s.name, ErrInvalidParam)
	}
	if err := s.configure(p); err != nil {
		return false, err
	}
	if err := s.allocate(p); err != nil {
		return false, err
	}
	return s.start(p, synchronous, cb)
}

// configure runs the Unconfigured to Configured transition. Handler
// methods are called without s.mu held so they may call SetOutputInfo
// and EnableAllocator.
func (s *Stage) configure(p *Params) error {
	s.mu.Lock()
	switch {
	case s.state == Configured:
		s.mu.Unlock()
		return nil
	case s.state == Terminated:
		s.mu.Unlock()
		return fmt.Errorf("stage %q: configure after terminate: %w", s.name, ErrInvalidState)
	case s.maxAttempts > 0 && s.failures >= s.maxAttempts:
		err := fmt.Errorf("stage %q: gave up after %d attempts: %w: %w",
			s.name, s.failures, ErrConfigFailed, s.lastErr)
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	if err := s.handler.ConfigureResource(p); err != nil {
		return s.configFailed("configure resource", err)
	}

	s.mu.Lock()
	selfAllocate, capacity, info := s.selfAllocate, s.capacity, s.outInfo
	s.mu.Unlock()

	var alloc video.Allocator
	if selfAllocate {
		alloc = s.handler.CreateAllocator()
		if alloc == nil {
			return s.configFailed("create allocator", errors.New("no allocator"))
		}
		if err := alloc.Reserve(info, capacity); err != nil {
			alloc.Close()
			return s.configFailed("reserve buffers", err)
		}
		Logger().Debug("xstage: reserved output buffers",
			"stage", s.name, "info", info.String(), "count", capacity)
	}
	if err := s.installAllocator(alloc); err != nil {
		return err
	}

	if rc, ok := s.handler.(RestConfigurer); ok {
		if err := rc.ConfigureRest(); err != nil {
			s.mu.Lock()
			if s.allocator == alloc {
				s.allocator = nil
			}
			s.mu.Unlock()
			if alloc != nil {
				alloc.Close()
			}
			return s.configFailed("configure rest", err)
		}
	}

	s.mu.Lock()
	if s.state == Terminated {
		s.mu.Unlock()
		return fmt.Errorf("stage %q: terminated while configuring: %w", s.name, ErrInvalidState)
	}
	s.state = Configured
	s.failures = 0
	s.lastErr = nil
	s.mu.Unlock()

	Logger().Debug("xstage: stage configured", "stage", s.name, "self_allocate", selfAllocate)
	return nil
}

func (s *Stage) installAllocator(alloc video.Allocator) error {
	s.mu.Lock()
	if s.state == Terminated {
		s.mu.Unlock()
		if alloc != nil {
			alloc.Close()
		}
		return fmt.Errorf("stage %q: terminated while configuring: %w", s.name, ErrInvalidState)
	}
	old := s.allocator
	s.allocator = alloc
	s.mu.Unlock()
	if old != nil && old != alloc {
		old.Close()
	}
	return nil
}

func (s *Stage) configFailed(step string, cause error) error {
	s.mu.Lock()
	s.failures++
	s.lastErr = cause
	attempts := s.failures
	s.mu.Unlock()

	Logger().Debug("xstage: configuration failed",
		"stage", s.name, "step", step, "attempt", attempts, "err", cause)
	return fmt.Errorf("stage %q: %s: %w: %w", s.name, step, ErrConfigFailed, cause)
}

// allocate fills p's output from the private allocator when needed.
func (s *Stage) allocate(p *Params) error {
	if p.Out() != nil {
		return nil
	}
	s.mu.Lock()
	selfAllocate, alloc := s.selfAllocate, s.allocator
	s.mu.Unlock()
	if !selfAllocate || alloc == nil {
		return nil
	}

	buf, err := alloc.Acquire()
	if err != nil {
		if errors.Is(err, video.ErrPoolClosed) {
			return fmt.Errorf("stage %q: acquire output: %w: %w", s.name, ErrInvalidState, err)
		}
		return fmt.Errorf("stage %q: acquire output: %w: %w", s.name, ErrResourceExhausted, err)
	}
	p.adoptOut(buf)
	return nil
}

// start hands p to the Handler and arranges exactly one final status.
func (s *Stage) start(p *Params, synchronous bool, cb Callback) (bool, error) {
	p.sync = synchronous

	var (
		completed atomic.Bool
		status    atomic.Pointer[error]
		result    chan error
	)
	if synchronous {
		result = make(chan error, 1)
	}

	// Counted before StartWork so that an immediate Done never sees a
	// zero counter.
	s.addPending()

	done := func(err error) {
		if !completed.CompareAndSwap(false, true) {
			Logger().Warn("xstage: duplicate completion ignored", "stage", s.name, "err", err)
			return
		}
		if errors.Is(err, ErrPending) {
			err = fmt.Errorf("stage %q: completion reported pending: %w", s.name, ErrInvalidState)
		}
		if synchronous {
			result <- err
			return
		}
		status.Store(&err)
		if cb != nil {
			cb.OnComplete(s, p, err)
		}
		s.donePending()
	}

	err := s.handler.StartWork(p, done)
	if !errors.Is(err, ErrPending) {
		if completed.CompareAndSwap(false, true) {
			s.donePending()
			return false, err
		}
		// Done already ran; its status wins.
		Logger().Warn("xstage: work returned a status after completing", "stage", s.name, "err", err)
		if !synchronous {
			return true, knownStatus(&status)
		}
	} else if !synchronous {
		return true, knownStatus(&status)
	}

	err = <-result
	s.donePending()
	return false, err
}

// knownStatus returns the status asynchronous work already completed
// with, or nil while it is still running.
func knownStatus(status *atomic.Pointer[error]) error {
	if err := status.Load(); err != nil {
		return *err
	}
	return nil
}

func (s *Stage) addPending() {
	s.mu.Lock()
	s.pending++
	s.mu.Unlock()
}

func (s *Stage) donePending() {
	s.mu.Lock()
	s.pending--
	if s.pending == 0 {
		s.idle.Broadcast()
	}
	s.mu.Unlock()
}

// Finish drains the stage: handlers holding look-ahead state flush it,
// then Finish waits until every started invocation has completed and its
// callback has returned. Finish is idempotent and always returns nil;
// problems are logged.
func (s *Stage) Finish() error {
	if d, ok := s.handler.(Drainer); ok && s.State() == Configured {
		s.safely("drain", d.Drain)
	}

	s.mu.Lock()
	for s.pending > 0 {
		s.idle.Wait()
	}
	s.mu.Unlock()
	return nil
}

// Terminate tears the stage down and releases the private allocator.
// Terminate is idempotent and always returns nil. Work still running is
// not waited for; call Finish first to drain it.
func (s *Stage) Terminate() error {
	s.mu.Lock()
	if s.state == Terminated {
		s.mu.Unlock()
		return nil
	}
	s.state = Terminated
	alloc := s.allocator
	s.allocator = nil
	pending := s.pending
	s.mu.Unlock()

	if pending > 0 {
		Logger().Warn("xstage: terminating with work in flight", "stage", s.name, "pending", pending)
	}
	if r, ok := s.handler.(Releaser); ok {
		s.safely("release", func() error { r.ReleaseResources(); return nil })
	}
	if alloc != nil {
		alloc.Close()
	}
	Logger().Info("xstage: stage terminated", "stage", s.name)
	return nil
}

// safely runs a teardown step, logging its error or panic.
func (s *Stage) safely(step string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			Logger().Warn("xstage: teardown step panicked", "stage", s.name, "step", step, "panic", r)
		}
	}()
	if err := fn(); err != nil {
		Logger().Warn("xstage: teardown step failed", "stage", s.name, "step", step, "err", err)
	}
}

// Execute processes in synchronously and returns the output buffer with a
// reference owned by the caller. The registered callback, if any, still
// fires.
func (s *Stage) Execute(in *video.Buffer) (*video.Buffer, error) {
	p := NewParams(in, nil)
	defer p.Release()
	if err := s.Process(p, true); err != nil {
		return nil, err
	}
	out := p.Out()
	if out == nil {
		return nil, fmt.Errorf("stage %q: %w: no output buffer", s.name, ErrInvalidState)
	}
	return out.Retain(), nil
}

// FreeBuffer acquires a buffer from the private allocator outside of
// Process, for stages that need scratch or extra output buffers. The
// caller owns the returned reference.
func (s *Stage) FreeBuffer() (*video.Buffer, error) {
	alloc := s.Allocator()
	if alloc == nil {
		return nil, fmt.Errorf("stage %q: %w: no private allocator", s.name, ErrInvalidState)
	}
	buf, err := alloc.Acquire()
	if err != nil {
		return nil, fmt.Errorf("stage %q: free buffer: %w: %w", s.name, ErrResourceExhausted, err)
	}
	return buf, nil
}

// String implements fmt.Stringer.
func (s *Stage) String() string {
	return fmt.Sprintf("%s (%v)", s.name, s.State())
}
