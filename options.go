package xstage

import "github.com/gogpu/xstage/video"

// Option configures a Stage during creation.
// Use functional options to customize Stage behavior.
//
// Example:
//
//	// Stage with a private pool of 8 output buffers
//	s := xstage.New("blur", h, xstage.WithAllocator(8))
//
//	// Give up after three failed configuration attempts
//	s := xstage.New("kernel", h, xstage.WithConfigureAttempts(3))
type Option func(*stageOptions)

// stageOptions holds optional configuration for Stage creation.
type stageOptions struct {
	name              string
	callback          Callback
	selfAllocate      bool
	capacity          int
	outInfo           video.Info
	configureAttempts int
}

// defaultOptions returns the default stage options.
func defaultOptions() stageOptions {
	return stageOptions{
		capacity:          DefaultBufferCapacity,
		configureAttempts: 0, // retry on every call
	}
}

// WithName overrides the name a constructor gives the stage. Names only
// label logs and errors.
func WithName(name string) Option {
	return func(o *stageOptions) {
		o.name = name
	}
}

// WithCallback registers the completion callback at creation time.
// It is equivalent to calling SetCallback before the first Process.
func WithCallback(cb Callback) Option {
	return func(o *stageOptions) {
		o.callback = cb
	}
}

// WithAllocator enables self-allocation with a private pool of capacity
// output buffers. A capacity <= 0 selects DefaultBufferCapacity.
func WithAllocator(capacity int) Option {
	return func(o *stageOptions) {
		o.selfAllocate = true
		o.capacity = normalizeCapacity(capacity)
	}
}

// WithOutputInfo sets the output format descriptor used to size the
// private allocator. Stages that infer it from the first frame call
// Stage.SetOutputInfo from ConfigureResource instead.
func WithOutputInfo(info video.Info) Option {
	return func(o *stageOptions) {
		o.outInfo = info
	}
}

// WithConfigureAttempts makes configuration failure sticky after n failed
// attempts: later Process calls fail with ErrConfigFailed without running
// ConfigureResource again. n <= 0 retries on every call, which is the
// default.
//
// Example:
//
//	s := xstage.New("kernel", h, xstage.WithConfigureAttempts(3))
func WithConfigureAttempts(n int) Option {
	return func(o *stageOptions) {
		if n < 0 {
			n = 0
		}
		o.configureAttempts = n
	}
}

func normalizeCapacity(capacity int) int {
	if capacity <= 0 {
		return DefaultBufferCapacity
	}
	return capacity
}
