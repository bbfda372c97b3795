package xstage

import "github.com/gogpu/xstage/video"

// Handler is implemented by concrete stages. The Stage calls its methods
// from the producer goroutine, in lifecycle order.
type Handler interface {
	// ConfigureResource prepares stage resources. It runs on the first
	// Process call of an epoch with that call's Params, so formats and sizes
	// can be inferred from the first real frame (typically by calling
	// Stage.SetOutputInfo). A failure leaves the stage unconfigured and the
	// next Process call tries again.
	ConfigureResource(p *Params) error

	// CreateAllocator returns the stage's private output allocator. It is
	// only called when self-allocation is enabled. Returning nil fails
	// configuration.
	CreateAllocator() video.Allocator

	// StartWork transforms p.In() into p.Out(). It returns the final status
	// of synchronous work, or ErrPending after arranging for done to be
	// called exactly once with the final status, from any goroutine.
	StartWork(p *Params, done Done) error
}

// Done reports the final status of work that StartWork left pending.
// Only the first call counts.
type Done func(err error)

// RestConfigurer is implemented by handlers that need a configuration step
// after the private allocator has been reserved.
type RestConfigurer interface {
	ConfigureRest() error
}

// Drainer is implemented by handlers holding look-ahead state across
// invocations. Drain must complete every invocation it still holds by
// calling its Done before returning. Stage.Finish calls it.
type Drainer interface {
	Drain() error
}

// Releaser is implemented by handlers with teardown of their own.
// Stage.Terminate calls it once.
type Releaser interface {
	ReleaseResources()
}

// PoolAllocator can be embedded by handlers whose private allocator is a
// plain video.Pool.
type PoolAllocator struct{}

// CreateAllocator returns a new unreserved video.Pool.
func (PoolAllocator) CreateAllocator() video.Allocator {
	return video.NewPool()
}
