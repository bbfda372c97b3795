package xstage

import "errors"

// Status errors reported by Process and delivered to callbacks. Match them
// with errors.Is; the concrete error usually wraps one of these together
// with the cause.
var (
	// ErrInvalidParam reports a nil or malformed Params or argument.
	ErrInvalidParam = errors.New("xstage: invalid parameter")

	// ErrResourceExhausted reports that the stage's allocator had no free
	// output buffer.
	ErrResourceExhausted = errors.New("xstage: resource exhausted")

	// ErrConfigFailed reports that stage-specific setup rejected the input
	// format or context, or that the allocator could not be built.
	ErrConfigFailed = errors.New("xstage: configuration failed")

	// ErrInvalidState reports a call the stage cannot serve in its current
	// state, such as Process after Terminate.
	ErrInvalidState = errors.New("xstage: invalid state")

	// ErrEndOfStream is the benign "no more work" signal. Sources return it
	// so that pipelines and tests can stop cleanly; it is not a failure.
	ErrEndOfStream = errors.New("xstage: end of stream")

	// ErrPending is returned by Handler.StartWork when the work was queued
	// and its final status will be reported through Done. It never reaches
	// callbacks or Process callers.
	ErrPending = errors.New("xstage: work pending")
)

// IsEndOfStream reports whether err is the benign end-of-stream signal.
func IsEndOfStream(err error) bool {
	return errors.Is(err, ErrEndOfStream)
}
