// Package xstage provides the processing-stage framework of a real-time
// video pipeline.
//
// # Overview
//
// Every concrete processing stage (a blur, a GPU kernel, a temporal
// smoother) implements the small Handler interface and is driven through a
// Stage, which gives all stages the same lifecycle, buffer management and
// completion protocol:
//
//   - lazy configuration on the first frame, retried while it fails
//   - an optional private output allocator sized from the output Info
//   - one entry point, Process, for synchronous and asynchronous work
//   - exactly one Callback per Process call with the final status
//   - Finish to drain look-ahead or in-flight work, Terminate to tear down
//
// # Quick Start
//
//	s := stages.NewBlur(2, 2)
//	s.SetCallback(xstage.CallbackFunc(func(s *xstage.Stage, p *xstage.Params, err error) {
//	    defer p.Release()
//	    if err != nil {
//	        log.Print(err)
//	        return
//	    }
//	    consume(p.Out())
//	}))
//
//	p := xstage.NewParams(frame, nil)
//	_ = p.AddMeta(pose.DevicePose{Timestamp: ts})
//	s.Process(p, false)
//	...
//	s.Finish()
//	s.Terminate()
//
// # Buffers
//
// Buffers come from package video. They are reference counted and shared
// between their pool and every Params holding them; a buffer returns to
// its pool when the last holder releases it. A stage with self-allocation
// enabled fills Params.Out from its private pool, whose Acquire never
// blocks: an exhausted pool fails the invocation with ErrResourceExhausted.
//
// # Metadata
//
// Params carries an ordered list of Meta items. FindMeta retrieves the
// first item of a given type or interface, replacing runtime downcasts:
//
//	if dp, ok := xstage.FindMeta[pose.DevicePose](p); ok {
//	    ...
//	}
//
// # Asynchronous work
//
// Handler.StartWork returns ErrPending after queuing work (for example on
// a compute.Queue) and later calls its Done exactly once. In synchronous
// mode Process waits for Done; otherwise the callback runs on the
// goroutine that called Done.
//
// # Architecture
//
// The module is organized into:
//   - xstage: Stage, Params, metadata, callbacks, errors
//   - video: formats, buffers, pools
//   - compute: explicit compute context, work queue, WGSL programs
//   - pose: device pose metadata and pose logs
//   - stages: concrete stages
//   - pipeline: stage chains and the stage registry
package xstage
