// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/xstage"
	"github.com/gogpu/xstage/video"
)

// ErrEmptyChain is returned by NewChain without stages.
var ErrEmptyChain = errors.New("pipeline: chain has no stages")

// Sink receives every frame pushed into a Chain exactly once: with the
// last stage's Params on success, or with the Params of the stage that
// failed. The Chain releases p when Sink returns; retain buffers to keep
// them.
type Sink func(p *xstage.Params, err error)

// Chain runs frames through stages in order. Each stage's completion
// feeds the next stage, carrying the frame's metadata along, so
// asynchronous stages hand frames on from whatever goroutine completes
// them.
//
// A Chain owns the callbacks of its stages.
//
// Thread safety: Push must be called from one goroutine at a time. Sink
// may run on any goroutine.
type Chain struct {
	stages []*xstage.Stage
	sink   Sink
	sync   bool

	inflight sync.WaitGroup
	frames   atomic.Int64
	failed   atomic.Int64
}

// NewChain links stages. With synchronous set every stage is processed
// synchronously and Push returns once the frame reached the sink.
func NewChain(sink Sink, synchronous bool, stages ...*xstage.Stage) (*Chain, error) {
	if len(stages) == 0 {
		return nil, ErrEmptyChain
	}
	for i, s := range stages {
		if s == nil {
			return nil, fmt.Errorf("pipeline: stage %d is nil: %w", i, xstage.ErrInvalidParam)
		}
	}
	if sink == nil {
		sink = func(*xstage.Params, error) {}
	}
	c := &Chain{stages: stages, sink: sink, sync: synchronous}
	for i, s := range stages {
		s.SetCallback(xstage.CallbackFunc(func(_ *xstage.Stage, p *xstage.Params, err error) {
			c.advance(i, p, err)
		}))
	}
	return c, nil
}

// Stages returns the linked stages in order.
func (c *Chain) Stages() []*xstage.Stage {
	return c.stages
}

// Push sends in through the chain with metas attached. Errors are
// reported to the sink; Push returns the status of the first stage's
// Process call, which for an asynchronous chain says only whether the
// frame was accepted.
func (c *Chain) Push(in *video.Buffer, metas ...xstage.Meta) error {
	p := xstage.NewParams(in, nil)
	for _, m := range metas {
		if err := p.AddMeta(m); err != nil {
			p.Release()
			return err
		}
	}
	c.inflight.Add(1)
	return c.stages[0].Process(p, c.sync)
}

func (c *Chain) advance(i int, p *xstage.Params, err error) {
	if err != nil || i == len(c.stages)-1 {
		c.deliver(p, err)
		return
	}

	next := xstage.NewParams(p.Out(), nil)
	for m := range p.Metas().All() {
		// Items in a list are never nil.
		_ = next.AddMeta(m)
	}
	p.Release()
	_ = c.stages[i+1].Process(next, c.sync)
}

func (c *Chain) deliver(p *xstage.Params, err error) {
	defer c.inflight.Done()
	defer p.Release()

	c.frames.Add(1)
	if err != nil {
		c.failed.Add(1)
	}
	c.sink(p, err)
}

// Stats returns the number of frames delivered to the sink and how many
// of them failed.
func (c *Chain) Stats() (frames, failed int64) {
	return c.frames.Load(), c.failed.Load()
}

// Finish finishes the stages in order, so that frames flushed from one
// stage's look-ahead reach the next before it finishes, and waits until
// every pushed frame reached the sink.
func (c *Chain) Finish() {
	for _, s := range c.stages {
		_ = s.Finish()
	}
	c.inflight.Wait()
}

// Terminate terminates every stage. Frames still held by a stage are
// reported to the sink as failed.
func (c *Chain) Terminate() {
	for _, s := range c.stages {
		_ = s.Terminate()
	}
}
