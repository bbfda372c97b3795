// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package stages

import (
	"fmt"
	"math"
	"sync"

	"github.com/gogpu/xstage"
	"github.com/gogpu/xstage/internal/filter"
	"github.com/gogpu/xstage/pose"
	"github.com/gogpu/xstage/video"
)

// SmoothedPose is the pose a Temporal stage attaches to its output: the
// Gaussian weighted mean of the poses over the smoothing window.
type SmoothedPose struct {
	pose.DevicePose
}

// MetaName implements xstage.Meta.
func (SmoothedPose) MetaName() string { return "smoothed-pose" }

// Temporal is a look-ahead stage averaging every frame with its radius
// neighbors on each side using Gaussian weights. It also smooths the
// device poses attached to the frames.
//
// In asynchronous mode a frame completes once radius successors have
// arrived, so completions trail the input by radius frames, in input
// order. Finish completes the tail using the frames available. A
// synchronous Process cannot wait for successors: it completes every held
// frame with what has arrived and then the current frame from its past
// neighbors only.
type Temporal struct {
	*xstage.Stage
	xstage.PoolAllocator

	radius  int
	weights []float64

	mu      sync.Mutex
	history []*temporalFrame // retained inputs, oldest first
	waiting []*temporalFrame // frames whose output is not yet emitted
	next    int              // index of the next input frame
}

type temporalFrame struct {
	index int
	in    *video.Buffer
	pose  *pose.DevicePose

	p    *xstage.Params
	done xstage.Done
}

type completion struct {
	done xstage.Done
	err  error
}

// NewTemporal creates a smoothing stage over 2*radius+1 frames with the
// given Gaussian standard deviation in frames. A stdev of 0 or less means
// radius/2. The default pool holds radius extra buffers for the
// frames that wait for successors.
func NewTemporal(radius int, stdev float64, opts ...xstage.Option) *Temporal {
	radius = max(radius, 0)
	if stdev <= 0 {
		stdev = float64(radius) / 2
	}
	t := &Temporal{radius: radius, weights: filter.TemporalWeights(radius, stdev)}
	t.Stage = xstage.New("temporal", t, withDefaults(radius+xstage.DefaultBufferCapacity, opts)...)
	return t
}

// Radius returns the number of neighbors on each side of a frame.
func (t *Temporal) Radius() int {
	return t.radius
}

// Held returns the number of frames waiting for successors.
func (t *Temporal) Held() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.waiting)
}

// ConfigureResource sizes the output after the first frame.
func (t *Temporal) ConfigureResource(p *xstage.Params) error {
	return matchInput(t.Stage, p.In().Info())
}

// StartWork records the frame and emits every frame whose window is
// complete.
func (t *Temporal) StartWork(p *xstage.Params, done xstage.Done) error {
	out, err := requireOut(t.Stage, p)
	if err != nil {
		return err
	}
	in := p.In()
	if err := sameLayout(out.Info(), in.Info()); err != nil {
		return fmt.Errorf("%s: %w", t.Name(), err)
	}

	f := &temporalFrame{in: in.Retain(), p: p, done: done}
	if dp, ok := xstage.FindMeta[pose.DevicePose](p); ok {
		f.pose = &dp
	}

	t.mu.Lock()
	f.index = t.next
	t.next++
	t.history = append(t.history, f)

	var completions []completion
	if p.Sync() {
		completions = t.flushLocked()
		err = t.emitLocked(f, true)
		t.trimLocked()
		t.mu.Unlock()
		complete(completions)
		return err
	}

	t.waiting = append(t.waiting, f)
	for len(t.waiting) > 0 && t.waiting[0].index+t.radius < t.next {
		w := t.waiting[0]
		t.waiting = t.waiting[1:]
		completions = append(completions, completion{w.done, t.emitLocked(w, false)})
		w.p, w.done = nil, nil
	}
	t.trimLocked()
	t.mu.Unlock()

	complete(completions)
	return xstage.ErrPending
}

// Drain completes the held frames with the neighbors that have arrived
// and forgets the stream, so the next frame starts a new window.
func (t *Temporal) Drain() error {
	t.mu.Lock()
	completions := t.flushLocked()
	t.resetLocked()
	t.mu.Unlock()

	complete(completions)
	return nil
}

// ReleaseResources fails the held frames and drops the history.
func (t *Temporal) ReleaseResources() {
	t.mu.Lock()
	var completions []completion
	for _, w := range t.waiting {
		err := fmt.Errorf("%s: frame %d: %w: stage terminated", t.Name(), w.index, xstage.ErrInvalidState)
		completions = append(completions, completion{w.done, err})
		w.p, w.done = nil, nil
	}
	t.waiting = nil
	t.resetLocked()
	t.mu.Unlock()

	complete(completions)
}

func (t *Temporal) flushLocked() []completion {
	completions := make([]completion, 0, len(t.waiting))
	for _, w := range t.waiting {
		completions = append(completions, completion{w.done, t.emitLocked(w, false)})
		w.p, w.done = nil, nil
	}
	t.waiting = nil
	return completions
}

func (t *Temporal) resetLocked() {
	for _, f := range t.history {
		f.in.Release()
	}
	t.history = nil
}

// trimLocked drops history frames no pending or future frame can reach.
func (t *Temporal) trimLocked() {
	first := t.next
	if len(t.waiting) > 0 {
		first = t.waiting[0].index
	}
	keep := first - t.radius
	n := 0
	for n < len(t.history) && t.history[n].index < keep {
		t.history[n].in.Release()
		t.history[n] = nil
		n++
	}
	t.history = t.history[n:]
}

// emitLocked writes the weighted average of f's window into f's output and
// attaches the smoothed pose. Causal windows stop at f.
func (t *Temporal) emitLocked(f *temporalFrame, causal bool) error {
	last := f.index + t.radius
	if causal {
		last = f.index
	}
	var (
		frames  []*video.Buffer
		weights []float64
		poses   []pose.DevicePose
	)
	allPosed := true
	for _, h := range t.history {
		if h.index < f.index-t.radius || h.index > last {
			continue
		}
		frames = append(frames, h.in)
		weights = append(weights, t.weights[h.index-f.index+t.radius])
		if h.pose == nil {
			allPosed = false
		} else {
			poses = append(poses, *h.pose)
		}
	}
	if len(frames) == 0 {
		return fmt.Errorf("%s: frame %d: %w: history lost", t.Name(), f.index, xstage.ErrInvalidState)
	}

	blend(f.p.Out(), frames, weights)

	if allPosed && len(poses) > 0 {
		avg, err := pose.Average(poses, weights)
		if err != nil {
			return fmt.Errorf("%s: frame %d: %w", t.Name(), f.index, err)
		}
		if err := f.p.AddMeta(SmoothedPose{avg}); err != nil {
			return err
		}
	}
	return nil
}

// blend writes the normalized weighted sum of frames into out, byte by
// byte over the visible rows of every plane.
func blend(out *video.Buffer, frames []*video.Buffer, weights []float64) {
	var total float64
	for _, w := range weights {
		total += w
	}
	info := out.Info()
	var acc []float64
	for plane := range info.Format.Planes() {
		for y := range info.Plane(plane).Height {
			dst := out.Row(plane, y)
			if cap(acc) < len(dst) {
				acc = make([]float64, len(dst))
			}
			acc = acc[:len(dst)]
			clear(acc)
			for i, f := range frames {
				w := weights[i]
				for x, v := range f.Row(plane, y) {
					acc[x] += w * float64(v)
				}
			}
			for x, v := range acc {
				dst[x] = uint8(min(math.Round(v/total), 255))
			}
		}
	}
}

func sameLayout(out, in video.Info) error {
	if out.Format != in.Format || out.Width != in.Width || out.Height != in.Height {
		return fmt.Errorf("%w: input %v does not match stream %v", xstage.ErrInvalidParam, in, out)
	}
	return nil
}

func complete(cs []completion) {
	for _, c := range cs {
		c.done(c.err)
	}
}
