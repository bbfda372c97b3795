// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package stages

import (
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/xstage"
	"github.com/gogpu/xstage/compute"
	"github.com/gogpu/xstage/video"
)

// ErrNoContext is returned when a Kernel is configured without a usable
// compute context.
var ErrNoContext = errors.New("stages: no compute context")

// KernelSpec describes a compute kernel.
//
// WGSL is compiled when the stage configures. Run is the CPU reference
// routine executed on the context's queue; it must produce what the shader
// produces.
type KernelSpec struct {
	Label   string
	WGSL    string
	Formats []video.Format // accepted input formats, empty accepts all
	Run     func(in, out *video.Buffer) error
}

// Kernel is an asynchronous stage running a compute program on a
// compute.Context queue. Completion is reported from a queue worker.
type Kernel struct {
	*xstage.Stage
	xstage.PoolAllocator

	ctx     *compute.Context
	spec    KernelSpec
	program *compute.Program
}

// NewKernel creates a kernel stage bound to ctx.
func NewKernel(ctx *compute.Context, spec KernelSpec, opts ...xstage.Option) *Kernel {
	k := &Kernel{ctx: ctx, spec: spec}
	name := "kernel"
	if spec.Label != "" {
		name = spec.Label
	}
	k.Stage = xstage.New(name, k, withDefaults(xstage.DefaultBufferCapacity, opts)...)
	return k
}

// Program returns the compiled program, or nil before configuration.
func (k *Kernel) Program() *compute.Program {
	return k.program
}

// ConfigureResource compiles the kernel and sizes the output after the
// first frame.
func (k *Kernel) ConfigureResource(p *xstage.Params) error {
	switch {
	case k.ctx == nil:
		return fmt.Errorf("%s: %w", k.Name(), ErrNoContext)
	case k.ctx.Closed():
		return fmt.Errorf("%s: %w", k.Name(), compute.ErrContextClosed)
	case k.spec.Run == nil:
		return fmt.Errorf("%s: %w: kernel has no routine", k.Name(), xstage.ErrInvalidParam)
	}
	in := p.In().Info()
	if err := acceptFormat(k.Name(), in, k.spec.Formats...); err != nil {
		return err
	}
	prog, err := k.ctx.Program(k.Name(), k.spec.WGSL)
	if err != nil {
		return err
	}
	k.program = prog
	return matchInput(k.Stage, in)
}

// StartWork submits the kernel and returns xstage.ErrPending.
func (k *Kernel) StartWork(p *xstage.Params, done xstage.Done) error {
	out, err := requireOut(k.Stage, p)
	if err != nil {
		return err
	}
	in := p.In()
	err = k.ctx.Submit(compute.Task{
		Label: k.Name(),
		Run:   func() error { return k.spec.Run(in, out) },
		Done:  done,
	})
	if err != nil {
		return fmt.Errorf("%s: submit: %w", k.Name(), err)
	}
	return xstage.ErrPending
}

const gainWGSL = `
struct Params {
    count: u32,
    gain: f32,
}

@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var<storage, read> src: array<u32>;
@group(0) @binding(2) var<storage, read_write> dst: array<u32>;

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    let i = id.x;
    if (i >= params.count) {
        return;
    }
    let px = src[i];
    let c0 = u32(clamp(f32(px & 0xffu) * params.gain + 0.5, 0.0, 255.0));
    let c1 = u32(clamp(f32((px >> 8u) & 0xffu) * params.gain + 0.5, 0.0, 255.0));
    let c2 = u32(clamp(f32((px >> 16u) & 0xffu) * params.gain + 0.5, 0.0, 255.0));
    dst[i] = c0 | (c1 << 8u) | (c2 << 16u) | (px & 0xff000000u);
}
`

// GainKernel returns a kernel multiplying the color channels of RGBA8 or
// BGRA8 pixels by gain. Alpha is preserved.
func GainKernel(gain float32) KernelSpec {
	return KernelSpec{
		Label:   "gain",
		WGSL:    gainWGSL,
		Formats: []video.Format{video.FormatRGBA8, video.FormatBGRA8},
		Run: func(in, out *video.Buffer) error {
			return applyGain(in, out, gain)
		},
	}
}

func applyGain(in, out *video.Buffer, gain float32) error {
	info := in.Info()
	if o := out.Info(); o.Format != info.Format || o.Width != info.Width || o.Height != info.Height {
		return fmt.Errorf("gain: %w: output %v for input %v", xstage.ErrInvalidParam, o, info)
	}
	for y := 0; y < info.Height; y++ {
		src, dst := in.Row(0, y), out.Row(0, y)
		for x := 0; x+3 < len(src); x += 4 {
			for c := range 3 {
				v := float32(src[x+c])*gain + 0.5
				dst[x+c] = uint8(math.Max(0, math.Min(255, float64(v))))
			}
			dst[x+3] = src[x+3]
		}
	}
	return nil
}
