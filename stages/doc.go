// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package stages provides ready-made processing stages built on
// xstage.Stage.
//
// Every stage embeds *xstage.Stage, so it is processed, finished and
// terminated through the common lifecycle:
//
//	blur := stages.NewBlur(2, 2)
//	out, err := blur.Execute(frame)
//
// Stages that write a new output buffer allocate it from a private pool by
// default (xstage.DefaultBufferCapacity buffers, sized from the first
// frame). Pass xstage.WithAllocator to change the capacity, or disable
// self-allocation with EnableAllocator(false, 0) and supply Params.Out.
//
// Available stages:
//   - Blur: separable Gaussian blur, any format
//   - ColorMatrix: 4x5 color transform, RGBA8 and BGRA8
//   - Scale: resampling with golang.org/x/image/draw interpolators
//   - Kernel: compute kernel compiled from WGSL and run on a compute.Queue
//   - Temporal: Gaussian temporal smoothing with look-ahead, also smooths
//     device poses
//   - Digest: pass-through that attaches a BLAKE3 fingerprint
package stages
