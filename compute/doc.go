// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package compute provides the execution environment for asynchronous
// stage work.
//
// A Context is constructed once per process and passed explicitly to the
// stages that need it; there is no global device accessor. The Context owns
// a Queue whose workers run submitted tasks and report completion from
// their own goroutines, the way a driver reports completion of submitted
// GPU commands. Compute shaders are written in WGSL and compiled to SPIR-V
// with gogpu/naga.
//
// Usage:
//
//	ctx := compute.NewContext(compute.WithDeviceProvider(host))
//	defer ctx.Close()
//
//	prog, err := ctx.Program("invert", invertWGSL)
//	...
//	err = ctx.Submit(compute.Task{Label: "invert", Run: run, Done: done})
package compute
