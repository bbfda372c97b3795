// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package pipeline links processing stages into chains.
//
// A Chain takes ownership of its stages' callbacks: when stage i
// completes a frame, its output and metadata become the input of stage
// i+1, and the last stage's result goes to a Sink. A frame that fails at
// any stage skips the rest of the chain and reaches the Sink with the
// error, so the Sink sees every pushed frame exactly once.
//
//	chain, err := pipeline.NewChain(sink, false,
//	    stages.NewTemporal(2, 1).Stage,
//	    stages.NewDigest().Stage,
//	)
//	...
//	chain.Push(frame, pose)
//	chain.Finish()
//	chain.Terminate()
//
// The Registry builds stages from configuration (internal/config) by
// kind name. The built-in kinds are blur, colormatrix, scale, gain,
// temporal and digest; Register adds more.
package pipeline
