// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compute

import (
	"errors"
	"fmt"

	"github.com/gogpu/naga"
)

// ErrCompile wraps WGSL compilation failures.
var ErrCompile = errors.New("compute: shader compilation failed")

// Program is a compiled compute shader.
//
// SPIRV holds the module a HAL backend binds when a device is present. The
// CPU reference routine of the stage that owns the program must produce
// the same result, so that CPU-only runs and device runs agree.
type Program struct {
	Label  string
	Source string
	SPIRV  []uint32
}

// Compile compiles WGSL source to SPIR-V.
func Compile(label, wgsl string) (*Program, error) {
	if wgsl == "" {
		return nil, fmt.Errorf("%w: %s: empty source", ErrCompile, label)
	}
	spirvBytes, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCompile, label, err)
	}
	if len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("%w: %s: SPIR-V length %d is not word aligned", ErrCompile, label, len(spirvBytes))
	}

	// SPIR-V is little-endian 32-bit words
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}

	slogger().Debug("compute: program compiled", "label", label, "words", len(words))
	return &Program{Label: label, Source: wgsl, SPIRV: words}, nil
}

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

// Valid reports whether the program looks like a SPIR-V module.
func (p *Program) Valid() bool {
	return p != nil && len(p.SPIRV) > 5 && p.SPIRV[0] == spirvMagic
}
