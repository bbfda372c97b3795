// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package stages

import (
	"fmt"
	"sort"

	"github.com/gogpu/xstage"
	"github.com/gogpu/xstage/internal/filter"
	"github.com/gogpu/xstage/video"
)

// ColorMatrix applies a 4x5 color matrix to RGBA8 or BGRA8 frames.
type ColorMatrix struct {
	*xstage.Stage
	xstage.PoolAllocator

	filter *filter.ColorMatrixFilter
}

// NewColorMatrix creates a color matrix stage. The matrix is row-major
// with one row per output channel (R, G, B, A) and a bias column, values
// in [0, 255].
func NewColorMatrix(m [20]float32, opts ...xstage.Option) *ColorMatrix {
	c := &ColorMatrix{filter: filter.NewColorMatrixFilter(m)}
	c.Stage = xstage.New("colormatrix", c, withDefaults(xstage.DefaultBufferCapacity, opts)...)
	return c
}

// Matrix returns the matrix the stage applies.
func (c *ColorMatrix) Matrix() [20]float32 {
	return c.filter.Matrix
}

// ConfigureResource accepts RGBA8 and BGRA8 input.
func (c *ColorMatrix) ConfigureResource(p *xstage.Params) error {
	in := p.In().Info()
	if err := acceptFormat(c.Name(), in, video.FormatRGBA8, video.FormatBGRA8); err != nil {
		return err
	}
	return matchInput(c.Stage, in)
}

// StartWork transforms In into Out.
func (c *ColorMatrix) StartWork(p *xstage.Params, _ xstage.Done) error {
	out, err := requireOut(c.Stage, p)
	if err != nil {
		return err
	}
	return c.filter.Apply(p.In(), out)
}

var presets = map[string]func(amount float32) *filter.ColorMatrixFilter{
	"identity":   func(float32) *filter.ColorMatrixFilter { return filter.NewIdentityColorMatrix() },
	"brightness": filter.NewBrightnessFilter,
	"contrast":   filter.NewContrastFilter,
	"saturation": filter.NewSaturationFilter,
	"grayscale":  func(float32) *filter.ColorMatrixFilter { return filter.NewGrayscaleFilter() },
	"sepia":      func(float32) *filter.ColorMatrixFilter { return filter.NewSepiaFilter() },
	"invert":     func(float32) *filter.ColorMatrixFilter { return filter.NewInvertFilter() },
	"hue":        filter.NewHueRotateFilter,
	"opacity":    filter.NewOpacityFilter,
}

// Preset returns the matrix of a named adjustment. amount is the factor
// for brightness, contrast, saturation and opacity, and the angle in
// degrees for hue; the other presets ignore it.
func Preset(name string, amount float32) ([20]float32, error) {
	mk, ok := presets[name]
	if !ok {
		return [20]float32{}, fmt.Errorf("stages: unknown color preset %q (have %v)", name, PresetNames())
	}
	return mk(amount).Matrix, nil
}

// Compose returns the matrix applying ms in order.
func Compose(ms ...[20]float32) [20]float32 {
	acc := filter.NewIdentityColorMatrix()
	for _, m := range ms {
		acc = acc.Multiply(filter.NewColorMatrixFilter(m))
	}
	return acc.Matrix
}

// PresetNames returns the sorted preset names.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
