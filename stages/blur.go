// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package stages

import (
	"github.com/gogpu/xstage"
	"github.com/gogpu/xstage/internal/filter"
)

// Blur is a synchronous separable Gaussian blur.
type Blur struct {
	*xstage.Stage
	xstage.PoolAllocator

	filter *filter.BlurFilter
}

// NewBlur creates a blur stage with the given radii in pixels.
func NewBlur(radiusX, radiusY float64, opts ...xstage.Option) *Blur {
	b := &Blur{filter: filter.NewBlurFilterXY(radiusX, radiusY)}
	b.Stage = xstage.New("blur", b, withDefaults(xstage.DefaultBufferCapacity, opts)...)
	return b
}

// ConfigureResource sizes the output after the first frame.
func (b *Blur) ConfigureResource(p *xstage.Params) error {
	return matchInput(b.Stage, p.In().Info())
}

// StartWork blurs In into Out.
func (b *Blur) StartWork(p *xstage.Params, _ xstage.Done) error {
	out, err := requireOut(b.Stage, p)
	if err != nil {
		return err
	}
	return b.filter.Apply(p.In(), out)
}
