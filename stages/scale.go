// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package stages

import (
	"fmt"
	"strings"

	"golang.org/x/image/draw"

	"github.com/gogpu/xstage"
	"github.com/gogpu/xstage/video"
)

// Interpolation selects the resampling kernel of a Scale stage.
type Interpolation uint8

const (
	// Nearest is nearest-neighbor sampling.
	Nearest Interpolation = iota
	// ApproxBilinear is a fast bilinear approximation.
	ApproxBilinear
	// Bilinear is exact bilinear filtering.
	Bilinear
	// CatmullRom is bicubic Catmull-Rom filtering, the slowest and sharpest.
	CatmullRom
)

var interpolationNames = [...]string{"nearest", "approx-bilinear", "bilinear", "catmull-rom"}

// String returns the interpolation name.
func (i Interpolation) String() string {
	if int(i) < len(interpolationNames) {
		return interpolationNames[i]
	}
	return fmt.Sprintf("Interpolation(%d)", i)
}

// ParseInterpolation parses an interpolation name as printed by String.
func ParseInterpolation(s string) (Interpolation, error) {
	for i, n := range interpolationNames {
		if strings.EqualFold(s, n) {
			return Interpolation(i), nil
		}
	}
	return 0, fmt.Errorf("stages: unknown interpolation %q", s)
}

func (i Interpolation) interpolator() draw.Interpolator {
	switch i {
	case ApproxBilinear:
		return draw.ApproxBiLinear
	case Bilinear:
		return draw.BiLinear
	case CatmullRom:
		return draw.CatmullRom
	default:
		return draw.NearestNeighbor
	}
}

// Scale resamples frames to a fixed size.
type Scale struct {
	*xstage.Stage
	xstage.PoolAllocator

	width, height int
	interp        draw.Interpolator
}

// NewScale creates a stage resampling to width x height.
func NewScale(width, height int, interp Interpolation, opts ...xstage.Option) *Scale {
	s := &Scale{width: width, height: height, interp: interp.interpolator()}
	s.Stage = xstage.New("scale", s, withDefaults(xstage.DefaultBufferCapacity, opts)...)
	return s
}

// Size returns the output size.
func (s *Scale) Size() (width, height int) {
	return s.width, s.height
}

// ConfigureResource derives the output layout from the input format.
func (s *Scale) ConfigureResource(p *xstage.Params) error {
	in := p.In().Info()
	if err := acceptFormat(s.Name(), in, video.FormatRGBA8, video.FormatBGRA8, video.FormatGray8); err != nil {
		return err
	}
	out, err := in.WithSize(s.width, s.height)
	if err != nil {
		return fmt.Errorf("%s: output size: %w", s.Name(), err)
	}
	return s.SetOutputInfo(out)
}

// StartWork resamples In into Out.
func (s *Scale) StartWork(p *xstage.Params, _ xstage.Done) error {
	out, err := requireOut(s.Stage, p)
	if err != nil {
		return err
	}
	src, ok := p.In().Image()
	if !ok {
		return fmt.Errorf("%s: %w: %v", s.Name(), ErrUnsupportedFormat, p.In().Info().Format)
	}
	dst, ok := out.Image()
	if !ok || out.Info().Format != p.In().Info().Format {
		return fmt.Errorf("%s: %w: output %v for input %v",
			s.Name(), xstage.ErrInvalidParam, out.Info(), p.In().Info())
	}
	s.interp.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return nil
}
