// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package video

import (
	"fmt"
	"image"
	"image/draw"
)

// Image returns an image.Image view sharing the buffer's memory.
//
// RGBA8 and BGRA8 are exposed as *image.RGBA (channel order is not
// reinterpreted for BGRA8, which is fine for order-agnostic operations such
// as resampling). Gray8 is exposed as *image.Gray. Planar formats have no
// view and return false.
func (b *Buffer) Image() (draw.Image, bool) {
	rect := image.Rect(0, 0, b.info.Width, b.info.Height)
	switch b.info.Format {
	case FormatRGBA8, FormatBGRA8:
		return &image.RGBA{Pix: b.Plane(0), Stride: b.info.Strides[0], Rect: rect}, true
	case FormatGray8:
		return &image.Gray{Pix: b.Plane(0), Stride: b.info.Strides[0], Rect: rect}, true
	default:
		return nil, false
	}
}

// FromImage copies img into a new standalone RGBA8 buffer.
func FromImage(img image.Image) (*Buffer, error) {
	bounds := img.Bounds()
	info, err := NewInfo(FormatRGBA8, bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, err
	}
	b, err := NewBuffer(info)
	if err != nil {
		return nil, err
	}
	dst, _ := b.Image()
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return b, nil
}

// CopyImage draws img into b, which must have an image view of the same size.
func (b *Buffer) CopyImage(img image.Image) error {
	dst, ok := b.Image()
	if !ok {
		return fmt.Errorf("%w: %v has no image view", ErrInvalidInfo, b.info.Format)
	}
	if img.Bounds().Size() != dst.Bounds().Size() {
		return fmt.Errorf("%w: image %v into %v", ErrInvalidDimensions, img.Bounds().Size(), dst.Bounds().Size())
	}
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
	return nil
}
