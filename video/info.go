// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package video

import "fmt"

// MaxPlanes is the largest plane count any Format uses.
const MaxPlanes = 3

// Info describes the memory layout of a video buffer: pixel format,
// dimensions, and the stride and offset of every plane. Info is a value
// type and is comparable, so it can key pools and be checked for equality.
type Info struct {
	Format  Format
	Width   int
	Height  int
	Strides [MaxPlanes]int
	Offsets [MaxPlanes]int
	// Size is the total byte size of the buffer including all planes.
	Size int
}

// PlaneInfo describes one plane of an Info.
type PlaneInfo struct {
	Width      int // samples per row
	Height     int // rows
	PixelBytes int // bytes per sample
}

// NewInfo returns a tightly packed Info for the given format and size.
func NewInfo(format Format, width, height int) (Info, error) {
	return NewInfoAligned(format, width, height, 1)
}

// NewInfoAligned returns an Info whose plane strides are rounded up to a
// multiple of align bytes. An align of 0 or 1 means tightly packed.
func NewInfoAligned(format Format, width, height, align int) (Info, error) {
	if !format.IsValid() {
		return Info{}, fmt.Errorf("%w: format %v", ErrInvalidInfo, format)
	}
	if width <= 0 || height <= 0 {
		return Info{}, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if format.Info().IsPlanarYUV && (width%2 != 0 || height%2 != 0) {
		return Info{}, fmt.Errorf("%w: %v needs even dimensions, got %dx%d",
			ErrInvalidDimensions, format, width, height)
	}
	if align < 1 {
		align = 1
	}

	info := Info{Format: format, Width: width, Height: height}
	offset := 0
	for i := 0; i < format.Planes(); i++ {
		plane := info.Plane(i)
		stride := alignUp(plane.Width*plane.PixelBytes, align)
		info.Strides[i] = stride
		info.Offsets[i] = offset
		offset += stride * plane.Height
	}
	info.Size = offset
	return info, nil
}

// Plane returns the sample geometry of plane i. Out of range planes return
// the zero PlaneInfo.
func (i Info) Plane(index int) PlaneInfo {
	if index < 0 || index >= i.Format.Planes() {
		return PlaneInfo{}
	}
	if i.Format == FormatNV12 && index == 1 {
		return PlaneInfo{Width: i.Width / 2, Height: i.Height / 2, PixelBytes: 2}
	}
	return PlaneInfo{Width: i.Width, Height: i.Height, PixelBytes: i.Format.BytesPerPixel()}
}

// Validate checks that the layout is self consistent: every plane row fits
// in its stride and planes fit inside Size without overlapping.
func (i Info) Validate() error {
	if !i.Format.IsValid() {
		return fmt.Errorf("%w: format %v", ErrInvalidInfo, i.Format)
	}
	if i.Width <= 0 || i.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, i.Width, i.Height)
	}
	end := 0
	for p := 0; p < i.Format.Planes(); p++ {
		plane := i.Plane(p)
		if i.Strides[p] < plane.Width*plane.PixelBytes {
			return fmt.Errorf("%w: plane %d stride %d < %d",
				ErrInvalidStride, p, i.Strides[p], plane.Width*plane.PixelBytes)
		}
		if i.Offsets[p] < end {
			return fmt.Errorf("%w: plane %d offset %d overlaps previous plane", ErrInvalidInfo, p, i.Offsets[p])
		}
		end = i.Offsets[p] + i.Strides[p]*plane.Height
	}
	if i.Size < end {
		return fmt.Errorf("%w: size %d < %d", ErrDataTooSmall, i.Size, end)
	}
	return nil
}

// IsZero reports whether the Info has never been set.
func (i Info) IsZero() bool {
	return i == Info{}
}

// WithSize returns a tightly packed Info of the same format at a new size.
func (i Info) WithSize(width, height int) (Info, error) {
	return NewInfo(i.Format, width, height)
}

// String implements fmt.Stringer.
func (i Info) String() string {
	return fmt.Sprintf("%v %dx%d", i.Format, i.Width, i.Height)
}

func alignUp(v, align int) int {
	return (v + align - 1) / align * align
}
