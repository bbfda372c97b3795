// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package video

import (
	"strings"

	"github.com/gogpu/gputypes"
)

// Format represents a pixel storage layout.
type Format uint8

const (
	// FormatUnknown is the zero Format. An Info with this format is invalid.
	FormatUnknown Format = iota

	// FormatGray8 is 8-bit luma (1 byte per pixel, one plane).
	FormatGray8

	// FormatRGBA8 is 32-bit RGBA (4 bytes per pixel, one plane).
	// This is the standard format for most stages.
	FormatRGBA8

	// FormatBGRA8 is 32-bit BGRA (4 bytes per pixel, one plane).
	// Common as a GPU surface format.
	FormatBGRA8

	// FormatNV12 is 4:2:0 YUV with a full resolution Y plane followed by a
	// half resolution interleaved UV plane. Camera pipelines produce it.
	FormatNV12

	// formatCount is the number of formats (for internal use).
	formatCount
)

// FormatInfo contains metadata about a pixel format.
type FormatInfo struct {
	// Planes is the number of memory planes.
	Planes int

	// BytesPerPixel is the number of bytes per pixel of the first plane.
	BytesPerPixel int

	// Channels is the number of color channels.
	Channels int

	// HasAlpha indicates if the format has an alpha channel.
	HasAlpha bool

	// IsPlanarYUV indicates a subsampled YUV layout.
	IsPlanarYUV bool
}

var formatInfoTable = [formatCount]FormatInfo{
	FormatUnknown: {},
	FormatGray8: {
		Planes:        1,
		BytesPerPixel: 1,
		Channels:      1,
	},
	FormatRGBA8: {
		Planes:        1,
		BytesPerPixel: 4,
		Channels:      4,
		HasAlpha:      true,
	},
	FormatBGRA8: {
		Planes:        1,
		BytesPerPixel: 4,
		Channels:      4,
		HasAlpha:      true,
	},
	FormatNV12: {
		Planes:        2,
		BytesPerPixel: 1,
		Channels:      3,
		IsPlanarYUV:   true,
	},
}

// Info returns the FormatInfo for this format.
func (f Format) Info() FormatInfo {
	if f >= formatCount {
		return FormatInfo{}
	}
	return formatInfoTable[f]
}

// Planes returns the number of memory planes.
func (f Format) Planes() int {
	return f.Info().Planes
}

// BytesPerPixel returns the number of bytes per pixel of the first plane.
func (f Format) BytesPerPixel() int {
	return f.Info().BytesPerPixel
}

// HasAlpha returns true if this format has an alpha channel.
func (f Format) HasAlpha() bool {
	return f.Info().HasAlpha
}

// IsPacked reports whether the format is a single plane of whole pixels.
func (f Format) IsPacked() bool {
	info := f.Info()
	return info.Planes == 1
}

// IsValid returns true if the format is a known, usable format.
func (f Format) IsValid() bool {
	return f > FormatUnknown && f < formatCount
}

// String returns a string representation of the format.
func (f Format) String() string {
	switch f {
	case FormatGray8:
		return "Gray8"
	case FormatRGBA8:
		return "RGBA8"
	case FormatBGRA8:
		return "BGRA8"
	case FormatNV12:
		return "NV12"
	default:
		return "Unknown"
	}
}

// ParseFormat returns the Format named by s, matching String case-insensitively.
func ParseFormat(s string) (Format, bool) {
	for f := FormatGray8; f < formatCount; f++ {
		if strings.EqualFold(f.String(), s) {
			return f, true
		}
	}
	return FormatUnknown, false
}

// TextureFormat returns the GPU texture format able to hold one plane of
// this format, or TextureFormatUndefined for multi-plane layouts.
func (f Format) TextureFormat() gputypes.TextureFormat {
	switch f {
	case FormatGray8:
		return gputypes.TextureFormatR8Unorm
	case FormatRGBA8:
		return gputypes.TextureFormatRGBA8Unorm
	case FormatBGRA8:
		return gputypes.TextureFormatBGRA8Unorm
	default:
		return gputypes.TextureFormatUndefined
	}
}

// FormatFromTexture maps a GPU surface format back to a pixel format.
func FormatFromTexture(tf gputypes.TextureFormat) Format {
	switch tf {
	case gputypes.TextureFormatR8Unorm:
		return FormatGray8
	case gputypes.TextureFormatRGBA8Unorm:
		return FormatRGBA8
	case gputypes.TextureFormatBGRA8Unorm:
		return FormatBGRA8
	default:
		return FormatUnknown
	}
}
