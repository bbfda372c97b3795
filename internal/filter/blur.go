package filter

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/xstage/video"
)

// Filter errors.
var (
	// ErrUnsupportedFormat is returned for pixel formats a filter cannot
	// process.
	ErrUnsupportedFormat = errors.New("filter: unsupported format")

	// ErrShapeMismatch is returned when source and destination layouts
	// differ in format or size.
	ErrShapeMismatch = errors.New("filter: source and destination differ")
)

// BlurFilter applies separable Gaussian blur to a video buffer.
// The separable algorithm processes horizontal and vertical passes
// independently, achieving O(w*h*(rx+ry)) complexity instead of O(w*h*rx*ry).
//
// Every plane is blurred on its own with its own sample size, so packed
// RGBA as well as the luma and interleaved chroma planes of NV12 are
// handled. Chroma planes are subsampled, so their radius is scaled with
// the plane size.
type BlurFilter struct {
	// RadiusX is the horizontal blur radius in pixels.
	RadiusX float64

	// RadiusY is the vertical blur radius in pixels.
	RadiusY float64
}

// NewBlurFilterXY creates a new blur filter with different X and Y radii.
func NewBlurFilterXY(radiusX, radiusY float64) *BlurFilter {
	return &BlurFilter{
		RadiusX: radiusX,
		RadiusY: radiusY,
	}
}

// Apply blurs src into dst. Both must share format and size; strides may
// differ. The operation uses a two-pass separable algorithm:
//  1. Horizontal pass: convolve each row with 1D kernel
//  2. Vertical pass: convolve each column with 1D kernel
func (f *BlurFilter) Apply(src, dst *video.Buffer) error {
	if err := checkShape(src, dst); err != nil {
		return err
	}
	info := src.Info()
	for i := range info.Format.Planes() {
		plane := info.Plane(i)
		scaleX := float64(plane.Width) / float64(info.Width)
		scaleY := float64(plane.Height) / float64(info.Height)
		f.applyPlane(src, dst, i, plane, f.RadiusX*scaleX, f.RadiusY*scaleY)
	}
	return nil
}

func (f *BlurFilter) applyPlane(src, dst *video.Buffer, index int, plane video.PlaneInfo, rx, ry float64) {
	if rx <= 0 && ry <= 0 {
		copyPlane(src, dst, index, plane)
		return
	}

	width, height, channels := plane.Width, plane.Height, plane.PixelBytes

	temp := getTempBuffer(width * height * channels)
	defer putTempBuffer(temp)

	// Pass 1: Horizontal blur (src -> temp)
	kernelX := CachedGaussianKernel(rx)
	for y := range height {
		blurRow(src.Row(index, y), temp[y*width*channels:(y+1)*width*channels], width, channels, kernelX)
	}

	// Pass 2: Vertical blur (temp -> dst)
	kernelY := CachedGaussianKernel(ry)
	for y := range height {
		blurColumn(temp, dst.Row(index, y), y, width, height, channels, kernelY)
	}
}

// blurRow applies 1D horizontal convolution to one row.
func blurRow(src []byte, out []float32, width, channels int, kernel []float32) {
	half := len(kernel) / 2
	for x := range width {
		for c := range channels {
			var sum float32
			for k, weight := range kernel {
				// Clamp to row bounds (edge extension)
				kx := clampInt(x+k-half, 0, width-1)
				sum += float32(src[kx*channels+c]) * weight
			}
			out[x*channels+c] = sum
		}
	}
}

// blurColumn applies 1D vertical convolution for output row y.
func blurColumn(temp []float32, dst []byte, y, width, height, channels int, kernel []float32) {
	half := len(kernel) / 2
	rowLen := width * channels
	for i := range rowLen {
		var sum float32
		for k, weight := range kernel {
			ky := clampInt(y+k-half, 0, height-1)
			sum += temp[ky*rowLen+i] * weight
		}
		dst[i] = clampUint8(sum)
	}
}

// copyPlane copies the visible rows of one plane.
func copyPlane(src, dst *video.Buffer, index int, plane video.PlaneInfo) {
	for y := range plane.Height {
		copy(dst.Row(index, y), src.Row(index, y))
	}
}

func checkShape(src, dst *video.Buffer) error {
	if src == nil || dst == nil {
		return fmt.Errorf("%w: nil buffer", ErrShapeMismatch)
	}
	si, di := src.Info(), dst.Info()
	if si.Format != di.Format || si.Width != di.Width || si.Height != di.Height {
		return fmt.Errorf("%w: %v vs %v", ErrShapeMismatch, si, di)
	}
	return nil
}

// floatBuffer wraps a slice for sync.Pool to avoid allocation warnings.
type floatBuffer struct {
	data []float32
}

// Temporary buffer pool for blur operations.
var tempBufferPool = sync.Pool{
	New: func() any {
		return &floatBuffer{data: make([]float32, 1920*1080*4)}
	},
}

// getTempBuffer retrieves a temporary buffer of at least size elements.
func getTempBuffer(size int) []float32 {
	wrapper := tempBufferPool.Get().(*floatBuffer)
	if len(wrapper.data) < size {
		tempBufferPool.Put(wrapper)
		return make([]float32, size)
	}
	return wrapper.data[:size]
}

// putTempBuffer returns a temporary buffer to the pool.
func putTempBuffer(buf []float32) {
	// Only pool reasonably-sized buffers
	if cap(buf) <= 4096*4096*4 {
		tempBufferPool.Put(&floatBuffer{data: buf[:cap(buf)]})
	}
}

// clampInt clamps an integer to [minVal, maxVal].
func clampInt(v, minVal, maxVal int) int {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

// clampUint8 clamps a float32 to [0, 255] and converts to uint8.
func clampUint8(v float32) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5) // Round to nearest
}
