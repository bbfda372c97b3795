package filter

import (
	"testing"

	"github.com/gogpu/xstage/video"
)

// Test helper functions shared across filter tests.

// createTestBuffer creates a buffer of the given format with every pixel
// set to px (one byte per channel).
func createTestBuffer(t testing.TB, format video.Format, w, h int, px ...byte) *video.Buffer {
	t.Helper()
	info, err := video.NewInfo(format, w, h)
	if err != nil {
		t.Fatalf("NewInfo: %v", err)
	}
	b, err := video.NewBuffer(info)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	if len(px) > 0 {
		for y := range h {
			row := b.Row(0, y)
			for x := 0; x < len(row); x += len(px) {
				copy(row[x:], px)
			}
		}
	}
	return b
}

// newLike returns a zeroed buffer with the layout of b.
func newLike(t testing.TB, b *video.Buffer) *video.Buffer {
	t.Helper()
	out, err := video.NewBuffer(b.Info())
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	return out
}

// pixel returns the channels of pixel (x, y) of plane 0.
func pixel(b *video.Buffer, x, y int) []byte {
	n := b.Info().Format.BytesPerPixel()
	return b.Row(0, y)[x*n : (x+1)*n]
}

// setPixel sets the channels of pixel (x, y) of plane 0.
func setPixel(b *video.Buffer, x, y int, px ...byte) {
	copy(pixel(b, x, y), px)
}

// bytesApproxEqual compares two pixels with tolerance.
func bytesApproxEqual(a, b []byte, tolerance int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		d := int(a[i]) - int(b[i])
		if d < -tolerance || d > tolerance {
			return false
		}
	}
	return true
}

// absf32 returns the absolute value of a float32.
func absf32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

// formatFloat formats a float for benchmark names.
func formatFloat(f float64) string {
	if f == float64(int(f)) {
		return formatInt(int(f))
	}
	intPart := int(f)
	fracPart := int((f - float64(intPart)) * 100)
	if fracPart < 0 {
		fracPart = -fracPart
	}
	return formatInt(intPart) + "." + formatInt(fracPart)
}

// formatInt formats an integer without using fmt.
func formatInt(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var digits []byte
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	if neg {
		digits = append([]byte{'-'}, digits...)
	}
	return string(digits)
}
