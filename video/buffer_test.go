package video

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestNewBuffer(t *testing.T) {
	info, _ := NewInfo(FormatRGBA8, 8, 4)
	b, err := NewBuffer(info)
	if err != nil {
		t.Fatalf("NewBuffer() error = %v", err)
	}
	if len(b.Data()) != info.Size {
		t.Errorf("len(Data()) = %d, want %d", len(b.Data()), info.Size)
	}
	if b.Refs() != 1 {
		t.Errorf("Refs() = %d, want 1", b.Refs())
	}
	if b.Pooled() {
		t.Error("standalone buffer reports Pooled() = true")
	}
	if _, err := NewBuffer(Info{}); err == nil {
		t.Error("NewBuffer(zero Info) should fail")
	}
}

func TestFromBytes(t *testing.T) {
	info, _ := NewInfo(FormatGray8, 4, 4)
	if _, err := FromBytes(info, make([]byte, 8)); !errors.Is(err, ErrDataTooSmall) {
		t.Errorf("FromBytes(short) = %v, want ErrDataTooSmall", err)
	}
	data := make([]byte, 32)
	b, err := FromBytes(info, data)
	if err != nil {
		t.Fatalf("FromBytes() = %v", err)
	}
	data[0] = 7
	if b.Data()[0] != 7 {
		t.Error("FromBytes copied data, want shared")
	}
	if len(b.Data()) != 16 {
		t.Errorf("len(Data()) = %d, want 16", len(b.Data()))
	}
}

func TestBufferRowsAndPlanes(t *testing.T) {
	info, _ := NewInfoAligned(FormatNV12, 4, 4, 8)
	b, _ := NewBuffer(info)

	if got := len(b.Row(0, 0)); got != 4 {
		t.Errorf("len(Row(0,0)) = %d, want 4", got)
	}
	if got := len(b.Row(1, 1)); got != 4 {
		t.Errorf("len(Row(1,1)) = %d, want 4", got)
	}
	if b.Row(1, 2) != nil {
		t.Error("Row(1,2) should be nil for a 2-row plane")
	}
	if got := len(b.Plane(0)); got != 32 {
		t.Errorf("len(Plane(0)) = %d, want 32", got)
	}
	if b.Plane(2) != nil {
		t.Error("Plane(2) should be nil for NV12")
	}
}

func TestBufferRefCounting(t *testing.T) {
	info, _ := NewInfo(FormatGray8, 2, 2)
	b, _ := NewBuffer(info)
	b.Retain()
	if b.Refs() != 2 {
		t.Errorf("Refs() = %d, want 2", b.Refs())
	}
	b.Release()
	b.Release()

	defer func() {
		if recover() == nil {
			t.Error("over-release did not panic")
		}
	}()
	b.Release()
}

func TestBufferCopyFrom(t *testing.T) {
	tight, _ := NewInfo(FormatRGBA8, 2, 2)
	padded, _ := NewInfoAligned(FormatRGBA8, 2, 2, 16)
	src, _ := NewBuffer(tight)
	for i := range src.Data() {
		src.Data()[i] = byte(i)
	}
	dst, _ := NewBuffer(padded)
	if err := dst.CopyFrom(src); err != nil {
		t.Fatalf("CopyFrom() = %v", err)
	}
	for y := 0; y < 2; y++ {
		for x, v := range src.Row(0, y) {
			if dst.Row(0, y)[x] != v {
				t.Fatalf("row %d byte %d = %d, want %d", y, x, dst.Row(0, y)[x], v)
			}
		}
	}

	other, _ := NewInfo(FormatGray8, 2, 2)
	ob, _ := NewBuffer(other)
	if err := ob.CopyFrom(src); !errors.Is(err, ErrInvalidInfo) {
		t.Errorf("CopyFrom(mismatch) = %v, want ErrInvalidInfo", err)
	}

	c := src.Clone()
	c.Data()[0] = 99
	if src.Data()[0] == 99 {
		t.Error("Clone shares memory")
	}
}

func TestBufferImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(1, 1, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	b, err := FromImage(img)
	if err != nil {
		t.Fatalf("FromImage() = %v", err)
	}
	view, ok := b.Image()
	if !ok {
		t.Fatal("RGBA8 buffer has no image view")
	}
	r, g, bl, a := view.At(1, 1).RGBA()
	if r>>8 != 10 || g>>8 != 20 || bl>>8 != 30 || a>>8 != 255 {
		t.Errorf("At(1,1) = %d,%d,%d,%d", r>>8, g>>8, bl>>8, a>>8)
	}

	view.Set(0, 0, color.RGBA{R: 1, A: 255})
	if b.Data()[0] != 1 {
		t.Error("image view does not share buffer memory")
	}

	nv12, _ := NewInfo(FormatNV12, 4, 4)
	nb, _ := NewBuffer(nv12)
	if _, ok := nb.Image(); ok {
		t.Error("NV12 buffer should have no image view")
	}
	if err := nb.CopyImage(img); !errors.Is(err, ErrInvalidInfo) {
		t.Errorf("CopyImage(NV12) = %v, want ErrInvalidInfo", err)
	}
	if err := b.CopyImage(image.NewRGBA(image.Rect(0, 0, 1, 1))); !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("CopyImage(size mismatch) = %v, want ErrInvalidDimensions", err)
	}
}
