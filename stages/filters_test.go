package stages

import (
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/xstage"
	"github.com/gogpu/xstage/video"
)

func TestBlurUniformFrame(t *testing.T) {
	for _, format := range []video.Format{video.FormatGray8, video.FormatRGBA8, video.FormatNV12} {
		t.Run(format.String(), func(t *testing.T) {
			s := NewBlur(2, 2)
			defer s.Terminate()

			out := execute(t, s, solidFrame(t, format, 8, 8, 77))
			if out.Info().Format != format {
				t.Fatalf("output format = %v, want %v", out.Info().Format, format)
			}
			for i, v := range out.Data() {
				if v != 77 {
					t.Fatalf("byte %d = %d, want 77", i, v)
				}
			}
		})
	}
}

func TestBlurSpreadsImpulse(t *testing.T) {
	s := NewBlur(2, 2)
	defer s.Terminate()

	in := newFrame(t, video.FormatGray8, 9, 9, func(_, x, y int) byte {
		if x == 4 && y == 4 {
			return 255
		}
		return 0
	})
	out := execute(t, s, in)

	center := out.Row(0, 4)[4]
	if center == 0 || center == 255 {
		t.Errorf("center = %d, want blurred value", center)
	}
	if out.Row(0, 4)[5] == 0 || out.Row(0, 5)[4] == 0 {
		t.Error("impulse did not spread to neighbors")
	}
	if out.Row(0, 0)[0] != 0 {
		t.Errorf("corner = %d, want 0", out.Row(0, 0)[0])
	}
	if got := poolCapacity(s.Stage); got != xstage.DefaultBufferCapacity {
		t.Errorf("pool capacity = %d, want %d", got, xstage.DefaultBufferCapacity)
	}
}

func TestStageRejectsMismatchedOutputInfo(t *testing.T) {
	info, err := video.NewInfo(video.FormatGray8, 16, 16)
	if err != nil {
		t.Fatal(err)
	}
	s := NewBlur(1, 1, xstage.WithOutputInfo(info))
	defer s.Terminate()

	_, err = s.Execute(solidFrame(t, video.FormatGray8, 8, 8, 1))
	if !errors.Is(err, xstage.ErrConfigFailed) || !errors.Is(err, xstage.ErrInvalidParam) {
		t.Errorf("Execute() = %v, want ErrConfigFailed wrapping ErrInvalidParam", err)
	}
	if s.State() != xstage.Unconfigured {
		t.Errorf("State() = %v, want Unconfigured", s.State())
	}
}

func TestColorMatrixInvert(t *testing.T) {
	m, err := Preset("invert", 0)
	if err != nil {
		t.Fatal(err)
	}
	s := NewColorMatrix(m)
	defer s.Terminate()

	out := execute(t, s, rgbaFrame(t, 2, 2, 10, 20, 30, 255))
	want := []byte{245, 235, 225, 255}
	if got := out.Row(0, 0)[:4]; !slices.Equal(got, want) {
		t.Errorf("pixel = %v, want %v", got, want)
	}
	if s.Matrix() != m {
		t.Error("Matrix() does not return the configured matrix")
	}
}

func TestCompose(t *testing.T) {
	brightness, _ := Preset("brightness", 2)
	invert, _ := Preset("invert", 0)

	if Compose() != identityMatrix(t) {
		t.Error("Compose() is not the identity")
	}
	s := NewColorMatrix(Compose(brightness, invert))
	defer s.Terminate()

	// 50 -> 100 -> 155.
	out := execute(t, s, rgbaFrame(t, 1, 1, 50, 50, 50, 255))
	if got, want := out.Row(0, 0)[:4], []byte{155, 155, 155, 255}; !slices.Equal(got, want) {
		t.Errorf("pixel = %v, want %v", got, want)
	}
}

func TestColorMatrixUnsupportedFormat(t *testing.T) {
	s := NewColorMatrix(identityMatrix(t))
	defer s.Terminate()

	_, err := s.Execute(solidFrame(t, video.FormatGray8, 4, 4, 0))
	if !errors.Is(err, xstage.ErrConfigFailed) || !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Execute() = %v, want ErrConfigFailed wrapping ErrUnsupportedFormat", err)
	}
}

func identityMatrix(t *testing.T) [20]float32 {
	t.Helper()
	m, err := Preset("identity", 0)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestPreset(t *testing.T) {
	names := PresetNames()
	if !slices.IsSorted(names) {
		t.Errorf("PresetNames() = %v, not sorted", names)
	}
	for _, n := range names {
		if _, err := Preset(n, 1); err != nil {
			t.Errorf("Preset(%q) = %v", n, err)
		}
	}
	if _, err := Preset("vintage", 1); err == nil {
		t.Error("Preset(unknown) should fail")
	}

	m, _ := Preset("brightness", 2)
	if m[0] != 2 || m[6] != 2 || m[12] != 2 || m[18] != 1 {
		t.Errorf("brightness(2) diagonal = %v %v %v %v", m[0], m[6], m[12], m[18])
	}
}

func TestParseInterpolation(t *testing.T) {
	for _, i := range []Interpolation{Nearest, ApproxBilinear, Bilinear, CatmullRom} {
		got, err := ParseInterpolation(i.String())
		if err != nil || got != i {
			t.Errorf("ParseInterpolation(%q) = %v, %v", i.String(), got, err)
		}
	}
	if got, err := ParseInterpolation("BILINEAR"); err != nil || got != Bilinear {
		t.Errorf("ParseInterpolation(BILINEAR) = %v, %v", got, err)
	}
	if _, err := ParseInterpolation("lanczos"); err == nil {
		t.Error("ParseInterpolation(lanczos) should fail")
	}
	if s := Interpolation(9).String(); s != "Interpolation(9)" {
		t.Errorf("String() = %q", s)
	}
}

func TestScale(t *testing.T) {
	tests := []struct {
		name   string
		interp Interpolation
	}{
		{"nearest", Nearest},
		{"bilinear", Bilinear},
		{"catmull-rom", CatmullRom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScale(8, 6, tt.interp)
			defer s.Terminate()

			out := execute(t, s, rgbaFrame(t, 4, 4, 200, 100, 50, 255))
			info := out.Info()
			if info.Width != 8 || info.Height != 6 || info.Format != video.FormatRGBA8 {
				t.Fatalf("output = %v, want RGBA8 8x6", info)
			}
			if got := out.Row(0, 3)[16:20]; !slices.Equal(got, []byte{200, 100, 50, 255}) {
				t.Errorf("pixel = %v, want [200 100 50 255]", got)
			}
		})
	}
}

func TestScaleGray(t *testing.T) {
	s := NewScale(2, 2, Nearest)
	defer s.Terminate()

	out := execute(t, s, solidFrame(t, video.FormatGray8, 6, 6, 42))
	if w, h := s.Size(); w != 2 || h != 2 {
		t.Errorf("Size() = %dx%d", w, h)
	}
	if !slices.Equal(out.Data(), []byte{42, 42, 42, 42}) {
		t.Errorf("output = %v", out.Data())
	}
}

func TestScaleRejectsNV12(t *testing.T) {
	s := NewScale(2, 2, Nearest)
	defer s.Terminate()

	_, err := s.Execute(solidFrame(t, video.FormatNV12, 4, 4, 0))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Execute() = %v, want ErrUnsupportedFormat", err)
	}
}
