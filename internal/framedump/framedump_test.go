package framedump

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/gogpu/xstage/pose"
	"github.com/gogpu/xstage/video"
)

func testFrame(t *testing.T, format video.Format, w, h int, fill func(i int) byte) *video.Buffer {
	t.Helper()
	info, err := video.NewInfoAligned(format, w, h, 8)
	if err != nil {
		t.Fatalf("NewInfoAligned: %v", err)
	}
	b, err := video.NewBuffer(info)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	for i := range b.Data() {
		b.Data()[i] = fill(i)
	}
	t.Cleanup(b.Release)
	return b
}

func TestRoundTrip(t *testing.T) {
	compressions := []Compression{None, LZ4, Zstd}
	for _, c := range compressions {
		t.Run(c.String(), func(t *testing.T) {
			frames := []Frame{
				{Index: 0, Buffer: testFrame(t, video.FormatRGBA8, 5, 3, func(int) byte { return 9 })},
				{
					Index:  1,
					Buffer: testFrame(t, video.FormatNV12, 6, 4, func(i int) byte { return byte(i % 7) }),
					Pose: &pose.DevicePose{
						Orientation: [4]float64{0, 0, 0, 1},
						Translation: [3]float64{1, 2, 3},
						Timestamp:   33333,
					},
					Digest: bytes.Repeat([]byte{0xab}, 32),
				},
			}

			var buf bytes.Buffer
			w, err := NewWriter(&buf, c)
			if err != nil {
				t.Fatalf("NewWriter() = %v", err)
			}
			for _, f := range frames {
				if err := w.WriteFrame(f); err != nil {
					t.Fatalf("WriteFrame(%d) = %v", f.Index, err)
				}
			}
			if err := w.Flush(); err != nil {
				t.Fatalf("Flush() = %v", err)
			}
			if w.Frames() != len(frames) {
				t.Errorf("Frames() = %d, want %d", w.Frames(), len(frames))
			}
			if !bytes.HasPrefix(buf.Bytes(), []byte(Magic)) {
				t.Fatal("dump does not start with the magic")
			}

			r, err := NewReader(&buf)
			if err != nil {
				t.Fatalf("NewReader() = %v", err)
			}
			for _, want := range frames {
				got, err := r.Next()
				if err != nil {
					t.Fatalf("Next() = %v", err)
				}
				if got.Index != want.Index {
					t.Errorf("Index = %d, want %d", got.Index, want.Index)
				}
				if got.Buffer.Info() != want.Buffer.Info() {
					t.Errorf("Info = %v, want %v", got.Buffer.Info(), want.Buffer.Info())
				}
				if !bytes.Equal(got.Buffer.Data(), want.Buffer.Data()) {
					t.Errorf("frame %d payload differs", want.Index)
				}
				if (got.Pose == nil) != (want.Pose == nil) || (got.Pose != nil && *got.Pose != *want.Pose) {
					t.Errorf("Pose = %v, want %v", got.Pose, want.Pose)
				}
				if !bytes.Equal(got.Digest, want.Digest) {
					t.Errorf("Digest = %x, want %x", got.Digest, want.Digest)
				}
				got.Buffer.Release()
			}
			if _, err := r.Next(); !errors.Is(err, io.EOF) {
				t.Errorf("Next() at end = %v, want io.EOF", err)
			}
		})
	}
}

func TestCompressionShrinksUniformFrames(t *testing.T) {
	frame := testFrame(t, video.FormatRGBA8, 64, 64, func(int) byte { return 1 })
	sizes := map[Compression]int{}
	for _, c := range []Compression{None, LZ4, Zstd} {
		var buf bytes.Buffer
		w, err := NewWriter(&buf, c)
		if err != nil {
			t.Fatal(err)
		}
		if err := w.WriteFrame(Frame{Buffer: frame}); err != nil {
			t.Fatal(err)
		}
		if err := w.Flush(); err != nil {
			t.Fatal(err)
		}
		sizes[c] = buf.Len()
	}
	if sizes[LZ4] >= sizes[None] || sizes[Zstd] >= sizes[None] {
		t.Errorf("sizes = %v, want compressed dumps smaller than raw", sizes)
	}
}

func TestIncompressibleStoredRaw(t *testing.T) {
	// xorshift noise does not compress.
	x := uint32(2463534242)
	frame := testFrame(t, video.FormatGray8, 32, 32, func(int) byte {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		return byte(x)
	})

	payload, used, err := compress(frame.Data(), LZ4)
	if err != nil {
		t.Fatalf("compress() = %v", err)
	}
	if used != None || len(payload) != len(frame.Data()) {
		t.Errorf("compress(noise) used %v with %d bytes, want raw", used, len(payload))
	}
}

func TestNewReaderBadMagic(t *testing.T) {
	for _, in := range []string{"", "XS", "JUNKDATA"} {
		if _, err := NewReader(bytes.NewReader([]byte(in))); !errors.Is(err, ErrBadMagic) {
			t.Errorf("NewReader(%q) = %v, want ErrBadMagic", in, err)
		}
	}
}

func TestNextCorrupt(t *testing.T) {
	var good bytes.Buffer
	w, err := NewWriter(&good, None)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteFrame(Frame{Buffer: testFrame(t, video.FormatGray8, 4, 4, func(int) byte { return 3 })}); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	data := good.Bytes()

	hugeHeader := append([]byte(Magic), 0, 0, 0, 0)
	binary.BigEndian.PutUint32(hugeHeader[len(Magic):], maxHeaderLen+1)

	tests := []struct {
		name string
		data []byte
	}{
		{"truncated length", data[:len(Magic)+2]},
		{"truncated header", data[:len(Magic)+6]},
		{"truncated payload", data[:len(data)-1]},
		{"huge header", hugeHeader},
		{"garbage header", append([]byte(Magic), 0, 0, 0, 2, 0xff, 0xff)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewReader(bytes.NewReader(tt.data))
			if err != nil {
				t.Fatalf("NewReader() = %v", err)
			}
			if _, err := r.Next(); !errors.Is(err, ErrCorrupt) {
				t.Errorf("Next() = %v, want ErrCorrupt", err)
			}
		})
	}
}

func TestParseCompression(t *testing.T) {
	for _, c := range []Compression{None, LZ4, Zstd} {
		got, err := ParseCompression(c.String())
		if err != nil || got != c {
			t.Errorf("ParseCompression(%q) = %v, %v", c.String(), got, err)
		}
	}
	if _, err := ParseCompression("brotli"); err == nil {
		t.Error("ParseCompression(brotli) succeeded")
	}
	if _, err := NewWriter(io.Discard, Compression(9)); err == nil {
		t.Error("NewWriter with unknown compression succeeded")
	}
	if s := Compression(9).String(); s != "unknown(9)" {
		t.Errorf("String() = %q", s)
	}
}

func TestWriteFrameWithoutBuffer(t *testing.T) {
	w, err := NewWriter(io.Discard, None)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteFrame(Frame{Index: 4}); err == nil {
		t.Error("WriteFrame without a buffer succeeded")
	}
}

func TestDecompressZstdSizeMismatch(t *testing.T) {
	payload := zstdEncoder.EncodeAll(make([]byte, 4096), nil)
	if _, err := decompress(payload, Zstd, 1024); err == nil {
		t.Error("decompress() of an oversized zstd frame succeeded")
	}
	if _, err := decompress([]byte{1, 2, 3}, Zstd, 1024); err == nil {
		t.Error("decompress() of a garbage zstd frame succeeded")
	}
	got, err := decompress(payload, Zstd, 4096)
	if err != nil || len(got) != 4096 {
		t.Errorf("decompress() = %d bytes, %v, want 4096", len(got), err)
	}
}
