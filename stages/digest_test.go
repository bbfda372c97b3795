package stages

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gogpu/xstage"
	"github.com/gogpu/xstage/video"
)

func fingerprint(t *testing.T, s *Digest, in *video.Buffer) Fingerprint {
	t.Helper()
	p := xstage.NewParams(in, nil)
	defer p.Release()
	if err := s.Process(p, true); err != nil {
		t.Fatalf("Process() = %v", err)
	}
	if p.Out() != in {
		t.Error("digest did not pass the input through")
	}
	f, ok := xstage.FindMeta[Fingerprint](p)
	if !ok {
		t.Fatal("no fingerprint attached")
	}
	return f
}

func TestDigestDeterministic(t *testing.T) {
	s := NewDigest()
	defer s.Terminate()

	a := fingerprint(t, s, solidFrame(t, video.FormatRGBA8, 4, 4, 9))
	b := fingerprint(t, s, solidFrame(t, video.FormatRGBA8, 4, 4, 9))
	c := fingerprint(t, s, solidFrame(t, video.FormatRGBA8, 4, 4, 10))

	if a != b {
		t.Errorf("equal frames hash differently: %v vs %v", a, b)
	}
	if a == c {
		t.Error("different frames hash equal")
	}
	if len(a.String()) != 64 {
		t.Errorf("String() = %q, want 64 hex digits", a.String())
	}
	if s.Allocator() != nil {
		t.Error("digest should not own a pool")
	}
}

func TestDigestIgnoresStridePadding(t *testing.T) {
	s := NewDigest()
	defer s.Terminate()

	packed := solidFrame(t, video.FormatGray8, 3, 2, 7)
	info, err := video.NewInfoAligned(video.FormatGray8, 3, 2, 8)
	if err != nil {
		t.Fatal(err)
	}
	data := bytes.Repeat([]byte{0xee}, info.Size)
	padded, err := video.FromBytes(info, data)
	if err != nil {
		t.Fatal(err)
	}
	defer padded.Release()
	for y := range 2 {
		copy(padded.Row(0, y), packed.Row(0, y))
	}

	if a, b := fingerprint(t, s, packed), mustSum(t, s, padded); a != b {
		t.Errorf("padded frame hashes differently: %v vs %v", a, b)
	}
}

func mustSum(t *testing.T, d *Digest, b *video.Buffer) Fingerprint {
	t.Helper()
	f, err := d.Sum(b)
	if err != nil {
		t.Fatalf("Sum() = %v", err)
	}
	return f
}

func TestKeyedDigest(t *testing.T) {
	key := bytes.Repeat([]byte{'k'}, KeySize)
	keyed, err := NewKeyedDigest(key)
	if err != nil {
		t.Fatalf("NewKeyedDigest() = %v", err)
	}
	defer keyed.Terminate()
	plain := NewDigest()
	defer plain.Terminate()

	frame := solidFrame(t, video.FormatGray8, 4, 4, 1)
	if mustSum(t, keyed, frame) == mustSum(t, plain, frame) {
		t.Error("keyed and unkeyed digests agree")
	}

	if _, err := NewKeyedDigest([]byte("short")); !errors.Is(err, xstage.ErrInvalidParam) {
		t.Errorf("NewKeyedDigest(short) = %v, want ErrInvalidParam", err)
	}
}
