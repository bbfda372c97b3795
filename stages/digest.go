// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package stages

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/gogpu/xstage"
	"github.com/gogpu/xstage/video"
)

// Fingerprint is the BLAKE3 digest of a frame's visible pixels. Stride
// padding is not hashed, so equal images hash equal across layouts.
type Fingerprint struct {
	Sum [32]byte
}

// MetaName implements xstage.Meta.
func (Fingerprint) MetaName() string { return "fingerprint" }

// String returns the digest in hex.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f.Sum[:])
}

// KeySize is the length of a Digest key.
const KeySize = 32

// Digest is a pass-through stage attaching a Fingerprint to every frame.
// The output is the input buffer itself; the stage never allocates.
type Digest struct {
	*xstage.Stage
	xstage.PoolAllocator

	key []byte
}

// NewDigest creates an unkeyed digest stage.
func NewDigest(opts ...xstage.Option) *Digest {
	d := &Digest{}
	d.Stage = xstage.New("digest", d, opts...)
	return d
}

// NewKeyedDigest creates a digest stage using BLAKE3 keyed hashing, so
// fingerprints from differently keyed pipelines never collide.
func NewKeyedDigest(key []byte, opts ...xstage.Option) (*Digest, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("stages: digest key is %d bytes, want %d: %w", len(key), KeySize, xstage.ErrInvalidParam)
	}
	d := &Digest{key: append([]byte(nil), key...)}
	d.Stage = xstage.New("digest", d, opts...)
	return d, nil
}

// ConfigureResource accepts every format.
func (d *Digest) ConfigureResource(p *xstage.Params) error {
	if d.OutputInfo().IsZero() {
		return d.SetOutputInfo(p.In().Info())
	}
	return nil
}

// StartWork hashes In and passes it through as Out.
func (d *Digest) StartWork(p *xstage.Params, _ xstage.Done) error {
	if p.Out() == nil {
		p.SetOut(p.In())
	}
	sum, err := d.Sum(p.In())
	if err != nil {
		return err
	}
	return p.AddMeta(sum)
}

// Sum returns the fingerprint of b.
func (d *Digest) Sum(b *video.Buffer) (Fingerprint, error) {
	h := blake3.New()
	if d.key != nil {
		var err error
		if h, err = blake3.NewKeyed(d.key); err != nil {
			return Fingerprint{}, fmt.Errorf("%s: %w", d.Name(), err)
		}
	}
	info := b.Info()
	for plane := range info.Format.Planes() {
		for y := range info.Plane(plane).Height {
			_, _ = h.Write(b.Row(plane, y))
		}
	}
	var f Fingerprint
	copy(f.Sum[:], h.Sum(nil))
	return f, nil
}
