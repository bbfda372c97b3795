package xstage

import "github.com/gogpu/xstage/video"

// Params is the unit of work passed to a Stage: an input buffer, an output
// buffer (nil until a stage allocates one) and per-invocation metadata.
//
// Params holds one reference on each buffer it carries. Release drops
// them; the buffers go back to their pools once every other holder has
// released too. Callers typically release a Params from the completion
// callback, or right after a synchronous Process returns.
type Params struct {
	in    *video.Buffer
	out   *video.Buffer
	metas MetaList
	sync  bool

	released bool
}

// NewParams returns Params holding references to in and, if non-nil, out.
func NewParams(in, out *video.Buffer) *Params {
	p := &Params{}
	p.SetIn(in)
	p.SetOut(out)
	return p
}

// In returns the input buffer.
func (p *Params) In() *video.Buffer {
	if p == nil {
		return nil
	}
	return p.in
}

// Out returns the output buffer, or nil if none is assigned yet.
func (p *Params) Out() *video.Buffer {
	if p == nil {
		return nil
	}
	return p.out
}

// SetIn replaces the input buffer, retaining b and releasing the previous one.
func (p *Params) SetIn(b *video.Buffer) {
	p.in = swap(p.in, b)
}

// SetOut replaces the output buffer, retaining b and releasing the previous one.
func (p *Params) SetOut(b *video.Buffer) {
	p.out = swap(p.out, b)
}

// adoptOut installs b as output, taking over the caller's reference.
func (p *Params) adoptOut(b *video.Buffer) {
	if p.out != nil {
		p.out.Release()
	}
	p.out = b
}

func swap(old, b *video.Buffer) *video.Buffer {
	if b == old {
		return old
	}
	if b != nil {
		b.Retain()
	}
	if old != nil {
		old.Release()
	}
	return b
}

// Sync reports whether the running invocation was requested synchronously.
// Stages that hold look-ahead state use it to complete causally instead of
// waiting for frames that a blocked caller cannot deliver.
func (p *Params) Sync() bool {
	return p != nil && p.sync
}

// Metas returns the metadata container.
func (p *Params) Metas() *MetaList {
	if p == nil {
		return &MetaList{}
	}
	return &p.metas
}

// AddMeta attaches m. See MetaList.Add.
func (p *Params) AddMeta(m Meta) error {
	return p.metas.Add(m)
}

// Release drops the buffer references. Release is idempotent and a no-op
// on a nil Params, which callbacks receive for invalid Process calls.
func (p *Params) Release() {
	if p == nil || p.released {
		return
	}
	p.released = true
	p.SetIn(nil)
	p.SetOut(nil)
}
