package stages

import (
	"sync"
	"testing"

	"github.com/gogpu/xstage"
	"github.com/gogpu/xstage/video"
)

// newFrame returns a standalone buffer whose bytes are produced by fill,
// called with the plane, column byte and row of each visible byte.
func newFrame(t testing.TB, format video.Format, w, h int, fill func(plane, x, y int) byte) *video.Buffer {
	t.Helper()
	info, err := video.NewInfo(format, w, h)
	if err != nil {
		t.Fatalf("NewInfo(%v, %d, %d): %v", format, w, h, err)
	}
	b, err := video.NewBuffer(info)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	for plane := range format.Planes() {
		for y := range info.Plane(plane).Height {
			row := b.Row(plane, y)
			for x := range row {
				row[x] = fill(plane, x, y)
			}
		}
	}
	t.Cleanup(b.Release)
	return b
}

// solidFrame returns a frame with every byte set to v.
func solidFrame(t testing.TB, format video.Format, w, h int, v byte) *video.Buffer {
	t.Helper()
	return newFrame(t, format, w, h, func(int, int, int) byte { return v })
}

// rgbaFrame returns an RGBA8 frame filled with one pixel value.
func rgbaFrame(t testing.TB, w, h int, r, g, b, a byte) *video.Buffer {
	t.Helper()
	px := [4]byte{r, g, b, a}
	return newFrame(t, video.FormatRGBA8, w, h, func(_, x, _ int) byte { return px[x%4] })
}

// completed is one callback invocation.
type completed struct {
	p   *xstage.Params
	err error
}

// collector records callbacks in order.
type collector struct {
	mu    sync.Mutex
	calls []completed
}

func (c *collector) OnComplete(_ *xstage.Stage, p *xstage.Params, err error) {
	c.mu.Lock()
	c.calls = append(c.calls, completed{p, err})
	c.mu.Unlock()
}

func (c *collector) snapshot() []completed {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]completed(nil), c.calls...)
}

func execute(t *testing.T, s interface {
	Execute(*video.Buffer) (*video.Buffer, error)
}, in *video.Buffer) *video.Buffer {
	t.Helper()
	out, err := s.Execute(in)
	if err != nil {
		t.Fatalf("Execute() = %v", err)
	}
	t.Cleanup(out.Release)
	return out
}

// poolCapacity returns the capacity of a stage's private pool, or -1.
func poolCapacity(s *xstage.Stage) int {
	pool, ok := s.Allocator().(*video.Pool)
	if !ok {
		return -1
	}
	return pool.Capacity()
}
