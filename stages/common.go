// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package stages

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/xstage"
	"github.com/gogpu/xstage/video"
)

// ErrUnsupportedFormat is returned by ConfigureResource for input formats a
// stage cannot process. It surfaces wrapped in xstage.ErrConfigFailed.
var ErrUnsupportedFormat = errors.New("stages: unsupported format")

// withDefaults prepends the stock self-allocation option so that caller
// options override it.
func withDefaults(capacity int, opts []xstage.Option) []xstage.Option {
	return append([]xstage.Option{xstage.WithAllocator(capacity)}, opts...)
}

// acceptFormat checks that in has one of the allowed formats. An empty list
// allows every format.
func acceptFormat(name string, in video.Info, allowed ...video.Format) error {
	if len(allowed) == 0 || slices.Contains(allowed, in.Format) {
		return nil
	}
	return fmt.Errorf("%s: %w: %v", name, ErrUnsupportedFormat, in.Format)
}

// matchInput sets the output layout to the input layout unless the caller
// already chose one, in which case the two must agree in format and size.
func matchInput(s *xstage.Stage, in video.Info) error {
	out := s.OutputInfo()
	if out.IsZero() {
		return s.SetOutputInfo(in)
	}
	if out.Format != in.Format || out.Width != in.Width || out.Height != in.Height {
		return fmt.Errorf("%s: output %v does not match input %v: %w",
			s.Name(), out, in, xstage.ErrInvalidParam)
	}
	return nil
}

// requireOut returns the output buffer of p or an error when there is none.
func requireOut(s *xstage.Stage, p *xstage.Params) (*video.Buffer, error) {
	out := p.Out()
	if out == nil {
		return nil, fmt.Errorf("%s: %w: no output buffer", s.Name(), xstage.ErrInvalidParam)
	}
	return out, nil
}
