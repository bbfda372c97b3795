// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package pose provides the device pose metadata carried alongside video
// frames and a reader for pose logs recorded by the capture device.
package pose

import (
	"fmt"
	"math"
)

// Record layout of a pose log entry.
const (
	OrientationSize = 4
	TranslationSize = 3

	// Members is the number of values per log record: orientation,
	// translation and a timestamp.
	Members = OrientationSize + TranslationSize + 1
)

// DevicePose is the device orientation and position sampled at a frame.
// It implements xstage.Meta and is attached to a frame's Params.
type DevicePose struct {
	// Orientation is a unit quaternion (x, y, z, w).
	Orientation [OrientationSize]float64 `cbor:"orientation"`
	// Translation is the device position in meters.
	Translation [TranslationSize]float64 `cbor:"translation"`
	// Timestamp is the sample time in microseconds.
	Timestamp int64 `cbor:"timestamp"`
}

// MetaName implements xstage.Meta.
func (DevicePose) MetaName() string { return "device-pose" }

// String implements fmt.Stringer.
func (d DevicePose) String() string {
	return fmt.Sprintf("pose@%dus q=%.4f t=%.4f", d.Timestamp, d.Orientation, d.Translation)
}

// Normalized returns d with a unit length orientation. A zero quaternion
// becomes the identity.
func (d DevicePose) Normalized() DevicePose {
	var n float64
	for _, v := range d.Orientation {
		n += v * v
	}
	if n == 0 {
		d.Orientation = [OrientationSize]float64{0, 0, 0, 1}
		return d
	}
	n = math.Sqrt(n)
	for i := range d.Orientation {
		d.Orientation[i] /= n
	}
	return d
}

// Average returns the weighted mean of poses. Orientations are summed
// after aligning each quaternion to the hemisphere of the first, then
// normalized, which approximates spherical averaging for the small angular
// spread of neighboring frames. Weights need not be normalized; missing
// weights count as zero. The timestamp is the weighted mean timestamp.
func Average(poses []DevicePose, weights []float64) (DevicePose, error) {
	if len(poses) == 0 {
		return DevicePose{}, fmt.Errorf("%w: no poses", ErrMalformed)
	}
	var (
		out   DevicePose
		total float64
		ts    float64
	)
	ref := poses[0].Orientation
	for i, p := range poses {
		if i >= len(weights) {
			break
		}
		w := weights[i]
		if w == 0 {
			continue
		}
		sign := 1.0
		if dot(ref, p.Orientation) < 0 {
			sign = -1
		}
		for k, v := range p.Orientation {
			out.Orientation[k] += sign * w * v
		}
		for k, v := range p.Translation {
			out.Translation[k] += w * v
		}
		ts += w * float64(p.Timestamp)
		total += w
	}
	if total == 0 {
		return DevicePose{}, fmt.Errorf("%w: weights sum to zero", ErrMalformed)
	}
	for k := range out.Translation {
		out.Translation[k] /= total
	}
	out.Timestamp = int64(math.Round(ts / total))
	return out.Normalized(), nil
}

func dot(a, b [OrientationSize]float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
