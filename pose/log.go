// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pose

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"unicode/utf8"
)

// ErrMalformed reports a pose log value that is not a number.
var ErrMalformed = errors.New("pose: malformed pose data")

// maxToken bounds a single value in a pose log.
const maxToken = 64 * 1024

// ReadLog parses a pose log: a stream of numbers separated by spaces,
// tabs, commas or line breaks, Members values per record in the order
// orientation (4), translation (3), timestamp in seconds. A trailing
// incomplete record is dropped.
func ReadLog(r io.Reader) ([]DevicePose, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxToken)
	sc.Split(scanValues)

	var (
		poses []DevicePose
		cur   DevicePose
		n     int
	)
	for sc.Scan() {
		tok := sc.Text()
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: value %d (%q) of record %d", ErrMalformed, n%Members, tok, n/Members)
		}
		switch x := n % Members; {
		case x < OrientationSize:
			cur.Orientation[x] = v
		case x < OrientationSize+TranslationSize:
			cur.Translation[x-OrientationSize] = v
		default:
			cur.Timestamp = int64(math.Round(v * 1e6))
			poses = append(poses, cur)
			cur = DevicePose{}
		}
		n++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("pose: read log: %w", err)
	}
	return poses, nil
}

// ReadFile parses the pose log at path.
func ReadFile(path string) ([]DevicePose, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pose: %w", err)
	}
	defer f.Close()
	return ReadLog(f)
}

func isSeparator(r rune) bool {
	switch r {
	case ' ', '\t', ',', '\r', '\n':
		return true
	}
	return false
}

// scanValues is a bufio.SplitFunc returning separator delimited values.
func scanValues(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) {
		r, width := utf8.DecodeRune(data[start:])
		if !isSeparator(r) {
			break
		}
		start += width
	}
	for i := start; i < len(data); {
		r, width := utf8.DecodeRune(data[i:])
		if isSeparator(r) {
			return i + width, data[start:i], nil
		}
		i += width
	}
	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	return start, nil, nil
}
