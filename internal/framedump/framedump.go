// Package framedump reads and writes frame dump files: a stream of video
// frames with their layout and metadata, for offline inspection of a
// pipeline's output.
//
// A dump starts with the 4-byte magic "XSFD". Each record is a 4-byte
// big-endian header length, a CBOR encoded Header, and the payload of
// Header.PayloadLen bytes. The payload is the frame's full buffer
// (including stride padding), compressed as Header.Compression says.
package framedump

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/gogpu/xstage/pose"
	"github.com/gogpu/xstage/video"
)

// Magic starts every dump.
const Magic = "XSFD"

// Limits applied when reading.
const (
	maxHeaderLen = 64 << 10
	maxFrameSize = 1 << 30
)

var (
	// ErrBadMagic is returned when a stream does not start with Magic.
	ErrBadMagic = errors.New("framedump: not a frame dump")

	// ErrCorrupt is returned for records that cannot be decoded.
	ErrCorrupt = errors.New("framedump: corrupt record")
)

// Header describes one frame record.
type Header struct {
	Index       uint64               `cbor:"index"`
	Format      string               `cbor:"format"`
	Width       int                  `cbor:"width"`
	Height      int                  `cbor:"height"`
	Strides     [video.MaxPlanes]int `cbor:"strides"`
	Offsets     [video.MaxPlanes]int `cbor:"offsets"`
	Size        int                  `cbor:"size"`
	Compression Compression          `cbor:"compression"`
	PayloadLen  int                  `cbor:"payload_len"`
	Pose        *pose.DevicePose     `cbor:"pose,omitempty"`
	Digest      []byte               `cbor:"digest,omitempty"`
}

// Info returns the buffer layout the header describes.
func (h *Header) Info() (video.Info, error) {
	format, ok := video.ParseFormat(h.Format)
	if !ok {
		return video.Info{}, fmt.Errorf("%w: unknown format %q", ErrCorrupt, h.Format)
	}
	info := video.Info{
		Format:  format,
		Width:   h.Width,
		Height:  h.Height,
		Strides: h.Strides,
		Offsets: h.Offsets,
		Size:    h.Size,
	}
	if err := info.Validate(); err != nil {
		return video.Info{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return info, nil
}

// Frame is one decoded or to-be-written record.
type Frame struct {
	Index  uint64
	Buffer *video.Buffer
	Pose   *pose.DevicePose
	Digest []byte
}

// encMode uses Core Deterministic Encoding so equal frames produce equal
// headers.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("framedump: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{MaxArrayElements: 1024, MaxMapPairs: 64}.DecMode()
	if err != nil {
		panic("framedump: CBOR decoder initialization failed: " + err.Error())
	}
}

// Writer writes a dump.
type Writer struct {
	w           *bufio.Writer
	compression Compression
	frames      int
}

// NewWriter writes the magic to w and returns a Writer compressing
// payloads with c.
func NewWriter(w io.Writer, c Compression) (*Writer, error) {
	if !c.valid() {
		return nil, fmt.Errorf("framedump: unsupported compression %v", c)
	}
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(Magic); err != nil {
		return nil, err
	}
	return &Writer{w: bw, compression: c}, nil
}

// WriteFrame appends f. Payloads that do not shrink are stored raw.
func (w *Writer) WriteFrame(f Frame) error {
	if f.Buffer == nil {
		return fmt.Errorf("framedump: frame %d has no buffer", f.Index)
	}
	info := f.Buffer.Info()
	payload, used, err := compress(f.Buffer.Data()[:info.Size], w.compression)
	if err != nil {
		return fmt.Errorf("framedump: frame %d: %w", f.Index, err)
	}

	h := Header{
		Index:       f.Index,
		Format:      info.Format.String(),
		Width:       info.Width,
		Height:      info.Height,
		Strides:     info.Strides,
		Offsets:     info.Offsets,
		Size:        info.Size,
		Compression: used,
		PayloadLen:  len(payload),
		Pose:        f.Pose,
		Digest:      f.Digest,
	}
	hdr, err := encMode.Marshal(&h)
	if err != nil {
		return fmt.Errorf("framedump: frame %d: encode header: %w", f.Index, err)
	}

	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(hdr)))
	if _, err := w.w.Write(length[:]); err != nil {
		return err
	}
	if _, err := w.w.Write(hdr); err != nil {
		return err
	}
	if _, err := w.w.Write(payload); err != nil {
		return err
	}
	w.frames++
	return nil
}

// Frames returns the number of frames written.
func (w *Writer) Frames() int {
	return w.frames
}

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// Reader reads a dump.
type Reader struct {
	r *bufio.Reader
}

// NewReader checks the magic and returns a Reader.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	var magic [len(Magic)]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrBadMagic
		}
		return nil, err
	}
	if string(magic[:]) != Magic {
		return nil, ErrBadMagic
	}
	return &Reader{r: br}, nil
}

// Next decodes the next frame. Its Buffer is standalone and owned by the
// caller. Next returns io.EOF after the last frame.
func (r *Reader) Next() (Frame, error) {
	var length [4]byte
	if _, err := io.ReadFull(r.r, length[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Frame{}, io.EOF
		}
		return Frame{}, fmt.Errorf("%w: record length: %w", ErrCorrupt, err)
	}
	n := binary.BigEndian.Uint32(length[:])
	if n == 0 || n > maxHeaderLen {
		return Frame{}, fmt.Errorf("%w: header length %d", ErrCorrupt, n)
	}
	hdr := make([]byte, n)
	if _, err := io.ReadFull(r.r, hdr); err != nil {
		return Frame{}, fmt.Errorf("%w: header: %w", ErrCorrupt, err)
	}
	var h Header
	if err := decMode.Unmarshal(hdr, &h); err != nil {
		return Frame{}, fmt.Errorf("%w: header: %w", ErrCorrupt, err)
	}
	if h.Size <= 0 || h.Size > maxFrameSize || h.PayloadLen < 0 || h.PayloadLen > h.Size {
		return Frame{}, fmt.Errorf("%w: frame %d: size %d payload %d", ErrCorrupt, h.Index, h.Size, h.PayloadLen)
	}
	info, err := h.Info()
	if err != nil {
		return Frame{}, fmt.Errorf("frame %d: %w", h.Index, err)
	}

	payload := make([]byte, h.PayloadLen)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return Frame{}, fmt.Errorf("%w: frame %d payload: %w", ErrCorrupt, h.Index, err)
	}
	data, err := decompress(payload, h.Compression, h.Size)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: frame %d: %w", ErrCorrupt, h.Index, err)
	}
	buf, err := video.FromBytes(info, data)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: frame %d: %w", ErrCorrupt, h.Index, err)
	}
	return Frame{Index: h.Index, Buffer: buf, Pose: h.Pose, Digest: h.Digest}, nil
}
