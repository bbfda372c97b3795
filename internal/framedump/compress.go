package framedump

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies how a payload is stored. The values are part of
// the file format.
type Compression uint8

const (
	// None stores the payload raw.
	None Compression = 0
	// LZ4 is LZ4 block compression, the fast default.
	LZ4 Compression = 1
	// Zstd is zstd at the default level, for smaller dumps.
	Zstd Compression = 2
)

func (c Compression) valid() bool {
	return c <= Zstd
}

// String returns the compression name.
func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a compression name.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none", "":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	default:
		return 0, fmt.Errorf("framedump: unknown compression %q", name)
	}
}

// zstd encoders and decoders are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("framedump: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxFrameSize))
	if err != nil {
		panic("framedump: zstd decoder initialization failed: " + err.Error())
	}
}

// compress returns the payload and the compression actually used. Data
// that does not shrink is stored raw.
func compress(data []byte, c Compression) ([]byte, Compression, error) {
	switch c {
	case None:
		return data, None, nil
	case LZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, dst, nil)
		if err != nil {
			return nil, None, fmt.Errorf("lz4 compress: %w", err)
		}
		if n == 0 || n >= len(data) {
			return data, None, nil
		}
		return dst[:n], LZ4, nil
	case Zstd:
		out := zstdEncoder.EncodeAll(data, nil)
		if len(out) >= len(data) {
			return data, None, nil
		}
		return out, Zstd, nil
	default:
		return nil, None, fmt.Errorf("unsupported compression %v", c)
	}
}

func decompress(payload []byte, c Compression, size int) ([]byte, error) {
	switch c {
	case None:
		if len(payload) != size {
			return nil, fmt.Errorf("raw payload is %d bytes, want %d", len(payload), size)
		}
		return payload, nil
	case LZ4:
		dst := make([]byte, size)
		n, err := lz4.UncompressBlock(payload, dst)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if n != size {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, want %d", n, size)
		}
		return dst, nil
	case Zstd:
		var h zstd.Header
		if err := h.Decode(payload); err != nil {
			return nil, fmt.Errorf("zstd header: %w", err)
		}
		if h.HasFCS && h.FrameContentSize != uint64(size) {
			return nil, fmt.Errorf("zstd frame holds %d bytes, want %d", h.FrameContentSize, size)
		}
		dst, err := zstdDecoder.DecodeAll(payload, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(dst) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, want %d", len(dst), size)
		}
		return dst, nil
	default:
		return nil, fmt.Errorf("unsupported compression %v", c)
	}
}
