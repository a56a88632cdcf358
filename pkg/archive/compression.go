package archive

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the compression layer around the tar stream.
type Compression uint8

const (
	// CompressionAuto infers the layer from magic bytes (reading) or the
	// file extension (writing).
	CompressionAuto Compression = iota
	CompressionNone
	CompressionGzip
	CompressionZstd
	CompressionLZ4
)

// String returns the human-readable name of a compression layer.
func (c Compression) String() string {
	switch c {
	case CompressionAuto:
		return "auto"
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a compression name.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return CompressionAuto, nil
	case "none", "tar":
		return CompressionNone, nil
	case "gzip", "gz", "tgz":
		return CompressionGzip, nil
	case "zstd", "zst":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression: %q", name)
	}
}

// Level is a compression effort, mapped onto each algorithm's own scale.
type Level uint8

const (
	LevelDefault Level = iota
	LevelFastest
	LevelBetter
	LevelBest
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelFastest:
		return "fastest"
	case LevelBetter:
		return "better"
	case LevelBest:
		return "best"
	default:
		return "default"
	}
}

// ParseLevel parses a level name.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return LevelDefault, nil
	case "fastest", "fast":
		return LevelFastest, nil
	case "better":
		return LevelBetter, nil
	case "best":
		return LevelBest, nil
	default:
		return 0, fmt.Errorf("unknown compression level: %q", name)
	}
}

// CompressionForPath infers the output compression from a file name.
// Unknown extensions get gzip.
func CompressionForPath(path string) Compression {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".tzst"):
		return CompressionZstd
	case strings.HasSuffix(lower, ".tar.lz4"):
		return CompressionLZ4
	case strings.HasSuffix(lower, ".tar"):
		return CompressionNone
	default:
		return CompressionGzip
	}
}

var (
	magicGzip = []byte{0x1f, 0x8b}
	magicZstd = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicLZ4  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// sniff inspects the first bytes without consuming them.
func sniff(br *bufio.Reader) Compression {
	head, _ := br.Peek(4)
	switch {
	case bytes.HasPrefix(head, magicZstd):
		return CompressionZstd
	case bytes.HasPrefix(head, magicLZ4):
		return CompressionLZ4
	case bytes.HasPrefix(head, magicGzip):
		return CompressionGzip
	default:
		return CompressionNone
	}
}

func newDecompressor(r io.Reader, c Compression) (io.ReadCloser, error) {
	switch c {
	case CompressionNone:
		return io.NopCloser(r), nil
	case CompressionGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		return zr, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		return zr.IOReadCloser(), nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("unsupported compression: %s", c)
	}
}

// compressor is one compression layer on the write side. abandon
// releases the layer without completing its stream.
type compressor struct {
	io.Writer
	flush   func() error
	close   func() error
	abandon func()
}

func newCompressor(w io.Writer, c Compression, level Level) (*compressor, error) {
	switch c {
	case CompressionNone:
		return &compressor{
			Writer:  w,
			flush:   func() error { return nil },
			close:   func() error { return nil },
			abandon: func() {},
		}, nil

	case CompressionGzip:
		zw, err := gzip.NewWriterLevel(w, gzipLevel(level))
		if err != nil {
			return nil, fmt.Errorf("gzip writer: %w", err)
		}
		return &compressor{
			Writer:  zw,
			flush:   zw.Flush,
			close:   zw.Close,
			abandon: func() { zw.Reset(io.Discard) },
		}, nil

	case CompressionZstd:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstdLevel(level)))
		if err != nil {
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		return &compressor{
			Writer: zw,
			flush:  zw.Flush,
			close:  zw.Close,
			abandon: func() {
				zw.Reset(io.Discard)
				_ = zw.Close()
			},
		}, nil

	case CompressionLZ4:
		zw := lz4.NewWriter(w)
		if err := zw.Apply(lz4.CompressionLevelOption(lz4Level(level))); err != nil {
			return nil, fmt.Errorf("lz4 writer: %w", err)
		}
		return &compressor{
			Writer:  zw,
			flush:   zw.Flush,
			close:   zw.Close,
			abandon: func() { zw.Reset(io.Discard) },
		}, nil

	default:
		return nil, fmt.Errorf("unsupported compression: %s", c)
	}
}

func gzipLevel(l Level) int {
	switch l {
	case LevelFastest:
		return gzip.BestSpeed
	case LevelBetter:
		return 7
	case LevelBest:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func zstdLevel(l Level) zstd.EncoderLevel {
	switch l {
	case LevelFastest:
		return zstd.SpeedFastest
	case LevelBetter:
		return zstd.SpeedBetterCompression
	case LevelBest:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

func lz4Level(l Level) lz4.CompressionLevel {
	switch l {
	case LevelFastest:
		return lz4.Fast
	case LevelBetter:
		return lz4.Level5
	case LevelBest:
		return lz4.Level9
	default:
		return lz4.Fast
	}
}
