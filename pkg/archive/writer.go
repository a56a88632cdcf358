package archive

import (
	"archive/tar"
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Options configures a Writer.
type Options struct {
	Compression Compression
	Level       Level
	// Wrap, when set, wraps the raw output stream below the compression
	// layer (used for byte counting).
	Wrap func(io.Writer) io.Writer
}

// ErrClosed is returned by operations on a finished or closed Writer.
var ErrClosed = errors.New("archive: writer closed")

// Writer appends members to a compressed tar archive. It is not safe
// for concurrent use.
type Writer struct {
	file        *os.File
	buf         *bufio.Writer
	comp        *compressor
	tw          *tar.Writer
	compression Compression
	closed      bool
}

// Create creates (or truncates) the archive at path.
func Create(path string, opts Options) (*Writer, error) {
	if opts.Compression == CompressionAuto {
		opts.Compression = CompressionForPath(path)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	w, err := NewWriter(f, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.file = f
	return w, nil
}

// NewWriter writes an archive to w. CompressionAuto means gzip.
func NewWriter(w io.Writer, opts Options) (*Writer, error) {
	if opts.Compression == CompressionAuto {
		opts.Compression = CompressionGzip
	}
	if opts.Wrap != nil {
		w = opts.Wrap(w)
	}
	buf := bufio.NewWriterSize(w, 256*1024)
	comp, err := newCompressor(buf, opts.Compression, opts.Level)
	if err != nil {
		return nil, err
	}
	return &Writer{
		buf:         buf,
		comp:        comp,
		tw:          tar.NewWriter(comp),
		compression: opts.Compression,
	}, nil
}

// Compression returns the compression layer in use.
func (w *Writer) Compression() Compression {
	return w.compression
}

// Put appends one member. Directories are written with a trailing slash
// and no body; data is ignored for them.
func (w *Writer) Put(name string, isDir bool, data []byte, modTime time.Time) error {
	if w.closed {
		return ErrClosed
	}
	if modTime.IsZero() {
		modTime = time.Unix(0, 0)
	}

	hdr := &tar.Header{
		Name:    name,
		ModTime: modTime,
	}
	if isDir {
		if !strings.HasSuffix(hdr.Name, "/") {
			hdr.Name += "/"
		}
		hdr.Typeflag = tar.TypeDir
		hdr.Mode = 0755
	} else {
		hdr.Typeflag = tar.TypeReg
		hdr.Mode = 0644
		hdr.Size = int64(len(data))
	}

	if err := w.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write header %s: %w", name, err)
	}
	if !isDir && len(data) > 0 {
		if _, err := w.tw.Write(data); err != nil {
			return fmt.Errorf("write body %s: %w", name, err)
		}
	}
	return nil
}

// Flush pushes buffered data through every layer to the output.
func (w *Writer) Flush() error {
	if w.closed {
		return ErrClosed
	}
	if err := w.tw.Flush(); err != nil {
		return fmt.Errorf("flush tar: %w", err)
	}
	if err := w.comp.flush(); err != nil {
		return fmt.Errorf("flush %s: %w", w.compression, err)
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

// Finish writes the tar trailer, completes the compressed stream and
// closes the file. The archive is only valid after Finish succeeds.
func (w *Writer) Finish() error {
	if w.closed {
		return ErrClosed
	}
	w.closed = true

	if err := w.tw.Close(); err != nil {
		w.release()
		return fmt.Errorf("write tar trailer: %w", err)
	}
	if err := w.comp.close(); err != nil {
		w.release()
		return fmt.Errorf("close %s: %w", w.compression, err)
	}
	if err := w.buf.Flush(); err != nil {
		w.release()
		return fmt.Errorf("flush output: %w", err)
	}
	if w.file != nil {
		if err := w.file.Sync(); err != nil {
			w.file.Close()
			return fmt.Errorf("sync output: %w", err)
		}
		if err := w.file.Close(); err != nil {
			return fmt.Errorf("close output: %w", err)
		}
	}
	return nil
}

// Close releases the writer without sealing the archive. It is a no-op
// after Finish.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.comp.abandon()
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}

func (w *Writer) release() {
	w.comp.abandon()
	if w.file != nil {
		w.file.Close()
	}
}
