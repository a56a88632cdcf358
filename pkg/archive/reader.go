// Package archive reads and writes compressed tar archives one entry at
// a time. Readers sniff the compression layer (gzip, zstd, lz4 or none)
// from magic bytes; writers pick it from the output file extension.
package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Entry describes one archive member.
type Entry struct {
	Name    string
	IsDir   bool
	Size    int64
	Mode    int64
	ModTime time.Time
	// Readable is false for members without independently extractable
	// data: links, device nodes, FIFOs and global headers.
	Readable bool
}

// maxPrealloc caps the buffer reserved up front from a header's size.
const maxPrealloc = 64 << 20

// Reader iterates over the members of a tar archive.
type Reader struct {
	file        *os.File
	decomp      io.ReadCloser
	tr          *tar.Reader
	compression Compression
	current     *tar.Header
}

// Open opens the archive at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.file = f
	return r, nil
}

// NewReader reads an archive from r. Closing the Reader does not close r.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReaderSize(r, 256*1024)
	c := sniff(br)
	decomp, err := newDecompressor(br, c)
	if err != nil {
		return nil, err
	}
	return &Reader{
		decomp:      decomp,
		tr:          tar.NewReader(decomp),
		compression: c,
	}, nil
}

// Compression returns the detected compression layer.
func (r *Reader) Compression() Compression {
	return r.compression
}

// Next advances to the next member. It returns io.EOF at the end of the
// archive.
func (r *Reader) Next() (Entry, error) {
	hdr, err := r.tr.Next()
	if err != nil {
		r.current = nil
		if errors.Is(err, io.EOF) {
			return Entry{}, io.EOF
		}
		return Entry{}, fmt.Errorf("read entry header: %w", err)
	}
	r.current = hdr

	isDir := hdr.Typeflag == tar.TypeDir || strings.HasSuffix(hdr.Name, "/")
	return Entry{
		Name:     hdr.Name,
		IsDir:    isDir,
		Size:     hdr.Size,
		Mode:     hdr.Mode,
		ModTime:  hdr.ModTime,
		Readable: isDir || isRegular(hdr.Typeflag),
	}, nil
}

// ReadAll returns the payload of the current member.
func (r *Reader) ReadAll() ([]byte, error) {
	if r.current == nil {
		return nil, errors.New("archive: ReadAll called without a current entry")
	}
	size := r.current.Size
	if size < 0 || size > maxPrealloc {
		size = maxPrealloc
	}
	buf := bytes.NewBuffer(make([]byte, 0, size))
	if _, err := io.Copy(buf, r.tr); err != nil {
		return nil, fmt.Errorf("read entry %s: %w", r.current.Name, err)
	}
	return buf.Bytes(), nil
}

// Close releases the decompressor and, when opened by Open, the file.
func (r *Reader) Close() error {
	err := r.decomp.Close()
	if r.file != nil {
		if cerr := r.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func isRegular(flag byte) bool {
	//nolint:staticcheck // TypeRegA still appears in old archives.
	return flag == tar.TypeReg || flag == tar.TypeRegA
}
