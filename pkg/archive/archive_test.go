package archive

import (
	"archive/tar"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type member struct {
	name  string
	isDir bool
	data  []byte
}

func readMembers(t *testing.T, path string) ([]member, Compression) {
	t.Helper()
	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	var out []member
	for {
		e, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		m := member{name: e.Name, isDir: e.IsDir}
		if !e.IsDir {
			m.data, err = r.ReadAll()
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
		}
		out = append(out, m)
	}
	return out, r.Compression()
}

func TestWriteReadRoundTrip(t *testing.T) {
	tests := []struct {
		file string
		want Compression
	}{
		{"out.tar.gz", CompressionGzip},
		{"out.tgz", CompressionGzip},
		{"out.tar.zst", CompressionZstd},
		{"out.tar.lz4", CompressionLZ4},
		{"out.tar", CompressionNone},
	}

	payload := bytes.Repeat([]byte("<record>data</record>\n"), 500)
	modTime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, tc := range tests {
		t.Run(tc.file, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", tc.file)
			w, err := Create(path, Options{})
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if w.Compression() != tc.want {
				t.Fatalf("writer compression = %s, want %s", w.Compression(), tc.want)
			}
			if err := w.Put("records", true, nil, modTime); err != nil {
				t.Fatalf("Put dir: %v", err)
			}
			if err := w.Put("records/a.xml", false, payload, modTime); err != nil {
				t.Fatalf("Put file: %v", err)
			}
			if err := w.Flush(); err != nil {
				t.Fatalf("Flush: %v", err)
			}
			if err := w.Put("records/empty.xml", false, nil, time.Time{}); err != nil {
				t.Fatalf("Put empty: %v", err)
			}
			if err := w.Finish(); err != nil {
				t.Fatalf("Finish: %v", err)
			}
			if err := w.Put("late", false, nil, modTime); !errors.Is(err, ErrClosed) {
				t.Fatalf("expected ErrClosed after Finish, got %v", err)
			}
			if err := w.Close(); err != nil {
				t.Fatalf("Close after Finish: %v", err)
			}

			got, compression := readMembers(t, path)
			if compression != tc.want {
				t.Errorf("detected compression = %s, want %s", compression, tc.want)
			}
			if len(got) != 3 {
				t.Fatalf("expected 3 members, got %d", len(got))
			}
			if got[0].name != "records/" || !got[0].isDir {
				t.Errorf("unexpected directory member %+v", got[0])
			}
			if got[1].name != "records/a.xml" || !bytes.Equal(got[1].data, payload) {
				t.Errorf("file member mismatch: %s (%d bytes)", got[1].name, len(got[1].data))
			}
			if got[2].name != "records/empty.xml" || len(got[2].data) != 0 {
				t.Errorf("unexpected empty member %+v", got[2])
			}
		})
	}
}

func TestExplicitCompressionOverridesExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	w, err := Create(path, Options{Compression: CompressionZstd, Level: LevelBest})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := w.Put("a.json", false, []byte(`{"a":"1"}`), time.Now()); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	_, c := readMembers(t, path)
	if c != CompressionZstd {
		t.Fatalf("detected %s, want zstd", c)
	}
}

func TestCloseLeavesArchiveUnsealed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.tar.gz")
	w, err := Create(path, Options{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := w.Put("a.json", false, bytes.Repeat([]byte("x"), 4096), time.Now()); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Finish(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed from Finish after Close, got %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	var readErr error
	for readErr == nil {
		var e Entry
		e, readErr = r.Next()
		if readErr == nil && !e.IsDir {
			_, readErr = r.ReadAll()
		}
	}
	if readErr == io.EOF {
		t.Fatal("unsealed archive read cleanly to EOF")
	}
}

func TestUnreadableMembers(t *testing.T) {
	var raw bytes.Buffer
	tw := tar.NewWriter(&raw)
	headers := []*tar.Header{
		{Name: "a.xml", Typeflag: tar.TypeReg, Mode: 0644, Size: 3},
		{Name: "link.xml", Typeflag: tar.TypeSymlink, Linkname: "a.xml", Mode: 0777},
		{Name: "dir/", Typeflag: tar.TypeDir, Mode: 0755},
		{Name: "fifo", Typeflag: tar.TypeFifo, Mode: 0644},
	}
	for _, h := range headers {
		if err := tw.WriteHeader(h); err != nil {
			t.Fatalf("WriteHeader: %v", err)
		}
		if h.Size > 0 {
			tw.Write([]byte("<a>"))
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := NewReader(&raw)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()
	if r.Compression() != CompressionNone {
		t.Fatalf("expected plain tar, got %s", r.Compression())
	}

	want := map[string]bool{"a.xml": true, "link.xml": false, "dir/": true, "fifo": false}
	for {
		e, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if e.Readable != want[e.Name] {
			t.Errorf("%s: Readable = %v, want %v", e.Name, e.Readable, want[e.Name])
		}
	}
}

func TestReadAllWithoutEntry(t *testing.T) {
	r, err := NewReader(bytes.NewReader(make([]byte, 1024)))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if _, err := r.ReadAll(); err == nil {
		t.Fatal("expected error from ReadAll before Next")
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.tar.gz"))
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestCorruptGzipStream(t *testing.T) {
	data := append([]byte{0x1f, 0x8b}, bytes.Repeat([]byte{0xff}, 64)...)
	if _, err := NewReader(bytes.NewReader(data)); err == nil {
		t.Fatal("expected gzip header error")
	}
}

func TestParseCompressionAndLevel(t *testing.T) {
	for in, want := range map[string]Compression{
		"": CompressionAuto, "gzip": CompressionGzip, "tgz": CompressionGzip,
		"zst": CompressionZstd, "LZ4": CompressionLZ4, "none": CompressionNone,
	} {
		got, err := ParseCompression(in)
		if err != nil || got != want {
			t.Errorf("ParseCompression(%q) = %s, %v; want %s", in, got, err, want)
		}
	}
	if _, err := ParseCompression("bzip2"); err == nil {
		t.Error("expected error for bzip2")
	}

	for in, want := range map[string]Level{
		"": LevelDefault, "fastest": LevelFastest, "better": LevelBetter, "best": LevelBest,
	} {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %s, %v; want %s", in, got, err, want)
		}
	}
	if _, err := ParseLevel("ultra"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestCompressionForPath(t *testing.T) {
	for path, want := range map[string]Compression{
		"a.tar.gz":  CompressionGzip,
		"a.TGZ":     CompressionGzip,
		"a.tar.zst": CompressionZstd,
		"a.tzst":    CompressionZstd,
		"a.tar.lz4": CompressionLZ4,
		"a.tar":     CompressionNone,
		"a.out":     CompressionGzip,
	} {
		if got := CompressionForPath(path); got != want {
			t.Errorf("CompressionForPath(%q) = %s, want %s", path, got, want)
		}
	}
	if !strings.Contains(Compression(42).String(), "unknown") {
		t.Error("expected unknown compression name")
	}
}

func TestWrapSeesCompressedBytes(t *testing.T) {
	var counted int
	var sink bytes.Buffer
	w, err := NewWriter(&sink, Options{
		Compression: CompressionGzip,
		Wrap: func(inner io.Writer) io.Writer {
			return writerFunc(func(p []byte) (int, error) {
				counted += len(p)
				return inner.Write(p)
			})
		},
	})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Put("a.json", false, bytes.Repeat([]byte("a"), 10000), time.Now()); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if counted != sink.Len() || counted == 0 {
		t.Fatalf("wrap counted %d bytes, sink holds %d", counted, sink.Len())
	}
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
