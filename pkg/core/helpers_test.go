package core

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"recast/pkg/archive"
	"recast/pkg/codec"
)

type member struct {
	name  string
	isDir bool
	data  []byte
}

func xmlRecord(i int) []byte {
	return []byte(fmt.Sprintf("<doc id=\"%d\"><title>entry %d</title><n>%d</n></doc>", i, i, i))
}

func writeInput(t *testing.T, name string, members []member) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	w, err := archive.Create(path, archive.Options{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, m := range members {
		if err := w.Put(m.name, m.isDir, m.data, time.Time{}); err != nil {
			t.Fatalf("Put %s: %v", m.name, err)
		}
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	return path
}

func readOutput(t *testing.T, path string) []member {
	t.Helper()
	r, err := archive.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	var out []member
	for {
		e, err := r.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		m := member{name: e.Name, isDir: e.IsDir}
		if !e.IsDir {
			if m.data, err = r.ReadAll(); err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
		}
		out = append(out, m)
	}
}

func xmlToJSON(t *testing.T) Codec {
	t.Helper()
	tr, err := codec.NewTranslator(codec.FormatXML, codec.FormatJSON, nil, false)
	if err != nil {
		t.Fatalf("NewTranslator: %v", err)
	}
	return FromTranslator(tr)
}

// memEntry is one entry served by memReader.
type memEntry struct {
	name       string
	dir        bool
	data       []byte
	unreadable bool
}

// memReader serves entries from memory and fails with err at entry errAt
// when err is set.
type memReader struct {
	entries []memEntry
	pos     int
	cur     int
	err     error
	errAt   int
	reads   atomic.Int64
}

func (m *memReader) Next() (archive.Entry, error) {
	if m.err != nil && m.pos == m.errAt {
		return archive.Entry{}, m.err
	}
	if m.pos >= len(m.entries) {
		return archive.Entry{}, io.EOF
	}
	e := m.entries[m.pos]
	m.cur = m.pos
	m.pos++
	m.reads.Add(1)
	return archive.Entry{
		Name:     e.name,
		IsDir:    e.dir,
		Size:     int64(len(e.data)),
		Readable: !e.unreadable,
	}, nil
}

func (m *memReader) ReadAll() ([]byte, error) {
	return m.entries[m.cur].data, nil
}

func memFiles(n int) []memEntry {
	entries := make([]memEntry, n)
	for i := range entries {
		entries[i] = memEntry{name: fmt.Sprintf("r%04d.xml", i), data: xmlRecord(i)}
	}
	return entries
}

var errDiskFull = errors.New("disk full")

// memWriter records puts. failAt makes the put with that index fail;
// gate, when set, blocks every put until it is closed.
type memWriter struct {
	mu       sync.Mutex
	names    []string
	dirs     map[string]bool
	failAt   int
	gate     chan struct{}
	flushes  int
	finished bool
	closed   bool
}

func newMemWriter() *memWriter {
	return &memWriter{dirs: make(map[string]bool), failAt: -1}
}

func (m *memWriter) Put(name string, isDir bool, data []byte, modTime time.Time) error {
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.names) == m.failAt {
		return errDiskFull
	}
	m.names = append(m.names, name)
	m.dirs[name] = isDir
	return nil
}

func (m *memWriter) Flush() error {
	m.mu.Lock()
	m.flushes++
	m.mu.Unlock()
	return nil
}

func (m *memWriter) Finish() error {
	m.mu.Lock()
	m.finished = true
	m.mu.Unlock()
	return nil
}

func (m *memWriter) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *memWriter) written() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.names...)
}

// funcCodec adapts a function to Codec.
type funcCodec struct {
	convert func([]byte) ([]byte, error)
	rename  func(string) string
}

func (f funcCodec) NewTask() Converter { return converterFunc(f.convert) }

func (f funcCodec) RenameEntry(name string) string {
	if f.rename == nil {
		return name
	}
	return f.rename(name)
}

type converterFunc func([]byte) ([]byte, error)

func (c converterFunc) Convert(data []byte) ([]byte, error) { return c(data) }
