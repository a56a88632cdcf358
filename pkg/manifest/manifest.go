// Package manifest records what a run wrote: one JSON line per output
// entry with its size and BLAKE3 digest, after a header line naming the
// run. Two manifests can be compared by name regardless of entry order.
package manifest

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/zeebo/blake3"
)

// Header is the first line of a manifest.
type Header struct {
	RunID   string    `json:"run_id"`
	Created time.Time `json:"created"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	Input   string    `json:"input,omitempty"`
}

// Record describes one written entry.
type Record struct {
	ID     uint64 `json:"id"`
	Name   string `json:"name"`
	Dir    bool   `json:"dir,omitempty"`
	Size   int    `json:"size"`
	BLAKE3 string `json:"blake3,omitempty"`
}

// Digest returns the hex BLAKE3-256 digest of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Writer appends records to a manifest file. Not safe for concurrent use.
type Writer struct {
	file *os.File
	buf  *bufio.Writer
	enc  *json.Encoder
}

// Create creates the manifest at path and writes the header.
func Create(path string, h Header) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create manifest: %w", err)
	}
	buf := bufio.NewWriter(f)
	w := &Writer{file: f, buf: buf, enc: json.NewEncoder(buf)}
	if err := w.enc.Encode(h); err != nil {
		f.Close()
		return nil, fmt.Errorf("write manifest header: %w", err)
	}
	return w, nil
}

// Add appends one record. File records get their digest computed here.
func (w *Writer) Add(id uint64, name string, dir bool, data []byte) error {
	rec := Record{ID: id, Name: name, Dir: dir, Size: len(data)}
	if !dir {
		rec.BLAKE3 = Digest(data)
	}
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("write manifest record %s: %w", name, err)
	}
	return nil
}

// Close flushes and closes the manifest.
func (w *Writer) Close() error {
	ferr := w.buf.Flush()
	cerr := w.file.Close()
	return errors.Join(ferr, cerr)
}

// Manifest is a parsed manifest file.
type Manifest struct {
	Header  Header
	Records []Record
}

// Read parses the manifest at path.
func Read(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16<<20)

	m := &Manifest{}
	line := 0
	for sc.Scan() {
		line++
		if line == 1 {
			if err := json.Unmarshal(sc.Bytes(), &m.Header); err != nil {
				return nil, fmt.Errorf("manifest header: %w", err)
			}
			continue
		}
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("manifest line %d: %w", line, err)
		}
		m.Records = append(m.Records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if line == 0 {
		return nil, errors.New("manifest is empty")
	}
	return m, nil
}

// ByName indexes the records by entry name.
func (m *Manifest) ByName() map[string]Record {
	out := make(map[string]Record, len(m.Records))
	for _, r := range m.Records {
		out[r.Name] = r
	}
	return out
}
