package progress

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"recast/pkg/logger"
)

// Tracker holds the counters of one run. All counters are atomic; a
// Tracker is never shared between runs.
type Tracker struct {
	submitted    atomic.Uint64
	written      atomic.Uint64
	failed       atomic.Uint64
	skipped      atomic.Uint64
	bytesIn      atomic.Uint64
	bytesOut     atomic.Uint64
	archiveBytes atomic.Uint64

	start time.Time
	log   *logger.Logger

	mu      sync.Mutex
	running bool
	done    chan struct{}
	stopped chan struct{}
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Submitted    uint64
	Written      uint64
	Failed       uint64
	Skipped      uint64
	BytesIn      uint64
	BytesOut     uint64
	ArchiveBytes uint64
	Elapsed      time.Duration
}

// New returns a tracker whose clock starts now.
func New(log *logger.Logger) *Tracker {
	if log == nil {
		log = logger.Nop()
	}
	return &Tracker{start: time.Now(), log: log}
}

// Submitted counts one submitted entry and returns the new total.
func (t *Tracker) Submitted() uint64 { return t.submitted.Add(1) }

// Written counts one written entry and returns the new total.
func (t *Tracker) Written() uint64 { return t.written.Add(1) }

// Failed counts one failed entry and returns the new total.
func (t *Tracker) Failed() uint64 { return t.failed.Add(1) }

// Skipped counts one unreadable entry and returns the new total.
func (t *Tracker) Skipped() uint64 { return t.skipped.Add(1) }

// AddBytesIn adds payload bytes read from the input archive.
func (t *Tracker) AddBytesIn(n int) {
	if n > 0 {
		t.bytesIn.Add(uint64(n))
	}
}

// AddBytesOut adds payload bytes written to the output archive.
func (t *Tracker) AddBytesOut(n int) {
	if n > 0 {
		t.bytesOut.Add(uint64(n))
	}
}

// Settled reports whether every submitted entry has been written or failed.
func (t *Tracker) Settled() bool {
	return t.written.Load()+t.failed.Load() == t.submitted.Load()
}

// Snapshot returns the current counters.
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		Submitted:    t.submitted.Load(),
		Written:      t.written.Load(),
		Failed:       t.failed.Load(),
		Skipped:      t.skipped.Load(),
		BytesIn:      t.bytesIn.Load(),
		BytesOut:     t.bytesOut.Load(),
		ArchiveBytes: t.archiveBytes.Load(),
		Elapsed:      time.Since(t.start),
	}
}

// Every reports whether count falls on an n-entry boundary.
func Every(n int, count uint64) bool {
	return n > 0 && count > 0 && count%uint64(n) == 0
}

// Start launches a reporter that logs throughput every interval until
// Stop. Calling Start on a running tracker does nothing.
func (t *Tracker) Start(interval time.Duration) {
	if interval <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	t.running = true
	t.done = make(chan struct{})
	t.stopped = make(chan struct{})
	go t.report(interval)
}

// Stop halts the reporter and waits for it to exit.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	close(t.done)
	stopped := t.stopped
	t.mu.Unlock()
	<-stopped
}

// report logs processing progress periodically.
func (t *Tracker) report(interval time.Duration) {
	defer close(t.stopped)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var prevWritten, prevBytes uint64
	for {
		select {
		case <-ticker.C:
			s := t.Snapshot()
			entryRate := float64(s.Written-prevWritten) / interval.Seconds()
			byteRate := uint64(float64(s.ArchiveBytes-prevBytes) / interval.Seconds())
			prevWritten, prevBytes = s.Written, s.ArchiveBytes

			t.log.Info("progress", map[string]interface{}{
				"submitted": s.Submitted,
				"written":   s.Written,
				"errors":    s.Failed,
				"entries_s": humanize.CommafWithDigits(entryRate, 1),
				"output":    formatSize(s.ArchiveBytes),
				"rate":      formatRate(byteRate),
			})
		case <-t.done:
			return
		}
	}
}

// formatSize returns a human-readable size string.
func formatSize(bytes uint64) string {
	return humanize.IBytes(bytes)
}

// formatRate returns a human-readable rate string.
func formatRate(bytesPerSec uint64) string {
	return humanize.IBytes(bytesPerSec) + "/s"
}

// Summary renders the final counters for the summary log line.
func (s Snapshot) Summary() map[string]interface{} {
	return map[string]interface{}{
		"entries":  s.Submitted,
		"written":  s.Written,
		"errors":   s.Failed,
		"skipped":  s.Skipped,
		"read":     formatSize(s.BytesIn),
		"produced": formatSize(s.BytesOut),
		"output":   formatSize(s.ArchiveBytes),
		"elapsed":  s.Elapsed.Round(time.Millisecond).String(),
	}
}

// Writer is a writer that tracks bytes written for progress reporting.
type Writer struct {
	W io.Writer
	T *Tracker
}

// Write implements io.Writer and tracks bytes written.
func (pw *Writer) Write(p []byte) (n int, err error) {
	n, err = pw.W.Write(p)
	if n > 0 {
		pw.T.archiveBytes.Add(uint64(n))
	}
	return
}
