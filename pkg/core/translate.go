// Package core runs the translation pipeline: a dispatcher reading the
// input archive, a fixed pool of workers converting entries, and a
// single collector writing the output archive.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"recast/pkg/archive"
	"recast/pkg/logger"
	"recast/pkg/manifest"
	"recast/pkg/progress"
)

// errOutputIsInput is returned when the output path names the input
// archive. Creating it would truncate the input mid-read.
var errOutputIsInput = errors.New("output is the input archive")

// ArchiveTranslator translates archives with one Codec. It holds no
// per-run state and may run several translations concurrently.
type ArchiveTranslator struct {
	codec Codec
	opts  Options
	log   *logger.Logger
}

// New returns an ArchiveTranslator. A nil log discards output.
func New(c Codec, opts Options, log *logger.Logger) *ArchiveTranslator {
	opts.applyDefaults()
	if log == nil {
		log = logger.Nop()
	}
	return &ArchiveTranslator{codec: c, opts: opts, log: log}
}

// Options returns the effective options.
func (t *ArchiveTranslator) Options() Options { return t.opts }

// Translate converts every entry of the archive at in and writes the
// result to out. Per-entry failures are counted in the Summary; a
// *FatalError means the output was left unsealed.
func (t *ArchiveTranslator) Translate(ctx context.Context, in, out string) (Summary, error) {
	runID := uuid.NewString()
	log := t.log.WithFields(map[string]interface{}{logger.FieldRunID: runID})
	tracker := progress.New(log.WithComponent("progress"))

	reader, err := archive.Open(in)
	if err != nil {
		return Summary{RunID: runID}, fatal("open input", err)
	}
	defer reader.Close()

	if sameFile(in, out) {
		return Summary{RunID: runID}, fatal("create output", fmt.Errorf("%s: %w", out, errOutputIsInput))
	}
	writer, err := archive.Create(out, archive.Options{
		Compression: t.opts.Compression,
		Level:       t.opts.Level,
		Wrap: func(w io.Writer) io.Writer {
			return &progress.Writer{W: w, T: tracker}
		},
	})
	if err != nil {
		return Summary{RunID: runID}, fatal("create output", err)
	}
	defer writer.Close()

	log.WithComponent("translate").Info("starting translation", map[string]interface{}{
		"input":       in,
		"output":      out,
		"workers":     t.opts.Workers,
		"compression": writer.Compression().String(),
		"ordered":     t.opts.PreserveOrder,
	})
	return t.execute(ctx, runID, in, reader, writer, tracker, log)
}

// TranslateStreams runs the pipeline over an already open reader and
// writer. The writer is sealed with Finish on success and left as is on
// a fatal error.
func (t *ArchiveTranslator) TranslateStreams(ctx context.Context, r EntryReader, w EntryWriter) (Summary, error) {
	runID := uuid.NewString()
	log := t.log.WithFields(map[string]interface{}{logger.FieldRunID: runID})
	return t.execute(ctx, runID, "", r, w, progress.New(log.WithComponent("progress")), log)
}

func (t *ArchiveTranslator) execute(ctx context.Context, runID, input string, r EntryReader, w EntryWriter,
	tracker *progress.Tracker, log *logger.Logger) (Summary, error) {
	state := newRun(ctx, runID, t.codec, t.opts, log, tracker)
	state.reader = r
	state.writer = w

	if t.opts.Manifest != "" {
		h := manifest.Header{RunID: runID, Created: time.Now().UTC(), Input: input}
		if n, ok := t.codec.(formatNamer); ok {
			h.From, h.To = n.FormatNames()
		}
		m, err := manifest.Create(t.opts.Manifest, h)
		if err != nil {
			state.cancel(nil)
			return state.summary(), fatal("create manifest", err)
		}
		state.manifest = m
		defer func() {
			if state.manifest != nil {
				state.manifest.Close()
			}
		}()
	}

	return state.execute()
}

// sameFile reports whether a and b name the same existing file, through
// links or differently spelled paths.
func sameFile(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}
