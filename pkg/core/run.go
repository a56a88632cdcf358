package core

import (
	"context"
	"sync"
	"time"

	"recast/pkg/archive"
	"recast/pkg/logger"
	"recast/pkg/manifest"
	"recast/pkg/progress"
)

// EntryReader yields input entries in archive order. It is used by the
// dispatcher goroutine only.
type EntryReader interface {
	Next() (archive.Entry, error)
	ReadAll() ([]byte, error)
}

// EntryWriter receives output entries. It is used by the collector
// goroutine only. Finish seals the output; Close releases it without
// sealing.
type EntryWriter interface {
	Put(name string, isDir bool, data []byte, modTime time.Time) error
	Flush() error
	Finish() error
	Close() error
}

// run is the state of one translation. Nothing in it outlives the call
// that created it.
type run struct {
	id       string
	opts     Options
	codec    Codec
	log      *logger.Logger
	tracker  *progress.Tracker
	reader   EntryReader
	writer   EntryWriter
	manifest *manifest.Writer

	ctx    context.Context
	cancel context.CancelCauseFunc

	tasks   chan Job
	results chan Result
	// window limits entries between dispatch and write when ordering
	// output; nil otherwise.
	window  chan struct{}
	reorder *reorderBuffer

	// producers counts the dispatcher and the workers. results is closed
	// once it drops to zero.
	producers sync.WaitGroup

	failMu sync.Mutex
	failed error

	failures []FailureInfo
}

func newRun(ctx context.Context, id string, c Codec, opts Options, log *logger.Logger, tracker *progress.Tracker) *run {
	r := &run{
		id:      id,
		opts:    opts,
		codec:   c,
		log:     log,
		tracker: tracker,
		tasks:   make(chan Job, opts.Workers),
		results: make(chan Result, opts.resultCapacity()),
	}
	r.ctx, r.cancel = context.WithCancelCause(ctx)
	if opts.PreserveOrder {
		r.window = make(chan struct{}, opts.ReorderWindow)
		r.reorder = newReorderBuffer()
	}
	return r
}

// fail records the first fatal error and cancels the run.
func (r *run) fail(err error) {
	r.failMu.Lock()
	if r.failed == nil {
		r.failed = err
	}
	r.failMu.Unlock()
	r.cancel(err)
}

// err returns the error that aborted the run, if any.
func (r *run) err() error {
	r.failMu.Lock()
	defer r.failMu.Unlock()
	if r.failed != nil {
		return r.failed
	}
	if r.ctx.Err() != nil {
		return fatal("canceled", context.Cause(r.ctx))
	}
	return nil
}

// emit hands a result to the collector unless the run is aborting.
func (r *run) emit(res Result) bool {
	select {
	case r.results <- res:
		return true
	case <-r.ctx.Done():
		return false
	}
}

func (r *run) acquire() bool {
	if r.window == nil {
		return true
	}
	select {
	case r.window <- struct{}{}:
		return true
	case <-r.ctx.Done():
		return false
	}
}

func (r *run) release() {
	if r.window != nil {
		<-r.window
	}
}

// execute runs the pipeline to quiescence and seals the output on
// success. On a fatal error the writer is left unsealed for the caller
// to Close.
func (r *run) execute() (Summary, error) {
	defer r.cancel(nil)

	r.tracker.Start(r.opts.ProgressInterval)
	defer r.tracker.Stop()

	r.producers.Add(1)
	go r.dispatch()
	r.startWorkers()
	go func() {
		r.producers.Wait()
		close(r.results)
	}()

	if err := r.collect(); err != nil {
		r.fail(err)
	}
	// Every goroutine has exited once results is closed.
	for range r.results {
	}

	if err := r.err(); err != nil {
		r.log.WithError(err).Error("aborting translation, output left unsealed")
		return r.summary(), err
	}

	if !r.tracker.Settled() {
		s := r.tracker.Snapshot()
		err := fatal("finish", errUnsettled(s))
		r.log.Error("entry accounting mismatch", s.Summary())
		return r.summary(), err
	}

	if r.manifest != nil {
		err := r.manifest.Close()
		r.manifest = nil
		if err != nil {
			return r.summary(), fatal("close manifest", err)
		}
	}
	if err := r.writer.Finish(); err != nil {
		return r.summary(), fatal("finish", err)
	}

	summary := r.summary()
	r.log.Info("translation finished", r.tracker.Snapshot().Summary())
	return summary, nil
}

func (r *run) summary() Summary {
	s := r.tracker.Snapshot()
	return Summary{
		RunID:        r.id,
		Submitted:    s.Submitted,
		Written:      s.Written,
		Errors:       s.Failed,
		Skipped:      s.Skipped,
		BytesIn:      s.BytesIn,
		BytesOut:     s.BytesOut,
		ArchiveBytes: s.ArchiveBytes,
		Duration:     s.Elapsed,
		Failures:     r.failures,
	}
}
