package core

import (
	"time"

	"recast/pkg/archive"
)

// Job is one file entry handed to the worker pool. A job belongs to the
// worker that received it and is not modified after creation.
type Job struct {
	ID      uint64
	Name    string
	Data    []byte
	ModTime time.Time
}

// ResultKind tags a Result.
type ResultKind uint8

const (
	ResultDirectory ResultKind = iota + 1
	ResultSuccess
	ResultFailure
)

// String returns the name of the result kind.
func (k ResultKind) String() string {
	switch k {
	case ResultDirectory:
		return "directory"
	case ResultSuccess:
		return "success"
	case ResultFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Result is produced exactly once per directory entry or submitted job
// and consumed exactly once by the collector. Data is set for successes,
// Err for failures.
type Result struct {
	Kind    ResultKind
	ID      uint64
	Name    string
	Data    []byte
	ModTime time.Time
	Err     error
}

func directoryResult(id uint64, e archive.Entry) Result {
	return Result{Kind: ResultDirectory, ID: id, Name: e.Name, ModTime: e.ModTime}
}

func successResult(job Job, name string, data []byte) Result {
	return Result{Kind: ResultSuccess, ID: job.ID, Name: name, Data: data, ModTime: job.ModTime}
}

func failureResult(job Job, err error) Result {
	return Result{Kind: ResultFailure, ID: job.ID, Name: job.Name, Err: err}
}

// maxFailureSamples caps the failures kept in a Summary.
const maxFailureSamples = 100

// FailureInfo describes one entry that produced no output.
type FailureInfo struct {
	ID    uint64
	Name  string
	Stage string
	Err   error
}

// Summary reports the outcome of one run.
type Summary struct {
	RunID        string
	Submitted    uint64
	Written      uint64
	Errors       uint64
	Skipped      uint64
	BytesIn      uint64
	BytesOut     uint64
	ArchiveBytes uint64
	Duration     time.Duration
	// Failures holds up to the first 100 failed entries.
	Failures []FailureInfo
}
