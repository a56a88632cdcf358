package core

import (
	"errors"
	"fmt"

	"recast/pkg/codec"
)

// Conversion stages reported in EntryError.
const (
	StageDecode   = "decode"
	StageValidate = "validate"
	StageEncode   = "encode"
	StageConvert  = "convert"
)

// EntryError is the error carried by a Failure result. It never aborts
// the run.
type EntryError struct {
	ID    uint64
	Name  string
	Stage string
	Err   error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("entry %d %s: %s: %v", e.ID, e.Name, e.Stage, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

func newEntryError(job Job, err error) *EntryError {
	return &EntryError{ID: job.ID, Name: job.Name, Stage: stageOf(err), Err: err}
}

func stageOf(err error) string {
	switch {
	case errors.Is(err, codec.ErrMalformed):
		return StageDecode
	case errors.Is(err, codec.ErrSchema):
		return StageValidate
	case errors.Is(err, codec.ErrEncode):
		return StageEncode
	default:
		return StageConvert
	}
}

// FatalError aborts a run. The output archive is left unsealed.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// ExitCode is the process exit code for a fatal run.
func (e *FatalError) ExitCode() int { return 2 }

// IsFatal reports whether err aborted a run.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

func fatal(op string, err error) *FatalError {
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe
	}
	return &FatalError{Op: op, Err: err}
}
