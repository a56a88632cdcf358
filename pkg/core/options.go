package core

import (
	"runtime"
	"time"

	"recast/pkg/archive"
)

// Defaults.
const (
	DefaultQueueFactor   = 4
	DefaultProgressEvery = 10000
	DefaultFlushEvery    = 10000
	DefaultPollInterval  = time.Second
)

// Options configures an ArchiveTranslator.
type Options struct {
	// Workers is the pool size; non-positive means runtime.NumCPU().
	Workers int
	// QueueFactor sizes the result channel at Workers*QueueFactor.
	QueueFactor int
	// ProgressEvery and FlushEvery are entry cadences; negative disables.
	ProgressEvery int
	FlushEvery    int
	// PollInterval bounds each collector wait for a result.
	PollInterval time.Duration
	// ProgressInterval enables a time-based throughput log.
	ProgressInterval time.Duration
	// PreserveOrder writes entries in input order through a reorder
	// buffer holding at most ReorderWindow outstanding entries.
	PreserveOrder bool
	ReorderWindow int

	Compression archive.Compression
	Level       archive.Level
	// Manifest, when set, is the path of a digest manifest to write.
	Manifest string
}

func (o *Options) applyDefaults() {
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.QueueFactor <= 0 {
		o.QueueFactor = DefaultQueueFactor
	}
	if o.ProgressEvery == 0 {
		o.ProgressEvery = DefaultProgressEvery
	}
	if o.FlushEvery == 0 {
		o.FlushEvery = DefaultFlushEvery
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.ReorderWindow <= 0 {
		o.ReorderWindow = o.resultCapacity() * 4
	}
}

func (o *Options) resultCapacity() int {
	return o.Workers * o.QueueFactor
}
