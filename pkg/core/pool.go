package core

import (
	"fmt"

	"recast/pkg/logger"
)

// startWorkers launches the fixed pool. Each worker owns the job it
// received and emits exactly one result for it.
func (r *run) startWorkers() {
	log := r.log.WithComponent("worker")
	for i := 0; i < r.opts.Workers; i++ {
		r.producers.Add(1)
		go r.work(log.WithFields(map[string]interface{}{"worker": i}))
	}
}

func (r *run) work(log *logger.Logger) {
	defer r.producers.Done()
	for job := range r.tasks {
		if r.ctx.Err() != nil {
			return
		}
		if !r.emit(r.process(log, job)) {
			return
		}
	}
}

// process converts one job. A panicking codec becomes a failure for that
// entry only.
func (r *run) process(log *logger.Logger, job Job) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			log.Warn("codec panicked", map[string]interface{}{
				logger.FieldEntry: job.Name,
				logger.FieldID:    job.ID,
				"panic":           fmt.Sprint(p),
			})
			res = failureResult(job, &EntryError{
				ID:    job.ID,
				Name:  job.Name,
				Stage: StageConvert,
				Err:   fmt.Errorf("panic: %v", p),
			})
		}
	}()

	out, err := r.codec.NewTask().Convert(job.Data)
	if err != nil {
		return failureResult(job, newEntryError(job, err))
	}
	return successResult(job, r.codec.RenameEntry(job.Name), out)
}
