package core

import (
	"errors"
	"fmt"
	"time"

	"recast/pkg/logger"
	"recast/pkg/progress"
)

// collect drains results until the producers are done, writing entries
// and counting failures. It returns the first fatal error.
func (r *run) collect() error {
	log := r.log.WithComponent("collector")
	timer := time.NewTimer(r.opts.PollInterval)
	defer timer.Stop()

	for {
		select {
		case res, ok := <-r.results:
			if !ok {
				return nil
			}
			if err := r.accept(log, res); err != nil {
				return err
			}
			timer.Reset(r.opts.PollInterval)
		case <-timer.C:
			s := r.tracker.Snapshot()
			fields := map[string]interface{}{
				"submitted": s.Submitted,
				"written":   s.Written,
				"errors":    s.Failed,
			}
			if r.reorder != nil {
				fields["held"] = r.reorder.Len()
			}
			log.Debug("waiting for results", fields)
			timer.Reset(r.opts.PollInterval)
		case <-r.ctx.Done():
			return r.err()
		}
	}
}

func (r *run) accept(log *logger.Logger, res Result) error {
	if r.reorder == nil {
		return r.apply(log, res)
	}
	for _, ready := range r.reorder.push(res) {
		if err := r.apply(log, ready); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) apply(log *logger.Logger, res Result) error {
	defer r.release()

	if res.Kind == ResultFailure {
		n := r.tracker.Failed()
		r.recordFailure(res)
		log.WithError(res.Err).Error("problem processing entry", map[string]interface{}{
			logger.FieldEntry: res.Name,
			logger.FieldID:    res.ID,
			"errors":          n,
		})
		return nil
	}

	isDir := res.Kind == ResultDirectory
	if err := r.writer.Put(res.Name, isDir, res.Data, res.ModTime); err != nil {
		return fatal("write entry", fmt.Errorf("%s: %w", res.Name, err))
	}
	if r.manifest != nil {
		if err := r.manifest.Add(res.ID, res.Name, isDir, res.Data); err != nil {
			return fatal("write manifest", err)
		}
	}
	r.tracker.AddBytesOut(len(res.Data))
	n := r.tracker.Written()

	if progress.Every(r.opts.ProgressEvery, n) {
		log.Info("written entries", map[string]interface{}{logger.FieldCount: n})
	}
	if progress.Every(r.opts.FlushEvery, n) {
		if err := r.writer.Flush(); err != nil {
			return fatal("flush output", err)
		}
	}
	return nil
}

func (r *run) recordFailure(res Result) {
	if len(r.failures) >= maxFailureSamples {
		return
	}
	info := FailureInfo{ID: res.ID, Name: res.Name, Stage: StageConvert, Err: res.Err}
	var ee *EntryError
	if errors.As(res.Err, &ee) {
		info.Stage = ee.Stage
	}
	r.failures = append(r.failures, info)
}

func errUnsettled(s progress.Snapshot) error {
	return fmt.Errorf("%d written and %d failed of %d submitted", s.Written, s.Failed, s.Submitted)
}
