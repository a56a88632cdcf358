package core

import (
	"errors"
	"fmt"
	"io"

	"recast/pkg/logger"
	"recast/pkg/progress"
)

// dispatch reads the input sequentially and assigns ids in read order.
// Directories go straight to the collector; files go to the pool.
func (r *run) dispatch() {
	defer r.producers.Done()
	defer close(r.tasks)

	log := r.log.WithComponent("dispatcher")
	var next uint64
	for {
		if r.ctx.Err() != nil {
			return
		}

		entry, err := r.reader.Next()
		if errors.Is(err, io.EOF) {
			log.Debug("input exhausted", map[string]interface{}{logger.FieldCount: next})
			return
		}
		if err != nil {
			r.fail(fatal("read entry", err))
			return
		}

		if !entry.Readable {
			r.tracker.Skipped()
			log.Warn("problem reading entry, skipping", map[string]interface{}{
				logger.FieldEntry: entry.Name,
			})
			continue
		}

		var data []byte
		if !entry.IsDir {
			data, err = r.reader.ReadAll()
			if err != nil {
				r.fail(fatal("read entry", fmt.Errorf("%s: %w", entry.Name, err)))
				return
			}
		}

		if !r.acquire() {
			return
		}
		id := next
		next++
		count := r.tracker.Submitted()

		if entry.IsDir {
			if !r.emit(directoryResult(id, entry)) {
				return
			}
		} else {
			r.tracker.AddBytesIn(len(data))
			job := Job{ID: id, Name: entry.Name, Data: data, ModTime: entry.ModTime}
			select {
			case r.tasks <- job:
			case <-r.ctx.Done():
				return
			}
		}

		if progress.Every(r.opts.ProgressEvery, count) {
			log.Info("submitted entries", map[string]interface{}{logger.FieldCount: count})
		}
	}
}
