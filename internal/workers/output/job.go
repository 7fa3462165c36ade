package output

import (
	"context"
	"fmt"
	"time"

	"github.com/jsh-team/nodeworker/internal/storage"
	"github.com/jsh-team/nodeworker/internal/utils/logger"
)

func (p *WriterPool) processJob(workerID int, job WriteJob) {
	startTime := time.Now()
	res := WriteResult{Name: job.Name, Bytes: len(job.Content)}

	fullPath, err := storage.SaveOutput(job.Outdir, job.Name, job.Content)
	if err != nil {
		res.Err = err
		logger.Error("Writer %d failed to write %s: %v", workerID, job.Name, err)
	} else {
		res.Path = fullPath
		logger.Debug("Writer %d wrote %s (%d bytes) in %v", workerID, job.Name, res.Bytes, time.Since(startTime))
	}

	p.resultMu.Lock()
	if res.Err != nil {
		p.errs = append(p.errs, res.Err)
	} else {
		p.written++
	}
	p.resultMu.Unlock()

	if p.onResult != nil {
		p.onResult(res)
	}
}

// WriteAll writes jobs through a fresh pool of maxWorkers writers and returns
// the joined write errors.
func WriteAll(ctx context.Context, jobs []WriteJob, maxWorkers int, onResult func(WriteResult)) error {
	pool := NewWriterPool(maxWorkers, len(jobs), onResult)
	if err := pool.Start(); err != nil {
		return err
	}

	for _, job := range jobs {
		if err := pool.SubmitJob(ctx, job); err != nil {
			pool.Abort()
			return fmt.Errorf("failed to queue %s: %w", job.Name, err)
		}
	}

	if err := pool.Stop(); err != nil {
		return err
	}
	return pool.Err()
}
