package output

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrPoolNotRunning = errors.New("writer pool is not running")
	ErrPoolStopping   = errors.New("writer pool is shutting down")
)

// NewWriterPool creates a writer pool. onResult, if set, is called from the
// worker goroutines after every job and must be safe for concurrent use.
func NewWriterPool(maxWorkers int, queueSize int, onResult func(WriteResult)) *WriterPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &WriterPool{
		workers:   maxWorkers,
		jobQueue:  make(chan WriteJob, queueSize),
		onResult:  onResult,
		ctx:       ctx,
		cancel:    cancel,
		isRunning: false,
	}
}

// Start initializes and starts the writer pool
func (p *WriterPool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isRunning {
		return fmt.Errorf("writer pool is already running")
	}

	for i := 0; i < p.workers; i++ {
		p.workerWg.Add(1)
		go p.worker(i)
	}

	p.isRunning = true
	return nil
}

// Stop closes the queue and waits until every queued job has been written.
func (p *WriterPool) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.isRunning {
		return nil
	}

	close(p.jobQueue)
	p.workerWg.Wait()
	p.cancel()

	p.isRunning = false
	return nil
}

// Abort stops the workers without draining the queue.
func (p *WriterPool) Abort() {
	p.cancel()
	p.Stop()
}

// SubmitJob queues a job, waiting for room in the queue until ctx is done.
func (p *WriterPool) SubmitJob(ctx context.Context, job WriteJob) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.isRunning {
		return ErrPoolNotRunning
	}

	select {
	case p.jobQueue <- job:
		return nil
	case <-p.ctx.Done():
		return ErrPoolStopping
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning returns whether the worker pool is currently running
func (p *WriterPool) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isRunning
}

// Written returns how many files were written successfully.
func (p *WriterPool) Written() int {
	p.resultMu.Lock()
	defer p.resultMu.Unlock()
	return p.written
}

// Err joins every write error seen so far.
func (p *WriterPool) Err() error {
	p.resultMu.Lock()
	defer p.resultMu.Unlock()
	return errors.Join(p.errs...)
}

func (p *WriterPool) worker(workerID int) {
	defer p.workerWg.Done()

	for {
		select {
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			p.processJob(workerID, job)

		case <-p.ctx.Done():
			return
		}
	}
}
