package output

import (
	"context"
	"sync"
)

// WriteJob is one finalized file to be written below Outdir.
type WriteJob struct {
	Outdir  string
	Name    string
	Content []byte
}

// WriteResult reports the outcome of a WriteJob.
type WriteResult struct {
	Name  string
	Path  string
	Bytes int
	Err   error
}

// WriterPool writes build outputs with a bounded number of workers
type WriterPool struct {
	workers   int
	jobQueue  chan WriteJob
	onResult  func(WriteResult)
	workerWg  sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	isRunning bool
	mu        sync.RWMutex

	resultMu sync.Mutex
	written  int
	errs     []error
}
