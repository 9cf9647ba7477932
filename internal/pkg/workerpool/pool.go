package workerpool

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/paulexconde/surveydesk/internal/pkg/logger"
)

var ErrPoolClosed = errors.New("worker pool is closed")

type Job func(ctx context.Context) error

type WorkerPool struct {
	queue chan Job
	wg    sync.WaitGroup
	log   *logger.Logger

	mu     sync.Mutex
	closed bool
	errs   []error
}

func NewWorkerPool(ctx context.Context, workerCount int, queueSize int, log *logger.Logger) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	if log == nil {
		log = logger.Nop()
	}

	pool := &WorkerPool{
		queue: make(chan Job, queueSize),
		log:   log,
	}

	for i := range workerCount {
		pool.wg.Add(1)
		go pool.worker(ctx, i)
	}

	return pool
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for job := range p.queue {
		// queued jobs are drained but not run once ctx is cancelled
		if err := ctx.Err(); err != nil {
			p.record(err)
			continue
		}
		if err := job(ctx); err != nil {
			p.log.Warn("Job failed", "worker", id, "error", err)
			p.record(err)
		}
	}
}

func (p *WorkerPool) record(err error) {
	p.mu.Lock()
	p.errs = append(p.errs, err)
	p.mu.Unlock()
}

// Submit blocks until the job is queued or ctx is done.
func (p *WorkerPool) Submit(ctx context.Context, job Job) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrPoolClosed
	}

	select {
	case p.queue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for the queue to drain. It returns
// every job error joined together, or ctx.Err() when the wait times out.
// Submit must not be called concurrently with Shutdown.
func (p *WorkerPool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		p.log.Warn("Worker pool shutdown timed out")
		return ctx.Err()
	case <-done:
		p.log.Debug("Worker pool shutdown complete")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.errs...)
}

// WithRetry runs job up to retries times, sleeping delay between attempts.
func WithRetry(retries int, delay time.Duration, job Job) Job {
	return WithRetryIf(retries, delay, func(error) bool { return true }, job)
}

// WithRetryIf is WithRetry that stops at the first error retryable rejects.
func WithRetryIf(retries int, delay time.Duration, retryable func(error) bool, job Job) Job {
	return func(ctx context.Context) error {
		var err error
		for i := range retries {
			if err = job(ctx); err == nil {
				return nil
			}
			if i == retries-1 || !retryable(err) {
				break
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		return err
	}
}
