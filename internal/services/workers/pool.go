package workers

import (
	"context"
	"errors"

	"github.com/alitto/pond/v2"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/swarmcrew/internal/common"
)

var (
	// ErrQueueFull is returned by Submit when every worker is busy and the queue is at capacity
	ErrQueueFull = errors.New("worker queue is full")
	// ErrPoolStopped is returned by Submit once Shutdown has begun
	ErrPoolStopped = errors.New("worker pool is shutting down")
)

// Job represents a work item to be processed
type Job func(ctx context.Context)

// Pool runs jobs on a bounded number of workers with a bounded queue.
// Submit never blocks: a saturated pool refuses work instead.
type Pool struct {
	pool       pond.Pool
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	logger     arbor.ILogger
}

// NewPool creates a worker pool
func NewPool(maxWorkers, queueSize int, logger arbor.ILogger) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}
	if queueSize <= 0 {
		queueSize = maxWorkers * 2
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		pool: pond.NewPool(maxWorkers,
			pond.WithQueueSize(queueSize),
			pond.WithNonBlocking(true),
		),
		maxWorkers: maxWorkers,
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger,
	}

	logger.Info().
		Int("max_workers", maxWorkers).
		Int("queue_size", queueSize).
		Msg("Worker pool started")

	return p
}

// Submit queues job. The job's context is cancelled if Shutdown gives up waiting.
func (p *Pool) Submit(name string, job Job) error {
	err := p.pool.Go(func() {
		defer common.RecoverAndLog(p.logger, name)
		job(p.ctx)
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, pond.ErrQueueFull):
		return ErrQueueFull
	case errors.Is(err, pond.ErrPoolStopped):
		return ErrPoolStopped
	default:
		return err
	}
}

// Running returns the number of jobs currently executing
func (p *Pool) Running() int64 {
	return p.pool.RunningWorkers()
}

// Waiting returns the number of queued jobs not yet started
func (p *Pool) Waiting() uint64 {
	return p.pool.WaitingTasks()
}

// Shutdown stops accepting jobs and waits for running and queued ones.
// If ctx expires first, in-flight jobs are cancelled and Shutdown returns ctx.Err().
func (p *Pool) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.pool.StopAndWait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		p.logger.Info().Msg("Worker pool shutdown complete")
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		p.logger.Warn().Msg("Worker pool shutdown deadline exceeded, in-flight jobs cancelled")
		return ctx.Err()
	}
}
