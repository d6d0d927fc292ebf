package notify

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Pool is the default in-process notification queue: a buffered channel
// drained by a fixed set of workers. Enqueue never blocks; when the
// buffer is full the job is dropped and logged, preserving best-effort
// semantics.
type Pool struct {
	dispatcher *Dispatcher
	jobs       chan int64
	workers    int
	logger     *logrus.Logger

	wg   sync.WaitGroup
	once sync.Once
}

// NewPool creates a worker pool around the dispatcher
func NewPool(dispatcher *Dispatcher, workers, queueSize int, logger *logrus.Logger) *Pool {
	return &Pool{
		dispatcher: dispatcher,
		jobs:       make(chan int64, queueSize),
		workers:    workers,
		logger:     logger,
	}
}

// Start launches the workers. They run until Stop is called and the
// queue drains, or ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case id, ok := <-p.jobs:
					if !ok {
						return
					}
					p.dispatcher.Dispatch(ctx, id)
				case <-ctx.Done():
					return
				}
			}
		}()
	}
}

// Enqueue schedules a notification dispatch for the request. Fire and
// forget: a full queue drops the job.
func (p *Pool) Enqueue(requestID int64) {
	select {
	case p.jobs <- requestID:
	default:
		p.logger.WithField("request_id", requestID).Warn("Notification queue full, dropping job")
	}
}

// Stop closes the queue and waits for in-flight dispatches to finish
func (p *Pool) Stop() {
	p.once.Do(func() {
		close(p.jobs)
	})
	p.wg.Wait()
}
