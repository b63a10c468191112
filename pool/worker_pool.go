package pool

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const (
	minConcurrency = 1
)

var ErrMinConcurrency = errors.New("number of workers must be greater than 0")

type Config struct {
	Concurrency int
	Capacity    int
}

// WorkerPool is the part of Pool callers drive: start, feed, then wait.
type WorkerPool[T any] interface {
	Start(ctx context.Context)
	Enqueue(v T)
	Close() error
}

// Pool runs an executor over enqueued values on a fixed number of goroutines.
// The first executor error cancels the pool: remaining values are drained without
// being executed and Close returns that error.
type Pool[T any] struct {
	tasks       chan T
	executor    func(v T) error
	g           *errgroup.Group
	ctxCancel   func(error)
	concurrency int
	capacity    int
}

func New[T any](executor func(v T) error, config *Config) (*Pool[T], error) {
	if config.Concurrency < minConcurrency {
		return nil, ErrMinConcurrency
	}

	return &Pool[T]{
		tasks:       make(chan T, config.Capacity),
		executor:    executor,
		g:           new(errgroup.Group),
		concurrency: config.Concurrency,
		capacity:    config.Capacity,
	}, nil
}

func (p *Pool[T]) Start(ctx context.Context) {
	p.reset()

	ctx, cancel := context.WithCancelCause(ctx)
	p.ctxCancel = cancel

	for i := 0; i < p.concurrency; i++ {
		p.g.Go(func() error {
			return p.listen(ctx)
		})
	}
}

func (p *Pool[T]) Enqueue(v T) {
	p.tasks <- v
}

func (p *Pool[T]) PendingTasks() int {
	return len(p.tasks)
}

func (p *Pool[T]) Close() error {
	close(p.tasks)
	err := p.g.Wait()
	p.ctxCancel(err)
	return err
}

func (p *Pool[T]) listen(ctx context.Context) error {
	var err error
	for v := range p.tasks {
		if err != nil {
			continue
		}

		if cerr := ctx.Err(); cerr != nil {
			err = context.Cause(ctx)
			continue
		}

		if err = p.executor(v); err != nil {
			p.ctxCancel(err)
		}
	}

	return err
}

func (p *Pool[T]) reset() {
	p.tasks = make(chan T, p.capacity)
	p.g = new(errgroup.Group)
}
