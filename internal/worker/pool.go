//go:generate mockgen -source=pool.go -destination=mocks.go -package=worker
package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var ErrPoolClosed = errors.New("worker pool is closed")

type PoolI interface {
	AddTask(ctx context.Context, task Task) error
	TryAddTask(task Task) bool
	Close()
}

type Task func() error

// Pool runs submitted tasks on a fixed set of goroutines. Task errors are
// logged and otherwise dropped.
type Pool struct {
	tasks  chan Task
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	wp := &Pool{tasks: make(chan Task, size)}

	wp.wg.Add(size)
	for i := 0; i < size; i++ {
		go wp.worker()
	}
	return wp
}

func (wp *Pool) worker() {
	defer wp.wg.Done()
	for task := range wp.tasks {
		if err := task(); err != nil {
			zap.L().Error("Task execution failed", zap.Error(err))
		}
	}
}

// AddTask blocks until a worker slot is free or ctx is done.
func (wp *Pool) AddTask(ctx context.Context, task Task) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		return ErrPoolClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case wp.tasks <- task:
		return nil
	}
}

// TryAddTask enqueues task only if the buffer has room.
func (wp *Pool) TryAddTask(task Task) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		return false
	}

	select {
	case wp.tasks <- task:
		return true
	default:
		return false
	}
}

// Close stops accepting tasks and waits for queued ones to finish.
func (wp *Pool) Close() {
	wp.mu.Lock()
	if wp.closed {
		wp.mu.Unlock()
		return
	}
	wp.closed = true
	close(wp.tasks)
	wp.mu.Unlock()

	wp.wg.Wait()
}
