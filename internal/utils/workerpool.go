// Package utils holds small pieces of process-lifecycle plumbing shared
// by the demonstration server: right now, just the worker pool that
// services accepted connections under tomb supervision.
package utils

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const taskChanSize = 100

// WorkerFunction is one unit of work a pool worker executes for a task of
// type T. Typing the pool to its caller's task (net.Conn for the demo TCP
// server) removes the any-boxing and type-assertion the teacher's pool
// needed to recover the concrete type at the call site.
type WorkerFunction[T any] = func(t *tomb.Tomb, task T) error

// WorkerPool runs up to n goroutines pulling tasks off a shared channel,
// each supervised by the tomb passed to Setup.
type WorkerPool[T any] struct {
	n     int
	tasks chan T
	work  WorkerFunction[T]
}

func NewWorkerPool[T any](size int) WorkerPool[T] {
	return WorkerPool[T]{
		tasks: make(chan T, taskChanSize),
		n:     size,
	}
}

// AddTask enqueues a task for some idle worker to pick up.
func (pool *WorkerPool[T]) AddTask(task T) {
	pool.tasks <- task
}

// Setup keeps the pool topped up at n workers until t starts dying.
func (pool *WorkerPool[T]) Setup(t *tomb.Tomb, work WorkerFunction[T]) {
	log.Info().Int("workers", pool.n).Msg("worker pool starting")
	activeWorkers := 0
	for {
		select {
		case <-t.Dying():
			return
		default:
			if activeWorkers < pool.n {
				t.Go(func() error {
					err := pool.worker(t, work)
					activeWorkers--
					return err
				})
				activeWorkers++
			}
		}
	}
}

func (pool *WorkerPool[T]) worker(t *tomb.Tomb, work WorkerFunction[T]) error {
	select {
	case <-t.Dying():
		return nil
	case task := <-pool.tasks:
		if err := work(t, task); err != nil {
			log.Error().Err(err).Msg("worker exiting")
			return err
		}
	}
	return nil
}
