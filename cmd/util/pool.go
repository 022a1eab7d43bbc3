package cmdutil

import (
	"sync"

	"github.com/gammazero/workerpool"
)

// Pool bounds how many tasks run at once and waits for a batch of them to
// complete. Every submitted task must call Done when it finishes.
type Pool struct {
	wp *workerpool.WorkerPool
	wg *sync.WaitGroup
}

// NewPool creates a pool running at most parallel tasks at a time.
func NewPool(parallel int) Pool {
	if parallel < 1 {
		parallel = 1
	}
	return Pool{wp: workerpool.New(parallel), wg: &sync.WaitGroup{}}
}

// Submit queues a task.
func (p Pool) Submit(f func()) {
	p.wg.Add(1)
	p.wp.Submit(f)
}

// Done marks one task as complete.
func (p Pool) Done() {
	p.wg.Done()
}

// Finish waits for every queued task and then stops the workers.
func (p Pool) Finish() {
	p.wg.Wait()
	p.wp.StopWait()
}
