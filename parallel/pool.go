package parallel

import (
	"errors"
	"runtime"
	"sync"
)

type (
	WorkerFunc func(func() error)
	WaitFunc   func() error
	CancelFunc func()
)

// Pool runs jobs on a fixed number of goroutines. Wait closes the pool, so a
// pool serves a single batch of jobs.
type Pool struct {
	wg     sync.WaitGroup
	mu     sync.Mutex
	errs   []error
	Do     WorkerFunc
	Wait   WaitFunc
	Cancel CancelFunc
}

func Start(numWorkers int) *Pool {
	if numWorkers < 1 {
		numWorkers = runtime.GOMAXPROCS(0)
	}

	pool := &Pool{}
	pool.Do = func(f func() error) {
		pool.record(f())
	}
	pool.Wait = pool.join
	pool.Cancel = func() {}

	if numWorkers > 1 {
		workChan := make(chan func() error, numWorkers)

		for range numWorkers {
			pool.wg.Go(func() {
				for f := range workChan {
					pool.record(f())
				}
			})
		}

		pool.Do = func(f func() error) {
			workChan <- f
		}

		pool.Cancel = sync.OnceFunc(func() { close(workChan) })
		pool.Wait = func() error {
			pool.Cancel()
			pool.wg.Wait()
			return pool.join()
		}
	}

	return pool
}

func (p *Pool) record(err error) {
	if err == nil {
		return
	}
	p.mu.Lock()
	p.errs = append(p.errs, err)
	p.mu.Unlock()
}

func (p *Pool) join() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.errs...)
}
