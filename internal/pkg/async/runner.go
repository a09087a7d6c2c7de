package async

import (
	"sync"

	"github.com/gofiber/fiber/v2/log"
)

// Result reports the outcome of a fire-and-forget task.
type Result struct {
	Name string
	Err  error
}

// Observer receives task outcomes. Optional; used by tests to assert on
// "attempted but failed" without the caller's return value being affected.
type Observer func(Result)

// Runner executes best-effort side effects (notification emails, linkage
// writes) off the primary operation path. Failures are logged, never
// propagated to the caller.
type Runner struct {
	wg       sync.WaitGroup
	observer Observer
}

// NewRunner creates a runner with an optional observer.
func NewRunner(observer Observer) *Runner {
	return &Runner{observer: observer}
}

// Go runs fn in the background and logs its outcome.
func (r *Runner) Go(name string, fn func() error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		err := fn()
		if err != nil {
			log.Errorf("[Async] task %s failed: %v", name, err)
		}
		if r.observer != nil {
			r.observer(Result{Name: name, Err: err})
		}
	}()
}

// Wait blocks until all submitted tasks finished. Used in tests and shutdown.
func (r *Runner) Wait() {
	r.wg.Wait()
}
