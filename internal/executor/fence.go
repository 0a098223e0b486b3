package executor

import (
	"errors"
	"sync"
)

// Fence completes when every task of one dispatched plan has finished.
type Fence struct {
	done    chan struct{}
	mu      sync.Mutex
	errs    []error
	ran     int
	skipped int
	cause   error
}

func newFence() *Fence {
	return &Fence{done: make(chan struct{})}
}

func (f *Fence) record(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ran++
	if err != nil {
		f.errs = append(f.errs, err)
	}
}

func (f *Fence) skip(cause error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.skipped++
	if f.cause == nil {
		f.cause = cause
	}
}

func (f *Fence) finish() {
	close(f.done)
}

// Done returns a channel closed once the fence completes.
func (f *Fence) Done() <-chan struct{} {
	return f.done
}

// Completed reports whether the fence has completed, without blocking.
func (f *Fence) Completed() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until every task finished and returns the node errors joined in
// the order they occurred. When tasks were skipped because the context ended,
// the context error is appended.
func (f *Fence) Wait() error {
	<-f.done
	f.mu.Lock()
	defer f.mu.Unlock()
	errs := f.errs
	if f.skipped > 0 {
		errs = append(errs[:len(errs):len(errs)], f.cause)
	}
	return errors.Join(errs...)
}

// Ran returns how many tasks executed. Valid after the fence completed.
func (f *Fence) Ran() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ran
}

// Skipped returns how many tasks never started. Valid after completion.
func (f *Fence) Skipped() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.skipped
}
