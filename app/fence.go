package app

import (
	"context"
	"sync"
)

// Fence gates request handling until the build phase completes. It opens or
// fails exactly once.
type Fence struct {
	once sync.Once
	done chan struct{}
	err  error
}

// NewFence creates a closed fence
func NewFence() *Fence {
	return &Fence{done: make(chan struct{})}
}

// Open marks the build as complete
func (f *Fence) Open() {
	f.once.Do(func() { close(f.done) })
}

// Fail records a build failure. The fence stays shut for requests.
func (f *Fence) Fail(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Ready reports whether the build finished successfully
func (f *Fence) Ready() bool {
	select {
	case <-f.done:
		return f.err == nil
	default:
		return false
	}
}

// Err returns the build failure, if any
func (f *Fence) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Wait blocks until the fence opens or fails, or ctx ends.
func (f *Fence) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
