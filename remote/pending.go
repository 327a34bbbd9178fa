package remote

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Pending is the eventual result of a correlated call.
type Pending[T any] struct {
	done      chan struct{}
	mu        sync.Mutex
	callbacks []func(T, error)
	value     T
	err       error
	abandon   func()
}

func newPending[T any]() *Pending[T] {
	return &Pending[T]{done: make(chan struct{}), abandon: func() {}}
}

// Completed returns a Pending that is already resolved.
func Completed[T any](v T, err error) *Pending[T] {
	p := newPending[T]()
	p.complete(v, err)
	return p
}

func (p *Pending[T]) complete(v T, err error) bool {
	p.mu.Lock()
	select {
	case <-p.done:
		p.mu.Unlock()
		return false
	default:
	}
	p.value, p.err = v, err
	callbacks := p.callbacks
	p.callbacks = nil
	close(p.done)
	p.mu.Unlock()

	for _, cb := range callbacks {
		cb(v, err)
	}
	return true
}

func (p *Pending[T]) Done() <-chan struct{} {
	return p.done
}

// Then registers fn to run once the call completes. It runs on the
// goroutine that completes the call, or immediately if already complete.
func (p *Pending[T]) Then(fn func(T, error)) {
	p.mu.Lock()
	select {
	case <-p.done:
		p.mu.Unlock()
		fn(p.value, p.err)
		return
	default:
	}
	p.callbacks = append(p.callbacks, fn)
	p.mu.Unlock()
}

// Await blocks until the call completes or ctx ends. When ctx ends first the
// call is abandoned and a late response will be dropped.
func (p *Pending[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.value, p.err
	default:
	}
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		p.abandon()
		var zero T
		return zero, fmt.Errorf("%w: %w", ErrRemoteTimeout, ctx.Err())
	}
}

// Wait is Await bounded by an explicit timeout.
func (p *Pending[T]) Wait(timeout time.Duration) (T, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return p.Await(ctx)
}

// Map derives a Pending whose value is fn applied to p's value.
func Map[A, B any](p *Pending[A], fn func(A) (B, error)) *Pending[B] {
	out := newPending[B]()
	out.abandon = p.abandon
	p.Then(func(a A, err error) {
		var zero B
		if err != nil {
			out.complete(zero, err)
			return
		}
		b, err := fn(a)
		out.complete(b, err)
	})
	return out
}
