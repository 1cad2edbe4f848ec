package store

import "context"

// Pending is the eventual result of a store operation. It resolves once the
// statement has committed or failed.
type Pending[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newPending[T any]() *Pending[T] {
	return &Pending[T]{done: make(chan struct{})}
}

func (p *Pending[T]) resolve(val T, err error) {
	p.val = val
	p.err = err
	close(p.done)
}

// rejected returns an already-failed result.
func rejected[T any](err error) *Pending[T] {
	p := newPending[T]()
	var zero T
	p.resolve(zero, err)
	return p
}

// Done is closed when the result is available.
func (p *Pending[T]) Done() <-chan struct{} {
	return p.done
}

// Await blocks until the operation resolves or ctx ends. The operation keeps
// running if ctx ends first.
func (p *Pending[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.val, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Err waits for the result and returns only its error.
func (p *Pending[T]) Err(ctx context.Context) error {
	_, err := p.Await(ctx)
	return err
}
