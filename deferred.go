package valuestream

import (
	"context"
	"sync"
)

// Future is the encoder-side counterpart of a deferred value: something
// that settles with a value or an error exactly once, some time after it is
// handed to Encode (spec §4.3 "(index, pending future, completion
// callback)"). Hosts without a native async primitive construct one with
// NewFuture and call Resolve/Reject from wherever the underlying work
// completes.
type Future struct {
	mu      sync.Mutex
	done    bool
	ok      bool
	value   any
	waiters []func(ok bool, value any)
}

// NewFuture returns an unsettled Future.
func NewFuture() *Future { return &Future{} }

// Resolve settles the future as fulfilled. A second call (Resolve or
// Reject) is a no-op: a future settles exactly once.
func (f *Future) Resolve(value any) { f.settle(true, value) }

// Reject settles the future as rejected with reason.
func (f *Future) Reject(reason any) { f.settle(false, reason) }

func (f *Future) settle(ok bool, value any) {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return
	}
	f.done, f.ok, f.value = true, ok, value
	waiters := f.waiters
	f.waiters = nil
	f.mu.Unlock()
	for _, w := range waiters {
		w(ok, value)
	}
}

// onSettle registers fn to run exactly once when the future settles, or
// immediately (still exactly once) if it already has.
func (f *Future) onSettle(fn func(ok bool, value any)) {
	f.mu.Lock()
	if f.done {
		ok, value := f.ok, f.value
		f.mu.Unlock()
		fn(ok, value)
		return
	}
	f.waiters = append(f.waiters, fn)
	f.mu.Unlock()
}

// Deferred is a value whose payload arrives in a later frame (spec §3.1,
// §9 "Deferred as first-class value"). The same *Deferred serves both
// roles the spec describes: on the encoder side the caller embeds one
// wrapping a Future it (or something downstream) will settle; on the
// decoder side the Hydrator installs one as a placeholder and settles it
// itself when the matching resolution frame arrives.
type Deferred struct {
	future *Future
}

// NewDeferred wraps fut as an encodable deferred value.
func NewDeferred(fut *Future) *Deferred { return &Deferred{future: fut} }

// Future returns the underlying Future.
func (d *Deferred) Future() *Future { return d.future }

// Await blocks until d settles or ctx is done, returning the fulfilled
// value, or an error (the rejection reason, wrapped if it isn't already an
// error, or ctx.Err() on timeout/cancellation).
func (d *Deferred) Await(ctx context.Context) (any, error) {
	result := make(chan struct {
		ok    bool
		value any
	}, 1)
	d.future.onSettle(func(ok bool, value any) {
		result <- struct {
			ok    bool
			value any
		}{ok, value}
	})
	select {
	case r := <-result:
		if r.ok {
			return r.value, nil
		}
		if err, ok := r.value.(error); ok {
			return nil, err
		}
		return nil, newRejectionError(r.value)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// OnSettle registers a callback invoked exactly once when d settles.
func (d *Deferred) OnSettle(fn func(value any, err error)) {
	d.future.onSettle(func(ok bool, value any) {
		if ok {
			fn(value, nil)
			return
		}
		if err, ok := value.(error); ok {
			fn(nil, err)
			return
		}
		fn(nil, newRejectionError(value))
	})
}

// rejectionError adapts a non-error rejection reason (spec §3.1: "Rejection
// carries an arbitrary value") into an error for Await/OnSettle callers.
type rejectionError struct{ reason any }

func (e *rejectionError) Error() string { return "valuestream: deferred rejected" }
func (e *rejectionError) Reason() any   { return e.reason }

func newRejectionError(reason any) error { return &rejectionError{reason: reason} }
