package valuestream

import (
	"sync"

	"github.com/google/btree"
	"go.uber.org/multierr"
)

// pendingEntry orders outstanding indices for deterministic Ascend
// iteration (used only when rejecting everything on cancel/close).
type pendingEntry struct{ index int }

func pendingLess(a, b *pendingEntry) bool { return a.index < b.index }

// settleJob is one resolved deferred waiting for its frame to be written.
type settleJob struct {
	index int
	ok    bool
	value any
}

// encoderRegistry is the encoder side of the Deferred Registry (spec §4.3):
// it tracks every registered (index, future) pair until it settles. Its
// pending/outstanding/noMoreInput/done fields are owned exclusively by the
// synchronous frame-0 walk and, after that, by the single executor
// goroutine that drains jobs -- never by the goroutines that call
// Resolve/Reject on a Future. Those only ever append to the unbounded
// jobsQ queue, guarded by jobsMu, and ping wake -- never blocking, since a
// future can settle (and so enqueue) from the frame-0 walk itself, before
// the executor goroutine exists to drain anything. That division is what
// lets the rest of the codec stay lock-free despite deferreds settling
// concurrently.
type encoderRegistry struct {
	pending     *btree.BTreeG[*pendingEntry]
	outstanding int
	noMoreInput bool
	done        bool

	jobsMu sync.Mutex
	jobsQ  []settleJob
	wake   chan struct{}
}

func newEncoderRegistry() *encoderRegistry {
	return &encoderRegistry{
		pending: btree.NewG(8, pendingLess),
		wake:    make(chan struct{}, 1),
	}
}

// register records index as outstanding and arranges for its settlement to
// be appended to r.jobsQ. Must only be called from the frame-0 walk or the
// executor goroutine.
func (r *encoderRegistry) register(index int, fut *Future) {
	if r.done {
		return
	}
	r.pending.ReplaceOrInsert(&pendingEntry{index: index})
	r.outstanding++
	fut.onSettle(func(ok bool, value any) {
		r.jobsMu.Lock()
		r.jobsQ = append(r.jobsQ, settleJob{index: index, ok: ok, value: value})
		r.jobsMu.Unlock()
		select {
		case r.wake <- struct{}{}:
		default:
		}
	})
}

// nextJob pops the oldest queued settlement, if any is waiting. The queue
// has no capacity limit -- a future settling during the synchronous
// frame-0 walk, before the executor goroutine that calls this even exists,
// must never block the goroutine doing that walk.
func (r *encoderRegistry) nextJob() (settleJob, bool) {
	r.jobsMu.Lock()
	defer r.jobsMu.Unlock()
	if len(r.jobsQ) == 0 {
		return settleJob{}, false
	}
	job := r.jobsQ[0]
	r.jobsQ = r.jobsQ[1:]
	return job, true
}

// settled records that index's resolution frame has been written. Must
// only be called from the executor goroutine.
func (r *encoderRegistry) settled(index int) {
	r.pending.Delete(&pendingEntry{index: index})
	r.outstanding--
}

// markNoMoreInput records that no further top-level value will be handed
// to this encoder (for the blocking Encode call this is true immediately
// after frame 0 is written, since there is only ever one root value).
func (r *encoderRegistry) markNoMoreInput() {
	r.noMoreInput = true
}

// drained reports whether every registered deferred has settled and no
// further input is expected: the point at which the stream can close.
func (r *encoderRegistry) drained() bool {
	return r.noMoreInput && r.outstanding == 0
}

// cancel stops accepting new registrations and returns every still-outstanding
// index in ascending order, for the executor to reject with the
// cancellation reason. Must only be called from the executor goroutine.
func (r *encoderRegistry) cancel() []int {
	if r.done {
		return nil
	}
	r.done = true
	var indices []int
	r.pending.Ascend(func(e *pendingEntry) bool {
		indices = append(indices, e.index)
		return true
	})
	r.pending.Clear(false)
	return indices
}

// decoderRegistry is the decoder side (spec §4.3): it tracks every
// installed placeholder until its resolution frame arrives, or until the
// stream closes or is cancelled, at which point every placeholder still
// pending is rejected.
type decoderRegistry struct {
	pending      *btree.BTreeG[*pendingEntry]
	placeholders map[int]*Deferred
}

func newDecoderRegistry() *decoderRegistry {
	return &decoderRegistry{
		pending:      btree.NewG(8, pendingLess),
		placeholders: make(map[int]*Deferred),
	}
}

// install registers d as the placeholder for index.
func (r *decoderRegistry) install(index int, d *Deferred) {
	r.pending.ReplaceOrInsert(&pendingEntry{index: index})
	r.placeholders[index] = d
}

// settle resolves or rejects the placeholder at index, or returns
// UnexpectedResolutionError if index was never installed or already
// settled.
func (r *decoderRegistry) settle(index int, ok bool, value any) error {
	d, exists := r.placeholders[index]
	if !exists {
		return newUnexpectedResolutionError(index)
	}
	delete(r.placeholders, index)
	r.pending.Delete(&pendingEntry{index: index})
	if ok {
		d.future.Resolve(value)
	} else {
		d.future.Reject(value)
	}
	return nil
}

// closeWithoutResolution rejects every placeholder still pending with
// ClosedWithoutResolutionError, aggregating via multierr (spec §4.3, §7).
func (r *decoderRegistry) closeWithoutResolution() error {
	var errs error
	r.pending.Ascend(func(e *pendingEntry) bool {
		d := r.placeholders[e.index]
		err := newClosedWithoutResolutionError(e.index)
		d.future.Reject(err)
		errs = multierr.Append(errs, err)
		return true
	})
	r.placeholders = make(map[int]*Deferred)
	r.pending.Clear(false)
	return errs
}

// cancel rejects every placeholder still pending with reason, wrapped as a
// CancelledError.
func (r *decoderRegistry) cancel(reason error) error {
	cancelled := newCancelledError(reason)
	var errs error
	r.pending.Ascend(func(e *pendingEntry) bool {
		d := r.placeholders[e.index]
		d.future.Reject(cancelled)
		errs = multierr.Append(errs, cancelled)
		return true
	})
	r.placeholders = make(map[int]*Deferred)
	r.pending.Clear(false)
	return errs
}
