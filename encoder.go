package valuestream

import (
	"context"
	"io"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fenwick-stream/valuestream/env"
)

// Encoder walks one value graph and streams it as chunked frames (spec
// §1, §4). Internally it runs a single cooperative executor goroutine,
// supervised with golang.org/x/sync/errgroup the way the teacher
// supervises its writer goroutine, that serializes every resolution frame
// even though the deferreds that trigger them settle concurrently.
type Encoder struct {
	opts      encoderOptions
	transport env.WriteTransport
	id        uuid.UUID
}

// NewEncoder returns an Encoder that writes newline-delimited frames to w.
func NewEncoder(w io.Writer, opts ...EncodeOption) *Encoder {
	var o encoderOptions
	o.setDefault()
	for _, opt := range opts {
		opt(&o)
	}
	return &Encoder{opts: o, transport: env.NewLineWriter(w), id: uuid.New()}
}

// Encode walks root, writes frame 0, then writes one resolution frame per
// deferred as it settles, blocking until every deferred reachable from
// root (transitively, including ones discovered while encoding another
// deferred's payload) has settled and been written, or until ctx is
// cancelled. It closes the underlying transport before returning.
func (e *Encoder) Encode(ctx context.Context, root any) error {
	log := e.opts.logger.With(zap.Stringer("encoder", e.id))

	var counter atomic.Int64
	reg := newEncoderRegistry()

	rootWalker := newWalker(true, e.opts.plugins, &counter, func(idx int, fut *Future) {
		reg.register(idx, fut)
	})
	rootIdx, err := rootWalker.walk(root)
	if err != nil {
		_ = e.transport.Close()
		return err
	}
	rootFrame := frame{kind: frameRoot, payload: rootIdx, slots: rootWalker.slots}
	if err := writeFrame(e.transport, rootFrame); err != nil {
		_ = e.transport.Close()
		return err
	}
	log.Debug("wrote root frame", zap.Object("frame", &rootFrame))
	reg.markNoMoreInput()

	cctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	g, gctx := errgroup.WithContext(cctx)
	g.Go(func() error {
		return e.run(gctx, log, reg, &counter)
	})

	err = g.Wait()
	closeErr := e.transport.Close()
	return multierr.Append(err, closeErr)
}

// run is the single executor goroutine: it drains settlement jobs and
// writes the corresponding resolution frame for each, until the registry
// is drained or ctx is cancelled.
func (e *Encoder) run(ctx context.Context, log *zap.Logger, reg *encoderRegistry, counter *atomic.Int64) error {
	for {
		if reg.drained() {
			return nil
		}
		if job, ok := reg.nextJob(); ok {
			if err := e.emitResolution(log, reg, counter, job.index, job.ok, job.value); err != nil {
				return err
			}
			reg.settled(job.index)
			continue
		}
		select {
		case <-ctx.Done():
			reason := context.Cause(ctx)
			reasonValue := &ErrorValue{Kind: "cancelled", Message: reason.Error()}
			var errs error
			for _, idx := range reg.cancel() {
				if err := e.emitResolution(log, reg, counter, idx, false, reasonValue); err != nil {
					errs = multierr.Append(errs, err)
				}
			}
			return multierr.Append(errs, newCancelledError(reason))
		case <-reg.wake:
		}
	}
}

func (e *Encoder) emitResolution(log *zap.Logger, reg *encoderRegistry, counter *atomic.Int64, index int, ok bool, value any) error {
	if !ok {
		if _, isErrorValue := value.(*ErrorValue); !isErrorValue {
			if err, isErr := value.(error); isErr {
				value = &ErrorValue{Kind: "error", Message: err.Error()}
			}
		}
	}
	w := newWalker(false, e.opts.plugins, counter, func(idx int, fut *Future) {
		reg.register(idx, fut)
	})
	payloadIdx, err := w.walk(value)
	if err != nil {
		return err
	}
	kind := frameFulfill
	if !ok {
		kind = frameReject
	}
	resFrame := frame{kind: kind, target: index, payload: payloadIdx, slots: w.slots}
	if err := writeFrame(e.transport, resFrame); err != nil {
		return err
	}
	log.Debug("wrote resolution frame", zap.Object("frame", &resFrame))
	return nil
}
