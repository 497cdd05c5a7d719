package valuestream

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fenwick-stream/valuestream/env"
)

// Decoder is the Parser/Hydrator plus Deferred Registry pairing on the
// receiving side (spec §1, §4.4). Decode returns as soon as the root
// value is available; later resolution frames continue arriving and
// settling placeholders on a background goroutine until the stream ends.
type Decoder struct {
	opts      decoderOptions
	transport env.ReadTransport
	id        uuid.UUID
}

// NewDecoder returns a Decoder that reads newline-delimited frames from r.
func NewDecoder(r io.Reader, opts ...DecodeOption) *Decoder {
	var o decoderOptions
	o.setDefault()
	for _, opt := range opts {
		opt(&o)
	}
	return &Decoder{opts: o, transport: env.NewLineReader(r), id: uuid.New()}
}

// Decode reads frame 0, hydrates and returns its root value, then spawns a
// goroutine (supervised by an errgroup) that reads every later frame and
// settles the matching placeholder as it arrives. The returned cleanup
// function blocks until that goroutine exits -- at a clean end of stream,
// on ctx cancellation, or on the first fatal frame error -- and returns
// its aggregate error, rejecting any placeholder left pending.
func (d *Decoder) Decode(ctx context.Context) (root any, cleanup func() error, err error) {
	log := d.opts.logger.With(zap.Stringer("decoder", d.id))
	reg := newDecoderRegistry()

	f, err := readFrame(d.transport)
	if err != nil {
		_ = d.transport.Close()
		return nil, nil, err
	}
	if f.kind != frameRoot {
		_ = d.transport.Close()
		return nil, nil, newMalformedFrameError("", errors.New("first frame was not frame 0"))
	}
	root, err = hydrateFrame(f, d.opts.plugins, reg)
	if err != nil {
		_ = d.transport.Close()
		return nil, nil, err
	}
	log.Debug("hydrated root frame", zap.Object("frame", &f))

	cctx, cancel := context.WithCancelCause(ctx)
	g, _ := errgroup.WithContext(cctx)
	g.Go(func() error {
		return d.pump(cctx, log, reg)
	})

	cleanup = func() error {
		err := g.Wait()
		cancel(nil)
		closeErr := d.transport.Close()
		return multierr.Append(err, closeErr)
	}
	return root, cleanup, nil
}

// pump reads and settles frames until the stream closes or ctx is
// cancelled.
func (d *Decoder) pump(ctx context.Context, log *zap.Logger, reg *decoderRegistry) error {
	frames := make(chan frame)
	readErrs := make(chan error, 1)
	go func() {
		defer close(frames)
		for {
			f, err := readFrame(d.transport)
			if err != nil {
				if err != io.EOF {
					readErrs <- err
				}
				return
			}
			select {
			case frames <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return reg.cancel(context.Cause(ctx))
		case f, ok := <-frames:
			if !ok {
				select {
				case err := <-readErrs:
					var errs error
					errs = multierr.Append(errs, err)
					return multierr.Append(errs, reg.cancel(err))
				default:
					return reg.closeWithoutResolution()
				}
			}
			if err := d.settleFrame(log, reg, f); err != nil {
				return multierr.Append(err, reg.cancel(err))
			}
		}
	}
}

func (d *Decoder) settleFrame(log *zap.Logger, reg *decoderRegistry, f frame) error {
	value, err := hydrateFrame(f, d.opts.plugins, reg)
	if err != nil {
		return err
	}
	ok := f.kind == frameFulfill
	if err := reg.settle(f.target, ok, value); err != nil {
		return err
	}
	log.Debug("settled placeholder", zap.Object("frame", &f))
	return nil
}
