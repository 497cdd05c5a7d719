package valuestream

import (
	"go.uber.org/zap"
)

// encoderOptions holds everything an Encoder needs beyond the transport
// itself. setDefault fills in the zero-value-unsafe fields the same way
// the teacher's WOption/ROption types do.
type encoderOptions struct {
	logger  *zap.Logger
	plugins []EncoderPlugin
}

func (o *encoderOptions) setDefault() {
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
}

// EncodeOption configures an Encoder at construction time.
type EncodeOption func(*encoderOptions)

// WithEncoderLogger overrides the default no-op logger.
func WithEncoderLogger(l *zap.Logger) EncodeOption {
	return func(o *encoderOptions) { o.logger = l }
}

// WithEncoderPlugins registers plugins consulted in order, first match
// wins, ahead of the built-in kind table (spec §4.1, §6.2).
func WithEncoderPlugins(plugins ...EncoderPlugin) EncodeOption {
	return func(o *encoderOptions) { o.plugins = append(o.plugins, plugins...) }
}

// decoderOptions holds everything a Decoder needs beyond the transport.
type decoderOptions struct {
	logger  *zap.Logger
	plugins []DecoderPlugin
}

func (o *decoderOptions) setDefault() {
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
}

// DecodeOption configures a Decoder at construction time.
type DecodeOption func(*decoderOptions)

// WithDecoderLogger overrides the default no-op logger.
func WithDecoderLogger(l *zap.Logger) DecodeOption {
	return func(o *decoderOptions) { o.logger = l }
}

// WithDecoderPlugins registers plugins consulted in order, first match
// wins, for codeCustom entries that no earlier plugin claimed.
func WithDecoderPlugins(plugins ...DecoderPlugin) DecodeOption {
	return func(o *decoderOptions) { o.plugins = append(o.plugins, plugins...) }
}
