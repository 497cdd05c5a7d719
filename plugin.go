package valuestream

import "fmt"

// EncoderPlugin inspects a value and either declines (ok=false) or returns
// the tag and ordered sub-values to encode in its place (spec §4.1,
// §6.2). Plugins are consulted in registration order, first match wins, so
// a caller can shadow a built-in kind (e.g. a custom error subtype) by
// registering a plugin ahead of it.
type EncoderPlugin func(v any) (tag string, subvalues []any, ok bool)

// DecoderPlugin rebuilds a value from a tag and its already-hydrated
// sub-values, or declines (ok=false) so the next plugin in the list gets a
// turn.
type DecoderPlugin func(tag string, subvalues []any) (value any, ok bool)

// dispatchEncoder consults plugins in order and returns the first match. A
// plugin that panics is converted into a PluginError (spec §7: "a plugin
// threw ... Fatal to the call that invoked it") rather than crashing the
// encode call.
func dispatchEncoder(plugins []EncoderPlugin, v any) (tag string, subvalues []any, ok bool, err error) {
	for _, p := range plugins {
		tag, subvalues, ok, err = callEncoderPlugin(p, v)
		if err != nil {
			return "", nil, false, err
		}
		if ok {
			return tag, subvalues, true, nil
		}
	}
	return "", nil, false, nil
}

func callEncoderPlugin(p EncoderPlugin, v any) (tag string, subvalues []any, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			tag, subvalues, ok = "", nil, false
			err = newPluginError(tag, recoverToError(r))
		}
	}()
	tag, subvalues, ok = p(v)
	return tag, subvalues, ok, nil
}

// dispatchDecoder consults plugins in order and returns the first match.
func dispatchDecoder(plugins []DecoderPlugin, tag string, subvalues []any) (value any, ok bool, err error) {
	for _, p := range plugins {
		value, ok, err = callDecoderPlugin(p, tag, subvalues)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return value, true, nil
		}
	}
	return nil, false, nil
}

func callDecoderPlugin(p DecoderPlugin, tag string, subvalues []any) (value any, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			value, ok = nil, false
			err = newPluginError(tag, recoverToError(r))
		}
	}()
	value, ok = p(tag, subvalues)
	return value, ok, nil
}

func recoverToError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return errStringer(fmt.Sprint(r))
}
