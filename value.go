// Package valuestream implements a streaming, self-referential value
// serialization format: an encoder/decoder pair that transports structured
// in-memory values -- primitives, containers, tagged objects, and deferred
// values that resolve asynchronously -- across an ordered byte stream.
//
// The receiver observes the root value before all sub-values have arrived,
// and observes each deferred value independently as it settles at the
// sender. See doc.go for the wire format and package layout.
package valuestream

import (
	"math"
	"time"
)

// Undefined is the singleton "value absent" atom. It is distinct from nil
// (the "null" atom): a record field may be present and hold Undefined.
type Undefined struct{}

// Hole marks an absent position in a Seq. It is distinct from Undefined:
// a hole is not a value at all, so a decoded Seq reports the position as
// absent rather than present-with-Undefined.
type Hole struct{}

// NegativeZero is the singleton IEEE-754 negative zero atom, kept distinct
// from the ordinary float64 0 so that round-tripping preserves its sign.
type NegativeZero struct{}

// Symbol is a globally-interned value referenced by name. Two Symbols
// decoded from the same name in the same process compare equal and, more
// importantly, are fungible wherever symbol identity matters.
type Symbol string

// URL is a value's string form, kept as a distinct type from string so the
// walker and wire tokenizer can tell URLs and plain strings apart.
type URL string

// Timestamp is a UTC instant at millisecond precision.
type Timestamp time.Time

// Equal reports whether two timestamps denote the same millisecond instant.
func (t Timestamp) Equal(other Timestamp) bool {
	return time.Time(t).UnixMilli() == time.Time(other).UnixMilli()
}

// Regexp is a regular expression's pattern plus flag string. The codec
// never compiles it; it is carried as opaque text.
type Regexp struct {
	Source string
	Flags  string
}

// Seq is an ordered sequence that may contain holes (see Hole).
type Seq struct {
	Items []any
}

// Set is an unordered collection of unique elements, represented with
// insertion order preserved for deterministic re-encoding.
type Set struct {
	Items []any
}

// Record is a string-keyed mapping that preserves field insertion order.
// A key may map to Undefined while remaining present in Keys.
type Record struct {
	Keys   []string
	Values []any
}

// Get returns the value for key and whether the key is present.
func (r *Record) Get(key string) (any, bool) {
	for i, k := range r.Keys {
		if k == key {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Set assigns key to value, appending if key is not already present.
func (r *Record) Set(key string, value any) {
	for i, k := range r.Keys {
		if k == key {
			r.Values[i] = value
			return
		}
	}
	r.Keys = append(r.Keys, key)
	r.Values = append(r.Values, value)
}

// MapEntry is one key/value pair of a Mapping. Keys may be arbitrary
// values, including containers and deferreds.
type MapEntry struct {
	Key   any
	Value any
}

// Mapping is a general keyed mapping whose keys need not be strings.
type Mapping struct {
	Pairs []MapEntry
}

// ErrorValue is a tagged error: a kind name plus a message.
type ErrorValue struct {
	Kind    string
	Message string
}

func (e *ErrorValue) Error() string { return e.Kind + ": " + e.Message }

// Custom is an application-registered tagged record: a string tag plus an
// ordered sequence of sub-values, round-tripped through encoder/decoder
// plugins (see plugin.go).
type Custom struct {
	Tag    string
	Values []any
}

// IsAtom reports whether v is one of the singleton atoms that never
// occupies a reference-table slot (see sentinel.go).
func IsAtom(v any) bool {
	_, ok := sentinelFor(v)
	return ok
}

func isNaN(v any) bool {
	f, ok := v.(float64)
	return ok && math.IsNaN(f)
}
