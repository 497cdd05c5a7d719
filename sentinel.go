package valuestream

import "math"

// Singleton atoms never occupy a reference-table slot (spec §3.2). Instead
// every place an atom is referenced -- a Seq element, a Record value, a
// Mapping key or value, a Set member, frame 0's root slot itself -- carries
// one of these small negative sentinel indices directly. The mapping is
// fixed and must agree between every encoder and decoder instance.
type sentinel int

const (
	sentinelUndefined sentinel = -1 - iota
	sentinelNull
	sentinelTrue
	sentinelFalse
	sentinelPositiveInfinity
	sentinelNegativeInfinity
	sentinelNaN
	sentinelNegativeZero
	sentinelEmptyString
	sentinelHole
)

// isSentinel reports whether idx falls in the reserved negative range.
func isSentinel(idx int) bool {
	return idx <= int(sentinelUndefined)
}

// sentinelFor returns the sentinel for v if v is a singleton atom.
func sentinelFor(v any) (sentinel, bool) {
	switch x := v.(type) {
	case Undefined:
		return sentinelUndefined, true
	case nil:
		return sentinelNull, true
	case bool:
		if x {
			return sentinelTrue, true
		}
		return sentinelFalse, true
	case NegativeZero:
		return sentinelNegativeZero, true
	case Hole:
		return sentinelHole, true
	case float64:
		switch {
		case math.IsInf(x, 1):
			return sentinelPositiveInfinity, true
		case math.IsInf(x, -1):
			return sentinelNegativeInfinity, true
		case math.IsNaN(x):
			return sentinelNaN, true
		}
	case string:
		if x == "" {
			return sentinelEmptyString, true
		}
	}
	return 0, false
}

// atomFor is the inverse of sentinelFor, used by the hydrator to turn a
// sentinel index back into the atom it denotes.
func atomFor(s sentinel) (any, bool) {
	switch s {
	case sentinelUndefined:
		return Undefined{}, true
	case sentinelNull:
		return nil, true
	case sentinelTrue:
		return true, true
	case sentinelFalse:
		return false, true
	case sentinelPositiveInfinity:
		return math.Inf(1), true
	case sentinelNegativeInfinity:
		return math.Inf(-1), true
	case sentinelNaN:
		return math.NaN(), true
	case sentinelNegativeZero:
		return NegativeZero{}, true
	case sentinelEmptyString:
		return "", true
	case sentinelHole:
		return Hole{}, true
	}
	return nil, false
}
