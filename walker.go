package valuestream

import (
	"math/big"
	"time"

	"go.uber.org/atomic"
)

// walker is the Value Graph Walker (spec §4.1): it traverses one value tree
// and produces the reference table for exactly one frame. A root walker
// (isRoot true) numbers its table positions 0..n-1 and those positions
// double as the stream's permanent index space, since frame 0 establishes
// that numbering from scratch. A resolution walker's table positions are
// local to its own frame only; any new deferred it discovers draws its
// permanent index from the shared counter instead of its table position,
// because indices already spoken for by other frames must never collide
// (spec §4.4, §9 "cross-frame index space").
type walker struct {
	plugins       []EncoderPlugin
	isRoot        bool
	globalCounter *atomic.Int64
	onDeferred    func(globalIndex int, fut *Future)

	seen  map[any]int
	slots []wireSlot
}

func newWalker(isRoot bool, plugins []EncoderPlugin, counter *atomic.Int64, onDeferred func(int, *Future)) *walker {
	return &walker{
		plugins:       plugins,
		isRoot:        isRoot,
		globalCounter: counter,
		onDeferred:    onDeferred,
		seen:          make(map[any]int),
	}
}

// reserve appends an empty slot and returns its position, keeping the
// shared global counter in lockstep while walking frame 0 so that position
// and permanent index stay identical there.
func (w *walker) reserve() int {
	idx := len(w.slots)
	w.slots = append(w.slots, wireSlot{})
	if w.isRoot {
		w.globalCounter.Store(int64(idx + 1))
	}
	return idx
}

// walk encodes v, returning the index (sentinel or table position) that
// refers to it from a parent slot.
func (w *walker) walk(v any) (int, error) {
	if s, ok := sentinelFor(v); ok {
		return int(s), nil
	}
	if idx, ok := w.seen[v]; ok {
		return idx, nil
	}

	tag, subvalues, ok, err := dispatchEncoder(w.plugins, v)
	if err != nil {
		return 0, err
	}
	if ok {
		return w.walkCustom(v, tag, subvalues)
	}

	switch x := v.(type) {
	case *Custom:
		return w.walkCustom(v, x.Tag, x.Values)
	case *Deferred:
		idx := w.reserve()
		w.seen[v] = idx
		globalIdx := idx
		if !w.isRoot {
			globalIdx = int(w.globalCounter.Add(1)) - 1
		}
		w.slots[idx] = wireSlot{kind: slotTagged, code: codePending, elems: []wireElem{intElem(globalIdx)}}
		w.onDeferred(globalIdx, x.future)
		return idx, nil
	case float64:
		idx := w.reserve()
		w.slots[idx] = wireSlot{kind: slotNumber, num: x}
		return idx, nil
	case string:
		idx := w.reserve()
		w.slots[idx] = wireSlot{kind: slotString, str: x}
		return idx, nil
	case *big.Int:
		idx := w.reserve()
		w.slots[idx] = wireSlot{kind: slotTagged, code: codeBigInt, elems: []wireElem{stringElem(x.Text(10))}}
		return idx, nil
	case Timestamp:
		idx := w.reserve()
		millis := time.Time(x).UnixMilli()
		w.slots[idx] = wireSlot{kind: slotTagged, code: codeTimestamp, elems: []wireElem{intElem(int(millis))}}
		return idx, nil
	case Regexp:
		idx := w.reserve()
		w.slots[idx] = wireSlot{kind: slotTagged, code: codeRegexp, elems: []wireElem{stringElem(x.Source), stringElem(x.Flags)}}
		return idx, nil
	case Symbol:
		idx := w.reserve()
		w.slots[idx] = wireSlot{kind: slotTagged, code: codeSymbol, elems: []wireElem{stringElem(string(x))}}
		return idx, nil
	case URL:
		idx := w.reserve()
		w.slots[idx] = wireSlot{kind: slotTagged, code: codeURL, elems: []wireElem{stringElem(string(x))}}
		return idx, nil
	case *Seq:
		idx := w.reserve()
		w.seen[v] = idx
		elems := make([]wireElem, len(x.Items))
		for i, item := range x.Items {
			childIdx, err := w.walk(item)
			if err != nil {
				return 0, err
			}
			elems[i] = intElem(childIdx)
		}
		w.slots[idx] = wireSlot{kind: slotTagged, code: codeSeq, elems: elems}
		return idx, nil
	case *Set:
		idx := w.reserve()
		w.seen[v] = idx
		elems := make([]wireElem, len(x.Items))
		for i, item := range x.Items {
			childIdx, err := w.walk(item)
			if err != nil {
				return 0, err
			}
			elems[i] = intElem(childIdx)
		}
		w.slots[idx] = wireSlot{kind: slotTagged, code: codeSet, elems: elems}
		return idx, nil
	case *Record:
		idx := w.reserve()
		w.seen[v] = idx
		elems := make([]wireElem, 0, len(x.Keys)*2)
		for i, k := range x.Keys {
			childIdx, err := w.walk(x.Values[i])
			if err != nil {
				return 0, err
			}
			elems = append(elems, stringElem(k), intElem(childIdx))
		}
		w.slots[idx] = wireSlot{kind: slotTagged, code: codeRecord, elems: elems}
		return idx, nil
	case *Mapping:
		idx := w.reserve()
		w.seen[v] = idx
		elems := make([]wireElem, 0, len(x.Pairs)*2)
		for _, pair := range x.Pairs {
			kIdx, err := w.walk(pair.Key)
			if err != nil {
				return 0, err
			}
			vIdx, err := w.walk(pair.Value)
			if err != nil {
				return 0, err
			}
			elems = append(elems, intElem(kIdx), intElem(vIdx))
		}
		w.slots[idx] = wireSlot{kind: slotTagged, code: codeMapping, elems: elems}
		return idx, nil
	case *ErrorValue:
		idx := w.reserve()
		w.seen[v] = idx
		w.slots[idx] = wireSlot{kind: slotTagged, code: codeError, elems: []wireElem{stringElem(x.Kind), stringElem(x.Message)}}
		return idx, nil
	default:
		return 0, newUnsupportedValueError(v)
	}
}

// walkCustom encodes a tagged record, either one the caller constructed
// directly as *Custom or one an EncoderPlugin produced for an otherwise
// unrecognized value. identity is the dedup key: the original value, not
// the tag/subvalues the plugin derived from it.
func (w *walker) walkCustom(identity any, tag string, subvalues []any) (int, error) {
	idx := w.reserve()
	w.seen[identity] = idx
	elems := make([]wireElem, 0, len(subvalues)+1)
	elems = append(elems, stringElem(tag))
	for _, sv := range subvalues {
		childIdx, err := w.walk(sv)
		if err != nil {
			return 0, err
		}
		elems = append(elems, intElem(childIdx))
	}
	w.slots[idx] = wireSlot{kind: slotTagged, code: codeCustom, elems: elems}
	return idx, nil
}
