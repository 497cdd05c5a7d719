package valuestream

import (
	"math/big"
	"time"
)

// hydrator is the decoder-side Parser/Hydrator (spec §4.4): given one
// frame's already-tokenized reference table, it builds the frame's shells
// first (so cyclic/forward references resolve to the right pointer) and
// fills their contents second.
type hydrator struct {
	plugins  []DecoderPlugin
	registry *decoderRegistry
	slots    []wireSlot
	values   []any
}

// hydrateFrame turns f's reference table into concrete values and returns
// the value f.payload denotes: frame 0's root value, or a resolution
// frame's settled payload. payload may be a sentinel (an atom, never
// occupying a table slot) or a position in the just-built table.
func hydrateFrame(f frame, plugins []DecoderPlugin, registry *decoderRegistry) (any, error) {
	h := &hydrator{plugins: plugins, registry: registry, slots: f.slots, values: make([]any, len(f.slots))}
	for i := range f.slots {
		if err := h.shell(i); err != nil {
			return nil, err
		}
	}
	filled := make([]bool, len(f.slots))
	filling := make([]bool, len(f.slots))
	for i := range f.slots {
		if err := h.fillOrdered(i, filled, filling); err != nil {
			return nil, err
		}
	}
	return h.resolve(f.payload)
}

// resolve turns a child reference (a sentinel index or a local table
// position) into the value it denotes. It is safe to call during the fill
// phase even for a position not yet filled that is a built-in container,
// because those are mutated in place behind the pointer shell built in the
// first phase; fillOrdered additionally guarantees that a codeCustom
// child -- which has no such shell, since its final value is whatever an
// application plugin constructs -- is always filled before anything that
// references it, except across an actual cycle running through it.
func (h *hydrator) resolve(idx int) (any, error) {
	if isSentinel(idx) {
		v, ok := atomFor(sentinel(idx))
		if !ok {
			return nil, newUnknownReferenceError(idx)
		}
		return v, nil
	}
	if idx < 0 || idx >= len(h.slots) {
		return nil, newUnknownReferenceError(idx)
	}
	return h.values[idx], nil
}

func (h *hydrator) shell(i int) error {
	s := h.slots[i]
	switch s.kind {
	case slotNumber:
		h.values[i] = s.num
		return nil
	case slotString:
		h.values[i] = s.str
		return nil
	}

	if err := validateTaggedShape(s); err != nil {
		return err
	}

	switch s.code {
	case codeSeq:
		h.values[i] = &Seq{Items: make([]any, len(s.elems))}
	case codeSet:
		h.values[i] = &Set{Items: make([]any, len(s.elems))}
	case codeRecord:
		n := len(s.elems) / 2
		h.values[i] = &Record{Keys: make([]string, n), Values: make([]any, n)}
	case codeMapping:
		n := len(s.elems) / 2
		h.values[i] = &Mapping{Pairs: make([]MapEntry, n)}
	case codeCustom:
		h.values[i] = nil // materialized by fillOrdered once every subvalue it references is built
	case codeBigInt:
		n := new(big.Int)
		if _, ok := n.SetString(s.elems[0].s, 10); !ok {
			return newMalformedFrameError("", errStringer("invalid integer literal"))
		}
		h.values[i] = n
	case codeTimestamp:
		h.values[i] = Timestamp(time.UnixMilli(int64(s.elems[0].i)).UTC())
	case codeRegexp:
		h.values[i] = Regexp{Source: s.elems[0].s, Flags: s.elems[1].s}
	case codeSymbol:
		h.values[i] = Intern(s.elems[0].s)
	case codeURL:
		h.values[i] = URL(s.elems[0].s)
	case codeError:
		h.values[i] = &ErrorValue{Kind: s.elems[0].s, Message: s.elems[1].s}
	case codePending:
		globalIdx := s.elems[0].i
		d := NewDeferred(NewFuture())
		h.registry.install(globalIdx, d)
		h.values[i] = d
	default:
		return newMalformedFrameError("", errStringer("unknown type code"))
	}
	return nil
}

// validateTaggedShape checks a tagged slot's element count and the
// string/int shape of each element against what its type code requires,
// before shell/fill ever index into s.elems. Without this, a frame that
// tokenizes cleanly but carries the wrong shape for its code (a one-element
// regexp, an odd-length record) would panic deep inside shell/fill rather
// than failing the decode with MalformedFrameError per spec §7.
func validateTaggedShape(s wireSlot) error {
	switch s.code {
	case codeSeq, codeSet:
		return requireElemShapes(s.elems, false)
	case codeRecord:
		if len(s.elems)%2 != 0 {
			return newMalformedFrameError("", errStringer("record entry has odd element count"))
		}
		for i, e := range s.elems {
			if e.isString != (i%2 == 0) {
				return newMalformedFrameError("", errStringer("record entry has wrong key/value shape"))
			}
		}
	case codeMapping:
		if len(s.elems)%2 != 0 {
			return newMalformedFrameError("", errStringer("mapping entry has odd element count"))
		}
		return requireElemShapes(s.elems, false)
	case codeCustom:
		if len(s.elems) == 0 || !s.elems[0].isString {
			return newMalformedFrameError("", errStringer("custom entry missing tag"))
		}
		return requireElemShapes(s.elems[1:], false)
	case codeBigInt, codeSymbol, codeURL:
		if len(s.elems) != 1 || !s.elems[0].isString {
			return newMalformedFrameError("", errStringer("tagged entry expects exactly one string element"))
		}
	case codeTimestamp, codePending:
		if len(s.elems) != 1 || s.elems[0].isString {
			return newMalformedFrameError("", errStringer("tagged entry expects exactly one integer element"))
		}
	case codeRegexp, codeError:
		if len(s.elems) != 2 || !s.elems[0].isString || !s.elems[1].isString {
			return newMalformedFrameError("", errStringer("tagged entry expects exactly two string elements"))
		}
	}
	return nil
}

// requireElemShapes checks that every element in elems is an int (if
// wantString is false) or a string (if true).
func requireElemShapes(elems []wireElem, wantString bool) error {
	for _, e := range elems {
		if e.isString != wantString {
			return newMalformedFrameError("", errStringer("tagged entry element has wrong shape"))
		}
	}
	return nil
}

// children returns the raw child indices s.elems carries for slot i,
// independent of what fill does with them -- used only by fillOrdered to
// choose a leaf-first visiting order. Sentinel indices are included; the
// caller skips them.
func (h *hydrator) children(i int) []int {
	s := h.slots[i]
	if s.kind != slotTagged {
		return nil
	}
	var out []int
	switch s.code {
	case codeSeq, codeSet, codeMapping:
		for _, e := range s.elems {
			out = append(out, e.i)
		}
	case codeRecord:
		for j := 1; j < len(s.elems); j += 2 {
			out = append(out, s.elems[j].i)
		}
	case codeCustom:
		for _, e := range s.elems[1:] {
			out = append(out, e.i)
		}
	}
	return out
}

// fillOrdered fills slot i only after filling every slot it references, so
// a codeCustom child is always resolved before anything that holds it --
// unlike the built-in containers, a custom has no stable shell pointer
// handed out in advance, since its final value is whatever an application
// plugin constructs from its subvalues. A slot already on the call stack
// (filling[i]) denotes a cycle: it is left for the caller to pick up
// through the shell built in the first phase, the same way the rest of the
// two-phase algorithm closes cycles. A cycle running through a codeCustom
// value is the one case this can't close, since that shell is nil until
// fill constructs it (see DESIGN.md).
func (h *hydrator) fillOrdered(i int, filled, filling []bool) error {
	if filled[i] || filling[i] {
		return nil
	}
	filling[i] = true
	for _, child := range h.children(i) {
		if isSentinel(child) || child < 0 || child >= len(h.slots) {
			continue
		}
		if err := h.fillOrdered(child, filled, filling); err != nil {
			return err
		}
	}
	filling[i] = false
	if err := h.fill(i); err != nil {
		return err
	}
	filled[i] = true
	return nil
}

// fill links a shell's children once every child slot it depends on has
// itself been filled (fillOrdered guarantees this for everything but a
// cycle through a custom). Scalars and pending placeholders were already
// fully built in shell(i) and are left untouched here.
func (h *hydrator) fill(i int) error {
	s := h.slots[i]
	if s.kind != slotTagged {
		return nil
	}
	switch s.code {
	case codeSeq:
		seq := h.values[i].(*Seq)
		for j, e := range s.elems {
			v, err := h.resolve(e.i)
			if err != nil {
				return err
			}
			seq.Items[j] = v
		}
	case codeSet:
		set := h.values[i].(*Set)
		for j, e := range s.elems {
			v, err := h.resolve(e.i)
			if err != nil {
				return err
			}
			set.Items[j] = v
		}
	case codeRecord:
		rec := h.values[i].(*Record)
		for j := 0; j < len(s.elems); j += 2 {
			v, err := h.resolve(s.elems[j+1].i)
			if err != nil {
				return err
			}
			rec.Keys[j/2] = s.elems[j].s
			rec.Values[j/2] = v
		}
	case codeMapping:
		m := h.values[i].(*Mapping)
		for j := 0; j < len(s.elems); j += 2 {
			k, err := h.resolve(s.elems[j].i)
			if err != nil {
				return err
			}
			v, err := h.resolve(s.elems[j+1].i)
			if err != nil {
				return err
			}
			m.Pairs[j/2] = MapEntry{Key: k, Value: v}
		}
	case codeCustom:
		tag := s.elems[0].s
		subvalues := make([]any, len(s.elems)-1)
		for j, e := range s.elems[1:] {
			v, err := h.resolve(e.i)
			if err != nil {
				return err
			}
			subvalues[j] = v
		}
		value, ok, err := dispatchDecoder(h.plugins, tag, subvalues)
		if err != nil {
			return err
		}
		if !ok {
			value = &Custom{Tag: tag, Values: subvalues}
		}
		h.values[i] = value
	}
	return nil
}
