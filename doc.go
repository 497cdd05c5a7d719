package valuestream

// Wire format
//
// A stream is a sequence of newline-delimited frames (frame.go). Every
// frame names the table position of the value it carries -- the root for
// frame 0, the settled payload for a resolution frame -- ahead of its
// reference table, since that value may itself be a singleton atom that
// never occupies a table slot (sentinel.go). Frame 0 carries only that:
//
//	<payload>:[slot, slot, ...]
//
// Every later frame additionally addresses a deferred by its permanent
// index and says whether it fulfilled or rejected:
//
//	F<index>:<payload>:[slot, ...]
//	R<index>:<payload>:[slot, ...]
//
// A slot is a bare number, a bare quoted string, or a tagged entry
// `[code, elem, elem, ...]` (wire.go's typeCode). Every reference from one
// slot to another -- a Seq element, a Record field's value, a Mapping's
// key or value, a frame's own payload -- is either a small negative
// sentinel index denoting a singleton atom or an index into the same
// table. Within frame 0 that index is the value's permanent, stream-wide
// identity; within a later frame it is local to that frame's own table,
// except a codePending entry's first element, which is always the
// permanent index of the deferred it introduces (walker.go, hydrator.go).
//
// Package layout
//
// value.go defines the dynamic value shape; sentinel.go and symbol.go the
// atom and symbol-interning tables; wire.go and frame.go the byte-level
// codec; walker.go the encoder-side graph traversal; hydrator.go the
// decoder-side parse-then-link pass; registry.go the bookkeeping shared
// by both sides for deferred values; deferred.go the Future/Deferred pair
// applications construct and observe; encoder.go and decoder.go the
// top-level entry points; options.go their functional options; errors.go
// the exported error taxonomy; plugin.go the application-extensible
// custom-type hook; env/ the transport boundary.
