package valuestream

import (
	"bytes"
	"context"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encode runs a full, blocking encode of root into a buffer and returns it.
func encode(t *testing.T, root any, opts ...EncodeOption) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	enc := NewEncoder(&buf, opts...)
	err := enc.Encode(context.Background(), root)
	require.NoError(t, err)
	return &buf
}

// decode hydrates the root value from buf and returns it along with a
// cleanup function that must be called before the test ends.
func decode(t *testing.T, buf *bytes.Buffer, opts ...DecodeOption) (any, func()) {
	t.Helper()
	dec := NewDecoder(buf, opts...)
	root, cleanup, err := dec.Decode(context.Background())
	require.NoError(t, err)
	return root, func() {
		err := cleanup()
		assert.NoError(t, err)
	}
}

func TestRoundTripScalars(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   any
	}{
		{"float", 42.5},
		{"string", "hello"},
		{"empty string", ""},
		{"bool true", true},
		{"bool false", false},
		{"null", nil},
		{"undefined", Undefined{}},
		{"negative zero", NegativeZero{}},
		{"infinity", math.Inf(1)},
		{"negative infinity", math.Inf(-1)},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			buf := encode(t, tc.in)
			got, cleanup := decode(t, buf)
			defer cleanup()
			assert.Equal(t, tc.in, got)
		})
	}
}

func TestRoundTripNaN(t *testing.T) {
	t.Parallel()
	buf := encode(t, math.NaN())
	got, cleanup := decode(t, buf)
	defer cleanup()
	assert.True(t, isNaN(got))
}

func TestRoundTripBigInt(t *testing.T) {
	t.Parallel()
	n, ok := new(big.Int).SetString("123456789012345678901234567890", 10)
	require.True(t, ok)
	buf := encode(t, n)
	got, cleanup := decode(t, buf)
	defer cleanup()
	gotInt, ok := got.(*big.Int)
	require.True(t, ok)
	assert.Equal(t, 0, n.Cmp(gotInt))
}

func TestRoundTripTimestamp(t *testing.T) {
	t.Parallel()
	want := Timestamp(time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC))
	buf := encode(t, want)
	got, cleanup := decode(t, buf)
	defer cleanup()
	gotTs, ok := got.(Timestamp)
	require.True(t, ok)
	assert.True(t, want.Equal(gotTs))
}

func TestRoundTripRegexpAndURLAndSymbol(t *testing.T) {
	t.Parallel()
	root := &Record{
		Keys: []string{"pattern", "page", "tag"},
		Values: []any{
			Regexp{Source: `\d+`, Flags: "g"},
			URL("https://example.com/path"),
			Intern("widget"),
		},
	}
	buf := encode(t, root)
	got, cleanup := decode(t, buf)
	defer cleanup()

	rec, ok := got.(*Record)
	require.True(t, ok)
	assert.Equal(t, Regexp{Source: `\d+`, Flags: "g"}, rec.Values[0])
	assert.Equal(t, URL("https://example.com/path"), rec.Values[1])
	assert.Equal(t, Symbol("widget"), rec.Values[2])
}

func TestRoundTripSeqWithHole(t *testing.T) {
	t.Parallel()
	root := &Seq{Items: []any{1.0, Hole{}, "three"}}
	buf := encode(t, root)
	got, cleanup := decode(t, buf)
	defer cleanup()

	seq, ok := got.(*Seq)
	require.True(t, ok)
	require.Len(t, seq.Items, 3)
	assert.Equal(t, 1.0, seq.Items[0])
	assert.Equal(t, Hole{}, seq.Items[1])
	assert.Equal(t, "three", seq.Items[2])
}

func TestRoundTripRecordWithUndefinedField(t *testing.T) {
	t.Parallel()
	root := &Record{Keys: []string{"name", "nickname"}, Values: []any{"Ada", Undefined{}}}
	buf := encode(t, root)
	got, cleanup := decode(t, buf)
	defer cleanup()

	rec, ok := got.(*Record)
	require.True(t, ok)
	v, present := rec.Get("nickname")
	assert.True(t, present)
	assert.Equal(t, Undefined{}, v)
}

func TestRoundTripSet(t *testing.T) {
	t.Parallel()
	root := &Set{Items: []any{"a", "b", "c"}}
	buf := encode(t, root)
	got, cleanup := decode(t, buf)
	defer cleanup()
	set, ok := got.(*Set)
	require.True(t, ok)
	assert.Equal(t, []any{"a", "b", "c"}, set.Items)
}

func TestRoundTripMapping(t *testing.T) {
	t.Parallel()
	root := &Mapping{Pairs: []MapEntry{
		{Key: "one", Value: 1.0},
		{Key: 2.0, Value: "two"},
	}}
	buf := encode(t, root)
	got, cleanup := decode(t, buf)
	defer cleanup()
	m, ok := got.(*Mapping)
	require.True(t, ok)
	require.Len(t, m.Pairs, 2)
	assert.Equal(t, "one", m.Pairs[0].Key)
	assert.Equal(t, 1.0, m.Pairs[0].Value)
	assert.Equal(t, 2.0, m.Pairs[1].Key)
	assert.Equal(t, "two", m.Pairs[1].Value)
}

func TestRoundTripErrorValue(t *testing.T) {
	t.Parallel()
	root := &ErrorValue{Kind: "TypeError", Message: "not a function"}
	buf := encode(t, root)
	got, cleanup := decode(t, buf)
	defer cleanup()
	e, ok := got.(*ErrorValue)
	require.True(t, ok)
	assert.Equal(t, "TypeError", e.Kind)
	assert.Equal(t, "not a function", e.Message)
}

// TestSharedReference checks that two positions pointing at the same
// container round-trip as the same pointer, not two separate copies.
func TestSharedReference(t *testing.T) {
	t.Parallel()
	shared := &Record{Keys: []string{"n"}, Values: []any{1.0}}
	root := &Seq{Items: []any{shared, shared}}
	buf := encode(t, root)
	got, cleanup := decode(t, buf)
	defer cleanup()

	seq, ok := got.(*Seq)
	require.True(t, ok)
	require.Len(t, seq.Items, 2)
	assert.Same(t, seq.Items[0], seq.Items[1])
}

// TestSelfReferentialRecord is scenario 5: a record containing itself.
func TestSelfReferentialRecord(t *testing.T) {
	t.Parallel()
	root := &Record{Keys: []string{"self"}, Values: []any{nil}}
	root.Values[0] = root

	buf := encode(t, root)
	got, cleanup := decode(t, buf)
	defer cleanup()

	rec, ok := got.(*Record)
	require.True(t, ok)
	self, present := rec.Get("self")
	require.True(t, present)
	assert.Same(t, rec, self)
}

// TestCyclicSeq checks cycle preservation through a container kind other
// than Record.
func TestCyclicSeq(t *testing.T) {
	t.Parallel()
	root := &Seq{Items: make([]any, 1)}
	root.Items[0] = root

	buf := encode(t, root)
	got, cleanup := decode(t, buf)
	defer cleanup()

	seq, ok := got.(*Seq)
	require.True(t, ok)
	assert.Same(t, seq, seq.Items[0])
}

// TestResolvedDeferredAtRoot is scenario 1: the root itself is a deferred
// that is already fulfilled before Encode runs.
func TestResolvedDeferredAtRoot(t *testing.T) {
	t.Parallel()
	fut := NewFuture()
	fut.Resolve(42.0)
	root := NewDeferred(fut)

	buf := encode(t, root)
	got, cleanup := decode(t, buf)
	defer cleanup()

	placeholder, ok := got.(*Deferred)
	require.True(t, ok)
	value, err := placeholder.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42.0, value)
}

// TestSharedDeferredAcrossFields is scenario 2: the same deferred appears
// at two record fields and both observe the same settlement.
func TestSharedDeferredAcrossFields(t *testing.T) {
	t.Parallel()
	fut := NewFuture()
	d := NewDeferred(fut)
	root := &Record{Keys: []string{"a", "b"}, Values: []any{d, d}}

	go func() {
		time.Sleep(5 * time.Millisecond)
		fut.Resolve("settled")
	}()

	buf := encode(t, root)
	got, cleanup := decode(t, buf)
	defer cleanup()

	rec, ok := got.(*Record)
	require.True(t, ok)
	pa, ok := rec.Values[0].(*Deferred)
	require.True(t, ok)
	pb, ok := rec.Values[1].(*Deferred)
	require.True(t, ok)
	assert.Same(t, pa, pb)

	value, err := pa.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "settled", value)
}

// TestDeferredRejection checks that a rejected deferred nested in a
// container decodes as a placeholder whose Await fails, while the
// container's plain sibling element is available immediately.
func TestDeferredRejection(t *testing.T) {
	t.Parallel()
	fut := NewFuture()
	root := &Seq{Items: []any{NewDeferred(fut), "sibling"}}

	go func() {
		time.Sleep(5 * time.Millisecond)
		fut.Reject(&ErrorValue{Kind: "Error", Message: "boom"})
	}()

	buf := encode(t, root)
	got, cleanup := decode(t, buf)
	defer cleanup()

	seq, ok := got.(*Seq)
	require.True(t, ok)
	assert.Equal(t, "sibling", seq.Items[1])

	placeholder, ok := seq.Items[0].(*Deferred)
	require.True(t, ok)
	_, err := placeholder.Await(context.Background())
	require.Error(t, err)
}

// TestDeferredDiscoveredWhileEncodingDeferred checks that a deferred
// reachable only through another deferred's eventual payload still gets
// its own resolution frame.
func TestDeferredDiscoveredWhileEncodingDeferred(t *testing.T) {
	t.Parallel()
	inner := NewFuture()
	outer := NewFuture()

	go func() {
		time.Sleep(5 * time.Millisecond)
		outer.Resolve(&Seq{Items: []any{NewDeferred(inner)}})
		time.Sleep(5 * time.Millisecond)
		inner.Resolve("nested")
	}()

	buf := encode(t, NewDeferred(outer))
	got, cleanup := decode(t, buf)
	defer cleanup()

	outerPlaceholder, ok := got.(*Deferred)
	require.True(t, ok)
	outerValue, err := outerPlaceholder.Await(context.Background())
	require.NoError(t, err)
	seq, ok := outerValue.(*Seq)
	require.True(t, ok)
	innerPlaceholder, ok := seq.Items[0].(*Deferred)
	require.True(t, ok)
	innerValue, err := innerPlaceholder.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "nested", innerValue)
}

// TestCancellationBeforeResolve is scenario 6: the caller's context is
// cancelled while a deferred is still outstanding, so Encode rejects it
// with the cancellation reason rather than hanging forever.
func TestCancellationBeforeResolve(t *testing.T) {
	t.Parallel()
	fut := NewFuture() // deliberately never settled

	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	err := enc.Encode(ctx, NewDeferred(fut))
	require.Error(t, err)

	got, cleanup := decode(t, &buf)
	defer cleanup()
	placeholder, ok := got.(*Deferred)
	require.True(t, ok)
	_, awaitErr := placeholder.Await(context.Background())
	require.Error(t, awaitErr)
}

func TestCustomValuePlugin(t *testing.T) {
	t.Parallel()
	type point struct{ X, Y float64 }

	encodePoint := func(v any) (string, []any, bool) {
		p, ok := v.(*point)
		if !ok {
			return "", nil, false
		}
		return "point", []any{p.X, p.Y}, true
	}
	decodePoint := func(tag string, subvalues []any) (any, bool) {
		if tag != "point" {
			return nil, false
		}
		return &point{X: subvalues[0].(float64), Y: subvalues[1].(float64)}, true
	}

	root := &Seq{Items: []any{&point{X: 1, Y: 2}, &point{X: 3, Y: 4}}}
	buf := encode(t, root, WithEncoderPlugins(encodePoint))
	got, cleanup := decode(t, buf, WithDecoderPlugins(decodePoint))
	defer cleanup()

	seq, ok := got.(*Seq)
	require.True(t, ok)
	p0, ok := seq.Items[0].(*point)
	require.True(t, ok)
	assert.Equal(t, &point{X: 1, Y: 2}, p0)
}

// TestUnknownCustomTagFallsBackToCustom checks that a codeCustom entry
// with no matching decoder plugin still decodes, as a *Custom value.
func TestUnknownCustomTagFallsBackToCustom(t *testing.T) {
	t.Parallel()
	type tagged struct{ v string }
	encodeTagged := func(v any) (string, []any, bool) {
		tg, ok := v.(*tagged)
		if !ok {
			return "", nil, false
		}
		return "tagged", []any{tg.v}, true
	}

	buf := encode(t, &tagged{v: "hi"}, WithEncoderPlugins(encodeTagged))
	got, cleanup := decode(t, buf)
	defer cleanup()

	custom, ok := got.(*Custom)
	require.True(t, ok)
	assert.Equal(t, "tagged", custom.Tag)
	assert.Equal(t, []any{"hi"}, custom.Values)
}

func TestUnsupportedValueErrors(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	err := enc.Encode(context.Background(), make(chan int))
	require.Error(t, err)
	var target *UnsupportedValueError
	assert.ErrorAs(t, err, &target)
}

// TestPluginPanicBecomesPluginError checks that a panicking encoder plugin
// is converted into a PluginError rather than crashing the Encode call.
func TestPluginPanicBecomesPluginError(t *testing.T) {
	t.Parallel()
	type widget struct{}
	panicky := func(v any) (string, []any, bool) {
		if _, ok := v.(*widget); ok {
			panic("widget plugin exploded")
		}
		return "", nil, false
	}

	var buf bytes.Buffer
	enc := NewEncoder(&buf, WithEncoderPlugins(panicky))
	err := enc.Encode(context.Background(), &widget{})
	require.Error(t, err)
	var target *PluginError
	assert.ErrorAs(t, err, &target)
}
