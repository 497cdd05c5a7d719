package valuestream

import (
	"strconv"
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/fenwick-stream/valuestream/env"
)

// frameKind distinguishes frame 0 (the root) from later resolution frames
// (spec §4.2).
type frameKind int

const (
	frameRoot frameKind = iota
	frameFulfill
	frameReject
)

const (
	fulfillDiscriminator = 'F'
	rejectDiscriminator  = 'R'
)

// frame is one self-delimited line of the wire format: a reference table
// plus the index within it (a sentinel or a table position) of the value
// this frame carries -- the root value for frame 0, the settled payload
// for a resolution frame. payload is tracked explicitly rather than
// assumed to be position 0, because a root or payload that is itself a
// singleton atom never occupies a table slot at all (sentinel.go).
type frame struct {
	kind    frameKind
	target  int
	payload int
	slots   []wireSlot
}

// MarshalLogObject lets a frame be attached to a zap log line directly
// (zap.Object("frame", &f)), the way the teacher's SeekTableEntry does for
// its own seek-table rows.
func (f *frame) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("kind", frameKindString(f.kind))
	enc.AddInt("target", f.target)
	enc.AddInt("payload", f.payload)
	enc.AddInt("slots", len(f.slots))
	return nil
}

func frameKindString(k frameKind) string {
	switch k {
	case frameRoot:
		return "root"
	case frameFulfill:
		return "fulfill"
	case frameReject:
		return "reject"
	default:
		return "unknown"
	}
}

// writeFrame flushes exactly one frame to t. The Chunk Framer contract
// (spec §4.2) requires that a frame never be split across buffer
// boundaries in a way that would present a partial frame to the
// transport; building the whole line before the single WriteFrame call
// satisfies that.
func writeFrame(t env.WriteTransport, f frame) error {
	var b strings.Builder
	switch f.kind {
	case frameFulfill:
		b.WriteByte(fulfillDiscriminator)
		b.WriteString(strconv.Itoa(f.target))
		b.WriteByte(':')
	case frameReject:
		b.WriteByte(rejectDiscriminator)
		b.WriteString(strconv.Itoa(f.target))
		b.WriteByte(':')
	}
	b.WriteString(strconv.Itoa(f.payload))
	b.WriteByte(':')
	b.Write(writeFrameTable(f.slots))
	return t.WriteFrame([]byte(b.String()))
}

// readFrame reads and tokenizes exactly one frame. io.EOF from t signals a
// clean end of stream and is returned unwrapped so callers can distinguish
// it from MalformedFrameError.
func readFrame(t env.ReadTransport) (frame, error) {
	line, err := t.ReadFrame()
	if err != nil {
		return frame{}, err
	}
	if len(line) == 0 {
		return frame{}, newMalformedFrameError("", errStringer("empty frame"))
	}

	kind := frameRoot
	rest := line
	target := 0
	if line[0] == fulfillDiscriminator || line[0] == rejectDiscriminator {
		kind = frameFulfill
		if line[0] == rejectDiscriminator {
			kind = frameReject
		}
		colon := indexByte(line, ':')
		if colon < 0 {
			return frame{}, newMalformedFrameError(string(line), errStringer("missing ':' after target index"))
		}
		target, err = strconv.Atoi(string(line[1:colon]))
		if err != nil {
			return frame{}, newMalformedFrameError(string(line), err)
		}
		rest = line[colon+1:]
	}

	colon := indexByte(rest, ':')
	if colon < 0 {
		return frame{}, newMalformedFrameError(string(line), errStringer("missing ':' after payload index"))
	}
	payload, err := strconv.Atoi(string(rest[:colon]))
	if err != nil {
		return frame{}, newMalformedFrameError(string(line), err)
	}
	slots, err := parseFrameTable(rest[colon+1:])
	if err != nil {
		return frame{}, err
	}
	return frame{kind: kind, target: target, payload: payload, slots: slots}, nil
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}
