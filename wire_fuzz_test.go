//go:build go1.18
// +build go1.18

package valuestream

import (
	"errors"
	"io"
	"testing"
)

// FuzzParseFrameTable mirrors the teacher's own seek-table fuzz tests
// (pkg/decoder_fuzz_test.go, pkg/corrupt_seektable_fuzz_test.go): the wire
// tokenizer must never panic on arbitrary bytes, and must either return a
// valid table or a MalformedFrameError -- nothing else.
func FuzzParseFrameTable(f *testing.F) {
	f.Add([]byte(`[]`))
	f.Add([]byte(`[1,2,3]`))
	f.Add([]byte(`["hi","there"]`))
	f.Add([]byte(`[[0,1,2],[4,"tag",0]]`))
	f.Add([]byte(`[`))
	f.Add([]byte(`[1,`))
	f.Add([]byte(`["unterminated`))
	f.Add([]byte(``))

	f.Fuzz(func(t *testing.T, in []byte) {
		slots, err := parseFrameTable(in)
		if err != nil {
			var target *MalformedFrameError
			if !errors.As(err, &target) {
				t.Fatalf("parseFrameTable returned non-MalformedFrameError: %v", err)
			}
			return
		}
		_ = writeFrameTable(slots)
	})
}

// FuzzReadFrame checks the frame-envelope parser (discriminator, target
// index, payload index) the same way: arbitrary bytes must never panic.
func FuzzReadFrame(f *testing.F) {
	f.Add([]byte(`0:[]`))
	f.Add([]byte(`F3:0:[1,2]`))
	f.Add([]byte(`R7:0:[[9,"boom"]]`))
	f.Add([]byte(`garbage`))
	f.Add([]byte(``))

	f.Fuzz(func(t *testing.T, in []byte) {
		r := &sliceTransport{lines: [][]byte{in}}
		_, err := readFrame(r)
		if err == nil || err == io.EOF {
			return
		}
		var malformed *MalformedFrameError
		if !errors.As(err, &malformed) {
			t.Fatalf("readFrame returned unexpected error type: %v", err)
		}
	})
}

// sliceTransport is a minimal env.ReadTransport backed by a fixed slice of
// lines, used only to drive readFrame with fuzzer-supplied bytes without a
// real byte stream.
type sliceTransport struct {
	lines [][]byte
	pos   int
}

func (s *sliceTransport) ReadFrame() ([]byte, error) {
	if s.pos >= len(s.lines) {
		return nil, io.EOF
	}
	line := s.lines[s.pos]
	s.pos++
	return line, nil
}

func (s *sliceTransport) Close() error { return nil }
