package engine

import (
	"bytes"
	"strings"
	"unicode/utf8"

	puzzlehost "github.com/wippyai/puzzle-host"
	"github.com/wippyai/puzzle-host/errors"
)

// Region is a fixed-capacity exchange buffer inside linear memory. Text is
// stored as UTF-8 followed by a NUL terminator.
type Region struct {
	Name     string
	Offset   uint32
	Capacity uint32
}

// Span returns the bytes covered by the region.
func (r Region) Span() Span {
	return Span{Start: r.Offset, End: r.Offset + r.Capacity}
}

// WriteText stores text and its terminator at the start of the region.
// Nothing is written when the text is rejected.
func (r Region) WriteText(mem puzzlehost.Memory, text string) error {
	if !utf8.ValidString(text) {
		e := errors.InvalidUTF8(errors.PhaseEncode, []string{r.Name}, []byte(text))
		e.Kind = errors.KindInvalidInput
		return e
	}
	if i := strings.IndexByte(text, 0); i >= 0 {
		return errors.New(errors.PhaseEncode, errors.KindInvalidInput).
			Path(r.Name).
			Value(i).
			Detail("input contains a NUL byte at offset %d", i).
			Build()
	}
	if uint64(len(text)) >= uint64(r.Capacity) {
		return errors.Overflow(r.Name, len(text), int(r.Capacity))
	}

	buf := make([]byte, len(text)+1)
	copy(buf, text)
	if !mem.Write(r.Offset, buf) {
		return errors.OutOfBounds(errors.PhaseEncode, []string{r.Name},
			uint64(r.Offset), uint64(len(buf)), uint64(mem.Size()))
	}
	return nil
}

// ReadText returns the text before the first NUL, or the whole region when
// it holds no terminator. The bytes are copied out of linear memory before
// decoding; invalid UTF-8 is replaced with U+FFFD.
func (r Region) ReadText(mem puzzlehost.Memory) (string, error) {
	view, ok := mem.Read(r.Offset, r.Capacity)
	if !ok {
		return "", errors.OutOfBounds(errors.PhaseRuntime, []string{r.Name},
			uint64(r.Offset), uint64(r.Capacity), uint64(mem.Size()))
	}
	n := bytes.IndexByte(view, 0)
	if n < 0 {
		n = len(view)
	}
	private := make([]byte, n)
	copy(private, view[:n])
	if utf8.Valid(private) {
		return string(private), nil
	}
	return strings.ToValidUTF8(string(private), string(utf8.RuneError)), nil
}

// Clear writes a terminator at the start of the region.
func (r Region) Clear(mem puzzlehost.Memory) error {
	if !mem.Write(r.Offset, []byte{0}) {
		return errors.OutOfBounds(errors.PhaseEncode, []string{r.Name},
			uint64(r.Offset), 1, uint64(mem.Size()))
	}
	return nil
}

// Regions groups the three exchange buffers of an instance.
type Regions struct {
	Input   Region
	OutputA Region
	OutputB Region
}

// All returns the regions in declaration order.
func (rs Regions) All() []Region {
	return []Region{rs.Input, rs.OutputA, rs.OutputB}
}

// Check verifies that every region lies inside a memory of size bytes and
// that no two regions overlap.
func (rs Regions) Check(size uint64) error {
	all := rs.All()
	for i, r := range all {
		if r.Capacity == 0 {
			return errors.InvalidData(errors.PhaseInstantiate, []string{r.Name}, "region has zero capacity")
		}
		if uint64(r.Offset)+uint64(r.Capacity) > size {
			return errors.OutOfBounds(errors.PhaseInstantiate, []string{r.Name},
				uint64(r.Offset), uint64(r.Capacity), size)
		}
		for _, o := range all[:i] {
			if r.Span().Overlaps(o.Span()) {
				return errors.InvalidData(errors.PhaseInstantiate, []string{r.Name},
					"region overlaps "+o.Name)
			}
		}
	}
	return nil
}
