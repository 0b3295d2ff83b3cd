package binary

import (
	"errors"
	"io"
	"math"
	"testing"
)

func TestU32RoundTrip(t *testing.T) {
	values := []uint32{0, 1, 63, 64, 127, 128, 255, 16384, 1 << 20, math.MaxUint32}
	for _, v := range values {
		w := NewWriter()
		w.WriteU32(v)
		got, err := NewReader(w.Bytes()).ReadU32()
		if err != nil {
			t.Fatalf("ReadU32(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("ReadU32 = %d, want %d", got, v)
		}
	}
}

func TestS64RoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, 63, -64, 64, -65, 1 << 40, math.MinInt64, math.MaxInt64}
	for _, v := range values {
		w := NewWriter()
		w.WriteS64(v)
		got, err := NewReader(w.Bytes()).ReadS64()
		if err != nil {
			t.Fatalf("ReadS64(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("ReadS64 = %d, want %d", got, v)
		}
	}
}

func TestS32KnownEncodings(t *testing.T) {
	tests := []struct {
		data []byte
		want int32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, -1},
		{[]byte{0x80, 0x7f}, -128},
		{[]byte{0x80, 0x80, 0x04}, 65536},
		{[]byte{0x80, 0x80, 0x80, 0x80, 0x78}, math.MinInt32},
	}
	for _, tt := range tests {
		got, err := NewReader(tt.data).ReadS32()
		if err != nil {
			t.Fatalf("ReadS32(%x): %v", tt.data, err)
		}
		if got != tt.want {
			t.Errorf("ReadS32(%x) = %d, want %d", tt.data, got, tt.want)
		}
	}
}

func TestU32Overflow(t *testing.T) {
	tests := map[string][]byte{
		"too many bytes": {0x80, 0x80, 0x80, 0x80, 0x80, 0x01},
		"high bits set":  {0xff, 0xff, 0xff, 0xff, 0x7f},
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewReader(data).ReadU32()
			if !errors.Is(err, ErrOverflow) {
				t.Errorf("expected ErrOverflow, got %v", err)
			}
		})
	}
}

func TestReadBytesShort(t *testing.T) {
	r := NewReader([]byte{1, 2, 3})
	if _, err := r.ReadBytes(4); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected ErrUnexpectedEOF, got %v", err)
	}
	b, err := r.ReadBytes(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(b) != 2 || r.Len() != 1 || r.Position() != 2 {
		t.Errorf("unexpected reader state: len=%d pos=%d", r.Len(), r.Position())
	}
}

func TestNameRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteName("aoc_examples_2024_1")
	w.WriteName("")
	r := NewReader(w.Bytes())
	for _, want := range []string{"aoc_examples_2024_1", ""} {
		got, err := r.ReadName()
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("ReadName = %q, want %q", got, want)
		}
	}
	if _, err := r.ReadByte(); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestReadNameInvalidUTF8(t *testing.T) {
	_, err := NewReader([]byte{0x02, 0xff, 0xfe}).ReadName()
	if err == nil {
		t.Fatal("expected error for invalid UTF-8 name")
	}
}

func TestParseError(t *testing.T) {
	r := NewReader([]byte{0x01})
	_, _ = r.ReadByte()
	err := r.WrapError("header", io.EOF)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if pe.Position != 1 || !errors.Is(err, io.EOF) {
		t.Errorf("unexpected parse error: %v", err)
	}
	if got := err.Error(); got != "wasm: header at position 1: EOF" {
		t.Errorf("Error() = %q", got)
	}
}
