package engine

import (
	"strings"
	"testing"

	"github.com/wippyai/puzzle-host/errors"
	"github.com/wippyai/puzzle-host/wasm"
)

type sliceMemory []byte

func (m sliceMemory) Read(offset, length uint32) ([]byte, bool) {
	if uint64(offset)+uint64(length) > uint64(len(m)) {
		return nil, false
	}
	return m[offset : offset+length], true
}

func (m sliceMemory) Write(offset uint32, data []byte) bool {
	if uint64(offset)+uint64(len(data)) > uint64(len(m)) {
		return false
	}
	copy(m[offset:], data)
	return true
}

func (m sliceMemory) Size() uint32 { return uint32(len(m)) }

func wasmLimits(lo uint64, hi *uint64) wasm.Limits {
	return wasm.Limits{Min: lo, Max: hi, Shared: true}
}

func TestRegionRoundTrip(t *testing.T) {
	mem := make(sliceMemory, 64)
	r := Region{Name: "INPUT", Offset: 16, Capacity: 8}

	for _, text := range []string{"", "a", "1234567", "héllo"} {
		if err := r.WriteText(mem, text); err != nil {
			t.Fatalf("WriteText(%q): %v", text, err)
		}
		got, err := r.ReadText(mem)
		if err != nil {
			t.Fatal(err)
		}
		if got != text {
			t.Errorf("ReadText = %q, want %q", got, text)
		}
	}
}

func TestRegionWriteRejects(t *testing.T) {
	tests := []struct {
		name string
		text string
		kind errors.Kind
	}{
		{"exactly capacity", "12345678", errors.KindOverflow},
		{"above capacity", strings.Repeat("x", 100), errors.KindOverflow},
		{"embedded nul", "ab\x00cd", errors.KindInvalidInput},
		{"invalid utf8", "ab\xffcd", errors.KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := make(sliceMemory, 64)
			r := Region{Name: "INPUT", Offset: 16, Capacity: 8}
			err := r.WriteText(mem, tt.text)
			if !errors.IsKind(err, tt.kind) {
				t.Fatalf("expected %s, got %v", tt.kind, err)
			}
			for i, b := range mem {
				if b != 0 {
					t.Fatalf("memory modified at %d", i)
				}
			}
		})
	}
}

func TestRegionReadText(t *testing.T) {
	mem := make(sliceMemory, 32)
	r := Region{Name: "PART1", Offset: 8, Capacity: 4}

	copy(mem[8:], "abcdefgh")
	got, err := r.ReadText(mem)
	if err != nil {
		t.Fatal(err)
	}
	if got != "abcd" {
		t.Errorf("unterminated read = %q, want full capacity", got)
	}

	copy(mem[8:], "a\xffb\x00")
	got, _ = r.ReadText(mem)
	if got != "a\uFFFDb" {
		t.Errorf("invalid utf8 read = %q", got)
	}

	copy(mem[8:], "ok\x00\x00")
	got, _ = r.ReadText(mem)
	mem[8] = 'X'
	if got != "ok" {
		t.Errorf("read result aliases memory: %q", got)
	}
}

func TestRegionBounds(t *testing.T) {
	mem := make(sliceMemory, 16)
	r := Region{Name: "PART2", Offset: 12, Capacity: 8}
	if _, err := r.ReadText(mem); !errors.IsKind(err, errors.KindOutOfBounds) {
		t.Errorf("read: expected out_of_bounds, got %v", err)
	}
	if err := r.WriteText(mem, "abcdef"); !errors.IsKind(err, errors.KindOutOfBounds) {
		t.Errorf("write: expected out_of_bounds, got %v", err)
	}
	if err := r.Clear(mem); err != nil {
		t.Errorf("clear inside memory: %v", err)
	}
}

func TestRegionsCheck(t *testing.T) {
	tests := []struct {
		name string
		regs Regions
		kind errors.Kind
	}{
		{"disjoint", Regions{
			Input:   Region{Name: "INPUT", Offset: 0, Capacity: 16},
			OutputA: Region{Name: "PART1", Offset: 16, Capacity: 16},
			OutputB: Region{Name: "PART2", Offset: 32, Capacity: 16},
		}, ""},
		{"overlap", Regions{
			Input:   Region{Name: "INPUT", Offset: 0, Capacity: 16},
			OutputA: Region{Name: "PART1", Offset: 15, Capacity: 16},
			OutputB: Region{Name: "PART2", Offset: 40, Capacity: 16},
		}, errors.KindInvalidData},
		{"outside memory", Regions{
			Input:   Region{Name: "INPUT", Offset: 0, Capacity: 16},
			OutputA: Region{Name: "PART1", Offset: 16, Capacity: 16},
			OutputB: Region{Name: "PART2", Offset: 60, Capacity: 16},
		}, errors.KindOutOfBounds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.regs.Check(64)
			if tt.kind == "" {
				if err != nil {
					t.Fatal(err)
				}
				return
			}
			if !errors.IsKind(err, tt.kind) {
				t.Errorf("expected %s, got %v", tt.kind, err)
			}
		})
	}
}
