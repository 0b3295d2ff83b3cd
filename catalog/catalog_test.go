package catalog

import (
	"reflect"
	"testing"

	"github.com/wippyai/puzzle-host/errors"
	"github.com/wippyai/puzzle-host/wasm"
)

const day1Example = "3   4\n4   3\n2   5\n1   3\n3   9\n3   3"

func TestDecodePuzzles(t *testing.T) {
	keys, err := DecodePuzzles([]byte("202401202425201501202401"))
	if err != nil {
		t.Fatal(err)
	}
	want := []Key{{2024, 1}, {2024, 25}, {2015, 1}}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("keys = %v, want %v", keys, want)
	}

	tests := map[string]string{
		"short record": "20240",
		"non digit":    "2024a1",
		"trailing":     "2024012",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodePuzzles([]byte(data))
			if !errors.IsKind(err, errors.KindInvalidData) {
				t.Errorf("expected invalid_data, got %v", err)
			}
		})
	}
}

func TestDecodeExamples(t *testing.T) {
	tests := []struct {
		want    []Example
		name    string
		data    []byte
		wantErr bool
	}{
		{name: "empty section", data: nil},
		{name: "single zero byte", data: []byte{0}},
		{
			name: "both parts",
			data: append(append([]byte{0x11}, day1Example...), 0),
			want: []Example{{Input: day1Example, PartA: true, PartB: true}},
		},
		{
			name: "two examples",
			data: []byte{0x10, 'a', 0, 0x01, 'b', 'c', 0},
			want: []Example{{Input: "a", PartA: true}, {Input: "bc", PartB: true}},
		},
		{
			name: "empty text",
			data: []byte{0x00, 0x00},
			want: []Example{{}},
		},
		{name: "unknown flag", data: []byte{0x02, 'a', 0}, wantErr: true},
		{name: "missing terminator", data: []byte{0x10, 'a'}, wantErr: true},
		{name: "invalid utf8", data: []byte{0x10, 0xff, 0}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeExamples(tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEncodeExamples(t *testing.T) {
	data, err := EncodeExamples(nil)
	if err != nil || len(data) != 1 || data[0] != 0 {
		t.Errorf("empty list encodes as %v, %v", data, err)
	}

	data, err = EncodeExamples([]Example{{Input: "x", PartA: true}, {Input: "y", PartB: true}})
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{0x10, 'x', 0, 0x01, 'y', 0}; !reflect.DeepEqual(data, want) {
		t.Errorf("data = %v, want %v", data, want)
	}

	if _, err := EncodeExamples([]Example{{Input: "a\x00b"}}); !errors.IsKind(err, errors.KindInvalidInput) {
		t.Errorf("expected invalid_input for NUL, got %v", err)
	}
}

func TestCatalogEncodeDecode(t *testing.T) {
	c := New()
	c.Add(2024, 1, Example{Input: day1Example, PartA: true, PartB: true})
	c.Add(2024, 2)
	c.Add(2015, 25, Example{Input: "x", PartA: true})

	sections, err := c.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if sections[0].Name != PuzzlesSection || string(sections[0].Data) != "201525202401202402" {
		t.Errorf("puzzle list = %q %q", sections[0].Name, sections[0].Data)
	}

	decoded, err := Decode(sections)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(decoded.ListWorkItems(), c.ListWorkItems()) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", decoded.ListWorkItems(), c.ListWorkItems())
	}
	if got := decoded.Categories(); !reflect.DeepEqual(got, []Category{2015, 2024}) {
		t.Errorf("Categories = %v", got)
	}
	if got := decoded.Items(2024); !reflect.DeepEqual(got, []Item{1, 2}) {
		t.Errorf("Items = %v", got)
	}
	if decoded.Len() != 3 || !decoded.Has(2024, 2) || decoded.Has(2024, 3) {
		t.Error("membership mismatch")
	}
}

func TestDecodeFromModule(t *testing.T) {
	m := &wasm.Module{
		CustomSections: []wasm.CustomSection{
			{Name: "aoc_puzzles", Data: []byte("202401")},
			{Name: "aoc_examples_2024_1", Data: []byte{0x10, 'a', 0}},
			{Name: "aoc_puzzles", Data: []byte("202403")},
			{Name: "aoc_examples_2023_9", Data: []byte{0x10, 'z', 0}},
			{Name: "name", Data: []byte{0x00}},
		},
	}
	c, err := FromWasm(m.Encode())
	if err != nil {
		t.Fatal(err)
	}
	want := map[Category]map[Item][]Example{
		2024: {1: {{Input: "a", PartA: true}}, 3: nil},
	}
	if got := c.ListWorkItems(); !reflect.DeepEqual(got, want) {
		t.Errorf("ListWorkItems = %+v, want %+v", got, want)
	}
}

func TestDecodeReportsSection(t *testing.T) {
	_, err := Decode([]wasm.CustomSection{
		{Name: "aoc_puzzles", Data: []byte("202401")},
		{Name: "aoc_examples_2024_1", Data: []byte{0x10, 'a'}},
	})
	e, ok := errors.As(err, errors.KindInvalidData)
	if !ok {
		t.Fatalf("expected invalid_data, got %v", err)
	}
	if len(e.Path) != 1 || e.Path[0] != "aoc_examples_2024_1" {
		t.Errorf("path = %v", e.Path)
	}
}

func TestListWorkItemsIsCopy(t *testing.T) {
	c := New()
	c.Add(2024, 1, Example{Input: "a"})
	items := c.ListWorkItems()
	items[2024][1][0].Input = "changed"
	delete(items, 2024)
	if got := c.Examples(2024, 1); got[0].Input != "a" {
		t.Errorf("catalog mutated through ListWorkItems: %+v", got)
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		in      string
		want    Key
		wantErr bool
	}{
		{in: "2024/1", want: Key{2024, 1}},
		{in: "2024/01", want: Key{2024, 1}},
		{in: "2015-25", want: Key{2015, 25}},
		{in: "2024", wantErr: true},
		{in: "2024/300", wantErr: true},
		{in: "x/1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKey(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
	if s := (Key{2024, 1}).String(); s != "2024/01" {
		t.Errorf("String = %q", s)
	}
}
