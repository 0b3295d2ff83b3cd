package catalog

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/wippyai/puzzle-host/errors"
	"github.com/wippyai/puzzle-host/wasm"
)

// Section names and flag bits of the catalog encoding.
const (
	PuzzlesSection = "aoc_puzzles"
	examplesPrefix = "aoc_examples_"

	FlagPartA byte = 0x10
	FlagPartB byte = 0x01

	recordLen = 6
)

// Category groups items; it is the puzzle year.
type Category uint16

// Item identifies a work item within a category; it is the puzzle day.
type Item uint8

// Key names one work item.
type Key struct {
	Category Category
	Item     Item
}

func (k Key) String() string {
	return fmt.Sprintf("%04d/%02d", k.Category, k.Item)
}

// ParseKey parses "2024/1", "2024/01" or "2024-01".
func ParseKey(s string) (Key, error) {
	year, day, ok := strings.Cut(s, "/")
	if !ok {
		year, day, ok = strings.Cut(s, "-")
	}
	if !ok {
		return Key{}, errors.InvalidData(errors.PhaseDecode, nil, fmt.Sprintf("key %q is not <year>/<day>", s))
	}
	cat, err := strconv.ParseUint(year, 10, 16)
	if err != nil {
		return Key{}, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "year "+year)
	}
	item, err := strconv.ParseUint(day, 10, 8)
	if err != nil {
		return Key{}, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "day "+day)
	}
	return Key{Category: Category(cat), Item: Item(item)}, nil
}

// Example is a sample input with the parts it applies to.
type Example struct {
	Input string
	PartA bool
	PartB bool
}

// Catalog is the registry of available work items and their examples.
type Catalog struct {
	items map[Category]map[Item][]Example
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{items: make(map[Category]map[Item][]Example)}
}

// Add registers an item, appending any examples to those already known.
func (c *Catalog) Add(cat Category, item Item, examples ...Example) {
	days, ok := c.items[cat]
	if !ok {
		days = make(map[Item][]Example)
		c.items[cat] = days
	}
	days[item] = append(days[item], examples...)
}

// Has reports whether the item is registered.
func (c *Catalog) Has(cat Category, item Item) bool {
	_, ok := c.items[cat][item]
	return ok
}

// Len returns the number of registered items.
func (c *Catalog) Len() int {
	n := 0
	for _, days := range c.items {
		n += len(days)
	}
	return n
}

// Categories returns the registered categories in ascending order.
func (c *Catalog) Categories() []Category {
	return slices.Sorted(maps.Keys(c.items))
}

// Items returns the items of a category in ascending order.
func (c *Catalog) Items(cat Category) []Item {
	return slices.Sorted(maps.Keys(c.items[cat]))
}

// Keys returns every registered item ordered by category then item.
func (c *Catalog) Keys() []Key {
	var keys []Key
	for _, cat := range c.Categories() {
		for _, item := range c.Items(cat) {
			keys = append(keys, Key{Category: cat, Item: item})
		}
	}
	return keys
}

// Examples returns a copy of an item's examples.
func (c *Catalog) Examples(cat Category, item Item) []Example {
	return slices.Clone(c.items[cat][item])
}

// ListWorkItems returns a deep copy of the registry.
func (c *Catalog) ListWorkItems() map[Category]map[Item][]Example {
	out := make(map[Category]map[Item][]Example, len(c.items))
	for cat, days := range c.items {
		copied := make(map[Item][]Example, len(days))
		for item, examples := range days {
			copied[item] = slices.Clone(examples)
		}
		out[cat] = copied
	}
	return out
}

// ExamplesSection returns the custom section name holding an item's
// examples. The day is not zero padded.
func ExamplesSection(cat Category, item Item) string {
	return fmt.Sprintf("%s%d_%d", examplesPrefix, cat, item)
}

// FromWasm decodes the catalog embedded in a module binary.
func FromWasm(data []byte) (*Catalog, error) {
	m, err := wasm.ParseModule(data)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "parse module")
	}
	return Decode(m.CustomSections)
}

// Decode builds a catalog from a module's custom sections. Sections with
// the same name are concatenated, as a linker would merge them. Example
// sections for items missing from the puzzle list are ignored.
func Decode(sections []wasm.CustomSection) (*Catalog, error) {
	merged := make(map[string][]byte)
	for _, s := range sections {
		merged[s.Name] = append(merged[s.Name], s.Data...)
	}

	keys, err := DecodePuzzles(merged[PuzzlesSection])
	if err != nil {
		return nil, err
	}

	c := New()
	for _, k := range keys {
		name := ExamplesSection(k.Category, k.Item)
		examples, err := DecodeExamples(merged[name])
		if err != nil {
			e := errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "examples")
			e.Path = []string{name}
			return nil, e
		}
		c.Add(k.Category, k.Item, examples...)
	}
	return c, nil
}

// DecodePuzzles parses concatenated six-digit YYYYDD records.
func DecodePuzzles(data []byte) ([]Key, error) {
	if len(data)%recordLen != 0 {
		return nil, errors.InvalidData(errors.PhaseDecode, []string{PuzzlesSection},
			fmt.Sprintf("length %d is not a multiple of %d", len(data), recordLen))
	}
	keys := make([]Key, 0, len(data)/recordLen)
	seen := make(map[Key]bool, len(data)/recordLen)
	for off := 0; off < len(data); off += recordLen {
		rec := data[off : off+recordLen]
		year, ok := digits(rec[:4])
		if !ok {
			return nil, badRecord(rec, off)
		}
		day, ok := digits(rec[4:])
		if !ok {
			return nil, badRecord(rec, off)
		}
		k := Key{Category: Category(year), Item: Item(day)}
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func badRecord(rec []byte, off int) error {
	return errors.New(errors.PhaseDecode, errors.KindInvalidData).
		Path(PuzzlesSection).
		Value(off).
		Detail("record %q at offset %d is not six digits", rec, off).
		Build()
}

func digits(b []byte) (int, bool) {
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// DecodeExamples parses [flag][text][NUL] records. Both an empty section and
// a single zero byte mean "no examples".
func DecodeExamples(data []byte) ([]Example, error) {
	if len(data) == 0 || (len(data) == 1 && data[0] == 0) {
		return nil, nil
	}

	var examples []Example
	for off := 0; off < len(data); {
		flag := data[off]
		if flag&^(FlagPartA|FlagPartB) != 0 {
			return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
				Value(off).
				Detail("unknown flag bits 0x%02x at offset %d", flag, off).
				Build()
		}
		text := data[off+1:]
		end := bytes.IndexByte(text, 0)
		if end < 0 {
			return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
				Value(off).
				Detail("example at offset %d has no terminator", off).
				Build()
		}
		text = text[:end]
		if !utf8.Valid(text) {
			return nil, errors.InvalidUTF8(errors.PhaseDecode, nil, text)
		}
		examples = append(examples, Example{
			Input: string(text),
			PartA: flag&FlagPartA != 0,
			PartB: flag&FlagPartB != 0,
		})
		off += 1 + end + 1
	}
	return examples, nil
}

// EncodeExamples produces the section payload for a list of examples.
func EncodeExamples(examples []Example) ([]byte, error) {
	if len(examples) == 0 {
		return []byte{0}, nil
	}
	var buf bytes.Buffer
	for i, ex := range examples {
		if strings.IndexByte(ex.Input, 0) >= 0 {
			return nil, errors.InvalidInput(errors.PhaseDecode, fmt.Sprintf("example %d contains a NUL byte", i))
		}
		if !utf8.ValidString(ex.Input) {
			return nil, errors.InvalidUTF8(errors.PhaseDecode, nil, []byte(ex.Input))
		}
		var flag byte
		if ex.PartA {
			flag |= FlagPartA
		}
		if ex.PartB {
			flag |= FlagPartB
		}
		buf.WriteByte(flag)
		buf.WriteString(ex.Input)
		buf.WriteByte(0)
	}
	return buf.Bytes(), nil
}

// Encode returns the custom sections describing the catalog, puzzle list
// first, in key order.
func (c *Catalog) Encode() ([]wasm.CustomSection, error) {
	keys := c.Keys()
	list := make([]byte, 0, len(keys)*recordLen)
	sections := make([]wasm.CustomSection, 0, len(keys)+1)
	for _, k := range keys {
		if k.Category > 9999 || k.Item > 99 {
			return nil, errors.InvalidData(errors.PhaseDecode, nil, fmt.Sprintf("key %s does not fit the record format", k))
		}
		list = fmt.Appendf(list, "%04d%02d", k.Category, k.Item)
		payload, err := EncodeExamples(c.items[k.Category][k.Item])
		if err != nil {
			return nil, err
		}
		sections = append(sections, wasm.CustomSection{Name: ExamplesSection(k.Category, k.Item), Data: payload})
	}
	return append([]wasm.CustomSection{{Name: PuzzlesSection, Data: list}}, sections...), nil
}
