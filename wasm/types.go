package wasm

// Module represents a decoded WebAssembly module.
//
// Sections the host never inspects (table, element, tag) are kept as raw
// bytes so that a decoded module can be encoded again without loss.
type Module struct {
	Types     []FuncType
	Imports   []Import
	Funcs     []uint32 // type indices of declared functions
	Memories  []MemoryType
	Globals   []Global
	Exports   []Export
	Start     *uint32
	Code      []FuncBody
	Data      []DataSegment
	DataCount *uint32

	Raw            []RawSection
	CustomSections []CustomSection
}

// FuncType represents a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// ValType represents a WebAssembly value type.
type ValType byte

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	case ValV128:
		return "v128"
	case ValFuncRef:
		return "funcref"
	case ValExtern:
		return "externref"
	default:
		return "unknown"
	}
}

// Import represents an imported function, table, memory, global, or tag.
type Import struct {
	Desc   ImportDesc
	Module string
	Name   string
}

// ImportDesc describes an imported item. Exactly one of the type pointers is
// set for non-function kinds; Raw holds the undecoded descriptor of tables
// and tags.
type ImportDesc struct {
	Memory  *MemoryType
	Global  *GlobalType
	Raw     []byte
	TypeIdx uint32
	Kind    byte
}

// MemoryType describes a linear memory with size limits.
type MemoryType struct {
	Limits Limits
}

// Limits describes size constraints for memories.
type Limits struct {
	Max      *uint64
	Min      uint64
	Shared   bool
	Memory64 bool
}

// GlobalType describes a global variable's type and mutability.
type GlobalType struct {
	ValType ValType
	Mutable bool
}

// Global represents a module-defined global.
type Global struct {
	Type GlobalType
	Init []byte // constant expression including the end opcode
}

// Export describes an exported item.
type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// FuncBody represents a function's local declarations and bytecode.
type FuncBody struct {
	Locals []LocalEntry
	Code   []byte // instructions including the final end opcode
}

// LocalEntry represents a group of locals with the same type.
type LocalEntry struct {
	Count   uint32
	ValType ValType
}

// DataSegment represents a data segment.
// Flags: 0 active in memory 0, 1 passive, 2 active with explicit memory index.
type DataSegment struct {
	Offset []byte
	Init   []byte
	Flags  uint32
	MemIdx uint32
}

// CustomSection holds a named custom section's data.
type CustomSection struct {
	Name string
	Data []byte
}

// RawSection is a known section kept in binary form.
type RawSection struct {
	Data []byte
	ID   byte
}

// NumImported returns the number of imports of the given kind.
func (m *Module) NumImported(kind byte) uint32 {
	var n uint32
	for _, imp := range m.Imports {
		if imp.Desc.Kind == kind {
			n++
		}
	}
	return n
}

// Export returns the export with the given name.
func (m *Module) Export(name string) (Export, bool) {
	for _, e := range m.Exports {
		if e.Name == name {
			return e, true
		}
	}
	return Export{}, false
}

// FuncTypeOf returns the signature of the function at index idx in the
// function index space (imports first).
func (m *Module) FuncTypeOf(idx uint32) (FuncType, bool) {
	var seen uint32
	for _, imp := range m.Imports {
		if imp.Desc.Kind != KindFunc {
			continue
		}
		if seen == idx {
			if int(imp.Desc.TypeIdx) < len(m.Types) {
				return m.Types[imp.Desc.TypeIdx], true
			}
			return FuncType{}, false
		}
		seen++
	}
	local := idx - seen
	if idx < seen || int(local) >= len(m.Funcs) {
		return FuncType{}, false
	}
	typeIdx := m.Funcs[local]
	if int(typeIdx) >= len(m.Types) {
		return FuncType{}, false
	}
	return m.Types[typeIdx], true
}

// ExportedFunc returns the signature of an exported function.
func (m *Module) ExportedFunc(name string) (FuncType, bool) {
	e, ok := m.Export(name)
	if !ok || e.Kind != KindFunc {
		return FuncType{}, false
	}
	return m.FuncTypeOf(e.Idx)
}

// CustomSectionsNamed returns every custom section with the given name in
// file order.
func (m *Module) CustomSectionsNamed(name string) []CustomSection {
	var out []CustomSection
	for _, cs := range m.CustomSections {
		if cs.Name == name {
			out = append(out, cs)
		}
	}
	return out
}

// Equal reports whether two signatures are identical.
func (f FuncType) Equal(o FuncType) bool {
	if len(f.Params) != len(o.Params) || len(f.Results) != len(o.Results) {
		return false
	}
	for i := range f.Params {
		if f.Params[i] != o.Params[i] {
			return false
		}
	}
	for i := range f.Results {
		if f.Results[i] != o.Results[i] {
			return false
		}
	}
	return true
}
