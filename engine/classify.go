package engine

import (
	"fmt"
	"strings"

	"github.com/wippyai/puzzle-host/errors"
	"github.com/wippyai/puzzle-host/wasm"
)

// Policy is the execution policy a module requires.
type Policy uint8

const (
	// SingleThreaded modules have no imports and run against their own memory.
	SingleThreaded Policy = iota + 1

	// MultiThreaded modules import exactly one shared memory and run on a
	// worker pool that shares it.
	MultiThreaded
)

func (p Policy) String() string {
	switch p {
	case SingleThreaded:
		return "single-threaded"
	case MultiThreaded:
		return "multi-threaded"
	default:
		return fmt.Sprintf("policy(%d)", uint8(p))
	}
}

// Classify decides the execution policy from a module's import set alone.
// Any import shape other than "none" or "one shared memory with a maximum"
// is rejected with an unsupported_module error.
func Classify(m *wasm.Module) (Policy, error) {
	switch len(m.Imports) {
	case 0:
		return SingleThreaded, nil
	case 1:
		imp := m.Imports[0]
		if imp.Desc.Kind == wasm.KindMemory && imp.Desc.Memory != nil {
			lim := imp.Desc.Memory.Limits
			if lim.Shared && lim.Max != nil && !lim.Memory64 {
				return MultiThreaded, nil
			}
			return 0, errors.UnsupportedModule(fmt.Sprintf(
				"memory import %s.%s is not a shared 32-bit memory with a maximum",
				imp.Module, imp.Name))
		}
	}
	return 0, errors.UnsupportedModule("unexpected imports: " + describeImports(m.Imports))
}

// SharedMemoryImport returns the memory import of a multi-threaded module.
func SharedMemoryImport(m *wasm.Module) (wasm.Import, bool) {
	if len(m.Imports) != 1 || m.Imports[0].Desc.Kind != wasm.KindMemory || m.Imports[0].Desc.Memory == nil {
		return wasm.Import{}, false
	}
	return m.Imports[0], true
}

func describeImports(imports []wasm.Import) string {
	parts := make([]string, 0, len(imports))
	for _, imp := range imports {
		parts = append(parts, fmt.Sprintf("%s.%s (%s)", imp.Module, imp.Name, kindName(imp.Desc.Kind)))
	}
	return strings.Join(parts, ", ")
}

func kindName(kind byte) string {
	switch kind {
	case wasm.KindFunc:
		return "func"
	case wasm.KindTable:
		return "table"
	case wasm.KindMemory:
		return "memory"
	case wasm.KindGlobal:
		return "global"
	case wasm.KindTag:
		return "tag"
	default:
		return fmt.Sprintf("kind 0x%02x", kind)
	}
}
