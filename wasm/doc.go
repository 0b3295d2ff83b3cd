// Package wasm decodes and encodes WebAssembly binary modules.
//
// The decoder covers the parts of a core module a host needs before
// instantiation: signatures, imports (including shared memory limits),
// globals and their constant initializers, exports, code, data and custom
// sections. Tables, elements and tags are preserved as raw sections.
//
// # Parsing
//
//	m, err := wasm.ParseModule(data)
//	if err != nil {
//	    return err
//	}
//	sp, err := m.ExportedGlobalI32("__stack_pointer")
//
// # Building
//
// Modules can be assembled in memory and encoded, which is how the host
// synthesizes its shared memory provider:
//
//	maxPages := uint64(256)
//	m := &wasm.Module{
//	    Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 17, Max: &maxPages, Shared: true}}},
//	    Exports:  []wasm.Export{{Name: "memory", Kind: wasm.KindMemory}},
//	}
//	data := m.Encode()
//
// Function bodies are written with Code:
//
//	body := wasm.NewCode().LocalGet(0).LocalGet(1).Op(wasm.OpI32Add).End()
package wasm
