package engine

import (
	"github.com/wippyai/puzzle-host/errors"
	"github.com/wippyai/puzzle-host/wasm"
)

// maxPages32 is the page count of a full 32-bit address space.
const maxPages32 = 1 << 16

// arenaLimits returns the page limits of the shared arena. The arena must
// satisfy the module's import: at least its minimum and at most its maximum.
func arenaLimits(imp wasm.Limits, cfg Config) (initial, maximum uint32, err error) {
	importMax := uint64(maxPages32)
	if imp.Max != nil && *imp.Max < importMax {
		importMax = *imp.Max
	}

	maximum = uint32(importMax)
	if cfg.MaxPages != 0 && cfg.MaxPages < maximum {
		maximum = cfg.MaxPages
	}
	if cfg.MemoryLimitPages != 0 && cfg.MemoryLimitPages < maximum {
		maximum = cfg.MemoryLimitPages
	}

	initial = uint32(imp.Min)
	if cfg.InitialPages > initial {
		initial = cfg.InitialPages
	}
	if imp.Min > uint64(maximum) || initial > maximum {
		return 0, 0, errors.Capacity("arena needs %d initial pages but at most %d are allowed", initial, maximum)
	}
	return initial, maximum, nil
}

// wakeExport is the arena function that notifies every waiter in a range.
const wakeExport = "__host_wake"

// arenaModule encodes a module exporting one shared memory under name.
// Instantiating it under the import's module name makes it the memory the
// main and worker instances link against. The module also exports
// wakeExport(start, end), which issues memory.atomic.notify on every
// 4-byte-aligned address in [start, end). An untimed memory.atomic.wait
// ignores context cancellation, so Close uses it to release parked agents.
func arenaModule(name string, initial, maximum uint32) []byte {
	limit := uint64(maximum)
	m := &wasm.Module{
		Types: []wasm.FuncType{{Params: []wasm.ValType{wasm.ValI32, wasm.ValI32}}},
		Funcs: []uint32{0},
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{
			Min:    uint64(initial),
			Max:    &limit,
			Shared: true,
		}}},
		Exports: []wasm.Export{
			{Name: name, Kind: wasm.KindMemory, Idx: 0},
			{Name: wakeExport, Kind: wasm.KindFunc, Idx: 0},
		},
		Code: []wasm.FuncBody{{Code: wakeBody()}},
	}
	return m.Encode()
}

func wakeBody() []byte {
	const start, end = 0, 1
	c := wasm.NewCode()
	c.Block().Loop()
	c.LocalGet(start).LocalGet(end).Op(wasm.OpI32GeU).BrIf(1)
	c.LocalGet(start).I32Const(-1).Atomic(wasm.AtomicNotify, 0).Op(wasm.OpDrop)
	c.LocalGet(start).I32Const(4).Op(wasm.OpI32Add).LocalSet(start)
	c.Br(0)
	c.End().End()
	return c.End().Bytes()
}

// wakeEnd returns the exclusive end of the notify sweep over a memory of
// size bytes, rounded down to a 4-byte boundary and kept within 32 bits.
func wakeEnd(size uint64) uint32 {
	if size > 1<<32-4 {
		size = 1<<32 - 4
	}
	return uint32(size &^ 3)
}
