// Package fixture assembles small puzzle modules for tests. The modules
// follow the export conventions of real puzzle artifacts so that every host
// code path can run without a toolchain-built binary.
//
// Both modules accept any day of Year. Single-threaded modules echo the
// input as part A and report its byte length as part B. Multi-threaded
// modules hand the input to a worker, which reports its byte length as part
// A and its line count as part B. A few reserved days trigger failure paths.
package fixture

import (
	"github.com/wippyai/puzzle-host/catalog"
	"github.com/wippyai/puzzle-host/wasm"
)

// Year is the only category the fixtures solve.
const Year = 2024

// Reserved days.
const (
	DayReportEmpty  = 95 // returns false with an empty message
	DayInvalidUTF8  = 96 // part A is not valid UTF-8
	DayUnterminated = 97 // part A fills the whole buffer without a terminator
	DaySpin         = 98 // never returns
	DayTrap         = 99 // writes diagnostics, then traps
)

// Messages written by the fixtures.
const (
	UnsupportedMessage = "unsupported puzzle"
	TrapMessage        = "index out of bounds"
	TrapLocation       = "src/day99.rs:7:5"
	WorkerTrapMessage  = "worker panicked"
	WorkerTrapLocation = "src/worker.rs:42:9"
)

// ExampleInput is the example embedded for day 1.
const ExampleInput = "3   4\n4   3\n2   5\n1   3\n3   9\n3   3"

// Geometry of the multi-threaded fixture.
const (
	DefaultCapacity = 4096
	StackSize       = 8192
	TLSSize         = 40
	MaxSlots        = 8
)

const (
	jobIdle    = 0
	jobPosted  = 1
	jobClaimed = 2
	jobDone    = 3

	waitNanos = 1_000_000
)

// Options shapes the generated modules. Zero values take defaults.
type Options struct {
	Catalog *catalog.Catalog

	// Capacity is the size of INPUT, PART1 and PART2.
	Capacity uint32

	// TLSAlign is the exported TLS alignment, 8 by default.
	TLSAlign uint32

	// MinPages and MaxPages are the limits of the shared memory import,
	// 2 and 4 by default.
	MinPages uint32
	MaxPages uint32

	// ReturningWorker makes worker_thread return right after registering.
	ReturningWorker bool

	// TLSBaseGlobal omits __wasm_init_tls so the host must set __tls_base.
	TLSBaseGlobal bool

	// BlockingWaits parks the main call and idle workers in atomic waits
	// without a timeout, the way threaded runtimes park on a futex.
	BlockingWaits bool
}

func (o Options) waitTimeout() int64 {
	if o.BlockingWaits {
		return -1
	}
	return waitNanos
}

func (o Options) withDefaults() Options {
	if o.Capacity == 0 {
		o.Capacity = DefaultCapacity
	}
	if o.TLSAlign == 0 {
		o.TLSAlign = 8
	}
	if o.MinPages == 0 {
		o.MinPages = 2
	}
	if o.MaxPages == 0 {
		o.MaxPages = 4
	}
	if o.Catalog == nil {
		o.Catalog = DefaultCatalog()
	}
	return o
}

// Addresses locates the static data of a fixture module.
type Addresses struct {
	Job      uint32
	Result   uint32
	Lines    uint32
	Heap     uint32
	Seen     uint32
	Day      uint32
	Slots    uint32 // stack pointer seen by each worker
	TLSSlots uint32 // TLS base seen by each worker
	Input    uint32
	PartA    uint32
	PartB    uint32
	HeapBase uint32
}

// Layout returns the addresses used by modules built with opts.
func Layout(opts Options) Addresses {
	opts = opts.withDefaults()
	base := uint32(StackSize)
	a := Addresses{
		Job:      base,
		Result:   base + 4,
		Lines:    base + 8,
		Heap:     base + 12,
		Seen:     base + 16,
		Day:      base + 20,
		Slots:    base + 32,
		TLSSlots: base + 64,
		Input:    base + 128,
	}
	a.PartA = a.Input + opts.Capacity
	a.PartB = a.PartA + opts.Capacity
	a.HeapBase = (a.PartB + opts.Capacity + 15) &^ 15
	return a
}

// DefaultCatalog lists days 1 and 2 of Year, with one example for day 1.
func DefaultCatalog() *catalog.Catalog {
	c := catalog.New()
	c.Add(Year, 1, catalog.Example{Input: ExampleInput, PartA: true, PartB: true})
	c.Add(Year, 2)
	return c
}

var (
	i32 = wasm.ValI32

	runType      = wasm.FuncType{Params: []wasm.ValType{i32, i32, i32, i32, i32}, Results: []wasm.ValType{i32}}
	allocType    = wasm.FuncType{Params: []wasm.ValType{i32, i32}, Results: []wasm.ValType{i32}}
	workerType   = wasm.FuncType{}
	initTLSType  = wasm.FuncType{Params: []wasm.ValType{i32}}
	runLocals    = []wasm.LocalEntry{{Count: 4, ValType: wasm.ValI32}}
	workerLocals = []wasm.LocalEntry{{Count: 4, ValType: wasm.ValI32}}
)

// Parameters and locals of run_puzzle.
const (
	pYear = iota
	pDay
	pExample
	pPartA
	pPartB
	lLen
	lTmp
	lPtr
	lAddr
)

// SingleThreaded returns a module without imports that owns its memory.
func SingleThreaded(opts Options) []byte {
	opts = opts.withDefaults()
	a := Layout(opts)
	pages := uint64(a.HeapBase)/wasm.PageSize + 1

	c := wasm.NewCode()
	unsupported(c, a)
	failureDays(c, a, opts.Capacity)

	// strlen(INPUT)
	c.I32Const(0).LocalSet(lLen)
	c.Block().Loop()
	c.LocalGet(lLen).I32Load8U(a.Input).Op(wasm.OpI32Eqz).BrIf(1)
	c.LocalGet(lLen).I32Const(1).Op(wasm.OpI32Add).LocalSet(lLen).Br(0)
	c.End().End()

	c.LocalGet(pPartA).If()
	c.I32Const(int32(a.PartA)).I32Const(int32(a.Input)).LocalGet(lLen).I32Const(1).Op(wasm.OpI32Add).MemoryCopy()
	c.Else()
	terminate(c, a.PartA)
	c.End()

	c.LocalGet(pPartB).If()
	decimal(c, lLen, a.PartB, lTmp, lPtr)
	c.Else()
	terminate(c, a.PartB)
	c.End()

	c.I32Const(1).End()

	m := &wasm.Module{
		Types:    []wasm.FuncType{runType},
		Funcs:    []uint32{0},
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: pages}}},
		Globals: []wasm.Global{
			constGlobal(a.Input),
			constGlobal(a.PartA),
			constGlobal(a.PartB),
		},
		Exports: []wasm.Export{
			{Name: "memory", Kind: wasm.KindMemory, Idx: 0},
			{Name: "run_puzzle", Kind: wasm.KindFunc, Idx: 0},
			{Name: "INPUT", Kind: wasm.KindGlobal, Idx: 0},
			{Name: "PART1", Kind: wasm.KindGlobal, Idx: 1},
			{Name: "PART2", Kind: wasm.KindGlobal, Idx: 2},
		},
		Code:           []wasm.FuncBody{{Locals: runLocals, Code: c.Bytes()}},
		CustomSections: catalogSections(opts.Catalog),
	}
	return m.Encode()
}

// Global indices of the multi-threaded fixture.
const (
	gStackPointer = iota
	gTLSBase
	gTLSSize
	gTLSAlign
	gHeapBase
	gInput
	gPartA
	gPartB
)

// MultiThreaded returns a module importing one shared env.memory and
// exporting the thread ABI: stack pointer, TLS globals, allocate_stack and
// worker_thread.
func MultiThreaded(opts Options) []byte {
	opts = opts.withDefaults()
	a := Layout(opts)
	maxPages := uint64(opts.MaxPages)

	types := []wasm.FuncType{runType, allocType, workerType}
	funcs := []uint32{0, 1, 2}
	code := []wasm.FuncBody{
		{Locals: runLocals, Code: multiRun(a, opts.waitTimeout())},
		{Locals: []wasm.LocalEntry{{Count: 1, ValType: wasm.ValI32}}, Code: allocateStack(a)},
		{Locals: workerLocals, Code: workerThread(a, opts.ReturningWorker, opts.waitTimeout())},
	}
	exports := []wasm.Export{
		{Name: "run_puzzle", Kind: wasm.KindFunc, Idx: 0},
		{Name: "allocate_stack", Kind: wasm.KindFunc, Idx: 1},
		{Name: "worker_thread", Kind: wasm.KindFunc, Idx: 2},
		{Name: "__stack_pointer", Kind: wasm.KindGlobal, Idx: gStackPointer},
		{Name: "__tls_base", Kind: wasm.KindGlobal, Idx: gTLSBase},
		{Name: "__tls_size", Kind: wasm.KindGlobal, Idx: gTLSSize},
		{Name: "__tls_align", Kind: wasm.KindGlobal, Idx: gTLSAlign},
		{Name: "__heap_base", Kind: wasm.KindGlobal, Idx: gHeapBase},
		{Name: "INPUT", Kind: wasm.KindGlobal, Idx: gInput},
		{Name: "PART1", Kind: wasm.KindGlobal, Idx: gPartA},
		{Name: "PART2", Kind: wasm.KindGlobal, Idx: gPartB},
	}
	if !opts.TLSBaseGlobal {
		types = append(types, initTLSType)
		funcs = append(funcs, 3)
		code = append(code, wasm.FuncBody{Code: wasm.NewCode().LocalGet(0).GlobalSet(gTLSBase).End().Bytes()})
		exports = append(exports, wasm.Export{Name: "__wasm_init_tls", Kind: wasm.KindFunc, Idx: 3})
	}

	m := &wasm.Module{
		Types: types,
		Imports: []wasm.Import{{
			Module: "env",
			Name:   "memory",
			Desc: wasm.ImportDesc{
				Kind: wasm.KindMemory,
				Memory: &wasm.MemoryType{Limits: wasm.Limits{
					Min:    uint64(opts.MinPages),
					Max:    &maxPages,
					Shared: true,
				}},
			},
		}},
		Funcs: funcs,
		Globals: []wasm.Global{
			mutableGlobal(StackSize),
			mutableGlobal(0),
			constGlobal(TLSSize),
			constGlobal(opts.TLSAlign),
			constGlobal(a.HeapBase),
			constGlobal(a.Input),
			constGlobal(a.PartA),
			constGlobal(a.PartB),
		},
		Exports:        exports,
		Code:           code,
		CustomSections: catalogSections(opts.Catalog),
	}
	return m.Encode()
}

func multiRun(a Addresses, timeout int64) []byte {
	c := wasm.NewCode()
	unsupported(c, a)

	// publish the day, post the job and wake the workers
	c.I32Const(0).LocalGet(pDay).I32Store(a.Day)
	c.I32Const(0).I32Const(jobPosted).Atomic(wasm.AtomicI32Store, a.Job)
	c.I32Const(0).I32Const(-1).Atomic(wasm.AtomicNotify, a.Job).Op(wasm.OpDrop)

	// wait until a worker marks it done
	c.Block().Loop()
	c.I32Const(0).Atomic(wasm.AtomicI32Load, a.Job).I32Const(jobDone).Op(wasm.OpI32Eq).BrIf(1)
	c.I32Const(0).I32Const(0).Atomic(wasm.AtomicI32Load, a.Job).I64Const(timeout).
		Atomic(wasm.AtomicWait32, a.Job).Op(wasm.OpDrop)
	c.Br(0)
	c.End().End()
	c.I32Const(0).I32Const(jobIdle).Atomic(wasm.AtomicI32Store, a.Job)

	c.LocalGet(pPartA).If()
	c.I32Const(0).I32Load(a.Result).LocalSet(lLen)
	decimal(c, lLen, a.PartA, lTmp, lPtr)
	c.Else()
	terminate(c, a.PartA)
	c.End()

	c.LocalGet(pPartB).If()
	c.I32Const(0).I32Load(a.Lines).LocalSet(lLen)
	decimal(c, lLen, a.PartB, lTmp, lPtr)
	c.Else()
	terminate(c, a.PartB)
	c.End()

	return c.I32Const(1).End().Bytes()
}

// allocateStack is a bump allocator starting at __heap_base. It returns 0
// when the request does not fit into the current memory size.
func allocateStack(a Addresses) []byte {
	const size, align, p = 0, 1, 2
	c := wasm.NewCode()
	c.I32Const(0).I32Load(a.Heap).LocalTee(p).Op(wasm.OpI32Eqz).If()
	c.I32Const(int32(a.HeapBase)).LocalSet(p)
	c.End()

	// p = (p + align - 1) & -align
	c.LocalGet(p).LocalGet(align).Op(wasm.OpI32Add).I32Const(1).Op(wasm.OpI32Sub)
	c.I32Const(0).LocalGet(align).Op(wasm.OpI32Sub)
	c.Op(wasm.OpI32And).LocalSet(p)

	c.LocalGet(p).LocalGet(size).Op(wasm.OpI32Add)
	c.Op(wasm.OpMemorySize, 0).I32Const(wasm.PageSize).Op(wasm.OpI32Mul)
	c.Op(wasm.OpI32GtU).If()
	c.I32Const(0).Op(wasm.OpReturn)
	c.End()

	c.I32Const(0).LocalGet(p).LocalGet(size).Op(wasm.OpI32Add).I32Store(a.Heap)
	return c.LocalGet(p).End().Bytes()
}

func workerThread(a Addresses, returning bool, timeout int64) []byte {
	const idx, i, lines, b = 0, 1, 2, 3
	c := wasm.NewCode()

	// register and record the stack pointer and TLS base the host bound
	c.I32Const(0).I32Const(1).Atomic(wasm.AtomicI32RmwAdd, a.Seen).LocalTee(idx).
		I32Const(MaxSlots).Op(wasm.OpI32LtU).If()
	c.LocalGet(idx).I32Const(4).Op(wasm.OpI32Mul).GlobalGet(gStackPointer).I32Store(a.Slots)
	c.LocalGet(idx).I32Const(4).Op(wasm.OpI32Mul).GlobalGet(gTLSBase).I32Store(a.TLSSlots)
	c.End()
	if returning {
		return c.End().Bytes()
	}

	c.Loop()
	c.I32Const(0).I32Const(jobPosted).I32Const(jobClaimed).Atomic(wasm.AtomicI32RmwCmpxchg, a.Job).
		I32Const(jobPosted).Op(wasm.OpI32Eq).If()

	c.I32Const(0).I32Load(a.Day).I32Const(DayTrap).Op(wasm.OpI32Eq).If()
	storeText(c, b, a.PartA, WorkerTrapMessage)
	storeText(c, b, a.PartB, WorkerTrapLocation)
	c.Op(wasm.OpUnreachable)
	c.End()

	c.I32Const(0).LocalSet(i).I32Const(0).LocalSet(lines)
	c.Block().Loop()
	c.LocalGet(i).I32Load8U(a.Input).LocalTee(b).Op(wasm.OpI32Eqz).BrIf(1)
	c.LocalGet(b).I32Const('\n').Op(wasm.OpI32Eq).LocalGet(lines).Op(wasm.OpI32Add).LocalSet(lines)
	c.LocalGet(i).I32Const(1).Op(wasm.OpI32Add).LocalSet(i).Br(0)
	c.End().End()

	// a non-empty input has one more line than newlines
	c.LocalGet(lines).LocalGet(i).I32Const(0).Op(wasm.OpI32Ne).Op(wasm.OpI32Add).LocalSet(lines)
	c.I32Const(0).LocalGet(i).I32Store(a.Result)
	c.I32Const(0).LocalGet(lines).I32Store(a.Lines)
	c.I32Const(0).I32Const(jobDone).Atomic(wasm.AtomicI32Store, a.Job)
	c.I32Const(0).I32Const(-1).Atomic(wasm.AtomicNotify, a.Job).Op(wasm.OpDrop)

	c.Else()
	c.I32Const(0).I32Const(0).Atomic(wasm.AtomicI32Load, a.Job).I64Const(timeout).
		Atomic(wasm.AtomicWait32, a.Job).Op(wasm.OpDrop)
	c.End()

	c.Br(0)
	c.End()
	return c.End().Bytes()
}

// unsupported rejects other years and day 0 the way real modules do.
func unsupported(c *wasm.Code, a Addresses) {
	c.LocalGet(pYear).I32Const(Year).Op(wasm.OpI32Ne).LocalGet(pDay).Op(wasm.OpI32Eqz).Op(wasm.OpI32Or).If()
	storeText(c, lAddr, a.PartA, UnsupportedMessage)
	terminate(c, a.PartB)
	c.I32Const(0).Op(wasm.OpReturn)
	c.End()
}

func failureDays(c *wasm.Code, a Addresses, capacity uint32) {
	onDay := func(day int32) {
		c.LocalGet(pDay).I32Const(day).Op(wasm.OpI32Eq).If()
	}

	onDay(DayReportEmpty)
	terminate(c, a.PartA)
	terminate(c, a.PartB)
	c.I32Const(0).Op(wasm.OpReturn)
	c.End()

	onDay(DayInvalidUTF8)
	storeText(c, lAddr, a.PartA, "\xffA")
	terminate(c, a.PartB)
	c.I32Const(1).Op(wasm.OpReturn)
	c.End()

	onDay(DayUnterminated)
	c.I32Const(int32(a.PartA)).I32Const('x').I32Const(int32(capacity)).MemoryFill()
	terminate(c, a.PartB)
	c.I32Const(1).Op(wasm.OpReturn)
	c.End()

	onDay(DaySpin)
	c.Loop().Br(0).End()
	c.End()

	onDay(DayTrap)
	storeText(c, lAddr, a.PartA, TrapMessage)
	storeText(c, lAddr, a.PartB, TrapLocation)
	c.Op(wasm.OpUnreachable)
	c.End()
}

func storeText(c *wasm.Code, local, addr uint32, s string) {
	c.I32Const(int32(addr)).LocalSet(local).StoreString(local, s)
}

func terminate(c *wasm.Code, addr uint32) {
	c.I32Const(int32(addr)).I32Const(0).I32Store8(0)
}

// decimal writes the value of local val as NUL-terminated decimal text at dst.
func decimal(c *wasm.Code, val, dst, tmp, ptr uint32) {
	c.LocalGet(val).LocalSet(tmp).I32Const(int32(dst)).LocalSet(ptr)
	c.Loop()
	c.LocalGet(ptr).I32Const(1).Op(wasm.OpI32Add).LocalSet(ptr)
	c.LocalGet(tmp).I32Const(10).Op(wasm.OpI32DivU).LocalTee(tmp).BrIf(0)
	c.End()
	c.LocalGet(ptr).I32Const(0).I32Store8(0)

	c.LocalGet(val).LocalSet(tmp)
	c.Loop()
	c.LocalGet(ptr).I32Const(1).Op(wasm.OpI32Sub).LocalSet(ptr)
	c.LocalGet(ptr).LocalGet(tmp).I32Const(10).Op(wasm.OpI32RemU).I32Const('0').Op(wasm.OpI32Add).I32Store8(0)
	c.LocalGet(tmp).I32Const(10).Op(wasm.OpI32DivU).LocalTee(tmp).BrIf(0)
	c.End()
}

func constGlobal(v uint32) wasm.Global {
	return wasm.Global{
		Type: wasm.GlobalType{ValType: wasm.ValI32},
		Init: wasm.NewCode().I32Const(int32(v)).End().Bytes(),
	}
}

func mutableGlobal(v uint32) wasm.Global {
	g := constGlobal(v)
	g.Type.Mutable = true
	return g
}

func catalogSections(c *catalog.Catalog) []wasm.CustomSection {
	sections, err := c.Encode()
	if err != nil {
		panic("fixture: " + err.Error())
	}
	return sections
}

// FuncImport describes an imported () -> () function.
func FuncImport(module, name string) wasm.Import {
	return wasm.Import{Module: module, Name: name, Desc: wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: 0}}
}

// MemoryImport describes an imported memory.
func MemoryImport(module, name string, minPages uint64, maxPages *uint64, shared bool) wasm.Import {
	return wasm.Import{Module: module, Name: name, Desc: wasm.ImportDesc{
		Kind:   wasm.KindMemory,
		Memory: &wasm.MemoryType{Limits: wasm.Limits{Min: minPages, Max: maxPages, Shared: shared}},
	}}
}

// WithImports returns an otherwise empty module declaring the given imports.
func WithImports(imports ...wasm.Import) []byte {
	m := &wasm.Module{
		Types:   []wasm.FuncType{{}},
		Imports: imports,
	}
	return m.Encode()
}
