package engine

import (
	"fmt"
	"runtime"
	"time"

	"github.com/wippyai/puzzle-host/errors"
)

// Export names found in modules built by the puzzle toolchain.
const (
	DefaultRunExport           = "run_puzzle"
	DefaultInputExport         = "INPUT"
	DefaultOutputAExport       = "PART1"
	DefaultOutputBExport       = "PART2"
	DefaultStackPointerExport  = "__stack_pointer"
	DefaultTLSSizeExport       = "__tls_size"
	DefaultTLSAlignExport      = "__tls_align"
	DefaultTLSBaseExport       = "__tls_base"
	DefaultInitTLSExport       = "__wasm_init_tls"
	DefaultHeapBaseExport      = "__heap_base"
	DefaultAllocateStackExport = "allocate_stack"
	DefaultWorkerEntryExport   = "worker_thread"
)

const (
	// DefaultBufferCapacity is the size of each exchange buffer.
	DefaultBufferCapacity = 1 << 20

	// DefaultStopTimeout bounds how long Close waits for workers to exit.
	DefaultStopTimeout = 2 * time.Second

	// DefaultModuleCacheSize is the number of decoded modules kept by an Engine.
	DefaultModuleCacheSize = 8
)

// Exports names the module exports the host binds to.
type Exports struct {
	Run           string
	Input         string
	OutputA       string
	OutputB       string
	StackPointer  string
	TLSSize       string
	TLSAlign      string
	TLSBase       string
	InitTLS       string
	HeapBase      string
	AllocateStack string
	WorkerEntry   string
}

// DefaultExports returns the export names used by the puzzle toolchain.
func DefaultExports() Exports {
	return Exports{
		Run:           DefaultRunExport,
		Input:         DefaultInputExport,
		OutputA:       DefaultOutputAExport,
		OutputB:       DefaultOutputBExport,
		StackPointer:  DefaultStackPointerExport,
		TLSSize:       DefaultTLSSizeExport,
		TLSAlign:      DefaultTLSAlignExport,
		TLSBase:       DefaultTLSBaseExport,
		InitTLS:       DefaultInitTLSExport,
		HeapBase:      DefaultHeapBaseExport,
		AllocateStack: DefaultAllocateStackExport,
		WorkerEntry:   DefaultWorkerEntryExport,
	}
}

func (e Exports) withDefaults() Exports {
	d := DefaultExports()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&e.Run, d.Run)
	fill(&e.Input, d.Input)
	fill(&e.OutputA, d.OutputA)
	fill(&e.OutputB, d.OutputB)
	fill(&e.StackPointer, d.StackPointer)
	fill(&e.TLSSize, d.TLSSize)
	fill(&e.TLSAlign, d.TLSAlign)
	fill(&e.TLSBase, d.TLSBase)
	fill(&e.InitTLS, d.InitTLS)
	fill(&e.HeapBase, d.HeapBase)
	fill(&e.AllocateStack, d.AllocateStack)
	fill(&e.WorkerEntry, d.WorkerEntry)
	return e
}

// Config holds configuration for engine creation
type Config struct {
	Exports Exports

	// Workers is the number of worker threads started for multi-threaded
	// modules. 0 means runtime.NumCPU().
	Workers int

	// BufferCapacity is the byte size of each exchange buffer. It must match
	// the size the module reserved for INPUT, PART1 and PART2.
	BufferCapacity uint32

	// InitialPages and MaxPages size the shared arena in 64KiB pages. 0 takes
	// the limits declared by the module's memory import.
	InitialPages uint32
	MaxPages     uint32

	// MemoryLimitPages caps every memory of an instance. 0 means no cap
	// beyond the 4GiB address space.
	MemoryLimitPages uint32

	// StopTimeout bounds how long teardown waits for worker goroutines.
	StopTimeout time.Duration

	// ModuleCacheSize is the number of decoded modules an Engine retains.
	ModuleCacheSize int
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.BufferCapacity == 0 {
		c.BufferCapacity = DefaultBufferCapacity
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = DefaultStopTimeout
	}
	if c.ModuleCacheSize <= 0 {
		c.ModuleCacheSize = DefaultModuleCacheSize
	}
	c.Exports = c.Exports.withDefaults()
	return c
}

// Validate reports configuration values that can never produce an instance.
func (c Config) Validate() error {
	if c.Workers < 0 {
		return configError("workers", "must not be negative, got %d", c.Workers)
	}
	if c.BufferCapacity == 1 {
		return configError("buffer_capacity", "must hold at least one byte plus terminator")
	}
	if c.MaxPages > 65536 {
		return configError("max_pages", "%d exceeds the 32-bit address space", c.MaxPages)
	}
	if c.MaxPages != 0 && c.InitialPages > c.MaxPages {
		return configError("initial_pages", "%d exceeds max_pages %d", c.InitialPages, c.MaxPages)
	}
	if c.MemoryLimitPages != 0 && c.MaxPages > c.MemoryLimitPages {
		return configError("max_pages", "%d exceeds memory_limit_pages %d", c.MaxPages, c.MemoryLimitPages)
	}
	return nil
}

func configError(field, format string, args ...any) error {
	return errors.New(errors.PhaseConfig, errors.KindInvalidData).
		Path(field).
		Detail("%s", fmt.Sprintf(format, args...)).
		Build()
}
