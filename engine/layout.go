package engine

import (
	"context"
	"math"
	"math/bits"

	puzzlehost "github.com/wippyai/puzzle-host"
	"github.com/wippyai/puzzle-host/errors"
)

// MinAlign is the smallest alignment used for worker regions.
const MinAlign = 16

// Span is a half-open byte range [Start, End) of linear memory.
type Span struct {
	Start uint32
	End   uint32
}

// Len returns the number of bytes in the span.
func (s Span) Len() uint32 { return s.End - s.Start }

// Overlaps reports whether two non-empty spans share a byte.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Layout is one worker's slice of the arena. Base is both the initial
// stack pointer (the stack grows down from it) and the TLS base.
type Layout struct {
	Stack Span
	TLS   Span
	Base  uint32
}

// Plan is the per-worker geometry for a given worker count.
type Plan struct {
	Workers   int
	Align     uint32
	StackSize uint32
	TLSSize   uint32
}

// PlanLayout rounds the module's stack and TLS sizes up to the common
// alignment, max(MinAlign, TLS alignment).
func PlanLayout(abi ThreadABI, workers int) (Plan, error) {
	if workers <= 0 {
		return Plan{}, errors.Capacity("worker count must be positive, got %d", workers)
	}
	align := uint32(MinAlign)
	if abi.TLSAlign > align {
		align = abi.TLSAlign
	}
	if bits.OnesCount32(align) != 1 {
		return Plan{}, errors.New(errors.PhaseLayout, errors.KindInvalidData).
			Detail("TLS alignment %d is not a power of two", abi.TLSAlign).
			Build()
	}
	stack, ok := alignUp(abi.StackSize, align)
	if !ok {
		return Plan{}, errors.Capacity("stack size %d overflows when aligned to %d", abi.StackSize, align)
	}
	tls, ok := alignUp(abi.TLSSize, align)
	if !ok {
		return Plan{}, errors.Capacity("TLS size %d overflows when aligned to %d", abi.TLSSize, align)
	}
	p := Plan{Workers: workers, Align: align, StackSize: stack, TLSSize: tls}
	if _, err := p.Total(); err != nil {
		return Plan{}, err
	}
	return p, nil
}

// Stride returns the bytes used by one worker.
func (p Plan) Stride() uint64 {
	return uint64(p.StackSize) + uint64(p.TLSSize)
}

// Total returns the bytes reserved for all workers.
func (p Plan) Total() (uint32, error) {
	total := uint64(p.Workers) * p.Stride()
	if total > math.MaxUint32 {
		return 0, errors.Capacity("%d workers of %d bytes exceed the 32-bit address space", p.Workers, p.Stride())
	}
	return uint32(total), nil
}

// Check verifies that the worker regions plus the module's static data fit
// into an arena of arenaMax bytes.
func (p Plan) Check(static, arenaMax uint64) error {
	total, err := p.Total()
	if err != nil {
		return err
	}
	if uint64(total)+static > arenaMax {
		return errors.Capacity("%d workers need %d bytes plus %d bytes of static data, arena holds %d",
			p.Workers, total, static, arenaMax)
	}
	return nil
}

// Layouts places the workers one after another starting at start.
func (p Plan) Layouts(start uint32) ([]Layout, error) {
	if start == 0 {
		return nil, errors.Capacity("allocator returned a null region")
	}
	if start%p.Align != 0 {
		return nil, errors.Capacity("region start %d is not aligned to %d", start, p.Align)
	}
	total, err := p.Total()
	if err != nil {
		return nil, err
	}
	if uint64(start)+uint64(total) > math.MaxUint32 {
		return nil, errors.Capacity("region [%d, +%d) exceeds the 32-bit address space", start, total)
	}

	stride := uint32(p.Stride())
	layouts := make([]Layout, p.Workers)
	for i := range layouts {
		base := start + uint32(i)*stride + p.StackSize
		layouts[i] = Layout{
			Stack: Span{Start: base - p.StackSize, End: base},
			TLS:   Span{Start: base, End: base + p.TLSSize},
			Base:  base,
		}
	}
	return layouts, nil
}

// Reserve checks capacity, reserves every worker region with a single
// allocation inside the module and returns the per-worker layouts. It runs
// before any worker exists.
func Reserve(ctx context.Context, alloc puzzlehost.Allocator, p Plan, static, arenaMax uint64) ([]Layout, error) {
	if err := p.Check(static, arenaMax); err != nil {
		return nil, err
	}
	total, _ := p.Total()
	start, err := alloc.AllocateStack(ctx, total, p.Align)
	if err != nil {
		return nil, errors.New(errors.PhaseLayout, errors.KindCapacity).
			Detail("reserve %d bytes for %d workers", total, p.Workers).
			Cause(err).
			Build()
	}
	if uint64(start)+uint64(total) > arenaMax {
		return nil, errors.Capacity("allocator returned [%d, %d) beyond arena size %d",
			start, uint64(start)+uint64(total), arenaMax)
	}
	return p.Layouts(start)
}

func alignUp(v, align uint32) (uint32, bool) {
	r := (uint64(v) + uint64(align) - 1) &^ (uint64(align) - 1)
	if r > math.MaxUint32 {
		return 0, false
	}
	return uint32(r), true
}
