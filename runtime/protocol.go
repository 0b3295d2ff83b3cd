package runtime

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/puzzle-host/engine"
	"github.com/wippyai/puzzle-host/errors"
)

// Selector chooses which answers a request asks for.
type Selector uint8

const (
	PartA Selector = 1 << iota
	PartB

	BothParts = PartA | PartB
)

// Request is one submission to a puzzle module.
type Request struct {
	Input    string
	Category uint16
	Item     uint8
	// Example marks Input as one of the module's catalogued examples, for
	// puzzles whose parameters differ between examples and real inputs.
	Example bool
	// Parts defaults to BothParts when zero.
	Parts Selector
}

// Result holds the answers of a successful submission. A part that was
// not requested is empty.
type Result struct {
	PartA   string
	PartB   string
	Elapsed time.Duration
}

const reportedFallback = "module reported a failure without a message"

// Submit runs one request against the current instance, building it first
// when needed. A module-reported failure is returned as a KindReported error
// and leaves the instance in place. A trap, abort, timeout or worker fault
// is returned as a KindFatal error and tears the instance down; the next
// submission rebuilds it. Overlapping submissions fail with KindBusy.
func (s *Supervisor) Submit(ctx context.Context, req Request) (Result, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return Result{}, errors.Busy("submit")
	}
	defer s.busy.Store(false)

	parts := req.Parts
	if parts == 0 {
		parts = BothParts
	}

	inst, err := s.Ensure(ctx)
	if err != nil {
		return Result{}, err
	}
	mem := inst.Memory()
	regs := inst.Regions()

	if err := regs.Input.WriteText(mem, req.Input); err != nil {
		return Result{}, err
	}
	// stale text in the outputs would be mistaken for fresh diagnostics
	for _, r := range []engine.Region{regs.OutputA, regs.OutputB} {
		if err := r.Clear(mem); err != nil {
			return Result{}, err
		}
	}

	start := time.Now()
	ok, err := inst.Run(ctx, engine.Call{
		Category: req.Category,
		Item:     req.Item,
		Example:  req.Example,
		PartA:    parts&PartA != 0,
		PartB:    parts&PartB != 0,
	})
	elapsed := time.Since(start)
	if err != nil {
		return Result{}, s.recoverFault(ctx, inst, err)
	}

	if !ok {
		msg, err := regs.OutputA.ReadText(mem)
		if err != nil {
			return Result{}, err
		}
		if msg == "" {
			msg = reportedFallback
		}
		Logger().Debug("module reported failure",
			zap.String("instance", inst.ID()),
			zap.Uint16("category", req.Category),
			zap.Uint8("item", req.Item),
			zap.String("message", msg))
		return Result{}, errors.Reported(msg)
	}

	res := Result{Elapsed: elapsed}
	if res.PartA, err = regs.OutputA.ReadText(mem); err != nil {
		return Result{}, err
	}
	if res.PartB, err = regs.OutputB.ReadText(mem); err != nil {
		return Result{}, err
	}
	Logger().Debug("submission solved",
		zap.String("instance", inst.ID()),
		zap.Uint16("category", req.Category),
		zap.Uint8("item", req.Item),
		zap.Duration("elapsed", elapsed))
	return res, nil
}
