package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	puzzlehost "github.com/wippyai/puzzle-host"
	"github.com/wippyai/puzzle-host/errors"
	"github.com/wippyai/puzzle-host/wasm"
)

const mainModuleName = "main"

var errInstanceClosed = errors.New(errors.PhaseRuntime, errors.KindFatal).
	Detail("instance closed").
	Build()

// Call is one invocation of the module's entry point.
type Call struct {
	Category uint16
	Item     uint8
	Example  bool
	PartA    bool
	PartB    bool
}

// Instance is a live execution context: one wazero runtime, one arena, the
// main module instance and, for multi-threaded modules, a pool of bound
// workers. An Instance is either fully built or not returned at all.
type Instance struct {
	ctx         context.Context
	runtime     wazero.Runtime
	main        api.Module
	memory      api.Memory
	run         api.Function
	wake        api.Function
	fault       error
	module      *Module
	group       *errgroup.Group
	cancel      context.CancelCauseFunc
	id          string
	workers     []*worker
	layouts     []Layout
	regions     Regions
	calls       sync.WaitGroup
	stopTimeout time.Duration
	faultMu     sync.Mutex
	closeOnce   sync.Once
	live        atomic.Int32
	calling     atomic.Bool
	closed      atomic.Bool
}

// NewInstance builds an instance of m. For a multi-threaded module it
// creates the arena, instantiates the main module, reserves every worker
// region and waits until all workers are bound. Any failure tears down what
// was built so far.
func (e *Engine) NewInstance(ctx context.Context, m *Module) (_ *Instance, err error) {
	base, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	group, gctx := errgroup.WithContext(base)

	inst := &Instance{
		ctx:         gctx,
		module:      m,
		group:       group,
		cancel:      cancel,
		id:          uuid.NewString(),
		stopTimeout: e.cfg.StopTimeout,
	}
	inst.runtime = wazero.NewRuntimeWithConfig(ctx, e.runtimeConfig(m.policy))

	defer func() {
		if err != nil {
			if cerr := inst.Close(ctx); cerr != nil {
				Logger().Warn("failed to close partially built instance",
					zap.String("instance", inst.id),
					zap.Error(cerr))
			}
		}
	}()

	var static, arenaMax uint64
	if m.policy == MultiThreaded {
		imp, _ := m.MemoryImport()
		initial, maximum, err := arenaLimits(imp.Desc.Memory.Limits, e.cfg)
		if err != nil {
			return nil, err
		}
		env, err := inst.runtime.InstantiateWithConfig(ctx, arenaModule(imp.Name, initial, maximum),
			wazero.NewModuleConfig().WithName(imp.Module))
		if err != nil {
			return nil, errors.Instantiation("arena", err)
		}
		inst.memory = env.ExportedMemory(imp.Name)
		inst.wake = env.ExportedFunction(wakeExport)
		static = uint64(initial) * wasm.PageSize
		if m.abi.HeapBase != 0 {
			static = uint64(m.abi.HeapBase)
		}
		arenaMax = uint64(maximum) * wasm.PageSize
	}

	compiled, err := inst.runtime.CompileModule(ctx, m.bytes)
	if err != nil {
		return nil, errors.Instantiation("compile "+m.name, err)
	}

	inst.main, err = inst.runtime.InstantiateModule(ctx, compiled,
		wazero.NewModuleConfig().WithName(mainModuleName).WithStartFunctions())
	if err != nil {
		return nil, errors.Instantiation(mainModuleName, err)
	}
	if inst.memory == nil {
		inst.memory = inst.main.Memory()
	}
	if inst.memory == nil {
		return nil, errors.NotFound(errors.PhaseInstantiate, "memory", m.name)
	}
	inst.run = inst.main.ExportedFunction(m.exports.Run)

	if inst.regions, err = inst.resolveRegions(e.cfg.BufferCapacity); err != nil {
		return nil, err
	}

	if m.policy == MultiThreaded {
		plan, err := PlanLayout(m.abi, e.cfg.Workers)
		if err != nil {
			return nil, err
		}
		alloc := exportAllocator{fn: inst.main.ExportedFunction(m.exports.AllocateStack)}
		if inst.layouts, err = Reserve(ctx, alloc, plan, static, arenaMax); err != nil {
			return nil, err
		}
		if err := inst.startWorkers(ctx, compiled, inst.layouts); err != nil {
			return nil, err
		}
	}

	Logger().Info("instance ready",
		zap.String("instance", inst.id),
		zap.String("module", m.name),
		zap.Stringer("policy", m.policy),
		zap.Int("workers", len(inst.workers)))
	return inst, nil
}

func (i *Instance) resolveRegions(capacity uint32) (Regions, error) {
	ex := i.module.exports
	read := func(name string) (Region, error) {
		g := i.main.ExportedGlobal(name)
		if g == nil {
			return Region{}, errors.NotFound(errors.PhaseInstantiate, "global", name)
		}
		return Region{Name: name, Offset: uint32(g.Get()), Capacity: capacity}, nil
	}

	var regs Regions
	var err error
	if regs.Input, err = read(ex.Input); err != nil {
		return regs, err
	}
	if regs.OutputA, err = read(ex.OutputA); err != nil {
		return regs, err
	}
	if regs.OutputB, err = read(ex.OutputB); err != nil {
		return regs, err
	}
	return regs, regs.Check(uint64(i.memory.Size()))
}

type exportAllocator struct {
	fn api.Function
}

func (a exportAllocator) AllocateStack(ctx context.Context, size, align uint32) (uint32, error) {
	if a.fn == nil {
		return 0, errors.NotFound(errors.PhaseLayout, "function", "allocate_stack")
	}
	res, err := a.fn.Call(ctx, uint64(size), uint64(align))
	if err != nil {
		return 0, err
	}
	return uint32(res[0]), nil
}

// ID returns the unique identifier of the instance, used in logs.
func (i *Instance) ID() string { return i.id }

// Module returns the module the instance runs.
func (i *Instance) Module() *Module { return i.module }

// Memory returns the instance's arena.
func (i *Instance) Memory() puzzlehost.Memory { return i.memory }

// Regions returns the resolved exchange buffers.
func (i *Instance) Regions() Regions { return i.regions }

// Layouts returns a copy of the per-worker layouts.
func (i *Instance) Layouts() []Layout {
	return append([]Layout(nil), i.layouts...)
}

// Workers returns the number of workers started.
func (i *Instance) Workers() int { return len(i.workers) }

// Live returns the number of goroutines currently executing module code.
func (i *Instance) Live() int { return int(i.live.Load()) }

// Err returns the first worker fault, or nil.
func (i *Instance) Err() error {
	i.faultMu.Lock()
	defer i.faultMu.Unlock()
	return i.fault
}

// Done is closed when the instance is closed or a worker faults.
func (i *Instance) Done() <-chan struct{} { return i.ctx.Done() }

func (i *Instance) recordFault(err error) {
	i.faultMu.Lock()
	first := i.fault == nil
	if first {
		i.fault = err
	}
	i.faultMu.Unlock()
	if first {
		Logger().Error("worker fault",
			zap.String("instance", i.id),
			zap.Error(err))
	}
}

type callResult struct {
	err error
	res []uint64
}

// Run invokes the entry point and reports its boolean result. Context
// expiry or a worker fault aborts the call; the instance must then be
// closed. A call still parked in module code is left to Close to release.
func (i *Instance) Run(ctx context.Context, c Call) (bool, error) {
	if !i.calling.CompareAndSwap(false, true) {
		return false, errors.Busy("instance call")
	}
	defer i.calling.Store(false)

	if i.closed.Load() {
		return false, errInstanceClosed
	}
	if err := i.Err(); err != nil {
		return false, err
	}

	callCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stop := context.AfterFunc(i.ctx, func() { cancel(context.Cause(i.ctx)) })
	defer stop()

	done := make(chan callResult, 1)
	i.calls.Add(1)
	i.live.Add(1)
	go func() {
		defer i.calls.Done()
		defer i.live.Add(-1)
		res, err := i.run.Call(callCtx,
			uint64(c.Category), uint64(c.Item),
			boolArg(c.Example), boolArg(c.PartA), boolArg(c.PartB))
		done <- callResult{res: res, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return false, callError(callCtx, r.err)
		}
		return uint32(r.res[0]) != 0, nil
	case <-callCtx.Done():
		return false, callError(callCtx, nil)
	}
}

func callError(callCtx context.Context, err error) error {
	cause := context.Cause(callCtx)
	switch {
	case cause == nil:
		return err
	case err == nil:
		return cause
	default:
		return fmt.Errorf("%w: %w", cause, err)
	}
}

func boolArg(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// wakeInterval paces the notify sweeps issued while Close waits for agents
// parked in memory.atomic.wait to observe the cancellation.
const wakeInterval = 10 * time.Millisecond

// Close stops all workers and releases the runtime. Agents parked in an
// atomic wait are notified until they exit. Goroutines still running module
// code after the stop timeout are abandoned and logged. Close is idempotent.
func (i *Instance) Close(ctx context.Context) error {
	var err error
	i.closeOnce.Do(func() {
		i.closed.Store(true)
		i.cancel(errInstanceClosed)

		done := make(chan struct{})
		go func() {
			_ = i.group.Wait()
			i.calls.Wait()
			close(done)
		}()

		timer := time.NewTimer(i.stopTimeout)
		defer timer.Stop()
		ticker := time.NewTicker(wakeInterval)
		defer ticker.Stop()

		i.wakeAll(ctx)
	wait:
		for {
			select {
			case <-done:
				break wait
			case <-ticker.C:
				i.wakeAll(ctx)
			case <-timer.C:
				Logger().Warn("abandoning goroutines blocked in module code",
					zap.String("instance", i.id),
					zap.Int32("goroutines", i.live.Load()))
				break wait
			case <-ctx.Done():
				Logger().Warn("close interrupted, abandoning goroutines",
					zap.String("instance", i.id),
					zap.Int32("goroutines", i.live.Load()))
				break wait
			}
		}

		err = i.runtime.Close(context.WithoutCancel(ctx))
		Logger().Debug("instance closed", zap.String("instance", i.id))
	})
	return err
}

// wakeAll notifies every address of the arena. Woken agents loop back into
// module code, where the closed module makes them exit.
func (i *Instance) wakeAll(ctx context.Context) {
	if i.wake == nil || i.live.Load() == 0 {
		return
	}
	end := wakeEnd(uint64(i.memory.Size()))
	if _, err := i.wake.Call(context.WithoutCancel(ctx), 0, uint64(end)); err != nil {
		Logger().Debug("arena wake failed",
			zap.String("instance", i.id),
			zap.Error(err))
	}
}
