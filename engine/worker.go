package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/puzzle-host/errors"
)

// spawnMessage is everything a worker needs to start: the compiled module,
// the shared arena it links against and its own layout.
type spawnMessage struct {
	compiled wazero.CompiledModule
	arena    api.Memory
	layout   Layout
}

type worker struct {
	inbox chan spawnMessage
	index int
}

func workerName(index int) string {
	return "worker-" + strconv.Itoa(index)
}

// startWorkers launches one goroutine per layout, hands each its spawn
// message and waits until every worker reports that it is bound.
func (i *Instance) startWorkers(ctx context.Context, compiled wazero.CompiledModule, layouts []Layout) error {
	ready := make(chan error, len(layouts))
	for idx, l := range layouts {
		w := &worker{index: idx, inbox: make(chan spawnMessage, 1)}
		i.workers = append(i.workers, w)
		i.live.Add(1)
		i.group.Go(func() error {
			defer i.live.Add(-1)
			return w.run(i.ctx, i, ready)
		})
		w.inbox <- spawnMessage{compiled: compiled, arena: i.memory, layout: l}
	}

	for range layouts {
		select {
		case err := <-ready:
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return errors.Instantiation("workers", ctx.Err())
		}
	}
	return nil
}

// run instantiates the module for this worker, binds its stack and TLS and
// enters the worker loop. The loop never returns in a healthy instance, so
// any return while the instance is live is a fault.
func (w *worker) run(ctx context.Context, inst *Instance, ready chan<- error) error {
	var msg spawnMessage
	select {
	case msg = <-w.inbox:
	case <-ctx.Done():
		ready <- ctx.Err()
		return nil
	}

	name := workerName(w.index)
	mod, err := inst.runtime.InstantiateModule(ctx, msg.compiled,
		wazero.NewModuleConfig().WithName(name).WithStartFunctions())
	if err != nil {
		err = errors.Instantiation(name, err)
		ready <- err
		return err
	}

	ex := inst.module.exports
	if err := bind(ctx, mod, msg.layout, ex, inst.module.abi); err != nil {
		err = errors.New(errors.PhaseInstantiate, errors.KindInstantiation).
			Path("worker", strconv.Itoa(w.index)).
			Detail("bind stack and TLS").
			Cause(err).
			Build()
		ready <- err
		return err
	}

	entry := mod.ExportedFunction(ex.WorkerEntry)
	Logger().Debug("worker bound",
		zap.String("instance", inst.id),
		zap.Int("worker", w.index),
		zap.Uint32("base", msg.layout.Base),
		zap.Uint32("arena_bytes", msg.arena.Size()))
	ready <- nil

	_, err = entry.Call(ctx)
	if ctx.Err() != nil {
		return nil
	}
	if err == nil {
		err = fmt.Errorf("%s returned", ex.WorkerEntry)
	}
	fault := errors.New(errors.PhaseRuntime, errors.KindFatal).
		Path("worker", strconv.Itoa(w.index)).
		Export(ex.WorkerEntry).
		Detail("worker stopped unexpectedly").
		Cause(err).
		Build()
	inst.recordFault(fault)
	return fault
}

// bind points the worker's stack pointer and TLS base at its layout base.
func bind(ctx context.Context, mod api.Module, l Layout, ex Exports, abi ThreadABI) error {
	sp, ok := mod.ExportedGlobal(ex.StackPointer).(api.MutableGlobal)
	if !ok {
		return fmt.Errorf("%s is not a mutable global", ex.StackPointer)
	}
	sp.Set(uint64(l.Base))

	if abi.InitTLS {
		if _, err := mod.ExportedFunction(ex.InitTLS).Call(ctx, uint64(l.Base)); err != nil {
			return fmt.Errorf("%s: %w", ex.InitTLS, err)
		}
		return nil
	}
	tls, ok := mod.ExportedGlobal(ex.TLSBase).(api.MutableGlobal)
	if !ok {
		return fmt.Errorf("%s is not a mutable global", ex.TLSBase)
	}
	tls.Set(uint64(l.Base))
	return nil
}
