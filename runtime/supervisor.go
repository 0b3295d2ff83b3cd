package runtime

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/puzzle-host/catalog"
	"github.com/wippyai/puzzle-host/engine"
)

// State is the lifecycle state of a supervisor's instance.
type State int32

const (
	StateAbsent State = iota
	StateStarting
	StateReady
	StateStopping
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateStopping:
		return "stopping"
	case StateFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Supervisor owns at most one current instance of a module. It builds the
// instance on demand, tears it down on a fatal fault and rebuilds it on the
// next submission.
type Supervisor struct {
	engine     *engine.Engine
	module     *engine.Module
	catalog    *catalog.Catalog
	inst       *engine.Instance
	mu         sync.Mutex
	state      State
	generation atomic.Uint64
	busy       atomic.Bool
}

// NewSupervisor creates a supervisor with no instance.
func NewSupervisor(e *engine.Engine, m *engine.Module) *Supervisor {
	return &Supervisor{engine: e, module: m, catalog: catalog.New()}
}

// Module returns the supervised module.
func (s *Supervisor) Module() *engine.Module { return s.module }

// Catalog returns the work items the module advertises.
func (s *Supervisor) Catalog() *catalog.Catalog { return s.catalog }

// Generation returns how many instances have been built so far.
func (s *Supervisor) Generation() uint64 { return s.generation.Load() }

// State returns the current lifecycle state. A ready instance whose worker
// has faulted reports StateFaulted.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Supervisor) stateLocked() State {
	if s.state == StateReady && s.inst.Err() != nil {
		return StateFaulted
	}
	return s.state
}

// Instance returns the current instance, or nil.
func (s *Supervisor) Instance() *engine.Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inst
}

// Create tears down any current instance and builds a new one. On failure
// the state is StateAbsent.
func (s *Supervisor) Create(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(ctx)
}

func (s *Supervisor) createLocked(ctx context.Context) error {
	s.stopLocked(ctx)

	s.state = StateStarting
	inst, err := s.engine.NewInstance(ctx, s.module)
	if err != nil {
		s.state = StateAbsent
		return err
	}
	s.inst = inst
	s.state = StateReady
	s.generation.Add(1)
	return nil
}

// Ensure returns the current instance, building one when none is ready.
// On a ready instance it is a no-op.
func (s *Supervisor) Ensure(ctx context.Context) (*engine.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.stateLocked() {
	case StateReady:
		return s.inst, nil
	case StateFaulted:
		Logger().Warn("replacing faulted instance",
			zap.String("instance", s.inst.ID()),
			zap.Error(s.inst.Err()))
	}
	if err := s.createLocked(ctx); err != nil {
		return nil, err
	}
	return s.inst, nil
}

// Stop terminates the current instance, if any. Teardown errors are logged,
// never returned.
func (s *Supervisor) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(ctx)
}

func (s *Supervisor) stopLocked(ctx context.Context) {
	inst := s.inst
	if inst == nil {
		s.state = StateAbsent
		return
	}
	s.state = StateStopping
	if err := inst.Close(ctx); err != nil {
		Logger().Warn("instance teardown failed",
			zap.String("instance", inst.ID()),
			zap.Error(err))
	}
	s.inst = nil
	s.state = StateAbsent
}

// stopInstance stops inst if it is still the current instance.
func (s *Supervisor) stopInstance(ctx context.Context, inst *engine.Instance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inst == inst {
		s.stopLocked(ctx)
		return
	}
	if err := inst.Close(ctx); err != nil {
		Logger().Warn("instance teardown failed",
			zap.String("instance", inst.ID()),
			zap.Error(err))
	}
}
