package runtime

import (
	"context"

	"github.com/wippyai/puzzle-host/catalog"
	"github.com/wippyai/puzzle-host/engine"
)

// Runtime owns an engine and opens supervised modules on it.
type Runtime struct {
	engine *engine.Engine
}

// New creates a runtime. Zero fields of cfg take their defaults.
func New(cfg engine.Config) (*Runtime, error) {
	eng, err := engine.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Runtime{engine: eng}, nil
}

// Engine returns the underlying engine.
func (r *Runtime) Engine() *engine.Engine {
	return r.engine
}

// Close releases all runtime resources.
// All supervisors must be stopped before calling this.
func (r *Runtime) Close(ctx context.Context) error {
	return r.engine.Close(ctx)
}

// Open loads a module and returns a supervisor for it. No instance is
// created until the first submission or an explicit Create.
func (r *Runtime) Open(name string, data []byte) (*Supervisor, error) {
	m, err := r.engine.Load(name, data)
	if err != nil {
		return nil, err
	}
	return r.supervise(m)
}

// OpenFile is Open for a module on disk.
func (r *Runtime) OpenFile(path string) (*Supervisor, error) {
	m, err := r.engine.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return r.supervise(m)
}

func (r *Runtime) supervise(m *engine.Module) (*Supervisor, error) {
	cat, err := catalog.Decode(m.Decoded().CustomSections)
	if err != nil {
		return nil, err
	}
	s := NewSupervisor(r.engine, m)
	s.catalog = cat
	return s, nil
}
