package engine

import (
	"context"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
	"go.uber.org/zap"

	"github.com/wippyai/puzzle-host/errors"
)

// Engine loads modules and creates instances from them. Instances each get
// their own wazero runtime; compiled machine code is shared through one
// compilation cache so rebuilding an instance after a fault is cheap.
type Engine struct {
	cache   wazero.CompilationCache
	modules *lru.Cache[string, *Module]
	cfg     Config
}

// New creates an engine. Zero fields of cfg take their defaults.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	modules, err := lru.New[string, *Module](cfg.ModuleCacheSize)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "module cache")
	}
	return &Engine{
		cache:   wazero.NewCompilationCache(),
		modules: modules,
		cfg:     cfg,
	}, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Load decodes and classifies a module. Identical bytes return the cached
// Module.
func (e *Engine) Load(name string, data []byte) (*Module, error) {
	if cached, ok := e.modules.Get(Digest(data)); ok {
		return cached, nil
	}
	m, err := LoadModule(name, data, e.cfg.Exports)
	if err != nil {
		return nil, err
	}
	e.modules.Add(m.digest, m)
	Logger().Debug("module loaded",
		zap.String("module", name),
		zap.String("digest", m.digest),
		zap.Stringer("policy", m.policy))
	return m, nil
}

// LoadFile reads and loads a module from disk.
func (e *Engine) LoadFile(path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load("read "+path, err)
	}
	return e.Load(filepath.Base(path), data)
}

// Close releases the compilation cache and forgets loaded modules.
// Instances must be closed first.
func (e *Engine) Close(ctx context.Context) error {
	e.modules.Purge()
	return e.cache.Close(ctx)
}

func (e *Engine) runtimeConfig(policy Policy) wazero.RuntimeConfig {
	cfg := wazero.NewRuntimeConfig().
		WithCompilationCache(e.cache).
		WithCloseOnContextDone(true)
	if e.cfg.MemoryLimitPages > 0 {
		cfg = cfg.WithMemoryLimitPages(e.cfg.MemoryLimitPages)
	}
	if policy == MultiThreaded {
		cfg = cfg.WithCoreFeatures(api.CoreFeaturesV2 | experimental.CoreFeaturesThreads)
	}
	return cfg
}
