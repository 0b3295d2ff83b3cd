// Package config reads the host's YAML configuration file.
//
// Every field is optional; absent values keep the engine defaults:
//
//	workers: 8
//	buffer_capacity: 1048576
//	stop_timeout: 2s
//	module_cache_size: 8
//	inputs_dir: inputs
//	memory:
//	  initial_pages: 17
//	  max_pages: 16384
//	  limit_pages: 16384
//	exports:
//	  run: run_puzzle
//	  input: INPUT
//	log:
//	  level: info
//	  development: false
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/puzzle-host/engine"
	"github.com/wippyai/puzzle-host/errors"
)

// DefaultInputsDir is where puzzle inputs are looked up when the file does
// not name a directory.
const DefaultInputsDir = "inputs"

// File is the YAML configuration document.
type File struct {
	Workers         int           `yaml:"workers,omitempty"`
	BufferCapacity  uint32        `yaml:"buffer_capacity,omitempty"`
	StopTimeout     time.Duration `yaml:"stop_timeout,omitempty"`
	ModuleCacheSize int           `yaml:"module_cache_size,omitempty"`
	InputsDir       string        `yaml:"inputs_dir,omitempty"`
	Memory          Memory        `yaml:"memory,omitempty"`
	Exports         Exports       `yaml:"exports,omitempty"`
	Log             Log           `yaml:"log,omitempty"`
}

// Memory sizes the shared arena in 64KiB pages.
type Memory struct {
	InitialPages uint32 `yaml:"initial_pages,omitempty"`
	MaxPages     uint32 `yaml:"max_pages,omitempty"`
	LimitPages   uint32 `yaml:"limit_pages,omitempty"`
}

// Exports overrides the export names the host binds to.
type Exports struct {
	Run           string `yaml:"run,omitempty"`
	Input         string `yaml:"input,omitempty"`
	OutputA       string `yaml:"output_a,omitempty"`
	OutputB       string `yaml:"output_b,omitempty"`
	StackPointer  string `yaml:"stack_pointer,omitempty"`
	TLSSize       string `yaml:"tls_size,omitempty"`
	TLSAlign      string `yaml:"tls_align,omitempty"`
	TLSBase       string `yaml:"tls_base,omitempty"`
	InitTLS       string `yaml:"init_tls,omitempty"`
	HeapBase      string `yaml:"heap_base,omitempty"`
	AllocateStack string `yaml:"allocate_stack,omitempty"`
	WorkerEntry   string `yaml:"worker_entry,omitempty"`
}

// Log configures the zap logger.
type Log struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level       string `yaml:"level,omitempty"`
	Development bool   `yaml:"development,omitempty"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "read "+path)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Parse decodes a configuration document. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "parse configuration")
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks the values engine.Config cannot check itself.
func (f *File) Validate() error {
	if f.StopTimeout < 0 {
		return invalid("stop_timeout", fmt.Sprintf("must not be negative, got %s", f.StopTimeout))
	}
	if f.ModuleCacheSize < 0 {
		return invalid("module_cache_size", fmt.Sprintf("must not be negative, got %d", f.ModuleCacheSize))
	}
	if _, err := f.Log.level(); err != nil {
		return invalid("log.level", err.Error())
	}
	return f.Engine().Validate()
}

func invalid(field, detail string) error {
	return errors.InvalidData(errors.PhaseConfig, []string{field}, detail)
}

// Engine maps the file onto an engine configuration. Unset fields stay zero
// and take the engine defaults.
func (f *File) Engine() engine.Config {
	return engine.Config{
		Workers:          f.Workers,
		BufferCapacity:   f.BufferCapacity,
		InitialPages:     f.Memory.InitialPages,
		MaxPages:         f.Memory.MaxPages,
		MemoryLimitPages: f.Memory.LimitPages,
		StopTimeout:      f.StopTimeout,
		ModuleCacheSize:  f.ModuleCacheSize,
		Exports: engine.Exports{
			Run:           f.Exports.Run,
			Input:         f.Exports.Input,
			OutputA:       f.Exports.OutputA,
			OutputB:       f.Exports.OutputB,
			StackPointer:  f.Exports.StackPointer,
			TLSSize:       f.Exports.TLSSize,
			TLSAlign:      f.Exports.TLSAlign,
			TLSBase:       f.Exports.TLSBase,
			InitTLS:       f.Exports.InitTLS,
			HeapBase:      f.Exports.HeapBase,
			AllocateStack: f.Exports.AllocateStack,
			WorkerEntry:   f.Exports.WorkerEntry,
		},
	}
}

// Inputs returns the inputs directory.
func (f *File) Inputs() string {
	if f.InputsDir == "" {
		return DefaultInputsDir
	}
	return f.InputsDir
}

func (l Log) level() (zapcore.Level, error) {
	if l.Level == "" {
		return zapcore.InfoLevel, nil
	}
	return zapcore.ParseLevel(l.Level)
}

// Logger builds the logger described by the log section.
func (f *File) Logger() (*zap.Logger, error) {
	lvl, err := f.Log.level()
	if err != nil {
		return nil, invalid("log.level", err.Error())
	}
	cfg := zap.NewProductionConfig()
	if f.Log.Development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
