package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"

	"github.com/wippyai/puzzle-host/errors"
	"github.com/wippyai/puzzle-host/wasm"
)

// ThreadABI is the per-thread memory geometry a multi-threaded module
// declares through exported globals.
type ThreadABI struct {
	// StackSize is the initial value of the stack pointer, which is the size
	// of the stack the linker reserved for the first thread.
	StackSize uint32
	TLSSize   uint32
	TLSAlign  uint32

	// HeapBase is the end of the module's static data, 0 when not exported.
	HeapBase uint32

	// InitTLS reports whether TLS is initialized by calling a function
	// rather than by setting the TLS base global.
	InitTLS bool
}

// Module is a decoded, classified module. It is immutable and may back any
// number of instances.
type Module struct {
	decoded *wasm.Module
	exports Exports
	name    string
	digest  string
	bytes   []byte
	memory  wasm.Import
	abi     ThreadABI
	policy  Policy
}

var (
	runType = wasm.FuncType{
		Params:  []wasm.ValType{wasm.ValI32, wasm.ValI32, wasm.ValI32, wasm.ValI32, wasm.ValI32},
		Results: []wasm.ValType{wasm.ValI32},
	}
	allocateType = wasm.FuncType{
		Params:  []wasm.ValType{wasm.ValI32, wasm.ValI32},
		Results: []wasm.ValType{wasm.ValI32},
	}
	workerType  = wasm.FuncType{}
	initTLSType = wasm.FuncType{Params: []wasm.ValType{wasm.ValI32}}
)

// LoadModule decodes and classifies a module and checks that it exports
// everything its policy needs. The data slice is retained.
func LoadModule(name string, data []byte, exports Exports) (*Module, error) {
	exports = exports.withDefaults()

	decoded, err := wasm.ParseModule(data)
	if err != nil {
		return nil, errors.Load("decode module "+name, err)
	}

	policy, err := Classify(decoded)
	if err != nil {
		return nil, err
	}

	m := &Module{
		decoded: decoded,
		exports: exports,
		name:    name,
		digest:  Digest(data),
		bytes:   data,
		policy:  policy,
	}

	if err := m.validate(); err != nil {
		return nil, err
	}
	if policy == MultiThreaded {
		m.memory, _ = SharedMemoryImport(decoded)
		if m.abi, err = readThreadABI(decoded, exports); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// validate checks presence and shape of every export the policy binds to.
func (m *Module) validate() error {
	var missing []string
	var mismatch error

	checkFunc := func(name string, want wasm.FuncType) {
		got, ok := m.decoded.ExportedFunc(name)
		if !ok {
			missing = append(missing, name)
			return
		}
		if mismatch == nil && !got.Equal(want) {
			mismatch = errors.New(errors.PhaseLoad, errors.KindInvalidData).
				Export(name).
				Detail("signature %s, want %s", signature(got), signature(want)).
				Build()
		}
	}
	checkGlobal := func(name string, mutable bool) {
		gt, ok := m.decoded.ExportedGlobal(name)
		if !ok {
			missing = append(missing, name)
			return
		}
		if mismatch == nil && (gt.ValType != wasm.ValI32 || (mutable && !gt.Mutable)) {
			want := "i32"
			if mutable {
				want = "mutable i32"
			}
			mismatch = errors.New(errors.PhaseLoad, errors.KindInvalidData).
				Export(name).
				Detail("global must be %s", want).
				Build()
		}
	}

	ex := m.exports
	checkFunc(ex.Run, runType)
	checkGlobal(ex.Input, false)
	checkGlobal(ex.OutputA, false)
	checkGlobal(ex.OutputB, false)

	if m.policy == MultiThreaded {
		checkFunc(ex.AllocateStack, allocateType)
		checkFunc(ex.WorkerEntry, workerType)
		checkGlobal(ex.StackPointer, true)
		checkGlobal(ex.TLSSize, false)
		checkGlobal(ex.TLSAlign, false)
		if _, ok := m.decoded.ExportedFunc(ex.InitTLS); ok {
			checkFunc(ex.InitTLS, initTLSType)
		} else {
			checkGlobal(ex.TLSBase, true)
		}
	}

	if len(missing) > 0 {
		slices.Sort(missing)
		return errors.NewMissingExportsError(missing)
	}
	return mismatch
}

func readThreadABI(m *wasm.Module, ex Exports) (ThreadABI, error) {
	var abi ThreadABI
	read := func(name string, dst *uint32) error {
		v, err := m.ExportedGlobalI32(name)
		if err != nil {
			return errors.New(errors.PhaseLoad, errors.KindInvalidData).
				Export(name).
				Detail("initial value unavailable").
				Cause(err).
				Build()
		}
		*dst = v
		return nil
	}
	if err := read(ex.StackPointer, &abi.StackSize); err != nil {
		return abi, err
	}
	if err := read(ex.TLSSize, &abi.TLSSize); err != nil {
		return abi, err
	}
	if err := read(ex.TLSAlign, &abi.TLSAlign); err != nil {
		return abi, err
	}
	if _, ok := m.Export(ex.HeapBase); ok {
		if err := read(ex.HeapBase, &abi.HeapBase); err != nil {
			return abi, err
		}
	}
	_, abi.InitTLS = m.ExportedFunc(ex.InitTLS)
	return abi, nil
}

func signature(ft wasm.FuncType) string {
	return fmt.Sprintf("%v -> %v", ft.Params, ft.Results)
}

// Name returns the name the module was loaded under.
func (m *Module) Name() string { return m.name }

// Digest returns the hex SHA-256 of the module bytes.
func (m *Module) Digest() string { return m.digest }

// Digest returns the hex SHA-256 of data, the key modules are cached by.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Policy returns the cached execution policy.
func (m *Module) Policy() Policy { return m.policy }

// ABI returns the thread geometry of a multi-threaded module.
func (m *Module) ABI() ThreadABI { return m.abi }

// Exports returns the export names the module was validated against.
func (m *Module) Exports() Exports { return m.exports }

// Bytes returns the module binary.
func (m *Module) Bytes() []byte { return m.bytes }

// Decoded returns the decoded module structure. Callers must not modify it.
func (m *Module) Decoded() *wasm.Module { return m.decoded }

// MemoryImport returns the shared memory import of a multi-threaded module.
func (m *Module) MemoryImport() (wasm.Import, bool) {
	return m.memory, m.policy == MultiThreaded
}
