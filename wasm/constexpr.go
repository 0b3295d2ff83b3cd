package wasm

import (
	"errors"
	"fmt"

	"github.com/wippyai/puzzle-host/wasm/internal/binary"
)

// ErrNotConstant is returned when a global's value depends on an import.
var ErrNotConstant = errors.New("value depends on an imported global")

// EvalI32 evaluates an i32 constant expression. Module globals referenced via
// global.get are evaluated recursively; imported globals are not known
// before instantiation and yield ErrNotConstant.
func (m *Module) EvalI32(expr []byte) (int32, error) {
	return m.evalI32(expr, 0)
}

func (m *Module) evalI32(expr []byte, depth int) (int32, error) {
	if depth > len(m.Globals) {
		return 0, errors.New("cyclic global initializer")
	}
	r := binary.NewReader(expr)
	var stack []int32
	pop2 := func() (int32, int32, error) {
		if len(stack) < 2 {
			return 0, 0, errors.New("stack underflow")
		}
		a, b := stack[len(stack)-2], stack[len(stack)-1]
		stack = stack[:len(stack)-2]
		return a, b, nil
	}

	for {
		op, err := r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("unterminated constant expression: %w", err)
		}
		switch op {
		case OpEnd:
			if len(stack) != 1 {
				return 0, fmt.Errorf("constant expression leaves %d values", len(stack))
			}
			return stack[0], nil
		case OpI32Const:
			v, err := r.ReadS32()
			if err != nil {
				return 0, err
			}
			stack = append(stack, v)
		case OpGlobalGet:
			idx, err := r.ReadU32()
			if err != nil {
				return 0, err
			}
			v, err := m.globalI32(idx, depth+1)
			if err != nil {
				return 0, err
			}
			stack = append(stack, v)
		case OpI32Add, OpI32Sub, OpI32Mul:
			a, b, err := pop2()
			if err != nil {
				return 0, err
			}
			switch op {
			case OpI32Add:
				stack = append(stack, a+b)
			case OpI32Sub:
				stack = append(stack, a-b)
			default:
				stack = append(stack, a*b)
			}
		default:
			return 0, fmt.Errorf("opcode 0x%02x is not an i32 constant operation", op)
		}
	}
}

func (m *Module) globalI32(idx uint32, depth int) (int32, error) {
	imported := m.NumImported(KindGlobal)
	if idx < imported {
		return 0, ErrNotConstant
	}
	local := idx - imported
	if int(local) >= len(m.Globals) {
		return 0, fmt.Errorf("global index %d out of range", idx)
	}
	g := m.Globals[local]
	if g.Type.ValType != ValI32 {
		return 0, fmt.Errorf("global %d has type %s, want i32", idx, g.Type.ValType)
	}
	return m.evalI32(g.Init, depth)
}

// ExportedGlobal returns the type of an exported module-defined global.
func (m *Module) ExportedGlobal(name string) (GlobalType, bool) {
	e, ok := m.Export(name)
	if !ok || e.Kind != KindGlobal {
		return GlobalType{}, false
	}
	imported := m.NumImported(KindGlobal)
	if e.Idx < imported {
		var seen uint32
		for _, imp := range m.Imports {
			if imp.Desc.Kind != KindGlobal {
				continue
			}
			if seen == e.Idx {
				return *imp.Desc.Global, true
			}
			seen++
		}
		return GlobalType{}, false
	}
	local := e.Idx - imported
	if int(local) >= len(m.Globals) {
		return GlobalType{}, false
	}
	return m.Globals[local].Type, true
}

// ExportedGlobalI32 returns the initial value of an exported i32 global as
// an unsigned address, as used for stack pointers and TLS metadata.
func (m *Module) ExportedGlobalI32(name string) (uint32, error) {
	e, ok := m.Export(name)
	if !ok {
		return 0, fmt.Errorf("export %q not found", name)
	}
	if e.Kind != KindGlobal {
		return 0, fmt.Errorf("export %q is not a global", name)
	}
	v, err := m.globalI32(e.Idx, 0)
	if err != nil {
		return 0, fmt.Errorf("global %q: %w", name, err)
	}
	return uint32(v), nil
}
