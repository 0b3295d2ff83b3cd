package wasm

import "github.com/wippyai/puzzle-host/wasm/internal/binary"

// Code assembles a function body instruction by instruction. Every method
// returns the receiver so that bodies read like the text format:
//
//	body := wasm.NewCode().LocalGet(0).LocalGet(1).Op(wasm.OpI32Add).End()
type Code struct {
	w     *binary.Writer
	depth int
}

// NewCode creates an empty instruction sequence.
func NewCode() *Code {
	return &Code{w: binary.NewWriter()}
}

// Bytes returns the encoded instructions.
func (c *Code) Bytes() []byte {
	return c.w.Bytes()
}

// Depth returns the number of currently open blocks.
func (c *Code) Depth() int {
	return c.depth
}

// Op emits an instruction without immediates.
func (c *Code) Op(ops ...byte) *Code {
	for _, op := range ops {
		c.w.Byte(op)
	}
	return c
}

// I32Const emits i32.const.
func (c *Code) I32Const(v int32) *Code {
	c.w.Byte(OpI32Const)
	c.w.WriteS32(v)
	return c
}

// I64Const emits i64.const.
func (c *Code) I64Const(v int64) *Code {
	c.w.Byte(OpI64Const)
	c.w.WriteS64(v)
	return c
}

func (c *Code) indexed(op byte, idx uint32) *Code {
	c.w.Byte(op)
	c.w.WriteU32(idx)
	return c
}

// LocalGet emits local.get.
func (c *Code) LocalGet(idx uint32) *Code { return c.indexed(OpLocalGet, idx) }

// LocalSet emits local.set.
func (c *Code) LocalSet(idx uint32) *Code { return c.indexed(OpLocalSet, idx) }

// LocalTee emits local.tee.
func (c *Code) LocalTee(idx uint32) *Code { return c.indexed(OpLocalTee, idx) }

// GlobalGet emits global.get.
func (c *Code) GlobalGet(idx uint32) *Code { return c.indexed(OpGlobalGet, idx) }

// GlobalSet emits global.set.
func (c *Code) GlobalSet(idx uint32) *Code { return c.indexed(OpGlobalSet, idx) }

// Call emits call.
func (c *Code) Call(funcIdx uint32) *Code { return c.indexed(OpCall, funcIdx) }

// Br emits br to the given relative label depth.
func (c *Code) Br(label uint32) *Code { return c.indexed(OpBr, label) }

// BrIf emits br_if to the given relative label depth.
func (c *Code) BrIf(label uint32) *Code { return c.indexed(OpBrIf, label) }

func (c *Code) open(op byte) *Code {
	c.w.Byte(op)
	c.w.Byte(BlockTypeVoid)
	c.depth++
	return c
}

// Block opens a block with no results.
func (c *Code) Block() *Code { return c.open(OpBlock) }

// Loop opens a loop with no results.
func (c *Code) Loop() *Code { return c.open(OpLoop) }

// If opens an if with no results.
func (c *Code) If() *Code { return c.open(OpIf) }

// Else switches to the else arm of the innermost if.
func (c *Code) Else() *Code { return c.Op(OpElse) }

// End closes the innermost block, or the function body when no block is open.
func (c *Code) End() *Code {
	c.w.Byte(OpEnd)
	if c.depth > 0 {
		c.depth--
	}
	return c
}

func (c *Code) memarg(alignLog2, offset uint32) {
	c.w.WriteU32(alignLog2)
	c.w.WriteU32(offset)
}

// I32Load emits i32.load with natural alignment.
func (c *Code) I32Load(offset uint32) *Code {
	c.w.Byte(OpI32Load)
	c.memarg(2, offset)
	return c
}

// I32Store emits i32.store with natural alignment.
func (c *Code) I32Store(offset uint32) *Code {
	c.w.Byte(OpI32Store)
	c.memarg(2, offset)
	return c
}

// I32Load8U emits i32.load8_u.
func (c *Code) I32Load8U(offset uint32) *Code {
	c.w.Byte(OpI32Load8U)
	c.memarg(0, offset)
	return c
}

// I32Store8 emits i32.store8.
func (c *Code) I32Store8(offset uint32) *Code {
	c.w.Byte(OpI32Store8)
	c.memarg(0, offset)
	return c
}

// Atomic emits a 32-bit atomic instruction from the 0xFE family.
func (c *Code) Atomic(sub uint32, offset uint32) *Code {
	c.w.Byte(OpPrefixAtomic)
	c.w.WriteU32(sub)
	if sub == AtomicFence {
		c.w.Byte(0)
		return c
	}
	c.memarg(2, offset)
	return c
}

// MemoryCopy emits memory.copy within memory 0.
func (c *Code) MemoryCopy() *Code {
	c.w.Byte(OpPrefixMisc)
	c.w.WriteU32(MiscMemoryCopy)
	c.w.Byte(0)
	c.w.Byte(0)
	return c
}

// MemoryFill emits memory.fill within memory 0.
func (c *Code) MemoryFill() *Code {
	c.w.Byte(OpPrefixMisc)
	c.w.WriteU32(MiscMemoryFill)
	c.w.Byte(0)
	return c
}

// StoreString emits byte stores writing s followed by a NUL at the address
// held in local addr.
func (c *Code) StoreString(addr uint32, s string) *Code {
	for i := 0; i < len(s); i++ {
		c.LocalGet(addr).I32Const(int32(s[i])).I32Store8(uint32(i))
	}
	return c.LocalGet(addr).I32Const(0).I32Store8(uint32(len(s)))
}
