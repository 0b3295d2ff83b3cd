package puzzlehost

import "context"

// Memory is a view of a module's linear memory. wazero's api.Memory
// satisfies it; out-of-range accesses report false instead of panicking.
type Memory interface {
	Read(offset, length uint32) ([]byte, bool)
	Write(offset uint32, data []byte) bool
	Size() uint32
}

// Allocator reserves aligned regions inside a module's memory by calling
// back into the module's own allocator.
type Allocator interface {
	AllocateStack(ctx context.Context, size, align uint32) (uint32, error)
}
