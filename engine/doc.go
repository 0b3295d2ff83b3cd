// Package engine turns puzzle module binaries into running instances on
// wazero.
//
// # Loading
//
// LoadModule decodes a binary, classifies it and checks its exports:
//
//	m, err := eng.Load("aoc.wasm", data)
//	// m.Policy() is SingleThreaded or MultiThreaded
//
// A module without imports is SingleThreaded. A module whose only import is
// a shared memory with a declared maximum is MultiThreaded. Everything else
// fails with an unsupported_module error.
//
// # Instances
//
// NewInstance builds a fresh wazero runtime per instance. For a
// multi-threaded module it:
//
//  1. instantiates a provider module exporting the shared arena under the
//     import's module and field name
//  2. instantiates the main module against it
//  3. plans the worker layout and reserves all worker regions with one call
//     to allocate_stack
//  4. starts one goroutine per worker, hands it a spawn message and waits
//     until every worker has bound its stack pointer and TLS base
//
// Workers then run worker_thread, which must never return. A worker that
// traps or returns cancels the instance context so a blocked main call
// aborts instead of hanging.
//
// # Exchange Buffers
//
// Region.WriteText and Region.ReadText implement the terminator protocol
// used for INPUT, PART1 and PART2: text must be shorter than the capacity so
// that the NUL fits; output is read up to the first NUL or the full
// capacity and always copied out of the arena before decoding.
package engine
