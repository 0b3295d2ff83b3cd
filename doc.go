// Package puzzlehost runs precompiled WebAssembly puzzle solutions on a
// single thread or on a pool of worker threads sharing one memory arena.
//
// # Architecture Overview
//
//	puzzlehost/          Root package with Memory and Allocator interfaces
//	├── runtime/         Supervisor, request/response protocol, fault recovery
//	├── engine/          Classifier, layout allocator, wazero instances and workers
//	├── catalog/         Puzzle and example metadata from custom sections
//	├── config/          YAML configuration
//	├── wasm/            Core WASM binary decoding and encoding
//	├── errors/          Structured error types
//	└── cmd/run/         Command line and interactive terminal UI
//
// # Quick Start
//
//	rt, err := runtime.New(engine.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer rt.Close(ctx)
//
//	sup, err := rt.OpenFile("aoc.wasm")
//	if err != nil {
//	    return err
//	}
//	defer sup.Stop(ctx)
//
//	res, err := sup.Submit(ctx, runtime.Request{
//	    Category: 2024,
//	    Item:     1,
//	    Input:    input,
//	    Parts:    runtime.BothParts,
//	})
//
// # Execution Policies
//
// A module without imports runs single-threaded against its own memory. A
// module whose only import is a shared memory runs multi-threaded: the host
// provides the memory, instantiates the module once for the coordinating
// goroutine and once per worker, and gives every worker a disjoint stack and
// TLS slice carved out of the arena before any worker starts.
//
// # Failures
//
// A module that returns false has reported an error in its first output
// buffer; the instance stays usable. A trap tears the instance down and the
// next submission builds a fresh one.
package puzzlehost
