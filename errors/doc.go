// Package errors provides structured error types for the puzzle host.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The kinds map onto the host's failure taxonomy:
//
//	unsupported_module  module imports match no execution policy; no instance is created
//	capacity            worker stack and TLS regions do not fit in the arena
//	overflow            text does not fit a fixed-capacity buffer; instance stays usable
//	reported            the module returned failure and wrote a message; instance stays usable
//	fatal               the module trapped; the instance was torn down
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLoad, errors.KindMissingExport).
//		Export("__tls_size").
//		Detail("not a global").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Overflow("INPUT", len(text), capacity)
//	err := errors.Fatal(message, location, cause)
//
// All errors implement the standard error interface and support errors.Is/As.
// errors.Is matches on Phase and Kind; IsKind matches on Kind alone anywhere
// in the cause chain.
package errors
