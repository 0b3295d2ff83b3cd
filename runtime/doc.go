// Package runtime supervises puzzle module instances and carries requests
// and responses across their exchange buffers.
//
// # Supervisor
//
// A Supervisor owns at most one instance of a module at a time:
//
//	Absent -> Starting -> Ready -> Stopping -> Absent
//	                      Ready -> Faulted  -> Absent
//
// The instance is created lazily by the first Submit, reused by every later
// one and rebuilt after a fatal fault. Faulted is reported when a worker
// died while no call was running.
//
// # Protocol
//
// Submit writes the input into the INPUT buffer with a NUL terminator, calls
// the entry point and reads both output buffers. Text reaching the full
// capacity of an output buffer without a terminator is accepted. Outputs are
// always copied out of linear memory before decoding, since another worker
// may still be writing to a shared arena.
//
// # Failures
//
//	KindInvalidInput, KindOverflow  input rejected, instance untouched
//	KindReported                    module returned false, message from OUTPUT-A
//	KindFatal                       trap, timeout or worker fault, instance stopped
//	KindBusy                        overlapping Submit
//
// For fatal errors the message and location are salvaged from OUTPUT-A and
// OUTPUT-B when the module wrote them before trapping, and fall back to the
// trap itself and the innermost named frame of the wasm stack trace.
package runtime
