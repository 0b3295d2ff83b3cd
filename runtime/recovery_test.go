package runtime

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/tetratelabs/wazero/sys"

	"github.com/wippyai/puzzle-host/errors"
)

func TestTraceLocation(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want string
	}{
		{"no trace", "wasm error: unreachable", ""},
		{
			"mangled frame",
			"wasm error: unreachable\nwasm stack trace:\n\tmain._ZN8year20245day015Day016part0117h0123456789abcdefE(i32) i32\n\tmain.run_puzzle(i32,i32,i32,i32,i32) i32",
			"year2024::day01::Day01::part01",
		},
		{
			"plain frame",
			"wasm error: unreachable\nwasm stack trace:\n\tmain.run_puzzle(i32,i32,i32,i32,i32) i32",
			"run_puzzle",
		},
		{"unnamed frame", "wasm error: unreachable\nwasm stack trace:\n\tmain.$3()", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := traceLocation(stderrors.New(tt.msg)); got != tt.want {
				t.Errorf("traceLocation = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFaultMessage(t *testing.T) {
	worker := errors.New(errors.PhaseRuntime, errors.KindFatal).
		Path("worker", "1").
		Detail("worker stopped unexpectedly").
		Build()
	tests := []struct {
		cause error
		want  string
	}{
		{fmt.Errorf("%w: %w", context.DeadlineExceeded, stderrors.New("closed")), "execution timed out"},
		{context.Canceled, "execution canceled"},
		{worker, "worker stopped unexpectedly"},
		{sys.NewExitError(sys.ExitCodeDeadlineExceeded), "execution timed out"},
		{sys.NewExitError(sys.ExitCodeContextCanceled), "execution canceled"},
		{sys.NewExitError(3), "module exited with code 3"},
		{stderrors.New("wasm error: unreachable\nwasm stack trace:\n\tmain.$0()"), "wasm error: unreachable"},
	}
	for _, tt := range tests {
		if got := faultMessage(tt.cause); got != tt.want {
			t.Errorf("faultMessage(%v) = %q, want %q", tt.cause, got, tt.want)
		}
	}
}
