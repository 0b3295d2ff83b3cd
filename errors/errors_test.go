package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseLoad,
				Kind:   KindMissingExport,
				Path:   []string{"globals", "tls"},
				Export: "__tls_size",
				Detail: "not a global",
			},
			contains: []string{"[load]", "missing_export", "globals.tls", "export __tls_size", " - not a global"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseDecode,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[decode]", "out_of_bounds"},
		},
		{
			name: "fatal with location and cause",
			err: &Error{
				Phase:    PhaseRuntime,
				Kind:     KindFatal,
				Detail:   "index out of bounds",
				Location: "src/day01.rs:12:5",
				Cause:    errors.New("wasm error: unreachable"),
			},
			contains: []string{"[runtime]", "fatal", "index out of bounds", "(at src/day01.rs:12:5)", "caused by", "unreachable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	err := Fatal("timeout", "", context.DeadlineExceeded)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("errors.Is should find the cause")
	}
}

func TestError_Is(t *testing.T) {
	err := Overflow("INPUT", 10, 10)
	if !errors.Is(err, &Error{Phase: PhaseEncode, Kind: KindOverflow}) {
		t.Error("expected match on phase and kind")
	}
	if errors.Is(err, &Error{Phase: PhaseRuntime, Kind: KindOverflow}) {
		t.Error("different phase must not match")
	}
	if errors.Is(err, &Error{Phase: PhaseEncode, Kind: KindFatal}) {
		t.Error("different kind must not match")
	}
}

func TestError_Message(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{Reported("unsupported puzzle"), "unsupported puzzle"},
		{Wrap(PhaseRuntime, KindFatal, errors.New("trap"), ""), "trap"},
		{&Error{Phase: PhaseRuntime, Kind: KindBusy}, "busy"},
	}
	for _, tt := range tests {
		if got := tt.err.Message(); got != tt.want {
			t.Errorf("Message() = %q, want %q", got, tt.want)
		}
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("boom")
	err := New(PhaseInstantiate, KindInstantiation).
		Path("worker", "3").
		Export("worker_thread").
		Location("lib.rs:1").
		Value(3).
		Detail("worker %d failed", 3).
		Cause(cause).
		Build()

	if err.Phase != PhaseInstantiate || err.Kind != KindInstantiation {
		t.Errorf("unexpected phase/kind: %s/%s", err.Phase, err.Kind)
	}
	if strings.Join(err.Path, ".") != "worker.3" {
		t.Errorf("unexpected path: %v", err.Path)
	}
	if err.Export != "worker_thread" || err.Location != "lib.rs:1" || err.Value != 3 {
		t.Errorf("unexpected fields: %+v", err)
	}
	if err.Detail != "worker 3 failed" {
		t.Errorf("unexpected detail: %q", err.Detail)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not wrapped")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		err   *Error
		name  string
		phase Phase
		kind  Kind
	}{
		{InvalidUTF8(PhaseDecode, nil, []byte{0xff}), "InvalidUTF8", PhaseDecode, KindInvalidUTF8},
		{Unsupported(PhaseLoad, "memory64"), "Unsupported", PhaseLoad, KindUnsupported},
		{OutOfBounds(PhaseRuntime, []string{"PART1"}, 10, 20, 16), "OutOfBounds", PhaseRuntime, KindOutOfBounds},
		{InvalidData(PhaseDecode, nil, "bad"), "InvalidData", PhaseDecode, KindInvalidData},
		{NotFound(PhaseLoad, "export", "run"), "NotFound", PhaseLoad, KindNotFound},
		{InvalidInput(PhaseEncode, "nul byte"), "InvalidInput", PhaseEncode, KindInvalidInput},
		{Load("parse", nil), "Load", PhaseLoad, KindInvalidData},
		{Instantiation("main", nil), "Instantiation", PhaseInstantiate, KindInstantiation},
		{UnsupportedModule("2 imports"), "UnsupportedModule", PhaseLoad, KindUnsupportedModule},
		{Capacity("need %d bytes", 10), "Capacity", PhaseLayout, KindCapacity},
		{Overflow("INPUT", 5, 4), "Overflow", PhaseEncode, KindOverflow},
		{Reported("bad input"), "Reported", PhaseRuntime, KindReported},
		{Fatal("trap", "", nil), "Fatal", PhaseRuntime, KindFatal},
		{Busy("submit"), "Busy", PhaseRuntime, KindBusy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Phase != tt.phase {
				t.Errorf("phase = %s, want %s", tt.err.Phase, tt.phase)
			}
			if tt.err.Kind != tt.kind {
				t.Errorf("kind = %s, want %s", tt.err.Kind, tt.kind)
			}
			if tt.err.Error() == "" {
				t.Error("empty error message")
			}
		})
	}

	if got := Capacity("need %d bytes", 10).Detail; got != "need 10 bytes" {
		t.Errorf("Capacity detail = %q", got)
	}
	if got := OutOfBounds(PhaseRuntime, nil, 10, 20, 16).Detail; got != "range [10, 30) exceeds memory size 16" {
		t.Errorf("OutOfBounds detail = %q", got)
	}
}

func TestIsKindAndAs(t *testing.T) {
	inner := Capacity("too many workers")
	outer := Wrap(PhaseInstantiate, KindInstantiation, inner, "create instance")
	wrapped := fmt.Errorf("supervisor: %w", outer)

	if !IsKind(wrapped, KindCapacity) {
		t.Error("IsKind should find the nested capacity error")
	}
	if !IsKind(wrapped, KindInstantiation) {
		t.Error("IsKind should find the outer error")
	}
	if IsKind(wrapped, KindFatal) {
		t.Error("IsKind should not report an absent kind")
	}
	if IsKind(errors.New("plain"), KindFatal) || IsKind(nil, KindFatal) {
		t.Error("IsKind on non-structured errors must be false")
	}

	got, ok := As(wrapped, KindCapacity)
	if !ok || got != inner {
		t.Errorf("As returned %v, %v", got, ok)
	}
	if _, ok := As(wrapped, KindReported); ok {
		t.Error("As should not find an absent kind")
	}
}

func TestAsFatal(t *testing.T) {
	fatal := Fatal("worker panicked", "src/worker.rs:42:9", errors.New("unreachable"))
	joined := fmt.Errorf("%w: %w", context.DeadlineExceeded, fatal)

	got, ok := AsFatal(joined)
	if !ok || got != fatal {
		t.Fatalf("AsFatal = %v, %v", got, ok)
	}
	if got.Location != "src/worker.rs:42:9" {
		t.Errorf("Location = %q", got.Location)
	}
	if _, ok := AsFatal(Reported("bad input")); ok {
		t.Error("reported errors are not fatal")
	}
}

func TestMissingExportsError(t *testing.T) {
	err := NewMissingExportsError([]string{"allocate_stack", "worker_thread"})
	msg := err.Error()
	for _, s := range []string{"missing_export", "2 required export(s)", "- allocate_stack", "- worker_thread"} {
		if !strings.Contains(msg, s) {
			t.Errorf("message %q does not contain %q", msg, s)
		}
	}
	if !errors.Is(err, &MissingExportsError{}) {
		t.Error("errors.Is should match the type")
	}
	if !errors.Is(fmt.Errorf("load: %w", err), &Error{Phase: PhaseLoad, Kind: KindMissingExport}) {
		t.Error("errors.Is should match the structured kind")
	}
	if got := NewMissingExportsError(nil).Error(); !strings.Contains(got, "no exports specified") {
		t.Errorf("empty message = %q", got)
	}
}

func TestDemangle(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"run_puzzle", "run_puzzle"},
		{"_ZN8year20245day015Day016part0117h0123456789abcdefE", "year2024::day01::Day01::part01"},
		{"_ZN3std9panicking20rust_panic_with_hook17h9a8b7c6d5e4f3a2bE", "std::panicking::rust_panic_with_hook"},
		{"_ZN", "_ZN"},
		{"_ZN99shortE", "_ZN99shortE"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Demangle(tt.input); got != tt.expected {
				t.Errorf("Demangle(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
