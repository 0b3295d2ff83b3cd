package engine

import (
	"testing"

	"github.com/wippyai/puzzle-host/errors"
	"github.com/wippyai/puzzle-host/internal/fixture"
	"github.com/wippyai/puzzle-host/wasm"
)

func parse(t *testing.T, data []byte) *wasm.Module {
	t.Helper()
	m, err := wasm.ParseModule(data)
	if err != nil {
		t.Fatalf("ParseModule: %v", err)
	}
	return m
}

func TestClassify(t *testing.T) {
	four := uint64(4)
	tests := []struct {
		name    string
		data    []byte
		want    Policy
		wantErr bool
	}{
		{name: "no imports", data: fixture.SingleThreaded(fixture.Options{}), want: SingleThreaded},
		{name: "shared memory", data: fixture.MultiThreaded(fixture.Options{}), want: MultiThreaded},
		{name: "function import", data: fixture.WithImports(fixture.FuncImport("wasi_snapshot_preview1", "fd_write")), wantErr: true},
		{name: "private memory import", data: fixture.WithImports(fixture.MemoryImport("env", "memory", 1, &four, false)), wantErr: true},
		{name: "unbounded memory import", data: fixture.WithImports(fixture.MemoryImport("env", "memory", 1, nil, false)), wantErr: true},
		{
			name: "shared memory and function",
			data: fixture.WithImports(
				fixture.MemoryImport("env", "memory", 1, &four, true),
				fixture.FuncImport("env", "log"),
			),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(parse(t, tt.data))
			if tt.wantErr {
				if !errors.IsKind(err, errors.KindUnsupportedModule) {
					t.Fatalf("expected unsupported_module, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Classify = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassifyNamesImports(t *testing.T) {
	_, err := Classify(parse(t, fixture.WithImports(fixture.FuncImport("wasi_snapshot_preview1", "fd_write"))))
	e, ok := errors.As(err, errors.KindUnsupportedModule)
	if !ok {
		t.Fatalf("expected unsupported_module, got %v", err)
	}
	if e.Detail != "unexpected imports: wasi_snapshot_preview1.fd_write (func)" {
		t.Errorf("detail = %q", e.Detail)
	}
}

func TestPolicyString(t *testing.T) {
	if SingleThreaded.String() != "single-threaded" || MultiThreaded.String() != "multi-threaded" {
		t.Error("unexpected policy names")
	}
	if Policy(9).String() != "policy(9)" {
		t.Errorf("unknown policy = %q", Policy(9).String())
	}
}
