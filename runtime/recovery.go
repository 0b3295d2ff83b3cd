package runtime

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/wippyai/puzzle-host/engine"
	"github.com/wippyai/puzzle-host/errors"
)

// Diagnostic is what a module wrote to its output buffers before it
// trapped: a message in OUTPUT-A and a source location in OUTPUT-B.
type Diagnostic struct {
	Message  string
	Location string
}

// Salvage reads the diagnostic left in inst's outputs. Read errors and
// panics are logged and swallowed; ok reports whether anything was found.
func Salvage(inst *engine.Instance) (d Diagnostic, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			Logger().Warn("diagnostic salvage panicked",
				zap.String("instance", inst.ID()),
				zap.Any("panic", r))
			ok = d.Message != "" || d.Location != ""
		}
	}()

	mem := inst.Memory()
	regs := inst.Regions()
	var err error
	if d.Message, err = regs.OutputA.ReadText(mem); err != nil {
		Logger().Warn("diagnostic message unreadable", zap.String("instance", inst.ID()), zap.Error(err))
	}
	if d.Location, err = regs.OutputB.ReadText(mem); err != nil {
		Logger().Warn("diagnostic location unreadable", zap.String("instance", inst.ID()), zap.Error(err))
	}
	return d, d.Message != "" || d.Location != ""
}

// recoverFault salvages diagnostics from a faulted instance, stops it and
// returns the fatal error describing the fault.
func (s *Supervisor) recoverFault(ctx context.Context, inst *engine.Instance, cause error) error {
	d, ok := Salvage(inst)

	// ctx may already be expired; teardown still needs its full stop timeout
	s.stopInstance(context.WithoutCancel(ctx), inst)

	msg := d.Message
	if !ok || msg == "" {
		msg = faultMessage(cause)
	}
	loc := d.Location
	if loc == "" {
		loc = traceLocation(cause)
	}
	Logger().Error("instance fault",
		zap.String("instance", inst.ID()),
		zap.String("message", msg),
		zap.String("location", loc),
		zap.Error(cause))
	return errors.Fatal(msg, loc, cause)
}

func faultMessage(cause error) string {
	var exit *sys.ExitError
	switch {
	case stderrors.Is(cause, context.DeadlineExceeded):
		return "execution timed out"
	case stderrors.Is(cause, context.Canceled):
		return "execution canceled"
	case stderrors.As(cause, &exit):
		// wazero closes the module with these codes when the context ends
		switch exit.ExitCode() {
		case sys.ExitCodeDeadlineExceeded:
			return "execution timed out"
		case sys.ExitCodeContextCanceled:
			return "execution canceled"
		}
		return fmt.Sprintf("module exited with code %d", exit.ExitCode())
	}
	if e, ok := errors.AsFatal(cause); ok && e.Detail != "" {
		return e.Detail
	}
	msg := cause.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return msg
}

const traceHeader = "wasm stack trace:"

// traceLocation names the innermost frame of a wasm stack trace found in
// err, demangled. Frames without a symbol name yield "".
func traceLocation(err error) string {
	msg := err.Error()
	i := strings.Index(msg, traceHeader)
	if i < 0 {
		return ""
	}
	for _, line := range strings.Split(msg[i+len(traceHeader):], "\n") {
		frame := strings.TrimSpace(line)
		if frame == "" {
			continue
		}
		if p := strings.IndexByte(frame, '('); p >= 0 {
			frame = frame[:p]
		}
		if d := strings.IndexByte(frame, '.'); d >= 0 {
			frame = frame[d+1:]
		}
		if frame == "" || strings.HasPrefix(frame, "$") {
			return ""
		}
		return errors.Demangle(frame)
	}
	return ""
}
