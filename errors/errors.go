package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLoad        Phase = "load"        // module decoding and classification
	PhaseDecode      Phase = "decode"      // catalog and custom section decoding
	PhaseLayout      Phase = "layout"      // stack and TLS region planning
	PhaseInstantiate Phase = "instantiate" // arena, main and worker instantiation
	PhaseEncode      Phase = "encode"      // request written into the input region
	PhaseRuntime     Phase = "runtime"     // entry point invocation
	PhaseConfig      Phase = "config"      // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidData       Kind = "invalid_data"
	KindUnsupported       Kind = "unsupported"
	KindUnsupportedModule Kind = "unsupported_module"
	KindMissingExport     Kind = "missing_export"
	KindCapacity          Kind = "capacity"
	KindOutOfBounds       Kind = "out_of_bounds"
	KindOverflow          Kind = "overflow"
	KindInvalidUTF8       Kind = "invalid_utf8"
	KindInvalidInput      Kind = "invalid_input"
	KindNotFound          Kind = "not_found"
	KindInstantiation     Kind = "instantiation"
	KindReported          Kind = "reported"
	KindFatal             Kind = "fatal"
	KindBusy              Kind = "busy"
)

// Error is the structured error type used throughout the host
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Export   string // module export involved, if any
	Location string // source location reported by the module
	Detail   string
	Path     []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Export != "" {
		b.WriteString(": export ")
		b.WriteString(e.Export)
	}

	if e.Detail != "" {
		if e.Export != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Location != "" {
		b.WriteString(" (at ")
		b.WriteString(e.Location)
		b.WriteByte(')')
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Message returns the human-readable part of the error without phase and
// kind decoration.
func (e *Error) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return string(e.Kind)
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Export sets the module export name
func (b *Builder) Export(name string) *Builder {
	b.err.Export = name
	return b
}

// Location sets the module-reported source location
func (b *Builder) Location(loc string) *Builder {
	b.err.Location = loc
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// IsKind reports whether any error in err's chain is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if errors.As(err, &e) {
			if e.Kind == kind {
				return true
			}
			err = e.Cause
			continue
		}
		return false
	}
	return false
}

// As finds the first *Error of the given kind in err's chain.
func As(err error, kind Kind) (*Error, bool) {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return nil, false
		}
		if e.Kind == kind {
			return e, true
		}
		err = e.Cause
	}
	return nil, false
}

// AsFatal finds the first fatal error in err's chain.
func AsFatal(err error) (*Error, bool) {
	return As(err, KindFatal)
}

// Convenience constructors for common error patterns

// InvalidUTF8 creates an invalid UTF-8 error
func InvalidUTF8(phase Phase, path []string, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidUTF8,
		Path:   path,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// OutOfBounds creates an out of bounds error for a memory window
func OutOfBounds(phase Phase, path []string, offset, length uint64, size uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("range [%d, %d) exceeds memory size %d", offset, offset+length, size),
		Value:  offset,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// Instantiation creates an instantiation error
func Instantiation(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseInstantiate,
		Kind:   KindInstantiation,
		Detail: fmt.Sprintf("instantiate %s", what),
		Cause:  cause,
	}
}

// UnsupportedModule reports a module whose imports match neither execution policy
func UnsupportedModule(detail string) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindUnsupportedModule,
		Detail: detail,
	}
}

// Capacity reports that worker regions do not fit in the arena
func Capacity(detail string, args ...any) *Error {
	return &Error{
		Phase:  PhaseLayout,
		Kind:   KindCapacity,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// Overflow reports text that does not fit into a fixed-capacity buffer
func Overflow(region string, length, capacity int) *Error {
	return &Error{
		Phase:  PhaseEncode,
		Kind:   KindOverflow,
		Path:   []string{region},
		Detail: fmt.Sprintf("%d bytes plus terminator exceed buffer capacity %d", length, capacity),
		Value:  length,
	}
}

// Reported carries a failure message written by the module itself
func Reported(message string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindReported,
		Detail: message,
	}
}

// Fatal reports a trap or abort that destroyed the instance
func Fatal(message, location string, cause error) *Error {
	return &Error{
		Phase:    PhaseRuntime,
		Kind:     KindFatal,
		Detail:   message,
		Location: location,
		Cause:    cause,
	}
}

// Busy reports an overlapping call on a single-caller object
func Busy(what string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindBusy,
		Detail: fmt.Sprintf("%s already in progress", what),
	}
}

// MissingExportsError is returned when a module lacks exports the host needs
type MissingExportsError struct {
	Exports []string
}

// NewMissingExportsError creates an error listing the absent exports
func NewMissingExportsError(names []string) *MissingExportsError {
	return &MissingExportsError{Exports: append([]string(nil), names...)}
}

func (e *MissingExportsError) Error() string {
	if len(e.Exports) == 0 {
		return "[load] missing_export: no exports specified"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("[load] missing_export: module lacks %d required export(s):", len(e.Exports)))
	for _, name := range e.Exports {
		b.WriteString("\n  - ")
		b.WriteString(name)
	}
	return b.String()
}

// Is reports whether target matches this error type
func (e *MissingExportsError) Is(target error) bool {
	if _, ok := target.(*MissingExportsError); ok {
		return true
	}
	if t, ok := target.(*Error); ok {
		return t.Phase == PhaseLoad && t.Kind == KindMissingExport
	}
	return false
}

// Demangle attempts to extract a readable path from a mangled Rust symbol,
// as found in wasm stack traces of Rust-built modules.
func Demangle(name string) string {
	if !strings.HasPrefix(name, "_ZN") {
		return name
	}

	// Format: _ZN<len><name><len><name>...E
	s := name[3:]
	var parts []string

	for len(s) > 0 && s[0] != 'E' {
		lenEnd := 0
		for lenEnd < len(s) && s[lenEnd] >= '0' && s[lenEnd] <= '9' {
			lenEnd++
		}
		if lenEnd == 0 {
			break
		}

		length := 0
		for i := 0; i < lenEnd; i++ {
			length = length*10 + int(s[i]-'0')
		}
		s = s[lenEnd:]

		if length > len(s) {
			break
		}

		part := s[:length]
		s = s[length:]

		// 17 char hash suffixes starting with 'h'
		if len(part) == 17 && part[0] == 'h' && isHex(part[1:]) {
			continue
		}
		parts = append(parts, part)
	}

	if len(parts) == 0 {
		return name
	}

	return strings.Join(parts, "::")
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
