package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase is the layer an error was raised in.
type Phase string

const (
	PhaseEncode  Phase = "encode"  // host value into guest memory
	PhaseDecode  Phase = "decode"  // guest memory into a host value
	PhaseResolve Phase = "resolve" // path and preopen lookup
	PhaseRuntime Phase = "runtime" // guest execution
	PhaseLoad    Phase = "load"    // compiling and validating a module
	PhaseHost    Phase = "host"    // building the host module
	PhaseVFS     Phase = "vfs"     // backing store calls
)

// Kind says what went wrong.
type Kind string

const (
	KindOutOfBounds    Kind = "out_of_bounds"
	KindInvalidData    Kind = "invalid_data"
	KindInvalidInput   Kind = "invalid_input"
	KindInvalidEnum    Kind = "invalid_enum"
	KindOverflow       Kind = "overflow"
	KindUnsupported    Kind = "unsupported"
	KindNotFound       Kind = "not_found"
	KindNotInitialized Kind = "not_initialized"
	KindRegistration   Kind = "registration"
	KindInstantiation  Kind = "instantiation"
	KindTrap           Kind = "trap"
)

// Error is the structured error shared by the host packages. Path names
// the record field involved, Type the record or shape.
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Type   string
	Detail string
	Path   []string
}

// Error formats as "phase kind at a.b (type): detail: cause", leaving out
// the parts that are empty.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Phase))
	b.WriteByte(' ')
	b.WriteString(string(e.Kind))
	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}
	if e.Type != "" {
		b.WriteString(" (")
		b.WriteString(e.Type)
		b.WriteByte(')')
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error with the same phase and kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Phase == t.Phase && e.Kind == t.Kind
}

// IsKind reports whether err wraps an *Error of one of kinds.
func IsKind(err error, kinds ...Kind) bool {
	var e *Error
	if !stderrors.As(err, &e) {
		return false
	}
	for _, k := range kinds {
		if e.Kind == k {
			return true
		}
	}
	return false
}

// Builder assembles an Error field by field.
type Builder struct {
	err Error
}

// New starts a Builder.
func New(phase Phase, kind Kind) *Builder {
	return &Builder{err: Error{Phase: phase, Kind: kind}}
}

func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

func (b *Builder) Type(t string) *Builder {
	b.err.Type = t
	return b
}

func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the message, formatting it when args are given.
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	b.err.Detail = msg
	return b
}

func (b *Builder) Build() *Error {
	e := b.err
	return &e
}

// MemoryFault reports an access of length bytes at offset into a guest
// memory of size bytes.
func MemoryFault(phase Phase, offset uint32, length, size uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Value:  offset,
		Detail: fmt.Sprintf("access [%d, %d) exceeds memory size %d", offset, uint64(offset)+length, size),
	}
}

// Wrap attaches a phase and kind to cause.
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{Phase: phase, Kind: kind, Detail: detail, Cause: cause}
}

// NotFound reports a missing what called name.
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Value:  name,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

func InvalidInput(phase Phase, detail string) *Error {
	return &Error{Phase: phase, Kind: KindInvalidInput, Detail: detail}
}

// Registration reports a host function module.name that could not be
// exported.
func Registration(phase Phase, module, name string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindRegistration,
		Detail: "register " + module + "." + name,
		Cause:  cause,
	}
}

func Instantiation(cause error) *Error {
	return &Error{Phase: PhaseRuntime, Kind: KindInstantiation, Detail: "instantiate module", Cause: cause}
}

// Load reports a module that failed to compile or validate.
func Load(detail string, cause error) *Error {
	return &Error{Phase: PhaseLoad, Kind: KindInvalidData, Detail: detail, Cause: cause}
}

// Trap reports a guest that stopped with a runtime trap rather than an
// exit.
func Trap(function string, cause error) *Error {
	return &Error{Phase: PhaseRuntime, Kind: KindTrap, Detail: "trap in " + function, Cause: cause}
}
