// Package errors provides structured error types for web-shell.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the field path, the shape or type involved, the offending
// value and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindInvalidEnum).
//		Path("subscription", "tag").
//		Type("eventtype").
//		Value(7).
//		Detail("unknown subscription tag").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.MemoryFault(errors.PhaseDecode, ptr, 8, memSize)
//	err := errors.NotFound(errors.PhaseResolve, "preopen", path)
//
// All errors implement the standard error interface and support errors.Is/As.
// The syscall layer maps the data kinds (out_of_bounds, invalid_*, overflow)
// to EINVAL and not_found to ENOENT.
package errors
