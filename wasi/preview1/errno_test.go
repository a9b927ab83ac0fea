package preview1

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/mizchi/web-shell/errors"
	"github.com/mizchi/web-shell/vfs"
)

func TestErrnoString(t *testing.T) {
	if got := ErrnoNotCapable.String(); got != "ENOTCAPABLE" {
		t.Errorf("String() = %q", got)
	}
	if got := Errno(999).String(); got != "errno(999)" {
		t.Errorf("String() = %q", got)
	}
}

func TestTranslateError(t *testing.T) {
	tests := []struct {
		err   error
		name  string
		want  Errno
		quiet bool
		ok    bool
	}{
		{name: "host error", err: fail(ErrnoIsDirectory), want: ErrnoIsDirectory, ok: true},
		{name: "quiet host error", err: failQuiet(ErrnoBadDescriptor), want: ErrnoBadDescriptor, quiet: true, ok: true},
		{name: "wrapped host error", err: fmt.Errorf("open: %w", fail(ErrnoNoEntry)), want: ErrnoNoEntry, ok: true},
		{name: "not found", err: vfs.NewError("file", "x", vfs.NotFound), want: ErrnoNoEntry, ok: true},
		{name: "not allowed", err: vfs.NewError("file", "x", vfs.NotAllowed), want: ErrnoAccessDenied, ok: true},
		{name: "security", err: vfs.NewError("file", "x", vfs.Security), want: ErrnoAccessDenied, ok: true},
		{name: "data clone", err: vfs.NewError("file", "x", vfs.DataClone), want: ErrnoAccessDenied, ok: true},
		{name: "invalid modification", err: vfs.NewError("remove", "x", vfs.InvalidModification), want: ErrnoNotEmpty, ok: true},
		{name: "aborted", err: vfs.WrapError("read", "x", vfs.Aborted, context.Canceled), want: ErrnoCancelled, ok: true},
		{name: "type mismatch", err: vfs.NewError("file", "x", vfs.TypeMismatch), want: ErrnoInvalidArgument, ok: true},
		{name: "invalid argument", err: vfs.NewError("file", `a\b`, vfs.InvalidArgument), want: ErrnoInvalidArgument, ok: true},
		{name: "too large", err: vfs.NewError("write", "x", vfs.TooLarge), want: ErrnoFileTooLarge, ok: true},
		{name: "context canceled", err: context.Canceled, want: ErrnoCancelled, ok: true},
		{name: "deadline", err: context.DeadlineExceeded, want: ErrnoCancelled, ok: true},
		{name: "memory fault", err: errors.MemoryFault(errors.PhaseDecode, 10, 4, 8), want: ErrnoInvalidArgument, ok: true},
		{name: "resolve", err: errors.NotFound(errors.PhaseResolve, "preopen", "/x"), want: ErrnoNoEntry, ok: true},
		{name: "invalid state", err: vfs.NewError("write", "x", vfs.InvalidState)},
		{name: "unrelated", err: io.ErrUnexpectedEOF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, quiet, ok := translateError(tt.err)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if got != tt.want {
				t.Errorf("errno = %v, want %v", got, tt.want)
			}
			if quiet != tt.quiet {
				t.Errorf("quiet = %v, want %v", quiet, tt.quiet)
			}
		})
	}
}
