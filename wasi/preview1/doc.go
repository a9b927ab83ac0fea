// Package preview1 implements the wasi_snapshot_preview1 host functions over
// capability-scoped vfs stores.
//
// A guest sees only the directories it is given as preopens. Paths are
// resolved below a preopen and may not climb out of it; there is no access
// to the host filesystem namespace.
//
// # Quick Start
//
//	host, err := preview1.New().
//	    WithArgs("prog", "--verbose").
//	    WithEnv(map[string]string{"HOME": "/workspace"}).
//	    WithPreopen("/workspace", memfs.New("workspace")).
//	    WithStdout(os.Stdout).
//	    Build(ctx)
//	if err != nil {
//	    return err
//	}
//	defer host.Close(ctx)
//
//	_, err = host.Instantiate(ctx, runtime)
//
// # Descriptors
//
// Descriptors 0 to 2 are stdin, stdout and stderr. Preopens take the
// following descriptors in the order they were added, and every opened file
// or directory gets a fresh, never reused descriptor after them.
//
// Files buffer writes in a write session that is committed on fd_sync,
// fd_datasync, fd_close or before the next read of the same descriptor.
//
// # Errors
//
// Handlers fail with *Error for conditions the guest is expected to handle.
// Store failures are mapped by their vfs.Category and guest memory faults
// become EINVAL. Any other failure traps the guest.
//
// # Unsupported Calls
//
// Renaming, links and symlinks, descriptor flags, timestamps, positional
// I/O and sockets answer ENOSYS. poll_oneoff waits on clock subscriptions
// only.
package preview1
