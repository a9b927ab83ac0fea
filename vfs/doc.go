// Package vfs defines the backing store contract used by the preview1 host
// and the shell.
//
// A store is a tree of Dir and File values with context-aware operations.
// Writes go through a Writer session that only becomes visible on Close,
// and failures carry a Category:
//
//	f, err := dir.File(ctx, "notes.txt", true)
//	w, err := f.OpenWriter(ctx, true)
//	w.WriteAt(ctx, []byte("hi"), 0)
//	err = w.Close(ctx) // commit
//
//	if errors.Is(err, vfs.NotFound) { ... }
//
// Implementations live in memfs (in memory) and osfs (a host directory).
//
// Namespace stitches several stores into one absolute path space with a
// working directory, for host-side tools such as the shell builtins.
package vfs
