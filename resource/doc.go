// Package resource provides integer handle tables.
//
// A Table maps handles to Go values. Handles are assigned monotonically
// from a base and never reused, which is what the descriptor table of the
// preview1 host relies on:
//
//	table := resource.NewTable[Handle](3)
//
//	fd, err := table.Insert(dir)      // 3
//	value, ok := table.Get(fd)
//	table.Move(fd, other)             // renumber
//	value, ok = table.Remove(other)
//
// # Observers
//
// Observers receive Created, Dropped and Moved events:
//
//	table.Subscribe(resource.ObserverFunc(func(e resource.Event) {
//	    log.Printf("handle %d %s", e.Handle, e.Type)
//	}))
//
// # Cleanup
//
// Values implementing Dropper have Drop called when they leave the table
// through Remove, Clear, Close, or by being displaced by Move.
package resource
