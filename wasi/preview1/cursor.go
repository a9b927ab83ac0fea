package preview1

import (
	"context"
	stderrors "errors"
	"io"

	"github.com/mizchi/web-shell/vfs"
)

var errRevert = stderrors.New("preview1: cannot revert an entry in the current state")

// EntryCursor walks a directory listing forward, counting the entries it
// has handed out. One entry can be pushed back so that a caller that ran
// out of buffer space can resume from it on the next call without
// restarting the listing.
type EntryCursor struct {
	iter     vfs.EntryIterator
	reverted *vfs.Entry
	skip     uint64
	pos      uint64
}

func newEntryCursor(iter vfs.EntryIterator, start uint64) *EntryCursor {
	return &EntryCursor{iter: iter, skip: start}
}

// Position is the number of entries consumed so far, including skipped
// ones and excluding a pushed back one.
func (c *EntryCursor) Position() uint64 { return c.pos + c.skip }

// Next returns the next entry, or io.EOF after the last one.
func (c *EntryCursor) Next(ctx context.Context) (vfs.Entry, error) {
	for c.skip > 0 {
		if _, err := c.iter.Next(ctx); err != nil {
			if stderrors.Is(err, io.EOF) {
				c.skip = 0
			}
			return vfs.Entry{}, err
		}
		c.skip--
		c.pos++
	}

	if c.reverted != nil {
		e := *c.reverted
		c.reverted = nil
		c.pos++
		return e, nil
	}

	e, err := c.iter.Next(ctx)
	if err != nil {
		return vfs.Entry{}, err
	}
	c.pos++
	return e, nil
}

// Revert pushes e back so the next call to Next returns it again.
func (c *EntryCursor) Revert(e vfs.Entry) error {
	if c.reverted != nil || c.pos == 0 {
		return errRevert
	}
	c.pos--
	c.reverted = &e
	return nil
}

func (c *EntryCursor) close() {
	if c.iter != nil {
		_ = c.iter.Close()
		c.iter = nil
	}
}
