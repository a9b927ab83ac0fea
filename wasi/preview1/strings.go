package preview1

import (
	"slices"

	webshell "github.com/mizchi/web-shell"
)

// stringCollection is a list of strings laid out the way args_get and
// environ_get return them: an array of pointers plus the packed,
// NUL-terminated bytes.
type stringCollection struct {
	buf     []byte
	offsets []uint32
}

func newStringCollection(items []string) *stringCollection {
	c := &stringCollection{offsets: make([]uint32, 0, len(items))}
	for _, s := range items {
		c.offsets = append(c.offsets, uint32(len(c.buf)))
		c.buf = append(c.buf, s...)
		c.buf = append(c.buf, 0)
	}
	return c
}

// envCollection renders env as KEY=VALUE pairs ordered by key.
func envCollection(env map[string]string) *stringCollection {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	items := make([]string, 0, len(keys))
	for _, k := range keys {
		items = append(items, k+"="+env[k])
	}
	return newStringCollection(items)
}

// sizes writes the string count to countPtr and the byte total, including
// terminators, to sizePtr.
func (c *stringCollection) sizes(mem webshell.Memory, countPtr, sizePtr uint32) error {
	if err := mem.WriteU32(countPtr, uint32(len(c.offsets))); err != nil {
		return err
	}
	return mem.WriteU32(sizePtr, uint32(len(c.buf)))
}

// get writes one pointer per string at ptrsPtr and the packed bytes at
// bufPtr.
func (c *stringCollection) get(mem webshell.Memory, ptrsPtr, bufPtr uint32) error {
	for i, off := range c.offsets {
		if err := mem.WriteU32(ptrsPtr+uint32(i)*4, bufPtr+off); err != nil {
			return err
		}
	}
	return mem.Write(bufPtr, c.buf)
}
