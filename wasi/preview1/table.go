package preview1

import (
	"context"

	"go.uber.org/zap"

	"github.com/mizchi/web-shell/resource"
	"github.com/mizchi/web-shell/vfs"
)

// Preopen is a capability root: a store directory exposed to the guest
// under a virtual path.
type Preopen struct {
	Dir  vfs.Dir
	Path string
}

// FileTable maps descriptors to open handles. Preopens take the first
// descriptors, in registration order, and stay open for the table's
// lifetime. Descriptors are never reused.
type FileTable struct {
	handles         *resource.Table[Handle]
	preopens        []*Directory
	firstNonPreopen uint32
}

// NewFileTable registers preopens starting at FirstPreopenFD.
func NewFileTable(preopens []Preopen) (*FileTable, error) {
	t := &FileTable{handles: resource.NewTable[Handle](resource.Handle(FirstPreopenFD))}
	t.handles.Subscribe(resource.ObserverFunc(logTableEvent))

	for _, p := range preopens {
		d := newDirectory(p.Path, p.Dir)
		if _, err := t.handles.Insert(d); err != nil {
			return nil, err
		}
		t.preopens = append(t.preopens, d)
	}
	t.firstNonPreopen = FirstPreopenFD + uint32(len(t.preopens))
	return t, nil
}

func logTableEvent(e resource.Event) {
	h, _ := e.Value.(Handle)
	path := ""
	if h != nil {
		path = h.Path()
	}
	switch e.Type {
	case resource.EventMoved:
		Logger().Debug("descriptor moved",
			zap.Uint32("from", uint32(e.From)),
			zap.Uint32("to", uint32(e.Handle)),
			zap.String("path", path))
	default:
		Logger().Debug("descriptor "+e.Type.String(),
			zap.Uint32("fd", uint32(e.Handle)),
			zap.String("path", path))
	}
}

// Preopens returns the capability roots in registration order.
func (t *FileTable) Preopens() []*Directory {
	return t.preopens
}

// Len is the number of open descriptors, preopens included.
func (t *FileTable) Len() int { return t.handles.Len() }

// Get returns the handle at fd.
func (t *FileTable) Get(fd uint32) (Handle, error) {
	h, ok := t.handles.Get(resource.Handle(fd))
	if !ok {
		return nil, fail(ErrnoBadDescriptor)
	}
	return h, nil
}

// GetPreopen returns the preopen at fd. Guests find their preopens by
// probing upward from FirstPreopenFD until this fails, so an unknown
// descriptor is reported quietly.
func (t *FileTable) GetPreopen(fd uint32) (*Directory, error) {
	h, ok := t.handles.Get(resource.Handle(fd))
	if !ok {
		return nil, failQuiet(ErrnoBadDescriptor)
	}
	if fd < FirstPreopenFD || fd >= t.firstNonPreopen {
		return nil, fail(ErrnoNotCapable)
	}
	return h.(*Directory), nil
}

func (t *FileTable) isPreopen(fd uint32) bool {
	return fd >= FirstPreopenFD && fd < t.firstNonPreopen
}

// Open resolves p below root and registers the result. The new handle's
// path is root's path joined with p.
func (t *FileTable) Open(ctx context.Context, root *Directory, p string, oflags OFlags) (uint32, error) {
	f, d, err := root.GetFileOrDir(ctx, p, WantAny, oflags)
	if err != nil {
		return 0, err
	}

	path := root.Path() + "/" + p
	var h Handle
	if f != nil {
		h = newFile(path, f)
	} else {
		h = newDirectory(path, d)
	}
	fd, err := t.handles.Insert(h)
	if err != nil {
		return 0, err
	}
	return uint32(fd), nil
}

// Close removes fd, committing pending writes of a file.
func (t *FileTable) Close(ctx context.Context, fd uint32) error {
	if t.isPreopen(fd) {
		return fail(ErrnoUnsupported)
	}
	h, ok := t.handles.Remove(resource.Handle(fd))
	if !ok {
		return fail(ErrnoBadDescriptor)
	}
	return h.close(ctx)
}

// Renumber closes to and moves the handle at from into its slot. from is
// free afterwards.
func (t *FileTable) Renumber(ctx context.Context, from, to uint32) error {
	if t.isPreopen(from) || t.isPreopen(to) {
		return fail(ErrnoUnsupported)
	}
	if _, err := t.Get(from); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	old, err := t.Get(to)
	if err != nil {
		return err
	}
	if err := old.close(ctx); err != nil {
		return err
	}
	if !t.handles.Move(resource.Handle(from), resource.Handle(to)) {
		return fail(ErrnoBadDescriptor)
	}
	return nil
}

// CloseAll closes every descriptor, preopens included, returning the first
// commit failure.
func (t *FileTable) CloseAll(ctx context.Context) error {
	var first error
	t.handles.Each(func(_ resource.Handle, h Handle) bool {
		if err := h.close(ctx); err != nil && first == nil {
			first = err
		}
		return true
	})
	t.handles.Clear()
	return first
}
