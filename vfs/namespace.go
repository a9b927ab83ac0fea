package vfs

import (
	"context"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Workspace is where the default store is mounted and where ~ points.
const Workspace = "/workspace"

// Mount is a store attached at an absolute virtual path.
type Mount struct {
	Dir  Dir
	Path string
}

// Stat describes a namespace path.
type Stat struct {
	ModTime time.Time
	Size    int64
	Kind    Kind
}

// Namespace is the host-side view of all mounted stores: a single
// absolute path space with a working directory.
type Namespace struct {
	mounts map[string]Dir
	cwd    string
	mu     sync.RWMutex
}

// NewNamespace mounts workspace at /workspace and starts there.
func NewNamespace(workspace Dir) *Namespace {
	return &Namespace{
		mounts: map[string]Dir{Workspace: workspace},
		cwd:    Workspace,
	}
}

// Resolve turns p into a clean absolute path. Relative paths are taken
// from the working directory; ~ and ~/x refer to the workspace.
func (ns *Namespace) Resolve(p string) (string, error) {
	switch {
	case strings.HasPrefix(p, "/"):
		return path.Clean(p), nil
	case p == "~":
		return Workspace, nil
	case strings.HasPrefix(p, "~/"):
		return path.Join(Workspace, p[2:]), nil
	case strings.HasPrefix(p, "~"):
		return "", NewError("resolve", p, TypeMismatch)
	}
	return path.Join("/", ns.Cwd(), p), nil
}

// Cwd returns the working directory.
func (ns *Namespace) Cwd() string {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return ns.cwd
}

// Chdir changes the working directory. The target must be a directory.
func (ns *Namespace) Chdir(ctx context.Context, p string) error {
	abs, err := ns.Resolve(p)
	if err != nil {
		return err
	}
	st, err := ns.Stat(ctx, abs)
	if err != nil {
		return err
	}
	if st.Kind != KindDir {
		return NewError("chdir", abs, TypeMismatch)
	}

	ns.mu.Lock()
	ns.cwd = abs
	ns.mu.Unlock()
	return nil
}

// Mount attaches d at p, replacing any store already there.
func (ns *Namespace) Mount(p string, d Dir) error {
	abs, err := ns.Resolve(p)
	if err != nil {
		return err
	}
	if abs == "/" {
		return NewError("mount", abs, NotAllowed)
	}

	ns.mu.Lock()
	ns.mounts[abs] = d
	ns.mu.Unlock()

	Logger().Info("mounted", zap.String("path", abs), zap.String("store", d.Name()))
	return nil
}

// Mounts lists mounts ordered by path.
func (ns *Namespace) Mounts() []Mount {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	out := make([]Mount, 0, len(ns.mounts))
	for p, d := range ns.mounts {
		out = append(out, Mount{Path: p, Dir: d})
	}
	slices.SortFunc(out, func(a, b Mount) int { return strings.Compare(a.Path, b.Path) })
	return out
}

// within reports whether abs equals prefix or lies below it.
func within(abs, prefix string) bool {
	if abs == prefix {
		return true
	}
	return strings.HasPrefix(abs, prefix) && abs[len(prefix)] == '/'
}

// mountFor picks the most specific mount containing abs and returns the
// path components below it.
func (ns *Namespace) mountFor(abs string) (Dir, []string, bool) {
	mounts := ns.Mounts()
	paths := make([]string, len(mounts))
	for i, m := range mounts {
		paths[i] = m.Path
	}
	i, rel, ok := FindRelPath(paths, abs)
	if !ok {
		return nil, nil, false
	}
	if rel == "." {
		return mounts[i].Dir, nil, true
	}
	return mounts[i].Dir, strings.Split(rel, "/"), true
}

// walk resolves abs to a directory or a file.
func (ns *Namespace) walk(ctx context.Context, op, abs string) (Dir, File, error) {
	cur, parts, ok := ns.mountFor(abs)
	if !ok {
		return nil, nil, NewError(op, abs, NotFound)
	}
	for i, name := range parts {
		next, err := cur.Dir(ctx, name, false)
		if err == nil {
			cur = next
			continue
		}
		if c, _ := CategoryOf(err); c == TypeMismatch && i == len(parts)-1 {
			f, ferr := cur.File(ctx, name, false)
			if ferr != nil {
				return nil, nil, ferr
			}
			return nil, f, nil
		}
		return nil, nil, err
	}
	return cur, nil, nil
}

// parent resolves the directory holding abs and returns abs's base name.
func (ns *Namespace) parent(ctx context.Context, op, abs string) (Dir, string, error) {
	if _, parts, ok := ns.mountFor(abs); ok && len(parts) == 0 {
		return nil, "", NewError(op, abs, NotAllowed)
	}
	d, f, err := ns.walk(ctx, op, path.Dir(abs))
	if err != nil {
		return nil, "", err
	}
	if f != nil {
		return nil, "", NewError(op, path.Dir(abs), TypeMismatch)
	}
	return d, path.Base(abs), nil
}

// virtualChildren lists the next path component of every mount below abs,
// such as workspace when listing /.
func (ns *Namespace) virtualChildren(abs string) []Entry {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	seen := make(map[string]bool)
	var out []Entry
	for p := range ns.mounts {
		if p == abs || !within(p, abs) && abs != "/" {
			continue
		}
		rest := strings.TrimPrefix(p, abs)
		rest = strings.TrimPrefix(rest, "/")
		name, _, _ := strings.Cut(rest, "/")
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, Entry{Name: name, Kind: KindDir})
	}
	slices.SortFunc(out, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Stat describes the file or directory at p.
func (ns *Namespace) Stat(ctx context.Context, p string) (Stat, error) {
	abs, err := ns.Resolve(p)
	if err != nil {
		return Stat{}, err
	}
	if _, _, ok := ns.mountFor(abs); !ok {
		if len(ns.virtualChildren(abs)) > 0 {
			return Stat{Kind: KindDir}, nil
		}
		return Stat{}, NewError("stat", abs, NotFound)
	}

	_, f, err := ns.walk(ctx, "stat", abs)
	if err != nil {
		return Stat{}, err
	}
	if f == nil {
		return Stat{Kind: KindDir}, nil
	}
	info, err := f.Stat(ctx)
	if err != nil {
		return Stat{}, err
	}
	return Stat{Kind: KindFile, Size: info.Size, ModTime: info.ModTime}, nil
}

// Exists reports whether p names a file or directory.
func (ns *Namespace) Exists(ctx context.Context, p string) bool {
	_, err := ns.Stat(ctx, p)
	return err == nil
}

// OpenDir returns the store directory at p. Directories that exist only
// because mounts lie below them, such as /, have no store and report
// NotFound.
func (ns *Namespace) OpenDir(ctx context.Context, p string) (Dir, error) {
	abs, err := ns.Resolve(p)
	if err != nil {
		return nil, err
	}
	d, f, err := ns.walk(ctx, "opendir", abs)
	if err != nil {
		return nil, err
	}
	if f != nil {
		return nil, NewError("opendir", abs, TypeMismatch)
	}
	return d, nil
}

// ReadDir lists the directory at p: directories first, then files, each
// group sorted by name. Mount points below p are included.
func (ns *Namespace) ReadDir(ctx context.Context, p string) ([]Entry, error) {
	abs, err := ns.Resolve(p)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	if _, _, ok := ns.mountFor(abs); ok {
		d, f, err := ns.walk(ctx, "readdir", abs)
		if err != nil {
			return nil, err
		}
		if f != nil {
			return nil, NewError("readdir", abs, TypeMismatch)
		}
		if entries, err = Collect(ctx, d); err != nil {
			return nil, err
		}
	}

	for _, v := range ns.virtualChildren(abs) {
		if !slices.ContainsFunc(entries, func(e Entry) bool { return e.Name == v.Name }) {
			entries = append(entries, v)
		}
	}
	if entries == nil {
		if _, _, ok := ns.mountFor(abs); !ok {
			return nil, NewError("readdir", abs, NotFound)
		}
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		if a.Kind != b.Kind {
			if a.Kind == KindDir {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Name, b.Name)
	})
	return entries, nil
}

// ReadFile returns the content of the file at p.
func (ns *Namespace) ReadFile(ctx context.Context, p string) ([]byte, error) {
	abs, err := ns.Resolve(p)
	if err != nil {
		return nil, err
	}
	_, f, err := ns.walk(ctx, "read", abs)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, NewError("read", abs, TypeMismatch)
	}
	return ReadAll(ctx, f)
}

// WriteFile creates or replaces the file at p. The parent must exist.
func (ns *Namespace) WriteFile(ctx context.Context, p string, data []byte) error {
	abs, err := ns.Resolve(p)
	if err != nil {
		return err
	}
	parent, name, err := ns.parent(ctx, "write", abs)
	if err != nil {
		return err
	}
	f, err := parent.File(ctx, name, true)
	if err != nil {
		return err
	}
	return WriteAll(ctx, f, data)
}

// Mkdir creates the directory at p if it does not exist.
func (ns *Namespace) Mkdir(ctx context.Context, p string) error {
	abs, err := ns.Resolve(p)
	if err != nil {
		return err
	}
	parent, name, err := ns.parent(ctx, "mkdir", abs)
	if err != nil {
		return err
	}
	_, err = parent.Dir(ctx, name, true)
	return err
}

// Remove deletes the file or empty directory at p.
func (ns *Namespace) Remove(ctx context.Context, p string) error {
	abs, err := ns.Resolve(p)
	if err != nil {
		return err
	}
	parent, name, err := ns.parent(ctx, "remove", abs)
	if err != nil {
		return err
	}
	return parent.Remove(ctx, name)
}

// RemoveAll deletes p and everything below it.
func (ns *Namespace) RemoveAll(ctx context.Context, p string) error {
	abs, err := ns.Resolve(p)
	if err != nil {
		return err
	}
	parent, name, err := ns.parent(ctx, "remove", abs)
	if err != nil {
		return err
	}
	return removeTree(ctx, parent, name)
}

func removeTree(ctx context.Context, parent Dir, name string) error {
	d, err := parent.Dir(ctx, name, false)
	if err == nil {
		entries, err := Collect(ctx, d)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := removeTree(ctx, d, e.Name); err != nil {
				return err
			}
		}
	} else if c, _ := CategoryOf(err); c != TypeMismatch {
		return err
	}
	return parent.Remove(ctx, name)
}
