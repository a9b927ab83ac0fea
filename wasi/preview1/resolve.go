package preview1

import (
	"github.com/mizchi/web-shell/errors"
	"github.com/mizchi/web-shell/vfs"
)

// FindRelPath picks the preopen whose path is the longest complete-component
// prefix of p and returns p relative to it. Later preopens win ties.
func (t *FileTable) FindRelPath(p string) (*Directory, string, error) {
	paths := make([]string, len(t.preopens))
	for i, pre := range t.preopens {
		paths[i] = pre.Path()
	}
	i, rel, ok := vfs.FindRelPath(paths, p)
	if !ok {
		return nil, "", errors.NotFound(errors.PhaseResolve, "preopen for path", p)
	}
	return t.preopens[i], rel, nil
}
