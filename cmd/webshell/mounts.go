package main

import (
	"fmt"
	"strings"

	"github.com/mizchi/web-shell/vfs"
	"github.com/mizchi/web-shell/vfs/memfs"
	"github.com/mizchi/web-shell/vfs/osfs"
)

// guest=host
type dirMount struct {
	guest string
	host  string
}

// dirMounts is a repeatable --dir flag.
type dirMounts struct {
	values  []dirMount
	strings []string
}

func parseDirMount(s string) (dirMount, error) {
	guest, host, ok := strings.Cut(s, "=")
	if !ok {
		host = guest
	}
	if guest == "" || host == "" {
		return dirMount{}, fmt.Errorf("malformed mount '%v': mounts must be of the form (guest=)host", s)
	}
	return dirMount{guest: guest, host: host}, nil
}

func (m *dirMounts) String() string {
	return strings.Join(m.strings, ";")
}

func (m *dirMounts) Set(s string) error {
	mount, err := parseDirMount(s)
	if err != nil {
		return err
	}
	m.values, m.strings = append(m.values, mount), append(m.strings, s)
	return nil
}

func (m *dirMounts) Type() string {
	return "mount"
}

// parseEnv turns K=V pairs into a map. A bare K maps to the empty string.
func parseEnv(pairs []string) (map[string]string, error) {
	env := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		k, v, _ := strings.Cut(kv, "=")
		if k == "" {
			return nil, fmt.Errorf("malformed environment variable '%v'", kv)
		}
		env[k] = v
	}
	return env, nil
}

type store struct {
	dir   vfs.Dir
	guest string
}

// stores are the directories a command was started with.
type stores struct {
	list []store
	open []*osfs.FS
}

func openStores(dirs []dirMount, mems []string) (*stores, error) {
	s := &stores{}
	for _, d := range dirs {
		fsys, err := osfs.Open(d.host)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("mount %v: %w", d.host, err)
		}
		s.open = append(s.open, fsys)
		s.list = append(s.list, store{guest: d.guest, dir: fsys.Root()})
	}
	for _, guest := range mems {
		s.list = append(s.list, store{guest: guest, dir: memfs.New(guest)})
	}
	return s, nil
}

func (s *stores) Close() error {
	var first error
	for _, fsys := range s.open {
		if err := fsys.Close(); err != nil && first == nil {
			first = err
		}
	}
	s.open = nil
	return first
}
