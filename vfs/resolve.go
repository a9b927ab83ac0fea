package vfs

import "strings"

// FindRelPath picks the entry of prefixes that is the longest
// complete-component prefix of p and returns its index and p relative to
// it. Later prefixes win ties. For a relative p, the prefixes "." and
// "./x" match as "" and "x".
func FindRelPath(prefixes []string, p string) (int, string, bool) {
	found, matchLen := -1, 0
	for i := len(prefixes) - 1; i >= 0; i-- {
		prefix := prefixes[i]
		if p != "." && !strings.HasPrefix(p, "./") {
			if strings.HasPrefix(prefix, "./") {
				prefix = prefix[2:]
			} else if prefix == "." {
				prefix = ""
			}
		}

		if (found < 0 || len(prefix) > matchLen) && prefixMatches(prefix, p) {
			found, matchLen = i, len(prefix)
		}
	}
	if found < 0 {
		return -1, "", false
	}

	rel := strings.TrimLeft(p[matchLen:], "/")
	if rel == "" {
		rel = "."
	}
	return found, rel, true
}

// prefixMatches reports whether prefix names p or one of its ancestors. An
// empty prefix matches every relative path.
func prefixMatches(prefix, p string) bool {
	if prefix == "" && !strings.HasPrefix(p, "/") {
		return true
	}
	if !strings.HasPrefix(p, prefix) {
		return false
	}
	i := len(strings.TrimRight(prefix, "/"))
	return i == len(p) || p[i] == '/'
}
