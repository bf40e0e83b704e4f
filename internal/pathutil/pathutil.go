// Package pathutil validates project paths at the boundary between the
// core and its external collaborators. It is a generalization of the
// teacher's vault-relative "stay inside the root" checks
// (pkg/obsidian/path_validation.go, pkg/obsidian/path_safety.go) to this
// spec's stricter rule: a Path is an already-project-rooted absolute
// string, not a filesystem path to be joined against a base directory.
package pathutil

import (
	"errors"
	"strings"
)

// ErrInvalidPath is returned for any path that fails Validate.
var ErrInvalidPath = errors.New("invalid path")

// Validate enforces spec.md §3's Path invariants: begins with "/", no
// trailing "/" (except the root path "/" itself), no "." or ".." segments,
// and equal to its own normalized form.
func Validate(p string) error {
	if p == "" || !strings.HasPrefix(p, "/") {
		return ErrInvalidPath
	}
	if p != "/" && strings.HasSuffix(p, "/") {
		return ErrInvalidPath
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			return ErrInvalidPath
		}
	}
	if p != Normalize(p) {
		return ErrInvalidPath
	}
	return nil
}

// Normalize collapses a slash-separated path the way spec.md expects a
// validated Path to already look: single leading slash, no duplicate
// slashes, no trailing slash (other than the root itself).
func Normalize(p string) string {
	if p == "" {
		return "/"
	}
	segs := strings.Split(p, "/")
	out := make([]string, 0, len(segs))
	for _, seg := range segs {
		if seg == "" {
			continue
		}
		out = append(out, seg)
	}
	if len(out) == 0 {
		return "/"
	}
	return "/" + strings.Join(out, "/")
}

// HasPrefix reports whether path p falls under the project-tree prefix
// dir, the way archive creation selects which files to bundle.
func HasPrefix(p, dir string) bool {
	if dir == "" || dir == "/" {
		return true
	}
	return p == dir || strings.HasPrefix(p, dir+"/")
}
