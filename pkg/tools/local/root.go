package local

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned for paths that resolve outside the family root.
var ErrOutsideRoot = errors.New("path escapes the workspace root")

// root confines paths to a directory tree.
type root struct {
	dir string // absolute, symlinks resolved
}

func newRoot(dir string) (*root, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid root %q: %w", dir, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("invalid root %q: %w", dir, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("invalid root %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("invalid root %q: not a directory", dir)
	}
	return &root{dir: resolved}, nil
}

// resolve maps a user path (relative to the root, or absolute inside it) to
// an absolute path. Existing paths are resolved through symlinks and must
// still land inside the root.
func (r *root) resolve(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		p = "."
	}
	var abs string
	if filepath.IsAbs(p) {
		abs = filepath.Clean(p)
	} else {
		abs = filepath.Join(r.dir, p)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if errors.Is(err, fs.ErrNotExist) {
		if !r.contains(abs) {
			return "", fmt.Errorf("%w: %s", ErrOutsideRoot, p)
		}
		return abs, nil
	}
	if err != nil {
		return "", err
	}
	if !r.contains(resolved) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, p)
	}
	return resolved, nil
}

func (r *root) contains(abs string) bool {
	rel, err := filepath.Rel(r.dir, abs)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// rel returns abs relative to the root with forward slashes.
func (r *root) rel(abs string) string {
	rel, err := filepath.Rel(r.dir, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(rel)
}
