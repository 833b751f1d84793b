package local

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// maxLineChars caps a single grep output line.
const maxLineChars = 500

var skipDirs = map[string]bool{".git": true, "node_modules": true}

func (f *Family) readFile(_ context.Context, args map[string]any) (string, error) {
	p, err := stringArg(args, "path", true)
	if err != nil {
		return "", err
	}
	offset, err := intArg(args, "offset")
	if err != nil {
		return "", err
	}
	limit, err := intArg(args, "limit")
	if err != nil {
		return "", err
	}

	abs, err := f.root.resolve(p)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory; use %s", p, ToolListDirectory)
	}

	data, truncated, err := readAtMost(abs, f.maxFileBytes)
	if err != nil {
		return "", err
	}
	if isBinary(data) {
		return "", fmt.Errorf("%s looks like a binary file", p)
	}
	if len(data) == 0 {
		return "(empty file)", nil
	}

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	start := 0
	if offset > 0 {
		start = offset - 1
	}
	if start >= len(lines) {
		return "", fmt.Errorf("offset %d is past the end of %s (%d lines)", offset, p, len(lines))
	}
	end := len(lines)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	var sb strings.Builder
	for i := start; i < end; i++ {
		fmt.Fprintf(&sb, "%6d\t%s\n", i+1, lines[i])
	}
	if end < len(lines) {
		fmt.Fprintf(&sb, "[%d more lines; continue with offset %d]\n", len(lines)-end, end+1)
	}
	if truncated {
		fmt.Fprintf(&sb, "[file truncated at %d bytes]\n", f.maxFileBytes)
	}
	return sb.String(), nil
}

func (f *Family) listDirectory(_ context.Context, args map[string]any) (string, error) {
	p, err := stringArg(args, "path", false)
	if err != nil {
		return "", err
	}
	abs, err := f.root.resolve(p)
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "(empty directory)", nil
	}

	var sb strings.Builder
	for _, e := range entries {
		if e.IsDir() {
			sb.WriteString(e.Name() + "/\n")
			continue
		}
		if info, err := e.Info(); err == nil && info.Mode().IsRegular() {
			fmt.Fprintf(&sb, "%s (%d bytes)\n", e.Name(), info.Size())
			continue
		}
		sb.WriteString(e.Name() + "\n")
	}
	return sb.String(), nil
}

func (f *Family) grep(ctx context.Context, args map[string]any) (string, error) {
	pattern, err := stringArg(args, "pattern", true)
	if err != nil {
		return "", err
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("invalid pattern: %w", err)
	}
	p, err := stringArg(args, "path", false)
	if err != nil {
		return "", err
	}
	globPattern, err := stringArg(args, "glob", false)
	if err != nil {
		return "", err
	}
	if globPattern != "" && !doublestar.ValidatePattern(globPattern) {
		return "", fmt.Errorf("invalid glob %q", globPattern)
	}
	abs, err := f.root.resolve(p)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	matches := 0
	errLimit := errors.New("match limit reached")

	searchFile := func(path string) error {
		rel := f.root.rel(path)
		if globPattern != "" && !matchGlob(globPattern, rel) {
			return nil
		}
		data, truncated, err := readAtMost(path, f.maxFileBytes)
		if err != nil || truncated || isBinary(data) {
			return nil
		}
		scanner := bufio.NewScanner(bytes.NewReader(data))
		scanner.Buffer(make([]byte, 0, 64*1024), f.maxFileBytes+1)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := scanner.Text()
			if !re.MatchString(line) {
				continue
			}
			if len(line) > maxLineChars {
				line = line[:maxLineChars] + "..."
			}
			fmt.Fprintf(&sb, "%s:%d:%s\n", rel, lineNo, line)
			matches++
			if matches >= f.maxMatches {
				return errLimit
			}
		}
		return nil
	}

	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if path == abs {
				return walkErr
			}
			return nil
		}
		if d.IsDir() {
			if path != abs && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return searchFile(path)
	})
	switch {
	case errors.Is(err, errLimit):
		fmt.Fprintf(&sb, "[match limit %d reached]\n", f.maxMatches)
	case err != nil:
		return "", err
	}
	if matches == 0 {
		return "No matches found", nil
	}
	return sb.String(), nil
}

func (f *Family) glob(ctx context.Context, args map[string]any) (string, error) {
	pattern, err := stringArg(args, "pattern", true)
	if err != nil {
		return "", err
	}
	pattern = strings.TrimPrefix(filepath.ToSlash(pattern), "./")
	if strings.HasPrefix(pattern, "/") || hasParentSegment(pattern) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, pattern)
	}
	if !doublestar.ValidatePattern(pattern) {
		return "", fmt.Errorf("invalid glob %q", pattern)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	found, err := doublestar.Glob(os.DirFS(f.root.dir), pattern)
	if err != nil {
		return "", err
	}
	if len(found) == 0 {
		return "No files matched", nil
	}
	sort.Strings(found)

	var sb strings.Builder
	for i, name := range found {
		if i == f.maxMatches {
			fmt.Fprintf(&sb, "[%d more matches not shown]\n", len(found)-i)
			break
		}
		sb.WriteString(name + "\n")
	}
	return sb.String(), nil
}

// matchGlob matches a root-relative path. Patterns without a slash also
// match against the base name, so "*.yaml" finds files in any directory.
func matchGlob(pattern, rel string) bool {
	if ok, _ := doublestar.Match(pattern, rel); ok {
		return true
	}
	if !strings.Contains(pattern, "/") {
		ok, _ := doublestar.Match(pattern, filepath.Base(rel))
		return ok
	}
	return false
}

func hasParentSegment(pattern string) bool {
	for _, seg := range strings.Split(pattern, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

// readAtMost reads up to limit bytes and reports whether the file was longer.
func readAtMost(path string, limit int) ([]byte, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, false, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, int64(limit)+1))
	if err != nil {
		return nil, false, err
	}
	if len(data) > limit {
		return data[:limit], true, nil
	}
	return data, false, nil
}

// isBinary treats data containing a NUL byte in its first 8KB as binary.
func isBinary(data []byte) bool {
	if len(data) > 8192 {
		data = data[:8192]
	}
	return bytes.IndexByte(data, 0) >= 0
}
