// Package local implements the local filesystem tool family: read-only
// tools confined to a configured root directory.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/codeready-toolchain/buildscout/pkg/agent"
	"github.com/codeready-toolchain/buildscout/pkg/config"
)

// Tool names, without the family prefix.
const (
	ToolReadFile      = "read_file"
	ToolListDirectory = "list_directory"
	ToolGrep          = "grep"
	ToolGlob          = "glob"
)

// tool is one filesystem operation.
type tool struct {
	name        string
	description string
	schema      string
	run         func(ctx context.Context, args map[string]any) (string, error)
}

// Family is the local filesystem tool family.
type Family struct {
	prefix       string
	root         *root
	maxFileBytes int
	maxMatches   int
	tools        map[string]*tool
}

// New creates the family from configuration. The root must be an existing
// directory.
func New(cfg *config.LocalToolsConfig) (*Family, error) {
	r, err := newRoot(cfg.Root)
	if err != nil {
		return nil, err
	}
	f := &Family{
		prefix:       cfg.Prefix,
		root:         r,
		maxFileBytes: cfg.MaxFileBytes,
		maxMatches:   cfg.MaxMatches,
	}
	if f.prefix == "" {
		f.prefix = config.DefaultLocalPrefix
	}
	if f.maxFileBytes <= 0 {
		f.maxFileBytes = config.DefaultLocalMaxFileBytes
	}
	if f.maxMatches <= 0 {
		f.maxMatches = config.DefaultLocalMaxMatches
	}
	f.tools = f.buildTools()
	return f, nil
}

func (f *Family) buildTools() map[string]*tool {
	tools := []*tool{
		{
			name:        ToolReadFile,
			description: "Read a text file under the workspace root. Lines are numbered; use offset (1-based line) and limit (line count) to page through large files.",
			schema:      `{"type":"object","properties":{"path":{"type":"string","description":"File path relative to the workspace root"},"offset":{"type":"integer","description":"First line to return, 1-based"},"limit":{"type":"integer","description":"Maximum number of lines to return"}},"required":["path"]}`,
			run:         f.readFile,
		},
		{
			name:        ToolListDirectory,
			description: "List the entries of a directory under the workspace root. Directories end with a slash.",
			schema:      `{"type":"object","properties":{"path":{"type":"string","description":"Directory path relative to the workspace root; defaults to the root"}}}`,
			run:         f.listDirectory,
		},
		{
			name:        ToolGrep,
			description: "Search file contents with a regular expression. Returns path:line:text for each match, capped at a fixed number of matches.",
			schema:      `{"type":"object","properties":{"pattern":{"type":"string","description":"RE2 regular expression"},"path":{"type":"string","description":"File or directory to search; defaults to the root"},"glob":{"type":"string","description":"Only search files whose path matches this glob, e.g. **/*.yaml"}},"required":["pattern"]}`,
			run:         f.grep,
		},
		{
			name:        ToolGlob,
			description: "Find files by glob pattern relative to the workspace root. Supports ** for any number of directories.",
			schema:      `{"type":"object","properties":{"pattern":{"type":"string","description":"Glob pattern, e.g. pipelines/**/*.yml"}},"required":["pattern"]}`,
			run:         f.glob,
		},
	}
	m := make(map[string]*tool, len(tools))
	for _, t := range tools {
		m[t.name] = t
	}
	return m
}

// Prefix returns the tool name prefix of the family.
func (f *Family) Prefix() string { return f.prefix }

// Root returns the absolute root directory.
func (f *Family) Root() string { return f.root.dir }

// ListTools returns the filesystem tools sorted by name.
func (f *Family) ListTools(_ context.Context) ([]agent.ToolDefinition, error) {
	defs := make([]agent.ToolDefinition, 0, len(f.tools))
	for _, t := range f.tools {
		defs = append(defs, agent.ToolDefinition{
			Name:             t.name,
			Description:      t.description,
			ParametersSchema: t.schema,
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, nil
}

// Call runs a tool by its unprefixed name.
func (f *Family) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	t, ok := f.tools[name]
	if !ok {
		return "", fmt.Errorf("unknown local tool %q", name)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return t.run(ctx, args)
}

// Close is a no-op; the family holds no resources.
func (f *Family) Close() error { return nil }

// schemaOf returns the JSON schema of a tool.
func (f *Family) schemaOf(name string) json.RawMessage {
	return json.RawMessage(f.tools[name].schema)
}

func stringArg(args map[string]any, key string, required bool) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("missing required argument %q", key)
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	if required && s == "" {
		return "", fmt.Errorf("argument %q must not be empty", key)
	}
	return s, nil
}

func intArg(args map[string]any, key string) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, nil
	}
	switch n := v.(type) {
	case float64:
		if n != float64(int(n)) || n < 0 {
			return 0, fmt.Errorf("argument %q must be a non-negative integer", key)
		}
		return int(n), nil
	case int:
		if n < 0 {
			return 0, fmt.Errorf("argument %q must be a non-negative integer", key)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("argument %q must be an integer", key)
	}
}
