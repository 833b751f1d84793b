package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/codeready-toolchain/buildscout/pkg/agent"
)

// Compile-time check that Router implements agent.ToolExecutor.
var _ agent.ToolExecutor = (*Router)(nil)

// Masker redacts sensitive content from tool results. Implemented by
// *masking.Service.
type Masker interface {
	Mask(content string) string
}

// Router dispatches tool calls to the family owning the name prefix.
// Execute never returns an error: every failure is reported to the model
// as an error result.
type Router struct {
	families []Family
	logger   *slog.Logger
	masker   Masker

	closeOnce sync.Once
	closeErr  error
}

// NewRouter creates a router over the given families. Prefixes must be
// unique; the first family wins on a clash.
func NewRouter(logger *slog.Logger, families ...Family) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{families: families, logger: logger}
}

// SetMasker makes the router pass every result's content, including error
// messages, through m.
func (r *Router) SetMasker(m Masker) {
	r.masker = m
}

// ListTools returns the tools of every family with prefixed names, in
// family order.
func (r *Router) ListTools(ctx context.Context) ([]agent.ToolDefinition, error) {
	var out []agent.ToolDefinition
	for _, f := range r.families {
		defs, err := f.ListTools(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s tools: %w", f.Prefix(), err)
		}
		for _, d := range defs {
			d.Name = QualifiedName(f.Prefix(), d.Name)
			out = append(out, d)
		}
	}
	return out, nil
}

// Execute runs one tool call.
//
// Flow:
//  1. Parse Arguments as a JSON object (empty means no arguments)
//  2. Resolve the family from the name prefix
//  3. Call the family with the unprefixed name, recovering panics
//  4. Convert a family error into an error result
//  5. Mask the content
func (r *Router) Execute(ctx context.Context, call agent.ToolCall) (*agent.ToolResult, error) {
	result := r.execute(ctx, call)
	if r.masker != nil {
		result.Content = r.masker.Mask(result.Content)
	}
	return result, nil
}

func (r *Router) execute(ctx context.Context, call agent.ToolCall) *agent.ToolResult {
	args, err := ParseArguments(call.Arguments)
	if err != nil {
		return errorResult(call, fmt.Sprintf("Invalid arguments for tool %s: %v", call.Name, err))
	}

	family, tool, ok := r.resolve(call.Name)
	if !ok {
		return errorResult(call, fmt.Sprintf("Unknown tool: %s", call.Name))
	}

	content, err := r.callFamily(ctx, family, tool, args)
	if err != nil {
		return errorResult(call, fmt.Sprintf("Error executing tool %s: %v", call.Name, err))
	}
	return &agent.ToolResult{CallID: call.ID, Name: call.Name, Content: content}
}

// Close closes every family once. Later calls return the first result.
func (r *Router) Close() error {
	r.closeOnce.Do(func() {
		var errs []error
		for _, f := range r.families {
			if err := f.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", f.Prefix(), err))
			}
		}
		r.closeErr = errors.Join(errs...)
	})
	return r.closeErr
}

// resolve finds the family whose prefix the name carries. Longer prefixes
// win so that "ado_x" and "ado_ext_y" can coexist.
func (r *Router) resolve(name string) (Family, string, bool) {
	var best Family
	for _, f := range r.families {
		p := f.Prefix() + "_"
		if !strings.HasPrefix(name, p) || len(name) == len(p) {
			continue
		}
		if best == nil || len(f.Prefix()) > len(best.Prefix()) {
			best = f
		}
	}
	if best == nil {
		return nil, "", false
	}
	return best, strings.TrimPrefix(name, best.Prefix()+"_"), true
}

func (r *Router) callFamily(ctx context.Context, f Family, tool string, args map[string]any) (content string, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Tool family panicked",
				"family", f.Prefix(), "tool", tool, "panic", p, "stack", string(debug.Stack()))
			err = fmt.Errorf("tool panicked: %v", p)
		}
	}()
	return f.Call(ctx, tool, args)
}

// ParseArguments decodes a tool call's argument string. Blank input means
// no arguments; anything else must be a JSON object.
func ParseArguments(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("arguments must be a JSON object, got %s", jsonKind(v))
	}
	return m, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func errorResult(call agent.ToolCall, content string) *agent.ToolResult {
	return &agent.ToolResult{CallID: call.ID, Name: call.Name, Content: content, IsError: true}
}
