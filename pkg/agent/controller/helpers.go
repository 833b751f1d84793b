package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/buildscout/pkg/agent"
)

// accumulateUsage adds token counts from an LLM response to the running total.
func accumulateUsage(total *agent.TokenUsage, resp *LLMResponse) {
	if resp != nil && resp.Usage != nil {
		total.Add(*resp.Usage)
	}
}

// generateCallID creates a unique ID for a tool call the model left unnamed.
func generateCallID() string {
	return "call_" + uuid.New().String()
}

// isCanceled reports whether the run was canceled by its caller, as opposed
// to hitting a deadline.
func isCanceled(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.Canceled)
}

// toolErrorResult converts an executor failure into a tool result the model
// can read.
func toolErrorResult(call agent.ToolCall, err error) *agent.ToolResult {
	return &agent.ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Content: fmt.Sprintf("Error executing tool %s: %v", call.Name, err),
		IsError: true,
	}
}
