package llm

import (
	"encoding/json"

	openai "github.com/sashabaranov/go-openai"

	"github.com/codeready-toolchain/buildscout/pkg/agent"
)

// emptySchema is sent for tools that did not declare parameters.
const emptySchema = `{"type":"object","properties":{}}`

func toChatRequest(input *agent.GenerateInput) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:         input.Profile.Model,
		Messages:      toChatMessages(input.Messages),
		Tools:         toChatTools(input.Tools),
		Stream:        true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	}
}

func toChatMessages(msgs []agent.ConversationMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(msgs))
	for i, m := range msgs {
		cm := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			cm.ToolCalls = append(cm.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out[i] = cm
	}
	return out
}

func toChatTools(tools []agent.ToolDefinition) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.Tool, len(tools))
	for i, t := range tools {
		schema := t.ParametersSchema
		if schema == "" || !json.Valid([]byte(schema)) {
			schema = emptySchema
		}
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  json.RawMessage(schema),
			},
		}
	}
	return out
}

// fromStreamResponse converts one streamed completion delta into chunks.
// Only the first choice is used; buildscout never requests n > 1.
func fromStreamResponse(resp openai.ChatCompletionStreamResponse) []agent.Chunk {
	var chunks []agent.Chunk
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		if choice.Delta.Content != "" {
			chunks = append(chunks, &agent.TextChunk{Content: choice.Delta.Content})
		}
		for pos, tc := range choice.Delta.ToolCalls {
			index := pos
			if tc.Index != nil {
				index = *tc.Index
			}
			chunks = append(chunks, &agent.ToolCallDeltaChunk{
				Index:     index,
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		if choice.FinishReason != "" {
			chunks = append(chunks, &agent.FinishChunk{Reason: toFinishReason(choice.FinishReason)})
		}
	}
	if resp.Usage != nil {
		chunks = append(chunks, &agent.UsageChunk{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		})
	}
	return chunks
}

func toFinishReason(fr openai.FinishReason) agent.FinishReason {
	switch fr {
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return agent.FinishReasonToolCalls
	case openai.FinishReasonLength:
		return agent.FinishReasonLength
	case openai.FinishReasonContentFilter:
		return agent.FinishReasonContentFilter
	default:
		return agent.FinishReasonStop
	}
}
