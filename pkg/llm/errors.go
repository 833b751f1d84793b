package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/codeready-toolchain/buildscout/pkg/agent"
)

// contextLengthCode is the structured error code providers return for an
// oversized prompt.
const contextLengthCode = "context_length_exceeded"

// contextLengthPhrases are matched (case-insensitively) against HTTP 400
// error messages when the provider did not send the structured code.
var contextLengthPhrases = []string{
	"maximum context length",
	"context_length_exceeded",
	"too many tokens",
	"reduce the length",
}

// IsContextLengthError reports whether err is a provider rejection of an
// oversized prompt.
//
// This is a heuristic. It first looks for the structured error code and then
// for known phrases in HTTP 400 messages. If a provider changes its error
// shape, this returns false and the compaction retry silently stops firing.
func IsContextLengthError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, agent.ErrContextLengthExceeded) {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if code, ok := apiErr.Code.(string); ok && code == contextLengthCode {
			return true
		}
		return apiErr.HTTPStatusCode == http.StatusBadRequest && hasContextLengthPhrase(apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusBadRequest &&
			hasContextLengthPhrase(string(reqErr.Body)+" "+reqErr.Error())
	}
	return false
}

func hasContextLengthPhrase(msg string) bool {
	msg = strings.ToLower(msg)
	for _, phrase := range contextLengthPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// errorChunk converts a mid-stream failure into an ErrorChunk.
func errorChunk(err error) *agent.ErrorChunk {
	chunk := &agent.ErrorChunk{
		Message:       err.Error(),
		ContextLength: IsContextLengthError(err),
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.Code != nil {
		chunk.Code = fmt.Sprint(apiErr.Code)
	}
	return chunk
}
