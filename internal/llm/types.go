package llm

import "encoding/json"

// Message is a chat message in the OpenAI chat-completions format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat selects structured output for a completion request.
type ResponseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *JSONSchema `json:"json_schema,omitempty"`
}

// JSONSchema wraps a named schema for response_format "json_schema".
// The schema body is carried as raw JSON; callers define it where the
// extraction semantics live.
type JSONSchema struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

// ChatCompletionRequest is the body of POST /chat/completions.
type ChatCompletionRequest struct {
	Model          string          `json:"model"`
	Temperature    float64         `json:"temperature"`
	Messages       []Message       `json:"messages"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// chatCompletionResponse is the subset of the completions response we read.
type chatCompletionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}
