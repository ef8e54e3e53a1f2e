// Package extract implements profile extraction: it asks the model for a
// structured set of user attributes inferred from a conversation transcript.
package extract

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kalambet/kaiwa/internal/chat"
	"github.com/kalambet/kaiwa/internal/llm"
)

// MinConfidence is the server-side cutoff: attributes the model is less
// sure about than this are dropped before they reach the client.
const MinConfidence = 0.3

// Completer is the interface for chat completion. Implemented by llm.Client.
type Completer interface {
	ChatCompletion(ctx context.Context, req llm.ChatCompletionRequest) (string, error)
}

// Extractor derives profile attributes from transcripts via structured output.
type Extractor struct {
	client      Completer
	model       string
	temperature float64
}

// NewExtractor creates an Extractor using the given client and model name.
func NewExtractor(client Completer, model string, temperature float64) *Extractor {
	return &Extractor{client: client, model: model, temperature: temperature}
}

// Extract analyses the transcript and returns the revised attribute list,
// filtered to MinConfidence. A malformed model response is an error; the
// caller decides how loudly to fail.
func (e *Extractor) Extract(ctx context.Context, messages []chat.ChatMessage, current []chat.ProfileAttribute) ([]chat.ProfileAttribute, error) {
	req := llm.ChatCompletionRequest{
		Model:       e.model,
		Temperature: e.temperature,
		Messages: []llm.Message{
			{Role: "system", Content: BuildSystemPrompt(current)},
			{Role: "user", Content: BuildUserPrompt(messages)},
		},
		ResponseFormat: &llm.ResponseFormat{
			Type: "json_schema",
			JSONSchema: &llm.JSONSchema{
				Name:   "profile_extraction",
				Strict: true,
				Schema: json.RawMessage(attributesSchema),
			},
		},
	}

	raw, err := e.client.ChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("profile extraction: %w", err)
	}

	var parsed struct {
		Attributes []chat.ProfileAttribute `json:"attributes"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("parsing extraction result: %w", err)
	}

	attrs := make([]chat.ProfileAttribute, 0, len(parsed.Attributes))
	for _, a := range parsed.Attributes {
		if a.Confidence >= MinConfidence {
			attrs = append(attrs, a)
		}
	}
	return attrs, nil
}

// attributesSchema is the structured-output schema for profile extraction.
const attributesSchema = `{
  "type": "object",
  "properties": {
    "attributes": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "key": {
            "type": "string",
            "description": "属性のカテゴリ名（例: 技術レベル, 主要言語, 関心領域, コミュニケーションスタイル, 好みのフレームワーク, 回答の詳細度）"
          },
          "value": {
            "type": "string",
            "description": "属性の値（例: 上級, TypeScript / Python）"
          },
          "confidence": {
            "type": "number",
            "description": "確信度 0.0〜1.0。会話内容からどの程度確信が持てるか"
          }
        },
        "required": ["key", "value", "confidence"],
        "additionalProperties": false
      }
    }
  },
  "required": ["attributes"],
  "additionalProperties": false
}`
