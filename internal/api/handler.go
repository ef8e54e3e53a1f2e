// Package api implements the kaiwa service surface: the Chat Service and
// Profile Service HTTP endpoints, and the MCP tool server.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/kaiwa/internal/chat"
	"github.com/kalambet/kaiwa/internal/extract"
	"github.com/kalambet/kaiwa/internal/llm"
)

const maxRequestBodySize = 1 << 20 // 1MB

// ProfileExtractor derives profile attributes from a transcript.
// Implemented by extract.Extractor.
type ProfileExtractor interface {
	Extract(ctx context.Context, messages []chat.ChatMessage, current []chat.ProfileAttribute) ([]chat.ProfileAttribute, error)
}

// Deps wires the handler's collaborators.
type Deps struct {
	// APIKey is the server-side upstream key. The chat endpoint lets a
	// request override it via the x-api-key header.
	APIKey string

	// NewCompleter builds an upstream client bound to an API key.
	NewCompleter func(apiKey string) extract.Completer

	// NewExtractor builds a profile extractor bound to an API key.
	NewExtractor func(apiKey string) ProfileExtractor

	// Model and Temperature are the defaults when the request carries no
	// generation config.
	Model       string
	Temperature float64
}

// NewHandler returns the HTTP handler for the chat and profile services.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Post("/v1/chat", handleChat(deps))
	r.Post("/v1/profile", handleProfile(deps))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		apiKey := r.Header.Get("x-api-key")
		if apiKey == "" {
			apiKey = deps.APIKey
		}
		if apiKey == "" {
			httpError(w, http.StatusUnauthorized, "authentication_error",
				"APIキーが設定されていません。環境変数 KAIWA_OPENAI_API_KEY を設定するか、リクエストヘッダーに x-api-key を含めてください。")
			return
		}

		var req chat.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if len(req.Messages) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "messages は必須です。")
			return
		}

		model := deps.Model
		temperature := deps.Temperature
		if req.Config != nil {
			if req.Config.Model != "" {
				model = req.Config.Model
			}
			if req.Config.Temperature != nil {
				temperature = *req.Config.Temperature
			}
		}

		messages := make([]llm.Message, 0, len(req.Messages)+1)
		messages = append(messages, llm.Message{Role: "system", Content: buildSystemPrompt(req.Profile)})
		for _, m := range req.Messages {
			messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
		}

		content, err := deps.NewCompleter(apiKey).ChatCompletion(r.Context(), llm.ChatCompletionRequest{
			Model:       model,
			Temperature: temperature,
			Messages:    messages,
		})
		if err != nil {
			slog.Warn("chat completion failed", "conversation_id", req.ConversationID, "error", err)
			httpError(w, http.StatusBadGateway, "api_error", "%v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chat.ChatResponse{
			Message: chat.ChatMessage{Role: chat.RoleAssistant, Content: content},
		})
	}
}

func handleProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		if deps.APIKey == "" {
			httpError(w, http.StatusUnauthorized, "authentication_error",
				"サーバーの環境変数 KAIWA_OPENAI_API_KEY が設定されていません。")
			return
		}

		var req chat.ProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if len(req.Messages) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "messages は必須です。")
			return
		}

		attrs, err := deps.NewExtractor(deps.APIKey).Extract(r.Context(), req.Messages, req.CurrentProfile)
		if err != nil {
			slog.Warn("profile extraction failed", "error", err)
			httpError(w, http.StatusBadGateway, "api_error", "%v", err)
			return
		}
		if attrs == nil {
			attrs = []chat.ProfileAttribute{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chat.ProfileResponse{Attributes: attrs})
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
