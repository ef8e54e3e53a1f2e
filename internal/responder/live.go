package responder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kalambet/kaiwa/internal/chat"
)

// clientTimeout bounds every service call so a hung service surfaces as an
// ordinary failure instead of leaving the session stuck.
const clientTimeout = 60 * time.Second

// ChatClient calls the live chat service over HTTP.
type ChatClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewChatClient creates a client for the chat service at baseURL.
func NewChatClient(baseURL string) *ChatClient {
	return &ChatClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: clientTimeout},
	}
}

// Respond posts the request to /v1/chat and returns the assistant reply.
func (c *ChatClient) Respond(ctx context.Context, req chat.ChatRequest) (chat.ChatMessage, error) {
	var resp chat.ChatResponse
	if err := postJSON(ctx, c.httpClient, c.baseURL+"/v1/chat", req, &resp); err != nil {
		return chat.ChatMessage{}, err
	}
	return resp.Message, nil
}

// ProfileClient calls the live profile service over HTTP.
type ProfileClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewProfileClient creates a client for the profile service at baseURL.
func NewProfileClient(baseURL string) *ProfileClient {
	return &ProfileClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: clientTimeout},
	}
}

// Refresh posts the transcript to /v1/profile and returns the revised
// attribute list.
func (c *ProfileClient) Refresh(ctx context.Context, req chat.ProfileRequest) ([]chat.ProfileAttribute, error) {
	var resp chat.ProfileResponse
	if err := postJSON(ctx, c.httpClient, c.baseURL+"/v1/profile", req, &resp); err != nil {
		return nil, err
	}
	return resp.Attributes, nil
}

// errorEnvelope is the service error body: {"error":{"message","type"}}.
type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func postJSON(ctx context.Context, client *http.Client, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshalling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("calling service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var envelope errorEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil || envelope.Error.Message == "" {
			return &ServiceError{Status: resp.StatusCode}
		}
		return &ServiceError{Status: resp.StatusCode, Message: envelope.Error.Message}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
