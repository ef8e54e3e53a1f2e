package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/kaiwa/internal/chat"
	"github.com/kalambet/kaiwa/internal/extract"
	"github.com/kalambet/kaiwa/internal/llm"
)

type stubCompleter struct {
	content string
	err     error

	gotKey string
	gotReq llm.ChatCompletionRequest
}

func (s *stubCompleter) ChatCompletion(ctx context.Context, req llm.ChatCompletionRequest) (string, error) {
	s.gotReq = req
	return s.content, s.err
}

type stubExtractor struct {
	attrs []chat.ProfileAttribute
	err   error
}

func (s *stubExtractor) Extract(ctx context.Context, messages []chat.ChatMessage, current []chat.ProfileAttribute) ([]chat.ProfileAttribute, error) {
	return s.attrs, s.err
}

func testDeps(completer *stubCompleter, extractor *stubExtractor) Deps {
	return Deps{
		APIKey: "server-key",
		NewCompleter: func(apiKey string) extract.Completer {
			completer.gotKey = apiKey
			return completer
		},
		NewExtractor: func(apiKey string) ProfileExtractor {
			return extractor
		},
		Model:       "gpt-4o-mini",
		Temperature: 0.7,
	}
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	return body.Error.Message
}

func TestHealth(t *testing.T) {
	h := NewHandler(testDeps(&stubCompleter{}, &stubExtractor{}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body map[string]string
	json.NewDecoder(rr.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestChat_Success(t *testing.T) {
	completer := &stubCompleter{content: "App Routerは新しいルーティングシステムです。"}
	h := NewHandler(testDeps(completer, &stubExtractor{}))

	body := `{"conversationId":"c1","messages":[{"role":"user","content":"App Routerとは何ですか？"}]}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(body)))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}

	var resp chat.ChatResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Message.Role != chat.RoleAssistant {
		t.Errorf("role = %q", resp.Message.Role)
	}
	if resp.Message.Content != completer.content {
		t.Errorf("content = %q", resp.Message.Content)
	}

	// System prompt precedes the transcript.
	if len(completer.gotReq.Messages) != 2 || completer.gotReq.Messages[0].Role != "system" {
		t.Fatalf("upstream messages = %+v", completer.gotReq.Messages)
	}
	if completer.gotKey != "server-key" {
		t.Errorf("upstream key = %q", completer.gotKey)
	}
}

func TestChat_ProfileShapesSystemPrompt(t *testing.T) {
	completer := &stubCompleter{content: "ok"}
	h := NewHandler(testDeps(completer, &stubExtractor{}))

	body := `{"conversationId":"c1",
		"messages":[{"role":"user","content":"hi"}],
		"profile":[{"key":"技術レベル","value":"上級","confidence":0.8}]}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(body)))

	system := completer.gotReq.Messages[0].Content
	if !strings.Contains(system, "技術レベル: 上級 (確信度: 80%)") {
		t.Errorf("system prompt missing profile line: %q", system)
	}
}

func TestChat_ConfigOverrides(t *testing.T) {
	completer := &stubCompleter{content: "ok"}
	h := NewHandler(testDeps(completer, &stubExtractor{}))

	body := `{"conversationId":"c1",
		"messages":[{"role":"user","content":"hi"}],
		"config":{"model":"gpt-4o","temperature":0.2}}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(body)))

	if completer.gotReq.Model != "gpt-4o" {
		t.Errorf("model = %q", completer.gotReq.Model)
	}
	if completer.gotReq.Temperature != 0.2 {
		t.Errorf("temperature = %v", completer.gotReq.Temperature)
	}
}

func TestChat_HeaderKeyOverride(t *testing.T) {
	completer := &stubCompleter{content: "ok"}
	h := NewHandler(testDeps(completer, &stubExtractor{}))

	body := `{"conversationId":"c1","messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(body))
	req.Header.Set("x-api-key", "header-key")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if completer.gotKey != "header-key" {
		t.Errorf("upstream key = %q, want header override", completer.gotKey)
	}
}

func TestChat_MissingKey(t *testing.T) {
	deps := testDeps(&stubCompleter{}, &stubExtractor{})
	deps.APIKey = ""
	h := NewHandler(deps)

	body := `{"conversationId":"c1","messages":[{"role":"user","content":"hi"}]}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(body)))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if msg := decodeError(t, rr); !strings.Contains(msg, "APIキー") {
		t.Errorf("error message = %q", msg)
	}
}

func TestChat_EmptyMessages(t *testing.T) {
	h := NewHandler(testDeps(&stubCompleter{}, &stubExtractor{}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"conversationId":"c1","messages":[]}`)))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestChat_InvalidBody(t *testing.T) {
	h := NewHandler(testDeps(&stubCompleter{}, &stubExtractor{}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{not json`)))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestChat_UpstreamFailure(t *testing.T) {
	completer := &stubCompleter{err: errors.New("unexpected status 500")}
	h := NewHandler(testDeps(completer, &stubExtractor{}))

	body := `{"conversationId":"c1","messages":[{"role":"user","content":"hi"}]}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(body)))

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rr.Code)
	}
	if msg := decodeError(t, rr); !strings.Contains(msg, "unexpected status 500") {
		t.Errorf("error message = %q, want upstream reason", msg)
	}
}

func TestProfile_Success(t *testing.T) {
	extractor := &stubExtractor{attrs: []chat.ProfileAttribute{
		{Key: "技術レベル", Value: "中級", Confidence: 0.7},
	}}
	h := NewHandler(testDeps(&stubCompleter{}, extractor))

	body := `{"messages":[{"role":"user","content":"TypeScriptについて"}]}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/profile", strings.NewReader(body)))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	var resp chat.ProfileResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Attributes) != 1 || resp.Attributes[0].Key != "技術レベル" {
		t.Errorf("attributes = %+v", resp.Attributes)
	}
}

func TestProfile_EmptyResultIsEmptyArray(t *testing.T) {
	h := NewHandler(testDeps(&stubCompleter{}, &stubExtractor{}))

	body := `{"messages":[{"role":"user","content":"hi"}]}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/profile", strings.NewReader(body)))

	if !strings.Contains(rr.Body.String(), `"attributes":[]`) {
		t.Errorf("body = %s, want empty attributes array, not null", rr.Body)
	}
}

func TestProfile_MissingServerKey(t *testing.T) {
	deps := testDeps(&stubCompleter{}, &stubExtractor{})
	deps.APIKey = ""
	h := NewHandler(deps)

	body := `{"messages":[{"role":"user","content":"hi"}]}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/profile", strings.NewReader(body)))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestProfile_ExtractionFailure(t *testing.T) {
	extractor := &stubExtractor{err: errors.New("parsing extraction result: invalid character")}
	h := NewHandler(testDeps(&stubCompleter{}, extractor))

	body := `{"messages":[{"role":"user","content":"hi"}]}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/profile", strings.NewReader(body)))

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502 (parse failure handled as upstream failure)", rr.Code)
	}
}
