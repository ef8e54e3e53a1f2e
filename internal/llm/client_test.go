package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func completionJSON(content string) string {
	return fmt.Sprintf(`{"id":"gen-1","choices":[{"message":{"role":"assistant","content":%q}}]}`, content)
}

func testRequest() ChatCompletionRequest {
	return ChatCompletionRequest{
		Model:       "gpt-4o-mini",
		Temperature: 0.7,
		Messages:    []Message{{Role: "user", Content: "こんにちは"}},
	}
}

func TestChatCompletion(t *testing.T) {
	var gotAuth string
	var gotBody ChatCompletionRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		fmt.Fprint(w, completionJSON("はい、こんにちは！"))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", srv.URL)
	content, err := c.ChatCompletion(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("ChatCompletion: %v", err)
	}

	if content != "はい、こんにちは！" {
		t.Errorf("content = %q", content)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody.Model != "gpt-4o-mini" || len(gotBody.Messages) != 1 {
		t.Errorf("forwarded body = %+v", gotBody)
	}
}

func TestChatCompletion_RetriesOn429(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, completionJSON("ok"))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", srv.URL)
	content, err := c.ChatCompletion(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("ChatCompletion: %v", err)
	}
	if content != "ok" {
		t.Errorf("content = %q", content)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestChatCompletion_NoRetryOnOtherErrors(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"boom"}}`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", srv.URL)
	_, err := c.ChatCompletion(context.Background(), testRequest())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("err = %v, want status in message", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 500)", calls.Load())
	}
}

func TestChatCompletion_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"gen-1","choices":[]}`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", srv.URL)
	if _, err := c.ChatCompletion(context.Background(), testRequest()); err == nil {
		t.Fatal("expected error on empty choices")
	}
}

func TestWithAPIKey(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, completionJSON("ok"))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("server-key", srv.URL)
	if _, err := c.WithAPIKey("request-key").ChatCompletion(context.Background(), testRequest()); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer request-key" {
		t.Errorf("Authorization = %q, want request-key override", gotAuth)
	}
	// Original client keeps its own key.
	if _, err := c.ChatCompletion(context.Background(), testRequest()); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer server-key" {
		t.Errorf("Authorization = %q, want server-key", gotAuth)
	}
}
