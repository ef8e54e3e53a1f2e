// Package responder provides the response source for a chat session: a
// deterministic local mock or the live chat service. The orchestrator's
// control flow is identical in both modes; the choice is made once, at
// construction.
package responder

import (
	"context"
	"fmt"

	"github.com/kalambet/kaiwa/internal/chat"
)

// Responder resolves one chat request into one assistant reply.
type Responder interface {
	Respond(ctx context.Context, req chat.ChatRequest) (chat.ChatMessage, error)
}

// ServiceError is a failure reported by the chat or profile service,
// carrying its HTTP-style status and human-readable message.
type ServiceError struct {
	Status  int
	Message string
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("service error (HTTP %d)", e.Status)
}
