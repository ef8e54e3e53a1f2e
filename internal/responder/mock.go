package responder

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/kalambet/kaiwa/internal/chat"
)

// mockLatency simulates the round trip to a real model.
const mockLatency = 1000 * time.Millisecond

// mockPool is the fixed set of canned replies.
var mockPool = []string{
	"なるほど、良い質問ですね！詳しく説明しましょう。",
	"それについてはいくつかのアプローチがあります。まず最も一般的な方法から説明します。",
	"はい、その理解で合っています。補足すると、パフォーマンスの観点からも重要なポイントがあります。",
	"実際のプロジェクトでは、そのパターンをよく使います。具体例をお見せしましょう。",
	"素晴らしい着眼点です。その点について、もう少し深掘りしてみましょう。",
}

// Mock replies from a fixed pool after a simulated delay. No external
// service is ever called.
type Mock struct {
	delay time.Duration
	pool  []string
	intn  func(n int) int
}

// NewMock returns a Mock with the standard pool and a 1s simulated latency.
func NewMock() *Mock {
	return &Mock{
		delay: mockLatency,
		pool:  mockPool,
		intn:  rand.IntN,
	}
}

// NewMockWithOptions returns a Mock with injectable latency and picker
// (for tests).
func NewMockWithOptions(delay time.Duration, intn func(n int) int) *Mock {
	return &Mock{delay: delay, pool: mockPool, intn: intn}
}

// Respond waits out the simulated latency, then picks a reply uniformly
// at random. Cancellation cuts the wait short.
func (m *Mock) Respond(ctx context.Context, req chat.ChatRequest) (chat.ChatMessage, error) {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return chat.ChatMessage{}, ctx.Err()
		case <-time.After(m.delay):
		}
	}

	content := m.pool[m.intn(len(m.pool))]
	return chat.ChatMessage{Role: chat.RoleAssistant, Content: content}, nil
}
