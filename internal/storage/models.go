package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Conversation is one chat thread. The title starts as the placeholder and
// is set exactly once, from the first user message.
type Conversation struct {
	ID        string
	Title     string
	CreatedAt time.Time
}

// Message is a single transcript entry. Messages are immutable once
// appended; their insertion order is the transcript order.
type Message struct {
	ID        string
	Role      string
	Content   string
	CreatedAt time.Time
}
