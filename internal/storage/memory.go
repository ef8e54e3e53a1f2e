package storage

import "sync"

// MemoryStore keeps conversations and messages in process memory. It backs
// ephemeral sessions and tests; Store is the durable equivalent. All
// mutations go through a mutex so callers running on multiple goroutines
// keep the single-writer guarantee.
type MemoryStore struct {
	mu            sync.RWMutex
	order         []string // conversation ids, most-recent-first
	conversations map[string]Conversation
	messages      map[string][]Message
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]Conversation),
		messages:      make(map[string][]Message),
	}
}

// CreateConversation records a new conversation at the head of the list.
func (s *MemoryStore) CreateConversation(c Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations[c.ID] = c
	s.order = append([]string{c.ID}, s.order...)
	s.messages[c.ID] = nil
	return nil
}

// GetConversation returns the conversation with the given id.
func (s *MemoryStore) GetConversation(id string) (Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok {
		return Conversation{}, ErrNotFound
	}
	return c, nil
}

// ListConversations returns all conversations, most-recent-first.
func (s *MemoryStore) ListConversations() ([]Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Conversation, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.conversations[id])
	}
	return out, nil
}

// SetTitle updates the title of an existing conversation.
func (s *MemoryStore) SetTitle(id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok {
		return ErrNotFound
	}
	c.Title = title
	s.conversations[id] = c
	return nil
}

// AppendMessage appends a message to the conversation's transcript.
func (s *MemoryStore) AppendMessage(conversationID string, m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[conversationID]; !ok {
		return ErrNotFound
	}
	s.messages[conversationID] = append(s.messages[conversationID], m)
	return nil
}

// Messages returns the conversation's transcript in insertion order.
func (s *MemoryStore) Messages(conversationID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.conversations[conversationID]; !ok {
		return nil, ErrNotFound
	}
	msgs := s.messages[conversationID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}
