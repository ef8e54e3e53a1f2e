// Package session implements the conversation orchestrator: it owns the
// conversation list, the learned profile, and the send flow that ties a
// user submit to a service reply and the periodic profile refresh.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/kaiwa/internal/chat"
	"github.com/kalambet/kaiwa/internal/profile"
	"github.com/kalambet/kaiwa/internal/responder"
	"github.com/kalambet/kaiwa/internal/storage"
)

// RefreshInterval is how many completed exchanges pass between profile
// refreshes.
const RefreshInterval = 5

// ErrorPrefix marks a synthesized assistant message carrying a failure
// reason instead of a real reply.
const ErrorPrefix = "⚠️ "

// ConversationStore is the persistence surface the session needs.
// Implemented by storage.MemoryStore and storage.Store.
type ConversationStore interface {
	CreateConversation(c storage.Conversation) error
	GetConversation(id string) (storage.Conversation, error)
	ListConversations() ([]storage.Conversation, error)
	SetTitle(id, title string) error
	AppendMessage(conversationID string, m storage.Message) error
	Messages(conversationID string) ([]storage.Message, error)
}

// ProfileRefresher re-derives the profile from a transcript.
// Implemented by responder.ProfileClient.
type ProfileRefresher interface {
	Refresh(ctx context.Context, req chat.ProfileRequest) ([]chat.ProfileAttribute, error)
}

// Config wires a Session.
type Config struct {
	Store     ConversationStore
	Profile   *profile.Manager
	Responder responder.Responder

	// Refresher may be nil; without one (mock mode) no refresh ever runs.
	Refresher ProfileRefresher

	// Mock disables profile refresh; canned replies teach the profile
	// nothing.
	Mock bool

	Model       string
	Temperature float64
}

// Session coordinates one user's conversations. State lives in explicit
// fields rather than globals; a mutex keeps the single-writer guarantee
// the event-driven original got for free.
type Session struct {
	store     ConversationStore
	profile   *profile.Manager
	responder responder.Responder
	refresher ProfileRefresher
	mock      bool

	model       string
	temperature float64

	mu        sync.Mutex
	activeID  string
	awaiting  bool
	exchanges int

	refreshWG sync.WaitGroup
}

// New creates a Session from cfg.
func New(cfg Config) *Session {
	return &Session{
		store:       cfg.Store,
		profile:     cfg.Profile,
		responder:   cfg.Responder,
		refresher:   cfg.Refresher,
		mock:        cfg.Mock,
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}
}

// NewConversation creates an empty conversation with the placeholder title
// and makes it active.
func (s *Session) NewConversation() (storage.Conversation, error) {
	c := storage.Conversation{
		ID:        uuid.New().String(),
		Title:     chat.TitlePlaceholder,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateConversation(c); err != nil {
		return storage.Conversation{}, err
	}

	s.mu.Lock()
	s.activeID = c.ID
	s.mu.Unlock()
	return c, nil
}

// SelectConversation makes an existing conversation active.
func (s *Session) SelectConversation(id string) error {
	if _, err := s.store.GetConversation(id); err != nil {
		return err
	}
	s.mu.Lock()
	s.activeID = id
	s.mu.Unlock()
	return nil
}

// ActiveConversation returns the active conversation id ("" when none).
func (s *Session) ActiveConversation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Conversations lists all conversations, most-recent-first.
func (s *Session) Conversations() ([]storage.Conversation, error) {
	return s.store.ListConversations()
}

// Messages returns a conversation's transcript.
func (s *Session) Messages(conversationID string) ([]storage.Message, error) {
	return s.store.Messages(conversationID)
}

// Profile returns the current profile attributes.
func (s *Session) Profile() []chat.ProfileAttribute {
	return s.profile.List()
}

// ProfileSummary returns the profile as a compact display string.
func (s *Session) ProfileSummary() string {
	return s.profile.Summary()
}

// ReplaceProfile swaps in a new attribute set wholesale.
func (s *Session) ReplaceProfile(attrs []chat.ProfileAttribute) {
	s.profile.Replace(attrs)
}

// DeleteProfileAttribute removes every attribute with the given key,
// synchronously and without any service call.
func (s *Session) DeleteProfileAttribute(key string) {
	s.profile.Delete(key)
}

// Awaiting reports whether a submit is in flight; the caller disables
// resubmission while it is true.
func (s *Session) Awaiting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.awaiting
}

func (s *Session) setAwaiting(v bool) {
	s.mu.Lock()
	s.awaiting = v
	s.mu.Unlock()
}

// Submit runs one user submit end-to-end: append the user message, derive
// the title on first use, resolve a reply, and append it — or a synthesized
// error message, so the transcript always grows by exactly two. Every 5th
// completed exchange (live mode only) kicks off a background profile
// refresh that Submit does not wait for.
func (s *Session) Submit(ctx context.Context, conversationID, text string) error {
	conv, err := s.store.GetConversation(conversationID)
	if err != nil {
		return err
	}

	userMsg := storage.Message{
		ID:        uuid.New().String(),
		Role:      chat.RoleUser,
		Content:   text,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.AppendMessage(conversationID, userMsg); err != nil {
		return err
	}

	if conv.Title == chat.TitlePlaceholder {
		if err := s.store.SetTitle(conversationID, chat.TruncateTitle(text)); err != nil {
			return err
		}
	}

	s.setAwaiting(true)
	defer s.setAwaiting(false)

	transcript, err := s.transcript(conversationID)
	if err != nil {
		return err
	}

	req := chat.ChatRequest{
		ConversationID: conversationID,
		Messages:       transcript,
		Config: &chat.GenerationConfig{
			Model:       s.model,
			Temperature: &s.temperature,
		},
	}
	if attrs := s.profile.List(); len(attrs) > 0 {
		req.Profile = attrs
	}

	reply, err := s.responder.Respond(ctx, req)
	if err != nil {
		// Failures become part of the transcript; the user retries by
		// resubmitting.
		errMsg := storage.Message{
			ID:        uuid.New().String(),
			Role:      chat.RoleAssistant,
			Content:   ErrorPrefix + err.Error(),
			CreatedAt: time.Now().UTC(),
		}
		return s.store.AppendMessage(conversationID, errMsg)
	}

	replyMsg := storage.Message{
		ID:        uuid.New().String(),
		Role:      reply.Role,
		Content:   reply.Content,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.AppendMessage(conversationID, replyMsg); err != nil {
		return err
	}

	s.mu.Lock()
	s.exchanges++
	due := !s.mock && s.refresher != nil && s.exchanges%RefreshInterval == 0
	s.mu.Unlock()

	if due {
		updated, err := s.transcript(conversationID)
		if err != nil {
			return nil
		}
		s.refreshProfile(updated)
	}

	return nil
}

// Exchanges returns the number of completed exchanges this session.
func (s *Session) Exchanges() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exchanges
}

// refreshProfile re-derives the profile in the background. The submit that
// triggered it never waits; a refresh landing after later submits simply
// wins (last-refresh-wins). Failures are dropped without a trace — profile
// learning is an enhancement, and the user is never told it failed.
func (s *Session) refreshProfile(transcript []chat.ChatMessage) {
	req := chat.ProfileRequest{Messages: transcript}
	if attrs := s.profile.List(); len(attrs) > 0 {
		req.CurrentProfile = attrs
	}

	s.refreshWG.Add(1)
	go func() {
		defer s.refreshWG.Done()

		attrs, err := s.refresher.Refresh(context.Background(), req)
		if err != nil {
			return
		}
		s.profile.Replace(attrs)
	}()
}

// Wait blocks until in-flight profile refreshes finish. Used on shutdown
// and by tests; Submit itself never calls it.
func (s *Session) Wait() {
	s.refreshWG.Wait()
}

// transcript projects a conversation's messages to {role, content} pairs.
func (s *Session) transcript(conversationID string) ([]chat.ChatMessage, error) {
	msgs, err := s.store.Messages(conversationID)
	if err != nil {
		return nil, err
	}
	out := make([]chat.ChatMessage, len(msgs))
	for i, m := range msgs {
		out[i] = chat.ChatMessage{Role: m.Role, Content: m.Content}
	}
	return out, nil
}
