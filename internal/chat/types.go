// Package chat defines the wire types shared between the kaiwa services
// and their clients: chat messages, profile attributes, and the request/
// response bodies of the /v1/chat and /v1/profile endpoints.
package chat

// Message roles. The services only ever see these two; the system prompt
// is composed server-side and never appears in a transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// TitlePlaceholder is the title a conversation carries until its first
// user message arrives.
const TitlePlaceholder = "新しい会話"

// MaxTitleLen is the number of code points kept when deriving a
// conversation title from its first user message.
const MaxTitleLen = 30

// ChatMessage is one entry of a transcript: the {role, content} projection
// sent to the services. Internal ids and timestamps never cross the wire.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ProfileAttribute is a single inferred user trait. Keys are not unique
// within a profile; deletion treats the key as the identity.
type ProfileAttribute struct {
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// GenerationConfig carries per-request model overrides.
type GenerationConfig struct {
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	ConversationID string             `json:"conversationId"`
	Messages       []ChatMessage      `json:"messages"`
	Profile        []ProfileAttribute `json:"profile,omitempty"`
	Config         *GenerationConfig  `json:"config,omitempty"`
}

// ChatResponse is the body of a successful POST /v1/chat.
type ChatResponse struct {
	Message ChatMessage `json:"message"`
}

// ProfileRequest is the body of POST /v1/profile.
type ProfileRequest struct {
	Messages       []ChatMessage      `json:"messages"`
	CurrentProfile []ProfileAttribute `json:"currentProfile,omitempty"`
}

// ProfileResponse is the body of a successful POST /v1/profile.
type ProfileResponse struct {
	Attributes []ProfileAttribute `json:"attributes"`
}

// TruncateTitle shortens s to at most MaxTitleLen code points. Truncation
// happens on rune boundaries so multi-byte text is never corrupted.
func TruncateTitle(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxTitleLen {
		return s
	}
	return string(runes[:MaxTitleLen])
}
