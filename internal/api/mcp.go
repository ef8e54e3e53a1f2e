package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/kaiwa/internal/chat"
	"github.com/kalambet/kaiwa/internal/storage"
)

// MCPSession abstracts the conversation session for the MCP layer.
type MCPSession interface {
	ActiveConversation() string
	NewConversation() (storage.Conversation, error)
	SelectConversation(id string) error
	Conversations() ([]storage.Conversation, error)
	Messages(conversationID string) ([]storage.Message, error)
	Submit(ctx context.Context, conversationID, text string) error
	Profile() []chat.ProfileAttribute
	DeleteProfileAttribute(key string)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Session MCPSession
}

// NewMCPServer creates an MCP server with all kaiwa tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"kaiwa",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("kaiwa — conversational assistant with per-session conversations and a learned user profile."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("chat_send",
			mcp.WithDescription("Send a message to the assistant and return its reply. Starts a new conversation when none is active."),
			mcp.WithString("message", mcp.Description("The user message text"), mcp.Required()),
			mcp.WithString("conversation_id", mcp.Description("Target conversation; defaults to the active one")),
		),
		mcpChatSend(deps),
	)

	s.AddTool(
		mcp.NewTool("conversation_list",
			mcp.WithDescription("List conversations, most recent first, as JSON."),
		),
		mcpConversationList(deps),
	)

	s.AddTool(
		mcp.NewTool("profile_show",
			mcp.WithDescription("Return the learned user profile attributes as JSON."),
		),
		mcpProfileShow(deps),
	)

	s.AddTool(
		mcp.NewTool("profile_forget",
			mcp.WithDescription("Remove all profile attributes stored under a key."),
			mcp.WithString("key", mcp.Description("Attribute key to forget (e.g. 技術レベル)"), mcp.Required()),
		),
		mcpProfileForget(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"user://profile",
			"User Profile",
			mcp.WithResourceDescription("Current learned user profile as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProfile(deps),
	)

	return s
}

func mcpChatSend(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}

		conversationID := req.GetString("conversation_id", "")
		if conversationID == "" {
			conversationID = deps.Session.ActiveConversation()
		}
		if conversationID == "" {
			conv, err := deps.Session.NewConversation()
			if err != nil {
				return mcpError(fmt.Sprintf("failed to create conversation: %v", err)), nil
			}
			conversationID = conv.ID
		}

		if err := deps.Session.Submit(ctx, conversationID, message); err != nil {
			return mcpError(fmt.Sprintf("send failed: %v", err)), nil
		}

		msgs, err := deps.Session.Messages(conversationID)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to read conversation: %v", err)), nil
		}
		if len(msgs) == 0 {
			return mcpError("conversation is empty after send"), nil
		}
		// The reply is always the last message: either the assistant's answer
		// or the in-transcript error notice.
		return mcpText(msgs[len(msgs)-1].Content), nil
	}
}

func mcpConversationList(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		convs, err := deps.Session.Conversations()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list conversations: %v", err)), nil
		}
		if len(convs) == 0 {
			return mcpText("[]"), nil
		}

		type convResult struct {
			ID        string `json:"id"`
			Title     string `json:"title"`
			CreatedAt string `json:"created_at"`
			Active    bool   `json:"active,omitempty"`
		}

		active := deps.Session.ActiveConversation()
		results := make([]convResult, len(convs))
		for i, c := range convs {
			results[i] = convResult{
				ID:        c.ID,
				Title:     c.Title,
				CreatedAt: c.CreatedAt.Format(time.RFC3339),
				Active:    c.ID == active,
			}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal conversations: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpProfileShow(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		attrs := deps.Session.Profile()
		if len(attrs) == 0 {
			return mcpText("[]"), nil
		}
		b, err := json.Marshal(attrs)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal profile: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpProfileForget(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := req.RequireString("key")
		if err != nil {
			return mcpError("key is required"), nil
		}
		deps.Session.DeleteProfileAttribute(key)
		return mcpText(fmt.Sprintf("Forgot profile attributes under %q", key)), nil
	}
}

func mcpResourceProfile(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		attrs := deps.Session.Profile()
		if attrs == nil {
			attrs = []chat.ProfileAttribute{}
		}
		b, err := json.Marshal(attrs)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profile: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
