// Package domain holds the conversational types shared by the assistant
// packages: sessions, messages, tool calls and replies.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// FallbackModel marks replies produced without the language model.
const FallbackModel = "fallback"

// ToolCall is one function invocation requested by the model.
type ToolCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ToolResult reports the outcome of one ToolCall. Failures are values, never
// errors, so one failing call cannot abort the others.
type ToolResult struct {
	Tool    string `json:"tool"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type Metadata struct {
	Tokens     int    `json:"tokens"`
	Model      string `json:"model"`
	DurationMs int64  `json:"durationMs"`
}

type Message struct {
	ID          string       `json:"id"`
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	Timestamp   time.Time    `json:"timestamp"`
	ToolCalls   []ToolCall   `json:"toolCalls,omitempty"`
	ToolResults []ToolResult `json:"toolResults,omitempty"`
	Metadata    *Metadata    `json:"metadata,omitempty"`
}

type Session struct {
	ID        string    `json:"id"`
	AccountID uuid.UUID `json:"accountId"`
	Language  string    `json:"language"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Suggestion is a quick action the UI can render as a button. Prompt is the
// text sent as the next chat message when it is clicked.
type Suggestion struct {
	Label  string `json:"label"`
	Prompt string `json:"prompt"`
	Kind   string `json:"kind"`
}

type Reply struct {
	SessionID   string       `json:"sessionId,omitempty"`
	Message     string       `json:"message"`
	ToolCalls   []ToolCall   `json:"toolCalls,omitempty"`
	ToolResults []ToolResult `json:"toolResults,omitempty"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
	Language    string       `json:"language"`
	Metadata    Metadata     `json:"metadata"`
}

// IsFallback reports whether the reply was produced without the model.
func (r Reply) IsFallback() bool {
	return r.Metadata.Model == FallbackModel
}
