package transport

import (
	"portal_insights_backend/internal/assistant/domain"
	"portal_insights_backend/internal/assistant/tools"
)

type WelcomeRequest struct {
	SessionID string `json:"sessionId" validate:"omitempty,max=128"`
	Language  string `json:"language" validate:"omitempty,max=64"`
	OrgScope  string `json:"orgScope" validate:"omitempty,uuid"`
}

type ChatRequest struct {
	SessionID string `json:"sessionId" validate:"omitempty,max=128"`
	Message   string `json:"message" validate:"required,max=4000"`
	Language  string `json:"language" validate:"omitempty,max=64"`
	OrgScope  string `json:"orgScope" validate:"omitempty,uuid"`
}

type SessionResponse struct {
	Session domain.Session `json:"session"`
}

type ClearSessionResponse struct {
	Cleared bool `json:"cleared"`
}

type ToolCatalogResponse struct {
	Version string             `json:"version"`
	Tools   []tools.Descriptor `json:"tools"`
}
