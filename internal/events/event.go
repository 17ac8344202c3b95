// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"portal_insights_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Publisher   = events.Publisher
	Subscriber  = events.Subscriber
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// InMemoryBus is the in-process bus used by the composition roots.
type InMemoryBus = events.InMemoryBus

var NewInMemoryBus = events.NewInMemoryBus

// =============================================================================
// Assistant Domain Events
// =============================================================================

// AssistantActionExecuted is published after a tool call changed account data.
// Read-only tools never publish it.
type AssistantActionExecuted struct {
	BaseEvent
	AccountID  uuid.UUID  `json:"accountId"`
	OrgScope   *uuid.UUID `json:"orgScope,omitempty"`
	Tool       string     `json:"tool"`
	EntityType string     `json:"entityType,omitempty"`
	EntityID   *uuid.UUID `json:"entityId,omitempty"`
}

func (e AssistantActionExecuted) EventName() string { return "assistant.action.executed" }

// NewAssistantActionExecuted stamps the event with the current time.
func NewAssistantActionExecuted(accountID uuid.UUID, orgScope *uuid.UUID, tool, entityType string, entityID *uuid.UUID) AssistantActionExecuted {
	return AssistantActionExecuted{
		BaseEvent:  NewBaseEvent(),
		AccountID:  accountID,
		OrgScope:   orgScope,
		Tool:       tool,
		EntityType: entityType,
		EntityID:   entityID,
	}
}
