package tools

import (
	"strings"

	"portal_insights_backend/platform/sanitize"
)

// Tool names. The set is closed: adding a tool means adding a params type
// below and a registry entry in invocation.go.
const (
	ToolListData         = "list_data"
	ToolCreateTask       = "create_task"
	ToolUpdateLeadStatus = "update_lead_status"
	ToolPauseCampaign    = "pause_campaign"
	ToolResumeCampaign   = "resume_campaign"
	ToolSendMessage      = "send_message"
	ToolOpenEntity       = "open_entity"
)

// Params structs are shared by the model-facing schema and by validation.
// The desc tag becomes the JSON schema description.

type ListDataParams struct {
	Domain string `json:"domain" validate:"required,oneof=leads campaigns properties connections tasks recommendations" desc:"Which part of the account overview to return"`
	Limit  int    `json:"limit,omitempty" validate:"omitempty,min=1,max=20" desc:"Maximum number of items to return"`
}

type CreateTaskParams struct {
	Title       string `json:"title" validate:"required,min=3,max=200" desc:"Short imperative task title"`
	Description string `json:"description,omitempty" validate:"omitempty,max=2000" desc:"Optional details"`
	Priority    string `json:"priority,omitempty" validate:"omitempty,oneof=low medium high" desc:"Task priority, defaults to medium"`
	DueDate     string `json:"dueDate,omitempty" validate:"omitempty,max=40" desc:"Due date as YYYY-MM-DD or an RFC 3339 timestamp"`
	LeadID      string `json:"leadId,omitempty" validate:"omitempty,uuid" desc:"Lead the task is about"`
}

func (p *CreateTaskParams) normalize() {
	p.Title = sanitize.Line(p.Title)
	p.Description = sanitize.Text(p.Description)
	p.Priority = strings.ToLower(strings.TrimSpace(p.Priority))
}

type UpdateLeadStatusParams struct {
	LeadID string `json:"leadId" validate:"required,uuid" desc:"Lead to update"`
	Status string `json:"status" validate:"required,oneof=NEW CONTACTED QUALIFIED VIEWING PROPOSAL NEGOTIATION WON LOST CLOSED" desc:"New funnel stage"`
}

func (p *UpdateLeadStatusParams) normalize() {
	p.Status = strings.ToUpper(strings.TrimSpace(p.Status))
}

type PauseCampaignParams struct {
	CampaignID string `json:"campaignId" validate:"required,uuid" desc:"Campaign to pause"`
}

type ResumeCampaignParams struct {
	CampaignID string `json:"campaignId" validate:"required,uuid" desc:"Campaign to resume"`
}

type SendMessageParams struct {
	LeadID  string `json:"leadId" validate:"required,uuid" desc:"Lead to contact"`
	Channel string `json:"channel" validate:"required,oneof=email whatsapp" desc:"Delivery channel"`
	Subject string `json:"subject,omitempty" validate:"omitempty,max=200" desc:"Email subject, ignored for WhatsApp"`
	Content string `json:"content" validate:"required,min=1,max=4000" desc:"Message body"`
}

func (p *SendMessageParams) normalize() {
	p.Channel = strings.ToLower(strings.TrimSpace(p.Channel))
	p.Subject = sanitize.Line(p.Subject)
	p.Content = sanitize.Text(p.Content)
}

type OpenEntityParams struct {
	EntityType string `json:"entityType" validate:"required,oneof=lead campaign property connection task" desc:"Kind of record to open"`
	EntityID   string `json:"entityId" validate:"required,uuid" desc:"Record id"`
}

func (p *OpenEntityParams) normalize() {
	p.EntityType = strings.ToLower(strings.TrimSpace(p.EntityType))
}
