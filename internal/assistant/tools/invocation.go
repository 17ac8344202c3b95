package tools

import (
	"context"
	"encoding/json"
	"fmt"

	insightsdomain "portal_insights_backend/internal/insights/domain"
	"portal_insights_backend/platform/apperr"
)

// Invocation is one parsed tool call. The interface is sealed by the
// unexported invoke method: only the params types in this package satisfy
// it, and each must implement the operation to compile.
type Invocation interface {
	Name() string
	invoke(ctx context.Context, d *Dispatcher, scope insightsdomain.Scope) (outcome, error)
}

// outcome is what a successful invocation reports back to the dispatcher.
type outcome struct {
	message    string
	data       any
	changed    bool
	entityType insightsdomain.EntityType
	entityID   string
}

type normalizer interface {
	normalize()
}

type toolSpec struct {
	name        string
	description string
	new         func() Invocation
}

// catalog lists every tool in the order the model sees them.
var catalog = []toolSpec{
	{ToolListData, "Return a section of the account overview: leads, campaigns, properties, connections, tasks or recommendations.", func() Invocation { return &ListDataParams{} }},
	{ToolCreateTask, "Create a follow-up task, optionally linked to a lead.", func() Invocation { return &CreateTaskParams{} }},
	{ToolUpdateLeadStatus, "Move a lead to another funnel stage.", func() Invocation { return &UpdateLeadStatusParams{} }},
	{ToolPauseCampaign, "Pause an advertising campaign.", func() Invocation { return &PauseCampaignParams{} }},
	{ToolResumeCampaign, "Resume a paused advertising campaign.", func() Invocation { return &ResumeCampaignParams{} }},
	{ToolSendMessage, "Queue an email or WhatsApp message to a lead.", func() Invocation { return &SendMessageParams{} }},
	{ToolOpenEntity, "Return a link that opens a record in the app.", func() Invocation { return &OpenEntityParams{} }},
}

var registry = func() map[string]toolSpec {
	m := make(map[string]toolSpec, len(catalog))
	for _, spec := range catalog {
		m[spec.name] = spec
	}
	return m
}()

func (*ListDataParams) Name() string         { return ToolListData }
func (*CreateTaskParams) Name() string       { return ToolCreateTask }
func (*UpdateLeadStatusParams) Name() string { return ToolUpdateLeadStatus }
func (*PauseCampaignParams) Name() string    { return ToolPauseCampaign }
func (*ResumeCampaignParams) Name() string   { return ToolResumeCampaign }
func (*SendMessageParams) Name() string      { return ToolSendMessage }
func (*OpenEntityParams) Name() string       { return ToolOpenEntity }

// UnknownToolError is returned by Parse for a name outside the catalog.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// IsKnown reports whether name is in the catalog.
func IsKnown(name string) bool {
	_, ok := registry[name]
	return ok
}

// Parse decodes loosely typed model arguments into the tool's params type.
func Parse(name string, args map[string]any) (Invocation, error) {
	spec, ok := registry[name]
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}

	inv := spec.new()
	if len(args) > 0 {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, apperr.Validation(fmt.Sprintf("%s: arguments are not JSON encodable", name))
		}
		if err := json.Unmarshal(raw, inv); err != nil {
			return nil, apperr.Validation(fmt.Sprintf("%s: malformed arguments: %v", name, err))
		}
	}
	if n, ok := inv.(normalizer); ok {
		n.normalize()
	}
	return inv, nil
}
