// Package openaicompat adapts any OpenAI-compatible /chat/completions endpoint
// to the ADK model.LLM interface.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"

	// RawArgsKey holds the unparsed argument string when a tool call's
	// arguments are not valid JSON.
	RawArgsKey = "_raw"
)

// Config for an OpenAI-compatible provider.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Model adapts an OpenAI-compatible API to the ADK model.LLM interface.
type Model struct {
	config Config
	client *http.Client
}

// NewModel fills in defaults and returns the adapter.
func NewModel(cfg Config) *Model {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	return &Model{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (m *Model) Name() string {
	return m.config.Model
}

// GenerateContent sends one non-streaming completion request.
func (m *Model) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		resp, err := m.generate(ctx, req)
		yield(resp, err)
	}
}

type chatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type toolCall struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Function toolCallDetail `json:"function"`
}

type toolCallDetail struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type toolDef struct {
	Type     string      `json:"type"`
	Function toolDefFunc `json:"function"`
}

type toolDefFunc struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Parameters  interface{} `json:"parameters,omitempty"`
}

type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []toolDef     `json:"tools,omitempty"`
	ToolChoice  string        `json:"tool_choice,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type completionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role      string     `json:"role"`
			Content   string     `json:"content"`
			ToolCalls []toolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int32 `json:"prompt_tokens"`
		CompletionTokens int32 `json:"completion_tokens"`
		TotalTokens      int32 `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (m *Model) generate(ctx context.Context, req *model.LLMRequest) (*model.LLMResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("openaicompat: nil request")
	}

	payload := completionRequest{
		Model:    m.config.Model,
		Messages: append(systemMessages(req.Config), convertMessages(req.Contents)...),
		Tools:    convertTools(req.Config),
	}
	if len(payload.Tools) > 0 {
		payload.ToolChoice = "auto"
	}
	if req.Config != nil && req.Config.Temperature != nil {
		t := float64(*req.Config.Temperature)
		payload.Temperature = &t
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("openaicompat: marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openaicompat: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if m.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+m.config.APIKey)
	}

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openaicompat: request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("openaicompat: provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var result completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("openaicompat: decode response: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("openaicompat: api error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("openaicompat: empty choices")
	}

	choice := result.Choices[0].Message
	parts := make([]*genai.Part, 0, 1+len(choice.ToolCalls))
	if strings.TrimSpace(choice.Content) != "" {
		parts = append(parts, genai.NewPartFromText(choice.Content))
	}
	for _, tc := range choice.ToolCalls {
		parts = append(parts, &genai.Part{
			FunctionCall: &genai.FunctionCall{
				ID:   tc.ID,
				Name: tc.Function.Name,
				Args: parseArguments(tc.Function.Arguments),
			},
		})
	}

	out := &model.LLMResponse{
		Content: &genai.Content{
			Role:  genai.RoleModel,
			Parts: parts,
		},
		TurnComplete: true,
	}
	if result.Usage != nil {
		out.UsageMetadata = &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     result.Usage.PromptTokens,
			CandidatesTokenCount: result.Usage.CompletionTokens,
			TotalTokenCount:      result.Usage.TotalTokens,
		}
	}
	return out, nil
}

// parseArguments never fails: malformed JSON is kept under RawArgsKey so the
// caller can decide whether to drop the call.
func parseArguments(raw string) map[string]any {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{RawArgsKey: raw}
	}
	return args
}

func systemMessages(cfg *genai.GenerateContentConfig) []chatMessage {
	if cfg == nil || cfg.SystemInstruction == nil {
		return nil
	}
	text, _, _ := extractContentMessages(cfg.SystemInstruction)
	if text == "" {
		return nil
	}
	return []chatMessage{{Role: "system", Content: text}}
}

func convertMessages(contents []*genai.Content) []chatMessage {
	messages := make([]chatMessage, 0, len(contents))
	for _, content := range contents {
		if content == nil {
			continue
		}

		text, calls, toolMessages := extractContentMessages(content)
		messages = append(messages, toolMessages...)
		if text != "" || len(calls) > 0 {
			messages = append(messages, chatMessage{
				Role:      roleForContent(content.Role),
				Content:   text,
				ToolCalls: calls,
			})
		}
	}
	return messages
}

func roleForContent(role string) string {
	if role == genai.RoleModel {
		return "assistant"
	}
	return "user"
}

func extractContentMessages(content *genai.Content) (string, []toolCall, []chatMessage) {
	var calls []toolCall
	var toolMessages []chatMessage
	var text strings.Builder

	for _, part := range content.Parts {
		if part == nil {
			continue
		}
		if part.FunctionResponse != nil {
			payload, _ := json.Marshal(part.FunctionResponse.Response)
			toolMessages = append(toolMessages, chatMessage{
				Role:       "tool",
				ToolCallID: part.FunctionResponse.ID,
				Name:       part.FunctionResponse.Name,
				Content:    string(payload),
			})
			continue
		}
		if part.FunctionCall != nil {
			args, _ := json.Marshal(part.FunctionCall.Args)
			calls = append(calls, toolCall{
				ID:   part.FunctionCall.ID,
				Type: "function",
				Function: toolCallDetail{
					Name:      part.FunctionCall.Name,
					Arguments: string(args),
				},
			})
			continue
		}
		if strings.TrimSpace(part.Text) == "" {
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n")
		}
		text.WriteString(part.Text)
	}

	return strings.TrimSpace(text.String()), calls, toolMessages
}

func convertTools(cfg *genai.GenerateContentConfig) []toolDef {
	if cfg == nil || len(cfg.Tools) == 0 {
		return nil
	}

	var tools []toolDef
	for _, gt := range cfg.Tools {
		if gt == nil {
			continue
		}
		for _, decl := range gt.FunctionDeclarations {
			if decl == nil || decl.Name == "" {
				continue
			}
			var params interface{}
			switch {
			case decl.ParametersJsonSchema != nil:
				params = decl.ParametersJsonSchema
			case decl.Parameters != nil:
				params = decl.Parameters
			}
			tools = append(tools, toolDef{
				Type: "function",
				Function: toolDefFunc{
					Name:        decl.Name,
					Description: decl.Description,
					Parameters:  params,
				},
			})
		}
	}
	return tools
}
