package openaicompat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

func TestGenerateContentMapsToolCallsAndUsage(t *testing.T) {
	var captured completionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{
			"choices":[{"message":{"role":"assistant","content":"On it.","tool_calls":[
				{"id":"c1","type":"function","function":{"name":"create_task","arguments":"{\"title\":\"Call Ana\"}"}},
				{"id":"c2","type":"function","function":{"name":"pause_campaign","arguments":"{broken"}}
			]}}],
			"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}
		}`))
	}))
	defer srv.Close()

	m := NewModel(Config{BaseURL: srv.URL + "/", Model: "test-model"})
	req := &model.LLMRequest{
		Contents: []*genai.Content{genai.NewContentFromText("hello", genai.RoleUser)},
		Config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText("be brief", genai.RoleUser),
			Tools: []*genai.Tool{{FunctionDeclarations: []*genai.FunctionDeclaration{
				{Name: "create_task", ParametersJsonSchema: map[string]any{"type": "object"}},
			}}},
		},
	}

	var resp *model.LLMResponse
	for r, err := range m.GenerateContent(context.Background(), req, false) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		resp = r
	}

	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" || captured.Messages[0].Content != "be brief" {
		t.Fatalf("expected system message first, got %+v", captured.Messages)
	}
	if len(captured.Tools) != 1 || captured.ToolChoice != "auto" {
		t.Fatalf("expected one tool with auto choice, got %+v", captured.Tools)
	}
	if resp.UsageMetadata == nil || resp.UsageMetadata.TotalTokenCount != 15 {
		t.Fatalf("expected 15 total tokens, got %+v", resp.UsageMetadata)
	}
	parts := resp.Content.Parts
	if len(parts) != 3 || parts[0].Text != "On it." {
		t.Fatalf("unexpected parts %+v", parts)
	}
	if parts[1].FunctionCall.Args["title"] != "Call Ana" {
		t.Fatalf("unexpected args %+v", parts[1].FunctionCall.Args)
	}
	if _, ok := parts[2].FunctionCall.Args[RawArgsKey]; !ok {
		t.Fatalf("expected malformed args under %s, got %+v", RawArgsKey, parts[2].FunctionCall.Args)
	}
}

func TestGenerateContentReportsProviderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	m := NewModel(Config{BaseURL: srv.URL})
	for _, err := range m.GenerateContent(context.Background(), &model.LLMRequest{}, false) {
		if err == nil {
			t.Fatal("expected error for 503 response")
		}
	}
}
