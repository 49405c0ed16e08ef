package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/agentrelay/agentrelay/pkg/models"
)

// ─── Agent Versioning ────────────────────────────────────────

func TestGetAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/agents/relay-agent" {
			t.Errorf("path = %q, want /agents/relay-agent", r.URL.Path)
		}
		if got := r.Header.Get("api-key"); got != "secret" {
			t.Errorf("api-key header = %q, want secret", got)
		}
		json.NewEncoder(w).Encode(map[string]any{"name": "relay-agent", "id": "a-1", "version": 3})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	handle, err := c.GetAgent(context.Background(), "relay-agent")
	if err != nil {
		t.Fatalf("GetAgent() error = %v", err)
	}
	if handle.ID != "a-1" || handle.Version != 3 {
		t.Errorf("GetAgent() = %+v, want id a-1 version 3", handle)
	}
}

func TestGetAgentNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such agent", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.GetAgent(context.Background(), "ghost")
	if err == nil {
		t.Fatal("GetAgent() error = nil, want status failure")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error %q does not carry the status code", err)
	}
}

func TestCreateVersionPayload(t *testing.T) {
	var body struct {
		Model        string           `json:"model"`
		Instructions string           `json:"instructions"`
		Tools        []map[string]any `json:"tools"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/agents/relay-agent/versions" {
			t.Errorf("path = %q, want /agents/relay-agent/versions", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"name": "relay-agent", "id": "a-1", "version": 1})
	}))
	defer srv.Close()

	cfg := models.AgentConfig{
		Name:         "relay-agent",
		Model:        "gpt-4o",
		Instructions: "Be helpful.",
		Tools: []models.ToolSpec{
			{Kind: models.ToolCodeInterpreter, Enabled: true},
			{Kind: models.ToolBingSearch, Enabled: false, ConnectionName: "skip-me"},
			{Kind: models.ToolAzureAISearch, Enabled: true, ConnectionName: "conn", IndexName: "docs"},
		},
	}

	c := NewClient(srv.URL, "")
	if _, err := c.CreateVersion(context.Background(), cfg); err != nil {
		t.Fatalf("CreateVersion() error = %v", err)
	}

	if body.Model != "gpt-4o" {
		t.Errorf("model = %q, want gpt-4o", body.Model)
	}
	if len(body.Tools) != 2 {
		t.Fatalf("len(tools) = %d, want 2 (disabled tools dropped)", len(body.Tools))
	}
	if body.Tools[0]["type"] != "code_interpreter" {
		t.Errorf("tools[0].type = %v, want code_interpreter", body.Tools[0]["type"])
	}
	if body.Tools[1]["type"] != "azure_ai_search" || body.Tools[1]["index_name"] != "docs" {
		t.Errorf("tools[1] = %v, want azure_ai_search on index docs", body.Tools[1])
	}
}

func TestBuildToolPayloadShapes(t *testing.T) {
	payloads := buildToolPayloads([]models.ToolSpec{
		{Kind: models.ToolFileSearch, Enabled: true, VectorStoreIDs: []string{"vs-1"}},
		{Kind: models.ToolBingSearch, Enabled: true, ConnectionName: "bing-conn"},
	})

	if len(payloads) != 2 {
		t.Fatalf("len(payloads) = %d, want 2", len(payloads))
	}
	fs := payloads[0]
	if fs["type"] != "file_search" {
		t.Errorf("payloads[0].type = %v, want file_search", fs["type"])
	}
	if ids, ok := fs["vector_store_ids"].([]string); !ok || len(ids) != 1 || ids[0] != "vs-1" {
		t.Errorf("vector_store_ids = %v, want [vs-1]", fs["vector_store_ids"])
	}
	if payloads[1]["type"] != "bing_grounding" {
		t.Errorf("payloads[1].type = %v, want bing_grounding", payloads[1]["type"])
	}
}

// ─── Response Streaming ──────────────────────────────────────

func TestOpenStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/responses" {
			t.Errorf("path = %q, want /responses", r.URL.Path)
		}
		if got := r.Header.Get("Accept"); got != "text/event-stream" {
			t.Errorf("Accept = %q, want text/event-stream", got)
		}
		var body struct {
			Agent  map[string]string `json:"agent"`
			Stream bool              `json:"stream"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if !body.Stream {
			t.Error("stream = false, want true")
		}
		if body.Agent["name"] != "relay-agent" || body.Agent["type"] != "agent_reference" {
			t.Errorf("agent = %v, want relay-agent agent_reference", body.Agent)
		}
		io.WriteString(w, "data: {\"type\":\"response.completed\"}\n\n")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	rc, err := c.OpenStream(context.Background(), "relay-agent", BuildInput(models.ChatRequest{
		Messages: []models.Message{{Role: models.RoleUser, Content: "hi"}},
	}))
	if err != nil {
		t.Fatalf("OpenStream() error = %v", err)
	}
	defer rc.Close()

	raw, _ := io.ReadAll(rc)
	if !strings.Contains(string(raw), "response.completed") {
		t.Errorf("stream body = %q, want raw event bytes", raw)
	}
}

func TestOpenStreamErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.OpenStream(context.Background(), "relay-agent", nil)
	if err == nil {
		t.Fatal("OpenStream() error = nil, want status failure")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error %q does not carry the status code", err)
	}
}

// ─── Tool Approval ───────────────────────────────────────────

func TestApproveTool(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/responses/approvals" {
			t.Errorf("path = %q, want /responses/approvals", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	err := c.ApproveTool(context.Background(), models.ApprovalRequest{ID: "apr-1", ToolName: "search"})
	if err != nil {
		t.Fatalf("ApproveTool() error = %v", err)
	}
	if body["approval_request_id"] != "apr-1" {
		t.Errorf("approval_request_id = %v, want apr-1", body["approval_request_id"])
	}
	if body["approve"] != true {
		t.Errorf("approve = %v, want true", body["approve"])
	}
}

// ─── Input Building ──────────────────────────────────────────

func TestBuildInputAttachments(t *testing.T) {
	req := models.ChatRequest{Messages: []models.Message{
		{
			Role:    models.RoleUser,
			Content: "look at these",
			Attachments: []models.Attachment{
				{Name: "pic.png", Type: "image/png", Data: "aW1n"},
				{Name: "doc.pdf", Type: "application/pdf", Data: "cGRm"},
			},
		},
	}}

	input := BuildInput(req)
	if len(input) != 1 {
		t.Fatalf("len(input) = %d, want 1", len(input))
	}
	items := input[0].Content
	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want text + image + file", len(items))
	}
	if items[0].Type != "input_text" || items[0].Text != "look at these" {
		t.Errorf("items[0] = %+v, want input_text", items[0])
	}
	if items[1].Type != "input_image" || items[1].ImageURL != "data:image/png;base64,aW1n" {
		t.Errorf("items[1] = %+v, want input_image data URI", items[1])
	}
	if items[2].Type != "input_file" || items[2].Filename != "doc.pdf" {
		t.Errorf("items[2] = %+v, want input_file with filename", items[2])
	}
}
