package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agentrelay/agentrelay/pkg/models"
)

// Client is the HTTP implementation of Provider.
type Client struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewClient creates a provider client for the given endpoint. The API key
// is sent as an api-key header on every request.
func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		// No client timeout: response streams are long-lived and bounded by
		// the request context instead.
		client: &http.Client{},
	}
}

// NewClientWithHTTP injects a custom http.Client, used by tests.
func NewClientWithHTTP(endpoint, apiKey string, hc *http.Client) *Client {
	c := NewClient(endpoint, apiKey)
	c.client = hc
	return c
}

// ── Agent Versioning ────────────────────────────────────────

type agentResponse struct {
	Name    string `json:"name"`
	ID      string `json:"id"`
	Version int    `json:"version"`
}

func (c *Client) GetAgent(ctx context.Context, name string) (models.AgentHandle, error) {
	url := c.endpoint + "/agents/" + name
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return models.AgentHandle{}, fmt.Errorf("get agent: create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return models.AgentHandle{}, fmt.Errorf("get agent: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return models.AgentHandle{}, fmt.Errorf("get agent %s: status %d: %s", name, resp.StatusCode, string(body))
	}

	var ar agentResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return models.AgentHandle{}, fmt.Errorf("get agent: decode response: %w", err)
	}
	return models.AgentHandle{Name: ar.Name, ID: ar.ID, Version: ar.Version}, nil
}

type createVersionRequest struct {
	Model        string           `json:"model"`
	Instructions string           `json:"instructions"`
	Tools        []map[string]any `json:"tools,omitempty"`
}

func (c *Client) CreateVersion(ctx context.Context, cfg models.AgentConfig) (models.AgentHandle, error) {
	body, _ := json.Marshal(createVersionRequest{
		Model:        cfg.Model,
		Instructions: cfg.Instructions,
		Tools:        buildToolPayloads(cfg.Tools),
	})

	url := c.endpoint + "/agents/" + cfg.Name + "/versions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return models.AgentHandle{}, fmt.Errorf("create version: create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return models.AgentHandle{}, fmt.Errorf("create version: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return models.AgentHandle{}, fmt.Errorf("create version for %s: status %d: %s", cfg.Name, resp.StatusCode, string(respBody))
	}

	var ar agentResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return models.AgentHandle{}, fmt.Errorf("create version: decode response: %w", err)
	}
	return models.AgentHandle{Name: ar.Name, ID: ar.ID, Version: ar.Version}, nil
}

// buildToolPayloads maps enabled tools onto the provider wire format. The
// switch is exhaustive over models.ToolKinds; a new kind fails loudly here
// rather than being silently dropped.
func buildToolPayloads(tools []models.ToolSpec) []map[string]any {
	var payloads []map[string]any
	for _, t := range tools {
		if !t.Enabled {
			continue
		}
		switch t.Kind {
		case models.ToolCodeInterpreter:
			payloads = append(payloads, map[string]any{
				"type":      "code_interpreter",
				"container": map[string]any{"type": "auto"},
			})
		case models.ToolBingSearch:
			payloads = append(payloads, map[string]any{
				"type":            "bing_grounding",
				"connection_name": t.ConnectionName,
			})
		case models.ToolFileSearch:
			payloads = append(payloads, map[string]any{
				"type":             "file_search",
				"vector_store_ids": t.VectorStoreIDs,
			})
		case models.ToolAzureAISearch:
			payloads = append(payloads, map[string]any{
				"type":            "azure_ai_search",
				"connection_name": t.ConnectionName,
				"index_name":      t.IndexName,
			})
		case models.ToolImageGeneration:
			payloads = append(payloads, map[string]any{"type": "image_generation"})
		case models.ToolWebSearch:
			payloads = append(payloads, map[string]any{"type": "web_search"})
		default:
			panic(fmt.Sprintf("unhandled tool kind %q", t.Kind))
		}
	}
	return payloads
}

// ── Response Streaming ──────────────────────────────────────

type streamRequest struct {
	Agent  agentReference `json:"agent"`
	Stream bool           `json:"stream"`
	Input  []InputMessage `json:"input"`
}

type agentReference struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func (c *Client) OpenStream(ctx context.Context, agentName string, input []InputMessage) (io.ReadCloser, error) {
	body, _ := json.Marshal(streamRequest{
		Agent:  agentReference{Name: agentName, Type: "agent_reference"},
		Stream: true,
		Input:  input,
	})

	url := c.endpoint + "/responses"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("open stream: create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open stream: request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("open stream: status %d: %s", resp.StatusCode, string(respBody))
	}
	return resp.Body, nil
}

// ── Tool Approval ───────────────────────────────────────────

type approvalResponse struct {
	Type              string `json:"type"`
	ApprovalRequestID string `json:"approval_request_id"`
	Approve           bool   `json:"approve"`
	Reason            string `json:"reason"`
}

func (c *Client) ApproveTool(ctx context.Context, req models.ApprovalRequest) error {
	body, _ := json.Marshal(approvalResponse{
		Type:              "approval_response",
		ApprovalRequestID: req.ID,
		Approve:           true,
		Reason:            "auto-approved by agent relay",
	})

	// Approval answers are short round-trips; bound them independently of
	// the long-lived stream context.
	approveCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	url := c.endpoint + "/responses/approvals"
	httpReq, err := http.NewRequestWithContext(approveCtx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("approve tool: create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("approve tool %s: request failed: %w", req.ToolName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("approve tool %s: status %d: %s", req.ToolName, resp.StatusCode, string(respBody))
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}
}
