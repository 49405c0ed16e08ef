// Package provider is the client for the upstream agent provider: the
// hosted service that stores versioned agent definitions and generates
// responses. The relay treats it as reliable for the scope of one turn —
// failures are surfaced to the caller, never retried here.
package provider

import (
	"context"
	"fmt"
	"io"

	"github.com/agentrelay/agentrelay/pkg/models"
)

// Provider is the external collaborator interface. The HTTP client
// implements it for production; tests substitute fakes.
type Provider interface {
	// GetAgent returns the handle of an already-published agent.
	GetAgent(ctx context.Context, name string) (models.AgentHandle, error)

	// CreateVersion publishes cfg as a new version of the named agent and
	// returns the resulting handle.
	CreateVersion(ctx context.Context, cfg models.AgentConfig) (models.AgentHandle, error)

	// OpenStream starts a streamed response for the given input and returns
	// the raw event byte stream. The caller owns the ReadCloser.
	OpenStream(ctx context.Context, agentName string, input []InputMessage) (io.ReadCloser, error)

	// ApproveTool answers a mid-stream tool approval request on a side
	// channel, letting generation continue.
	ApproveTool(ctx context.Context, req models.ApprovalRequest) error
}

// ── Wire Input ───────────────────────────────────────────────

// ContentItem is one part of an input message: text, an inline image, or
// an inline file.
type ContentItem struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Detail   string `json:"detail,omitempty"`
	FileData string `json:"file_data,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// InputMessage is one message of the provider's input format.
type InputMessage struct {
	Type    string        `json:"type"`
	Role    models.Role   `json:"role"`
	Content []ContentItem `json:"content"`
}

// BuildInput converts the inbound chat request into provider input
// messages. Attachments become inline data URIs: images as input_image,
// everything else as input_file.
func BuildInput(req models.ChatRequest) []InputMessage {
	input := make([]InputMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		var items []ContentItem
		if msg.Content != "" {
			items = append(items, ContentItem{Type: "input_text", Text: msg.Content})
		}
		for _, att := range msg.Attachments {
			uri := fmt.Sprintf("data:%s;base64,%s", att.Type, att.Data)
			if isImageType(att.Type) {
				items = append(items, ContentItem{Type: "input_image", ImageURL: uri, Detail: "auto"})
			} else {
				items = append(items, ContentItem{Type: "input_file", FileData: uri, Filename: att.Name})
			}
		}
		input = append(input, InputMessage{Type: "message", Role: msg.Role, Content: items})
	}
	return input
}

func isImageType(mime string) bool {
	return len(mime) > 6 && mime[:6] == "image/"
}
