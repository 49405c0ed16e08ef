// Package models defines the shared types for the agent relay: the
// declarative agent configuration, the inbound chat request shape, and the
// stream events exchanged between the provider stream and the relay.
package models

import "fmt"

// ── Agent Configuration ──────────────────────────────────────

// ToolKind identifies one of the tool capabilities an agent version can
// carry. The set is closed: fingerprinting and publishing switch over it
// exhaustively, so adding a tool means adding a case everywhere the
// compiler points.
type ToolKind string

const (
	ToolCodeInterpreter ToolKind = "code_interpreter"
	ToolBingSearch      ToolKind = "bing_search"
	ToolFileSearch      ToolKind = "file_search"
	ToolAzureAISearch   ToolKind = "azure_ai_search"
	ToolImageGeneration ToolKind = "image_generation"
	ToolWebSearch       ToolKind = "web_search"
)

// ToolKinds lists every tool kind in declaration order. Agent files are
// mapped onto this order so a config's canonical form does not depend on
// YAML map iteration.
var ToolKinds = []ToolKind{
	ToolCodeInterpreter,
	ToolBingSearch,
	ToolFileSearch,
	ToolAzureAISearch,
	ToolImageGeneration,
	ToolWebSearch,
}

// ToolSpec is one tool entry of an agent configuration. Disabled tools are
// kept: a config with six disabled tools is a different config from one
// with no tools at all.
type ToolSpec struct {
	Kind           ToolKind `json:"kind" yaml:"kind"`
	Enabled        bool     `json:"enabled" yaml:"enabled"`
	ConnectionName string   `json:"connection_name,omitempty" yaml:"connection_name,omitempty"`
	IndexName      string   `json:"index_name,omitempty" yaml:"index_name,omitempty"`
	VectorStoreIDs []string `json:"vector_store_ids,omitempty" yaml:"vector_store_ids,omitempty"`
}

// AgentConfig is the declarative definition of the agent this relay fronts.
// Two configs are equivalent iff their canonical serializations are
// byte-identical (see the fingerprint package).
type AgentConfig struct {
	Name         string     `json:"name"`
	Model        string     `json:"model"`
	Instructions string     `json:"instructions"`
	Tools        []ToolSpec `json:"tools"`
}

// EnabledTools returns the kinds of all enabled tools, in config order.
func (c AgentConfig) EnabledTools() []ToolKind {
	var kinds []ToolKind
	for _, t := range c.Tools {
		if t.Enabled {
			kinds = append(kinds, t.Kind)
		}
	}
	return kinds
}

// AgentHandle identifies a published agent version at the provider.
type AgentHandle struct {
	Name    string `json:"name"`
	ID      string `json:"id"`
	Version int    `json:"version"`
}

// VersionRecord is the persisted publish state: the fingerprint of the last
// published configuration and the version the provider assigned to it.
// Written once after a successful publish, read once at startup.
type VersionRecord struct {
	Fingerprint  string `json:"fingerprint"`
	AgentVersion int    `json:"agent_version"`
}

// ── Chat Request ─────────────────────────────────────────────

// Role is a chat message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Attachment is a file attached to a chat message, carried inline as base64.
type Attachment struct {
	Name string `json:"name"`
	Type string `json:"type"` // MIME type
	Data string `json:"data"` // base64 payload
}

// Message is one conversational turn entry.
type Message struct {
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// ChatRequest is the inbound body of POST /chat.
type ChatRequest struct {
	Messages []Message `json:"messages"`
}

// ── Stream Events ────────────────────────────────────────────

// EventKind classifies an interpreted upstream event.
type EventKind string

const (
	// EventDelta is an incremental text fragment; the relay appends it to
	// the turn accumulator.
	EventDelta EventKind = "delta"
	// EventCompleted carries the authoritative final text for the turn. It
	// replaces all previously accumulated deltas, never appends.
	EventCompleted EventKind = "completed"
	// EventApprovalRequest is a mid-stream request to approve a tool call
	// before generation continues.
	EventApprovalRequest EventKind = "approval_request"
	// EventImage carries the base64 result of a finished image generation
	// call; the relay appends it to the turn as an inline image.
	EventImage EventKind = "image"
	// EventError terminates the turn with an upstream failure.
	EventError EventKind = "error"
	// EventEnd terminates the turn successfully.
	EventEnd EventKind = "end"
)

// ApprovalRequest describes a tool call awaiting approval.
type ApprovalRequest struct {
	ID        string `json:"id"`
	ToolName  string `json:"name"`
	Arguments string `json:"arguments"`
}

// Event is the tagged variant produced by the stream interpreter and
// consumed by the relay. Exactly the fields implied by Kind are set;
// events live for one decoded line and are never retained across turns.
type Event struct {
	Kind     EventKind
	Content  string           // delta or completed text, or base64 image data
	Approval *ApprovalRequest // approval_request only
	Err      string           // error only
}

// ── Outbound Frames ──────────────────────────────────────────

// FrameType enumerates the payload types of outbound SSE frames.
type FrameType string

const (
	FrameMessage   FrameType = "message"
	FrameCompleted FrameType = "completed_message"
	FrameStreamEnd FrameType = "stream_end"
)

// Frame is the JSON payload of one outbound SSE frame. Either Type is set
// (message / completed_message / stream_end) or Error is set, never both.
type Frame struct {
	Type    FrameType   `json:"type,omitempty"`
	Content string      `json:"content,omitempty"`
	Error   *FrameError `json:"error,omitempty"`
}

// FrameError is the client-facing error payload.
type FrameError struct {
	Message string `json:"message"`
}

// String renders a short description for logs.
func (f Frame) String() string {
	if f.Error != nil {
		return fmt.Sprintf("error(%s)", f.Error.Message)
	}
	return string(f.Type)
}
