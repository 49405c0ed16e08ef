package relay_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/agentrelay/agentrelay/internal/provider"
	"github.com/agentrelay/agentrelay/internal/relay"
	"github.com/agentrelay/agentrelay/pkg/models"
)

// ─── Fakes ───────────────────────────────────────────────────

// streamProvider serves a canned event stream and records approvals.
type streamProvider struct {
	body       string
	openErr    error
	openCalls  int
	approveErr error
	approved   []models.ApprovalRequest
}

func (p *streamProvider) GetAgent(ctx context.Context, name string) (models.AgentHandle, error) {
	return models.AgentHandle{Name: name}, nil
}

func (p *streamProvider) CreateVersion(ctx context.Context, cfg models.AgentConfig) (models.AgentHandle, error) {
	return models.AgentHandle{Name: cfg.Name}, nil
}

func (p *streamProvider) OpenStream(ctx context.Context, agentName string, input []provider.InputMessage) (io.ReadCloser, error) {
	p.openCalls++
	if p.openErr != nil {
		return nil, p.openErr
	}
	return io.NopCloser(strings.NewReader(p.body)), nil
}

func (p *streamProvider) ApproveTool(ctx context.Context, req models.ApprovalRequest) error {
	p.approved = append(p.approved, req)
	return p.approveErr
}

// frameSink records every frame the relay emits.
type frameSink struct {
	frames []models.Frame
}

func (s *frameSink) Send(f models.Frame) error {
	s.frames = append(s.frames, f)
	return nil
}

func sse(payloads ...string) string {
	var b strings.Builder
	for _, p := range payloads {
		fmt.Fprintf(&b, "data: %s\n\n", p)
	}
	return b.String()
}

func userTurn(text string) models.ChatRequest {
	return models.ChatRequest{Messages: []models.Message{{Role: models.RoleUser, Content: text}}}
}

func run(t *testing.T, p *streamProvider) *frameSink {
	t.Helper()
	sink := &frameSink{}
	relay.New(p, "relay-agent", 1<<20).Run(context.Background(), userTurn("hi"), sink)
	return sink
}

// ─── Happy Path ──────────────────────────────────────────────

func TestRunDeltaAccumulation(t *testing.T) {
	p := &streamProvider{body: sse(
		`{"type":"response.output_text.delta","delta":"Hel"}`,
		`{"type":"response.output_text.delta","delta":"lo"}`,
		`{"type":"response.completed"}`,
	)}
	sink := run(t, p)

	want := []models.Frame{
		{Type: models.FrameMessage, Content: "Hel"},
		{Type: models.FrameMessage, Content: "lo"},
		{Type: models.FrameCompleted, Content: "Hello"},
		{Type: models.FrameStreamEnd},
	}
	if len(sink.frames) != len(want) {
		t.Fatalf("frame count = %d, want %d: %v", len(sink.frames), len(want), sink.frames)
	}
	for i, w := range want {
		if sink.frames[i].Type != w.Type || sink.frames[i].Content != w.Content {
			t.Errorf("frames[%d] = %+v, want %+v", i, sink.frames[i], w)
		}
	}
}

func TestRunCompletedReplacesDeltas(t *testing.T) {
	p := &streamProvider{body: sse(
		`{"type":"response.output_text.delta","delta":"draft text"}`,
		`{"type":"response.output_text.done","text":"Authoritative final text."}`,
		`{"type":"response.completed"}`,
	)}
	sink := run(t, p)

	last := sink.frames[len(sink.frames)-2]
	if last.Type != models.FrameCompleted || last.Content != "Authoritative final text." {
		t.Errorf("completed frame = %+v, want the authoritative text, not accumulated deltas", last)
	}
}

func TestRunEOFWithoutTerminal(t *testing.T) {
	// Stream drops before response.completed; the accumulated text still
	// gets a full terminal sequence.
	p := &streamProvider{body: sse(
		`{"type":"response.output_text.delta","delta":"partial "}`,
		`{"type":"response.output_text.delta","delta":"answer"}`,
	)}
	sink := run(t, p)

	n := len(sink.frames)
	if n < 2 {
		t.Fatalf("frame count = %d, want at least completed + stream_end", n)
	}
	if sink.frames[n-2].Type != models.FrameCompleted || sink.frames[n-2].Content != "partial answer" {
		t.Errorf("frames[-2] = %+v, want completed_message with accumulated text", sink.frames[n-2])
	}
	if sink.frames[n-1].Type != models.FrameStreamEnd {
		t.Errorf("frames[-1] = %+v, want stream_end", sink.frames[n-1])
	}
}

func TestRunMalformedEventSkipped(t *testing.T) {
	p := &streamProvider{body: sse(
		`{"type":"response.output_text.delta","delta":"ok"}`,
		`{not valid json`,
		`{"type":"response.completed"}`,
	)}
	sink := run(t, p)

	last := sink.frames[len(sink.frames)-1]
	if last.Type != models.FrameStreamEnd {
		t.Errorf("last frame = %+v, want stream_end despite a malformed event", last)
	}
}

func TestRunFormatsFinalText(t *testing.T) {
	p := &streamProvider{body: sse(
		`{"type":"response.output_text.delta","delta":"Raw 【1:0†guide.md】"}`,
		`{"type":"response.output_text.done","text":"Answer per the guide 【1:0†guide.md】."}`,
		`{"type":"response.completed"}`,
	)}
	sink := run(t, p)

	// Delta frames pass through unformatted; markers can straddle deltas.
	if sink.frames[0].Content != "Raw 【1:0†guide.md】" {
		t.Errorf("delta frame = %q, want raw passthrough", sink.frames[0].Content)
	}

	completed := sink.frames[len(sink.frames)-2]
	if !strings.Contains(completed.Content, "Answer per the guide [1].") {
		t.Errorf("completed text = %q, want citation rewritten", completed.Content)
	}
	if !strings.Contains(completed.Content, "**Sources:**") {
		t.Errorf("completed text = %q, want sources section appended", completed.Content)
	}
}

func TestRunAppendsGeneratedImage(t *testing.T) {
	p := &streamProvider{body: sse(
		`{"type":"response.output_text.delta","delta":"Here is your chart."}`,
		`{"type":"response.output_item.done","item":{"type":"image_generation_call","id":"img-1","result":"iVBORw0KGgo="}}`,
		`{"type":"response.output_text.done","text":"Here is your chart."}`,
		`{"type":"response.completed"}`,
	)}
	sink := run(t, p)

	completed := sink.frames[len(sink.frames)-2]
	if completed.Type != models.FrameCompleted {
		t.Fatalf("frames[-2] = %+v, want completed_message", completed)
	}
	if !strings.Contains(completed.Content, "Here is your chart.") {
		t.Errorf("completed text = %q, want the text to survive", completed.Content)
	}
	if !strings.Contains(completed.Content, "![generated image](data:image/png;base64,iVBORw0KGgo=)") {
		t.Errorf("completed text = %q, want the generated image inlined", completed.Content)
	}
}

// ─── Approvals ───────────────────────────────────────────────

func TestRunApprovesToolCalls(t *testing.T) {
	p := &streamProvider{body: sse(
		`{"type":"response.output_item.done","item":{"type":"approval_request","id":"apr-1","name":"search","arguments":"{}"}}`,
		`{"type":"response.output_text.delta","delta":"found it"}`,
		`{"type":"response.completed"}`,
	)}
	sink := run(t, p)

	if len(p.approved) != 1 || p.approved[0].ID != "apr-1" {
		t.Fatalf("approved = %+v, want one approval for apr-1", p.approved)
	}
	last := sink.frames[len(sink.frames)-1]
	if last.Type != models.FrameStreamEnd {
		t.Errorf("last frame = %+v, want stream_end after approval", last)
	}
}

func TestRunApprovalFailureEndsTurn(t *testing.T) {
	p := &streamProvider{
		body: sse(
			`{"type":"response.output_item.done","item":{"type":"approval_request","id":"apr-1","name":"search","arguments":"{}"}}`,
			`{"type":"response.completed"}`,
		),
		approveErr: errors.New("approval endpoint down"),
	}
	sink := run(t, p)

	if len(sink.frames) != 1 || sink.frames[0].Error == nil {
		t.Fatalf("frames = %+v, want a single error frame", sink.frames)
	}
}

func TestRunApprovalRoundCap(t *testing.T) {
	var payloads []string
	for i := 0; i < 10; i++ {
		payloads = append(payloads, fmt.Sprintf(
			`{"type":"response.output_item.done","item":{"type":"approval_request","id":"apr-%d","name":"loop","arguments":"{}"}}`, i))
	}
	p := &streamProvider{body: sse(payloads...)}
	sink := run(t, p)

	if len(p.approved) > 8 {
		t.Errorf("approved %d rounds, want cap at 8", len(p.approved))
	}
	last := sink.frames[len(sink.frames)-1]
	if last.Error == nil {
		t.Errorf("last frame = %+v, want error frame when the cap trips", last)
	}
}

// ─── Failure Paths ───────────────────────────────────────────

func TestRunUpstreamError(t *testing.T) {
	p := &streamProvider{body: sse(
		`{"type":"response.output_text.delta","delta":"so far"}`,
		`{"error":{"message":"internal provider failure"}}`,
	)}
	sink := run(t, p)

	last := sink.frames[len(sink.frames)-1]
	if last.Error == nil {
		t.Fatalf("last frame = %+v, want error frame", last)
	}
	for _, f := range sink.frames {
		if f.Type == models.FrameStreamEnd {
			t.Error("stream_end emitted after an error frame")
		}
	}
	if strings.Contains(last.Error.Message, "internal provider failure") {
		t.Errorf("error frame %q leaks the upstream message", last.Error.Message)
	}
}

func TestRunOpenStreamFailure(t *testing.T) {
	p := &streamProvider{openErr: errors.New("connect refused")}
	sink := run(t, p)

	if len(sink.frames) != 1 || sink.frames[0].Error == nil {
		t.Fatalf("frames = %+v, want a single error frame", sink.frames)
	}
}

// ─── Validation ──────────────────────────────────────────────

func TestRunRejectsOversizeAttachment(t *testing.T) {
	p := &streamProvider{}
	sink := &frameSink{}
	req := models.ChatRequest{Messages: []models.Message{{
		Role:    models.RoleUser,
		Content: "see attached",
		Attachments: []models.Attachment{{
			Name: "big.pdf",
			Type: "application/pdf",
			Data: strings.Repeat("A", 200),
		}},
	}}}

	relay.New(p, "relay-agent", 100).Run(context.Background(), req, sink)

	if p.openCalls != 0 {
		t.Error("OpenStream called despite invalid attachment")
	}
	if len(sink.frames) != 1 || sink.frames[0].Error == nil {
		t.Fatalf("frames = %+v, want a single error frame", sink.frames)
	}
}

func TestRunRejectsUnsupportedType(t *testing.T) {
	p := &streamProvider{}
	sink := &frameSink{}
	req := models.ChatRequest{Messages: []models.Message{{
		Role: models.RoleUser,
		Attachments: []models.Attachment{{
			Name: "tool.exe",
			Type: "application/octet-stream",
			Data: "QUJD",
		}},
	}}}

	relay.New(p, "relay-agent", 1<<20).Run(context.Background(), req, sink)

	if p.openCalls != 0 {
		t.Error("OpenStream called despite unsupported attachment type")
	}
	if len(sink.frames) != 1 || sink.frames[0].Error == nil {
		t.Fatalf("frames = %+v, want a single error frame", sink.frames)
	}
}

func TestRunRejectsEmptyRequest(t *testing.T) {
	p := &streamProvider{}
	sink := &frameSink{}

	relay.New(p, "relay-agent", 1<<20).Run(context.Background(), models.ChatRequest{}, sink)

	if p.openCalls != 0 {
		t.Error("OpenStream called for an empty request")
	}
	if len(sink.frames) != 1 || sink.frames[0].Error == nil {
		t.Fatalf("frames = %+v, want a single error frame", sink.frames)
	}
}
