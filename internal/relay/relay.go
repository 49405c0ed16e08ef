// Package relay drives one chat turn end to end: it validates the inbound
// request, opens the provider response stream, interprets events, answers
// tool approval requests, and emits the outbound frame sequence.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/agentrelay/agentrelay/internal/provider"
	"github.com/agentrelay/agentrelay/internal/render"
	"github.com/agentrelay/agentrelay/internal/stream"
	"github.com/agentrelay/agentrelay/pkg/models"
)

// Sink receives outbound frames. A Send error means the client is gone
// and the relay stops producing.
type Sink interface {
	Send(models.Frame) error
}

// Relay proxies chat turns to one published agent.
type Relay struct {
	provider           provider.Provider
	agentName          string
	maxAttachmentBytes int
}

// New creates a relay bound to the given agent.
func New(p provider.Provider, agentName string, maxAttachmentBytes int) *Relay {
	return &Relay{
		provider:           p,
		agentName:          agentName,
		maxAttachmentBytes: maxAttachmentBytes,
	}
}

// Run executes one chat turn and writes its frames to sink.
//
// Frame contract: zero or more message frames, then on success exactly one
// completed_message followed by exactly one stream_end. On failure a single
// error frame ends the turn; no stream_end follows it. Message frames carry
// raw delta text; citation and code formatting apply only to the final
// text, since markers can straddle delta boundaries.
func (r *Relay) Run(ctx context.Context, req models.ChatRequest, sink Sink) {
	if err := validateRequest(req, r.maxAttachmentBytes); err != nil {
		log.Warn().Err(err).Msg("rejecting chat request")
		r.sendError(sink, err.Error())
		return
	}

	body, err := r.provider.OpenStream(ctx, r.agentName, provider.BuildInput(req))
	if err != nil {
		log.Error().Err(err).Str("agent", r.agentName).Msg("could not open response stream")
		r.sendError(sink, "the agent service is unavailable")
		return
	}
	defer body.Close()

	dec := stream.NewLineDecoder(body)
	bridge := newApprovalBridge(r.provider)

	// acc collects delta fragments; a completed event replaces it outright.
	// Generated images are kept aside so the replacement cannot drop them.
	var acc strings.Builder
	var images []string
	finalText := ""
	haveFinal := false

	for {
		if ctx.Err() != nil {
			log.Debug().Msg("client disconnected, abandoning turn")
			return
		}

		line, err := dec.Next()
		if errors.Is(err, io.EOF) {
			// Stream closed without a terminal event. Whatever text arrived
			// is all the turn will get; finish it normally.
			break
		}
		if err != nil {
			log.Error().Err(err).Msg("response stream read failed")
			r.sendError(sink, "the response stream was interrupted")
			return
		}

		raw, ok := stream.DataPayload(line)
		if !ok {
			continue
		}
		ev, err := stream.Interpret(raw)
		if err != nil {
			log.Warn().Err(err).Msg("skipping malformed stream event")
			continue
		}
		if ev == nil {
			continue
		}

		switch ev.Kind {
		case models.EventDelta:
			acc.WriteString(ev.Content)
			if err := sink.Send(models.Frame{Type: models.FrameMessage, Content: ev.Content}); err != nil {
				log.Debug().Err(err).Msg("client write failed, abandoning turn")
				return
			}

		case models.EventCompleted:
			finalText = ev.Content
			haveFinal = true

		case models.EventImage:
			images = append(images, ev.Content)

		case models.EventApprovalRequest:
			if err := bridge.approve(ctx, *ev.Approval); err != nil {
				log.Error().Err(err).Msg("tool approval failed")
				r.sendError(sink, "a tool call could not be approved")
				return
			}

		case models.EventError:
			log.Error().Str("upstream", ev.Err).Msg("provider reported a stream error")
			r.sendError(sink, "the agent could not complete the response")
			return

		case models.EventEnd:
			r.finish(sink, finalText, haveFinal, acc.String(), images)
			return
		}
	}

	r.finish(sink, finalText, haveFinal, acc.String(), images)
}

// finish formats the turn's final text and emits the terminal frames.
func (r *Relay) finish(sink Sink, finalText string, haveFinal bool, accumulated string, images []string) {
	text := accumulated
	if haveFinal {
		text = finalText
	}

	formatted, sources := render.Citations(text)
	formatted = render.CodeFences(formatted)
	for _, img := range images {
		formatted += fmt.Sprintf("\n\n![generated image](data:image/png;base64,%s)", img)
	}
	formatted += render.SourcesSection(sources)

	if err := sink.Send(models.Frame{Type: models.FrameCompleted, Content: formatted}); err != nil {
		log.Debug().Err(err).Msg("client write failed on completed message")
		return
	}
	if err := sink.Send(models.Frame{Type: models.FrameStreamEnd}); err != nil {
		log.Debug().Err(err).Msg("client write failed on stream end")
	}
}

func (r *Relay) sendError(sink Sink, msg string) {
	if err := sink.Send(models.Frame{Error: &models.FrameError{Message: msg}}); err != nil {
		log.Debug().Err(err).Msg("client write failed on error frame")
	}
}

// ── Request Validation ──────────────────────────────────────

// allowedAttachmentTypes is the closed set of non-image MIME types the
// relay forwards. Images are allowed by prefix.
var allowedAttachmentTypes = map[string]bool{
	"application/pdf":  true,
	"application/json": true,
	"text/plain":       true,
	"text/markdown":    true,
	"text/csv":         true,
}

// validateRequest checks the request before any provider contact so a bad
// payload never opens an upstream stream. Errors are client-facing.
func validateRequest(req models.ChatRequest, maxAttachmentBytes int) error {
	if len(req.Messages) == 0 {
		return errors.New("request contains no messages")
	}
	for _, m := range req.Messages {
		if m.Role != models.RoleUser && m.Role != models.RoleAssistant {
			return fmt.Errorf("unknown message role %q", m.Role)
		}
		for _, a := range m.Attachments {
			if a.Data == "" {
				return fmt.Errorf("attachment %q has no content", a.Name)
			}
			if !strings.HasPrefix(a.Type, "image/") && !allowedAttachmentTypes[a.Type] {
				return fmt.Errorf("attachment type %q is not supported", a.Type)
			}
			// Decoded size estimate from the base64 length; good to within
			// the padding bytes.
			if decoded := len(a.Data) / 4 * 3; decoded > maxAttachmentBytes {
				return fmt.Errorf("attachment %q exceeds the %d MB limit", a.Name, maxAttachmentBytes>>20)
			}
		}
	}
	return nil
}
