package stream

import (
	"encoding/json"
	"fmt"

	"github.com/agentrelay/agentrelay/pkg/models"
)

// Upstream payload type markers.
const (
	typeDelta        = "response.output_text.delta"
	typeTextDone     = "response.output_text.done"
	typeItemDone     = "response.output_item.done"
	typeCompleted    = "response.completed"
	typeError        = "response.error"
	typePartialImage = "response.image_generation_call.partial_image"

	itemApprovalRequest = "approval_request"
	itemImageGeneration = "image_generation_call"
)

// payload is the superset of fields the provider emits per event line.
type payload struct {
	Type  string        `json:"type"`
	Delta string        `json:"delta"`
	Text  string        `json:"text"`
	Item  *itemPayload  `json:"item"`
	Error *errorPayload `json:"error"`
}

type itemPayload struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	Result    string `json:"result"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// Interpret classifies one framed payload into a relay event. It is
// stateless per line; delta accumulation is the relay's concern.
//
// Classification priority: error, terminal, completed text, approval
// request, delta. Payloads the relay has no use for (created markers,
// item listings) interpret to nil. A malformed payload is an error the
// caller logs and skips — one bad frame must not abort the turn.
func Interpret(raw json.RawMessage) (*models.Event, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("malformed event payload: %w", err)
	}

	switch {
	case p.Error != nil:
		return &models.Event{Kind: models.EventError, Err: p.Error.Message}, nil

	case p.Type == typeError:
		return &models.Event{Kind: models.EventError, Err: "provider stream error"}, nil

	case p.Type == typeCompleted:
		return &models.Event{Kind: models.EventEnd}, nil

	case p.Type == typeTextDone:
		return &models.Event{Kind: models.EventCompleted, Content: p.Text}, nil

	case p.Type == typeItemDone:
		if p.Item == nil {
			return nil, nil
		}
		switch p.Item.Type {
		case itemApprovalRequest:
			return &models.Event{
				Kind: models.EventApprovalRequest,
				Approval: &models.ApprovalRequest{
					ID:        p.Item.ID,
					ToolName:  p.Item.Name,
					Arguments: p.Item.Arguments,
				},
			}, nil
		case itemImageGeneration:
			if p.Item.Result == "" {
				return nil, nil
			}
			return &models.Event{Kind: models.EventImage, Content: p.Item.Result}, nil
		}
		return nil, nil

	case p.Type == typePartialImage:
		// Previews of the image in progress; only the finished result in
		// the item payload is relayed.
		return nil, nil

	case p.Type == typeDelta:
		return &models.Event{Kind: models.EventDelta, Content: p.Delta}, nil

	case p.Delta != "":
		// Some provider builds omit the type on delta frames.
		return &models.Event{Kind: models.EventDelta, Content: p.Delta}, nil
	}

	return nil, nil
}
