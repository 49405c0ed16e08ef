package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/agentrelay/agentrelay/internal/relay"
	"github.com/agentrelay/agentrelay/pkg/models"
)

// maxChatBody bounds the inbound request body. Attachments are validated
// individually by the relay; this is the outer guard against unbounded
// reads.
const maxChatBody = 64 << 20

// chatHandler streams one chat turn back as server-sent events.
func chatHandler(rl *relay.Relay) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.ChatRequest
		body := http.MaxBytesReader(w, r.Body, maxChatBody)
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			log.Error().Msg("response writer does not support streaming")
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		turnID := uuid.NewString()
		log.Debug().Str("turn_id", turnID).Int("messages", len(req.Messages)).Msg("chat turn started")

		sink := &sseSink{ctx: r.Context(), w: w, flusher: flusher}
		rl.Run(r.Context(), req, sink)

		log.Debug().Str("turn_id", turnID).Msg("chat turn finished")
	}
}

// sseSink writes frames to the client as SSE data lines, flushing after
// each so the frontend renders text as it arrives.
type sseSink struct {
	ctx     context.Context
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *sseSink) Send(frame models.Frame) error {
	if err := s.ctx.Err(); err != nil {
		return errors.New("client disconnected")
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	s.flusher.Flush()
	return nil
}
