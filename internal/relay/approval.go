package relay

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/agentrelay/agentrelay/internal/provider"
	"github.com/agentrelay/agentrelay/pkg/models"
)

// maxApprovalRounds caps how many tool approvals one turn may trigger. A
// misbehaving agent that keeps requesting the same tool would otherwise
// hold the turn open indefinitely.
const maxApprovalRounds = 8

// approvalBridge answers mid-stream tool approval requests on a side
// channel while the outer response stream stays open. Approval is
// automatic: the relay trusts the published agent definition, so every
// requested tool call is confirmed back to the provider.
type approvalBridge struct {
	provider provider.Provider
	rounds   int
}

func newApprovalBridge(p provider.Provider) *approvalBridge {
	return &approvalBridge{provider: p}
}

// approve confirms one tool call. It fails the turn when the round cap is
// exceeded or the provider rejects the confirmation; either way the
// response stream is no longer going to produce a completed message.
func (b *approvalBridge) approve(ctx context.Context, req models.ApprovalRequest) error {
	b.rounds++
	if b.rounds > maxApprovalRounds {
		return fmt.Errorf("tool approval limit reached (%d rounds)", maxApprovalRounds)
	}

	log.Info().
		Str("tool", req.ToolName).
		Str("request_id", req.ID).
		Int("round", b.rounds).
		Msg("approving tool call")

	if err := b.provider.ApproveTool(ctx, req); err != nil {
		return fmt.Errorf("approve tool call: %w", err)
	}
	return nil
}
