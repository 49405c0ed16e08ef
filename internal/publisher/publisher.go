// Package publisher decides at startup whether the local agent definition
// must be published as a new version at the provider, or whether the
// already-published version can be reused.
package publisher

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/agentrelay/agentrelay/internal/fingerprint"
	"github.com/agentrelay/agentrelay/internal/provider"
	"github.com/agentrelay/agentrelay/internal/version"
	"github.com/agentrelay/agentrelay/pkg/models"
)

// Publisher gates agent publishing on configuration drift.
type Publisher struct {
	provider provider.Provider
	store    version.Store
}

// New creates a publisher over the given provider and version store.
func New(p provider.Provider, s version.Store) *Publisher {
	return &Publisher{provider: p, store: s}
}

// EnsurePublished returns a handle to an agent version matching cfg. When
// the stored fingerprint equals the fingerprint of cfg the existing version
// is reused without any publish call; otherwise (first run included) a new
// version is published and the fingerprint recorded. A publish failure is
// returned wrapped with the agent name; the caller treats it as fatal.
func (p *Publisher) EnsurePublished(ctx context.Context, cfg models.AgentConfig) (models.AgentHandle, error) {
	fp := fingerprint.Compute(cfg)

	prior, err := p.store.Load()
	switch {
	case errors.Is(err, version.ErrNoRecord):
		log.Info().Msg("no prior publish record, publishing agent")
	case err != nil:
		// A broken store only costs the optimization; publish anyway.
		log.Warn().Err(err).Msg("version store unreadable, publishing agent")
	case prior.Fingerprint == fp:
		log.Info().
			Str("agent", cfg.Name).
			Int("version", prior.AgentVersion).
			Str("fingerprint", fp[:16]).
			Msg("agent config unchanged, reusing published version")
		return p.provider.GetAgent(ctx, cfg.Name)
	default:
		log.Info().Str("agent", cfg.Name).Msg("agent config changed, publishing new version")
	}

	handle, err := p.provider.CreateVersion(ctx, cfg)
	if err != nil {
		return models.AgentHandle{}, fmt.Errorf("publish agent %s: %w", cfg.Name, err)
	}

	if err := p.store.Save(models.VersionRecord{Fingerprint: fp, AgentVersion: handle.Version}); err != nil {
		// The agent is live; losing the record only means a redundant
		// republish on the next restart.
		log.Warn().Err(err).Msg("could not persist version record")
	}

	log.Info().
		Str("agent", handle.Name).
		Str("id", handle.ID).
		Int("version", handle.Version).
		Msg("agent version published")
	return handle, nil
}

// Connect resolves the handle of a portal-managed agent. No local
// definition or fingerprinting is involved; the agent must already exist
// at the provider.
func (p *Publisher) Connect(ctx context.Context, name string) (models.AgentHandle, error) {
	handle, err := p.provider.GetAgent(ctx, name)
	if err != nil {
		return models.AgentHandle{}, fmt.Errorf("agent %s not found at provider (create it in the portal or switch AGENT_CONFIG_SOURCE to local): %w", name, err)
	}
	return handle, nil
}
