// Package server is the composition root for the agent relay: it wires
// configuration, telemetry, the provider client, the startup publish
// decision and the HTTP surface into one ready-to-serve unit.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/agentrelay/agentrelay/internal/api"
	"github.com/agentrelay/agentrelay/internal/config"
	"github.com/agentrelay/agentrelay/internal/provider"
	"github.com/agentrelay/agentrelay/internal/publisher"
	"github.com/agentrelay/agentrelay/internal/relay"
	"github.com/agentrelay/agentrelay/internal/telemetry"
	"github.com/agentrelay/agentrelay/internal/version"
	"github.com/agentrelay/agentrelay/pkg/models"
)

// Server holds the initialized agent relay.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Agent is the resolved agent version this relay fronts.
	Agent models.AgentHandle

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc should be called on graceful shutdown to flush telemetry.
	ShutdownFunc func(context.Context) error
}

// New initializes all components from the environment and returns a ready
// Server. The agent version is resolved (and published when needed) before
// this returns; a failure here is fatal, the relay never serves chat
// against an unresolved agent.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig initializes the relay with an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	if cfg.Provider.Endpoint == "" {
		return nil, fmt.Errorf("PROVIDER_ENDPOINT is not set")
	}

	shutdown, err := telemetry.Init(cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	client := provider.NewClient(cfg.Provider.Endpoint, cfg.Provider.APIKey)
	pub := publisher.New(client, version.NewFileStore(cfg.DataDir))

	handle, agentCfg, err := resolveAgent(ctx, cfg, pub)
	if err != nil {
		return nil, err
	}

	rl := relay.New(client, handle.Name, cfg.Limits.MaxAttachmentBytes)

	info := api.AgentInfo{
		Name:    handle.Name,
		ID:      handle.ID,
		Version: handle.Version,
		Model:   agentCfg.Model,
		Source:  cfg.Agent.Source,
		Tools:   toolNames(agentCfg),
	}

	return &Server{
		Handler:      api.NewRouter(cfg, rl, info),
		Agent:        handle,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}

// resolveAgent produces the agent handle per the configured source mode.
// Local mode builds the definition from files and publishes on drift;
// portal mode connects to an agent managed at the provider.
func resolveAgent(ctx context.Context, cfg *config.Config, pub *publisher.Publisher) (models.AgentHandle, models.AgentConfig, error) {
	switch cfg.Agent.Source {
	case config.SourceLocal:
		agentCfg, err := config.LoadAgentConfig(cfg.Agent)
		if err != nil {
			return models.AgentHandle{}, models.AgentConfig{}, fmt.Errorf("load agent config: %w", err)
		}
		handle, err := pub.EnsurePublished(ctx, agentCfg)
		if err != nil {
			return models.AgentHandle{}, models.AgentConfig{}, err
		}
		return handle, agentCfg, nil

	case config.SourcePortal:
		handle, err := pub.Connect(ctx, cfg.Agent.Name)
		if err != nil {
			return models.AgentHandle{}, models.AgentConfig{}, err
		}
		log.Info().
			Str("agent", handle.Name).
			Int("version", handle.Version).
			Msg("connected to portal-managed agent")
		return handle, models.AgentConfig{Name: handle.Name}, nil

	default:
		return models.AgentHandle{}, models.AgentConfig{}, fmt.Errorf("unknown AGENT_CONFIG_SOURCE %q", cfg.Agent.Source)
	}
}

func toolNames(cfg models.AgentConfig) []string {
	names := []string{}
	for _, kind := range cfg.EnabledTools() {
		names = append(names, string(kind))
	}
	return names
}
