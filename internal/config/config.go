package config

import (
	"os"
	"path/filepath"
	"strconv"
)

// ConfigSource selects where the agent definition comes from.
const (
	// SourceLocal builds the agent from agent.yaml + the system prompt file
	// and republishes when the fingerprint changes.
	SourceLocal = "local"
	// SourcePortal connects to an agent managed entirely at the provider;
	// local definition files are ignored.
	SourcePortal = "portal"
)

// Config holds all configuration for the agent relay.
type Config struct {
	Port    int
	Version string

	Agent     AgentFileConfig
	Provider  ProviderConfig
	Limits    LimitsConfig
	Auth      AuthConfig
	Telemetry TelemetryConfig

	// DataDir is where the relay keeps its small local state (the published
	// fingerprint record).
	DataDir string
}

// AgentFileConfig locates the local agent definition.
type AgentFileConfig struct {
	Name       string
	Model      string
	Source     string // SourceLocal or SourcePortal
	ConfigPath string // agent.yaml
	PromptPath string // system prompt file
}

// ProviderConfig describes the upstream agent provider.
type ProviderConfig struct {
	Endpoint string
	APIKey   string
}

// LimitsConfig bounds inbound request payloads.
type LimitsConfig struct {
	// MaxAttachmentBytes is the decoded-size ceiling per attachment.
	MaxAttachmentBytes int
}

// AuthConfig enables optional HTTP basic auth on the chat surface.
// Auth is active only when both fields are non-empty.
type AuthConfig struct {
	Username string
	Password string
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:    envInt("AGENTRELAY_PORT", 8080),
		Version: envStr("AGENTRELAY_VERSION", "0.2.0"),
		Agent: AgentFileConfig{
			Name:       envStr("AGENT_NAME", "agent-relay"),
			Model:      envStr("AGENT_MODEL_DEPLOYMENT", ""),
			Source:     envStr("AGENT_CONFIG_SOURCE", SourceLocal),
			ConfigPath: envStr("AGENT_CONFIG_PATH", "agent.yaml"),
			PromptPath: envStr("AGENT_PROMPT_PATH", filepath.Join("prompts", "system.txt")),
		},
		Provider: ProviderConfig{
			Endpoint: envStr("PROVIDER_ENDPOINT", ""),
			APIKey:   envStr("PROVIDER_API_KEY", ""),
		},
		Limits: LimitsConfig{
			MaxAttachmentBytes: envInt("MAX_ATTACHMENT_BYTES", 20<<20),
		},
		Auth: AuthConfig{
			Username: envStr("WEB_APP_USERNAME", ""),
			Password: envStr("WEB_APP_PASSWORD", ""),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "agentrelay"),
		},
		DataDir: envStr("AGENTRELAY_DATA_DIR", defaultDataDir()),
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agentrelay"
	}
	return filepath.Join(home, ".agentrelay")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
