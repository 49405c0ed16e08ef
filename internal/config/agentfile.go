package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/agentrelay/agentrelay/pkg/models"
)

// DefaultInstructions is used when no system prompt file exists.
const DefaultInstructions = "You are a helpful assistant."

// promptSectionRule separates the prompt proper from trailing documentation
// in the system prompt file. Everything after the first rule is ignored.
const promptSectionRule = "====="

// agentFile mirrors the on-disk agent.yaml layout: a tools mapping keyed by
// tool kind, each entry carrying an enabled flag plus tool-specific fields.
type agentFile struct {
	Tools map[string]toolEntry `yaml:"tools"`
}

type toolEntry struct {
	Enabled         bool     `yaml:"enabled"`
	ConnectionName  string   `yaml:"connection_name"`
	IndexName       string   `yaml:"index_name"`
	VectorStoreName string   `yaml:"vector_store_name"`
	VectorStoreIDs  []string `yaml:"vector_store_ids"`
}

// LoadAgentConfig assembles the full agent configuration from the agent
// file, the system prompt file and the name/model settings. A missing agent
// file yields a config with zero tools; a malformed one is an error so a
// typo cannot silently publish a toolless agent.
func LoadAgentConfig(cfg AgentFileConfig) (models.AgentConfig, error) {
	tools, err := loadTools(cfg.ConfigPath)
	if err != nil {
		return models.AgentConfig{}, err
	}
	return models.AgentConfig{
		Name:         cfg.Name,
		Model:        cfg.Model,
		Instructions: LoadSystemPrompt(cfg.PromptPath),
		Tools:        tools,
	}, nil
}

// LoadSystemPrompt reads the agent instructions. The file may carry an
// explanatory section below a "=====" rule; only the text above it counts.
func LoadSystemPrompt(path string) string {
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Str("path", path).Msg("system prompt file not found, using default")
		return DefaultInstructions
	}
	content := string(raw)
	if i := strings.Index(content, promptSectionRule); i >= 0 {
		content = content[:i]
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return DefaultInstructions
	}
	return content
}

// loadTools parses agent.yaml into the closed tool set, preserving the
// fixed kind order so the canonical form is stable across parses.
func loadTools(path string) ([]models.ToolSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read agent config %s: %w", path, err)
	}

	var file agentFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse agent config %s: %w", path, err)
	}

	var tools []models.ToolSpec
	for _, kind := range models.ToolKinds {
		entry, ok := file.Tools[string(kind)]
		if !ok {
			continue
		}
		spec := models.ToolSpec{
			Kind:           kind,
			Enabled:        entry.Enabled,
			ConnectionName: entry.ConnectionName,
			IndexName:      entry.IndexName,
			VectorStoreIDs: entry.VectorStoreIDs,
		}
		// file_search configs may name a single vector store instead of IDs.
		if kind == models.ToolFileSearch && entry.VectorStoreName != "" && len(spec.VectorStoreIDs) == 0 {
			spec.VectorStoreIDs = []string{entry.VectorStoreName}
		}
		tools = append(tools, spec)
	}

	for name := range file.Tools {
		if !knownToolKind(name) {
			log.Warn().Str("tool", name).Msg("unknown tool kind in agent config, ignored")
		}
	}
	return tools, nil
}

func knownToolKind(name string) bool {
	for _, kind := range models.ToolKinds {
		if string(kind) == name {
			return true
		}
	}
	return false
}
