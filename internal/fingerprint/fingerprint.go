// Package fingerprint computes a deterministic digest of an agent
// configuration. The digest detects drift between the local definition and
// the last published version; it is not a security boundary.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/agentrelay/agentrelay/pkg/models"
)

// canonicalConfig is the serialization the digest covers. Field names are
// fixed and encoding/json emits struct fields in declaration order, so the
// byte form is stable for equivalent configs.
type canonicalConfig struct {
	Name         string          `json:"agent_name"`
	Model        string          `json:"model_name"`
	Instructions string          `json:"instructions"`
	Tools        []canonicalTool `json:"tools"`
}

type canonicalTool struct {
	Kind           models.ToolKind `json:"kind"`
	Enabled        bool            `json:"enabled"`
	ConnectionName string          `json:"connection_name"`
	IndexName      string          `json:"index_name"`
	VectorStoreIDs []string        `json:"vector_store_ids"`
}

// Compute returns the SHA-256 hex digest of the canonical form of cfg.
// Identical configs always digest identically; any change to the model,
// the normalized instructions, or any tool's enabled flag or parameters
// changes the digest. Disabled tools still contribute: a config with zero
// tools digests differently from one listing disabled tools.
func Compute(cfg models.AgentConfig) string {
	canon := canonicalConfig{
		Name:         cfg.Name,
		Model:        cfg.Model,
		Instructions: NormalizeInstructions(cfg.Instructions),
		Tools:        make([]canonicalTool, 0, len(cfg.Tools)),
	}
	for _, t := range cfg.Tools {
		ids := t.VectorStoreIDs
		if ids == nil {
			ids = []string{}
		}
		canon.Tools = append(canon.Tools, canonicalTool{
			Kind:           t.Kind,
			Enabled:        t.Enabled,
			ConnectionName: t.ConnectionName,
			IndexName:      t.IndexName,
			VectorStoreIDs: ids,
		})
	}

	// Marshal of a struct with only strings, bools and slices cannot fail.
	data, _ := json.Marshal(canon)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NormalizeInstructions canonicalizes the instruction text so cosmetic
// whitespace edits do not force a republish: line endings become LF,
// trailing whitespace is stripped per line and the text ends without a
// trailing newline.
func NormalizeInstructions(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}
