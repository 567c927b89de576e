package processing

import (
	"fmt"
	"strings"
)

// DefaultChunkSize is the chunk size, in runes, used when a source sets none.
const DefaultChunkSize = 800

// SourceConfig describes one knowledge-base source
// yaml tags tell our parser how to map the YAML fields to our struct
type SourceConfig struct {
	Name       string   `yaml:"name"`
	URI        string   `yaml:"uri"`
	ChunkSize  int      `yaml:"chunk_size,omitempty"`
	Extensions []string `yaml:"extensions,omitempty"`
}

// KnowledgeManifest is the top-level struct of a knowledge manifest file
type KnowledgeManifest struct {
	Sources []SourceConfig `yaml:"sources"`
}

// IsGCS reports whether the source lives in a Google Cloud Storage bucket.
func (s SourceConfig) IsGCS() bool {
	return strings.HasPrefix(s.URI, "gs://")
}

// EffectiveChunkSize returns the configured chunk size or the default.
func (s SourceConfig) EffectiveChunkSize() int {
	if s.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return s.ChunkSize
}

// AcceptsFile reports whether a file name matches the source's extensions.
// Without an explicit list, .md and .txt files are accepted.
func (s SourceConfig) AcceptsFile(name string) bool {
	exts := s.Extensions
	if len(exts) == 0 {
		exts = []string{".md", ".txt"}
	}
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// NeedsGCS reports whether any source must be read from Cloud Storage.
func (m *KnowledgeManifest) NeedsGCS() bool {
	for _, s := range m.Sources {
		if s.IsGCS() {
			return true
		}
	}
	return false
}

// Source returns the source with the given name.
func (m *KnowledgeManifest) Source(name string) (SourceConfig, bool) {
	for _, s := range m.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return SourceConfig{}, false
}

// Validate checks if the KnowledgeManifest is valid
func (m *KnowledgeManifest) Validate() error {
	if len(m.Sources) == 0 {
		return fmt.Errorf("manifest validation failed: have at least one source")
	}

	seen := make(map[string]bool)
	for i, s := range m.Sources {
		if s.Name == "" {
			return fmt.Errorf("manifest validation failed: source %d: name is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("manifest validation failed: duplicate source name '%s'", s.Name)
		}
		seen[s.Name] = true

		if s.URI == "" {
			return fmt.Errorf("manifest validation failed: source '%s': uri is required", s.Name)
		}
		if s.IsGCS() && strings.TrimPrefix(s.URI, "gs://") == "" {
			return fmt.Errorf("manifest validation failed: source '%s': gs:// uri needs a bucket", s.Name)
		}
		if s.ChunkSize < 0 {
			return fmt.Errorf("manifest validation failed: source '%s': chunk_size must not be negative", s.Name)
		}
	}
	return nil
}
