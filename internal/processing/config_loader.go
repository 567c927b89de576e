package processing

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadManifest reads and validates a knowledge manifest. Relative local source
// URIs are resolved against the manifest's directory.
func LoadManifest(path string) (*KnowledgeManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	var manifest KnowledgeManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse YAML for %s: %w", path, err)
	}

	if err := manifest.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed for %s: %w", path, err)
	}

	baseDir := filepath.Dir(path)
	for i, s := range manifest.Sources {
		if !s.IsGCS() && !filepath.IsAbs(s.URI) {
			manifest.Sources[i].URI = filepath.Join(baseDir, s.URI)
		}
	}

	slog.Info("Loaded knowledge manifest", "file", path, "sources", len(manifest.Sources))
	return &manifest, nil
}
