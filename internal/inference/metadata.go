package inference

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Metadata describes the secondary stage: its label space and its own
// input geometry, which is independent of the primary's.
type Metadata struct {
	ClassNames  []string `json:"class_names"`
	ImageWidth  int      `json:"image_width"`
	ImageHeight int      `json:"image_height"`
}

// LoadMetadata reads and validates a model metadata manifest.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model metadata: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse model metadata %s: %w", path, err)
	}

	if len(meta.ClassNames) == 0 {
		return nil, errors.New("model metadata has no class names")
	}
	if meta.ImageWidth <= 0 || meta.ImageHeight <= 0 {
		return nil, fmt.Errorf("model metadata has invalid input geometry %dx%d", meta.ImageWidth, meta.ImageHeight)
	}

	return &meta, nil
}
