package inference

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Label manifests come in two historical shapes: a JSON object keyed by the
// numeric class index, or a plain JSON array. Both normalize to one ordered
// list; anything else is rejected as a schema error.

// LoadLabels reads and parses a label manifest.
func LoadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read label manifest: %w", err)
	}

	labels, err := ParseLabels(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return labels, nil
}

// ParseLabels normalizes a manifest to an ordered label list.
func ParseLabels(data []byte) ([]string, error) {
	var asList []string
	if err := json.Unmarshal(data, &asList); err == nil {
		return cleanLabels(asList), nil
	}

	var asMap map[string]string
	if err := json.Unmarshal(data, &asMap); err == nil {
		indices := make([]int, 0, len(asMap))
		byIndex := make(map[int]string, len(asMap))
		for key, label := range asMap {
			idx, err := strconv.Atoi(key)
			if err != nil {
				return nil, fmt.Errorf("label manifest key %q is not a class index", key)
			}
			indices = append(indices, idx)
			byIndex[idx] = label
		}
		sort.Ints(indices)

		labels := make([]string, 0, len(indices))
		for _, idx := range indices {
			labels = append(labels, byIndex[idx])
		}
		return cleanLabels(labels), nil
	}

	return nil, errors.New("label manifest must be a JSON array or an object keyed by class index")
}

// cleanLabels strips the stray quotes some manifest exports carry.
func cleanLabels(labels []string) []string {
	out := make([]string, len(labels))
	for i, label := range labels {
		out[i] = strings.Trim(label, `"`)
	}
	return out
}
