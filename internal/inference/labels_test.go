package inference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLabels_ListForm(t *testing.T) {
	labels, err := ParseLabels([]byte(`["Pikachu", "Eevee", "\"Ditto\""]`))
	require.NoError(t, err)

	assert.Equal(t, []string{"Pikachu", "Eevee", "Ditto"}, labels)
}

func TestParseLabels_MapFormSortsNumerically(t *testing.T) {
	// Key order is deliberately scrambled and includes a two-digit index;
	// a lexicographic sort would put "10" before "2".
	manifest := []byte(`{"10": "Mew", "0": "Pikachu", "2": "Eevee", "1": "\"Bulbasaur\""}`)

	labels, err := ParseLabels(manifest)
	require.NoError(t, err)

	assert.Equal(t, []string{"Pikachu", "Bulbasaur", "Eevee", "Mew"}, labels)
}

func TestParseLabels_RejectsOtherShapes(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
	}{
		{"number", `42`},
		{"string", `"Pikachu"`},
		{"non-numeric key", `{"first": "Pikachu"}`},
		{"nested object", `{"0": {"name": "Pikachu"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLabels([]byte(tt.manifest))
			assert.Error(t, err)
		})
	}
}

func TestLoadLabels_MissingFile(t *testing.T) {
	_, err := LoadLabels(filepath.Join(t.TempDir(), "labels.json"))
	assert.Error(t, err)
}

func TestLoadMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model_metadata.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"class_names": ["Pikachu", "Eevee"],
		"image_width": 336,
		"image_height": 224
	}`), 0o644))

	meta, err := LoadMetadata(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Pikachu", "Eevee"}, meta.ClassNames)
	assert.Equal(t, 336, meta.ImageWidth)
	assert.Equal(t, 224, meta.ImageHeight)
}

func TestLoadMetadata_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no classes", `{"image_width": 336, "image_height": 224}`},
		{"zero geometry", `{"class_names": ["Pikachu"], "image_width": 0, "image_height": 224}`},
		{"not JSON", `not json at all`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "model_metadata.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := LoadMetadata(path)
			assert.Error(t, err)
		})
	}
}
