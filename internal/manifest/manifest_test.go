package manifest_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pron-dist/internal/dist"
	"pron-dist/internal/manifest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "table_manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const goodManifest = `{
  "tables": {
    "PartOfSpeech": {
      "rows": 43,
      "category": "lookup",
      "parquet_path": "data/lookups/PartOfSpeech.parquet",
      "size_bytes": 2048,
      "sha256": ""
    },
    "Words": {
      "rows": 125000,
      "category": "large",
      "parquet_path": "data/release/Words.parquet",
      "size_bytes": 9000000,
      "sha256": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
    }
  },
  "export_meta": {"source_db": "ultimate_2025_enhanced.db", "zstd_level": 9, "in_git_threshold": 5000}
}`

func TestLoad(t *testing.T) {
	m, err := manifest.Load(writeManifest(t, goodManifest))
	require.NoError(t, err)

	assert.Len(t, m.Tables, 2)
	assert.Equal(t, []string{"PartOfSpeech", "Words"}, m.TableNames())
	assert.Equal(t, int64(43), m.Tables["PartOfSpeech"].Rows)
	assert.Equal(t, manifest.CategoryLarge, m.Tables["Words"].Category)
	assert.Equal(t, int64(5000), m.ExportMeta.InGitThreshold)
}

func TestLoadRejectsMalformedManifests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"tables": `},
		{"no tables", `{"tables": {}}`},
		{"negative rows", `{"tables": {"Words": {"rows": -1, "category": "large", "parquet_path": "x", "sha256": ""}}}`},
		{"unknown category", `{"tables": {"Words": {"rows": 1, "category": "huge", "parquet_path": "x", "sha256": ""}}}`},
		{"missing parquet_path", `{"tables": {"Words": {"rows": 1, "category": "large", "sha256": ""}}}`},
		{"bad checksum", `{"tables": {"Words": {"rows": 1, "category": "large", "parquet_path": "x", "sha256": "zzz"}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := manifest.Load(writeManifest(t, tt.body))
			require.Error(t, err)
			var parseErr *dist.ManifestParseError
			assert.True(t, errors.As(err, &parseErr), "want ManifestParseError, got %T", err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := manifest.Load(filepath.Join(t.TempDir(), "nope.json"))
	var parseErr *dist.ManifestParseError
	require.True(t, errors.As(err, &parseErr))
	assert.True(t, strings.Contains(parseErr.Path, "nope.json"))
}

func TestSaveRoundTrip(t *testing.T) {
	m := &manifest.Manifest{
		Tables: map[string]manifest.Entry{
			"Languages": {Rows: 1, Category: manifest.CategoryLookup, ParquetPath: "data/lookups/Languages.parquet"},
		},
		ExportMeta: manifest.ExportMeta{SourceDB: "test.db", ZstdLevel: 9, InGitThreshold: 5000},
	}
	path := filepath.Join(t.TempDir(), "m.json")
	require.NoError(t, m.Save(path))

	got, err := manifest.Load(path)
	require.NoError(t, err)
	assert.Equal(t, m.Tables, got.Tables)
	assert.Equal(t, m.ExportMeta, got.ExportMeta)
}
