// Package manifest reads and writes the table manifest that records
// expected row counts and checksums for every table in the distribution.
package manifest

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"pron-dist/internal/dist"

	json "github.com/goccy/go-json"
)

// Storage classes. Lookup tables travel in git; large tables are release
// assets.
const (
	CategoryLookup = "lookup"
	CategoryLarge  = "large"
)

var sha256Hex = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Entry describes one table of the distribution.
type Entry struct {
	Rows        int64  `json:"rows"`
	Category    string `json:"category"`
	ParquetPath string `json:"parquet_path"`
	SamplePath  string `json:"sample_path,omitempty"`
	SizeBytes   int64  `json:"size_bytes"`
	SizeHuman   string `json:"size_human,omitempty"`
	SHA256      string `json:"sha256"`
}

// ExportMeta records how the distribution was produced.
type ExportMeta struct {
	SourceDB       string `json:"source_db"`
	ZstdLevel      int    `json:"zstd_level"`
	InGitThreshold int64  `json:"in_git_threshold"`
	ExportTime     int64  `json:"export_time,omitempty"`
}

// Manifest maps table names to their distribution entries.
type Manifest struct {
	Tables     map[string]Entry `json:"tables"`
	ExportMeta ExportMeta       `json:"export_meta"`
}

// TableNames returns the manifest's table names in sorted order, for
// deterministic iteration.
func (m *Manifest) TableNames() []string {
	names := make([]string, 0, len(m.Tables))
	for name := range m.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &dist.ManifestParseError{Path: path, Err: err}
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, &dist.ManifestParseError{Path: path, Err: err}
	}
	if len(m.Tables) == 0 {
		return nil, &dist.ManifestParseError{Path: path, Reason: "no tables"}
	}
	for name, e := range m.Tables {
		if err := validateEntry(name, e); err != nil {
			return nil, &dist.ManifestParseError{Path: path, Reason: err.Error()}
		}
	}
	return &m, nil
}

func validateEntry(name string, e Entry) error {
	if name == "" {
		return fmt.Errorf("empty table name")
	}
	if e.Rows < 0 {
		return fmt.Errorf("table %s: negative row count %d", name, e.Rows)
	}
	if e.Category != CategoryLookup && e.Category != CategoryLarge {
		return fmt.Errorf("table %s: unknown category %q", name, e.Category)
	}
	if e.ParquetPath == "" {
		return fmt.Errorf("table %s: missing parquet_path", name)
	}
	if e.SHA256 != "" && !sha256Hex.MatchString(e.SHA256) {
		return fmt.Errorf("table %s: malformed sha256 %q", name, e.SHA256)
	}
	return nil
}

// Save writes the manifest as indented JSON.
func (m *Manifest) Save(path string) error {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}
