// Package export splits a source SQLite database into the Parquet
// distribution: per-table columnar files, first-N samples, the extracted
// DDL and the checksummed table manifest.
package export

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pron-dist/internal/colfile"
	"pron-dist/internal/manifest"
	"pron-dist/internal/resolver"
	"pron-dist/internal/schema"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// DefaultLookupThreshold splits lookup tables (kept in git) from large
// tables (released as assets).
const DefaultLookupThreshold = 5000

// DefaultSampleSize is the number of rows written to each sample file.
const DefaultSampleSize = 1000

// zstdLevel is recorded in the manifest for provenance.
const zstdLevel = 9

// DefaultSkipTables are never exported: SQLite internals plus cache
// tables that are rebuilt by triggers or left empty at runtime.
var DefaultSkipTables = map[string]bool{
	"sqlite_sequence":    true,
	"AntonymCache":       true,
	"CompoundWordParts":  true,
	"EmbeddingModels":    true,
	"MaintenanceLogs":    true,
	"MorphologicalForms": true,
	"SenseEmbeddings":    true,
	"TestCaseResults":    true,
	"TestRuns":           true,
	"WordEmbeddings":     true,
}

// integritySelects override the export query for tables holding orphan
// rows from historic migrations run with FK enforcement off. The JOINs
// use the word_id indexes, and the reconstructed DB comes out clean.
var integritySelects = map[string]string{
	"Variants": `SELECT v.* FROM "Variants" v
		INNER JOIN "Words" w ON v.word_id = w.word_id`,
	"SemanticRelationships": `SELECT sr.* FROM "SemanticRelationships" sr
		INNER JOIN "Words" w1 ON sr.source_word_id = w1.word_id
		INNER JOIN "Words" w2 ON sr.target_word_id = w2.word_id`,
	"SynonymCache": `SELECT sc.* FROM "SynonymCache" sc
		INNER JOIN "Words" w1 ON sc.word_id = w1.word_id
		INNER JOIN "Words" w2 ON sc.synonym_word_id = w2.word_id`,
}

// Options configures an export run.
type Options struct {
	SourceDB        string // path to the source SQLite database
	OutRoot         string // distribution root to write into
	SampleSize      int
	LookupThreshold int64
	SkipLarge       bool // lookup tables only, for fast iteration
	SkipTables      map[string]bool
}

// Result summarizes one export run.
type Result struct {
	Manifest    *manifest.Manifest
	LookupCount int
	LargeCount  int
	TotalBytes  int64
}

// Run exports every eligible table and writes schema/schema.sql plus
// schema/table_manifest.json under the output root.
func Run(db *sql.DB, opts Options, log *zap.SugaredLogger) (*Result, error) {
	if opts.SampleSize <= 0 {
		opts.SampleSize = DefaultSampleSize
	}
	if opts.LookupThreshold <= 0 {
		opts.LookupThreshold = DefaultLookupThreshold
	}
	if opts.SkipTables == nil {
		opts.SkipTables = DefaultSkipTables
	}
	sourceName := filepath.Base(opts.SourceDB)

	tables, err := schema.Analyze(db)
	if err != nil {
		return nil, err
	}

	ddl, err := schema.Extract(db, sourceName)
	if err != nil {
		return nil, err
	}
	schemaDir := filepath.Join(opts.OutRoot, "schema")
	if err := os.MkdirAll(schemaDir, 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(schemaDir, "schema.sql"), []byte(ddl), 0o644); err != nil {
		return nil, err
	}

	m := &manifest.Manifest{
		Tables: make(map[string]manifest.Entry),
		ExportMeta: manifest.ExportMeta{
			SourceDB:       sourceName,
			ZstdLevel:      zstdLevel,
			InGitThreshold: opts.LookupThreshold,
			ExportTime:     time.Now().Unix(),
		},
	}
	res := &Result{Manifest: m}

	for _, t := range tables {
		if opts.SkipTables[t.Name] {
			continue
		}
		var count int64
		if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", schema.Quote(t.Name))).Scan(&count); err != nil {
			return nil, fmt.Errorf("count %s: %w", t.Name, err)
		}
		category := manifest.CategoryLookup
		if count > opts.LookupThreshold {
			category = manifest.CategoryLarge
		}
		if opts.SkipLarge && category == manifest.CategoryLarge {
			log.Infow("skipping large table", "table", t.Name, "rows", count)
			continue
		}

		subdir := "lookups"
		if category == manifest.CategoryLarge {
			subdir = "release"
			res.LargeCount++
		} else {
			res.LookupCount++
		}
		dest := filepath.Join(opts.OutRoot, "data", subdir, t.Name+".parquet")

		exported, err := exportTable(db, t, sourceName, dest, 0)
		if err != nil {
			return nil, err
		}

		samplePath := filepath.Join(opts.OutRoot, "data", "samples", t.Name+"_sample.parquet")
		if _, err := exportTable(db, t, sourceName, samplePath, opts.SampleSize); err != nil {
			return nil, err
		}

		st, err := os.Stat(dest)
		if err != nil {
			return nil, err
		}
		checksum, err := resolver.FileSHA256(dest)
		if err != nil {
			return nil, err
		}
		res.TotalBytes += st.Size()

		m.Tables[t.Name] = manifest.Entry{
			Rows:        exported,
			Category:    category,
			ParquetPath: filepath.ToSlash(filepath.Join("data", subdir, t.Name+".parquet")),
			SamplePath:  filepath.ToSlash(filepath.Join("data", "samples", t.Name+"_sample.parquet")),
			SizeBytes:   st.Size(),
			SizeHuman:   humanize.Bytes(uint64(st.Size())),
			SHA256:      checksum,
		}
		log.Infow("exported table",
			"table", t.Name, "rows", exported, "category", category,
			"size", humanize.Bytes(uint64(st.Size())))
	}

	if err := m.Save(filepath.Join(schemaDir, "table_manifest.json")); err != nil {
		return nil, err
	}
	return res, nil
}

// exportTable streams one table into a Parquet file. limit > 0 writes a
// sample of at most that many rows.
func exportTable(db *sql.DB, t *schema.Table, sourceName, dest string, limit int) (int64, error) {
	cols := make([]colfile.Column, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = colfile.Column{Name: c.Name, Kind: colfile.KindFromDecl(c.DeclType)}
	}

	query := integritySelects[t.Name]
	if query == "" {
		query = fmt.Sprintf("SELECT * FROM %s", schema.Quote(t.Name))
	}
	if limit > 0 {
		query = fmt.Sprintf("%s LIMIT %d", query, limit)
	}

	rows, err := db.Query(query)
	if err != nil {
		return 0, fmt.Errorf("export %s: %w", t.Name, err)
	}
	defer rows.Close()

	w, err := colfile.NewWriter(dest, t.Name, sourceName, cols)
	if err != nil {
		return 0, err
	}

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			w.Close()
			return 0, fmt.Errorf("export %s: %w", t.Name, err)
		}
		if err := w.Append(vals); err != nil {
			w.Close()
			return 0, fmt.Errorf("export %s: %w", t.Name, err)
		}
	}
	if err := rows.Err(); err != nil {
		w.Close()
		return 0, err
	}
	n := w.Rows()
	return n, w.Close()
}
