// Package pipeline drives a full reconstruction: resolve sources, apply
// the schema, load, restore pragmas, validate. Phases run strictly in
// sequence; the first failing phase aborts the run, except validation,
// whose suites always run to completion once loading succeeded.
package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"pron-dist/internal/dist"
	"pron-dist/internal/loader"
	"pron-dist/internal/manifest"
	"pron-dist/internal/resolver"
	"pron-dist/internal/schema"
	"pron-dist/internal/validator"

	"go.uber.org/zap"
)

// State tracks how far a reconstruction got.
type State int

const (
	StateIdle State = iota
	StateSchemaApplied
	StateLoaded
	StateValidated
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSchemaApplied:
		return "schema-applied"
	case StateLoaded:
		return "loaded"
	case StateValidated:
		return "validated"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Options configures a reconstruction run.
type Options struct {
	Root       string // distribution root holding schema/ and data/
	OutputPath string // SQLite artifact to produce
	Resolver   resolver.Options
	Load       loader.Options
	Validation validator.Options
	// OnTable is invoked after each table finishes loading, for progress
	// display. May be nil.
	OnTable func(loader.Result)
}

// Outcome is the full result of a run. Err is nil only in
// StateSucceeded.
type Outcome struct {
	State   State
	Sources map[string]*resolver.Source
	Loaded  []loader.Result
	Reports []validator.Report
	Err     error
}

// Run reconstructs the store at opts.OutputPath from the distribution at
// opts.Root. A pre-existing artifact is removed only once every source
// has resolved: a run that fails before then leaves it untouched. On
// failure after that point the partial artifact is kept as
// <output>.invalid for inspection.
func Run(ctx context.Context, opts Options, log *zap.SugaredLogger) *Outcome {
	out := &Outcome{State: StateIdle}

	var db *sql.DB
	touched := false
	fail := func(err error) *Outcome {
		out.State = StateFailed
		out.Err = err
		if db != nil {
			// Close first so the WAL checkpoints into the main file
			// before it is renamed.
			db.Close()
			db = nil
		}
		if touched {
			quarantine(opts.OutputPath)
		}
		return out
	}

	m, err := manifest.Load(filepath.Join(opts.Root, "schema", "table_manifest.json"))
	if err != nil {
		return fail(err)
	}
	log.Infow("manifest loaded", "tables", len(m.Tables))

	ddl, err := os.ReadFile(filepath.Join(opts.Root, "schema", "schema.sql"))
	if err != nil {
		return fail(&dist.ManifestParseError{
			Path:   filepath.Join(opts.Root, "schema", "schema.sql"),
			Reason: "schema DDL unreadable",
			Err:    err,
		})
	}

	// All sources must resolve before the artifact is touched.
	opts.Resolver.Root = opts.Root
	res := resolver.New(opts.Resolver, log)
	out.Sources, err = res.ResolveAll(ctx, m)
	if err != nil {
		return fail(err)
	}

	if err := freshOutput(opts.OutputPath); err != nil {
		return fail(err)
	}
	touched = true
	db, err = sql.Open("sqlite3", opts.OutputPath)
	if err != nil {
		return fail(err)
	}
	defer func() {
		if db != nil {
			db.Close()
		}
	}()

	if err := schema.Apply(db, string(ddl)); err != nil {
		return fail(err)
	}
	out.State = StateSchemaApplied
	log.Infow("schema applied", "output", opts.OutputPath)

	if err := loader.ApplyFastPragmas(db); err != nil {
		return fail(err)
	}
	plan, err := schema.Analyze(db)
	if err != nil {
		return fail(err)
	}
	out.Loaded, err = loader.Load(db, plan, out.Sources, opts.Load, log, opts.OnTable)
	if err != nil {
		return fail(err)
	}
	if err := loader.CheckSymmetry(db, loader.DefaultSymmetry); err != nil {
		return fail(err)
	}
	if err := loader.RestorePragmas(db); err != nil {
		return fail(err)
	}
	out.State = StateLoaded

	reports, ok := validator.Run(db, m, opts.Validation)
	out.Reports = reports
	out.State = StateValidated
	if !ok {
		return fail(&dist.ValidationFailure{
			FailedSuites: validator.FailedSuites(reports),
		})
	}

	out.State = StateSucceeded
	return out
}

// Validate runs the validation suites against an existing artifact
// without touching it. The store is opened read-only; a missing artifact
// is a source error, never a validation verdict.
func Validate(dbPath, root string, opts validator.Options) (*Outcome, error) {
	m, err := manifest.Load(filepath.Join(root, "schema", "table_manifest.json"))
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dbPath); err != nil {
		return nil, &dist.SourceNotFoundError{Path: dbPath}
	}
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, err
	}
	defer db.Close()

	out := &Outcome{State: StateValidated}
	reports, ok := validator.Run(db, m, opts)
	out.Reports = reports
	if !ok {
		out.State = StateFailed
		out.Err = &dist.ValidationFailure{FailedSuites: validator.FailedSuites(reports)}
		return out, out.Err
	}
	out.State = StateSucceeded
	return out, nil
}

// freshOutput clears a previous artifact, WAL sidecars included.
func freshOutput(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// quarantine renames a partial artifact to <path>.invalid so a failed
// run never leaves something that looks usable. Sidecars move with it in
// case the WAL did not fully checkpoint on close.
func quarantine(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	os.Rename(path, path+".invalid")
	for _, ext := range []string{"-wal", "-shm"} {
		os.Rename(path+ext, path+".invalid"+ext)
	}
}
