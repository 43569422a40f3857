// Package loader streams rows from resolved columnar sources into the
// reconstructed store, parents before children, with bulk-load pragmas
// and exact type fidelity. It only ever inserts; nothing is updated or
// deleted within a run.
package loader

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"pron-dist/internal/colfile"
	"pron-dist/internal/dist"
	"pron-dist/internal/resolver"
	"pron-dist/internal/schema"

	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// DefaultBatchSize is the number of rows per committed transaction. A
// performance knob only: any batch size yields an identical final state.
const DefaultBatchSize = 10000

var fastPragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA cache_size = -131072",
	"PRAGMA temp_store = MEMORY",
	"PRAGMA mmap_size = 536870912",
	"PRAGMA foreign_keys = OFF",
}

var restorePragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA wal_checkpoint(FULL)",
}

// Options tunes the load phase.
type Options struct {
	BatchSize int
}

// Result reports one table's load.
type Result struct {
	Table    string
	Inserted int64
	Bytes    int64
	Elapsed  time.Duration
}

// ApplyFastPragmas configures the store for bulk loading. Foreign keys go
// off for the duration of the load; ordering plus validation restore the
// guarantee afterwards.
func ApplyFastPragmas(db *sql.DB) error {
	for _, p := range fastPragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return nil
}

// RestorePragmas re-enables foreign keys and checkpoints the WAL after a
// completed load.
func RestorePragmas(db *sql.DB) error {
	for _, p := range restorePragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return nil
}

// Load streams every table of the plan into the store. The plan must be
// in dependency order (VerifyOrder is enforced here); tables without a
// resolved source are skipped only if the manifest never named them —
// callers resolve all manifest tables up front.
func Load(db *sql.DB, plan []*schema.Table, sources map[string]*resolver.Source,
	opts Options, log *zap.SugaredLogger, onTable func(Result)) ([]Result, error) {

	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if err := schema.VerifyOrder(plan); err != nil {
		return nil, err
	}

	var results []Result
	for _, t := range plan {
		src, ok := sources[t.Name]
		if !ok {
			continue // schema-only table: not part of the distribution
		}
		start := time.Now()
		n, err := loadTable(db, t, src, opts.BatchSize)
		if err != nil {
			return results, err
		}
		res := Result{Table: t.Name, Inserted: n, Bytes: src.Bytes, Elapsed: time.Since(start)}
		results = append(results, res)
		log.Infow("loaded table", "table", t.Name, "rows", n, "elapsed", res.Elapsed)
		if onTable != nil {
			onTable(res)
		}
	}
	return results, nil
}

func loadTable(db *sql.DB, t *schema.Table, src *resolver.Source, batchSize int) (int64, error) {
	r, err := colfile.Open(src.Path)
	if err != nil {
		return 0, fmt.Errorf("open source for %s: %w", t.Name, err)
	}
	defer r.Close()

	cols := r.Columns()
	if err := checkColumnTypes(t, cols); err != nil {
		return 0, err
	}

	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		names[i] = schema.Quote(c.Name)
		marks[i] = "?"
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		schema.Quote(t.Name), strings.Join(names, ", "), strings.Join(marks, ", "))

	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	stmt, err := tx.Prepare(insertSQL)
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	var inserted int64
	scanErr := r.Scan(func(i int64, row []any) error {
		if _, err := stmt.Exec(row...); err != nil {
			return classifyInsertError(t.Name, i, err)
		}
		inserted++
		if inserted%int64(batchSize) == 0 {
			stmt.Close()
			if err := tx.Commit(); err != nil {
				return err
			}
			if tx, err = db.Begin(); err != nil {
				return err
			}
			if stmt, err = tx.Prepare(insertSQL); err != nil {
				return err
			}
		}
		return nil
	})
	if scanErr != nil {
		stmt.Close()
		tx.Rollback()
		return inserted, scanErr
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return inserted, err
	}
	return inserted, nil
}

// checkColumnTypes verifies the columnar schema against the relational
// one before the first row: every source column must exist and carry the
// storage kind its declared type implies. Values are never coerced.
func checkColumnTypes(t *schema.Table, cols []colfile.Column) error {
	for _, c := range cols {
		dst := t.Column(c.Name)
		if dst == nil {
			return &dist.LoadTypeError{
				Table: t.Name, Column: c.Name,
				Declared: "(no such column)", Got: c.Kind.String(),
			}
		}
		if want := colfile.KindFromDecl(dst.DeclType); want != c.Kind {
			return &dist.LoadTypeError{
				Table: t.Name, Column: c.Name,
				Declared: fmt.Sprintf("%s (%s)", dst.DeclType, want), Got: c.Kind.String(),
			}
		}
	}
	return nil
}

func classifyInsertError(table string, row int64, err error) error {
	var serr sqlite3.Error
	if errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint {
		return &dist.IntegrityViolationError{Table: table, Row: row, Rule: serr.Error(), Err: err}
	}
	return fmt.Errorf("insert into %s row %d: %w", table, row, err)
}
