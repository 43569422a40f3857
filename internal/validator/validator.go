// Package validator proves a reconstructed store correct: row-count
// reconciliation against the manifest, exhaustive foreign-key checks,
// ground-truth spot checks and view smoke tests. Every suite runs to
// completion even when an earlier one fails, so one run surfaces every
// defect. The validator never mutates the store.
package validator

import (
	"database/sql"
	"fmt"

	"pron-dist/internal/manifest"
	"pron-dist/internal/schema"
)

// Suite names, as they appear in reports.
const (
	SuiteRowCounts   = "row-counts"
	SuiteForeignKeys = "foreign-keys"
	SuiteSpotChecks  = "spot-checks"
	SuiteViews       = "view-smoke"
)

const defaultMaxDetails = 10

// Report is the outcome of one validation suite.
type Report struct {
	Suite   string
	Passed  bool
	Checked int
	Failed  int
	Details []string
}

// SpotCheck is a single ground-truth assertion: the query's first value
// must equal Expect.
type SpotCheck struct {
	ID     string
	SQL    string
	Expect any
}

// Options configures a validation run.
type Options struct {
	MaxDetails    int         // diagnostics kept per suite; the rest are summarized
	SpotChecks    []SpotCheck // defaults to DefaultSpotChecks
	NonEmptyViews []string    // views that must return at least one row
}

// Run executes all four suites and reports whether every one passed.
func Run(db *sql.DB, m *manifest.Manifest, opts Options) ([]Report, bool) {
	if opts.MaxDetails <= 0 {
		opts.MaxDetails = defaultMaxDetails
	}
	if opts.SpotChecks == nil {
		opts.SpotChecks = DefaultSpotChecks
	}
	if opts.NonEmptyViews == nil {
		opts.NonEmptyViews = DefaultNonEmptyViews
	}

	reports := []Report{
		runRowCounts(db, m, opts),
		runForeignKeys(db, opts),
		runSpotChecks(db, opts),
		runViews(db, opts),
	}
	ok := true
	for _, r := range reports {
		if !r.Passed {
			ok = false
		}
	}
	return reports, ok
}

// FailedSuites lists the names of failed suites.
func FailedSuites(reports []Report) []string {
	var failed []string
	for _, r := range reports {
		if !r.Passed {
			failed = append(failed, r.Suite)
		}
	}
	return failed
}

type collector struct {
	max     int
	dropped int
	details []string
}

func (c *collector) add(format string, args ...any) {
	if len(c.details) >= c.max {
		c.dropped++
		return
	}
	c.details = append(c.details, fmt.Sprintf(format, args...))
}

func (c *collector) finish() []string {
	if c.dropped > 0 {
		c.details = append(c.details, fmt.Sprintf("... and %d more", c.dropped))
	}
	return c.details
}

func runRowCounts(db *sql.DB, m *manifest.Manifest, opts Options) Report {
	c := &collector{max: opts.MaxDetails}
	checked, failed := 0, 0
	for _, name := range m.TableNames() {
		expected := m.Tables[name].Rows
		checked++
		var actual int64
		err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", schema.Quote(name))).Scan(&actual)
		if err != nil {
			failed++
			c.add("%s: %v", name, err)
			continue
		}
		if actual != expected {
			failed++
			c.add("%s: expected %d rows, actual %d", name, expected, actual)
		}
	}
	return Report{Suite: SuiteRowCounts, Passed: failed == 0, Checked: checked, Failed: failed, Details: c.finish()}
}

func runForeignKeys(db *sql.DB, opts Options) Report {
	c := &collector{max: opts.MaxDetails}
	failed := 0

	rows, err := db.Query("PRAGMA foreign_key_check")
	if err != nil {
		return Report{Suite: SuiteForeignKeys, Passed: false, Failed: 1,
			Details: []string{err.Error()}}
	}
	defer rows.Close()

	for rows.Next() {
		var table, parent string
		var rowid, fkid sql.NullInt64
		if err := rows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return Report{Suite: SuiteForeignKeys, Passed: false, Failed: failed + 1,
				Details: append(c.finish(), err.Error())}
		}
		failed++
		if rowid.Valid {
			c.add("orphan in %s rowid=%d referencing %s", table, rowid.Int64, parent)
		} else {
			c.add("orphan in %s referencing %s", table, parent)
		}
	}
	if err := rows.Err(); err != nil {
		failed++
		c.add("%v", err)
	}
	return Report{Suite: SuiteForeignKeys, Passed: failed == 0, Checked: 1, Failed: failed, Details: c.finish()}
}

func runSpotChecks(db *sql.DB, opts Options) Report {
	c := &collector{max: opts.MaxDetails}
	checked, failed := 0, 0
	for _, check := range opts.SpotChecks {
		checked++
		var actual any
		err := db.QueryRow(check.SQL).Scan(&actual)
		switch {
		case err == sql.ErrNoRows:
			failed++
			c.add("%s: expected %v, got no rows", check.ID, check.Expect)
		case err != nil:
			failed++
			c.add("%s: %v", check.ID, err)
		case !valuesEqual(actual, check.Expect):
			failed++
			c.add("%s: expected %v, got %v", check.ID, check.Expect, actual)
		}
	}
	return Report{Suite: SuiteSpotChecks, Passed: failed == 0, Checked: checked, Failed: failed, Details: c.finish()}
}

func runViews(db *sql.DB, opts Options) Report {
	c := &collector{max: opts.MaxDetails}
	checked, failed := 0, 0

	mustBeNonEmpty := make(map[string]bool, len(opts.NonEmptyViews))
	for _, v := range opts.NonEmptyViews {
		mustBeNonEmpty[v] = true
	}

	views, err := listViews(db)
	if err != nil {
		return Report{Suite: SuiteViews, Passed: false, Failed: 1, Details: []string{err.Error()}}
	}
	for _, view := range views {
		checked++
		var n int
		err := db.QueryRow(fmt.Sprintf(
			"SELECT COUNT(*) FROM (SELECT * FROM %s LIMIT 1)", schema.Quote(view))).Scan(&n)
		switch {
		case err != nil:
			failed++
			c.add("view %s: %v", view, err)
		case n == 0 && mustBeNonEmpty[view]:
			failed++
			c.add("view %s returned no rows", view)
		}
	}
	return Report{Suite: SuiteViews, Passed: failed == 0, Checked: checked, Failed: failed, Details: c.finish()}
}

func listViews(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'view' ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var views []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		views = append(views, name)
	}
	return views, rows.Err()
}

// valuesEqual compares a scanned value with an expectation, normalizing
// the driver's representations (TEXT scans as []byte on some paths).
func valuesEqual(actual, expect any) bool {
	if b, ok := actual.([]byte); ok {
		actual = string(b)
	}
	if actual == nil || expect == nil {
		return actual == nil && expect == nil
	}
	return fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", expect)
}
