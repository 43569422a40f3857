package validator_test

import (
	"database/sql"
	"testing"

	"pron-dist/internal/manifest"
	"pron-dist/internal/validator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "github.com/mattn/go-sqlite3"
)

const fixtureDDL = `
CREATE TABLE PartOfSpeech (
	pos_id INTEGER PRIMARY KEY,
	pos_abbreviation TEXT NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE Words (
	word_id INTEGER PRIMARY KEY,
	word TEXT NOT NULL,
	part_of_speech INTEGER REFERENCES PartOfSpeech(pos_id)
);
CREATE TABLE Variants (
	variant_id INTEGER PRIMARY KEY,
	word_id INTEGER NOT NULL REFERENCES Words(word_id),
	stress_pattern TEXT NOT NULL
);
CREATE VIEW POSLookup AS SELECT pos_id, pos_abbreviation AS abbreviation FROM PartOfSpeech;
CREATE VIEW v_StressPatterns AS
SELECT w.word, v.stress_pattern FROM Variants v JOIN Words w ON v.word_id = w.word_id;
`

func fixtureDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(fixtureDDL)
	require.NoError(t, err)

	_, err = db.Exec(`
	INSERT INTO PartOfSpeech (pos_id, pos_abbreviation, is_active) VALUES
		(9, 'NN', 1), (13, 'VB', 1);
	INSERT INTO Words (word_id, word, part_of_speech) VALUES
		(1, 'desert', 9), (2, 'desert', 13), (3, 'record', 9);
	INSERT INTO Variants (variant_id, word_id, stress_pattern) VALUES
		(1, 1, '1-0'), (2, 2, '0-1'), (3, 3, '0-1');`)
	require.NoError(t, err)
	return db
}

func fixtureManifest(posRows int64) *manifest.Manifest {
	return &manifest.Manifest{Tables: map[string]manifest.Entry{
		"PartOfSpeech": {Rows: posRows, Category: manifest.CategoryLookup, ParquetPath: "x"},
		"Words":        {Rows: 3, Category: manifest.CategoryLarge, ParquetPath: "x"},
		"Variants":     {Rows: 3, Category: manifest.CategoryLarge, ParquetPath: "x"},
	}}
}

// Heteronym ground truth: the spot checks the fixture can answer.
var fixtureChecks = []validator.SpotCheck{
	{ID: "desert-is-heteronym", Expect: int64(2),
		SQL: `SELECT COUNT(*) FROM Words w JOIN PartOfSpeech p ON w.part_of_speech = p.pos_id
		      WHERE LOWER(w.word) = 'desert' AND p.pos_abbreviation IN ('NN', 'VB')`},
	{ID: "desert-noun-stress", Expect: "1-0",
		SQL: `SELECT stress_pattern FROM Variants v JOIN Words w ON v.word_id = w.word_id
		      JOIN PartOfSpeech p ON w.part_of_speech = p.pos_id
		      WHERE LOWER(w.word) = 'desert' AND p.pos_abbreviation = 'NN' LIMIT 1`},
	{ID: "desert-verb-stress", Expect: "0-1",
		SQL: `SELECT stress_pattern FROM Variants v JOIN Words w ON v.word_id = w.word_id
		      JOIN PartOfSpeech p ON w.part_of_speech = p.pos_id
		      WHERE LOWER(w.word) = 'desert' AND p.pos_abbreviation = 'VB' LIMIT 1`},
}

var fixtureViews = []string{"POSLookup", "v_StressPatterns"}

func TestRunAllSuitesPass(t *testing.T) {
	db := fixtureDB(t)
	reports, ok := validator.Run(db, fixtureManifest(2), validator.Options{
		SpotChecks:    fixtureChecks,
		NonEmptyViews: fixtureViews,
	})
	require.True(t, ok, "reports: %+v", reports)
	require.Len(t, reports, 4)
	for _, r := range reports {
		assert.True(t, r.Passed, "suite %s: %v", r.Suite, r.Details)
		assert.Zero(t, r.Failed)
	}
	assert.Empty(t, validator.FailedSuites(reports))
}

// Manifest says 43 PartOfSpeech rows, store has 2: exactly one discrepancy
// naming the table and both counts, and overall validation fails.
func TestRowCountDiscrepancyIsReportedExactly(t *testing.T) {
	db := fixtureDB(t)
	reports, ok := validator.Run(db, fixtureManifest(43), validator.Options{
		SpotChecks:    fixtureChecks,
		NonEmptyViews: fixtureViews,
	})
	assert.False(t, ok)

	var rc validator.Report
	for _, r := range reports {
		if r.Suite == validator.SuiteRowCounts {
			rc = r
		}
	}
	assert.False(t, rc.Passed)
	assert.Equal(t, 1, rc.Failed)
	require.Len(t, rc.Details, 1)
	assert.Equal(t, "PartOfSpeech: expected 43 rows, actual 2", rc.Details[0])
	assert.Equal(t, []string{validator.SuiteRowCounts}, validator.FailedSuites(reports))
}

func TestForeignKeySuiteFindsOrphans(t *testing.T) {
	db := fixtureDB(t)
	// FK enforcement is off by default in SQLite, so the orphan inserts.
	_, err := db.Exec(`INSERT INTO Variants (variant_id, word_id, stress_pattern) VALUES (99, 12345, '1-0')`)
	require.NoError(t, err)

	reports, ok := validator.Run(db, fixtureManifest(2), validator.Options{
		SpotChecks:    fixtureChecks,
		NonEmptyViews: fixtureViews,
	})
	assert.False(t, ok)
	for _, r := range reports {
		if r.Suite == validator.SuiteForeignKeys {
			assert.False(t, r.Passed)
			require.NotEmpty(t, r.Details)
			assert.Contains(t, r.Details[0], "Variants")
			assert.Contains(t, r.Details[0], "Words")
		}
		if r.Suite == validator.SuiteRowCounts {
			// Other suites still ran and reported independently.
			assert.False(t, r.Passed, "extra orphan row also breaks the Variants count")
		}
	}
}

func TestSpotCheckMismatchNamesAssertion(t *testing.T) {
	db := fixtureDB(t)
	checks := append([]validator.SpotCheck{}, fixtureChecks...)
	checks = append(checks, validator.SpotCheck{
		ID: "record-noun-stress", Expect: "9-9",
		SQL: `SELECT stress_pattern FROM Variants WHERE variant_id = 3`,
	})
	reports, ok := validator.Run(db, fixtureManifest(2), validator.Options{
		SpotChecks:    checks,
		NonEmptyViews: fixtureViews,
	})
	assert.False(t, ok)
	for _, r := range reports {
		if r.Suite == validator.SuiteSpotChecks {
			assert.Equal(t, 1, r.Failed)
			require.Len(t, r.Details, 1)
			assert.Contains(t, r.Details[0], "record-noun-stress")
			assert.Contains(t, r.Details[0], "9-9")
		}
	}
}

func TestViewSmokeTests(t *testing.T) {
	db := fixtureDB(t)
	// Empty the Variants-backed view; POSLookup stays populated.
	_, err := db.Exec(`DELETE FROM Variants`)
	require.NoError(t, err)

	reports, _ := validator.Run(db, fixtureManifest(2), validator.Options{
		SpotChecks:    []validator.SpotCheck{},
		NonEmptyViews: fixtureViews,
	})
	for _, r := range reports {
		if r.Suite == validator.SuiteViews {
			assert.False(t, r.Passed)
			require.Len(t, r.Details, 1)
			assert.Contains(t, r.Details[0], "v_StressPatterns")
		}
	}
}

func TestDetailCapSummarizesOverflow(t *testing.T) {
	db := fixtureDB(t)
	m := &manifest.Manifest{Tables: map[string]manifest.Entry{}}
	for _, name := range []string{"A", "B", "C", "D", "E"} {
		m.Tables[name] = manifest.Entry{Rows: 1, Category: manifest.CategoryLookup, ParquetPath: "x"}
	}
	reports, ok := validator.Run(db, m, validator.Options{
		MaxDetails:    2,
		SpotChecks:    []validator.SpotCheck{},
		NonEmptyViews: []string{},
	})
	assert.False(t, ok)
	for _, r := range reports {
		if r.Suite == validator.SuiteRowCounts {
			assert.Equal(t, 5, r.Failed)
			require.Len(t, r.Details, 3)
			assert.Equal(t, "... and 3 more", r.Details[2])
		}
	}
}

func TestSpotCheckEmptyListPasses(t *testing.T) {
	db := fixtureDB(t)
	reports, ok := validator.Run(db, fixtureManifest(2), validator.Options{
		SpotChecks:    []validator.SpotCheck{},
		NonEmptyViews: []string{},
	})
	require.True(t, ok, "reports: %+v", reports)
}
