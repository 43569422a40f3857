package schema_test

import (
	"database/sql"
	"errors"
	"strings"
	"testing"

	"pron-dist/internal/dist"
	"pron-dist/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "github.com/mattn/go-sqlite3"
)

const testDDL = `
PRAGMA journal_mode = WAL;
PRAGMA foreign_keys = OFF;

-- ---- VIEWS ----

CREATE VIEW POSLookup AS
SELECT pos_id, pos_abbreviation AS abbreviation FROM PartOfSpeech;

-- ---- TRIGGERS ----

CREATE TRIGGER trg_variants_stress
BEFORE INSERT ON Variants
FOR EACH ROW
BEGIN
	SELECT CASE
		WHEN NEW.stress_pattern IS NULL THEN
			RAISE(ABORT, 'stress_pattern must not be NULL')
	END;
END;

-- ---- TABLES ----

CREATE TABLE PartOfSpeech (
	pos_id INTEGER PRIMARY KEY,
	pos_abbreviation TEXT NOT NULL,
	description TEXT DEFAULT 'a; b; c'
);

CREATE TABLE Words (
	word_id INTEGER PRIMARY KEY,
	word TEXT NOT NULL,
	part_of_speech INTEGER REFERENCES PartOfSpeech(pos_id)
);

CREATE TABLE Variants (
	variant_id INTEGER PRIMARY KEY,
	word_id INTEGER NOT NULL REFERENCES Words(word_id),
	stress_pattern TEXT
);

-- ---- INDEXES ----

CREATE INDEX idx_variants_word ON Variants(word_id);
`

func TestSplitStatements(t *testing.T) {
	stmts := schema.SplitStatements(schema.StripPragmas(testDDL))
	require.Len(t, stmts, 6)

	// The trigger body keeps its inner semicolons.
	var trigger string
	for _, s := range stmts {
		assert.NotContains(t, s, "PRAGMA")
		if strings.HasPrefix(s, "CREATE TRIGGER") {
			trigger = s
		}
	}
	require.NotEmpty(t, trigger, "trigger statement must survive splitting in one piece")
	assert.Contains(t, trigger, "RAISE(ABORT, 'stress_pattern must not be NULL')")
	assert.Contains(t, trigger, "END")
}

func TestSplitStatementsQuoting(t *testing.T) {
	stmts := schema.SplitStatements(`INSERT INTO T VALUES ('a;b', "c;d"); SELECT 1`)
	require.Len(t, stmts, 2)
	assert.Equal(t, `INSERT INTO T VALUES ('a;b', "c;d")`, stmts[0])
	assert.Equal(t, "SELECT 1", stmts[1])

	stmts = schema.SplitStatements(`SELECT 'it''s; fine'; SELECT 2;`)
	require.Len(t, stmts, 2)
}

// The DDL above lists views and triggers before the tables they reference;
// Apply must reorder so the whole script still applies to an empty store.
func TestApplyOrdersObjectClasses(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, schema.Apply(db, testDDL))

	var n int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table'`).Scan(&n))
	assert.Equal(t, 3, n)
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'trigger'`).Scan(&n))
	assert.Equal(t, 1, n)
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'view'`).Scan(&n))
	assert.Equal(t, 1, n)

	// Trigger is live: NULL stress_pattern must be rejected.
	_, err = db.Exec(`INSERT INTO Words (word_id, word) VALUES (1, 'desert')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO Variants (variant_id, word_id, stress_pattern) VALUES (1, 1, NULL)`)
	assert.Error(t, err)
	_, err = db.Exec(`INSERT INTO Variants (variant_id, word_id, stress_pattern) VALUES (1, 1, '1-0')`)
	assert.NoError(t, err)
}

func TestApplyReportsFailingStatement(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	err = schema.Apply(db, `CREATE TABLE ok (id INTEGER); CREATE TABLE broken (;`)
	require.Error(t, err)
	var schemaErr *dist.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Contains(t, schemaErr.Stmt, "broken")
}

func TestExtractRoundTrip(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, schema.Apply(db, testDDL))

	ddl, err := schema.Extract(db, "test.db")
	require.NoError(t, err)

	db2, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db2.Close()
	require.NoError(t, schema.Apply(db2, ddl))

	var n int
	require.NoError(t, db2.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE name NOT LIKE 'sqlite_%' AND sql IS NOT NULL`).Scan(&n))
	assert.Equal(t, 6, n)
}
