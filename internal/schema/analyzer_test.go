package schema_test

import (
	"database/sql"
	"errors"
	"testing"

	"pron-dist/internal/dist"
	"pron-dist/internal/schema"

	_ "github.com/mattn/go-sqlite3"
)

func TestSortTablesSimple(t *testing.T) {
	// Words -> Variants -> WordPhonemes
	tables := []*schema.Table{
		{Name: "WordPhonemes", Dependencies: []string{"Variants"}},
		{Name: "Variants", Dependencies: []string{"Words"}},
		{Name: "Words", Dependencies: []string{}},
	}

	sorted := schema.SortTables(tables)

	if sorted[0].Name != "Words" {
		t.Errorf("expected Words first, got %s", sorted[0].Name)
	}
	if sorted[1].Name != "Variants" {
		t.Errorf("expected Variants second, got %s", sorted[1].Name)
	}
	if sorted[2].Name != "WordPhonemes" {
		t.Errorf("expected WordPhonemes third, got %s", sorted[2].Name)
	}
}

func TestSortTablesBreaksCycles(t *testing.T) {
	// A -> B -> C -> D -> E -> A (cycle), F -> E, G independent.
	tables := []*schema.Table{
		{Name: "A", Dependencies: []string{"B"}},
		{Name: "B", Dependencies: []string{"C"}},
		{Name: "C", Dependencies: []string{"D"}},
		{Name: "D", Dependencies: []string{"E"}},
		{Name: "E", Dependencies: []string{"A"}},
		{Name: "F", Dependencies: []string{"E"}},
		{Name: "G", Dependencies: []string{}},
	}

	sorted := schema.SortTables(tables)

	if len(sorted) != len(tables) {
		t.Fatalf("expected %d tables, got %d", len(tables), len(sorted))
	}
	visited := make(map[string]bool)
	for _, tbl := range sorted {
		visited[tbl.Name] = true
	}
	for _, tbl := range tables {
		if !visited[tbl.Name] {
			t.Errorf("table %s missing from sorted plan", tbl.Name)
		}
	}
	if sorted[0].Name != "G" {
		t.Errorf("expected independent table G first, got %s", sorted[0].Name)
	}
}

func TestSortTablesDeterministic(t *testing.T) {
	build := func() []*schema.Table {
		return []*schema.Table{
			{Name: "X", Dependencies: []string{"Y"}},
			{Name: "Y", Dependencies: []string{"X"}},
		}
	}
	first := schema.SortTables(build())
	for i := 0; i < 10; i++ {
		again := schema.SortTables(build())
		for j := range first {
			if first[j].Name != again[j].Name {
				t.Fatalf("sort is not deterministic: run %d position %d: %s vs %s",
					i, j, first[j].Name, again[j].Name)
			}
		}
	}
}

func TestVerifyOrderRejectsChildBeforeParent(t *testing.T) {
	reversed := []*schema.Table{
		{Name: "Variants", Dependencies: []string{"Words"}},
		{Name: "Words", Dependencies: []string{}},
	}
	err := schema.VerifyOrder(reversed)
	if err == nil {
		t.Fatal("expected dependency error for child-before-parent plan")
	}
	var iv *dist.IntegrityViolationError
	if !errors.As(err, &iv) {
		t.Fatalf("expected IntegrityViolationError, got %T", err)
	}
	if iv.Table != "Variants" {
		t.Errorf("expected violation on Variants, got %s", iv.Table)
	}

	ok := []*schema.Table{reversed[1], reversed[0]}
	if err := schema.VerifyOrder(ok); err != nil {
		t.Errorf("valid plan rejected: %v", err)
	}
}

func TestVerifyOrderAllowsBrokenCycles(t *testing.T) {
	plan := []*schema.Table{
		{Name: "Staff", Dependencies: []string{"Store"}},
		{Name: "Store", Dependencies: []string{"Staff"}},
	}
	if err := schema.VerifyOrder(plan); err != nil {
		t.Errorf("mutually dependent tables should pass in either order: %v", err)
	}
}

func TestAnalyzeReadsDependenciesFromSQLite(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	ddl := `
	CREATE TABLE Words (word_id INTEGER PRIMARY KEY, word TEXT NOT NULL);
	CREATE TABLE Variants (
		variant_id INTEGER PRIMARY KEY,
		word_id INTEGER NOT NULL REFERENCES Words(word_id),
		stress_pattern TEXT
	);
	CREATE TABLE SemanticRelationships (
		source_word_id INTEGER NOT NULL REFERENCES Words(word_id),
		target_word_id INTEGER NOT NULL REFERENCES Words(word_id),
		relationship_type TEXT NOT NULL
	);`
	if _, err := db.Exec(ddl); err != nil {
		t.Fatal(err)
	}

	tables, err := schema.Analyze(db)
	if err != nil {
		t.Fatal(err)
	}
	if len(tables) != 3 {
		t.Fatalf("expected 3 tables, got %d", len(tables))
	}
	if tables[0].Name != "Words" {
		t.Errorf("expected Words first in plan, got %s", tables[0].Name)
	}

	byName := make(map[string]*schema.Table)
	for _, tbl := range tables {
		byName[tbl.Name] = tbl
	}

	variants := byName["Variants"]
	if len(variants.Dependencies) != 1 || variants.Dependencies[0] != "Words" {
		t.Errorf("Variants dependencies = %v, want [Words]", variants.Dependencies)
	}
	if len(variants.ForeignKeys) != 1 || variants.ForeignKeys[0].Column != "word_id" {
		t.Errorf("Variants foreign keys = %+v", variants.ForeignKeys)
	}

	sem := byName["SemanticRelationships"]
	if len(sem.Dependencies) != 1 {
		t.Errorf("duplicate FK targets must dedupe to one dependency, got %v", sem.Dependencies)
	}

	col := variants.Column("stress_pattern")
	if col == nil || col.DeclType != "TEXT" || col.NotNull {
		t.Errorf("stress_pattern column = %+v", col)
	}
	if pk := variants.Column("variant_id"); pk == nil || !pk.IsPK {
		t.Errorf("variant_id should be primary key, got %+v", pk)
	}
}
