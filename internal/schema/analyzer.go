// Package schema introspects and applies the SQLite schema of the
// distribution: DDL application in dependency-safe order, table/column/FK
// models, and the parent-before-child load ordering.
package schema

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"pron-dist/internal/dist"
)

// Analyze introspects every user table of an open SQLite database and
// returns the tables sorted into dependency order (parents first).
func Analyze(db *sql.DB) ([]*Table, error) {
	rows, err := db.Query(
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	tableMap := make(map[string]*Table)
	var tables []*Table
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		t := &Table{Name: name, Dependencies: []string{}}
		tableMap[strings.ToUpper(name)] = t
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}

	for _, t := range tables {
		if err := analyzeColumns(db, t); err != nil {
			return nil, err
		}
		if err := analyzeForeignKeys(db, t, tableMap); err != nil {
			return nil, err
		}
	}

	return SortTables(tables), nil
}

func analyzeColumns(db *sql.DB, t *Table) error {
	rows, err := db.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, Quote(t.Name)))
	if err != nil {
		return fmt.Errorf("failed to query columns of %s: %w", t.Name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid     int
			name    string
			decl    sql.NullString
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &decl, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("failed to scan column (table: %s): %w", t.Name, err)
		}
		t.Columns = append(t.Columns, &Column{
			Name:     name,
			DeclType: decl.String,
			NotNull:  notNull != 0,
			IsPK:     pk > 0,
		})
	}
	return rows.Err()
}

func analyzeForeignKeys(db *sql.DB, t *Table, tableMap map[string]*Table) error {
	rows, err := db.Query(fmt.Sprintf(`PRAGMA foreign_key_list(%s)`, Quote(t.Name)))
	if err != nil {
		return fmt.Errorf("failed to query foreign keys of %s: %w", t.Name, err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	for rows.Next() {
		var (
			id, seq                      int
			refTable, from               string
			to                           sql.NullString
			onUpdate, onDelete, matchStr string
		)
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &matchStr); err != nil {
			return fmt.Errorf("failed to scan foreign key (table: %s): %w", t.Name, err)
		}
		ref, ok := tableMap[strings.ToUpper(refTable)]
		if !ok {
			// Reference to a table outside the distribution; nothing to order.
			continue
		}
		t.ForeignKeys = append(t.ForeignKeys, &ForeignKey{
			Column:    from,
			RefTable:  ref.Name,
			RefColumn: to.String,
		})
		if ref.Name != t.Name && !seen[ref.Name] {
			seen[ref.Name] = true
			t.Dependencies = append(t.Dependencies, ref.Name)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	sort.Strings(t.Dependencies)
	return nil
}

// SortTables sorts tables into dependency order, parents before children.
// Circular dependencies are broken with a scoring heuristic so every table
// still gets a deterministic position.
func SortTables(tables []*Table) []*Table {
	var sorted []*Table
	processed := make(map[string]bool)

	for len(sorted) < len(tables) {
		added := false

		// Pass 1: tables whose dependencies are all satisfied.
		for _, t := range tables {
			if processed[t.Name] {
				continue
			}
			ready := true
			for _, dep := range t.Dependencies {
				if !processed[dep] {
					ready = false
					break
				}
			}
			if ready {
				sorted = append(sorted, t)
				processed[t.Name] = true
				added = true
			}
		}
		if added {
			continue
		}

		// Pass 2: a cycle. Pick the best candidate to break it: fewest
		// unsatisfied dependencies, boosted when the table sits on a
		// two-table cycle, alphabetical as the final tie-breaker.
		var best *Table
		bestScore := -1 << 30
		for _, t := range tables {
			if processed[t.Name] {
				continue
			}
			score := 0
			for _, dep := range t.Dependencies {
				if !processed[dep] {
					score -= 100
				}
			}
			if onCycle(t, tables, processed) {
				score += 500
			}
			if score > bestScore || (score == bestScore && (best == nil || t.Name < best.Name)) {
				bestScore = score
				best = t
			}
		}
		if best == nil {
			break
		}
		sorted = append(sorted, best)
		processed[best.Name] = true
	}

	return sorted
}

func onCycle(t *Table, tables []*Table, processed map[string]bool) bool {
	for _, dep := range t.Dependencies {
		if processed[dep] {
			continue
		}
		for _, cand := range tables {
			if cand.Name != dep {
				continue
			}
			for _, back := range cand.Dependencies {
				if back == t.Name {
					return true
				}
			}
		}
	}
	return false
}

// VerifyOrder rejects a load plan in which any table precedes one of its
// dependencies. Loading a child before its parent must fail fast rather
// than silently producing orphaned rows. Mutually dependent tables are
// exempt: one side of a broken cycle necessarily loads first.
func VerifyOrder(plan []*Table) error {
	byName := make(map[string]*Table, len(plan))
	for _, t := range plan {
		byName[t.Name] = t
	}
	loaded := make(map[string]bool, len(plan))
	for _, t := range plan {
		for _, dep := range t.Dependencies {
			if !loaded[dep] {
				if ref, ok := byName[dep]; ok && dependsOn(ref, t.Name) {
					continue
				}
				return &dist.IntegrityViolationError{
					Table: t.Name,
					Rule:  fmt.Sprintf("dependency %s must load before %s", dep, t.Name),
				}
			}
		}
		loaded[t.Name] = true
	}
	return nil
}

func dependsOn(t *Table, name string) bool {
	for _, dep := range t.Dependencies {
		if dep == name {
			return true
		}
	}
	return false
}

// Quote quotes an identifier for use in SQLite statements.
func Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
