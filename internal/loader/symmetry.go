package loader

import (
	"database/sql"
	"fmt"

	"pron-dist/internal/dist"
	"pron-dist/internal/schema"
)

// SymmetryRule names a relationship table whose rows must come in
// inverse pairs: for every (a, b, type) a matching (b, a, inverse(type))
// must exist. Types absent from Inverse are treated as self-inverse.
type SymmetryRule struct {
	Table     string
	SourceCol string
	TargetCol string
	TypeCol   string
	Inverse   map[string]string
}

// DefaultSymmetry covers the semantic relationship table of the
// pronunciation schema.
var DefaultSymmetry = SymmetryRule{
	Table:     "SemanticRelationships",
	SourceCol: "source_word_id",
	TargetCol: "target_word_id",
	TypeCol:   "relationship_type",
	Inverse: map[string]string{
		"synonym":  "synonym",
		"antonym":  "antonym",
		"hypernym": "hyponym",
		"hyponym":  "hypernym",
	},
}

func (r SymmetryRule) inverse(typ string) string {
	if inv, ok := r.Inverse[typ]; ok {
		return inv
	}
	return typ
}

// CheckSymmetry runs the post-load consistency pass for a relationship
// table. A table absent from the store is not an error; a missing inverse
// row is.
func CheckSymmetry(db *sql.DB, rule SymmetryRule) error {
	var exists int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, rule.Table).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return nil
	}

	q := fmt.Sprintf("SELECT %s, %s, %s FROM %s",
		schema.Quote(rule.SourceCol), schema.Quote(rule.TargetCol),
		schema.Quote(rule.TypeCol), schema.Quote(rule.Table))
	rows, err := db.Query(q)
	if err != nil {
		return err
	}
	defer rows.Close()

	type triple struct {
		a, b int64
		typ  string
	}
	var all []triple
	seen := make(map[triple]bool)
	for rows.Next() {
		var tr triple
		if err := rows.Scan(&tr.a, &tr.b, &tr.typ); err != nil {
			return err
		}
		all = append(all, tr)
		seen[tr] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, tr := range all {
		inv := triple{a: tr.b, b: tr.a, typ: rule.inverse(tr.typ)}
		if !seen[inv] {
			return &dist.IntegrityViolationError{
				Table: rule.Table,
				Rule: fmt.Sprintf("asymmetric relationship: (%d, %d, %s) has no inverse (%d, %d, %s)",
					tr.a, tr.b, tr.typ, inv.a, inv.b, inv.typ),
			}
		}
	}
	return nil
}
