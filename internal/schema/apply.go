package schema

import (
	"database/sql"
	"sort"
	"strings"

	"pron-dist/internal/dist"
)

// Statement classes, in application order. Triggers go before indexes and
// views so that trigger bodies referencing auxiliary tables are compiled
// while only tables exist.
const (
	classTable = iota
	classTrigger
	classIndex
	classView
	classOther
)

// Apply executes the full DDL against a fresh store: tables, then
// triggers, then indexes, then views. PRAGMA lines are dropped (the loader
// manages pragmas). Any statement error is fatal.
func Apply(db *sql.DB, ddl string) error {
	stmts := SplitStatements(StripPragmas(ddl))
	sort.SliceStable(stmts, func(i, j int) bool {
		return stmtClass(stmts[i]) < stmtClass(stmts[j])
	})
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return &dist.SchemaError{Stmt: stmt, Err: err}
		}
	}
	return nil
}

// StripPragmas removes PRAGMA lines from a DDL script.
func StripPragmas(ddl string) string {
	lines := strings.Split(ddl, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(line)), "PRAGMA") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// SplitStatements splits a DDL script on top-level semicolons. Trigger
// bodies (BEGIN ... END) and CASE expressions keep their inner semicolons;
// quoted strings, quoted identifiers and comments are skipped.
func SplitStatements(ddl string) []string {
	var stmts []string
	var sb strings.Builder
	depth := 0

	flush := func() {
		stmt := strings.TrimSpace(sb.String())
		sb.Reset()
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
	}

	i, n := 0, len(ddl)
	for i < n {
		c := ddl[i]
		switch {
		case c == '-' && i+1 < n && ddl[i+1] == '-':
			j := strings.IndexByte(ddl[i:], '\n')
			if j < 0 {
				i = n
			} else {
				i += j + 1
				sb.WriteByte('\n')
			}
		case c == '/' && i+1 < n && ddl[i+1] == '*':
			j := strings.Index(ddl[i+2:], "*/")
			if j < 0 {
				i = n
			} else {
				i += j + 4
			}
		case c == '\'' || c == '"' || c == '`' || c == '[':
			end := scanQuoted(ddl, i)
			sb.WriteString(ddl[i:end])
			i = end
		case isWordByte(c):
			j := i
			for j < n && isWordByte(ddl[j]) {
				j++
			}
			word := strings.ToUpper(ddl[i:j])
			switch word {
			case "BEGIN", "CASE":
				depth++
			case "END":
				if depth > 0 {
					depth--
				}
			}
			sb.WriteString(ddl[i:j])
			i = j
		case c == ';' && depth == 0:
			flush()
			i++
		default:
			sb.WriteByte(c)
			i++
		}
	}
	flush()
	return stmts
}

// scanQuoted returns the index just past a quoted string or identifier
// starting at i. SQLite doubles the quote character to escape it.
func scanQuoted(s string, i int) int {
	open := s[i]
	term := open
	if open == '[' {
		term = ']'
	}
	j := i + 1
	for j < len(s) {
		if s[j] == term {
			if term != ']' && j+1 < len(s) && s[j+1] == term {
				j += 2
				continue
			}
			return j + 1
		}
		j++
	}
	return len(s)
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func stmtClass(stmt string) int {
	fields := strings.Fields(strings.ToUpper(stmt))
	if len(fields) < 2 || fields[0] != "CREATE" {
		return classOther
	}
	kw := fields[1]
	if (kw == "UNIQUE" || kw == "TEMP" || kw == "TEMPORARY") && len(fields) > 2 {
		kw = fields[2]
	}
	switch kw {
	case "TABLE":
		return classTable
	case "TRIGGER":
		return classTrigger
	case "INDEX":
		return classIndex
	case "VIEW":
		return classView
	default:
		return classOther
	}
}
