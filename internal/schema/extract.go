package schema

import (
	"database/sql"
	"fmt"
	"strings"
)

// Extract dumps the DDL of every user-created object from sqlite_master,
// grouped in the same order Apply executes: tables, triggers, indexes,
// views. Auto-indexes and sqlite internals carry no SQL and are skipped.
func Extract(db *sql.DB, sourceDB string) (string, error) {
	rows, err := db.Query(`
		SELECT type, sql
		FROM sqlite_master
		WHERE sql IS NOT NULL
		  AND name NOT LIKE 'sqlite_%'
		ORDER BY
		  CASE type
		    WHEN 'table'   THEN 1
		    WHEN 'trigger' THEN 2
		    WHEN 'index'   THEN 3
		    WHEN 'view'    THEN 4
		    ELSE 5
		  END,
		  name`)
	if err != nil {
		return "", fmt.Errorf("failed to query sqlite_master: %w", err)
	}
	defer rows.Close()

	var sb strings.Builder
	sb.WriteString("-- ============================================================\n")
	fmt.Fprintf(&sb, "-- %s full DDL\n", sourceDB)
	sb.WriteString("-- Generated by pron-dist export\n")
	sb.WriteString("-- ============================================================\n\n")
	sb.WriteString("PRAGMA journal_mode = WAL;\n")
	sb.WriteString("PRAGMA foreign_keys = OFF;\n")

	current := ""
	for rows.Next() {
		var objType, objSQL string
		if err := rows.Scan(&objType, &objSQL); err != nil {
			return "", fmt.Errorf("failed to scan sqlite_master row: %w", err)
		}
		if objType != current {
			current = objType
			fmt.Fprintf(&sb, "\n-- ---- %sS ----\n\n", strings.ToUpper(objType))
		}
		sb.WriteString(strings.TrimSpace(objSQL))
		sb.WriteString(";\n\n")
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return sb.String(), nil
}
