// Package colfile reads and writes the per-table columnar files of the
// distribution: zstd-compressed Parquet, one file per table, with an
// explicit schema derived from the SQLite declared column types and
// embedded source metadata.
package colfile

import "strings"

// Kind is the storage kind of a column. The four kinds cover every SQLite
// type affinity the schema uses.
type Kind int

const (
	KindInt64 Kind = iota
	KindReal
	KindText
	KindBlob
)

func (k Kind) String() string {
	switch k {
	case KindInt64:
		return "int64"
	case KindReal:
		return "real"
	case KindBlob:
		return "blob"
	default:
		return "text"
	}
}

// Column describes one column of a columnar file.
type Column struct {
	Name string
	Kind Kind
}

// Metadata keys embedded in every columnar file.
const (
	MetaSourceTable = "source_table"
	MetaSourceDB    = "source_db"
	MetaExportTime  = "export_time"
)

// KindFromDecl maps a SQLite declared column type to its storage kind,
// following SQLite affinity rules for the types the schema declares.
func KindFromDecl(decl string) Kind {
	dt := strings.ToUpper(strings.TrimSpace(decl))
	if i := strings.IndexByte(dt, '('); i >= 0 {
		dt = strings.TrimSpace(dt[:i])
	}
	switch dt {
	case "INTEGER", "INT", "TINYINT", "SMALLINT", "MEDIUMINT", "BIGINT",
		"UNSIGNED BIG INT", "INT2", "INT8", "BOOLEAN":
		return KindInt64
	case "REAL", "DOUBLE", "DOUBLE PRECISION", "FLOAT":
		return KindReal
	case "BLOB":
		return KindBlob
	default:
		// TEXT, VARCHAR, CHAR, CLOB, TIMESTAMP, DATETIME and anything else.
		// NUMERIC/DECIMAL also travel as text: their affinity admits mixed
		// integer and real storage, and text reinserts losslessly.
		return KindText
	}
}
