package colfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"
)

const writeBatchSize = 1024

// Writer streams rows of one table into a Parquet file.
type Writer struct {
	f      *os.File
	w      *parquet.GenericWriter[any]
	cols   []Column // caller's column order
	dest   []int    // caller index -> schema column index
	ncols  int
	batch  []parquet.Row
	rows   int64
	closed bool
}

// NewWriter creates the destination file and a writer for the given
// columns. All columns are optional (nullable) in the file; NOT NULL is a
// property of the relational schema, not of the transport format.
func NewWriter(path, table, sourceDB string, cols []Column) (*Writer, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("colfile: table %s has no columns", table)
	}
	group := parquet.Group{}
	for _, c := range cols {
		group[c.Name] = parquet.Optional(nodeFor(c.Kind))
	}
	schema := parquet.NewSchema(table, group)

	// parquet.Group orders fields by name; map the caller's order onto it.
	pos := make(map[string]int, len(cols))
	for i, f := range schema.Fields() {
		pos[f.Name()] = i
	}
	dest := make([]int, len(cols))
	for i, c := range cols {
		j, ok := pos[c.Name]
		if !ok {
			return nil, fmt.Errorf("colfile: column %s missing from schema", c.Name)
		}
		dest[i] = j
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := parquet.NewGenericWriter[any](f, schema,
		parquet.Compression(&parquet.Zstd),
		parquet.KeyValueMetadata(MetaSourceTable, table),
		parquet.KeyValueMetadata(MetaSourceDB, sourceDB),
		parquet.KeyValueMetadata(MetaExportTime, fmt.Sprintf("%d", time.Now().Unix())),
	)
	return &Writer{
		f:     f,
		w:     w,
		cols:  cols,
		dest:  dest,
		ncols: len(cols),
		batch: make([]parquet.Row, 0, writeBatchSize),
	}, nil
}

func nodeFor(k Kind) parquet.Node {
	switch k {
	case KindInt64:
		return parquet.Int(64)
	case KindReal:
		return parquet.Leaf(parquet.DoubleType)
	case KindBlob:
		return parquet.Leaf(parquet.ByteArrayType)
	default:
		return parquet.String()
	}
}

// Append writes one row. Values must align with the columns passed to
// NewWriter; accepted Go types are int64, float64, string, []byte,
// time.Time (stored as text) and nil. Numeric values bound for text
// columns are formatted, so NUMERIC-affinity storage exports cleanly.
func (w *Writer) Append(row []any) error {
	if len(row) != w.ncols {
		return fmt.Errorf("colfile: row has %d values, want %d", len(row), w.ncols)
	}
	prow := make(parquet.Row, w.ncols)
	for i, raw := range row {
		col := w.dest[i]
		v, err := w.value(i, raw, col)
		if err != nil {
			return err
		}
		prow[col] = v
	}
	w.batch = append(w.batch, prow)
	w.rows++
	if len(w.batch) >= writeBatchSize {
		return w.flush()
	}
	return nil
}

func (w *Writer) value(i int, raw any, col int) (parquet.Value, error) {
	if raw == nil {
		return parquet.ValueOf(nil).Level(0, 0, col), nil
	}
	c := w.cols[i]
	switch x := raw.(type) {
	case int64:
		switch c.Kind {
		case KindInt64:
			return parquet.ValueOf(x).Level(0, 1, col), nil
		case KindText:
			// NUMERIC-affinity columns store integers; text preserves them.
			return parquet.ValueOf(strconv.FormatInt(x, 10)).Level(0, 1, col), nil
		}
		return parquet.Value{}, typeErr(c, raw)
	case int:
		return w.value(i, int64(x), col)
	case float64:
		switch c.Kind {
		case KindReal:
			return parquet.ValueOf(x).Level(0, 1, col), nil
		case KindText:
			return parquet.ValueOf(strconv.FormatFloat(x, 'g', -1, 64)).Level(0, 1, col), nil
		}
		return parquet.Value{}, typeErr(c, raw)
	case string:
		if c.Kind != KindText {
			return parquet.Value{}, typeErr(c, raw)
		}
		return parquet.ValueOf(x).Level(0, 1, col), nil
	case []byte:
		switch c.Kind {
		case KindBlob, KindText:
			return parquet.ValueOf(x).Level(0, 1, col), nil
		}
		return parquet.Value{}, typeErr(c, raw)
	case time.Time:
		// TIMESTAMP columns scan as time.Time; store in SQLite text format.
		if c.Kind != KindText {
			return parquet.Value{}, typeErr(c, raw)
		}
		return parquet.ValueOf(x.UTC().Format("2006-01-02 15:04:05")).Level(0, 1, col), nil
	default:
		return parquet.Value{}, typeErr(c, raw)
	}
}

func typeErr(c Column, raw any) error {
	return fmt.Errorf("colfile: column %s is %s, value is %T", c.Name, c.Kind, raw)
}

func (w *Writer) flush() error {
	if len(w.batch) == 0 {
		return nil
	}
	if _, err := w.w.WriteRows(w.batch); err != nil {
		return err
	}
	w.batch = w.batch[:0]
	return nil
}

// Rows returns the number of rows appended so far.
func (w *Writer) Rows() int64 { return w.rows }

// Close flushes buffered rows and finalizes the file.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.flush(); err != nil {
		w.f.Close()
		return err
	}
	if err := w.w.Close(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
