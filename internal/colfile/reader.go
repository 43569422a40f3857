package colfile

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
)

const readBatchSize = 256

// Reader streams rows out of one table's columnar file.
type Reader struct {
	f    *os.File
	pf   *parquet.File
	cols []Column
}

// Open opens a columnar file and resolves its column set from the embedded
// schema.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("colfile: open %s: %w", path, err)
	}

	fields := pf.Schema().Fields()
	cols := make([]Column, len(fields))
	for i, fld := range fields {
		k, err := kindOf(fld.Type())
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("colfile: %s column %s: %w", path, fld.Name(), err)
		}
		cols[i] = Column{Name: fld.Name(), Kind: k}
	}
	return &Reader{f: f, pf: pf, cols: cols}, nil
}

func kindOf(t parquet.Type) (Kind, error) {
	switch t.Kind() {
	case parquet.Boolean, parquet.Int32, parquet.Int64:
		return KindInt64, nil
	case parquet.Float, parquet.Double:
		return KindReal, nil
	case parquet.ByteArray, parquet.FixedLenByteArray:
		if lt := t.LogicalType(); lt != nil && lt.UTF8 != nil {
			return KindText, nil
		}
		return KindBlob, nil
	default:
		return 0, fmt.Errorf("unsupported parquet kind %s", t.Kind())
	}
}

// Columns returns the file's columns in schema order.
func (r *Reader) Columns() []Column { return r.cols }

// NumRows returns the row count recorded in the file footer.
func (r *Reader) NumRows() int64 { return r.pf.NumRows() }

// Metadata returns an embedded key/value metadata entry.
func (r *Reader) Metadata(key string) (string, bool) {
	return r.pf.Lookup(key)
}

// Scan streams every row to fn as a []any aligned to Columns(), with
// values decoded as int64, float64, string, []byte or nil. The row index
// passed to fn is 1-based. Scanning stops on the first error.
func (r *Reader) Scan(fn func(i int64, row []any) error) error {
	buf := make([]parquet.Row, readBatchSize)
	var idx int64
	for _, rg := range r.pf.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, prow := range buf[:n] {
				idx++
				vals, derr := r.decode(prow)
				if derr != nil {
					rows.Close()
					return fmt.Errorf("row %d: %w", idx, derr)
				}
				if ferr := fn(idx, vals); ferr != nil {
					rows.Close()
					return ferr
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				rows.Close()
				return err
			}
		}
		if err := rows.Close(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) decode(row parquet.Row) ([]any, error) {
	out := make([]any, len(r.cols))
	for _, v := range row {
		ci := v.Column()
		if ci < 0 || ci >= len(r.cols) {
			return nil, fmt.Errorf("value for unknown column index %d", ci)
		}
		if v.IsNull() {
			out[ci] = nil
			continue
		}
		switch r.cols[ci].Kind {
		case KindInt64:
			switch v.Kind() {
			case parquet.Boolean:
				if v.Boolean() {
					out[ci] = int64(1)
				} else {
					out[ci] = int64(0)
				}
			case parquet.Int32:
				out[ci] = int64(v.Int32())
			default:
				out[ci] = v.Int64()
			}
		case KindReal:
			if v.Kind() == parquet.Float {
				out[ci] = float64(v.Float())
			} else {
				out[ci] = v.Double()
			}
		case KindText:
			out[ci] = string(v.ByteArray())
		case KindBlob:
			out[ci] = append([]byte(nil), v.ByteArray()...)
		}
	}
	return out, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error { return r.f.Close() }
