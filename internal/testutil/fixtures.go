package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// Column is one column of a Parquet fixture. Values must be one of
// []int64, []int32, []float64, []string, []bool or [][]byte.
type Column struct {
	Name        string
	Units       string
	Description string
	Values      any
}

// WriteParquet writes cols to path (creating parent directories) with the
// Arrow schema stored so per-field units/description metadata survive.
func WriteParquet(t testing.TB, path string, cols ...Column) {
	t.Helper()

	mem := memory.NewGoAllocator()
	fields := make([]arrow.Field, 0, len(cols))
	arrays := make([]arrow.Array, 0, len(cols))
	var rows int64 = -1

	for _, c := range cols {
		arr, typ, n, err := buildArray(mem, c.Values)
		if err != nil {
			t.Fatalf("column %s: %v", c.Name, err)
		}
		defer arr.Release()
		if rows >= 0 && int64(n) != rows {
			t.Fatalf("column %s has %d rows, want %d", c.Name, n, rows)
		}
		rows = int64(n)

		var keys, vals []string
		if c.Units != "" {
			keys, vals = append(keys, "units"), append(vals, c.Units)
		}
		if c.Description != "" {
			keys, vals = append(keys, "description"), append(vals, c.Description)
		}
		field := arrow.Field{Name: c.Name, Type: typ, Nullable: true}
		if len(keys) > 0 {
			field.Metadata = arrow.NewMetadata(keys, vals)
		}
		fields = append(fields, field)
		arrays = append(arrays, arr)
	}
	if rows < 0 {
		rows = 0
	}

	schema := arrow.NewSchema(fields, nil)
	rec := array.NewRecord(schema, arrays, rows)
	defer rec.Release()

	var buf bytes.Buffer
	fw, err := pqarrow.NewFileWriter(schema, &buf, parquet.NewWriterProperties(),
		pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
	if err != nil {
		t.Fatalf("parquet writer: %v", err)
	}
	if err := fw.Write(rec); err != nil {
		t.Fatalf("parquet write: %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Fatalf("parquet close: %v", err)
	}

	WriteFile(t, path, buf.Bytes())
}

func buildArray(mem memory.Allocator, values any) (arrow.Array, arrow.DataType, int, error) {
	switch v := values.(type) {
	case []int64:
		b := array.NewInt64Builder(mem)
		defer b.Release()
		b.AppendValues(v, nil)
		return b.NewArray(), arrow.PrimitiveTypes.Int64, len(v), nil
	case []int32:
		b := array.NewInt32Builder(mem)
		defer b.Release()
		b.AppendValues(v, nil)
		return b.NewArray(), arrow.PrimitiveTypes.Int32, len(v), nil
	case []float64:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		b.AppendValues(v, nil)
		return b.NewArray(), arrow.PrimitiveTypes.Float64, len(v), nil
	case []string:
		b := array.NewStringBuilder(mem)
		defer b.Release()
		b.AppendValues(v, nil)
		return b.NewArray(), arrow.BinaryTypes.String, len(v), nil
	case []bool:
		b := array.NewBooleanBuilder(mem)
		defer b.Release()
		b.AppendValues(v, nil)
		return b.NewArray(), arrow.FixedWidthTypes.Boolean, len(v), nil
	case [][]byte:
		b := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
		defer b.Release()
		b.AppendValues(v, nil)
		return b.NewArray(), arrow.BinaryTypes.Binary, len(v), nil
	default:
		return nil, nil, 0, fmt.Errorf("unsupported fixture values %T", values)
	}
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
