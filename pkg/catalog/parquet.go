package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/weppcloud/queryengine/pkg/core"
)

// Field metadata keys carried by interchange products.
const (
	metaUnits       = "units"
	metaDescription = "description"
	metaGeo         = "geo"
)

// ReadParquetSchema returns the field schema of a Parquet file, including
// per-field units and description metadata when the writer stored them.
func ReadParquetSchema(path string) (*core.Schema, error) {
	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet %s: %w", path, err)
	}
	defer func() { _ = rdr.Close() }()

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet metadata %s: %w", path, err)
	}
	sc, err := fr.Schema()
	if err != nil {
		return nil, fmt.Errorf("failed to convert parquet schema %s: %w", path, err)
	}

	geomCols := geoColumns(rdr.MetaData().KeyValueMetadata().FindValue(metaGeo))

	fields := make([]core.Field, 0, sc.NumFields())
	for _, f := range sc.Fields() {
		typ := TypeName(f.Type)
		if geomCols[f.Name] {
			typ = "GEOMETRY"
		}
		fields = append(fields, core.Field{
			Name:        f.Name,
			Type:        typ,
			Units:       metadataValue(f.Metadata, metaUnits),
			Description: metadataValue(f.Metadata, metaDescription),
		})
	}
	return &core.Schema{Fields: fields}, nil
}

func metadataValue(md arrow.Metadata, key string) string {
	if i := md.FindKey(key); i >= 0 {
		return md.Values()[i]
	}
	return ""
}

// geoColumns lists the geometry columns declared by GeoParquet metadata.
func geoColumns(raw *string) map[string]bool {
	if raw == nil {
		return nil
	}
	var geo struct {
		Columns map[string]json.RawMessage `json:"columns"`
	}
	if err := json.Unmarshal([]byte(*raw), &geo); err != nil {
		return nil
	}
	out := make(map[string]bool, len(geo.Columns))
	for name := range geo.Columns {
		out[name] = true
	}
	return out
}

// TypeName maps an Arrow type to the engine-agnostic type names stored in
// the catalog.
func TypeName(dt arrow.DataType) string {
	switch dt.ID() {
	case arrow.BOOL:
		return "BOOLEAN"
	case arrow.INT8:
		return "TINYINT"
	case arrow.INT16:
		return "SMALLINT"
	case arrow.INT32:
		return "INTEGER"
	case arrow.INT64:
		return "BIGINT"
	case arrow.UINT8:
		return "UTINYINT"
	case arrow.UINT16:
		return "USMALLINT"
	case arrow.UINT32:
		return "UINTEGER"
	case arrow.UINT64:
		return "UBIGINT"
	case arrow.FLOAT16, arrow.FLOAT32:
		return "FLOAT"
	case arrow.FLOAT64:
		return "DOUBLE"
	case arrow.STRING, arrow.LARGE_STRING, arrow.STRING_VIEW:
		return "VARCHAR"
	case arrow.BINARY, arrow.LARGE_BINARY, arrow.FIXED_SIZE_BINARY, arrow.BINARY_VIEW:
		return "BLOB"
	case arrow.DATE32, arrow.DATE64:
		return "DATE"
	case arrow.TIME32, arrow.TIME64:
		return "TIME"
	case arrow.TIMESTAMP:
		if ts, ok := dt.(*arrow.TimestampType); ok && ts.TimeZone != "" {
			return "TIMESTAMP WITH TIME ZONE"
		}
		return "TIMESTAMP"
	case arrow.DURATION, arrow.INTERVAL_MONTHS, arrow.INTERVAL_DAY_TIME, arrow.INTERVAL_MONTH_DAY_NANO:
		return "INTERVAL"
	case arrow.DECIMAL128, arrow.DECIMAL256:
		if d, ok := dt.(arrow.DecimalType); ok {
			return fmt.Sprintf("DECIMAL(%d,%d)", d.GetPrecision(), d.GetScale())
		}
		return "DECIMAL"
	case arrow.LIST, arrow.LARGE_LIST, arrow.FIXED_SIZE_LIST:
		if l, ok := dt.(interface{ Elem() arrow.DataType }); ok {
			return TypeName(l.Elem()) + "[]"
		}
		return "LIST"
	case arrow.STRUCT:
		return "STRUCT"
	case arrow.MAP:
		return "MAP"
	case arrow.DICTIONARY:
		if d, ok := dt.(*arrow.DictionaryType); ok {
			return TypeName(d.ValueType)
		}
		return "VARCHAR"
	case arrow.NULL:
		return "NULL"
	default:
		return dt.Name()
	}
}
