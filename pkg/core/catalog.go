package core

import "time"

// CatalogVersion is the only catalog.json version understood by this module.
const CatalogVersion = 1

// Field is one column of a columnar asset's schema.
type Field struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Units       string `json:"units,omitempty"`
	Description string `json:"description,omitempty"`
}

// Schema is the stored schema of a columnar asset.
type Schema struct {
	Fields []Field `json:"fields"`
}

// Field returns the named field, if present.
func (s *Schema) Field(name string) (Field, bool) {
	if s == nil {
		return Field{}, false
	}
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// CatalogEntry describes one file asset of a run.
type CatalogEntry struct {
	Path      string  `json:"path"`
	Extension string  `json:"extension"`
	SizeBytes int64   `json:"size_bytes"`
	Modified  string  `json:"modified"`
	Schema    *Schema `json:"schema,omitempty"`
}

// ModifiedTime parses Modified; the zero time is returned when it is malformed.
func (e CatalogEntry) ModifiedTime() time.Time {
	t, err := time.Parse(time.RFC3339, e.Modified)
	if err != nil {
		return time.Time{}
	}
	return t
}

// CatalogSnapshot is the on-disk shape of catalog.json.
type CatalogSnapshot struct {
	Version     int            `json:"version"`
	GeneratedAt string         `json:"generated_at"`
	Root        string         `json:"root"`
	Files       []CatalogEntry `json:"files"`
}

// FormatTimestamp renders t the way catalog timestamps are stored.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}
