// Package core defines the shared language of the query engine.
//
// This package contains:
//   - Catalog entities (CatalogEntry, Field, CatalogSnapshot)
//   - Run context (RunContext)
//   - Engine session contract (Adapter, AdapterConfig, Rows)
//   - The error taxonomy shared by every edge (Kind, Error)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
