package core

// ScenarioSegment joins a parent run directory to one of its scenarios.
const ScenarioSegment = "_pups/omni/scenarios"

// RunContext is the resolved view of one run for the duration of a request.
type RunContext struct {
	RunID    string
	BaseDir  string
	Scenario string
	Catalog  CatalogReader
}

// CatalogReader is the read-only catalog surface used by the planner and the edges.
type CatalogReader interface {
	Has(path string) bool
	Get(path string) (CatalogEntry, bool)
	Entries() []CatalogEntry
	ColumnType(path, column string) (string, bool)
	Snapshot() CatalogSnapshot
}
