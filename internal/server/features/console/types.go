package console

// pageData is shared by every console page.
type pageData struct {
	Title    string
	RootPath string
}

type runPage struct {
	pageData
	RunID       string
	BaseDir     string
	GeneratedAt string
	QueryURL    string
	SchemaURL   string
	Entries     []entryRow
}

type entryRow struct {
	Path     string
	Size     string
	Modified string
	Age      string
	Fields   string
}

type queryPage struct {
	pageData
	RunID   string
	Payload string
	PostURL string
}

// ActivationResult is the body returned by activation routes.
type ActivationResult struct {
	RunID        string `json:"runid"`
	Status       string `json:"status"`
	GeneratedAt  string `json:"generated_at"`
	DatasetCount int    `json:"dataset_count"`
}
