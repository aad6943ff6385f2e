package mcp

import (
	"github.com/weppcloud/queryengine/pkg/core"
	"github.com/weppcloud/queryengine/pkg/query"
)

// Scopes understood by the MCP routes.
const (
	ScopeRunsRead        = "runs:read"
	ScopeRunsActivate    = "runs:activate"
	ScopeQueriesValidate = "queries:validate"
	ScopeQueriesExecute  = "queries:execute"
)

// ServiceName is reported by /ping.
const ServiceName = "wepp-query-engine"

// Document is a JSON:API success envelope.
type Document struct {
	Data  any            `json:"data"`
	Meta  map[string]any `json:"meta"`
	Links *Links         `json:"links,omitempty"`
}

// Resource is a JSON:API resource object.
type Resource struct {
	Type       string            `json:"type"`
	ID         string            `json:"id"`
	Attributes any               `json:"attributes"`
	Links      map[string]string `json:"links,omitempty"`
}

// Links are the top-level links of a collection response.
type Links struct {
	Self string `json:"self"`
	Prev string `json:"prev,omitempty"`
	Next string `json:"next,omitempty"`
}

// ErrorObject is one entry of a JSON:API error document.
type ErrorObject struct {
	Code   string         `json:"code"`
	Detail string         `json:"detail"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// ErrorDocument is the JSON:API error envelope.
type ErrorDocument struct {
	Errors []ErrorObject  `json:"errors"`
	Meta   map[string]any `json:"meta"`
}

// PingAttributes is the /ping payload.
type PingAttributes struct {
	Service   string         `json:"service"`
	Status    string         `json:"status"`
	Principal map[string]any `json:"principal"`
	Version   string         `json:"version,omitempty"`
}

// RunAttributes describe one run.
type RunAttributes struct {
	Path               string  `json:"path"`
	Activated          bool    `json:"activated"`
	LastCatalogRefresh *string `json:"last_catalog_refresh"`
	DatasetCount       int     `json:"dataset_count"`
}

// DatasetAttributes describe one catalog entry.
type DatasetAttributes struct {
	Path            string       `json:"path"`
	Extension       string       `json:"extension"`
	SizeBytes       int64        `json:"size_bytes"`
	Modified        string       `json:"modified"`
	FieldCount      int          `json:"field_count"`
	Fields          []core.Field `json:"fields,omitempty"`
	FieldsTruncated bool         `json:"fields_truncated,omitempty"`
}

// ExecutionAttributes is the execute route payload.
type ExecutionAttributes struct {
	NormalizedPayload *query.Request `json:"normalized_payload"`
	DryRun            bool           `json:"dry_run"`
	Warnings          []string       `json:"warnings"`
	Result            *query.Result  `json:"result"`
}

// ActivationAttributes is the activate route payload.
type ActivationAttributes struct {
	RunID        string `json:"runid"`
	Status       string `json:"status"`
	GeneratedAt  string `json:"generated_at"`
	DatasetCount int    `json:"dataset_count"`
}
