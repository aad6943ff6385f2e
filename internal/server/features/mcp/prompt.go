package mcp

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/weppcloud/queryengine/pkg/core"
)

//go:embed prompt_template.md
var promptTemplate string

const (
	defaultRowLimit     = 1000
	summaryDatasetLimit = 40
	summaryFieldLimit   = 12
	defaultUserRequest  = "<describe what you want to know about this run>"
)

// PromptInput fills the prompt template placeholders.
type PromptInput struct {
	RunID         string
	QueryEndpoint string
	RowLimit      int
	Entries       []core.CatalogEntry
	UserRequest   string
}

// Placeholders returns the placeholder values for in.
func (in PromptInput) Placeholders() map[string]string {
	rowLimit := in.RowLimit
	if rowLimit <= 0 {
		rowLimit = defaultRowLimit
	}
	userRequest := strings.TrimSpace(in.UserRequest)
	if userRequest == "" {
		userRequest = defaultUserRequest
	}
	return map[string]string{
		"RUN_ID":         in.RunID,
		"QUERY_ENDPOINT": in.QueryEndpoint,
		"ROW_LIMIT":      strconv.Itoa(rowLimit),
		"SAMPLE_PAYLOAD": samplePayload(in.Entries),
		"SCHEMA_SUMMARY": schemaSummary(in.Entries),
		"USER_REQUEST":   userRequest,
	}
}

// RenderPrompt fills the Markdown template.
func RenderPrompt(in PromptInput) string {
	values := in.Placeholders()
	pairs := make([]string, 0, 2*len(values))
	for k, v := range values {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(promptTemplate)
}

func samplePayload(entries []core.CatalogEntry) string {
	dataset := "landuse/landuse.parquet"
	for _, e := range entries {
		if e.Extension == ".parquet" {
			dataset = e.Path
			break
		}
	}
	data, _ := json.MarshalIndent(map[string]any{
		"datasets":       []string{dataset},
		"limit":          25,
		"include_schema": true,
	}, "", "  ")
	return string(data)
}

func schemaSummary(entries []core.CatalogEntry) string {
	if len(entries) == 0 {
		return "_No catalog is available yet; activate the run first._"
	}
	var sb strings.Builder
	for i, e := range entries {
		if i == summaryDatasetLimit {
			fmt.Fprintf(&sb, "- … %d more datasets\n", len(entries)-i)
			break
		}
		fmt.Fprintf(&sb, "- `%s`", e.Path)
		if e.Schema != nil && len(e.Schema.Fields) > 0 {
			names := make([]string, 0, summaryFieldLimit)
			for j, f := range e.Schema.Fields {
				if j == summaryFieldLimit {
					names = append(names, "…")
					break
				}
				label := f.Name + " " + f.Type
				if f.Units != "" {
					label += " [" + f.Units + "]"
				}
				names = append(names, label)
			}
			sb.WriteString(": " + strings.Join(names, ", "))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
