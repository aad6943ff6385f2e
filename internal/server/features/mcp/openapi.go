package mcp

import (
	"bytes"
	_ "embed"
	"fmt"
	"net/http"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openAPISource []byte

// OpenAPIOptions rewrite the servers section of the document.
type OpenAPIOptions struct {
	// ExternalHost is the public origin, e.g. https://wepp.cloud.
	ExternalHost string
	// ExternalHostDescription labels the rewritten server entry.
	ExternalHostDescription string
	RootPath                string
}

// RenderOpenAPI returns the OpenAPI document. When an external host is set
// the servers list is replaced by a single entry pointing at its MCP mount.
func RenderOpenAPI(opts OpenAPIOptions) ([]byte, error) {
	if opts.ExternalHost == "" {
		return openAPISource, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(openAPISource, &doc); err != nil {
		return nil, fmt.Errorf("parse openapi document: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("openapi document is empty")
	}

	host := strings.TrimRight(opts.ExternalHost, "/")
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	desc := opts.ExternalHostDescription
	if desc == "" {
		desc = "Public endpoint"
	}
	servers := &yaml.Node{Kind: yaml.SequenceNode, Content: []*yaml.Node{{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: "url"},
			{Kind: yaml.ScalarNode, Value: host + strings.TrimRight(opts.RootPath, "/") + "/mcp"},
			{Kind: yaml.ScalarNode, Value: "description"},
			{Kind: yaml.ScalarNode, Value: desc},
		},
	}}}
	setMapping(doc.Content[0], "servers", servers)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("encode openapi document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setMapping(m *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = value
			return
		}
	}
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, value)
}

// OpenAPIHandler serves the rendered document.
func OpenAPIHandler(opts OpenAPIOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		doc, err := RenderOpenAPI(opts)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(doc)
	}
}
