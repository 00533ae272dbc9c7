package openapi

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	aspen "github.com/goliatone/go-aspen"
)

// Generate describes a composed schema as an OpenAPI document. The root
// schema is published under components/schemas with the name set by
// WithRootComponent, or the schema name.
func Generate(schema *aspen.Schema, opts ...GeneratorOption) (map[string]any, error) {
	if schema == nil {
		return nil, fmt.Errorf("openapi: schema cannot be nil")
	}
	cfg := defaultGeneratorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	name := schema.Name()
	if name == "" {
		name = "Config"
	}
	if cfg.rootComponent == "" {
		cfg.rootComponent = name
	}
	if cfg.info.Title == "" {
		cfg.info.Title = name
	}

	root, err := buildSchemaGraph(schema)
	if err != nil {
		return nil, err
	}
	return newOpenAPIDocumentBuilder(cfg, root).build()
}

// JSON renders the generated document as indented JSON.
func JSON(schema *aspen.Schema, opts ...GeneratorOption) ([]byte, error) {
	document, err := Generate(schema, opts...)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(document, "", "  ")
}

// YAML renders the generated document as YAML.
func YAML(schema *aspen.Schema, opts ...GeneratorOption) ([]byte, error) {
	document, err := Generate(schema, opts...)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(document)
}
