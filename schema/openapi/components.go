package openapi

import (
	"fmt"
	"regexp"
)

// componentRegistry publishes section nodes under components/schemas. A
// section becomes a component when it is forced (the root) or when its
// digest was counted more than once.
type componentRegistry struct {
	counts    map[string]int
	entries   map[string]*componentEntry
	usedNames map[string]struct{}
	order     []string
}

type componentEntry struct {
	name   string
	schema map[string]any
}

func newComponentRegistry() *componentRegistry {
	return &componentRegistry{
		counts:    map[string]int{},
		entries:   map[string]*componentEntry{},
		usedNames: map[string]struct{}{},
	}
}

// count records every section below node.
func (r *componentRegistry) count(node *schemaNode) {
	if node == nil {
		return
	}
	if node.section {
		r.counts[node.Digest()]++
	}
	for _, key := range sortedKeys(node.Properties) {
		r.count(node.Properties[key])
	}
	r.count(node.Items)
}

func (r *componentRegistry) shared(node *schemaNode) bool {
	return node != nil && node.section && r.counts[node.Digest()] >= 2
}

// reference returns the $ref for node, reserving a component name on first
// use. render is only called once per digest.
func (r *componentRegistry) reference(nameHint string, node *schemaNode, render func() map[string]any) string {
	digest := node.Digest()
	entry, ok := r.entries[digest]
	if !ok {
		entry = &componentEntry{name: r.uniqueName(nameHint)}
		r.entries[digest] = entry
		r.order = append(r.order, digest)
		entry.schema = render()
	}
	return fmt.Sprintf("#/components/schemas/%s", entry.name)
}

func (r *componentRegistry) uniqueName(name string) string {
	safe := sanitizeComponentName(name)
	if safe == "" {
		safe = "Schema"
	}
	if _, exists := r.usedNames[safe]; !exists {
		r.usedNames[safe] = struct{}{}
		return safe
	}
	for suffix := 1; ; suffix++ {
		candidate := fmt.Sprintf("%s%d", safe, suffix)
		if _, exists := r.usedNames[candidate]; !exists {
			r.usedNames[candidate] = struct{}{}
			return candidate
		}
	}
}

func (r *componentRegistry) componentsMap() map[string]any {
	out := make(map[string]any, len(r.entries))
	for _, digest := range r.order {
		entry := r.entries[digest]
		out[entry.name] = entry.schema
	}
	return out
}

var componentNameRegexp = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

func sanitizeComponentName(name string) string {
	name = trimUnderscores(componentNameRegexp.ReplaceAllString(name, "_"))
	if name == "" {
		return ""
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	return name
}

func trimUnderscores(input string) string {
	start := 0
	for start < len(input) && input[start] == '_' {
		start++
	}
	end := len(input)
	for end > start && input[end-1] == '_' {
		end--
	}
	return input[start:end]
}
