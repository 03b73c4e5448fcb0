package command

import (
	"fmt"
	"sort"
	"strings"
)

// Registry is immutable after Build returns (spec.md §4.C). Name and alias
// lookups are case-insensitive on the leading token of a message.
type Registry struct {
	byName map[string]*Descriptor
}

// Build constructs a Registry from a descriptor set, rejecting duplicate
// names or aliases across the whole table (spec.md §3 invariant).
func Build(descriptors []*Descriptor) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Descriptor, len(descriptors)*2)}
	for _, d := range descriptors {
		key := strings.ToLower(d.Name)
		if _, exists := r.byName[key]; exists {
			return nil, fmt.Errorf("command registry: duplicate name or alias %q", d.Name)
		}
		r.byName[key] = d
		for _, alias := range d.Aliases {
			aliasKey := strings.ToLower(alias)
			if _, exists := r.byName[aliasKey]; exists {
				return nil, fmt.Errorf("command registry: duplicate name or alias %q", alias)
			}
			r.byName[aliasKey] = d
		}
	}
	return r, nil
}

// GetByNameOrAlias resolves a case-insensitive name or alias to its
// descriptor, or reports ok=false.
func (r *Registry) GetByNameOrAlias(name string) (*Descriptor, bool) {
	d, ok := r.byName[strings.ToLower(name)]
	return d, ok
}

// All enumerates the distinct descriptors (not one row per alias) for help
// rendering, sorted by name for stable output.
func (r *Registry) All() []*Descriptor {
	seen := make(map[*Descriptor]bool)
	out := make([]*Descriptor, 0, len(r.byName))
	for _, d := range r.byName {
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CountVisible counts descriptors that are neither disabled nor Private,
// used by help/stats rendering.
func (r *Registry) CountVisible() int {
	n := 0
	for _, d := range r.All() {
		if !d.Disabled && d.Access != Private {
			n++
		}
	}
	return n
}
