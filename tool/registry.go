package tool

import (
	"fmt"
	"sort"
)

// Registry maps tool identifiers to implementations. It is populated during
// setup and read-only from the engine's perspective; no locking is required
// once invocations start.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates an empty registry. The native grounding marker is
// pre-registered under GroundingToolID so agent definitions can reference it
// like any other tool.
func NewRegistry() *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	r.Register(GroundingToolID, NewGroundingTool())
	return r
}

// Register adds a tool under the given identifier, replacing any previous
// registration.
func (r *Registry) Register(id string, t Tool) {
	r.tools[id] = t
}

// Get retrieves a tool by identifier.
func (r *Registry) Get(id string) (Tool, bool) {
	t, ok := r.tools[id]
	return t, ok
}

// IDs returns all registered identifiers in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.tools))
	for id := range r.tools {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resolved is the tagged resolution of an agent's declared tool identifiers:
// an explicit mapping from declaration name to executable plus the grounding
// flag. It is computed once per engine invocation, not re-scanned per call.
type Resolved struct {
	// Grounding is set when the agent's tool set includes the native
	// grounding marker.
	Grounding bool

	// Executables holds the callable tools in declaration order.
	Executables []Tool

	byName map[string]Tool
}

// Resolve maps the declared identifiers to a Resolved set. An identifier
// with no registration is a configuration error and fails resolution
// outright; tools unknown only to the model at call time are handled more
// leniently by Lookup.
func (r *Registry) Resolve(ids []string) (*Resolved, error) {
	rs := &Resolved{byName: make(map[string]Tool, len(ids))}
	for _, id := range ids {
		t, ok := r.tools[id]
		if !ok {
			return nil, fmt.Errorf("tool %q is not registered", id)
		}
		if IsGrounding(t) {
			rs.Grounding = true
			continue
		}
		rs.Executables = append(rs.Executables, t)
		rs.byName[t.Name()] = t
	}
	return rs, nil
}

// Lookup returns the executable registered under the given declaration name.
func (rs *Resolved) Lookup(name string) (Tool, bool) {
	t, ok := rs.byName[name]
	return t, ok
}
