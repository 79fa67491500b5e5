// Package agent defines the agent-tree data model consumed by the engine.
// Trees are constructed by an external editor (or loaded from YAML) and are
// treated as read-only for the duration of a turn: the engine never mutates
// a Node.
package agent

import (
	"fmt"

	"github.com/canopyai/canopy/core"
)

// DefaultModel is the baseline text model assumed for nodes that declare no
// model identifier.
const DefaultModel = "gemini-2.5-flash"

// Flow is an advisory tag describing how grouped children are presented.
//
// The engine does not differentiate on it: delegation is always a flat,
// on-demand, model-initiated single call regardless of the tag. The tag is
// carried for editors and presentation layers only.
type Flow string

const (
	// FlowSequential presents children as an ordered pipeline.
	FlowSequential Flow = "sequential"
	// FlowConcurrent presents children as an unordered group.
	FlowConcurrent Flow = "concurrent"
)

// Node is one agent in an immutable-per-turn tree. A Node with SubAgents is
// implicitly a Coordinator: it receives a synthesized delegation tool
// enumerating its children and resolves user requests by delegating.
type Node struct {
	ID           string  `yaml:"id" json:"id"`
	Name         string  `yaml:"name" json:"name"`
	Goal         string  `yaml:"goal,omitempty" json:"goal,omitempty"`
	Instructions string  `yaml:"instructions,omitempty" json:"instructions,omitempty"`
	Model        string  `yaml:"model,omitempty" json:"model,omitempty"`
	Tools        []string `yaml:"tools,omitempty" json:"tools,omitempty"`
	SubAgents    []*Node `yaml:"sub_agents,omitempty" json:"sub_agents,omitempty"`
	Flow         Flow    `yaml:"flow,omitempty" json:"flow,omitempty"`
}

// New creates a leaf node with a generated id.
func New(name, goal, instructions string) *Node {
	return &Node{ID: core.NewID(), Name: name, Goal: goal, Instructions: instructions}
}

// ModelID returns the node's model identifier, falling back to DefaultModel
// when none is declared.
func (n *Node) ModelID() string {
	if n.Model == "" {
		return DefaultModel
	}
	return n.Model
}

// IsCoordinator reports whether the node has children. The flow tag has no
// bearing on this.
func (n *Node) IsCoordinator() bool { return len(n.SubAgents) > 0 }

// FindChild returns the direct child with the exact given name, or nil.
// Matching is case-exact: "Researcher" and "researcher" are different agents.
func (n *Node) FindChild(name string) *Node {
	for _, c := range n.SubAgents {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildNames returns the names of direct children preserving declaration
// order. The delegation tool's target enumeration is rebuilt from this on
// every model call, never cached.
func (n *Node) ChildNames() []string {
	names := make([]string, 0, len(n.SubAgents))
	for _, c := range n.SubAgents {
		names = append(names, c.Name)
	}
	return names
}

// Validate checks the structural invariants the engine relies on:
// non-empty names, tool identifiers unique within each node and child names
// unique within each parent. It recurses over the whole tree.
func (n *Node) Validate() error {
	if n.Name == "" {
		return fmt.Errorf("agent node %q has no name", n.ID)
	}

	seenTools := make(map[string]struct{}, len(n.Tools))
	for _, id := range n.Tools {
		if _, dup := seenTools[id]; dup {
			return fmt.Errorf("agent %q declares tool %q more than once", n.Name, id)
		}
		seenTools[id] = struct{}{}
	}

	seenChildren := make(map[string]struct{}, len(n.SubAgents))
	for _, c := range n.SubAgents {
		if _, dup := seenChildren[c.Name]; dup {
			return fmt.Errorf("agent %q has duplicate sub-agent name %q", n.Name, c.Name)
		}
		seenChildren[c.Name] = struct{}{}

		if err := c.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// Depth returns the height of the tree rooted at n (a leaf has depth 1).
// Recursion depth during delegation equals the depth of the delegated-to
// agent, so editors may use this to warn about excessively deep trees.
func (n *Node) Depth() int {
	max := 0
	for _, c := range n.SubAgents {
		if d := c.Depth(); d > max {
			max = d
		}
	}
	return max + 1
}
