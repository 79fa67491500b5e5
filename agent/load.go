package agent

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/canopyai/canopy/core"
)

// Parse decodes an agent tree from YAML and validates it. Nodes without an
// id are assigned a generated one so external editors can omit ids.
func Parse(data []byte) (*Node, error) {
	var root Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse agent tree: %w", err)
	}

	assignIDs(&root)

	if err := root.Validate(); err != nil {
		return nil, err
	}

	return &root, nil
}

// Load reads and parses an agent tree definition file.
func Load(path string) (*Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent tree file: %w", err)
	}
	return Parse(data)
}

func assignIDs(n *Node) {
	if n.ID == "" {
		n.ID = core.NewID()
	}
	for _, c := range n.SubAgents {
		assignIDs(c)
	}
}
