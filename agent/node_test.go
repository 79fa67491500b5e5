package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelIDDefaults(t *testing.T) {
	n := New("Helper", "helps", "")
	assert.Equal(t, DefaultModel, n.ModelID())

	n.Model = "claude-sonnet-4-20250514"
	assert.Equal(t, "claude-sonnet-4-20250514", n.ModelID())
}

func TestIsCoordinator(t *testing.T) {
	n := New("Root", "", "")
	assert.False(t, n.IsCoordinator())

	n.SubAgents = []*Node{New("Child", "", "")}
	assert.True(t, n.IsCoordinator())
	assert.True(t, n.IsCoordinator(), "flow tag never factors in")
}

func TestFindChildCaseExact(t *testing.T) {
	n := New("Root", "", "")
	n.SubAgents = []*Node{New("Researcher", "", "")}

	assert.NotNil(t, n.FindChild("Researcher"))
	assert.Nil(t, n.FindChild("researcher"))
	assert.Nil(t, n.FindChild("Writer"))
}

func TestValidateRejectsDuplicates(t *testing.T) {
	n := New("Root", "", "")
	n.Tools = []string{"search", "search"}
	assert.Error(t, n.Validate())

	n.Tools = nil
	n.SubAgents = []*Node{New("A", "", ""), New("A", "", "")}
	assert.Error(t, n.Validate())

	n.SubAgents = []*Node{New("A", "", ""), New("B", "", "")}
	assert.NoError(t, n.Validate())
}

func TestValidateRejectsUnnamedNode(t *testing.T) {
	n := New("Root", "", "")
	n.SubAgents = []*Node{{ID: "x"}}
	assert.Error(t, n.Validate())
}

func TestDepth(t *testing.T) {
	leaf := New("Leaf", "", "")
	assert.Equal(t, 1, leaf.Depth())

	mid := New("Mid", "", "")
	mid.SubAgents = []*Node{leaf}
	root := New("Root", "", "")
	root.SubAgents = []*Node{mid, New("Other", "", "")}
	assert.Equal(t, 3, root.Depth())
}

func TestParseAssignsIDsAndValidates(t *testing.T) {
	data := []byte(`
name: Coordinator
goal: routes work
instructions: Route requests.
flow: sequential
sub_agents:
  - name: Researcher
    goal: finds facts
    model: gemini-2.5-pro
    tools: [google_search_grounding]
  - name: Painter
    goal: draws pictures
    model: imagen-4.0-generate-001
`)

	root, err := Parse(data)

	require.NoError(t, err)
	assert.NotEmpty(t, root.ID)
	assert.Equal(t, FlowSequential, root.Flow)
	require.Len(t, root.SubAgents, 2)
	assert.NotEmpty(t, root.SubAgents[0].ID)
	assert.Equal(t, []string{"Researcher", "Painter"}, root.ChildNames())
}

func TestParseRejectsInvalidTree(t *testing.T) {
	_, err := Parse([]byte(`
name: Root
sub_agents:
  - name: A
  - name: A
`))
	assert.Error(t, err)
}
