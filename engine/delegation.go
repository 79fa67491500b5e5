package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/canopyai/canopy/agent"
	"github.com/canopyai/canopy/model"
)

// DelegationToolName is the synthesized function through which a Coordinator
// hands work to its sub-agents.
const DelegationToolName = "delegate_to_agent"

// delegationMarker prefixes a sub-agent's output when it is fed back to the
// delegating model as a tool result. Sub-agent responses are surfaced to the
// user directly (via OnAgentResponse), so the parent must not repeat them.
const delegationMarker = "[This response from %q has already been shown to the user verbatim. " +
	"Do not repeat or paraphrase it in your reply; acknowledge it briefly or continue with next steps.]\n\n"

// delegationDefinition synthesizes the delegation tool declaration for the
// node's current children. It is rebuilt from the live child list on every
// model call and never cached, so renaming a child between turns is
// reflected in the enum immediately.
func delegationDefinition(node *agent.Node) model.ToolDefinition {
	names := node.ChildNames()

	enum := make([]any, len(names))
	for i, n := range names {
		enum[i] = n
	}

	var desc strings.Builder
	desc.WriteString("Delegate a task to one of your sub-agents. Available agents:\n")
	for _, c := range node.SubAgents {
		fmt.Fprintf(&desc, "- %s: %s\n", c.Name, c.Goal)
	}

	return model.ToolDefinition{
		Name:        DelegationToolName,
		Description: desc.String(),
		Parameters: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"agentName": {
					Type:        "string",
					Enum:        enum,
					Description: "Exact name of the sub-agent to delegate to.",
				},
				"task": {
					Type:        "string",
					Description: "Complete, self-contained instruction for the sub-agent.",
				},
			},
			Required: []string{"agentName", "task"},
		},
	}
}

// handleDelegation resolves a delegate_to_agent call: locate the named child
// (case-exact), recursively run it with an empty history and the task as the
// user message, and return its rendered output tagged with the marker. A
// missing target yields an enumerated error string fed back to the model,
// never an error.
func (r *Runner) handleDelegation(ctx context.Context, node *agent.Node, args map[string]any) string {
	agentName, _ := args["agentName"].(string)
	task, _ := args["task"].(string)

	child := node.FindChild(agentName)
	if child == nil {
		return fmt.Sprintf("Error: no sub-agent named %q. Valid agents: %s",
			agentName, strings.Join(node.ChildNames(), ", "))
	}

	r.logger.Info("delegating", "from", node.Name, "to", child.Name)

	out, err := r.run(ctx, child, nil, task)
	if err != nil {
		out = renderError(err)
	}

	r.notifyAgentResponse(child.Name, out)

	return fmt.Sprintf(delegationMarker, child.Name) + out
}
