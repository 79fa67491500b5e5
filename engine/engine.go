// Package engine implements the recursive delegation engine: the state
// machine that drives one agent's turn against the model gateway, executes
// tool calls (including delegation to sub-agents), and bounds every
// invocation by a turn budget. Nothing escapes the top-level SendMessage
// call; every path terminates with renderable text.
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/canopyai/canopy/agent"
	"github.com/canopyai/canopy/core"
	"github.com/canopyai/canopy/gateway"
	"github.com/canopyai/canopy/history"
	"github.com/canopyai/canopy/internal/jsonutil"
	"github.com/canopyai/canopy/logging"
	"github.com/canopyai/canopy/model"
	"github.com/canopyai/canopy/tool"
)

// DefaultMaxTurns bounds the model round-trips of one agent invocation.
const DefaultMaxTurns = 10

// Options configures a Runner.
type Options struct {
	Registry  *tool.Registry
	Listeners []Listener
	Logger    logging.Logger
	MaxTurns  int
}

// Runner executes turns against an agent tree. It holds no per-turn state;
// a single Runner serves concurrent invocations.
type Runner struct {
	root      *agent.Node
	gateway   *gateway.Gateway
	registry  *tool.Registry
	listeners []Listener
	logger    logging.Logger
	maxTurns  int
}

// NewRunner creates a Runner for the given tree. The tree is validated once
// here and treated as read-only afterwards.
func NewRunner(root *agent.Node, gw *gateway.Gateway, optFns ...func(o *Options)) (*Runner, error) {
	if root == nil {
		return nil, fmt.Errorf("agent tree is nil")
	}
	if err := root.Validate(); err != nil {
		return nil, fmt.Errorf("invalid agent tree: %w", err)
	}

	opts := Options{
		Registry: tool.NewRegistry(),
		Logger:   logging.NoOpLogger{},
		MaxTurns: DefaultMaxTurns,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Runner{
		root:      root,
		gateway:   gw,
		registry:  opts.Registry,
		listeners: opts.Listeners,
		logger:    opts.Logger,
		maxTurns:  opts.MaxTurns,
	}, nil
}

// Root returns the tree this runner executes.
func (r *Runner) Root() *agent.Node { return r.root }

// SendMessage runs one turn of the root agent against the given prior
// history and new user message. It always returns renderable text: errors
// are formatted into user-visible strings, never propagated.
func (r *Runner) SendMessage(ctx context.Context, hist []core.Message, text string) string {
	out, err := r.run(ctx, r.root, hist, text)
	if err != nil {
		r.logger.Error("turn failed", "agent", r.root.Name, "error", err)
		out = renderError(err)
	}

	r.notifyAgentResponse(r.root.Name, out)
	return out
}

// renderError formats an internal error into the user-visible string that
// substitutes for the agent's output.
func renderError(err error) string {
	return fmt.Sprintf("Error: %v", err)
}

// run drives one agent's turn: media-model agents bypass the loop entirely,
// everything else goes through the conversation loop.
func (r *Runner) run(ctx context.Context, node *agent.Node, hist []core.Message, text string) (string, error) {
	modelID := node.ModelID()

	switch gateway.OperationFor(modelID) {
	case gateway.OperationImage:
		res, err := r.gateway.GenerateImage(ctx, modelID, text)
		if err != nil {
			return "", err
		}
		return res.Render(), nil
	case gateway.OperationVideo:
		res, err := r.gateway.GenerateVideo(ctx, modelID, text)
		if err != nil {
			return "", err
		}
		return res.Render(), nil
	default:
		return r.conversationLoop(ctx, node, hist, text)
	}
}

// conversationLoop is the tool-calling state machine for one agent turn.
// Each iteration issues one gateway call; returned tool calls execute
// sequentially, each appending exactly one response part, until the model
// produces a text-only response or the turn budget runs out.
func (r *Runner) conversationLoop(ctx context.Context, node *agent.Node, hist []core.Message, text string) (string, error) {
	resolved, err := r.registry.Resolve(node.Tools)
	if err != nil {
		return "", err
	}

	modelID := node.ModelID()
	if resolved.Grounding && !r.gateway.SupportsGrounding(modelID) {
		return "", fmt.Errorf("grounding is not supported on model %q", modelID)
	}

	contents := contentsFromHistory(hist)
	contents = append(contents, core.NewTextContent("user", text))

	instructions := r.buildInstructions(node)

	var lastText string
	for turn := 0; turn < r.maxTurns; turn++ {
		decls := r.buildDeclarations(node, resolved)

		grounding := resolved.Grounding
		if grounding && len(decls) > 0 {
			r.logger.Warn("dropping grounding directive: function declarations present",
				"agent", node.Name, "model", modelID)
			grounding = false
		}

		res, err := r.gateway.GenerateText(ctx, &model.Request{
			Model:        modelID,
			Instructions: instructions,
			Contents:     contents,
			Tools:        decls,
			Grounding:    grounding,
		})
		if err != nil {
			return "", err
		}

		contents = append(contents, modelContent(res))

		if len(res.ToolCalls) == 0 {
			return res.Render(), nil
		}

		if res.Text != "" {
			lastText = res.Text
		}

		responses := make([]core.Part, 0, len(res.ToolCalls))
		for _, call := range res.ToolCalls {
			result := r.executeToolCall(ctx, node, resolved, call)
			responses = append(responses, core.FunctionResponsePart{
				FunctionResponse: core.FunctionResponse{
					ID:       call.ID,
					Name:     call.Name,
					Response: result,
				},
			})
		}
		contents = append(contents, core.Content{Role: "tool", Parts: responses})
	}

	r.logger.Warn("turn budget exhausted", "agent", node.Name, "turns", r.maxTurns)
	return lastText, nil
}

// buildInstructions assembles the system instruction: the agent's own
// instructions plus, for Coordinators, a coordination protocol block listing
// child names and goals.
func (r *Runner) buildInstructions(node *agent.Node) string {
	var b strings.Builder
	b.WriteString(node.Instructions)

	if node.IsCoordinator() {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("## Coordination protocol\n")
		b.WriteString("You coordinate the following sub-agents:\n")
		for _, c := range node.SubAgents {
			fmt.Fprintf(&b, "- %s: %s\n", c.Name, c.Goal)
		}
		b.WriteString("\nTo hand work to a sub-agent, call the ")
		b.WriteString(DelegationToolName)
		b.WriteString(" function with the agent's exact name and a complete task description. ")
		b.WriteString("Sub-agent responses are shown to the user directly; never repeat them verbatim.")
	}

	return b.String()
}

// buildDeclarations assembles the function declaration set for one model
// call: the agent's executables plus, for Coordinators, the delegation tool
// synthesized from the current child list.
func (r *Runner) buildDeclarations(node *agent.Node, resolved *tool.Resolved) []model.ToolDefinition {
	decls := make([]model.ToolDefinition, 0, len(resolved.Executables)+1)
	for _, t := range resolved.Executables {
		decls = append(decls, model.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}

	if node.IsCoordinator() {
		decls = append(decls, delegationDefinition(node))
	}

	return decls
}

// executeToolCall runs one tool call and returns its result. Failures are
// recovered locally: unknown tools and execution errors become result
// strings the model can react to, keeping the conversation alive.
func (r *Runner) executeToolCall(ctx context.Context, node *agent.Node, resolved *tool.Resolved, call core.FunctionCall) any {
	args := map[string]any{}
	if call.Arguments != "" {
		if err := jsonutil.Unmarshal([]byte(call.Arguments), &args); err != nil {
			r.logger.Warn("undecodable tool arguments",
				"agent", node.Name, "tool", call.Name, "error", err)
			return fmt.Sprintf("Error: could not parse arguments for tool %q: %v", call.Name, err)
		}
	}

	r.notifyToolStart(node.Name, call.Name, args)

	var result any
	switch {
	case call.Name == DelegationToolName && node.IsCoordinator():
		result = r.handleDelegation(ctx, node, args)
	default:
		t, ok := resolved.Lookup(call.Name)
		if !ok {
			result = fmt.Sprintf("Error: tool %q is not available to this agent", call.Name)
		} else {
			out, err := t.Call(ctx, args)
			if err != nil {
				r.logger.Warn("tool failed", "agent", node.Name, "tool", call.Name, "error", err)
				result = fmt.Sprintf("Error: %v", err)
			} else {
				result = out
			}
		}
	}

	r.notifyToolEnd(node.Name, call.Name, result)
	return result
}

// contentsFromHistory converts the caller-provided transcript into content
// turns, compressing inlined media payloads. Compression applies only here:
// content produced during the current turn is never rewritten.
func contentsFromHistory(hist []core.Message) []core.Content {
	contents := make([]core.Content, 0, len(hist)+1)
	for _, m := range hist {
		role := "user"
		if m.Role == core.RoleAssistant {
			role = "model"
		}
		contents = append(contents, core.NewTextContent(role, history.Compress(m.Content)))
	}
	return contents
}

// modelContent reconstructs the model's turn from the normalized result so
// the accumulated contents stay a faithful request/response log.
func modelContent(res *gateway.TextResult) core.Content {
	c := core.Content{Role: "model"}
	if res.Text != "" {
		c.Parts = append(c.Parts, core.TextPart{Text: res.Text})
	}
	for _, call := range res.ToolCalls {
		c.Parts = append(c.Parts, core.FunctionCallPart{FunctionCall: call})
	}
	return c
}
