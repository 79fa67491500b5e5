package engine

// Listener observes engine progress. Callbacks fire synchronously relative
// to the step that produces them, so implementations must return quickly.
// The absence of listeners never changes engine behavior.
type Listener interface {
	// OnToolStart fires before a tool (including delegation) executes.
	OnToolStart(agentName, toolName string, args map[string]any)

	// OnToolEnd fires after a tool finished, with its result (or the error
	// string fed back to the model).
	OnToolEnd(agentName, toolName string, result any)

	// OnAgentResponse fires when an agent produces its contribution to the
	// conversation, including recursively invoked sub-agents.
	OnAgentResponse(agentName, content string)
}

// notifyToolStart fans out OnToolStart to all listeners.
func (r *Runner) notifyToolStart(agentName, toolName string, args map[string]any) {
	for _, l := range r.listeners {
		l.OnToolStart(agentName, toolName, args)
	}
}

// notifyToolEnd fans out OnToolEnd to all listeners.
func (r *Runner) notifyToolEnd(agentName, toolName string, result any) {
	for _, l := range r.listeners {
		l.OnToolEnd(agentName, toolName, result)
	}
}

// notifyAgentResponse fans out OnAgentResponse to all listeners.
func (r *Runner) notifyAgentResponse(agentName, content string) {
	for _, l := range r.listeners {
		l.OnAgentResponse(agentName, content)
	}
}
