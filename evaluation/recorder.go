package evaluation

import "sync"

// EventKind distinguishes recorded engine events.
type EventKind string

const (
	EventToolStart     EventKind = "tool_start"
	EventToolEnd       EventKind = "tool_end"
	EventAgentResponse EventKind = "agent_response"
)

// Event is one observed engine notification.
type Event struct {
	Kind    EventKind
	Agent   string
	Tool    string // Set for tool events
	Content string // Set for agent responses
	Payload any    // Tool args or result
}

// Recorder is an engine.Listener that captures notifications for later
// inspection. Safe for concurrent sessions; events are appended in the order
// they fire.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// OnToolStart implements engine.Listener.
func (r *Recorder) OnToolStart(agentName, toolName string, args map[string]any) {
	r.append(Event{Kind: EventToolStart, Agent: agentName, Tool: toolName, Payload: args})
}

// OnToolEnd implements engine.Listener.
func (r *Recorder) OnToolEnd(agentName, toolName string, result any) {
	r.append(Event{Kind: EventToolEnd, Agent: agentName, Tool: toolName, Payload: result})
}

// OnAgentResponse implements engine.Listener.
func (r *Recorder) OnAgentResponse(agentName, content string) {
	r.append(Event{Kind: EventAgentResponse, Agent: agentName, Content: content})
}

func (r *Recorder) append(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a snapshot of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
