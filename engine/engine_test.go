package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopyai/canopy/agent"
	"github.com/canopyai/canopy/backoff"
	"github.com/canopyai/canopy/core"
	"github.com/canopyai/canopy/gateway"
	"github.com/canopyai/canopy/model"
	"github.com/canopyai/canopy/tool"
)

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func newTestGateway(mock *model.MockModel, optFns ...func(o *gateway.Options)) *gateway.Gateway {
	return gateway.New(append([]func(o *gateway.Options){func(o *gateway.Options) {
		o.Gemini = mock
		o.Sleeper = noSleep
		o.Retry = backoff.New(func(bo *backoff.Options) { bo.Sleeper = noSleep })
	}}, optFns...)...)
}

type recordingListener struct {
	toolStarts []string
	toolEnds   []string
	responses  map[string]string
}

func newRecordingListener() *recordingListener {
	return &recordingListener{responses: map[string]string{}}
}

func (l *recordingListener) OnToolStart(_, toolName string, _ map[string]any) {
	l.toolStarts = append(l.toolStarts, toolName)
}

func (l *recordingListener) OnToolEnd(_, toolName string, _ any) {
	l.toolEnds = append(l.toolEnds, toolName)
}

func (l *recordingListener) OnAgentResponse(agentName, content string) {
	l.responses[agentName] = content
}

func echoTool(name string) tool.Tool {
	return tool.MustNewFunctionTool(name, "echoes its input",
		&jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"value": {Type: "string"},
			},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			return "echo: " + args["value"].(string), nil
		})
}

func TestSendMessagePlainText(t *testing.T) {
	mock := model.NewMockModel("gemini")
	mock.EnqueueText("Hello there!")

	listener := newRecordingListener()
	r, err := NewRunner(agent.New("Helper", "helps", "Be helpful."), newTestGateway(mock),
		func(o *Options) { o.Listeners = []Listener{listener} })
	require.NoError(t, err)

	out := r.SendMessage(context.Background(), nil, "hi")

	assert.Equal(t, "Hello there!", out)
	assert.Equal(t, "Hello there!", listener.responses["Helper"])
	assert.Empty(t, listener.toolStarts)
}

func TestSendMessageToolLoop(t *testing.T) {
	mock := model.NewMockModel("gemini")
	mock.EnqueueFunctionCall("call-1", "echo", `{"value":"ping"}`)
	mock.EnqueueText("The tool said: echo: ping")

	registry := tool.NewRegistry()
	registry.Register("echo", echoTool("echo"))

	node := agent.New("Helper", "helps", "Use your tools.")
	node.Tools = []string{"echo"}

	listener := newRecordingListener()
	r, err := NewRunner(node, newTestGateway(mock), func(o *Options) {
		o.Registry = registry
		o.Listeners = []Listener{listener}
	})
	require.NoError(t, err)

	out := r.SendMessage(context.Background(), nil, "run the tool")

	assert.Equal(t, "The tool said: echo: ping", out)
	assert.Equal(t, []string{"echo"}, listener.toolStarts)
	assert.Equal(t, []string{"echo"}, listener.toolEnds)

	// The second request must carry exactly one response part for the call.
	require.Len(t, mock.Requests, 2)
	second := mock.Requests[1]
	last := second.Contents[len(second.Contents)-1]
	assert.Equal(t, "tool", last.Role)
	require.Len(t, last.Parts, 1)
	fr, ok := last.Parts[0].(core.FunctionResponsePart)
	require.True(t, ok)
	assert.Equal(t, "call-1", fr.FunctionResponse.ID)
	assert.Equal(t, "echo: ping", fr.FunctionResponse.Response)
}

func TestUnknownToolRecoversLocally(t *testing.T) {
	mock := model.NewMockModel("gemini")
	mock.EnqueueFunctionCall("call-1", "does_not_exist", `{}`)
	mock.EnqueueText("done")

	r, err := NewRunner(agent.New("Helper", "helps", ""), newTestGateway(mock))
	require.NoError(t, err)

	out := r.SendMessage(context.Background(), nil, "go")

	assert.Equal(t, "done", out)
	require.Len(t, mock.Requests, 2)
	last := mock.Requests[1].Contents[len(mock.Requests[1].Contents)-1]
	fr := last.Parts[0].(core.FunctionResponsePart)
	assert.Contains(t, fr.FunctionResponse.Response, `"does_not_exist" is not available`)
}

func TestMalformedArgumentsRepaired(t *testing.T) {
	mock := model.NewMockModel("gemini")
	// Trailing comma; repaired rather than failing the turn.
	mock.EnqueueFunctionCall("call-1", "echo", `{"value":"ping",}`)
	mock.EnqueueText("ok")

	registry := tool.NewRegistry()
	registry.Register("echo", echoTool("echo"))

	node := agent.New("Helper", "helps", "")
	node.Tools = []string{"echo"}

	r, err := NewRunner(node, newTestGateway(mock), func(o *Options) { o.Registry = registry })
	require.NoError(t, err)

	out := r.SendMessage(context.Background(), nil, "go")

	assert.Equal(t, "ok", out)
	last := mock.Requests[1].Contents[len(mock.Requests[1].Contents)-1]
	fr := last.Parts[0].(core.FunctionResponsePart)
	assert.Equal(t, "echo: ping", fr.FunctionResponse.Response)
}

func coordinatorTree() *agent.Node {
	root := agent.New("Coordinator", "routes work", "Route requests to your agents.")
	root.SubAgents = []*agent.Node{
		agent.New("Researcher", "finds facts", "Research thoroughly."),
		agent.New("Writer", "writes prose", "Write clearly."),
	}
	return root
}

func delegationEnum(t *testing.T, req *model.Request) []any {
	t.Helper()
	for _, d := range req.Tools {
		if d.Name == DelegationToolName {
			return d.Parameters.Properties["agentName"].Enum
		}
	}
	t.Fatalf("no %s declaration in request", DelegationToolName)
	return nil
}

func TestDelegationEnumMatchesChildren(t *testing.T) {
	mock := model.NewMockModel("gemini")
	mock.EnqueueText("ok")
	mock.EnqueueText("ok again")

	root := coordinatorTree()
	r, err := NewRunner(root, newTestGateway(mock))
	require.NoError(t, err)

	r.SendMessage(context.Background(), nil, "hello")
	assert.Equal(t, []any{"Researcher", "Writer"}, delegationEnum(t, mock.Requests[0]))

	// Renaming a child between turns is reflected on the next call; the
	// descriptor is rebuilt, never cached.
	root.SubAgents[0].Name = "Analyst"
	r.SendMessage(context.Background(), nil, "hello again")
	assert.Equal(t, []any{"Analyst", "Writer"}, delegationEnum(t, mock.Requests[1]))
}

func TestDelegationRunsChild(t *testing.T) {
	mock := model.NewMockModel("gemini")
	mock.EnqueueFunctionCall("call-1", DelegationToolName,
		`{"agentName":"Researcher","task":"summarize X"}`)
	mock.EnqueueText("Research summary: lots of facts about X.") // Child's turn
	mock.EnqueueText("Handed off; see above.")                   // Coordinator's wrap-up

	listener := newRecordingListener()
	r, err := NewRunner(coordinatorTree(), newTestGateway(mock),
		func(o *Options) { o.Listeners = []Listener{listener} })
	require.NoError(t, err)

	out := r.SendMessage(context.Background(), nil, "tell me about X")

	assert.Equal(t, "Handed off; see above.", out)
	assert.Equal(t, "Research summary: lots of facts about X.", listener.responses["Researcher"])

	// Child ran with empty history: its request holds exactly the task turn.
	require.Len(t, mock.Requests, 3)
	childReq := mock.Requests[1]
	require.Len(t, childReq.Contents, 1)
	assert.Equal(t, "summarize X", childReq.Contents[0].Text())

	// The tool result fed back to the coordinator is tagged so the parent
	// does not repeat content the user has already seen.
	coordReq := mock.Requests[2]
	last := coordReq.Contents[len(coordReq.Contents)-1]
	fr := last.Parts[0].(core.FunctionResponsePart)
	result := fr.FunctionResponse.Response.(string)
	assert.Contains(t, result, "already been shown to the user")
	assert.Contains(t, result, "Research summary")
}

func TestDelegationUnknownTarget(t *testing.T) {
	mock := model.NewMockModel("gemini")
	mock.EnqueueFunctionCall("call-1", DelegationToolName,
		`{"agentName":"Ghost","task":"boo"}`)
	mock.EnqueueText("sorry, wrong name")

	r, err := NewRunner(coordinatorTree(), newTestGateway(mock))
	require.NoError(t, err)

	out := r.SendMessage(context.Background(), nil, "go")

	assert.Equal(t, "sorry, wrong name", out)
	last := mock.Requests[1].Contents[len(mock.Requests[1].Contents)-1]
	fr := last.Parts[0].(core.FunctionResponsePart)
	result := fr.FunctionResponse.Response.(string)
	assert.Contains(t, result, `no sub-agent named "Ghost"`)
	assert.Contains(t, result, "Researcher, Writer")
}

func TestGroundingDroppedWhenDeclarationsPresent(t *testing.T) {
	mock := model.NewMockModel("gemini")
	mock.SetInfo(model.Info{Provider: "gemini", SupportsTools: true, SupportsGrounding: true})
	mock.EnqueueText("ok")

	registry := tool.NewRegistry()
	registry.Register("echo", echoTool("echo"))

	node := agent.New("Helper", "helps", "")
	node.Tools = []string{"echo", tool.GroundingToolID}

	r, err := NewRunner(node, newTestGateway(mock), func(o *Options) { o.Registry = registry })
	require.NoError(t, err)

	r.SendMessage(context.Background(), nil, "go")

	require.Len(t, mock.Requests, 1)
	assert.False(t, mock.Requests[0].Grounding)
	assert.NotEmpty(t, mock.Requests[0].Tools)
}

func TestGroundingAttachedWhenToolSetEmpty(t *testing.T) {
	mock := model.NewMockModel("gemini")
	mock.SetInfo(model.Info{Provider: "gemini", SupportsTools: true, SupportsGrounding: true})
	mock.EnqueueText("grounded answer")

	node := agent.New("Helper", "helps", "")
	node.Tools = []string{tool.GroundingToolID}

	r, err := NewRunner(node, newTestGateway(mock))
	require.NoError(t, err)

	out := r.SendMessage(context.Background(), nil, "what happened today?")

	assert.Equal(t, "grounded answer", out)
	require.Len(t, mock.Requests, 1)
	assert.True(t, mock.Requests[0].Grounding)
	assert.Empty(t, mock.Requests[0].Tools)
}

func TestGroundingOnUnsupportedModelFailsWithoutCall(t *testing.T) {
	gemini := model.NewMockModel("gemini")
	oai := model.NewMockModel("openai")

	node := agent.New("Helper", "helps", "")
	node.Model = "gpt-4o"
	node.Tools = []string{tool.GroundingToolID}

	r, err := NewRunner(node, newTestGateway(gemini, func(o *gateway.Options) { o.OpenAI = oai }))
	require.NoError(t, err)

	out := r.SendMessage(context.Background(), nil, "go")

	assert.Contains(t, out, "Error:")
	assert.Contains(t, out, "grounding is not supported")
	assert.Empty(t, oai.Requests)
	assert.Empty(t, gemini.Requests)
}

func TestTurnBudgetExhaustion(t *testing.T) {
	mock := model.NewMockModel("gemini")
	for i := 0; i < DefaultMaxTurns; i++ {
		resp := &model.Response{Content: core.Content{
			Role: "model",
			Parts: []core.Part{
				core.TextPart{Text: "still working"},
				core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "c", Name: "nope", Arguments: "{}"}},
			},
		}}
		mock.EnqueueResponse(resp)
	}

	r, err := NewRunner(agent.New("Helper", "helps", ""), newTestGateway(mock))
	require.NoError(t, err)

	done := make(chan string, 1)
	go func() { done <- r.SendMessage(context.Background(), nil, "loop forever") }()

	select {
	case out := <-done:
		assert.Equal(t, "still working", out)
		assert.Len(t, mock.Requests, DefaultMaxTurns)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not terminate on turn budget")
	}
}

func TestUnrecoveredModelErrorRendered(t *testing.T) {
	mock := model.NewMockModel("gemini")
	boom := errors.New("invalid request payload")
	// Unclassified: retried twice, then fatal.
	mock.EnqueueError(boom)
	mock.EnqueueError(boom)
	mock.EnqueueError(boom)

	r, err := NewRunner(agent.New("Helper", "helps", ""), newTestGateway(mock))
	require.NoError(t, err)

	out := r.SendMessage(context.Background(), nil, "go")

	assert.Contains(t, out, "Error:")
	assert.Contains(t, out, "invalid request payload")
}

func TestHistoryCompressedBeforeSend(t *testing.T) {
	mock := model.NewMockModel("gemini")
	mock.EnqueueText("ok")

	payload := strings.Repeat("QUJD", 5000)
	hist := []core.Message{
		core.NewUserMessage("draw me a dog"),
		core.NewAssistantMessage("Painter", "![dog](data:image/png;base64,"+payload+")"),
	}

	r, err := NewRunner(agent.New("Helper", "helps", ""), newTestGateway(mock))
	require.NoError(t, err)

	r.SendMessage(context.Background(), hist, "another one")

	require.Len(t, mock.Requests, 1)
	sent := mock.Requests[0].Contents
	require.Len(t, sent, 3)
	assert.NotContains(t, sent[1].Text(), "data:image")
	assert.Equal(t, "another one", sent[2].Text())
}

type stuckVideoBackend struct{}

func (stuckVideoBackend) StartVideo(_ context.Context, _, _ string) (*gateway.VideoOperation, error) {
	return &gateway.VideoOperation{Name: "operations/stuck"}, nil
}

func (stuckVideoBackend) PollVideo(_ context.Context, op *gateway.VideoOperation) (*gateway.VideoOperation, error) {
	return op, nil
}

func TestVideoAgentTimesOutGracefully(t *testing.T) {
	mock := model.NewMockModel("gemini")
	gw := newTestGateway(mock, func(o *gateway.Options) { o.Video = stuckVideoBackend{} })

	node := agent.New("Director", "makes videos", "")
	node.Model = "veo-3.0-generate-001"

	r, err := NewRunner(node, gw)
	require.NoError(t, err)

	out := r.SendMessage(context.Background(), nil, "sunset over mountains")

	assert.Contains(t, out, "timed out")
	assert.Empty(t, mock.Requests, "media agents bypass the conversation loop")
}

type fakeImageBackend struct{ data []byte }

func (f fakeImageBackend) GenerateImage(_ context.Context, _, _ string) ([]byte, string, error) {
	return f.data, "image/png", nil
}

func TestImageAgentRendersMarkdown(t *testing.T) {
	mock := model.NewMockModel("gemini")
	gw := newTestGateway(mock, func(o *gateway.Options) {
		o.Image = fakeImageBackend{data: []byte("png")}
	})

	node := agent.New("Painter", "paints", "")
	node.Model = "imagen-4.0-generate-001"

	r, err := NewRunner(node, gw)
	require.NoError(t, err)

	out := r.SendMessage(context.Background(), nil, "a red balloon")

	assert.True(t, strings.HasPrefix(out, "![generated image](data:image/png;base64,"))
}

func TestCoordinationProtocolInInstructions(t *testing.T) {
	mock := model.NewMockModel("gemini")
	mock.EnqueueText("ok")

	r, err := NewRunner(coordinatorTree(), newTestGateway(mock))
	require.NoError(t, err)

	r.SendMessage(context.Background(), nil, "hi")

	require.Len(t, mock.Requests, 1)
	instr := mock.Requests[0].Instructions
	assert.Contains(t, instr, "Route requests to your agents.")
	assert.Contains(t, instr, "Coordination protocol")
	assert.Contains(t, instr, "Researcher: finds facts")
	assert.Contains(t, instr, "Writer: writes prose")
}
