package evaluation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopyai/canopy/agent"
	"github.com/canopyai/canopy/backoff"
	"github.com/canopyai/canopy/core"
	"github.com/canopyai/canopy/engine"
	"github.com/canopyai/canopy/gateway"
	"github.com/canopyai/canopy/model"
)

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func newTestRunner(t *testing.T, listeners ...engine.Listener) *engine.Runner {
	t.Helper()

	mock := model.NewMockModel("gemini")
	gw := gateway.New(func(o *gateway.Options) {
		o.Gemini = mock
		o.Retry = backoff.New(func(bo *backoff.Options) { bo.Sleeper = noSleep })
	})

	r, err := engine.NewRunner(agent.New("Helper", "helps", ""), gw,
		func(o *engine.Options) { o.Listeners = listeners })
	require.NoError(t, err)
	return r
}

func TestParseScenarios(t *testing.T) {
	data := []byte(`
scenarios:
  - name: greeting
    turns:
      - "hello"
      - "how are you?"
  - name: lookup
    turns:
      - "what is the capital of France?"
`)

	scenarios, err := ParseScenarios(data)

	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "greeting", scenarios[0].Name)
	assert.Len(t, scenarios[0].Turns, 2)
}

func TestParseScenariosRejectsEmpty(t *testing.T) {
	_, err := ParseScenarios([]byte(`scenarios: []`))
	assert.Error(t, err)

	_, err = ParseScenarios([]byte("scenarios:\n  - name: x\n    turns: []\n"))
	assert.Error(t, err)
}

func TestRunSequentialForLargeBatches(t *testing.T) {
	var mu sync.Mutex
	var staggers []time.Duration

	h := NewHarness(newTestRunner(t), func(o *Options) {
		o.Sleeper = func(_ context.Context, d time.Duration) error {
			mu.Lock()
			staggers = append(staggers, d)
			mu.Unlock()
			return nil
		}
	})

	scenarios := []Scenario{
		{Name: "a", Turns: []string{"1"}},
		{Name: "b", Turns: []string{"1"}},
		{Name: "c", Turns: []string{"1"}},
		{Name: "d", Turns: []string{"1"}},
	}

	results := h.Run(context.Background(), scenarios)

	require.Len(t, results, 4)
	for i, r := range results {
		assert.Equal(t, scenarios[i].Name, r.Scenario)
		assert.Len(t, r.Turns, 1)
	}
	assert.Empty(t, staggers, "sequential batches never stagger")
}

func TestRunConcurrentWithStagger(t *testing.T) {
	var mu sync.Mutex
	var staggers []time.Duration

	h := NewHarness(newTestRunner(t), func(o *Options) {
		o.Sleeper = func(_ context.Context, d time.Duration) error {
			mu.Lock()
			staggers = append(staggers, d)
			mu.Unlock()
			return nil
		}
	})

	scenarios := []Scenario{
		{Name: "a", Turns: []string{"1"}},
		{Name: "b", Turns: []string{"1"}},
		{Name: "c", Turns: []string{"1"}},
	}

	results := h.Run(context.Background(), scenarios)

	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, scenarios[i].Name, r.Scenario)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []time.Duration{2000 * time.Millisecond, 4000 * time.Millisecond}, staggers)
}

func TestRunSessionMetrics(t *testing.T) {
	h := NewHarness(newTestRunner(t))

	results := h.Run(context.Background(), []Scenario{
		{Name: "chat", Turns: []string{"hello", "tell me more"}},
	})

	require.Len(t, results, 1)
	res := results[0]
	require.Len(t, res.Turns, 2)
	assert.Equal(t, 0, res.Errors)
	assert.Equal(t, "hello", res.Turns[0].Input)
	assert.NotEmpty(t, res.Turns[0].Output)

	// Transcript alternates user/assistant and carries latencies.
	require.Len(t, res.Transcript, 4)
	assert.Equal(t, core.RoleUser, res.Transcript[0].Role)
	assert.Equal(t, core.RoleAssistant, res.Transcript[1].Role)
	assert.Equal(t, "Helper", res.Transcript[1].Sender)
}

func TestRecorderCapturesResponses(t *testing.T) {
	rec := NewRecorder()
	h := NewHarness(newTestRunner(t, rec))

	h.Run(context.Background(), []Scenario{{Name: "chat", Turns: []string{"hi"}}})

	events := rec.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, EventAgentResponse, events[len(events)-1].Kind)
	assert.Equal(t, "Helper", events[len(events)-1].Agent)
}
