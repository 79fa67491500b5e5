// Package evaluation runs simulated conversations against an agent tree and
// aggregates per-turn latency and error metrics. Small scenario batches run
// concurrently with staggered starts to avoid burst traffic against rate
// limited backends; larger batches run strictly sequentially.
package evaluation

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/canopyai/canopy/backoff"
	"github.com/canopyai/canopy/core"
	"github.com/canopyai/canopy/engine"
	"github.com/canopyai/canopy/logging"
)

const (
	// DefaultConcurrentLimit is the largest batch that still runs concurrently.
	DefaultConcurrentLimit = 3

	// DefaultStagger separates concurrent session starts.
	DefaultStagger = 2000 * time.Millisecond
)

// Scenario is one simulated conversation: a name plus scripted user turns.
type Scenario struct {
	Name  string   `yaml:"name" json:"name"`
	Turns []string `yaml:"turns" json:"turns"`
}

// ParseScenarios reads scenarios from YAML.
func ParseScenarios(data []byte) ([]Scenario, error) {
	var doc struct {
		Scenarios []Scenario `yaml:"scenarios"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse scenarios: %w", err)
	}
	if len(doc.Scenarios) == 0 {
		return nil, fmt.Errorf("no scenarios defined")
	}
	for i, s := range doc.Scenarios {
		if s.Name == "" {
			return nil, fmt.Errorf("scenario %d has no name", i)
		}
		if len(s.Turns) == 0 {
			return nil, fmt.Errorf("scenario %q has no turns", s.Name)
		}
	}
	return doc.Scenarios, nil
}

// LoadScenarios reads scenarios from a YAML file.
func LoadScenarios(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenarios: %w", err)
	}
	return ParseScenarios(data)
}

// TurnMetric captures one user turn of a session.
type TurnMetric struct {
	Turn    int           `json:"turn"`
	Input   string        `json:"input"`
	Output  string        `json:"output"`
	Latency time.Duration `json:"latency"`
	Errored bool          `json:"errored"` // Output was a formatted error string
}

// Result aggregates one completed session.
type Result struct {
	Scenario     string         `json:"scenario"`
	Transcript   []core.Message `json:"transcript"`
	Turns        []TurnMetric   `json:"turns"`
	Errors       int            `json:"errors"`
	TotalLatency time.Duration  `json:"total_latency"`
}

// Options configures a Harness.
type Options struct {
	ConcurrentLimit int
	Stagger         time.Duration
	Sleeper         backoff.Sleeper
	Logger          logging.Logger
}

// Harness drives scenarios through an engine runner. Sessions share no
// state: each gets a fresh history.
type Harness struct {
	runner          *engine.Runner
	concurrentLimit int
	stagger         time.Duration
	sleep           backoff.Sleeper
	logger          logging.Logger
}

// NewHarness creates a Harness over an existing runner.
func NewHarness(runner *engine.Runner, optFns ...func(o *Options)) *Harness {
	opts := Options{
		ConcurrentLimit: DefaultConcurrentLimit,
		Stagger:         DefaultStagger,
		Sleeper:         backoff.DefaultSleeper,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Harness{
		runner:          runner,
		concurrentLimit: opts.ConcurrentLimit,
		stagger:         opts.Stagger,
		sleep:           opts.Sleeper,
		logger:          opts.Logger,
	}
}

// Run executes all scenarios and returns results in scenario order. Batches
// up to the concurrent limit run in parallel with staggered starts; larger
// batches run strictly sequentially.
func (h *Harness) Run(ctx context.Context, scenarios []Scenario) []Result {
	results := make([]Result, len(scenarios))

	if len(scenarios) > h.concurrentLimit {
		for i, s := range scenarios {
			results[i] = h.runSession(ctx, s)
		}
		return results
	}

	var wg sync.WaitGroup
	for i, s := range scenarios {
		wg.Add(1)
		go func(i int, s Scenario) {
			defer wg.Done()
			if i > 0 {
				if err := h.sleep(ctx, time.Duration(i)*h.stagger); err != nil {
					results[i] = Result{Scenario: s.Name}
					return
				}
			}
			results[i] = h.runSession(ctx, s)
		}(i, s)
	}
	wg.Wait()

	return results
}

// runSession plays one scenario's turns against a fresh conversation.
func (h *Harness) runSession(ctx context.Context, s Scenario) Result {
	res := Result{Scenario: s.Name}

	var hist []core.Message
	for i, input := range s.Turns {
		start := time.Now()
		out := h.runner.SendMessage(ctx, hist, input)
		latency := time.Since(start)

		metric := TurnMetric{
			Turn:    i,
			Input:   input,
			Output:  out,
			Latency: latency,
			Errored: strings.HasPrefix(out, "Error:"),
		}
		res.Turns = append(res.Turns, metric)
		res.TotalLatency += latency
		if metric.Errored {
			res.Errors++
		}

		hist = append(hist, core.NewUserMessage(input))
		reply := core.NewAssistantMessage(h.runner.Root().Name, out)
		reply.Latency = latency
		hist = append(hist, reply)

		h.logger.Debug("evaluation turn complete",
			"scenario", s.Name, "turn", i, "latency", latency, "errored", metric.Errored)
	}

	res.Transcript = hist
	return res
}
